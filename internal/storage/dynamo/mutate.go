package dynamo

import (
	"context"
	"errors"
	"time"

	"github.com/MadlinksCoding/modstore/internal/moderr"
	"github.com/MadlinksCoding/modstore/internal/storage"
	"github.com/MadlinksCoding/modstore/internal/types"
)

// mutate is the shared optimistic-lock loop behind every update operation.
//
// Each attempt reads the current item, applies fn to a private copy, bumps
// meta.version, rebuilds the derived keys, validates the result and writes
// it back with a whole-item conditional put guarded on the version read.
// A conditional-check failure means another writer won the race; the loop
// re-reads after a linear backoff (base * attempt) and tries again, up to
// maxRetries attempts. Exhaustion surfaces as ConcurrentModification.
//
// fn sees the item after the soft-delete guard: deleted items are not
// mutable except by the delete operations themselves, which pass
// allowDeleted.
func (e *Engine) mutate(ctx context.Context, origin, moderationID, userID string,
	maxRetries int, allowDeleted bool,
	fn func(item *types.ModerationItem) (history *types.HistoryEntry, err error),
) (*types.ModerationItem, error) {
	if maxRetries <= 0 {
		maxRetries = e.cfg.LockMaxRetries
	}
	for attempt := 1; ; attempt++ {
		current, err := e.locate(ctx, origin, moderationID, userID)
		if err != nil {
			return nil, err
		}
		if current.IsDeleted && !allowDeleted {
			return nil, e.notFound(origin, moderationID)
		}
		expectedVersion := current.Meta.Version

		next := cloneItem(current)
		entry, err := fn(next)
		if err != nil {
			return nil, err
		}

		next.Meta.Version = expectedVersion + 1
		next.StatusSubmittedAt = types.BuildStatusSubmittedAt(next.Status, next.SubmittedAt)
		if entry != nil {
			next.Meta.History = appendHistory(next.Meta.History, *entry, e.cfg.MaxHistoryEntries)
		}
		if err := e.val.Item(next); err != nil {
			return nil, err
		}

		putErr := e.withRetry(ctx, origin, func() error {
			return e.drv.PutItem(ctx, &storage.PutInput{
				TableName:           e.cfg.TableName,
				Item:                itemToMap(next),
				ConditionExpression: "#meta.#version = :expectedVersion",
				ExpressionAttributeNames: map[string]string{
					"#meta":    attrMeta,
					"#version": attrMetaVersion,
				},
				ExpressionAttributeValues: map[string]any{
					":expectedVersion": expectedVersion,
				},
			})
		})
		if putErr == nil {
			return next, nil
		}
		if !errors.Is(putErr, storage.ErrConditionalCheckFailed) {
			return nil, e.storageErr(origin, "conditional write failed", putErr, moderationID)
		}
		if attempt >= maxRetries {
			return nil, moderr.Report(e.sink, moderr.New(moderr.KindConcurrentModification, origin,
				"item was modified concurrently; retries exhausted").
				WithData(map[string]any{"moderationId": moderationID, "attempts": attempt}))
		}
		if err := sleep(ctx, time.Duration(attempt)*e.cfg.LockRetryBaseDelay); err != nil {
			return nil, moderr.Wrap(moderr.KindCancelled, origin, "cancelled during lock retry", err)
		}
	}
}

// appendHistory appends entry and trims the oldest entries beyond max.
func appendHistory(history []types.HistoryEntry, entry types.HistoryEntry, max int) []types.HistoryEntry {
	history = append(history, entry)
	if max > 0 && len(history) > max {
		history = history[len(history)-max:]
	}
	return history
}

// cloneItem deep-copies the mutable parts of an item so the lock loop's
// apply function never aliases the freshly read record.
func cloneItem(m *types.ModerationItem) *types.ModerationItem {
	out := *m
	out.ActionedAt = cloneInt64(m.ActionedAt)
	out.EscalatedAt = cloneInt64(m.EscalatedAt)
	out.DeletedAt = cloneInt64(m.DeletedAt)
	out.Meta.ContentDeletedAt = cloneInt64(m.Meta.ContentDeletedAt)
	if m.Notes != nil {
		out.Notes = make([]types.Note, len(m.Notes))
		copy(out.Notes, m.Notes)
	}
	if m.Meta.History != nil {
		out.Meta.History = make([]types.HistoryEntry, len(m.Meta.History))
		copy(out.Meta.History, m.Meta.History)
	}
	return &out
}

func cloneInt64(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
