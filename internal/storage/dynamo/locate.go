package dynamo

import (
	"context"
	"fmt"

	"github.com/MadlinksCoding/modstore/internal/moderr"
	"github.com/MadlinksCoding/modstore/internal/storage"
	"github.com/MadlinksCoding/modstore/internal/types"
)

// locate resolves a moderationId to its primary key via the KEYS_ONLY
// moderation-id index, then reads the full item with a strongly consistent
// GetItem. The index read may lag a just-committed write; the follow-up
// primary-key read does not.
//
// When userID is non-empty the resolved partition must belong to that user;
// a mismatch is reported as not-found rather than leaking the owner.
func (e *Engine) locate(ctx context.Context, origin, moderationID, userID string) (*types.ModerationItem, error) {
	if err := e.val.ModerationID(moderationID); err != nil {
		return nil, err
	}
	var page *storage.Page
	err := e.withRetry(ctx, origin, func() error {
		var qerr error
		page, qerr = e.drv.Query(ctx, &storage.QueryInput{
			TableName:              e.cfg.TableName,
			IndexName:              IndexByModerationID,
			KeyConditionExpression: "#moderationId = :moderationId",
			ExpressionAttributeNames: map[string]string{
				"#moderationId": attrModerationID,
			},
			ExpressionAttributeValues: map[string]any{
				":moderationId": moderationID,
			},
			Limit: 1,
		})
		return qerr
	})
	if err != nil {
		return nil, e.storageErr(origin, "moderation id lookup failed", err, moderationID)
	}
	if len(page.Items) == 0 {
		return nil, e.notFound(origin, moderationID)
	}
	pk := str(page.Items[0][attrPK])
	sk := str(page.Items[0][attrSK])
	if userID != "" && pk != types.BuildPK(userID) {
		return nil, e.notFound(origin, moderationID)
	}

	var raw map[string]any
	err = e.withRetry(ctx, origin, func() error {
		var gerr error
		raw, gerr = e.drv.GetItem(ctx, &storage.GetInput{
			TableName:      e.cfg.TableName,
			Key:            map[string]any{attrPK: pk, attrSK: sk},
			ConsistentRead: true,
		})
		return gerr
	})
	if err != nil {
		return nil, e.storageErr(origin, "item read failed", err, moderationID)
	}
	if raw == nil {
		// Deleted between the index read and the key read.
		return nil, e.notFound(origin, moderationID)
	}
	item, err := itemFromMap(raw)
	if err != nil {
		return nil, moderr.Report(e.sink, moderr.Wrap(moderr.KindContentCorrupted, origin,
			"stored item is malformed", err).
			WithData(map[string]any{"moderationId": moderationID}))
	}
	return item, nil
}

func (e *Engine) notFound(origin, moderationID string) error {
	return moderr.Report(e.sink, moderr.New(moderr.KindNotFound, origin,
		fmt.Sprintf("moderation item %s not found", moderationID)).
		WithData(map[string]any{"moderationId": moderationID}))
}

// storageErr passes through errors already shaped by withRetry (cancelled,
// transient-exhausted) and wraps anything else as a storage failure.
func (e *Engine) storageErr(origin, msg string, err error, moderationID string) error {
	if moderr.KindOf(err) != "" {
		return err
	}
	return moderr.Report(e.sink, moderr.Wrap(moderr.KindStorageTransient, origin, msg, err).
		WithData(map[string]any{"moderationId": moderationID}))
}
