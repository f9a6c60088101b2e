package dynamo

import (
	"context"

	"github.com/MadlinksCoding/modstore/internal/moderr"
	"github.com/MadlinksCoding/modstore/internal/sanitize"
	"github.com/MadlinksCoding/modstore/internal/types"
)

// UpdateModerationMeta merges a limited set of bookkeeping fields under the
// optimistic lock: extra history entries are appended (subject to the
// retention cap), the contentDeleted pair is set or cleared together, and
// updatedBy is recorded. meta.version is owned by the engine and cannot be
// set through this operation.
func (e *Engine) UpdateModerationMeta(ctx context.Context, moderationID, userID string, metaUpdates map[string]any) error {
	const origin = "updateModerationMeta"

	if len(metaUpdates) == 0 {
		return nil
	}
	metaUpdates = sanitize.SafeMap(metaUpdates)

	extraHistory, err := e.parseHistoryEntries(origin, moderationID, metaUpdates["history"])
	if err != nil {
		return err
	}

	now := e.now().UnixMilli()
	_, err = e.mutate(ctx, origin, moderationID, userID, 0, false,
		func(item *types.ModerationItem) (*types.HistoryEntry, error) {
			if raw, ok := metaUpdates["contentDeleted"]; ok {
				deleted, ok := raw.(bool)
				if !ok {
					return nil, moderr.Report(e.sink, moderr.New(moderr.KindInvalidInput, origin,
						"contentDeleted must be a boolean").
						WithData(map[string]any{"moderationId": moderationID}))
				}
				if deleted {
					ts := now
					if rawTs, ok := metaUpdates["contentDeletedAt"]; ok {
						if ts, ok = sanitize.Integer(rawTs); !ok {
							return nil, moderr.Report(e.sink, moderr.New(moderr.KindInvalidTimestamp, origin,
								"contentDeletedAt must be an epoch ms value").
								WithData(map[string]any{"moderationId": moderationID}))
						}
					}
					item.Content = nil
					item.Meta.ContentDeleted = true
					item.Meta.ContentDeletedAt = &ts
				} else {
					item.Meta.ContentDeleted = false
					item.Meta.ContentDeletedAt = nil
				}
			}
			if raw, ok := metaUpdates["updatedBy"]; ok {
				if s, ok := sanitize.String(raw); ok {
					item.Meta.UpdatedBy = s
				}
			}
			for _, entry := range extraHistory {
				item.Meta.History = appendHistory(item.Meta.History, entry, e.cfg.MaxHistoryEntries)
			}
			return &types.HistoryEntry{
				Action:    types.HistoryMetaUpdate,
				Actor:     userID,
				Timestamp: now,
			}, nil
		})
	if err != nil {
		return err
	}
	e.log.WriteLog("moderationMetaUpdated", map[string]any{
		"moderationId": moderationID,
		"userId":       userID,
	})
	return nil
}

// parseHistoryEntries converts caller-supplied history entries from untyped
// input. A missing field fails the whole operation; partial audit records
// are worse than none.
func (e *Engine) parseHistoryEntries(origin, moderationID string, raw any) ([]types.HistoryEntry, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, moderr.Report(e.sink, moderr.New(moderr.KindInvalidInput, origin,
			"history must be a list of entries").
			WithData(map[string]any{"moderationId": moderationID}))
	}
	entries := make([]types.HistoryEntry, 0, len(list))
	for _, rawEntry := range list {
		em, ok := rawEntry.(map[string]any)
		if !ok {
			return nil, moderr.Report(e.sink, moderr.New(moderr.KindInvalidInput, origin,
				"history entry must be an object").
				WithData(map[string]any{"moderationId": moderationID}))
		}
		action, actionOK := sanitize.String(em["action"])
		actor, actorOK := sanitize.String(em["actor"])
		ts, tsOK := sanitize.Integer(em["timestamp"])
		if !actionOK || !actorOK || !tsOK || ts <= 0 {
			return nil, moderr.Report(e.sink, moderr.New(moderr.KindInvalidInput, origin,
				"history entry requires action, actor and timestamp").
				WithData(map[string]any{"moderationId": moderationID}))
		}
		entry := types.HistoryEntry{Action: action, Actor: actor, Timestamp: ts}
		if rawDetails, ok := em["details"].([]any); ok {
			for _, rd := range rawDetails {
				if d, ok := sanitize.String(rd); ok {
					entry.Details = append(entry.Details, d)
				}
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
