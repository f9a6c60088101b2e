package dynamo

import (
	"context"
	"fmt"
	"strings"

	"github.com/MadlinksCoding/modstore/internal/moderr"
	"github.com/MadlinksCoding/modstore/internal/storage"
	"github.com/MadlinksCoding/modstore/internal/types"
)

// SoftDeleteModerationItem marks an item deleted without removing it. The
// status is preserved; default queries stop returning the item. Deleting
// an already deleted item fails with AlreadyDeleted.
func (e *Engine) SoftDeleteModerationItem(ctx context.Context, moderationID, userID, deletedBy string) error {
	const origin = "softDeleteModerationItem"

	deletedBy = strings.TrimSpace(deletedBy)
	now := e.now().UnixMilli()
	_, err := e.mutate(ctx, origin, moderationID, userID, 0, true,
		func(item *types.ModerationItem) (*types.HistoryEntry, error) {
			if item.IsDeleted {
				return nil, moderr.Report(e.sink, moderr.New(moderr.KindAlreadyDeleted, origin,
					fmt.Sprintf("moderation item %s is already deleted", moderationID)).
					WithData(map[string]any{"moderationId": moderationID}))
			}
			item.IsDeleted = true
			item.DeletedAt = &now
			entry := &types.HistoryEntry{
				Action:    types.HistorySoftDelete,
				Actor:     userID,
				Timestamp: now,
			}
			if deletedBy != "" {
				entry.Details = []string{"deletedBy:" + deletedBy}
			}
			return entry, nil
		})
	if err != nil {
		return err
	}
	e.log.WriteLog("itemSoftDeleted", map[string]any{
		"moderationId": moderationID,
		"userId":       userID,
		"deletedBy":    deletedBy,
	})
	return nil
}

// HardDeleteModerationItem permanently removes an item. A missing item is
// not an error; the boolean reports whether anything was removed.
func (e *Engine) HardDeleteModerationItem(ctx context.Context, moderationID, userID string) (bool, error) {
	const origin = "hardDeleteModerationItem"

	item, err := e.locate(ctx, origin, moderationID, userID)
	if err != nil {
		if moderr.IsKind(err, moderr.KindNotFound) {
			return false, nil
		}
		return false, err
	}
	err = e.withRetry(ctx, origin, func() error {
		return e.drv.DeleteItem(ctx, &storage.DeleteInput{
			TableName: e.cfg.TableName,
			Key:       map[string]any{attrPK: item.PK, attrSK: item.SK},
		})
	})
	if err != nil {
		return false, e.storageErr(origin, "delete failed", err, moderationID)
	}
	e.log.WriteLog("itemHardDeleted", map[string]any{
		"moderationId": moderationID,
		"userId":       userID,
	})
	return true, nil
}
