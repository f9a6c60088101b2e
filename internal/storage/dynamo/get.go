package dynamo

import (
	"context"

	"github.com/MadlinksCoding/modstore/internal/codec"
	"github.com/MadlinksCoding/modstore/internal/types"
)

// GetModerationRecordByID fetches a single record through the moderation-id
// index and a strongly consistent primary-key read. Soft-deleted records
// are hidden unless includeDeleted is set. Compressed content is inflated
// before return.
func (e *Engine) GetModerationRecordByID(ctx context.Context, moderationID, userID string, includeDeleted bool) (*types.ModerationItem, error) {
	const origin = "getModerationRecordById"

	item, err := e.locate(ctx, origin, moderationID, userID)
	if err != nil {
		return nil, err
	}
	if item.IsDeleted && !includeDeleted {
		return nil, e.notFound(origin, moderationID)
	}
	content, err := codec.Decompress(item.Content)
	if err != nil {
		return nil, err
	}
	item.Content = content
	if e.validateOnRead {
		if err := e.val.Item(item); err != nil {
			return nil, err
		}
	}
	return item, nil
}
