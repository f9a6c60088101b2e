package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MadlinksCoding/modstore/internal/codec"
	"github.com/MadlinksCoding/modstore/internal/moderr"
	"github.com/MadlinksCoding/modstore/internal/sanitize"
	"github.com/MadlinksCoding/modstore/internal/storage"
	"github.com/MadlinksCoding/modstore/internal/types"
)

// CreateModerationEntry inserts a new moderation record and returns its
// moderationId. The submission timestamp (epoch ms) is optional: zero means
// the current time; a supplied value must fall within the accepted window.
//
// A caller-supplied moderationId is validated and deduplicated; otherwise
// a fresh v4 UUID is generated. Pre-approved submissions start directly in
// the approved status. Content larger than the compression threshold is
// stored as a gzip envelope.
func (e *Engine) CreateModerationEntry(ctx context.Context, in types.CreateInput, timestamp int64) (string, error) {
	const origin = "createModerationEntry"

	in.UserID = strings.TrimSpace(in.UserID)
	in.ContentID = strings.TrimSpace(in.ContentID)
	in.Reason = sanitize.TextField(in.Reason)
	in.PublicNote = sanitize.TextField(in.PublicNote)

	if timestamp == 0 {
		timestamp = e.now().UnixMilli()
	}
	if err := e.val.Timestamp(timestamp, e.now()); err != nil {
		return "", err
	}
	if err := e.val.CreateInput(in); err != nil {
		return "", err
	}

	moderationID := in.ModerationID
	if moderationID != "" {
		if err := e.val.ModerationID(moderationID); err != nil {
			return "", err
		}
		taken, err := e.moderationIDExists(ctx, origin, moderationID)
		if err != nil {
			return "", err
		}
		if taken {
			return "", moderr.Report(e.sink, moderr.New(moderr.KindAlreadyExists, origin,
				fmt.Sprintf("moderation entry %s already exists", moderationID)).
				WithData(map[string]any{"moderationId": moderationID}))
		}
	} else {
		moderationID = e.newID()
	}

	status := types.StatusPending
	if in.IsPreApproved {
		status = types.StatusApproved
	}

	content := in.Content
	if m, ok := content.(map[string]any); ok {
		content = sanitize.SafeMap(m)
	}
	content = codec.Compress(content, e.cfg.CompressionThreshold)

	item := &types.ModerationItem{
		PK:                types.BuildPK(in.UserID),
		SK:                types.BuildSK(timestamp, moderationID),
		ModerationID:      moderationID,
		UserID:            in.UserID,
		ContentID:         in.ContentID,
		Type:              in.Type,
		Priority:          in.Priority,
		Status:            status,
		SubmittedAt:       timestamp,
		StatusSubmittedAt: types.BuildStatusSubmittedAt(status, timestamp),
		DayKey:            types.UTCDayKey(timestamp),
		IsPreApproved:     in.IsPreApproved,
		IsSystemGenerated: in.IsSystemGenerated,
		Content:           content,
		Classification:    in.Classification,
		ContentFormat:     in.ContentFormat,
		MediaType:         in.MediaType,
		Notes:             in.Notes,
		Reason:            in.Reason,
		PublicNote:        in.PublicNote,
		Meta: types.Meta{
			Version: 1,
			// The create entry is timestamped with the submission time
			// itself so backdated records carry a consistent trail.
			History: []types.HistoryEntry{{
				Action:    types.HistoryCreate,
				Actor:     in.UserID,
				Timestamp: timestamp,
			}},
		},
	}
	if err := e.val.Item(item); err != nil {
		return "", err
	}

	err := e.withRetry(ctx, origin, func() error {
		return e.drv.PutItem(ctx, &storage.PutInput{
			TableName:           e.cfg.TableName,
			Item:                itemToMap(item),
			ConditionExpression: "attribute_not_exists(#pk) AND attribute_not_exists(#sk)",
			ExpressionAttributeNames: map[string]string{
				"#pk": attrPK,
				"#sk": attrSK,
			},
		})
	})
	if err != nil {
		if errors.Is(err, storage.ErrConditionalCheckFailed) {
			return "", moderr.Report(e.sink, moderr.New(moderr.KindAlreadyExists, origin,
				fmt.Sprintf("moderation entry %s already exists", moderationID)).
				WithData(map[string]any{"moderationId": moderationID, "userId": in.UserID}))
		}
		return "", e.storageErr(origin, "create write failed", err, moderationID)
	}

	e.log.WriteLog("moderationEntryCreated", map[string]any{
		"moderationId": moderationID,
		"userId":       in.UserID,
		"contentId":    in.ContentID,
		"type":         string(in.Type),
		"status":       string(status),
	})
	return moderationID, nil
}

// moderationIDExists checks the moderation-id index for a prior entry.
func (e *Engine) moderationIDExists(ctx context.Context, origin, moderationID string) (bool, error) {
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
			Limit:  1,
			Select: storage.SelectCount,
		})
		return qerr
	})
	if err != nil {
		return false, e.storageErr(origin, "moderation id lookup failed", err, moderationID)
	}
	return page.Count > 0, nil
}
