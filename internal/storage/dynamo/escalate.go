package dynamo

import (
	"context"
	"fmt"
	"strings"

	"github.com/MadlinksCoding/modstore/internal/moderr"
	"github.com/MadlinksCoding/modstore/internal/types"
)

// EscalateModerationItem moves an item to the escalation backlog: status
// becomes escalated and the escalation actor and timestamps are recorded.
// Escalating an already escalated item is not an error; it records a fresh
// history entry and updates the escalation attribution.
func (e *Engine) EscalateModerationItem(ctx context.Context, moderationID, userID, escalatedBy string) error {
	const origin = "escalateModerationItem"

	escalatedBy = strings.TrimSpace(escalatedBy)
	if escalatedBy == "" {
		return moderr.Report(e.sink, moderr.New(moderr.KindInvalidInput, origin,
			"escalatedBy is required").
			WithData(map[string]any{"moderationId": moderationID}))
	}

	now := e.now().UnixMilli()
	_, err := e.mutate(ctx, origin, moderationID, userID, 0, false,
		func(item *types.ModerationItem) (*types.HistoryEntry, error) {
			switch item.Status {
			case types.StatusPending, types.StatusPendingResubmission, types.StatusEscalated:
			default:
				return nil, moderr.Report(e.sink, moderr.New(moderr.KindActionStatusInconsistent, origin,
					fmt.Sprintf("cannot escalate an item in status %q", item.Status)).
					WithData(map[string]any{
						"moderationId": item.ModerationID,
						"status":       string(item.Status),
					}))
			}
			item.Status = types.StatusEscalated
			item.Action = types.ActionEscalate
			item.EscalatedBy = escalatedBy
			item.EscalatedAt = &now
			item.ActionedAt = &now
			if item.Type.IsTagFamily() {
				item.TagStatus = types.TagStatusPending
			}
			return &types.HistoryEntry{
				Action:    types.HistoryEscalate,
				Actor:     escalatedBy,
				Timestamp: now,
			}, nil
		})
	if err != nil {
		return err
	}
	e.log.WriteLog("itemEscalated", map[string]any{
		"moderationId": moderationID,
		"escalatedBy":  escalatedBy,
	})
	return nil
}
