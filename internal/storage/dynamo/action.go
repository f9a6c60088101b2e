package dynamo

import (
	"context"
	"fmt"
	"strings"

	"github.com/MadlinksCoding/modstore/internal/moderr"
	"github.com/MadlinksCoding/modstore/internal/sanitize"
	"github.com/MadlinksCoding/modstore/internal/types"
)

// actionRetries bounds the lock loop for action application: a single
// conditional failure retries once with a fresh read, a second one yields
// ConcurrentModification. Two moderators racing on the same item should
// not silently both win.
const actionRetries = 2

// ApplyModerationAction applies a moderator decision to an item.
//
// Transitions follow the review state machine: approve and reject resolve
// a pending or escalated item; approve with moderationType=global lands in
// approved_global; pending_resubmission keeps the item pending and only
// records the action; escalate moves it to the escalation backlog. Any
// other action/status combination fails with ActionStatusInconsistent.
func (e *Engine) ApplyModerationAction(ctx context.Context, in types.ActionInput) error {
	const origin = "applyModerationAction"

	in.ModeratorID = strings.TrimSpace(in.ModeratorID)
	in.Reason = sanitize.TextField(in.Reason)
	in.Note = sanitize.TextField(in.Note)
	in.PublicNote = sanitize.TextField(in.PublicNote)

	if !in.Action.IsValid() {
		return moderr.Report(e.sink, moderr.New(moderr.KindInvalidEnum, origin,
			fmt.Sprintf("invalid action %q", in.Action)).
			WithData(map[string]any{"moderationId": in.ModerationID, "action": string(in.Action)}))
	}
	if in.ModerationType != "" && !in.ModerationType.IsValid() {
		return moderr.Report(e.sink, moderr.New(moderr.KindInvalidEnum, origin,
			fmt.Sprintf("invalid moderationType %q", in.ModerationType)).
			WithData(map[string]any{"moderationId": in.ModerationID}))
	}
	if in.ModeratorID == "" {
		return moderr.Report(e.sink, moderr.New(moderr.KindInvalidInput, origin,
			"moderatorId is required").
			WithData(map[string]any{"moderationId": in.ModerationID}))
	}
	if err := e.val.Reason(in.Reason); err != nil {
		return err
	}
	if err := e.val.PublicNote(in.PublicNote); err != nil {
		return err
	}

	now := e.now().UnixMilli()
	item, err := e.mutate(ctx, origin, in.ModerationID, in.UserID, actionRetries, false,
		func(item *types.ModerationItem) (*types.HistoryEntry, error) {
			next, err := nextStatus(item.Status, in.Action, in.ModerationType)
			if err != nil {
				return nil, moderr.Report(e.sink, moderr.New(moderr.KindActionStatusInconsistent, origin,
					err.Error()).
					WithData(map[string]any{
						"moderationId": item.ModerationID,
						"status":       string(item.Status),
						"action":       string(in.Action),
					}))
			}
			item.Status = next
			item.Action = in.Action
			item.ActionedAt = &now
			item.ModeratedBy = in.ModeratorID
			if in.ModerationType != "" {
				item.ModerationType = in.ModerationType
			}
			if in.Reason != "" {
				item.Reason = in.Reason
			}
			if in.PublicNote != "" {
				item.PublicNote = in.PublicNote
			}
			if in.Action == types.ActionEscalate {
				item.EscalatedBy = in.ModeratorID
				item.EscalatedAt = &now
			}
			// Resolving an escalated item keeps escalatedBy and
			// escalatedAt as the audit trail of who raised it.
			if item.Type.IsTagFamily() {
				if in.Action == types.ActionApprove {
					item.TagStatus = types.TagStatusPublished
				} else {
					item.TagStatus = types.TagStatusPending
				}
			}
			if in.Note != "" {
				item.Notes = append(item.Notes, types.Note{
					Text:    in.Note,
					AddedBy: in.ModeratorID,
					AddedAt: now,
				})
				if err := e.val.Notes(item.Notes); err != nil {
					return nil, err
				}
			}
			return &types.HistoryEntry{
				Action:    types.HistoryAction,
				Actor:     in.ModeratorID,
				Timestamp: now,
				Details:   []string{string(in.Action)},
			}, nil
		})
	if err != nil {
		return err
	}
	e.log.WriteLog("moderationActioned", map[string]any{
		"moderationId": in.ModerationID,
		"moderatorId":  in.ModeratorID,
		"action":       string(in.Action),
		"status":       string(item.Status),
	})
	return nil
}

// nextStatus resolves the review state machine. pending_resubmission (the
// stored status) is treated like pending for actionability; re-escalating
// an escalated item is allowed and records fresh history.
func nextStatus(current types.Status, action types.Action, mt types.ModerationType) (types.Status, error) {
	actionable := current == types.StatusPending ||
		current == types.StatusPendingResubmission ||
		current == types.StatusEscalated

	switch action {
	case types.ActionApprove:
		if !actionable {
			return "", fmt.Errorf("cannot approve an item in status %q", current)
		}
		if mt == types.ModerationGlobal {
			return types.StatusApprovedGlobal, nil
		}
		return types.StatusApproved, nil
	case types.ActionReject:
		if !actionable {
			return "", fmt.Errorf("cannot reject an item in status %q", current)
		}
		return types.StatusRejected, nil
	case types.ActionPendingResubmission:
		if current != types.StatusPending && current != types.StatusPendingResubmission {
			return "", fmt.Errorf("cannot request resubmission for an item in status %q", current)
		}
		// Only action/actionedAt change; the item stays in the queue.
		return current, nil
	case types.ActionEscalate:
		if !actionable {
			return "", fmt.Errorf("cannot escalate an item in status %q", current)
		}
		return types.StatusEscalated, nil
	}
	return "", fmt.Errorf("unsupported action %q", action)
}
