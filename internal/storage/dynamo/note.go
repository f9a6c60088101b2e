package dynamo

import (
	"context"
	"strings"

	"github.com/MadlinksCoding/modstore/internal/sanitize"
	"github.com/MadlinksCoding/modstore/internal/types"
)

// AddNote appends a moderator note under the optimistic lock. The per-item
// note cap is enforced against the freshly read record before any write, so
// two racing appends cannot push an item past the limit.
func (e *Engine) AddNote(ctx context.Context, moderationID, userID, text, addedBy string) error {
	const origin = "addNote"

	note := types.Note{
		Text:    sanitize.TextField(text),
		AddedBy: strings.TrimSpace(addedBy),
		AddedAt: e.now().UnixMilli(),
	}
	if err := e.val.Note(note); err != nil {
		return err
	}

	_, err := e.mutate(ctx, origin, moderationID, userID, 0, false,
		func(item *types.ModerationItem) (*types.HistoryEntry, error) {
			item.Notes = append(item.Notes, note)
			if err := e.val.Notes(item.Notes); err != nil {
				return nil, err
			}
			return &types.HistoryEntry{
				Action:    types.HistoryNoteAdded,
				Actor:     note.AddedBy,
				Timestamp: note.AddedAt,
			}, nil
		})
	if err != nil {
		return err
	}
	e.log.WriteLog("moderationNoteAdded", map[string]any{
		"moderationId": moderationID,
		"addedBy":      note.AddedBy,
	})
	return nil
}
