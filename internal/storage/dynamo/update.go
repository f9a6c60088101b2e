package dynamo

import (
	"context"
	"fmt"

	"github.com/MadlinksCoding/modstore/internal/codec"
	"github.com/MadlinksCoding/modstore/internal/moderr"
	"github.com/MadlinksCoding/modstore/internal/sanitize"
	"github.com/MadlinksCoding/modstore/internal/types"
)

// UpdateModerationEntry merges a whitelisted set of fields into an existing
// record under the optimistic lock. The whitelist covers content, status,
// type, contentId, action, priority, classification, contentType, mediaType,
// reason, publicNote, notes, isSystemGenerated, isPreApproved and the
// isDeleted/deletedAt pair. submittedAt and moderationId are silently
// ignored, as are the key-derived attributes and meta; unknown keys are
// dropped. Status changes re-derive statusSubmittedAt in the lock loop.
// The history entry records which fields changed.
func (e *Engine) UpdateModerationEntry(ctx context.Context, moderationID string, updates map[string]any, userID string) error {
	const origin = "updateModerationEntry"

	if len(updates) == 0 {
		return nil
	}
	updates = sanitize.SafeMap(updates)

	_, err := e.mutate(ctx, origin, moderationID, userID, 0, false,
		func(item *types.ModerationItem) (*types.HistoryEntry, error) {
			changed, err := e.applyFieldUpdates(item, updates)
			if err != nil {
				return nil, err
			}
			if len(changed) == 0 {
				return nil, errNoFieldsChanged
			}
			item.Meta.UpdatedBy = userID
			return &types.HistoryEntry{
				Action:    types.HistoryUpdate,
				Actor:     userID,
				Timestamp: e.now().UnixMilli(),
				Details:   changed,
			}, nil
		})
	if err == errNoFieldsChanged {
		return nil
	}
	if err != nil {
		return err
	}
	e.log.WriteLog("moderationEntryUpdated", map[string]any{
		"moderationId": moderationID,
		"userId":       userID,
	})
	return nil
}

// errNoFieldsChanged aborts the lock loop without a write when an update
// touches nothing. It never escapes UpdateModerationEntry.
var errNoFieldsChanged = moderr.New(moderr.KindInvalidInput, "updateModerationEntry", "no updatable fields changed")

// applyFieldUpdates merges the recognized update keys into item and returns
// the names of the fields that actually changed.
func (e *Engine) applyFieldUpdates(item *types.ModerationItem, updates map[string]any) ([]string, error) {
	const origin = "updateModerationEntry"
	var changed []string
	mark := func(field string) { changed = append(changed, field) }

	invalidEnum := func(field, val string) error {
		return moderr.Report(e.sink, moderr.New(moderr.KindInvalidEnum, origin,
			fmt.Sprintf("invalid %s %q", field, val)).
			WithData(map[string]any{"moderationId": item.ModerationID, field: val}))
	}

	if raw, ok := updates[attrContent]; ok {
		content := raw
		if m, ok := content.(map[string]any); ok {
			content = sanitize.SafeMap(m)
		}
		content = codec.Compress(content, e.cfg.CompressionThreshold)
		item.Content = content
		item.Meta.ContentDeleted = false
		item.Meta.ContentDeletedAt = nil
		mark(attrContent)
	}
	if raw, ok := updates[attrStatus]; ok {
		s, _ := sanitize.String(raw)
		st := types.Status(s)
		if !st.IsValid() {
			return nil, invalidEnum(attrStatus, s)
		}
		if item.Status != st {
			// statusSubmittedAt follows in the lock loop.
			item.Status = st
			mark(attrStatus)
		}
	}
	if raw, ok := updates[attrType]; ok {
		s, _ := sanitize.String(raw)
		ct := types.ContentType(s)
		if !ct.IsValid() {
			return nil, invalidEnum(attrType, s)
		}
		if item.Type != ct {
			item.Type = ct
			mark(attrType)
		}
	}
	if raw, ok := updates[attrContentID]; ok {
		s, _ := sanitize.String(raw)
		if s == "" {
			return nil, moderr.Report(e.sink, moderr.New(moderr.KindInvalidInput, origin,
				"contentId cannot be empty").
				WithData(map[string]any{"moderationId": item.ModerationID}))
		}
		if item.ContentID != s {
			item.ContentID = s
			mark(attrContentID)
		}
	}
	if raw, ok := updates[attrAction]; ok {
		s, _ := sanitize.String(raw)
		a := types.Action(s)
		if s != "" && !a.IsValid() {
			return nil, invalidEnum(attrAction, s)
		}
		if item.Action != a {
			item.Action = a
			// Keep the action/actionedAt pair consistent.
			if a == "" {
				item.ActionedAt = nil
			} else if item.ActionedAt == nil {
				now := e.now().UnixMilli()
				item.ActionedAt = &now
			}
			mark(attrAction)
		}
	}
	if raw, ok := updates[attrPriority]; ok {
		s, _ := sanitize.String(raw)
		p := types.Priority(s)
		if !p.IsValid() {
			return nil, invalidEnum(attrPriority, s)
		}
		if item.Priority != p {
			item.Priority = p
			mark(attrPriority)
		}
	}
	for _, f := range []struct {
		key string
		dst *string
	}{
		{attrClassification, &item.Classification},
		{attrContentFormat, &item.ContentFormat},
		{attrMediaType, &item.MediaType},
		{attrReason, &item.Reason},
		{attrPublicNote, &item.PublicNote},
	} {
		raw, ok := updates[f.key]
		if !ok {
			continue
		}
		v := sanitize.TextField(raw)
		if *f.dst != v {
			*f.dst = v
			mark(f.key)
		}
	}
	for _, f := range []struct {
		key string
		dst *bool
	}{
		{attrIsSystemGenerated, &item.IsSystemGenerated},
		{attrIsPreApproved, &item.IsPreApproved},
	} {
		raw, ok := updates[f.key]
		if !ok {
			continue
		}
		b, ok := raw.(bool)
		if !ok || *f.dst == b {
			continue
		}
		*f.dst = b
		mark(f.key)
	}
	if raw, ok := updates[attrIsDeleted]; ok {
		if b, ok := raw.(bool); ok && item.IsDeleted != b {
			item.IsDeleted = b
			// The pair moves together: a caller-supplied deletedAt is
			// honored, otherwise now; undeleting clears it.
			if b {
				ts := e.now().UnixMilli()
				if v, ok := sanitize.Integer(updates[attrDeletedAt]); ok && v > 0 {
					ts = v
				}
				item.DeletedAt = &ts
			} else {
				item.DeletedAt = nil
			}
			mark(attrIsDeleted)
		}
	}
	if raw, ok := updates[attrNotes]; ok {
		notes, err := parseNotes(raw)
		if err != nil {
			return nil, moderr.Report(e.sink, moderr.New(moderr.KindInvalidInput, origin,
				err.Error()).
				WithData(map[string]any{"moderationId": item.ModerationID}))
		}
		if err := e.val.Notes(notes); err != nil {
			return nil, err
		}
		item.Notes = notes
		mark(attrNotes)
	}
	if err := e.val.Reason(item.Reason); err != nil {
		return nil, err
	}
	if err := e.val.PublicNote(item.PublicNote); err != nil {
		return nil, err
	}
	return changed, nil
}

// parseNotes coerces an untyped notes update into the note list. It accepts
// the typed slice directly and the decoded-JSON shape.
func parseNotes(raw any) ([]types.Note, error) {
	switch v := raw.(type) {
	case []types.Note:
		return v, nil
	case []any:
		notes := make([]types.Note, 0, len(v))
		for i, el := range v {
			m, ok := el.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("notes[%d] is not an object", i)
			}
			text := sanitize.TextField(m["text"])
			addedBy, _ := sanitize.String(m["addedBy"])
			addedAt, _ := sanitize.Integer(m["addedAt"])
			notes = append(notes, types.Note{Text: text, AddedBy: addedBy, AddedAt: addedAt})
		}
		return notes, nil
	}
	return nil, fmt.Errorf("notes must be a list of note objects")
}
