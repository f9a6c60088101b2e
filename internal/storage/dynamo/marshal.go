package dynamo

import (
	"fmt"

	"github.com/MadlinksCoding/modstore/internal/types"
)

// itemToMap flattens a ModerationItem into the driver's wire map. Nullable
// timestamps are omitted when unset; booleans are always written so filter
// expressions can rely on their presence.
func itemToMap(m *types.ModerationItem) map[string]any {
	out := map[string]any{
		attrPK:                m.PK,
		attrSK:                m.SK,
		attrModerationID:      m.ModerationID,
		attrUserID:            m.UserID,
		attrContentID:         m.ContentID,
		attrType:              string(m.Type),
		attrPriority:          string(m.Priority),
		attrStatus:            string(m.Status),
		attrSubmittedAt:       m.SubmittedAt,
		attrStatusSubmittedAt: m.StatusSubmittedAt,
		attrDayKey:            m.DayKey,
		attrIsDeleted:         m.IsDeleted,
		attrIsPreApproved:     m.IsPreApproved,
		attrIsSystemGenerated: m.IsSystemGenerated,
		attrMeta:              metaToMap(m.Meta),
	}
	setStr := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	setStr(attrModerationType, string(m.ModerationType))
	setStr(attrAction, string(m.Action))
	setStr(attrTagStatus, string(m.TagStatus))
	setStr(attrModeratedBy, m.ModeratedBy)
	setStr(attrEscalatedBy, m.EscalatedBy)
	setStr(attrClassification, m.Classification)
	setStr(attrContentFormat, m.ContentFormat)
	setStr(attrMediaType, m.MediaType)
	setStr(attrReason, m.Reason)
	setStr(attrPublicNote, m.PublicNote)
	if m.ActionedAt != nil {
		out[attrActionedAt] = *m.ActionedAt
	}
	if m.EscalatedAt != nil {
		out[attrEscalatedAt] = *m.EscalatedAt
	}
	if m.DeletedAt != nil {
		out[attrDeletedAt] = *m.DeletedAt
	}
	if m.Content != nil {
		out[attrContent] = m.Content
	}
	if len(m.Notes) > 0 {
		notes := make([]any, 0, len(m.Notes))
		for _, n := range m.Notes {
			notes = append(notes, map[string]any{
				"text":    n.Text,
				"addedBy": n.AddedBy,
				"addedAt": n.AddedAt,
			})
		}
		out[attrNotes] = notes
	}
	return out
}

func metaToMap(meta types.Meta) map[string]any {
	m := map[string]any{attrMetaVersion: meta.Version}
	if len(meta.History) > 0 {
		hist := make([]any, 0, len(meta.History))
		for _, h := range meta.History {
			entry := map[string]any{
				"action":    h.Action,
				"actor":     h.Actor,
				"timestamp": h.Timestamp,
			}
			if len(h.Details) > 0 {
				details := make([]any, 0, len(h.Details))
				for _, d := range h.Details {
					details = append(details, d)
				}
				entry["details"] = details
			}
			hist = append(hist, entry)
		}
		m["history"] = hist
	}
	if meta.ContentDeleted {
		m["contentDeleted"] = true
	}
	if meta.ContentDeletedAt != nil {
		m["contentDeletedAt"] = *meta.ContentDeletedAt
	}
	if meta.UpdatedBy != "" {
		m["updatedBy"] = meta.UpdatedBy
	}
	return m
}

// itemFromMap rebuilds a ModerationItem from the wire map. Drivers may
// deliver numbers as int64 or float64; both are accepted.
func itemFromMap(raw map[string]any) (*types.ModerationItem, error) {
	if raw == nil {
		return nil, nil
	}
	m := &types.ModerationItem{
		PK:                str(raw[attrPK]),
		SK:                str(raw[attrSK]),
		ModerationID:      str(raw[attrModerationID]),
		UserID:            str(raw[attrUserID]),
		ContentID:         str(raw[attrContentID]),
		Type:              types.ContentType(str(raw[attrType])),
		Priority:          types.Priority(str(raw[attrPriority])),
		Status:            types.Status(str(raw[attrStatus])),
		ModerationType:    types.ModerationType(str(raw[attrModerationType])),
		Action:            types.Action(str(raw[attrAction])),
		TagStatus:         types.TagStatus(str(raw[attrTagStatus])),
		StatusSubmittedAt: str(raw[attrStatusSubmittedAt]),
		DayKey:            str(raw[attrDayKey]),
		ModeratedBy:       str(raw[attrModeratedBy]),
		EscalatedBy:       str(raw[attrEscalatedBy]),
		IsDeleted:         boolean(raw[attrIsDeleted]),
		IsPreApproved:     boolean(raw[attrIsPreApproved]),
		IsSystemGenerated: boolean(raw[attrIsSystemGenerated]),
		Content:           raw[attrContent],
		Classification:    str(raw[attrClassification]),
		ContentFormat:     str(raw[attrContentFormat]),
		MediaType:         str(raw[attrMediaType]),
		Reason:            str(raw[attrReason]),
		PublicNote:        str(raw[attrPublicNote]),
	}
	var ok bool
	if m.SubmittedAt, ok = asInt64(raw[attrSubmittedAt]); !ok {
		return nil, fmt.Errorf("item %s has non-numeric submittedAt", m.ModerationID)
	}
	m.ActionedAt = optInt64(raw[attrActionedAt])
	m.EscalatedAt = optInt64(raw[attrEscalatedAt])
	m.DeletedAt = optInt64(raw[attrDeletedAt])

	if rawNotes, ok := raw[attrNotes].([]any); ok {
		for _, rn := range rawNotes {
			nm, ok := rn.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("item %s has a malformed note entry", m.ModerationID)
			}
			addedAt, _ := asInt64(nm["addedAt"])
			m.Notes = append(m.Notes, types.Note{
				Text:    str(nm["text"]),
				AddedBy: str(nm["addedBy"]),
				AddedAt: addedAt,
			})
		}
	}
	meta, err := metaFromMap(raw[attrMeta])
	if err != nil {
		return nil, fmt.Errorf("item %s: %w", m.ModerationID, err)
	}
	m.Meta = meta
	return m, nil
}

func metaFromMap(v any) (types.Meta, error) {
	var meta types.Meta
	mm, ok := v.(map[string]any)
	if !ok {
		return meta, fmt.Errorf("meta attribute missing or malformed")
	}
	if meta.Version, ok = asInt64(mm[attrMetaVersion]); !ok {
		return meta, fmt.Errorf("meta.version missing or non-numeric")
	}
	if rawHist, ok := mm["history"].([]any); ok {
		for _, rh := range rawHist {
			hm, ok := rh.(map[string]any)
			if !ok {
				return meta, fmt.Errorf("malformed meta.history entry")
			}
			ts, _ := asInt64(hm["timestamp"])
			entry := types.HistoryEntry{
				Action:    str(hm["action"]),
				Actor:     str(hm["actor"]),
				Timestamp: ts,
			}
			if rawDetails, ok := hm["details"].([]any); ok {
				for _, rd := range rawDetails {
					entry.Details = append(entry.Details, str(rd))
				}
			}
			meta.History = append(meta.History, entry)
		}
	}
	meta.ContentDeleted = boolean(mm["contentDeleted"])
	meta.ContentDeletedAt = optInt64(mm["contentDeletedAt"])
	meta.UpdatedBy = str(mm["updatedBy"])
	return meta, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func boolean(v any) bool {
	b, _ := v.(bool)
	return b
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

func optInt64(v any) *int64 {
	if v == nil {
		return nil
	}
	if n, ok := asInt64(v); ok {
		return &n
	}
	return nil
}
