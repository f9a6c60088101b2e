// Package validation enforces per-field rules and cross-field invariants
// before every write, and optionally on records read back from the store.
//
// Every failure is reported to the error sink with its stable code and the
// sanitized offending parameters, then returned to the caller.
package validation

import (
	"fmt"
	"regexp"
	"time"

	"github.com/MadlinksCoding/modstore/internal/config"
	"github.com/MadlinksCoding/modstore/internal/moderr"
	"github.com/MadlinksCoding/modstore/internal/types"
)

// uuidV4Re matches canonical lower-hex 8-4-4-4-12 version-4 UUIDs.
var uuidV4Re = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// Validator applies the configured limits and reports failures to the sink.
type Validator struct {
	cfg  config.Config
	sink moderr.Sink
}

// New builds a Validator.
func New(cfg config.Config, sink moderr.Sink) *Validator {
	return &Validator{cfg: cfg.Normalize(), sink: sink}
}

func (v *Validator) fail(e *moderr.Error) error {
	return moderr.Report(v.sink, e)
}

// ModerationID checks the canonical UUID v4 format.
func (v *Validator) ModerationID(id string) error {
	if id == "" || !uuidV4Re.MatchString(id) {
		return v.fail(moderr.New(moderr.KindInvalidModerationID, "validateModerationId",
			fmt.Sprintf("moderationId %q is not a canonical v4 UUID", id)).
			WithData(map[string]any{"moderationId": id}))
	}
	return nil
}

// Timestamp enforces the submission window: now - PastWindow <= ts <=
// now + FutureGrace. Zero and negative values are too far past.
func (v *Validator) Timestamp(ts int64, now time.Time) error {
	if ts <= 0 {
		return v.fail(moderr.New(moderr.KindInvalidTimestamp, "validateTimestamp",
			fmt.Sprintf("timestamp %d is not a positive epoch ms value", ts)).
			WithData(map[string]any{"timestamp": ts}))
	}
	min := now.Add(-v.cfg.PastWindow).UnixMilli()
	max := now.Add(v.cfg.FutureGrace).UnixMilli()
	if ts < min || ts > max {
		return v.fail(moderr.New(moderr.KindInvalidTimestamp, "validateTimestamp",
			fmt.Sprintf("timestamp %d is outside the allowed window [%d, %d]", ts, min, max)).
			WithData(map[string]any{"timestamp": ts, "min": min, "max": max}))
	}
	return nil
}

// Note checks one note's structure and length.
func (v *Validator) Note(n types.Note) error {
	if n.Text == "" || n.AddedBy == "" || n.AddedAt <= 0 {
		return v.fail(moderr.New(moderr.KindInvalidInput, "validateNote",
			"note requires text, addedBy and addedAt").
			WithData(map[string]any{"addedBy": n.AddedBy, "addedAt": n.AddedAt}))
	}
	if len(n.Text) > v.cfg.MaxNoteLength {
		return v.fail(moderr.New(moderr.KindFieldLengthExceeded, "validateNote",
			fmt.Sprintf("note text exceeds %d characters (got %d)", v.cfg.MaxNoteLength, len(n.Text))).
			WithData(map[string]any{"length": len(n.Text), "max": v.cfg.MaxNoteLength}))
	}
	return nil
}

// Notes checks a whole note list against the per-item cap. The cap is
// enforced before any write is issued.
func (v *Validator) Notes(notes []types.Note) error {
	if len(notes) > v.cfg.MaxNotesPerItem {
		return v.fail(moderr.New(moderr.KindNotesLimitExceeded, "validateNotes",
			fmt.Sprintf("notes exceed the per-item cap of %d (got %d)", v.cfg.MaxNotesPerItem, len(notes))).
			WithData(map[string]any{"count": len(notes), "max": v.cfg.MaxNotesPerItem}))
	}
	for _, n := range notes {
		if err := v.Note(n); err != nil {
			return err
		}
	}
	return nil
}

// Reason checks the bounded rejection/approval reason.
func (v *Validator) Reason(reason string) error {
	if len(reason) > v.cfg.MaxReasonLength {
		return v.fail(moderr.New(moderr.KindFieldLengthExceeded, "validateReason",
			fmt.Sprintf("reason exceeds %d characters (got %d)", v.cfg.MaxReasonLength, len(reason))).
			WithData(map[string]any{"length": len(reason), "max": v.cfg.MaxReasonLength}))
	}
	return nil
}

// PublicNote checks the bounded public note.
func (v *Validator) PublicNote(note string) error {
	if len(note) > v.cfg.MaxPublicNoteLen {
		return v.fail(moderr.New(moderr.KindFieldLengthExceeded, "validatePublicNote",
			fmt.Sprintf("publicNote exceeds %d characters (got %d)", v.cfg.MaxPublicNoteLen, len(note))).
			WithData(map[string]any{"length": len(note), "max": v.cfg.MaxPublicNoteLen}))
	}
	return nil
}

// CreateInput checks the typed create payload: required fields after
// sanitization plus enum membership.
func (v *Validator) CreateInput(in types.CreateInput) error {
	if in.UserID == "" {
		return v.fail(moderr.New(moderr.KindInvalidInput, "validateCreateInput",
			"userId is required"))
	}
	if in.ContentID == "" {
		return v.fail(moderr.New(moderr.KindInvalidInput, "validateCreateInput",
			"contentId is required").WithData(map[string]any{"userId": in.UserID}))
	}
	if !in.Type.IsValid() {
		return v.fail(moderr.New(moderr.KindInvalidEnum, "validateCreateInput",
			fmt.Sprintf("invalid type %q", in.Type)).
			WithData(map[string]any{"type": string(in.Type)}))
	}
	if !in.Priority.IsValid() {
		return v.fail(moderr.New(moderr.KindInvalidEnum, "validateCreateInput",
			fmt.Sprintf("invalid priority %q", in.Priority)).
			WithData(map[string]any{"priority": string(in.Priority)}))
	}
	if err := v.Reason(in.Reason); err != nil {
		return err
	}
	if err := v.PublicNote(in.PublicNote); err != nil {
		return err
	}
	return v.Notes(in.Notes)
}

// Item checks every cross-field invariant on a proposed or stored record,
// mapping each failure to its specific consistency kind.
func (v *Validator) Item(m *types.ModerationItem) error {
	if m == nil {
		return v.fail(moderr.New(moderr.KindInvalidInput, "validateItem", "item is nil"))
	}
	if m.UserID == "" || m.ContentID == "" {
		return v.fail(moderr.New(moderr.KindInvalidInput, "validateItem",
			"userId and contentId are required").
			WithData(map[string]any{"moderationId": m.ModerationID}))
	}
	if !m.Type.IsValid() || !m.Priority.IsValid() || !m.Status.IsValid() {
		return v.fail(moderr.New(moderr.KindInvalidEnum, "validateItem",
			fmt.Sprintf("invalid enum on item (type=%q priority=%q status=%q)", m.Type, m.Priority, m.Status)).
			WithData(map[string]any{"moderationId": m.ModerationID}))
	}
	if m.Action != "" && !m.Action.IsValid() {
		return v.fail(moderr.New(moderr.KindInvalidEnum, "validateItem",
			fmt.Sprintf("invalid action %q", m.Action)).
			WithData(map[string]any{"moderationId": m.ModerationID}))
	}
	if m.SubmittedAt <= 0 {
		return v.fail(moderr.New(moderr.KindInvalidTimestamp, "validateItem",
			fmt.Sprintf("submittedAt %d is not positive", m.SubmittedAt)).
			WithData(map[string]any{"moderationId": m.ModerationID}))
	}

	data := map[string]any{"moderationId": m.ModerationID, "status": string(m.Status)}

	if m.StatusSubmittedAt != types.BuildStatusSubmittedAt(m.Status, m.SubmittedAt) {
		return v.fail(moderr.New(moderr.KindStatusSubmittedAtConsistency, "validateItem",
			fmt.Sprintf("statusSubmittedAt %q does not match status+submittedAt", m.StatusSubmittedAt)).
			WithData(data))
	}
	if want := types.UTCDayKey(m.SubmittedAt); m.DayKey != want {
		return v.fail(moderr.New(moderr.KindInvalidDayKey, "validateItem",
			fmt.Sprintf("dayKey %q does not match submittedAt (want %q)", m.DayKey, want)).
			WithData(data))
	}
	if m.IsDeleted != (m.DeletedAt != nil) {
		return v.fail(moderr.New(moderr.KindDeletedConsistency, "validateItem",
			"isDeleted and deletedAt must be set together").WithData(data))
	}
	if (m.Action != "") != (m.ActionedAt != nil) {
		return v.fail(moderr.New(moderr.KindActionedAtConsistency, "validateItem",
			"action and actionedAt must be set together").WithData(data))
	}
	if (m.Status == types.StatusEscalated) && m.EscalatedBy == "" {
		return v.fail(moderr.New(moderr.KindEscalatedConsistency, "validateItem",
			"escalated items must carry escalatedBy").WithData(data))
	}
	if m.TagStatus != "" {
		if !m.Type.IsTagFamily() || m.Action == "" || !m.TagStatus.IsValid() {
			return v.fail(moderr.New(moderr.KindInvalidEnum, "validateItem",
				fmt.Sprintf("tagStatus %q is not valid for type %q with action %q", m.TagStatus, m.Type, m.Action)).
				WithData(data))
		}
	} else if m.Type.IsTagFamily() && m.Action != "" {
		return v.fail(moderr.New(moderr.KindInvalidEnum, "validateItem",
			"tag-family items with an action must carry tagStatus").WithData(data))
	}
	if m.Meta.Version < 1 {
		return v.fail(moderr.New(moderr.KindInvalidInput, "validateItem",
			fmt.Sprintf("meta.version must be >= 1 (got %d)", m.Meta.Version)).WithData(data))
	}
	if err := v.Reason(m.Reason); err != nil {
		return err
	}
	if err := v.PublicNote(m.PublicNote); err != nil {
		return err
	}
	return v.Notes(m.Notes)
}

// QueryLimit checks the requested page size against the hard ceiling,
// returning the effective limit (default when unset).
func (v *Validator) QueryLimit(limit int) (int, error) {
	if limit == 0 {
		return v.cfg.DefaultQueryLimit, nil
	}
	if limit < 0 || limit > v.cfg.MaxQueryResultSize {
		return 0, v.fail(moderr.New(moderr.KindQueryLimitExceeded, "validateQueryLimit",
			fmt.Sprintf("limit %d exceeds the maximum of %d", limit, v.cfg.MaxQueryResultSize)).
			WithData(map[string]any{"limit": limit, "max": v.cfg.MaxQueryResultSize}))
	}
	return limit, nil
}
