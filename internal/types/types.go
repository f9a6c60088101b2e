// Package types defines core data structures for the moderation record store.
package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Key prefixes and separators for the primary table.
const (
	PKPrefix     = "moderation#"
	SKPrefix     = "media#"
	KeySeparator = "#"
)

// ModerationItem represents one piece of user-submitted content moving
// through the review lifecycle.
type ModerationItem struct {
	PK string `json:"pk"` // "moderation#" + userId
	SK string `json:"sk"` // "media#" + submittedAt + "#" + moderationId

	ModerationID string `json:"moderationId"`
	UserID       string `json:"userId"`
	ContentID    string `json:"contentId"`

	Type           ContentType    `json:"type"`
	Priority       Priority       `json:"priority"`
	Status         Status         `json:"status"`
	ModerationType ModerationType `json:"moderationType,omitempty"`
	Action         Action         `json:"action,omitempty"`    // empty until an action is applied
	TagStatus      TagStatus      `json:"tagStatus,omitempty"` // tag-family types only

	SubmittedAt       int64  `json:"submittedAt"` // epoch ms
	StatusSubmittedAt string `json:"statusSubmittedAt"`
	DayKey            string `json:"dayKey"` // YYYYMMDD in UTC

	ActionedAt  *int64 `json:"actionedAt,omitempty"`
	EscalatedAt *int64 `json:"escalatedAt,omitempty"`
	DeletedAt   *int64 `json:"deletedAt,omitempty"`

	ModeratedBy string `json:"moderatedBy,omitempty"`
	EscalatedBy string `json:"escalatedBy,omitempty"`

	IsDeleted         bool `json:"isDeleted"`
	IsPreApproved     bool `json:"isPreApproved,omitempty"`
	IsSystemGenerated bool `json:"isSystemGenerated,omitempty"`

	// Content holds the opaque payload, or a compressed envelope when large.
	// See codec.Compress for the envelope shape.
	Content any `json:"content,omitempty"`

	// Secondary classification metadata carried alongside the payload.
	Classification string `json:"classification,omitempty"`
	ContentFormat  string `json:"contentType,omitempty"` // MIME-ish label from the submitter
	MediaType      string `json:"mediaType,omitempty"`

	Notes []Note `json:"notes,omitempty"`
	Meta  Meta   `json:"meta"`

	Reason     string `json:"reason,omitempty"`
	PublicNote string `json:"publicNote,omitempty"`
}

// Note is a moderator annotation on an item.
type Note struct {
	Text    string `json:"text"`
	AddedBy string `json:"addedBy"`
	AddedAt int64  `json:"addedAt"` // epoch ms
}

// Meta carries the mutation bookkeeping for an item.
type Meta struct {
	Version          int64          `json:"version"` // monotonically increasing per mutation
	History          []HistoryEntry `json:"history,omitempty"`
	ContentDeleted   bool           `json:"contentDeleted,omitempty"`
	ContentDeletedAt *int64         `json:"contentDeletedAt,omitempty"`
	UpdatedBy        string         `json:"updatedBy,omitempty"`
}

// HistoryEntry records one mutation in the item's audit trail.
type HistoryEntry struct {
	Action    string   `json:"action"`
	Actor     string   `json:"actor"`
	Timestamp int64    `json:"timestamp"`
	Details   []string `json:"details,omitempty"` // e.g. field names changed by an update
}

// History action constants
const (
	HistoryCreate     = "create"
	HistoryUpdate     = "update"
	HistoryNoteAdded  = "noteAdded"
	HistoryAction     = "actionApplied"
	HistoryEscalate   = "escalate"
	HistoryMetaUpdate = "metaUpdate"
	HistorySoftDelete = "softDelete"
)

// Status represents the review state of an item
type Status string

// Status constants
const (
	StatusPending             Status = "pending"
	StatusApproved            Status = "approved"
	StatusApprovedGlobal      Status = "approved_global"
	StatusRejected            Status = "rejected"
	StatusEscalated           Status = "escalated"
	StatusPendingResubmission Status = "pending_resubmission"
)

// StatusAll is the query-side wildcard; it is never stored on an item.
const StatusAll = "all"

// AllStatuses lists every storable status, in counting order.
var AllStatuses = []Status{
	StatusPending,
	StatusApproved,
	StatusApprovedGlobal,
	StatusRejected,
	StatusEscalated,
	StatusPendingResubmission,
}

// IsValid checks if the status value is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusApprovedGlobal,
		StatusRejected, StatusEscalated, StatusPendingResubmission:
		return true
	}
	return false
}

// ContentType categorizes the kind of submitted content
type ContentType string

// Content type constants
const (
	TypeImage        ContentType = "image"
	TypeVideo        ContentType = "video"
	TypeText         ContentType = "text"
	TypeLink         ContentType = "link"
	TypeReport       ContentType = "report"
	TypeTags         ContentType = "tags"
	TypeEmoji        ContentType = "emoji"
	TypeIcon         ContentType = "icon"
	TypeTag          ContentType = "tag"
	TypePersonalTag  ContentType = "personal_tag"
	TypeGlobalTag    ContentType = "global_tag"
	TypeImageGallery ContentType = "image_gallery"
	TypeGallery      ContentType = "gallery"
	TypeAudio        ContentType = "audio"
)

// IsValid checks if the content type value is valid
func (t ContentType) IsValid() bool {
	switch t {
	case TypeImage, TypeVideo, TypeText, TypeLink, TypeReport, TypeTags,
		TypeEmoji, TypeIcon, TypeTag, TypePersonalTag, TypeGlobalTag,
		TypeImageGallery, TypeGallery, TypeAudio:
		return true
	}
	return false
}

// IsTagFamily reports whether tagStatus is meaningful for this type.
func (t ContentType) IsTagFamily() bool {
	switch t {
	case TypeTag, TypeTags, TypePersonalTag, TypeGlobalTag:
		return true
	}
	return false
}

// IsGalleryFamily reports whether this type belongs to the gallery alias
// family. "gallery" and "image_gallery" are stored as written but are
// interchangeable for query planning.
func (t ContentType) IsGalleryFamily() bool {
	return t == TypeGallery || t == TypeImageGallery
}

// GalleryAlias returns the other member of the gallery alias family, or ""
// for non-gallery types.
func (t ContentType) GalleryAlias() ContentType {
	switch t {
	case TypeGallery:
		return TypeImageGallery
	case TypeImageGallery:
		return TypeGallery
	}
	return ""
}

// Priority represents review urgency
type Priority string

// Priority constants
const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// IsValid checks if the priority value is valid
func (p Priority) IsValid() bool {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

// Action represents a moderator decision applied to an item
type Action string

// Action constants
const (
	ActionApprove             Action = "approve"
	ActionReject              Action = "reject"
	ActionPendingResubmission Action = "pending_resubmission"
	ActionEscalate            Action = "escalate"
)

// IsValid checks if the action value is valid
func (a Action) IsValid() bool {
	switch a {
	case ActionApprove, ActionReject, ActionPendingResubmission, ActionEscalate:
		return true
	}
	return false
}

// ModerationType selects the scope of an approval
type ModerationType string

// Moderation type constants
const (
	ModerationStandard ModerationType = "standard"
	ModerationGlobal   ModerationType = "global"
)

// IsValid checks if the moderation type value is valid
func (m ModerationType) IsValid() bool {
	switch m {
	case ModerationStandard, ModerationGlobal:
		return true
	}
	return false
}

// TagStatus tracks publication state for tag-family items
type TagStatus string

// Tag status constants
const (
	TagStatusPending   TagStatus = "pending"
	TagStatusPublished TagStatus = "published"
)

// IsValid checks if the tag status value is valid
func (ts TagStatus) IsValid() bool {
	switch ts {
	case TagStatusPending, TagStatusPublished:
		return true
	}
	return false
}

// BuildPK returns the primary partition key for a user.
func BuildPK(userID string) string {
	return PKPrefix + userID
}

// BuildSK returns the primary sort key for a submission.
func BuildSK(submittedAt int64, moderationID string) string {
	return SKPrefix + strconv.FormatInt(submittedAt, 10) + KeySeparator + moderationID
}

// BuildStatusSubmittedAt returns the composite status+time range key.
func BuildStatusSubmittedAt(status Status, submittedAt int64) string {
	return string(status) + KeySeparator + strconv.FormatInt(submittedAt, 10)
}

// UTCDayKey returns the YYYYMMDD day token for an epoch-ms timestamp,
// always in UTC regardless of the host timezone.
func UTCDayKey(epochMs int64) string {
	return time.UnixMilli(epochMs).UTC().Format("20060102")
}

// Validate checks every cross-field invariant on the item. It runs before
// each write and, optionally, against records read back from the store.
func (m *ModerationItem) Validate() error {
	if m.UserID == "" {
		return fmt.Errorf("userId is required")
	}
	if m.ContentID == "" {
		return fmt.Errorf("contentId is required")
	}
	if !m.Type.IsValid() {
		return fmt.Errorf("invalid type: %s", m.Type)
	}
	if !m.Priority.IsValid() {
		return fmt.Errorf("invalid priority: %s", m.Priority)
	}
	if !m.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", m.Status)
	}
	if m.SubmittedAt <= 0 {
		return fmt.Errorf("submittedAt must be a positive epoch ms value (got %d)", m.SubmittedAt)
	}
	if m.PK != BuildPK(m.UserID) {
		return fmt.Errorf("pk %q does not match userId %q", m.PK, m.UserID)
	}
	if m.SK != BuildSK(m.SubmittedAt, m.ModerationID) {
		return fmt.Errorf("sk %q does not match submittedAt/moderationId", m.SK)
	}
	if m.StatusSubmittedAt != BuildStatusSubmittedAt(m.Status, m.SubmittedAt) {
		return fmt.Errorf("statusSubmittedAt %q does not match status %q + submittedAt %d",
			m.StatusSubmittedAt, m.Status, m.SubmittedAt)
	}
	if want := UTCDayKey(m.SubmittedAt); m.DayKey != want {
		return fmt.Errorf("dayKey %q does not match submittedAt (want %q)", m.DayKey, want)
	}
	// Soft-delete pair: isDeleted iff deletedAt present
	if m.IsDeleted && m.DeletedAt == nil {
		return fmt.Errorf("deleted items must have deletedAt timestamp")
	}
	if !m.IsDeleted && m.DeletedAt != nil {
		return fmt.Errorf("non-deleted items cannot have deletedAt timestamp")
	}
	// Action pair: action iff actionedAt present
	if m.Action != "" && m.ActionedAt == nil {
		return fmt.Errorf("actioned items must have actionedAt timestamp")
	}
	if m.Action == "" && m.ActionedAt != nil {
		return fmt.Errorf("items without an action cannot have actionedAt timestamp")
	}
	// Escalation pair: escalated status iff escalatedBy present
	if m.Status == StatusEscalated && m.EscalatedBy == "" {
		return fmt.Errorf("escalated items must have escalatedBy")
	}
	// tagStatus is set iff tag-family type and an action has been applied
	if m.TagStatus != "" {
		if !m.Type.IsTagFamily() {
			return fmt.Errorf("tagStatus is only valid for tag-family types (got type %s)", m.Type)
		}
		if m.Action == "" {
			return fmt.Errorf("tagStatus requires an applied action")
		}
		if !m.TagStatus.IsValid() {
			return fmt.Errorf("invalid tagStatus: %s", m.TagStatus)
		}
	} else if m.Type.IsTagFamily() && m.Action != "" {
		return fmt.Errorf("tag-family items with an action must carry tagStatus")
	}
	if m.Meta.Version < 1 {
		return fmt.Errorf("meta.version must be >= 1 (got %d)", m.Meta.Version)
	}
	return nil
}

// ParseStatusSubmittedAt splits a composite range key back into its parts.
func ParseStatusSubmittedAt(key string) (Status, int64, error) {
	idx := strings.LastIndex(key, KeySeparator)
	if idx <= 0 || idx == len(key)-1 {
		return "", 0, fmt.Errorf("malformed statusSubmittedAt key: %q", key)
	}
	ts, err := strconv.ParseInt(key[idx+1:], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("malformed statusSubmittedAt timestamp in %q: %w", key, err)
	}
	status := Status(key[:idx])
	if !status.IsValid() {
		return "", 0, fmt.Errorf("unknown status in statusSubmittedAt key: %q", key)
	}
	return status, ts, nil
}
