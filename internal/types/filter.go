package types

// CreateInput is the typed payload for creating a moderation entry.
// Optional fields follow the zero-value-means-absent convention except
// where a pointer is needed to distinguish "unset".
type CreateInput struct {
	UserID    string      `json:"userId"`
	ContentID string      `json:"contentId"`
	Type      ContentType `json:"type"`
	Priority  Priority    `json:"priority"`

	ModerationID      string `json:"moderationId,omitempty"` // caller-supplied id, validated + deduplicated
	Content           any    `json:"content,omitempty"`
	Classification    string `json:"classification,omitempty"`
	ContentFormat     string `json:"contentType,omitempty"`
	MediaType         string `json:"mediaType,omitempty"`
	Reason            string `json:"reason,omitempty"`
	PublicNote        string `json:"publicNote,omitempty"`
	IsPreApproved     bool   `json:"isPreApproved,omitempty"`
	IsSystemGenerated bool   `json:"isSystemGenerated,omitempty"`
	Notes             []Note `json:"notes,omitempty"`
}

// ActionInput is the typed payload for applying a moderator decision.
type ActionInput struct {
	ModerationID   string         `json:"moderationId"`
	UserID         string         `json:"userId"`
	Action         Action         `json:"action"`
	ModeratorID    string         `json:"moderatorId"`
	Reason         string         `json:"reason,omitempty"`
	Note           string         `json:"note,omitempty"`       // private moderator note, appended to notes
	PublicNote     string         `json:"publicNote,omitempty"` // stored on the record
	ModerationType ModerationType `json:"moderationType,omitempty"`
}

// QueryFilter selects moderation items. Empty/zero fields are unset.
// Status accepts the wildcard "all" in combination with UserID.
type QueryFilter struct {
	UserID      string
	Status      string // a Status value or StatusAll
	ModeratedBy string
	ContentID   string
	EscalatedBy string
	Priority    Priority
	Type        ContentType
	DayKey      string

	// Start/End bound submittedAt (epoch ms, inclusive).
	Start *int64
	End   *int64

	// IncludeDeleted includes soft-deleted items; default queries hide them.
	IncludeDeleted bool
}

// QueryOptions controls paging and ordering.
type QueryOptions struct {
	Limit     int    // default 20, max MaxQueryResultSize
	Ascending bool   // default false (newest first)
	NextToken string // opaque token from a previous page
}

// QueryResult is one page of items.
type QueryResult struct {
	Items     []*ModerationItem `json:"items"`
	NextToken string            `json:"nextToken,omitempty"`
	HasMore   bool              `json:"hasMore"`
	Count     int               `json:"count"`
}

// CountFilter narrows a status count.
type CountFilter struct {
	UserID      string
	ModeratedBy string
	// UnmoderatedOnly counts only items with no moderatedBy attribute.
	UnmoderatedOnly bool
	// HasRejectionHistory counts only items that carry a rejection reason.
	HasRejectionHistory bool
}

// ModerationCounts aggregates per-status counts plus the derived totals.
type ModerationCounts struct {
	Pending             int64 `json:"pending"`
	Approved            int64 `json:"approved"`
	ApprovedGlobal      int64 `json:"approvedGlobal"`
	Rejected            int64 `json:"rejected"`
	Escalated           int64 `json:"escalated"`
	PendingResubmission int64 `json:"pendingResubmission"`
	All                 int64 `json:"all"`
	Unmoderated         int64 `json:"unmoderated"` // pending with no moderatedBy
}
