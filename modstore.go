// Package modstore provides the public API of the moderation record store.
//
// The store persists content-moderation records in a DynamoDB-style
// wide-column table with ten secondary indexes, and offers guarded
// mutations with optimistic locking, index-aware queries with opaque
// pagination tokens, and per-status counting. Consumers embed the Store
// interface; the concrete engine lives in internal/storage/dynamo.
package modstore

import (
	"context"
	"os"

	"github.com/rs/zerolog"

	"github.com/MadlinksCoding/modstore/internal/config"
	"github.com/MadlinksCoding/modstore/internal/logging"
	"github.com/MadlinksCoding/modstore/internal/moderr"
	"github.com/MadlinksCoding/modstore/internal/sanitize"
	"github.com/MadlinksCoding/modstore/internal/storage"
	"github.com/MadlinksCoding/modstore/internal/storage/dynamo"
	"github.com/MadlinksCoding/modstore/internal/storage/dynamo/awsdriver"
	"github.com/MadlinksCoding/modstore/internal/storage/memory"
	"github.com/MadlinksCoding/modstore/internal/telemetry"
	"github.com/MadlinksCoding/modstore/internal/types"
)

// Core types for working with moderation records
type (
	ModerationItem   = types.ModerationItem
	Note             = types.Note
	Meta             = types.Meta
	HistoryEntry     = types.HistoryEntry
	CreateInput      = types.CreateInput
	ActionInput      = types.ActionInput
	QueryFilter      = types.QueryFilter
	QueryOptions     = types.QueryOptions
	QueryResult      = types.QueryResult
	CountFilter      = types.CountFilter
	ModerationCounts = types.ModerationCounts

	Status         = types.Status
	ContentType    = types.ContentType
	Priority       = types.Priority
	Action         = types.Action
	ModerationType = types.ModerationType
	TagStatus      = types.TagStatus

	// Config carries the engine limits; the zero value means defaults.
	Config = config.Config

	// Error is the concrete error type returned by every operation.
	Error = moderr.Error
	Kind  = moderr.Kind
)

// Status constants
const (
	StatusPending             = types.StatusPending
	StatusApproved            = types.StatusApproved
	StatusApprovedGlobal      = types.StatusApprovedGlobal
	StatusRejected            = types.StatusRejected
	StatusEscalated           = types.StatusEscalated
	StatusPendingResubmission = types.StatusPendingResubmission
	StatusAll                 = types.StatusAll
)

// Action constants
const (
	ActionApprove             = types.ActionApprove
	ActionReject              = types.ActionReject
	ActionPendingResubmission = types.ActionPendingResubmission
	ActionEscalate            = types.ActionEscalate
)

// Priority constants
const (
	PriorityUrgent = types.PriorityUrgent
	PriorityHigh   = types.PriorityHigh
	PriorityNormal = types.PriorityNormal
	PriorityLow    = types.PriorityLow
)

// Moderation type constants
const (
	ModerationStandard = types.ModerationStandard
	ModerationGlobal   = types.ModerationGlobal
)

// Store is the full moderation persistence interface.
type Store = storage.Store

// Driver is the low-level wide-column storage contract.
type Driver = storage.Driver

// IsKind reports whether err is a store error of the given kind.
func IsKind(err error, k Kind) bool { return moderr.IsKind(err, k) }

// GenerateModerationID returns a fresh canonical v4 UUID suitable as a
// caller-supplied moderation id.
func GenerateModerationID() string { return dynamo.GenerateModerationID() }

// DayKeyFromTs derives the UTC YYYYMMDD day token for an epoch-ms
// timestamp. Accepts any numeric representation.
func DayKeyFromTs(ts any) (string, error) { return sanitize.DayKeyFromTs(ts) }

// StatusSubmittedAtKey builds the composite status+submittedAt range key
// used by the status-scoped indexes.
func StatusSubmittedAtKey(status Status, ts any) (string, error) {
	return sanitize.StatusSubmittedAtKey(status, ts)
}

// DefaultConfig returns the stock limits.
func DefaultConfig() Config { return config.Default() }

// ConfigFromEnv returns the defaults overridden by MODSTORE_* environment
// variables.
func ConfigFromEnv() Config { return config.FromEnv() }

// New builds a store over any Driver, instrumented when telemetry is on.
// Audit entries and sink errors go to stderr as structured JSON.
func New(drv Driver, cfg Config) Store {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()
	return telemetry.WrapStore(dynamo.New(drv, cfg,
		dynamo.WithLogger(logging.New(log)),
		dynamo.WithSink(moderr.NewZerologSink(log)),
	))
}

// NewDynamoDB builds a store on the AWS DynamoDB service. A non-empty
// endpoint overrides the service URL (local DynamoDB).
func NewDynamoDB(ctx context.Context, cfg Config, region, endpoint string) (Store, error) {
	drv, err := awsdriver.NewFromEnv(ctx, region, endpoint)
	if err != nil {
		return nil, err
	}
	return New(drv, cfg), nil
}

// NewMemory builds a store on the in-memory driver with its schema already
// created. Intended for tests and local development.
func NewMemory(ctx context.Context, cfg Config) (Store, error) {
	s := New(memory.New(), cfg)
	if err := s.CreateModerationSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}
