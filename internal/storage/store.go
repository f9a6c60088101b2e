package storage

import (
	"context"

	"github.com/MadlinksCoding/modstore/internal/types"
)

// Store is the interface satisfied by *dynamo.Engine.
// Consumers depend on this interface rather than on the concrete type so
// that decorators (telemetry) and test doubles can be substituted.
type Store interface {
	// Schema
	CreateModerationSchema(ctx context.Context) error

	// Mutations. A zero create timestamp means now.
	CreateModerationEntry(ctx context.Context, in types.CreateInput, timestamp int64) (string, error)
	UpdateModerationEntry(ctx context.Context, moderationID string, updates map[string]any, userID string) error
	AddNote(ctx context.Context, moderationID, userID, text, addedBy string) error
	ApplyModerationAction(ctx context.Context, in types.ActionInput) error
	EscalateModerationItem(ctx context.Context, moderationID, userID, escalatedBy string) error
	UpdateModerationMeta(ctx context.Context, moderationID, userID string, metaUpdates map[string]any) error
	SoftDeleteModerationItem(ctx context.Context, moderationID, userID, deletedBy string) error
	HardDeleteModerationItem(ctx context.Context, moderationID, userID string) (bool, error)

	// Queries
	GetModerationItems(ctx context.Context, filter types.QueryFilter, opts types.QueryOptions) (*types.QueryResult, error)
	GetModerationItemsByStatus(ctx context.Context, status string, opts types.QueryOptions) (*types.QueryResult, error)
	GetAllByDate(ctx context.Context, dayKey string, opts types.QueryOptions) (*types.QueryResult, error)
	GetUserModerationItemsByStatus(ctx context.Context, userID, status string, opts types.QueryOptions) (*types.QueryResult, error)
	GetModerationItemsByPriority(ctx context.Context, priority types.Priority, opts types.QueryOptions) (*types.QueryResult, error)
	GetModerationItemsByType(ctx context.Context, contentType types.ContentType, opts types.QueryOptions) (*types.QueryResult, error)
	GetModerationRecordByID(ctx context.Context, moderationID, userID string, includeDeleted bool) (*types.ModerationItem, error)

	// Counting
	CountModerationItemsByStatus(ctx context.Context, status string, filter types.CountFilter) (int64, error)
	GetAllModerationCounts(ctx context.Context) (*types.ModerationCounts, error)
}
