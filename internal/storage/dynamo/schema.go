// Package dynamo implements the moderation persistence engine over a
// DynamoDB-style Driver: schema management, guarded mutations with
// optimistic locking, index-aware query planning and counting.
package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/MadlinksCoding/modstore/internal/moderr"
	"github.com/MadlinksCoding/modstore/internal/storage"
)

// Wire attribute names. These are the stored field names; every expression
// references them through ExpressionAttributeNames.
const (
	attrPK                = "pk"
	attrSK                = "sk"
	attrModerationID      = "moderationId"
	attrUserID            = "userId"
	attrContentID         = "contentId"
	attrType              = "type"
	attrPriority          = "priority"
	attrStatus            = "status"
	attrModerationType    = "moderationType"
	attrAction            = "action"
	attrTagStatus         = "tagStatus"
	attrSubmittedAt       = "submittedAt"
	attrStatusSubmittedAt = "statusSubmittedAt"
	attrDayKey            = "dayKey"
	attrActionedAt        = "actionedAt"
	attrEscalatedAt       = "escalatedAt"
	attrDeletedAt         = "deletedAt"
	attrModeratedBy       = "moderatedBy"
	attrEscalatedBy       = "escalatedBy"
	attrIsDeleted         = "isDeleted"
	attrIsPreApproved     = "isPreApproved"
	attrIsSystemGenerated = "isSystemGenerated"
	attrContent           = "content"
	attrClassification    = "classification"
	attrContentFormat     = "contentType"
	attrMediaType         = "mediaType"
	attrNotes             = "notes"
	attrMeta              = "meta"
	attrMetaVersion       = "version"
	attrReason            = "reason"
	attrPublicNote        = "publicNote"
)

// Secondary index names.
const (
	IndexStatusDate     = "StatusDateIndex"
	IndexUserStatusDate = "UserStatusDateIndex"
	IndexAllByDate      = "AllByDateIndex"
	IndexPriority       = "PriorityIndex"
	IndexTypeDate       = "TypeDateIndex"
	IndexByModerationID = "ByModerationIdIndex"
	IndexModeratedBy    = "ModeratedByIndex"
	IndexContentID      = "ContentIdIndex"
	IndexEscalated      = "EscalatedIndex"
	IndexActionedAt     = "ActionedAtIndex"
)

// commonProjection is the non-key attribute set materialized by every
// INCLUDE index.
var commonProjection = []string{
	attrModerationID, attrUserID, attrContentID,
	attrType, attrPriority, attrStatus, attrModerationType,
	attrAction, attrTagStatus,
	attrSubmittedAt, attrStatusSubmittedAt, attrDayKey,
	attrActionedAt, attrEscalatedAt, attrDeletedAt,
	attrModeratedBy, attrEscalatedBy,
	attrIsDeleted, attrIsPreApproved, attrIsSystemGenerated,
	attrContent, attrClassification, attrContentFormat, attrMediaType,
	attrNotes, attrMeta, attrReason, attrPublicNote,
}

// buildCreateTableInput produces the full table definition: primary key
// plus the ten secondary indexes, pay-per-request.
func buildCreateTableInput(table string) *storage.CreateTableInput {
	include := func(name string, keys storage.KeySchema) storage.IndexSpec {
		return storage.IndexSpec{
			Name:             name,
			Keys:             keys,
			Projection:       storage.ProjectionInclude,
			NonKeyAttributes: commonProjection,
		}
	}
	return &storage.CreateTableInput{
		TableName: table,
		Keys:      storage.KeySchema{PartitionKey: attrPK, RangeKey: attrSK},
		Attributes: map[string]storage.AttributeType{
			attrPK:                storage.AttributeString,
			attrSK:                storage.AttributeString,
			attrStatus:            storage.AttributeString,
			attrSubmittedAt:       storage.AttributeNumber,
			attrUserID:            storage.AttributeString,
			attrStatusSubmittedAt: storage.AttributeString,
			attrDayKey:            storage.AttributeString,
			attrPriority:          storage.AttributeString,
			attrType:              storage.AttributeString,
			attrModerationID:      storage.AttributeString,
			attrModeratedBy:       storage.AttributeString,
			attrActionedAt:        storage.AttributeNumber,
			attrContentID:         storage.AttributeString,
			attrEscalatedBy:       storage.AttributeString,
			attrEscalatedAt:       storage.AttributeNumber,
		},
		Indexes: []storage.IndexSpec{
			include(IndexStatusDate, storage.KeySchema{PartitionKey: attrStatus, RangeKey: attrSubmittedAt}),
			include(IndexUserStatusDate, storage.KeySchema{PartitionKey: attrUserID, RangeKey: attrStatusSubmittedAt}),
			include(IndexAllByDate, storage.KeySchema{PartitionKey: attrDayKey, RangeKey: attrSubmittedAt}),
			include(IndexPriority, storage.KeySchema{PartitionKey: attrPriority, RangeKey: attrSubmittedAt}),
			include(IndexTypeDate, storage.KeySchema{PartitionKey: attrType, RangeKey: attrSubmittedAt}),
			{
				Name:       IndexByModerationID,
				Keys:       storage.KeySchema{PartitionKey: attrModerationID},
				Projection: storage.ProjectionKeysOnly,
			},
			include(IndexModeratedBy, storage.KeySchema{PartitionKey: attrModeratedBy, RangeKey: attrActionedAt}),
			include(IndexContentID, storage.KeySchema{PartitionKey: attrContentID, RangeKey: attrSubmittedAt}),
			include(IndexEscalated, storage.KeySchema{PartitionKey: attrEscalatedBy, RangeKey: attrEscalatedAt}),
			include(IndexActionedAt, storage.KeySchema{PartitionKey: attrStatus, RangeKey: attrActionedAt}),
		},
	}
}

// CreateModerationSchema creates the primary table and its ten secondary
// indexes. Creation is idempotent at the semantic level: an already-exists
// response is reported to the sink but treated as success. Any other
// failure propagates as SchemaCreationFailed.
func (e *Engine) CreateModerationSchema(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return moderr.Wrap(moderr.KindCancelled, "createModerationSchema", "cancelled before create", err)
	}
	err := e.drv.CreateTable(ctx, buildCreateTableInput(e.cfg.TableName))
	if err == nil {
		e.log.WriteLog("moderationSchemaCreated", map[string]any{"table": e.cfg.TableName})
		return nil
	}
	if errors.Is(err, storage.ErrResourceInUse) {
		moderr.Report(e.sink, moderr.Wrap(moderr.KindSchemaCreationFailed, "createModerationSchema",
			fmt.Sprintf("table %s already exists", e.cfg.TableName), err).
			WithData(map[string]any{"table": e.cfg.TableName}))
		return nil
	}
	return moderr.Report(e.sink, moderr.Wrap(moderr.KindSchemaCreationFailed, "createModerationSchema",
		"schema creation failed", err).
		WithData(map[string]any{"table": e.cfg.TableName}))
}
