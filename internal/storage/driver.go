// Package storage provides shared types for the moderation store.
//
// The concrete engine lives in the dynamo sub-package. This package holds
// the Driver contract for the underlying wide-column store, the Store
// interface consumers depend on, and the sentinel errors both sides share.
package storage

import (
	"context"
	"errors"
)

// Sentinel errors surfaced by Driver implementations. The engine maps
// these to the store's error kinds.
var (
	// ErrConditionalCheckFailed is returned when a ConditionExpression
	// evaluated false (optimistic-lock conflict or create collision).
	ErrConditionalCheckFailed = errors.New("conditional check failed")

	// ErrResourceInUse is returned by CreateTable when the table already
	// exists. Schema creation treats it as success.
	ErrResourceInUse = errors.New("resource in use")

	// ErrResourceNotFound is returned when the target table or index does
	// not exist.
	ErrResourceNotFound = errors.New("resource not found")

	// ErrThrottled is returned on provisioned-throughput / throttling
	// rejections. It is the only retryable driver error.
	ErrThrottled = errors.New("request throttled")
)

// Select controls what a Query or Scan returns.
type Select string

// Select values
const (
	SelectAll   Select = "ALL_ATTRIBUTES"
	SelectCount Select = "COUNT"
)

// Projection controls which attributes an index materializes.
type Projection string

// Projection values
const (
	ProjectionInclude  Projection = "INCLUDE"
	ProjectionKeysOnly Projection = "KEYS_ONLY"
	ProjectionAll      Projection = "ALL"
)

// KeySchema names an index's partition and optional range key.
type KeySchema struct {
	PartitionKey string
	RangeKey     string // empty for partition-only indexes
}

// IndexSpec defines one global secondary index.
type IndexSpec struct {
	Name             string
	Keys             KeySchema
	Projection       Projection
	NonKeyAttributes []string // for INCLUDE projections
}

// AttributeType is the storage type of a key attribute.
type AttributeType string

// Attribute types
const (
	AttributeString AttributeType = "S"
	AttributeNumber AttributeType = "N"
)

// CreateTableInput defines the table plus all its secondary indexes.
// Billing is always pay-per-request.
type CreateTableInput struct {
	TableName  string
	Keys       KeySchema
	Attributes map[string]AttributeType // every key attribute used by table or indexes
	Indexes    []IndexSpec
}

// PutInput writes a full item, optionally guarded by a condition.
type PutInput struct {
	TableName                 string
	Item                      map[string]any
	ConditionExpression       string
	ExpressionAttributeNames  map[string]string
	ExpressionAttributeValues map[string]any
}

// GetInput reads one item by primary key. Reads through the primary key
// are strongly consistent.
type GetInput struct {
	TableName      string
	Key            map[string]any
	ConsistentRead bool
}

// DeleteInput removes one item by primary key.
type DeleteInput struct {
	TableName string
	Key       map[string]any
}

// QueryInput runs a key-condition query, optionally against an index.
type QueryInput struct {
	TableName                 string
	IndexName                 string // empty targets the base table
	KeyConditionExpression    string
	FilterExpression          string
	ExpressionAttributeNames  map[string]string
	ExpressionAttributeValues map[string]any
	Limit                     int
	ScanIndexForward          bool
	ExclusiveStartKey         map[string]any
	Select                    Select
}

// ScanInput runs a full-table scan with an optional filter.
type ScanInput struct {
	TableName                 string
	FilterExpression          string
	ExpressionAttributeNames  map[string]string
	ExpressionAttributeValues map[string]any
	Limit                     int
	ExclusiveStartKey         map[string]any
	Select                    Select
}

// Page is one page of query/scan results. Items is nil for COUNT selects.
// A non-nil LastEvaluatedKey means more pages may follow.
type Page struct {
	Items            []map[string]any
	Count            int
	LastEvaluatedKey map[string]any
}

// Driver is the low-level wide-column store contract. Items are plain
// string-keyed maps with string, int64, float64, bool, nil, nested map and
// slice values; drivers marshal to their wire format.
type Driver interface {
	CreateTable(ctx context.Context, in *CreateTableInput) error
	PutItem(ctx context.Context, in *PutInput) error
	// GetItem returns nil with no error when the item is absent.
	GetItem(ctx context.Context, in *GetInput) (map[string]any, error)
	DeleteItem(ctx context.Context, in *DeleteInput) error
	Query(ctx context.Context, in *QueryInput) (*Page, error)
	Scan(ctx context.Context, in *ScanInput) (*Page, error)
}
