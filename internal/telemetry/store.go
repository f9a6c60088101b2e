package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MadlinksCoding/modstore/internal/storage"
	"github.com/MadlinksCoding/modstore/internal/types"
)

const storeScopeName = "github.com/MadlinksCoding/modstore/storage"

// InstrumentedStore wraps storage.Store with OTel metrics. Every method is
// counted and timed in modstore.store.* metrics. Use WrapStore to create
// one; it returns the original store unchanged when telemetry is disabled.
type InstrumentedStore struct {
	inner storage.Store
	ops   metric.Int64Counter
	dur   metric.Float64Histogram
	errs  metric.Int64Counter
}

// WrapStore returns s decorated with OTel instrumentation, or s itself
// when telemetry is off.
func WrapStore(s storage.Store) storage.Store {
	if !Enabled() {
		return s
	}
	m := Meter(storeScopeName)
	ops, _ := m.Int64Counter("modstore.store.operations",
		metric.WithDescription("Total store operations executed"),
	)
	dur, _ := m.Float64Histogram("modstore.store.operation.duration",
		metric.WithDescription("Store operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("modstore.store.errors",
		metric.WithDescription("Total store operation errors"),
	)
	return &InstrumentedStore{inner: s, ops: ops, dur: dur, errs: errs}
}

func (s *InstrumentedStore) record(ctx context.Context, name string, start time.Time, err error) {
	attrs := metric.WithAttributes(attribute.String("db.operation", name))
	s.ops.Add(ctx, 1, attrs)
	s.dur.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
	if err != nil {
		s.errs.Add(ctx, 1, attrs)
	}
}

func (s *InstrumentedStore) CreateModerationSchema(ctx context.Context) error {
	start := time.Now()
	err := s.inner.CreateModerationSchema(ctx)
	s.record(ctx, "createModerationSchema", start, err)
	return err
}

func (s *InstrumentedStore) CreateModerationEntry(ctx context.Context, in types.CreateInput, timestamp int64) (string, error) {
	start := time.Now()
	id, err := s.inner.CreateModerationEntry(ctx, in, timestamp)
	s.record(ctx, "createModerationEntry", start, err)
	return id, err
}

func (s *InstrumentedStore) UpdateModerationEntry(ctx context.Context, moderationID string, updates map[string]any, userID string) error {
	start := time.Now()
	err := s.inner.UpdateModerationEntry(ctx, moderationID, updates, userID)
	s.record(ctx, "updateModerationEntry", start, err)
	return err
}

func (s *InstrumentedStore) AddNote(ctx context.Context, moderationID, userID, text, addedBy string) error {
	start := time.Now()
	err := s.inner.AddNote(ctx, moderationID, userID, text, addedBy)
	s.record(ctx, "addNote", start, err)
	return err
}

func (s *InstrumentedStore) ApplyModerationAction(ctx context.Context, in types.ActionInput) error {
	start := time.Now()
	err := s.inner.ApplyModerationAction(ctx, in)
	s.record(ctx, "applyModerationAction", start, err)
	return err
}

func (s *InstrumentedStore) EscalateModerationItem(ctx context.Context, moderationID, userID, escalatedBy string) error {
	start := time.Now()
	err := s.inner.EscalateModerationItem(ctx, moderationID, userID, escalatedBy)
	s.record(ctx, "escalateModerationItem", start, err)
	return err
}

func (s *InstrumentedStore) UpdateModerationMeta(ctx context.Context, moderationID, userID string, metaUpdates map[string]any) error {
	start := time.Now()
	err := s.inner.UpdateModerationMeta(ctx, moderationID, userID, metaUpdates)
	s.record(ctx, "updateModerationMeta", start, err)
	return err
}

func (s *InstrumentedStore) SoftDeleteModerationItem(ctx context.Context, moderationID, userID, deletedBy string) error {
	start := time.Now()
	err := s.inner.SoftDeleteModerationItem(ctx, moderationID, userID, deletedBy)
	s.record(ctx, "softDeleteModerationItem", start, err)
	return err
}

func (s *InstrumentedStore) HardDeleteModerationItem(ctx context.Context, moderationID, userID string) (bool, error) {
	start := time.Now()
	removed, err := s.inner.HardDeleteModerationItem(ctx, moderationID, userID)
	s.record(ctx, "hardDeleteModerationItem", start, err)
	return removed, err
}

func (s *InstrumentedStore) GetModerationItems(ctx context.Context, filter types.QueryFilter, opts types.QueryOptions) (*types.QueryResult, error) {
	start := time.Now()
	res, err := s.inner.GetModerationItems(ctx, filter, opts)
	s.record(ctx, "getModerationItems", start, err)
	return res, err
}

func (s *InstrumentedStore) GetModerationItemsByStatus(ctx context.Context, status string, opts types.QueryOptions) (*types.QueryResult, error) {
	start := time.Now()
	res, err := s.inner.GetModerationItemsByStatus(ctx, status, opts)
	s.record(ctx, "getModerationItemsByStatus", start, err)
	return res, err
}

func (s *InstrumentedStore) GetAllByDate(ctx context.Context, dayKey string, opts types.QueryOptions) (*types.QueryResult, error) {
	start := time.Now()
	res, err := s.inner.GetAllByDate(ctx, dayKey, opts)
	s.record(ctx, "getAllByDate", start, err)
	return res, err
}

func (s *InstrumentedStore) GetUserModerationItemsByStatus(ctx context.Context, userID, status string, opts types.QueryOptions) (*types.QueryResult, error) {
	start := time.Now()
	res, err := s.inner.GetUserModerationItemsByStatus(ctx, userID, status, opts)
	s.record(ctx, "getUserModerationItemsByStatus", start, err)
	return res, err
}

func (s *InstrumentedStore) GetModerationItemsByPriority(ctx context.Context, priority types.Priority, opts types.QueryOptions) (*types.QueryResult, error) {
	start := time.Now()
	res, err := s.inner.GetModerationItemsByPriority(ctx, priority, opts)
	s.record(ctx, "getModerationItemsByPriority", start, err)
	return res, err
}

func (s *InstrumentedStore) GetModerationItemsByType(ctx context.Context, contentType types.ContentType, opts types.QueryOptions) (*types.QueryResult, error) {
	start := time.Now()
	res, err := s.inner.GetModerationItemsByType(ctx, contentType, opts)
	s.record(ctx, "getModerationItemsByType", start, err)
	return res, err
}

func (s *InstrumentedStore) GetModerationRecordByID(ctx context.Context, moderationID, userID string, includeDeleted bool) (*types.ModerationItem, error) {
	start := time.Now()
	item, err := s.inner.GetModerationRecordByID(ctx, moderationID, userID, includeDeleted)
	s.record(ctx, "getModerationRecordById", start, err)
	return item, err
}

func (s *InstrumentedStore) CountModerationItemsByStatus(ctx context.Context, status string, filter types.CountFilter) (int64, error) {
	start := time.Now()
	n, err := s.inner.CountModerationItemsByStatus(ctx, status, filter)
	s.record(ctx, "countModerationItemsByStatus", start, err)
	return n, err
}

func (s *InstrumentedStore) GetAllModerationCounts(ctx context.Context) (*types.ModerationCounts, error) {
	start := time.Now()
	counts, err := s.inner.GetAllModerationCounts(ctx)
	s.record(ctx, "getAllModerationCounts", start, err)
	return counts, err
}
