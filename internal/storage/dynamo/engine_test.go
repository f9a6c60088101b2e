package dynamo

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MadlinksCoding/modstore/internal/config"
	"github.com/MadlinksCoding/modstore/internal/moderr"
	"github.com/MadlinksCoding/modstore/internal/storage"
	"github.com/MadlinksCoding/modstore/internal/storage/memory"
	"github.com/MadlinksCoding/modstore/internal/types"
)

// baseMs is 2023-11-14T22:13:20Z.
const baseMs = int64(1700000000000)

type fixture struct {
	drv  *memory.Driver
	eng  *Engine
	sink *moderr.CollectingSink
	now  time.Time
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	return newFixtureCfg(t, config.Config{}, opts...)
}

func newFixtureCfg(t *testing.T, cfg config.Config, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		drv:  memory.New(),
		sink: &moderr.CollectingSink{},
		now:  time.UnixMilli(baseMs),
	}
	cfg.RetryMaxAttempts = 1
	cfg.LockMaxRetries = 2
	cfg.LockRetryBaseDelay = time.Millisecond
	opts = append([]Option{
		WithSink(f.sink),
		WithClock(func() time.Time { return f.now }),
	}, opts...)
	f.eng = New(f.drv, cfg, opts...)
	require.NoError(t, f.eng.CreateModerationSchema(context.Background()))
	return f
}

func (f *fixture) create(t *testing.T, in types.CreateInput, ts int64) string {
	t.Helper()
	if in.Type == "" {
		in.Type = types.TypeImage
	}
	if in.Priority == "" {
		in.Priority = types.PriorityNormal
	}
	id, err := f.eng.CreateModerationEntry(context.Background(), in, ts)
	require.NoError(t, err)
	return id
}

func (f *fixture) get(t *testing.T, id, userID string) *types.ModerationItem {
	t.Helper()
	item, err := f.eng.GetModerationRecordByID(context.Background(), id, userID, false)
	require.NoError(t, err)
	return item
}

func TestCreateAndGetShapes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id := f.create(t, types.CreateInput{
		UserID:    "user-1",
		ContentID: "content-1",
		Content:   map[string]any{"caption": "hello"},
	}, baseMs)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`), id)

	item := f.get(t, id, "user-1")
	assert.Equal(t, "moderation#user-1", item.PK)
	assert.Equal(t, fmt.Sprintf("media#%d#%s", baseMs, id), item.SK)
	assert.Equal(t, types.StatusPending, item.Status)
	assert.Equal(t, fmt.Sprintf("pending#%d", baseMs), item.StatusSubmittedAt)
	assert.Equal(t, "20231114", item.DayKey)
	assert.Equal(t, int64(1), item.Meta.Version)
	require.Len(t, item.Meta.History, 1)
	assert.Equal(t, types.HistoryCreate, item.Meta.History[0].Action)
	assert.Equal(t, "user-1", item.Meta.History[0].Actor)
	assert.Equal(t, "hello", item.Content.(map[string]any)["caption"])

	// Two creates never collide on ids.
	other := f.create(t, types.CreateInput{UserID: "user-1", ContentID: "content-2"}, baseMs)
	assert.NotEqual(t, id, other)

	// Reads are owner-scoped.
	_, err := f.eng.GetModerationRecordByID(ctx, id, "someone-else", false)
	assert.True(t, moderr.IsKind(err, moderr.KindNotFound), "got %v", err)
}

func TestCreateHistoryRecordsSubmitter(t *testing.T) {
	f := newFixture(t)
	backdated := baseMs - 3600_000
	id := f.create(t, types.CreateInput{
		UserID: "user-1", ContentID: "c1", IsSystemGenerated: true,
	}, backdated)
	item := f.get(t, id, "user-1")
	// The create entry carries the submitting user and the submission
	// time, even for backdated system-generated records.
	assert.Equal(t, "user-1", item.Meta.History[0].Actor)
	assert.Equal(t, backdated, item.Meta.History[0].Timestamp)
	assert.True(t, item.IsSystemGenerated)
}

func TestCreateDefaultsTimestampToNow(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, types.CreateInput{UserID: "user-1", ContentID: "c1"}, 0)
	item := f.get(t, id, "user-1")
	assert.Equal(t, baseMs, item.SubmittedAt)
	assert.Equal(t, fmt.Sprintf("pending#%d", baseMs), item.StatusSubmittedAt)
}

func TestCreatePreApprovedStartsApproved(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, types.CreateInput{
		UserID: "user-1", ContentID: "c1", IsPreApproved: true,
	}, baseMs)
	item := f.get(t, id, "user-1")
	assert.Equal(t, types.StatusApproved, item.Status)
	assert.Equal(t, fmt.Sprintf("approved#%d", baseMs), item.StatusSubmittedAt)
}

func TestCreateDuplicateCallerID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	const callerID = "aaaaaaaa-bbbb-4ccc-8ddd-eeeeeeeeeeee"

	f.create(t, types.CreateInput{UserID: "user-1", ContentID: "c1", ModerationID: callerID}, baseMs)

	_, err := f.eng.CreateModerationEntry(ctx, types.CreateInput{
		UserID: "user-2", ContentID: "c2", ModerationID: callerID,
		Type: types.TypeImage, Priority: types.PriorityNormal,
	}, baseMs)
	assert.True(t, moderr.IsKind(err, moderr.KindAlreadyExists), "got %v", err)

	_, err = f.eng.CreateModerationEntry(ctx, types.CreateInput{
		UserID: "user-2", ContentID: "c2", ModerationID: "not-a-uuid",
		Type: types.TypeImage, Priority: types.PriorityNormal,
	}, baseMs)
	assert.True(t, moderr.IsKind(err, moderr.KindInvalidModerationID), "got %v", err)
}

func TestCreateRejectsTimestampOutsideWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.eng.CreateModerationEntry(ctx, types.CreateInput{
		UserID: "user-1", ContentID: "c1",
		Type: types.TypeImage, Priority: types.PriorityNormal,
	}, f.now.Add(10*time.Minute).UnixMilli())
	assert.True(t, moderr.IsKind(err, moderr.KindInvalidTimestamp), "got %v", err)
}

func TestLargeContentStoredCompressed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	big := map[string]any{"body": strings.Repeat("moderate this ", 512)}

	id := f.create(t, types.CreateInput{UserID: "user-1", ContentID: "c1", Content: big}, baseMs)

	// The stored attribute is a gzip envelope, not the raw payload.
	raw, err := f.drv.GetItem(ctx, &storage.GetInput{
		TableName: config.DefaultTableName,
		Key: map[string]any{
			"pk": types.BuildPK("user-1"),
			"sk": types.BuildSK(baseMs, id),
		},
	})
	require.NoError(t, err)
	env, ok := raw["content"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, env["_compressed"])

	// Reads inflate it transparently.
	item := f.get(t, id, "user-1")
	assert.Equal(t, big["body"], item.Content.(map[string]any)["body"])
}

func TestActionApprove(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.create(t, types.CreateInput{UserID: "user-1", ContentID: "c1"}, baseMs)

	require.NoError(t, f.eng.ApplyModerationAction(ctx, types.ActionInput{
		ModerationID: id, UserID: "user-1",
		Action: types.ActionApprove, ModeratorID: "mod-1",
		Reason: "clean", PublicNote: "approved",
	}))
	item := f.get(t, id, "user-1")
	assert.Equal(t, types.StatusApproved, item.Status)
	assert.Equal(t, types.ActionApprove, item.Action)
	assert.Equal(t, "mod-1", item.ModeratedBy)
	require.NotNil(t, item.ActionedAt)
	assert.Equal(t, baseMs, *item.ActionedAt)
	assert.Equal(t, "clean", item.Reason)
	assert.Equal(t, "approved", item.PublicNote)
	assert.Equal(t, fmt.Sprintf("approved#%d", baseMs), item.StatusSubmittedAt)
	assert.Equal(t, int64(2), item.Meta.Version)
	require.Len(t, item.Meta.History, 2)
	assert.Equal(t, types.HistoryAction, item.Meta.History[1].Action)
	assert.Equal(t, []string{"approve"}, item.Meta.History[1].Details)

	// Approving a resolved item is inconsistent.
	err := f.eng.ApplyModerationAction(ctx, types.ActionInput{
		ModerationID: id, UserID: "user-1",
		Action: types.ActionApprove, ModeratorID: "mod-2",
	})
	assert.True(t, moderr.IsKind(err, moderr.KindActionStatusInconsistent), "got %v", err)
}

func TestActionApproveGlobal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.create(t, types.CreateInput{UserID: "user-1", ContentID: "c1"}, baseMs)

	require.NoError(t, f.eng.ApplyModerationAction(ctx, types.ActionInput{
		ModerationID: id, UserID: "user-1",
		Action: types.ActionApprove, ModeratorID: "mod-1",
		ModerationType: types.ModerationGlobal,
	}))
	item := f.get(t, id, "user-1")
	assert.Equal(t, types.StatusApprovedGlobal, item.Status)
	assert.Equal(t, types.ModerationGlobal, item.ModerationType)
}

func TestActionPendingResubmissionKeepsQueuePosition(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.create(t, types.CreateInput{UserID: "user-1", ContentID: "c1"}, baseMs)

	require.NoError(t, f.eng.ApplyModerationAction(ctx, types.ActionInput{
		ModerationID: id, UserID: "user-1",
		Action: types.ActionPendingResubmission, ModeratorID: "mod-1",
	}))
	item := f.get(t, id, "user-1")
	assert.Equal(t, types.StatusPending, item.Status)
	assert.Equal(t, types.ActionPendingResubmission, item.Action)
	assert.NotNil(t, item.ActionedAt)
}

func TestActionWithPrivateNote(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.create(t, types.CreateInput{UserID: "user-1", ContentID: "c1"}, baseMs)

	require.NoError(t, f.eng.ApplyModerationAction(ctx, types.ActionInput{
		ModerationID: id, UserID: "user-1",
		Action: types.ActionReject, ModeratorID: "mod-1",
		Note: "repeat offender",
	}))
	item := f.get(t, id, "user-1")
	assert.Equal(t, types.StatusRejected, item.Status)
	require.Len(t, item.Notes, 1)
	assert.Equal(t, "repeat offender", item.Notes[0].Text)
	assert.Equal(t, "mod-1", item.Notes[0].AddedBy)
}

func TestTagFamilyActionsSetTagStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	approved := f.create(t, types.CreateInput{UserID: "user-1", ContentID: "c1", Type: types.TypeTag}, baseMs)
	require.NoError(t, f.eng.ApplyModerationAction(ctx, types.ActionInput{
		ModerationID: approved, UserID: "user-1",
		Action: types.ActionApprove, ModeratorID: "mod-1",
	}))
	assert.Equal(t, types.TagStatusPublished, f.get(t, approved, "user-1").TagStatus)

	rejected := f.create(t, types.CreateInput{UserID: "user-1", ContentID: "c2", Type: types.TypeTag}, baseMs)
	require.NoError(t, f.eng.ApplyModerationAction(ctx, types.ActionInput{
		ModerationID: rejected, UserID: "user-1",
		Action: types.ActionReject, ModeratorID: "mod-1",
	}))
	assert.Equal(t, types.TagStatusPending, f.get(t, rejected, "user-1").TagStatus)

	// Non-tag types never carry tagStatus.
	plain := f.create(t, types.CreateInput{UserID: "user-1", ContentID: "c3"}, baseMs)
	require.NoError(t, f.eng.ApplyModerationAction(ctx, types.ActionInput{
		ModerationID: plain, UserID: "user-1",
		Action: types.ActionApprove, ModeratorID: "mod-1",
	}))
	assert.Empty(t, f.get(t, plain, "user-1").TagStatus)
}

func TestEscalateThenResolve(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.create(t, types.CreateInput{UserID: "user-1", ContentID: "c1"}, baseMs)

	require.NoError(t, f.eng.EscalateModerationItem(ctx, id, "user-1", "mod-1"))
	item := f.get(t, id, "user-1")
	assert.Equal(t, types.StatusEscalated, item.Status)
	assert.Equal(t, "mod-1", item.EscalatedBy)
	require.NotNil(t, item.EscalatedAt)

	// Re-escalation is allowed and records fresh history.
	require.NoError(t, f.eng.EscalateModerationItem(ctx, id, "user-1", "mod-2"))
	item = f.get(t, id, "user-1")
	assert.Equal(t, "mod-2", item.EscalatedBy)
	assert.Equal(t, int64(3), item.Meta.Version)

	// Resolving keeps the escalation audit trail on the record.
	require.NoError(t, f.eng.ApplyModerationAction(ctx, types.ActionInput{
		ModerationID: id, UserID: "user-1",
		Action: types.ActionApprove, ModeratorID: "mod-3",
	}))
	item = f.get(t, id, "user-1")
	assert.Equal(t, types.StatusApproved, item.Status)
	assert.Equal(t, "mod-2", item.EscalatedBy)
	assert.NotNil(t, item.EscalatedAt)
	require.Len(t, item.Meta.History, 4)
	assert.Equal(t, types.HistoryEscalate, item.Meta.History[1].Action)
	assert.Equal(t, types.HistoryEscalate, item.Meta.History[2].Action)
	assert.Equal(t, types.HistoryAction, item.Meta.History[3].Action)
}

func TestEscalateRequiresActor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.create(t, types.CreateInput{UserID: "user-1", ContentID: "c1"}, baseMs)

	err := f.eng.EscalateModerationItem(ctx, id, "user-1", "")
	assert.True(t, moderr.IsKind(err, moderr.KindInvalidInput), "got %v", err)
}

func TestUpdateEntryWhitelist(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.create(t, types.CreateInput{UserID: "user-1", ContentID: "c1"}, baseMs)

	require.NoError(t, f.eng.UpdateModerationEntry(ctx, id, map[string]any{
		"priority":     "high",
		"reason":       "flagged by filter",
		"submittedAt":  baseMs + 999, // key-derived: ignored
		"moderationId": "other-id",   // key-derived: ignored
		"unknownKey":   "x",          // unknown: dropped
	}, "user-1"))

	item := f.get(t, id, "user-1")
	assert.Equal(t, types.PriorityHigh, item.Priority)
	assert.Equal(t, "flagged by filter", item.Reason)
	assert.Equal(t, baseMs, item.SubmittedAt)
	assert.Equal(t, id, item.ModerationID)
	assert.Equal(t, int64(2), item.Meta.Version)
	assert.Equal(t, "user-1", item.Meta.UpdatedBy)
	require.Len(t, item.Meta.History, 2)
	assert.ElementsMatch(t, []string{"priority", "reason"}, item.Meta.History[1].Details)

	// A no-op update writes nothing.
	require.NoError(t, f.eng.UpdateModerationEntry(ctx, id, map[string]any{"priority": "high"}, "user-1"))
	assert.Equal(t, int64(2), f.get(t, id, "user-1").Meta.Version)

	err := f.eng.UpdateModerationEntry(ctx, id, map[string]any{"priority": "soon"}, "user-1")
	assert.True(t, moderr.IsKind(err, moderr.KindInvalidEnum), "got %v", err)
}

func TestUpdateEntryLifecycleFields(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.create(t, types.CreateInput{UserID: "user-1", ContentID: "c1"}, baseMs)

	require.NoError(t, f.eng.UpdateModerationEntry(ctx, id, map[string]any{
		"status":    "approved",
		"type":      "video",
		"contentId": "c-new",
		"action":    "approve",
	}, "user-1"))

	item := f.get(t, id, "user-1")
	assert.Equal(t, types.StatusApproved, item.Status)
	assert.Equal(t, fmt.Sprintf("approved#%d", baseMs), item.StatusSubmittedAt)
	assert.Equal(t, types.TypeVideo, item.Type)
	assert.Equal(t, "c-new", item.ContentID)
	assert.Equal(t, types.ActionApprove, item.Action)
	require.NotNil(t, item.ActionedAt)
	require.Len(t, item.Meta.History, 2)
	assert.ElementsMatch(t, []string{"status", "type", "contentId", "action"},
		item.Meta.History[1].Details)

	// The rebuilt range key makes the item visible in its new status.
	res, err := f.eng.GetModerationItemsByStatus(ctx, "approved", types.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, id, res.Items[0].ModerationID)

	err = f.eng.UpdateModerationEntry(ctx, id, map[string]any{"status": "bogus"}, "user-1")
	assert.True(t, moderr.IsKind(err, moderr.KindInvalidEnum), "got %v", err)
	err = f.eng.UpdateModerationEntry(ctx, id, map[string]any{"type": "hologram"}, "user-1")
	assert.True(t, moderr.IsKind(err, moderr.KindInvalidEnum), "got %v", err)
	err = f.eng.UpdateModerationEntry(ctx, id, map[string]any{"contentId": "  "}, "user-1")
	assert.True(t, moderr.IsKind(err, moderr.KindInvalidInput), "got %v", err)
}

func TestUpdateEntryNotesAndFlags(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.create(t, types.CreateInput{UserID: "user-1", ContentID: "c1"}, baseMs)

	require.NoError(t, f.eng.UpdateModerationEntry(ctx, id, map[string]any{
		"notes": []any{
			map[string]any{"text": "looks fine", "addedBy": "mod-1", "addedAt": float64(baseMs)},
		},
		"isPreApproved":     true,
		"isSystemGenerated": true,
	}, "user-1"))
	item := f.get(t, id, "user-1")
	require.Len(t, item.Notes, 1)
	assert.Equal(t, "looks fine", item.Notes[0].Text)
	assert.Equal(t, "mod-1", item.Notes[0].AddedBy)
	assert.True(t, item.IsPreApproved)
	assert.True(t, item.IsSystemGenerated)

	err := f.eng.UpdateModerationEntry(ctx, id, map[string]any{"notes": "nope"}, "user-1")
	assert.True(t, moderr.IsKind(err, moderr.KindInvalidInput), "got %v", err)

	// The delete pair moves together through updates.
	require.NoError(t, f.eng.UpdateModerationEntry(ctx, id, map[string]any{"isDeleted": true}, "user-1"))
	_, err = f.eng.GetModerationRecordByID(ctx, id, "user-1", false)
	assert.True(t, moderr.IsKind(err, moderr.KindNotFound), "got %v", err)
	item, err = f.eng.GetModerationRecordByID(ctx, id, "user-1", true)
	require.NoError(t, err)
	require.NotNil(t, item.DeletedAt)
	assert.Equal(t, baseMs, *item.DeletedAt)
}

func TestAddNoteAndCap(t *testing.T) {
	ctx := context.Background()
	f := newFixtureCfg(t, config.Config{MaxNotesPerItem: 2})

	id := f.create(t, types.CreateInput{UserID: "user-1", ContentID: "c1"}, baseMs)
	require.NoError(t, f.eng.AddNote(ctx, id, "user-1", "first", "mod-1"))
	require.NoError(t, f.eng.AddNote(ctx, id, "user-1", "second", "mod-1"))

	err := f.eng.AddNote(ctx, id, "user-1", "third", "mod-1")
	assert.True(t, moderr.IsKind(err, moderr.KindNotesLimitExceeded), "got %v", err)

	item := f.get(t, id, "user-1")
	require.Len(t, item.Notes, 2)
	assert.Equal(t, "first", item.Notes[0].Text)
	assert.Equal(t, int64(3), item.Meta.Version)
}

func TestSoftDeleteLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.create(t, types.CreateInput{UserID: "user-1", ContentID: "c1"}, baseMs)

	require.NoError(t, f.eng.SoftDeleteModerationItem(ctx, id, "user-1", "mod-1"))

	_, err := f.eng.GetModerationRecordByID(ctx, id, "user-1", false)
	assert.True(t, moderr.IsKind(err, moderr.KindNotFound), "got %v", err)

	item, err := f.eng.GetModerationRecordByID(ctx, id, "user-1", true)
	require.NoError(t, err)
	assert.True(t, item.IsDeleted)
	require.NotNil(t, item.DeletedAt)
	last := item.Meta.History[len(item.Meta.History)-1]
	assert.Equal(t, types.HistorySoftDelete, last.Action)
	assert.Equal(t, []string{"deletedBy:mod-1"}, last.Details)

	// Deleted items reject further mutations.
	err = f.eng.AddNote(ctx, id, "user-1", "too late", "mod-1")
	assert.True(t, moderr.IsKind(err, moderr.KindNotFound), "got %v", err)

	err = f.eng.SoftDeleteModerationItem(ctx, id, "user-1", "mod-1")
	assert.True(t, moderr.IsKind(err, moderr.KindAlreadyDeleted), "got %v", err)

	// Default queries hide it; includeDeleted surfaces it.
	res, err := f.eng.GetModerationItems(ctx, types.QueryFilter{UserID: "user-1", Status: "all"}, types.QueryOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	res, err = f.eng.GetModerationItems(ctx,
		types.QueryFilter{UserID: "user-1", Status: "all", IncludeDeleted: true}, types.QueryOptions{})
	require.NoError(t, err)
	assert.Len(t, res.Items, 1)
}

func TestHardDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.create(t, types.CreateInput{UserID: "user-1", ContentID: "c1"}, baseMs)

	removed, err := f.eng.HardDeleteModerationItem(ctx, id, "user-1")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, 0, f.drv.Len(config.DefaultTableName))

	// Absent items report false, not an error.
	removed, err = f.eng.HardDeleteModerationItem(ctx, id, "user-1")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestConcurrentModificationExhaustsLockRetries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.create(t, types.CreateInput{UserID: "user-1", ContentID: "c1"}, baseMs)

	attempts := 0
	f.drv.PutHook = func(*storage.PutInput) error {
		attempts++
		return storage.ErrConditionalCheckFailed
	}
	err := f.eng.AddNote(ctx, id, "user-1", "contended", "mod-1")
	assert.True(t, moderr.IsKind(err, moderr.KindConcurrentModification), "got %v", err)
	assert.Equal(t, 2, attempts) // LockMaxRetries from the fixture config
	f.drv.PutHook = nil

	// A loser that wins on re-read succeeds on the second attempt.
	attempts = 0
	f.drv.PutHook = func(*storage.PutInput) error {
		attempts++
		if attempts == 1 {
			return storage.ErrConditionalCheckFailed
		}
		return nil
	}
	require.NoError(t, f.eng.AddNote(ctx, id, "user-1", "retry wins", "mod-1"))
	f.drv.PutHook = nil
	require.Len(t, f.get(t, id, "user-1").Notes, 1)
}

func TestThrottledStorageSurfacesTransient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.drv.PutHook = func(*storage.PutInput) error { return storage.ErrThrottled }

	_, err := f.eng.CreateModerationEntry(ctx, types.CreateInput{
		UserID: "user-1", ContentID: "c1",
		Type: types.TypeImage, Priority: types.PriorityNormal,
	}, baseMs)
	assert.True(t, moderr.IsKind(err, moderr.KindStorageTransient), "got %v", err)
}

func TestUpdateMetaContentDeletedPair(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.create(t, types.CreateInput{
		UserID: "user-1", ContentID: "c1",
		Content: map[string]any{"caption": "gone soon"},
	}, baseMs)

	require.NoError(t, f.eng.UpdateModerationMeta(ctx, id, "user-1", map[string]any{
		"contentDeleted":   true,
		"contentDeletedAt": baseMs + 500,
		"updatedBy":        "retention-job",
	}))
	item := f.get(t, id, "user-1")
	assert.Nil(t, item.Content)
	assert.True(t, item.Meta.ContentDeleted)
	require.NotNil(t, item.Meta.ContentDeletedAt)
	assert.Equal(t, baseMs+500, *item.Meta.ContentDeletedAt)
	assert.Equal(t, "retention-job", item.Meta.UpdatedBy)

	require.NoError(t, f.eng.UpdateModerationMeta(ctx, id, "user-1", map[string]any{
		"contentDeleted": false,
	}))
	item = f.get(t, id, "user-1")
	assert.False(t, item.Meta.ContentDeleted)
	assert.Nil(t, item.Meta.ContentDeletedAt)
}

func TestUpdateMetaAppendsCallerHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.create(t, types.CreateInput{UserID: "user-1", ContentID: "c1"}, baseMs)

	require.NoError(t, f.eng.UpdateModerationMeta(ctx, id, "user-1", map[string]any{
		"history": []any{
			map[string]any{"action": "imported", "actor": "migrator", "timestamp": baseMs - 1000},
		},
	}))
	item := f.get(t, id, "user-1")
	require.Len(t, item.Meta.History, 3) // create + imported + metaUpdate
	assert.Equal(t, "imported", item.Meta.History[1].Action)

	// A malformed entry fails the whole operation.
	err := f.eng.UpdateModerationMeta(ctx, id, "user-1", map[string]any{
		"history": []any{map[string]any{"action": "halfdone"}},
	})
	assert.True(t, moderr.IsKind(err, moderr.KindInvalidInput), "got %v", err)
}

func TestPaginationAcrossPages(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for i := 0; i < 7; i++ {
		f.create(t, types.CreateInput{
			UserID:    "user-1",
			ContentID: fmt.Sprintf("c%d", i),
		}, baseMs-int64(i)*1000)
	}

	var seen []string
	token := ""
	pages := 0
	for {
		res, err := f.eng.GetModerationItems(ctx,
			types.QueryFilter{UserID: "user-1", Status: "pending"},
			types.QueryOptions{Limit: 3, NextToken: token})
		require.NoError(t, err)
		pages++
		for _, item := range res.Items {
			seen = append(seen, item.ContentID)
		}
		if !res.HasMore {
			assert.Empty(t, res.NextToken)
			break
		}
		require.NotEmpty(t, res.NextToken)
		token = res.NextToken
	}
	assert.Equal(t, 3, pages)
	// Default ordering is newest first, no duplicates across pages.
	assert.Equal(t, []string{"c0", "c1", "c2", "c3", "c4", "c5", "c6"}, seen)
}

func TestPaginationTokenExpiresBetweenPages(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for i := 0; i < 4; i++ {
		f.create(t, types.CreateInput{
			UserID: "user-1", ContentID: fmt.Sprintf("c%d", i),
		}, baseMs-int64(i)*1000)
	}
	res, err := f.eng.GetModerationItems(ctx,
		types.QueryFilter{UserID: "user-1", Status: "pending"},
		types.QueryOptions{Limit: 2})
	require.NoError(t, err)
	require.True(t, res.HasMore)

	f.now = f.now.Add(16 * time.Minute)
	_, err = f.eng.GetModerationItems(ctx,
		types.QueryFilter{UserID: "user-1", Status: "pending"},
		types.QueryOptions{Limit: 2, NextToken: res.NextToken})
	assert.True(t, moderr.IsKind(err, moderr.KindPaginationTokenExpired), "got %v", err)
}

func TestPaginationIterationCeiling(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.eng.cfg.MaxPaginationIterations = 1

	// Three deleted items: every window filters to nothing, and the key
	// space outlasts the iteration budget.
	for i := 0; i < 3; i++ {
		id := f.create(t, types.CreateInput{
			UserID: "user-1", ContentID: fmt.Sprintf("c%d", i),
		}, baseMs-int64(i)*1000)
		require.NoError(t, f.eng.SoftDeleteModerationItem(ctx, id, "user-1", "mod-1"))
	}
	_, err := f.eng.GetModerationItems(ctx,
		types.QueryFilter{Status: "pending"},
		types.QueryOptions{Limit: 2})
	assert.True(t, moderr.IsKind(err, moderr.KindPaginationLimitExceeded), "got %v", err)
}

func TestGalleryTypeSpansBothAliases(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.create(t, types.CreateInput{UserID: "u1", ContentID: "g1", Type: types.TypeGallery}, baseMs)
	f.create(t, types.CreateInput{UserID: "u2", ContentID: "g2", Type: types.TypeGallery}, baseMs-1000)
	f.create(t, types.CreateInput{UserID: "u3", ContentID: "ig1", Type: types.TypeImageGallery}, baseMs-2000)

	res, err := f.eng.GetModerationItemsByType(ctx, types.TypeGallery, types.QueryOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, res.Items, 3)
	assert.False(t, res.HasMore)

	// A page boundary on the phase boundary carries over via the token.
	page1, err := f.eng.GetModerationItemsByType(ctx, types.TypeGallery, types.QueryOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page1.Items, 2)
	require.True(t, page1.HasMore)

	page2, err := f.eng.GetModerationItemsByType(ctx, types.TypeGallery,
		types.QueryOptions{Limit: 2, NextToken: page1.NextToken})
	require.NoError(t, err)
	require.Len(t, page2.Items, 1)
	assert.Equal(t, "ig1", page2.Items[0].ContentID)
	assert.False(t, page2.HasMore)
}

func TestGalleryAsResidualFilterMatchesBothAliases(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.create(t, types.CreateInput{UserID: "u1", ContentID: "g1", Type: types.TypeGallery}, baseMs)
	f.create(t, types.CreateInput{UserID: "u1", ContentID: "ig1", Type: types.TypeImageGallery}, baseMs-1000)
	f.create(t, types.CreateInput{UserID: "u1", ContentID: "v1", Type: types.TypeVideo}, baseMs-2000)

	res, err := f.eng.GetModerationItems(ctx,
		types.QueryFilter{UserID: "u1", Type: types.TypeGallery},
		types.QueryOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	for _, item := range res.Items {
		assert.True(t, item.Type.IsGalleryFamily())
	}
}

func TestQueryBySubmittedAtRange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		f.create(t, types.CreateInput{
			UserID: "u1", ContentID: fmt.Sprintf("c%d", i),
		}, baseMs-int64(i)*1000)
	}
	start := baseMs - 3000
	end := baseMs - 1000
	res, err := f.eng.GetModerationItems(ctx,
		types.QueryFilter{Status: "pending", Start: &start, End: &end},
		types.QueryOptions{Limit: 10, Ascending: true})
	require.NoError(t, err)
	require.Len(t, res.Items, 3)
	assert.Equal(t, "c3", res.Items[0].ContentID)
	assert.Equal(t, "c1", res.Items[2].ContentID)
}

func TestCounts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Two pending, one approved, one rejected, one escalated, one
	// pre-approved (also approved).
	f.create(t, types.CreateInput{UserID: "u1", ContentID: "p1"}, baseMs)
	f.create(t, types.CreateInput{UserID: "u2", ContentID: "p2"}, baseMs)
	a := f.create(t, types.CreateInput{UserID: "u1", ContentID: "a1"}, baseMs)
	require.NoError(t, f.eng.ApplyModerationAction(ctx, types.ActionInput{
		ModerationID: a, UserID: "u1", Action: types.ActionApprove, ModeratorID: "mod-1",
	}))
	r := f.create(t, types.CreateInput{UserID: "u2", ContentID: "r1"}, baseMs)
	require.NoError(t, f.eng.ApplyModerationAction(ctx, types.ActionInput{
		ModerationID: r, UserID: "u2", Action: types.ActionReject, ModeratorID: "mod-1",
	}))
	e := f.create(t, types.CreateInput{UserID: "u1", ContentID: "e1"}, baseMs)
	require.NoError(t, f.eng.EscalateModerationItem(ctx, e, "u1", "mod-2"))
	f.create(t, types.CreateInput{UserID: "u3", ContentID: "pa1", IsPreApproved: true}, baseMs)

	counts, err := f.eng.GetAllModerationCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts.Pending)
	assert.Equal(t, int64(2), counts.Approved)
	assert.Equal(t, int64(0), counts.ApprovedGlobal)
	assert.Equal(t, int64(1), counts.Rejected)
	assert.Equal(t, int64(1), counts.Escalated)
	assert.Equal(t, int64(0), counts.PendingResubmission)
	assert.Equal(t, int64(6), counts.All)
	assert.Equal(t, int64(2), counts.Unmoderated)

	n, err := f.eng.CountModerationItemsByStatus(ctx, "pending", types.CountFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = f.eng.CountModerationItemsByStatus(ctx, "all", types.CountFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = f.eng.CountModerationItemsByStatus(ctx, "all", types.CountFilter{ModeratedBy: "mod-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = f.eng.CountModerationItemsByStatus(ctx, "bogus", types.CountFilter{})
	assert.True(t, moderr.IsKind(err, moderr.KindInvalidEnum), "got %v", err)
}

func TestCountsExcludeSoftDeleted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.create(t, types.CreateInput{UserID: "u1", ContentID: "c1"}, baseMs)
	drop := f.create(t, types.CreateInput{UserID: "u1", ContentID: "c2"}, baseMs)
	require.NoError(t, f.eng.SoftDeleteModerationItem(ctx, drop, "u1", "mod-1"))

	n, err := f.eng.CountModerationItemsByStatus(ctx, "pending", types.CountFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSchemaCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	// The fixture already created the table; a second create reports to the
	// sink but succeeds.
	before := len(f.sink.Entries)
	require.NoError(t, f.eng.CreateModerationSchema(ctx))
	assert.Greater(t, len(f.sink.Entries), before)
}
