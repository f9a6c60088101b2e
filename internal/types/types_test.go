package types

import (
	"testing"
)

func validItem() *ModerationItem {
	return &ModerationItem{
		PK:                BuildPK("user-1"),
		SK:                BuildSK(1640995200000, "aaaaaaaa-bbbb-4ccc-8ddd-eeeeeeeeeeee"),
		ModerationID:      "aaaaaaaa-bbbb-4ccc-8ddd-eeeeeeeeeeee",
		UserID:            "user-1",
		ContentID:         "content-1",
		Type:              TypeImage,
		Priority:          PriorityNormal,
		Status:            StatusPending,
		SubmittedAt:       1640995200000,
		StatusSubmittedAt: "pending#1640995200000",
		DayKey:            "20220101",
		Meta:              Meta{Version: 1},
	}
}

func TestKeyBuilders(t *testing.T) {
	if got := BuildPK("user-1"); got != "moderation#user-1" {
		t.Errorf("BuildPK = %q", got)
	}
	if got := BuildSK(1640995200000, "abc"); got != "media#1640995200000#abc" {
		t.Errorf("BuildSK = %q", got)
	}
	if got := BuildStatusSubmittedAt(StatusPending, 1640995200000); got != "pending#1640995200000" {
		t.Errorf("BuildStatusSubmittedAt = %q", got)
	}
}

func TestUTCDayKey(t *testing.T) {
	// 2022-01-01T00:00:00Z and one ms before midnight resolve to different days.
	if got := UTCDayKey(1640995200000); got != "20220101" {
		t.Errorf("UTCDayKey(midnight) = %q, want 20220101", got)
	}
	if got := UTCDayKey(1640995199999); got != "20211231" {
		t.Errorf("UTCDayKey(midnight-1ms) = %q, want 20211231", got)
	}
	// Determinism.
	for i := 0; i < 100; i++ {
		if UTCDayKey(1640995200000) != "20220101" {
			t.Fatal("UTCDayKey is not deterministic")
		}
	}
}

func TestParseStatusSubmittedAt(t *testing.T) {
	status, ts, err := ParseStatusSubmittedAt("pending#1640995200000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != StatusPending || ts != 1640995200000 {
		t.Errorf("got %q/%d", status, ts)
	}
	for _, bad := range []string{"", "pending", "#123", "pending#", "bogus#123", "pending#notanumber"} {
		if _, _, err := ParseStatusSubmittedAt(bad); err == nil {
			t.Errorf("ParseStatusSubmittedAt(%q) should fail", bad)
		}
	}
}

func TestGalleryAliasFamily(t *testing.T) {
	if !TypeGallery.IsGalleryFamily() || !TypeImageGallery.IsGalleryFamily() {
		t.Error("gallery types must be in the alias family")
	}
	if TypeImage.IsGalleryFamily() {
		t.Error("image is not in the gallery family")
	}
	if TypeGallery.GalleryAlias() != TypeImageGallery {
		t.Error("gallery alias should be image_gallery")
	}
	if TypeImageGallery.GalleryAlias() != TypeGallery {
		t.Error("image_gallery alias should be gallery")
	}
	if TypeImage.GalleryAlias() != "" {
		t.Error("non-gallery types have no alias")
	}
}

func TestTagFamily(t *testing.T) {
	for _, tagType := range []ContentType{TypeTag, TypeTags, TypePersonalTag, TypeGlobalTag} {
		if !tagType.IsTagFamily() {
			t.Errorf("%s should be tag family", tagType)
		}
	}
	if TypeImage.IsTagFamily() || TypeGallery.IsTagFamily() {
		t.Error("image/gallery are not tag family")
	}
}

func TestModerationItemValidate(t *testing.T) {
	actioned := int64(1641000000000)
	deleted := int64(1641000000000)

	tests := []struct {
		name    string
		mutate  func(*ModerationItem)
		wantErr bool
	}{
		{"valid", func(m *ModerationItem) {}, false},
		{"missing userId", func(m *ModerationItem) { m.UserID = "" }, true},
		{"missing contentId", func(m *ModerationItem) { m.ContentID = "" }, true},
		{"bad type", func(m *ModerationItem) { m.Type = "bogus" }, true},
		{"bad priority", func(m *ModerationItem) { m.Priority = "asap" }, true},
		{"bad status", func(m *ModerationItem) { m.Status = "done" }, true},
		{"pk mismatch", func(m *ModerationItem) { m.PK = "moderation#other" }, true},
		{"sk mismatch", func(m *ModerationItem) { m.SK = "media#1#x" }, true},
		{"statusSubmittedAt drift", func(m *ModerationItem) { m.StatusSubmittedAt = "approved#1640995200000" }, true},
		{"dayKey drift", func(m *ModerationItem) { m.DayKey = "20220102" }, true},
		{"deleted without deletedAt", func(m *ModerationItem) { m.IsDeleted = true }, true},
		{"deletedAt without flag", func(m *ModerationItem) { m.DeletedAt = &deleted }, true},
		{"action without actionedAt", func(m *ModerationItem) { m.Action = ActionApprove }, true},
		{"actionedAt without action", func(m *ModerationItem) { m.ActionedAt = &actioned }, true},
		{"escalated without escalatedBy", func(m *ModerationItem) {
			m.Status = StatusEscalated
			m.StatusSubmittedAt = BuildStatusSubmittedAt(StatusEscalated, m.SubmittedAt)
		}, true},
		{"tagStatus on non-tag type", func(m *ModerationItem) {
			m.TagStatus = TagStatusPending
			m.Action = ActionReject
			m.ActionedAt = &actioned
		}, true},
		{"tag action without tagStatus", func(m *ModerationItem) {
			m.Type = TypeTag
			m.Action = ActionReject
			m.ActionedAt = &actioned
		}, true},
		{"tag action with tagStatus", func(m *ModerationItem) {
			m.Type = TypeTag
			m.Action = ActionApprove
			m.ActionedAt = &actioned
			m.TagStatus = TagStatusPublished
			m.Status = StatusApproved
			m.StatusSubmittedAt = BuildStatusSubmittedAt(StatusApproved, m.SubmittedAt)
		}, false},
		{"version zero", func(m *ModerationItem) { m.Meta.Version = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validItem()
			tt.mutate(m)
			err := m.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
