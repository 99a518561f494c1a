package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-timetable-notifier/internal/domain"
)

func TestSaveExamRecord_UpsertsByGroupAndLesson(t *testing.T) {
	store := NewStore(newTestDB(t))
	ctx := context.Background()

	first := &domain.ExamRecord{GroupName: "G-1", LessonName: "Math", TeacherName: "Ivanov", Date: "2025-01-10"}
	if err := store.SaveExamRecord(ctx, first); err != nil {
		t.Fatalf("insert: %v", err)
	}
	changed := &domain.ExamRecord{GroupName: "G-1", LessonName: "Math", TeacherName: "Petrov", Date: "2025-01-10"}
	if err := store.SaveExamRecord(ctx, changed); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	other := &domain.ExamRecord{GroupName: "G-2", LessonName: "Math", TeacherName: "Ivanov"}
	if err := store.SaveExamRecord(ctx, other); err != nil {
		t.Fatalf("insert other group: %v", err)
	}

	got, err := store.ExamRecords(ctx, "G-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].TeacherName != "Petrov" || got[0].ID != first.ID {
		t.Fatalf("expected in-place update keeping the original id, got %+v", got)
	}
	if none, _ := store.ExamRecords(ctx, "G-9"); len(none) != 0 {
		t.Fatalf("unknown group should have no exams")
	}
}

func TestExamGroupSynced_TracksFirstSync(t *testing.T) {
	store := NewStore(newTestDB(t))
	ctx := context.Background()

	if ok, err := store.ExamGroupSynced(ctx, "G-1"); err != nil || ok {
		t.Fatalf("fresh group: synced=%v err=%v", ok, err)
	}
	first := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	if err := store.MarkExamGroupSynced(ctx, "G-1", first); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if err := store.MarkExamGroupSynced(ctx, "G-1", first.Add(time.Hour)); err != nil {
		t.Fatalf("mark again: %v", err)
	}
	if ok, err := store.ExamGroupSynced(ctx, "G-1"); err != nil || !ok {
		t.Fatalf("after mark: synced=%v err=%v", ok, err)
	}
	if ok, _ := store.ExamGroupSynced(ctx, "G-2"); ok {
		t.Fatalf("other group should not be synced")
	}

	var row domain.ExamSync
	if err := store.DB.Where("group_name = ?", "G-1").Take(&row).Error; err != nil {
		t.Fatalf("load row: %v", err)
	}
	if !row.SyncedAt.Equal(first.Add(time.Hour)) {
		t.Fatalf("synced_at = %v, want latest mark", row.SyncedAt)
	}
}

func TestGradeSnapshot_ReplaceWholesale(t *testing.T) {
	store := NewStore(newTestDB(t))
	ctx := context.Background()

	if _, err := store.GradeSnapshot(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before first save, got %v", err)
	}

	snap := &domain.GradeSnapshot{
		UserRef:     "u1",
		Grades:      []domain.GradeRecord{{LessonName: "Math", Semester: 1, Course: 1, ControlType: "exam", Mark: 5}},
		Fingerprint: "aa",
		UpdatedAt:   time.Now().UTC(),
	}
	if err := store.SaveGradeSnapshot(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	snap2 := &domain.GradeSnapshot{
		UserRef: "u1",
		Grades: []domain.GradeRecord{
			{LessonName: "Math", Semester: 1, Course: 1, ControlType: "exam", Mark: 4},
			{LessonName: "PE", Semester: 1, Course: 1, ControlType: "credit", Mark: 1},
		},
		Fingerprint: "bb",
		UpdatedAt:   time.Now().UTC(),
	}
	if err := store.SaveGradeSnapshot(ctx, snap2); err != nil {
		t.Fatalf("replace: %v", err)
	}

	got, err := store.GradeSnapshot(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Fingerprint != "bb" || len(got.Grades) != 2 || got.Grades[0].Mark != 4 {
		t.Fatalf("snapshot not replaced: %+v", got)
	}
}
