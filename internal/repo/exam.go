package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-timetable-notifier/internal/domain"
)

// ListExamRecords returns the stored exams of a group.
func ListExamRecords(ctx context.Context, db *gorm.DB, group string) ([]domain.ExamRecord, error) {
	var out []domain.ExamRecord
	err := db.WithContext(ctx).
		Where("group_name = ?", group).
		Order("lesson_name asc").
		Find(&out).Error
	return out, err
}

// SaveExamRecord inserts rec or, when (group_name, lesson_name) already
// exists, updates the comparable fields in place.
func SaveExamRecord(ctx context.Context, db *gorm.DB, rec *domain.ExamRecord) error {
	if strings.TrimSpace(rec.ID) == "" {
		rec.ID = uuid.NewString()
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "group_name"}, {Name: "lesson_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"teacher_name", "auditory_name", "date", "time_range", "type", "updated_at"}),
		}).
		Create(rec).Error
}

// ExamGroupSynced reports whether the exam list of group was synced before.
func ExamGroupSynced(ctx context.Context, db *gorm.DB, group string) (bool, error) {
	var row domain.ExamSync
	err := db.WithContext(ctx).Where("group_name = ?", group).Take(&row).Error
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return false, nil
	default:
		return false, err
	}
}

// MarkExamGroupSynced records a sync of group at at, keeping the latest time.
func MarkExamGroupSynced(ctx context.Context, db *gorm.DB, group string, at time.Time) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "group_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"synced_at"}),
		}).
		Create(&domain.ExamSync{GroupName: group, SyncedAt: at.UTC()}).Error
}
