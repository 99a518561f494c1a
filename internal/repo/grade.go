package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-timetable-notifier/internal/domain"
)

// GetGradeSnapshot returns the stored snapshot for userRef or ErrNotFound.
func GetGradeSnapshot(ctx context.Context, db *gorm.DB, userRef string) (*domain.GradeSnapshot, error) {
	var s domain.GradeSnapshot
	if err := db.WithContext(ctx).First(&s, "user_ref = ?", userRef).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// SaveGradeSnapshot replaces the stored snapshot for s.UserRef wholesale.
func SaveGradeSnapshot(ctx context.Context, db *gorm.DB, s *domain.GradeSnapshot) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_ref"}},
			DoUpdates: clause.AssignmentColumns([]string{"grades", "fingerprint", "updated_at"}),
		}).
		Create(s).Error
}
