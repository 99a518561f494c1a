// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the dedup marker store used by the
// dispatchers to guarantee at most one delivery per (subscription, lesson,
// day) within the marker TTL.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-timetable-notifier/internal/domain"
)

// ErrAlreadyMarked indicates that a live marker already exists for the
// given (subscription_id, lesson_key, day) triple.
var ErrAlreadyMarked = errors.New("already marked")

// HasMarker reports whether a non-expired marker exists for the triple.
func HasMarker(ctx context.Context, db *gorm.DB, subscriptionID, lessonKey, day string, now time.Time) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.NotificationMarker{}).
		Where("subscription_id = ? AND lesson_key = ? AND day = ? AND expires_at > ?", subscriptionID, lessonKey, day, now).
		Count(&n).Error
	return n > 0, err
}

// ClaimMarker atomically creates a marker for the triple. An expired marker
// for the same triple is replaced. It returns ErrAlreadyMarked when a live
// marker exists.
func ClaimMarker(ctx context.Context, db *gorm.DB, subscriptionID, lessonKey, day string, now time.Time, ttl time.Duration) (*domain.NotificationMarker, error) {
	rec := &domain.NotificationMarker{
		ID:             uuid.NewString(),
		SubscriptionID: subscriptionID,
		LessonKey:      lessonKey,
		Day:            day,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("subscription_id = ? AND lesson_key = ? AND day = ? AND expires_at <= ?", subscriptionID, lessonKey, day, now).
			Delete(&domain.NotificationMarker{}).Error; err != nil {
			return err
		}
		return tx.Create(rec).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyMarked
		}
		return nil, err
	}
	return rec, nil
}

// ReleaseMarker removes the marker for the triple so the candidate may be
// retried by a later tick.
func ReleaseMarker(ctx context.Context, db *gorm.DB, subscriptionID, lessonKey, day string) error {
	return db.WithContext(ctx).
		Where("subscription_id = ? AND lesson_key = ? AND day = ?", subscriptionID, lessonKey, day).
		Delete(&domain.NotificationMarker{}).Error
}

// PurgeExpiredMarkers deletes every marker expired at now and returns the
// number of rows removed.
func PurgeExpiredMarkers(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.NotificationMarker{})
	return res.RowsAffected, res.Error
}
