// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for subscribers
// and their timetable subscriptions.
//
// Functions follow the thin repository approach: they take a *gorm.DB so
// they compose with transactions, and contain no business rules.
package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-timetable-notifier/internal/domain"
)

// activeScope restricts subscriptions to active rows owned by subscribers that
// are not blocked. A subscription without a subscriber row counts as reachable.
func activeScope(db *gorm.DB) *gorm.DB {
	return db.Where("subscriptions.is_active = ?", true).
		Where("NOT EXISTS (SELECT 1 FROM subscribers s WHERE s.user_ref = subscriptions.user_ref AND s.blocked = ?)", true)
}

// ListActiveSubscriptions returns every active subscription whose subscriber
// is not blocked, ordered by group for stable grouping.
func ListActiveSubscriptions(ctx context.Context, db *gorm.DB) ([]domain.Subscription, error) {
	var out []domain.Subscription
	err := db.WithContext(ctx).
		Scopes(activeScope).
		Order("group_name asc, created_at asc").
		Find(&out).Error
	return out, err
}

// CountActiveSubscriptions returns the number of rows ListActiveSubscriptions
// would return.
func CountActiveSubscriptions(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Subscription{}).
		Scopes(activeScope).
		Count(&total).Error
	return total, err
}

// ListActiveSubscriptionsPage returns a page of active subscriptions. Use
// CountActiveSubscriptions to obtain the total.
func ListActiveSubscriptionsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Subscription, error) {
	var out []domain.Subscription
	err := db.WithContext(ctx).
		Scopes(activeScope).
		Order("group_name asc, created_at asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListSubscriptionsByUser returns every subscription owned by userRef.
func ListSubscriptionsByUser(ctx context.Context, db *gorm.DB, userRef string) ([]domain.Subscription, error) {
	var out []domain.Subscription
	err := db.WithContext(ctx).
		Where("user_ref = ?", userRef).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// ListActiveGroups returns the distinct group names with at least one active
// subscription.
func ListActiveGroups(ctx context.Context, db *gorm.DB) ([]string, error) {
	var out []string
	err := db.WithContext(ctx).
		Model(&domain.Subscription{}).
		Scopes(activeScope).
		Distinct("group_name").
		Order("group_name asc").
		Pluck("group_name", &out).Error
	return out, err
}

// CreateSubscription inserts sub, generating an ID when empty, and ensures
// the owning subscriber row exists.
func CreateSubscription(ctx context.Context, db *gorm.DB, sub *domain.Subscription) error {
	if strings.TrimSpace(sub.ID) == "" {
		sub.ID = uuid.NewString()
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&domain.Subscriber{UserRef: sub.UserRef}).Error; err != nil {
			return err
		}
		return tx.Create(sub).Error
	})
}

// GetSubscriber returns the subscriber or ErrNotFound.
func GetSubscriber(ctx context.Context, db *gorm.DB, userRef string) (*domain.Subscriber, error) {
	var s domain.Subscriber
	if err := db.WithContext(ctx).First(&s, "user_ref = ?", userRef).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// ListGradeTrackers returns the reachable subscribers that opted in to grade
// notifications.
func ListGradeTrackers(ctx context.Context, db *gorm.DB) ([]domain.Subscriber, error) {
	var out []domain.Subscriber
	err := db.WithContext(ctx).
		Where("track_grades = ? AND blocked = ?", true, false).
		Order("user_ref asc").
		Find(&out).Error
	return out, err
}

// MarkSubscriberBlocked flags userRef as unreachable. The row is created when
// missing so the block survives later subscription inserts.
func MarkSubscriberBlocked(ctx context.Context, db *gorm.DB, userRef string, at time.Time) error {
	s := domain.Subscriber{UserRef: userRef, Blocked: true, BlockedAt: &at}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_ref"}},
			DoUpdates: clause.Assignments(map[string]any{"blocked": true, "blocked_at": at, "updated_at": at}),
		}).
		Create(&s).Error
}

// UnblockSubscriber clears the blocked flag. It returns ErrNotFound when the
// subscriber does not exist.
func UnblockSubscriber(ctx context.Context, db *gorm.DB, userRef string) error {
	res := db.WithContext(ctx).
		Model(&domain.Subscriber{}).
		Where("user_ref = ?", userRef).
		Updates(map[string]any{"blocked": false, "blocked_at": nil})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
