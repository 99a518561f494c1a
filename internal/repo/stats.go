// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used by the
// admin HTTP surface.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-timetable-notifier/internal/domain"
)

// Counts summarizes the stored state of the notifier.
type Counts struct {
	Subscribers         int64 `json:"subscribers"`
	BlockedSubscribers  int64 `json:"blocked_subscribers"`
	ActiveSubscriptions int64 `json:"active_subscriptions"`
	Credentials         int64 `json:"credentials"`
	ExamRecords         int64 `json:"exam_records"`
	LiveMarkers         int64 `json:"live_markers"`
}

// StoreCounts runs one lightweight COUNT per table. now decides which dedup
// markers are still live.
func StoreCounts(ctx context.Context, db *gorm.DB, now time.Time) (Counts, error) {
	var c Counts
	q := db.WithContext(ctx)

	if err := q.Model(&domain.Subscriber{}).Count(&c.Subscribers).Error; err != nil {
		return Counts{}, err
	}
	if err := q.Model(&domain.Subscriber{}).Where("blocked = ?", true).Count(&c.BlockedSubscribers).Error; err != nil {
		return Counts{}, err
	}
	active, err := CountActiveSubscriptions(ctx, db)
	if err != nil {
		return Counts{}, err
	}
	c.ActiveSubscriptions = active
	if err := q.Model(&domain.Credential{}).Count(&c.Credentials).Error; err != nil {
		return Counts{}, err
	}
	if err := q.Model(&domain.ExamRecord{}).Count(&c.ExamRecords).Error; err != nil {
		return Counts{}, err
	}
	if err := q.Model(&domain.NotificationMarker{}).Where("expires_at > ?", now).Count(&c.LiveMarkers).Error; err != nil {
		return Counts{}, err
	}
	return c, nil
}
