package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-timetable-notifier/internal/domain"
)

// Store binds the repository functions to one *gorm.DB so that services can
// depend on small interfaces instead of the repo package.
type Store struct {
	DB *gorm.DB
}

// NewStore returns a Store over db.
func NewStore(db *gorm.DB) *Store { return &Store{DB: db} }

// ActiveSubscriptions proxies ListActiveSubscriptions.
func (s *Store) ActiveSubscriptions(ctx context.Context) ([]domain.Subscription, error) {
	return ListActiveSubscriptions(ctx, s.DB)
}

// ActiveSubscriptionsPage returns one page of active subscriptions plus the total.
func (s *Store) ActiveSubscriptionsPage(ctx context.Context, offset, limit int) ([]domain.Subscription, int64, error) {
	total, err := CountActiveSubscriptions(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Subscription{}, 0, nil
	}
	items, err := ListActiveSubscriptionsPage(ctx, s.DB, offset, limit)
	return items, total, err
}

// ActiveGroups proxies ListActiveGroups.
func (s *Store) ActiveGroups(ctx context.Context) ([]string, error) {
	return ListActiveGroups(ctx, s.DB)
}

// MarkSubscriberBlocked proxies MarkSubscriberBlocked.
func (s *Store) MarkSubscriberBlocked(ctx context.Context, userRef string, at time.Time) error {
	return MarkSubscriberBlocked(ctx, s.DB, userRef, at)
}

// Subscriber returns the subscriber and every subscription it owns, or
// ErrNotFound.
func (s *Store) Subscriber(ctx context.Context, userRef string) (*domain.Subscriber, []domain.Subscription, error) {
	sub, err := GetSubscriber(ctx, s.DB, userRef)
	if err != nil {
		return nil, nil, err
	}
	subs, err := ListSubscriptionsByUser(ctx, s.DB, userRef)
	return sub, subs, err
}

// UnblockSubscriber proxies UnblockSubscriber.
func (s *Store) UnblockSubscriber(ctx context.Context, userRef string) error {
	return UnblockSubscriber(ctx, s.DB, userRef)
}

// GradeTrackers proxies ListGradeTrackers.
func (s *Store) GradeTrackers(ctx context.Context) ([]domain.Subscriber, error) {
	return ListGradeTrackers(ctx, s.DB)
}

// ClaimMarker proxies ClaimMarker.
func (s *Store) ClaimMarker(ctx context.Context, subscriptionID, lessonKey, day string, now time.Time, ttl time.Duration) error {
	_, err := ClaimMarker(ctx, s.DB, subscriptionID, lessonKey, day, now, ttl)
	return err
}

// ReleaseMarker proxies ReleaseMarker.
func (s *Store) ReleaseMarker(ctx context.Context, subscriptionID, lessonKey, day string) error {
	return ReleaseMarker(ctx, s.DB, subscriptionID, lessonKey, day)
}

// PurgeExpiredMarkers proxies PurgeExpiredMarkers.
func (s *Store) PurgeExpiredMarkers(ctx context.Context, now time.Time) (int64, error) {
	return PurgeExpiredMarkers(ctx, s.DB, now)
}

// ListCredentials proxies ListCredentials.
func (s *Store) ListCredentials(ctx context.Context) ([]domain.Credential, error) {
	return ListCredentials(ctx, s.DB)
}

// CreateCredential proxies CreateCredential.
func (s *Store) CreateCredential(ctx context.Context, c *domain.Credential) error {
	return CreateCredential(ctx, s.DB, c)
}

// SaveCredential proxies SaveCredential.
func (s *Store) SaveCredential(ctx context.Context, c *domain.Credential) error {
	return SaveCredential(ctx, s.DB, c)
}

// SetCredentialsActive proxies SetCredentialsActive.
func (s *Store) SetCredentialsActive(ctx context.Context, ids []string, active bool) error {
	return SetCredentialsActive(ctx, s.DB, ids, active)
}

// ExamRecords proxies ListExamRecords.
func (s *Store) ExamRecords(ctx context.Context, group string) ([]domain.ExamRecord, error) {
	return ListExamRecords(ctx, s.DB, group)
}

// SaveExamRecord proxies SaveExamRecord.
func (s *Store) SaveExamRecord(ctx context.Context, rec *domain.ExamRecord) error {
	return SaveExamRecord(ctx, s.DB, rec)
}

// ExamGroupSynced proxies ExamGroupSynced.
func (s *Store) ExamGroupSynced(ctx context.Context, group string) (bool, error) {
	return ExamGroupSynced(ctx, s.DB, group)
}

// MarkExamGroupSynced proxies MarkExamGroupSynced.
func (s *Store) MarkExamGroupSynced(ctx context.Context, group string, at time.Time) error {
	return MarkExamGroupSynced(ctx, s.DB, group, at)
}

// GradeSnapshot proxies GetGradeSnapshot.
func (s *Store) GradeSnapshot(ctx context.Context, userRef string) (*domain.GradeSnapshot, error) {
	return GetGradeSnapshot(ctx, s.DB, userRef)
}

// SaveGradeSnapshot proxies SaveGradeSnapshot.
func (s *Store) SaveGradeSnapshot(ctx context.Context, snap *domain.GradeSnapshot) error {
	return SaveGradeSnapshot(ctx, s.DB, snap)
}

// Counts proxies StoreCounts.
func (s *Store) Counts(ctx context.Context, now time.Time) (Counts, error) {
	return StoreCounts(ctx, s.DB, now)
}
