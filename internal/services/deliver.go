package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-timetable-notifier/internal/delivery"
	"github.com/tbourn/go-timetable-notifier/internal/metrics"
	"github.com/tbourn/go-timetable-notifier/internal/repo"
)

// MarkerStore is the short-lived dedup marker store.
type MarkerStore interface {
	ClaimMarker(ctx context.Context, subscriptionID, key, day string, now time.Time, ttl time.Duration) error
	ReleaseMarker(ctx context.Context, subscriptionID, key, day string) error
}

// SubscriberBlocker flags recipients that can no longer be reached.
type SubscriberBlocker interface {
	MarkSubscriberBlocked(ctx context.Context, userRef string, at time.Time) error
}

// DefaultDedupTTL bounds how long a delivered notification stays marked.
const DefaultDedupTTL = 24 * time.Hour

type outcome string

const (
	outcomeSent        outcome = "sent"
	outcomeDuplicate   outcome = "duplicate"
	outcomeMarkerError outcome = "marker_error"
	outcomeFailed      outcome = "failed"
	outcomeUnreachable outcome = "unreachable"
)

// notice is one message bound for one subscription.
type notice struct {
	subscriptionID string
	userRef        string
	key            string
	day            string
	text           string
}

// courier delivers notices at most once per marker TTL.
type courier struct {
	kind    string
	markers MarkerStore
	blocker SubscriberBlocker
	sender  delivery.Sender
	ttl     time.Duration
}

// deliver claims the marker before sending and skips the delivery when the
// marker store fails. A failed send releases the marker so a later tick can
// retry. An unreachable recipient keeps the marker and is blocked.
func (c courier) deliver(ctx context.Context, n notice, now time.Time) outcome {
	res := c.send(ctx, n, now)
	metrics.Notifications.WithLabelValues(c.kind, string(res)).Inc()
	return res
}

func (c courier) send(ctx context.Context, n notice, now time.Time) outcome {
	l := log.With().Str("kind", c.kind).Str("subscription_id", n.subscriptionID).Str("lesson_key", n.key).Logger()
	ttl := c.ttl
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	if err := c.markers.ClaimMarker(ctx, n.subscriptionID, n.key, n.day, now, ttl); err != nil {
		if errors.Is(err, repo.ErrAlreadyMarked) {
			return outcomeDuplicate
		}
		l.Error().Err(err).Msg("claim dedup marker failed, skipping delivery")
		return outcomeMarkerError
	}

	err := c.sender.Send(ctx, n.userRef, n.text)
	switch {
	case err == nil:
		return outcomeSent
	case errors.Is(err, delivery.ErrRecipientUnreachable):
		l.Warn().Err(err).Str("user_ref", n.userRef).Msg("recipient unreachable, blocking subscriber")
		if berr := c.blocker.MarkSubscriberBlocked(ctx, n.userRef, now); berr != nil {
			l.Error().Err(berr).Str("user_ref", n.userRef).Msg("mark subscriber blocked failed")
		}
		return outcomeUnreachable
	default:
		l.Warn().Err(err).Msg("delivery failed, marker released for retry")
		if rerr := c.markers.ReleaseMarker(ctx, n.subscriptionID, n.key, n.day); rerr != nil {
			l.Error().Err(rerr).Msg("release dedup marker failed")
		}
		return outcomeFailed
	}
}
