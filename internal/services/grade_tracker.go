package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-timetable-notifier/internal/changes"
	"github.com/tbourn/go-timetable-notifier/internal/delivery"
	"github.com/tbourn/go-timetable-notifier/internal/domain"
	"github.com/tbourn/go-timetable-notifier/internal/metrics"
	"github.com/tbourn/go-timetable-notifier/internal/repo"
)

// GradeStore persists record book snapshots.
type GradeStore interface {
	GradeSnapshot(ctx context.Context, userRef string) (*domain.GradeSnapshot, error)
	SaveGradeSnapshot(ctx context.Context, snap *domain.GradeSnapshot) error
	SubscriberBlocker
}

// GradeResult describes one grade check.
type GradeResult struct {
	Baseline    bool             `json:"baseline"`
	Unchanged   bool             `json:"unchanged"`
	Notified    bool             `json:"notified"`
	Fingerprint string           `json:"fingerprint"`
	Diff        changes.GradeDiff `json:"diff"`
}

// GradeTracker diffs fresh record books against the stored snapshot and
// notifies the subscriber about added and changed grades.
type GradeTracker struct {
	Store  GradeStore
	Sender delivery.Sender
	Now    func() time.Time
}

func (g *GradeTracker) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

// Check compares grades with the stored snapshot of userRef. An unchanged
// fingerprint short-circuits. The first snapshot is stored silently. When a
// notification fails for a reason other than an unreachable recipient the
// snapshot is not replaced, so the next check reports the same diff again.
func (g *GradeTracker) Check(ctx context.Context, userRef string, grades []domain.GradeRecord) (GradeResult, error) {
	tr := otel.Tracer("services/GradeTracker")
	ctx, span := tr.Start(ctx, "Check", trace.WithAttributes(
		attribute.String("user.ref", userRef),
		attribute.Int("grades", len(grades)),
	))
	defer span.End()

	userRef = strings.TrimSpace(userRef)
	if userRef == "" {
		return GradeResult{}, ErrEmptyUserRef
	}

	res := GradeResult{Fingerprint: changes.Fingerprint(grades)}
	prev, err := g.Store.GradeSnapshot(ctx, userRef)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		res.Baseline = true
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	case prev.Fingerprint == res.Fingerprint:
		res.Unchanged = true
		return res, nil
	}

	now := g.now().UTC()
	if !res.Baseline {
		res.Diff = changes.DiffGrades(prev.Grades, grades)
		if !res.Diff.Empty() {
			err := g.Sender.Send(ctx, userRef, gradesText(res.Diff))
			switch {
			case err == nil:
				res.Notified = true
				metrics.Notifications.WithLabelValues("grades", string(outcomeSent)).Inc()
			case errors.Is(err, delivery.ErrRecipientUnreachable):
				metrics.Notifications.WithLabelValues("grades", string(outcomeUnreachable)).Inc()
				if berr := g.Store.MarkSubscriberBlocked(ctx, userRef, now); berr != nil {
					log.Error().Err(berr).Str("user_ref", userRef).Msg("mark subscriber blocked failed")
				}
			default:
				metrics.Notifications.WithLabelValues("grades", string(outcomeFailed)).Inc()
				span.RecordError(err)
				return res, err
			}
		}
	}

	snap := &domain.GradeSnapshot{
		UserRef:     userRef,
		Grades:      changes.SortGrades(grades),
		Fingerprint: res.Fingerprint,
		UpdatedAt:   now,
	}
	if err := g.Store.SaveGradeSnapshot(ctx, snap); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}
	return res, nil
}
