// Package services – ExamDispatcher
//
// This file implements the exam tick. It does not use a firing window:
// every tick persists the upstream exam list of each subscribed group, diffs
// it against the stored records and notifies about new and changed exams.
// The first sync of a group only records a baseline; a group whose first sync
// came back empty or absent notifies about every exam published later. A
// change is stored only after every subscriber was settled, so failed sends
// are retried on the next tick. Exams dated further in the past than
// StaleAfter are persisted without notifying.

package services

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-timetable-notifier/internal/changes"
	"github.com/tbourn/go-timetable-notifier/internal/delivery"
	"github.com/tbourn/go-timetable-notifier/internal/domain"
	"github.com/tbourn/go-timetable-notifier/internal/metrics"
	"github.com/tbourn/go-timetable-notifier/internal/timetable"
)

// DefaultExamStaleAfter is how far in the past an exam may lie and still notify.
const DefaultExamStaleAfter = 24 * time.Hour

// ExamStore persists exam records and exposes the subscriptions to notify.
type ExamStore interface {
	SubscriptionStore
	ExamRecords(ctx context.Context, group string) ([]domain.ExamRecord, error)
	SaveExamRecord(ctx context.Context, rec *domain.ExamRecord) error
	ExamGroupSynced(ctx context.Context, group string) (bool, error)
	MarkExamGroupSynced(ctx context.Context, group string, at time.Time) error
}

// ExamSource serves group exam lists; timetable.ErrAbsent marks a missing one.
type ExamSource interface {
	GetExams(ctx context.Context, group string) ([]domain.Exam, error)
}

// ExamReport summarises one exam tick.
type ExamReport struct {
	Skipped       bool          `json:"skipped"`
	Groups        int           `json:"groups"`
	Absent        int           `json:"absent"`
	GroupErrors   int           `json:"group_errors"`
	Baselined     int           `json:"baselined"`
	Changes       int           `json:"changes"`
	Stale         int           `json:"stale"`
	PersistErrors int           `json:"persist_errors"`
	Pending       int           `json:"pending"`
	Sent          int           `json:"sent"`
	Duplicates    int           `json:"duplicates"`
	Failed        int           `json:"failed"`
	Unreachable   int           `json:"unreachable"`
	MarkerErrors  int           `json:"marker_errors"`
	Duration      time.Duration `json:"duration"`
}

func (r *ExamReport) count(o outcome) {
	switch o {
	case outcomeSent:
		r.Sent++
	case outcomeDuplicate:
		r.Duplicates++
	case outcomeFailed:
		r.Failed++
	case outcomeUnreachable:
		r.Unreachable++
	case outcomeMarkerError:
		r.MarkerErrors++
	}
}

// ExamDispatcher notifies subscribers about new and changed exams.
type ExamDispatcher struct {
	Store      ExamStore
	Markers    MarkerStore
	Exams      ExamSource
	Sender     delivery.Sender
	Location   *time.Location
	StaleAfter time.Duration
	DedupTTL   time.Duration
	Now        func() time.Time

	running atomic.Bool
}

func (d *ExamDispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *ExamDispatcher) loc() *time.Location {
	if d.Location == nil {
		return time.UTC
	}
	return d.Location
}

// Running reports whether a tick is in progress.
func (d *ExamDispatcher) Running() bool { return d.running.Load() }

// RunTick performs one exam sync. A call made while a tick is running returns
// immediately with Skipped set.
func (d *ExamDispatcher) RunTick(ctx context.Context) (rep ExamReport, err error) {
	if !d.running.CompareAndSwap(false, true) {
		metrics.DispatchTicks.WithLabelValues("exams", "skipped").Inc()
		log.Warn().Msg("exam tick skipped, previous tick still running")
		return ExamReport{Skipped: true}, nil
	}
	defer d.running.Store(false)

	tr := otel.Tracer("services/ExamDispatcher")
	ctx, span := tr.Start(ctx, "RunTick", trace.WithAttributes(attribute.String("dispatch.kind", "exams")))
	defer span.End()

	start := time.Now()
	defer func() {
		rep.Duration = time.Since(start)
		metrics.DispatchDuration.WithLabelValues("exams").Observe(rep.Duration.Seconds())
	}()

	subs, err := d.Store.ActiveSubscriptions(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.DispatchTicks.WithLabelValues("exams", "error").Inc()
		return rep, err
	}

	now := d.now()
	c := courier{kind: "exams", markers: d.Markers, blocker: d.Store, sender: d.Sender, ttl: d.DedupTTL}
	blocked := make(map[string]bool)
	for _, g := range groupByKey(subs) {
		rep.Groups++
		d.syncGroup(ctx, g.key.ID, g.subs, now, c, blocked, &rep)
	}

	span.SetAttributes(attribute.Int("groups", rep.Groups), attribute.Int("changes", rep.Changes), attribute.Int("sent", rep.Sent))
	metrics.DispatchTicks.WithLabelValues("exams", "ok").Inc()
	return rep, nil
}

func (d *ExamDispatcher) syncGroup(ctx context.Context, group string, subs []domain.Subscription, now time.Time, c courier, blocked map[string]bool, rep *ExamReport) {
	l := log.With().Str("group", group).Logger()

	synced, err := d.Store.ExamGroupSynced(ctx, group)
	if err != nil {
		rep.GroupErrors++
		l.Error().Err(err).Msg("load exam sync state failed, skipping group")
		return
	}

	incoming, err := d.Exams.GetExams(ctx, group)
	switch {
	case errors.Is(err, timetable.ErrAbsent):
		rep.Absent++
		if !synced {
			d.markSynced(ctx, group, now, l)
		}
		return
	case err != nil:
		rep.GroupErrors++
		l.Error().Err(err).Msg("exam fetch failed, skipping group")
		return
	}
	existing, err := d.Store.ExamRecords(ctx, group)
	if err != nil {
		rep.GroupErrors++
		l.Error().Err(err).Msg("load exam records failed, skipping group")
		return
	}
	// Groups with records from before sync tracking count as synced.
	baseline := !synced && len(existing) == 0

	staleAfter := d.StaleAfter
	if staleAfter <= 0 {
		staleAfter = DefaultExamStaleAfter
	}
	today := now.In(d.loc()).Format(domain.DateLayout)

	for _, ch := range changes.DiffExams(existing, incoming) {
		rec := examRecord(group, ch)
		if baseline {
			if d.save(ctx, &rec, rep, l) {
				rep.Baselined++
			}
			continue
		}
		rep.Changes++
		if at, ok := ExamStartsAt(ch.Exam, d.loc()); ok && now.Sub(at) > staleAfter {
			rep.Stale++
			metrics.Notifications.WithLabelValues("exams", "stale").Inc()
			l.Info().Str("lesson", ch.Exam.LessonName).Str("date", ch.Exam.Date).Msg("stale exam change persisted silently")
			d.save(ctx, &rec, rep, l)
			continue
		}

		key := "exam:" + changes.ExamFingerprint(group, ch.Exam)
		text := examText(group, ch)
		pending := false
		for _, sub := range subs {
			if blocked[sub.UserRef] {
				continue
			}
			o := c.deliver(ctx, notice{subscriptionID: sub.ID, userRef: sub.UserRef, key: key, day: today, text: text}, now.UTC())
			switch o {
			case outcomeUnreachable:
				blocked[sub.UserRef] = true
			case outcomeFailed, outcomeMarkerError:
				pending = true
			}
			rep.count(o)
		}
		// The stored record stays old until every subscriber is settled, so
		// the next tick sees the change again. Markers keep the delivered
		// subscribers from a second copy.
		if pending {
			rep.Pending++
			l.Warn().Str("lesson", ch.Exam.LessonName).Msg("exam change left pending for the next tick")
			continue
		}
		d.save(ctx, &rec, rep, l)
	}

	if !synced {
		d.markSynced(ctx, group, now, l)
	}
}

func (d *ExamDispatcher) save(ctx context.Context, rec *domain.ExamRecord, rep *ExamReport, l zerolog.Logger) bool {
	if err := d.Store.SaveExamRecord(ctx, rec); err != nil {
		rep.PersistErrors++
		l.Error().Err(err).Str("lesson", rec.LessonName).Msg("save exam record failed")
		return false
	}
	return true
}

func (d *ExamDispatcher) markSynced(ctx context.Context, group string, now time.Time, l zerolog.Logger) {
	if err := d.Store.MarkExamGroupSynced(ctx, group, now); err != nil {
		l.Error().Err(err).Msg("record exam sync failed")
	}
}

func examRecord(group string, ch changes.ExamChange) domain.ExamRecord {
	rec := domain.ExamRecord{
		GroupName:    group,
		LessonName:   strings.TrimSpace(ch.Exam.LessonName),
		TeacherName:  ch.Exam.TeacherName,
		AuditoryName: ch.Exam.AuditoryName,
		Date:         ch.Exam.Date,
		TimeRange:    ch.Exam.TimeRange,
		Type:         ch.Exam.Type,
	}
	// Keep the stored spelling so the upsert hits the existing row.
	if ch.Previous != nil {
		rec.LessonName = ch.Previous.LessonName
	}
	return rec
}

var examDateLayouts = []string{domain.DateLayout, "02.01.2006", "2006-01-02T15:04:05"}

// ExamStartsAt resolves the exam start in loc from its date and the first
// "HH:MM" of its time range. Without a usable time the exam starts at midnight.
func ExamStartsAt(e domain.Exam, loc *time.Location) (time.Time, bool) {
	date := strings.TrimSpace(e.Date)
	var day time.Time
	var err error
	for _, layout := range examDateLayouts {
		if day, err = time.ParseInLocation(layout, date, loc); err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, false
	}
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)

	tr := strings.TrimSpace(e.TimeRange)
	if i := strings.IndexAny(tr, "-–"); i >= 0 {
		tr = strings.TrimSpace(tr[:i])
	}
	if hm, err := time.Parse("15:04", tr); err == nil {
		day = day.Add(time.Duration(hm.Hour())*time.Hour + time.Duration(hm.Minute())*time.Minute)
	}
	return day, true
}
