// Package services – NotificationDispatcher
//
// This file implements the lesson reminder tick. A tick loads every active
// subscription of a reachable subscriber, groups them by timetable, reads each
// timetable through the single-flight gateway, matches lessons against the
// firing window and delivers each candidate at most once per dedup marker.
//
// Observability: every tick opens a span, is counted by outcome and timed.

package services

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/go-timetable-notifier/internal/delivery"
	"github.com/tbourn/go-timetable-notifier/internal/domain"
	"github.com/tbourn/go-timetable-notifier/internal/matcher"
	"github.com/tbourn/go-timetable-notifier/internal/metrics"
	"github.com/tbourn/go-timetable-notifier/internal/timetable"
)

const defaultFetchFanout = 8

// SubscriptionStore loads the subscriptions a tick works on.
type SubscriptionStore interface {
	ActiveSubscriptions(ctx context.Context) ([]domain.Subscription, error)
	SubscriberBlocker
}

// ScheduleSource serves timetables; timetable.ErrAbsent marks a missing one.
type ScheduleSource interface {
	GetSchedule(ctx context.Context, key domain.ScheduleKey) (*domain.Schedule, error)
}

// TickReport summarises one dispatcher tick.
type TickReport struct {
	Skipped      bool          `json:"skipped"`
	Groups       int           `json:"groups"`
	Absent       int           `json:"absent"`
	GroupErrors  int           `json:"group_errors"`
	Candidates   int           `json:"candidates"`
	Sent         int           `json:"sent"`
	Duplicates   int           `json:"duplicates"`
	Failed       int           `json:"failed"`
	Unreachable  int           `json:"unreachable"`
	MarkerErrors int           `json:"marker_errors"`
	Duration     time.Duration `json:"duration"`
}

func (r *TickReport) count(o outcome) {
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

// NotificationDispatcher sends lesson reminders.
type NotificationDispatcher struct {
	Subs      SubscriptionStore
	Markers   MarkerStore
	Schedules ScheduleSource
	Sender    delivery.Sender
	Matcher   matcher.Matcher
	DedupTTL  time.Duration

	// FetchFanout bounds concurrent timetable reads per tick; the gateway's
	// global limiter still applies underneath.
	FetchFanout int
	Now         func() time.Time

	running atomic.Bool
}

// markerTTL keeps a marker alive for at least one firing window; a lesson is
// matched only inside its window, so the marker outlives every later match.
func (d *NotificationDispatcher) markerTTL() time.Duration {
	ttl := d.DedupTTL
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	if w := d.Matcher.Window(); ttl < w {
		ttl = w
	}
	return ttl
}

func (d *NotificationDispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Running reports whether a tick is in progress.
func (d *NotificationDispatcher) Running() bool { return d.running.Load() }

type groupSchedule struct {
	key      domain.ScheduleKey
	subs     []domain.Subscription
	schedule *domain.Schedule
	err      error
}

// RunTick performs one dispatch cycle. A call made while a tick is running
// returns immediately with Skipped set. Only a failure to load subscriptions
// fails the whole tick; every per-group error is counted and logged.
func (d *NotificationDispatcher) RunTick(ctx context.Context) (rep TickReport, err error) {
	if !d.running.CompareAndSwap(false, true) {
		metrics.DispatchTicks.WithLabelValues("lessons", "skipped").Inc()
		log.Warn().Msg("lesson tick skipped, previous tick still running")
		return TickReport{Skipped: true}, nil
	}
	defer d.running.Store(false)

	tr := otel.Tracer("services/NotificationDispatcher")
	ctx, span := tr.Start(ctx, "RunTick", trace.WithAttributes(attribute.String("dispatch.kind", "lessons")))
	defer span.End()

	start := time.Now()
	now := d.now()
	defer func() {
		rep.Duration = time.Since(start)
		metrics.DispatchDuration.WithLabelValues("lessons").Observe(rep.Duration.Seconds())
	}()

	subs, err := d.Subs.ActiveSubscriptions(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.DispatchTicks.WithLabelValues("lessons", "error").Inc()
		return rep, err
	}

	groups := groupByKey(subs)
	rep.Groups = len(groups)
	d.fetch(ctx, groups)

	c := courier{kind: "lessons", markers: d.Markers, blocker: d.Subs, sender: d.Sender, ttl: d.markerTTL()}
	blocked := make(map[string]bool)
	for _, g := range groups {
		switch {
		case errors.Is(g.err, timetable.ErrAbsent):
			rep.Absent++
			continue
		case g.err != nil:
			rep.GroupErrors++
			log.Error().Err(g.err).Str("group", g.key.ID).Msg("schedule fetch failed, skipping group")
			continue
		}

		for _, cand := range d.Matcher.Match(g.schedule, g.subs, now) {
			rep.Candidates++
			if blocked[cand.Subscription.UserRef] {
				continue
			}
			o := c.deliver(ctx, notice{
				subscriptionID: cand.Subscription.ID,
				userRef:        cand.Subscription.UserRef,
				key:            cand.LessonKey,
				day:            cand.Day,
				text:           lessonText(cand),
			}, now.UTC())
			if o == outcomeUnreachable {
				blocked[cand.Subscription.UserRef] = true
			}
			rep.count(o)
		}
	}

	span.SetAttributes(
		attribute.Int("groups", rep.Groups),
		attribute.Int("candidates", rep.Candidates),
		attribute.Int("sent", rep.Sent),
	)
	metrics.DispatchTicks.WithLabelValues("lessons", "ok").Inc()
	log.Debug().Int("groups", rep.Groups).Int("candidates", rep.Candidates).Int("sent", rep.Sent).
		Int("duplicates", rep.Duplicates).Int("failed", rep.Failed).Msg("lesson tick done")
	return rep, nil
}

// fetch reads every group's timetable with bounded fan-out.
func (d *NotificationDispatcher) fetch(ctx context.Context, groups []*groupSchedule) {
	n := d.FetchFanout
	if n < 1 {
		n = defaultFetchFanout
	}
	var g errgroup.Group
	g.SetLimit(n)
	for _, gs := range groups {
		g.Go(func() error {
			gs.schedule, gs.err = d.Schedules.GetSchedule(ctx, gs.key)
			return nil
		})
	}
	_ = g.Wait()
}

func groupByKey(subs []domain.Subscription) []*groupSchedule {
	idx := make(map[domain.ScheduleKey]*groupSchedule)
	var out []*groupSchedule
	for _, s := range subs {
		k := s.ScheduleKey()
		g, ok := idx[k]
		if !ok {
			g = &groupSchedule{key: k}
			idx[k] = g
			out = append(out, g)
		}
		g.subs = append(g.subs, s)
	}
	slices.SortFunc(out, func(a, b *groupSchedule) int { return strings.Compare(a.key.String(), b.key.String()) })
	return out
}
