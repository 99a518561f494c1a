package timetable

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-timetable-notifier/internal/domain"
	"github.com/tbourn/go-timetable-notifier/internal/flightcache"
)

// DefaultCacheTTL is used when GatewayOptions.TTL is not positive.
const DefaultCacheTTL = 10 * time.Minute

const actualGroupsKey = "groups:actual"

// Upstream is the subset of Client the gateway needs.
type Upstream interface {
	Schedule(ctx context.Context, key domain.ScheduleKey) (*domain.Schedule, error)
	GroupExams(ctx context.Context, group string) ([]domain.Exam, error)
	ActualGroups(ctx context.Context) ([]string, error)
}

// cached wraps a value so that upstream absence can be cached as a result.
type cached[T any] struct {
	value  T
	absent bool
}

// GatewayOptions configures a Gateway.
type GatewayOptions struct {
	TTL     time.Duration
	Limiter *flightcache.Limiter
	Now     func() time.Time
}

// Gateway serves timetable data through single-flight caches that share one
// global concurrency limiter.
type Gateway struct {
	up        Upstream
	ttl       time.Duration
	limiter   *flightcache.Limiter
	schedules *flightcache.Cache[cached[*domain.Schedule]]
	exams     *flightcache.Cache[cached[[]domain.Exam]]
	groups    *flightcache.Cache[[]string]
}

// NewGateway returns a Gateway over up.
func NewGateway(up Upstream, opts GatewayOptions) *Gateway {
	if opts.TTL <= 0 {
		opts.TTL = DefaultCacheTTL
	}
	if opts.Limiter == nil {
		opts.Limiter = flightcache.NewLimiter(flightcache.DefaultLimit)
	}
	return &Gateway{
		up:        up,
		ttl:       opts.TTL,
		limiter:   opts.Limiter,
		schedules: flightcache.New[cached[*domain.Schedule]](flightcache.Options{Name: "schedule", Limiter: opts.Limiter, Now: opts.Now}),
		exams:     flightcache.New[cached[[]domain.Exam]](flightcache.Options{Name: "exams", Limiter: opts.Limiter, Now: opts.Now}),
		groups:    flightcache.New[[]string](flightcache.Options{Name: "groups", Limiter: opts.Limiter, Now: opts.Now}),
	}
}

// GetSchedule returns the timetable for key, or ErrAbsent when upstream has
// none. The returned schedule is shared and must not be mutated.
func (g *Gateway) GetSchedule(ctx context.Context, key domain.ScheduleKey) (*domain.Schedule, error) {
	tr := otel.Tracer("timetable/gateway")
	ctx, span := tr.Start(ctx, "GetSchedule", trace.WithAttributes(
		attribute.String("schedule.kind", string(key.Kind)),
		attribute.String("schedule.id", key.ID),
	))
	defer span.End()

	res, err := g.schedules.Get(ctx, key.String(), g.ttl, func(ctx context.Context) (cached[*domain.Schedule], error) {
		s, err := g.up.Schedule(ctx, key)
		if errors.Is(err, ErrNotFound) {
			return cached[*domain.Schedule]{absent: true}, nil
		}
		return cached[*domain.Schedule]{value: s}, err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if res.absent {
		return nil, ErrAbsent
	}
	return res.value, nil
}

// GetExams returns the exams of a group, or ErrAbsent.
func (g *Gateway) GetExams(ctx context.Context, group string) ([]domain.Exam, error) {
	tr := otel.Tracer("timetable/gateway")
	ctx, span := tr.Start(ctx, "GetExams", trace.WithAttributes(attribute.String("group", group)))
	defer span.End()

	res, err := g.exams.Get(ctx, "exams:group:"+group, g.ttl, func(ctx context.Context) (cached[[]domain.Exam], error) {
		ex, err := g.up.GroupExams(ctx, group)
		if errors.Is(err, ErrNotFound) {
			return cached[[]domain.Exam]{absent: true}, nil
		}
		return cached[[]domain.Exam]{value: ex}, err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if res.absent {
		return nil, ErrAbsent
	}
	return res.value, nil
}

// ActualGroups returns the groups that currently publish a timetable.
// A 404 is reported as an empty list.
func (g *Gateway) ActualGroups(ctx context.Context) ([]string, error) {
	return g.groups.Get(ctx, actualGroupsKey, g.ttl, func(ctx context.Context) ([]string, error) {
		groups, err := g.up.ActualGroups(ctx)
		if errors.Is(err, ErrNotFound) {
			return []string{}, nil
		}
		return groups, err
	})
}

// InvalidateSchedule drops the cached timetable for key.
func (g *Gateway) InvalidateSchedule(key domain.ScheduleKey) { g.schedules.Invalidate(key.String()) }

// GatewayStats aggregates the caches of a gateway.
type GatewayStats struct {
	UpstreamCalls int64                        `json:"upstream_calls"`
	InFlight      int                          `json:"in_flight"`
	PeakInFlight  int                          `json:"peak_in_flight"`
	Limit         int                          `json:"limit"`
	Caches        map[string]flightcache.Stats `json:"caches"`
}

// Stats reports upstream call counters across all caches.
func (g *Gateway) Stats() GatewayStats {
	s, e, gr := g.schedules.Stats(), g.exams.Stats(), g.groups.Stats()
	return GatewayStats{
		UpstreamCalls: s.Calls + e.Calls + gr.Calls,
		InFlight:      g.limiter.InFlight(),
		PeakInFlight:  g.limiter.Peak(),
		Limit:         g.limiter.Limit(),
		Caches:        map[string]flightcache.Stats{"schedule": s, "exams": e, "groups": gr},
	}
}
