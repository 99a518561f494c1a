// Admin HTTP handlers.
//
// Handlers are transport-thin: they validate input, call the engine through
// the small interfaces below and translate results and errors into the
// ErrorResponse envelope. Every dependency is optional at construction time;
// a route whose dependency is nil answers 404 so a partially wired process
// still serves the rest of the surface.
package handlers

import (
	"context"
	"io"
	"time"

	"github.com/tbourn/go-timetable-notifier/internal/credpool"
	"github.com/tbourn/go-timetable-notifier/internal/domain"
	"github.com/tbourn/go-timetable-notifier/internal/repo"
	"github.com/tbourn/go-timetable-notifier/internal/services"
	"github.com/tbourn/go-timetable-notifier/internal/timetable"
)

//
// Service contracts (context-aware)
//

// ScheduleReader serves cached timetables and exam lists.
type ScheduleReader interface {
	GetSchedule(ctx context.Context, key domain.ScheduleKey) (*domain.Schedule, error)
	GetExams(ctx context.Context, group string) ([]domain.Exam, error)
	ActualGroups(ctx context.Context) ([]string, error)
	InvalidateSchedule(key domain.ScheduleKey)
	Stats() timetable.GatewayStats
}

// SubscriptionLister pages through active subscriptions and reports store
// totals.
type SubscriptionLister interface {
	ActiveSubscriptionsPage(ctx context.Context, offset, limit int) ([]domain.Subscription, int64, error)
	ActiveGroups(ctx context.Context) ([]string, error)
	GradeTrackers(ctx context.Context) ([]domain.Subscriber, error)
	Subscriber(ctx context.Context, userRef string) (*domain.Subscriber, []domain.Subscription, error)
	UnblockSubscriber(ctx context.Context, userRef string) error
	Counts(ctx context.Context, now time.Time) (repo.Counts, error)
}

// CredentialAdmin manages the inference credential pool.
type CredentialAdmin interface {
	Stats() credpool.PoolStats
	Credentials() []domain.Credential
	AddCredentials(ctx context.Context, raw []string) credpool.AddResult
	SyncFromSource(ctx context.Context) (credpool.Plan, error)
	HealthCheckAll(ctx context.Context) ([]credpool.HealthResult, error)
}

// LessonTicker runs one lesson reminder tick.
type LessonTicker interface {
	RunTick(ctx context.Context) (services.TickReport, error)
}

// ExamTicker runs one exam notification tick.
type ExamTicker interface {
	RunTick(ctx context.Context) (services.ExamReport, error)
}

// GradeChecker diffs a pushed record book against the stored snapshot.
type GradeChecker interface {
	Check(ctx context.Context, userRef string, grades []domain.GradeRecord) (services.GradeResult, error)
}

// Assistant runs pooled inference calls.
type Assistant interface {
	Complete(ctx context.Context, prompt string) (*services.Completion, error)
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}

//
// Handler wiring
//

// Deps lists what the handlers call into.
type Deps struct {
	Schedules     ScheduleReader
	Subscriptions SubscriptionLister
	Credentials   CredentialAdmin
	Lessons       LessonTicker
	Exams         ExamTicker
	Grades        GradeChecker
	Assistant     Assistant
	Now           func() time.Time
}

// Handlers groups the admin endpoints.
type Handlers struct {
	d Deps
}

// New constructs Handlers bound to deps.
func New(deps Deps) *Handlers {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Handlers{d: deps}
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}
