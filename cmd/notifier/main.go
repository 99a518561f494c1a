// notifier watches university timetables and pushes lesson reminders and
// exam changes to subscribers. It runs the dispatch jobs on fixed cadences
// and serves an admin API for the schedule cache, the inference credential
// pool and manual ticks.
//
// Configuration comes from the environment (optionally seeded from an .env
// file); see internal/config for the variables.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/tbourn/go-timetable-notifier/internal/config"
	"github.com/tbourn/go-timetable-notifier/internal/credpool"
	"github.com/tbourn/go-timetable-notifier/internal/delivery"
	"github.com/tbourn/go-timetable-notifier/internal/flightcache"
	httpapi "github.com/tbourn/go-timetable-notifier/internal/http"
	"github.com/tbourn/go-timetable-notifier/internal/http/handlers"
	"github.com/tbourn/go-timetable-notifier/internal/matcher"
	"github.com/tbourn/go-timetable-notifier/internal/metrics"
	"github.com/tbourn/go-timetable-notifier/internal/observability"
	"github.com/tbourn/go-timetable-notifier/internal/repo"
	"github.com/tbourn/go-timetable-notifier/internal/scheduler"
	"github.com/tbourn/go-timetable-notifier/internal/services"
	"github.com/tbourn/go-timetable-notifier/internal/sysutil"
	"github.com/tbourn/go-timetable-notifier/internal/timetable"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	markerPurgeInterval = time.Hour
	shutdownTimeout     = 15 * time.Second
)

var (
	_ credpool.Store              = (*repo.Store)(nil)
	_ services.SubscriptionStore  = (*repo.Store)(nil)
	_ services.MarkerStore        = (*repo.Store)(nil)
	_ services.ExamStore          = (*repo.Store)(nil)
	_ services.GradeStore         = (*repo.Store)(nil)
	_ handlers.SubscriptionLister = (*repo.Store)(nil)
	_ handlers.ScheduleReader     = (*timetable.Gateway)(nil)
	_ services.ScheduleSource     = (*timetable.Gateway)(nil)
	_ services.ExamSource         = (*timetable.Gateway)(nil)
	_ handlers.CredentialAdmin    = (*credpool.Pool)(nil)
	_ services.CredentialPool     = (*credpool.Pool)(nil)
)

// @title                      Timetable Notifier Admin API
// @version                    1.0
// @description                Schedule cache, credential pool and dispatch controls of the timetable notifier.
// @BasePath                   /api/v1
// @securityDefinitions.apikey AdminToken
// @in                         header
// @name                       X-Admin-Token
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		envFile     string
		once        bool
		addr        string
		showVersion bool
	)
	flagSet := pflag.NewFlagSet("notifier", pflag.ContinueOnError)
	flagSet.StringVar(&envFile, "env-file", "", "load environment variables from this file first (default: .env when present)")
	flagSet.BoolVar(&once, "once", false, "run one lesson tick and one exam tick, then exit")
	flagSet.StringVar(&addr, "addr", "", "HTTP listen address (default: :$PORT)")
	flagSet.BoolVar(&showVersion, "version", false, "print the version and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Println("notifier", version)
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	if err := loadEnvFile(envFile); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	n, err := build(ctx, cfg)
	if err != nil {
		return err
	}

	if once {
		return n.runOnce(ctx)
	}
	return n.serve(ctx, addr)
}

// loadEnvFile loads path, or .env when path is empty and the file exists.
// Variables already set in the environment win.
func loadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

type notifier struct {
	store   *repo.Store
	gateway *timetable.Gateway
	pool    *credpool.Pool
	lessons *services.NotificationDispatcher
	exams   *services.ExamDispatcher
	grades  *services.GradeTracker
	assist  *services.InferenceService
	cfg     config.Config
}

func build(ctx context.Context, cfg config.Config) (*notifier, error) {
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	store := repo.NewStore(db)

	client, err := timetable.New(timetable.Options{
		BaseURL:     cfg.Timetable.BaseURL,
		Token:       cfg.Timetable.Token,
		Timeout:     cfg.Timetable.Timeout,
		Retries:     cfg.Timetable.Retries,
		BackoffBase: cfg.Timetable.BackoffBase,
	})
	if err != nil {
		return nil, fmt.Errorf("timetable client: %w", err)
	}
	gateway := timetable.NewGateway(client, timetable.GatewayOptions{
		TTL:     cfg.Timetable.CacheTTL,
		Limiter: flightcache.NewLimiter(cfg.Timetable.Concurrency),
	})

	inference := credpool.ClientConfig{BaseURL: cfg.Inference.BaseURL, Timeout: cfg.Inference.Timeout}
	// Without a configured source the pool is managed through the API only;
	// an empty source would deactivate every stored key on sync.
	var source credpool.Source
	var sources credpool.MultiSource
	if len(cfg.Inference.Keys) > 0 {
		sources = append(sources, credpool.StaticSource(cfg.Inference.Keys))
	}
	if cfg.Inference.KeysFile != "" {
		sources = append(sources, credpool.FileSource{Path: cfg.Inference.KeysFile})
	}
	if len(sources) > 0 {
		source = sources
	}
	pool := credpool.NewPool(store, credpool.Options{
		MinTokensFloor:  cfg.Inference.MinTokensFloor,
		DefaultRequests: cfg.Inference.DefaultRequests,
		DefaultTokens:   cfg.Inference.DefaultTokens,
		Prober:          credpool.OpenAIProber{Client: inference, Model: cfg.Inference.ProbeModel},
		Source:          source,
	})
	if err := pool.Load(ctx); err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	switch _, err := pool.SyncFromSource(ctx); {
	case errors.Is(err, credpool.ErrNoSource):
		log.Info().Msg("no credential source configured; keys are managed through the admin API")
	case err != nil:
		log.Warn().Err(err).Msg("credential sync failed; continuing with stored credentials")
	}

	sender := newSender(cfg.Telegram)

	return &notifier{
		store:   store,
		gateway: gateway,
		pool:    pool,
		lessons: &services.NotificationDispatcher{
			Subs:      store,
			Markers:   store,
			Schedules: gateway,
			Sender:    sender,
			Matcher:   matcher.Matcher{Location: cfg.Location(), WindowMinutes: cfg.Dispatch.WindowMinutes},
			DedupTTL:  cfg.Dispatch.DedupTTL,
		},
		exams: &services.ExamDispatcher{
			Store:      store,
			Markers:    store,
			Exams:      gateway,
			Sender:     sender,
			Location:   cfg.Location(),
			StaleAfter: cfg.Dispatch.ExamStaleAfter,
			DedupTTL:   cfg.Dispatch.DedupTTL,
		},
		grades: &services.GradeTracker{Store: store, Sender: sender},
		assist: &services.InferenceService{
			Pool:            pool,
			Client:          inference,
			Model:           cfg.Inference.Model,
			TranscribeModel: cfg.Inference.TranscribeModel,
		},
		cfg: cfg,
	}, nil
}

// newSender returns the Telegram sender, or a log-only sender when no bot
// token is configured.
func newSender(tc config.TelegramConfig) delivery.Sender {
	if tc.BotToken == "" {
		log.Warn().Msg("TELEGRAM_BOT_TOKEN is empty; notifications are only logged")
		return delivery.LogSender{}
	}
	s, err := delivery.NewTelegramSender(delivery.TelegramOptions{
		APIURL: tc.APIURL,
		Token:  tc.BotToken,
		RPS:    tc.SendRPS,
	})
	if err != nil {
		log.Error().Err(err).Msg("telegram sender disabled; notifications are only logged")
		return delivery.LogSender{}
	}
	return s
}

func (a *notifier) runOnce(ctx context.Context) error {
	lessons, err := a.lessons.RunTick(ctx)
	if err != nil {
		return fmt.Errorf("lesson tick: %w", err)
	}
	exams, err := a.exams.RunTick(ctx)
	if err != nil {
		return fmt.Errorf("exam tick: %w", err)
	}
	log.Info().
		Int("lessons_sent", lessons.Sent).
		Int("exam_changes", exams.Changes).
		Int("exams_sent", exams.Sent).
		Msg("single run finished")
	return nil
}

func (a *notifier) jobs() []scheduler.Job {
	d := a.cfg.Dispatch
	return []scheduler.Job{
		{
			Name:     "lessons",
			Interval: d.LessonInterval,
			Run: func(ctx context.Context) error {
				_, err := a.lessons.RunTick(ctx)
				return err
			},
			RunAtStart: true,
		},
		{
			Name:     "exams",
			Interval: d.ExamInterval,
			Run: func(ctx context.Context) error {
				_, err := a.exams.RunTick(ctx)
				return err
			},
			RunAtStart: true,
		},
		{
			Name:     "credential_health",
			Interval: d.HealthCheckInterval,
			Run: func(ctx context.Context) error {
				results, err := a.pool.HealthCheckAll(ctx)
				if err != nil {
					return err
				}
				healthy := 0
				for _, r := range results {
					if r.OK {
						healthy++
					}
				}
				a.pool.Stats() // refreshes the pool gauges
				log.Info().Int("checked", len(results)).Int("healthy", healthy).Msg("credential health check")
				return nil
			},
		},
		{
			Name:     "marker_purge",
			Interval: markerPurgeInterval,
			Run: func(ctx context.Context) error {
				n, err := a.store.PurgeExpiredMarkers(ctx, time.Now().UTC())
				if err != nil {
					return err
				}
				if n > 0 {
					log.Debug().Int64("purged", n).Msg("expired dedup markers removed")
				}
				return nil
			},
		},
	}
}

func (a *notifier) serve(ctx context.Context, addr string) error {
	cfg := a.cfg
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runner := scheduler.New()
	for _, j := range a.jobs() {
		if err := runner.Add(j); err != nil {
			return fmt.Errorf("schedule %s: %w", j.Name, err)
		}
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, handlers.Deps{
		Schedules:     a.gateway,
		Subscriptions: a.store,
		Credentials:   a.pool,
		Lessons:       a.lessons,
		Exams:         a.exams,
		Grades:        a.grades,
		Assistant:     a.assist,
	}, cfg)

	if addr == "" {
		addr = net.JoinHostPort("", cfg.Port)
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	metrics.BuildInfo.WithLabelValues(version).Set(1)
	runner.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("version", version).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case serveErr = <-errCh:
	}

	sctx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	// Jobs stop on ctx; cancel it in case the server failed first.
	cancel()
	runner.Wait()
	return serveErr
}
