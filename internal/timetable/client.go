// Package timetable talks to the upstream university timetable API and
// fronts it with a single-flight cache.
//
// Client performs the HTTP calls. A 404 maps to ErrNotFound, a 429 is retried
// with exponential backoff and every other non-2xx status fails immediately.
// Gateway layers flightcache on top so that concurrent readers of the same
// timetable cost one upstream call per TTL window.
package timetable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-timetable-notifier/internal/domain"
	"github.com/tbourn/go-timetable-notifier/internal/metrics"
)

// Defaults applied by New.
const (
	DefaultTimeout     = 15 * time.Second
	DefaultRetries     = 3
	DefaultBackoffBase = 5 * time.Second
	maxErrorBody       = 512
)

// Options configures a Client.
type Options struct {
	BaseURL     string
	Token       string
	Timeout     time.Duration
	Retries     int
	BackoffBase time.Duration
	HTTPClient  *http.Client
	// OnRetry, when set, is called before each backoff sleep with the
	// 1-based retry number and the delay.
	OnRetry func(retry int, delay time.Duration)
}

// Client is an HTTP client for the timetable API. It is safe for concurrent use.
type Client struct {
	base        *url.URL
	token       string
	http        *http.Client
	retries     int
	backoffBase time.Duration
	onRetry     func(int, time.Duration)
}

// New validates opts and returns a Client.
func New(opts Options) (*Client, error) {
	raw := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if raw == "" {
		return nil, errors.New("timetable: base url is empty")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("timetable: parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("timetable: unsupported base url scheme %q", base.Scheme)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Retries < 0 {
		opts.Retries = DefaultRetries
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = DefaultBackoffBase
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		base:        base,
		token:       opts.Token,
		http:        hc,
		retries:     opts.Retries,
		backoffBase: opts.BackoffBase,
		onRetry:     opts.OnRetry,
	}, nil
}

type scheduleBody struct {
	Days []domain.ScheduleDay `json:"days"`
}

type examsBody struct {
	Exams []domain.Exam `json:"exams"`
}

type groupsBody struct {
	Groups []string `json:"groups"`
}

// GroupSchedule fetches the timetable of a student group.
func (c *Client) GroupSchedule(ctx context.Context, group string) (*domain.Schedule, error) {
	return c.schedule(ctx, domain.ScheduleKey{Kind: domain.KindGroup, ID: group})
}

// TeacherSchedule fetches the timetable of a teacher.
func (c *Client) TeacherSchedule(ctx context.Context, teacherID string) (*domain.Schedule, error) {
	return c.schedule(ctx, domain.ScheduleKey{Kind: domain.KindTeacher, ID: teacherID})
}

// AudienceSchedule fetches the timetable of a lecture room.
func (c *Client) AudienceSchedule(ctx context.Context, audienceID string) (*domain.Schedule, error) {
	return c.schedule(ctx, domain.ScheduleKey{Kind: domain.KindAudience, ID: audienceID})
}

// Schedule dispatches on key.Kind.
func (c *Client) Schedule(ctx context.Context, key domain.ScheduleKey) (*domain.Schedule, error) {
	return c.schedule(ctx, key)
}

func (c *Client) schedule(ctx context.Context, key domain.ScheduleKey) (*domain.Schedule, error) {
	var body scheduleBody
	if err := c.get(ctx, "schedule_"+string(key.Kind), []string{"schedule", string(key.Kind), url.PathEscape(key.ID)}, &body); err != nil {
		return nil, err
	}
	return &domain.Schedule{Key: key, Days: body.Days}, nil
}

// GroupExams fetches the exam session of a group.
func (c *Client) GroupExams(ctx context.Context, group string) ([]domain.Exam, error) {
	var body examsBody
	if err := c.get(ctx, "exams_group", []string{"exams", "group", url.PathEscape(group)}, &body); err != nil {
		return nil, err
	}
	return body.Exams, nil
}

// ActualGroups lists the groups that currently have a timetable.
func (c *Client) ActualGroups(ctx context.Context) ([]string, error) {
	var body groupsBody
	if err := c.get(ctx, "actual_groups", []string{"schedule", "actual_groups"}, &body); err != nil {
		return nil, err
	}
	return body.Groups, nil
}

// get performs a GET with rate-limit retries and decodes the JSON body into
// out. Segments must already be path-escaped.
func (c *Client) get(ctx context.Context, endpoint string, segments []string, out any) error {
	u := c.base.JoinPath(segments...)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.backoffBase
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = backoff.DefaultMaxInterval
	if c.retries < 16 {
		b.MaxInterval = max(b.MaxInterval, c.backoffBase<<uint(c.retries+1))
	}

	retry := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := c.once(ctx, endpoint, u.String(), out)
		var se *StatusError
		if err == nil || (errors.As(err, &se) && se.IsRateLimited()) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.retries)+1),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, d time.Duration) {
			retry++
			metrics.UpstreamRetries.WithLabelValues(endpoint).Inc()
			log.Warn().Err(err).Str("endpoint", endpoint).Int("attempt", retry).Dur("delay", d).Msg("timetable rate limited, backing off")
			if c.onRetry != nil {
				c.onRetry(retry, d)
			}
		}),
	)
	if err == nil {
		return nil
	}
	var se *StatusError
	if errors.As(err, &se) && se.IsRateLimited() {
		return fmt.Errorf("%w after %d retries: %w", ErrRateLimited, retry, err)
	}
	return err
}

func (c *Client) once(ctx context.Context, endpoint, target string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "timetable-notifier/1.0")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("timetable %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	metrics.UpstreamRequests.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return ErrNotFound
	case resp.StatusCode >= 300:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("timetable %s: decode: %w", endpoint, err)
	}
	return nil
}
