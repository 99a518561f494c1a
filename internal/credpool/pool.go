// Package credpool manages a pool of rate-limited inference API keys.
//
// The pool keeps the last provider-reported quota of every key in memory,
// selects the least constrained key per call and persists every update
// through a Store. Which keys are active is decided only by reconciling the
// pool against a configured Source; health checks are diagnostics and never
// flip a key's active flag.
package credpool

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/go-timetable-notifier/internal/domain"
	"github.com/tbourn/go-timetable-notifier/internal/metrics"
)

// Defaults applied by NewPool.
const (
	DefaultMinTokensFloor   = 500
	DefaultRequestQuota     = 14400
	DefaultTokenQuota       = 6000
	DefaultProbeConcurrency = 4
	minSecretLen            = 8
)

// Store persists credentials.
type Store interface {
	ListCredentials(ctx context.Context) ([]domain.Credential, error)
	CreateCredential(ctx context.Context, c *domain.Credential) error
	SaveCredential(ctx context.Context, c *domain.Credential) error
	SetCredentialsActive(ctx context.Context, ids []string, active bool) error
}

// Options configures a Pool.
type Options struct {
	MinTokensFloor   int
	DefaultRequests  int
	DefaultTokens    int
	ProbeConcurrency int
	Now              func() time.Time
	Prober           Prober
	Source           Source
}

// Usage is the token accounting of one successful call.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

// HealthResult is the diagnostic outcome for one active credential.
type HealthResult struct {
	ID     string `json:"id"`
	Masked string `json:"masked"`
	OK     bool   `json:"ok"`
	Status int    `json:"status"`
	Error  string `json:"error,omitempty"`
}

// AddResult summarises AddCredentials.
type AddResult struct {
	Added   int      `json:"added"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// PoolStats is a point-in-time summary of the pool.
type PoolStats struct {
	TotalKeys     int        `json:"total_keys"`
	ActiveKeys    int        `json:"active_keys"`
	LimitedKeys   int        `json:"limited_keys"`
	TotalTokens   int64      `json:"total_tokens"`
	TotalRequests int64      `json:"total_requests"`
	SoonestReset  *time.Time `json:"soonest_reset,omitempty"`
}

// Pool is safe for concurrent use.
type Pool struct {
	store Store
	opts  Options

	mu    sync.Mutex
	creds map[string]*domain.Credential
	order []string
}

// NewPool returns an empty pool; call Load to populate it from store.
func NewPool(store Store, opts Options) *Pool {
	if opts.MinTokensFloor < 0 {
		opts.MinTokensFloor = 0
	}
	if opts.DefaultRequests <= 0 {
		opts.DefaultRequests = DefaultRequestQuota
	}
	if opts.DefaultTokens <= 0 {
		opts.DefaultTokens = DefaultTokenQuota
	}
	if opts.ProbeConcurrency < 1 {
		opts.ProbeConcurrency = DefaultProbeConcurrency
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pool{store: store, opts: opts, creds: make(map[string]*domain.Credential)}
}

// Load replaces the in-memory state with the stored credentials.
func (p *Pool) Load(ctx context.Context) error {
	list, err := p.store.ListCredentials(ctx)
	if err != nil {
		return fmt.Errorf("credpool: load: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.creds = make(map[string]*domain.Credential, len(list))
	p.order = p.order[:0]
	for i := range list {
		c := list[i]
		p.creds[c.ID] = &c
		p.order = append(p.order, c.ID)
	}
	return nil
}

// Select returns a copy of the credential to use for the next call.
//
// Among active credentials that are not exhausted, the one with the most
// remaining requests wins. When every active credential is exhausted, the one
// that becomes usable first is returned. ErrNoCredentialAvailable is returned
// only when no credential is active.
func (p *Pool) Select() (domain.Credential, error) {
	now := p.opts.Now()
	p.mu.Lock()
	defer p.mu.Unlock()

	var best, soonest *domain.Credential
	var soonestAt time.Time
	for _, id := range p.order {
		c := p.creds[id]
		if !c.IsActive {
			continue
		}
		if p.available(c, now) {
			if best == nil || c.RemainingRequests > best.RemainingRequests {
				best = c
			}
			continue
		}
		at := usableAt(c)
		if soonest == nil || at.Before(soonestAt) {
			soonest, soonestAt = c, at
		}
	}
	switch {
	case best != nil:
		return *best, nil
	case soonest != nil:
		return *soonest, nil
	default:
		return domain.Credential{}, ErrNoCredentialAvailable
	}
}

// available reports whether c can serve a call now. A missing reset
// timestamp counts as already passed.
func (p *Pool) available(c *domain.Credential, now time.Time) bool {
	requestsOK := c.RemainingRequests > 0 || passed(c.ResetRequestsAt, now)
	tokensOK := c.RemainingTokens > p.opts.MinTokensFloor || passed(c.ResetTokensAt, now)
	return requestsOK && tokensOK
}

func passed(t *time.Time, now time.Time) bool { return t == nil || !t.After(now) }

// usableAt is the later of the two reset timestamps.
func usableAt(c *domain.Credential) time.Time {
	var at time.Time
	if c.ResetRequestsAt != nil {
		at = *c.ResetRequestsAt
	}
	if c.ResetTokensAt != nil && c.ResetTokensAt.After(at) {
		at = *c.ResetTokensAt
	}
	return at
}

// ReportUsage records a successful call made with credential id.
func (p *Pool) ReportUsage(ctx context.Context, id string, h http.Header, usage *Usage) error {
	now := p.opts.Now()
	upd := ParseRateLimitHeaders(h)
	snap, err := p.mutate(id, func(c *domain.Credential) {
		upd.Apply(c, now)
		c.TotalRequests++
		if usage != nil {
			c.TotalTokensUsed += usage.TotalTokens
		}
		c.LastUsedAt = &now
		c.LastStatus = http.StatusOK
		c.LastError = ""
	})
	if err != nil {
		return err
	}
	return p.persist(ctx, snap)
}

// ReportError records a failed call made with credential id. A 429 marks the
// request quota as spent so that Select prefers another key until reset.
func (p *Pool) ReportError(ctx context.Context, id string, status int, h http.Header, callErr error) error {
	now := p.opts.Now()
	upd := ParseRateLimitHeaders(h)
	snap, err := p.mutate(id, func(c *domain.Credential) {
		upd.Apply(c, now)
		if status == http.StatusTooManyRequests {
			c.RemainingRequests = 0
			if c.ResetRequestsAt == nil || !c.ResetRequestsAt.After(now) {
				// No usable reset header; back off for a minute.
				c.ResetRequestsAt = forward(c.ResetRequestsAt, now.Add(time.Minute))
			}
		}
		c.TotalRequests++
		c.LastUsedAt = &now
		c.LastStatus = status
		if callErr != nil {
			c.LastError = callErr.Error()
		}
	})
	if err != nil {
		return err
	}
	return p.persist(ctx, snap)
}

func (p *Pool) mutate(id string, fn func(c *domain.Credential)) (domain.Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.creds[id]
	if !ok {
		return domain.Credential{}, ErrUnknownCredential
	}
	fn(c)
	return *c, nil
}

func (p *Pool) persist(ctx context.Context, c domain.Credential) error {
	if err := p.store.SaveCredential(ctx, &c); err != nil {
		log.Error().Err(err).Str("credential_id", c.ID).Msg("persist credential failed")
		return fmt.Errorf("credpool: save %s: %w", c.ID, err)
	}
	return nil
}

// HealthCheckAll probes every active credential with bounded parallelism.
// Quota headers from the probe are applied, the active flag is left alone.
func (p *Pool) HealthCheckAll(ctx context.Context) ([]HealthResult, error) {
	if p.opts.Prober == nil {
		return nil, fmt.Errorf("credpool: no prober configured")
	}
	p.mu.Lock()
	var targets []domain.Credential
	for _, id := range p.order {
		if c := p.creds[id]; c.IsActive {
			targets = append(targets, *c)
		}
	}
	p.mu.Unlock()

	results := make([]HealthResult, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.ProbeConcurrency)
	for i, c := range targets {
		g.Go(func() error {
			res, err := p.opts.Prober.Probe(gctx, c.Secret)
			hr := HealthResult{ID: c.ID, Masked: Mask(c.Secret), OK: err == nil, Status: res.Status}
			now := p.opts.Now()
			upd := ParseRateLimitHeaders(res.Header)
			snap, merr := p.mutate(c.ID, func(cur *domain.Credential) {
				upd.Apply(cur, now)
				cur.LastStatus = res.Status
				cur.LastError = ""
				if err != nil {
					cur.LastError = err.Error()
				}
			})
			if err != nil {
				hr.Error = err.Error()
				log.Warn().Err(err).Str("credential_id", c.ID).Str("key", hr.Masked).Int("status", res.Status).Msg("credential probe failed")
			}
			if merr == nil {
				_ = p.persist(gctx, snap)
			}
			results[i] = hr
			return nil
		})
	}
	_ = g.Wait()
	return results, ctx.Err()
}

// AddCredentials adds new secrets as active keys with the default quota.
// Secrets already in the pool are skipped.
func (p *Pool) AddCredentials(ctx context.Context, raw []string) AddResult {
	var res AddResult
	seen := make(map[string]struct{}, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup || p.hasSecret(s) {
			res.Skipped++
			continue
		}
		seen[s] = struct{}{}
		if err := validSecret(s); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", Mask(s), err))
			continue
		}
		if _, err := p.create(ctx, s); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", Mask(s), err))
			continue
		}
		res.Added++
	}
	return res
}

func validSecret(s string) error {
	if len(s) < minSecretLen || strings.ContainsAny(s, " \t\r\n") {
		return ErrInvalidCredential
	}
	return nil
}

func (p *Pool) hasSecret(s string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.creds {
		if c.Secret == s {
			return true
		}
	}
	return false
}

func (p *Pool) create(ctx context.Context, secret string) (*domain.Credential, error) {
	c := &domain.Credential{
		ID:                uuid.NewString(),
		Secret:            secret,
		IsActive:          true,
		RemainingRequests: p.opts.DefaultRequests,
		RemainingTokens:   p.opts.DefaultTokens,
	}
	if err := p.store.CreateCredential(ctx, c); err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.creds[c.ID] = c
	p.order = append(p.order, c.ID)
	p.mu.Unlock()
	log.Info().Str("credential_id", c.ID).Str("key", Mask(secret)).Msg("credential added")
	return c, nil
}

// SyncFromSource reconciles the pool against the configured source and
// returns the applied plan. Repeated syncs against the same source are no-ops.
func (p *Pool) SyncFromSource(ctx context.Context) (Plan, error) {
	if p.opts.Source == nil {
		return Plan{}, ErrNoSource
	}
	keys, err := p.opts.Source.Keys(ctx)
	if err != nil {
		return Plan{}, err
	}

	p.mu.Lock()
	stored := make([]domain.Credential, 0, len(p.order))
	for _, id := range p.order {
		stored = append(stored, *p.creds[id])
	}
	p.mu.Unlock()

	plan := Reconcile(keys, stored)
	for _, s := range plan.ToAdd {
		if _, err := p.create(ctx, s); err != nil {
			return plan, fmt.Errorf("credpool: add %s: %w", Mask(s), err)
		}
	}
	if err := p.setActive(ctx, plan.ToDeactivate, false); err != nil {
		return plan, err
	}
	if err := p.setActive(ctx, plan.ToReactivate, true); err != nil {
		return plan, err
	}
	if !plan.Empty() {
		log.Info().Int("added", len(plan.ToAdd)).Int("deactivated", len(plan.ToDeactivate)).
			Int("reactivated", len(plan.ToReactivate)).Msg("credential pool synced")
	}
	return plan, nil
}

func (p *Pool) setActive(ctx context.Context, ids []string, active bool) error {
	if len(ids) == 0 {
		return nil
	}
	if err := p.store.SetCredentialsActive(ctx, ids, active); err != nil {
		return fmt.Errorf("credpool: set active=%t: %w", active, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range ids {
		if c, ok := p.creds[id]; ok {
			c.IsActive = active
		}
	}
	return nil
}

// Stats summarises the pool and refreshes the pool gauges.
func (p *Pool) Stats() PoolStats {
	now := p.opts.Now()
	p.mu.Lock()
	var st PoolStats
	for _, id := range p.order {
		c := p.creds[id]
		st.TotalKeys++
		st.TotalTokens += c.TotalTokensUsed
		st.TotalRequests += c.TotalRequests
		if !c.IsActive {
			continue
		}
		st.ActiveKeys++
		if p.available(c, now) {
			continue
		}
		st.LimitedKeys++
		at := usableAt(c)
		if st.SoonestReset == nil || at.Before(*st.SoonestReset) {
			st.SoonestReset = &at
		}
	}
	p.mu.Unlock()

	metrics.PoolKeys.WithLabelValues("total").Set(float64(st.TotalKeys))
	metrics.PoolKeys.WithLabelValues("active").Set(float64(st.ActiveKeys))
	metrics.PoolKeys.WithLabelValues("limited").Set(float64(st.LimitedKeys))
	return st
}

// Credentials returns copies of every credential in insertion order.
func (p *Pool) Credentials() []domain.Credential {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.Credential, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, *p.creds[id])
	}
	return out
}
