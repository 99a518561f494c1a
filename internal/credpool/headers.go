package credpool

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tbourn/go-timetable-notifier/internal/domain"
)

// Rate-limit headers sent by OpenAI-compatible providers.
const (
	HeaderRemainingRequests = "X-Ratelimit-Remaining-Requests"
	HeaderRemainingTokens   = "X-Ratelimit-Remaining-Tokens"
	HeaderResetRequests     = "X-Ratelimit-Reset-Requests"
	HeaderResetTokens       = "X-Ratelimit-Reset-Tokens"
)

// RateLimitUpdate is the quota information carried by one response. A nil
// field means the header was missing or malformed and must not change state.
type RateLimitUpdate struct {
	RemainingRequests *int
	RemainingTokens   *int
	ResetRequestsIn   *time.Duration
	ResetTokensIn     *time.Duration
}

// Empty reports whether the update carries no information.
func (u RateLimitUpdate) Empty() bool {
	return u.RemainingRequests == nil && u.RemainingTokens == nil && u.ResetRequestsIn == nil && u.ResetTokensIn == nil
}

// ParseRateLimitHeaders extracts quota information from h. It never fails.
func ParseRateLimitHeaders(h http.Header) RateLimitUpdate {
	var u RateLimitUpdate
	if h == nil {
		return u
	}
	u.RemainingRequests = parseCount(h.Get(HeaderRemainingRequests))
	u.RemainingTokens = parseCount(h.Get(HeaderRemainingTokens))
	u.ResetRequestsIn = parseReset(h.Get(HeaderResetRequests))
	u.ResetTokensIn = parseReset(h.Get(HeaderResetTokens))
	return u
}

func parseCount(v string) *int {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	n = max(n, 0)
	return &n
}

// parseReset accepts Go-style compact durations ("1h2m3.5s", "850ms") and
// bare numbers, which are seconds.
func parseReset(v string) *time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		secs, ferr := strconv.ParseFloat(v, 64)
		if ferr != nil || math.IsNaN(secs) || math.IsInf(secs, 0) {
			return nil
		}
		d = time.Duration(math.Round(secs * float64(time.Second)))
	}
	d = max(d, 0)
	return &d
}

// Apply writes the update into c. Reset timestamps only move forward.
func (u RateLimitUpdate) Apply(c *domain.Credential, now time.Time) {
	if u.RemainingRequests != nil {
		c.RemainingRequests = *u.RemainingRequests
	}
	if u.RemainingTokens != nil {
		c.RemainingTokens = *u.RemainingTokens
	}
	if u.ResetRequestsIn != nil {
		c.ResetRequestsAt = forward(c.ResetRequestsAt, now.Add(*u.ResetRequestsIn))
	}
	if u.ResetTokensIn != nil {
		c.ResetTokensAt = forward(c.ResetTokensAt, now.Add(*u.ResetTokensIn))
	}
}

func forward(cur *time.Time, next time.Time) *time.Time {
	if cur != nil && !next.After(*cur) {
		return cur
	}
	return &next
}
