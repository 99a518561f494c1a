package credpool

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-timetable-notifier/internal/domain"
)

func TestParseRateLimitHeaders(t *testing.T) {
	dur := func(d time.Duration) *time.Duration { return &d }
	num := func(n int) *int { return &n }

	tests := []struct {
		name    string
		headers map[string]string
		want    RateLimitUpdate
	}{
		{name: "missing", headers: nil, want: RateLimitUpdate{}},
		{
			name: "all present",
			headers: map[string]string{
				HeaderRemainingRequests: "14370",
				HeaderRemainingTokens:   "5921",
				HeaderResetRequests:     "2m59.56s",
				HeaderResetTokens:       "790ms",
			},
			want: RateLimitUpdate{
				RemainingRequests: num(14370),
				RemainingTokens:   num(5921),
				ResetRequestsIn:   dur(2*time.Minute + 59560*time.Millisecond),
				ResetTokensIn:     dur(790 * time.Millisecond),
			},
		},
		{
			name:    "hours minutes fractional seconds",
			headers: map[string]string{HeaderResetRequests: "1h2m3.5s"},
			want:    RateLimitUpdate{ResetRequestsIn: dur(time.Hour + 2*time.Minute + 3500*time.Millisecond)},
		},
		{
			name:    "bare seconds",
			headers: map[string]string{HeaderResetTokens: "7.66"},
			want:    RateLimitUpdate{ResetTokensIn: dur(7660 * time.Millisecond)},
		},
		{
			name:    "negative counts clamp to zero",
			headers: map[string]string{HeaderRemainingRequests: "-4", HeaderResetTokens: "-1s"},
			want:    RateLimitUpdate{RemainingRequests: num(0), ResetTokensIn: dur(0)},
		},
		{
			name: "malformed values are ignored",
			headers: map[string]string{
				HeaderRemainingRequests: "lots",
				HeaderRemainingTokens:   "12.5",
				HeaderResetRequests:     "soon",
				HeaderResetTokens:       "1x",
			},
			want: RateLimitUpdate{},
		},
		{
			name:    "whitespace",
			headers: map[string]string{HeaderRemainingTokens: "  42 ", HeaderResetRequests: " "},
			want:    RateLimitUpdate{RemainingTokens: num(42)},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var h http.Header
			if tc.headers != nil {
				h = http.Header{}
				for k, v := range tc.headers {
					h.Set(k, v)
				}
			}
			got := ParseRateLimitHeaders(h)
			require.Equal(t, tc.want, got)
			require.Equal(t, tc.want.Empty(), got.Empty())
		})
	}
}

func TestApply_ResetOnlyMovesForward(t *testing.T) {
	now := time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)
	c := &domain.Credential{ResetRequestsAt: &later, RemainingRequests: 3}

	short := 10 * time.Second
	RateLimitUpdate{ResetRequestsIn: &short, ResetTokensIn: &short}.Apply(c, now)
	require.Equal(t, later, *c.ResetRequestsAt)
	require.Equal(t, now.Add(short), *c.ResetTokensAt)
	require.Equal(t, 3, c.RemainingRequests, "missing count leaves state untouched")

	long := 2 * time.Hour
	RateLimitUpdate{ResetRequestsIn: &long}.Apply(c, now)
	require.Equal(t, now.Add(long), *c.ResetRequestsAt)
}
