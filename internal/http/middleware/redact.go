package middleware

import (
	"net/http"
	"regexp"
	"strings"
)

// RedactOptions configures secret scrubbing in Logger.
type RedactOptions struct {
	// MaskHeaders are extra header names whose values are replaced with
	// "[REDACTED]". Authorization, Cookie and X-Admin-Token are always masked.
	MaskHeaders []string
	// LogHeaders adds the scrubbed request headers to the access log.
	LogHeaders bool
}

// Secret shapes that may show up in query strings and header values: bearer
// tokens, OpenAI-style API keys, and Telegram bot tokens inside bot API paths.
var (
	bearerRE   = regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._~+/=-]+`)
	apiKeyRE   = regexp.MustCompile(`\b(?:sk|gsk|xai)[-_][A-Za-z0-9_-]{8,}\b`)
	botTokenRE = regexp.MustCompile(`\d{6,12}:[A-Za-z0-9_-]{30,}`)
	secretQSRE = regexp.MustCompile(`(?i)\b((?:token|key|api_key|secret|password)=)[^&\s]+`)
)

// RedactSecrets masks credential-like substrings of s.
func RedactSecrets(s string) string {
	if s == "" {
		return s
	}
	s = bearerRE.ReplaceAllString(s, "Bearer [REDACTED]")
	s = botTokenRE.ReplaceAllString(s, "[REDACTED:bot_token]")
	s = apiKeyRE.ReplaceAllString(s, "[REDACTED:key]")
	s = secretQSRE.ReplaceAllString(s, "${1}[REDACTED]")
	return s
}

type redactor struct {
	mask       map[string]struct{}
	logHeaders bool
}

func newRedactor(o RedactOptions) redactor {
	mask := map[string]struct{}{
		"authorization":   {},
		"cookie":          {},
		"set-cookie":      {},
		"x-admin-token":   {},
		"x-forwarded-for": {},
	}
	for _, h := range o.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			mask[h] = struct{}{}
		}
	}
	return redactor{mask: mask, logHeaders: o.LogHeaders}
}

func (r redactor) redact(s string) string { return RedactSecrets(s) }

func (r redactor) headers(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vv := range h {
		if _, ok := r.mask[strings.ToLower(k)]; ok {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = RedactSecrets(strings.Join(vv, ", "))
	}
	return out
}
