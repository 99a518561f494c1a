// Package handlers defines the error codes of the admin API.
//
// Generic codes mirror HTTP status semantics. Domain codes name failures a
// status alone cannot convey, such as an upstream timetable outage or an
// exhausted credential pool. Clients branch on the code, never on the message.
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeTooLarge         = "payload_too_large"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeUpstreamFailed  = "upstream_failed"
	ErrCodeUpstreamLimited = "upstream_rate_limited"
	ErrCodeNoCredential    = "no_credential"
	ErrCodeNoSource        = "no_credential_source"
	ErrCodeTickFailed      = "tick_failed"
	ErrCodeInferenceFailed = "inference_failed"
	ErrCodeListFailed      = "list_failed"
)
