// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP
// responses via the `fail()` helper. These codes give clients a stable,
// machine-readable taxonomy that supplements human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless noted.
//   - Generic codes (bad_request, unauthorized) mirror HTTP status semantics.
//   - Domain-specific codes (upstream_error, tts_unavailable) cover business
//     failures a status alone cannot convey.
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeUpstream         = "upstream_error"
	ErrCodeTTSUnavailable   = "tts_unavailable"
	ErrCodeBroadcastFailed  = "broadcast_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
