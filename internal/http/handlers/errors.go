// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// These codes give clients a stable, machine-readable error taxonomy next to
// the human-readable message of each ErrorResponse.
//
// Conventions:
//   - Codes are lowercase snake_case.
//   - Generic codes mirror common HTTP status semantics.
//   - Domain-specific codes are reserved for failures the status alone cannot
//     convey.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "not_found",
//	  "message": "product not found"
//	}
package handlers

import "github.com/tbourn/go-proofed-catalog/internal/http/middleware"

const (
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Written by middleware (rate limiter, panic recovery).
	ErrCodeRateLimited = middleware.CodeTooManyRequests
	ErrCodeInternal    = middleware.CodeInternal

	// Domain-specific:
	ErrCodeSearchFailed     = "search_failed"
	ErrCodeLookupFailed     = "lookup_failed"
	ErrCodeIndexUnavailable = "index_unavailable"
)
