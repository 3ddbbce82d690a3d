// Package services defines the request-layer logic over the product catalog.
// This file centralizes service-level error values so that handlers can map
// them to HTTP status codes consistently.
package services

import "errors"

var (
	// ErrProductNotFound indicates that no catalog product has the requested
	// barcode.
	ErrProductNotFound = errors.New("product not found")

	// ErrIndexUnavailable is returned when the service has no index provider.
	ErrIndexUnavailable = errors.New("search index unavailable")
)
