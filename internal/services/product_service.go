// Package services – ProductService
//
// ProductService is the request-layer facade over the in-memory search
// index. It clamps result limits, maps a missing barcode to
// ErrProductNotFound, and records Prometheus metrics. The index itself is
// obtained from a search.Provider on every call, so a lazily built index is
// constructed on the first request that needs it.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// carry the query, limit and result count, or the barcode looked up.
package services

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-proofed-catalog/internal/domain"
	"github.com/tbourn/go-proofed-catalog/internal/search"
	"github.com/tbourn/go-proofed-catalog/internal/utils"
)

const (
	defaultSearchLimit = search.DefaultLimit
	defaultMaxLimit    = 50
)

// ProductService answers product search and barcode lookup requests.
type ProductService struct {
	Provider search.Provider

	// DefaultLimit applies when the caller passes a non-positive limit.
	DefaultLimit int
	// MaxLimit caps any requested limit.
	MaxLimit int
}

// NewProductService wires a service over p with the given limits. Zero
// values fall back to 10 and 50.
func NewProductService(p search.Provider, defaultLimit, maxLimit int) *ProductService {
	return &ProductService{Provider: p, DefaultLimit: defaultLimit, MaxLimit: maxLimit}
}

// Search returns up to limit products matching query, best first. Queries
// too short to search yield an empty, non-nil slice and no error.
func (s *ProductService) Search(ctx context.Context, query string, limit int) ([]domain.Product, error) {
	tr := otel.Tracer("services/ProductService")
	_, span := tr.Start(ctx, "Search",
		trace.WithAttributes(
			attribute.String("search.query", query),
			attribute.Int("search.limit", limit),
		),
	)
	defer span.End()

	ix, err := s.index()
	if err != nil {
		return nil, err
	}

	limit = s.EffectiveLimit(limit)
	out := ix.Search(query, limit)
	if out == nil {
		out = []domain.Product{}
	}

	span.SetAttributes(
		attribute.Int("search.effective_limit", limit),
		attribute.Int("search.results", len(out)),
	)
	if len(out) == 0 {
		searchReqs.WithLabelValues("empty").Inc()
	} else {
		searchReqs.WithLabelValues("hit").Inc()
	}
	searchResults.Observe(float64(len(out)))
	return out, nil
}

// Lookup returns the product with the given barcode or ErrProductNotFound.
func (s *ProductService) Lookup(ctx context.Context, barcode string) (*domain.Product, error) {
	tr := otel.Tracer("services/ProductService")
	_, span := tr.Start(ctx, "Lookup",
		trace.WithAttributes(attribute.String("product.barcode", barcode)),
	)
	defer span.End()

	ix, err := s.index()
	if err != nil {
		return nil, err
	}

	p, ok := ix.GetByBarcode(barcode)
	if !ok {
		lookups.WithLabelValues("miss").Inc()
		return nil, ErrProductNotFound
	}
	lookups.WithLabelValues("hit").Inc()
	return &p, nil
}

// Stats describes the index currently served.
func (s *ProductService) Stats(ctx context.Context) (search.Stats, error) {
	tr := otel.Tracer("services/ProductService")
	_, span := tr.Start(ctx, "Stats")
	defer span.End()

	ix, err := s.index()
	if err != nil {
		return search.Stats{}, err
	}
	return ix.Stats(), nil
}

func (s *ProductService) index() (*search.Index, error) {
	if s == nil || s.Provider == nil {
		return nil, ErrIndexUnavailable
	}
	return s.Provider.Index(), nil
}

// EffectiveLimit maps a requested limit into [1, MaxLimit]; non-positive
// means DefaultLimit. Search applies it to every call.
func (s *ProductService) EffectiveLimit(limit int) int {
	if limit <= 0 {
		limit = s.defaultLimit()
	}
	return utils.Clamp(limit, 1, s.maxLimit())
}

func (s *ProductService) defaultLimit() int {
	if s.DefaultLimit > 0 {
		return s.DefaultLimit
	}
	return defaultSearchLimit
}

func (s *ProductService) maxLimit() int {
	if s.MaxLimit > 0 {
		return s.MaxLimit
	}
	return defaultMaxLimit
}
