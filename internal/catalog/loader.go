package catalog

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-proofed-catalog/internal/domain"
)

// Loader reads a ProductSource once per call and never fails: when the
// source is unavailable or malformed it logs a warning and returns an empty
// catalog, so the index is built empty instead of taking the process down.
type Loader struct {
	Source  ProductSource
	Timeout time.Duration // zero: no deadline beyond ctx
}

// Load returns the catalog records, or an empty slice on any failure.
func (l *Loader) Load(ctx context.Context) []domain.Product {
	if l == nil || l.Source == nil {
		log.Warn().Msg("catalog: no source configured; serving an empty catalog")
		return []domain.Product{}
	}
	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}

	start := time.Now()
	products, err := l.Source.Products(ctx)
	if err != nil {
		log.Warn().
			Err(err).
			Str("source", l.Source.Name()).
			Msg("catalog: load failed; serving an empty catalog")
		return []domain.Product{}
	}
	if products == nil {
		products = []domain.Product{}
	}

	log.Info().
		Str("source", l.Source.Name()).
		Int("products", len(products)).
		Dur("took", time.Since(start)).
		Msg("catalog: loaded")
	return products
}

// Func binds Load to ctx, producing the loader shape expected by
// search.NewLazy.
func (l *Loader) Func(ctx context.Context) func() []domain.Product {
	return func() []domain.Product { return l.Load(ctx) }
}
