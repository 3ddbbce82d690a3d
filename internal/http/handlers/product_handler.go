// Product HTTP handlers.
//
// This file exposes the read-only catalog endpoints:
//   - GET /products/search?q=&limit=   (ranked typeahead search)
//   - GET /products/{barcode}          (exact barcode lookup)
//   - GET /catalog/stats               (size and version of the served index)
//
// Handlers are transport-thin: they parse query parameters, delegate to the
// ProductService, and implement conditional responses (weak ETag keyed by
// the catalog version) for search results.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-proofed-catalog/internal/domain"
	"github.com/tbourn/go-proofed-catalog/internal/search"
	"github.com/tbourn/go-proofed-catalog/internal/services"
	"github.com/tbourn/go-proofed-catalog/internal/utils"
)

//
// Service contract
//

// ProductService defines the catalog operations the handlers depend on.
//
// Implementations must be safe for concurrent use.
type ProductService interface {
	// Search returns up to limit products matching query, best first.
	Search(ctx context.Context, query string, limit int) ([]domain.Product, error)
	// Lookup returns the product with the given barcode.
	Lookup(ctx context.Context, barcode string) (*domain.Product, error)
	// Stats describes the index being served.
	Stats(ctx context.Context) (search.Stats, error)
	// EffectiveLimit is the result cap Search applies for a requested limit.
	EffectiveLimit(limit int) int
}

// Handlers aggregates the HTTP handlers for the public API.
type Handlers struct {
	products ProductService
}

// New constructs a Handlers instance bound to the given service.
func New(products ProductService) *Handlers {
	return &Handlers{products: products}
}

//
// DTOs
//

// SearchResponse is the JSON envelope for a product search.
type SearchResponse struct {
	// Query echoes the raw q parameter.
	Query string `json:"query" example:"choc bar"`
	// Count is len(Results).
	Count int `json:"count" example:"1"`
	// Results are ordered best match first.
	Results []domain.Product `json:"results"`
}

//
// Handlers
//

// SearchProducts godoc
// @ID          searchProducts
// @Summary     Search products
// @Description Ranked typeahead search over brand and product name. Every whitespace-separated
// @Description term of q must match (prefix match on words). Queries shorter than two characters
// @Description return an empty list. Responses carry a weak ETag; send it back in If-None-Match
// @Description to receive 304 while the catalog is unchanged.
// @Tags        Products
// @Produce     json
//
// @Param       q      query  string  false "Search text"      example(choc bar)
// @Param       limit  query  int     false "Maximum results"  minimum(1) maximum(50) default(10)
//
// @Success     200  {object}  handlers.SearchResponse
// @Success     304  "Not modified"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Failure     503  {object}  handlers.ErrorResponse  "Index unavailable"
// @Router      /products/search [get]
func (h *Handlers) SearchProducts(c *gin.Context) {
	ctx := c.Request.Context()
	q := c.Query("q")
	limit := utils.AtoiDefault(c.Query("limit"), 0)

	// ETag pre-check (best effort).
	if st, err := h.products.Stats(ctx); err == nil {
		etag := searchETag(st.Version, h.products.EffectiveLimit(limit), q)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			notModified(c)
			return
		}
	}

	results, err := h.products.Search(ctx, q, limit)
	if err != nil {
		if errors.Is(err, services.ErrIndexUnavailable) {
			fail(c, http.StatusServiceUnavailable, ErrCodeIndexUnavailable, "search index unavailable")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeSearchFailed, err.Error())
		return
	}
	if results == nil {
		results = []domain.Product{}
	}

	ok(c, http.StatusOK, SearchResponse{Query: q, Count: len(results), Results: results})
}

// GetProduct godoc
// @ID          getProduct
// @Summary     Look up a product by barcode
// @Description Exact, case-sensitive match on the stored barcode. Surrounding whitespace is ignored.
// @Tags        Products
// @Produce     json
//
// @Param       barcode  path  string  true  "Product barcode"  example(5449000000996)
//
// @Success     200  {object}  domain.Product
// @Failure     404  {object}  handlers.ErrorResponse  "Product not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Failure     503  {object}  handlers.ErrorResponse  "Index unavailable"
// @Router      /products/{barcode} [get]
func (h *Handlers) GetProduct(c *gin.Context) {
	p, err := h.products.Lookup(c.Request.Context(), c.Param("barcode"))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrProductNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "product not found")
		case errors.Is(err, services.ErrIndexUnavailable):
			fail(c, http.StatusServiceUnavailable, ErrCodeIndexUnavailable, "search index unavailable")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeLookupFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, p)
}

// CatalogStats godoc
// @ID          catalogStats
// @Summary     Catalog index statistics
// @Description Number of indexed products and prefix terms, and the catalog version fingerprint.
// @Tags        Catalog
// @Produce     json
//
// @Success     200  {object}  search.Stats
// @Failure     503  {object}  handlers.ErrorResponse  "Index unavailable"
// @Router      /catalog/stats [get]
func (h *Handlers) CatalogStats(c *gin.Context) {
	st, err := h.products.Stats(c.Request.Context())
	if err != nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeIndexUnavailable, "search index unavailable")
		return
	}
	ok(c, http.StatusOK, st)
}

//
// Helpers
//

// searchETag derives a weak validator from the catalog version, the effective
// limit and the normalized query text.
func searchETag(version string, limit int, q string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(q))))
	return fmt.Sprintf(`W/"products:%s:%d:%08x"`, version, limit, h.Sum32())
}
