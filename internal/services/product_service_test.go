package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tbourn/go-proofed-catalog/internal/domain"
	"github.com/tbourn/go-proofed-catalog/internal/search"
)

// ---------- test helpers ----------

func catalog(n int) []domain.Product {
	out := make([]domain.Product, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.Product{
			Barcode:     string(rune('A'+i%26)) + string(rune('a'+i/26)),
			Brand:       "Acme",
			ProductName: "Bar",
		})
	}
	return out
}

func newSvc(products []domain.Product, def, maxLimit int) *ProductService {
	return NewProductService(search.NewStatic(search.Build(products)), def, maxLimit)
}

// ---------- Search ----------

func TestProductService_Search_ShortQueryIsEmptyNotNil(t *testing.T) {
	s := newSvc(catalog(3), 0, 0)
	for _, q := range []string{"", " ", "b", " b "} {
		out, err := s.Search(context.Background(), q, 5)
		if err != nil {
			t.Fatalf("Search(%q): unexpected error %v", q, err)
		}
		if out == nil || len(out) != 0 {
			t.Fatalf("Search(%q): expected empty non-nil slice, got %#v", q, out)
		}
	}
}

func TestProductService_Search_LimitClamping(t *testing.T) {
	s := newSvc(catalog(80), 7, 25)

	cases := []struct {
		limit, want int
	}{
		{0, 7},
		{-3, 7},
		{3, 3},
		{25, 25},
		{1000, 25},
	}
	for _, tc := range cases {
		out, err := s.Search(context.Background(), "bar", tc.limit)
		if err != nil {
			t.Fatalf("Search(limit=%d): %v", tc.limit, err)
		}
		if len(out) != tc.want {
			t.Fatalf("Search(limit=%d): want %d results, got %d", tc.limit, tc.want, len(out))
		}
	}
}

func TestProductService_EffectiveLimit(t *testing.T) {
	s := newSvc(nil, 7, 25)
	cases := map[int]int{-3: 7, 0: 7, 1: 1, 7: 7, 25: 25, 26: 25, 500: 25}
	for in, want := range cases {
		if got := s.EffectiveLimit(in); got != want {
			t.Fatalf("EffectiveLimit(%d) = %d; want %d", in, got, want)
		}
	}

	// zero-configured service falls back to 10 / 50
	z := &ProductService{}
	if got := z.EffectiveLimit(0); got != 10 {
		t.Fatalf("default = %d; want 10", got)
	}
	if got := z.EffectiveLimit(1000); got != 50 {
		t.Fatalf("cap = %d; want 50", got)
	}
}

func TestProductService_Search_ZeroLimitsUseDefaults(t *testing.T) {
	s := &ProductService{Provider: search.NewStatic(search.Build(catalog(80)))}

	out, _ := s.Search(context.Background(), "acme", 0)
	if len(out) != 10 {
		t.Fatalf("expected default limit 10, got %d", len(out))
	}
	out, _ = s.Search(context.Background(), "acme", 500)
	if len(out) != 50 {
		t.Fatalf("expected max limit 50, got %d", len(out))
	}
}

func TestProductService_Search_Metrics(t *testing.T) {
	s := newSvc(catalog(2), 0, 0)

	hits := testutil.ToFloat64(searchReqs.WithLabelValues("hit"))
	empties := testutil.ToFloat64(searchReqs.WithLabelValues("empty"))

	_, _ = s.Search(context.Background(), "bar", 10)
	_, _ = s.Search(context.Background(), "zzz", 10)
	_, _ = s.Search(context.Background(), "b", 10)

	if got := testutil.ToFloat64(searchReqs.WithLabelValues("hit")); got != hits+1 {
		t.Fatalf("hit counter: want %v, got %v", hits+1, got)
	}
	if got := testutil.ToFloat64(searchReqs.WithLabelValues("empty")); got != empties+2 {
		t.Fatalf("empty counter: want %v, got %v", empties+2, got)
	}
}

// ---------- Lookup ----------

func TestProductService_Lookup(t *testing.T) {
	s := newSvc([]domain.Product{{Barcode: "001", ProductName: "Cola"}}, 0, 0)

	hits := testutil.ToFloat64(lookups.WithLabelValues("hit"))
	misses := testutil.ToFloat64(lookups.WithLabelValues("miss"))

	p, err := s.Lookup(context.Background(), " 001 ")
	if err != nil || p == nil || p.ProductName != "Cola" {
		t.Fatalf("expected Cola, got p=%+v err=%v", p, err)
	}

	_, err = s.Lookup(context.Background(), "999")
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
	_, err = s.Lookup(context.Background(), "   ")
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound for blank barcode, got %v", err)
	}

	if got := testutil.ToFloat64(lookups.WithLabelValues("hit")); got != hits+1 {
		t.Fatalf("hit counter: want %v, got %v", hits+1, got)
	}
	if got := testutil.ToFloat64(lookups.WithLabelValues("miss")); got != misses+2 {
		t.Fatalf("miss counter: want %v, got %v", misses+2, got)
	}
}

// ---------- Stats / provider ----------

func TestProductService_Stats(t *testing.T) {
	s := newSvc(catalog(4), 0, 0)
	st, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Records != 4 || st.Terms == 0 || st.Version == "" {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestProductService_NoProvider(t *testing.T) {
	var s ProductService
	if _, err := s.Search(context.Background(), "bar", 1); !errors.Is(err, ErrIndexUnavailable) {
		t.Fatalf("Search: expected ErrIndexUnavailable, got %v", err)
	}
	if _, err := s.Lookup(context.Background(), "1"); !errors.Is(err, ErrIndexUnavailable) {
		t.Fatalf("Lookup: expected ErrIndexUnavailable, got %v", err)
	}
	if _, err := s.Stats(context.Background()); !errors.Is(err, ErrIndexUnavailable) {
		t.Fatalf("Stats: expected ErrIndexUnavailable, got %v", err)
	}
}

func TestProductService_LazyProviderBuildsOnFirstUse(t *testing.T) {
	var loads atomic.Int32
	lazy := search.NewLazy(func() []domain.Product {
		loads.Add(1)
		return catalog(3)
	})
	s := NewProductService(lazy, 0, 0)

	if lazy.Built() {
		t.Fatalf("index should not be built before first request")
	}
	if _, err := s.Search(context.Background(), "bar", 0); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if _, err := s.Lookup(context.Background(), "Aa"); err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !lazy.Built() || loads.Load() != 1 {
		t.Fatalf("expected exactly one build, built=%v loads=%d", lazy.Built(), loads.Load())
	}
}
