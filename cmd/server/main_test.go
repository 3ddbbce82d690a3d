package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tbourn/go-proofed-catalog/internal/catalog"
	"github.com/tbourn/go-proofed-catalog/internal/config"
	"github.com/tbourn/go-proofed-catalog/internal/search"
)

const catalogJSON = `[
 {"barcode":"111","brand":"Acme","product_name":"Dark Chocolate"},
 {"barcode":"222","brand":"Acme","productName":"Milk Chocolate"}
]`

func writeCatalog(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "products.json")
	if err := os.WriteFile(p, []byte(catalogJSON), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return p
}

func TestNewProvider_EagerBuildsUpFront(t *testing.T) {
	cfg := config.Config{Search: config.SearchConfig{DefaultLimit: 10, MaxLimit: 50}}
	cfg.Catalog.Eager = true
	loader := &catalog.Loader{Source: catalog.Decoded(catalog.FileSource{Path: writeCatalog(t)})}

	p := newProvider(context.Background(), cfg, loader)
	if _, ok := p.(*search.Static); !ok {
		t.Fatalf("eager provider should be *search.Static, got %T", p)
	}
	if n := p.Index().Len(); n != 2 {
		t.Fatalf("Len = %d; want 2", n)
	}
}

func TestNewProvider_LazyDefersLoad(t *testing.T) {
	cfg := config.Config{Search: config.SearchConfig{DefaultLimit: 1, MaxLimit: 50}}
	loader := &catalog.Loader{Source: catalog.Decoded(catalog.FileSource{Path: writeCatalog(t)})}

	ctx, cancel := context.WithCancel(context.Background())
	p := newProvider(ctx, cfg, loader)
	lazy, ok := p.(*search.Lazy)
	if !ok {
		t.Fatalf("default provider should be *search.Lazy, got %T", p)
	}
	if lazy.Built() {
		t.Fatalf("lazy provider built before first use")
	}

	// Cancelling the startup context must not break the deferred load.
	cancel()
	ix := lazy.Index()
	if ix.Len() != 2 {
		t.Fatalf("Len = %d; want 2", ix.Len())
	}
	if got := ix.Search("chocolate", 0); len(got) != 1 {
		t.Fatalf("default limit from config not applied: %d results", len(got))
	}
}

func TestNewProvider_MissingCatalogServesEmpty(t *testing.T) {
	cfg := config.Config{Search: config.SearchConfig{DefaultLimit: 10, MaxLimit: 50}}
	cfg.Catalog.Eager = true
	missing := filepath.Join(t.TempDir(), "nope.json")
	loader := &catalog.Loader{Source: catalog.Decoded(catalog.FileSource{Path: missing})}

	p := newProvider(context.Background(), cfg, loader)
	if n := p.Index().Len(); n != 0 {
		t.Fatalf("Len = %d; want 0", n)
	}
}

func unreachableDBConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Port:              "0",
		ReadTimeout:       time.Second,
		ReadHeaderTimeout: time.Second,
		WriteTimeout:      time.Second,
		IdleTimeout:       time.Second,
		MaxHeaderBytes:    1 << 20,
		GinMode:           "test",
		APIBasePath:       "/api/v1",
		DBPath:            filepath.Join(t.TempDir(), "missing-dir", "app.db"),
		Catalog: config.CatalogConfig{
			Source:      config.SourceDB,
			LoadTimeout: time.Second,
			Eager:       true,
		},
		Search:    config.SearchConfig{DefaultLimit: 10, MaxLimit: 50},
		RateRPS:   10,
		RateBurst: 10,
		OTEL:      config.OTELConfig{ServiceName: "catalog-test"},
	}
}

func TestOpenCatalog_UnreachableDatabaseServesEmpty(t *testing.T) {
	cfg := unreachableDBConfig(t)

	src, closeFn := openCatalog(context.Background(), cfg)
	defer closeFn()
	if src == nil {
		t.Fatalf("expected a source even when the database is unreachable")
	}
	if _, err := src.Products(context.Background()); err == nil {
		t.Fatalf("expected the unavailable source to report its setup error")
	}

	loader := &catalog.Loader{Source: src, Timeout: cfg.Catalog.LoadTimeout}
	p := newProvider(context.Background(), cfg, loader)
	if n := p.Index().Len(); n != 0 {
		t.Fatalf("Len = %d; want 0", n)
	}
	if got := p.Index().Search("chocolate", 5); len(got) != 0 {
		t.Fatalf("expected no results from the empty index, got %d", len(got))
	}
}

func TestRun_UnreachableDatabaseDoesNotFail(t *testing.T) {
	cfg := unreachableDBConfig(t)

	// Cancelled up front: run starts, serves the empty index and shuts down.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := run(ctx, cfg); err != nil {
		t.Fatalf("run returned %v; want nil with an empty catalog", err)
	}
}

func TestOpenCatalog_DatabaseSource(t *testing.T) {
	cfg := unreachableDBConfig(t)
	cfg.DBPath = filepath.Join(t.TempDir(), "app.db")

	src, closeFn := openCatalog(context.Background(), cfg)
	defer closeFn()
	if src.Name() != "db:products" {
		t.Fatalf("Name = %q; want db:products", src.Name())
	}
	got, err := src.Products(context.Background())
	if err != nil {
		t.Fatalf("Products: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("fresh database should hold no products, got %d", len(got))
	}
}
