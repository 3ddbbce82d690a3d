// Command server runs the product catalog HTTP API.
//
// @title       Proofed Catalog API
// @version     1.0
// @description Read-only product catalog: typeahead search and barcode lookup.
// @BasePath    /api/v1
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tbourn/go-proofed-catalog/internal/catalog"
	"github.com/tbourn/go-proofed-catalog/internal/config"
	httpapi "github.com/tbourn/go-proofed-catalog/internal/http"
	"github.com/tbourn/go-proofed-catalog/internal/observability"
	"github.com/tbourn/go-proofed-catalog/internal/repo"
	"github.com/tbourn/go-proofed-catalog/internal/search"
	"github.com/tbourn/go-proofed-catalog/internal/services"
	"github.com/tbourn/go-proofed-catalog/internal/sysutil"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.SetupLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg config.Config) error {
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	src, closeCatalog := openCatalog(ctx, cfg)
	defer closeCatalog()
	provider := newProvider(ctx, cfg, &catalog.Loader{Source: src, Timeout: cfg.Catalog.LoadTimeout})
	svc := services.NewProductService(provider, cfg.Search.DefaultLimit, cfg.Search.MaxLimit)

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, svc, cfg)

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().
			Str("addr", srv.Addr).
			Str("catalog_source", src.Name()).
			Bool("eager", cfg.Catalog.Eager).
			Str("version", version).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info().Msg("shutting down")
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// openCatalog resolves the configured catalog source. Setup failures (an
// unreachable database, a broken S3 configuration) do not stop the server:
// they surface as an unavailable source and the index is served empty.
func openCatalog(ctx context.Context, cfg config.Config) (catalog.ProductSource, func()) {
	closeFn := func() {}

	var db *gorm.DB
	if cfg.Catalog.Source == config.SourceDB {
		var err error
		if db, err = repo.OpenSQLite(cfg.DBPath); err == nil {
			err = repo.AutoMigrate(db)
			if sqlDB, derr := db.DB(); derr == nil {
				closeFn = func() { _ = sqlDB.Close() }
			}
		}
		if err != nil {
			log.Warn().Err(err).Str("db_path", cfg.DBPath).Msg("catalog database unavailable")
			return catalog.Unavailable("db:products", err), closeFn
		}
	}

	src, err := catalog.New(ctx, cfg.Catalog, db)
	if err != nil {
		log.Warn().Err(err).Str("catalog_source", cfg.Catalog.Source).Msg("catalog source unavailable")
		return catalog.Unavailable(cfg.Catalog.Source, err), closeFn
	}
	return src, closeFn
}

// newProvider builds the index now when CATALOG_EAGER is set, otherwise on
// the first request that needs it.
func newProvider(ctx context.Context, cfg config.Config, loader *catalog.Loader) search.Provider {
	opts := []search.Option{search.WithDefaultLimit(cfg.Search.DefaultLimit)}
	if cfg.Catalog.Eager {
		start := time.Now()
		ix := search.Build(loader.Load(ctx), opts...)
		log.Info().
			Int("records", ix.Len()).
			Int("terms", ix.Terms()).
			Dur("took", time.Since(start)).
			Msg("search index built")
		return search.NewStatic(ix)
	}
	return search.NewLazy(loader.Func(context.WithoutCancel(ctx)), opts...)
}
