// Command catalogctl is an offline tool for catalog payloads.
//
// Usage:
//
//	catalogctl import -in catalog.json[.gz|.zst] [-db app.db]
//	catalogctl search -in catalog.json -q "choc bar" [-limit 10]
//	catalogctl lookup -in catalog.json -barcode 5449000000996
//	catalogctl lookup -db app.db -barcode 5449000000996
//
// -in defaults to CATALOG_PATH; the import -db flag defaults to DB_PATH.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-proofed-catalog/internal/catalog"
	"github.com/tbourn/go-proofed-catalog/internal/domain"
	"github.com/tbourn/go-proofed-catalog/internal/repo"
	"github.com/tbourn/go-proofed-catalog/internal/search"
	"github.com/tbourn/go-proofed-catalog/internal/sysutil"
)

var errUsage = errors.New("usage: catalogctl <import|search|lookup> [flags]")

func main() {
	_ = godotenv.Load()
	sysutil.SetupLogger(os.Stderr, os.Getenv("LOG_LEVEL"), true, "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Error().Err(err).Msg("catalogctl")
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "import":
		return runImport(ctx, args[1:], stdout)
	case "search":
		return runSearch(ctx, args[1:], stdout)
	case "lookup":
		return runLookup(ctx, args[1:], stdout)
	default:
		return fmt.Errorf("unknown command %q: %w", args[0], errUsage)
	}
}

func runImport(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	in := fs.String("in", "", "catalog payload (JSON, optionally gzip/zstd)")
	dbPath := fs.String("db", "", "SQLite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	products, err := readCatalog(ctx, *in)
	if err != nil {
		return err
	}

	db, err := repo.OpenSQLite(sysutil.FirstNonEmpty(*dbPath, os.Getenv("DB_PATH"), "app.db"))
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}

	start := time.Now()
	n, err := repo.ReplaceProducts(ctx, db, products)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	stored, err := repo.CountProducts(ctx, db)
	if err != nil {
		return fmt.Errorf("count: %w", err)
	}
	if stored != int64(n) {
		return fmt.Errorf("import: wrote %d products but the table holds %d", n, stored)
	}
	log.Info().Int("products", n).Dur("took", time.Since(start)).Msg("catalog imported")
	_, err = fmt.Fprintf(stdout, "imported %d products\n", n)
	return err
}

func runSearch(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	in := fs.String("in", "", "catalog payload (JSON, optionally gzip/zstd)")
	q := fs.String("q", "", "query text")
	limit := fs.Int("limit", search.DefaultLimit, "maximum results")
	if err := fs.Parse(args); err != nil {
		return err
	}

	products, err := readCatalog(ctx, *in)
	if err != nil {
		return err
	}
	ix := search.Build(products)

	enc := json.NewEncoder(stdout)
	for _, p := range ix.Search(*q, *limit) {
		if err := enc.Encode(p); err != nil {
			return err
		}
	}
	return nil
}

func runLookup(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("lookup", flag.ContinueOnError)
	in := fs.String("in", "", "catalog payload (JSON, optionally gzip/zstd)")
	dbPath := fs.String("db", "", "look up in this SQLite database instead of a payload")
	barcode := fs.String("barcode", "", "barcode to look up")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		p   *domain.Product
		err error
	)
	if *dbPath != "" {
		p, err = lookupDB(ctx, *dbPath, *barcode)
	} else {
		p, err = lookupPayload(ctx, *in, *barcode)
	}
	if err != nil {
		return err
	}
	return json.NewEncoder(stdout).Encode(p)
}

func lookupPayload(ctx context.Context, in, barcode string) (*domain.Product, error) {
	products, err := readCatalog(ctx, in)
	if err != nil {
		return nil, err
	}
	p, ok := search.Build(products).GetByBarcode(barcode)
	if !ok {
		return nil, fmt.Errorf("barcode %q: %w", barcode, catalog.ErrNotFound)
	}
	return &p, nil
}

// lookupDB queries the products table directly, as the server's db source
// would see it after an import.
func lookupDB(ctx context.Context, path, barcode string) (*domain.Product, error) {
	db, err := repo.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, err
	}

	p, err := repo.GetProductByBarcode(ctx, db, strings.TrimSpace(barcode))
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("barcode %q: %w", barcode, catalog.ErrNotFound)
	}
	return p, err
}

// readCatalog decodes the payload at path. Unlike the server loader, a
// missing or malformed payload is an error here.
func readCatalog(ctx context.Context, path string) ([]domain.Product, error) {
	path = sysutil.FirstNonEmpty(path, os.Getenv("CATALOG_PATH"))
	if path == "" {
		return nil, errors.New("-in is required")
	}
	return catalog.Decoded(catalog.FileSource{Path: path}).Products(ctx)
}
