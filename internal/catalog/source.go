// Package catalog delivers the product catalog to the search index.
//
// A catalog is read from a Source (a byte payload such as a local file or an
// S3 object) and decoded into records, or read directly as records from a
// ProductSource (the SQLite products table). The Loader wraps any of them
// with a timeout and degrades to an empty catalog when the read fails.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"gorm.io/gorm"

	"github.com/tbourn/go-proofed-catalog/internal/config"
	"github.com/tbourn/go-proofed-catalog/internal/domain"
	"github.com/tbourn/go-proofed-catalog/internal/repo"
)

var (
	// ErrNotFound is returned when the catalog payload does not exist.
	ErrNotFound = errors.New("catalog not found")
	// ErrUnknownSource is returned for an unsupported CATALOG_SOURCE value.
	ErrUnknownSource = errors.New("unknown catalog source")
)

// Source yields the raw catalog payload. Callers must close the reader.
type Source interface {
	Name() string
	Open(ctx context.Context) (io.ReadCloser, error)
}

// ProductSource yields decoded catalog records in catalog order.
type ProductSource interface {
	Name() string
	Products(ctx context.Context) ([]domain.Product, error)
}

// ----------------------------------------------------------------------------
// File

// FileSource reads the catalog from a local file.
type FileSource struct {
	Path string
}

func (s FileSource) Name() string { return "file:" + s.Path }

func (s FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", s.Path, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// ----------------------------------------------------------------------------
// Decoded payloads

type decoded struct {
	src Source
}

// Decoded adapts a payload Source into a ProductSource using Decode.
func Decoded(src Source) ProductSource {
	return decoded{src: src}
}

func (d decoded) Name() string { return d.src.Name() }

func (d decoded) Products(ctx context.Context) ([]domain.Product, error) {
	rc, err := d.src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	out, err := Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", d.src.Name(), err)
	}
	return out, nil
}

// ----------------------------------------------------------------------------
// Unavailable

type unavailable struct {
	name string
	err  error
}

// Unavailable returns a ProductSource that always fails with err. A source
// that could not be set up still flows through the Loader, which then serves
// an empty catalog.
func Unavailable(name string, err error) ProductSource {
	return unavailable{name: name, err: err}
}

func (u unavailable) Name() string { return u.name }

func (u unavailable) Products(context.Context) ([]domain.Product, error) {
	return nil, u.err
}

// ----------------------------------------------------------------------------
// Database

// DBSource reads the catalog from the products table.
type DBSource struct {
	DB *gorm.DB
}

func (s DBSource) Name() string { return "db:products" }

func (s DBSource) Products(ctx context.Context) ([]domain.Product, error) {
	return repo.ListProducts(ctx, s.DB)
}

// ----------------------------------------------------------------------------
// Factory

// New returns the ProductSource selected by cfg.Source. db is only used by
// the db source and may be nil otherwise.
func New(ctx context.Context, cfg config.CatalogConfig, db *gorm.DB) (ProductSource, error) {
	switch cfg.Source {
	case config.SourceFile:
		return Decoded(FileSource{Path: cfg.Path}), nil
	case config.SourceS3:
		client, err := NewS3Client(ctx, cfg.Region)
		if err != nil {
			return nil, fmt.Errorf("s3 client: %w", err)
		}
		return Decoded(&S3Source{Client: client, Bucket: cfg.S3Bucket, Key: cfg.S3Key}), nil
	case config.SourceDB:
		if db == nil {
			return nil, errors.New("db catalog source requires a database")
		}
		return DBSource{DB: db}, nil
	default:
		return nil, fmt.Errorf("%q: %w", cfg.Source, ErrUnknownSource)
	}
}
