// Package search provides a deterministic, concurrency-safe in-memory index
// over the product catalog. It answers two questions for the request layer:
// "which products match this typed text" and "which product has this barcode".
//
//   - No logging in the library (callers decide how/what to log)
//   - Immutable after Build (safe for unlimited concurrent readers)
//   - Records are addressed by their position in the catalog; posting sets
//     are roaring bitmaps of those positions
//   - Every prefix (>= 2 runes) of every word of "brand product_name" is a term
//   - Multi-term queries use AND semantics with a prefix-scan fallback
//   - Deterministic ranking: score descending, then catalog position ascending
package search

import (
	"encoding/binary"
	"encoding/hex"
	"hash/fnv"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/tbourn/go-proofed-catalog/internal/domain"
)

// DefaultLimit is the number of results returned when the caller passes a
// non-positive limit.
const DefaultLimit = 10

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	defaultLimit int
	minTermRunes int
}

func defaultConfig() config {
	return config{
		defaultLimit: DefaultLimit,
		minTermRunes: 2,
	}
}

// WithDefaultLimit overrides the result cap applied when Search receives a
// non-positive limit.
func WithDefaultLimit(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.defaultLimit = n
		}
	}
}

// WithMinTermRunes sets the minimum word and query-term length.
func WithMinTermRunes(n int) Option {
	return func(c *config) {
		if n >= 1 {
			c.minTermRunes = n
		}
	}
}

// ----------------------------------------------------------------------------
// Index

// Index is an immutable inverted index over a product catalog.
type Index struct {
	cfg      config
	records  []domain.Product
	texts    []string // lowercased "brand product_name", parallel to records
	terms    map[string]*roaring.Bitmap
	keys     []string       // sorted term keys for prefix scans
	barcodes map[string]int // first position per stored barcode
	version  string
}

// Stats summarizes an index for diagnostics and cache validators.
type Stats struct {
	Records int    `json:"records"`
	Terms   int    `json:"terms"`
	Version string `json:"version"`
}

// Empty returns an index with zero records. Every query against it returns
// no results.
func Empty(opts ...Option) *Index {
	return Build(nil, opts...)
}

// Build compiles the catalog into an index. The products slice is copied, so
// the caller may reuse it. Build never fails.
func Build(products []domain.Product, opts ...Option) *Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	ix := &Index{
		cfg:      cfg,
		records:  make([]domain.Product, len(products)),
		texts:    make([]string, len(products)),
		terms:    make(map[string]*roaring.Bitmap),
		barcodes: make(map[string]int, len(products)),
	}
	copy(ix.records, products)

	for i, p := range ix.records {
		pos := uint32(i)
		text := p.SearchText()
		ix.texts[i] = text

		if _, dup := ix.barcodes[p.Barcode]; !dup {
			ix.barcodes[p.Barcode] = i
		}

		for _, w := range strings.Fields(text) {
			runes := []rune(w)
			if len(runes) < cfg.minTermRunes {
				continue
			}
			for k := cfg.minTermRunes; k <= len(runes); k++ {
				term := string(runes[:k])
				bm, ok := ix.terms[term]
				if !ok {
					bm = roaring.New()
					ix.terms[term] = bm
				}
				bm.Add(pos)
			}
		}
	}

	ix.keys = make([]string, 0, len(ix.terms))
	for k, bm := range ix.terms {
		bm.RunOptimize()
		ix.keys = append(ix.keys, k)
	}
	sort.Strings(ix.keys)
	ix.version = fingerprint(ix.records)
	return ix
}

// Len reports the number of indexed records.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.records)
}

// Terms reports the number of distinct indexed prefixes.
func (ix *Index) Terms() int {
	if ix == nil {
		return 0
	}
	return len(ix.terms)
}

// Version is a stable fingerprint of the indexed catalog: the record count
// and every served field of every record, in order. Two indices built from
// the same catalog share it; any visible change yields a new one.
func (ix *Index) Version() string {
	if ix == nil {
		return ""
	}
	return ix.version
}

// Stats returns Len, Terms and Version in one value.
func (ix *Index) Stats() Stats {
	return Stats{Records: ix.Len(), Terms: ix.Terms(), Version: ix.Version()}
}

// GetByBarcode returns the product whose stored barcode equals the trimmed
// argument. Matching is exact and case-sensitive; when the catalog holds
// duplicates the first one in catalog order wins.
func (ix *Index) GetByBarcode(barcode string) (domain.Product, bool) {
	barcode = strings.TrimSpace(barcode)
	if ix == nil || barcode == "" {
		return domain.Product{}, false
	}
	pos, ok := ix.barcodes[barcode]
	if !ok {
		return domain.Product{}, false
	}
	return ix.records[pos], true
}

// ----------------------------------------------------------------------------
// Helpers

// tokenize lowercases s, splits on whitespace and drops words shorter than
// minRunes runes.
func tokenize(s string, minRunes int) []string {
	fields := strings.Fields(strings.ToLower(s))
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= minRunes {
			out = append(out, f)
		}
	}
	return out
}

func fingerprint(records []domain.Product) string {
	h := fnv.New64a()
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(records)))
	_, _ = h.Write(n[:])
	for _, p := range records {
		for _, f := range [...]string{p.Barcode, p.Brand, p.ProductName, p.Quantity, p.ImageURL} {
			_, _ = h.Write([]byte(f))
			_, _ = h.Write([]byte{0})
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
