package search

import (
	"sync"
	"sync/atomic"

	"github.com/tbourn/go-proofed-catalog/internal/domain"
)

// Provider hands out the process-wide index. Implementations must be safe
// for concurrent use.
type Provider interface {
	Index() *Index
}

// LoadFunc fetches the catalog. It returns nil (not an error) when the
// catalog is unavailable; the index is then built empty.
type LoadFunc func() []domain.Product

// Lazy builds its index on the first call to Index and reuses it for the
// rest of the process lifetime. Concurrent first callers block until the
// single build finishes; load runs at most once.
type Lazy struct {
	load  LoadFunc
	opts  []Option
	once  sync.Once
	idx   *Index
	built atomic.Bool
}

// NewLazy returns a Lazy that will build from load with opts.
func NewLazy(load LoadFunc, opts ...Option) *Lazy {
	return &Lazy{load: load, opts: opts}
}

// Index returns the index, building it on first use.
func (l *Lazy) Index() *Index {
	l.once.Do(func() {
		var products []domain.Product
		if l.load != nil {
			products = l.load()
		}
		l.idx = Build(products, l.opts...)
		l.built.Store(true)
	})
	return l.idx
}

// Built reports whether the index has been constructed yet.
func (l *Lazy) Built() bool { return l.built.Load() }

// Static serves an index that was built up front.
type Static struct {
	idx *Index
}

// NewStatic wraps idx. A nil idx is replaced with an empty index.
func NewStatic(idx *Index) *Static {
	if idx == nil {
		idx = Empty()
	}
	return &Static{idx: idx}
}

// Index returns the wrapped index.
func (s *Static) Index() *Index { return s.idx }
