package search

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/tbourn/go-proofed-catalog/internal/domain"
)

// Scoring weights. A term found anywhere in "brand product_name" earns
// scoreContains; found at the start of a word it earns scoreWordStart on top.
const (
	scoreContains  = 10
	scoreWordStart = 5
	scoreHasImage  = 2
	scoreHasBrand  = 1
)

// Search returns up to limit products matching every term of query, best
// first. A non-positive limit falls back to the configured default (10).
//
// Behavior:
//   - query shorter than two runes after trimming, or an empty index: nil
//   - each term resolves to its exact posting set, or, when absent, to the
//     union of every term key starting with it
//   - a term with no candidates vetoes the whole query (AND semantics)
//   - results are ordered by score descending, then by catalog position
func (ix *Index) Search(query string, limit int) []domain.Product {
	if ix == nil || len(ix.records) == 0 {
		return nil
	}
	if utf8.RuneCountInString(strings.TrimSpace(query)) < ix.cfg.minTermRunes {
		return nil
	}
	if limit <= 0 {
		limit = ix.cfg.defaultLimit
	}

	terms := tokenize(query, ix.cfg.minTermRunes)
	if len(terms) == 0 {
		return nil
	}

	matched := ix.intersect(terms)
	if matched == nil || matched.IsEmpty() {
		return nil
	}

	type scored struct {
		pos   uint32
		score int
	}
	buf := make([]scored, 0, matched.GetCardinality())
	it := matched.Iterator()
	for it.HasNext() {
		pos := it.Next()
		buf = append(buf, scored{pos: pos, score: ix.score(pos, terms)})
	}

	// Iteration order is ascending position; a stable sort keeps it for ties.
	sort.SliceStable(buf, func(a, b int) bool { return buf[a].score > buf[b].score })

	if limit > len(buf) {
		limit = len(buf)
	}
	out := make([]domain.Product, limit)
	for i := 0; i < limit; i++ {
		out[i] = ix.records[buf[i].pos]
	}
	return out
}

// intersect resolves each term to its candidate set and folds them with AND,
// returning nil as soon as the running set becomes empty.
func (ix *Index) intersect(terms []string) *roaring.Bitmap {
	var running *roaring.Bitmap
	for _, t := range terms {
		cand := ix.candidates(t)
		if cand == nil || cand.IsEmpty() {
			return nil
		}
		if running == nil {
			running = cand.Clone()
		} else {
			running.And(cand)
		}
		if running.IsEmpty() {
			return nil
		}
	}
	return running
}

// candidates returns the exact posting set for term, falling back to a
// prefix scan over the sorted term keys. The returned bitmap must not be
// mutated by callers.
func (ix *Index) candidates(term string) *roaring.Bitmap {
	if bm, ok := ix.terms[term]; ok && !bm.IsEmpty() {
		return bm
	}
	return ix.prefixUnion(term)
}

// prefixUnion ORs the posting sets of every key that starts with prefix.
// Keys are sorted, so the matching keys form one contiguous run.
func (ix *Index) prefixUnion(prefix string) *roaring.Bitmap {
	i := sort.SearchStrings(ix.keys, prefix)
	var sets []*roaring.Bitmap
	for ; i < len(ix.keys) && strings.HasPrefix(ix.keys[i], prefix); i++ {
		if bm := ix.terms[ix.keys[i]]; bm != nil {
			sets = append(sets, bm)
		}
	}
	if len(sets) == 0 {
		return nil
	}
	return roaring.FastOr(sets...)
}

// score ranks the record at pos against the query terms.
func (ix *Index) score(pos uint32, terms []string) int {
	text := ix.texts[pos]
	p := ix.records[pos]

	s := 0
	for _, t := range terms {
		if !strings.Contains(text, t) {
			continue
		}
		s += scoreContains
		if strings.HasPrefix(text, t) || strings.Contains(text, " "+t) {
			s += scoreWordStart
		}
	}
	if p.ImageURL != "" {
		s += scoreHasImage
	}
	if p.Brand != "" {
		s += scoreHasBrand
	}
	return s
}
