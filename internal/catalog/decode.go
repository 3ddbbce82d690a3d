package catalog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/tbourn/go-proofed-catalog/internal/domain"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// envelope is the object form of a catalog payload.
type envelope struct {
	Products []domain.Product `json:"products"`
}

// Decode reads a catalog payload: a JSON array of product records, or an
// object with a "products" array. gzip and zstd compressed payloads are
// detected by their magic bytes. An empty payload decodes to no products.
func Decode(r io.Reader) ([]domain.Product, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(len(zstdMagic))

	var body io.Reader = br
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer func() { _ = zr.Close() }()
		body = zr
	case bytes.HasPrefix(head, zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer zr.Close()
		body = zr
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return []domain.Product{}, nil
	}

	switch raw[0] {
	case '[':
		var out []domain.Product
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, err
		}
		if out == nil {
			out = []domain.Product{}
		}
		return out, nil
	case '{':
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, err
		}
		if env.Products == nil {
			env.Products = []domain.Product{}
		}
		return env.Products, nil
	default:
		return nil, errors.New("catalog payload must be a JSON array or an object with a products array")
	}
}
