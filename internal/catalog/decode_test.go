package catalog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleArray = `[
  {"barcode":"001","brand":"Acme","product_name":"Chocolate Bar","quantity":"100 g","image_url":"http://img/1"},
  {"barcode":"002","brand":"","productName":"Bare Water","imageUrl":""}
]`

func gzipped(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func zstded(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestDecode_Array(t *testing.T) {
	out, err := Decode(strings.NewReader(sampleArray))
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "001", out[0].Barcode)
	assert.Equal(t, "Acme", out[0].Brand)
	assert.Equal(t, "Chocolate Bar", out[0].ProductName)
	assert.Equal(t, "100 g", out[0].Quantity)
	assert.Equal(t, "http://img/1", out[0].ImageURL)

	// camelCase spellings are accepted too
	assert.Equal(t, "Bare Water", out[1].ProductName)
	assert.Empty(t, out[1].ImageURL)
}

func TestDecode_SnakeCaseWinsOverCamelCase(t *testing.T) {
	out, err := Decode(strings.NewReader(`[{"barcode":"1","product_name":"snake","productName":"camel","image_url":"a","imageUrl":"b"}]`))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "snake", out[0].ProductName)
	assert.Equal(t, "a", out[0].ImageURL)
}

func TestDecode_Envelope(t *testing.T) {
	out, err := Decode(strings.NewReader(`{"products":` + sampleArray + `}`))
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "002", out[1].Barcode)
}

func TestDecode_Compressed(t *testing.T) {
	for name, payload := range map[string][]byte{
		"gzip": gzipped(t, sampleArray),
		"zstd": zstded(t, sampleArray),
	} {
		t.Run(name, func(t *testing.T) {
			out, err := Decode(bytes.NewReader(payload))
			require.NoError(t, err)
			require.Len(t, out, 2)
			assert.Equal(t, "001", out[0].Barcode)
		})
	}
}

func TestDecode_EmptyPayloads(t *testing.T) {
	for _, in := range []string{"", "   \n", "[]", `{"products":null}`, "{}"} {
		out, err := Decode(strings.NewReader(in))
		require.NoError(t, err, "input %q", in)
		assert.NotNil(t, out, "input %q", in)
		assert.Empty(t, out, "input %q", in)
	}
}

func TestDecode_Malformed(t *testing.T) {
	for _, in := range []string{"null", "not json", `[{"barcode":1}]`, `{"products":"x"}`, "[{"} {
		_, err := Decode(strings.NewReader(in))
		assert.Error(t, err, "input %q", in)
	}

	_, err := Decode(bytes.NewReader([]byte{0x1f, 0x8b, 0x00}))
	assert.Error(t, err, "truncated gzip")
}
