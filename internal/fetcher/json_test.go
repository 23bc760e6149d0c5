package fetcher

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testDoc struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

func TestDecodeJSONObject(t *testing.T) {
	doc, err := DecodeJSONObject[testDoc](strings.NewReader(`{"name":"oak","value":5}`))
	require.NoError(t, err)
	assert.Equal(t, "oak", doc.Name)
	assert.InDelta(t, 5.0, doc.Value, 0.0001)
}

func TestDecodeJSONObject_Invalid(t *testing.T) {
	_, err := DecodeJSONObject[testDoc](strings.NewReader(`{not json`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "json: decode object")
}

func TestDecodeJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"elm","value":2.5}`), 0o644))

	doc, err := DecodeJSONFile[testDoc](path)
	require.NoError(t, err)
	assert.Equal(t, "elm", doc.Name)
}

func TestDecodeJSONFile_Missing(t *testing.T) {
	_, err := DecodeJSONFile[testDoc](filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "json: open")
}
