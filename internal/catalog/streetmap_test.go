package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, doc string) *Catalog {
	t.Helper()
	c, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	return c
}

func TestBuild_MappingLeaf(t *testing.T) {
	c := mustParse(t, `{"Tall": {"Oak": {"Broadleaf": {"Main Street": 5}}}}`)
	m, stats := Build(c)

	assert.Equal(t, StreetTreeMap{"main street": {Value: 5, Known: true, Raw: "5"}}, m)
	assert.Equal(t, BuildStats{Streets: 1, Known: 1}, stats)
}

func TestBuild_SequenceAndScalar(t *testing.T) {
	c := mustParse(t, `{"Short": {"Cherry": {"List": ["Abbey ROAD", 12], "One": "Oak Avenue"}}}`)
	m, stats := Build(c)

	require.Len(t, m, 3)
	for _, key := range []string{"abbey road", "12", "oak avenue"} {
		h, ok := m[key]
		require.True(t, ok, key)
		assert.False(t, h.Known, key)
	}
	assert.Equal(t, BuildStats{Streets: 3, Known: 0}, stats)
}

func TestBuild_LaterDuplicateOverwrites(t *testing.T) {
	c := mustParse(t, `{
		"Tall": {"Oak": {"Broadleaf": {"Main Street": 5}}},
		"Short": {"Cherry": {"Ornamental": {"MAIN STREET": 2}}, "Misc": {"List": ["main street"]}}
	}`)
	m, stats := Build(c)

	h, ok := m.Lookup("Main Street")
	require.True(t, ok)
	assert.False(t, h.Known, "list entry came last and carries no height")
	assert.Equal(t, 2, stats.Duplicates)
	assert.Equal(t, 1, stats.Streets)
}

func TestBuild_NonNumericStringIsUnknown(t *testing.T) {
	c := mustParse(t, `{"Tall": {"Oak": {"Broadleaf": {"Main Street": "tall"}}}}`)
	m, _ := Build(c)

	h, ok := m.Lookup("main street")
	require.True(t, ok)
	assert.False(t, h.Known)
	assert.Equal(t, "tall", h.Raw)
}

func TestBuild_KeysAreLowerCasedSourceKeys(t *testing.T) {
	c := mustParse(t, `{
		"A": {"x": {"s": {"Main Street": 1, "ÉGLISE Road": 2}}},
		"B": {"y": {"t": {"high STREET": 3, "Quay": null}}}
	}`)
	m, _ := Build(c)

	source := map[string]bool{}
	for _, e := range c.Entries {
		for _, sv := range e.Leaf.Entries {
			source[strings.ToLower(sv.Street)] = true
		}
	}
	require.Len(t, m, len(source))
	for key := range m {
		assert.Equal(t, strings.ToLower(key), key)
		assert.True(t, source[key], "key %q not in source", key)
	}
	assert.Contains(t, m, "église road")
}

func TestBuild_Empty(t *testing.T) {
	m, stats := Build(&Catalog{})
	assert.Empty(t, m)
	assert.Equal(t, BuildStats{}, stats)
}

func TestLookup_CaseInsensitive(t *testing.T) {
	m := StreetTreeMap{"main street": {Value: 5, Known: true}}

	h, ok := m.Lookup("MAIN Street")
	require.True(t, ok)
	assert.InDelta(t, 5.0, h.Value, 1e-9)

	_, ok = m.Lookup("Side Street")
	assert.False(t, ok)
}
