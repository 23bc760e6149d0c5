package catalog

import (
	"strings"

	"go.uber.org/zap"
)

// StreetTreeMap maps a lower-cased street name to its tree height.
// It is built once and only read afterwards.
type StreetTreeMap map[string]Height

// BuildStats summarizes a flattening pass.
type BuildStats struct {
	Streets    int `json:"streets"`    // distinct keys in the map
	Known      int `json:"known"`      // keys with a known height
	Duplicates int `json:"duplicates"` // keys overwritten by a later leaf
}

// Build flattens the catalog. Mapping leaves contribute their values; list
// elements and scalar leaves contribute streets with no height. A street seen
// more than once keeps the last value in document order.
func Build(c *Catalog) (StreetTreeMap, BuildStats) {
	m := make(StreetTreeMap)
	var stats BuildStats

	put := func(street string, h Height) {
		key := strings.ToLower(street)
		if _, ok := m[key]; ok {
			stats.Duplicates++
		}
		m[key] = h
	}

	for _, e := range c.Entries {
		switch e.Leaf.Kind {
		case MappingLeaf:
			for _, sv := range e.Leaf.Entries {
				if !sv.Height.Known && sv.Height.Raw != "" {
					zap.L().Warn("catalog: non-numeric tree height treated as unknown",
						zap.String("street", sv.Street),
						zap.String("value", sv.Height.Raw),
					)
				}
				put(sv.Street, sv.Height)
			}
		case SequenceLeaf:
			for _, street := range e.Leaf.Items {
				put(street, Height{})
			}
		case ScalarLeaf:
			put(e.Leaf.Scalar, Height{})
		}
	}

	stats.Streets = len(m)
	for _, h := range m {
		if h.Known {
			stats.Known++
		}
	}
	return m, stats
}

// Lookup returns the height for a street, matching case-insensitively.
// The bool reports whether the street is in the catalog at all.
func (m StreetTreeMap) Lookup(street string) (Height, bool) {
	h, ok := m[strings.ToLower(street)]
	return h, ok
}
