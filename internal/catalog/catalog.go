// Package catalog parses the street-tree catalog and flattens it into a
// lookup from lower-cased street name to tree-height value.
//
// The catalog is a JSON document nested exactly three object levels deep
// (height category, category type, subcategory). Each subcategory holds a
// leaf: an object of street to value, an array of street names, or a single
// scalar street name.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// LeafKind identifies the shape of a subcategory leaf.
type LeafKind int

const (
	MappingLeaf LeafKind = iota + 1
	SequenceLeaf
	ScalarLeaf
)

func (k LeafKind) String() string {
	switch k {
	case MappingLeaf:
		return "mapping"
	case SequenceLeaf:
		return "sequence"
	case ScalarLeaf:
		return "scalar"
	default:
		return "unknown"
	}
}

// Height is a tree-height indicator. Known is false when the catalog names a
// street without a usable numeric value.
type Height struct {
	Value float64 `json:"value"`
	Known bool    `json:"known"`
	Raw   string  `json:"raw,omitempty"` // source text of the value
}

// StreetValue is one entry of a mapping leaf.
type StreetValue struct {
	Street string
	Height Height
}

// Leaf is a subcategory's content. Only the fields for Kind are populated.
type Leaf struct {
	Kind    LeafKind
	Entries []StreetValue // MappingLeaf, in source order
	Items   []string      // SequenceLeaf, each element stringified
	Scalar  string        // ScalarLeaf, stringified
}

// Entry is one leaf together with its position in the hierarchy.
type Entry struct {
	HeightCategory string
	CategoryType   string
	Subcategory    string
	Leaf           Leaf
}

// Catalog holds every leaf in document order.
type Catalog struct {
	Entries []Entry
}

// CatalogFormatError reports a document that does not have the expected
// three-level object shape.
type CatalogFormatError struct {
	Path   []string
	Reason string
	Err    error
}

func (e *CatalogFormatError) Error() string {
	where := "document root"
	if len(e.Path) > 0 {
		where = strconv.Quote(strings.Join(e.Path, "/"))
	}
	msg := fmt.Sprintf("catalog: %s at %s", e.Reason, where)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CatalogFormatError) Unwrap() error {
	return e.Err
}

func formatErr(path []string, reason string, err error) *CatalogFormatError {
	return &CatalogFormatError{Path: append([]string(nil), path...), Reason: reason, Err: err}
}

// Load reads and parses the catalog file at path.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	c, err := Parse(f)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: parse %s", path)
	}
	return c, nil
}

// Parse decodes a catalog document. Key order is preserved so that duplicate
// streets resolve the same way on every run. A key repeated within one object
// keeps its first position and its last value.
func Parse(r io.Reader) (*Catalog, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	p := &parser{dec: dec}
	entries, err := p.objectLevel(nil, 1)
	if err != nil {
		return nil, err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, formatErr(nil, "trailing data after catalog object", nil)
	}
	return &Catalog{Entries: entries}, nil
}

type parser struct {
	dec *json.Decoder
}

// objectLevel consumes one object at the given depth (1..3). Values at depth 3
// are leaves.
func (p *parser) objectLevel(path []string, depth int) ([]Entry, error) {
	tok, err := p.dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, formatErr(path, "unexpected end of document", nil)
		}
		return nil, formatErr(path, "invalid JSON", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, formatErr(path, fmt.Sprintf("expected object at level %d, got %s", depth, describe(tok)), nil)
	}

	var keys []string
	children := make(map[string][]Entry)
	for p.dec.More() {
		key, err := p.key(path)
		if err != nil {
			return nil, err
		}
		child := append(path[:len(path):len(path)], key)

		var entries []Entry
		if depth < 3 {
			entries, err = p.objectLevel(child, depth+1)
			if err != nil {
				return nil, err
			}
		} else {
			leaf, err := p.leaf(child)
			if err != nil {
				return nil, err
			}
			entries = []Entry{{
				HeightCategory: child[0],
				CategoryType:   child[1],
				Subcategory:    child[2],
				Leaf:           leaf,
			}}
		}

		if _, seen := children[key]; !seen {
			keys = append(keys, key)
		}
		children[key] = entries
	}

	if err := p.closing(path, '}'); err != nil {
		return nil, err
	}

	var out []Entry
	for _, k := range keys {
		out = append(out, children[k]...)
	}
	return out, nil
}

func (p *parser) key(path []string) (string, error) {
	tok, err := p.dec.Token()
	if err != nil {
		return "", formatErr(path, "invalid JSON", err)
	}
	key, ok := tok.(string)
	if !ok {
		return "", formatErr(path, fmt.Sprintf("expected object key, got %s", describe(tok)), nil)
	}
	return key, nil
}

func (p *parser) closing(path []string, want json.Delim) error {
	tok, err := p.dec.Token()
	if err != nil {
		return formatErr(path, "invalid JSON", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return formatErr(path, fmt.Sprintf("expected %q, got %s", string(want), describe(tok)), nil)
	}
	return nil
}

func (p *parser) leaf(path []string) (Leaf, error) {
	tok, err := p.dec.Token()
	if err != nil {
		return Leaf{}, formatErr(path, "invalid JSON", err)
	}

	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			return p.mappingLeaf(path)
		case '[':
			return p.sequenceLeaf(path)
		default:
			return Leaf{}, formatErr(path, fmt.Sprintf("unexpected %q", string(v)), nil)
		}
	default:
		return Leaf{Kind: ScalarLeaf, Scalar: stringify(tok)}, nil
	}
}

func (p *parser) mappingLeaf(path []string) (Leaf, error) {
	leaf := Leaf{Kind: MappingLeaf}
	for p.dec.More() {
		street, err := p.key(path)
		if err != nil {
			return Leaf{}, err
		}
		tok, err := p.dec.Token()
		if err != nil {
			return Leaf{}, formatErr(path, "invalid JSON", err)
		}
		h, err := heightOf(tok)
		if err != nil {
			return Leaf{}, formatErr(append(path[:len(path):len(path)], street), err.Error(), nil)
		}
		leaf.Entries = append(leaf.Entries, StreetValue{Street: street, Height: h})
	}
	return leaf, p.closing(path, '}')
}

func (p *parser) sequenceLeaf(path []string) (Leaf, error) {
	leaf := Leaf{Kind: SequenceLeaf, Items: []string{}}
	for p.dec.More() {
		tok, err := p.dec.Token()
		if err != nil {
			return Leaf{}, formatErr(path, "invalid JSON", err)
		}
		if d, ok := tok.(json.Delim); ok {
			return Leaf{}, formatErr(path, fmt.Sprintf("nested %q inside street list", string(d)), nil)
		}
		leaf.Items = append(leaf.Items, stringify(tok))
	}
	return leaf, p.closing(path, ']')
}

// heightOf converts a mapping value. Numbers and numeric strings are known
// heights; null and other strings name the street without a value.
func heightOf(tok json.Token) (Height, error) {
	switch v := tok.(type) {
	case nil:
		return Height{}, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return Height{}, eris.Wrapf(err, "invalid number %s", v.String())
		}
		return Height{Value: f, Known: true, Raw: v.String()}, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return Height{Raw: v}, nil
		}
		return Height{Value: f, Known: true, Raw: v}, nil
	case bool:
		return Height{}, eris.Errorf("boolean tree height %t", v)
	case json.Delim:
		return Height{}, eris.Errorf("nested %q as tree height", string(v))
	default:
		return Height{}, eris.Errorf("unsupported tree height %v", v)
	}
}

// stringify renders a scalar token as a street key. Numbers keep their source
// text; booleans and null are spelled True, False and None.
func stringify(tok json.Token) string {
	switch v := tok.(type) {
	case nil:
		return "None"
	case bool:
		if v {
			return "True"
		}
		return "False"
	case json.Number:
		return v.String()
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func describe(tok json.Token) string {
	switch v := tok.(type) {
	case nil:
		return "null"
	case json.Delim:
		return strconv.Quote(string(v))
	case string:
		return "string " + strconv.Quote(v)
	case json.Number:
		return "number " + v.String()
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
