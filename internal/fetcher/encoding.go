package fetcher

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// DecodeReader wraps r so that it yields UTF-8 text decoded from the named
// encoding. Names are resolved through the WHATWG index, so "latin1" and
// "iso-8859-1" both map to windows-1252, which assigns a rune to every byte.
func DecodeReader(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "utf-8", "utf8":
		return r, nil
	}

	enc, err := htmlindex.Get(encoding)
	if err != nil {
		return nil, eris.Wrapf(err, "encoding: unsupported charset %q", encoding)
	}
	return enc.NewDecoder().Reader(r), nil
}
