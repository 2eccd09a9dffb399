package client

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Charset is a single-byte text encoding used for response bodies
type Charset struct {
	name string
	cm   *charmap.Charmap
}

// Latin1 is the charset the API serves its payloads in
var Latin1 = Charset{name: "iso-8859-1", cm: charmap.ISO8859_1}

var charsets = map[string]*charmap.Charmap{
	"iso-8859-1":   charmap.ISO8859_1,
	"latin1":       charmap.ISO8859_1,
	"latin-1":      charmap.ISO8859_1,
	"iso-8859-15":  charmap.ISO8859_15,
	"windows-1252": charmap.Windows1252,
	"cp1252":       charmap.Windows1252,
	"windows-1251": charmap.Windows1251,
	"cp1251":       charmap.Windows1251,
}

// LookupCharset returns the single-byte charset registered under name.
// Multi-byte encodings are never accepted.
func LookupCharset(name string) (Charset, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	cm, ok := charsets[key]
	if !ok {
		return Charset{}, fmt.Errorf("unsupported charset %q: must be a single-byte charset", name)
	}
	return Charset{name: key, cm: cm}, nil
}

// Name returns the charset name
func (c Charset) Name() string {
	if c.cm == nil {
		return Latin1.name
	}
	return c.name
}

// Decode converts body to a string byte by byte. Bytes the charset leaves
// undefined produce a DecodeError instead of a replacement character.
func (c Charset) Decode(body []byte) (string, error) {
	cm := c.cm
	if cm == nil {
		cm = Latin1.cm
	}

	var sb strings.Builder
	sb.Grow(len(body))
	for i, b := range body {
		r := cm.DecodeByte(b)
		if r == utf8.RuneError {
			return "", &DecodeError{Charset: c.Name(), Offset: i, Byte: b, Body: body}
		}
		sb.WriteRune(r)
	}
	return sb.String(), nil
}
