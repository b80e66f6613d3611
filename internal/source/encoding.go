package source

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
)

// DefaultEncodings is the candidate order tried when none is configured.
var DefaultEncodings = []string{"utf-8", "latin-1", "cp1252"}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Encoding is a named text encoding the reader can try.
type Encoding struct {
	Name string

	// enc is nil for UTF-8, which is validated and passed through.
	enc encoding.Encoding
	// undefined lists bytes with no mapping in a single-byte code page.
	undefined []byte
}

// LookupEncoding resolves a configured encoding name. The three names the
// pipeline uses by default are recognised with their common aliases; anything
// else is resolved through the IANA registry.
func LookupEncoding(name string) (Encoding, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
	switch key {
	case "utf-8", "utf8":
		return Encoding{Name: "utf-8"}, nil
	case "latin-1", "latin1", "iso-8859-1", "iso8859-1", "l1":
		return Encoding{Name: "latin-1", enc: charmap.ISO8859_1}, nil
	case "cp1252", "windows-1252":
		return Encoding{
			Name:      "cp1252",
			enc:       charmap.Windows1252,
			undefined: []byte{0x81, 0x8D, 0x8F, 0x90, 0x9D},
		}, nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return Encoding{}, fmt.Errorf("%w: %s", ErrUnknownEncoding, name)
	}
	if enc == nil {
		return Encoding{}, fmt.Errorf("%w: %s is not supported", ErrUnknownEncoding, name)
	}
	return Encoding{Name: name, enc: enc}, nil
}

// LookupEncodings resolves an ordered list of encoding names.
func LookupEncodings(names []string) ([]Encoding, error) {
	encs := make([]Encoding, 0, len(names))
	for _, name := range names {
		enc, err := LookupEncoding(name)
		if err != nil {
			return nil, err
		}
		encs = append(encs, enc)
	}
	return encs, nil
}

// Decode converts raw bytes to text. It fails instead of substituting
// replacement characters, so a wrong guess is detected.
func (e Encoding) Decode(data []byte) (string, error) {
	if e.enc == nil {
		data = bytes.TrimPrefix(data, utf8BOM)
		if !utf8.Valid(data) {
			return "", &DecodeError{Encoding: e.Name, Offset: invalidUTF8Offset(data)}
		}
		return string(data), nil
	}

	for _, b := range e.undefined {
		if i := bytes.IndexByte(data, b); i >= 0 {
			return "", &DecodeError{Encoding: e.Name, Offset: int64(i)}
		}
	}

	out, err := e.enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", &DecodeError{Encoding: e.Name, Offset: -1, Err: err}
	}
	return string(out), nil
}

// Encode converts text to bytes in this encoding. Runes the encoding cannot
// represent are an error.
func (e Encoding) Encode(s string) ([]byte, error) {
	if e.enc == nil {
		return []byte(s), nil
	}
	out, err := e.enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("failed to encode text as %s: %w", e.Name, err)
	}
	return out, nil
}

func (e Encoding) String() string {
	return e.Name
}

func invalidUTF8Offset(data []byte) int64 {
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size <= 1 {
			return int64(i)
		}
		i += size
	}
	return -1
}
