package protocol

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// Encoding selects how rendered lines become bytes on disk and on the wire
type Encoding string

const (
	UTF8 Encoding = "utf-8"
	// UTF16LE is the wide-character format written by the legacy Windows agent
	UTF16LE Encoding = "utf-16le"
)

// ParseEncoding normalizes a configured encoding name. Empty means UTF8.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "utf-8", "utf8":
		return UTF8, nil
	case "utf-16le", "utf16le", "utf-16", "unicode":
		return UTF16LE, nil
	}
	return "", fmt.Errorf("unknown encoding %q", s)
}

func utf16le() encoding.Encoding {
	return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
}

// Encode converts s to bytes
func (e Encoding) Encode(s string) ([]byte, error) {
	switch e {
	case "", UTF8:
		return []byte(s), nil
	case UTF16LE:
		return utf16le().NewEncoder().Bytes([]byte(s))
	}
	return nil, fmt.Errorf("unknown encoding %q", string(e))
}

// Decode converts bytes back to a string
func (e Encoding) Decode(b []byte) (string, error) {
	switch e {
	case "", UTF8:
		return string(b), nil
	case UTF16LE:
		out, err := utf16le().NewDecoder().Bytes(b)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
	return "", fmt.Errorf("unknown encoding %q", string(e))
}
