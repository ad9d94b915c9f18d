package worldimg

import (
	"bytes"
	"strings"
)

// pngSignature is the fixed 8-byte header every PNG file starts with.
var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// Normalize turns a free-text world name into the id used in asset URLs.
// Empty input yields an empty id; length checks belong to the caller.
func Normalize(raw string) string {
	s := strings.ToLower(raw)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "-", "")
	return strings.TrimSpace(s)
}

// IsPNG reports whether b starts with the PNG signature.
func IsPNG(b []byte) bool {
	return len(b) >= len(pngSignature) && bytes.Equal(b[:len(pngSignature)], pngSignature)
}
