package parser

import (
	"crypto/sha256"
	"encoding/hex"
)

// synthesizeGUID builds a stable fallback identifier from title, source
// URL and body content when a format parser found no unambiguous id.
func synthesizeGUID(title, sourceURL, body string) string {
	h := sha256.New()
	h.Write([]byte(title))
	h.Write([]byte{0})
	h.Write([]byte(sourceURL))
	h.Write([]byte{0})
	h.Write([]byte(body))
	return hex.EncodeToString(h.Sum(nil))
}
