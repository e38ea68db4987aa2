package util

import (
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalize applies NFKD normalization. Used for PIN input so that visually
// identical sequences hash identically across platforms and keyboards.
func Normalize(s string) string {
	return norm.NFKD.String(s)
}

// FoldName canonicalizes a provider name for directory lookup: NFKC
// normalization, trimmed, lowercased.
func FoldName(s string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFKC.String(s)))
}

func HexEncode(b []byte) string {
	return hex.EncodeToString(b)
}

func HexDecode(s string) ([]byte, error) {
	return hex.DecodeString(s)
}
