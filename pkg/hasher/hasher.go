package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"unicode/utf16"
)

// Strong returns the hex SHA-256 digest of text. It is the only key used
// to address cached summaries.
func Strong(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Weak returns a 32-bit rolling hash (h = h*31 + c over UTF-16 code units)
// of text as a decimal string. It is NOT collision resistant and must only
// be used for change detection, where a false match costs at most a
// skipped refresh.
func Weak(text string) string {
	var h int32
	for _, c := range utf16.Encode([]rune(text)) {
		h = h*31 + int32(c)
	}
	return strconv.FormatInt(int64(h), 10)
}
