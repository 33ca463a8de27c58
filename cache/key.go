package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// KeyMode selects how a cache key is derived from a request.
type KeyMode string

const (
	// KeyModeText keys by the normalized question text.
	KeyModeText KeyMode = "text"
	// KeyModeID keys by the corpus identifier.
	KeyModeID KeyMode = "id"
)

const keyPrefix = "qa:cache:"

// Normalize produces the canonical form of a question used for keying:
// Unicode case folding plus whitespace collapse. Deterministic and total —
// two renderings of the same logical question normalize identically.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// KeyForText derives a cache key from question text.
func KeyForText(text string) string {
	hash := sha256.Sum256([]byte(Normalize(text)))
	return keyPrefix + hex.EncodeToString(hash[:16])
}

// KeyForID derives a cache key from a corpus identifier.
func KeyForID(id uint) string {
	return keyPrefix + "id:" + strconv.FormatUint(uint64(id), 10)
}

// DeriveKey derives the cache key for a question according to mode.
// Unknown modes fall back to text keying.
func DeriveKey(mode KeyMode, id uint, text string) string {
	if mode == KeyModeID {
		return KeyForID(id)
	}
	return KeyForText(text)
}
