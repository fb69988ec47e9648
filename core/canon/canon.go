package canon

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/gowebpki/jcs"
)

// CanonicalizeJSON returns the RFC 8785 (JCS) canonical form of JSON
// input: stable key ordering, no incidental whitespace, UTF-8.
func CanonicalizeJSON(input []byte) ([]byte, error) {
	return jcs.Transform(input)
}

// DigestJCSSalted canonicalizes JSON, appends the salt bytes to the
// canonical form, and returns a sha256 hex digest. Canonicalization
// happens before hashing, so formatting differences in the stored JSON
// never affect the result.
func DigestJCSSalted(input []byte, salt string) (string, error) {
	canonical, err := CanonicalizeJSON(input)
	if err != nil {
		return "", err
	}
	hasher := sha256.New()
	hasher.Write(canonical)
	hasher.Write([]byte(salt))
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// SHA256Hex returns the plain sha256 hex digest of raw bytes, used for
// per-member hashes where no canonicalization applies.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
