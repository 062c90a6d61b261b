// Package digest computes content digests over whole files or over the
// byte ranges selected by a hash policy.
package digest

import (
	"crypto/md5" // #nosec G501 -- duplicate detection, not security
	"errors"
	"fmt"
	"hash"
	"strings"

	"github.com/minio/sha256-simd"
	"lukechampine.com/blake3"
)

// Algorithm names a digest function.
type Algorithm string

// Supported algorithms.
const (
	BLAKE3 Algorithm = "blake3"
	SHA256 Algorithm = "sha256"
	MD5    Algorithm = "md5"
)

// DefaultAlgorithm is used when none is configured.
const DefaultAlgorithm = BLAKE3

// ErrUnknownAlgorithm is returned for unsupported algorithm names.
var ErrUnknownAlgorithm = errors.New("unknown digest algorithm")

// Algorithms lists the supported algorithm names.
func Algorithms() []string {
	return []string{string(BLAKE3), string(SHA256), string(MD5)}
}

// ParseAlgorithm parses a case-insensitive algorithm name. An empty name
// selects DefaultAlgorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(name))) {
	case "":
		return DefaultAlgorithm, nil
	case BLAKE3:
		return BLAKE3, nil
	case SHA256, "sha-256":
		return SHA256, nil
	case MD5:
		return MD5, nil
	default:
		return "", fmt.Errorf("%w: %q (supported: %s)", ErrUnknownAlgorithm, name, strings.Join(Algorithms(), ", "))
	}
}

// New returns a fresh hash.Hash for the algorithm.
func (a Algorithm) New() hash.Hash {
	switch a {
	case SHA256:
		return sha256.New()
	case MD5:
		return md5.New() // #nosec G401
	default:
		return blake3.New(32, nil)
	}
}

// Sum digests b in one call.
func (a Algorithm) Sum(b []byte) []byte {
	h := a.New()
	_, _ = h.Write(b)
	return h.Sum(nil)
}

func (a Algorithm) String() string {
	return string(a)
}
