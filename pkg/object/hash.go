package object

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
)

// Algo selects the digest function that defines object identity for a store.
// All objects in one store share one algorithm; hashes from different
// algorithms are not interchangeable.
type Algo string

const (
	// SHA256 is the default scheme: 32-byte digests, 64 hex characters.
	SHA256 Algo = "sha256"
	// SHA1 is the legacy scheme: 20-byte digests, 40 hex characters.
	SHA1 Algo = "sha1"
)

// ParseAlgo validates an algorithm name read from repository config. The
// empty string selects the default scheme.
func ParseAlgo(s string) (Algo, error) {
	switch Algo(s) {
	case SHA256, SHA1:
		return Algo(s), nil
	case "":
		return SHA256, nil
	}
	return "", fmt.Errorf("unknown digest algorithm %q", s)
}

// Size returns the raw digest length in bytes.
func (a Algo) Size() int {
	if a == SHA1 {
		return sha1.Size
	}
	return sha256.Size
}

// HexLen returns the length of a hex-encoded Hash under this algorithm.
func (a Algo) HexLen() int { return a.Size() * 2 }

// New returns a fresh hash.Hash for this algorithm.
func (a Algo) New() hash.Hash {
	if a == SHA1 {
		return sha1.New()
	}
	return sha256.New()
}

// HashBytes computes the raw digest of data and returns it as a lowercase
// hex-encoded Hash.
func (a Algo) HashBytes(data []byte) Hash {
	h := a.New()
	h.Write(data)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// HashObject computes the identity of an object: the digest of the envelope
// "kind len\0body". Identity is pure content; two objects with identical kind
// and body always share one hash.
func (a Algo) HashObject(kind Kind, body []byte) Hash {
	h := a.New()
	fmt.Fprintf(h, "%s %d\x00", kind, len(body))
	h.Write(body)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// DecodeHash converts a hex Hash to raw digest bytes, validating its length
// against the algorithm.
func (a Algo) DecodeHash(h Hash) ([]byte, error) {
	if len(h) != a.HexLen() {
		return nil, fmt.Errorf("hash length must be %d hex chars, got %d", a.HexLen(), len(h))
	}
	raw, err := hex.DecodeString(string(h))
	if err != nil {
		return nil, fmt.Errorf("invalid hash %q: %w", h, err)
	}
	return raw, nil
}
