package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Subject hash keys must be long enough to resist guessing and fit the
// BLAKE2b key limit.
const (
	MinSubjectKeySize = 16
	MaxSubjectKeySize = blake2b.Size
)

// SubjectHasher derives the identifier hash stored in the ledger, audit
// events and cache keys. It is keyed BLAKE2b-256: a 12-digit number has too
// little entropy for an unkeyed digest, so without the key a stored hash
// cannot be matched against candidate numbers.
type SubjectHasher struct {
	key []byte
}

// NewSubjectHasher copies key, which must be 16 to 64 bytes.
func NewSubjectHasher(key []byte) (*SubjectHasher, error) {
	if len(key) < MinSubjectKeySize || len(key) > MaxSubjectKeySize {
		return nil, fmt.Errorf("subject hash key must be %d to %d bytes, got %d", MinSubjectKeySize, MaxSubjectKeySize, len(key))
	}
	return &SubjectHasher{key: append([]byte(nil), key...)}, nil
}

// NewRandomSubjectHasher uses a fresh 32-byte key. Hashes are then only
// comparable within the process.
func NewRandomSubjectHasher() (*SubjectHasher, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate subject hash key: %w", err)
	}
	return NewSubjectHasher(key)
}

// Hash returns the hex keyed hash of a normalised identifier.
func (h *SubjectHasher) Hash(normalized string) string {
	// The key length was checked in NewSubjectHasher, the only error source.
	m, _ := blake2b.New256(h.key)
	m.Write([]byte(normalized))
	return hex.EncodeToString(m.Sum(nil))
}
