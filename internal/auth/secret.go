package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is the hashing cost. Every connection pays it once.
const bcryptCost = bcrypt.MinCost + 2

// Secret is the server's shared authentication secret. Only a bcrypt hash of
// its digest is kept in memory.
type Secret struct {
	hash []byte
	set  bool
}

// NewSecret hashes plain. An empty plain yields a Secret that only accepts the
// empty credential.
func NewSecret(plain string) (*Secret, error) {
	if plain == "" {
		return &Secret{}, nil
	}
	hash, err := bcrypt.GenerateFromPassword(digest(plain), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash secret: %w", err)
	}
	return &Secret{hash: hash, set: true}, nil
}

// Accepts reports whether credential authenticates. The empty credential is
// always accepted; clients without an auth file depend on it.
func (s *Secret) Accepts(credential string) bool {
	if credential == "" {
		return true
	}
	if s == nil || !s.set {
		return false
	}
	return bcrypt.CompareHashAndPassword(s.hash, digest(credential)) == nil
}

// digest keeps bcrypt input under its 72-byte limit for long secrets.
func digest(s string) []byte {
	sum := sha256.Sum256([]byte(s))
	return []byte(hex.EncodeToString(sum[:]))
}
