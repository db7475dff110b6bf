// Package auth contains the credential primitives of the server: password
// hashing, bearer token encoding and the role checks applied to decoded
// claims.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"github.com/dmitrijs2005/taskauth/internal/common"
	"golang.org/x/crypto/pbkdf2"
)

const (
	DefaultSaltSize   = 16
	DefaultIterations = 10000
	DefaultKeyLength  = 32
)

// Hasher derives password digests with PBKDF2-HMAC-SHA256.
type Hasher struct {
	SaltSize   int
	Iterations int
	KeyLength  int
}

// NewHasher returns a Hasher with the production parameters.
func NewHasher() *Hasher {
	return &Hasher{
		SaltSize:   DefaultSaltSize,
		Iterations: DefaultIterations,
		KeyLength:  DefaultKeyLength,
	}
}

// GenerateSalt returns SaltSize fresh random bytes.
func (h *Hasher) GenerateSalt() ([]byte, error) {
	return common.GenerateRandBytes(h.SaltSize)
}

// Hash is deterministic for a given (password, salt) pair.
func (h *Hasher) Hash(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, h.Iterations, h.KeyLength, sha256.New)
}

// Verify recomputes the digest for password and compares it with digest in
// constant time. It fails with ErrCredentialFormat when the stored material
// cannot have been produced by this Hasher.
func (h *Hasher) Verify(password string, digest, salt []byte) (bool, error) {
	if len(salt) == 0 || len(digest) != h.KeyLength {
		return false, common.ErrCredentialFormat
	}
	candidate := h.Hash(password, salt)
	return subtle.ConstantTimeCompare(candidate, digest) == 1, nil
}

// Encode converts raw bytes into the stored text form.
func (h *Hasher) Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// Decode parses the stored text form.
func (h *Hasher) Decode(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCredentialFormat, err)
	}
	return b, nil
}

// NewCredential generates a salt, hashes password with it and returns both
// in stored form.
func (h *Hasher) NewCredential(password string) (salt string, digest string, err error) {
	s, err := h.GenerateSalt()
	if err != nil {
		return "", "", fmt.Errorf("error generating salt: %w", err)
	}
	return h.Encode(s), h.Encode(h.Hash(password, s)), nil
}

// VerifyEncoded is Verify over the stored text form.
func (h *Hasher) VerifyEncoded(password, digest, salt string) (bool, error) {
	d, err := h.Decode(digest)
	if err != nil {
		return false, err
	}
	s, err := h.Decode(salt)
	if err != nil {
		return false, err
	}
	return h.Verify(password, d, s)
}
