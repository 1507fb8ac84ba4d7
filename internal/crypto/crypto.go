// Package crypto implements password hashing and credential generation.
package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/sha3"
)

const codeAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Hasher peppers and hashes passwords and mints opaque credentials.
type Hasher struct {
	pepper string
}

func NewHasher(pepper string) *Hasher {
	return &Hasher{pepper: pepper}
}

// HashPassword returns the bcrypt hash of password+pepper.
func (h *Hasher) HashPassword(password string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(password+h.pepper), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// VerifyPassword reports whether password+pepper matches the stored hash.
func (h *Hasher) VerifyPassword(hashed, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password+h.pepper)) == nil
}

// NewValidationKey returns a fresh opaque session credential: the SHA3-512
// digest of 256 random bytes, hex encoded.
func NewValidationKey() (string, error) {
	buf := make([]byte, 256)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	sum := sha3.Sum512(buf)
	return hex.EncodeToString(sum[:]), nil
}

// NewCode returns a 6-character alphanumeric verification code.
func NewCode() (string, error) {
	out := make([]byte, 6)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = codeAlphabet[n.Int64()]
	}
	return string(out), nil
}
