package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// scrypt parameters. Digests written by earlier deployments used the same
// values, so they must not change without a rehash-on-login path.
const (
	scryptN      = 16384
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 64
	saltBytes    = 16
	digestSep    = "."
)

// PasswordHasher hashes and verifies passwords
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) bool
}

// ScryptHasher stores passwords as hex(derivedKey) + "." + saltHex.
// The hex salt text itself is the scrypt salt.
type ScryptHasher struct{}

// NewScryptHasher returns the default password hasher
func NewScryptHasher() *ScryptHasher {
	return &ScryptHasher{}
}

// Hash derives a new digest with a fresh random salt
func (ScryptHasher) Hash(password string) (string, error) {
	raw := make([]byte, saltBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	salt := hex.EncodeToString(raw)

	key, err := scrypt.Key([]byte(password), []byte(salt), scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", fmt.Errorf("failed to derive key: %w", err)
	}
	return hex.EncodeToString(key) + digestSep + salt, nil
}

// Verify recomputes the key with the stored salt and compares in constant time.
// Malformed digests never verify.
func (ScryptHasher) Verify(password, digest string) bool {
	keyHex, salt, ok := strings.Cut(digest, digestSep)
	if !ok || salt == "" || strings.Contains(salt, digestSep) {
		return false
	}
	stored, err := hex.DecodeString(keyHex)
	if err != nil || len(stored) != scryptKeyLen {
		return false
	}

	derived, err := scrypt.Key([]byte(password), []byte(salt), scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(derived, stored) == 1
}

var defaultHasher = NewScryptHasher()

// HashPassword hashes a password with the default hasher
func HashPassword(password string) (string, error) {
	return defaultHasher.Hash(password)
}

// CheckPassword compares a password with a digest produced by HashPassword
func CheckPassword(password, digest string) bool {
	return defaultHasher.Verify(password, digest)
}
