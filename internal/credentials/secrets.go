// Package credentials generates and compares the short-lived secrets issued
// during login and password recovery.
package credentials

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
)

const (
	// TwoFactorCodeDigits is the length of an emailed verification code
	TwoFactorCodeDigits = 6
	// ResetTokenBytes is the entropy of a password reset token (hex doubles the length)
	ResetTokenBytes = 32
)

var codeSpace = big.NewInt(1_000_000)

// GenerateTwoFactorCode returns a uniformly random 6-digit code, leading zeros kept
func GenerateTwoFactorCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", TwoFactorCodeDigits, n.Int64()), nil
}

// GenerateResetToken returns 32 random bytes hex-encoded
func GenerateResetToken() (string, error) {
	return randomHex(ResetTokenBytes)
}

func randomHex(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Digest is the at-rest form of a code or token: hex SHA-256
func Digest(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// Matches compares a submitted secret with a stored digest in constant time
func Matches(secret, storedDigest string) bool {
	if secret == "" || storedDigest == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(Digest(secret)), []byte(storedDigest)) == 1
}
