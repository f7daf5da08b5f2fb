// Package otp issues and single-use-validates numeric one-time passcodes.
package otp

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"math/big"
)

// GenerateCode returns a uniformly random 6-digit code in 100000–999999.
// Uses crypto/rand for randomness.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	code := n.Int64() + 100000
	return formatCode(code), nil
}

func formatCode(n int64) string {
	buf := [6]byte{}
	for i := 5; i >= 0; i-- {
		buf[i] = '0' + byte(n%10)
		n /= 10
	}
	return string(buf[:])
}

// HashCode returns a SHA-256 hash of the code, hex-encoded, for storage.
func HashCode(code string) string {
	h := sha256.Sum256([]byte(code))
	return hex.EncodeToString(h[:])
}

// CodeEqual performs constant-time comparison of the submitted code's hash
// with the stored hash.
func CodeEqual(submitted, storedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashCode(submitted)), []byte(storedHash)) == 1
}
