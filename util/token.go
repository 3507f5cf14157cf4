// Package util contains any functions used across the application that don't match
// any other package
package util

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

func GenerateToken(n int) (string, error) {
	b := make([]byte, n)

	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}

// NumericCode returns a random string of n decimal digits, used for
// email verification codes
func NumericCode(n int) string {
	b := make([]byte, n)
	rand.Read(b)

	for i := range b {
		b[i] = '0' + b[i]%10
	}

	return string(b)
}

// SaltKey mixes a client identifying token into a session key so the
// stored key only matches lookups from the same origin
func SaltKey(key, salt string) string {
	sum := sha256.Sum256([]byte(key + "|" + salt))
	return hex.EncodeToString(sum[:])
}
