// Package token generates and compares attendance tokens.
package token

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strings"
)

const (
	// Length of an attendance token.
	Length = 10
	// Alphabet of an attendance token.
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var alphabetSize = big.NewInt(int64(len(Alphabet)))

// Generate returns a uniformly random token of Length characters from Alphabet.
func Generate() (string, error) {
	var b strings.Builder
	b.Grow(Length)
	for i := 0; i < Length; i++ {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("generate token: %w", err)
		}
		b.WriteByte(Alphabet[n.Int64()])
	}
	return b.String(), nil
}

// Normalize uppercases and trims a submitted token.
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Equal compares a submitted token with the stored one, ignoring case and
// surrounding whitespace, in constant time.
func Equal(submitted, stored string) bool {
	a, b := Normalize(submitted), Normalize(stored)
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Valid reports whether s has the shape of a generated token.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !strings.ContainsRune(Alphabet, rune(s[i])) {
			return false
		}
	}
	return true
}
