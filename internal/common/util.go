package common

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

// RandomDigits returns a string of n decimal digits drawn uniformly from
// crypto/rand. Leading zeros are kept.
func RandomDigits(n int) (string, error) {
	if n <= 0 {
		return "", errors.New("digit count must be positive")
	}

	var b strings.Builder
	b.Grow(n)

	ten := big.NewInt(10)
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}

// IsDigits reports whether s is non-empty and consists of ASCII digits only.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
