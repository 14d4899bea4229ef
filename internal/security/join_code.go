package security

import (
	"crypto/rand"
	"errors"
	"io"
	"math/big"
)

const (
	JoinCodeLength   = 6
	JoinCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var errNoEntropy = errors.New("entropy source is required")

// JoinCode draws an invitation code uniformly from JoinCodeAlphabet using crypto/rand.
func JoinCode() (string, error) {
	return JoinCodeFrom(rand.Reader)
}

func JoinCodeFrom(entropy io.Reader) (string, error) {
	if entropy == nil {
		return "", errNoEntropy
	}

	limit := big.NewInt(int64(len(JoinCodeAlphabet)))
	code := make([]byte, JoinCodeLength)
	for index := range code {
		position, err := rand.Int(entropy, limit)
		if err != nil {
			return "", err
		}
		code[index] = JoinCodeAlphabet[position.Int64()]
	}
	return string(code), nil
}

// IsJoinCode reports whether value is exactly JoinCodeLength characters of A-Z or 0-9.
func IsJoinCode(value string) bool {
	if len(value) != JoinCodeLength {
		return false
	}
	for _, char := range value {
		if (char < 'A' || char > 'Z') && (char < '0' || char > '9') {
			return false
		}
	}
	return true
}
