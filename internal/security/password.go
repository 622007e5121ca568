package security

import (
	"crypto/rand"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// Hash password hashes a plain text password with bcrypt.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)

	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// helper that compares a bcrypt hash with a plaintext password.

func CheckPassword(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}

const temporaryAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnpqrstuvwxyz23456789"

// TemporaryPassword generates the one-time password handed to a newly provisioned account.
func TemporaryPassword(length int) (string, error) {
	if length < 8 {
		length = 8
	}

	out := make([]byte, length)
	max := big.NewInt(int64(len(temporaryAlphabet)))

	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = temporaryAlphabet[n.Int64()]
	}
	return string(out), nil
}
