package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 100000
	saltLength       = 32
	keyLength        = 32
)

// HashPassword derives a PBKDF2-HMAC-SHA-256 hash with a fresh random
// salt. Both values are returned hex-encoded for storage.
func HashPassword(password string) (hash, salt string, err error) {
	saltBytes := make([]byte, saltLength)
	if _, err := rand.Read(saltBytes); err != nil {
		return "", "", fmt.Errorf("generate salt: %w", err)
	}

	key := pbkdf2.Key([]byte(password), saltBytes, pbkdf2Iterations, keyLength, sha256.New)
	return hex.EncodeToString(key), hex.EncodeToString(saltBytes), nil
}

// VerifyPassword checks a password against a stored hash and salt in
// constant time.
func VerifyPassword(password, hash, salt string) bool {
	saltBytes, err := hex.DecodeString(salt)
	if err != nil {
		return false
	}
	expected, err := hex.DecodeString(hash)
	if err != nil {
		return false
	}

	key := pbkdf2.Key([]byte(password), saltBytes, pbkdf2Iterations, keyLength, sha256.New)
	return subtle.ConstantTimeCompare(key, expected) == 1
}
