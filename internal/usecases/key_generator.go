package usecases

import (
	"context"
	"crypto/rand"
	"fmt"

	"keyauth.backend/internal/domain/repositories"
)

const (
	KeyLength   = 10
	keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var keyRandRead = rand.Read

// GenerateKey returns KeyLength characters from keyAlphabet, one random byte
// per character reduced modulo the alphabet size.
func GenerateKey() (string, error) {
	buf := make([]byte, KeyLength)
	if _, err := keyRandRead(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = keyAlphabet[int(b)%len(keyAlphabet)]
	}
	return string(buf), nil
}

// generateUniqueKey regenerates until the store does not hold the candidate.
func generateUniqueKey(ctx context.Context, repo repositories.ActivationKeyRepository) (string, error) {
	for {
		key, err := GenerateKey()
		if err != nil {
			return "", err
		}
		exists, err := repo.Contains(ctx, key)
		if err != nil {
			return "", err
		}
		if !exists {
			return key, nil
		}
	}
}
