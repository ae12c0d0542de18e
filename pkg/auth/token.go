package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

// KeyBytes is the entropy of a token key; keys are its lowercase hex
// encoding, 40 characters long
const KeyBytes = 20

// TokenGenerator issues token keys
type TokenGenerator struct {
	source io.Reader
}

// NewTokenGenerator reads from crypto/rand
func NewTokenGenerator() *TokenGenerator {
	return &TokenGenerator{source: rand.Reader}
}

// GenerateKey returns a fresh random key
func (g *TokenGenerator) GenerateKey() (string, error) {
	buf := make([]byte, KeyBytes)
	if _, err := io.ReadFull(g.source, buf); err != nil {
		return "", fmt.Errorf("failed to read token entropy: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
