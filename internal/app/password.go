package app

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

// PasswordGenerator draws each character independently and uniformly from a fixed charset.
type PasswordGenerator struct {
	charset []rune
	length  int
	random  io.Reader
}

func NewPasswordGenerator(charset string, length int) (*PasswordGenerator, error) {
	runes := []rune(charset)
	if len(runes) == 0 {
		return nil, fmt.Errorf("password charset must not be empty")
	}
	if length < 1 {
		return nil, fmt.Errorf("password length must be positive, got %d", length)
	}
	return &PasswordGenerator{charset: runes, length: length, random: rand.Reader}, nil
}

func (g *PasswordGenerator) Generate() (string, error) {
	max := big.NewInt(int64(len(g.charset)))
	out := make([]rune, g.length)
	for i := range out {
		n, err := rand.Int(g.random, max)
		if err != nil {
			return "", fmt.Errorf("failed to read randomness: %w", err)
		}
		out[i] = g.charset[n.Int64()]
	}
	return string(out), nil
}
