package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const tokenAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Generator creates opaque IDs suitable for entity primary keys.
type Generator interface {
	NewID() (string, error)
}

type RandomGenerator struct{}

func NewRandomGenerator() *RandomGenerator {
	return &RandomGenerator{}
}

func (g *RandomGenerator) NewID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}

	return hex.EncodeToString(buf), nil
}

// Token returns n characters drawn uniformly from the uppercase base-36
// alphabet. Used for the random suffix of ledger references.
func Token(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}

	buf := make([]byte, n)
	out := make([]byte, n)
	for filled := 0; filled < n; {
		if _, err := rand.Read(buf[:n-filled]); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf[:n-filled] {
			// 252 is the largest multiple of 36 below 256; reject the rest.
			if b >= 252 {
				continue
			}
			out[filled] = tokenAlphabet[int(b)%len(tokenAlphabet)]
			filled++
		}
	}

	return string(out), nil
}
