package usecase

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// ShortCodeAlphabet is the set of symbols short codes are built from.
	ShortCodeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	MinShortCodeLength     = 6
	MaxShortCodeLength     = 10
	DefaultShortCodeLength = 7
)

// NanoIDGenerator produces random short code candidates. It does not check
// uniqueness; the repository insert does.
type NanoIDGenerator struct {
	length int
}

func NewNanoIDGenerator(length int) *NanoIDGenerator {
	return &NanoIDGenerator{length: length}
}

func (g *NanoIDGenerator) Generate() (string, error) {
	const op = "usecase.NanoIDGenerator.Generate"

	if g.length < MinShortCodeLength || g.length > MaxShortCodeLength {
		return "", fmt.Errorf("%s: short code length %d out of range [%d, %d]",
			op, g.length, MinShortCodeLength, MaxShortCodeLength)
	}

	code, err := gonanoid.Generate(ShortCodeAlphabet, g.length)
	if err != nil {
		return "", fmt.Errorf("%s: failed to generate short code: %w", op, err)
	}

	return code, nil
}

// ValidShortCode reports whether code could have been produced by a generator.
func ValidShortCode(code string) bool {
	if len(code) < MinShortCodeLength || len(code) > MaxShortCodeLength {
		return false
	}

	for i := 0; i < len(code); i++ {
		c := code[i]
		if !('0' <= c && c <= '9' || 'A' <= c && c <= 'Z' || 'a' <= c && c <= 'z') {
			return false
		}
	}

	return true
}
