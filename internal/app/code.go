package app

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	mrand "math/rand"
	"strconv"

	"bleepy-challenge-service/internal/domain"
)

const (
	codeMin = 100000
	codeMax = 999999
)

// GenerateCode draws a 6-digit code uniformly from [100000, 999999].
func GenerateCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return strconv.Itoa(codeMin + mrand.Intn(codeMax-codeMin+1))
	}
	return strconv.Itoa(codeMin + int(n.Int64()))
}

// CodeGenerator hands out codes until one is accepted or the attempt budget runs out.
type CodeGenerator struct {
	attempts int
	generate func() string
}

func NewCodeGenerator(attempts int) *CodeGenerator {
	return NewCodeGeneratorFunc(attempts, GenerateCode)
}

// NewCodeGeneratorFunc uses generate as the code source.
func NewCodeGeneratorFunc(attempts int, generate func() string) *CodeGenerator {
	if attempts <= 0 {
		attempts = 1
	}
	return &CodeGenerator{attempts: attempts, generate: generate}
}

// Acquire calls claim with fresh codes. A claim error of domain.ErrCodeTaken
// is a collision and triggers another draw; any other error aborts.
func (g *CodeGenerator) Acquire(ctx context.Context, claim func(code string) error) (string, error) {
	for i := 0; i < g.attempts; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		code := g.generate()
		err := claim(code)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, domain.ErrCodeTaken) {
			return "", err
		}
	}
	return "", domain.ErrCodeGenerationExhausted
}
