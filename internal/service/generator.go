package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/Dan9191/bank-cards/internal/repository"
	"github.com/Dan9191/bank-cards/internal/utils"
)

// DefaultGenerationAttempts bounds the retries on number collisions
const DefaultGenerationAttempts = 5

// NumberGenerator produces unique Luhn-valid card numbers
type NumberGenerator struct {
	index    utils.NumberIndex
	rand     io.Reader
	attempts int
}

// NewNumberGenerator creates a generator backed by crypto/rand
func NewNumberGenerator(index utils.NumberIndex, attempts int) *NumberGenerator {
	if attempts < 1 {
		attempts = DefaultGenerationAttempts
	}
	return &NumberGenerator{index: index, rand: rand.Reader, attempts: attempts}
}

// Generate returns a number not yet issued and its digest. Store errors are
// returned immediately; only collisions are retried.
func (g *NumberGenerator) Generate(ctx context.Context, cards repository.CardRepository) (string, string, error) {
	for i := 0; i < g.attempts; i++ {
		number, err := utils.GenerateCardNumber(g.rand)
		if err != nil {
			return "", "", err
		}
		digest := g.index.Digest(number)
		exists, err := cards.ExistsByNumberDigest(ctx, digest)
		if err != nil {
			return "", "", err
		}
		if !exists {
			return number, digest, nil
		}
	}
	return "", "", fmt.Errorf("%w after %d attempts", utils.ErrGenerationExhausted, g.attempts)
}
