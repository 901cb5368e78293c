package resolver

import (
	crand "crypto/rand"
	"fmt"
	"math/rand/v2"
	"sync"
)

// RandomSource is the only source of randomness a game may use.
// *rand.Rand from math/rand/v2 satisfies it.
type RandomSource interface {
	IntN(n int) int
	Float64() float64
}

// lockedSource serializes access to a ChaCha8 generator
type lockedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSecureSource returns a goroutine-safe source seeded from the OS CSPRNG
func NewSecureSource() (RandomSource, error) {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("failed to seed random source: %w", err)
	}
	return &lockedSource{rng: rand.New(rand.NewChaCha8(seed))}, nil
}

// NewSeededSource returns a deterministic source, used for replays and tests
func NewSeededSource(seed [32]byte) RandomSource {
	return &lockedSource{rng: rand.New(rand.NewChaCha8(seed))}
}

func (s *lockedSource) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}
