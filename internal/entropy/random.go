// Package entropy provides the seeded random streams the simulation roles
// draw from. Each role owns one Source; sources are never shared between
// goroutines.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	mrand "math/rand/v2"
)

// Stream numbers for the roles that draw random numbers. A role's stream is
// fixed so that the same master seed always hands it the same sequence.
const (
	StreamPopularity uint64 = iota + 3
	StreamReporter
)

// Source is a seeded pseudo-random generator. It is not safe for concurrent
// use; give each goroutine its own.
type Source struct {
	rng *mrand.Rand
}

// New creates a source for one stream of the master seed.
func New(seed, stream uint64) *Source {
	return &Source{rng: mrand.New(mrand.NewPCG(seed, stream))}
}

// Float returns a value in [low, high).
func (s *Source) Float(low, high float64) float64 {
	return low + s.rng.Float64()*(high-low)
}

// Int returns a value in [low, high], both ends inclusive.
func (s *Source) Int(low, high int) int {
	if high <= low {
		return low
	}
	return low + s.rng.IntN(high-low+1)
}

// NewSeed draws a fresh master seed from crypto/rand.
func NewSeed() (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	seed := binary.LittleEndian.Uint64(buf[:])
	if seed == 0 {
		// 0 means "unset" in configuration.
		seed = 1
	}
	return seed, nil
}
