// Package random builds the pseudo-random generators used to draw markers.
//
// Every game owns its generator. A configured seed makes a game's draws
// reproducible; without one each generator is seeded from crypto/rand.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
)

// streamSalt separates the two PCG words derived from a single seed.
const streamSalt = 0x9e3779b97f4a7c15

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}

	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// New returns a generator whose sequence is fully determined by seed.
func New(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)^streamSalt))
}

// Factory returns a constructor of per-game generators. A zero seed means a
// fresh crypto seed for every generator.
func Factory(seed int64) func() (*rand.Rand, error) {
	return func() (*rand.Rand, error) {
		if seed != 0 {
			return New(seed), nil
		}

		fresh, err := NewSeed()
		if err != nil {
			return nil, err
		}

		return New(fresh), nil
	}
}
