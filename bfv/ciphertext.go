package bfv

import "github.com/latticepir/bfvpir/ring"

// State is the ciphertext lifecycle state machine of spec.md §4.3:
// Fresh(seeded) -> Mutated(full) -> ReducedLevel(full) -> SingleModulus(full).
// Seed is cleared at the first transition; level only ever decreases; once
// SingleModulus, multiplication is forbidden.
type State int

const (
	StateFresh State = iota
	StateMutated
	StateReducedLevel
	StateSingleModulus
)

// Ciphertext is the ordered tuple of k >= 2 polynomials over the current
// coefficient chain, plus the correction factor and optional seed of
// spec.md §3.
type Ciphertext struct {
	Polys []*ring.Poly // k polynomials, all same level and format

	// CorrectionFactor in Z_t, used by key-switched results (spec.md §3).
	CorrectionFactor uint64

	// Seed is non-nil only while the ciphertext is in StateFresh: Polys[1]
	// ("a") can be reconstructed deterministically from it, so the seeded
	// wire form need only carry Polys[0] ("b") plus Seed.
	Seed *[ring.SeedSize]byte

	State State
}

// Degree returns k-1 (1 for a fresh/relinearized ciphertext, 2 during a
// pending multiplication before relinearization).
func (c *Ciphertext) Degree() int { return len(c.Polys) - 1 }

// Level returns the current RNS level (limbs-1) of the ciphertext's
// polynomials.
func (c *Ciphertext) Level() int { return c.Polys[0].Level() }

// markMutated clears the seed and advances Fresh -> Mutated; states past
// Fresh are unaffected (seed is already nil there).
func (c *Ciphertext) markMutated() {
	if c.State == StateFresh {
		c.State = StateMutated
		c.Seed = nil
	}
}

// markReducedLevel advances towards ReducedLevel/SingleModulus after a
// mod-switch.
func (c *Ciphertext) markReducedLevel(single bool) {
	c.markMutated()
	if single {
		c.State = StateSingleModulus
	} else if c.State != StateSingleModulus {
		c.State = StateReducedLevel
	}
}

// CopyNew returns a deep copy of c.
func (c *Ciphertext) CopyNew() *Ciphertext {
	polys := make([]*ring.Poly, len(c.Polys))
	for i, p := range c.Polys {
		polys[i] = p.CopyNew()
	}
	var seed *[ring.SeedSize]byte
	if c.Seed != nil {
		s := *c.Seed
		seed = &s
	}
	return &Ciphertext{Polys: polys, CorrectionFactor: c.CorrectionFactor, Seed: seed, State: c.State}
}
