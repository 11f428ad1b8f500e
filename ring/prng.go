package ring

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/sha3"
)

// SeedSize is the width of the per-ciphertext / per-key-switch-row seed
// (spec.md §4.3: "a 64-byte seed").
const SeedSize = 64

// NewSeed draws a fresh SeedSize-byte seed from the system CSPRNG, for a
// freshly-encrypted ciphertext's "a" polynomial or a key-switch-key row.
func NewSeed() ([SeedSize]byte, error) {
	var seed [SeedSize]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return seed, fmt.Errorf("ring.NewSeed: %w", err)
	}
	return seed, nil
}

// SeededSource is the deterministic byte stream spec.md §9 requires:
// SHAKE-128 over the concatenation of the 64-byte seed and a 4-byte
// big-endian domain separator carrying the RNS limb index, so that any
// party holding only the seed reproduces the same "a" polynomial bit for
// bit, one limb's stream at a time.
type SeededSource struct {
	seed [SeedSize]byte
}

// NewSeededSource wraps a seed for deterministic per-limb stream derivation.
func NewSeededSource(seed [SeedSize]byte) *SeededSource { return &SeededSource{seed: seed} }

// LimbReader returns the SHAKE-128 stream reader for RNS limb index i.
func (s *SeededSource) LimbReader(limb int) io.Reader {
	h := sha3.NewShake128()
	h.Write(s.seed[:])
	var sep [4]byte
	binary.BigEndian.PutUint32(sep[:], uint32(limb))
	h.Write(sep[:])
	return h
}

// SampleUniformPoly fills every limb of out (Coeff form) with uniform
// residues mod each limb's modulus, deterministically derived from seed via
// SeededSource, matching the teacher's CRPGenerator but specified
// bit-exactly per spec.md §9 instead of left to an unspecified PRNG.
func (r *Ring) SampleUniformPoly(seed [SeedSize]byte, out *Poly) {
	src := NewSeededSource(seed)
	for i, m := range r.Moduli {
		reader := src.LimbReader(i)
		sampleUniformLimb(reader, m.Q, out.Coeffs[i])
	}
	out.Format = Coeff
}

func sampleUniformLimb(reader io.Reader, q uint64, dst []uint64) {
	bitLen := 0
	for (uint64(1) << uint(bitLen)) < q {
		bitLen++
	}
	byteLen := (bitLen + 7) / 8
	mask := uint64(1)<<uint(bitLen) - 1
	buf := make([]byte, byteLen)
	for i := range dst {
		for {
			if _, err := io.ReadFull(reader, buf); err != nil {
				panic(fmt.Sprintf("ring: deterministic source exhausted: %v", err))
			}
			v := uint64(0)
			for _, b := range buf {
				v = v<<8 | uint64(b)
			}
			v &= mask
			if v < q {
				dst[i] = v
				break
			}
		}
	}
}
