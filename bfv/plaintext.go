package bfv

import "github.com/latticepir/bfvpir/ring"

// Plaintext is a single-limb polynomial over the plaintext modulus t
// (spec.md §3). Value.Format records whether it is ready for direct use in
// ciphertext x plaintext Eval-form multiplication or is still in
// Coeff form (the natural output of Encode).
type Plaintext struct {
	Value *ring.Poly
}

// NewPlaintext allocates a zero Plaintext of degree n.
func NewPlaintext(n uint64) *Plaintext {
	return &Plaintext{Value: ring.NewPoly(int(n), 0)}
}
