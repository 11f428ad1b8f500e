package bfv

import (
	"fmt"
	"runtime"

	"github.com/latticepir/bfvpir/ring"
)

// SecretKey holds a ternary polynomial in Eval form (spec.md §3). It is
// owned by its generator, must not be shared beyond the duration of a
// single synchronous call, and is zeroized by Dispose before release.
type SecretKey struct {
	Value *ring.Poly
}

// NewSecretKey samples a fresh ternary secret key under ctx and converts it
// to Eval form, matching spec.md §4.3 key generation step 1.
func NewSecretKey(ctx *Context) (*SecretKey, error) {
	vals, err := ring.SampleTernary(int(ctx.Params.N()))
	if err != nil {
		return nil, fmt.Errorf("bfv.NewSecretKey: %w", err)
	}
	p := ctx.RQ.EncodeSigned(vals)
	if err := ctx.RQ.NTT(p); err != nil {
		return nil, fmt.Errorf("bfv.NewSecretKey: %w", err)
	}
	return &SecretKey{Value: p}, nil
}

// Dispose overwrites the key's backing storage with zeros through a loop
// the compiler cannot prove dead (each limb's writes are followed by
// runtime.KeepAlive, which pins the slice as observably used), then drops
// the reference. Callers must not use the SecretKey after calling Dispose.
func (sk *SecretKey) Dispose() {
	if sk == nil || sk.Value == nil {
		return
	}
	for _, limb := range sk.Value.Coeffs {
		for i := range limb {
			limb[i] = 0
		}
		runtime.KeepAlive(limb)
	}
	sk.Value = nil
}

// EvaluationKeyConfig is the set of Galois elements and the
// relinearization-key flag an operation requires, supporting the
// commutative-monoid union used to combine requirements across shards
// (spec.md §5 "Ordering guarantees").
type EvaluationKeyConfig struct {
	GaloisElements map[uint64]bool
	RelinKey       bool
}

// NewEvaluationKeyConfig builds a config requiring exactly the given Galois
// elements (and, optionally, a relinearization key).
func NewEvaluationKeyConfig(relin bool, elements ...uint64) EvaluationKeyConfig {
	c := EvaluationKeyConfig{GaloisElements: make(map[uint64]bool, len(elements)), RelinKey: relin}
	for _, g := range elements {
		c.GaloisElements[g] = true
	}
	return c
}

// Union returns the pointwise union of Galois-element sets and the
// logical-OR of the relinearization flag, forming a commutative monoid
// (spec.md §5) so that shard-level configs can be reduced in any order.
func (c EvaluationKeyConfig) Union(other EvaluationKeyConfig) EvaluationKeyConfig {
	out := EvaluationKeyConfig{GaloisElements: make(map[uint64]bool, len(c.GaloisElements)+len(other.GaloisElements)), RelinKey: c.RelinKey || other.RelinKey}
	for g := range c.GaloisElements {
		out.GaloisElements[g] = true
	}
	for g := range other.GaloisElements {
		out.GaloisElements[g] = true
	}
	return out
}

// Contains reports whether g is among the required Galois elements.
func (c EvaluationKeyConfig) Contains(g uint64) bool {
	return c.GaloisElements[g]
}

// Elements returns the required Galois elements as a slice, in ascending
// order, for deterministic iteration (e.g. when generating keys).
func (c EvaluationKeyConfig) Elements() []uint64 {
	out := make([]uint64, 0, len(c.GaloisElements))
	for g := range c.GaloisElements {
		out = append(out, g)
	}
	// simple insertion sort: configs are small (at most a few dozen
	// elements), so this avoids pulling in sort for one call site.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// KeySwitchRow is one row of a key-switch gadget: a ciphertext-like pair
// (B,A) encrypting a decomposition digit of the target value under the
// owning secret key, with A's seed recorded so the wire form need only
// carry B (spec.md §4.4 "Evaluation key on the wire").
type KeySwitchRow struct {
	B    *ring.Poly
	A    *ring.Poly
	Seed [ring.SeedSize]byte
}

// KeySwitchKey is the L-row gadget of spec.md §3 "EvaluationKey": a vector
// of KeySwitchRow, one per modulus in the coefficient chain, encrypting
// floor(Q/qi) * targetDelta under the secret key.
type KeySwitchKey struct {
	Rows []KeySwitchRow
}

// EvaluationKey maps Galois elements to key-switch keys, plus an optional
// relinearization key (spec.md §3).
type EvaluationKey struct {
	Galois map[uint64]*KeySwitchKey
	Relin  *KeySwitchKey
}

// Config reports the EvaluationKeyConfig this key actually satisfies.
func (ek *EvaluationKey) Config() EvaluationKeyConfig {
	elems := make([]uint64, 0, len(ek.Galois))
	for g := range ek.Galois {
		elems = append(elems, g)
	}
	return NewEvaluationKeyConfig(ek.Relin != nil, elems...)
}

// Has reports whether ek contains a key-switch key for Galois element g.
func (ek *EvaluationKey) Has(g uint64) bool {
	_, ok := ek.Galois[g]
	return ok
}
