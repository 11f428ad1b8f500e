package bfv

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/latticepir/bfvpir/ring"
)

// Context is the derived, precomputed state for one Parameters value
// (spec.md §3 "Context"): NTT tables for the Q chain (via ring.Ring),
// per-modulus floor(Q/t) scaling constants, the RNS basis-change constants
// used by decryption, an auxiliary RNS basis used to carry the exact
// (un-reduced) magnitude of a ciphertext product through relinearization,
// and cached automorphism index tables. Built once from Parameters and
// immutable thereafter apart from that cache, which is guarded by a mutex;
// safe to share across goroutines.
type Context struct {
	Params Parameters

	RQ *ring.Ring // the coefficient-modulus chain q0..qL-1
	RT *ring.Ring // single-modulus ring for the plaintext space, if t supports NTT (SIMD)

	QBasis *ring.RNSBasis // CRT constants over Q, used by decryption

	// Delta[i] = floor(Q/t) mod qi, used to scale a Coeff-form plaintext
	// into the ciphertext domain at encryption time.
	Delta []uint64

	// auxiliary RNS basis (disjoint primes from Q) used only during
	// ciphertext x ciphertext multiplication to represent the product
	// exactly before rescaling by t/Q.
	AuxModuli []uint64
	QAuxBasis *ring.RNSBasis // CRT constants over Q ∪ Aux

	galoisMu    sync.Mutex
	galoisCache map[uint64]ring.AutomorphismIndex
}

// NewContext derives the Context for params.
func NewContext(params Parameters) (*Context, error) {
	n := params.N()
	rq, err := ring.NewRing(n, params.Q)
	if err != nil {
		return nil, fmt.Errorf("bfv.NewContext: %w", err)
	}

	ctx := &Context{
		Params:      params,
		RQ:          rq,
		QBasis:      ring.NewRNSBasis(params.Q),
		galoisCache: make(map[uint64]ring.AutomorphismIndex),
	}

	if params.SIMDCapable() {
		if rt, err := ring.NewRing(n, []uint64{params.T}); err == nil {
			ctx.RT = rt
		}
	}

	ctx.Delta = computeDelta(params.Q, params.T)

	auxBits := auxiliaryBitSizes(params)
	aux, err := ring.GenNTTFriendlyPrimes(n, auxBits, false)
	if err != nil {
		return nil, fmt.Errorf("bfv.NewContext: generating auxiliary multiplication basis: %w", err)
	}
	ctx.AuxModuli = aux
	ctx.QAuxBasis = ring.NewRNSBasis(append(append([]uint64(nil), params.Q...), aux...))

	return ctx, nil
}

// computeDelta returns floor(Q/t) mod qi for every qi in qs, computed
// exactly via big.Int.
func computeDelta(qs []uint64, t uint64) []uint64 {
	qBig := big.NewInt(1)
	for _, qi := range qs {
		qBig.Mul(qBig, new(big.Int).SetUint64(qi))
	}
	delta := new(big.Int).Quo(qBig, new(big.Int).SetUint64(t))
	out := make([]uint64, len(qs))
	for i, qi := range qs {
		out[i] = new(big.Int).Mod(delta, new(big.Int).SetUint64(qi)).Uint64()
	}
	return out
}

// auxiliaryBitSizes sizes the auxiliary multiplication basis generously
// enough that Q ∪ Aux can hold the exact (un-reduced) magnitude of any
// degree-2 ciphertext product's coefficients: each coefficient is a
// negacyclic convolution of N terms each bounded by Q/2, so its magnitude
// is bounded by N*(Q/2)^2, requiring roughly 2*log2(Q) + log2(N) + 2 bits
// total across Q ∪ Aux.
func auxiliaryBitSizes(params Parameters) []int {
	logQ := 0
	for _, qi := range params.Q {
		b := 0
		for (uint64(1) << uint(b)) < qi {
			b++
		}
		logQ += b
	}
	logN := params.LogN
	needed := logQ + logN + 4 // extra bits beyond Q already provided by the Q basis itself
	width := int(params.Width)
	var sizes []int
	for needed > 0 {
		b := width
		if needed < b {
			b = needed
			if b < 20 {
				b = 20 // keep auxiliary primes large enough to stay NTT-friendly and plentiful
			}
		}
		sizes = append(sizes, b)
		needed -= b
	}
	return sizes
}

// AutomorphismIndex returns (and caches) the permutation table for Galois
// element g.
func (c *Context) AutomorphismIndex(g uint64) (ring.AutomorphismIndex, error) {
	c.galoisMu.Lock()
	defer c.galoisMu.Unlock()
	if ai, ok := c.galoisCache[g]; ok {
		return ai, nil
	}
	ai, err := ring.NewAutomorphismIndex(c.Params.N(), g)
	if err != nil {
		return ring.AutomorphismIndex{}, err
	}
	c.galoisCache[g] = ai
	return ai, nil
}
