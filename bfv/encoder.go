package bfv

import (
	"fmt"
	"math/bits"

	"github.com/latticepir/bfvpir/bfverr"
	"github.com/latticepir/bfvpir/ring"
)

// Encoder maps application vectors to/from plaintext polynomials in the two
// encoding formats spec.md §3 describes: Coefficient (the i-th value
// becomes the i-th coefficient) and SIMD (independent lanes via the
// batching isomorphism, available only when t ≡ 1 mod 2N).
type Encoder struct {
	ctx         *Context
	indexMatrix []int // logical slot -> physical NTT-storage position, built once
}

// NewEncoder builds an Encoder for ctx. SIMD encoding is only usable if
// ctx.Params.SIMDCapable(); EncodeSIMD/DecodeSIMD return an error otherwise.
func NewEncoder(ctx *Context) *Encoder {
	e := &Encoder{ctx: ctx}
	if ctx.RT == nil {
		return e
	}
	n := ctx.Params.N()
	logN := uint64(bits.Len64(n) - 1)
	m := 2 * n
	rowSize := n / 2
	idx := make([]int, n)
	pos := uint64(1)
	for i := uint64(0); i < rowSize; i++ {
		index1 := (pos - 1) >> 1
		index2 := (m - pos - 1) >> 1
		idx[i] = int(bitReverseIdx(index1, logN))
		idx[i+rowSize] = int(bitReverseIdx(index2, logN))
		pos = (pos * ring.GaloisGen) & (m - 1)
	}
	e.indexMatrix = idx
	return e
}

func bitReverseIdx(x, logN uint64) uint64 {
	return bits.Reverse64(x) >> (64 - logN)
}

// EncodeCoeff places vals[i] as the i-th coefficient mod t. len(vals) must
// not exceed N; unfilled coefficients are zero.
func (e *Encoder) EncodeCoeff(vals []uint64) (*Plaintext, error) {
	n := e.ctx.Params.N()
	if uint64(len(vals)) > n {
		return nil, fmt.Errorf("bfv.EncodeCoeff: %w: %d values exceeds degree N=%d", bfverr.ErrValidation, len(vals), n)
	}
	pt := NewPlaintext(n)
	t := e.ctx.Params.T
	for i, v := range vals {
		pt.Value.Coeffs[0][i] = v % t
	}
	return pt, nil
}

// DecodeCoeff reads back the coefficient encoding.
func (e *Encoder) DecodeCoeff(pt *Plaintext) []uint64 {
	out := make([]uint64, len(pt.Value.Coeffs[0]))
	copy(out, pt.Value.Coeffs[0])
	return out
}

// EncodeCoeffSigned is EncodeCoeff for centered ("signed") values in
// (-t/2, t/2], as used by the round-trip property of spec.md §8.1.
func (e *Encoder) EncodeCoeffSigned(vals []int64) (*Plaintext, error) {
	t := e.ctx.Params.T
	unsigned := make([]uint64, len(vals))
	for i, v := range vals {
		unsigned[i] = ring.Uncenter(v, t)
	}
	return e.EncodeCoeff(unsigned)
}

// DecodeCoeffSigned reads back coefficients as centered values in (-t/2, t/2].
func (e *Encoder) DecodeCoeffSigned(pt *Plaintext) []int64 {
	t := e.ctx.Params.T
	raw := e.DecodeCoeff(pt)
	out := make([]int64, len(raw))
	for i, v := range raw {
		out[i] = ring.Center(v, t)
	}
	return out
}

// EncodeSIMD batches len(vals) <= N values into independent SIMD lanes,
// permuting under the fixed generator order of spec.md §3.
func (e *Encoder) EncodeSIMD(vals []uint64) (*Plaintext, error) {
	if e.ctx.RT == nil {
		return nil, fmt.Errorf("bfv.EncodeSIMD: %w: plaintext modulus does not satisfy t = 1 mod 2N", bfverr.ErrValidation)
	}
	n := e.ctx.Params.N()
	if uint64(len(vals)) > n {
		return nil, fmt.Errorf("bfv.EncodeSIMD: %w: %d values exceeds degree N=%d", bfverr.ErrValidation, len(vals), n)
	}
	t := e.ctx.Params.T
	evalPoly := e.ctx.RT.NewPoly()
	evalPoly.Format = ring.Eval
	for i, v := range vals {
		evalPoly.Coeffs[0][e.indexMatrix[i]] = v % t
	}
	if err := e.ctx.RT.InvNTT(evalPoly); err != nil {
		return nil, fmt.Errorf("bfv.EncodeSIMD: %w", err)
	}
	return &Plaintext{Value: evalPoly}, nil
}

// DecodeSIMD reads back the SIMD slot vector.
func (e *Encoder) DecodeSIMD(pt *Plaintext) ([]uint64, error) {
	if e.ctx.RT == nil {
		return nil, fmt.Errorf("bfv.DecodeSIMD: %w: plaintext modulus does not satisfy t = 1 mod 2N", bfverr.ErrValidation)
	}
	evalPoly, err := e.ctx.RT.NTTNew(pt.Value)
	if err != nil {
		return nil, fmt.Errorf("bfv.DecodeSIMD: %w", err)
	}
	n := e.ctx.Params.N()
	out := make([]uint64, n)
	for i := uint64(0); i < n; i++ {
		out[i] = evalPoly.Coeffs[0][e.indexMatrix[i]]
	}
	return out, nil
}
