package bfv

import (
	"fmt"
	"math/big"

	"github.com/latticepir/bfvpir/bfverr"
	"github.com/latticepir/bfvpir/ring"
)

// Evaluator performs homomorphic operations on ciphertexts under a fixed
// Context and EvaluationKey (spec.md §4.3 "Ciphertext arithmetic").
type Evaluator struct {
	ctx *Context
	ek  *EvaluationKey
}

// NewEvaluator binds an Evaluator to ek, which may be nil if only
// addition/plaintext operations are needed.
func NewEvaluator(ctx *Context, ek *EvaluationKey) *Evaluator {
	return &Evaluator{ctx: ctx, ek: ek}
}

func (ev *Evaluator) toEval(rq *ring.Ring, p *ring.Poly) (*ring.Poly, error) {
	if p.Format == ring.Eval {
		return p, nil
	}
	return rq.NTTNew(p)
}

func (ev *Evaluator) checkCompatible(a, b *Ciphertext) error {
	if a.Level() != b.Level() {
		return fmt.Errorf("bfv: %w: %d vs %d", bfverr.ErrLevelMismatch, a.Level(), b.Level())
	}
	if a.State == StateSingleModulus || b.State == StateSingleModulus {
		return fmt.Errorf("bfv: %w: single-modulus ciphertexts only support decryption", bfverr.ErrValidation)
	}
	return nil
}

// Add returns ct0+ct1, matching operands pairwise by polynomial index (the
// shorter ciphertext is implicitly zero-extended to the longer's degree).
func (ev *Evaluator) Add(ct0, ct1 *Ciphertext) (*Ciphertext, error) {
	if err := ev.checkCompatible(ct0, ct1); err != nil {
		return nil, fmt.Errorf("bfv.Add: %w", err)
	}
	if ct0.CorrectionFactor != ct1.CorrectionFactor {
		return nil, fmt.Errorf("bfv.Add: %w: correction factors differ (%d vs %d)", bfverr.ErrValidation, ct0.CorrectionFactor, ct1.CorrectionFactor)
	}
	rq := ev.ctx.RQ.AtLevel(ct0.Level())
	degree := ct0.Degree()
	if ct1.Degree() > degree {
		degree = ct1.Degree()
	}
	out := make([]*ring.Poly, degree+1)
	for i := range out {
		var a, b *ring.Poly
		if i < len(ct0.Polys) {
			a = ct0.Polys[i]
		}
		if i < len(ct1.Polys) {
			b = ct1.Polys[i]
		}
		switch {
		case a != nil && b != nil:
			p := rq.NewPoly()
			p.Format = a.Format
			if a.Format != b.Format {
				return nil, fmt.Errorf("bfv.Add: %w", bfverr.ErrFormatMismatch)
			}
			if err := rq.Add(a, b, p); err != nil {
				return nil, fmt.Errorf("bfv.Add: %w", err)
			}
			out[i] = p
		case a != nil:
			out[i] = a.CopyNew()
		default:
			out[i] = b.CopyNew()
		}
	}
	res := &Ciphertext{Polys: out, CorrectionFactor: ct0.CorrectionFactor, State: ct0.State}
	res.markMutated()
	return res, nil
}

// Sub returns ct0-ct1, with the same shape handling as Add.
func (ev *Evaluator) Sub(ct0, ct1 *Ciphertext) (*Ciphertext, error) {
	if err := ev.checkCompatible(ct0, ct1); err != nil {
		return nil, fmt.Errorf("bfv.Sub: %w", err)
	}
	if ct0.CorrectionFactor != ct1.CorrectionFactor {
		return nil, fmt.Errorf("bfv.Sub: %w: correction factors differ (%d vs %d)", bfverr.ErrValidation, ct0.CorrectionFactor, ct1.CorrectionFactor)
	}
	rq := ev.ctx.RQ.AtLevel(ct0.Level())
	degree := ct0.Degree()
	if ct1.Degree() > degree {
		degree = ct1.Degree()
	}
	out := make([]*ring.Poly, degree+1)
	for i := range out {
		var a, b *ring.Poly
		if i < len(ct0.Polys) {
			a = ct0.Polys[i]
		}
		if i < len(ct1.Polys) {
			b = ct1.Polys[i]
		}
		switch {
		case a != nil && b != nil:
			p := rq.NewPoly()
			p.Format = a.Format
			if err := rq.Sub(a, b, p); err != nil {
				return nil, fmt.Errorf("bfv.Sub: %w", err)
			}
			out[i] = p
		case a != nil:
			out[i] = a.CopyNew()
		default:
			neg := rq.NewPoly()
			rq.Neg(b, neg)
			out[i] = neg
		}
	}
	res := &Ciphertext{Polys: out, CorrectionFactor: ct0.CorrectionFactor, State: ct0.State}
	res.markMutated()
	return res, nil
}

// AddPlaintext adds pt (scaled by Delta, matching encryption's embedding)
// into ct's first polynomial. The second polynomial is untouched, so a fresh
// ciphertext keeps its seed and stays in StateFresh.
func (ev *Evaluator) AddPlaintext(ct *Ciphertext, pt *Plaintext) (*Ciphertext, error) {
	rq := ev.ctx.RQ.AtLevel(ct.Level())
	scaled := ev.ctx.liftAndScale(pt)
	b0, err := ev.toEval(rq, ct.Polys[0])
	if err != nil {
		return nil, fmt.Errorf("bfv.AddPlaintext: %w", err)
	}
	scaledEval, err := ev.toEval(rq, scaled)
	if err != nil {
		return nil, fmt.Errorf("bfv.AddPlaintext: %w", err)
	}
	newB := rq.NewPoly()
	newB.Format = ring.Eval
	if err := rq.Add(b0, scaledEval, newB); err != nil {
		return nil, fmt.Errorf("bfv.AddPlaintext: %w", err)
	}
	if ct.Polys[0].Format == ring.Coeff {
		if err := rq.InvNTT(newB); err != nil {
			return nil, fmt.Errorf("bfv.AddPlaintext: %w", err)
		}
	}
	polys := append([]*ring.Poly{newB}, ct.Polys[1:]...)
	res := &Ciphertext{Polys: polys, CorrectionFactor: ct.CorrectionFactor, State: ct.State}
	if ct.Seed != nil {
		seed := *ct.Seed
		res.Seed = &seed
	}
	return res, nil
}

// MulPlaintext multiplies every polynomial of ct by pt's raw (unscaled)
// coefficients pointwise in Eval form (spec.md §4.3 "ciphertext x plaintext").
func (ev *Evaluator) MulPlaintext(ct *Ciphertext, pt *Plaintext) (*Ciphertext, error) {
	rq := ev.ctx.RQ.AtLevel(ct.Level())
	lifted := rq.NewPoly()
	for i, m := range rq.Moduli {
		for j, v := range pt.Value.Coeffs[0] {
			lifted.Coeffs[i][j] = v % m.Q
		}
	}
	liftedEval, err := ev.toEval(rq, lifted)
	if err != nil {
		return nil, fmt.Errorf("bfv.MulPlaintext: %w", err)
	}
	out := make([]*ring.Poly, len(ct.Polys))
	for i, p := range ct.Polys {
		pEval, err := ev.toEval(rq, p)
		if err != nil {
			return nil, fmt.Errorf("bfv.MulPlaintext: %w", err)
		}
		term := rq.NewPoly()
		term.Format = ring.Eval
		if err := rq.MulCoeffs(pEval, liftedEval, term); err != nil {
			return nil, fmt.Errorf("bfv.MulPlaintext: %w", err)
		}
		if p.Format == ring.Coeff {
			if err := rq.InvNTT(term); err != nil {
				return nil, fmt.Errorf("bfv.MulPlaintext: %w", err)
			}
		}
		out[i] = term
	}
	res := &Ciphertext{Polys: out, CorrectionFactor: ct.CorrectionFactor, State: ct.State}
	res.markMutated()
	return res, nil
}

// Mul computes the degree-2 product of two degree-1 ciphertexts via exact
// CRT reconstruction over the auxiliary basis, following spec.md §4.3's
// "multiply then rescale by t/Q" description: the three coefficients of the
// product c0*d0, c0*d1+c1*d0, c1*d1 are each formed over Q ∪ Aux (wide
// enough to hold the un-reduced magnitude), then rescaled by t and reduced
// back to the surviving Q chain.
func (ev *Evaluator) Mul(ct0, ct1 *Ciphertext) (*Ciphertext, error) {
	if err := ev.checkCompatible(ct0, ct1); err != nil {
		return nil, fmt.Errorf("bfv.Mul: %w", err)
	}
	if ct0.Degree() != 1 || ct1.Degree() != 1 {
		return nil, fmt.Errorf("bfv.Mul: %w: both operands must be degree-1 ciphertexts", bfverr.ErrValidation)
	}
	level := ct0.Level()
	n := int(ev.ctx.RQ.N)
	full := append(append([]uint64(nil), ev.ctx.Params.Q[:level+1]...), ev.ctx.AuxModuli...)
	extRing, err := ring.NewRing(uint64(n), full)
	if err != nil {
		return nil, fmt.Errorf("bfv.Mul: extending to auxiliary basis: %w", err)
	}

	qBasis := ring.NewRNSBasis(ev.ctx.Params.Q[:level+1])

	lift := func(p *ring.Poly) (*ring.Poly, error) {
		coeff := p
		if p.Format == ring.Eval {
			var err error
			coeff, err = ev.ctx.RQ.AtLevel(level).InvNTTNew(p)
			if err != nil {
				return nil, err
			}
		}
		out := extRing.NewPoly()
		for i := 0; i <= level; i++ {
			copy(out.Coeffs[i], coeff.Coeffs[i])
		}
		for i := level + 1; i < len(extRing.Moduli); i++ {
			m := extRing.Moduli[i]
			qiBig := new(big.Int).SetUint64(m.Q)
			for j := 0; j < n; j++ {
				x := qBasis.ReconstructCentered(coeff.Coeffs, j)
				red := new(big.Int).Mod(x, qiBig)
				out.Coeffs[i][j] = red.Uint64()
			}
		}
		out.Format = ring.Coeff
		if err := extRing.NTT(out); err != nil {
			return nil, err
		}
		return out, nil
	}

	c0, err := lift(ct0.Polys[0])
	if err != nil {
		return nil, fmt.Errorf("bfv.Mul: %w", err)
	}
	c1, err := lift(ct0.Polys[1])
	if err != nil {
		return nil, fmt.Errorf("bfv.Mul: %w", err)
	}
	d0, err := lift(ct1.Polys[0])
	if err != nil {
		return nil, fmt.Errorf("bfv.Mul: %w", err)
	}
	d1, err := lift(ct1.Polys[1])
	if err != nil {
		return nil, fmt.Errorf("bfv.Mul: %w", err)
	}

	r0 := extRing.NewPoly()
	if err := extRing.MulCoeffs(c0, d0, r0); err != nil {
		return nil, fmt.Errorf("bfv.Mul: %w", err)
	}
	r2 := extRing.NewPoly()
	if err := extRing.MulCoeffs(c1, d1, r2); err != nil {
		return nil, fmt.Errorf("bfv.Mul: %w", err)
	}
	cross0 := extRing.NewPoly()
	if err := extRing.MulCoeffs(c0, d1, cross0); err != nil {
		return nil, fmt.Errorf("bfv.Mul: %w", err)
	}
	cross1 := extRing.NewPoly()
	if err := extRing.MulCoeffs(c1, d0, cross1); err != nil {
		return nil, fmt.Errorf("bfv.Mul: %w", err)
	}
	r1 := extRing.NewPoly()
	if err := extRing.Add(cross0, cross1, r1); err != nil {
		return nil, fmt.Errorf("bfv.Mul: %w", err)
	}

	for _, p := range []*ring.Poly{r0, r1, r2} {
		if err := extRing.InvNTT(p); err != nil {
			return nil, fmt.Errorf("bfv.Mul: %w", err)
		}
	}

	extBasis := ring.NewRNSBasis(full)
	outModuli := ev.ctx.Params.Q[:level+1]
	scaled0 := ring.ScaleRoundAndReduce(extBasis, r0.Coeffs, n, ev.ctx.Params.T, extBasis.QBig, outModuli)
	scaled1 := ring.ScaleRoundAndReduce(extBasis, r1.Coeffs, n, ev.ctx.Params.T, extBasis.QBig, outModuli)
	scaled2 := ring.ScaleRoundAndReduce(extBasis, r2.Coeffs, n, ev.ctx.Params.T, extBasis.QBig, outModuli)

	toPoly := func(limbs [][]uint64) *ring.Poly {
		p := ring.NewPoly(n, level)
		p.Format = ring.Coeff
		for i := range limbs {
			copy(p.Coeffs[i], limbs[i])
		}
		return p
	}

	res := &Ciphertext{
		Polys:            []*ring.Poly{toPoly(scaled0), toPoly(scaled1), toPoly(scaled2)},
		CorrectionFactor: ct0.CorrectionFactor * ct1.CorrectionFactor % ev.ctx.Params.T,
		State:            StateMutated,
	}
	return res, nil
}

// Relinearize reduces a degree-2 ciphertext back to degree 1 by
// key-switching the s^2 term using ek.Relin (spec.md §4.3).
func (ev *Evaluator) Relinearize(ct *Ciphertext) (*Ciphertext, error) {
	if ct.Degree() != 2 {
		return nil, fmt.Errorf("bfv.Relinearize: %w: ciphertext must have degree 2, has %d", bfverr.ErrValidation, ct.Degree())
	}
	if ev.ek == nil || ev.ek.Relin == nil {
		return nil, fmt.Errorf("bfv.Relinearize: %w: relinearization key", bfverr.ErrMissingKey)
	}
	rq := ev.ctx.RQ.AtLevel(ct.Level())
	// keySwitch decomposes its input limb-by-limb mod qi, which requires
	// Coeff form (spec.md §4.3's gadget operates on raw RNS digits).
	c2Coeff := ct.Polys[2]
	if c2Coeff.Format == ring.Eval {
		var err error
		c2Coeff, err = rq.InvNTTNew(c2Coeff)
		if err != nil {
			return nil, fmt.Errorf("bfv.Relinearize: %w", err)
		}
	}
	deltaB, deltaA, err := ev.ctx.keySwitch(c2Coeff, ev.ek.Relin)
	if err != nil {
		return nil, fmt.Errorf("bfv.Relinearize: %w", err)
	}

	c0 := ct.Polys[0]
	c1 := ct.Polys[1]
	c0Eval, err := ev.toEval(rq, c0)
	if err != nil {
		return nil, fmt.Errorf("bfv.Relinearize: %w", err)
	}
	c1Eval, err := ev.toEval(rq, c1)
	if err != nil {
		return nil, fmt.Errorf("bfv.Relinearize: %w", err)
	}

	newC0 := rq.NewPoly()
	newC0.Format = ring.Eval
	if err := rq.Add(c0Eval, deltaB, newC0); err != nil {
		return nil, fmt.Errorf("bfv.Relinearize: %w", err)
	}
	newC1 := rq.NewPoly()
	newC1.Format = ring.Eval
	if err := rq.Add(c1Eval, deltaA, newC1); err != nil {
		return nil, fmt.Errorf("bfv.Relinearize: %w", err)
	}

	if err := rq.InvNTT(newC0); err != nil {
		return nil, fmt.Errorf("bfv.Relinearize: %w", err)
	}
	if err := rq.InvNTT(newC1); err != nil {
		return nil, fmt.Errorf("bfv.Relinearize: %w", err)
	}

	res := &Ciphertext{Polys: []*ring.Poly{newC0, newC1}, CorrectionFactor: ct.CorrectionFactor, State: StateMutated}
	return res, nil
}

// ApplyGalois applies the automorphism x -> x^g to ct (permuting SIMD
// slots per spec.md §4.5), then key-switches back to the original secret
// key using ek's stored key-switch key for g.
func (ev *Evaluator) ApplyGalois(ct *Ciphertext, g uint64) (*Ciphertext, error) {
	if ev.ek == nil || !ev.ek.Has(g) {
		return nil, fmt.Errorf("bfv.ApplyGalois: %w: no key-switch key for Galois element %d", bfverr.ErrMissingKey, g)
	}
	if ct.Degree() != 1 {
		return nil, fmt.Errorf("bfv.ApplyGalois: %w: ciphertext must have degree 1, has %d", bfverr.ErrValidation, ct.Degree())
	}
	rq := ev.ctx.RQ.AtLevel(ct.Level())
	ai, err := ev.ctx.AutomorphismIndex(g)
	if err != nil {
		return nil, fmt.Errorf("bfv.ApplyGalois: %w", err)
	}

	c0Coeff := ct.Polys[0]
	if c0Coeff.Format == ring.Eval {
		c0Coeff, err = rq.InvNTTNew(c0Coeff)
		if err != nil {
			return nil, fmt.Errorf("bfv.ApplyGalois: %w", err)
		}
	}
	c1Coeff := ct.Polys[1]
	if c1Coeff.Format == ring.Eval {
		c1Coeff, err = rq.InvNTTNew(c1Coeff)
		if err != nil {
			return nil, fmt.Errorf("bfv.ApplyGalois: %w", err)
		}
	}

	b0 := rq.NewPoly()
	if err := rq.Apply(c0Coeff, ai, b0); err != nil {
		return nil, fmt.Errorf("bfv.ApplyGalois: %w", err)
	}
	a0 := rq.NewPoly()
	if err := rq.Apply(c1Coeff, ai, a0); err != nil {
		return nil, fmt.Errorf("bfv.ApplyGalois: %w", err)
	}

	ksk := ev.ek.Galois[g]
	deltaB, deltaA, err := ev.ctx.keySwitch(a0, ksk)
	if err != nil {
		return nil, fmt.Errorf("bfv.ApplyGalois: %w", err)
	}

	b0Eval, err := rq.NTTNew(b0)
	if err != nil {
		return nil, fmt.Errorf("bfv.ApplyGalois: %w", err)
	}
	newC0 := rq.NewPoly()
	newC0.Format = ring.Eval
	if err := rq.Add(b0Eval, deltaB, newC0); err != nil {
		return nil, fmt.Errorf("bfv.ApplyGalois: %w", err)
	}
	if err := rq.InvNTT(newC0); err != nil {
		return nil, fmt.Errorf("bfv.ApplyGalois: %w", err)
	}
	if err := rq.InvNTT(deltaA); err != nil {
		return nil, fmt.Errorf("bfv.ApplyGalois: %w", err)
	}

	res := &Ciphertext{Polys: []*ring.Poly{newC0, deltaA}, CorrectionFactor: ct.CorrectionFactor, State: StateMutated}
	return res, nil
}

// Rotate rotates SIMD slots within each row by k positions (spec.md §4.5).
func (ev *Evaluator) Rotate(ct *Ciphertext, k int) (*Ciphertext, error) {
	g := ring.RotationElement(ev.ctx.Params.N(), k)
	return ev.ApplyGalois(ct, g)
}

// SwapRows exchanges the two SIMD rows (spec.md §4.5).
func (ev *Evaluator) SwapRows(ct *Ciphertext) (*Ciphertext, error) {
	return ev.ApplyGalois(ct, ring.RowSwapElement(ev.ctx.Params.N()))
}

// ModSwitchDown drops the last RNS limb of ct, rescaling remaining limbs
// per ring.ModSwitchDown, and advances its lifecycle state (spec.md §4.2).
func (ev *Evaluator) ModSwitchDown(ct *Ciphertext) (*Ciphertext, error) {
	if ct.Level() == 0 {
		return nil, fmt.Errorf("bfv.ModSwitchDown: %w: ciphertext already has a single modulus", bfverr.ErrValidation)
	}
	rq := ev.ctx.RQ.AtLevel(ct.Level())
	out := make([]*ring.Poly, len(ct.Polys))
	for i, p := range ct.Polys {
		coeff := p
		var err error
		if p.Format == ring.Eval {
			coeff, err = rq.InvNTTNew(p)
			if err != nil {
				return nil, fmt.Errorf("bfv.ModSwitchDown: %w", err)
			}
		}
		down, err := rq.ModSwitchDown(coeff)
		if err != nil {
			return nil, fmt.Errorf("bfv.ModSwitchDown: %w", err)
		}
		out[i] = down
	}
	res := &Ciphertext{Polys: out, CorrectionFactor: ct.CorrectionFactor, State: ct.State}
	res.markReducedLevel(out[0].Level() == 0)
	return res, nil
}
