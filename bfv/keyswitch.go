package bfv

import "github.com/latticepir/bfvpir/ring"

// restrictToLevel returns a shallow view of p's first level+1 limbs,
// sharing the underlying limb slices (never mutated by key-switching, only
// read), so a key-switch key generated at full level can be used on a
// ciphertext that has since been mod-switched down.
func restrictToLevel(p *ring.Poly, level int) *ring.Poly {
	if p.Level() == level {
		return p
	}
	return &ring.Poly{Coeffs: p.Coeffs[:level+1], Format: p.Format}
}

// keySwitch decomposes `a` (a Coeff-form polynomial referring to some
// secret s' the caller wants switched back to s) across the RNS gadget
// basis and accumulates the rows of ksk, returning the Eval-form
// (c0Delta, c1Delta) pair to be added to the ciphertext being switched
// (spec.md §4.3 "Key-switching").
func (ctx *Context) keySwitch(a *ring.Poly, ksk *KeySwitchKey) (*ring.Poly, *ring.Poly, error) {
	level := a.Level()
	rq := ctx.RQ.AtLevel(level)
	n := int(rq.N)

	// the key-switch key's gadget rows were generated once against the
	// full Q chain (KeyGenerator.gadgetScalars), so digit extraction must
	// use the same full-Q (Q/qi)^-1 mod qi constants even when `a` has
	// since been mod-switched down to fewer limbs: only the rows for the
	// still-present moduli are summed, the rest having been designed out
	// by mod-switching itself.
	basis := ctx.QBasis

	c0 := ring.NewPoly(n, level)
	c0.Format = ring.Eval
	c1 := ring.NewPoly(n, level)
	c1.Format = ring.Eval

	for i := 0; i <= level; i++ {
		qi := ctx.Params.Q[i]
		qiMod := ring.NewModulus(qi)
		invQi := basis.QDivInv[i]

		digit := make([]uint64, n)
		for j, v := range a.Coeffs[i] {
			digit[j] = qiMod.MulMod(v, invQi)
		}

		embedded := ring.NewPoly(n, level)
		for k := 0; k <= level; k++ {
			mk := rq.Moduli[k]
			for j, d := range digit {
				embedded.Coeffs[k][j] = d % mk.Q
			}
		}
		if err := rq.NTT(embedded); err != nil {
			return nil, nil, err
		}

		rowB := restrictToLevel(ksk.Rows[i].B, level)
		rowA := restrictToLevel(ksk.Rows[i].A, level)

		termB := ring.NewPoly(n, level)
		termB.Format = ring.Eval
		if err := rq.MulCoeffs(embedded, rowB, termB); err != nil {
			return nil, nil, err
		}
		if err := rq.Add(c0, termB, c0); err != nil {
			return nil, nil, err
		}

		termA := ring.NewPoly(n, level)
		termA.Format = ring.Eval
		if err := rq.MulCoeffs(embedded, rowA, termA); err != nil {
			return nil, nil, err
		}
		if err := rq.Add(c1, termA, c1); err != nil {
			return nil, nil, err
		}
	}
	return c0, c1, nil
}
