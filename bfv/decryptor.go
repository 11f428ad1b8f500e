package bfv

import (
	"fmt"

	"github.com/latticepir/bfvpir/ring"
)

// Decryptor decrypts ciphertexts under a fixed secret key.
type Decryptor struct {
	ctx *Context
	sk  *SecretKey
}

// NewDecryptor binds a Decryptor to sk.
func NewDecryptor(ctx *Context, sk *SecretKey) *Decryptor {
	return &Decryptor{ctx: ctx, sk: sk}
}

// Decrypt computes m~ = sum_i c_i * s^i over Q, then m = round((t/Q)*m~) mod
// t, undoing any correction factor (spec.md §4.3).
func (dec *Decryptor) Decrypt(ct *Ciphertext) (*Plaintext, error) {
	rq := dec.ctx.RQ.AtLevel(ct.Level())

	acc := ring.NewPoly(int(rq.N), rq.Level())
	acc.Format = ring.Eval

	sPow := dec.sk.Value
	for i, poly := range ct.Polys {
		pEval := poly
		if poly.Format == ring.Coeff {
			var err error
			pEval, err = rq.NTTNew(poly)
			if err != nil {
				return nil, fmt.Errorf("bfv.Decrypt: %w", err)
			}
		}
		if i == 0 {
			if err := rq.Add(acc, pEval, acc); err != nil {
				return nil, fmt.Errorf("bfv.Decrypt: %w", err)
			}
			continue
		}
		term := ring.NewPoly(int(rq.N), rq.Level())
		term.Format = ring.Eval
		if err := rq.MulCoeffs(pEval, sPow, term); err != nil {
			return nil, fmt.Errorf("bfv.Decrypt: %w", err)
		}
		if err := rq.Add(acc, term, acc); err != nil {
			return nil, fmt.Errorf("bfv.Decrypt: %w", err)
		}
		if i+1 < len(ct.Polys) {
			next := ring.NewPoly(int(rq.N), rq.Level())
			next.Format = ring.Eval
			if err := rq.MulCoeffs(sPow, dec.sk.Value, next); err != nil {
				return nil, fmt.Errorf("bfv.Decrypt: %w", err)
			}
			sPow = next
		}
	}

	if err := rq.InvNTT(acc); err != nil {
		return nil, fmt.Errorf("bfv.Decrypt: %w", err)
	}

	basis := dec.ctx.QBasis
	if ct.Level() < dec.ctx.Params.MaxLevel() {
		basis = ring.NewRNSBasis(dec.ctx.Params.Q[:ct.Level()+1])
	}
	vals := ring.ScaleRoundQtoT(basis, acc.Coeffs, int(rq.N), dec.ctx.Params.T)

	if ct.CorrectionFactor != 1 && ct.CorrectionFactor != 0 {
		tMod := ring.NewModulus(dec.ctx.Params.T)
		invF := tMod.InvMod(ct.CorrectionFactor % dec.ctx.Params.T)
		for i, v := range vals {
			vals[i] = tMod.MulMod(v, invF)
		}
	}

	pt := NewPlaintext(rq.N)
	copy(pt.Value.Coeffs[0], vals)
	return pt, nil
}
