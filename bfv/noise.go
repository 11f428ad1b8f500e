package bfv

import (
	"math/big"

	"github.com/latticepir/bfvpir/ring"
)

// NoiseBudget reports the remaining noise budget of ct in bits, computed as
// log2(Q) - log2(||c(s)||_inf) where c(s) is the centered exact integer
// value of sum_i c_i * s^i (spec.md §4.3 "Noise budget"). This function must
// only be called from tests or diagnostics: it requires the secret key and
// is never on a production decryption path.
func NoiseBudget(ctx *Context, sk *SecretKey, ct *Ciphertext) (float64, error) {
	rq := ctx.RQ.AtLevel(ct.Level())

	acc := ring.NewPoly(int(rq.N), rq.Level())
	acc.Format = ring.Eval

	sPow := sk.Value
	for i, poly := range ct.Polys {
		pEval := poly
		if poly.Format == ring.Coeff {
			var err error
			pEval, err = rq.NTTNew(poly)
			if err != nil {
				return 0, err
			}
		}
		if i == 0 {
			if err := rq.Add(acc, pEval, acc); err != nil {
				return 0, err
			}
			continue
		}
		term := ring.NewPoly(int(rq.N), rq.Level())
		term.Format = ring.Eval
		if err := rq.MulCoeffs(pEval, sPow, term); err != nil {
			return 0, err
		}
		if err := rq.Add(acc, term, acc); err != nil {
			return 0, err
		}
		if i+1 < len(ct.Polys) {
			next := ring.NewPoly(int(rq.N), rq.Level())
			next.Format = ring.Eval
			if err := rq.MulCoeffs(sPow, sk.Value, next); err != nil {
				return 0, err
			}
			sPow = next
		}
	}
	if err := rq.InvNTT(acc); err != nil {
		return 0, err
	}

	basis := ctx.QBasis
	if ct.Level() < ctx.Params.MaxLevel() {
		basis = ring.NewRNSBasis(ctx.Params.Q[:ct.Level()+1])
	}

	maxAbs := new(big.Int)
	for j := 0; j < int(rq.N); j++ {
		v := basis.ReconstructCentered(acc.Coeffs, j)
		abs := new(big.Int).Abs(v)
		if abs.Cmp(maxAbs) > 0 {
			maxAbs = abs
		}
	}
	if maxAbs.Sign() == 0 {
		return ctx.Params.LogQ(), nil
	}

	return ctx.Params.LogQ() - float64(maxAbs.BitLen()), nil
}
