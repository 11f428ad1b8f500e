package bfv

import (
	"fmt"

	"github.com/latticepir/bfvpir/ring"
)

// Encryptor encrypts Coeff-form plaintexts under a fixed secret key,
// following the symmetric-key scheme of spec.md §4.3.
type Encryptor struct {
	ctx *Context
	sk  *SecretKey
}

// NewEncryptor binds an Encryptor to sk.
func NewEncryptor(ctx *Context, sk *SecretKey) *Encryptor {
	return &Encryptor{ctx: ctx, sk: sk}
}

// liftAndScale embeds a single-limb plaintext into the full Q chain and
// scales it by floor(Q/t) mod each qi.
func (ctx *Context) liftAndScale(pt *Plaintext) *ring.Poly {
	rq := ctx.RQ
	lifted := rq.NewPoly()
	for i, m := range rq.Moduli {
		for j, v := range pt.Value.Coeffs[0] {
			lifted.Coeffs[i][j] = v % m.Q
		}
	}
	scaled := rq.NewPoly()
	rq.MulScalar(lifted, ctx.Delta, scaled)
	return scaled
}

// Encrypt encrypts pt, returning a fresh, seeded ciphertext (spec.md §4.3).
func (enc *Encryptor) Encrypt(pt *Plaintext) (*Ciphertext, error) {
	rq := enc.ctx.RQ

	seed, err := ring.NewSeed()
	if err != nil {
		return nil, fmt.Errorf("bfv.Encrypt: %w", err)
	}
	a := rq.NewPoly()
	rq.SampleUniformPoly(seed, a)
	aEval := rq.NewPoly()
	a.Copy(aEval)
	if err := rq.NTT(aEval); err != nil {
		return nil, fmt.Errorf("bfv.Encrypt: %w", err)
	}

	errVals, err := ring.SampleCenteredBinomial(int(enc.ctx.Params.N()), enc.ctx.Params.Sigma)
	if err != nil {
		return nil, fmt.Errorf("bfv.Encrypt: %w", err)
	}
	e := rq.EncodeSigned(errVals)
	if err := rq.NTT(e); err != nil {
		return nil, fmt.Errorf("bfv.Encrypt: %w", err)
	}

	as := rq.NewPoly()
	if err := rq.MulCoeffs(aEval, enc.sk.Value, as); err != nil {
		return nil, fmt.Errorf("bfv.Encrypt: %w", err)
	}
	ase := rq.NewPoly()
	if err := rq.Add(as, e, ase); err != nil {
		return nil, fmt.Errorf("bfv.Encrypt: %w", err)
	}
	negAse := rq.NewPoly()
	rq.Neg(ase, negAse)

	scaled := enc.ctx.liftAndScale(pt)
	if err := rq.NTT(scaled); err != nil {
		return nil, fmt.Errorf("bfv.Encrypt: %w", err)
	}

	b := rq.NewPoly()
	if err := rq.Add(negAse, scaled, b); err != nil {
		return nil, fmt.Errorf("bfv.Encrypt: %w", err)
	}

	if err := rq.InvNTT(b); err != nil {
		return nil, fmt.Errorf("bfv.Encrypt: %w", err)
	}

	seedCopy := seed
	return &Ciphertext{
		Polys:            []*ring.Poly{b, a},
		CorrectionFactor: 1,
		Seed:             &seedCopy,
		State:            StateFresh,
	}, nil
}
