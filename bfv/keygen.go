package bfv

import (
	"fmt"
	"math/big"

	"github.com/latticepir/bfvpir/ring"
)

// KeyGenerator generates evaluation keys for a fixed secret key under ctx.
type KeyGenerator struct {
	ctx *Context
	sk  *SecretKey

	// gadgetScalars[i][j] = floor(Q/qi) mod qj, the per-row, per-limb
	// scaling constants of the RNS gadget decomposition (spec.md §4.3).
	gadgetScalars [][]uint64
}

// NewKeyGenerator builds a KeyGenerator bound to sk.
func NewKeyGenerator(ctx *Context, sk *SecretKey) *KeyGenerator {
	L := ctx.Params.QCount()
	scalars := make([][]uint64, L)
	for i := 0; i < L; i++ {
		row := make([]uint64, L)
		for j, qj := range ctx.Params.Q {
			row[j] = new(big.Int).Mod(ctx.QBasis.QDivQi[i], new(big.Int).SetUint64(qj)).Uint64()
		}
		scalars[i] = row
	}
	return &KeyGenerator{ctx: ctx, sk: sk, gadgetScalars: scalars}
}

// genKeySwitchKey builds the L-row gadget encrypting delta (Eval form) under
// the generator's secret key, per spec.md §4.3.
func (kg *KeyGenerator) genKeySwitchKey(delta *ring.Poly) (*KeySwitchKey, error) {
	rq := kg.ctx.RQ
	L := kg.ctx.Params.QCount()
	rows := make([]KeySwitchRow, L)

	for i := 0; i < L; i++ {
		seed, err := ring.NewSeed()
		if err != nil {
			return nil, fmt.Errorf("bfv: generating key-switch row seed: %w", err)
		}
		a := rq.NewPoly()
		rq.SampleUniformPoly(seed, a)
		if err := rq.NTT(a); err != nil {
			return nil, fmt.Errorf("bfv: %w", err)
		}

		errVals, err := ring.SampleCenteredBinomial(int(kg.ctx.Params.N()), kg.ctx.Params.Sigma)
		if err != nil {
			return nil, fmt.Errorf("bfv: sampling key-switch error: %w", err)
		}
		e := rq.EncodeSigned(errVals)
		if err := rq.NTT(e); err != nil {
			return nil, fmt.Errorf("bfv: %w", err)
		}

		scaled := rq.NewPoly()
		scaled.Format = ring.Eval
		rq.MulScalar(delta, kg.gadgetScalars[i], scaled)

		as := rq.NewPoly()
		if err := rq.MulCoeffs(a, kg.sk.Value, as); err != nil {
			return nil, fmt.Errorf("bfv: %w", err)
		}
		aseSum := rq.NewPoly()
		if err := rq.Add(as, e, aseSum); err != nil {
			return nil, fmt.Errorf("bfv: %w", err)
		}
		negASE := rq.NewPoly()
		rq.Neg(aseSum, negASE)
		b := rq.NewPoly()
		if err := rq.Add(negASE, scaled, b); err != nil {
			return nil, fmt.Errorf("bfv: %w", err)
		}

		rows[i] = KeySwitchRow{B: b, A: a, Seed: seed}
	}
	return &KeySwitchKey{Rows: rows}, nil
}

// GenGaloisKey builds the key-switch key for Galois element g, encrypting
// s(x^g) - s(x) under s (spec.md §4.3).
func (kg *KeyGenerator) GenGaloisKey(g uint64) (*KeySwitchKey, error) {
	ai, err := kg.ctx.AutomorphismIndex(g)
	if err != nil {
		return nil, fmt.Errorf("bfv.GenGaloisKey: %w", err)
	}
	rq := kg.ctx.RQ
	skCoeff, err := rq.InvNTTNew(kg.sk.Value)
	if err != nil {
		return nil, fmt.Errorf("bfv.GenGaloisKey: %w", err)
	}
	sg := rq.NewPoly()
	if err := rq.Apply(skCoeff, ai, sg); err != nil {
		return nil, fmt.Errorf("bfv.GenGaloisKey: %w", err)
	}
	if err := rq.NTT(sg); err != nil {
		return nil, fmt.Errorf("bfv.GenGaloisKey: %w", err)
	}
	delta := rq.NewPoly()
	delta.Format = ring.Eval
	if err := rq.Sub(sg, kg.sk.Value, delta); err != nil {
		return nil, fmt.Errorf("bfv.GenGaloisKey: %w", err)
	}
	return kg.genKeySwitchKey(delta)
}

// GenRelinKey builds the relinearization key, i.e. the key-switch key for
// target s^2 (spec.md §4.3 "Relinearization is the specialization for s'=s^2").
func (kg *KeyGenerator) GenRelinKey() (*KeySwitchKey, error) {
	rq := kg.ctx.RQ
	s2 := rq.NewPoly()
	if err := rq.MulCoeffs(kg.sk.Value, kg.sk.Value, s2); err != nil {
		return nil, fmt.Errorf("bfv.GenRelinKey: %w", err)
	}
	return kg.genKeySwitchKey(s2)
}

// GenEvaluationKey builds the full EvaluationKey satisfying cfg.
func (kg *KeyGenerator) GenEvaluationKey(cfg EvaluationKeyConfig) (*EvaluationKey, error) {
	ek := &EvaluationKey{Galois: make(map[uint64]*KeySwitchKey, len(cfg.GaloisElements))}
	for _, g := range cfg.Elements() {
		ksk, err := kg.GenGaloisKey(g)
		if err != nil {
			return nil, err
		}
		ek.Galois[g] = ksk
	}
	if cfg.RelinKey {
		ksk, err := kg.GenRelinKey()
		if err != nil {
			return nil, err
		}
		ek.Relin = ksk
	}
	return ek, nil
}
