package ring

import (
	"fmt"
	"math/big"
)

// RNSBasis precomputes the constants needed for the exact rational
// reconstruction spec.md §4.2 describes for decryption's Q -> t scaling:
// Q = prod(qi), Q/qi, and (Q/qi)^-1 mod qi for every modulus in the chain.
type RNSBasis struct {
	Q       []uint64
	QBig    *big.Int
	QDivQi  []*big.Int
	QDivInv []uint64 // (Q/qi)^-1 mod qi
}

// NewRNSBasis builds the basis-conversion constants for the moduli chain qs.
func NewRNSBasis(qs []uint64) *RNSBasis {
	b := &RNSBasis{Q: append([]uint64(nil), qs...)}
	b.QBig = big.NewInt(1)
	for _, q := range qs {
		b.QBig.Mul(b.QBig, new(big.Int).SetUint64(q))
	}
	b.QDivQi = make([]*big.Int, len(qs))
	b.QDivInv = make([]uint64, len(qs))
	for i, qi := range qs {
		qDivQi := new(big.Int).Div(b.QBig, new(big.Int).SetUint64(qi))
		b.QDivQi[i] = qDivQi
		mod := NewModulus(qi)
		qDivQiModQi := new(big.Int).Mod(qDivQi, new(big.Int).SetUint64(qi)).Uint64()
		b.QDivInv[i] = mod.InvMod(qDivQiModQi)
	}
	return b
}

// ScaleRoundQtoT reconstructs, coefficient by coefficient, the value
// round(t/Q * x) mod t where x is the CRT recombination of limbs (one
// residue per modulus in the basis). This implements the decryption
// rounding step m = round((t/Q)*m~) mod t from spec.md §4.3.
func ScaleRoundQtoT(b *RNSBasis, limbs [][]uint64, n int, t uint64) []uint64 {
	out := make([]uint64, n)
	tBig := new(big.Int).SetUint64(t)
	for j := 0; j < n; j++ {
		x := new(big.Int)
		for i, qi := range b.Q {
			mod := NewModulus(qi)
			v := mod.MulMod(limbs[i][j], b.QDivInv[i])
			term := new(big.Int).Mul(new(big.Int).SetUint64(v), b.QDivQi[i])
			x.Add(x, term)
		}
		x.Mod(x, b.QBig)

		num := new(big.Int).Mul(x, tBig)
		q, r := new(big.Int).QuoRem(num, b.QBig, new(big.Int))
		twiceR := new(big.Int).Lsh(r, 1)
		if twiceR.Cmp(b.QBig) >= 0 {
			q.Add(q, big.NewInt(1))
		}
		q.Mod(q, tBig)
		out[j] = q.Uint64()
	}
	return out
}

// ReconstructCentered CRT-recombines coefficient j across all limbs and
// returns it as a centered big.Int in (-Q/2, Q/2], where Q is the basis's
// modulus product. Used where the exact (not merely mod-Q) magnitude of a
// value is needed, e.g. scaling a degree-2 ciphertext product by t/Q before
// re-reducing into a narrower RNS basis.
func (b *RNSBasis) ReconstructCentered(limbs [][]uint64, j int) *big.Int {
	x := new(big.Int)
	for i, qi := range b.Q {
		mod := NewModulus(qi)
		v := mod.MulMod(limbs[i][j], b.QDivInv[i])
		term := new(big.Int).Mul(new(big.Int).SetUint64(v), b.QDivQi[i])
		x.Add(x, term)
	}
	x.Mod(x, b.QBig)
	half := new(big.Int).Rsh(b.QBig, 1)
	if x.Cmp(half) > 0 {
		x.Sub(x, b.QBig)
	}
	return x
}

// ScaleRoundAndReduce scales every coefficient of a full-basis polynomial
// (represented across RNSBasis `full`, which must cover every modulus in
// outModuli plus at least enough auxiliary moduli to hold the true,
// un-reduced magnitude of the represented integer) by numerator/denom,
// rounds to the nearest integer, and re-expresses the result as RNS limbs
// over outModuli. This is the shared machinery behind both the decryption
// scale-down (denom = Q, outModuli = [t]) and the BFV ciphertext
// multiplication rescale (denom = Q, outModuli = the surviving Q chain,
// numerator = t), following the "exact rational reconstruction" approach
// spec.md §4.2 describes for the former and generalizing it to the latter.
func ScaleRoundAndReduce(full *RNSBasis, limbs [][]uint64, n int, numerator uint64, denom *big.Int, outModuli []uint64) [][]uint64 {
	out := make([][]uint64, len(outModuli))
	for i := range out {
		out[i] = make([]uint64, n)
	}
	numBig := new(big.Int).SetUint64(numerator)
	for j := 0; j < n; j++ {
		x := full.ReconstructCentered(limbs, j)
		num := new(big.Int).Mul(x, numBig)
		q, r := new(big.Int).QuoRem(num, denom, new(big.Int))
		// round-half-away-from-zero on the (possibly negative) remainder
		twiceR := new(big.Int).Lsh(new(big.Int).Abs(r), 1)
		if twiceR.Cmp(new(big.Int).Abs(denom)) >= 0 {
			if num.Sign() >= 0 {
				q.Add(q, big.NewInt(1))
			} else {
				q.Sub(q, big.NewInt(1))
			}
		}
		for i, qi := range outModuli {
			m := NewModulus(qi)
			red := new(big.Int).Mod(q, new(big.Int).SetUint64(qi)).Uint64()
			out[i][j] = m.BRedAdd(red)
		}
	}
	return out
}

// ModSwitchDown drops the last RNS limb of a Coeff-form polynomial using the
// "simple lift-and-subtract" rule of spec.md §4.2: the centered lift of the
// dropped limb is subtracted from every remaining limb, which is then
// rescaled by the inverse of the dropped modulus.
func (r *Ring) ModSwitchDown(p *Poly) (*Poly, error) {
	if p.Format != Coeff {
		return nil, fmt.Errorf("ring.ModSwitchDown: only defined in Coeff form")
	}
	level := p.Level()
	if level == 0 {
		return nil, fmt.Errorf("ring.ModSwitchDown: ciphertext already has a single modulus")
	}
	qLast := r.Moduli[level].Q
	out := NewPoly(int(r.N), level-1)
	out.Format = Coeff

	invQLast := make([]uint64, level)
	for i := 0; i < level; i++ {
		qi := r.Moduli[i].Q
		invQLast[i] = r.Moduli[i].InvMod(qLast % qi)
	}

	for j := 0; j < int(r.N); j++ {
		centered := Center(p.Coeffs[level][j], qLast)
		for i := 0; i < level; i++ {
			qi := r.Moduli[i].Q
			lift := uint64(((centered % int64(qi)) + int64(qi)) % int64(qi))
			diff := r.Moduli[i].SubMod(p.Coeffs[i][j], lift)
			out.Coeffs[i][j] = r.Moduli[i].MulMod(diff, invQLast[i])
		}
	}
	return out, nil
}

// ModSwitchDownToSingle repeatedly drops limbs until exactly one remains.
func (r *Ring) ModSwitchDownToSingle(p *Poly) (*Poly, error) {
	cur := p
	for cur.Level() > 0 {
		next, err := r.ModSwitchDown(cur)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}
