package ring

import "fmt"

// Ring is the precomputed, immutable state needed to do arithmetic and NTTs
// on polynomials of degree N over a chain of RNS moduli. It corresponds to
// the "Context" of spec.md §3: built once from a list of moduli, shared
// freely thereafter (it holds no mutable or secret state).
type Ring struct {
	N       uint64
	Moduli  []Modulus
	tables  []nttTable
	logN    uint64
}

// NewRing builds the Ring for degree n (a power of two) and the given
// moduli; every modulus must be NTT-friendly for degree n (q ≡ 1 mod 2n).
func NewRing(n uint64, qs []uint64) (*Ring, error) {
	if n < 2 || n&(n-1) != 0 {
		return nil, fmt.Errorf("ring.NewRing: N=%d is not a power of two >= 2", n)
	}
	logN := uint64(0)
	for (uint64(1) << logN) < n {
		logN++
	}
	r := &Ring{N: n, logN: logN}
	r.Moduli = make([]Modulus, len(qs))
	r.tables = make([]nttTable, len(qs))
	for i, q := range qs {
		if (q-1)%(2*n) != 0 {
			return nil, fmt.Errorf("ring.NewRing: modulus %d is not NTT-friendly for N=%d (q != 1 mod 2N)", q, n)
		}
		m := NewModulus(q)
		root, err := PrimitiveRoot2N(q, n)
		if err != nil {
			return nil, fmt.Errorf("ring.NewRing: %w", err)
		}
		r.Moduli[i] = m
		r.tables[i] = newNTTTable(m, n, root)
	}
	return r, nil
}

// Level returns the maximum valid level (len(Moduli)-1).
func (r *Ring) Level() int { return len(r.Moduli) - 1 }

// NewPoly allocates a zero polynomial at the Ring's full level.
func (r *Ring) NewPoly() *Poly { return NewPoly(int(r.N), r.Level()) }

// AtLevel returns a Ring restricted to the first level+1 moduli, sharing the
// same precomputed tables (no recomputation, just a narrower view) — this
// is how a mod-switched ciphertext's remaining limbs are interpreted.
func (r *Ring) AtLevel(level int) *Ring {
	return &Ring{N: r.N, logN: r.logN, Moduli: r.Moduli[:level+1], tables: r.tables[:level+1]}
}

func (r *Ring) checkLevel(p *Poly) error {
	if len(p.Coeffs) > len(r.Moduli) {
		return fmt.Errorf("ring: polynomial has %d limbs, ring only has %d moduli", len(p.Coeffs), len(r.Moduli))
	}
	return nil
}

// NTT transforms p from Coeff to Eval form in place.
func (r *Ring) NTT(p *Poly) error {
	if p.Format == Eval {
		return fmt.Errorf("ring.NTT: input already in Eval form")
	}
	if err := r.checkLevel(p); err != nil {
		return fmt.Errorf("ring.NTT: %w", err)
	}
	for i := range p.Coeffs {
		nttInPlace(p.Coeffs[i], r.N, r.tables[i], r.Moduli[i])
	}
	p.Format = Eval
	return nil
}

// InvNTT transforms p from Eval to Coeff form in place.
func (r *Ring) InvNTT(p *Poly) error {
	if p.Format == Coeff {
		return fmt.Errorf("ring.InvNTT: input already in Coeff form")
	}
	if err := r.checkLevel(p); err != nil {
		return fmt.Errorf("ring.InvNTT: %w", err)
	}
	for i := range p.Coeffs {
		invNTTInPlace(p.Coeffs[i], r.N, r.tables[i], r.Moduli[i])
	}
	p.Format = Coeff
	return nil
}

// NTTNew returns the Eval-form image of p, leaving p untouched.
func (r *Ring) NTTNew(p *Poly) (*Poly, error) {
	out := p.CopyNew()
	if err := r.NTT(out); err != nil {
		return nil, err
	}
	return out, nil
}

// InvNTTNew returns the Coeff-form image of p, leaving p untouched.
func (r *Ring) InvNTTNew(p *Poly) (*Poly, error) {
	out := p.CopyNew()
	if err := r.InvNTT(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Ring) checkBinary(a, b *Poly) error {
	if a.Format != b.Format {
		return fmt.Errorf("ring: format mismatch (%s vs %s)", a.Format, b.Format)
	}
	if len(a.Coeffs) != len(b.Coeffs) {
		return fmt.Errorf("ring: level mismatch (%d vs %d limbs)", len(a.Coeffs)-1, len(b.Coeffs)-1)
	}
	return nil
}

// Add computes a+b limb-wise mod each qi, writing into out (which may alias
// a or b).
func (r *Ring) Add(a, b, out *Poly) error {
	if err := r.checkBinary(a, b); err != nil {
		return fmt.Errorf("ring.Add: %w", err)
	}
	out.Format = a.Format
	for i := range a.Coeffs {
		m := r.Moduli[i]
		for j := range a.Coeffs[i] {
			out.Coeffs[i][j] = m.AddMod(a.Coeffs[i][j], b.Coeffs[i][j])
		}
	}
	return nil
}

// Sub computes a-b limb-wise mod each qi.
func (r *Ring) Sub(a, b, out *Poly) error {
	if err := r.checkBinary(a, b); err != nil {
		return fmt.Errorf("ring.Sub: %w", err)
	}
	out.Format = a.Format
	for i := range a.Coeffs {
		m := r.Moduli[i]
		for j := range a.Coeffs[i] {
			out.Coeffs[i][j] = m.SubMod(a.Coeffs[i][j], b.Coeffs[i][j])
		}
	}
	return nil
}

// Neg computes -a limb-wise mod each qi.
func (r *Ring) Neg(a, out *Poly) {
	out.Format = a.Format
	for i := range a.Coeffs {
		m := r.Moduli[i]
		for j := range a.Coeffs[i] {
			if a.Coeffs[i][j] == 0 {
				out.Coeffs[i][j] = 0
			} else {
				out.Coeffs[i][j] = m.Q - a.Coeffs[i][j]
			}
		}
	}
}

// MulCoeffs multiplies two Eval-form polynomials pointwise; both
// operands must already be in Eval form (Coeff x Coeff products are only
// permitted by first converting to Eval, per spec.md §4.2).
func (r *Ring) MulCoeffs(a, b, out *Poly) error {
	if err := r.checkBinary(a, b); err != nil {
		return fmt.Errorf("ring.MulCoeffs: %w", err)
	}
	if a.Format != Eval {
		return fmt.Errorf("ring.MulCoeffs: operands must be in Eval form")
	}
	out.Format = Eval
	for i := range a.Coeffs {
		m := r.Moduli[i]
		for j := range a.Coeffs[i] {
			out.Coeffs[i][j] = m.MulMod(a.Coeffs[i][j], b.Coeffs[i][j])
		}
	}
	return nil
}

// MulScalar multiplies every coefficient of every limb by a per-modulus
// scalar (one value per limb), e.g. for scaling by floor(Q/t) mod qi.
func (r *Ring) MulScalar(a *Poly, scalars []uint64, out *Poly) {
	out.Format = a.Format
	for i := range a.Coeffs {
		m := r.Moduli[i]
		s := scalars[i]
		for j := range a.Coeffs[i] {
			out.Coeffs[i][j] = m.MulMod(a.Coeffs[i][j], s)
		}
	}
}

// MonomialMulCoeff multiplies a Coeff-form polynomial by x^k in the
// negacyclic ring Z[x]/(x^N+1): coefficients shift cyclically by k and wrap
// around with a sign flip. k may be negative (x^-k).
func (r *Ring) MonomialMulCoeff(a *Poly, k int, out *Poly) {
	n := int(r.N)
	k = ((k % (2 * n)) + 2*n) % (2 * n)
	for i := range a.Coeffs {
		m := r.Moduli[i]
		src := a.Coeffs[i]
		dst := out.Coeffs[i]
		tmp := make([]uint64, n)
		for j := 0; j < n; j++ {
			idx := j + k
			sign := idx / n % 2
			idx %= n
			v := src[j]
			if sign == 1 && v != 0 {
				v = m.Q - v
			}
			tmp[idx] = m.AddMod(tmp[idx], v)
		}
		copy(dst, tmp)
	}
	out.Format = a.Format
}
