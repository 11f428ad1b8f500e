package ring

import "math/bits"

// nttTable holds the precomputed, bit-reversed twiddle factors for the
// forward and inverse NTT of one modulus at degree N.
type nttTable struct {
	psi    []uint64 // bit-reversed powers of the 2N-th root, Montgomery form
	psiInv []uint64 // bit-reversed powers of the inverse root, Montgomery form
	nInv   uint64   // N^-1 mod q, Montgomery form
}

func bitReverse(x, logN uint64) uint64 {
	return bits.Reverse64(x) >> (64 - logN)
}

// newNTTTable builds the twiddle tables for modulus m at degree n, given a
// primitive 2n-th root of unity root (in standard, non-Montgomery form).
func newNTTTable(m Modulus, n uint64, root uint64) nttTable {
	logN := uint64(bits.Len64(n) - 1)
	psi := make([]uint64, n)
	psiInv := make([]uint64, n)

	rootInv := m.InvMod(root)

	// psi[bitrev(i)] = root^i, in natural order first, then permuted.
	cur := uint64(1)
	curInv := uint64(1)
	natural := make([]uint64, n)
	naturalInv := make([]uint64, n)
	for i := uint64(0); i < n; i++ {
		natural[i] = cur
		naturalInv[i] = curInv
		cur = m.MulMod(cur, root)
		curInv = m.MulMod(curInv, rootInv)
	}
	mont := montConstant(m)
	for i := uint64(0); i < n; i++ {
		br := bitReverse(i, logN)
		psi[br] = m.MulMod(natural[i], mont)
		psiInv[br] = m.MulMod(naturalInv[i], mont)
	}

	nInv := m.InvMod(n % m.Q)
	return nttTable{psi: psi, psiInv: psiInv, nInv: m.MulMod(nInv, mont)}
}

// montConstant returns 2^64 mod q, i.e. the Montgomery form of 1, used to
// lift plain residues into the Montgomery domain for use inside MRed.
func montConstant(m Modulus) uint64 {
	// 2^64 mod q computed via repeated doubling from 1.
	r := uint64(1) % m.Q
	for i := 0; i < 64; i++ {
		r = m.AddMod(r, r)
	}
	return r
}

func butterfly(u, v, psi uint64, m Modulus) (uint64, uint64) {
	if u >= 2*m.Q {
		u -= 2 * m.Q
	}
	t := m.MRed(v, psi)
	return u + t, u + 2*m.Q - t
}

func invButterfly(u, v, psi uint64, m Modulus) (uint64, uint64) {
	x := u + v
	if x >= 2*m.Q {
		x -= 2 * m.Q
	}
	y := m.MRed(u+2*m.Q-v, psi)
	return x, y
}

// nttInPlace applies the in-place Cooley-Tukey forward NTT with
// bit-reversed twiddles, natural-order input and bit-reversed-order output
// (no separate bit-reversal pass is applied to the data), following the
// butterfly structure of the teacher's ring.NTT.
func nttInPlace(coeffs []uint64, n uint64, t nttTable, m Modulus) {
	tt := n >> 1
	for m_ := uint64(1); m_ < n; m_ <<= 1 {
		j1 := uint64(0)
		for i := uint64(0); i < m_; i++ {
			j2 := j1 + tt - 1
			psi := t.psi[m_+i]
			for j := j1; j <= j2; j++ {
				coeffs[j], coeffs[j+tt] = butterfly(coeffs[j], coeffs[j+tt], psi, m)
			}
			j1 += tt << 1
		}
		tt >>= 1
	}
	for i := range coeffs {
		coeffs[i] = m.BRedAdd(coeffs[i])
	}
}

func invNTTInPlace(coeffs []uint64, n uint64, t nttTable, m Modulus) {
	tt := uint64(1)
	for m_ := n >> 1; m_ >= 1; m_ >>= 1 {
		j1 := uint64(0)
		for i := uint64(0); i < m_; i++ {
			j2 := j1 + tt - 1
			psi := t.psiInv[m_+i]
			for j := j1; j <= j2; j++ {
				coeffs[j], coeffs[j+tt] = invButterfly(coeffs[j], coeffs[j+tt], psi, m)
			}
			j1 += tt << 1
		}
		tt <<= 1
	}
	for i := range coeffs {
		coeffs[i] = m.MRed(coeffs[i], t.nInv)
		if coeffs[i] >= m.Q {
			coeffs[i] -= m.Q
		}
	}
}
