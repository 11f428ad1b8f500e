package ring

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func smallTestRing(t *testing.T) *Ring {
	t.Helper()
	// N=8, two 17-bit NTT-friendly primes: enough limbs to exercise
	// multi-level operations (AtLevel, ModSwitchDown) without the cost of a
	// production-size ring.
	qs, err := GenNTTFriendlyPrimes(8, []int{17, 17}, true)
	require.NoError(t, err)
	r, err := NewRing(8, qs)
	require.NoError(t, err)
	return r
}

func randomCoeffPoly(r *Ring, seed int64) *Poly {
	rng := rand.New(rand.NewSource(seed))
	p := r.NewPoly()
	for i, m := range r.Moduli {
		for j := range p.Coeffs[i] {
			p.Coeffs[i][j] = rng.Uint64() % m.Q
		}
	}
	return p
}

func TestNewRingRejectsNonPowerOfTwoN(t *testing.T) {
	_, err := NewRing(6, []uint64{97})
	require.Error(t, err)
}

func TestNewRingRejectsNonNTTFriendlyModulus(t *testing.T) {
	_, err := NewRing(8, []uint64{23}) // 23-1=22 is not a multiple of 16
	require.Error(t, err)
}

func TestNTTInvNTTRoundTrip(t *testing.T) {
	r := smallTestRing(t)
	p := randomCoeffPoly(r, 1)
	orig := p.CopyNew()

	require.NoError(t, r.NTT(p))
	require.Equal(t, Eval, p.Format)
	require.NoError(t, r.InvNTT(p))
	require.Equal(t, Coeff, p.Format)
	require.True(t, p.Equal(orig))
}

func TestNTTRejectsAlreadyTransformedInput(t *testing.T) {
	r := smallTestRing(t)
	p := randomCoeffPoly(r, 2)
	require.NoError(t, r.NTT(p))
	require.Error(t, r.NTT(p))
}

func TestInvNTTRejectsCoeffInput(t *testing.T) {
	r := smallTestRing(t)
	p := randomCoeffPoly(r, 3)
	require.Error(t, r.InvNTT(p))
}

func TestNTTMultiplicationMatchesSchoolbookConvolution(t *testing.T) {
	r := smallTestRing(t)
	a := randomCoeffPoly(r, 4)
	b := randomCoeffPoly(r, 5)

	wantLimbs := negacyclicConvolution(r, a, b)

	aEval, err := r.NTTNew(a)
	require.NoError(t, err)
	bEval, err := r.NTTNew(b)
	require.NoError(t, err)
	prodEval := r.NewPoly()
	prodEval.Format = Eval
	require.NoError(t, r.MulCoeffs(aEval, bEval, prodEval))
	got, err := r.InvNTTNew(prodEval)
	require.NoError(t, err)

	for i := range wantLimbs {
		require.Equal(t, wantLimbs[i], got.Coeffs[i])
	}
}

// negacyclicConvolution computes a*b mod (x^N+1) the slow way, independent of
// the NTT machinery, as a ground truth for TestNTTMultiplicationMatchesSchoolbookConvolution.
func negacyclicConvolution(r *Ring, a, b *Poly) [][]uint64 {
	n := int(r.N)
	out := make([][]uint64, len(r.Moduli))
	for i, m := range r.Moduli {
		acc := make([]uint64, n)
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				idx := j + k
				v := m.MulMod(a.Coeffs[i][j], b.Coeffs[i][k])
				if idx >= n {
					idx -= n
					v = m.Q - v
					if v == m.Q {
						v = 0
					}
				}
				acc[idx] = m.AddMod(acc[idx], v)
			}
		}
		out[i] = acc
	}
	return out
}

func TestAddSubInverses(t *testing.T) {
	r := smallTestRing(t)
	a := randomCoeffPoly(r, 6)
	b := randomCoeffPoly(r, 7)
	sum := r.NewPoly()
	require.NoError(t, r.Add(a, b, sum))
	back := r.NewPoly()
	require.NoError(t, r.Sub(sum, b, back))
	require.True(t, back.Equal(a))
}

func TestNegIsAdditiveInverse(t *testing.T) {
	r := smallTestRing(t)
	a := randomCoeffPoly(r, 8)
	neg := r.NewPoly()
	r.Neg(a, neg)
	sum := r.NewPoly()
	require.NoError(t, r.Add(a, neg, sum))
	for _, limb := range sum.Coeffs {
		for _, v := range limb {
			require.Equal(t, uint64(0), v)
		}
	}
}

func TestAddRejectsFormatMismatch(t *testing.T) {
	r := smallTestRing(t)
	a := randomCoeffPoly(r, 9)
	b, err := r.NTTNew(randomCoeffPoly(r, 10))
	require.NoError(t, err)
	out := r.NewPoly()
	require.Error(t, r.Add(a, b, out))
}

func TestMulCoeffsRejectsCoeffFormOperands(t *testing.T) {
	r := smallTestRing(t)
	a := randomCoeffPoly(r, 11)
	b := randomCoeffPoly(r, 12)
	out := r.NewPoly()
	require.Error(t, r.MulCoeffs(a, b, out))
}

func TestMonomialMulCoeffShiftsAndWraps(t *testing.T) {
	r := smallTestRing(t)
	p := r.NewPoly()
	p.Coeffs[0][0] = 1 // polynomial "1"

	out := r.NewPoly()
	r.MonomialMulCoeff(p, 3, out)
	require.Equal(t, uint64(1), out.Coeffs[0][3])

	// shifting past N negates and wraps: x^N = -1, so x^(N+1) moves the 1 to
	// position 1 with a sign flip.
	out2 := r.NewPoly()
	r.MonomialMulCoeff(p, int(r.N)+1, out2)
	require.Equal(t, r.Moduli[0].Q-1, out2.Coeffs[0][1])
}

func TestMonomialMulCoeffNegativeKMatchesPositiveEquivalent(t *testing.T) {
	r := smallTestRing(t)
	p := randomCoeffPoly(r, 13)
	a := r.NewPoly()
	b := r.NewPoly()
	r.MonomialMulCoeff(p, -2, a)
	r.MonomialMulCoeff(p, 2*int(r.N)-2, b)
	require.True(t, a.Equal(b))
}

func TestAtLevelNarrowsWithoutRecomputation(t *testing.T) {
	r := smallTestRing(t)
	narrow := r.AtLevel(0)
	require.Equal(t, 0, narrow.Level())
	require.Equal(t, r.Moduli[0], narrow.Moduli[0])
}
