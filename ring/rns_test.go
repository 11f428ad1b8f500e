package ring

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReconstructCenteredRecoversSmallValue(t *testing.T) {
	qs := []uint64{97, 89, 83}
	basis := NewRNSBasis(qs)

	want := int64(12345)
	limbs := make([][]uint64, len(qs))
	for i, qi := range qs {
		m := NewModulus(qi)
		v := Uncenter(want%int64(qi), qi)
		limbs[i] = []uint64{m.BRedAdd(v)}
	}

	got := basis.ReconstructCentered(limbs, 0)
	require.Equal(t, big.NewInt(want), got)
}

func TestReconstructCenteredRecoversNegativeValue(t *testing.T) {
	qs := []uint64{97, 89, 83}
	basis := NewRNSBasis(qs)

	want := int64(-500)
	limbs := make([][]uint64, len(qs))
	for i, qi := range qs {
		limbs[i] = []uint64{Uncenter(want%int64(qi), qi)}
	}

	got := basis.ReconstructCentered(limbs, 0)
	require.Equal(t, big.NewInt(want), got)
}

func TestScaleRoundQtoTMatchesDirectRounding(t *testing.T) {
	qs := []uint64{97, 89}
	basis := NewRNSBasis(qs)
	t_ := uint64(17)

	value := int64(40)
	limbs := make([][]uint64, len(qs))
	for i, qi := range qs {
		limbs[i] = []uint64{Uncenter(value%int64(qi), qi)}
	}

	got := ScaleRoundQtoT(basis, limbs, 1, t_)

	// round(t/Q * value) mod t computed directly via big.Int for comparison.
	num := new(big.Int).Mul(big.NewInt(value), big.NewInt(int64(t_)))
	q, r := new(big.Int).QuoRem(num, basis.QBig, new(big.Int))
	if new(big.Int).Lsh(r, 1).CmpAbs(basis.QBig) >= 0 && r.Sign() != 0 {
		if num.Sign() >= 0 {
			q.Add(q, big.NewInt(1))
		}
	}
	q.Mod(q, big.NewInt(int64(t_)))
	require.Equal(t, q.Uint64(), got[0])
}

func TestScaleRoundAndReduceIdentityNumeratorReboundsSameValue(t *testing.T) {
	qs := []uint64{97, 89, 83}
	basis := NewRNSBasis(qs)
	outModuli := []uint64{97, 89}

	value := int64(777)
	limbs := make([][]uint64, len(qs))
	for i, qi := range qs {
		limbs[i] = []uint64{Uncenter(value%int64(qi), qi)}
	}

	out := ScaleRoundAndReduce(basis, limbs, 1, 1, big.NewInt(1), outModuli)
	for i, qi := range outModuli {
		require.Equal(t, Uncenter(value%int64(qi), qi), out[i][0])
	}
}

func TestModSwitchDownOfMultipleOfDroppedModulusIsExact(t *testing.T) {
	r := smallTestRing(t)
	qLast := r.Moduli[1].Q
	p := r.NewPoly()
	// a value that is an exact multiple of the dropped modulus divides out
	// cleanly with no rounding, so the result is exactly value/qLast.
	value := 3 * qLast
	p.Coeffs[0][0] = Uncenter(int64(value%r.Moduli[0].Q), r.Moduli[0].Q)
	p.Coeffs[1][0] = 0

	out, err := r.ModSwitchDown(p)
	require.NoError(t, err)
	require.Equal(t, 0, out.Level())
	require.Equal(t, uint64(3), out.Coeffs[0][0])
}

func TestModSwitchDownRejectsSingleLimb(t *testing.T) {
	r := smallTestRing(t)
	single := r.AtLevel(0)
	p := single.NewPoly()
	_, err := single.ModSwitchDown(p)
	require.Error(t, err)
}

func TestModSwitchDownRejectsEvalForm(t *testing.T) {
	r := smallTestRing(t)
	p := randomCoeffPoly(r, 20)
	require.NoError(t, r.NTT(p))
	_, err := r.ModSwitchDown(p)
	require.Error(t, err)
}

func TestModSwitchDownToSingleReachesLevelZero(t *testing.T) {
	qs, err := GenNTTFriendlyPrimes(8, []int{17, 17, 17}, true)
	require.NoError(t, err)
	r, err := NewRing(8, qs)
	require.NoError(t, err)
	p := r.NewPoly()
	p.Coeffs[0][0] = 5
	for i := 1; i < len(qs); i++ {
		p.Coeffs[i][0] = Uncenter(5, qs[i])
	}
	out, err := r.ModSwitchDownToSingle(p)
	require.NoError(t, err)
	require.Equal(t, 0, out.Level())
}
