package ring

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGaloisElementsListsAllOddResidues(t *testing.T) {
	n := uint64(8)
	elems := GaloisElements(n)
	require.Len(t, elems, int(n))
	for _, g := range elems {
		require.Equal(t, uint64(1), g%2)
		require.Less(t, g, 2*n)
	}
}

func TestRotationElementIsIdentityAtZero(t *testing.T) {
	require.Equal(t, uint64(1), RotationElement(16, 0))
}

func TestRotationElementWrapsNegativeAndPositiveEquivalently(t *testing.T) {
	n := uint64(16)
	half := int(n / 2)
	a := RotationElement(n, -3)
	b := RotationElement(n, half-3)
	require.Equal(t, a, b)
}

func TestRotationElementPeriodicInHalfN(t *testing.T) {
	n := uint64(16)
	half := int(n / 2)
	a := RotationElement(n, 5)
	b := RotationElement(n, 5+half)
	require.Equal(t, a, b)
}

func TestRowSwapElementIsItsOwnInverse(t *testing.T) {
	n := uint64(16)
	g := RowSwapElement(n)
	composed := ComposeElements(n, g, g)
	require.Equal(t, uint64(1), composed)
}

func TestNewAutomorphismIndexRejectsEvenOrOutOfRangeElement(t *testing.T) {
	_, err := NewAutomorphismIndex(8, 4)
	require.Error(t, err)
	_, err = NewAutomorphismIndex(8, 17)
	require.Error(t, err)
}

func TestApplyIdentityElementIsNoOp(t *testing.T) {
	r := smallTestRing(t)
	p := randomCoeffPoly(r, 30)
	ai, err := NewAutomorphismIndex(r.N, 1)
	require.NoError(t, err)
	out := r.NewPoly()
	require.NoError(t, r.Apply(p, ai, out))
	require.True(t, out.Equal(p))
}

func TestApplyRejectsEvalForm(t *testing.T) {
	r := smallTestRing(t)
	p := randomCoeffPoly(r, 31)
	require.NoError(t, r.NTT(p))
	ai, err := NewAutomorphismIndex(r.N, 3)
	require.NoError(t, err)
	out := r.NewPoly()
	require.Error(t, r.Apply(p, ai, out))
}

func TestApplyTwiceWithInverseElementsRecoversOriginal(t *testing.T) {
	r := smallTestRing(t)
	p := randomCoeffPoly(r, 32)

	g := RotationElement(r.N, 1)
	gInv := InverseElement(r.N, g)

	aiFwd, err := NewAutomorphismIndex(r.N, g)
	require.NoError(t, err)
	aiInv, err := NewAutomorphismIndex(r.N, gInv)
	require.NoError(t, err)

	rotated := r.NewPoly()
	require.NoError(t, r.Apply(p, aiFwd, rotated))
	back := r.NewPoly()
	require.NoError(t, r.Apply(rotated, aiInv, back))

	require.True(t, back.Equal(p))
}

func TestComposeElementsMatchesSequentialApplication(t *testing.T) {
	r := smallTestRing(t)
	p := randomCoeffPoly(r, 33)

	g1 := RotationElement(r.N, 1)
	g2 := RotationElement(r.N, 2)
	composed := ComposeElements(r.N, g1, g2)

	ai1, err := NewAutomorphismIndex(r.N, g1)
	require.NoError(t, err)
	ai2, err := NewAutomorphismIndex(r.N, g2)
	require.NoError(t, err)
	aiComposed, err := NewAutomorphismIndex(r.N, composed)
	require.NoError(t, err)

	step1 := r.NewPoly()
	require.NoError(t, r.Apply(p, ai1, step1))
	step2 := r.NewPoly()
	require.NoError(t, r.Apply(step1, ai2, step2))

	direct := r.NewPoly()
	require.NoError(t, r.Apply(p, aiComposed, direct))

	require.True(t, step2.Equal(direct))
}

func TestInverseElementRejectsNonInvertibleInput(t *testing.T) {
	// an even element is never coprime to 2N, so extGCD fails and
	// InverseElement reports it via a zero result.
	require.Equal(t, uint64(0), InverseElement(16, 2))
}
