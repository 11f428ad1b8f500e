package ring

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSeedProducesDistinctSeeds(t *testing.T) {
	a, err := NewSeed()
	require.NoError(t, err)
	b, err := NewSeed()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestSampleUniformPolyIsDeterministicGivenSeed(t *testing.T) {
	r := smallTestRing(t)
	seed, err := NewSeed()
	require.NoError(t, err)

	a := r.NewPoly()
	b := r.NewPoly()
	r.SampleUniformPoly(seed, a)
	r.SampleUniformPoly(seed, b)
	require.True(t, a.Equal(b))
}

func TestSampleUniformPolyDiffersAcrossSeeds(t *testing.T) {
	r := smallTestRing(t)
	seed1, err := NewSeed()
	require.NoError(t, err)
	seed2, err := NewSeed()
	require.NoError(t, err)

	a := r.NewPoly()
	b := r.NewPoly()
	r.SampleUniformPoly(seed1, a)
	r.SampleUniformPoly(seed2, b)
	require.False(t, a.Equal(b))
}

func TestSampleUniformPolyStaysWithinModulus(t *testing.T) {
	r := smallTestRing(t)
	seed, err := NewSeed()
	require.NoError(t, err)
	p := r.NewPoly()
	r.SampleUniformPoly(seed, p)
	for i, m := range r.Moduli {
		for _, v := range p.Coeffs[i] {
			require.Less(t, v, m.Q)
		}
	}
}

func TestLimbReaderProducesDistinctStreamsPerLimb(t *testing.T) {
	seed, err := NewSeed()
	require.NoError(t, err)
	src := NewSeededSource(seed)

	buf0 := make([]byte, 32)
	buf1 := make([]byte, 32)
	_, err = src.LimbReader(0).Read(buf0)
	require.NoError(t, err)
	_, err = src.LimbReader(1).Read(buf1)
	require.NoError(t, err)
	require.NotEqual(t, buf0, buf1)
}
