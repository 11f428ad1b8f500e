package ring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSampleTernaryStaysInRange(t *testing.T) {
	vals, err := SampleTernary(2000)
	require.NoError(t, err)
	seen := map[int64]bool{}
	for _, v := range vals {
		require.True(t, v >= -1 && v <= 1)
		seen[v] = true
	}
	// with 2000 draws all three outcomes should appear.
	require.Len(t, seen, 3)
}

func TestSampleCenteredBinomialIsCenteredAndBounded(t *testing.T) {
	const sigma = 3.2
	vals, err := SampleCenteredBinomial(5000, sigma)
	require.NoError(t, err)
	k := int(math.Round(2 * sigma * sigma))
	if k < 1 {
		k = 1
	}
	var sum float64
	for _, v := range vals {
		require.True(t, v >= -int64(k) && v <= int64(k))
		sum += float64(v)
	}
	mean := sum / float64(len(vals))
	require.InDelta(t, 0, mean, 0.5)
}

func TestEncodeSignedRoundTripsThroughCenterUncenter(t *testing.T) {
	r := smallTestRing(t)
	vals := []int64{-3, 0, 1, -1, 2, -2, 3, -4}
	p := r.EncodeSigned(vals)
	for i, m := range r.Moduli {
		for j, v := range vals {
			want := Uncenter(v%int64(m.Q), m.Q)
			require.Equal(t, want, p.Coeffs[i][j])
		}
	}
}
