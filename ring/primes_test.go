package ring

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenNTTFriendlyPrimesProducesDistinctNTTFriendlyPrimes(t *testing.T) {
	n := uint64(8)
	primes, err := GenNTTFriendlyPrimes(n, []int{17, 17, 18}, true)
	require.NoError(t, err)
	require.Len(t, primes, 3)

	seen := make(map[uint64]bool)
	for _, p := range primes {
		require.False(t, seen[p], "duplicate prime %d", p)
		seen[p] = true
		require.True(t, big.NewInt(0).SetUint64(p).ProbablyPrime(30))
		require.Equal(t, uint64(1), (p-1)%(2*n))
	}
}

func TestGenNTTFriendlyPrimesRespectsBitSize(t *testing.T) {
	n := uint64(8)
	primes, err := GenNTTFriendlyPrimes(n, []int{20}, true)
	require.NoError(t, err)
	bl := big.NewInt(0).SetUint64(primes[0]).BitLen()
	require.Equal(t, 20, bl)
}

func TestGenNTTFriendlyPrimesRejectsOutOfRangeBitSize(t *testing.T) {
	_, err := GenNTTFriendlyPrimes(8, []int{1}, true)
	require.Error(t, err)
}

func TestPrimitiveRoot2NProducesRootOfCorrectOrder(t *testing.T) {
	n := uint64(8)
	primes, err := GenNTTFriendlyPrimes(n, []int{17}, true)
	require.NoError(t, err)
	q := primes[0]

	root, err := PrimitiveRoot2N(q, n)
	require.NoError(t, err)

	m := NewModulus(q)
	// order must divide 2N exactly: root^N == -1 mod q (not 1), and
	// root^(2N) == 1.
	require.Equal(t, q-1, m.PowMod(root, n))
	require.Equal(t, uint64(1), m.PowMod(root, 2*n))
}

func TestPrimitiveRoot2NRejectsNonNTTFriendlyModulus(t *testing.T) {
	_, err := PrimitiveRoot2N(23, 8)
	require.Error(t, err)
}
