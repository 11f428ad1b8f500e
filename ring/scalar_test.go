package ring

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMulModMatchesBigIntForSmallModulus(t *testing.T) {
	m := NewModulus(17)
	for x := uint64(0); x < 17; x++ {
		for y := uint64(0); y < 17; y++ {
			require.Equal(t, (x*y)%17, m.MulMod(x, y))
		}
	}
}

func TestMulModAgreesWithNaiveForLargeModulus(t *testing.T) {
	const q = uint64(1<<61 - 1)
	m := NewModulus(q)
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		x := rng.Uint64() % q
		y := rng.Uint64() % q
		want := bigMulMod(x, y, q)
		require.Equal(t, want, m.MulMod(x, y))
	}
}

func bigMulMod(x, y, q uint64) uint64 {
	prod := new(big.Int).Mul(new(big.Int).SetUint64(x), new(big.Int).SetUint64(y))
	prod.Mod(prod, new(big.Int).SetUint64(q))
	return prod.Uint64()
}

func TestAddSubModRoundTrip(t *testing.T) {
	m := NewModulus(97)
	for x := uint64(0); x < 97; x++ {
		for y := uint64(0); y < 97; y++ {
			sum := m.AddMod(x, y)
			require.Equal(t, x, m.SubMod(sum, y))
		}
	}
}

func TestPowModMatchesRepeatedMul(t *testing.T) {
	m := NewModulus(1009)
	x := uint64(7)
	acc := uint64(1)
	for e := uint64(0); e < 20; e++ {
		require.Equal(t, acc, m.PowMod(x, e))
		acc = m.MulMod(acc, x)
	}
}

func TestInvModIsMultiplicativeInverse(t *testing.T) {
	m := NewModulus(1009)
	for x := uint64(1); x < 1009; x++ {
		inv := m.InvMod(x)
		require.Equal(t, uint64(1), m.MulMod(x, inv))
	}
}

func TestInvModPanicsOnZero(t *testing.T) {
	m := NewModulus(17)
	require.Panics(t, func() { m.InvMod(0) })
}

func TestCenterUncenterRoundTrip(t *testing.T) {
	q := uint64(17)
	for a := uint64(0); a < q; a++ {
		c := Center(a, q)
		require.Equal(t, a, Uncenter(c, q))
		require.True(t, c > -int64(q) && c <= int64(q))
	}
}

func TestRandomUniformStaysInRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		v, err := RandomUniform(23)
		require.NoError(t, err)
		require.Less(t, v, uint64(23))
	}
}

func TestRandomUniformRejectsZeroUpperBound(t *testing.T) {
	_, err := RandomUniform(0)
	require.Error(t, err)
}
