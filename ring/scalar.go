// Package ring implements the modular-arithmetic and RNS/NTT polynomial
// engine that the bfv package builds on: constant-time Montgomery/Barrett
// reduction, NTT-friendly prime generation, forward/inverse NTT, RNS limb
// management, base conversion, and mod-switching.
package ring

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"math/bits"

	"golang.org/x/exp/constraints"
)

// Width distinguishes the two Scalar capacities the scheme supports. Both
// widths are backed by the same uint64 Barrett/Montgomery machinery; Width
// only bounds how many significant bits a modulus belonging to that width
// may carry, and therefore how deep a coefficient-modulus chain can go.
type Width int

const (
	// Width32 bounds each coefficient modulus to 32 significant bits.
	Width32 Width = 32
	// Width64 bounds each coefficient modulus to 61 significant bits (the
	// largest size for which Barrett/Montgomery reduction with uint64
	// registers stays exact).
	Width64 Width = 61
)

// Uint is the constraint satisfied by the two in-memory scalar
// representations the library stores RNS limbs as.
type Uint = constraints.Unsigned

// Modulus is a prime q together with the precomputed constants needed for
// constant-time (with respect to the operands; variable-time with respect
// to the modulus constants themselves) modular arithmetic and for the
// forward/inverse NTT of degree 2N.
type Modulus struct {
	Q uint64

	// Barrett reduction double-word reciprocal: BRedParams[0] = hi(2^128/Q),
	// BRedParams[1] = lo(2^128/Q).
	BRedParams [2]uint64

	// Montgomery constant: MRedParams = Q^-1 mod 2^64, used by MRed.
	MRedParams uint64
}

// NewModulus builds the reduction constants for q. It does not require q be
// prime; primality and NTT-friendliness are checked by the caller
// (GenNTTFriendlyPrimes / NewRing) since a Modulus may also back the
// plaintext ring which is not always NTT-enabled.
func NewModulus(q uint64) Modulus {
	return Modulus{
		Q:          q,
		BRedParams: bredParams(q),
		MRedParams: mredParams(q),
	}
}

// bredParams computes floor(2^128/q) as a double uint64 word.
func bredParams(q uint64) [2]uint64 {
	bigR := new(big.Int).Lsh(big.NewInt(1), 128)
	bigR.Quo(bigR, new(big.Int).SetUint64(q))
	lo := new(big.Int).And(bigR, new(big.Int).SetUint64(^uint64(0))).Uint64()
	hi := new(big.Int).Rsh(bigR, 64).Uint64()
	return [2]uint64{hi, lo}
}

// mredParams computes qInv = q^-1 mod 2^64 via the standard Newton-style
// doubling used for Montgomery reduction (teacher: ring/modular_reduction.go).
func mredParams(q uint64) uint64 {
	qInv := uint64(1)
	x := q
	for i := 0; i < 63; i++ {
		qInv *= x
		x *= x
	}
	return qInv
}

// BRedAdd reduces x (assumed < q^2) modulo q using Barrett reduction.
func (m Modulus) BRedAdd(x uint64) uint64 {
	hi, _ := bits.Mul64(x, m.BRedParams[0])
	r := x - hi*m.Q
	if r >= m.Q {
		r -= m.Q
	}
	return r
}

// MRed computes x*y*2^-64 mod q (Montgomery multiplication).
func (m Modulus) MRed(x, y uint64) uint64 {
	hi, lo := bits.Mul64(x, y)
	r := lo * m.MRedParams
	h, _ := bits.Mul64(r, m.Q)
	out := hi - h + m.Q
	if out >= m.Q {
		out -= m.Q
	}
	return out
}

// AddMod returns (x+y) mod q for x, y already reduced mod q.
func (m Modulus) AddMod(x, y uint64) uint64 {
	r := x + y
	if r >= m.Q {
		r -= m.Q
	}
	return r
}

// SubMod returns (x-y) mod q for x, y already reduced mod q.
func (m Modulus) SubMod(x, y uint64) uint64 {
	if x >= y {
		return x - y
	}
	return x + m.Q - y
}

// MulMod returns x*y mod q. x and y need not be pre-reduced as long as
// x*y < q*2^64, which holds whenever one of them is below q: the 128-bit
// product's high word is then strictly less than q, so the reduction is an
// exact 128-by-64 division (bits.Div64 panics otherwise) rather than an
// approximate Barrett step; BRedParams is reserved for the single-word
// BRedAdd path used by the NTT's butterfly reduction.
func (m Modulus) MulMod(x, y uint64) uint64 {
	hi, lo := bits.Mul64(x, y)
	_, rem := bits.Div64(hi, lo, m.Q)
	return rem
}

// PowMod returns x^e mod q by square-and-multiply.
func (m Modulus) PowMod(x, e uint64) uint64 {
	result := uint64(1) % m.Q
	base := x % m.Q
	for e > 0 {
		if e&1 == 1 {
			result = m.MulMod(result, base)
		}
		base = m.MulMod(base, base)
		e >>= 1
	}
	return result
}

// InvMod returns x^-1 mod q via the extended Euclidean algorithm. Panics if
// x is not invertible mod q (q is assumed prime, so this only happens for
// x == 0).
func (m Modulus) InvMod(x uint64) uint64 {
	if x == 0 {
		panic("ring: InvMod of zero")
	}
	g, invX, _ := extGCD(int64(x%m.Q), int64(m.Q))
	if g != 1 {
		panic(fmt.Sprintf("ring: %d has no inverse mod %d", x, m.Q))
	}
	invX %= int64(m.Q)
	if invX < 0 {
		invX += int64(m.Q)
	}
	return uint64(invX)
}

func extGCD(a, b int64) (g, x, y int64) {
	if a == 0 {
		return b, 0, 1
	}
	g, x1, y1 := extGCD(b%a, a)
	return g, y1 - (b/a)*x1, x1
}

// RandomUniform draws a uniform residue in [0, upper) via rejection
// sampling over the whole-word range, reading entropy from crypto/rand.
func RandomUniform(upper uint64) (uint64, error) {
	if upper == 0 {
		return 0, fmt.Errorf("ring.RandomUniform: upper bound must be non-zero")
	}
	// Largest multiple of `upper` that fits in 64 bits; rejecting above it
	// removes modulo bias.
	limit := (^uint64(0) / upper) * upper
	var buf [8]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			return 0, fmt.Errorf("ring.RandomUniform: %w", err)
		}
		v := uint64(buf[0]) | uint64(buf[1])<<8 | uint64(buf[2])<<16 | uint64(buf[3])<<24 |
			uint64(buf[4])<<32 | uint64(buf[5])<<40 | uint64(buf[6])<<48 | uint64(buf[7])<<56
		if v < limit {
			return v % upper, nil
		}
	}
}

// Center maps a in [0, q) to the centered representative in (-q/2, q/2].
func Center(a, q uint64) int64 {
	if a > q/2 {
		return int64(a) - int64(q)
	}
	return int64(a)
}

// Uncenter maps a centered representative back to [0, q).
func Uncenter(a int64, q uint64) uint64 {
	if a < 0 {
		return uint64(a + int64(q))
	}
	return uint64(a)
}
