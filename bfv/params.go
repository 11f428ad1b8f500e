// Package bfv implements the Brakerski-Fan-Vercauteren scheme over
// power-of-two cyclotomic rings: parameters, key generation, encode/decode,
// encryption, decryption, ciphertext arithmetic, key-switching, noise
// budget accounting, and the compact ciphertext serialization layouts.
package bfv

import (
	"fmt"

	"math"
	"math/big"

	"github.com/ALTree/bigfloat"

	"github.com/latticepir/bfvpir/bfverr"
	"github.com/latticepir/bfvpir/ring"
)

// SecurityLevel is an advisory label only: the library never refuses
// parameters because of it except at the named "secure" constructors (see
// NewParametersSecure128).
type SecurityLevel int

const (
	SecurityLevelNone SecurityLevel = iota
	SecurityLevel128
	SecurityLevel192
	SecurityLevel256
)

// Parameters is the immutable bundle of spec.md §3's "EncryptionParameters":
// polynomial degree, plaintext modulus, ordered coefficient moduli, error
// standard deviation, and an advisory security label. Every qi is validated
// NTT-friendly for N and the chosen Width bounds each qi's bit length.
type Parameters struct {
	Width    ring.Width
	LogN     int
	T        uint64
	Q        []uint64
	Sigma    float64
	Security SecurityLevel
}

// Literal is the unchecked, user-facing form from which Parameters is
// constructed, mirroring the teacher's ParametersLiteral -> NewParameters
// pattern (core/rlwe/params.go).
type Literal struct {
	Width    ring.Width
	LogN     int
	T        uint64
	QBits    []int // significant-bit counts; primes are generated to match
	Sigma    float64
	Security SecurityLevel
}

// defaultSigma is the error standard deviation used when a Literal omits
// one, matching common BFV parameter defaults.
const defaultSigma = 3.2

// NewParameters validates lit and generates the coefficient-modulus chain,
// returning the immutable Parameters.
func NewParameters(lit Literal) (Parameters, error) {
	if lit.LogN < 1 {
		return Parameters{}, fmt.Errorf("bfv.NewParameters: %w: LogN must be >= 1, got %d", bfverr.ErrValidation, lit.LogN)
	}
	if lit.T < 2 {
		return Parameters{}, fmt.Errorf("bfv.NewParameters: %w: plaintext modulus T must be >= 2, got %d", bfverr.ErrValidation, lit.T)
	}
	if len(lit.QBits) == 0 {
		return Parameters{}, fmt.Errorf("bfv.NewParameters: %w: at least one coefficient modulus is required", bfverr.ErrValidation)
	}
	width := lit.Width
	if width == 0 {
		width = ring.Width64
	}
	for _, b := range lit.QBits {
		if b > int(width) {
			return Parameters{}, fmt.Errorf("bfv.NewParameters: %w: requested %d-bit modulus exceeds width budget of %d bits", bfverr.ErrValidation, b, width)
		}
	}
	sigma := lit.Sigma
	if sigma == 0 {
		sigma = defaultSigma
	}

	n := uint64(1) << uint(lit.LogN)
	qs, err := ring.GenNTTFriendlyPrimes(n, lit.QBits, true)
	if err != nil {
		return Parameters{}, fmt.Errorf("bfv.NewParameters: %w", err)
	}

	return Parameters{
		Width:    width,
		LogN:     lit.LogN,
		T:        lit.T,
		Q:        qs,
		Sigma:    sigma,
		Security: lit.Security,
	}, nil
}

// N returns the polynomial degree 2^LogN.
func (p Parameters) N() uint64 { return uint64(1) << uint(p.LogN) }

// QCount returns the number of coefficient moduli (the maximum level + 1).
func (p Parameters) QCount() int { return len(p.Q) }

// MaxLevel returns the highest valid RNS level.
func (p Parameters) MaxLevel() int { return len(p.Q) - 1 }

// SIMDCapable reports whether t ≡ 1 (mod 2N), the precondition for SIMD
// (batched) encoding (spec.md §3).
func (p Parameters) SIMDCapable() bool {
	return p.T%(2*p.N()) == 1
}

// LogQ returns log2 of the product of all coefficient moduli as a real
// number (not a rounded bit length), computed at arbitrary precision via bigfloat since for realistic parameter
// sets Q overflows float64 precision.
func (p Parameters) LogQ() float64 {
	q := new(big.Int).SetUint64(1)
	for _, qi := range p.Q {
		q.Mul(q, new(big.Int).SetUint64(qi))
	}
	f := new(big.Float).SetPrec(256).SetInt(q)
	lnQ := bigfloat.Log(f)
	out, _ := new(big.Float).SetPrec(256).Mul(lnQ, big.NewFloat(math.Log2E)).Float64()
	return out
}

// SecurityEstimate is an advisory estimate, not a guarantee: it reports the
// achieved log2(Q) alongside the requested Security label so a caller can
// compare it against published LWE-estimator tables. The library does not
// refuse weaker parameters except through NewParametersSecure128.
type SecurityEstimate struct {
	LogQ     float64
	LogN     int
	Declared SecurityLevel
}

// Estimate computes the advisory SecurityEstimate for p.
func (p Parameters) Estimate() SecurityEstimate {
	return SecurityEstimate{LogQ: p.LogQ(), LogN: p.LogN, Declared: p.Security}
}

// approxSecureLogQFor128 is a coarse approximation of the maximum log2(Q)
// the classical LWE estimator tolerates at the 128-bit security level for
// ternary secrets, looked up in a small table of published
// HomomorphicEncryption.org values for LogN 10..15. Above 15 it doubles the
// LogN=15 value per extra step; below 10 it returns the LogN=10 value. It is
// intentionally conservative.
func approxSecureLogQFor128(logN int) float64 {
	table := map[int]float64{10: 27, 11: 54, 12: 109, 13: 218, 14: 438, 15: 881}
	if v, ok := table[logN]; ok {
		return v
	}
	if logN > 15 {
		return 881 * float64(int(1)<<uint(logN-15))
	}
	return 27
}

// NewParametersSecure128 is a named constructor that refuses to return
// parameters below the 128-bit advisory floor, per spec.md §3 ("the library
// does not refuse weaker parameters except at named constructors").
func NewParametersSecure128(lit Literal) (Parameters, error) {
	lit.Security = SecurityLevel128
	p, err := NewParameters(lit)
	if err != nil {
		return Parameters{}, err
	}
	if p.LogQ() > approxSecureLogQFor128(p.LogN) {
		return Parameters{}, fmt.Errorf("bfv.NewParametersSecure128: %w: log2(Q)=%.1f exceeds the 128-bit advisory floor of %.1f for LogN=%d",
			bfverr.ErrValidation, p.LogQ(), approxSecureLogQFor128(p.LogN), p.LogN)
	}
	return p, nil
}
