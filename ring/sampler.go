package ring

import (
	"crypto/rand"
	"fmt"
	"math"
)

// SampleTernary draws N ternary coefficients from {-1,0,1} uniformly (each
// outcome probability 1/3) using the system CSPRNG, the representation used
// for BFV secret keys (spec.md §3 "SecretKey").
func SampleTernary(n int) ([]int64, error) {
	out := make([]int64, n)
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("ring.SampleTernary: %w", err)
	}
	for i, b := range buf {
		// Map the byte to {-1,0,1} via rejection on the low two bits to
		// keep the three outcomes balanced.
		for {
			v := b & 0x3
			if v == 3 {
				var next [1]byte
				if _, err := rand.Read(next[:]); err != nil {
					return nil, fmt.Errorf("ring.SampleTernary: %w", err)
				}
				b = next[0]
				continue
			}
			out[i] = int64(v) - 1
			break
		}
	}
	return out, nil
}

// SampleCenteredBinomial draws N error coefficients from a centered
// binomial distribution approximating a discrete Gaussian of the requested
// standard deviation sigma, the error distribution of spec.md §4.3 step 2.
func SampleCenteredBinomial(n int, sigma float64) ([]int64, error) {
	// A centered binomial of 2k trials has variance k/2; solve for k.
	k := int(math.Round(2 * sigma * sigma))
	if k < 1 {
		k = 1
	}
	out := make([]int64, n)
	buf := make([]byte, (2*k+7)/8)
	for i := range out {
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("ring.SampleCenteredBinomial: %w", err)
		}
		ones := 0
		for bit := 0; bit < 2*k; bit++ {
			byteIdx, bitIdx := bit/8, bit%8
			if buf[byteIdx]&(1<<uint(bitIdx)) != 0 {
				ones++
			}
		}
		// Split the 2k coin flips into two halves of k; the signed
		// difference is the centered-binomial sample.
		firstHalf := 0
		for bit := 0; bit < k; bit++ {
			byteIdx, bitIdx := bit/8, bit%8
			if buf[byteIdx]&(1<<uint(bitIdx)) != 0 {
				firstHalf++
			}
		}
		secondHalf := ones - firstHalf
		out[i] = int64(firstHalf - secondHalf)
	}
	return out, nil
}

// EncodeSigned lifts a slice of centered int64 coefficients (as produced by
// SampleTernary/SampleCenteredBinomial) into a Poly's limbs under the given
// Ring, reducing each value mod every qi.
func (r *Ring) EncodeSigned(vals []int64) *Poly {
	p := r.NewPoly()
	for i, m := range r.Moduli {
		for j, v := range vals {
			p.Coeffs[i][j] = Uncenter(v%int64(m.Q), m.Q)
		}
	}
	return p
}
