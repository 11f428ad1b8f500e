package ring

import (
	"fmt"
	"math/big"
)

// GenNTTFriendlyPrimes produces one prime per requested significant-bit
// count such that each prime p satisfies p ≡ 1 (mod 2N), i.e. is
// NTT-friendly for polynomials of degree N. preferringSmall searches upward
// from 2^(k-1)+1; otherwise it searches downward from 2^k-1. Each returned
// prime is distinct even across repeated bit-counts in bitSizes.
func GenNTTFriendlyPrimes(n uint64, bitSizes []int, preferringSmall bool) ([]uint64, error) {
	used := make(map[uint64]bool)
	out := make([]uint64, 0, len(bitSizes))
	twoN := new(big.Int).SetUint64(2 * n)
	for _, k := range bitSizes {
		p, err := nextNTTFriendlyPrime(k, twoN, preferringSmall, used)
		if err != nil {
			return nil, fmt.Errorf("ring.GenNTTFriendlyPrimes: no %d-bit prime p with p=1 mod %d available: %w", k, 2*n, err)
		}
		used[p] = true
		out = append(out, p)
	}
	return out, nil
}

func nextNTTFriendlyPrime(bits int, twoN *big.Int, preferringSmall bool, used map[uint64]bool) (uint64, error) {
	if bits < 2 || bits > 62 {
		return 0, fmt.Errorf("bit count %d out of supported range [2,62]", bits)
	}
	one := big.NewInt(1)
	if preferringSmall {
		// Search upward from 2^(k-1)+1, stepping by 2N so every candidate
		// satisfies p = 1 (mod 2N) by construction.
		lower := new(big.Int).Lsh(one, uint(bits-1))
		rem := new(big.Int).Mod(lower, twoN)
		cand := new(big.Int).Sub(lower, rem)
		cand.Add(cand, one)
		if cand.Cmp(lower) < 0 {
			cand.Add(cand, twoN)
		}
		upperBound := new(big.Int).Lsh(one, uint(bits))
		for cand.Cmp(upperBound) < 0 {
			if cand.ProbablyPrime(30) && !used[cand.Uint64()] {
				return cand.Uint64(), nil
			}
			cand.Add(cand, twoN)
		}
		return 0, fmt.Errorf("exhausted %d-bit range searching upward", bits)
	}

	// Search downward from 2^k - 1.
	upper := new(big.Int).Sub(new(big.Int).Lsh(one, uint(bits)), one)
	rem := new(big.Int).Mod(upper, twoN)
	cand := new(big.Int).Sub(upper, rem)
	cand.Add(cand, one)
	if cand.Cmp(upper) > 0 {
		cand.Sub(cand, twoN)
	}
	lowerBound := new(big.Int).Lsh(one, uint(bits-1))
	for cand.Cmp(lowerBound) >= 0 {
		if cand.ProbablyPrime(30) && !used[cand.Uint64()] {
			return cand.Uint64(), nil
		}
		cand.Sub(cand, twoN)
	}
	return 0, fmt.Errorf("exhausted %d-bit range searching downward", bits)
}

// PrimitiveRoot2N finds a generator of order 2N modulo the prime q (i.e. a
// primitive 2N-th root of unity), required to build NTT twiddle tables.
func PrimitiveRoot2N(q, n uint64) (uint64, error) {
	mod := NewModulus(q)
	if (q-1)%(2*n) != 0 {
		return 0, fmt.Errorf("ring.PrimitiveRoot2N: %d is not 1 mod %d", q, 2*n)
	}
	exponent := (q - 1) / (2 * n)
	// Factor 2N to confirm primitivity: an element g of order dividing 2N
	// is a full 2N-th root iff g^N != 1 and g^(2N/p) != 1 for every prime p
	// dividing 2N. Since 2N is a power of two, the only check needed is
	// g^N != 1.
	for g := uint64(2); g < q; g++ {
		root := mod.PowMod(g, exponent)
		if mod.PowMod(root, n) != q-1 {
			continue
		}
		return root, nil
	}
	return 0, fmt.Errorf("ring.PrimitiveRoot2N: no primitive 2*%d-th root of unity found mod %d", n, q)
}
