// Package pir implements MulPIR (index-PIR) and keyword-PIR on top of the
// bfv package, following spec.md §4.6 and §4.8.
package pir

import (
	"fmt"
	"math/bits"

	"github.com/latticepir/bfvpir/bfv"
	"github.com/latticepir/bfvpir/bfverr"
	"github.com/latticepir/bfvpir/ring"
)

// KeyCompression selects how many Galois keys the client must generate for
// query expansion (spec.md §4.6 "Key-compression strategies").
type KeyCompression int

const (
	KeyCompressionNone KeyCompression = iota
	KeyCompressionMaximum
	KeyCompressionHybrid
)

// ServerParams derives the dimensions of an index-PIR database of M entries
// of E bytes each over D dimensions (spec.md §4.6 "Server parameters").
type ServerParams struct {
	M, E, D        int
	KeyCompression KeyCompression
	Dims           []int // d_1, ..., d_D with prod(Dims) >= M
}

func ceilPow2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// NewServerParams computes (d_1,...,d_D) as evenly as possible, defaulting
// d_1 = ceil(sqrt(M)) rounded up to a power of two and d_2 = ceil(M/d_1) for
// the default D=2 case, generalizing to D>2 by repeated D-th-root division.
func NewServerParams(m, e, d int, kc KeyCompression) (*ServerParams, error) {
	if m <= 0 {
		return nil, fmt.Errorf("pir.NewServerParams: %w: M must be positive", bfverr.ErrValidation)
	}
	if d <= 0 {
		d = 2
	}
	dims := make([]int, d)
	remaining := m
	for i := 0; i < d-1; i++ {
		root := 1
		for pow(root, d-i) < remaining {
			root++
		}
		dims[i] = ceilPow2(root)
		if dims[i] == 0 {
			dims[i] = 1
		}
		remaining = (remaining + dims[i] - 1) / dims[i]
	}
	prodSoFar := 1
	for i := 0; i < d-1; i++ {
		prodSoFar *= dims[i]
	}
	last := (m + prodSoFar - 1) / prodSoFar
	if last < 1 {
		last = 1
	}
	dims[d-1] = last

	return &ServerParams{M: m, E: e, D: d, KeyCompression: kc, Dims: dims}, nil
}

func pow(base, exp int) int {
	r := 1
	for i := 0; i < exp; i++ {
		r *= base
	}
	return r
}

// PlaintextsPerEntry returns ceil(E*8 / floor(log2(t)) / N), the number of
// plaintexts needed to hold one database entry (spec.md §4.6).
func PlaintextsPerEntry(e int, t, n uint64) int {
	logT := bits.Len64(t) - 1
	bitsNeeded := e * 8
	perPlaintext := logT * int(n)
	return (bitsNeeded + perPlaintext - 1) / perPlaintext
}

// dimsSum returns sum(dims).
func (p *ServerParams) dimsSum() int {
	s := 0
	for _, d := range p.Dims {
		s += d
	}
	return s
}

// SelectionVector encodes index i into the D one-hot vectors of spec.md
// §4.6 "Query generation", concatenated into one length-sum(Dims) vector.
func (p *ServerParams) SelectionVector(i int) []uint64 {
	vec := make([]uint64, p.dimsSum())
	off := 0
	rem := i
	for _, d := range p.Dims {
		pos := rem % d
		vec[off+pos] = 1
		rem /= d
		off += d
	}
	return vec
}

// GaloisElementsForExpansion returns the Galois elements {2^j+1 : 1 <= j <= upper}
// to generate query-expansion keys for, with upper trimmed per KeyCompression
// (spec.md §4.6 "Key-compression strategies"): logN for none,
// ceil((logN+1)/2) for maximum, one more than that for hybrid. The result
// does not depend on outputCount.
func GaloisElementsForExpansion(n uint64, outputCount int, kc KeyCompression) []uint64 {
	logN := bits.Len64(n) - 1
	full := ceilLog2(outputCount)
	if full > logN+1 {
		full = logN + 1
	}
	var upper int
	switch kc {
	case KeyCompressionNone:
		upper = logN
	case KeyCompressionMaximum:
		upper = ceilDiv(logN+1, 2)
	case KeyCompressionHybrid:
		upper = ceilDiv(logN+1, 2) + 1
	default:
		upper = logN
	}
	out := make([]uint64, 0, upper+1)
	for j := 1; j <= upper && j <= logN; j++ {
		out = append(out, (uint64(1)<<uint(j))+1)
	}
	return out
}

func ceilLog2(n int) int {
	l := 0
	for (1 << uint(l)) < n {
		l++
	}
	return l
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }

// Query is a client's compressed index-PIR query: one seeded ciphertext per
// ceil(sum(Dims)/N) chunk of the selection vector (spec.md §4.6).
type Query struct {
	Ciphertexts []*bfv.Ciphertext
	Total       int // sum(Dims), i.e. the logical length before chunking
}

// GenerateQuery builds the compressed query for index i: the selection
// vector is chunked into N-sized pieces, each piece's k-th nonzero
// coefficient is pre-scaled by 2^-ceil(log2(sum)) mod t so that the
// doublings in Expand restore it to 1.
func GenerateQuery(ctx *bfv.Context, enc *bfv.Encoder, encryptor *bfv.Encryptor, params *ServerParams, index int) (*Query, error) {
	vec := params.SelectionVector(index)
	n := int(ctx.Params.N())
	t := ctx.Params.T
	tMod := ring.NewModulus(t)

	logSum := ceilLog2(params.dimsSum())
	invScale := tMod.PowMod(tMod.InvMod(2), uint64(logSum))

	chunks := (len(vec) + n - 1) / n
	q := &Query{Total: len(vec)}
	for c := 0; c < chunks; c++ {
		coeffs := make([]uint64, n)
		for j := 0; j < n; j++ {
			idx := c*n + j
			if idx >= len(vec) {
				break
			}
			if vec[idx] != 0 {
				coeffs[j] = tMod.MulMod(vec[idx], invScale)
			}
		}
		pt, err := enc.EncodeCoeff(coeffs)
		if err != nil {
			return nil, fmt.Errorf("pir.GenerateQuery: %w", err)
		}
		ct, err := encryptor.Encrypt(pt)
		if err != nil {
			return nil, fmt.Errorf("pir.GenerateQuery: %w", err)
		}
		q.Ciphertexts = append(q.Ciphertexts, ct)
	}
	return q, nil
}

// Expand recovers up to N constant-polynomial ciphertexts per query
// ciphertext, each encrypting the original coefficient at its position
// (spec.md §4.6 "Expansion"). outputCount bounds the number of leaves kept
// across all of q's ciphertexts (the last chunk may need fewer than N).
func Expand(ev *bfv.Evaluator, ctx *bfv.Context, q *Query, outputCount int) ([]*bfv.Ciphertext, error) {
	n := int(ctx.Params.N())
	logN := ceilLog2(n)

	var out []*bfv.Ciphertext
	for _, ct := range q.Ciphertexts {
		remaining := outputCount - len(out)
		if remaining <= 0 {
			break
		}
		want := n
		if want > remaining {
			want = remaining
		}
		leaves, err := expandOne(ev, ctx, ct, logN, want)
		if err != nil {
			return nil, fmt.Errorf("pir.Expand: %w", err)
		}
		out = append(out, leaves...)
	}
	return out, nil
}

// expandOne expands a single ciphertext into `want` leaves via the
// recursive doubling algorithm: at step l, c' = phi_{2^(logN-l+1)+1}(c),
// emit (c+c', (c-c')*x^-2^(l-1)). Recursion runs ceil(log2(want)) levels;
// when want is not a power of two, the last level only splits as many
// nodes as needed to reach exactly `want` leaves, and the nodes that stop
// one level early are compensated with a final c <- c+c (spec.md §4.6).
// Each level puts the sums first and the shifted differences after them, so
// leaf k encrypts coefficient k of the input.
func expandOne(ev *bfv.Evaluator, ctx *bfv.Context, c *bfv.Ciphertext, logN, want int) ([]*bfv.Ciphertext, error) {
	if want > (1 << uint(logN)) {
		want = 1 << uint(logN)
	}
	levels := ceilLog2(want)
	if levels > logN {
		levels = logN
	}
	cur := []*bfv.Ciphertext{c}
	for l := 1; l <= levels; l++ {
		g := (uint64(1) << uint(logN-l+1)) + 1

		splitCount := len(cur)
		if l == levels {
			splitCount = want - len(cur)
			if splitCount < 0 {
				splitCount = 0
			}
			if splitCount > len(cur) {
				splitCount = len(cur)
			}
		}

		next := make([]*bfv.Ciphertext, len(cur)+splitCount)
		for i, x := range cur {
			if i < splitCount {
				cp, err := ev.ApplyGalois(x, g)
				if err != nil {
					return nil, err
				}
				sum, err := ev.Add(x, cp)
				if err != nil {
					return nil, err
				}
				diff, err := ev.Sub(x, cp)
				if err != nil {
					return nil, err
				}
				rotated, err := monomialShift(ctx, diff, -(1 << uint(l-1)))
				if err != nil {
					return nil, err
				}
				next[i] = sum
				next[len(cur)+i] = rotated
			} else {
				doubled, err := ev.Add(x, x)
				if err != nil {
					return nil, err
				}
				next[i] = doubled
			}
		}
		cur = next
	}
	if len(cur) > want {
		cur = cur[:want]
	}
	return cur, nil
}

// Database is a plaintext-encoded index-PIR database over ServerParams.Dims
// for the D=2 case: Rows[i2][i1] is the plaintext for row (i1,i2) under the
// mixed-radix index i = i1 + i2*d1 (spec.md §4.6 "Dot-product").
type Database struct {
	Rows [][]*bfv.Plaintext // Rows[i2][i1]
}

// NewDatabase encodes entries (indexed 0..M-1, coefficient-encoded) into the
// (d1,d2) grid ServerParams describes. Only D=2 is supported; see
// DESIGN.md for the scope decision.
func NewDatabase(params *ServerParams, enc *bfv.Encoder, entries [][]uint64) (*Database, error) {
	if params.D != 2 {
		return nil, fmt.Errorf("pir.NewDatabase: %w: only D=2 is supported", bfverr.ErrUnsupportedAlgorithm)
	}
	d1, d2 := params.Dims[0], params.Dims[1]
	db := &Database{Rows: make([][]*bfv.Plaintext, d2)}
	for i2 := 0; i2 < d2; i2++ {
		db.Rows[i2] = make([]*bfv.Plaintext, d1)
		for i1 := 0; i1 < d1; i1++ {
			idx := i1 + i2*d1
			var vals []uint64
			if idx < len(entries) {
				vals = entries[idx]
			}
			pt, err := enc.EncodeCoeff(vals)
			if err != nil {
				return nil, fmt.Errorf("pir.NewDatabase: %w", err)
			}
			db.Rows[i2][i1] = pt
		}
	}
	return db, nil
}

// DotProduct implements spec.md §4.6's "Dot-product" for D=2: the server
// holds expanded selection-vector ciphertexts s1 (length d1) and s2 (length
// d2); it computes sum_i2 s2[i2] * (sum_i1 s1[i1] * row[i2][i1]), mod-
// switching the result to a single modulus at the end.
func DotProduct(ev *bfv.Evaluator, params *ServerParams, db *Database, selections []*bfv.Ciphertext) (*bfv.Ciphertext, error) {
	if params.D != 2 {
		return nil, fmt.Errorf("pir.DotProduct: %w: only D=2 is supported", bfverr.ErrUnsupportedAlgorithm)
	}
	d1, d2 := params.Dims[0], params.Dims[1]
	if len(selections) < d1+d2 {
		return nil, fmt.Errorf("pir.DotProduct: %w: expected %d selection ciphertexts, got %d", bfverr.ErrValidation, d1+d2, len(selections))
	}
	s1 := selections[:d1]
	s2 := selections[d1 : d1+d2]

	var result *bfv.Ciphertext
	for i2 := 0; i2 < d2; i2++ {
		var inner *bfv.Ciphertext
		for i1 := 0; i1 < d1; i1++ {
			term, err := ev.MulPlaintext(s1[i1], db.Rows[i2][i1])
			if err != nil {
				return nil, fmt.Errorf("pir.DotProduct: %w", err)
			}
			if inner == nil {
				inner = term
				continue
			}
			inner, err = ev.Add(inner, term)
			if err != nil {
				return nil, fmt.Errorf("pir.DotProduct: %w", err)
			}
		}
		prod, err := ev.Mul(s2[i2], inner)
		if err != nil {
			return nil, fmt.Errorf("pir.DotProduct: %w", err)
		}
		prod, err = ev.Relinearize(prod)
		if err != nil {
			return nil, fmt.Errorf("pir.DotProduct: %w", err)
		}
		if result == nil {
			result = prod
			continue
		}
		result, err = ev.Add(result, prod)
		if err != nil {
			return nil, fmt.Errorf("pir.DotProduct: %w", err)
		}
	}
	for result.Level() > 0 {
		var err error
		result, err = ev.ModSwitchDown(result)
		if err != nil {
			return nil, fmt.Errorf("pir.DotProduct: %w", err)
		}
	}
	return result, nil
}

// monomialShift multiplies every polynomial of ct by x^k (spec.md §4.6's
// "(c-c')*x^-2^(l-1)" step).
func monomialShift(ctx *bfv.Context, ct *bfv.Ciphertext, k int) (*bfv.Ciphertext, error) {
	rq := ctx.RQ.AtLevel(ct.Level())
	polys := make([]*ring.Poly, len(ct.Polys))
	for i, p := range ct.Polys {
		coeff := p
		if p.Format == ring.Eval {
			var err error
			coeff, err = rq.InvNTTNew(p)
			if err != nil {
				return nil, err
			}
		}
		out := rq.NewPoly()
		rq.MonomialMulCoeff(coeff, k, out)
		polys[i] = out
	}
	return &bfv.Ciphertext{Polys: polys, CorrectionFactor: ct.CorrectionFactor, State: bfv.StateMutated}, nil
}
