package bfv

import (
	"fmt"

	"github.com/latticepir/bfvpir/bfverr"
	"github.com/latticepir/bfvpir/ring"
)

// PackingMode selects how a plaintext matrix's rows/columns are laid out
// across SIMD slots for matrix x vector multiplication (spec.md §4.5).
type PackingMode int

const (
	// PackDenseRow replicates each row, padded to the next power of two
	// <= N/2, as many times as fits in the available slots.
	PackDenseRow PackingMode = iota
	// PackDenseColumn is the column-major analogue of PackDenseRow.
	PackDenseColumn
	// PackDiagonal is the Halevi-Shoup diagonal layout.
	PackDiagonal
)

// nextPow2 rounds n up to the next power of two, minimum 1.
func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Matrix is a plaintext matrix prepared for homomorphic multiplication
// against an encrypted vector (spec.md §4.5).
type Matrix struct {
	ctx      *Context
	rows     int
	cols     int
	mode     PackingMode
	packed   []*Plaintext // one per group of `replicas` SIMD-packed rows (PackDenseRow) or columns (PackDenseColumn)
	replicas int          // how many copies of each row/column fit per plaintext
}

// NewDenseRowMatrix packs data (rows x cols, row-major, each value < t) using
// PackDenseRow: each row is padded to the next power of two <= N/2 and
// replicated across the available SIMD slots.
func NewDenseRowMatrix(ctx *Context, enc *Encoder, data [][]uint64) (*Matrix, error) {
	if ctx.RT == nil {
		return nil, fmt.Errorf("bfv.NewDenseRowMatrix: %w: SIMD packing requires t = 1 mod 2N", bfverr.ErrValidation)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("bfv.NewDenseRowMatrix: %w: empty matrix", bfverr.ErrValidation)
	}
	rows, cols := len(data), len(data[0])
	n := int(ctx.Params.N())
	half := n / 2
	padded := nextPow2(cols)
	if padded > half {
		return nil, fmt.Errorf("bfv.NewDenseRowMatrix: %w: row width %d exceeds N/2=%d after padding", bfverr.ErrValidation, cols, half)
	}
	replicas := half / padded

	m := &Matrix{ctx: ctx, rows: rows, cols: cols, mode: PackDenseRow, replicas: replicas}
	plaintextCount := (rows + replicas - 1) / replicas
	m.packed = make([]*Plaintext, plaintextCount)
	for p := 0; p < plaintextCount; p++ {
		slots := make([]uint64, n)
		for r := 0; r < replicas; r++ {
			rowIdx := p*replicas + r
			if rowIdx >= rows {
				break
			}
			for c := 0; c < cols; c++ {
				slots[r*padded+c] = data[rowIdx][c]
				slots[half+r*padded+c] = data[rowIdx][c]
			}
		}
		pt, err := enc.EncodeSIMD(slots)
		if err != nil {
			return nil, fmt.Errorf("bfv.NewDenseRowMatrix: %w", err)
		}
		m.packed[p] = pt
	}
	return m, nil
}

// NewDenseColumnMatrix is the column-major analogue of NewDenseRowMatrix.
func NewDenseColumnMatrix(ctx *Context, enc *Encoder, data [][]uint64) (*Matrix, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("bfv.NewDenseColumnMatrix: %w: empty matrix", bfverr.ErrValidation)
	}
	rows, cols := len(data), len(data[0])
	colMajor := make([][]uint64, cols)
	for c := 0; c < cols; c++ {
		colMajor[c] = make([]uint64, rows)
		for r := 0; r < rows; r++ {
			colMajor[c][r] = data[r][c]
		}
	}
	m, err := NewDenseRowMatrix(ctx, enc, colMajor)
	if err != nil {
		return nil, err
	}
	m.mode = PackDenseColumn
	m.rows, m.cols = rows, cols
	return m, nil
}

// MulVector computes plaintext-matrix x encrypted-vector for a
// PackDenseRow/PackDenseColumn matrix: each packed plaintext row-block is
// multiplied elementwise against ctVec (whose slots hold the query vector
// replicated identically into every row-block), then each block's products
// (`cols` of them for PackDenseRow, `rows` for PackDenseColumn, whose blocks
// hold columns) are summed via a rotate-and-add cascade with doubling shifts
// 1, 2, 4, ..., padded/2. Because `padded` is a power of two dividing the
// block stride, a shift below `padded` never crosses into a neighboring
// replica's block, so this reduces every row-block independently and lands
// each row's dot product at that block's leading slot (spec.md §4.5).
func (m *Matrix) MulVector(ev *Evaluator, ctVec *Ciphertext) ([]*Ciphertext, error) {
	if m.mode == PackDiagonal {
		return nil, fmt.Errorf("bfv.Matrix.MulVector: %w: diagonal packing not supported by this entry point", bfverr.ErrUnsupportedAlgorithm)
	}
	width := m.cols
	if m.mode == PackDenseColumn {
		width = m.rows
	}
	padded := nextPow2(width)
	out := make([]*Ciphertext, len(m.packed))
	for i, pt := range m.packed {
		prod, err := ev.MulPlaintext(ctVec, pt)
		if err != nil {
			return nil, fmt.Errorf("bfv.Matrix.MulVector: %w", err)
		}
		for shift := 1; shift < padded; shift <<= 1 {
			rotated, err := ev.Rotate(prod, shift)
			if err != nil {
				return nil, fmt.Errorf("bfv.Matrix.MulVector: %w", err)
			}
			prod, err = ev.Add(prod, rotated)
			if err != nil {
				return nil, fmt.Errorf("bfv.Matrix.MulVector: %w", err)
			}
		}
		out[i] = prod
	}
	return out, nil
}

// RequiredGaloisElementsDense returns the Galois elements a dense row/column
// packed matrix multiplication needs for MulVector's within-block reduction:
// one rotation per power-of-two step from 1 up to padded/2, mirroring the
// evaluation-key-config helper spec.md §4.5 describes for the diagonal
// layout but for the dense packing modes' rotate-and-add reduction.
func RequiredGaloisElementsDense(n uint64, columnCount int) []uint64 {
	half := int(n) / 2
	padded := nextPow2(columnCount)
	if padded > half {
		return nil
	}
	elems := make([]uint64, 0, 8)
	for shift := 1; shift < padded; shift <<= 1 {
		elems = append(elems, ring.RotationElement(n, shift))
	}
	return elems
}

// RequiredGaloisElements returns the Galois elements a diagonal-packed
// (rowCount, columnCount, maxQueryCount) matrix multiplication needs:
// baby-step rotations -1..-(b-1) and giant-step rotations -b,-2b,...,-(g-1)b,
// where b is chosen as ceil(sqrt(columnCount)) and g = ceil(columnCount/b)
// (spec.md §4.5).
func RequiredGaloisElements(n uint64, rowCount, columnCount, maxQueryCount int) []uint64 {
	_ = rowCount
	_ = maxQueryCount
	b := 1
	for b*b < columnCount {
		b++
	}
	g := (columnCount + b - 1) / b
	elems := make(map[uint64]bool)
	for i := 1; i < b; i++ {
		elems[ring.RotationElement(n, -i)] = true
	}
	for j := 1; j < g; j++ {
		elems[ring.RotationElement(n, -j*b)] = true
	}
	out := make([]uint64, 0, len(elems))
	for g := range elems {
		out = append(out, g)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
