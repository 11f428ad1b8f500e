package bfv

import (
	"encoding/binary"
	"fmt"

	"github.com/latticepir/bfvpir/bfverr"
	"github.com/latticepir/bfvpir/ring"
	"github.com/zeebo/blake3"
)

// bitLen returns ceil(log2(q)).
func bitLen(q uint64) int {
	b := 0
	for (uint64(1) << uint(b)) < q {
		b++
	}
	return b
}

// packBits writes values (each < 1<<width) into out as width-bit fields,
// MSB-first within each field and little-endian across fields, per spec.md
// §4.4's coefficient-packing rule.
func packBits(values []uint64, width int) []byte {
	totalBits := len(values) * width
	out := make([]byte, (totalBits+7)/8)
	bitPos := 0
	for _, v := range values {
		for b := width - 1; b >= 0; b-- {
			if (v>>uint(b))&1 == 1 {
				out[bitPos/8] |= 1 << uint(bitPos%8)
			}
			bitPos++
		}
	}
	return out
}

func unpackBits(data []byte, count, width int) []uint64 {
	out := make([]uint64, count)
	bitPos := 0
	for i := 0; i < count; i++ {
		var v uint64
		for b := width - 1; b >= 0; b-- {
			bit := uint64(0)
			if bitPos/8 < len(data) && (data[bitPos/8]>>uint(bitPos%8))&1 == 1 {
				bit = 1
			}
			v |= bit << uint(b)
			bitPos++
		}
		out[i] = v
	}
	return out
}

// marshalPoly serializes a Coeff-form polynomial's limbs, each packed at
// ceil(log2(qi)) bits per coefficient.
func marshalPoly(p *ring.Poly, moduli []ring.Modulus) ([]byte, error) {
	if p.Format != ring.Coeff {
		return nil, fmt.Errorf("bfv.marshalPoly: %w: polynomial must be in Coeff form", bfverr.ErrFormatMismatch)
	}
	var out []byte
	for i, limb := range p.Coeffs {
		width := bitLen(moduli[i].Q)
		out = append(out, packBits(limb, width)...)
	}
	return out, nil
}

func unmarshalPoly(data []byte, n int, moduli []ring.Modulus) (*ring.Poly, int, error) {
	p := ring.NewPoly(n, len(moduli)-1)
	off := 0
	for i := range moduli {
		width := bitLen(moduli[i].Q)
		byteLen := (n*width + 7) / 8
		if off+byteLen > len(data) {
			return nil, 0, fmt.Errorf("bfv.unmarshalPoly: %w: truncated limb", bfverr.ErrValidation)
		}
		p.Coeffs[i] = unpackBits(data[off:off+byteLen], n, width)
		off += byteLen
	}
	return p, off, nil
}

// SeededCiphertext is the wire form of a never-mutated fresh ciphertext:
// poly0's packed bytes plus the 64-byte seed that regenerates poly1
// (spec.md §4.4 layout 1).
type SeededCiphertext struct {
	Poly0 []byte
	Seed  [ring.SeedSize]byte
}

// MarshalSeeded encodes ct as the Seeded wire layout. Returns
// bfverr.ErrValidation if ct has been mutated since encryption.
func MarshalSeeded(ctx *Context, ct *Ciphertext) (*SeededCiphertext, error) {
	if ct.Seed == nil || ct.State != StateFresh {
		return nil, fmt.Errorf("bfv.MarshalSeeded: %w: ciphertext has been mutated since encryption", bfverr.ErrValidation)
	}
	moduli := ctx.RQ.AtLevel(ct.Level()).Moduli
	b0 := ct.Polys[0]
	if b0.Format == ring.Eval {
		var err error
		b0, err = ctx.RQ.AtLevel(ct.Level()).InvNTTNew(b0)
		if err != nil {
			return nil, fmt.Errorf("bfv.MarshalSeeded: %w", err)
		}
	}
	raw, err := marshalPoly(b0, moduli)
	if err != nil {
		return nil, fmt.Errorf("bfv.MarshalSeeded: %w", err)
	}
	return &SeededCiphertext{Poly0: raw, Seed: *ct.Seed}, nil
}

// UnmarshalSeeded reconstructs the ciphertext, regenerating poly1 from the
// seed via the deterministic uniform sampler.
func UnmarshalSeeded(ctx *Context, sc *SeededCiphertext, level int) (*Ciphertext, error) {
	rq := ctx.RQ.AtLevel(level)
	b0, _, err := unmarshalPoly(sc.Poly0, int(rq.N), rq.Moduli)
	if err != nil {
		return nil, fmt.Errorf("bfv.UnmarshalSeeded: %w", err)
	}
	a := rq.NewPoly()
	rq.SampleUniformPoly(sc.Seed, a)
	seedCopy := sc.Seed
	return &Ciphertext{Polys: []*ring.Poly{b0, a}, CorrectionFactor: 1, Seed: &seedCopy, State: StateFresh}, nil
}

// FullCiphertext is the wire form of any ciphertext (spec.md §4.4 layout 2):
// every polynomial, each limb's packed bytes after discarding SkipLSBs[i]
// low bits, plus the correction factor.
type FullCiphertext struct {
	Polys            [][]byte
	SkipLSBs         []int // per polynomial, low bits discarded before packing
	CorrectionFactor uint64
	Level            int
	Degree           int
}

// MarshalFull encodes ct with skipLSBs low bits discarded from every
// coefficient of polynomial i before packing (0 for lossless serialization).
func MarshalFull(ctx *Context, ct *Ciphertext, skipLSBs []int) (*FullCiphertext, error) {
	if len(skipLSBs) != len(ct.Polys) {
		return nil, fmt.Errorf("bfv.MarshalFull: %w: skipLSBs must have one entry per polynomial", bfverr.ErrValidation)
	}
	rq := ctx.RQ.AtLevel(ct.Level())
	out := &FullCiphertext{
		Polys:            make([][]byte, len(ct.Polys)),
		SkipLSBs:         append([]int(nil), skipLSBs...),
		CorrectionFactor: ct.CorrectionFactor,
		Level:            ct.Level(),
		Degree:           ct.Degree(),
	}
	for i, p := range ct.Polys {
		coeff := p
		if p.Format == ring.Eval {
			var err error
			coeff, err = rq.InvNTTNew(p)
			if err != nil {
				return nil, fmt.Errorf("bfv.MarshalFull: %w", err)
			}
		}
		shifted := coeff
		if skipLSBs[i] > 0 {
			shifted = coeff.CopyNew()
			for limb, m := range rq.Moduli {
				for j, v := range shifted.Coeffs[limb] {
					shifted.Coeffs[limb][j] = v >> uint(skipLSBs[i])
					_ = m
				}
			}
		}
		raw, err := marshalShifted(shifted, rq.Moduli, skipLSBs[i])
		if err != nil {
			return nil, fmt.Errorf("bfv.MarshalFull: %w", err)
		}
		out.Polys[i] = raw
	}
	return out, nil
}

func marshalShifted(p *ring.Poly, moduli []ring.Modulus, skip int) ([]byte, error) {
	var out []byte
	for i, limb := range p.Coeffs {
		width := bitLen(moduli[i].Q) - skip
		if width < 1 {
			width = 1
		}
		out = append(out, packBits(limb, width)...)
	}
	return out, nil
}

// UnmarshalFull reconstructs a (lossy, if skipLSBs>0) ciphertext.
func UnmarshalFull(ctx *Context, fc *FullCiphertext) (*Ciphertext, error) {
	rq := ctx.RQ.AtLevel(fc.Level)
	polys := make([]*ring.Poly, len(fc.Polys))
	for i, raw := range fc.Polys {
		skip := fc.SkipLSBs[i]
		p := ring.NewPoly(int(rq.N), fc.Level)
		off := 0
		for limb := range rq.Moduli {
			width := bitLen(rq.Moduli[limb].Q) - skip
			if width < 1 {
				width = 1
			}
			byteLen := (int(rq.N)*width + 7) / 8
			if off+byteLen > len(raw) {
				return nil, fmt.Errorf("bfv.UnmarshalFull: %w: truncated polynomial", bfverr.ErrValidation)
			}
			vals := unpackBits(raw[off:off+byteLen], int(rq.N), width)
			for j, v := range vals {
				p.Coeffs[limb][j] = v << uint(skip)
			}
			off += byteLen
		}
		polys[i] = p
	}
	state := StateMutated
	if fc.Degree == 2 {
		state = StateMutated
	}
	return &Ciphertext{Polys: polys, CorrectionFactor: fc.CorrectionFactor, State: state}, nil
}

// MarshalForDecryption serializes ct for a caller who commits that decryption
// is the only remaining operation: low bits are discarded aggressively, down
// to the noise budget margin, following the Costache-Laine-Player rounding
// analysis referenced by spec.md §4.4 layout 3. coeffIndices, if non-nil,
// restricts serialization to those coefficient positions (coefficient
// encoding only) and zeroes the rest.
func MarshalForDecryption(ctx *Context, sk *SecretKey, ct *Ciphertext, coeffIndices []int) (*FullCiphertext, error) {
	budget, err := NoiseBudget(ctx, sk, ct)
	if err != nil {
		return nil, fmt.Errorf("bfv.MarshalForDecryption: %w", err)
	}
	// keep a 2-bit margin above the noise floor; never discard more than
	// half of each modulus's bits.
	margin := 2.0
	skip := make([]int, len(ct.Polys))
	rq := ctx.RQ.AtLevel(ct.Level())
	for i := range ct.Polys {
		maxWidth := bitLen(rq.Moduli[0].Q)
		s := int(budget - margin)
		if s < 0 {
			s = 0
		}
		if s > maxWidth/2 {
			s = maxWidth / 2
		}
		skip[i] = s
	}

	ctToSerialize := ct
	if coeffIndices != nil {
		ctToSerialize = ct.CopyNew()
		keep := make(map[int]bool, len(coeffIndices))
		for _, idx := range coeffIndices {
			keep[idx] = true
		}
		for _, p := range ctToSerialize.Polys {
			if p.Format == ring.Eval {
				if err := rq.InvNTT(p); err != nil {
					return nil, fmt.Errorf("bfv.MarshalForDecryption: %w", err)
				}
			}
			for limb := range p.Coeffs {
				for j := range p.Coeffs[limb] {
					if !keep[j] {
						p.Coeffs[limb][j] = 0
					}
				}
			}
		}
	}
	return MarshalFull(ctx, ctToSerialize, skip)
}

// EvaluationKeyBytes is the wire form of one KeySwitchKey: only the B
// polynomial of each row travels on the wire (A is regenerated from its
// seed), per spec.md §4.4 "Evaluation key on the wire".
type EvaluationKeyBytes struct {
	Rows [][]byte
	Seed [][ring.SeedSize]byte
}

// MarshalKeySwitchKey encodes ksk for transmission.
func MarshalKeySwitchKey(ctx *Context, ksk *KeySwitchKey) (*EvaluationKeyBytes, error) {
	out := &EvaluationKeyBytes{Rows: make([][]byte, len(ksk.Rows)), Seed: make([][ring.SeedSize]byte, len(ksk.Rows))}
	for i, row := range ksk.Rows {
		level := row.B.Level()
		rq := ctx.RQ.AtLevel(level)
		b := row.B
		if b.Format == ring.Eval {
			var err error
			b, err = rq.InvNTTNew(b)
			if err != nil {
				return nil, fmt.Errorf("bfv.MarshalKeySwitchKey: %w", err)
			}
		}
		raw, err := marshalPoly(b, rq.Moduli)
		if err != nil {
			return nil, fmt.Errorf("bfv.MarshalKeySwitchKey: %w", err)
		}
		out.Rows[i] = raw
		out.Seed[i] = row.Seed
	}
	return out, nil
}

// UnmarshalKeySwitchKey reconstructs a KeySwitchKey, regenerating each row's
// A polynomial from its stored seed.
func UnmarshalKeySwitchKey(ctx *Context, ekb *EvaluationKeyBytes) (*KeySwitchKey, error) {
	level := ctx.Params.MaxLevel()
	rq := ctx.RQ.AtLevel(level)
	rows := make([]KeySwitchRow, len(ekb.Rows))
	for i, raw := range ekb.Rows {
		b, _, err := unmarshalPoly(raw, int(rq.N), rq.Moduli)
		if err != nil {
			return nil, fmt.Errorf("bfv.UnmarshalKeySwitchKey: %w", err)
		}
		if err := rq.NTT(b); err != nil {
			return nil, fmt.Errorf("bfv.UnmarshalKeySwitchKey: %w", err)
		}
		a := rq.NewPoly()
		rq.SampleUniformPoly(ekb.Seed[i], a)
		if err := rq.NTT(a); err != nil {
			return nil, fmt.Errorf("bfv.UnmarshalKeySwitchKey: %w", err)
		}
		rows[i] = KeySwitchRow{B: b, A: a, Seed: ekb.Seed[i]}
	}
	return &KeySwitchKey{Rows: rows}, nil
}

// ProcessedDatabase is the on-disk record of a server's preprocessed
// index-PIR database: the serialized plaintext rows plus a fast integrity
// checksum (spec.md §6 "Processed-database file").
type ProcessedDatabase struct {
	Rows     [][]byte
	checksum [32]byte
}

// NewProcessedDatabase builds a ProcessedDatabase and computes its checksum.
func NewProcessedDatabase(rows [][]byte) *ProcessedDatabase {
	pd := &ProcessedDatabase{Rows: rows}
	pd.checksum = pd.computeChecksum()
	return pd
}

func (pd *ProcessedDatabase) computeChecksum() [32]byte {
	h := blake3.New()
	var lenBuf [8]byte
	for _, row := range pd.Rows {
		binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(row)))
		h.Write(lenBuf[:])
		h.Write(row)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Checksum returns the blake3 digest over the length-prefixed row bytes,
// used to detect a corrupted or truncated processed-database file.
func (pd *ProcessedDatabase) Checksum() [32]byte { return pd.checksum }

// Verify recomputes the checksum and compares it against the stored one.
func (pd *ProcessedDatabase) Verify() bool {
	return pd.computeChecksum() == pd.checksum
}
