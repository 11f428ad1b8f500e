package cuckoo

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/latticepir/bfvpir/bfverr"
)

// Config parameterizes table construction (spec.md §4.7).
type Config struct {
	HashFunctionCount       int
	BucketsPerTable         int
	MultipleTables          bool
	MaxSerializedBucketSize int
	MaxEvictions            int

	// AllowExpansion enables rebuilding with BucketsPerTable scaled by
	// Factor (rounded up to a multiple of the table count) when eviction
	// is exhausted; nil disables expansion.
	AllowExpansion *ExpansionPolicy
}

// ExpansionPolicy is spec.md §4.7's allowExpansion(factor, _).
type ExpansionPolicy struct {
	Factor float64
}

func (c Config) tableCount() int {
	if c.MultipleTables {
		return c.HashFunctionCount
	}
	return 1
}

// Table is a multi-hash cuckoo table mapping keywords to buckets.
type Table struct {
	cfg     Config
	tables  [][]Bucket // tables[t][bucket]
	entries int
}

// NewTable builds an empty table with cfg.BucketsPerTable buckets per
// sub-table (1 sub-table unless cfg.MultipleTables).
func NewTable(cfg Config) *Table {
	t := &Table{cfg: cfg}
	n := cfg.tableCount()
	t.tables = make([][]Bucket, n)
	for i := range t.tables {
		t.tables[i] = make([]Bucket, cfg.BucketsPerTable)
	}
	return t
}

// hashWindows derives cfg.HashFunctionCount bucket indices from 64-bit
// windows of SHA-256(key), each reduced mod BucketsPerTable. The first four
// windows are disjoint; from the fifth on, windows overlap earlier ones.
func (cfg Config) hashWindows(key []byte) []int {
	sum := sha256.Sum256(key)
	out := make([]int, cfg.HashFunctionCount)
	for i := 0; i < cfg.HashFunctionCount; i++ {
		off := (i * 8) % (len(sum) - 7)
		v := binary.BigEndian.Uint64(sum[off : off+8])
		out[i] = int(v % uint64(cfg.BucketsPerTable))
	}
	return out
}

// candidates returns the (subtable, bucketIndex) pairs key may occupy.
func (t *Table) candidates(key []byte) [][2]int {
	windows := t.cfg.hashWindows(key)
	out := make([][2]int, len(windows))
	for j, idx := range windows {
		sub := 0
		if t.cfg.MultipleTables {
			sub = j
		}
		out[j] = [2]int{sub, idx}
	}
	return out
}

func (t *Table) bucket(sub, idx int) *Bucket {
	return &t.tables[sub][idx]
}

type evicted struct {
	key, value []byte
}

// Insert places (key,value) per spec.md §4.7's insert algorithm, evicting
// and recursing up to cfg.MaxEvictions times, then expanding (if allowed)
// or failing with bfverr.ErrCuckooExhausted.
func (t *Table) Insert(key, value []byte) error {
	for _, c := range t.candidates(key) {
		if t.bucket(c[0], c[1]).Contains(key) {
			return nil
		}
	}
	return t.insertWithBudget(key, value, t.cfg.MaxEvictions)
}

func (t *Table) insertWithBudget(key, value []byte, remaining int) error {
	cands := t.candidates(key)
	for _, c := range cands {
		b := t.bucket(c[0], c[1])
		if b.Fits(t.cfg.MaxSerializedBucketSize, len(value)) {
			b.insert(key, value)
			t.entries++
			return nil
		}
	}
	if remaining <= 0 {
		return t.expandOrFail(key, value)
	}

	// among all (bucket,slot) whose eviction would let the bucket fit the
	// new value, pick one uniformly at random.
	type slot struct {
		sub, idx, pos int
	}
	var slots []slot
	for _, c := range cands {
		b := t.bucket(c[0], c[1])
		for pos, e := range b.entries {
			projected := b.serializedSize(-1) - (TagSize + 4 + len(e.value)) + (TagSize + 4 + len(value))
			if projected <= t.cfg.MaxSerializedBucketSize {
				slots = append(slots, slot{c[0], c[1], pos})
			}
		}
	}
	if len(slots) == 0 {
		return t.expandOrFail(key, value)
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(slots))))
	if err != nil {
		return fmt.Errorf("cuckoo.Table.Insert: %w", err)
	}
	chosen := slots[n.Int64()]
	b := t.bucket(chosen.sub, chosen.idx)
	old := b.evictRandom(chosen.pos)
	b.insert(key, value)
	return t.insertWithBudget(old.key, old.value, remaining-1)
}

func (t *Table) expandOrFail(key, value []byte) error {
	if t.cfg.AllowExpansion == nil {
		return fmt.Errorf("cuckoo.Table.Insert: %w", bfverr.ErrCuckooExhausted)
	}
	oldEntries := t.allEntries()
	tables := t.cfg.tableCount()
	newBuckets := int(float64(t.cfg.BucketsPerTable)*t.cfg.AllowExpansion.Factor + 0.999999)
	if rem := newBuckets % tables; rem != 0 {
		newBuckets += tables - rem
	}
	if newBuckets <= t.cfg.BucketsPerTable {
		newBuckets = t.cfg.BucketsPerTable + tables
	}
	t.cfg.BucketsPerTable = newBuckets
	t.tables = make([][]Bucket, tables)
	for i := range t.tables {
		t.tables[i] = make([]Bucket, newBuckets)
	}
	t.entries = 0
	for _, e := range oldEntries {
		if err := t.Insert(e.key, e.value); err != nil {
			return fmt.Errorf("cuckoo.Table.Insert: rebuilding after expansion: %w", err)
		}
	}
	return t.Insert(key, value)
}

func (t *Table) allEntries() []evicted {
	var out []evicted
	for _, sub := range t.tables {
		for _, b := range sub {
			for _, e := range b.entries {
				out = append(out, evicted{key: e.key, value: e.value})
			}
		}
	}
	return out
}

// Lookup scans the candidate buckets for key, confirming by full keyword
// comparison (spec.md §4.7). Client-side/testing use only.
func (t *Table) Lookup(key []byte) ([]byte, bool) {
	for _, c := range t.candidates(key) {
		if v, ok := t.bucket(c[0], c[1]).Lookup(key); ok {
			return v, true
		}
	}
	return nil, false
}

// Freeze serializes every bucket across every sub-table to a fixed size,
// returning them flattened in (subtable, bucketIndex) order, ready to be
// fed to index PIR as the database rows (spec.md §4.8 step 2-4).
func (t *Table) Freeze() ([][]byte, error) {
	out := make([][]byte, 0, t.cfg.tableCount()*t.cfg.BucketsPerTable)
	for _, sub := range t.tables {
		for i := range sub {
			raw, err := sub[i].Serialize(t.cfg.MaxSerializedBucketSize)
			if err != nil {
				return nil, fmt.Errorf("cuckoo.Table.Freeze: %w", err)
			}
			out = append(out, raw)
		}
	}
	return out, nil
}

// BucketIndices returns the flattened (subtable*BucketsPerTable + index)
// positions a keyword-PIR query for key must fetch (spec.md §4.8 "Query").
func (t *Table) BucketIndices(key []byte) []int {
	out := make([]int, 0, t.cfg.HashFunctionCount)
	for _, c := range t.candidates(key) {
		out = append(out, c[0]*t.cfg.BucketsPerTable+c[1])
	}
	return out
}

// BucketCount returns the total number of buckets across all sub-tables.
func (t *Table) BucketCount() int { return t.cfg.tableCount() * t.cfg.BucketsPerTable }
