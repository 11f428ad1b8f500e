// Package cuckoo implements the multi-hash cuckoo table used to build a
// keyword-addressable PIR database out of an index-PIR database (spec.md
// §4.7): keywords are mapped to one of hashFunctionCount candidate buckets,
// and buckets are serialized to a fixed size suitable for packing into
// plaintext entries.
package cuckoo

import (
	"encoding/binary"
	"fmt"

	"github.com/latticepir/bfvpir/bfverr"
	"github.com/zeebo/blake3"
)

// TagSize is the length, in bytes, of the keyword-hash tag stored per entry
// (enough to make false-positive tag collisions negligible while keeping
// bucket overhead small).
const TagSize = 8

// Tag is the fixed-size keyword-hash fingerprint stored per bucket entry.
type Tag [TagSize]byte

// entry is one occupied slot of a bucket.
type entry struct {
	key   []byte // full keyword, kept client-side only for Lookup/eviction
	tag   Tag
	value []byte
}

// Bucket holds up to its capacity of (tag, value) entries, serialized with a
// fixed header plus concatenated values.
type Bucket struct {
	entries []entry
}

// KeywordTag computes the fixed-size fingerprint used both to prefilter
// bucket slots and to match a keyword-PIR response bucket against a query
// keyword client-side (spec.md §4.7, §4.8).
func KeywordTag(k []byte) Tag {
	sum := blake3.Sum256(k)
	var tag Tag
	copy(tag[:], sum[:TagSize])
	return tag
}

func keywordTag(k []byte) Tag { return KeywordTag(k) }

// serializedSize returns the byte length of the bucket if it additionally
// held an entry with the given value length (or the bucket's current size
// if extra < 0).
func (b *Bucket) serializedSize(extraValueLen int) int {
	// header: 2-byte entry count, then per entry: tag(TagSize) + 4-byte value length
	size := 2
	for _, e := range b.entries {
		size += TagSize + 4 + len(e.value)
	}
	if extraValueLen >= 0 {
		size += TagSize + 4 + extraValueLen
	}
	return size
}

// Fits reports whether a new entry of the given value length can be added
// without exceeding maxSize.
func (b *Bucket) Fits(maxSize, valueLen int) bool {
	return b.serializedSize(valueLen) <= maxSize
}

// Contains reports whether the bucket already holds an entry for key.
func (b *Bucket) Contains(key []byte) bool {
	tag := keywordTag(key)
	for _, e := range b.entries {
		if e.tag == tag && string(e.key) == string(key) {
			return true
		}
	}
	return false
}

// insert appends (key,value) to the bucket unconditionally; callers must
// check Fits first.
func (b *Bucket) insert(key, value []byte) {
	b.entries = append(b.entries, entry{key: append([]byte(nil), key...), tag: keywordTag(key), value: append([]byte(nil), value...)})
}

// evictRandom removes and returns the slot at index i (caller picks i).
func (b *Bucket) evictRandom(i int) entry {
	e := b.entries[i]
	b.entries = append(b.entries[:i], b.entries[i+1:]...)
	return e
}

// Lookup scans the bucket for key and returns its value if present.
func (b *Bucket) Lookup(key []byte) ([]byte, bool) {
	tag := keywordTag(key)
	for _, e := range b.entries {
		if e.tag != tag {
			continue
		}
		if string(e.key) == string(key) {
			return append([]byte(nil), e.value...), true
		}
	}
	return nil, false
}

// Serialize renders the bucket into exactly size bytes, zero-padding the
// remainder (spec.md §4.7 "Bucket serialization").
func (b *Bucket) Serialize(size int) ([]byte, error) {
	need := b.serializedSize(-1)
	if need > size {
		return nil, fmt.Errorf("cuckoo.Bucket.Serialize: %w: bucket needs %d bytes, budget is %d", bfverr.ErrValidation, need, size)
	}
	out := make([]byte, size)
	binary.LittleEndian.PutUint16(out[0:2], uint16(len(b.entries)))
	off := 2
	for _, e := range b.entries {
		copy(out[off:off+TagSize], e.tag[:])
		off += TagSize
		binary.LittleEndian.PutUint32(out[off:off+4], uint32(len(e.value)))
		off += 4
	}
	for _, e := range b.entries {
		copy(out[off:off+len(e.value)], e.value)
		off += len(e.value)
	}
	return out, nil
}

// DeserializeBucket parses bytes produced by Serialize. Entries lose their
// original keyword (only the tag survives), so DeserializeBucket is for the
// PIR response path (tag-prefiltered, then value returned by position), not
// for reconstructing a Bucket usable with Contains/Lookup-by-key.
func DeserializeBucket(raw []byte) ([][]byte, []Tag, error) {
	if len(raw) < 2 {
		return nil, nil, fmt.Errorf("cuckoo.DeserializeBucket: %w: truncated header", bfverr.ErrValidation)
	}
	count := int(binary.LittleEndian.Uint16(raw[0:2]))
	off := 2
	type hdrEntry struct {
		tag    Tag
		length int
	}
	hdrs := make([]hdrEntry, count)
	for i := 0; i < count; i++ {
		if off+TagSize+4 > len(raw) {
			return nil, nil, fmt.Errorf("cuckoo.DeserializeBucket: %w: truncated entry header", bfverr.ErrValidation)
		}
		var h hdrEntry
		copy(h.tag[:], raw[off:off+TagSize])
		off += TagSize
		h.length = int(binary.LittleEndian.Uint32(raw[off : off+4]))
		off += 4
		hdrs[i] = h
	}
	values := make([][]byte, count)
	tags := make([]Tag, count)
	for i, h := range hdrs {
		if off+h.length > len(raw) {
			return nil, nil, fmt.Errorf("cuckoo.DeserializeBucket: %w: truncated value", bfverr.ErrValidation)
		}
		values[i] = append([]byte(nil), raw[off:off+h.length]...)
		tags[i] = h.tag
		off += h.length
	}
	return values, tags, nil
}
