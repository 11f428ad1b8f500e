package pir

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/latticepir/bfvpir/bfverr"
)

// ShardingFunction assigns a keyword to a shard index (spec.md §4.9).
type ShardingFunction interface {
	Shard(key []byte, shardCount int) int
}

// SHA256Sharding is shard(k) = truncate64(SHA256(k)) mod shardCount.
type SHA256Sharding struct{}

func truncate64(key []byte) uint64 {
	sum := sha256.Sum256(key)
	return binary.BigEndian.Uint64(sum[:8])
}

func (SHA256Sharding) Shard(key []byte, shardCount int) int {
	return int(truncate64(key) % uint64(shardCount))
}

// DoubleModSharding is (truncate64(SHA256(k)) mod otherShardCount) mod
// shardCount, useful when one usecase logically sub-shards another.
type DoubleModSharding struct {
	OtherShardCount int
}

func (d DoubleModSharding) Shard(key []byte, shardCount int) int {
	outer := int(truncate64(key) % uint64(d.OtherShardCount))
	return outer % shardCount
}

// Sharding resolves a total row count into a concrete shard count
// (spec.md §4.9).
type Sharding struct {
	// Exactly one of Count or EntryCountPerShard should be set (Count > 0
	// takes precedence if both are).
	Count              int
	EntryCountPerShard int
}

// Resolve returns the shard count for totalRows.
func (s Sharding) Resolve(totalRows int) (int, error) {
	if s.Count > 0 {
		return s.Count, nil
	}
	if s.EntryCountPerShard > 0 {
		n := totalRows / s.EntryCountPerShard
		if n < 1 {
			n = 1
		}
		return n, nil
	}
	return 0, fmt.Errorf("pir.Sharding.Resolve: %w: neither Count nor EntryCountPerShard is set", bfverr.ErrValidation)
}

// AssignShards partitions rows (keyed by their keyword) across shardCount
// shards using fn.
func AssignShards(fn ShardingFunction, keys [][]byte, shardCount int) [][]int {
	out := make([][]int, shardCount)
	for i, k := range keys {
		s := fn.Shard(k, shardCount)
		out[s] = append(out[s], i)
	}
	return out
}
