package pir

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSHA256ShardingIsDeterministic(t *testing.T) {
	fn := SHA256Sharding{}
	key := []byte("keyword-42")
	first := fn.Shard(key, 10)
	for i := 0; i < 5; i++ {
		require.Equal(t, first, fn.Shard(key, 10))
	}
	require.GreaterOrEqual(t, first, 0)
	require.Less(t, first, 10)
}

func TestShardingResolveByCount(t *testing.T) {
	s := Sharding{Count: 6}
	n, err := s.Resolve(100)
	require.NoError(t, err)
	require.Equal(t, 6, n)
}

func TestShardingResolveByEntryCountPerShard(t *testing.T) {
	// spec.md §8: 100 rows, entryCountPerShard=15 -> floor(100/15) = 6 shards.
	s := Sharding{EntryCountPerShard: 15}
	n, err := s.Resolve(100)
	require.NoError(t, err)
	require.Equal(t, 6, n)
}

func TestShardingResolveRequiresOneField(t *testing.T) {
	s := Sharding{}
	_, err := s.Resolve(100)
	require.Error(t, err)
}

func TestAssignShardsPartitionsAllKeys(t *testing.T) {
	keys := make([][]byte, 100)
	for i := range keys {
		keys[i] = []byte(fmt.Sprintf("%d", i))
	}
	groups := AssignShards(SHA256Sharding{}, keys, 10)
	require.Len(t, groups, 10)
	total := 0
	seen := make(map[int]bool)
	for _, g := range groups {
		for _, idx := range g {
			require.False(t, seen[idx], "index %d assigned twice", idx)
			seen[idx] = true
			total++
		}
	}
	require.Equal(t, 100, total)
}
