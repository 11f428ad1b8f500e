package cuckoo

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func smallConfig() Config {
	return Config{
		HashFunctionCount:       2,
		BucketsPerTable:         32,
		MultipleTables:          false,
		MaxSerializedBucketSize: 64,
		MaxEvictions:            100,
	}
}

func TestInsertAndLookupRoundTrip(t *testing.T) {
	table := NewTable(smallConfig())
	for i := 0; i < 20; i++ {
		key := []byte(fmt.Sprintf("key-%02d", i))
		value := []byte(fmt.Sprintf("value-%02d", i))
		require.NoError(t, table.Insert(key, value))
	}
	for i := 0; i < 20; i++ {
		key := []byte(fmt.Sprintf("key-%02d", i))
		value, ok := table.Lookup(key)
		require.True(t, ok, "key %d should be found", i)
		require.Equal(t, []byte(fmt.Sprintf("value-%02d", i)), value)
	}
}

func TestInsertIsIdempotent(t *testing.T) {
	table := NewTable(smallConfig())
	require.NoError(t, table.Insert([]byte("k"), []byte("v1")))
	require.NoError(t, table.Insert([]byte("k"), []byte("v1")))
	value, ok := table.Lookup([]byte("k"))
	require.True(t, ok)
	require.Equal(t, []byte("v1"), value)
}

func TestFreezeProducesFixedSizeBuckets(t *testing.T) {
	cfg := smallConfig()
	table := NewTable(cfg)
	for i := 0; i < 10; i++ {
		require.NoError(t, table.Insert([]byte(fmt.Sprintf("k%d", i)), []byte(fmt.Sprintf("v%d", i))))
	}
	buckets, err := table.Freeze()
	require.NoError(t, err)
	require.Equal(t, table.BucketCount(), len(buckets))
	for _, b := range buckets {
		require.Len(t, b, cfg.MaxSerializedBucketSize)
	}
}

func TestFreezeThenDeserializeFindsValueByTag(t *testing.T) {
	cfg := smallConfig()
	table := NewTable(cfg)
	key := []byte("search-me")
	value := []byte("payload")
	require.NoError(t, table.Insert(key, value))

	buckets, err := table.Freeze()
	require.NoError(t, err)

	found := false
	for _, idx := range table.BucketIndices(key) {
		values, tags, err := DeserializeBucket(buckets[idx])
		require.NoError(t, err)
		target := KeywordTag(key)
		for i, tag := range tags {
			if tag == target {
				require.Equal(t, value, values[i])
				found = true
			}
		}
	}
	require.True(t, found, "expected to find %q via its bucket tag", key)
}

func TestExpansionGrowsTableWhenEvictionExhausted(t *testing.T) {
	cfg := Config{
		HashFunctionCount:       2,
		BucketsPerTable:         2,
		MaxSerializedBucketSize: 2 + TagSize + 4 + 4, // room for exactly one small entry
		MaxEvictions:            2,
		AllowExpansion:          &ExpansionPolicy{Factor: 2.0},
	}
	table := NewTable(cfg)
	for i := 0; i < 30; i++ {
		key := []byte(fmt.Sprintf("overflow-%d", i))
		require.NoError(t, table.Insert(key, []byte("abcd")))
	}
	require.Greater(t, table.BucketCount(), 2)
	for i := 0; i < 30; i++ {
		key := []byte(fmt.Sprintf("overflow-%d", i))
		_, ok := table.Lookup(key)
		require.True(t, ok, "key %d should survive expansion", i)
	}
}

func TestExpansionDisabledFailsInsteadOfGrowing(t *testing.T) {
	cfg := Config{
		HashFunctionCount:       2,
		BucketsPerTable:         2,
		MaxSerializedBucketSize: 2 + TagSize + 4 + 4,
		MaxEvictions:            2,
	}
	table := NewTable(cfg)
	var lastErr error
	for i := 0; i < 30; i++ {
		key := []byte(fmt.Sprintf("overflow-%d", i))
		if err := table.Insert(key, []byte("abcd")); err != nil {
			lastErr = err
			break
		}
	}
	require.Error(t, lastErr)
}
