package pir

import (
	"fmt"
	"testing"

	"github.com/latticepir/bfvpir/bfv"
	"github.com/latticepir/bfvpir/cuckoo"
	"github.com/stretchr/testify/require"
)

func keywordDBConfig() cuckoo.Config {
	return cuckoo.Config{
		HashFunctionCount:       2,
		BucketsPerTable:         16,
		MaxSerializedBucketSize: 48,
		MaxEvictions:            50,
		AllowExpansion:          &cuckoo.ExpansionPolicy{Factor: 2.0},
	}
}

func TestBuildKeywordDatabaseAndResolve(t *testing.T) {
	keys := make([][]byte, 10)
	values := make([][]byte, 10)
	for i := range keys {
		keys[i] = []byte(fmt.Sprintf("kw-%d", i))
		values[i] = []byte(fmt.Sprintf("val-%d", i))
	}
	db, err := BuildKeywordDatabase(keywordDBConfig(), keys, values)
	require.NoError(t, err)
	require.Equal(t, len(db.Table.BucketIndices(keys[0])), len(db.KeywordQueryIndices(keys[0])))

	for i, k := range keys {
		found := false
		for _, idx := range db.KeywordQueryIndices(k) {
			value, ok := ResolveBucket(db.Buckets[idx], k)
			if ok {
				require.Equal(t, values[i], value)
				found = true
			}
		}
		require.True(t, found, "keyword %q not resolved from any candidate bucket", k)
	}
}

// TestKeywordPIRRetrievesValueThroughEncryptedProtocol runs spec.md §8's
// keyword-PIR walkthrough through the actual encrypted pipeline: the frozen
// cuckoo buckets are loaded as an index-PIR database, a query is generated
// and expanded homomorphically for each of the keyword's candidate bucket
// indices, and the decrypted response bucket is resolved for the keyword
// client-side, mirroring pir/index_test.go's pattern one layer up.
func TestKeywordPIRRetrievesValueThroughEncryptedProtocol(t *testing.T) {
	cfg := keywordDBConfig()
	keys := [][]byte{[]byte("alpha"), []byte("bravo"), []byte("charlie")}
	values := [][]byte{[]byte("1-value"), []byte("2-value"), []byte("3-value")}
	kwDB, err := BuildKeywordDatabase(cfg, keys, values)
	require.NoError(t, err)

	params, err := NewServerParams(len(kwDB.Buckets), cfg.MaxSerializedBucketSize, 2, KeyCompressionNone)
	require.NoError(t, err)

	bfvParams, err := bfv.NewParameters(bfv.Literal{LogN: 6, T: 257, QBits: []int{28, 28, 28}})
	require.NoError(t, err)
	ctx, err := bfv.NewContext(bfvParams)
	require.NoError(t, err)
	sk, err := bfv.NewSecretKey(ctx)
	require.NoError(t, err)
	kg := bfv.NewKeyGenerator(ctx, sk)
	relin, err := kg.GenRelinKey()
	require.NoError(t, err)

	ek := &bfv.EvaluationKey{Galois: map[uint64]*bfv.KeySwitchKey{}, Relin: relin}
	for _, g := range GaloisElementsForExpansion(ctx.Params.N(), params.dimsSum(), KeyCompressionNone) {
		ksk, err := kg.GenGaloisKey(g)
		require.NoError(t, err)
		ek.Galois[g] = ksk
	}

	enc := bfv.NewEncoder(ctx)
	ecr := bfv.NewEncryptor(ctx, sk)
	dec := bfv.NewDecryptor(ctx, sk)
	ev := bfv.NewEvaluator(ctx, ek)

	entries := make([][]uint64, len(kwDB.Buckets))
	for i, raw := range kwDB.Buckets {
		vals := make([]uint64, len(raw))
		for j, b := range raw {
			vals[j] = uint64(b)
		}
		entries[i] = vals
	}
	indexDB, err := NewDatabase(params, enc, entries)
	require.NoError(t, err)

	target, want := keys[1], values[1]
	found := false
	for _, idx := range kwDB.KeywordQueryIndices(target) {
		q, err := GenerateQuery(ctx, enc, ecr, params, idx)
		require.NoError(t, err)

		leaves, err := Expand(ev, ctx, q, params.dimsSum())
		require.NoError(t, err)

		result, err := DotProduct(ev, params, indexDB, leaves)
		require.NoError(t, err)
		for result.Level() > 0 {
			result, err = ev.ModSwitchDown(result)
			require.NoError(t, err)
		}

		pt, err := dec.Decrypt(result)
		require.NoError(t, err)
		coeffs := enc.DecodeCoeff(pt)[:cfg.MaxSerializedBucketSize]
		raw := make([]byte, len(coeffs))
		for j, c := range coeffs {
			raw[j] = byte(c)
		}

		if value, ok := ResolveBucket(raw, target); ok {
			require.Equal(t, want, value)
			found = true
		}
	}
	require.True(t, found, "keyword %q not resolved through the encrypted index-PIR pipeline", target)
}

func TestResolveBucketMissForAbsentKeyword(t *testing.T) {
	keys := [][]byte{[]byte("present")}
	values := [][]byte{[]byte("value")}
	db, err := BuildKeywordDatabase(keywordDBConfig(), keys, values)
	require.NoError(t, err)

	absent := []byte("absent")
	found := false
	for _, idx := range db.KeywordQueryIndices(absent) {
		if _, ok := ResolveBucket(db.Buckets[idx], absent); ok {
			found = true
		}
	}
	require.False(t, found)
}

func TestBuildKeywordDatabaseRejectsLengthMismatch(t *testing.T) {
	_, err := BuildKeywordDatabase(keywordDBConfig(), [][]byte{[]byte("a")}, nil)
	require.Error(t, err)
}

func TestOPRFTransformAndClientDecryptRoundTrip(t *testing.T) {
	server, err := NewOPRFServer()
	require.NoError(t, err)

	key := []byte("lookup-keyword")
	value := []byte("the hidden value")

	_, ciphertext, err := server.TransformRow(key, value)
	require.NoError(t, err)

	// the client learns OPRF_sk(key) through the (unmodeled here) blinded
	// exchange; simulate that by calling Evaluate directly.
	oprfOutput, err := server.Evaluate(key)
	require.NoError(t, err)

	got, err := ClientDecrypt(oprfOutput, ciphertext)
	require.NoError(t, err)
	require.Equal(t, value, got)
}

func TestOPRFEvaluateIsDeterministic(t *testing.T) {
	server, err := NewOPRFServer()
	require.NoError(t, err)
	key := []byte("stable-keyword")
	a, err := server.Evaluate(key)
	require.NoError(t, err)
	b, err := server.Evaluate(key)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestClientDecryptFailsWithWrongOPRFOutput(t *testing.T) {
	server, err := NewOPRFServer()
	require.NoError(t, err)
	_, ciphertext, err := server.TransformRow([]byte("k1"), []byte("secret"))
	require.NoError(t, err)

	wrongOutput, err := server.Evaluate([]byte("k2"))
	require.NoError(t, err)

	_, err = ClientDecrypt(wrongOutput, ciphertext)
	require.Error(t, err)
}
