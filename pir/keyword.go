package pir

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"io"

	"github.com/latticepir/bfvpir/bfverr"
	"github.com/latticepir/bfvpir/cuckoo"
	"github.com/latticepir/bfvpir/internal/logging"
	"golang.org/x/crypto/hkdf"
)

// KeywordDatabase is a cuckoo-table-backed keyword PIR database: its
// buckets are the rows of an index-PIR database (spec.md §4.8 "Processing").
type KeywordDatabase struct {
	Table   *cuckoo.Table
	Buckets [][]byte // frozen, fixed-size serialized buckets, index-PIR rows
}

// BuildKeywordDatabase runs spec.md §4.8's processing pipeline: build the
// cuckoo table from (key,value) rows, freeze it, and serialize every bucket.
func BuildKeywordDatabase(cfg cuckoo.Config, keys, values [][]byte) (*KeywordDatabase, error) {
	log := logging.Default()
	if len(keys) != len(values) {
		return nil, fmt.Errorf("pir.BuildKeywordDatabase: %w: keys/values length mismatch", bfverr.ErrValidation)
	}
	log.Info("building cuckoo table for %d rows (hashFunctionCount=%d, bucketsPerTable=%d)", len(keys), cfg.HashFunctionCount, cfg.BucketsPerTable)
	table := cuckoo.NewTable(cfg)
	startingBuckets := table.BucketCount()
	for i := range keys {
		if err := table.Insert(keys[i], values[i]); err != nil {
			return nil, fmt.Errorf("pir.BuildKeywordDatabase: %w", err)
		}
	}
	if table.BucketCount() != startingBuckets {
		log.Warn("table expanded from %d to %d buckets during insertion", startingBuckets, table.BucketCount())
	}
	buckets, err := table.Freeze()
	if err != nil {
		return nil, fmt.Errorf("pir.BuildKeywordDatabase: %w", err)
	}
	log.Info("froze %d buckets of %d bytes each for the index-PIR database", len(buckets), cfg.MaxSerializedBucketSize)
	return &KeywordDatabase{Table: table, Buckets: buckets}, nil
}

// KeywordQueryIndices returns the hashFunctionCount bucket indices a
// keyword-PIR client must issue index-PIR queries for (spec.md §4.8
// "Query"); one index-PIR query is generated per returned index by the
// caller (via pir.GenerateQuery), batching into one ciphertext when the
// combined selection vectors fit in N coefficients is left to the caller.
func (d *KeywordDatabase) KeywordQueryIndices(key []byte) []int {
	return d.Table.BucketIndices(key)
}

// ResolveBucket deserializes a keyword-PIR response bucket and searches it
// for key, returning the value if present (client-side, after decrypting
// the index-PIR responses for d.KeywordQueryIndices(key)).
func ResolveBucket(raw []byte, key []byte) ([]byte, bool) {
	values, tags, err := cuckoo.DeserializeBucket(raw)
	if err != nil {
		return nil, false
	}
	target := cuckoo.KeywordTag(key)
	for i, tag := range tags {
		if tag == target {
			return values[i], true
		}
	}
	return nil, false
}

// OPRFConfigID names the fixed algorithm suite for symmetric PIR (spec.md
// §4.8 "Symmetric PIR"): P-384 OPRF, HKDF-derived AES-192-GCM with a 96-bit
// nonce and 128-bit tag.
const OPRFConfigID = "OPRF_P384_AES_GCM_192_NONCE_96_TAG_128"

// OPRFServer holds the server's OPRF secret, a P-384 scalar.
type OPRFServer struct {
	sk *ecdh.PrivateKey
}

// NewOPRFServer generates a fresh server-side OPRF secret.
func NewOPRFServer() (*OPRFServer, error) {
	sk, err := ecdh.P384().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("pir.NewOPRFServer: %w", err)
	}
	return &OPRFServer{sk: sk}, nil
}

// keywordToPoint maps an arbitrary keyword to a P-384 curve point by hashing
// it to a scalar and multiplying the generator (a simplified, non-standard
// hash-to-curve sufficient for this OPRF's purpose of binding a keyword to a
// point the server's ECDH scalar can be applied to).
func keywordToPoint(curve ecdh.Curve, key []byte) (*ecdh.PublicKey, error) {
	h := sha512.Sum384(key)
	scalar, err := curve.NewPrivateKey(h[:])
	if err != nil {
		// extremely unlikely (scalar out of range): perturb and retry once.
		h[0] ^= 0xFF
		scalar, err = curve.NewPrivateKey(h[:])
		if err != nil {
			return nil, err
		}
	}
	return scalar.PublicKey(), nil
}

// Evaluate computes OPRF_sk(key): the server's ECDH scalar applied to the
// keyword's point.
func (s *OPRFServer) Evaluate(key []byte) ([]byte, error) {
	pt, err := keywordToPoint(ecdh.P384(), key)
	if err != nil {
		return nil, fmt.Errorf("pir.OPRFServer.Evaluate: %w", err)
	}
	shared, err := s.sk.ECDH(pt)
	if err != nil {
		return nil, fmt.Errorf("pir.OPRFServer.Evaluate: %w", err)
	}
	return shared, nil
}

// oprfKeyMaterial derives the 16-byte keyword tag, 24-byte AES-192 key, and
// 12-byte GCM nonce from an OPRF output via HKDF-SHA256 (spec.md §4.8;
// domain-stack choice: golang.org/x/crypto/hkdf rather than raw byte
// slicing of the OPRF point).
func oprfKeyMaterial(oprfOutput []byte) (tag [16]byte, aesKey [24]byte, nonce [12]byte, err error) {
	r := hkdf.New(sha256.New, oprfOutput, nil, []byte(OPRFConfigID))
	if _, err = io.ReadFull(r, tag[:]); err != nil {
		return
	}
	if _, err = io.ReadFull(r, aesKey[:]); err != nil {
		return
	}
	if _, err = io.ReadFull(r, nonce[:]); err != nil {
		return
	}
	return
}

// TransformRow replaces a (key,value) row per spec.md §4.8's symmetric-PIR
// step: key becomes the OPRF-derived tag, value becomes its AES-GCM
// ciphertext.
func (s *OPRFServer) TransformRow(key, value []byte) (tag []byte, ciphertext []byte, err error) {
	out, err := s.Evaluate(key)
	if err != nil {
		return nil, nil, fmt.Errorf("pir.OPRFServer.TransformRow: %w", err)
	}
	t, aesKey, nonce, err := oprfKeyMaterial(out)
	if err != nil {
		return nil, nil, fmt.Errorf("pir.OPRFServer.TransformRow: %w", err)
	}
	block, err := aes.NewCipher(aesKey[:])
	if err != nil {
		return nil, nil, fmt.Errorf("pir.OPRFServer.TransformRow: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("pir.OPRFServer.TransformRow: %w", err)
	}
	ct := gcm.Seal(nil, nonce[:], value, nil)
	return t[:], ct, nil
}

// ClientDecrypt recovers the plaintext value given the client's own OPRF
// output for its keyword (learned via the OPRF exchange) and the retrieved
// AES-GCM ciphertext.
func ClientDecrypt(oprfOutput []byte, ciphertext []byte) ([]byte, error) {
	_, aesKey, nonce, err := oprfKeyMaterial(oprfOutput)
	if err != nil {
		return nil, fmt.Errorf("pir.ClientDecrypt: %w", err)
	}
	block, err := aes.NewCipher(aesKey[:])
	if err != nil {
		return nil, fmt.Errorf("pir.ClientDecrypt: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("pir.ClientDecrypt: %w", err)
	}
	pt, err := gcm.Open(nil, nonce[:], ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("pir.ClientDecrypt: %w", err)
	}
	return pt, nil
}
