package bfv

import (
	"testing"

	"github.com/latticepir/bfvpir/ring"
	"github.com/stretchr/testify/require"
)

func TestNextPow2(t *testing.T) {
	cases := map[int]int{0: 1, 1: 1, 2: 2, 3: 4, 4: 4, 5: 8, 1023: 1024, 1024: 1024}
	for in, want := range cases {
		require.Equal(t, want, nextPow2(in), "nextPow2(%d)", in)
	}
}

func TestRequiredGaloisElementsCountMatchesBabyStepGiantStep(t *testing.T) {
	// columnCount=16 -> b=ceil(sqrt(16))=4, g=ceil(16/4)=4: elements are
	// {-1,-2,-3} (b-1 baby steps) union {-4,-8,-12} (g-1 giant steps) = 6
	// distinct rotation amounts (no overlap for this column count).
	elems := RequiredGaloisElements(1024, 8, 16, 1)
	require.Len(t, elems, 6)
}

func TestRequiredGaloisElementsEmptyForTrivialColumn(t *testing.T) {
	elems := RequiredGaloisElements(1024, 8, 1, 1)
	require.Empty(t, elems)
}

// TestMulVectorComputesRowDotProducts packs a 2x2 matrix with PackDenseRow
// (columnCount=2 needs no padding, so both rows share one plaintext as two
// replicas) and checks that MulVector's rotate-and-add reduction lands each
// row's dot product at that row's block-leading slot.
func TestMulVectorComputesRowDotProducts(t *testing.T) {
	k := newToyKit(t)
	g := ring.RotationElement(k.ctx.Params.N(), 1)
	kg := NewKeyGenerator(k.ctx, k.sk)
	ksk, err := kg.GenGaloisKey(g)
	require.NoError(t, err)
	k.ev = NewEvaluator(k.ctx, &EvaluationKey{Galois: map[uint64]*KeySwitchKey{g: ksk}, Relin: nil})

	data := [][]uint64{{1, 2}, {3, 4}}
	matrix, err := NewDenseRowMatrix(k.ctx, k.enc, data)
	require.NoError(t, err)

	vec := []uint64{5, 6}
	vecSlots := make([]uint64, k.ctx.Params.N())
	for i := range vecSlots {
		vecSlots[i] = vec[i%len(vec)]
	}
	vecPt, err := k.enc.EncodeSIMD(vecSlots)
	require.NoError(t, err)
	ctVec, err := k.ecr.Encrypt(vecPt)
	require.NoError(t, err)

	prods, err := matrix.MulVector(k.ev, ctVec)
	require.NoError(t, err)
	require.Len(t, prods, 1)

	pt, err := k.dec.Decrypt(prods[0])
	require.NoError(t, err)
	got, err := k.enc.DecodeSIMD(pt)
	require.NoError(t, err)

	// row 0 = [1,2] occupies block 0 (slot 0), row 1 = [3,4] occupies block
	// 1 (slot 2); both mod 17.
	require.Equal(t, (1*5+2*6)%17, got[0])
	require.Equal(t, (3*5+4*6)%17, got[2])
}

func TestRequiredGaloisElementsDenseMatchesBlockWidth(t *testing.T) {
	// columnCount=3 pads to 4, needing shifts {1,2}.
	elems := RequiredGaloisElementsDense(1024, 3)
	require.Len(t, elems, 2)
}

func TestRequiredGaloisElementsDenseEmptyWhenNoPaddingNeeded(t *testing.T) {
	// columnCount=1 pads to 1: no within-block reduction needed.
	elems := RequiredGaloisElementsDense(1024, 1)
	require.Empty(t, elems)
}
