package bfv

import (
	"testing"

	"github.com/montanaflynn/stats"
	"github.com/stretchr/testify/require"
)

// TestNoiseBudgetDistributionAcrossFreshCiphertexts samples NoiseBudget over
// many independently-encrypted ciphertexts and checks the sample statistics
// land where spec.md §4.3's noise model predicts: every fresh ciphertext
// draws its error from the same fixed distribution, so the budget should be
// strictly positive and tightly clustered regardless of the encrypted
// message.
func TestNoiseBudgetDistributionAcrossFreshCiphertexts(t *testing.T) {
	k := newToyKit(t)
	const samples = 32
	budgets := make(stats.Float64Data, samples)
	for i := 0; i < samples; i++ {
		ct := k.encrypt(t, []uint64{uint64(i % 17), 1, 2, 3, 4, 5, 6, 7})
		b, err := NoiseBudget(k.ctx, k.sk, ct)
		require.NoError(t, err)
		budgets[i] = b
	}

	mean, err := budgets.Mean()
	require.NoError(t, err)
	require.Greater(t, mean, 0.0)

	stddev, err := budgets.StandardDeviation()
	require.NoError(t, err)
	require.Less(t, stddev, mean, "fresh noise budget should cluster tightly around its mean")

	median, err := budgets.Median()
	require.NoError(t, err)
	require.Greater(t, median, 0.0)
}

// TestNoiseBudgetDistributionShrinksAfterMultiplication compares the sampled
// noise-budget distribution before and after a homomorphic multiplication:
// every sample's post-multiplication budget must be lower than its own
// pre-multiplication budget, and the sampled mean should drop accordingly.
func TestNoiseBudgetDistributionShrinksAfterMultiplication(t *testing.T) {
	k := newToyKit(t)
	const samples = 16
	before := make(stats.Float64Data, samples)
	after := make(stats.Float64Data, samples)
	for i := 0; i < samples; i++ {
		ct := k.encrypt(t, []uint64{uint64(i % 17), 2, 3, 4, 5, 6, 7, 8})
		b, err := NoiseBudget(k.ctx, k.sk, ct)
		require.NoError(t, err)
		before[i] = b

		prod, err := k.ev.Mul(ct, ct)
		require.NoError(t, err)
		relin, err := k.ev.Relinearize(prod)
		require.NoError(t, err)
		a, err := NoiseBudget(k.ctx, k.sk, relin)
		require.NoError(t, err)
		after[i] = a

		require.Less(t, a, b)
	}

	meanBefore, err := before.Mean()
	require.NoError(t, err)
	meanAfter, err := after.Mean()
	require.NoError(t, err)
	require.Less(t, meanAfter, meanBefore)
}
