package alignment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateAll(t *testing.T) {
	jobs := []Job{
		{Name: "clean", Pairs: smallGrid(), Options: testOptions(1)},
		{Name: "outlier", Pairs: outlierGrid(), Options: testOptions(1)},
		{Name: "too-few", Pairs: smallGrid()[:4], Options: testOptions(2)},
	}

	results := EstimateAll(context.Background(), jobs, 2, nil)
	require.Len(t, results, len(jobs))

	for i, jr := range results {
		assert.Equal(t, jobs[i].Name, jr.Name)
	}

	require.NoError(t, results[0].Err)
	assert.Empty(t, results[0].Result.Removed)

	require.NoError(t, results[1].Err)
	assert.Equal(t, []int{4}, results[1].Result.RemovedIndices())

	assert.Nil(t, results[2].Result)
	assert.True(t, errors.Is(results[2].Err, ErrInsufficientRedundancy))
}

func TestEstimateAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := EstimateAll(ctx, []Job{
		{Name: "a", Pairs: smallGrid(), Options: testOptions(1)},
		{Name: "b", Pairs: smallGrid(), Options: testOptions(1)},
	}, 0, nil)

	for _, jr := range results {
		assert.Nil(t, jr.Result)
		assert.True(t, errors.Is(jr.Err, context.Canceled))
	}
}

func TestEstimateAllDoesNotShareInput(t *testing.T) {
	pairs := outlierGrid()
	jobs := []Job{
		{Name: "first", Pairs: pairs, Options: testOptions(1)},
		{Name: "second", Pairs: pairs, Options: testOptions(1)},
	}

	results := EstimateAll(context.Background(), jobs, 2, nil)
	for _, jr := range results {
		require.NoError(t, jr.Err)
		assert.Equal(t, []int{4}, jr.Result.RemovedIndices())
	}
	assert.Equal(t, outlierGrid(), pairs)
}
