package computation

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fourDecimals = regexp.MustCompile(`^-?\d+\.\d{4}$`)

// keyStrategy echoes the item name so tests can see which item produced a key
type keyStrategy struct{}

func (keyStrategy) Compute(item Item) string { return item.Name }

func TestRun_SingleNDVI(t *testing.T) {
	r := NewRunner(DefaultCatalog, NewRandomStrategy(42), time.Millisecond)

	for i := 0; i < 50; i++ {
		r.Reset()
		results, err := r.Run(context.Background(), []string{ndvi})
		require.NoError(t, err)
		require.Len(t, results, 1)

		v, ok := results["NDVI"]
		require.True(t, ok)
		assert.Regexp(t, fourDecimals, v)
		f, err := strconv.ParseFloat(v, 64)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, f, -1.0)
		assert.LessOrEqual(t, f, 1.0)
	}
	assert.Equal(t, StatusDone, r.Status())
}

func TestCompute_AliasedKeyFirstMatchWins(t *testing.T) {
	r := NewRunner(DefaultCatalog, keyStrategy{}, 0)
	results := r.Compute([]string{ndviDelta, ndvi})
	assert.Equal(t, ResultSet{"NDVI": ndvi}, results)

	results = r.Compute([]string{ndviDelta})
	assert.Equal(t, ResultSet{"NDVI": ndviDelta}, results)
}

func TestCompute_EveryItemInRange(t *testing.T) {
	r := NewRunner(DefaultCatalog, NewRandomStrategy(7), 0)

	var all []string
	for _, cat := range DefaultCatalog.Categories() {
		for _, item := range cat.Items {
			all = append(all, item.Name)
		}
	}
	results := r.Compute(all)
	assert.Len(t, results, 14) // two items share the NDVI key

	for _, cat := range DefaultCatalog.Categories() {
		for _, item := range cat.Items {
			v := results[item.Key]
			switch item.Kind {
			case ResultNumeric:
				if item.Name == ndviDelta {
					continue
				}
				f, err := strconv.ParseFloat(v, 64)
				require.NoError(t, err, item.Name)
				assert.GreaterOrEqual(t, f, item.Low, item.Name)
				assert.LessOrEqual(t, f, item.High, item.Name)
			case ResultLabel:
				assert.Contains(t, item.Labels, v, item.Name)
			case ResultPercent:
				assert.Regexp(t, `^\d+\.\d% `, v, item.Name)
			}
		}
	}
}

func TestRun_NewResultSetEachRun(t *testing.T) {
	r := NewRunner(DefaultCatalog, NewRandomStrategy(1), 0)
	first, err := r.Run(context.Background(), []string{ndvi, evi})
	require.NoError(t, err)

	second, err := r.Run(context.Background(), []string{evi})
	require.NoError(t, err)
	assert.Len(t, first, 2)
	assert.Len(t, second, 1)
	assert.NotContains(t, second, "NDVI")
}

func TestRun_Guards(t *testing.T) {
	r := NewRunner(DefaultCatalog, nil, time.Hour)

	_, err := r.Run(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrEmptySelection))

	require.NoError(t, r.Start([]string{ndvi}))
	assert.Equal(t, StatusRunning, r.Status())
	_, err = r.Run(context.Background(), []string{ndvi})
	assert.True(t, errors.Is(err, ErrRunInProgress))

	r.Reset()
	assert.Equal(t, StatusRunning, r.Status())
}

func TestFinish_Cancelled(t *testing.T) {
	r := NewRunner(DefaultCatalog, nil, time.Hour)
	require.NoError(t, r.Start([]string{ndvi}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Finish(ctx, []string{ndvi})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, StatusIdle, r.Status())
}
