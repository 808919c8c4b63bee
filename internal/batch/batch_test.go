package batch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessor_Process(t *testing.T) {
	items := make([]int, 25)
	for i := range items {
		items[i] = i
	}

	t.Run("Sequential", func(t *testing.T) {
		p, err := NewProcessor[int](10)
		require.NoError(t, err)

		var seen []int
		var sizes []int
		err = p.Process(context.Background(), items, func(_ context.Context, chunk []int, _ int) error {
			seen = append(seen, chunk...)
			sizes = append(sizes, len(chunk))
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, items, seen)
		assert.Equal(t, []int{10, 10, 5}, sizes)
	})

	t.Run("ErrorStopsProcessing", func(t *testing.T) {
		p, _ := NewProcessor[int](10)
		calls := 0
		err := p.Process(context.Background(), items, func(_ context.Context, _ []int, i int) error {
			calls++
			if i == 1 {
				return errors.New("fail")
			}
			return nil
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "batch 1 failed")
		assert.Equal(t, 2, calls)
	})

	t.Run("EmptyItemsIsNoop", func(t *testing.T) {
		p := NewProcessorWithDefaults[int]()
		called := false
		err := p.Process(context.Background(), nil, func(context.Context, []int, int) error {
			called = true
			return nil
		})
		require.NoError(t, err)
		assert.False(t, called)
	})

	t.Run("NilCallback", func(t *testing.T) {
		p := NewProcessorWithDefaults[int]()
		assert.ErrorIs(t, p.Process(context.Background(), items, nil), ErrNilCallback)
	})

	t.Run("Canceled", func(t *testing.T) {
		p, _ := NewProcessor[int](5)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := p.Process(ctx, items, func(context.Context, []int, int) error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("InvalidBatchSize", func(t *testing.T) {
		_, err := NewProcessor[int](0)
		require.ErrorIs(t, err, ErrInvalidBatchSize)
		_, err = NewProcessor[int](2000)
		require.ErrorIs(t, err, ErrInvalidBatchSize)
	})
}

func TestProcessor_Progress(t *testing.T) {
	p, _ := NewProcessor[string](2)
	var last Progress
	p.WithProgressCallback(func(pr Progress) { last = pr })

	err := p.Process(context.Background(), []string{"a", "b", "c"}, func(context.Context, []string, int) error {
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, last.ProcessedItems)
	assert.Equal(t, 2, last.ProcessedBatches)
	assert.True(t, last.IsComplete())
	assert.InDelta(t, 100.0, last.PercentComplete(), 1e-9)
}

func TestCalculateBatches(t *testing.T) {
	p, _ := NewProcessor[int](4)
	assert.Equal(t, [][2]int{{0, 4}, {4, 8}, {8, 9}}, p.CalculateBatches(9))
	assert.Nil(t, p.CalculateBatches(0))
	assert.Equal(t, 4, p.BatchSize())
}
