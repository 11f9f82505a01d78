package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampWorkers(t *testing.T) {
	assert.Equal(t, 1, clampWorkers(0))
	assert.Equal(t, 3, clampWorkers(3))
	assert.Equal(t, maxBulkWorkers, clampWorkers(50))
}

func TestRunBounded_LimitsConcurrency(t *testing.T) {
	var active, peak atomic.Int32
	seen := make([]bool, 20)

	err := runBounded(context.Background(), len(seen), 3, nil, func(ctx context.Context, i int) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		seen[i] = true
		active.Add(-1)
	})
	require.NoError(t, err)

	assert.LessOrEqual(t, peak.Load(), int32(3))
	for i, ok := range seen {
		assert.True(t, ok, "item %d not run", i)
	}
}

func TestRunBounded_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran atomic.Int32
	err := runBounded(ctx, 10, 2, newLimiter(1), func(ctx context.Context, i int) {
		ran.Add(1)
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, ran.Load())
}
