package notion

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bondcrm/notionsync/internal/model"
)

type countingPatcher struct {
	mu    sync.Mutex
	calls []time.Time
}

func (c *countingPatcher) UpdatePage(_ context.Context, _, pageID string, props map[string]model.PropertyValue) (*model.RemotePage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, time.Now())
	return &model.RemotePage{ID: pageID, Properties: props}, nil
}

func TestPacedPatcher_SpacesConcurrentUpdates(t *testing.T) {
	inner := &countingPatcher{}
	pp := NewPacedPatcher(inner, 30*time.Millisecond)

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := pp.UpdatePage(context.Background(), "tok", "p1", nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, inner.calls, 4)
	// the first call is free, the other three wait a slot each
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestPacedPatcher_ZeroIntervalDoesNotWait(t *testing.T) {
	inner := &countingPatcher{}
	pp := NewPacedPatcher(inner, 0)

	start := time.Now()
	for i := 0; i < 20; i++ {
		_, err := pp.UpdatePage(context.Background(), "tok", "p1", nil)
		require.NoError(t, err)
	}
	assert.Len(t, inner.calls, 20)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestPacedPatcher_CancelledSkipsUpdate(t *testing.T) {
	inner := &countingPatcher{}
	pp := NewPacedPatcher(inner, time.Hour)

	// use the free slot
	_, err := pp.UpdatePage(context.Background(), "tok", "p1", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = pp.UpdatePage(ctx, "tok", "p2", nil)
	assert.Error(t, err)
	assert.Len(t, inner.calls, 1)
}
