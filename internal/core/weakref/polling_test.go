package weakref

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollingObserver_DetectsDeathOnScan(t *testing.T) {
	clk := clock.NewMock()
	obs := NewPollingObserver(context.Background(), 50*time.Millisecond, clk)
	defer obs.Dispose()

	h := NewStrong(&ownerPayload{name: "scanned"})

	var fired atomic.Bool
	require.NoError(t, obs.Observe("res_1", h, func() { fired.Store(true) }))
	require.Equal(t, 1, obs.PendingCount())

	// 存活期间扫描不触发
	clk.Add(50 * time.Millisecond)
	assert.False(t, fired.Load())

	h.Invalidate()
	require.Eventually(t, func() bool {
		clk.Add(50 * time.Millisecond)
		return fired.Load()
	}, time.Second, 10*time.Millisecond, "scan should detect dead handle")

	assert.Equal(t, 0, obs.PendingCount())
}

func TestPollingObserver_DeadHandleFiresSynchronously(t *testing.T) {
	obs := NewPollingObserver(context.Background(), 50*time.Millisecond, clock.NewMock())
	defer obs.Dispose()

	h := NewStrong("owner")
	h.Invalidate()

	fired := false
	require.NoError(t, obs.Observe("res_1", h, func() { fired = true }))
	assert.True(t, fired)
	assert.Equal(t, 0, obs.PendingCount())
}

func TestPollingObserver_UnobserveRemovesEntry(t *testing.T) {
	clk := clock.NewMock()
	obs := NewPollingObserver(context.Background(), 50*time.Millisecond, clk)
	defer obs.Dispose()

	h := NewStrong("owner")

	var fired atomic.Bool
	require.NoError(t, obs.Observe("res_1", h, func() { fired.Store(true) }))

	obs.Unobserve("res_1")
	require.Equal(t, 0, obs.PendingCount())

	h.Invalidate()
	clk.Add(100 * time.Millisecond)
	assert.False(t, fired.Load())
}

func TestPollingObserver_DuplicateTokenRejected(t *testing.T) {
	obs := NewPollingObserver(context.Background(), 0, clock.NewMock())
	defer obs.Dispose()

	h := NewStrong("owner")
	require.NoError(t, obs.Observe("res_1", h, func() {}))
	assert.Error(t, obs.Observe("res_1", h, func() {}))
}

func TestPollingObserver_NilHandleRejected(t *testing.T) {
	obs := NewPollingObserver(context.Background(), 0, clock.NewMock())
	defer obs.Dispose()

	assert.Error(t, obs.Observe("res_1", nil, func() {}))
}

func TestPollingObserver_ScanStopsAfterDispose(t *testing.T) {
	clk := clock.NewMock()
	obs := NewPollingObserver(context.Background(), 50*time.Millisecond, clk)

	h := NewStrong("owner")
	var fired atomic.Bool
	require.NoError(t, obs.Observe("res_1", h, func() { fired.Store(true) }))

	require.NoError(t, obs.Dispose())
	// 等扫描循环观察到取消
	time.Sleep(20 * time.Millisecond)

	h.Invalidate()
	clk.Add(500 * time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.False(t, fired.Load())
}
