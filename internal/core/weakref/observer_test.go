package weakref

import (
	"context"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flagHandle 仅实现核心接口的自定义句柄，存活状态由测试翻转
type flagHandle struct {
	alive atomic.Bool
}

func newFlagHandle() *flagHandle {
	h := &flagHandle{}
	h.alive.Store(true)
	return h
}

func (h *flagHandle) Get() (any, bool) {
	if h.alive.Load() {
		return h, true
	}
	return nil, false
}

func (h *flagHandle) Alive() bool { return h.alive.Load() }

//go:noinline
func observeReclaim(t *testing.T, obs *RuntimeObserver, token string, fired *atomic.Bool) Handle {
	t.Helper()
	owner := &ownerPayload{name: "reclaim-me", data: make([]byte, 64)}
	h := Make(owner)
	require.NoError(t, obs.Observe(token, h, func() { fired.Store(true) }))
	return h
}

func TestRuntimeObserver_FiresOnReclaim(t *testing.T) {
	obs := NewRuntimeObserver(context.Background(), clock.NewMock())
	defer obs.Dispose()

	var fired atomic.Bool
	h := observeReclaim(t, obs, "res_1", &fired)

	require.Eventually(t, func() bool {
		runtime.GC()
		return fired.Load()
	}, 2*time.Second, 10*time.Millisecond, "callback should fire after owner reclaim")

	assert.False(t, h.Alive())
	assert.Equal(t, 0, obs.PendingCount())
}

func TestRuntimeObserver_StrongHandleFiresOnInvalidate(t *testing.T) {
	obs := NewRuntimeObserver(context.Background(), clock.NewMock())
	defer obs.Dispose()

	h := NewStrong(&ownerPayload{name: "pinned"})

	var calls atomic.Int32
	require.NoError(t, obs.Observe("res_1", h, func() { calls.Add(1) }))

	h.Invalidate()
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 0, obs.PendingCount())
}

func TestRuntimeObserver_DeadHandleFiresSynchronously(t *testing.T) {
	obs := NewRuntimeObserver(context.Background(), clock.NewMock())
	defer obs.Dispose()

	h := NewStrong("owner")
	h.Invalidate()

	fired := false
	require.NoError(t, obs.Observe("res_1", h, func() { fired = true }))
	assert.True(t, fired)
	assert.Equal(t, 0, obs.PendingCount())
}

func TestRuntimeObserver_UnobservePreventsFire(t *testing.T) {
	obs := NewRuntimeObserver(context.Background(), clock.NewMock())
	defer obs.Dispose()

	h := NewStrong("owner")

	var calls atomic.Int32
	require.NoError(t, obs.Observe("res_1", h, func() { calls.Add(1) }))

	obs.Unobserve("res_1")
	h.Invalidate()
	assert.Equal(t, int32(0), calls.Load())
}

func TestRuntimeObserver_DuplicateTokenRejected(t *testing.T) {
	obs := NewRuntimeObserver(context.Background(), clock.NewMock())
	defer obs.Dispose()

	h := NewStrong("owner")
	require.NoError(t, obs.Observe("res_1", h, func() {}))
	assert.Error(t, obs.Observe("res_1", h, func() {}))
}

func TestRuntimeObserver_FallbackPollsPlainHandle(t *testing.T) {
	clk := clock.NewMock()
	obs := NewRuntimeObserver(context.Background(), clk)
	defer obs.Dispose()

	h := newFlagHandle()

	var fired atomic.Bool
	require.NoError(t, obs.Observe("res_1", h, func() { fired.Store(true) }))
	require.Equal(t, 1, obs.PendingCount())

	h.alive.Store(false)
	require.Eventually(t, func() bool {
		clk.Add(time.Second)
		return fired.Load()
	}, 2*time.Second, 10*time.Millisecond, "fallback scan should detect dead custom handle")
	assert.Equal(t, 0, obs.PendingCount())
}

func TestRuntimeObserver_CallbackPanicRecovered(t *testing.T) {
	obs := NewRuntimeObserver(context.Background(), clock.NewMock())
	defer obs.Dispose()

	h := NewStrong("owner")
	require.NoError(t, obs.Observe("res_1", h, func() { panic("listener exploded") }))

	assert.NotPanics(t, func() { h.Invalidate() })
}
