package weakref

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ownerPayload 测试用所有者对象
// 含指针字段，避免被 tiny allocator 合并分配导致回收延迟
type ownerPayload struct {
	name string
	data []byte
}

//go:noinline
func newDeadCandidate() *WeakHandle[ownerPayload] {
	p := &ownerPayload{name: "owner", data: make([]byte, 64)}
	return Make(p)
}

func TestWeakHandle_AliveWhileReferenced(t *testing.T) {
	p := &ownerPayload{name: "held", data: make([]byte, 16)}
	h := Make(p)

	assert.True(t, h.Alive())

	v, ok := h.Get()
	require.True(t, ok)
	assert.Same(t, p, v)

	typed, ok := h.Value()
	require.True(t, ok)
	assert.Equal(t, "held", typed.name)

	runtime.KeepAlive(p)
}

func TestWeakHandle_DeadAfterReclaim(t *testing.T) {
	h := newDeadCandidate()

	require.Eventually(t, func() bool {
		runtime.GC()
		return !h.Alive()
	}, 2*time.Second, 10*time.Millisecond, "owner should be reclaimed after GC")

	_, ok := h.Get()
	assert.False(t, ok)
	_, ok = h.Value()
	assert.False(t, ok)
}

func TestStrongHandle_GetAndInvalidate(t *testing.T) {
	owner := &ownerPayload{name: "pinned"}
	h := NewStrong(owner)

	assert.True(t, h.Alive())
	v, ok := h.Get()
	require.True(t, ok)
	assert.Same(t, owner, v)

	h.Invalidate()
	assert.False(t, h.Alive())
	_, ok = h.Get()
	assert.False(t, ok)

	// 幂等
	h.Invalidate()
	assert.False(t, h.Alive())
}

func TestStrongHandle_WatchFiresOnInvalidate(t *testing.T) {
	h := NewStrong("owner")

	calls := 0
	cancel, fired := h.watch(func() { calls++ })
	require.False(t, fired)
	require.NotNil(t, cancel)

	h.Invalidate()
	assert.Equal(t, 1, calls)

	// 再次失效不重复触发
	h.Invalidate()
	assert.Equal(t, 1, calls)
}

func TestStrongHandle_WatchAfterInvalidateFiresImmediately(t *testing.T) {
	h := NewStrong("owner")
	h.Invalidate()

	calls := 0
	_, fired := h.watch(func() { calls++ })
	assert.True(t, fired)
	assert.Equal(t, 1, calls)
}

func TestStrongHandle_WatchCancel(t *testing.T) {
	h := NewStrong("owner")

	calls := 0
	cancel, fired := h.watch(func() { calls++ })
	require.False(t, fired)

	cancel()
	h.Invalidate()
	assert.Equal(t, 0, calls)
}
