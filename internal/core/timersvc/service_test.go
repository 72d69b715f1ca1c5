package timersvc

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleOnce_FiresAfterDelay(t *testing.T) {
	clk := clock.NewMock()
	svc := NewService(context.Background(), clk)
	defer svc.Dispose()

	var fired atomic.Bool
	id, err := svc.ScheduleOnce(100*time.Millisecond, func() { fired.Store(true) })
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, svc.ActiveCount())

	clk.Add(50 * time.Millisecond)
	assert.False(t, fired.Load())

	clk.Add(60 * time.Millisecond)
	require.Eventually(t, func() bool { return fired.Load() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, svc.ActiveCount())
}

func TestScheduleOnce_CancelPreventsFire(t *testing.T) {
	clk := clock.NewMock()
	svc := NewService(context.Background(), clk)
	defer svc.Dispose()

	var fired atomic.Bool
	id, err := svc.ScheduleOnce(100*time.Millisecond, func() { fired.Store(true) })
	require.NoError(t, err)

	assert.True(t, svc.Cancel(id))
	assert.False(t, svc.Cancel(id), "second cancel should report missing timer")

	clk.Add(200 * time.Millisecond)
	assert.False(t, fired.Load())
}

func TestScheduleRepeating_FiresEachInterval(t *testing.T) {
	clk := clock.NewMock()
	svc := NewService(context.Background(), clk)
	defer svc.Dispose()

	var ticks atomic.Int32
	id, err := svc.ScheduleRepeating(50*time.Millisecond, func() { ticks.Add(1) })
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		clk.Add(50 * time.Millisecond)
		return ticks.Load() >= 3
	}, time.Second, 5*time.Millisecond)

	require.True(t, svc.Cancel(id))
	// 等 tick goroutine 观察到取消并消化在途 tick
	time.Sleep(20 * time.Millisecond)
	before := ticks.Load()
	clk.Add(200 * time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, before, ticks.Load(), "cancelled repeating timer should stop ticking")
}

func TestScheduleRepeating_InvalidInterval(t *testing.T) {
	svc := NewService(context.Background(), clock.NewMock())
	defer svc.Dispose()

	_, err := svc.ScheduleRepeating(0, func() {})
	assert.Error(t, err)
}

func TestSchedule_NilCallbackRejected(t *testing.T) {
	svc := NewService(context.Background(), clock.NewMock())
	defer svc.Dispose()

	_, err := svc.ScheduleOnce(time.Second, nil)
	assert.Error(t, err)
	_, err = svc.ScheduleRepeating(time.Second, nil)
	assert.Error(t, err)
}

func TestDispose_CancelsPending(t *testing.T) {
	clk := clock.NewMock()
	svc := NewService(context.Background(), clk)

	var fired atomic.Bool
	_, err := svc.ScheduleOnce(100*time.Millisecond, func() { fired.Store(true) })
	require.NoError(t, err)
	_, err = svc.ScheduleRepeating(100*time.Millisecond, func() { fired.Store(true) })
	require.NoError(t, err)
	require.Equal(t, 2, svc.ActiveCount())

	require.NoError(t, svc.Dispose())
	assert.Equal(t, 0, svc.ActiveCount())

	time.Sleep(20 * time.Millisecond)
	clk.Add(500 * time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.False(t, fired.Load())

	// 关闭后拒绝新任务
	_, err = svc.ScheduleOnce(time.Second, func() {})
	assert.Error(t, err)
}

func TestCallbackPanicRecovered(t *testing.T) {
	clk := clock.NewMock()
	svc := NewService(context.Background(), clk)
	defer svc.Dispose()

	var after atomic.Bool
	_, err := svc.ScheduleOnce(10*time.Millisecond, func() { panic("timer exploded") })
	require.NoError(t, err)
	_, err = svc.ScheduleOnce(20*time.Millisecond, func() { after.Store(true) })
	require.NoError(t, err)

	clk.Add(30 * time.Millisecond)
	require.Eventually(t, func() bool { return after.Load() }, time.Second, 5*time.Millisecond,
		"panicking callback should not break later timers")
}
