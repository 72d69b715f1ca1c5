package settings

import (
	"context"
	"testing"

	"lifekit-core/internal/core/events"

	"github.com/stretchr/testify/require"
)

func TestNotifier_BridgesChangesToBus(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()
	bus := events.NewBus(context.Background(), nil, nil, nil)
	defer bus.Dispose()

	n, err := NewNotifier(s, bus)
	require.NoError(t, err)
	defer n.Close()

	require.NoError(t, n.Bridge("cleanup.fast_batch"))
	// 重复桥接为空操作
	require.NoError(t, n.Bridge("cleanup.fast_batch"))
	require.Equal(t, []string{"cleanup.fast_batch"}, n.BridgedKeys())

	var got []string
	_, err = bus.On(ChangedEvent("cleanup.fast_batch"), func(args ...any) error {
		got = append(got, args[0].(string))
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, s.SetInt(ctx, "cleanup.fast_batch", 20))
	require.Equal(t, []string{"20"}, got)

	// 未桥接的键不过总线
	require.NoError(t, s.SetInt(ctx, "cleanup.slow_batch", 2))
	require.Equal(t, []string{"20"}, got)

	require.NoError(t, s.Delete(ctx, "cleanup.fast_batch"))
	require.Equal(t, []string{"20", ""}, got)
}

func TestNotifier_UnbridgeStopsEvents(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()
	bus := events.NewBus(context.Background(), nil, nil, nil)
	defer bus.Dispose()

	n, err := NewNotifier(s, bus)
	require.NoError(t, err)
	defer n.Close()

	require.NoError(t, n.BridgeAll("a", "b"))

	var count int
	_, err = bus.OnAny(func(event string, args ...any) error {
		count++
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, s.SetString(ctx, "a", "1"))
	require.NoError(t, s.SetString(ctx, "b", "1"))
	require.Equal(t, 2, count)

	n.Unbridge("a")
	require.NoError(t, s.SetString(ctx, "a", "2"))
	require.Equal(t, 2, count)
	require.Equal(t, []string{"b"}, n.BridgedKeys())
}

func TestNotifier_Validation(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	bus := events.NewBus(context.Background(), nil, nil, nil)
	defer bus.Dispose()

	_, err := NewNotifier(nil, bus)
	require.Error(t, err)
	_, err = NewNotifier(s, nil)
	require.Error(t, err)

	n, err := NewNotifier(s, bus)
	require.NoError(t, err)
	defer n.Close()
	require.Error(t, n.Bridge(""))
}
