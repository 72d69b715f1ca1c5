package metrics

import (
	"context"
	"testing"
)

func TestLifecycleHelpers_NilMetricsIsNoOp(t *testing.T) {
	if err := RecordTracked(nil, "timer"); err != nil {
		t.Errorf("expected nil error with nil metrics, got %v", err)
	}
	if err := RecordReleased(nil, "timer", "explicit", 1.5, true); err != nil {
		t.Errorf("expected nil error with nil metrics, got %v", err)
	}
	if err := SetQueueDepth(nil, 3); err != nil {
		t.Errorf("expected nil error with nil metrics, got %v", err)
	}
	if snap := Snapshot(nil); snap != nil {
		t.Errorf("expected nil snapshot with nil metrics, got %v", snap)
	}
}

func TestLifecycleHelpers_ResourceCounters(t *testing.T) {
	m := NewMemoryMetrics(context.Background())
	defer m.Close()

	if err := RecordTracked(m, "timer"); err != nil {
		t.Fatalf("RecordTracked failed: %v", err)
	}
	if err := RecordTracked(m, "timer"); err != nil {
		t.Fatalf("RecordTracked failed: %v", err)
	}
	if err := RecordReleased(m, "timer", "explicit", 2.0, true); err != nil {
		t.Fatalf("RecordReleased failed: %v", err)
	}
	if err := RecordReleased(m, "timer", "bulk", 4.0, false); err != nil {
		t.Fatalf("RecordReleased failed: %v", err)
	}

	tracked, err := m.GetCounter("resource_tracked", map[string]string{"type": "timer"})
	if err != nil {
		t.Fatalf("GetCounter failed: %v", err)
	}
	if tracked != 2.0 {
		t.Errorf("expected 2 tracked, got %f", tracked)
	}

	released, err := m.GetCounter("resource_released", map[string]string{"trigger": "explicit", "type": "timer"})
	if err != nil {
		t.Fatalf("GetCounter failed: %v", err)
	}
	if released != 1.0 {
		t.Errorf("expected 1 released, got %f", released)
	}

	failed, err := m.GetCounter("resource_release_failures", map[string]string{"trigger": "bulk", "type": "timer"})
	if err != nil {
		t.Fatalf("GetCounter failed: %v", err)
	}
	if failed != 1.0 {
		t.Errorf("expected 1 failure, got %f", failed)
	}

	// 成败都计耗时
	dump := m.Dump()
	if dump["release_duration_ms{trigger=explicit}{type=timer}_count"] != 1.0 {
		t.Errorf("expected explicit release duration entry, got %v", dump)
	}
	if dump["release_duration_ms{trigger=bulk}{type=timer}_count"] != 1.0 {
		t.Errorf("expected bulk release duration entry, got %v", dump)
	}
}

func TestLifecycleHelpers_SuccessRate(t *testing.T) {
	m := NewMemoryMetrics(context.Background())
	defer m.Close()

	for i := 0; i < 3; i++ {
		if err := RecordReleased(m, "effect", "bulk", 1.0, true); err != nil {
			t.Fatalf("RecordReleased failed: %v", err)
		}
	}
	if err := RecordReleased(m, "effect", "explicit", 1.0, false); err != nil {
		t.Fatalf("RecordReleased failed: %v", err)
	}

	rate, err := ReleaseSuccessRate(m, "effect")
	if err != nil {
		t.Fatalf("ReleaseSuccessRate failed: %v", err)
	}
	if rate != 0.75 {
		t.Errorf("expected success rate 0.75, got %f", rate)
	}
}

func TestLifecycleHelpers_SubscriptionAndEvents(t *testing.T) {
	m := NewMemoryMetrics(context.Background())
	defer m.Close()

	if err := RecordConnected(m, "network"); err != nil {
		t.Fatalf("RecordConnected failed: %v", err)
	}
	if err := RecordDisconnected(m, "network"); err != nil {
		t.Fatalf("RecordDisconnected failed: %v", err)
	}
	if err := SetActiveSubscriptions(m, 4); err != nil {
		t.Fatalf("SetActiveSubscriptions failed: %v", err)
	}
	if err := RecordEmit(m, "data"); err != nil {
		t.Fatalf("RecordEmit failed: %v", err)
	}
	if err := RecordListenerRemoved(m, "immediate"); err != nil {
		t.Fatalf("RecordListenerRemoved failed: %v", err)
	}
	if err := RecordFinalized(m, true); err != nil {
		t.Fatalf("RecordFinalized failed: %v", err)
	}

	connected, err := m.GetCounter("subscription_connected", map[string]string{"category": "network"})
	if err != nil {
		t.Fatalf("GetCounter failed: %v", err)
	}
	if connected != 1.0 {
		t.Errorf("expected 1 connected, got %f", connected)
	}

	active, err := m.GetGauge("subscription_active", nil)
	if err != nil {
		t.Fatalf("GetGauge failed: %v", err)
	}
	if active != 4.0 {
		t.Errorf("expected 4 active, got %f", active)
	}

	snap := Snapshot(m)
	if snap["event_emitted{event=data}"] != 1.0 {
		t.Errorf("expected emitted counter in snapshot, got %v", snap)
	}
	if snap["resource_finalized{path=inline}"] != 1.0 {
		t.Errorf("expected finalized counter in snapshot, got %v", snap)
	}
}
