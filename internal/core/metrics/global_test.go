package metrics

import (
	"context"
	"errors"
	"testing"
)

// swapGlobalMetrics 替换全局实例并返回恢复函数
func swapGlobalMetrics(t *testing.T) func() {
	t.Helper()
	globalMu.Lock()
	oldMetrics := globalMetrics
	globalMetrics = nil
	globalMu.Unlock()

	return func() {
		globalMu.Lock()
		globalMetrics = oldMetrics
		globalMu.Unlock()
	}
}

func TestSetGlobalMetrics(t *testing.T) {
	restore := swapGlobalMetrics(t)
	defer restore()

	ctx := context.Background()
	metrics := NewMemoryMetrics(ctx)
	defer metrics.Close()

	// 测试设置全局 Metrics
	if err := SetGlobalMetrics(metrics); err != nil {
		t.Fatalf("SetGlobalMetrics failed: %v", err)
	}

	// 验证全局 Metrics 已设置
	if GetGlobalMetrics() != metrics {
		t.Error("GetGlobalMetrics() did not return the set metrics")
	}

	// 测试全局便捷方法
	if err := IncrementCounter("test", nil); err != nil {
		t.Fatalf("IncrementCounter failed: %v", err)
	}
	if err := AddCounter("test", 2.5, nil); err != nil {
		t.Fatalf("AddCounter failed: %v", err)
	}

	value, err := GetCounter("test", nil)
	if err != nil {
		t.Fatalf("GetCounter failed: %v", err)
	}
	if value != 3.5 {
		t.Errorf("expected counter value 3.5, got %f", value)
	}

	if err := SetGauge("depth", 7, nil); err != nil {
		t.Fatalf("SetGauge failed: %v", err)
	}
	gauge, err := GetGauge("depth", nil)
	if err != nil {
		t.Fatalf("GetGauge failed: %v", err)
	}
	if gauge != 7.0 {
		t.Errorf("expected gauge value 7.0, got %f", gauge)
	}
}

func TestSetGlobalMetrics_Nil(t *testing.T) {
	if err := SetGlobalMetrics(nil); !errors.Is(err, ErrNilMetrics) {
		t.Errorf("expected ErrNilMetrics, got %v", err)
	}
}

func TestTryGetGlobalMetrics_NotInitialized(t *testing.T) {
	restore := swapGlobalMetrics(t)
	defer restore()

	if _, err := TryGetGlobalMetrics(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}

	// 便捷方法在未初始化时返回同一错误
	if err := IncrementCounter("test", nil); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized from IncrementCounter, got %v", err)
	}
	if _, err := GetGauge("test", nil); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized from GetGauge, got %v", err)
	}
}

func TestResetGlobalMetrics(t *testing.T) {
	restore := swapGlobalMetrics(t)
	defer restore()

	ctx := context.Background()
	metrics := NewMemoryMetrics(ctx)
	defer metrics.Close()

	if err := SetGlobalMetrics(metrics); err != nil {
		t.Fatalf("SetGlobalMetrics failed: %v", err)
	}
	ResetGlobalMetrics()

	if GetGlobalMetrics() != nil {
		t.Error("expected nil global metrics after reset")
	}
}
