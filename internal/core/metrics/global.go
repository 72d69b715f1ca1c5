package metrics

import (
	"errors"
	"sync"
)

var (
	globalMetrics Metrics
	globalMu      sync.RWMutex

	// ErrNilMetrics 传入 nil 实例时返回
	ErrNilMetrics = errors.New("metrics: nil Metrics instance")
	// ErrNotInitialized 全局实例尚未发布时返回
	ErrNotInitialized = errors.New("metrics: global instance not set")
)

// SetGlobalMetrics 发布全局 Metrics 实例
// 核心路径一律注入实例，全局入口只服务无法参与装配的调用方
func SetGlobalMetrics(m Metrics) error {
	if m == nil {
		return ErrNilMetrics
	}
	globalMu.Lock()
	defer globalMu.Unlock()
	globalMetrics = m
	return nil
}

// GetGlobalMetrics 返回全局实例，未发布时为 nil
func GetGlobalMetrics() Metrics {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalMetrics
}

// TryGetGlobalMetrics 返回全局实例，未发布时报 ErrNotInitialized
func TryGetGlobalMetrics() (Metrics, error) {
	globalMu.RLock()
	m := globalMetrics
	globalMu.RUnlock()
	if m == nil {
		return nil, ErrNotInitialized
	}
	return m, nil
}

// ResetGlobalMetrics 清空全局实例（测试用）
func ResetGlobalMetrics() {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalMetrics = nil
}

// IncrementCounter 对全局实例增加计数器
func IncrementCounter(name string, labels map[string]string) error {
	m, err := TryGetGlobalMetrics()
	if err != nil {
		return err
	}
	return m.IncrementCounter(name, labels)
}

// AddCounter 对全局实例累加计数器
func AddCounter(name string, value float64, labels map[string]string) error {
	m, err := TryGetGlobalMetrics()
	if err != nil {
		return err
	}
	return m.AddCounter(name, value, labels)
}

// SetGauge 对全局实例设置 Gauge
func SetGauge(name string, value float64, labels map[string]string) error {
	m, err := TryGetGlobalMetrics()
	if err != nil {
		return err
	}
	return m.SetGauge(name, value, labels)
}

// GetCounter 读取全局实例的计数器值
func GetCounter(name string, labels map[string]string) (float64, error) {
	m, err := TryGetGlobalMetrics()
	if err != nil {
		return 0, err
	}
	return m.GetCounter(name, labels)
}

// GetGauge 读取全局实例的 Gauge 值
func GetGauge(name string, labels map[string]string) (float64, error) {
	m, err := TryGetGlobalMetrics()
	if err != nil {
		return 0, err
	}
	return m.GetGauge(name, labels)
}
