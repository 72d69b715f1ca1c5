package metrics

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"lifekit-core/internal/core/dispose"
)

// histogramData 直方图聚合值
// 进程内实现只保留 count/sum/min/max，足够调试 API 展示释放耗时分布
type histogramData struct {
	count int64
	sum   float64
	min   float64
	max   float64
}

// MemoryMetrics 内存指标实现（进程内运行，无外部依赖）
type MemoryMetrics struct {
	*dispose.ResourceBase

	counters   map[string]*int64
	gauges     map[string]*float64
	histograms map[string]*histogramData
	mu         sync.RWMutex
}

// NewMemoryMetrics 创建内存指标收集器
func NewMemoryMetrics(parentCtx context.Context) *MemoryMetrics {
	metrics := &MemoryMetrics{
		ResourceBase: dispose.NewResourceBase("MemoryMetrics"),
		counters:     make(map[string]*int64),
		gauges:       make(map[string]*float64),
		histograms:   make(map[string]*histogramData),
	}
	metrics.ResourceBase.Initialize(parentCtx)
	return metrics
}

// IncrementCounter 增加计数器
func (m *MemoryMetrics) IncrementCounter(name string, labels map[string]string) error {
	key := buildKey(name, labels)
	m.mu.Lock()
	counter, exists := m.counters[key]
	if !exists {
		var val int64
		counter = &val
		m.counters[key] = counter
	}
	m.mu.Unlock()
	atomic.AddInt64(counter, 1)
	return nil
}

// AddCounter 增加计数器指定值
func (m *MemoryMetrics) AddCounter(name string, value float64, labels map[string]string) error {
	key := buildKey(name, labels)
	m.mu.Lock()
	counter, exists := m.counters[key]
	if !exists {
		var val int64
		counter = &val
		m.counters[key] = counter
	}
	m.mu.Unlock()
	atomic.AddInt64(counter, int64(value))
	return nil
}

// GetCounter 获取计数器值
func (m *MemoryMetrics) GetCounter(name string, labels map[string]string) (float64, error) {
	key := buildKey(name, labels)
	m.mu.RLock()
	defer m.mu.RUnlock()
	if counter, exists := m.counters[key]; exists {
		return float64(atomic.LoadInt64(counter)), nil
	}
	return 0, nil
}

// SetGauge 设置 Gauge 值
func (m *MemoryMetrics) SetGauge(name string, value float64, labels map[string]string) error {
	key := buildKey(name, labels)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[key] = &value
	return nil
}

// GetGauge 获取 Gauge 值
func (m *MemoryMetrics) GetGauge(name string, labels map[string]string) (float64, error) {
	key := buildKey(name, labels)
	m.mu.RLock()
	defer m.mu.RUnlock()
	if gauge, exists := m.gauges[key]; exists {
		return *gauge, nil
	}
	return 0, nil
}

// ObserveHistogram 记录 Histogram 值
func (m *MemoryMetrics) ObserveHistogram(name string, value float64, labels map[string]string) error {
	key := buildKey(name, labels)
	m.mu.Lock()
	defer m.mu.Unlock()
	h, exists := m.histograms[key]
	if !exists {
		m.histograms[key] = &histogramData{count: 1, sum: value, min: value, max: value}
		return nil
	}
	h.count++
	h.sum += value
	if value < h.min {
		h.min = value
	}
	if value > h.max {
		h.max = value
	}
	return nil
}

// Dump 导出全量指标快照
// 直方图展开为 <key>_count / <key>_sum / <key>_min / <key>_max
func (m *MemoryMetrics) Dump() map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]float64, len(m.counters)+len(m.gauges)+len(m.histograms)*4)
	for key, counter := range m.counters {
		out[key] = float64(atomic.LoadInt64(counter))
	}
	for key, gauge := range m.gauges {
		out[key] = *gauge
	}
	for key, h := range m.histograms {
		out[key+"_count"] = float64(h.count)
		out[key+"_sum"] = h.sum
		out[key+"_min"] = h.min
		out[key+"_max"] = h.max
	}
	return out
}

// Close 关闭指标收集器
func (m *MemoryMetrics) Close() error {
	return m.ResourceBase.CloseWithError()
}

// Dispose 实现 Disposable
func (m *MemoryMetrics) Dispose() error {
	return m.Close()
}

// 编译时接口断言
var (
	_ Metrics            = (*MemoryMetrics)(nil)
	_ Dumper             = (*MemoryMetrics)(nil)
	_ dispose.Disposable = (*MemoryMetrics)(nil)
)

// buildKey 构建指标键名
func buildKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	// 按标签键名排序，确保相同标签集合生成相同的 key
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	key := name
	for _, k := range keys {
		key = fmt.Sprintf("%s{%s=%s}", key, k, labels[k])
	}
	return key
}
