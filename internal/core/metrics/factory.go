package metrics

import (
	"context"
	"fmt"
)

// MetricsType 指标收集器的后端类型
type MetricsType string

const (
	// MetricsTypeMemory 进程内存储，适合单进程部署与测试
	MetricsTypeMemory MetricsType = "memory"
	// MetricsTypePrometheus 预留给 Prometheus 接入
	MetricsTypePrometheus MetricsType = "prometheus"
)

// MetricsFactory 按类型构造指标收集器
type MetricsFactory struct {
	ctx context.Context
}

// NewMetricsFactory 创建指标工厂，ctx 作为收集器后台任务的生命周期上界
func NewMetricsFactory(ctx context.Context) *MetricsFactory {
	return &MetricsFactory{ctx: ctx}
}

// CreateMetrics 创建指定类型的收集器实例
func (f *MetricsFactory) CreateMetrics(metricsType MetricsType) (Metrics, error) {
	switch metricsType {
	case MetricsTypeMemory:
		return NewMemoryMetrics(f.ctx), nil
	case MetricsTypePrometheus:
		return nil, fmt.Errorf("metrics type %q not implemented", metricsType)
	default:
		return nil, fmt.Errorf("unknown metrics type: %s", metricsType)
	}
}
