package metrics

// Metrics 指标收集接口
// 设计目标：进程内使用简单实现，可无缝迁移到 Prometheus
type Metrics interface {
	// Counter 操作
	IncrementCounter(name string, labels map[string]string) error
	AddCounter(name string, value float64, labels map[string]string) error
	GetCounter(name string, labels map[string]string) (float64, error)

	// Gauge 操作
	SetGauge(name string, value float64, labels map[string]string) error
	GetGauge(name string, labels map[string]string) (float64, error)

	// Histogram 操作
	ObserveHistogram(name string, value float64, labels map[string]string) error

	// 关闭指标收集器
	Close() error
}

// Dumper 可导出全量指标快照的扩展接口
// 调试 API 的 /metrics 端点依赖该能力，Prometheus 实现可不提供
type Dumper interface {
	Dump() map[string]float64
}
