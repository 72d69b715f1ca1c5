package metrics

// 资源生命周期指标辅助函数
// 核心组件持有注入的 Metrics 实例并通过这里记录；m 为 nil 时静默跳过，
// 全局 facade 仅作为外围代码的便捷入口保留

// ResourceMetricsLabels 资源指标标签
type ResourceMetricsLabels struct {
	Type    string // 资源类型: timer, subscription, effect, file
	Trigger string // 清理触发方式: explicit, bulk, owner_gone, shutdown
}

// ToMap 转换为标签 map
func (l *ResourceMetricsLabels) ToMap() map[string]string {
	labels := make(map[string]string)
	if l.Type != "" {
		labels["type"] = l.Type
	}
	if l.Trigger != "" {
		labels["trigger"] = l.Trigger
	}
	return labels
}

// RecordTracked 增加已跟踪资源数
func RecordTracked(m Metrics, resourceType string) error {
	if m == nil {
		return nil
	}
	labels := &ResourceMetricsLabels{Type: resourceType}
	return m.IncrementCounter("resource_tracked", labels.ToMap())
}

// RecordReleased 记录一次释放尝试：结果计数加释放耗时
func RecordReleased(m Metrics, resourceType, trigger string, durationMs float64, ok bool) error {
	if m == nil {
		return nil
	}
	labels := &ResourceMetricsLabels{Type: resourceType, Trigger: trigger}
	name := "resource_released"
	if !ok {
		name = "resource_release_failures"
	}
	if err := m.IncrementCounter(name, labels.ToMap()); err != nil {
		return err
	}
	return m.ObserveHistogram("release_duration_ms", durationMs, labels.ToMap())
}

// RecordFinalized 增加 owner 被回收后的终结次数
// inline 区分立即释放与入队延迟释放
func RecordFinalized(m Metrics, inline bool) error {
	if m == nil {
		return nil
	}
	path := "deferred"
	if inline {
		path = "inline"
	}
	return m.IncrementCounter("resource_finalized", map[string]string{"path": path})
}

// SetTracked 设置当前跟踪中的资源数（Gauge）
func SetTracked(m Metrics, count float64) error {
	if m == nil {
		return nil
	}
	return m.SetGauge("resource_active", count, nil)
}

// SetQueueDepth 设置清理队列深度（Gauge）
func SetQueueDepth(m Metrics, depth float64) error {
	if m == nil {
		return nil
	}
	return m.SetGauge("cleanup_queue_depth", depth, nil)
}

// RecordBatch 记录一个清理批次及其大小
func RecordBatch(m Metrics, size float64) error {
	if m == nil {
		return nil
	}
	if err := m.IncrementCounter("cleanup_batches", nil); err != nil {
		return err
	}
	return m.ObserveHistogram("cleanup_batch_size", size, nil)
}

// RecordConnected 增加订阅建立次数
func RecordConnected(m Metrics, category string) error {
	if m == nil {
		return nil
	}
	return m.IncrementCounter("subscription_connected", map[string]string{"category": category})
}

// RecordDisconnected 增加订阅断开次数
func RecordDisconnected(m Metrics, category string) error {
	if m == nil {
		return nil
	}
	return m.IncrementCounter("subscription_disconnected", map[string]string{"category": category})
}

// SetActiveSubscriptions 设置活跃订阅数（Gauge）
func SetActiveSubscriptions(m Metrics, count float64) error {
	if m == nil {
		return nil
	}
	return m.SetGauge("subscription_active", count, nil)
}

// RecordEmit 增加事件分发次数
func RecordEmit(m Metrics, event string) error {
	if m == nil {
		return nil
	}
	return m.IncrementCounter("event_emitted", map[string]string{"event": event})
}

// RecordListenerRemoved 增加按策略移除的监听器数
func RecordListenerRemoved(m Metrics, strategy string) error {
	if m == nil {
		return nil
	}
	return m.IncrementCounter("listener_removed", map[string]string{"strategy": strategy})
}

// ReleaseSuccessRate 计算指定资源类型的释放成功率
func ReleaseSuccessRate(m Metrics, resourceType string) (float64, error) {
	if m == nil {
		return 0, nil
	}
	released := 0.0
	failed := 0.0
	for _, trigger := range []string{"explicit", "bulk", "owner_gone", "shutdown"} {
		labels := map[string]string{"type": resourceType, "trigger": trigger}
		v, err := m.GetCounter("resource_released", labels)
		if err != nil {
			return 0, err
		}
		released += v
		f, err := m.GetCounter("resource_release_failures", labels)
		if err != nil {
			return 0, err
		}
		failed += f
	}
	total := released + failed
	if total == 0 {
		return 0, nil
	}
	return released / total, nil
}

// Snapshot 导出指标快照，实现不支持导出时返回 nil
func Snapshot(m Metrics) map[string]float64 {
	if d, ok := m.(Dumper); ok {
		return d.Dump()
	}
	return nil
}
