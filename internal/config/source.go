package config

// Source 配置来源
// 低优先级先加载，高优先级覆盖；LoadInto 只写有值的字段
type Source interface {
	// Name 来源名，用于日志与错误信息
	Name() string

	// Priority 来源优先级，数值越大越优先
	Priority() int

	// LoadInto 把来源内容写入配置结构
	LoadInto(cfg *Root) error
}

// 来源优先级常量
const (
	PriorityDefaults = 1
	PriorityYAML     = 2
	PriorityEnv      = 3
)

// ByPriority 按优先级升序排序
type ByPriority []Source

func (a ByPriority) Len() int           { return len(a) }
func (a ByPriority) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a ByPriority) Less(i, j int) bool { return a[i].Priority() < a[j].Priority() }
