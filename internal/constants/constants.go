package constants

import "time"

// 清理调度相关常量
const (
	// FastBatchSize fast 档位下单次批处理的最大清理条目数
	FastBatchSize = 10

	// ConservativeBatchSize conservative 档位下单次批处理的最大清理条目数
	ConservativeBatchSize = 4

	// FastTickInterval fast 档位下清理批次之间的调度间隔
	FastTickInterval = 50 * time.Millisecond

	// ConservativeTickInterval conservative 档位下清理批次之间的调度间隔
	ConservativeTickInterval = 200 * time.Millisecond

	// DefaultReleaseRate conservative 档位下每秒允许执行的释放回调数量
	DefaultReleaseRate = 50

	// DefaultReleaseBurst 释放限速器的突发容量
	DefaultReleaseBurst = 10

	// DefaultShutdownTimeout 优雅停机时排空清理队列的超时时间
	DefaultShutdownTimeout = 10 * time.Second
)

// 注册表容量相关常量
const (
	// DefaultCategory 事件源未声明类别时的归属类别
	DefaultCategory = "default"

	// DefaultCategoryCap 每个事件源类别默认允许的最大订阅数
	DefaultCategoryCap = 50

	// DefaultMaxListeners 单个事件名默认允许的监听器数量（超出仅告警）
	DefaultMaxListeners = 16

	// DefaultPatternCacheSize 订阅模式匹配器的编译缓存容量
	DefaultPatternCacheSize = 128

	// DefaultBulkParallelism 批量释放时的最大并发度
	DefaultBulkParallelism = 4
)

// 监听器移除相关常量
const (
	// DefaultRemovalTimeout conservative 档位下监听器强制物理移除的兜底时限
	DefaultRemovalTimeout = 250 * time.Millisecond

	// DefaultJanitorInterval 事件总线后台清扫已废弃监听器的间隔
	DefaultJanitorInterval = 30 * time.Second

	// DefaultWaitTimeout waitForEvent 未显式指定时的默认等待超时
	DefaultWaitTimeout = 5 * time.Second
)

// 所有权观察相关常量
const (
	// DefaultPollInterval 轮询观察器扫描弱引用存活状态的间隔
	DefaultPollInterval = time.Second
)

// 键值前缀常量，用于标准化外部存储后端的键值命名空间
const (
	// 设置存储相关键值前缀
	KeyPrefixSettings = "lifekit:settings"

	// 设置变更通知通道（redis pub/sub）
	ChannelSettingsChanged = "lifekit:settings:changed"

	// 设置变更通知通道（postgres LISTEN/NOTIFY）
	PgSettingsChannel = "lifekit_settings_changed"

	// 设置存储表名（postgres）
	PgSettingsTable = "lifekit_settings"
)

// ID 前缀常量，用于区分各注册表生成的标识符
const (
	IDPrefixResource     = "res_"
	IDPrefixSubscription = "sub_"
	IDPrefixPattern      = "pat_"
	IDPrefixGroup        = "grp_"
	IDPrefixTimer        = "tmr_"
	IDPrefixWatch        = "wch_"
)
