package constants

// ============================================================================
// 设置键定义
// ============================================================================
// 所有运行期可调参数统一通过 settings.Store 读取，键名集中在这里，
// 避免各组件散落魔法字符串。

const (
	// SettingProfile 运行档位（fast / conservative）
	SettingProfile = "runtime.profile"

	// SettingFastBatch fast 档位批大小覆盖值
	SettingFastBatch = "cleanup.fast_batch"

	// SettingSlowBatch conservative 档位批大小覆盖值
	SettingSlowBatch = "cleanup.slow_batch"

	// SettingReleaseRate conservative 档位释放限速（次/秒）
	SettingReleaseRate = "cleanup.release_rate"

	// SettingDefaultCap 订阅类别未单独配置时的默认上限
	SettingDefaultCap = "subscription.default_cap"

	// SettingCategoryCaps 订阅类别上限表，JSON 形如 {"display":10}
	SettingCategoryCaps = "subscription.category_caps"

	// SettingTypeCaps 资源类型上限表，JSON 形如 {"timer":100}
	SettingTypeCaps = "lifecycle.type_caps"

	// SettingMaxListeners 事件总线单事件监听器软上限
	SettingMaxListeners = "events.max_listeners"
)
