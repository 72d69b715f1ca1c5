package config

import "lifekit-core/internal/constants"

// DefaultSource 默认值来源
type DefaultSource struct{}

// NewDefaultSource 创建默认值来源
func NewDefaultSource() *DefaultSource {
	return &DefaultSource{}
}

// Name 返回来源名
func (s *DefaultSource) Name() string {
	return "defaults"
}

// Priority 返回来源优先级
func (s *DefaultSource) Priority() int {
	return PriorityDefaults
}

// LoadInto 写入默认配置
func (s *DefaultSource) LoadInto(cfg *Root) error {
	cfg.Log.Level = constants.LogLevelInfo
	cfg.Log.Format = constants.LogFormatText
	cfg.Log.Output = constants.LogOutputStdout

	cfg.Runtime.Mode = "background"

	cfg.Settings.Backend = BackendMemory

	cfg.API.Enabled = false
	cfg.API.ListenAddr = "127.0.0.1:7070"

	return nil
}
