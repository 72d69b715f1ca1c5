// Package config 提供进程级应用配置
// 多来源按优先级合并：默认值 < YAML 文件 < 环境变量。
// 与 settings 存储的分工：这里是启动期静态配置，settings 是运行期可变配置。
package config

import (
	"lifekit-core/internal/constants"
	coreerrors "lifekit-core/internal/core/errors"
	"lifekit-core/internal/core/log"
)

// 设置存储后端名
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Root 应用配置根结构
type Root struct {
	Log          log.Config         `yaml:"log" json:"log"`
	Runtime      RuntimeConfig      `yaml:"runtime" json:"runtime"`
	Settings     SettingsConfig     `yaml:"settings" json:"settings"`
	Lifecycle    LifecycleConfig    `yaml:"lifecycle" json:"lifecycle"`
	Subscription SubscriptionConfig `yaml:"subscription" json:"subscription"`
	API          APIConfig          `yaml:"api" json:"api"`
}

// RuntimeConfig 运行时模式与档位
type RuntimeConfig struct {
	// Mode 会话模式：interactive / background
	Mode string `yaml:"mode" json:"mode"`
	// Profile 运行档位：fast / conservative，留空按模式推导
	Profile string `yaml:"profile" json:"profile"`
}

// SettingsConfig 设置存储配置
type SettingsConfig struct {
	// Backend 后端选择：memory / file / redis / postgres
	Backend  string           `yaml:"backend" json:"backend"`
	FilePath string           `yaml:"file_path" json:"file_path"`
	Redis    RedisSettings    `yaml:"redis" json:"redis"`
	Postgres PostgresSettings `yaml:"postgres" json:"postgres"`

	// Seed 启动时写入缺失键，已有值不覆盖
	Seed map[string]string `yaml:"seed" json:"seed"`
}

// RedisSettings redis 后端连接配置
type RedisSettings struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	PoolSize int    `yaml:"pool_size" json:"pool_size"`
}

// PostgresSettings postgres 后端连接配置
type PostgresSettings struct {
	DSN      string `yaml:"dsn" json:"dsn"`
	MaxConns int32  `yaml:"max_conns" json:"max_conns"`
	MinConns int32  `yaml:"min_conns" json:"min_conns"`
}

// LifecycleConfig 资源生命周期配置
type LifecycleConfig struct {
	// TypeCaps 各资源类型的登记上限，负值表示不限制
	TypeCaps map[string]int `yaml:"type_caps" json:"type_caps"`
}

// SubscriptionConfig 订阅注册表配置
type SubscriptionConfig struct {
	// CategoryCaps 各类别的订阅上限，负值表示不限制
	CategoryCaps map[string]int `yaml:"category_caps" json:"category_caps"`
}

// APIConfig 运维接口配置
type APIConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
}

// Validate 校验配置取值
func (r *Root) Validate() error {
	switch r.Log.Level {
	case "", constants.LogLevelDebug, constants.LogLevelInfo, constants.LogLevelWarn,
		constants.LogLevelError, constants.LogLevelFatal, constants.LogLevelPanic:
	default:
		return coreerrors.Newf(coreerrors.CodeValidationError, "unknown log level %q", r.Log.Level)
	}

	switch r.Log.Format {
	case "", constants.LogFormatText, constants.LogFormatJSON:
	default:
		return coreerrors.Newf(coreerrors.CodeValidationError, "unknown log format %q", r.Log.Format)
	}

	switch r.Log.Output {
	case "", constants.LogOutputStdout, constants.LogOutputStderr:
	case constants.LogOutputFile:
		if r.Log.File == "" {
			return coreerrors.NewValidationError("log.file", "required for file output")
		}
	default:
		return coreerrors.Newf(coreerrors.CodeValidationError, "unknown log output %q", r.Log.Output)
	}

	switch r.Settings.Backend {
	case BackendMemory, BackendRedis, BackendPostgres:
	case BackendFile:
		if r.Settings.FilePath == "" {
			return coreerrors.NewValidationError("settings.file_path", "required for file backend")
		}
	default:
		return coreerrors.Newf(coreerrors.CodeValidationError,
			"unknown settings backend %q", r.Settings.Backend)
	}

	if r.Settings.Backend == BackendRedis && r.Settings.Redis.Addr == "" {
		return coreerrors.NewValidationError("settings.redis.addr", "required for redis backend")
	}
	if r.Settings.Backend == BackendPostgres && r.Settings.Postgres.DSN == "" {
		return coreerrors.NewValidationError("settings.postgres.dsn", "required for postgres backend")
	}

	switch r.Runtime.Mode {
	case "", "interactive", "background":
	default:
		return coreerrors.Newf(coreerrors.CodeValidationError,
			"unknown runtime mode %q", r.Runtime.Mode)
	}

	switch r.Runtime.Profile {
	case "", "fast", "conservative":
	default:
		return coreerrors.Newf(coreerrors.CodeValidationError,
			"unknown runtime profile %q", r.Runtime.Profile)
	}

	if r.API.Enabled && r.API.ListenAddr == "" {
		return coreerrors.NewValidationError("api.listen_addr", "required when api is enabled")
	}

	return nil
}
