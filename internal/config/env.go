package config

import (
	"os"
	"strconv"
)

// EnvSource 从环境变量加载配置
// 变量名为 <prefix>_<KEY>，空值视为未设置
type EnvSource struct {
	prefix string
}

// NewEnvSource 创建环境变量来源
func NewEnvSource(prefix string) *EnvSource {
	return &EnvSource{prefix: prefix}
}

// Name 返回来源名
func (s *EnvSource) Name() string {
	return "env"
}

// Priority 返回来源优先级
func (s *EnvSource) Priority() int {
	return PriorityEnv
}

// LoadInto 加载环境变量到配置结构
func (s *EnvSource) LoadInto(cfg *Root) error {
	s.loadString("LOG_LEVEL", &cfg.Log.Level)
	s.loadString("LOG_FORMAT", &cfg.Log.Format)
	s.loadString("LOG_OUTPUT", &cfg.Log.Output)
	s.loadString("LOG_FILE", &cfg.Log.File)

	s.loadString("RUNTIME_MODE", &cfg.Runtime.Mode)
	s.loadString("RUNTIME_PROFILE", &cfg.Runtime.Profile)

	s.loadString("SETTINGS_BACKEND", &cfg.Settings.Backend)
	s.loadString("SETTINGS_FILE_PATH", &cfg.Settings.FilePath)
	s.loadString("SETTINGS_REDIS_ADDR", &cfg.Settings.Redis.Addr)
	s.loadString("SETTINGS_REDIS_PASSWORD", &cfg.Settings.Redis.Password)
	s.loadInt("SETTINGS_REDIS_DB", &cfg.Settings.Redis.DB)
	s.loadString("SETTINGS_POSTGRES_DSN", &cfg.Settings.Postgres.DSN)

	s.loadBool("API_ENABLED", &cfg.API.Enabled)
	s.loadString("API_LISTEN", &cfg.API.ListenAddr)

	return nil
}

func (s *EnvSource) get(key string) string {
	return os.Getenv(s.prefix + "_" + key)
}

func (s *EnvSource) loadString(key string, target *string) {
	if v := s.get(key); v != "" {
		*target = v
	}
}

func (s *EnvSource) loadInt(key string, target *int) {
	if v := s.get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

func (s *EnvSource) loadBool(key string, target *bool) {
	if v := s.get(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*target = b
		}
	}
}
