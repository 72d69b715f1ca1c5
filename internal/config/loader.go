package config

import (
	"sort"

	coreerrors "lifekit-core/internal/core/errors"
	"lifekit-core/internal/core/log"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "LIFEKIT"

// Loader 多来源配置加载器
type Loader struct {
	sources []Source
}

// NewLoader 创建加载器
func NewLoader() *Loader {
	return &Loader{
		sources: make([]Source, 0),
	}
}

// AddSource 注册配置来源
func (l *Loader) AddSource(s Source) {
	l.sources = append(l.sources, s)
}

// Load 按优先级升序依次加载并校验
func (l *Loader) Load() (*Root, error) {
	if len(l.sources) == 0 {
		return nil, coreerrors.New(coreerrors.CodeInvalidParam, "no configuration sources registered")
	}

	sorted := make([]Source, len(l.sources))
	copy(sorted, l.sources)
	sort.Sort(ByPriority(sorted))

	cfg := &Root{}
	for _, s := range sorted {
		log.Debugf("loading configuration from source: %s (priority %d)", s.Name(), s.Priority())
		if err := s.LoadInto(cfg); err != nil {
			return nil, coreerrors.Wrapf(err, coreerrors.CodeInvalidParam,
				"failed to load configuration from source %s", s.Name())
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load 便捷入口：默认值 + 配置文件 + 环境变量
// configFile 为空时在常规位置查找
func Load(configFile string) (*Root, error) {
	l := NewLoader()
	l.AddSource(NewDefaultSource())
	if path := FindConfigFile(configFile); path != "" {
		l.AddSource(NewYAMLSource(path))
		log.Debugf("using config file: %s", path)
	}
	l.AddSource(NewEnvSource(EnvPrefix))
	return l.Load()
}
