package config

import (
	"os"
	"path/filepath"
	"strings"

	coreerrors "lifekit-core/internal/core/errors"

	"gopkg.in/yaml.v3"
)

// YAMLSource 从 YAML 文件加载配置
type YAMLSource struct {
	paths []string
}

// NewYAMLSource 创建 YAML 来源，文件按顺序加载，后者覆盖前者
func NewYAMLSource(paths ...string) *YAMLSource {
	return &YAMLSource{paths: paths}
}

// Name 返回来源名
func (s *YAMLSource) Name() string {
	return "yaml"
}

// Priority 返回来源优先级
func (s *YAMLSource) Priority() int {
	return PriorityYAML
}

// LoadInto 加载 YAML 内容到配置结构
// 不存在的文件静默跳过，解析失败报错
func (s *YAMLSource) LoadInto(cfg *Root) error {
	for _, path := range s.paths {
		if path == "" {
			continue
		}

		expanded, err := expandPath(path)
		if err != nil {
			return coreerrors.Wrapf(err, coreerrors.CodeInvalidParam, "failed to expand path %q", path)
		}

		if _, err := os.Stat(expanded); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(expanded)
		if err != nil {
			return coreerrors.Wrapf(err, coreerrors.CodeStorageError, "failed to read config file %q", expanded)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return coreerrors.Wrapf(err, coreerrors.CodeInvalidParam, "failed to parse YAML file %q", expanded)
		}
	}
	return nil
}

// expandPath 展开 ~ 前缀
func expandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}

// FindConfigFile 解析配置文件路径
// 显式指定的直接返回，否则在常规位置里找第一个存在的
func FindConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	candidates := []string{
		"lifekit.yaml",
		"lifekit.yml",
		"~/.lifekit/config.yaml",
	}
	for _, c := range candidates {
		expanded, err := expandPath(c)
		if err != nil {
			continue
		}
		if _, err := os.Stat(expanded); err == nil {
			return expanded
		}
	}
	return ""
}
