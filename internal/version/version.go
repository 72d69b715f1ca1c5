// Package version 提供构建版本信息
package version

import (
	"os"
	"strings"
)

var (
	// Version 版本号，构建时通过 -ldflags 注入，默认 "dev"
	Version = "dev"

	// BuildTime 构建时间，通过 -ldflags 注入
	BuildTime = ""

	// GitCommit Git 提交哈希，通过 -ldflags 注入
	GitCommit = ""
)

func init() {
	if Version == "dev" {
		if v := readVersionFile(); v != "" {
			Version = v
		}
	}
}

// readVersionFile 从工作目录的 VERSION 文件读取版本号
func readVersionFile() string {
	data, err := os.ReadFile("VERSION")
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.TrimSpace(string(data)), "v")
}

// Short 简短版本号
func Short() string {
	return "v" + Version
}

// Full 完整版本信息，包含构建时间与提交哈希
func Full() string {
	s := Short()
	if BuildTime != "" {
		s += " (built " + BuildTime + ")"
	}
	if len(GitCommit) >= 8 {
		s += " commit " + GitCommit[:8]
	}
	return s
}
