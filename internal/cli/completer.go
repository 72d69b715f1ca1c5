package cli

import (
	"github.com/chzyer/readline"
)

// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
// Tab 补全
// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

// CommandCompleter 命令补全器
type CommandCompleter struct{}

// NewCommandCompleter 创建补全器
func NewCommandCompleter() *CommandCompleter {
	return &CommandCompleter{}
}

// BuildCompleter 构建 readline 补全器
func (c *CommandCompleter) BuildCompleter() *readline.PrefixCompleter {
	items := make([]readline.PrefixCompleterInterface, 0)

	// 基础命令
	items = append(items,
		readline.PcItem("help"),
		readline.PcItem("exit"),
		readline.PcItem("quit"),
		readline.PcItem("clear"),
		readline.PcItem("stats"),
	)

	// 资源命令
	items = append(items,
		readline.PcItem("track",
			readline.PcItem("conn"),
			readline.PcItem("file"),
			readline.PcItem("cache"),
			readline.PcItem("timer"),
		),
		readline.PcItem("ls"),
		readline.PcItem("cleanup"),
		readline.PcItem("cleanup-all",
			readline.PcItem("conn"),
			readline.PcItem("file"),
			readline.PcItem("cache"),
			readline.PcItem("timer"),
		),
	)

	// 订阅与事件命令
	items = append(items,
		readline.PcItem("connect"),
		readline.PcItem("disconnect"),
		readline.PcItem("emit"),
		readline.PcItem("subs"),
		readline.PcItem("groups"),
	)

	// 设置命令
	items = append(items,
		readline.PcItem("settings",
			readline.PcItem("list"),
			readline.PcItem("get"),
			readline.PcItem("set"),
			readline.PcItem("del"),
		),
		readline.PcItem("profile",
			readline.PcItem("fast"),
			readline.PcItem("conservative"),
		),
	)

	return readline.NewPrefixCompleter(items...)
}

// GetAllCommands 获取所有命令与别名
func GetAllCommands() []string {
	return []string{
		"help", "h", "?",
		"exit", "quit", "q",
		"clear", "cls",
		"track",
		"ls", "resources",
		"cleanup",
		"cleanup-all",
		"connect",
		"disconnect", "dc",
		"emit",
		"subs",
		"groups",
		"stats", "st",
		"settings",
		"profile",
	}
}
