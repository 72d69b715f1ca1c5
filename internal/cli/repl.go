package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"lifekit-core/internal/app"
	coreerrors "lifekit-core/internal/core/errors"
	"lifekit-core/internal/core/log"

	"github.com/chzyer/readline"
	"github.com/mattn/go-isatty"
)

// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
// REPL - 运行时交互式检查环境
// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

// REPL 交互式检查环境，直接操作一个内嵌运行时
type REPL struct {
	rt        *app.Runtime
	ctx       context.Context
	readline  *readline.Instance
	output    *Output
	completer *CommandCompleter
	startTime time.Time
}

// newREPLCore 构建不带终端的 REPL，命令分发测试用
func newREPLCore(ctx context.Context, rt *app.Runtime, output *Output) *REPL {
	return &REPL{
		rt:        rt,
		ctx:       ctx,
		output:    output,
		completer: NewCommandCompleter(),
		startTime: time.Now(),
	}
}

// NewREPL 创建 REPL 实例
func NewREPL(ctx context.Context, rt *app.Runtime) (*REPL, error) {
	// 检查 stdin 是否是 TTY
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return nil, fmt.Errorf("stdin is not a terminal (TTY required for the interactive shell)\n" +
			"Please run directly in a terminal, not through pipe/redirect")
	}

	r := newREPLCore(ctx, rt, NewOutput(noColor))

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[32mlifekit>\033[0m ", // 绿色提示符
		HistoryFile:     os.ExpandEnv("$HOME/.lifekit_history"),
		HistoryLimit:    500,
		AutoComplete:    r.completer.BuildCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdin:           os.Stdin,
		Stdout:          os.Stdout,
		Stderr:          os.Stderr,
	})
	if err != nil {
		return nil, coreerrors.WrapError(err, "failed to initialize readline")
	}
	r.readline = rl
	return r, nil
}

// Start 启动交互循环
func (r *REPL) Start() {
	r.printWelcome()
	defer r.Stop()

	for {
		select {
		case <-r.ctx.Done():
			log.Infof("repl: context cancelled, shutting down")
			return
		default:
			line, err := r.readline.Readline()
			if err == readline.ErrInterrupt {
				// Ctrl+C
				if len(line) == 0 {
					r.output.Info("Use 'exit' or 'quit' to exit")
					continue
				}
			} else if err == io.EOF {
				return
			} else if err != nil {
				log.Errorf("repl: readline error: %v", err)
				r.output.Error("Failed to read input: %v", err)
				time.Sleep(100 * time.Millisecond)
				continue
			}

			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			r.executeCommand(line)
		}
	}
}

// Stop 关闭终端
func (r *REPL) Stop() {
	if r.readline != nil {
		r.readline.Close()
	}
}

// printWelcome 打印欢迎信息
func (r *REPL) printWelcome() {
	fmt.Println("")
	r.output.Header("🔍 Lifekit Inspection Shell")
	r.output.Plain("  Type 'help' to see available commands")
	r.output.Plain("  Type 'exit' or 'quit' to quit")
	r.output.Plain("  Press Tab for command completion")
	fmt.Println("")
}

// executeCommand 解析并分发命令
func (r *REPL) executeCommand(commandLine string) {
	parts := strings.Fields(commandLine)
	if len(parts) == 0 {
		return
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "h", "?":
		r.cmdHelp(args)
	case "exit", "quit", "q":
		r.cmdExit(args)
	case "clear", "cls":
		r.cmdClear(args)
	case "track":
		r.cmdTrack(args)
	case "ls", "resources":
		r.cmdList(args)
	case "cleanup":
		r.cmdCleanup(args)
	case "cleanup-all":
		r.cmdCleanupAll(args)
	case "connect":
		r.cmdConnect(args)
	case "disconnect", "dc":
		r.cmdDisconnect(args)
	case "emit":
		r.cmdEmit(args)
	case "subs":
		r.cmdSubs(args)
	case "groups":
		r.cmdGroups(args)
	case "stats", "st":
		r.cmdStats(args)
	case "settings":
		r.cmdSettings(args)
	case "profile":
		r.cmdProfile(args)
	default:
		r.output.Error("Unknown command: %s", cmd)
		r.output.Info("Type 'help' to see available commands")
	}
}
