package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"lifekit-core/internal/app"
	"lifekit-core/internal/core/session"

	"github.com/spf13/cobra"
)

// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
// inspect - 交互式检查
// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

// inspectCmd 启动交互式检查环境
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Start the interactive inspection shell",
	Long: `Start an embedded runtime and an interactive shell to poke at it:
track resources, wire subscriptions, emit events, and flip settings live.

Example:
  lifekit inspect`,
	Run: runInspect,
}

func runInspect(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 信号触发循环退出
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	rt, err := app.New(ctx, &app.Options{Mode: session.ModeInteractive})
	if err != nil {
		exitErr("failed to assemble runtime: %v", err)
	}

	repl, err := NewREPL(ctx, rt)
	if err != nil {
		rt.Close()
		exitErr("%v", err)
	}

	repl.Start()

	if err := rt.Close(); err != nil {
		exitErr("runtime shutdown: %v", err)
	}
}
