package cli

import (
	"context"
	"strconv"

	"lifekit-core/internal/app"
	"lifekit-core/internal/constants"
	"lifekit-core/internal/core/lifecycle"
	"lifekit-core/internal/core/session"
	"lifekit-core/internal/core/subscription"
	"lifekit-core/internal/core/types"

	"github.com/spf13/cobra"
)

// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
// demo - 运行时能力演示
// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

// demoCmd 演示运行时主要能力
var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a scripted walkthrough of the runtime",
	Long: `Assemble a runtime, track a few resources, wire event subscriptions,
flip the cleanup profile through the settings store, and tear everything down.

Example:
  lifekit demo`,
	Run: runDemo,
}

type demoConn struct {
	addr string
}

type demoFile struct {
	path string
}

func runDemo(cmd *cobra.Command, args []string) {
	out := NewOutput(noColor)
	ctx := context.Background()

	out.Header("🧭 Lifekit Walkthrough")

	rt, err := app.New(ctx, &app.Options{Mode: session.ModeInteractive})
	if err != nil {
		exitErr("failed to assemble runtime: %v", err)
	}
	out.Success("runtime assembled (mode=%s, profile=%s)", rt.Session().Mode(), rt.Session().Profile())

	// ── 资源登记 ──
	out.Section("1. Track resources")
	conns := []*demoConn{{addr: "10.0.0.5:5432"}, {addr: "10.0.0.9:6379"}}
	logFile := &demoFile{path: "/var/log/app.log"}

	for _, conn := range conns {
		addr := conn.addr
		id, err := lifecycle.Track(rt.Resources(), conn,
			func(ctx context.Context) error {
				out.Plain("    releasing conn %s", addr)
				return nil
			},
			"conn",
			lifecycle.WithName(addr),
			lifecycle.WithPriority(types.PriorityHigh))
		if err != nil {
			exitErr("failed to track conn: %v", err)
		}
		out.Plain("  tracked %s (%s)", id, addr)
	}

	fileID, err := lifecycle.Track(rt.Resources(), logFile,
		func(ctx context.Context) error {
			out.Plain("    releasing file %s", logFile.path)
			return nil
		},
		"file",
		lifecycle.WithName(logFile.path),
		lifecycle.WithPersistent())
	if err != nil {
		exitErr("failed to track file: %v", err)
	}
	out.Plain("  tracked %s (%s, persistent)", fileID, logFile.path)
	renderResources(rt.Resources().Describe())

	// ── 事件订阅 ──
	out.Section("2. Event subscriptions")
	groupID, err := rt.Subscriptions().NewGroup(false)
	if err != nil {
		exitErr("failed to create group: %v", err)
	}

	var done, failed int
	_, err = subscription.Connect(rt.Subscriptions(), rt.Bus(), "task.done",
		func(args ...any) error {
			done++
			return nil
		},
		subscription.WithCategory("worker"),
		subscription.WithGroup(groupID),
		subscription.WithOwnerName("demo.done-counter"))
	if err != nil {
		exitErr("failed to connect: %v", err)
	}
	_, err = subscription.Connect(rt.Subscriptions(), rt.Bus(), "task.failed",
		func(args ...any) error {
			failed++
			return nil
		},
		subscription.WithCategory("worker"),
		subscription.WithGroup(groupID),
		subscription.WithOwnerName("demo.failure-counter"))
	if err != nil {
		exitErr("failed to connect: %v", err)
	}

	delivered := 0
	for i := 0; i < 3; i++ {
		delivered += rt.Bus().Emit("task.done", strconv.Itoa(i))
	}
	delivered += rt.Bus().Emit("task.failed", "disk full")
	out.Plain("  emitted 4 events, %d deliveries (done=%d, failed=%d)", delivered, done, failed)

	workerSubs := make([]subscription.View, 0, 2)
	for _, v := range rt.Subscriptions().Describe() {
		if v.Category == "worker" {
			workerSubs = append(workerSubs, v)
		}
	}
	renderSubscriptions(workerSubs)

	// ── 设置级联 ──
	out.Section("3. Settings-driven profile switch")
	out.Plain("  profile before: session=%s, scheduler=%s", rt.Session().Profile(), rt.Scheduler().Profile())
	if err := rt.Settings().SetString(ctx, constants.SettingProfile, string(types.ProfileConservative)); err != nil {
		exitErr("failed to write setting: %v", err)
	}
	out.Plain("  wrote %s=%s", constants.SettingProfile, types.ProfileConservative)
	out.Plain("  profile after:  session=%s, scheduler=%s", rt.Session().Profile(), rt.Scheduler().Profile())

	// ── 拆除 ──
	out.Section("4. Teardown")
	groupResult := rt.Subscriptions().DisconnectGroup(ctx, groupID)
	out.Plain("  group disconnected: %d subscriptions", groupResult.Success)

	connResult := rt.Resources().CleanupByType(ctx, "conn")
	out.Plain("  conn cleanup: %d released, %d failed", connResult.Success, connResult.Failed)

	allResult := rt.Resources().CleanupAll(ctx)
	out.Plain("  final cleanup: %d released, %d still tracked", allResult.Success, rt.Resources().TrackedCount())

	// ── 指标 ──
	out.Section("5. Telemetry")
	renderStats(rt.Stats())

	out.Separator()
	if err := rt.Close(); err != nil {
		out.Warning("runtime close: %v", err)
		return
	}
	out.Success("walkthrough complete (%d conns, log file %s)", len(conns), logFile.path)
}
