package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"lifekit-core/internal/constants"
	"lifekit-core/internal/core/lifecycle"
	"lifekit-core/internal/core/subscription"
	"lifekit-core/internal/core/types"
	"lifekit-core/internal/core/weakref"
)

// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
// REPL 命令实现
// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

// inspectOwner REPL 登记资源的属主载体，强引用钉住直到显式清理
type inspectOwner struct {
	label string
}

// cmdHelp 显示帮助
func (r *REPL) cmdHelp(args []string) {
	r.output.Header("📖 Available Commands")

	fmt.Println("  General:")
	fmt.Println("    help, h, ?                   Show this help message")
	fmt.Println("    stats, st                    Show runtime state and telemetry")
	fmt.Println("    clear, cls                   Clear screen")
	fmt.Println("    exit, quit, q                Exit the shell")
	fmt.Println("")
	fmt.Println("  Resources:")
	fmt.Println("    track <type> [name] [priority=<level>]")
	fmt.Println("                                 Track a pinned resource of the given type")
	fmt.Println("    ls [type]                    List tracked resources")
	fmt.Println("    cleanup <id>                 Release one resource")
	fmt.Println("    cleanup-all [type]           Release all resources (optionally one type)")
	fmt.Println("")
	fmt.Println("  Events:")
	fmt.Println("    connect <event> [category]   Subscribe to a bus event")
	fmt.Println("    disconnect <id>              Remove a subscription")
	fmt.Println("    emit <event> [args...]       Emit an event on the bus")
	fmt.Println("    subs [category]              List subscriptions")
	fmt.Println("    groups                       List subscription groups")
	fmt.Println("")
	fmt.Println("  Settings:")
	fmt.Println("    settings list                List all stored settings")
	fmt.Println("    settings get <key>           Read a setting")
	fmt.Println("    settings set <key> <value>   Write a setting (cascades to the runtime)")
	fmt.Println("    settings del <key>           Delete a setting")
	fmt.Println("    profile [fast|conservative]  Show or switch the cleanup profile")
	fmt.Println("")
}

// cmdExit 退出
func (r *REPL) cmdExit(args []string) {
	r.output.Success("Goodbye! (Uptime: %s)", FormatDuration(time.Since(r.startTime)))
	r.Stop()
}

// cmdClear 清屏
func (r *REPL) cmdClear(args []string) {
	fmt.Print("\033[H\033[2J")
	r.printWelcome()
}

// cmdTrack 登记一个钉住的资源
func (r *REPL) cmdTrack(args []string) {
	if len(args) == 0 {
		r.output.Error("Usage: track <type> [name] [priority=<level>]")
		return
	}
	typ := types.ResourceType(args[0])

	priority := types.PriorityNormal
	nameParts := make([]string, 0, len(args)-1)
	for _, arg := range args[1:] {
		if strings.HasPrefix(arg, "priority=") {
			p, ok := types.ParsePriority(strings.TrimPrefix(arg, "priority="))
			if !ok {
				r.output.Error("Unknown priority %q (defer|low|normal|high|critical)",
					strings.TrimPrefix(arg, "priority="))
				return
			}
			priority = p
			continue
		}
		nameParts = append(nameParts, arg)
	}
	name := strings.Join(nameParts, " ")
	if name == "" {
		name = fmt.Sprintf("%s-%d", typ, r.rt.Resources().TrackedCountByType(typ)+1)
	}

	handle := weakref.NewStrong(&inspectOwner{label: name})
	id, err := r.rt.Resources().TrackHandle(handle,
		func(ctx context.Context) error { return nil },
		typ,
		lifecycle.WithName(name),
		lifecycle.WithPriority(priority))
	if err != nil {
		r.output.Error("Track failed: %v", err)
		return
	}
	r.output.Success("Tracked %s (type=%s, name=%s, priority=%s)", id, typ, name, priority)
}

// cmdList 列出资源
func (r *REPL) cmdList(args []string) {
	views := r.rt.Resources().Describe()
	if len(args) > 0 {
		filtered := views[:0]
		for _, v := range views {
			if v.Type == args[0] {
				filtered = append(filtered, v)
			}
		}
		views = filtered
	}
	renderResources(views)
}

// cmdCleanup 释放单个资源
func (r *REPL) cmdCleanup(args []string) {
	if len(args) != 1 {
		r.output.Error("Usage: cleanup <id>")
		return
	}
	ok, err := r.rt.Resources().Cleanup(r.ctx, args[0])
	if err != nil {
		r.output.Error("Cleanup failed: %v", err)
		return
	}
	if !ok {
		r.output.Warning("No resource with id %s", args[0])
		return
	}
	r.output.Success("Released %s", args[0])
}

// cmdCleanupAll 批量释放
func (r *REPL) cmdCleanupAll(args []string) {
	var result lifecycle.Result
	if len(args) > 0 {
		result = r.rt.Resources().CleanupByType(r.ctx, types.ResourceType(args[0]))
	} else {
		result = r.rt.Resources().CleanupAll(r.ctx)
	}

	if result.Failed > 0 {
		r.output.Warning("Released %d, failed %d", result.Success, result.Failed)
	} else {
		r.output.Success("Released %d resources", result.Success)
	}
	for typ, count := range result.PerType {
		r.output.Plain("  %-12s released=%d failed=%d", typ, count.Succeeded, count.Failed)
	}
}

// cmdConnect 订阅总线事件
func (r *REPL) cmdConnect(args []string) {
	if len(args) == 0 {
		r.output.Error("Usage: connect <event> [category]")
		return
	}
	event := args[0]
	opts := []subscription.ConnectOption{subscription.WithOwnerName("repl")}
	if len(args) > 1 {
		opts = append(opts, subscription.WithCategory(args[1]))
	}

	id, err := subscription.Connect(r.rt.Subscriptions(), r.rt.Bus(), event,
		func(args ...any) error { return nil }, opts...)
	if err != nil {
		r.output.Error("Connect failed: %v", err)
		return
	}
	r.output.Success("Connected %s to event %q", id, event)
}

// cmdDisconnect 断开订阅
func (r *REPL) cmdDisconnect(args []string) {
	if len(args) != 1 {
		r.output.Error("Usage: disconnect <id>")
		return
	}
	ok, err := r.rt.Subscriptions().Disconnect(r.ctx, args[0])
	if err != nil {
		r.output.Error("Disconnect failed: %v", err)
		return
	}
	if !ok {
		r.output.Warning("No subscription with id %s", args[0])
		return
	}
	r.output.Success("Disconnected %s", args[0])
}

// cmdEmit 发射事件
func (r *REPL) cmdEmit(args []string) {
	if len(args) == 0 {
		r.output.Error("Usage: emit <event> [args...]")
		return
	}
	eventArgs := make([]any, 0, len(args)-1)
	for _, a := range args[1:] {
		eventArgs = append(eventArgs, a)
	}
	delivered := r.rt.Bus().Emit(args[0], eventArgs...)
	r.output.Success("Emitted %q to %d listeners", args[0], delivered)
}

// cmdSubs 列出订阅
func (r *REPL) cmdSubs(args []string) {
	views := r.rt.Subscriptions().Describe()
	if len(args) > 0 {
		filtered := views[:0]
		for _, v := range views {
			if v.Category == args[0] {
				filtered = append(filtered, v)
			}
		}
		views = filtered
	}
	renderSubscriptions(views)
}

// cmdGroups 列出订阅分组
func (r *REPL) cmdGroups(args []string) {
	renderGroups(r.rt.Subscriptions().Groups())
}

// cmdStats 显示运行时状态与指标
func (r *REPL) cmdStats(args []string) {
	r.output.Header("📊 Runtime State")
	r.output.KeyValue("Session", r.rt.Session().ID())
	r.output.KeyValue("Mode", string(r.rt.Session().Mode()))
	r.output.KeyValue("Profile", string(r.rt.Session().Profile()))
	r.output.KeyValue("Tracked resources", fmt.Sprintf("%d", r.rt.Resources().TrackedCount()))
	r.output.KeyValue("Active subscriptions", fmt.Sprintf("%d", r.rt.Subscriptions().ActiveCount()))
	r.output.KeyValue("Watch patterns", fmt.Sprintf("%d", r.rt.Subscriptions().PatternCount()))
	r.output.KeyValue("Pending releases", fmt.Sprintf("%d", r.rt.Scheduler().PendingCount()))
	r.output.KeyValue("Uptime", FormatDuration(time.Since(r.startTime)))
	fmt.Println("")
	renderStats(r.rt.Stats())
}

// cmdSettings 设置存储操作
func (r *REPL) cmdSettings(args []string) {
	if len(args) == 0 {
		r.output.Error("Usage: settings list|get|set|del ...")
		return
	}

	switch strings.ToLower(args[0]) {
	case "list":
		keys, err := r.rt.Settings().Keys(r.ctx)
		if err != nil {
			r.output.Error("List failed: %v", err)
			return
		}
		if len(keys) == 0 {
			r.output.Info("No settings stored")
			return
		}
		sort.Strings(keys)
		table := NewTable("KEY", "VALUE")
		for _, key := range keys {
			value, err := r.rt.Settings().GetString(r.ctx, key)
			if err != nil {
				continue
			}
			table.AddRow(key, Truncate(value, 48))
		}
		table.Render()
	case "get":
		if len(args) != 2 {
			r.output.Error("Usage: settings get <key>")
			return
		}
		value, err := r.rt.Settings().GetString(r.ctx, args[1])
		if err != nil {
			r.output.Error("Get failed: %v", err)
			return
		}
		r.output.Plain("  %s = %s", args[1], value)
	case "set":
		if len(args) < 3 {
			r.output.Error("Usage: settings set <key> <value>")
			return
		}
		value := strings.Join(args[2:], " ")
		if err := r.rt.Settings().SetString(r.ctx, args[1], value); err != nil {
			r.output.Error("Set failed: %v", err)
			return
		}
		r.output.Success("Set %s = %s", args[1], value)
	case "del":
		if len(args) != 2 {
			r.output.Error("Usage: settings del <key>")
			return
		}
		if err := r.rt.Settings().Delete(r.ctx, args[1]); err != nil {
			r.output.Error("Delete failed: %v", err)
			return
		}
		r.output.Success("Deleted %s", args[1])
	default:
		r.output.Error("Unknown settings subcommand: %s", args[0])
	}
}

// cmdProfile 显示或切换运行档位
// 写入经由设置变更级联生效，和直接改会话走同一条路径
func (r *REPL) cmdProfile(args []string) {
	if len(args) == 0 {
		r.output.KeyValue("Session profile", string(r.rt.Session().Profile()))
		r.output.KeyValue("Scheduler profile", string(r.rt.Scheduler().Profile()))
		return
	}

	profile := types.ParseProfile(args[0])
	if err := r.rt.Settings().SetString(r.ctx, constants.SettingProfile, string(profile)); err != nil {
		r.output.Error("Profile switch failed: %v", err)
		return
	}
	r.output.Success("Profile switched to %s (session=%s, scheduler=%s)",
		profile, r.rt.Session().Profile(), r.rt.Scheduler().Profile())
}
