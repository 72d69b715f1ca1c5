package cli

import (
	"context"
	"strings"
	"testing"
	"time"

	"lifekit-core/internal/app"
	"lifekit-core/internal/core/session"
	"lifekit-core/internal/core/types"
)

// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
// 命令解析测试
// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

func TestREPL_CommandParsing(t *testing.T) {
	tests := []struct {
		name        string
		commandLine string
		expectCmd   string
		expectArgs  []string
	}{
		{
			name:        "simple command",
			commandLine: "stats",
			expectCmd:   "stats",
			expectArgs:  []string{},
		},
		{
			name:        "command with args",
			commandLine: "track file audit.log",
			expectCmd:   "track",
			expectArgs:  []string{"file", "audit.log"},
		},
		{
			name:        "command with leading/trailing spaces",
			commandLine: "  ls  ",
			expectCmd:   "ls",
			expectArgs:  []string{},
		},
		{
			name:        "settings subcommand",
			commandLine: "settings set runtime.profile fast",
			expectCmd:   "settings",
			expectArgs:  []string{"set", "runtime.profile", "fast"},
		},
		{
			name:        "uppercase command is lowered",
			commandLine: "EMIT tick",
			expectCmd:   "emit",
			expectArgs:  []string{"tick"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := strings.TrimSpace(tt.commandLine)
			parts := strings.Fields(line)
			if len(parts) == 0 {
				return
			}

			cmd := strings.ToLower(parts[0])
			args := parts[1:]

			if cmd != tt.expectCmd {
				t.Errorf("expected cmd %q, got %q", tt.expectCmd, cmd)
			}
			if len(args) != len(tt.expectArgs) {
				t.Errorf("expected %d args, got %d", len(tt.expectArgs), len(args))
			}
			for i, arg := range args {
				if i < len(tt.expectArgs) && arg != tt.expectArgs[i] {
					t.Errorf("arg[%d]: expected %q, got %q", i, tt.expectArgs[i], arg)
				}
			}
		})
	}
}

func TestCommandAliases(t *testing.T) {
	aliases := map[string][]string{
		"help":       {"h", "?"},
		"exit":       {"quit", "q"},
		"clear":      {"cls"},
		"ls":         {"resources"},
		"disconnect": {"dc"},
		"stats":      {"st"},
	}

	commandSet := make(map[string]bool)
	for _, cmd := range GetAllCommands() {
		commandSet[cmd] = true
	}

	for primary, aliasList := range aliases {
		if !commandSet[primary] {
			t.Errorf("primary command %q not found in command list", primary)
		}
		for _, alias := range aliasList {
			if !commandSet[alias] {
				t.Errorf("alias %q for command %q not found in command list", alias, primary)
			}
		}
	}
}

// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
// 输出工具测试
// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

func TestOutput_Messages(t *testing.T) {
	output := NewOutput(true) // 禁用颜色以便测试

	tests := []struct {
		name string
		fn   func()
	}{
		{"success", func() { output.Success("test message") }},
		{"error", func() { output.Error("test error") }},
		{"warning", func() { output.Warning("test warning") }},
		{"info", func() { output.Info("test info") }},
		{"plain", func() { output.Plain("test plain") }},
		{"header", func() { output.Header("Test Header") }},
		{"section", func() { output.Section("Test Section") }},
		{"keyvalue", func() { output.KeyValue("Key", "value") }},
		{"separator", func() { output.Separator() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("function panicked: %v", r)
				}
			}()
			tt.fn()
		})
	}
}

func TestOutput_Table(t *testing.T) {
	table := NewTable("ID", "NAME", "STATUS")

	table.AddRow("1", "Test", "Active")
	table.AddRow("2", "Example", "Inactive")

	if len(table.rows) != 2 {
		t.Errorf("expected 2 rows, got %d", len(table.rows))
	}
	if len(table.headers) != 3 {
		t.Errorf("expected 3 headers, got %d", len(table.headers))
	}

	// 列宽随内容自动增长
	table.AddRow("3", "VeryLongNameHere", "Active")
	expectedWidth := len("VeryLongNameHere")
	if table.widths[1] < expectedWidth {
		t.Errorf("expected width >= %d, got %d", expectedWidth, table.widths[1])
	}

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Render panicked: %v", r)
		}
	}()
	table.Render()
}

// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
// 工具函数测试
// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{3500 * time.Millisecond, "3.5s"},
		{90 * time.Second, "1m 30s"},
		{2*time.Hour + 15*time.Minute, "2h 15m"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("expected unchanged string, got %q", got)
	}
	if got := Truncate("averylongstring", 8); got != "averyl.." {
		t.Errorf("expected truncated string, got %q", got)
	}
	if got := Truncate("ab", 2); got != "ab" {
		t.Errorf("expected %q, got %q", "ab", got)
	}
}

func TestSortedKeys(t *testing.T) {
	keys := SortedKeys(map[string]float64{"b": 1, "a": 2, "c": 3})
	want := []string{"a", "b", "c"}
	for i, k := range want {
		if keys[i] != k {
			t.Errorf("expected keys[%d]=%q, got %q", i, k, keys[i])
		}
	}
}

// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
// REPL 命令分发测试（不依赖终端）
// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

func newTestREPL(t *testing.T) *REPL {
	t.Helper()
	ctx := context.Background()
	rt, err := app.New(ctx, &app.Options{Mode: session.ModeInteractive})
	if err != nil {
		t.Fatalf("failed to assemble runtime: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	return newREPLCore(ctx, rt, NewOutput(true))
}

func TestREPL_ResourceCommands(t *testing.T) {
	r := newTestREPL(t)

	r.executeCommand("track file audit.log")
	r.executeCommand("track conn 10.0.0.5:5432")
	if got := r.rt.Resources().TrackedCount(); got != 2 {
		t.Fatalf("expected 2 tracked resources, got %d", got)
	}

	// 列表与过滤不改变状态
	r.executeCommand("ls")
	r.executeCommand("ls file")
	if got := r.rt.Resources().TrackedCount(); got != 2 {
		t.Errorf("expected 2 tracked resources after ls, got %d", got)
	}

	r.executeCommand("cleanup-all file")
	if got := r.rt.Resources().TrackedCount(); got != 1 {
		t.Errorf("expected 1 tracked resource after typed cleanup, got %d", got)
	}

	r.executeCommand("cleanup-all")
	if got := r.rt.Resources().TrackedCount(); got != 0 {
		t.Errorf("expected 0 tracked resources after cleanup-all, got %d", got)
	}
}

func TestREPL_TrackPriorityToken(t *testing.T) {
	r := newTestREPL(t)

	r.executeCommand("track file wal-segment priority=critical")
	views := r.rt.Resources().Describe()
	if len(views) != 1 {
		t.Fatalf("expected 1 view, got %d", len(views))
	}
	if views[0].Priority != "critical" {
		t.Errorf("expected critical priority, got %s", views[0].Priority)
	}
	if views[0].Name != "wal-segment" {
		t.Errorf("priority token should not leak into the name, got %q", views[0].Name)
	}

	// 非法优先级直接拒绝，不登记
	r.executeCommand("track file bad priority=urgent")
	if got := r.rt.Resources().TrackedCount(); got != 1 {
		t.Errorf("expected invalid priority to be rejected, got %d resources", got)
	}
}

func TestREPL_SingleCleanup(t *testing.T) {
	r := newTestREPL(t)

	r.executeCommand("track cache sessions")
	views := r.rt.Resources().Describe()
	if len(views) != 1 {
		t.Fatalf("expected 1 view, got %d", len(views))
	}

	r.executeCommand("cleanup " + views[0].ID)
	if got := r.rt.Resources().TrackedCount(); got != 0 {
		t.Errorf("expected 0 tracked resources, got %d", got)
	}

	// 未知 ID 不报错也不崩溃
	r.executeCommand("cleanup res_does-not-exist")
}

func TestREPL_EventCommands(t *testing.T) {
	r := newTestREPL(t)
	before := r.rt.Subscriptions().ActiveCount()

	r.executeCommand("connect tick io")
	if got := r.rt.Subscriptions().ActiveCount(); got != before+1 {
		t.Fatalf("expected %d active subscriptions, got %d", before+1, got)
	}

	r.executeCommand("emit tick hello")
	var subID string
	for _, v := range r.rt.Subscriptions().Describe() {
		if v.Category == "io" {
			subID = v.ID
			if v.Invocations != 1 {
				t.Errorf("expected 1 invocation, got %d", v.Invocations)
			}
		}
	}
	if subID == "" {
		t.Fatal("subscription with category io not found")
	}

	r.executeCommand("disconnect " + subID)
	if got := r.rt.Subscriptions().ActiveCount(); got != before {
		t.Errorf("expected %d active subscriptions after disconnect, got %d", before, got)
	}
}

func TestREPL_SettingsCascade(t *testing.T) {
	r := newTestREPL(t)

	// 交互模式默认 fast
	if got := r.rt.Session().Profile(); got != types.ProfileFast {
		t.Fatalf("expected initial profile fast, got %s", got)
	}

	// 写设置经由变更通知切换运行档位
	r.executeCommand("settings set runtime.profile conservative")
	if got := r.rt.Session().Profile(); got != types.ProfileConservative {
		t.Errorf("expected session profile conservative, got %s", got)
	}
	if got := r.rt.Scheduler().Profile(); got != types.ProfileConservative {
		t.Errorf("expected scheduler profile conservative, got %s", got)
	}

	r.executeCommand("profile fast")
	if got := r.rt.Session().Profile(); got != types.ProfileFast {
		t.Errorf("expected session profile fast, got %s", got)
	}

	r.executeCommand("settings del runtime.profile")
}

func TestREPL_UnknownCommand(t *testing.T) {
	r := newTestREPL(t)

	defer func() {
		if e := recover(); e != nil {
			t.Errorf("unknown command panicked: %v", e)
		}
	}()
	r.executeCommand("frobnicate all the things")
	r.executeCommand("help")
	r.executeCommand("stats")
	r.executeCommand("groups")
}
