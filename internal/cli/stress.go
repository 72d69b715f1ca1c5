package cli

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"lifekit-core/internal/app"
	"lifekit-core/internal/core/lifecycle"
	"lifekit-core/internal/core/subscription"
	"lifekit-core/internal/core/types"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
// stress - 批量压测
// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

var (
	stressResources int
	stressSubs      int
	stressEmits     int
	stressEmitters  int
	stressProfile   string
)

// stressTypes 压测用的资源类型轮换表
var stressTypes = []types.ResourceType{"conn", "file", "cache", "timer"}

// stressCmd 批量制造资源与订阅并汇报耗时
var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Churn resources and subscriptions, print telemetry",
	Long: `Track many resources, connect many subscriptions, emit events concurrently,
then tear everything down and print the timing plus runtime telemetry.

Example:
  lifekit stress
  lifekit stress --resources 2000 --subs 500 --emits 5000`,
	Run: runStress,
}

func init() {
	stressCmd.Flags().IntVar(&stressResources, "resources", 500, "Number of resources to track")
	stressCmd.Flags().IntVar(&stressSubs, "subs", 200, "Number of subscriptions to connect")
	stressCmd.Flags().IntVar(&stressEmits, "emits", 1000, "Number of events to emit")
	stressCmd.Flags().IntVar(&stressEmitters, "emitters", 4, "Concurrent emitter goroutines")
	stressCmd.Flags().StringVar(&stressProfile, "profile", "fast", "Cleanup profile: fast/conservative")
}

type stressOwner struct {
	seq int
}

func runStress(cmd *cobra.Command, args []string) {
	out := NewOutput(noColor)
	ctx := context.Background()

	if stressResources <= 0 || stressSubs <= 0 || stressEmits <= 0 || stressEmitters <= 0 {
		exitErr("all stress dimensions must be positive")
	}

	rt, err := app.New(ctx, &app.Options{Profile: types.ParseProfile(stressProfile)})
	if err != nil {
		exitErr("failed to assemble runtime: %v", err)
	}

	out.Header("🔥 Lifekit Stress")
	out.KeyValue("Profile", string(rt.Session().Profile()))
	out.KeyValue("Resources", strconv.Itoa(stressResources))
	out.KeyValue("Subscriptions", strconv.Itoa(stressSubs))
	out.KeyValue("Emits", fmt.Sprintf("%d across %d goroutines", stressEmits, stressEmitters))
	fmt.Println()

	// 压测规模超出默认软硬上限，放开再跑
	rt.Bus().SetMaxListeners(0)
	rt.Subscriptions().SetDefaultCap(stressSubs + 16)

	// ── 资源登记 ──
	var released atomic.Int64
	owners := make([]*stressOwner, 0, stressResources)
	start := time.Now()
	for i := 0; i < stressResources; i++ {
		owner := &stressOwner{seq: i}
		owners = append(owners, owner)
		_, err := lifecycle.Track(rt.Resources(), owner,
			func(ctx context.Context) error {
				released.Add(1)
				return nil
			},
			stressTypes[i%len(stressTypes)])
		if err != nil {
			exitErr("track %d failed: %v", i, err)
		}
	}
	trackElapsed := time.Since(start)
	out.Success("tracked %d resources in %s", rt.Resources().TrackedCount(), FormatDuration(trackElapsed))

	// ── 订阅建立 ──
	groupID, err := rt.Subscriptions().NewGroup(false)
	if err != nil {
		exitErr("failed to create group: %v", err)
	}
	var handled atomic.Int64
	start = time.Now()
	for i := 0; i < stressSubs; i++ {
		_, err := subscription.Connect(rt.Subscriptions(), rt.Bus(), "stress.pulse",
			func(args ...any) error {
				handled.Add(1)
				return nil
			},
			subscription.WithCategory(fmt.Sprintf("stress-%d", i%4)),
			subscription.WithGroup(groupID))
		if err != nil {
			exitErr("connect %d failed: %v", i, err)
		}
	}
	subElapsed := time.Since(start)
	out.Success("connected %d subscriptions in %s", stressSubs, FormatDuration(subElapsed))
	for i := 0; i < 4; i++ {
		cat := fmt.Sprintf("stress-%d", i)
		out.Plain("  %-12s %d", cat, rt.Subscriptions().CountByCategory(cat))
	}

	// ── 并发发射 ──
	var delivered atomic.Int64
	start = time.Now()
	var g errgroup.Group
	for w := 0; w < stressEmitters; w++ {
		w := w
		g.Go(func() error {
			for i := w; i < stressEmits; i += stressEmitters {
				delivered.Add(int64(rt.Bus().Emit("stress.pulse", i)))
			}
			return nil
		})
	}
	_ = g.Wait()
	emitElapsed := time.Since(start)
	rate := float64(stressEmits) / emitElapsed.Seconds()
	out.Success("emitted %d events in %s (%.0f events/s, %d deliveries, %d handled)",
		stressEmits, FormatDuration(emitElapsed), rate, delivered.Load(), handled.Load())

	// ── 拆除 ──
	start = time.Now()
	groupResult := rt.Subscriptions().DisconnectGroup(ctx, groupID)
	cleanupResult := rt.Resources().CleanupAll(ctx)
	teardownElapsed := time.Since(start)
	if groupResult.Failed > 0 || cleanupResult.Failed > 0 {
		out.Warning("teardown finished with failures (subs=%d/%d, resources=%d/%d) in %s",
			groupResult.Success, groupResult.Attempted(),
			cleanupResult.Success, cleanupResult.Attempted(), FormatDuration(teardownElapsed))
	} else {
		out.Success("teardown released %d subscriptions and %d resources in %s",
			groupResult.Success, cleanupResult.Success, FormatDuration(teardownElapsed))
	}

	// ── 指标 ──
	out.Section("Telemetry")
	renderStats(rt.Stats())

	if err := rt.Close(); err != nil {
		out.Warning("runtime close: %v", err)
		return
	}
	out.Success("stress run complete (%d owners pinned, %d releases observed)", len(owners), released.Load())
}
