package app

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"lifekit-core/internal/constants"
	"lifekit-core/internal/core/dispose"
	coreerrors "lifekit-core/internal/core/errors"
	"lifekit-core/internal/core/events"
	"lifekit-core/internal/core/lifecycle"
	"lifekit-core/internal/core/log"
	"lifekit-core/internal/core/metrics"
	"lifekit-core/internal/core/safe"
	"lifekit-core/internal/core/session"
	"lifekit-core/internal/core/settings"
	"lifekit-core/internal/core/subscription"
	"lifekit-core/internal/core/timersvc"
	"lifekit-core/internal/core/types"
	"lifekit-core/internal/core/weakref"

	"github.com/benbjohnson/clock"
)

// bridgedKeys 运行时桥接到总线并自托管消费的设置键
var bridgedKeys = []string{
	constants.SettingProfile,
	constants.SettingFastBatch,
	constants.SettingSlowBatch,
	constants.SettingReleaseRate,
	constants.SettingDefaultCap,
	constants.SettingCategoryCaps,
	constants.SettingTypeCaps,
	constants.SettingMaxListeners,
}

// Options 运行时装配选项，零值可用
type Options struct {
	// Log 非 nil 时初始化全局日志
	Log *log.Config
	// Metrics 指标后端，nil 时内建内存指标并随运行时释放
	Metrics metrics.Metrics
	// Clock 时钟注入，nil 用真实时钟
	Clock clock.Clock
	// Settings 设置存储，nil 时内建内存存储并随运行时释放
	Settings settings.Store
	// Observer 属主观察器，nil 时内建 RuntimeObserver 并随运行时释放
	Observer weakref.Observer
	// Mode 初始交互模式，空值按 background 处理
	Mode session.Mode
	// Profile 初始运行档位，空值依次回落到存储的 runtime.profile、模式默认值
	Profile types.Profile
	// TypeCaps 资源类型上限，覆盖存储中的同名配置
	TypeCaps map[types.ResourceType]int
	// CategoryCaps 订阅类别上限，覆盖存储中的同名配置
	CategoryCaps map[string]int
}

// Runtime 资源生命周期运行时
// 按依赖顺序装配核心组件并注册进资源管理器，配置变更通过自身的
// 订阅注册表消费（运行时自己也是自己的第一个用户）
type Runtime struct {
	closed atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc

	manager   *dispose.ResourceManager
	metrics   metrics.Metrics
	timers    *timersvc.Service
	store     settings.Store
	bus       *events.Bus
	sess      *session.Session
	notifier  *settings.Notifier
	observer  weakref.Observer
	scheduler *lifecycle.Scheduler
	resources *lifecycle.Registry
	subs      *subscription.Registry

	logger log.Logger
}

// closerResource 把只有 Close 的组件适配成 Disposable
type closerResource struct {
	close func() error
}

func (c closerResource) Dispose() error { return c.close() }

// New 装配运行时
// 组件构建顺序：日志 → 指标 → 定时器 → 设置 → 总线 → 会话 → 桥接 →
// 观察器 → 调度器 → 资源注册表 → 订阅注册表；任一步失败即回退已建组件
func New(parentCtx context.Context, opts *Options) (*Runtime, error) {
	if opts == nil {
		opts = &Options{}
	}
	if opts.Log != nil {
		if err := log.Init(opts.Log); err != nil {
			return nil, coreerrors.Wrap(err, coreerrors.CodeConfigError, "init logging failed")
		}
	}
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	r := &Runtime{
		ctx:     ctx,
		cancel:  cancel,
		manager: dispose.NewResourceManager(),
		logger:  log.WithComponent("app.runtime"),
	}
	fail := func(err error) (*Runtime, error) {
		r.manager.DisposeAll()
		cancel()
		return nil, err
	}

	r.metrics = opts.Metrics
	if r.metrics == nil {
		owned, err := metrics.NewMetricsFactory(ctx).CreateMetrics(metrics.MetricsTypeMemory)
		if err != nil {
			return fail(coreerrors.Wrap(err, coreerrors.CodeInternal, "create metrics failed"))
		}
		r.metrics = owned
		if d, ok := owned.(dispose.Disposable); ok {
			r.register("metrics", d)
		}
	}
	metrics.SetGlobalMetrics(r.metrics)

	r.timers = timersvc.NewService(ctx, opts.Clock)
	r.register("timers", r.timers)

	r.store = opts.Settings
	if r.store == nil {
		r.store = settings.NewMemoryStore()
		r.register("settings", closerResource{close: r.store.Close})
	}

	stored, err := loadStored(ctx, r.store)
	if err != nil {
		return fail(err)
	}

	mode := session.ParseMode(string(opts.Mode))
	profile := opts.Profile
	if profile == "" && stored.profile != "" {
		profile = types.Profile(stored.profile)
	}
	if profile == "" {
		profile = session.DefaultProfile(mode)
	}
	profile = types.ParseProfile(string(profile))

	r.bus = events.NewBus(ctx, &events.Config{
		Name:         "core",
		Profile:      profile,
		MaxListeners: stored.maxListeners,
	}, r.timers, r.metrics)
	r.register("bus", r.bus)

	r.sess = session.New(r.bus, mode, profile)

	r.notifier, err = settings.NewNotifier(r.store, r.bus)
	if err != nil {
		return fail(err)
	}
	if err := r.notifier.BridgeAll(bridgedKeys...); err != nil {
		return fail(coreerrors.Wrap(err, coreerrors.CodeConfigError, "bridge setting keys failed"))
	}
	r.register("notifier", closerResource{close: r.notifier.Close})

	r.observer = opts.Observer
	if r.observer == nil {
		owned := weakref.NewRuntimeObserver(ctx, r.timers.Clock())
		r.observer = owned
		r.register("observer", owned)
	}

	r.scheduler, err = lifecycle.NewScheduler(ctx, &lifecycle.SchedulerConfig{
		Profile:     profile,
		FastBatch:   stored.fastBatch,
		SlowBatch:   stored.slowBatch,
		ReleaseRate: stored.releaseRate,
	}, r.timers, r.metrics)
	if err != nil {
		return fail(err)
	}
	r.register("scheduler", r.scheduler)

	r.resources = lifecycle.NewRegistry(ctx, &lifecycle.RegistryConfig{
		Observer:  r.observer,
		Scheduler: r.scheduler,
		TypeCaps:  mergeTypeCaps(stored.typeCaps, opts.TypeCaps),
	}, r.metrics)
	r.register("resources", r.resources)

	r.subs, err = subscription.NewRegistry(ctx, &subscription.Config{
		Observer:     r.observer,
		CategoryCaps: mergeCaps(stored.categoryCaps, opts.CategoryCaps),
		DefaultCap:   stored.defaultCap,
	}, r.metrics)
	if err != nil {
		return fail(err)
	}
	r.register("subscriptions", r.subs)

	if err := r.selfHost(); err != nil {
		return fail(err)
	}

	r.logger.Infof("runtime assembled: mode=%s profile=%s components=%d",
		mode, profile, r.manager.GetResourceCount())
	return r, nil
}

// register 注册组件，重名说明装配代码写错了
func (r *Runtime) register(name string, d dispose.Disposable) {
	if err := r.manager.Register(name, d); err != nil {
		r.logger.WithError(err).Errorf("register component %s failed", name)
	}
}

// Close 停机：先排空延迟清理队列，再显式清理资源，最后按装配的
// 相反顺序释放所有组件。幂等
func (r *Runtime) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultShutdownTimeout)
	defer cancel()

	if err := r.scheduler.Shutdown(ctx); err != nil {
		r.logger.WithError(err).Warnf("cleanup queue drain incomplete")
	}
	if result := r.resources.CleanupAll(ctx); result.Failed > 0 {
		r.logger.Warnf("final cleanup finished with failures (success=%d failed=%d)",
			result.Success, result.Failed)
	}

	// 组件释放受剩余停机预算约束，卡死的组件不拖垮整个 Close
	deadline, _ := ctx.Deadline()
	disposed := r.manager.DisposeWithTimeout(time.Until(deadline))
	r.cancel()

	if disposed.HasErrors() {
		return coreerrors.Newf(coreerrors.CodeCleanupError,
			"%d components failed to dispose", len(disposed.Errors))
	}
	r.logger.Infof("runtime closed")
	return nil
}

// ============================================================================
// 组件访问
// ============================================================================

// Resources 资源注册表
func (r *Runtime) Resources() *lifecycle.Registry { return r.resources }

// Subscriptions 订阅注册表
func (r *Runtime) Subscriptions() *subscription.Registry { return r.subs }

// Scheduler 延迟清理调度器
func (r *Runtime) Scheduler() *lifecycle.Scheduler { return r.scheduler }

// Bus 核心事件总线
func (r *Runtime) Bus() *events.Bus { return r.bus }

// Session 宿主会话
func (r *Runtime) Session() *session.Session { return r.sess }

// Settings 设置存储
func (r *Runtime) Settings() settings.Store { return r.store }

// Metrics 指标后端
func (r *Runtime) Metrics() metrics.Metrics { return r.metrics }

// Observer 属主观察器
func (r *Runtime) Observer() weakref.Observer { return r.observer }

// Stats 全量指标快照，附带进程级累计释放计数
func (r *Runtime) Stats() map[string]float64 {
	snap := metrics.Snapshot(r.metrics)
	if snap == nil {
		snap = make(map[string]float64, 3)
	}
	snap["dispose_count"] = float64(dispose.GetDisposeCount())
	gs := safe.GetStats()
	snap["goroutines_active"] = float64(gs.Active)
	snap["goroutine_panics"] = float64(gs.PanicCount)
	return snap
}

// Components 已装配组件名单，按装配顺序
func (r *Runtime) Components() []string { return r.manager.ListResources() }

// ============================================================================
// 自托管：配置与档位变更经自己的订阅注册表消费
// ============================================================================

// selfHost 订阅设置变更与档位变更事件
// 这些订阅走常规注册路径，类别 runtime，在快照与指标里可见
func (r *Runtime) selfHost() error {
	type hook struct {
		event string
		fn    events.Listener
	}
	hooks := []hook{
		{settings.ChangedEvent(constants.SettingProfile), r.onProfileSetting},
		{settings.ChangedEvent(constants.SettingFastBatch), r.onFastBatch},
		{settings.ChangedEvent(constants.SettingSlowBatch), r.onSlowBatch},
		{settings.ChangedEvent(constants.SettingReleaseRate), r.onReleaseRate},
		{settings.ChangedEvent(constants.SettingDefaultCap), r.onDefaultCap},
		{settings.ChangedEvent(constants.SettingCategoryCaps), r.onCategoryCaps},
		{settings.ChangedEvent(constants.SettingTypeCaps), r.onTypeCaps},
		{settings.ChangedEvent(constants.SettingMaxListeners), r.onMaxListeners},
		{session.EventProfileChanged, r.onProfileChanged},
	}
	for _, h := range hooks {
		_, err := subscription.Connect(r.subs, r.bus, h.event, h.fn,
			subscription.WithCategory("runtime"),
			subscription.WithOwnerName("runtime"),
			subscription.WithPriority(types.PriorityHigh),
			subscription.WithExemptFromObserver())
		if err != nil {
			return coreerrors.Wrapf(err, coreerrors.CodeInternal, "self-host %s failed", h.event)
		}
	}
	return nil
}

func (r *Runtime) onProfileSetting(args ...any) error {
	v, ok := firstString(args)
	if !ok || v == "" {
		return nil
	}
	r.sess.Update(r.sess.Mode(), types.ParseProfile(v))
	return nil
}

func (r *Runtime) onProfileChanged(args ...any) error {
	if len(args) == 0 {
		return nil
	}
	change, ok := args[0].(session.Change)
	if !ok {
		return nil
	}
	r.scheduler.SetProfile(change.Profile)
	r.bus.SetProfile(change.Profile)
	r.logger.WithField(constants.LogFieldProfile, string(change.Profile)).
		Infof("profile applied to scheduler and bus")
	return nil
}

func (r *Runtime) onFastBatch(args ...any) error {
	if n, ok := firstInt(args); ok && n > 0 {
		r.scheduler.SetBatchSizes(n, 0)
	}
	return nil
}

func (r *Runtime) onSlowBatch(args ...any) error {
	if n, ok := firstInt(args); ok && n > 0 {
		r.scheduler.SetBatchSizes(0, n)
	}
	return nil
}

func (r *Runtime) onReleaseRate(args ...any) error {
	v, ok := firstString(args)
	if !ok || v == "" {
		return nil
	}
	rate, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		r.logger.Warnf("ignore invalid release rate %q", v)
		return nil
	}
	if err := r.scheduler.SetReleaseRate(rate); err != nil {
		r.logger.WithError(err).Warnf("apply release rate %v rejected", rate)
	}
	return nil
}

func (r *Runtime) onDefaultCap(args ...any) error {
	if n, ok := firstInt(args); ok {
		r.subs.SetDefaultCap(n)
	}
	return nil
}

func (r *Runtime) onCategoryCaps(args ...any) error {
	caps, ok := firstCapMap(args, r.logger)
	if !ok {
		return nil
	}
	for category, limit := range caps {
		r.subs.SetCategoryCap(category, limit)
	}
	return nil
}

func (r *Runtime) onTypeCaps(args ...any) error {
	caps, ok := firstCapMap(args, r.logger)
	if !ok {
		return nil
	}
	for typ, limit := range caps {
		r.resources.SetTypeCap(types.ResourceType(typ), limit)
	}
	return nil
}

func (r *Runtime) onMaxListeners(args ...any) error {
	if n, ok := firstInt(args); ok && n > 0 {
		r.bus.SetMaxListeners(n)
	}
	return nil
}

// ============================================================================
// 设置读取与解析
// ============================================================================

// storedSettings 构建时从设置存储读到的覆盖值，零值表示用内置默认
type storedSettings struct {
	profile      string
	fastBatch    int
	slowBatch    int
	releaseRate  float64
	defaultCap   int
	maxListeners int
	categoryCaps map[string]int
	typeCaps     map[string]int
}

// loadStored 读取核心键，缺失的键保持零值，读取错误直接失败
func loadStored(ctx context.Context, store settings.Store) (storedSettings, error) {
	var s storedSettings
	var err error

	if s.profile, err = settings.StringOr(ctx, store, constants.SettingProfile, ""); err != nil {
		return s, err
	}
	readInt := func(key string, dst *int) error {
		v, err := settings.IntOr(ctx, store, key, 0)
		if err != nil {
			return err
		}
		*dst = int(v)
		return nil
	}
	if err = readInt(constants.SettingFastBatch, &s.fastBatch); err != nil {
		return s, err
	}
	if err = readInt(constants.SettingSlowBatch, &s.slowBatch); err != nil {
		return s, err
	}
	if err = readInt(constants.SettingDefaultCap, &s.defaultCap); err != nil {
		return s, err
	}
	if err = readInt(constants.SettingMaxListeners, &s.maxListeners); err != nil {
		return s, err
	}
	if s.releaseRate, err = settings.FloatOr(ctx, store, constants.SettingReleaseRate, 0); err != nil {
		return s, err
	}
	if s.categoryCaps, err = readCapMap(ctx, store, constants.SettingCategoryCaps); err != nil {
		return s, err
	}
	if s.typeCaps, err = readCapMap(ctx, store, constants.SettingTypeCaps); err != nil {
		return s, err
	}
	return s, nil
}

// readCapMap 读上限表，JSON 对象 {"name": cap}
func readCapMap(ctx context.Context, store settings.Store, key string) (map[string]int, error) {
	raw, err := settings.StringOr(ctx, store, key, "")
	if err != nil || raw == "" {
		return nil, err
	}
	var caps map[string]int
	if perr := json.Unmarshal([]byte(raw), &caps); perr != nil {
		return nil, coreerrors.Wrapf(perr, coreerrors.CodeValidationError,
			"setting %q is not a valid cap map: %q", key, raw)
	}
	return caps, nil
}

// mergeCaps 选项覆盖存储值，按键合并
func mergeCaps(stored, override map[string]int) map[string]int {
	if len(stored) == 0 {
		return override
	}
	merged := make(map[string]int, len(stored)+len(override))
	for k, v := range stored {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

// mergeTypeCaps 同 mergeCaps，键为资源类型
func mergeTypeCaps(stored map[string]int, override map[types.ResourceType]int) map[types.ResourceType]int {
	if len(stored) == 0 && len(override) == 0 {
		return nil
	}
	merged := make(map[types.ResourceType]int, len(stored)+len(override))
	for k, v := range stored {
		merged[types.ResourceType(k)] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

// firstString 取事件首个参数的字符串值
func firstString(args []any) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	s, ok := args[0].(string)
	return s, ok
}

// firstInt 取事件首个参数并按整数解析
func firstInt(args []any) (int, bool) {
	v, ok := firstString(args)
	if !ok || v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

// firstCapMap 取事件首个参数并按上限表解析
func firstCapMap(args []any, logger log.Logger) (map[string]int, bool) {
	v, ok := firstString(args)
	if !ok || v == "" {
		return nil, false
	}
	var caps map[string]int
	if err := json.Unmarshal([]byte(v), &caps); err != nil {
		logger.Warnf("ignore invalid cap map %q", v)
		return nil, false
	}
	return caps, true
}
