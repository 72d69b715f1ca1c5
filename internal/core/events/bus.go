package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"lifekit-core/internal/constants"
	"lifekit-core/internal/core/dispose"
	coreerrors "lifekit-core/internal/core/errors"
	"lifekit-core/internal/core/log"
	"lifekit-core/internal/core/metrics"
	"lifekit-core/internal/core/safe"
	"lifekit-core/internal/core/timersvc"
	"lifekit-core/internal/core/types"

	"github.com/benbjohnson/clock"
)

// entry 单个监听器：有序列表成员
// condemned 置位后对 Emit 立即不可见，物理移除由清扫或兜底定时器完成
type entry struct {
	id        ListenerID
	fn        Listener
	once      bool
	fired     atomic.Bool
	condemned atomic.Bool
}

// anyEntry 通配监听器
type anyEntry struct {
	id ListenerID
	fn AnyListener
}

// Config 事件总线配置
type Config struct {
	// Name 总线名，出现在日志里
	Name string
	// Profile 初始运行档位，决定 signal 监听器的移除策略
	Profile types.Profile
	// MaxListeners 单事件监听器软上限，0 表示使用默认值，负值不告警
	MaxListeners int
	// RemovalTimeout conservative 档位下监听器物理移除的兜底时限
	RemovalTimeout time.Duration
	// JanitorInterval 清扫已废弃监听器的间隔
	JanitorInterval time.Duration
}

// Bus 事件总线
// 同步有序分发；监听器错误与 panic 被捕获并重路由为 error 事件
type Bus struct {
	*dispose.ResourceBase

	mu        sync.Mutex
	listeners map[string][]*entry
	anyList   []*anyEntry
	warned    map[string]bool

	seq          atomic.Int64
	maxListeners atomic.Int64
	profile      atomic.Value
	destroyed    atomic.Bool

	removalTimeout  time.Duration
	janitorInterval time.Duration
	janitorID       string

	timers  *timersvc.Service
	clk     clock.Clock
	metrics metrics.Metrics
	logger  log.Logger
	name    string
}

// NewBus 创建事件总线
// timers 提供 conservative 档位的兜底移除与周期清扫，可为 nil（此时移除退化为立即执行）；
// m 为 nil 时不记录指标
func NewBus(parentCtx context.Context, cfg *Config, timers *timersvc.Service, m metrics.Metrics) *Bus {
	if cfg == nil {
		cfg = &Config{}
	}
	name := cfg.Name
	if name == "" {
		name = "bus"
	}
	maxListeners := cfg.MaxListeners
	if maxListeners == 0 {
		maxListeners = constants.DefaultMaxListeners
	}
	removalTimeout := cfg.RemovalTimeout
	if removalTimeout <= 0 {
		removalTimeout = constants.DefaultRemovalTimeout
	}
	janitorInterval := cfg.JanitorInterval
	if janitorInterval <= 0 {
		janitorInterval = constants.DefaultJanitorInterval
	}

	b := &Bus{
		ResourceBase:    dispose.NewResourceBase("EventBus." + name),
		listeners:       make(map[string][]*entry),
		warned:          make(map[string]bool),
		removalTimeout:  removalTimeout,
		janitorInterval: janitorInterval,
		timers:          timers,
		metrics:         m,
		logger:          log.WithComponent("events." + name),
		name:            name,
	}
	b.maxListeners.Store(int64(maxListeners))
	b.profile.Store(types.ParseProfile(string(cfg.Profile)))
	if timers != nil {
		b.clk = timers.Clock()
	} else {
		b.clk = clock.New()
	}
	b.ResourceBase.Initialize(parentCtx)

	if timers != nil {
		if id, err := timers.ScheduleRepeating(janitorInterval, b.sweep); err == nil {
			b.janitorID = id
		} else {
			b.logger.WithError(err).Warnf("janitor not scheduled")
		}
	}
	return b
}

// On 注册监听器，追加到事件监听列表末尾
func (b *Bus) On(event string, fn Listener, opts ...Option) (ListenerID, error) {
	return b.add(event, fn, false, false, opts)
}

// Once 注册一次性监听器，首次分发后移除
func (b *Bus) Once(event string, fn Listener, opts ...Option) (ListenerID, error) {
	return b.add(event, fn, true, false, opts)
}

// Prepend 注册监听器，插入到事件监听列表开头
func (b *Bus) Prepend(event string, fn Listener, opts ...Option) (ListenerID, error) {
	return b.add(event, fn, false, true, opts)
}

// PrependOnce 注册一次性监听器，插入到开头
func (b *Bus) PrependOnce(event string, fn Listener, opts ...Option) (ListenerID, error) {
	return b.add(event, fn, true, true, opts)
}

// add 监听器注册的统一入口
func (b *Bus) add(event string, fn Listener, once, prepend bool, opts []Option) (ListenerID, error) {
	if b.destroyed.Load() {
		return 0, coreerrors.New(coreerrors.CodeResourceClosed, "event bus is destroyed")
	}
	if event == "" {
		return 0, coreerrors.NewValidationError("event", "event name cannot be empty")
	}
	if fn == nil {
		return 0, coreerrors.NewValidationError("fn", "listener cannot be nil")
	}

	options := &addOptions{}
	for _, opt := range opts {
		opt(options)
	}
	// 已取消的上下文：监听器不注册
	if options.signal != nil && options.signal.Err() != nil {
		return 0, nil
	}

	id := ListenerID(b.seq.Add(1))
	e := &entry{id: id, fn: fn, once: once}

	b.mu.Lock()
	list := b.listeners[event]
	if prepend {
		list = append([]*entry{e}, list...)
	} else {
		list = append(list, e)
	}
	b.listeners[event] = list
	count := len(list)
	max := int(b.maxListeners.Load())
	warn := max > 0 && count > max && !b.warned[event]
	if warn {
		b.warned[event] = true
	}
	b.mu.Unlock()

	if warn {
		b.logger.Warnf("listener count %d for event %q exceeds soft limit %d", count, event, max)
	}
	if options.signal != nil {
		b.watchSignal(options.signal, event, id)
	}
	return id, nil
}

// watchSignal 绑定监听器生命周期到取消上下文
func (b *Bus) watchSignal(sig context.Context, event string, id ListenerID) {
	safe.GoWithContext(b.Ctx(), "events.signal."+b.name, func(ctx context.Context) {
		select {
		case <-ctx.Done():
			return
		case <-sig.Done():
		}

		if b.Profile() == types.ProfileFast {
			// fast：低延迟环境，立即同步移除
			if b.Off(event, id) {
				metrics.RecordListenerRemoved(b.metrics, "immediate")
			}
			return
		}

		// conservative：先屏蔽分发，物理移除在兜底时限内完成
		if !b.condemn(event, id) {
			return
		}
		metrics.RecordListenerRemoved(b.metrics, "condemned")
		if b.timers == nil {
			b.Off(event, id)
			return
		}
		if _, err := b.timers.ScheduleOnce(b.removalTimeout, func() {
			if b.Off(event, id) {
				metrics.RecordListenerRemoved(b.metrics, "forced")
			}
		}); err != nil {
			b.Off(event, id)
		}
	})
}

// condemn 屏蔽监听器，返回是否找到且首次屏蔽
func (b *Bus) condemn(event string, id ListenerID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.listeners[event] {
		if e.id == id {
			return e.condemned.CompareAndSwap(false, true)
		}
	}
	return false
}

// Off 移除监听器，返回是否存在
func (b *Bus) Off(event string, id ListenerID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.listeners[event]
	for i, e := range list {
		if e.id == id {
			list = append(list[:i], list[i+1:]...)
			if len(list) == 0 {
				delete(b.listeners, event)
			} else {
				b.listeners[event] = list
			}
			return true
		}
	}
	return false
}

// OffAll 移除指定事件的全部监听器；不带参数时清空所有事件
// 返回移除的监听器数
func (b *Bus) OffAll(events ...string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	removed := 0
	if len(events) == 0 {
		for _, list := range b.listeners {
			removed += len(list)
		}
		b.listeners = make(map[string][]*entry)
		return removed
	}
	for _, event := range events {
		removed += len(b.listeners[event])
		delete(b.listeners, event)
	}
	return removed
}

// OnAny 注册通配监听器，每次分发都会收到事件名与参数
func (b *Bus) OnAny(fn AnyListener) (ListenerID, error) {
	if b.destroyed.Load() {
		return 0, coreerrors.New(coreerrors.CodeResourceClosed, "event bus is destroyed")
	}
	if fn == nil {
		return 0, coreerrors.NewValidationError("fn", "listener cannot be nil")
	}
	id := ListenerID(b.seq.Add(1))
	b.mu.Lock()
	b.anyList = append(b.anyList, &anyEntry{id: id, fn: fn})
	b.mu.Unlock()
	return id, nil
}

// OffAny 移除通配监听器
func (b *Bus) OffAny(id ListenerID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, ae := range b.anyList {
		if ae.id == id {
			b.anyList = append(b.anyList[:i], b.anyList[i+1:]...)
			return true
		}
	}
	return false
}

// Emit 同步按注册顺序分发事件，返回实际调用的监听器数
func (b *Bus) Emit(event string, args ...any) int {
	if b.destroyed.Load() {
		b.logger.Debugf("emit %q ignored: bus destroyed", event)
		return 0
	}
	return b.dispatch(event, args)
}

// dispatch 分发实现，销毁流程内部直接调用以发出终结事件
func (b *Bus) dispatch(event string, args []any) int {
	b.mu.Lock()
	list := b.listeners[event]
	snapshot := make([]*entry, len(list))
	copy(snapshot, list)
	anySnap := make([]*anyEntry, len(b.anyList))
	copy(anySnap, b.anyList)
	b.mu.Unlock()

	invoked := 0
	for _, e := range snapshot {
		if e.condemned.Load() {
			continue
		}
		// once 监听器跨任意次 Emit 恰好执行一次，包括监听器内重入 Emit 的情形
		if e.once && !e.fired.CompareAndSwap(false, true) {
			continue
		}
		invoked++
		if err := b.invoke(e.fn, args); err != nil {
			b.routeError(event, err)
		}
	}
	b.removeOnce(event, snapshot)

	for _, ae := range anySnap {
		if err := b.invokeAny(ae.fn, event, args); err != nil {
			b.logger.WithError(err).Warnf("wildcard listener failed for event %q", event)
		}
	}

	metrics.RecordEmit(b.metrics, event)
	return invoked
}

// invoke 调用监听器，panic 转为错误
func (b *Bus) invoke(fn Listener, args []any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = coreerrors.Newf(coreerrors.CodeInternal, "listener panic: %v", r)
		}
	}()
	return fn(args...)
}

// invokeAny 调用通配监听器，panic 转为错误
func (b *Bus) invokeAny(fn AnyListener, event string, args []any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = coreerrors.Newf(coreerrors.CodeInternal, "wildcard listener panic: %v", r)
		}
	}()
	return fn(event, args...)
}

// routeError 监听器错误重路由为 error 事件
// error 事件自身监听器的错误只记录，避免无限递归
func (b *Bus) routeError(event string, err error) {
	if event == EventError {
		b.logger.WithError(err).Errorf("error listener failed")
		return
	}
	b.logger.WithError(err).Warnf("listener failed for event %q, rerouting to %q", event, EventError)
	b.dispatch(EventError, []any{EmitError{Event: event, Err: err}})
}

// removeOnce 整轮分发结束后移除已触发的 once 监听器
// 按快照倒序索引处理，避免移除时的下标漂移
func (b *Bus) removeOnce(event string, snapshot []*entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	live := b.listeners[event]
	for i := len(snapshot) - 1; i >= 0; i-- {
		e := snapshot[i]
		if !e.once || !e.fired.Load() {
			continue
		}
		for j := len(live) - 1; j >= 0; j-- {
			if live[j] == e {
				live = append(live[:j], live[j+1:]...)
				break
			}
		}
	}
	if len(live) == 0 {
		delete(b.listeners, event)
	} else {
		b.listeners[event] = live
	}
}

// sweep 清扫已屏蔽的监听器
func (b *Bus) sweep() {
	b.mu.Lock()
	removed := 0
	for event, list := range b.listeners {
		var keep []*entry
		for _, e := range list {
			if e.condemned.Load() {
				removed++
				continue
			}
			keep = append(keep, e)
		}
		if len(keep) == 0 {
			delete(b.listeners, event)
		} else {
			b.listeners[event] = keep
		}
	}
	b.mu.Unlock()

	if removed > 0 {
		b.logger.Debugf("janitor swept %d condemned listeners", removed)
		for i := 0; i < removed; i++ {
			metrics.RecordListenerRemoved(b.metrics, "swept")
		}
	}
}

// WaitFor 等待事件首次分发并返回其参数
// 超时返回 TIMEOUT，外部取消返回 CANCELLED；任何退出路径都注销内部监听器
func (b *Bus) WaitFor(ctx context.Context, event string, timeout time.Duration) ([]any, error) {
	if timeout <= 0 {
		timeout = constants.DefaultWaitTimeout
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ch := make(chan []any, 1)
	id, err := b.Once(event, func(args ...any) error {
		select {
		case ch <- args:
		default:
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	defer b.Off(event, id)

	timer := b.clk.Timer(timeout)
	defer timer.Stop()

	select {
	case args := <-ch:
		return args, nil
	case <-timer.C:
		return nil, coreerrors.Newf(coreerrors.CodeTimeout, "timeout waiting for event %q", event)
	case <-ctx.Done():
		return nil, coreerrors.Newf(coreerrors.CodeCancelled, "wait for event %q cancelled", event)
	case <-b.Ctx().Done():
		return nil, coreerrors.New(coreerrors.CodeResourceClosed, "event bus is closing")
	}
}

// Name 总线名
func (b *Bus) Name() string {
	return b.name
}

// ListenerCount 指定事件当前物理存在的监听器数（含已屏蔽未清扫的）
func (b *Bus) ListenerCount(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners[event])
}

// EventNames 所有有监听器的事件名
func (b *Bus) EventNames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.listeners))
	for event := range b.listeners {
		names = append(names, event)
	}
	return names
}

// SetMaxListeners 调整单事件监听器软上限，0 表示不限制
func (b *Bus) SetMaxListeners(n int) {
	b.maxListeners.Store(int64(n))
}

// SetProfile 切换运行档位，影响后续 signal 监听器的移除策略
func (b *Bus) SetProfile(p types.Profile) {
	b.profile.Store(p)
}

// Profile 当前运行档位
func (b *Bus) Profile() types.Profile {
	return b.profile.Load().(types.Profile)
}

// Destroy 销毁总线：停止清扫，发出终结 destroyed 事件，随后移除全部监听器
// 销毁后的注册与分发被拒绝
func (b *Bus) Destroy() error {
	if !b.destroyed.CompareAndSwap(false, true) {
		return coreerrors.New(coreerrors.CodeResourceClosed, "event bus already destroyed")
	}
	if b.timers != nil && b.janitorID != "" {
		b.timers.Cancel(b.janitorID)
	}

	// 终结事件是最后一个可观察动作，此时监听器仍然在位
	b.dispatch(EventDestroyed, nil)

	b.mu.Lock()
	total := 0
	for _, list := range b.listeners {
		total += len(list)
	}
	b.listeners = make(map[string][]*entry)
	b.anyList = nil
	b.mu.Unlock()

	b.logger.Infof("event bus %q destroyed, %d listeners removed", b.name, total)
	return nil
}

// Dispose 实现 Disposable
func (b *Bus) Dispose() error {
	if err := b.Destroy(); err != nil && !coreerrors.IsCode(err, coreerrors.CodeResourceClosed) {
		return err
	}
	return b.CloseWithError()
}

// 编译时接口断言
var (
	_ Source             = (*Bus)(nil)
	_ dispose.Disposable = (*Bus)(nil)
)
