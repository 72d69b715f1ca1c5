package weakref

import (
	"context"
	"sync"
	"time"

	"lifekit-core/internal/constants"
	"lifekit-core/internal/core/dispose"
	coreerrors "lifekit-core/internal/core/errors"
	"lifekit-core/internal/core/log"
	"lifekit-core/internal/core/safe"

	"github.com/benbjohnson/clock"
)

// pollEntry 轮询观察项
type pollEntry struct {
	h  Handle
	fn func()
}

// PollingObserver 基于定期扫描的观察器
// 按固定间隔检查句柄存活性。死亡发现延迟以扫描间隔为上界，不保证精确时刻
type PollingObserver struct {
	*dispose.ResourceBase

	mu      sync.Mutex
	entries map[string]*pollEntry

	interval time.Duration
	clk      clock.Clock
	logger   log.Logger
}

// NewPollingObserver 创建轮询观察器并启动扫描循环
// interval <= 0 时使用默认扫描间隔，clk 为 nil 时使用真实时钟
func NewPollingObserver(parentCtx context.Context, interval time.Duration, clk clock.Clock) *PollingObserver {
	if interval <= 0 {
		interval = constants.DefaultPollInterval
	}
	if clk == nil {
		clk = clock.New()
	}
	o := &PollingObserver{
		ResourceBase: dispose.NewResourceBase("PollingObserver"),
		entries:      make(map[string]*pollEntry),
		interval:     interval,
		clk:          clk,
		logger:       log.WithComponent("weakref.polling"),
	}
	o.ResourceBase.Initialize(parentCtx)
	safe.GoWithContext(o.Ctx(), "weakref.polling.scan", o.scanLoop)
	return o
}

// Observe 注册回收回调，句柄死亡将在下一次扫描时被发现
func (o *PollingObserver) Observe(token string, h Handle, fn func()) error {
	if h == nil {
		return coreerrors.NewValidationError("handle", "handle is nil")
	}
	guarded := guardCallback(o.logger, fn)
	if !h.Alive() {
		guarded()
		return nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if _, dup := o.entries[token]; dup {
		return coreerrors.Newf(coreerrors.CodeAlreadyExists, "token %q already observed", token)
	}
	o.entries[token] = &pollEntry{h: h, fn: guarded}
	return nil
}

// Unobserve 撤销观察，幂等
func (o *PollingObserver) Unobserve(token string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.entries, token)
}

// Dispose 实现 Disposable
func (o *PollingObserver) Dispose() error {
	return o.CloseWithError()
}

// scanLoop 扫描循环，上下文取消后退出
func (o *PollingObserver) scanLoop(ctx context.Context) {
	ticker := o.clk.Ticker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.scan()
		}
	}
}

// scan 找出已死亡的句柄并触发回调
func (o *PollingObserver) scan() {
	o.mu.Lock()
	var dead []*pollEntry
	for token, e := range o.entries {
		if !e.h.Alive() {
			dead = append(dead, e)
			delete(o.entries, token)
		}
	}
	o.mu.Unlock()

	for _, e := range dead {
		e.fn()
	}
}

// PendingCount 当前观察中的 token 数
func (o *PollingObserver) PendingCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.entries)
}

// 编译时接口断言
var _ Observer = (*PollingObserver)(nil)
