package weakref

import (
	"context"
	"sync"

	"lifekit-core/internal/core/dispose"
	coreerrors "lifekit-core/internal/core/errors"
	"lifekit-core/internal/core/log"

	"github.com/benbjohnson/clock"
)

// Observer 所有权观察器
// Observe 注册回收回调：token 对应的所有者被判定死亡后 fn 恰好执行一次。
// referent 在注册时已死亡的，fn 在 Observe 返回前同步执行。
// 回调不在观察器锁内执行。
type Observer interface {
	Observe(token string, h Handle, fn func()) error
	Unobserve(token string)
	dispose.Disposable
}

// guardCallback 包裹回调，吞掉 panic 避免破坏通知 goroutine
func guardCallback(logger log.Logger, fn func()) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("ownership callback panic: %v", r)
			}
		}()
		fn()
	}
}

// RuntimeObserver 基于运行时回收通知的观察器
// 弱句柄经 GC 清理回调触发，强句柄经 Invalidate 触发；
// 不支持回收通知的句柄回落到内部轮询列表
type RuntimeObserver struct {
	*dispose.ResourceBase

	mu      sync.Mutex
	cancels map[string]func()

	fallback *PollingObserver
	logger   log.Logger
}

// NewRuntimeObserver 创建运行时观察器，clk 为 nil 时使用真实时钟
func NewRuntimeObserver(parentCtx context.Context, clk clock.Clock) *RuntimeObserver {
	o := &RuntimeObserver{
		ResourceBase: dispose.NewResourceBase("RuntimeObserver"),
		cancels:      make(map[string]func()),
		logger:       log.WithComponent("weakref.runtime"),
	}
	o.ResourceBase.Initialize(parentCtx)
	o.fallback = NewPollingObserver(o.Ctx(), 0, clk)
	o.AddCleanHandler(o.cancelAll)
	o.AddCleanHandler(o.fallback.Dispose)
	return o
}

// Observe 注册回收回调
func (o *RuntimeObserver) Observe(token string, h Handle, fn func()) error {
	if h == nil {
		return coreerrors.NewValidationError("handle", "handle is nil")
	}

	w, watchable := h.(watcher)
	if !watchable {
		// 自定义句柄走轮询兜底
		return o.fallback.Observe(token, h, fn)
	}

	o.mu.Lock()
	if _, dup := o.cancels[token]; dup {
		o.mu.Unlock()
		return coreerrors.Newf(coreerrors.CodeAlreadyExists, "token %q already observed", token)
	}
	// 占位，防止并发重复注册同一 token
	o.cancels[token] = func() {}
	o.mu.Unlock()

	guarded := guardCallback(o.logger, fn)
	inner, fired := w.watch(func() {
		o.remove(token)
		guarded()
	})
	if fired {
		o.remove(token)
		return nil
	}

	o.mu.Lock()
	if _, still := o.cancels[token]; still {
		o.cancels[token] = inner
		o.mu.Unlock()
		return nil
	}
	o.mu.Unlock()
	// Observe 期间被 Unobserve，撤销刚注册的 watch
	inner()
	return nil
}

// Unobserve 撤销观察，幂等
func (o *RuntimeObserver) Unobserve(token string) {
	o.mu.Lock()
	cancel, exists := o.cancels[token]
	if exists {
		delete(o.cancels, token)
	}
	o.mu.Unlock()

	if exists {
		cancel()
		return
	}
	o.fallback.Unobserve(token)
}

// PendingCount 当前观察中的 token 数
func (o *RuntimeObserver) PendingCount() int {
	o.mu.Lock()
	n := len(o.cancels)
	o.mu.Unlock()
	return n + o.fallback.PendingCount()
}

// Dispose 实现 Disposable
func (o *RuntimeObserver) Dispose() error {
	return o.CloseWithError()
}

// remove 删除已触发 token 的取消函数
func (o *RuntimeObserver) remove(token string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.cancels, token)
}

// cancelAll 关闭时撤销所有未触发的 watch
func (o *RuntimeObserver) cancelAll() error {
	o.mu.Lock()
	cancels := make([]func(), 0, len(o.cancels))
	for _, c := range o.cancels {
		cancels = append(cancels, c)
	}
	o.cancels = make(map[string]func())
	o.mu.Unlock()

	for _, c := range cancels {
		c()
	}
	return nil
}

// 编译时接口断言
var _ Observer = (*RuntimeObserver)(nil)
