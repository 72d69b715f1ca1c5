package weakref

import (
	"context"
	"sync"

	"lifekit-core/internal/core/dispose"
	coreerrors "lifekit-core/internal/core/errors"
	"lifekit-core/internal/core/log"
)

// manualEntry 手动观察项
type manualEntry struct {
	h  Handle
	fn func()
}

// ManualObserver 手动触发的观察器
// 回收时机完全由调用方控制，用于确定性测试和交互式排查
type ManualObserver struct {
	*dispose.ResourceBase

	mu      sync.Mutex
	entries map[string]*manualEntry
	logger  log.Logger
}

// NewManualObserver 创建手动观察器
func NewManualObserver(parentCtx context.Context) *ManualObserver {
	o := &ManualObserver{
		ResourceBase: dispose.NewResourceBase("ManualObserver"),
		entries:      make(map[string]*manualEntry),
		logger:       log.WithComponent("weakref.manual"),
	}
	o.ResourceBase.Initialize(parentCtx)
	return o
}

// Observe 注册回收回调，等待 Trigger
func (o *ManualObserver) Observe(token string, h Handle, fn func()) error {
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
	o.entries[token] = &manualEntry{h: h, fn: guarded}
	return nil
}

// Unobserve 撤销观察，幂等
func (o *ManualObserver) Unobserve(token string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.entries, token)
}

// Trigger 宣告 token 对应的所有者已死亡：句柄失效并触发回调
// 返回是否有观察项被触发
func (o *ManualObserver) Trigger(token string) bool {
	o.mu.Lock()
	e, exists := o.entries[token]
	if exists {
		delete(o.entries, token)
	}
	o.mu.Unlock()

	if !exists {
		return false
	}
	if inv, ok := e.h.(Invalidator); ok {
		inv.Invalidate()
	}
	e.fn()
	return true
}

// TriggerAll 宣告所有观察中的所有者死亡，返回触发数
func (o *ManualObserver) TriggerAll() int {
	o.mu.Lock()
	all := o.entries
	o.entries = make(map[string]*manualEntry)
	o.mu.Unlock()

	for _, e := range all {
		if inv, ok := e.h.(Invalidator); ok {
			inv.Invalidate()
		}
		e.fn()
	}
	return len(all)
}

// PendingCount 当前观察中的 token 数
func (o *ManualObserver) PendingCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.entries)
}

// Dispose 实现 Disposable
func (o *ManualObserver) Dispose() error {
	return o.CloseWithError()
}

// 编译时接口断言
var _ Observer = (*ManualObserver)(nil)
