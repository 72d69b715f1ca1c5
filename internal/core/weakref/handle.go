package weakref

import (
	"runtime"
	"sync"
	"weak"
)

// Handle 所有者句柄
// 解引用返回 (value, true)；所有者已回收或已失效时返回 (nil, false)
type Handle interface {
	// Get 解引用所有者
	Get() (any, bool)
	// Alive 所有者是否仍存活
	Alive() bool
}

// Invalidator 可手动失效的句柄（可选扩展接口）
type Invalidator interface {
	// Invalidate 标记句柄失效，幂等
	Invalidate()
}

// watcher 支持回收通知的句柄（包内扩展接口）
// watch 注册回调；referent 已死亡时立即同步执行 fn 并返回 fired=true
type watcher interface {
	watch(fn func()) (cancel func(), fired bool)
}

// WeakHandle 弱引用句柄，不阻止所有者被 GC 回收
type WeakHandle[T any] struct {
	ptr weak.Pointer[T]
}

// Make 创建指向 target 的弱引用句柄
func Make[T any](target *T) *WeakHandle[T] {
	return &WeakHandle[T]{ptr: weak.Make(target)}
}

// Get 解引用所有者
func (h *WeakHandle[T]) Get() (any, bool) {
	v := h.ptr.Value()
	if v == nil {
		return nil, false
	}
	return v, true
}

// Value 类型化解引用
func (h *WeakHandle[T]) Value() (*T, bool) {
	v := h.ptr.Value()
	if v == nil {
		return nil, false
	}
	return v, true
}

// Alive 所有者是否仍存活
func (h *WeakHandle[T]) Alive() bool {
	return h.ptr.Value() != nil
}

// watch 在所有者被 GC 回收后执行 fn
// 回调闭包不得捕获强指针，否则所有者永远不会被回收
func (h *WeakHandle[T]) watch(fn func()) (func(), bool) {
	strong := h.ptr.Value()
	if strong == nil {
		fn()
		return func() {}, true
	}
	c := runtime.AddCleanup(strong, func(_ struct{}) { fn() }, struct{}{})
	var once sync.Once
	cancel := func() {
		once.Do(func() { c.Stop() })
	}
	return cancel, false
}

// StrongHandle 强引用句柄，持有所有者直到显式 Invalidate
type StrongHandle struct {
	mu          sync.Mutex
	value       any
	invalidated bool
	callbacks   []func()
}

// NewStrong 创建强引用句柄
func NewStrong(value any) *StrongHandle {
	return &StrongHandle{value: value}
}

// Get 解引用所有者
func (h *StrongHandle) Get() (any, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.invalidated {
		return nil, false
	}
	return h.value, true
}

// Alive 所有者是否仍存活
func (h *StrongHandle) Alive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.invalidated
}

// Invalidate 标记句柄失效并触发已注册的回调，幂等
func (h *StrongHandle) Invalidate() {
	h.mu.Lock()
	if h.invalidated {
		h.mu.Unlock()
		return
	}
	h.invalidated = true
	h.value = nil
	callbacks := h.callbacks
	h.callbacks = nil
	h.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

// watch 在句柄失效后执行 fn
func (h *StrongHandle) watch(fn func()) (func(), bool) {
	h.mu.Lock()
	if h.invalidated {
		h.mu.Unlock()
		fn()
		return func() {}, true
	}
	h.callbacks = append(h.callbacks, fn)
	idx := len(h.callbacks) - 1
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if idx < len(h.callbacks) && h.callbacks[idx] != nil {
			h.callbacks[idx] = func() {}
		}
	}
	return cancel, false
}

// 编译时接口断言
var (
	_ Handle      = (*WeakHandle[int])(nil)
	_ watcher     = (*WeakHandle[int])(nil)
	_ Handle      = (*StrongHandle)(nil)
	_ Invalidator = (*StrongHandle)(nil)
	_ watcher     = (*StrongHandle)(nil)
)
