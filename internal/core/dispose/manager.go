package dispose

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ResourceManager 组件登记表，运行时各核心组件按启动顺序注册，
// 停机时按相反顺序释放
type ResourceManager struct {
	resources map[string]Disposable
	mu        sync.RWMutex
	order     []string // 注册顺序，释放时倒序遍历
	disposing bool
}

// NewResourceManager 创建资源管理器
func NewResourceManager() *ResourceManager {
	return &ResourceManager{
		resources: make(map[string]Disposable),
		order:     make([]string, 0),
	}
}

// Register 注册资源，名称重复时报错
func (rm *ResourceManager) Register(name string, resource Disposable) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if _, exists := rm.resources[name]; exists {
		return fmt.Errorf("resource %s already registered", name)
	}

	rm.resources[name] = resource
	rm.order = append(rm.order, name)
	Debugf("Registered resource: %s", name)
	return nil
}

// Unregister 注销资源，之后的 DisposeAll 不再触及它
func (rm *ResourceManager) Unregister(name string) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if _, exists := rm.resources[name]; !exists {
		return fmt.Errorf("resource %s not found", name)
	}

	delete(rm.resources, name)
	for i, n := range rm.order {
		if n == name {
			rm.order = append(rm.order[:i], rm.order[i+1:]...)
			break
		}
	}
	Debugf("Unregistered resource: %s", name)
	return nil
}

// GetResource 按名称查找已注册资源
func (rm *ResourceManager) GetResource(name string) (Disposable, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	resource, exists := rm.resources[name]
	return resource, exists
}

// ListResources 按注册顺序列出资源名称
func (rm *ResourceManager) ListResources() []string {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	names := make([]string, len(rm.order))
	copy(names, rm.order)
	return names
}

// GetResourceCount 当前注册的资源数
func (rm *ResourceManager) GetResourceCount() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.resources)
}

// DisposeAll 按注册的相反顺序释放全部资源
// 单个失败不中断，所有错误收进 DisposeResult；重入时返回空结果
func (rm *ResourceManager) DisposeAll() *DisposeResult {
	rm.mu.Lock()

	if rm.disposing || len(rm.resources) == 0 {
		rm.mu.Unlock()
		return &DisposeResult{Errors: make([]*DisposeError, 0)}
	}
	rm.disposing = true

	// 摘下当前注册表，释放过程中新的注册互不干扰
	snapshot := rm.resources
	names := rm.order
	rm.resources = make(map[string]Disposable)
	rm.order = make([]string, 0)

	rm.mu.Unlock()

	result := &DisposeResult{Errors: make([]*DisposeError, 0)}
	for i := len(names) - 1; i >= 0; i-- {
		name := names[i]
		resource := snapshot[name]
		if resource == nil {
			continue
		}

		incDisposeCount()
		if err := resource.Dispose(); err != nil {
			result.Errors = append(result.Errors, &DisposeError{
				HandlerIndex: len(names) - 1 - i,
				ResourceName: name,
				Err:          err,
			})
			Errorf("Failed to dispose resource %s: %v", name, err)
		} else {
			Debugf("Successfully disposed resource: %s", name)
		}
	}

	rm.mu.Lock()
	rm.disposing = false
	rm.mu.Unlock()

	return result
}

// DisposeWithTimeout 带时限的 DisposeAll
// 超时后立即返回带 timeout 错误的结果，释放在后台继续
func (rm *ResourceManager) DisposeWithTimeout(timeout time.Duration) *DisposeResult {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resultChan := make(chan *DisposeResult, 1)
	go func() {
		resultChan <- rm.DisposeAll()
	}()

	select {
	case result := <-resultChan:
		return result
	case <-ctx.Done():
		return &DisposeResult{
			Errors: []*DisposeError{
				{
					HandlerIndex: -1,
					ResourceName: "timeout",
					Err:          fmt.Errorf("dispose timeout after %v", timeout),
				},
			},
		}
	}
}

// 累计释放计数，遥测快照读取
var disposeCount atomic.Int64

func incDisposeCount() {
	disposeCount.Add(1)
}

// GetDisposeCount 读取累计释放计数
func GetDisposeCount() int64 {
	return disposeCount.Load()
}
