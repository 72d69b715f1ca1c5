package settings

import (
	"context"
	"sync"
)

// MemoryBackend 内存设置后端
// 进程内 map，单机默认；没有跨进程通知能力
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryBackend 创建内存后端
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string]string)}
}

// NewMemoryBackendWith 带初始数据的内存后端，测试用
func NewMemoryBackendWith(seed map[string]string) *MemoryBackend {
	b := NewMemoryBackend()
	for k, v := range seed {
		b.data[k] = v
	}
	return b
}

func (b *MemoryBackend) Get(ctx context.Context, key string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	value, found := b.data[key]
	return value, found, nil
}

func (b *MemoryBackend) Set(ctx context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = value
	return nil
}

func (b *MemoryBackend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, key)
	return nil
}

func (b *MemoryBackend) Keys(ctx context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.data))
	for key := range b.data {
		keys = append(keys, key)
	}
	return keys, nil
}

func (b *MemoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = make(map[string]string)
	return nil
}

var _ Backend = (*MemoryBackend)(nil)
