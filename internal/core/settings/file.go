package settings

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	coreerrors "lifekit-core/internal/core/errors"

	"gopkg.in/yaml.v3"
)

// FileBackend yaml 文件设置后端
// 打开时整体加载，每次写入整体重写（临时文件 + rename 保证原子性）
type FileBackend struct {
	mu       sync.RWMutex
	filePath string
	data     map[string]string
}

// NewFileBackend 创建文件后端，文件不存在时从空集开始
func NewFileBackend(filePath string) (*FileBackend, error) {
	if filePath == "" {
		return nil, coreerrors.NewValidationError("filePath", "settings file path cannot be empty")
	}
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, coreerrors.Wrapf(err, coreerrors.CodeStorageError, "create settings dir %q failed", dir)
	}

	b := &FileBackend{
		filePath: filePath,
		data:     make(map[string]string),
	}
	if err := b.load(); err != nil {
		return nil, err
	}
	return b, nil
}

// load 从文件加载全部设置
func (b *FileBackend) load() error {
	raw, err := os.ReadFile(b.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return coreerrors.Wrapf(err, coreerrors.CodeStorageError, "read settings file %q failed", b.filePath)
	}
	data := make(map[string]string)
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return coreerrors.Wrapf(err, coreerrors.CodeStorageError, "parse settings file %q failed", b.filePath)
	}
	b.data = data
	return nil
}

// flush 整体写回，临时文件 + rename
func (b *FileBackend) flush() error {
	raw, err := yaml.Marshal(b.data)
	if err != nil {
		return coreerrors.Wrap(err, coreerrors.CodeStorageError, "marshal settings failed")
	}
	tempFile := b.filePath + ".tmp"
	if err := os.WriteFile(tempFile, raw, 0644); err != nil {
		return coreerrors.Wrapf(err, coreerrors.CodeStorageError, "write temp settings file %q failed", tempFile)
	}
	if err := os.Rename(tempFile, b.filePath); err != nil {
		os.Remove(tempFile)
		return coreerrors.Wrapf(err, coreerrors.CodeStorageError, "rename settings file %q failed", b.filePath)
	}
	return nil
}

func (b *FileBackend) Get(ctx context.Context, key string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	value, found := b.data[key]
	return value, found, nil
}

func (b *FileBackend) Set(ctx context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	prev, existed := b.data[key]
	b.data[key] = value
	if err := b.flush(); err != nil {
		// 写盘失败，内存状态回滚
		if existed {
			b.data[key] = prev
		} else {
			delete(b.data, key)
		}
		return err
	}
	return nil
}

func (b *FileBackend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	prev, existed := b.data[key]
	if !existed {
		return nil
	}
	delete(b.data, key)
	if err := b.flush(); err != nil {
		b.data[key] = prev
		return err
	}
	return nil
}

func (b *FileBackend) Keys(ctx context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.data))
	for key := range b.data {
		keys = append(keys, key)
	}
	return keys, nil
}

func (b *FileBackend) Close() error {
	return nil
}

// Path 后端文件路径
func (b *FileBackend) Path() string {
	return b.filePath
}

var _ Backend = (*FileBackend)(nil)
