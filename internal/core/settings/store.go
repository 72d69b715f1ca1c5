package settings

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"lifekit-core/internal/constants"
	coreerrors "lifekit-core/internal/core/errors"
	"lifekit-core/internal/core/idgen"
	"lifekit-core/internal/core/log"
)

// watcher 单键监听器
type watcher struct {
	key string
	fn  WatchFunc
}

// TypedStore 类型化设置门面
// 包装任意 Backend：字符串编解码、监听注册与分发都在这一层
type TypedStore struct {
	backend Backend

	mu       sync.RWMutex
	watchers map[string]*watcher

	gen         *idgen.SequenceGenerator
	unsubscribe func()
	watchable   bool
	closed      atomic.Bool
	logger      log.Logger
}

// NewStore 创建设置存储门面
// 后端实现 WatchableBackend 时监听走后端通知（本地写入经通知回流），
// 否则由门面在本地写入成功后直接分发
func NewStore(backend Backend) (*TypedStore, error) {
	if backend == nil {
		return nil, coreerrors.NewValidationError("backend", "backend cannot be nil")
	}
	s := &TypedStore{
		backend:  backend,
		watchers: make(map[string]*watcher),
		gen:      idgen.NewSequenceGenerator(constants.IDPrefixWatch),
		logger:   log.WithComponent("settings"),
	}
	if wb, ok := backend.(WatchableBackend); ok {
		cancel, err := wb.Subscribe(s.notify)
		if err != nil {
			return nil, coreerrors.Wrap(err, coreerrors.CodeStorageError, "subscribe to backend notifications failed")
		}
		s.unsubscribe = cancel
		s.watchable = true
	}
	return s, nil
}

// NewMemoryStore 内存设置存储，默认后端
func NewMemoryStore() *TypedStore {
	s, _ := NewStore(NewMemoryBackend())
	return s
}

// ============================================================================
// 类型化读写
// ============================================================================

func (s *TypedStore) GetString(ctx context.Context, key string) (string, error) {
	return s.raw(ctx, key)
}

func (s *TypedStore) SetString(ctx context.Context, key, value string) error {
	return s.put(ctx, key, value)
}

func (s *TypedStore) GetInt(ctx context.Context, key string) (int64, error) {
	raw, err := s.raw(ctx, key)
	if err != nil {
		return 0, err
	}
	v, perr := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if perr != nil {
		return 0, badValue(key, "integer", raw, perr)
	}
	return v, nil
}

func (s *TypedStore) SetInt(ctx context.Context, key string, value int64) error {
	return s.put(ctx, key, strconv.FormatInt(value, 10))
}

func (s *TypedStore) GetFloat(ctx context.Context, key string) (float64, error) {
	raw, err := s.raw(ctx, key)
	if err != nil {
		return 0, err
	}
	v, perr := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if perr != nil {
		return 0, badValue(key, "float", raw, perr)
	}
	return v, nil
}

func (s *TypedStore) SetFloat(ctx context.Context, key string, value float64) error {
	return s.put(ctx, key, strconv.FormatFloat(value, 'g', -1, 64))
}

func (s *TypedStore) GetBool(ctx context.Context, key string) (bool, error) {
	raw, err := s.raw(ctx, key)
	if err != nil {
		return false, err
	}
	v, perr := strconv.ParseBool(strings.TrimSpace(raw))
	if perr != nil {
		return false, badValue(key, "bool", raw, perr)
	}
	return v, nil
}

func (s *TypedStore) SetBool(ctx context.Context, key string, value bool) error {
	return s.put(ctx, key, strconv.FormatBool(value))
}

func (s *TypedStore) GetDuration(ctx context.Context, key string) (time.Duration, error) {
	raw, err := s.raw(ctx, key)
	if err != nil {
		return 0, err
	}
	v, perr := time.ParseDuration(strings.TrimSpace(raw))
	if perr != nil {
		return 0, badValue(key, "duration", raw, perr)
	}
	return v, nil
}

func (s *TypedStore) SetDuration(ctx context.Context, key string, value time.Duration) error {
	return s.put(ctx, key, value.String())
}

func (s *TypedStore) GetStringList(ctx context.Context, key string) ([]string, error) {
	raw, err := s.raw(ctx, key)
	if err != nil {
		return nil, err
	}
	var list []string
	if perr := json.Unmarshal([]byte(raw), &list); perr != nil {
		return nil, badValue(key, "string list", raw, perr)
	}
	return list, nil
}

func (s *TypedStore) SetStringList(ctx context.Context, key string, value []string) error {
	data, err := json.Marshal(value)
	if err != nil {
		return badValue(key, "string list", "", err)
	}
	return s.put(ctx, key, string(data))
}

func (s *TypedStore) Delete(ctx context.Context, key string) error {
	if err := s.guard(key); err != nil {
		return err
	}
	if err := s.backend.Delete(ctx, key); err != nil {
		return coreerrors.Wrapf(err, coreerrors.CodeStorageError, "delete setting %q failed", key)
	}
	if !s.watchable {
		s.notify(key, "")
	}
	return nil
}

func (s *TypedStore) Keys(ctx context.Context) ([]string, error) {
	if s.closed.Load() {
		return nil, coreerrors.New(coreerrors.CodeResourceClosed, "settings store is closed")
	}
	keys, err := s.backend.Keys(ctx)
	if err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeStorageError, "list setting keys failed")
	}
	return keys, nil
}

// ============================================================================
// 监听
// ============================================================================

// Watch 监听单键变更
func (s *TypedStore) Watch(key string, fn WatchFunc) (string, error) {
	if err := s.guard(key); err != nil {
		return "", err
	}
	if fn == nil {
		return "", coreerrors.NewValidationError("fn", "watch callback cannot be nil")
	}
	id, err := s.gen.Generate()
	if err != nil {
		return "", coreerrors.Wrap(err, coreerrors.CodeInternal, "generate watch id failed")
	}
	s.mu.Lock()
	s.watchers[id] = &watcher{key: key, fn: fn}
	s.mu.Unlock()
	return id, nil
}

// Unwatch 取消监听
func (s *TypedStore) Unwatch(watchID string) {
	s.mu.Lock()
	delete(s.watchers, watchID)
	s.mu.Unlock()
}

// WatcherCount 当前监听器数
func (s *TypedStore) WatcherCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.watchers)
}

// notify 向匹配的监听器分发变更，回调在锁外执行
func (s *TypedStore) notify(key, value string) {
	if s.closed.Load() {
		return
	}
	s.mu.RLock()
	var targets []WatchFunc
	for _, w := range s.watchers {
		if w.key == key {
			targets = append(targets, w.fn)
		}
	}
	s.mu.RUnlock()

	for _, fn := range targets {
		s.fire(key, fn, value)
	}
}

// fire 单回调执行，panic 不得外溢到分发方
func (s *TypedStore) fire(key string, fn WatchFunc, value string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithField(constants.LogFieldError, r).Errorf("watch callback panic for key %q", key)
		}
	}()
	fn(value)
}

// Close 关闭门面与后端
func (s *TypedStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.mu.Lock()
	s.watchers = make(map[string]*watcher)
	s.mu.Unlock()
	return s.backend.Close()
}

// ============================================================================
// 内部
// ============================================================================

func (s *TypedStore) guard(key string) error {
	if s.closed.Load() {
		return coreerrors.New(coreerrors.CodeResourceClosed, "settings store is closed")
	}
	if key == "" {
		return coreerrors.NewValidationError("key", "setting key cannot be empty")
	}
	return nil
}

func (s *TypedStore) raw(ctx context.Context, key string) (string, error) {
	if err := s.guard(key); err != nil {
		return "", err
	}
	value, found, err := s.backend.Get(ctx, key)
	if err != nil {
		return "", coreerrors.Wrapf(err, coreerrors.CodeStorageError, "get setting %q failed", key)
	}
	if !found {
		return "", notFound(key)
	}
	return value, nil
}

func (s *TypedStore) put(ctx context.Context, key, value string) error {
	if err := s.guard(key); err != nil {
		return err
	}
	if err := s.backend.Set(ctx, key, value); err != nil {
		return coreerrors.Wrapf(err, coreerrors.CodeStorageError, "set setting %q failed", key)
	}
	if !s.watchable {
		s.notify(key, value)
	}
	return nil
}

var _ Store = (*TypedStore)(nil)
