package settings

import (
	"context"
	"time"

	coreerrors "lifekit-core/internal/core/errors"
)

// WatchFunc 键变更回调，键被删除时 value 为空串
type WatchFunc func(value string)

// Store 设置存储
// 所有值以字符串为底层表示，类型化读写在门面层完成；
// 未知键返回 NOT_FOUND，类型不匹配返回 VALIDATION_ERROR
type Store interface {
	GetString(ctx context.Context, key string) (string, error)
	SetString(ctx context.Context, key, value string) error

	GetInt(ctx context.Context, key string) (int64, error)
	SetInt(ctx context.Context, key string, value int64) error

	GetFloat(ctx context.Context, key string) (float64, error)
	SetFloat(ctx context.Context, key string, value float64) error

	GetBool(ctx context.Context, key string) (bool, error)
	SetBool(ctx context.Context, key string, value bool) error

	GetDuration(ctx context.Context, key string) (time.Duration, error)
	SetDuration(ctx context.Context, key string, value time.Duration) error

	GetStringList(ctx context.Context, key string) ([]string, error)
	SetStringList(ctx context.Context, key string, value []string) error

	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)

	// Watch 监听单个键的变更，返回取消监听用的 watchID
	Watch(key string, fn WatchFunc) (string, error)
	// Unwatch 取消监听，未知 watchID 为空操作
	Unwatch(watchID string)

	Close() error
}

// Backend 原始字符串后端
// 门面层在其上补齐类型化读写与监听分发
type Backend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// WatchableBackend 自带变更通知的后端（redis pub/sub、postgres LISTEN）
// 本地写入同样经通知回流，门面层只从通知分发，避免双触发
type WatchableBackend interface {
	Backend
	Subscribe(fn func(key, value string)) (cancel func(), err error)
}

// notFound 未知键错误
func notFound(key string) error {
	return coreerrors.Newf(coreerrors.CodeNotFound, "setting %q not found", key).
		WithDetailString("key", key)
}

// badValue 类型不匹配错误
func badValue(key, want, raw string, cause error) error {
	return coreerrors.Wrapf(cause, coreerrors.CodeValidationError,
		"setting %q is not a valid %s: %q", key, want, raw).
		WithDetailString("key", key)
}

// ============================================================================
// 带默认值的读取助手：键不存在时回落默认值，其它错误原样返回
// ============================================================================

// StringOr 读字符串，缺失回落默认值
func StringOr(ctx context.Context, s Store, key, def string) (string, error) {
	v, err := s.GetString(ctx, key)
	if coreerrors.IsNotFound(err) {
		return def, nil
	}
	return v, err
}

// IntOr 读整数，缺失回落默认值
func IntOr(ctx context.Context, s Store, key string, def int64) (int64, error) {
	v, err := s.GetInt(ctx, key)
	if coreerrors.IsNotFound(err) {
		return def, nil
	}
	return v, err
}

// FloatOr 读浮点，缺失回落默认值
func FloatOr(ctx context.Context, s Store, key string, def float64) (float64, error) {
	v, err := s.GetFloat(ctx, key)
	if coreerrors.IsNotFound(err) {
		return def, nil
	}
	return v, err
}

// BoolOr 读布尔，缺失回落默认值
func BoolOr(ctx context.Context, s Store, key string, def bool) (bool, error) {
	v, err := s.GetBool(ctx, key)
	if coreerrors.IsNotFound(err) {
		return def, nil
	}
	return v, err
}

// DurationOr 读时长，缺失回落默认值
func DurationOr(ctx context.Context, s Store, key string, def time.Duration) (time.Duration, error) {
	v, err := s.GetDuration(ctx, key)
	if coreerrors.IsNotFound(err) {
		return def, nil
	}
	return v, err
}
