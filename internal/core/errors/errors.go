// Package errors 提供统一的错误处理机制
//
// 约定：
// 1. 带错误码的 *Error 贯穿所有核心包，errors.Is/As 可随时检查
// 2. 错误码服务 API 响应与日志分类，Message 服务人读
// 3. Cause 保留原始错误链，Details 携带结构化现场
package errors

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrorCode 错误码类型
type ErrorCode string

// 错误码定义
const (
	// 生命周期领域错误 (1xxx)
	CodeValidationError ErrorCode = "VALIDATION_ERROR"
	CodeConfigError     ErrorCode = "CONFIG_ERROR"
	CodeLimitExceeded   ErrorCode = "LIMIT_EXCEEDED"
	CodeConnectionError ErrorCode = "CONNECTION_ERROR"
	CodeCleanupError    ErrorCode = "CLEANUP_ERROR"

	// 资源/状态错误 (2xxx)
	CodeNotFound      ErrorCode = "NOT_FOUND"
	CodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
	CodeInvalidState  ErrorCode = "INVALID_STATE"

	// 请求错误 (3xxx)
	CodeInvalidParam ErrorCode = "INVALID_PARAM"
	CodeMissingParam ErrorCode = "MISSING_PARAM"
	CodeRateLimited  ErrorCode = "RATE_LIMITED"

	// 系统错误 (4xxx)
	CodeInternal       ErrorCode = "INTERNAL_ERROR"
	CodeStorageError   ErrorCode = "STORAGE_ERROR"
	CodeTimeout        ErrorCode = "TIMEOUT"
	CodeCancelled      ErrorCode = "CANCELLED"
	CodeUnavailable    ErrorCode = "UNAVAILABLE"
	CodeNotConfigured  ErrorCode = "NOT_CONFIGURED"
	CodeResourceClosed ErrorCode = "RESOURCE_CLOSED"
)

// DetailValue 详情值，只承载字符串和整数两种类型
// 用独立的 has 标记区分零值和未设置，避免 interface{} 丢掉类型信息
type DetailValue struct {
	strVal string
	intVal int64
	hasStr bool
	hasInt bool
}

// NewStringDetail 创建字符串类型详情值
func NewStringDetail(s string) DetailValue {
	return DetailValue{strVal: s, hasStr: true}
}

// NewIntDetail 创建整数类型详情值
func NewIntDetail(i int64) DetailValue {
	return DetailValue{intVal: i, hasInt: true}
}

// String 返回字符串表示，整数值转十进制串
func (d DetailValue) String() string {
	if d.hasStr {
		return d.strVal
	}
	if d.hasInt {
		return strconv.FormatInt(d.intVal, 10)
	}
	return ""
}

// Int 返回整数值及其是否存在
func (d DetailValue) Int() (int64, bool) {
	return d.intVal, d.hasInt
}

// IsString 是否为字符串类型
func (d DetailValue) IsString() bool {
	return d.hasStr
}

// IsInt 是否为整数类型
func (d DetailValue) IsInt() bool {
	return d.hasInt
}

// Error 统一错误类型
type Error struct {
	Code    ErrorCode              // 错误码
	Message string                 // 错误消息
	Cause   error                  // 原始错误
	Details map[string]DetailValue // 额外详情
}

// Error 实现 error 接口
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 支持 errors.Unwrap
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is 支持 errors.Is，按错误码比较
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func (e *Error) withDetail(key string, value DetailValue) *Error {
	if e.Details == nil {
		e.Details = make(map[string]DetailValue)
	}
	e.Details[key] = value
	return e
}

// WithDetailString 添加字符串类型详情
func (e *Error) WithDetailString(key string, value string) *Error {
	return e.withDetail(key, NewStringDetail(value))
}

// WithDetailInt 添加整数类型详情
func (e *Error) WithDetailInt(key string, value int64) *Error {
	return e.withDetail(key, NewIntDetail(value))
}

// GetDetailString 获取字符串类型详情（任意类型都会转为字符串）
func (e *Error) GetDetailString(key string) string {
	if v, ok := e.Details[key]; ok {
		return v.String()
	}
	return ""
}

// GetDetailInt 获取整数类型详情
func (e *Error) GetDetailInt(key string) (int64, bool) {
	if v, ok := e.Details[key]; ok {
		return v.Int()
	}
	return 0, false
}

// New 创建新错误
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf 创建格式化错误
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Cause: err}
}

// Wrapf 格式化包装错误
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *Error {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// GetCode 从错误中提取错误码，非 *Error 一律视为内部错误
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsCode 检查错误是否为指定错误码
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// Is 重导出 errors.Is
var Is = errors.Is

// As 重导出 errors.As
var As = errors.As

// ============================================================================
// 特定错误类型构造函数
// ============================================================================

// NewValidationError 创建校验错误
// field 标记出错的入参名，便于调用方定位
func NewValidationError(field, message string) *Error {
	return New(CodeValidationError, message).WithDetailString("field", field)
}

// NewConfigError 创建配置错误
func NewConfigError(component, message string) *Error {
	return New(CodeConfigError, message).WithDetailString("component", component)
}

// NewLimitError 创建容量超限错误
// 携带类别与上限值，调用方和 API 层可据此提示配额
func NewLimitError(category string, limit int64) *Error {
	return Newf(CodeLimitExceeded, "limit exceeded for %q (limit %d)", category, limit).
		WithDetailString("category", category).
		WithDetailInt("limit", limit)
}

// NewConnectionError 创建连接错误（事件源缺失或不具备订阅能力）
func NewConnectionError(sourceName, message string, cause error) *Error {
	return Wrap(cause, CodeConnectionError, message).WithDetailString("source", sourceName)
}

// NewCleanupError 创建清理错误
// 释放回调失败时使用，记录归属的资源 ID 并保留原始错误链
func NewCleanupError(resourceID string, cause error) *Error {
	return Wrapf(cause, CodeCleanupError, "release failed for resource %s", resourceID).
		WithDetailString("resource_id", resourceID)
}

// WrapError 包装错误，添加上下文信息
// 不附加错误码，适合在错误码已经确定的链路上补充现场描述
func WrapError(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}
