package errors

// 预定义哨兵错误（用于 errors.Is 比较）
// 这些错误用于快速类型检查，不包含详细信息
var (
	// 生命周期领域错误
	ErrValidation    = New(CodeValidationError, "validation error")
	ErrConfig        = New(CodeConfigError, "configuration error")
	ErrLimitExceeded = New(CodeLimitExceeded, "limit exceeded")
	ErrConnection    = New(CodeConnectionError, "connection error")
	ErrCleanup       = New(CodeCleanupError, "cleanup error")

	// 资源/状态错误
	ErrNotFound      = New(CodeNotFound, "resource not found")
	ErrAlreadyExists = New(CodeAlreadyExists, "resource already exists")
	ErrInvalidState  = New(CodeInvalidState, "invalid state")

	// 请求错误
	ErrInvalidParam = New(CodeInvalidParam, "invalid parameter")
	ErrMissingParam = New(CodeMissingParam, "missing required parameter")
	ErrRateLimited  = New(CodeRateLimited, "rate limit exceeded")

	// 系统错误
	ErrInternal       = New(CodeInternal, "internal error")
	ErrStorage        = New(CodeStorageError, "storage error")
	ErrTimeout        = New(CodeTimeout, "operation timeout")
	ErrCancelled      = New(CodeCancelled, "operation cancelled")
	ErrUnavailable    = New(CodeUnavailable, "service unavailable")
	ErrNotConfigured  = New(CodeNotConfigured, "not configured")
	ErrResourceClosed = New(CodeResourceClosed, "resource closed")
)

// 错误检查辅助函数

// IsNotFound 检查是否为资源不存在错误
func IsNotFound(err error) bool {
	return IsCode(err, CodeNotFound)
}

// IsLimitError 检查是否为容量超限错误
func IsLimitError(err error) bool {
	return IsCode(err, CodeLimitExceeded)
}

// IsCleanupError 检查是否为释放回调失败错误
func IsCleanupError(err error) bool {
	return IsCode(err, CodeCleanupError)
}

// IsSystemError 检查是否为系统错误
func IsSystemError(err error) bool {
	return IsCode(err, CodeInternal) ||
		IsCode(err, CodeStorageError) ||
		IsCode(err, CodeTimeout) ||
		IsCode(err, CodeUnavailable)
}

// IsRetryable 检查错误是否可重试
func IsRetryable(err error) bool {
	code := GetCode(err)
	switch code {
	case CodeTimeout, CodeUnavailable, CodeStorageError, CodeRateLimited:
		return true
	default:
		return false
	}
}
