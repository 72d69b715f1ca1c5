package constants

// 日志级别常量
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
	LogLevelFatal = "fatal"
	LogLevelPanic = "panic"
)

// 日志字段名常量
// 只收录跨包复用的字段，单处使用的字段名直接写在调用点
const (
	LogFieldResourceID = "resource_id"
	LogFieldSubID      = "subscription_id"
	LogFieldProfile    = "profile"
	LogFieldError      = "error"
)

// 日志格式常量
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// 日志输出常量
const (
	LogOutputStdout = "stdout"
	LogOutputStderr = "stderr"
	LogOutputFile   = "file"
)
