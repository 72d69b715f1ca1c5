package dispose

// 本包被 log 包依赖，日志经注入的函数间接输出，避免循环引用
// 未注入时静默丢弃

var logFunc func(level string, format string, args ...interface{})

// SetLogger 注入日志函数，log 包初始化时调用
func SetLogger(fn func(level string, format string, args ...interface{})) {
	logFunc = fn
}

func emit(level string, format string, args ...interface{}) {
	if logFunc != nil {
		logFunc(level, format, args...)
	}
}

// Debugf 调试日志
func Debugf(format string, args ...interface{}) {
	emit("debug", format, args...)
}

// Infof 信息日志
func Infof(format string, args ...interface{}) {
	emit("info", format, args...)
}

// Errorf 错误日志
func Errorf(format string, args ...interface{}) {
	emit("error", format, args...)
}

// Warn 警告消息
func Warn(msg string) {
	emit("warn", "%s", msg)
}

// Error 错误消息
func Error(msg string) {
	emit("error", "%s", msg)
}
