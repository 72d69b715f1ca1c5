package log

// ============================================================================
// 包级便捷入口，全部转发到 Default()
// 长生命周期组件应持有自己的 Logger（见 WithComponent），包级函数服务零散调用点
// ============================================================================

// Debug 输出 Debug 级别日志
func Debug(args ...interface{}) {
	Default().Debug(args...)
}

// Info 输出 Info 级别日志
func Info(args ...interface{}) {
	Default().Info(args...)
}

// Warn 输出 Warn 级别日志
func Warn(args ...interface{}) {
	Default().Warn(args...)
}

// Error 输出 Error 级别日志
func Error(args ...interface{}) {
	Default().Error(args...)
}

// Debugf 按格式输出 Debug 级别日志
func Debugf(format string, args ...interface{}) {
	Default().Debugf(format, args...)
}

// Infof 按格式输出 Info 级别日志
func Infof(format string, args ...interface{}) {
	Default().Infof(format, args...)
}

// Warnf 按格式输出 Warn 级别日志
func Warnf(format string, args ...interface{}) {
	Default().Warnf(format, args...)
}

// Errorf 按格式输出 Error 级别日志
func Errorf(format string, args ...interface{}) {
	Default().Errorf(format, args...)
}

// WithField 返回附加单个字段的 Logger
func WithField(key string, value interface{}) Logger {
	return Default().WithField(key, value)
}

// WithFields 返回附加多个字段的 Logger
func WithFields(fields map[string]interface{}) Logger {
	return Default().WithFields(fields)
}

// WithError 返回附加 error 字段的 Logger
func WithError(err error) Logger {
	return Default().WithError(err)
}

// WithComponent 创建带组件名字段的日志
// 各核心组件统一使用该字段标识日志来源
func WithComponent(name string) Logger {
	return Default().WithField("component", name)
}
