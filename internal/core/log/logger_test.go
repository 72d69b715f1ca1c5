package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"lifekit-core/internal/constants"
)

// TestNopLogger 测试静默日志
func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()

	// 所有方法都不应该 panic
	logger.Debug("test")
	logger.Info("test")
	logger.Warn("test")
	logger.Error("test")
	logger.Debugf("test %s", "arg")
	logger.Infof("test %s", "arg")
	logger.Warnf("test %s", "arg")
	logger.Errorf("test %s", "arg")

	// With* 系列应该返回自身
	derived := map[string]Logger{
		"WithField":  logger.WithField("key", "value"),
		"WithFields": logger.WithFields(map[string]interface{}{"key": "value"}),
		"WithError":  logger.WithError(nil),
	}
	for name, l := range derived {
		if _, ok := l.(NopLogger); !ok {
			t.Errorf("%s should return NopLogger", name)
		}
	}
}

// recordingT 记录输出的 TestingT 实现
type recordingT struct {
	entries []string
}

func (r *recordingT) Log(args ...interface{}) {
	r.entries = append(r.entries, args[0].(string))
}

func (r *recordingT) Logf(format string, args ...interface{}) {
	r.entries = append(r.entries, format)
}

// TestTestLogger 测试测试日志
func TestTestLogger(t *testing.T) {
	rec := &recordingT{}
	logger := NewTestLogger(rec)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")
	if len(rec.entries) != 4 {
		t.Errorf("expected 4 entries, got %d", len(rec.entries))
	}

	rec.entries = nil
	logger.Debugf("debug %s", "formatted")
	logger.Infof("info %s", "formatted")
	logger.Warnf("warn %s", "formatted")
	logger.Errorf("error %s", "formatted")
	if len(rec.entries) != 4 {
		t.Errorf("expected 4 formatted entries, got %d", len(rec.entries))
	}
}

// TestLogrusLogger 测试 logrus 日志
func TestLogrusLogger(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	logger := NewLogrusLogger(l)

	// 四个级别都要落到输出里
	levels := []struct {
		name string
		emit func(args ...interface{})
	}{
		{"debug", logger.Debug},
		{"info", logger.Info},
		{"warn", logger.Warn},
		{"error", logger.Error},
	}
	for _, lv := range levels {
		buf.Reset()
		lv.emit(lv.name + " message")
		if !strings.Contains(buf.String(), lv.name+" message") {
			t.Errorf("%s message not found in output", lv.name)
		}
	}

	// 字段要出现在输出里
	buf.Reset()
	logger.WithField("key", "value").Info("with field")
	if !strings.Contains(buf.String(), "key=value") {
		t.Error("field not found in output")
	}

	buf.Reset()
	logger.WithFields(map[string]interface{}{"k1": "v1", "k2": "v2"}).Info("with fields")
	output := buf.String()
	if !strings.Contains(output, "k1=v1") || !strings.Contains(output, "k2=v2") {
		t.Error("fields not found in output")
	}
}

// TestDefaultLogger 测试默认日志替换
func TestDefaultLogger(t *testing.T) {
	orig := Default()
	if orig == nil {
		t.Fatal("Default logger should not be nil")
	}
	defer SetDefault(orig)

	nop := NewNopLogger()
	SetDefault(nop)
	if Default() != nop {
		t.Error("SetDefault did not replace the default logger")
	}
}

// TestInit 测试按配置初始化
func TestInit(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	// 非法级别应该报错
	if err := Init(&Config{Level: "verbose"}); err == nil {
		t.Error("Init should reject unknown level")
	}

	// 非法输出目标应该报错
	if err := Init(&Config{Output: "syslog"}); err == nil {
		t.Error("Init should reject unknown output")
	}

	// file 输出但缺少路径应该报错
	if err := Init(&Config{Output: constants.LogOutputFile}); err == nil {
		t.Error("Init should require file path for file output")
	}

	// 正常配置
	if err := Init(&Config{
		Level:  constants.LogLevelDebug,
		Format: constants.LogFormatJSON,
		Output: constants.LogOutputStderr,
	}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if Default() == nil {
		t.Error("Default logger should be replaced after Init")
	}
}

// TestGlobalFunctions 测试全局函数
func TestGlobalFunctions(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	// 设置静默日志以避免输出
	SetDefault(NewNopLogger())

	// 所有全局函数都不应该 panic
	Debug("test")
	Info("test")
	Warn("test")
	Error("test")
	Debugf("test %s", "arg")
	Infof("test %s", "arg")
	Warnf("test %s", "arg")
	Errorf("test %s", "arg")

	// 派生入口都不应该返回 nil
	for name, l := range map[string]Logger{
		"WithField":     WithField("key", "value"),
		"WithFields":    WithFields(map[string]interface{}{"key": "value"}),
		"WithError":     WithError(nil),
		"WithComponent": WithComponent("registry"),
	} {
		if l == nil {
			t.Errorf("%s should not return nil", name)
		}
	}
}
