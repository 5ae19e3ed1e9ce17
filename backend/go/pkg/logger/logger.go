package logger

import (
	"AskArchive/backend/go/internal/models"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger 是对 logrus 的封装，以提供更方便的结构化日志记录功能。
// 所有 With* 方法都返回新的 Logger，不会修改原有实例，因此可以在多个 goroutine 之间共享。
type Logger struct {
	entry *logrus.Entry
}

// Init 初始化全局的 logrus 配置。
func Init(level logrus.Level) {
	// 设置日志格式为 JSON，便于日志采集和分析。
	logrus.SetFormatter(jsonFormatter())

	// 设置日志输出到标准输出（终端）。
	logrus.SetOutput(os.Stdout)

	// 设置全局日志级别。
	logrus.SetLevel(level)
}

// ParseLevel 将配置中的级别字符串转换为 logrus 级别，无法识别时回退到 Info。
func ParseLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

func jsonFormatter() *logrus.JSONFormatter {
	return &logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	}
}

// New 创建一个新的 Logger 实例，并预设服务名、trace ID 和用户 ID 字段。
func New(serviceName, traceID, userID string) *Logger {
	return &Logger{
		entry: logrus.WithFields(logrus.Fields{
			"service_name": serviceName,
			"trace_id":     traceID,
			"user_id":      userID,
		}),
	}
}

// NewWithOutput 创建一个写入指定 io.Writer 的独立 Logger，不影响全局配置。
func NewWithOutput(serviceName string, out io.Writer) *Logger {
	l := logrus.New()
	l.SetFormatter(jsonFormatter())
	l.SetOutput(out)
	l.SetLevel(logrus.DebugLevel)
	return &Logger{
		entry: l.WithField("service_name", serviceName),
	}
}

// Discard 返回一个丢弃所有输出的 Logger，主要用于测试。
func Discard() *Logger {
	return NewWithOutput("discard", io.Discard)
}

// WithField 添加单个字段。
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

// WithTrace 覆盖 trace_id 和 user_id 字段，用于请求级别的日志。
func (l *Logger) WithTrace(traceID, userID string) *Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields{
		"trace_id": traceID,
		"user_id":  userID,
	})}
}

// WithRequest 将请求信息添加到日志条目中。
func (l *Logger) WithRequest(req models.RequestInfo) *Logger {
	return &Logger{entry: l.entry.WithField("request_info", req)}
}

// WithError 将错误信息添加到日志条目中。
func (l *Logger) WithError(err models.ErrorInfo) *Logger {
	return &Logger{entry: l.entry.WithField("error", err)}
}

// WithPayload 将自定义的业务数据添加到日志条目中。
func (l *Logger) WithPayload(payload map[string]interface{}) *Logger {
	return &Logger{entry: l.entry.WithField("payload", payload)}
}

// Info 记录一条信息级别的日志。
func (l *Logger) Info(message string) {
	l.entry.Info(message)
}

// Warn 记录一条警告级别的日志。
func (l *Logger) Warn(message string) {
	l.entry.Warn(message)
}

// Error 记录一条错误级别的日志。
func (l *Logger) Error(message string) {
	l.entry.Error(message)
}

// Debug 记录一条调试级别的日志。
func (l *Logger) Debug(message string) {
	l.entry.Debug(message)
}

// Fatal 记录一条致命错误级别的日志，并终止程序。
func (l *Logger) Fatal(message string) {
	l.entry.Fatal(message)
}
