package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level 日志级别
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

var levelColors = map[Level]string{
	DEBUG: "\033[36m", // cyan
	INFO:  "\033[32m", // green
	WARN:  "\033[33m", // yellow
	ERROR: "\033[31m", // red
}

const resetColor = "\033[0m"

// Logger 模块日志记录器
type Logger struct {
	module string
}

var (
	globalLevel           = INFO
	output      io.Writer = os.Stderr
	colored               = true
	outMu       sync.Mutex
)

// SetGlobalLevel 设置全局日志级别，对已创建的记录器同样生效
func SetGlobalLevel(level Level) {
	outMu.Lock()
	defer outMu.Unlock()
	globalLevel = level
}

// SetOutput 设置日志输出，非终端输出时关闭颜色
func SetOutput(w io.Writer, color bool) {
	outMu.Lock()
	defer outMu.Unlock()
	output = w
	colored = color
}

// ParseLevel 解析配置中的日志级别
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG, nil
	case "", "info":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("unknown log level: %q", s)
	}
}

// String 返回级别名称
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// New 创建模块日志记录器
func New(module string) *Logger {
	return &Logger{module: module}
}

// Sub 创建子模块记录器，如 "Meeting" -> "Meeting/subject-3"
func (l *Logger) Sub(name string) *Logger {
	return &Logger{module: l.module + "/" + name}
}

// log 内部日志方法
func (l *Logger) log(level Level, format string, args ...any) {
	outMu.Lock()
	defer outMu.Unlock()

	if level < globalLevel {
		return
	}

	timestamp := time.Now().Format("15:04:05.000")
	msg := fmt.Sprintf(format, args...)

	if colored {
		fmt.Fprintf(output, "%s%s%s [%s] %s: %s\n",
			levelColors[level], levelNames[level], resetColor,
			timestamp, l.module, msg)
		return
	}
	fmt.Fprintf(output, "%s [%s] %s: %s\n", levelNames[level], timestamp, l.module, msg)
}

// Debug 调试日志
func (l *Logger) Debug(format string, args ...any) {
	l.log(DEBUG, format, args...)
}

// Info 信息日志
func (l *Logger) Info(format string, args ...any) {
	l.log(INFO, format, args...)
}

// Warn 警告日志
func (l *Logger) Warn(format string, args ...any) {
	l.log(WARN, format, args...)
}

// Error 错误日志
func (l *Logger) Error(format string, args ...any) {
	l.log(ERROR, format, args...)
}
