// Package logging implements the leveled logger of SPEC_FULL.md §4.10,
// adapted directly from the teacher's lib/logging: same level set, same
// text formatting and date/time-structured log file layout, same lazily
// initialized global singleton — with the viper-coupled constructor replaced
// by a plain Init(level, output, path), so this package imports neither
// viper nor the config package.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity of a log message.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel converts a string to LogLevel, defaulting to INFO.
func ParseLogLevel(level string) LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}

// Logger is a leveled, optionally file-backed logger.
type Logger struct {
	level      LogLevel
	output     string
	logDir     string
	currentLog *os.File
	mu         sync.RWMutex
	started    time.Time
}

var (
	globalLogger *Logger
	once         sync.Once
)

// Init initializes the global logger from the given level/output/path
// (normally sourced from config.Get().Logging). Safe to call once at
// startup; subsequent calls are no-ops.
func Init(level, output, path string) error {
	var err error
	once.Do(func() {
		globalLogger, err = New(level, output, path)
	})
	return err
}

// Get returns the global logger, falling back to a stdout/INFO logger if
// Init was never called.
func Get() *Logger {
	if globalLogger == nil {
		l, _ := New("info", "stdout", "")
		return l
	}
	return globalLogger
}

// New builds a standalone logger instance.
func New(level, output, path string) (*Logger, error) {
	l := &Logger{
		level:   ParseLogLevel(level),
		output:  output,
		logDir:  path,
		started: time.Now(),
	}
	if err := l.setupOutput(); err != nil {
		return nil, fmt.Errorf("setup logger output: %w", err)
	}
	return l, nil
}

func (l *Logger) setupOutput() error {
	if l.output == "stdout" {
		return nil
	}
	if l.output == "file" || l.output == "both" {
		return l.createLogFile()
	}
	return nil
}

func (l *Logger) createLogFile() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.started
	dateDir := now.Format("2006-01-02")
	timeFile := now.Format("15-04-05") + ".log"

	fullDir := filepath.Join(l.logDir, dateDir)
	if err := os.MkdirAll(fullDir, 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	logPath := filepath.Join(fullDir, timeFile)
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("create log file: %w", err)
	}

	if l.currentLog != nil {
		l.currentLog.Close()
	}
	l.currentLog = file
	return nil
}

func (l *Logger) shouldLog(level LogLevel) bool {
	return level >= l.level
}

func (l *Logger) getWriter() io.Writer {
	l.mu.RLock()
	defer l.mu.RUnlock()

	switch l.output {
	case "file":
		if l.currentLog != nil {
			return l.currentLog
		}
		return os.Stdout
	case "both":
		if l.currentLog != nil {
			return io.MultiWriter(os.Stdout, l.currentLog)
		}
		return os.Stdout
	default:
		return os.Stdout
	}
}

func (l *Logger) formatMessage(level LogLevel, msg string, fields map[string]interface{}) string {
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	result := fmt.Sprintf("%s [%s] %s", timestamp, level.String(), msg)
	if len(fields) > 0 {
		result += " |"
		for k, v := range fields {
			result += fmt.Sprintf(" %s=%v", k, v)
		}
	}
	return result
}

func (l *Logger) log(level LogLevel, msg string, fields map[string]interface{}) {
	if !l.shouldLog(level) {
		return
	}
	fmt.Fprintln(l.getWriter(), l.formatMessage(level, msg, fields))
	if level == FATAL {
		os.Exit(1)
	}
}

func (l *Logger) Debug(msg string, fields ...map[string]interface{}) { l.log(DEBUG, msg, firstOrNil(fields)) }
func (l *Logger) Info(msg string, fields ...map[string]interface{})  { l.log(INFO, msg, firstOrNil(fields)) }
func (l *Logger) Warn(msg string, fields ...map[string]interface{})  { l.log(WARN, msg, firstOrNil(fields)) }
func (l *Logger) Error(msg string, fields ...map[string]interface{}) { l.log(ERROR, msg, firstOrNil(fields)) }
func (l *Logger) Fatal(msg string, fields ...map[string]interface{}) { l.log(FATAL, msg, firstOrNil(fields)) }

func (l *Logger) Debugf(format string, args ...interface{}) { l.Debug(fmt.Sprintf(format, args...)) }
func (l *Logger) Infof(format string, args ...interface{})  { l.Info(fmt.Sprintf(format, args...)) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.Warn(fmt.Sprintf(format, args...)) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.Error(fmt.Sprintf(format, args...)) }
func (l *Logger) Fatalf(format string, args ...interface{}) { l.Fatal(fmt.Sprintf(format, args...)) }

// Close closes any open log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.currentLog != nil {
		return l.currentLog.Close()
	}
	return nil
}

func firstOrNil(fields []map[string]interface{}) map[string]interface{} {
	if len(fields) > 0 {
		return fields[0]
	}
	return nil
}

// Global convenience functions, matching the teacher's package-level API.

func Debug(msg string, fields ...map[string]interface{}) { Get().Debug(msg, fields...) }
func Info(msg string, fields ...map[string]interface{})  { Get().Info(msg, fields...) }
func Warn(msg string, fields ...map[string]interface{})  { Get().Warn(msg, fields...) }
func Error(msg string, fields ...map[string]interface{}) { Get().Error(msg, fields...) }
func Fatal(msg string, fields ...map[string]interface{}) { Get().Fatal(msg, fields...) }

func Debugf(format string, args ...interface{}) { Get().Debugf(format, args...) }
func Infof(format string, args ...interface{})  { Get().Infof(format, args...) }
func Warnf(format string, args ...interface{})  { Get().Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { Get().Errorf(format, args...) }
func Fatalf(format string, args ...interface{}) { Get().Fatalf(format, args...) }
