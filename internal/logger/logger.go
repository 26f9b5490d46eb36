// Package logger provides leveled structured logging.
package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// Level represents a logging level.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func parseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Logger provides leveled logging.
type Logger struct {
	level  Level
	logger *log.Logger
}

var defaultLogger *Logger

// Init initializes the default logger with the specified level and format.
func Init(level string, format string) {
	flags := log.LstdFlags | log.Lmicroseconds
	if strings.ToLower(format) == "text" {
		flags |= log.Lshortfile
	}

	defaultLogger = &Logger{
		level:  parseLevel(level),
		logger: log.New(os.Stderr, "", flags),
	}
}

func output(level Level, format string, args ...interface{}) {
	if defaultLogger == nil || defaultLogger.level > level {
		return
	}
	msg := fmt.Sprintf("["+level.String()+"] "+format, args...)
	_ = defaultLogger.logger.Output(3, msg)
}

func Debug(format string, args ...interface{}) {
	output(DebugLevel, format, args...)
}

func Info(format string, args ...interface{}) {
	output(InfoLevel, format, args...)
}

func Warn(format string, args ...interface{}) {
	output(WarnLevel, format, args...)
}

func Error(format string, args ...interface{}) {
	output(ErrorLevel, format, args...)
}

func Fatal(format string, args ...interface{}) {
	msg := fmt.Sprintf("[FATAL] "+format, args...)
	if defaultLogger != nil {
		_ = defaultLogger.logger.Output(3, msg)
	}
	os.Exit(1)
}
