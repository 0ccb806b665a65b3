package logging

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	current Level = LevelInfo
	base          = newLogger(os.Stderr)
)

func newLogger(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	return l
}

// InitFromEnv sets the log level based on LOG_LEVEL (debug|info|warn|error).
// When LOG_FILE is set, output is also written to a rotating file.
func InitFromEnv() {
	current = ParseLevel(os.Getenv("LOG_LEVEL"))

	path := strings.TrimSpace(os.Getenv("LOG_FILE"))
	if path == "" {
		return
	}
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    envInt("LOG_FILE_MAX_MB", 100),
		MaxBackups: envInt("LOG_FILE_MAX_BACKUPS", 5),
		MaxAge:     envInt("LOG_FILE_MAX_AGE_DAYS", 14),
		Compress:   true,
	}
	base.SetOutput(io.MultiWriter(os.Stderr, rotator))
}

// ParseLevel maps a level name to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return LevelError
	case "warn", "warning":
		return LevelWarn
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// SetOutput redirects log output. Tests use it to capture lines.
func SetOutput(w io.Writer) {
	base.SetOutput(w)
}

// SetLevel overrides the level chosen by InitFromEnv.
func SetLevel(l Level) {
	current = l
}

// WithComponent returns a structured entry tagged with the component name.
func WithComponent(name string) *logrus.Entry {
	return base.WithField("component", name)
}

func Debugf(format string, args ...interface{}) {
	if current <= LevelDebug {
		base.Debug(fmt.Sprintf(format, args...))
	}
}

func Infof(format string, args ...interface{}) {
	if current <= LevelInfo {
		base.Info(fmt.Sprintf(format, args...))
	}
}

func Warnf(format string, args ...interface{}) {
	if current <= LevelWarn {
		base.Warn(fmt.Sprintf(format, args...))
	}
}

func Errorf(format string, args ...interface{}) {
	base.Error(fmt.Sprintf(format, args...))
}

func Fatalf(format string, args ...interface{}) {
	base.Fatal(fmt.Sprintf(format, args...))
}

func envInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}
