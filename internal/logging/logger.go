package logging

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger the way the rest of the stack expects: callers
// take a *Logger (or logrus.FieldLogger) rather than reaching for a package
// global, so tests can swap in a discard logger.
type Logger struct {
	*logrus.Logger
}

// Config configures level/format/output. Mirrors the shape consumed by
// internal/config.Config.Logging.
type Config struct {
	Level  string `yaml:"level" env:"LOG_LEVEL,default=info"`
	Format string `yaml:"format" env:"LOG_FORMAT,default=text"`
}

// New builds a Logger from Config, defaulting to info/text on bad input
// rather than failing startup over a logging misconfiguration.
func New(cfg Config) *Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	l.SetOutput(os.Stdout)

	return &Logger{Logger: l}
}

// NewDefault returns an info-level, text-formatted logger. name is not
// attached to the entries it writes: the "component" field is set on a
// throwaway entry and only that entry's underlying logger is kept.
func NewDefault(name string) *Logger {
	l := New(Config{Level: "info", Format: "text"})
	return &Logger{Logger: l.Logger.WithField("component", name).Logger}
}

// WithField returns a log entry carrying one extra field.
func (l *Logger) WithField(key string, value any) *logrus.Entry {
	return l.Logger.WithField(key, value)
}

// WithFields returns a log entry carrying several extra fields.
func (l *Logger) WithFields(fields logrus.Fields) *logrus.Entry {
	return l.Logger.WithFields(fields)
}
