package reporting

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel represents the logging level
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogFormat represents the logging format
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

// Verbosity controls which classification outcomes Logger.Classification
// actually emits. It mirrors pkg/config's Verbosity enum but lives here
// too so this package doesn't have to import pkg/config.
type Verbosity string

const (
	VerbosityAll        Verbosity = "ALL"
	VerbosityAllowOnly  Verbosity = "ALLOW_ONLY"
	VerbosityRejectOnly Verbosity = "REJECT_ONLY"
	VerbosityNone       Verbosity = "NONE"
)

// LoggerConfig contains logger configuration
type LoggerConfig struct {
	Level     LogLevel
	Format    LogFormat
	Output    io.Writer
	Verbosity Verbosity
}

// Logger provides structured logging, plus verbosity-gated classification
// logging for the trainer/evaluator drivers.
type Logger struct {
	logger    zerolog.Logger
	verbosity Verbosity
}

func zerologLevel(lvl LogLevel) zerolog.Level {
	switch lvl {
	case LogLevelDebug:
		return zerolog.DebugLevel
	case LogLevelWarn:
		return zerolog.WarnLevel
	case LogLevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new structured logger
func NewLogger(cfg LoggerConfig) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.Verbosity == "" {
		cfg.Verbosity = VerbosityAll
	}

	var output io.Writer = cfg.Output
	if cfg.Format == LogFormatText {
		output = zerolog.ConsoleWriter{
			Out:        cfg.Output,
			TimeFormat: time.RFC3339,
			NoColor:    false,
		}
	}

	zlog := zerolog.New(output).With().Timestamp().Logger().Level(zerologLevel(cfg.Level))

	return &Logger{logger: zlog, verbosity: cfg.Verbosity}
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields ...interface{}) {
	event := l.logger.Debug()
	l.addFields(event, fields...)
	event.Msg(msg)
}

// Info logs an info message
func (l *Logger) Info(msg string, fields ...interface{}) {
	event := l.logger.Info()
	l.addFields(event, fields...)
	event.Msg(msg)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields ...interface{}) {
	event := l.logger.Warn()
	l.addFields(event, fields...)
	event.Msg(msg)
}

// Error logs an error message
func (l *Logger) Error(msg string, fields ...interface{}) {
	event := l.logger.Error()
	l.addFields(event, fields...)
	event.Msg(msg)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(msg string, fields ...interface{}) {
	event := l.logger.Fatal()
	l.addFields(event, fields...)
	event.Msg(msg)
}

// Classification logs one classified domain at info level, gated by the
// logger's configured Verbosity: ALL always logs, ALLOW_ONLY/REJECT_ONLY
// log only matching verdicts, NONE never logs. verdict is expected to be
// "ALLOW" or "REJECT" (classification.Verdict.String()).
func (l *Logger) Classification(verdict string, msg string, fields ...interface{}) {
	switch l.verbosity {
	case VerbosityNone:
		return
	case VerbosityAllowOnly:
		if verdict != "ALLOW" {
			return
		}
	case VerbosityRejectOnly:
		if verdict != "REJECT" {
			return
		}
	}
	event := l.logger.Info()
	l.addFields(event, fields...)
	event.Msg(msg)
}

// WithField creates a child logger with an additional field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{
		logger:    l.logger.With().Interface(key, value).Logger(),
		verbosity: l.verbosity,
	}
}

// WithFields creates a child logger with additional fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{
		logger:    ctx.Logger(),
		verbosity: l.verbosity,
	}
}

// addFields adds key-value pairs to a log event
func (l *Logger) addFields(event *zerolog.Event, fields ...interface{}) {
	if len(fields)%2 != 0 {
		event.Str("error", "odd number of fields")
		return
	}

	for i := 0; i < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			event.Str("error", fmt.Sprintf("field key at index %d is not a string", i))
			continue
		}

		value := fields[i+1]
		event.Interface(key, value)
	}
}
