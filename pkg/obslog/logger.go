// Package obslog is the pipeline's structured logging surface. Adapted
// from the teacher's internal/logger/logger.go: zerolog under the hood,
// OpenTelemetry trace-id correlation via WithContext, a global singleton
// initialized once. Field helpers are generalized from cloud-resource
// fields (resource, provider) to pipeline fields (account, fingerprint,
// family, metric).
package obslog

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Logger is the structured logging surface every package in the pipeline
// takes as a dependency instead of calling fmt.Print* directly.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	WithContext(ctx context.Context) Logger
	WithFields(fields ...Field) Logger
	WithError(err error) Logger
}

// Field is a single structured key/value pair.
type Field struct {
	Key   string
	Value interface{}
}

// ZeroLogger implements Logger on top of zerolog.
type ZeroLogger struct {
	logger zerolog.Logger
	fields []Field
}

var (
	globalLogger *ZeroLogger
	once         sync.Once
)

// Config configures the global logger.
type Config struct {
	Level  string // trace|debug|info|warn|error|fatal|panic
	Format string // "console" for human-readable, anything else for JSON
	Output io.Writer
	Caller bool
}

// Initialize sets up the global logger. Safe to call multiple times; only
// the first call takes effect, matching the teacher's sync.Once guard.
func Initialize(cfg Config) {
	once.Do(func() {
		output := cfg.Output
		if output == nil {
			output = os.Stdout
		}
		if cfg.Format == "console" {
			output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
		}

		zerolog.SetGlobalLevel(parseLevel(cfg.Level))
		base := zerolog.New(output).With().Timestamp()
		if cfg.Caller {
			base = base.Caller()
		}
		globalLogger = &ZeroLogger{logger: base.Logger()}
	})
}

// Get returns the global logger, initializing it with sane defaults if
// Initialize was never called.
func Get() Logger {
	if globalLogger == nil {
		Initialize(Config{Level: "info", Format: "json", Caller: true})
	}
	return globalLogger
}

// New returns a logger scoped to a named component, e.g. "prminer" or
// "factcache".
func New(component string) Logger {
	return Get().WithFields(String("component", component))
}

func (l *ZeroLogger) WithContext(ctx context.Context) Logger {
	next := &ZeroLogger{logger: l.logger, fields: append([]Field{}, l.fields...)}
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		next.fields = append(next.fields, String("trace_id", span.SpanContext().TraceID().String()))
	}
	return next
}

func (l *ZeroLogger) WithFields(fields ...Field) Logger {
	return &ZeroLogger{logger: l.logger, fields: append(append([]Field{}, l.fields...), fields...)}
}

func (l *ZeroLogger) WithError(err error) Logger {
	if err == nil {
		return l
	}
	return l.WithFields(String("error", err.Error()), String("error_type", fmt.Sprintf("%T", err)))
}

func (l *ZeroLogger) Debug(msg string, fields ...Field) { l.logEvent(l.logger.Debug(), msg, fields...) }
func (l *ZeroLogger) Info(msg string, fields ...Field)  { l.logEvent(l.logger.Info(), msg, fields...) }
func (l *ZeroLogger) Warn(msg string, fields ...Field)  { l.logEvent(l.logger.Warn(), msg, fields...) }
func (l *ZeroLogger) Error(msg string, fields ...Field) { l.logEvent(l.logger.Error(), msg, fields...) }
func (l *ZeroLogger) Fatal(msg string, fields ...Field) { l.logEvent(l.logger.Fatal(), msg, fields...) }

func (l *ZeroLogger) logEvent(event *zerolog.Event, msg string, fields ...Field) {
	for _, f := range l.fields {
		event = addField(event, f)
	}
	for _, f := range fields {
		event = addField(event, f)
	}
	event.Msg(msg)
}

func addField(event *zerolog.Event, field Field) *zerolog.Event {
	switch v := field.Value.(type) {
	case string:
		return event.Str(field.Key, v)
	case int:
		return event.Int(field.Key, v)
	case int64:
		return event.Int64(field.Key, v)
	case float64:
		return event.Float64(field.Key, v)
	case bool:
		return event.Bool(field.Key, v)
	case time.Time:
		return event.Time(field.Key, v)
	case time.Duration:
		return event.Dur(field.Key, v)
	case error:
		return event.Err(v)
	default:
		return event.Interface(field.Key, v)
	}
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Field constructors, including the pipeline-specific ones used across
// the storage gateway, fact cache, miners, and heater.

func String(key, value string) Field     { return Field{Key: key, Value: value} }
func Int(key string, v int) Field        { return Field{Key: key, Value: v} }
func Int64(key string, v int64) Field    { return Field{Key: key, Value: v} }
func Duration(key string, v time.Duration) Field { return Field{Key: key, Value: v} }
func Any(key string, v interface{}) Field { return Field{Key: key, Value: v} }

// AccountID tags a log line with the tenant account it was produced for.
func AccountID(id int64) Field { return Int64("account_id", id) }

// Fingerprint tags a log line with the release-match/mining-request
// fingerprint behind a fact-cache lookup.
func Fingerprint(fp string) Field { return String("fingerprint", fp) }

// Family tags a log line with the metric family (pr|release|jira) a batch
// belongs to.
func Family(family string) Field { return String("family", family) }

// Metric tags a log line with a metric identifier.
func Metric(name string) Field { return String("metric", name) }
