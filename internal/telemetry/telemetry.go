// Package telemetry installs the process-wide OpenTelemetry log provider.
// Records from every package logger end up on a zerolog console writer.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// Setup routes logs at or above level to out and returns a function that
// flushes and uninstalls the provider.
func Setup(level string, out io.Writer) (func(context.Context) error, error) {
	minLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level %q: %w", level, err)
	}
	if minLevel == zerolog.NoLevel {
		minLevel = zerolog.InfoLevel
	}

	exporter := newConsoleExporter(out, minLevel)
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exporter)))
	global.SetLoggerProvider(provider)

	return provider.Shutdown, nil
}

// consoleExporter writes log records through zerolog.
type consoleExporter struct {
	logger   zerolog.Logger
	minLevel zerolog.Level
}

func newConsoleExporter(out io.Writer, minLevel zerolog.Level) *consoleExporter {
	writer := zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly, NoColor: true}
	return &consoleExporter{
		logger:   zerolog.New(writer),
		minLevel: minLevel,
	}
}

func (e *consoleExporter) Export(_ context.Context, records []sdklog.Record) error {
	for _, record := range records {
		level := zerologLevel(record.Severity())
		if level < e.minLevel {
			continue
		}

		event := e.logger.WithLevel(level).
			Time(zerolog.TimestampFieldName, record.Timestamp()).
			Str("scope", record.InstrumentationScope().Name)
		record.WalkAttributes(func(kv otellog.KeyValue) bool {
			event = event.Str(kv.Key, kv.Value.String())
			return true
		})
		event.Msg(record.Body().String())
	}
	return nil
}

func (e *consoleExporter) Shutdown(context.Context) error   { return nil }
func (e *consoleExporter) ForceFlush(context.Context) error { return nil }

func zerologLevel(severity otellog.Severity) zerolog.Level {
	switch {
	case severity >= otellog.SeverityFatal:
		return zerolog.FatalLevel
	case severity >= otellog.SeverityError:
		return zerolog.ErrorLevel
	case severity >= otellog.SeverityWarn:
		return zerolog.WarnLevel
	case severity >= otellog.SeverityInfo:
		return zerolog.InfoLevel
	case severity >= otellog.SeverityDebug:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}
