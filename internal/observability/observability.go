// Package observability configures the process-wide slog default.
//
// Local formats (text, json) write to stderr. The otlp formats bridge slog
// into the OpenTelemetry log pipeline so a collector can ingest the CLI's
// logs; severity filtering happens inside the pipeline via minsev.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

const loggerName = "whoopctl"

// shutdown flushes the active log pipeline, if one was installed.
var shutdown func(context.Context) error

// Instrument installs the process-wide slog default for the given level and
// format. Supported formats: text, json, otlp, otlp-grpc, otlp-stdout.
func Instrument(level slog.Level, format string) error {
	switch format {
	case "text":
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	case "json":
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	case "otlp", "otlp-grpc", "otlp-stdout":
		return instrumentOTel(level, format)
	default:
		return fmt.Errorf("unsupported log format: %s", format)
	}
}

// instrumentOTel bridges slog into an OpenTelemetry log pipeline. Exporter
// endpoints follow the standard OTEL_EXPORTER_OTLP_* environment variables.
func instrumentOTel(level slog.Level, format string) error {
	ctx := context.Background()

	var (
		exporter sdklog.Exporter
		err      error
	)
	switch format {
	case "otlp":
		exporter, err = otlploghttp.New(ctx)
	case "otlp-grpc":
		exporter, err = otlploggrpc.New(ctx)
	case "otlp-stdout":
		exporter, err = stdoutlog.New()
	}
	if err != nil {
		return fmt.Errorf("creating log exporter: %w", err)
	}

	// Simple (synchronous) processing: a short-lived CLI must not lose tail
	// logs to an unflushed batch.
	processor := minsev.NewLogProcessor(sdklog.NewSimpleProcessor(exporter), severity(level))
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(processor))
	shutdown = provider.Shutdown

	slog.SetDefault(otelslog.NewLogger(loggerName, otelslog.WithLoggerProvider(provider)))
	return nil
}

// Shutdown flushes and stops the log pipeline. Safe to call when Instrument
// selected a local format.
func Shutdown(ctx context.Context) error {
	if shutdown == nil {
		return nil
	}
	return shutdown(ctx)
}

// severity maps a slog level onto the pipeline's minimum severity.
func severity(level slog.Level) minsev.Severity {
	switch {
	case level <= slog.LevelDebug:
		return minsev.SeverityDebug
	case level <= slog.LevelInfo:
		return minsev.SeverityInfo
	case level <= slog.LevelWarn:
		return minsev.SeverityWarn
	default:
		return minsev.SeverityError
	}
}
