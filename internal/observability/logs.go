package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitLoggerProvider creates an OTLP/HTTP logger provider and installs it globally
func InitLoggerProvider(ctx context.Context, cfg TelemetryConfig, res *resource.Resource) (*sdklog.LoggerProvider, error) {
	opts := []otlploghttp.Option{
		otlploghttp.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlploghttp.WithInsecure())
	}

	exporter, err := otlploghttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating log exporter: %w", err)
	}

	lp := newLoggerProvider(sdklog.NewBatchProcessor(exporter), res)
	global.SetLoggerProvider(lp)
	return lp, nil
}

func newLoggerProvider(processor sdklog.Processor, res *resource.Resource) *sdklog.LoggerProvider {
	return sdklog.NewLoggerProvider(
		sdklog.WithProcessor(processor),
		sdklog.WithResource(res),
	)
}

// WrapLogger tees logger into the exported log pipeline.
// Without log export the logger is returned unchanged.
func (t *Telemetry) WrapLogger(logger *zap.Logger) *zap.Logger {
	if t.loggerProvider == nil {
		return logger
	}
	return teeLogger(logger, t.loggerProvider)
}

// teeLogger copies every entry logger writes to provider, at the logger's own level
func teeLogger(logger *zap.Logger, provider log.LoggerProvider) *zap.Logger {
	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		var exported zapcore.Core = otelzap.NewCore(InstrumentationName, otelzap.WithLoggerProvider(provider))
		if leveled, err := zapcore.NewIncreaseLevelCore(exported, core); err == nil {
			exported = leveled
		}
		return zapcore.NewTee(core, exported)
	}))
}
