package observability

import (
	"github.com/smallbiznis/bukukas/internal/observability/logger"
	"github.com/smallbiznis/bukukas/internal/observability/metrics"
	"github.com/smallbiznis/bukukas/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		func(cfg Config) logger.Config {
			return logger.Config{
				ServiceName: cfg.ServiceName,
				Environment: cfg.Environment,
				Version:     cfg.Version,
				Level:       cfg.LogLevel,
				Format:      cfg.LogFormat,
				Debug:       cfg.Debug(),
			}
		},
		logger.New,
		func(cfg Config) tracing.Config {
			return tracing.Config{
				Enabled:          cfg.Tracing,
				ServiceName:      cfg.ServiceName,
				ServiceVersion:   cfg.Version,
				Environment:      cfg.Environment,
				ExporterEndpoint: cfg.OTLP.Endpoint,
				ExporterProtocol: cfg.OTLP.Protocol,
				SamplingRatio:    cfg.OTLP.Sampling,
			}
		},
		tracing.NewProvider,
		func(cfg Config) metrics.Config {
			return metrics.Config{ServiceName: cfg.ServiceName, Environment: cfg.Environment}
		},
		metrics.NewRegistry,
		metrics.NewHTTPMetrics,
		metrics.NewBillingMetrics,
	),
	// The tracer provider must exist before the first request span.
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)
