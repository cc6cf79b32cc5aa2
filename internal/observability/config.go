package observability

import (
	"strings"

	"github.com/smallbiznis/bukukas/internal/config"
)

// Config is the telemetry view of the application config.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	Tracing bool
	OTLP    struct {
		Endpoint string
		Protocol string
		Sampling float64
	}
}

func LoadConfig(cfg config.Config) Config {
	out := Config{
		ServiceName: strings.TrimSpace(cfg.AppName),
		Environment: strings.TrimSpace(cfg.Environment),
		Version:     strings.TrimSpace(cfg.AppVersion),
		LogLevel:    cfg.LogLevel,
		LogFormat:   cfg.LogFormat,
		Tracing:     cfg.OtelEnabled,
	}
	if out.ServiceName == "" {
		out.ServiceName = "bukukas"
	}
	out.OTLP.Endpoint = cfg.OtelEndpoint
	out.OTLP.Protocol = cfg.OtelProtocol
	out.OTLP.Sampling = cfg.OtelSamplingRatio
	return out
}

// Debug turns on stack traces and per-request error stacks.
func (c Config) Debug() bool {
	if strings.EqualFold(strings.TrimSpace(c.LogLevel), "debug") {
		return true
	}
	switch strings.ToLower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}
