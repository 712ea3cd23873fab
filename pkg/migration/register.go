package migration

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/canonica-labs/zircon/pkg/container"
	"github.com/canonica-labs/zircon/pkg/host"
)

// HookName is the startup hook name used by Register.
const HookName = "database-migration"

// RegisterOption customizes Register.
type RegisterOption func(*Config)

// WithLogger sets the orchestrator logger.
func WithLogger(l *zap.Logger) RegisterOption {
	return func(c *Config) { c.Logger = l }
}

// WithTracerProvider sets the tracer provider used for spans.
func WithTracerProvider(tp trace.TracerProvider) RegisterOption {
	return func(c *Config) { c.TracerProvider = tp }
}

// Register builds an isolated provider from services with opts' overrides
// applied and wires the orchestrator as a startup hook on h. services is not
// modified. The provider is closed when the host stops.
func Register(h *host.Host, services *container.Collection, opts Options, ro ...RegisterOption) (*Orchestrator, error) {
	provider, err := container.BuildWithOverrides(services, opts.Overrides())
	if err != nil {
		return nil, err
	}

	cfg := Config{Provider: provider, Options: opts}
	for _, o := range ro {
		o(&cfg)
	}
	orchestrator := NewOrchestrator(cfg)

	h.OnStart(HookName, orchestrator.Run)
	h.OnStop(HookName, func(ctx context.Context) error {
		return provider.Close()
	})
	return orchestrator, nil
}
