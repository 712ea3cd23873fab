package migration

import (
	"context"
	stderrors "errors"
	"slices"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/canonica-labs/zircon/internal/errors"
	"github.com/canonica-labs/zircon/internal/observability"
	"github.com/canonica-labs/zircon/pkg/container"
)

// Config holds configuration for the Orchestrator.
type Config struct {
	// Provider supplies the Migrator, Seeders and optional Locker (required).
	Provider *container.Provider

	// Options carries the context name used in logs and spans.
	Options Options

	// Logger is for observability (optional).
	Logger *zap.Logger

	// TracerProvider supplies spans (optional, defaults to the global provider).
	TracerProvider trace.TracerProvider
}

// Orchestrator runs the migrate-then-seed startup sequence.
type Orchestrator struct {
	provider *container.Provider
	options  Options
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewOrchestrator creates an Orchestrator from cfg.
func NewOrchestrator(cfg Config) *Orchestrator {
	return &Orchestrator{
		provider: cfg.Provider,
		options:  cfg.Options,
		logger:   observability.OrNop(cfg.Logger),
		tracer:   observability.Tracer(cfg.TracerProvider),
	}
}

// Run migrates the database, then runs every seeder in registration order.
// It stops at the first failure and returns that error unchanged.
func (o *Orchestrator) Run(ctx context.Context) (err error) {
	runID := uuid.NewString()
	contextName := o.options.ContextName()
	log := o.logger.With(zap.String("run_id", runID), zap.String("context", contextName))

	ctx, span := observability.StartSpan(ctx, o.tracer, "zircon.migration.run",
		observability.AttrRunID.String(runID),
		observability.AttrContext.String(contextName),
	)
	defer func() {
		observability.RecordError(span, err)
		span.End()
	}()

	scope := o.provider.CreateScope()
	defer func() {
		if closeErr := scope.Close(); closeErr != nil {
			log.Warn("Failed to close migration scope", zap.Error(closeErr))
		}
	}()

	migrator, err := container.Resolve[Migrator](scope)
	if err == nil && migrator == nil {
		err = nilService[Migrator]()
	}
	if err != nil {
		log.Error("Failed to resolve migrator", zap.Error(err))
		return err
	}
	seeders, err := container.ResolveAll[Seeder](scope)
	if err == nil && slices.Contains(seeders, nil) {
		err = nilService[Seeder]()
	}
	if err != nil {
		log.Error("Failed to resolve seeders", zap.Error(err))
		return err
	}
	span.SetAttributes(observability.AttrSeederCount.Int(len(seeders)))

	locker, locked, err := container.ResolveOptional[Locker](scope)
	if err == nil && locked && locker == nil {
		err = nilService[Locker]()
	}
	if err != nil {
		log.Error("Failed to resolve migration lock", zap.Error(err))
		return err
	}
	if locked {
		unlock, err := locker.Lock(ctx)
		if err != nil {
			log.Error("Failed to acquire migration lock", zap.Error(err))
			return err
		}
		defer func() {
			// Release with a fresh context so a cancelled run still unlocks.
			if unlockErr := unlock(context.WithoutCancel(ctx)); unlockErr != nil {
				log.Warn("Failed to release migration lock", zap.Error(unlockErr))
			}
		}()
	}

	if err := o.migrate(ctx, log, migrator); err != nil {
		return err
	}
	for _, s := range seeders {
		if err := o.seed(ctx, log, s); err != nil {
			return err
		}
	}

	log.Info("Database initialization completed", zap.Int("seeders", len(seeders)))
	return nil
}

func (o *Orchestrator) migrate(ctx context.Context, log *zap.Logger, m Migrator) (err error) {
	ctx, span := observability.StartSpan(ctx, o.tracer, "zircon.migration.migrate")
	defer func() {
		observability.RecordError(span, err)
		span.End()
	}()

	log.Info("Applying database migrations")
	if err := m.Migrate(ctx); err != nil {
		log.Error("Database migration failed", zap.Error(err))
		return err
	}
	log.Info("Database migrations applied")
	return nil
}

func (o *Orchestrator) seed(ctx context.Context, log *zap.Logger, s Seeder) (err error) {
	name := s.Name()
	ctx, span := observability.StartSpan(ctx, o.tracer, "zircon.migration.seed",
		observability.AttrSeeder.String(name),
	)
	defer func() {
		observability.RecordError(span, err)
		span.End()
	}()

	log = log.With(zap.String("seeder", name))
	log.Info("Running seeder")
	if err := s.Seed(ctx); err != nil {
		if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
			log.Warn("Seeder interrupted", zap.Error(err))
		} else {
			log.Error("Seeder failed", zap.Error(err))
		}
		return err
	}
	log.Info("Seeder completed")
	return nil
}

// nilService reports a factory that produced no value for T.
func nilService[T any]() error {
	return errors.NewInvalidDescriptor(container.TypeOf[T]().String(), "factory returned nil")
}
