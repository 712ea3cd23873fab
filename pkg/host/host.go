// Package host runs an application's startup hooks and long-running services.
//
// Startup hooks run sequentially in registration order; the first failure
// aborts startup. Services then run concurrently until the context is
// cancelled or one of them fails, after which everything is stopped in
// reverse order within the shutdown timeout.
package host

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultShutdownTimeout bounds how long stopping services may take.
const DefaultShutdownTimeout = 10 * time.Second

// Hook is a unit of startup or shutdown work.
type Hook func(ctx context.Context) error

// Service is a long-running component. Start blocks until the service ends
// or Stop is called.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type namedHook struct {
	name string
	fn   Hook
}

type namedService struct {
	name    string
	service Service
}

// Config configures a Host.
type Config struct {
	// ShutdownTimeout bounds stop hooks and service shutdown (default: 10s).
	ShutdownTimeout time.Duration

	// Logger is for observability (optional).
	Logger *zap.Logger
}

// Host owns startup hooks, stop hooks and services.
type Host struct {
	config   Config
	starts   []namedHook
	stops    []namedHook
	services []namedService
}

// New creates a Host. Applies the default shutdown timeout if not set.
func New(cfg Config) *Host {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Host{config: cfg}
}

// OnStart registers a startup hook.
func (h *Host) OnStart(name string, fn Hook) {
	h.starts = append(h.starts, namedHook{name: name, fn: fn})
}

// OnStop registers a hook run during shutdown, after services stop.
// Stop hooks run in reverse registration order.
func (h *Host) OnStop(name string, fn Hook) {
	h.stops = append(h.stops, namedHook{name: name, fn: fn})
}

// AddService registers a long-running service.
func (h *Host) AddService(name string, s Service) {
	h.services = append(h.services, namedService{name: name, service: s})
}

// Start runs the startup hooks in order. The first failing hook aborts
// startup and its error is returned wrapped with the hook name.
func (h *Host) Start(ctx context.Context) error {
	log := h.config.Logger
	for _, hook := range h.starts {
		log.Info("Running startup hook", zap.String("hook", hook.name))
		if err := hook.fn(ctx); err != nil {
			log.Error("Startup hook failed", zap.String("hook", hook.name), zap.Error(err))
			return fmt.Errorf("startup hook %s: %w", hook.name, err)
		}
		log.Info("Startup hook completed", zap.String("hook", hook.name))
	}
	return nil
}

// Run starts the host, runs services until ctx is cancelled or a service
// fails, then shuts down. Stop hooks run even when startup fails.
func (h *Host) Run(ctx context.Context) error {
	if err := h.Start(ctx); err != nil {
		return stderrors.Join(err, h.shutdown(nil))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range h.services {
		g.Go(func() error {
			h.config.Logger.Info("Starting service", zap.String("service", s.name))
			if err := s.service.Start(gctx); err != nil {
				return fmt.Errorf("service %s: %w", s.name, err)
			}
			return nil
		})
	}

	// Wait for cancellation or the first service failure, then stop all.
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	stopped := make(chan error, 1)
	go func() {
		<-gctx.Done()
		stopped <- h.shutdown(h.services)
	}()

	runErr := g.Wait()
	stopErr := <-stopped
	return stderrors.Join(runErr, stopErr)
}

// Stop runs the stop hooks for a host that was started with Start rather
// than Run.
func (h *Host) Stop() error {
	return h.shutdown(nil)
}

func (h *Host) shutdown(services []namedService) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.ShutdownTimeout)
	defer cancel()

	log := h.config.Logger
	var errs []error
	for _, s := range slices.Backward(services) {
		log.Info("Stopping service", zap.String("service", s.name))
		if err := s.service.Stop(ctx); err != nil {
			log.Error("Service stop failed", zap.String("service", s.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("stop service %s: %w", s.name, err))
		}
	}
	for _, hook := range slices.Backward(h.stops) {
		if err := hook.fn(ctx); err != nil {
			log.Error("Stop hook failed", zap.String("hook", hook.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("stop hook %s: %w", hook.name, err))
		}
	}
	return stderrors.Join(errs...)
}

// HTTPService adapts an *http.Server to Service.
func HTTPService(server *http.Server) Service {
	return httpService{server: server}
}

type httpService struct {
	server *http.Server
}

func (s httpService) Start(context.Context) error {
	if err := s.server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s httpService) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
