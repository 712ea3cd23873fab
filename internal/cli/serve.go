package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/canonica-labs/zircon/internal/database"
	"github.com/canonica-labs/zircon/pkg/container"
	"github.com/canonica-labs/zircon/pkg/endpoints"
	"github.com/canonica-labs/zircon/pkg/host"
	"github.com/canonica-labs/zircon/pkg/migration"
	"github.com/canonica-labs/zircon/pkg/pipeline"
	"github.com/canonica-labs/zircon/pkg/result"
)

func (c *CLI) newServeCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Migrate and seed at startup, then serve status endpoints",
		Long: `Run the startup sequence as a host startup hook, then serve:
  GET /healthz  - process liveness
  GET /readyz   - 200 once startup completed
  GET /status   - applied and pending migrations, seed history

A migration or seeder failure aborts startup and the server never listens.
SIGINT/SIGTERM stop the server and release resources in reverse order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				c.cfg.Server.Listen = listen
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return c.runServe(ctx)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides server.listen)")

	return cmd
}

func (c *CLI) runServe(ctx context.Context) error {
	if err := c.cfg.Validate(); err != nil {
		return err
	}

	db, err := c.openDatabase(ctx)
	if err != nil {
		return err
	}

	h := host.New(host.Config{
		ShutdownTimeout: c.cfg.Server.ShutdownTimeout,
		Logger:          c.logger,
	})
	// registered first so it runs last
	h.OnStop("database", func(context.Context) error { return db.Close() })

	services, err := c.services(db, true)
	if err != nil {
		db.Close()
		return err
	}
	if _, err := migration.Register(h, services, c.options(), migration.WithLogger(c.logger)); err != nil {
		db.Close()
		return err
	}

	var ready atomic.Bool
	h.OnStart("ready", func(context.Context) error {
		ready.Store(true)
		return nil
	})
	h.OnStop("ready", func(context.Context) error {
		ready.Store(false)
		return nil
	})

	mux, err := c.statusMux(db, &ready)
	if err != nil {
		db.Close()
		return err
	}
	server := &http.Server{
		Addr:         c.cfg.Server.Listen,
		Handler:      mux,
		ReadTimeout:  c.cfg.Server.ReadTimeout,
		WriteTimeout: c.cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	h.AddService("http", host.HTTPService(server))

	c.logger.Info("Zircon starting",
		zap.String("listen", c.cfg.Server.Listen),
		zap.String("version", Version),
		zap.String("commit", GitCommit),
	)
	if err := h.Run(ctx); err != nil {
		return err
	}
	c.logger.Info("Zircon stopped")
	return nil
}

// statusRequest is the (empty) input of the status pipeline.
type statusRequest struct{}

// statusMux maps the status endpoints through a registry discovered from a
// container, so applications can add their own endpoints alongside.
func (c *CLI) statusMux(db *database.DB, ready *atomic.Bool) (*http.ServeMux, error) {
	status := pipeline.Chain(
		func(ctx context.Context, _ statusRequest) (result.Result[*StatusReport], error) {
			if !ready.Load() {
				return result.Failure[*StatusReport]("startup has not completed"), nil
			}
			report, err := c.collectStatus(ctx, db)
			if err != nil {
				return result.Result[*StatusReport]{}, err
			}
			return result.Success(report), nil
		},
		pipeline.Timing[statusRequest, result.Result[*StatusReport]](c.logger, "status", time.Second),
		pipeline.Tracing[statusRequest, result.Result[*StatusReport]](nil, "zircon.http.status"),
	)

	web := container.NewCollection()
	container.AddInstance[endpoints.Endpoint](web, endpoints.EndpointFunc(func(mux *http.ServeMux) {
		mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	}))
	container.AddInstance[endpoints.Endpoint](web, endpoints.EndpointFunc(func(mux *http.ServeMux) {
		mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, _ *http.Request) {
			if !ready.Load() {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		})
	}))
	container.AddInstance[endpoints.Endpoint](web, endpoints.EndpointFunc(func(mux *http.ServeMux) {
		mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
			res, err := status(r.Context(), statusRequest{})
			if err != nil {
				c.logger.Error("Status request failed", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "status unavailable"})
				return
			}
			if report, ok := res.Value(); ok {
				writeJSON(w, http.StatusOK, report)
				return
			}
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"errors": res.Errors(),
			})
		})
	}))

	provider, err := web.Build()
	if err != nil {
		return nil, err
	}
	registry, err := endpoints.Discover(provider)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	registry.MapEndpoints(mux)
	return mux, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
