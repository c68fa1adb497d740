package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/santega-authz/internal"
	"github.com/frahmantamala/santega-authz/internal/auth"
	"github.com/frahmantamala/santega-authz/internal/core/events"
	directoryPostgres "github.com/frahmantamala/santega-authz/internal/directory/postgres"
	directoryRest "github.com/frahmantamala/santega-authz/internal/directory/rest"
	"github.com/frahmantamala/santega-authz/internal/establishment"
	"github.com/frahmantamala/santega-authz/internal/obs"
	"github.com/frahmantamala/santega-authz/internal/transport"
	"github.com/frahmantamala/santega-authz/internal/transport/openapi"
	"github.com/frahmantamala/santega-authz/internal/transport/rest"
	"github.com/frahmantamala/santega-authz/pkg/logger"

	"github.com/go-chi/chi"
	"github.com/spf13/cobra"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

func startHTTPServer() {
	cfg, logger := mustLoad()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := initializeDependencies(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	defer deps.Close()

	if cfg.Observability.Metrics.Enabled {
		obs.Init()
	}

	manager := establishment.NewManager(deps.Directory, deps.Preferences,
		establishment.WithLogger(logger),
		establishment.WithPublisher(deps.Bus),
		establishment.WithIdleTTL(cfg.Session.IdleTTL))
	subscribeAudit(deps.Bus, manager)

	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		manager.RunSweeper(ctx, cfg.Session.SweepInterval)
	}()

	listenerDone := make(chan struct{})
	if cfg.Database.Source != "" {
		listener := directoryPostgres.NewListener(cfg.Database.Source, cfg.Directory.ListenChannel,
			func(ctx context.Context, professionalID string) {
				if err := deps.Bus.Publish(ctx, events.NewDirectoryChangedEvent(professionalID)); err != nil {
					logger.Warn("failed to publish directory change", "professional_id", professionalID, "error", err)
				}
			}, logger)
		go func() {
			defer close(listenerDone)
			_ = listener.Run(ctx)
		}()
	} else {
		close(listenerDone)
	}

	router, err := setupRoutes(ctx, deps, manager)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up routes: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Starting HTTP server", "address", addr,
		"directory_backend", cfg.Directory.Backend,
		"preference_backend", cfg.Preference.Backend)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received signal, shutting down...")
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	stop()
	<-listenerDone
	<-sweeperDone
	manager.Close()
	if err := deps.Bus.Close(shutdownCtx); err != nil {
		logger.Warn("event handlers still running at shutdown", "error", err)
	}

	logger.Info("Server stopped")
}

func setupRoutes(ctx context.Context, deps *Dependencies, manager *establishment.Manager) (*chi.Mux, error) {
	cfg := deps.Config

	var healthOpts []rest.HealthOption
	if deps.Redis != nil {
		healthOpts = append(healthOpts, rest.WithRedis(deps.Redis))
	}
	var healthHandler *rest.HealthHandler
	if deps.DB != nil {
		healthHandler = rest.NewHealthHandler(deps.DB.DB, healthOpts...)
	} else {
		healthHandler = rest.NewHealthHandler(nil, healthOpts...)
	}

	validator := auth.NewJWTValidator(cfg.Security.JWTSecret, auth.WithIssuer(cfg.Security.JWTIssuer), auth.WithLeeway(30*time.Second))
	authHandler := auth.NewHandler(validator, manager, deps.Logger)
	if cfg.Directory.Backend == internal.DirectoryBackendREST {
		authHandler.Forward = directoryRest.ContextWithToken
	}

	establishmentHandler := establishment.NewHandler(transport.NewBaseHandler(deps.Logger), manager)

	opts := rest.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MetricsEnabled: cfg.Observability.Metrics.Enabled,
		MetricsPath:    cfg.Observability.Metrics.Path,
	}
	if cfg.Server.OpenAPIPath != "" {
		doc, err := openapi.Load(ctx, cfg.Server.OpenAPIPath)
		if err != nil {
			return nil, err
		}
		opts.OpenAPI = doc
	}

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, healthHandler, authHandler, establishmentHandler, manager, opts, deps.Logger)
	return router, nil
}

// subscribeAudit logs every establishment event and refreshes signed-in
// professionals when the directory reports a change.
func subscribeAudit(bus *events.EventBus, manager *establishment.Manager) {
	bus.Subscribe(events.EventTypeDirectoryChanged, func(ctx context.Context, e events.Event) error {
		if changed, ok := e.(*events.DirectoryChangedEvent); ok {
			manager.OnDirectoryChanged(ctx, changed.ProfessionalID)
		}
		return nil
	})
	bus.Subscribe(events.AllEvents, func(ctx context.Context, e events.Event) error {
		logger.From(ctx).Info("establishment event",
			"event_type", e.EventType(),
			"event_id", e.EventID(),
			"payload", e.Payload())
		return nil
	})
}
