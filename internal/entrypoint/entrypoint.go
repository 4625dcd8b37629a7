package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/catalogmirror/internal/config"
	http_controllers "github.com/mrlokans/catalogmirror/internal/http"
	"github.com/mrlokans/catalogmirror/internal/logger"
	"github.com/mrlokans/catalogmirror/internal/scheduler"
	"github.com/mrlokans/catalogmirror/internal/tasks"
)

// schedulerSlack is added to the execution budget to bound one cron run.
const schedulerSlack = 30 * time.Second

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// Serve runs the HTTP server until ctx is cancelled, then shuts it down
// within the configured timeout.
func Serve(ctx context.Context, router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) error {
	log := logger.Default().Component("server")
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var listenErr error
	select {
	case listenErr = <-errCh:
	case <-ctx.Done():
	}
	log.WithField("timeout", timeout.String()).Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop background work first so nothing writes after the server is gone.
	if onShutdown != nil {
		onShutdown(shutdownCtx)
	}
	if listenErr != nil {
		return fmt.Errorf("listen: %w", listenErr)
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	log.Info("Server exiting")
	return nil
}

// Run wires the whole service and blocks until SIGINT or SIGTERM.
func Run(cfg *config.Config, version string) error {
	log := SetupLogger(cfg.Log).Component("entrypoint")
	defer func() { _ = logger.Sync() }()
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.WithField("version", version).Info("Starting catalog mirror")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.WithError(err).Error("Error closing database")
		}
	}()

	// Task queue for asynchronous phase requests
	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.FromSettings(cfg.Tasks))
		if err != nil {
			return fmt.Errorf("failed to initialize task queue: %w", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.WithError(err).Error("Error closing task client")
			}
		}()

		taskClient.Register(
			tasks.NewRequestPhaseQueue(app.Orchestrator),
			tasks.NewReclaimStaleQueue(app.Watchdog),
		)
		app.Orchestrator.SetEnqueuer(taskClient)

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		defer taskCtxCancel()
		go taskClient.Start(taskCtx)

		// Jobs orphaned by the previous process are failed before anything resumes them.
		if _, err := taskClient.EnqueueReclaim(ctx, app.SyncType()); err != nil {
			log.WithError(err).Warn("Failed to queue startup reclaim")
		}
	}

	// Cron re-entry advances whichever job is active
	advancer := scheduler.New(app.Orchestrator, cfg.Scheduler, cfg.Sync.ExecutionBudget+schedulerSlack)
	if err := advancer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	// Client-side coordinator
	if cfg.Coordinator.Enabled {
		go app.Coordinator.Watch(ctx)
		if cfg.Coordinator.AutoStart {
			go func() {
				if err := app.Coordinator.StartSync(ctx); err != nil {
					log.WithError(err).Warn("Automatic sync did not finish")
				}
			}()
		}
	}

	routerCfg := http_controllers.RouterConfig{
		Sync:      app.Orchestrator,
		Jobs:      app.Jobs,
		Reclaimer: app.Watchdog,
		Status:    app.Coordinator,
		Events:    app.Broker,
		Database:  app.DB,
		Logger:    logger.Default(),
		Version:   version,
		Driver:    app.DB.Driver,
		SyncType:  app.SyncType(),
	}
	if taskClient != nil {
		routerCfg.Tasks = taskClient
	}
	if cfg.Metrics.Enabled {
		routerCfg.Metrics = app.Metrics.Handler()
	}
	router := http_controllers.NewRouter(routerCfg)

	onShutdown := func(ctx context.Context) {
		advancer.Stop()
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
	}

	return Serve(ctx, router, cfg, onShutdown)
}
