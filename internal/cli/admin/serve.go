package admin

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/reportqa/internal/api/handlers"
	"github.com/cloo-solutions/reportqa/internal/app"
	"github.com/cloo-solutions/reportqa/internal/config"
	"github.com/cloo-solutions/reportqa/internal/database"
	"github.com/cloo-solutions/reportqa/internal/domain"
	"github.com/cloo-solutions/reportqa/internal/jobs"
	"github.com/cloo-solutions/reportqa/internal/server"
	"github.com/cloo-solutions/reportqa/internal/service"
	"github.com/cloo-solutions/reportqa/internal/session"
)

// NewApp builds the application for serve. Tests replace it.
var NewApp = app.New

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the reportqa API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides REPORTQA_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().String("watch", "", "Folder to re-ingest whenever its documents change")
	cmd.Flags().String("watch-company", "", "Company name stamped on watched files")
	cmd.Flags().String("watch-year", "", "Report year stamped on watched files")
	cmd.Flags().Duration("watch-interval", 10*time.Second, "How often pending folder changes are ingested")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if portFlag, _ := cmd.Flags().GetString("port"); portFlag != "" {
		cfg.Port = portFlag
	}

	shutdownTelemetry := app.InitTelemetry(cfg)
	defer shutdownTelemetry()

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if cfg.UsePostgres() && !noMigrate {
		if err := database.MigrateUp(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	a, err := NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	sessions := session.NewRegistry()
	router := server.NewRouter(server.RouterConfig{
		SessionHandler:    handlers.NewSessionHandler(a.Controller, sessions),
		CollectionHandler: handlers.NewCollectionHandler(a.Controller, sessions),
	})

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	var watchWorker *jobs.Worker
	if dir, _ := cmd.Flags().GetString("watch"); dir != "" {
		watchWorker, err = startWatch(workerCtx, cmd, a, sessions, dir)
		if err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("starting server on port %s (collection %s)", cfg.Port, cfg.Collection())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if watchWorker != nil {
		watchWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// startWatch re-ingests dir on change and rebinds every ready session afterwards.
func startWatch(ctx context.Context, cmd *cobra.Command, a *app.App, sessions *session.Registry, dir string) (*jobs.Worker, error) {
	company, _ := cmd.Flags().GetString("watch-company")
	year, _ := cmd.Flags().GetString("watch-year")
	interval, _ := cmd.Flags().GetDuration("watch-interval")
	if interval <= 0 {
		return nil, fmt.Errorf("watch interval must be positive")
	}

	watcher, err := jobs.NewFolderWatcher(dir)
	if err != nil {
		return nil, err
	}
	go func() {
		<-ctx.Done()
		_ = watcher.Close()
	}()
	go watcher.Run(ctx)

	ingester := refreshingIngester{Ingester: a.Ingester, refresh: func() {
		sessions.UpdateOthers("", func(s session.AppState) session.AppState {
			return a.Controller.Refresh(ctx, s)
		})
	}}
	processor := jobs.NewReingestProcessor(dir, watcher, ingester, company, year, nil)
	worker := jobs.NewWorker("watch", processor, interval, jobs.WithWake(watcher.Changes(), time.Second))
	go worker.Start(ctx)
	log.Printf("watching %s for document changes", dir)
	return worker, nil
}

// refreshingIngester rebinds sessions after every pass that may have replaced the
// collection, failed replacements included.
type refreshingIngester struct {
	jobs.Ingester
	refresh func()
}

func (r refreshingIngester) Ingest(ctx context.Context, uploads []domain.Upload) (*service.IngestResult, error) {
	result, err := r.Ingester.Ingest(ctx, uploads)
	if session.StoreChanged(err) {
		r.refresh()
	}
	return result, err
}
