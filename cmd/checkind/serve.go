package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"k8s.io/utils/clock"

	"checkin-backend/config"
	"checkin-backend/internal/api"
	"checkin-backend/internal/checkin"
	"checkin-backend/internal/db"
	"checkin-backend/internal/keystroke"
	"checkin-backend/internal/session"
	"checkin-backend/internal/source"
	"checkin-backend/internal/store"
)

const (
	checkinSession = "checkin"
	enrollSession  = "enroll"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the check-in HTTP server",
		Long:  `Serve the HTTP API, read badge scans from the configured source and record attendance for the running training.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}
}

// keySource is a source that publishes until its input ends.
type keySource interface {
	Run(ctx context.Context) error
}

// runTerminal runs src and shuts the daemon down when it returns. In raw
// mode Ctrl-C reaches src as a byte instead of raising SIGINT.
func runTerminal(ctx context.Context, src keySource, stop context.CancelFunc) {
	defer stop()
	if err := src.Run(ctx); err != nil {
		logrus.Errorf("Terminal source stopped: %v", err)
		return
	}
	if ctx.Err() == nil {
		logrus.Info("Terminal input ended")
	}
}

func runServe(cfg *config.Config) error {
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	appStore := store.NewGormStore(gormDB)
	logrus.Info("Data store initialized")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workers := checkin.NewWorkerPool(cfg.Checkin.WorkerPool.Size, appStore, cfg.Checkin.DedupWindow)
	workers.Start(ctx)

	// The source is created after the bus, so the hook resolves it lazily.
	var setListening func(bool)
	bus := keystroke.NewBus(keystroke.WithListenHook(func(active bool) {
		if setListening != nil {
			setListening(active)
		}
	}))
	defer bus.Close()

	var keys http.Handler
	switch cfg.Reader.Source {
	case config.SourceTerminal:
		terminal := source.NewTerminal(os.Stdin, bus, nil)
		setListening = terminal.SetListening
		go runTerminal(ctx, terminal, stop)
	default:
		hub := source.NewHub(bus, nil)
		setListening = hub.SetListening
		keys = hub
	}

	registry := session.NewRegistry()
	defer registry.Close()

	checkinCtrl := session.New(bus, session.Options{
		Name:        checkinSession,
		IdleTimeout: cfg.Reader.IdleTimeout,
		Clock:       clock.RealClock{},
		OnCardRead: func(id string) {
			workers.Dispatch(checkin.Scan{BadgeID: id, At: time.Now().UTC()})
		},
	})
	registry.Add(checkinCtrl)
	checkinCtrl.SetEnabled(*cfg.Reader.CheckinEnabled)

	// Enrollment only echoes the scan; the admin UI reads it back as lastRead.
	enrollCtrl := session.New(bus, session.Options{
		Name:        enrollSession,
		IdleTimeout: cfg.Reader.IdleTimeout,
		Clock:       clock.RealClock{},
	})
	registry.Add(enrollCtrl)
	enrollCtrl.SetEnabled(cfg.Reader.EnrollEnabled)

	router := api.NewRouter(cfg.Server, api.NewHandler(appStore, registry, workers), keys)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logrus.Info("Shutdown signal received, stopping services...")
	case err := <-errCh:
		return fmt.Errorf("HTTP server ListenAndServe: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server Shutdown: %w", err)
	}

	logrus.Info("Server gracefully stopped")
	return nil
}
