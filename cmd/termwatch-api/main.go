package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mmrzaf/termwatch/internal/api"
	"github.com/mmrzaf/termwatch/internal/app"
	"github.com/mmrzaf/termwatch/internal/config"
	"github.com/mmrzaf/termwatch/internal/infra/repos/runs"
	"github.com/mmrzaf/termwatch/internal/logging"
)

func main() {
	cfg := config.Load()

	dbDriver := flag.String("db-driver", cfg.DBDriver, "Reporting database driver (sqlite|postgres)")
	dbDSN := flag.String("db", cfg.DBDSN, "Reporting database DSN or sqlite path")
	bindAddr := flag.String("bind", cfg.BindAddr, "Bind address")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level")
	queryTimeout := flag.Duration("query-timeout", cfg.QueryTimeout, "Per-request store timeout")
	corsOrigin := flag.String("cors-origin", cfg.CORSOrigin, "Allowed CORS origin, empty to disable")
	flag.Parse()

	root := logging.NewLogger(*logLevel)
	logger := root.WithComponent("api_main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, applied, err := runs.Open(ctx, *dbDriver, *dbDSN)
	if err != nil {
		logger.Errorw("startup.failed", map[string]any{
			"error": err.Error(),
			"stage": "open_store",
			"db":    config.RedactDSN(*dbDriver, *dbDSN),
		})
		os.Exit(1)
	}
	defer store.Close()
	for _, m := range applied {
		logger.Infow("startup.migrated", map[string]any{"version": m.Version, "source": m.Source})
	}

	reports := app.NewReportService(store, root)
	handler := api.NewHandler(reports, root, *queryTimeout)

	mux := http.NewServeMux()
	handler.Routes(mux)

	srv := &http.Server{
		Addr:              *bindAddr,
		Handler:           api.CORSMiddleware(*corsOrigin, api.LoggingMiddleware(root.WithComponent("http"), mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("startup.listening", map[string]any{
			"bind":   *bindAddr,
			"driver": *dbDriver,
			"db":     config.RedactDSN(*dbDriver, *dbDSN),
		})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("startup.failed", map[string]any{"error": err.Error(), "stage": "listen"})
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Infow("shutdown.started", nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorw("shutdown.failed", map[string]any{"error": err.Error()})
		}
	}
}
