package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/atsushimemet/fridge-predictor/internal/logger"
	"github.com/atsushimemet/fridge-predictor/internal/metrics"
	"github.com/atsushimemet/fridge-predictor/internal/server"
	"github.com/atsushimemet/fridge-predictor/internal/table"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Listen port (overrides PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	src, closeSource, err := openSource(cfg, log)
	if err != nil {
		return err
	}
	defer closeSource()

	if cfg.Table.Cache {
		src = table.NewCache(src)
		log.Info("table cache enabled; POST /reload to pick up edits")
	}
	tables := table.NewLoader(src, log)

	if t := tables.Load(cmd.Context()); len(t) > 0 {
		log.WithField("categories", len(t)).Info("loaded probability table")
	} else {
		log.Warn("probability table is empty; predictions will use the default probability")
	}

	srv := server.New(tables, metrics.New(cfg.Metrics.Window), log, server.Options{
		Version:            VersionString(),
		PredictionsEnabled: cfg.Predictions.Enabled,
		AllowedOrigins:     cfg.CORS.AllowedOrigins,
	})
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errc := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("predictor serving")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("server error: %w", err)
	case <-done:
	}
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
