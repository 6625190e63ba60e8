package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang-bankrec-service/internal/api"
	"golang-bankrec-service/internal/scheduler"
	"golang-bankrec-service/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the reconciliation API",
	Long: `Serve exposes reconciliation sessions, statement line creation, journal
summaries and automatic passes over HTTP under /api/v1. With --queue, new
statement lines and unfinished passes schedule continuations in a bbolt file
and a background worker drains them.

Example:
  reconciler serve --addr :8080 --queue bankrec.bolt --worker-interval 30s`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	flags := serveCmd.Flags()
	flags.String("addr", ":8080", "listen address")
	flags.Duration("session-ttl", 8*time.Hour, "close sessions idle for longer than this")
	flags.Duration("worker-interval", time.Minute, "continuation queue poll interval")

	_ = viper.BindPFlag("addr", flags.Lookup("addr"))
	_ = viper.BindPFlag("session-ttl", flags.Lookup("session-ttl"))
	_ = viper.BindPFlag("worker-interval", flags.Lookup("worker-interval"))
}

func runServe(cmd *cobra.Command, args []string) error {
	settings, log, err := loadSettings()
	if err != nil {
		return err
	}
	rt, err := openRuntime(settings, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if rt.queue != nil {
		worker := scheduler.NewWorker(rt.service.Scheduler(), rt.service.Config().Scheduler, settings.WorkerInterval)
		go worker.Start(ctx)
	}

	server := &http.Server{
		Addr:         settings.Addr,
		Handler:      api.NewRouter(rt.service, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 75 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		<-ctx.Done()
		log.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("Server shutdown error")
		}
	}()

	log.WithFields(logger.Fields{
		"addr":  settings.Addr,
		"queue": settings.QueuePath != "",
	}).Info("Starting reconciliation API")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	log.Info("Server stopped")
	return nil
}
