package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/bankocr/internal/config"
	"github.com/MeKo-Tech/bankocr/internal/engine"
	"github.com/MeKo-Tech/bankocr/internal/server"
	"github.com/MeKo-Tech/bankocr/internal/window"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for bank field extraction",
	Long: `Start an HTTP server that runs extractions on request.

The server provides the following endpoints:
  GET  /health         - Health check endpoint
  POST /extract        - Read the fields from the live window
  POST /extract/image  - Read the fields from an uploaded screenshot
  GET  /ws             - WebSocket streaming of extraction states
  GET  /metrics        - Prometheus metrics

Runs are serialised: a request waits for the running extraction to finish.

Examples:
  bankocr serve
  bankocr serve --port 8080
  bankocr serve --host 0.0.0.0 --port 3000 --rate-limit-enabled`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	addServeFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)
}

func addServeFlags(cmd *cobra.Command) {
	defaults := config.DefaultConfig()
	s := defaults.Server
	cmd.Flags().StringP("host", "H", s.Host, "server host")
	cmd.Flags().IntP("port", "p", s.Port, "server port")
	cmd.Flags().String("cors-origin", s.CORSOrigin, "CORS allowed origins")
	cmd.Flags().Int("max-upload-size", s.MaxUploadMB, "maximum upload size in MB")
	cmd.Flags().Int("timeout", s.TimeoutSec, "request timeout in seconds")
	cmd.Flags().Int("shutdown-timeout", s.ShutdownTimeout, "shutdown timeout in seconds")
	cmd.Flags().StringP("title", "t", "", "default window title when a request names none")
	cmd.Flags().Bool("rate-limit-enabled", s.RateLimit.Enabled, "enable rate limiting")
	cmd.Flags().Int("requests-per-minute", s.RateLimit.RequestsPerMinute, "maximum requests per minute per client")
	cmd.Flags().Int("requests-per-hour", s.RateLimit.RequestsPerHour, "maximum requests per hour per client")

	bindFlag(cmd.Flags(), "host", "server.host")
	bindFlag(cmd.Flags(), "port", "server.port")
	bindFlag(cmd.Flags(), "cors-origin", "server.cors_origin")
	bindFlag(cmd.Flags(), "max-upload-size", "server.max_upload_mb")
	bindFlag(cmd.Flags(), "timeout", "server.timeout_sec")
	bindFlag(cmd.Flags(), "shutdown-timeout", "server.shutdown_timeout")
	bindFlag(cmd.Flags(), "title", "window.title")
	bindFlag(cmd.Flags(), "rate-limit-enabled", "server.rate_limit.enabled")
	bindFlag(cmd.Flags(), "requests-per-minute", "server.rate_limit.requests_per_minute")
	bindFlag(cmd.Flags(), "requests-per-hour", "server.rate_limit.requests_per_hour")

	addOCRFlags(cmd)
}

// newServer builds the extraction server. Live requests use the system
// window locator; uploads get an image locator per request.
func newServer(cfg *config.Config, eng engine.Engine, live window.Locator) (*server.Server, error) {
	req, err := cfg.BaseRequest()
	if err != nil {
		return nil, err
	}
	logger := slog.Default()
	images := func(loc window.Locator) server.Extractor {
		return newRunner(cfg, eng, loc, false, nil)
	}

	return server.NewServer(server.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		CORSOrigin:  cfg.Server.CORSOrigin,
		MaxUploadMB: int64(cfg.Server.MaxUploadMB),
		TimeoutSec:  cfg.Server.TimeoutSec,
		Request:     req,
		Separator:   cfg.Output.Separator,
		RateLimit: server.RateLimitConfig{
			Enabled:           cfg.Server.RateLimit.Enabled,
			RequestsPerMinute: cfg.Server.RateLimit.RequestsPerMinute,
			RequestsPerHour:   cfg.Server.RateLimit.RequestsPerHour,
		},
		Logger: logger,
	}, newRunner(cfg, eng, live, true, nil), images), nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := validConfig()
	if err != nil {
		return err
	}
	eng, err := newEngine(cfg, slog.Default())
	if err != nil {
		return err
	}
	srv, err := newServer(cfg, eng, window.NewSystemLocator(slog.Default()))
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	timeout := time.Duration(cfg.Server.TimeoutSec) * time.Second
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
		// Extractions may queue behind each other.
		WriteTimeout: 2 * timeout,
	}

	go func() {
		slog.Info("Starting extraction server", "host", cfg.Server.Host, "port", cfg.Server.Port,
			"window_title", cfg.Window.Title, "engine", cfg.OCR.Engine)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		slog.Info("Context cancelled, initiating shutdown")
	}

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
		return err
	}
	slog.Info("Graceful shutdown completed")
	return nil
}

// GetServeCommand returns the serve command for testing purposes.
func GetServeCommand() *cobra.Command {
	return serveCmd
}
