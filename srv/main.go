package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/opd-ai/storybook/bookcompiler"
	"github.com/opd-ai/storybook/srv/generator"
	"github.com/opd-ai/storybook/srv/store"
	"github.com/opd-ai/storybook/srv/ui"
)

var (
	addr      = flag.String("addr", ":8081", "listen address")
	workDir   = flag.String("work", "builds", "directory for build outputs")
	redisURL  = flag.String("redis", os.Getenv("REDIS_URL"), "redis:// URL for shared build status (default in-memory)")
	dpi       = flag.Int("dpi", bookcompiler.ReferenceDPI, "raster resolution")
	bookends  = flag.Bool("bookends", false, "default for cover images as first and last manuscript pages")
	verify    = flag.Bool("verify", true, "re-read written PDFs and check page count and size")
	rateLimit = flag.Int("rate", 10, "book submissions per IP per minute")
	certFile  = flag.String("tls-cert", "", "TLS certificate; generated self-signed if missing")
	keyFile   = flag.String("tls-key", "", "TLS key")
	debug     = flag.Bool("debug", false, "development logging")
)

func main() {
	flag.Parse()

	logger, err := newLogger(*debug)
	if err != nil {
		fmt.Printf("Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func openStore(ctx context.Context, logger *zap.Logger) (store.Store, error) {
	if *redisURL == "" {
		return store.NewMemory(store.DefaultTTL), nil
	}
	logger.Info("using redis build store")
	return store.NewRedis(ctx, *redisURL, store.DefaultTTL)
}

func run(logger *zap.Logger) error {
	cfg := bookcompiler.DefaultConfig()
	cfg.Trim.DPI = *dpi
	cfg.IncludeBookends = *bookends
	cfg.VerifyOutput = *verify
	if err := cfg.Trim.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(*workDir, 0o755); err != nil {
		return fmt.Errorf("creating work directory: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, logger)
	if err != nil {
		return err
	}
	server := ui.NewBookServer(ui.Options{
		Config:    cfg,
		WorkDir:   *workDir,
		Store:     st,
		Logger:    logger,
		RateLimit: *rateLimit,
	})
	server.StartSweeper(ctx, ui.SweepInterval)

	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", *addr), zap.Bool("tls", *certFile != ""))
		if *certFile != "" {
			errc <- serveTLS(httpServer, *certFile, *keyFile)
			return
		}
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), generator.BuildTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	return server.Shutdown(shutdownCtx)
}
