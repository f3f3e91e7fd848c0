package odrserver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/r9s-ai/open-data-router/internal/version"
	"github.com/r9s-ai/open-data-router/pkg/config"
)

const shutdownTimeout = 10 * time.Second

// Run loads cfgPath and serves until SIGINT or SIGTERM. SIGHUP reloads the
// keys file.
func Run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if strings.EqualFold(cfg.Logging.Level, "debug") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	logger := log.New(os.Stderr, "", log.LstdFlags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = srv.Close() }()

	pid, err := writePIDFile(cfg.Server.PidFile)
	if err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	if pid != nil {
		defer func() { _ = pid.Close() }()
	}

	hup := make(chan os.Signal, 2)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for range hup {
			srv.ReloadKeys("signal")
		}
	}()

	watch, err := installKeysAutoReload(cfg, srv.state, &srv.reloadMu, logger)
	if err != nil {
		return fmt.Errorf("init keys auto reload: %w", err)
	}
	if watch != nil {
		defer func() { _ = watch.Close() }()
	}

	hs := srv.httpServer()
	errCh := make(chan error, 1)
	go func() {
		logger.Printf("[ODR] %s listening on %s (dispatch path %s, hooks %s, h2c=%v)",
			version.Get().Version, cfg.Server.Listen, cfg.Dispatch.Path, cfg.Dispatch.Hooks, cfg.Server.H2C)
		errCh <- hs.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("run: %w", err)
	case <-ctx.Done():
	}
	logger.Printf("[ODR] shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := hs.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
