// Package odrserver hosts the dispatcher over HTTP: the gin router, the auth
// and access log middleware, key reloads and the process lifecycle.
package odrserver

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/r9s-ai/open-data-router/internal/auth"
	"github.com/r9s-ai/open-data-router/internal/logx"
	"github.com/r9s-ai/open-data-router/internal/member"
	"github.com/r9s-ai/open-data-router/internal/system"
	"github.com/r9s-ai/open-data-router/pkg/config"
	"github.com/r9s-ai/open-data-router/pkg/converter"
	"github.com/r9s-ai/open-data-router/pkg/dispatch"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Server is a configured but not yet listening instance.
type Server struct {
	cfg        *config.Config
	logger     *log.Logger
	state      *state
	dispatcher *dispatch.Dispatcher
	engine     *gin.Engine
	reloadMu   sync.Mutex

	closers []io.Closer
}

// New wires the converter, the member store, the services, the hooks and the
// router from cfg. Close releases what New opened.
func New(ctx context.Context, cfg *config.Config, logger *log.Logger) (s *Server, err error) {
	if logger == nil {
		logger = log.Default()
	}
	s = &Server{cfg: cfg, logger: logger, state: &state{startedAt: time.Now()}}
	defer func() {
		if err != nil {
			_ = s.Close()
			s = nil
		}
	}()

	factory, err := converter.Lookup(cfg.Converter.Name)
	if err != nil {
		return nil, err
	}
	conv, err := factory(cfg.ConverterOptions())
	if err != nil {
		return nil, fmt.Errorf("init converter: %w", err)
	}

	ks, err := loadKeys(cfg)
	if err != nil {
		return nil, err
	}
	s.state.SetKeys(ks)

	store, err := member.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, store)
	if cfg.Store.Seed {
		n, err := store.Seed(ctx)
		if err != nil {
			return nil, fmt.Errorf("seed members: %w", err)
		}
		if n > 0 {
			logger.Printf("[ODR] seeded %d members", n)
		}
	}

	reg := dispatch.NewRegistry()
	for _, svc := range []dispatch.Service{
		member.NewService(store, conv, logger),
		system.NewService(conv),
	} {
		if err := reg.RegisterService(svc); err != nil {
			return nil, err
		}
	}
	hooks, err := newHooks(cfg.Dispatch.Hooks, logger, cfg.Dispatch.CommandField)
	if err != nil {
		return nil, err
	}
	s.dispatcher = dispatch.New(dispatch.Options{
		Registry:   reg,
		Hooks:      hooks,
		CommandKey: cfg.Dispatch.CommandField,
		Converter:  conv,
		Logger:     logger,
	})

	var tokens *auth.Tokens
	if secret := strings.TrimSpace(cfg.Auth.JWT.Secret); secret != "" {
		tokens, err = auth.NewTokens(auth.TokenOptions{
			Secret:   secret,
			Issuer:   cfg.Auth.JWT.Issuer,
			Audience: cfg.Auth.JWT.Audience,
			TTL:      time.Duration(cfg.Auth.JWT.TTLMinutes) * time.Minute,
		})
		if err != nil {
			return nil, err
		}
	}

	accessLogger, accessColor, err := s.openAccessLogger()
	if err != nil {
		return nil, fmt.Errorf("init access log: %w", err)
	}
	format, err := logx.ResolveAccessLogFormat(cfg.Logging.AccessLogFormat, cfg.Logging.AccessLogFormatPreset)
	if err != nil {
		return nil, err
	}
	formatter, err := logx.CompileAccessLogFormat(format)
	if err != nil {
		return nil, err
	}

	s.engine = newRouter(routerOptions{
		cfg:             cfg,
		state:           s.state,
		dispatcher:      s.dispatcher,
		tokens:          tokens,
		accessLogger:    accessLogger,
		accessColor:     accessColor,
		accessFormatter: formatter,
	})
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) Dispatcher() *dispatch.Dispatcher { return s.dispatcher }

// ReloadKeys re-reads keys.file; a broken file keeps the previous keys.
func (s *Server) ReloadKeys(trigger string) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	reloadKeys(s.cfg, s.state, s.logger, trigger)
}

func (s *Server) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}

// httpServer builds the listener-side server; with server.h2c the handler
// also accepts cleartext HTTP/2.
func (s *Server) httpServer() *http.Server {
	h := http.Handler(s.engine)
	if s.cfg.Server.H2C {
		h = h2c.NewHandler(h, &http2.Server{})
	}
	return &http.Server{
		Addr:              s.cfg.Server.Listen,
		Handler:           h,
		ReadTimeout:       time.Duration(s.cfg.Server.ReadTimeoutMs) * time.Millisecond,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Server.WriteTimeoutMs) * time.Millisecond,
	}
}

// openAccessLogger returns the access log sink: stdout (colored on a
// terminal), a plain file, or a rotating file.
func (s *Server) openAccessLogger() (*log.Logger, bool, error) {
	lc := s.cfg.Logging
	if !lc.AccessLog {
		return nil, false, nil
	}
	path := strings.TrimSpace(lc.AccessLogPath)
	if path == "" {
		return log.New(os.Stdout, "", 0), logx.IsTerminal(os.Stdout), nil
	}
	if lc.AccessLogRotate.Enabled {
		w, err := logx.NewAccessRotateWriter(logx.RotateOptions{
			Path:       path,
			MaxSizeMB:  lc.AccessLogRotate.MaxSizeMB,
			MaxBackups: lc.AccessLogRotate.MaxBackups,
			MaxAgeDays: lc.AccessLogRotate.MaxAgeDays,
			Compress:   lc.AccessLogRotate.Compress,
		})
		if err != nil {
			return nil, false, err
		}
		s.closers = append(s.closers, w)
		return log.New(w, "", 0), false, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, false, err
		}
	}
	// #nosec G304 -- access_log_path comes from trusted config/env.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, false, err
	}
	s.closers = append(s.closers, f)
	return log.New(f, "", 0), false, nil
}
