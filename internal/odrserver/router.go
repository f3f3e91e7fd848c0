package odrserver

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/r9s-ai/open-data-router/internal/auth"
	"github.com/r9s-ai/open-data-router/internal/keystore"
	"github.com/r9s-ai/open-data-router/internal/logx"
	"github.com/r9s-ai/open-data-router/pkg/config"
	"github.com/r9s-ai/open-data-router/pkg/dispatch"
	"github.com/r9s-ai/open-data-router/pkg/requestid"
)

type routerOptions struct {
	cfg             *config.Config
	state           *state
	dispatcher      *dispatch.Dispatcher
	tokens          *auth.Tokens
	accessLogger    *log.Logger
	accessColor     bool
	accessFormatter *logx.AccessLogFormatter
}

func newRouter(o routerOptions) *gin.Engine {
	headerKey := requestid.ResolveHeaderKey("")
	r := gin.New()
	r.Use(requestIDMiddleware(headerKey))
	if o.cfg.Logging.AccessLog {
		r.Use(accessLogMiddleware(o.accessLogger, o.accessColor, headerKey, o.accessFormatter))
	}
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ok":         true,
			"uptime_sec": int64(time.Since(o.state.StartedAt()).Seconds()),
		})
	})

	var keys auth.KeyLookup
	if o.state.Keys() != nil {
		keys = func() *keystore.Store { return o.state.Keys() }
	}
	api := r.Group(o.cfg.Dispatch.Path, auth.Middleware(auth.Options{
		APIKey: o.cfg.Auth.APIKey,
		Keys:   keys,
		Tokens: o.tokens,
	}))
	h := dispatchHandler(o.dispatcher, headerKey)
	for _, m := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		api.Handle(m, "", h)
	}
	api.GET("/commands", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"commands": o.dispatcher.Registry().Commands()})
	})
	return r
}
