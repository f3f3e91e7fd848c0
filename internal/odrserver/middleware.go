package odrserver

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/r9s-ai/open-data-router/internal/logx"
	"github.com/r9s-ai/open-data-router/pkg/requestid"
)

// Gin context keys the dispatch handler fills for the access log.
const (
	ctxCmd        = "odr.cmd"
	ctxService    = "odr.service"
	ctxCommand    = "odr.command"
	ctxResultCode = "odr.result_code"
	ctxPrincipal  = "odr.principal"
)

var accessLogFields = []struct {
	ctxKey string
	logKey string
}{
	{ctxCmd, "cmd"},
	{ctxService, "service"},
	{ctxCommand, "command"},
	{ctxResultCode, "result_code"},
	{ctxPrincipal, "principal"},
}

func requestIDMiddleware(headerKey string) gin.HandlerFunc {
	headerKey = requestid.ResolveHeaderKey(headerKey)
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(headerKey))
		if id == "" {
			id = requestid.Gen()
		}
		c.Header(headerKey, id)
		c.Set(headerKey, id)
		c.Request = c.Request.WithContext(requestid.WithContext(c.Request.Context(), id))
		c.Next()
	}
}

func accessLogMiddleware(l *log.Logger, color bool, requestIDHeaderKey string, f *logx.AccessLogFormatter) gin.HandlerFunc {
	requestIDHeaderKey = requestid.ResolveHeaderKey(requestIDHeaderKey)
	if l == nil {
		l = log.New(os.Stdout, "", log.LstdFlags)
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		e := logx.AccessEntry{
			Time:     time.Now(),
			Status:   c.Writer.Status(),
			Latency:  time.Since(start),
			ClientIP: c.ClientIP(),
			Method:   c.Request.Method,
			Path:     c.Request.URL.Path,
			Fields:   map[string]string{"request_id": c.GetString(requestIDHeaderKey)},
		}
		for _, field := range accessLogFields {
			if v := c.GetString(field.ctxKey); v != "" {
				e.Fields[field.logKey] = v
			}
		}
		if f != nil {
			l.Println(f.Format(e, color))
			return
		}
		l.Println(logx.DefaultLine(e, color))
	}
}
