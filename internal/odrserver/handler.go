package odrserver

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/r9s-ai/open-data-router/internal/auth"
	"github.com/r9s-ai/open-data-router/pkg/apierr"
	"github.com/r9s-ai/open-data-router/pkg/converter"
	"github.com/r9s-ai/open-data-router/pkg/datawrapper"
	"github.com/r9s-ai/open-data-router/pkg/dispatch"
)

const maxRequestBytes = 8 << 20

// dispatchHandler decodes the request envelope, runs it through d and writes
// the response envelope with the status the dispatcher chose.
func dispatchHandler(d *dispatch.Dispatcher, requestIDHeaderKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := readEnvelope(c, d.Converter())
		if err != nil {
			c.Set(ctxResultCode, string(apierr.CodeMalformedRequest))
			c.JSON(http.StatusBadRequest, dispatch.ErrorEnvelope(apierr.CodeMalformedRequest, err.Error()))
			return
		}

		rc := &dispatch.RequestContext{
			RequestID: c.GetString(requestIDHeaderKey),
			Method:    c.Request.Method,
			Path:      c.Request.URL.Path,
			ClientIP:  c.ClientIP(),
			Header:    c.Request.Header.Clone(),
		}
		if s := auth.SessionFrom(c); s != nil {
			rc.Principal = s.Principal
			rc.Session = s
			c.Set(ctxPrincipal, s.Principal)
		}

		res := d.Dispatch(c.Request.Context(), rc, req)
		c.Set(ctxCmd, res.Command)
		c.Set(ctxService, res.Service)
		c.Set(ctxCommand, res.Method)
		c.Set(ctxResultCode, res.Code)
		c.JSON(res.Status, res.Envelope)
	}
}

// readEnvelope reads a JSON object body. An empty body builds the envelope
// from the query string, so "GET /api?cmd=systemService.time" works.
func readEnvelope(c *gin.Context, conv converter.Converter) (*datawrapper.DataWrapper, error) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errors.New("request body too large")
		}
		return nil, errors.New("unreadable request body")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		values := map[string]any{}
		for k, vs := range c.Request.URL.Query() {
			if len(vs) > 0 {
				values[k] = vs[len(vs)-1]
			}
		}
		return datawrapper.FromValues(values, datawrapper.WithConverter(conv))
	}
	w, err := datawrapper.FromJSON(body, datawrapper.WithConverter(conv))
	if err != nil {
		if errors.Is(err, datawrapper.ErrInvalidJSON) {
			return nil, errors.New("request body must be a JSON object")
		}
		return nil, err
	}
	return w, nil
}
