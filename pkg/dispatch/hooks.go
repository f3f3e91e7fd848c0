package dispatch

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/r9s-ai/open-data-router/pkg/apierr"
	"github.com/r9s-ai/open-data-router/pkg/datamodel"
	"github.com/r9s-ai/open-data-router/pkg/datawrapper"
)

// PassKey is the field a pre-check or authority result uses to stop the
// pipeline: any value other than PassYes short-circuits.
const (
	PassKey = "PASS"
	PassYes = "Y"
	PassNo  = "N"
)

// RequestContext is the transport information the hooks see.
type RequestContext struct {
	RequestID string
	Method    string
	Path      string
	ClientIP  string
	Principal string
	Session   datamodel.Attributes
	Header    http.Header
}

type requestContextKey struct{}

func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// RequestContextFrom returns the request context set by the dispatcher, or
// nil outside a dispatch.
func RequestContextFrom(ctx context.Context) *RequestContext {
	if ctx == nil {
		return nil
	}
	rc, _ := ctx.Value(requestContextKey{}).(*RequestContext)
	return rc
}

// Hooks are the customizable stages around command invocation.
type Hooks interface {
	// PreCheck runs first. A result with PASS != "Y" ends the request
	// without calling PostHandle.
	PreCheck(ctx context.Context, rc *RequestContext, req *datawrapper.DataWrapper) (*datawrapper.DataWrapper, error)
	// CheckAuthority runs second. A result with PASS != "Y" ends the
	// request; PostHandle still runs.
	CheckAuthority(ctx context.Context, rc *RequestContext, req *datawrapper.DataWrapper) (*datawrapper.DataWrapper, error)
	Log(ctx context.Context, rc *RequestContext, req *datawrapper.DataWrapper)
	// HandleError turns an error returned by a stage into a response.
	HandleError(ctx context.Context, rc *RequestContext, req *datawrapper.DataWrapper, err error) *datawrapper.DataWrapper
	// HandlePanic turns a recovered panic into a response.
	HandlePanic(ctx context.Context, rc *RequestContext, req *datawrapper.DataWrapper, recovered any, stack []byte) *datawrapper.DataWrapper
	PostHandle(ctx context.Context, rc *RequestContext, req, resp *datawrapper.DataWrapper)
}

// DefaultHooks require a command, allow every caller and log through Logger.
// Embed it to override single stages.
type DefaultHooks struct {
	Logger     *log.Logger
	CommandKey string
}

var _ Hooks = (*DefaultHooks)(nil)

func (h *DefaultHooks) commandKey() string {
	if h.CommandKey == "" {
		return DefaultCommandKey
	}
	return h.CommandKey
}

func (h *DefaultHooks) logf(format string, args ...any) {
	if h.Logger != nil {
		h.Logger.Printf(format, args...)
	}
}

func (h *DefaultHooks) PreCheck(_ context.Context, _ *RequestContext, req *datawrapper.DataWrapper) (*datawrapper.DataWrapper, error) {
	if cmd, ok := req.GetString(h.commandKey()); !ok || strings.TrimSpace(cmd) == "" {
		return Reject(apierr.CodePreCheckFailed, "missing command field "+h.commandKey()), nil
	}
	return Pass(), nil
}

func (h *DefaultHooks) CheckAuthority(context.Context, *RequestContext, *datawrapper.DataWrapper) (*datawrapper.DataWrapper, error) {
	return Pass(), nil
}

func (h *DefaultHooks) Log(_ context.Context, rc *RequestContext, req *datawrapper.DataWrapper) {
	cmd, _ := req.GetString(h.commandKey())
	h.logf("[ODR] dispatch request_id=%s cmd=%s principal=%s keys=%s",
		rc.RequestID, cmd, rc.Principal, strings.Join(req.Keys(), ","))
}

func (h *DefaultHooks) HandleError(_ context.Context, rc *RequestContext, _ *datawrapper.DataWrapper, err error) *datawrapper.DataWrapper {
	code := ErrorCode(err)
	h.logf("[ODR] dispatch error request_id=%s code=%s err=%v", rc.RequestID, code, err)
	return ErrorEnvelope(code, ErrorMessage(err))
}

func (h *DefaultHooks) HandlePanic(_ context.Context, rc *RequestContext, _ *datawrapper.DataWrapper, recovered any, stack []byte) *datawrapper.DataWrapper {
	h.logf("[ODR] dispatch panic request_id=%s panic=%v\n%s", rc.RequestID, recovered, stack)
	return ErrorEnvelope(apierr.CodeFatal, "internal error")
}

func (h *DefaultHooks) PostHandle(context.Context, *RequestContext, *datawrapper.DataWrapper, *datawrapper.DataWrapper) {
}

// Pass returns the envelope a check stage uses to let the request through.
func Pass() *datawrapper.DataWrapper {
	w, _ := datawrapper.NewWith(PassKey, PassYes)
	return w
}

// Reject returns a check stage result that stops the request.
func Reject(code apierr.Code, message string) *datawrapper.DataWrapper {
	w := ErrorEnvelope(code, message)
	_ = w.PutString(PassKey, PassNo)
	return w
}

func passed(w *datawrapper.DataWrapper) bool {
	if w == nil || !w.Has(PassKey) {
		return true
	}
	v, _ := w.GetString(PassKey)
	return v == PassYes
}
