package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"math"
	"net/http"
	"testing"

	"github.com/r9s-ai/open-data-router/pkg/apierr"
	"github.com/r9s-ai/open-data-router/pkg/datamodel"
	"github.com/r9s-ai/open-data-router/pkg/datawrapper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHooks struct {
	DefaultHooks
	pre      *datawrapper.DataWrapper
	auth     *datawrapper.DataWrapper
	preErr   error
	prePanic any
	calls    []string
	panicked any
}

func (h *recordingHooks) PreCheck(ctx context.Context, rc *RequestContext, req *datawrapper.DataWrapper) (*datawrapper.DataWrapper, error) {
	h.calls = append(h.calls, "pre")
	if h.prePanic != nil {
		panic(h.prePanic)
	}
	if h.preErr != nil {
		return nil, h.preErr
	}
	if h.pre != nil {
		return h.pre, nil
	}
	return h.DefaultHooks.PreCheck(ctx, rc, req)
}

func (h *recordingHooks) CheckAuthority(context.Context, *RequestContext, *datawrapper.DataWrapper) (*datawrapper.DataWrapper, error) {
	h.calls = append(h.calls, "auth")
	if h.auth != nil {
		return h.auth, nil
	}
	return Pass(), nil
}

func (h *recordingHooks) Log(context.Context, *RequestContext, *datawrapper.DataWrapper) {
	h.calls = append(h.calls, "log")
}

func (h *recordingHooks) HandleError(ctx context.Context, rc *RequestContext, req *datawrapper.DataWrapper, err error) *datawrapper.DataWrapper {
	h.calls = append(h.calls, "error")
	return h.DefaultHooks.HandleError(ctx, rc, req, err)
}

func (h *recordingHooks) HandlePanic(ctx context.Context, rc *RequestContext, req *datawrapper.DataWrapper, recovered any, stack []byte) *datawrapper.DataWrapper {
	h.calls = append(h.calls, "panic")
	h.panicked = recovered
	return h.DefaultHooks.HandlePanic(ctx, rc, req, recovered, stack)
}

func (h *recordingHooks) PostHandle(context.Context, *RequestContext, *datawrapper.DataWrapper, *datawrapper.DataWrapper) {
	h.calls = append(h.calls, "post")
}

func request(t *testing.T, cmd string) *datawrapper.DataWrapper {
	t.Helper()
	w, err := datawrapper.NewWith(DefaultCommandKey, cmd)
	require.NoError(t, err)
	return w
}

func newTestDispatcher(t *testing.T, hooks Hooks) *Dispatcher {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, reg.Register("memberService", "getAllMembers", func(context.Context, *datawrapper.DataWrapper) (any, error) {
		return []map[string]any{{"id": "1", "name": "a"}}, nil
	}))
	require.NoError(t, reg.Register("memberService", "fail", func(context.Context, *datawrapper.DataWrapper) (any, error) {
		return nil, apierr.New(apierr.CodeNotFound, "member not found")
	}))
	require.NoError(t, reg.Register("memberService", "boom", func(context.Context, *datawrapper.DataWrapper) (any, error) {
		panic("boom")
	}))
	require.NoError(t, reg.Register("memberService", "tamper", func(_ context.Context, req *datawrapper.DataWrapper) (any, error) {
		return nil, req.PutString(DefaultCommandKey, "other.method")
	}))
	require.NoError(t, reg.Register("memberService", "nan", func(context.Context, *datawrapper.DataWrapper) (any, error) {
		return map[string]any{"x": math.NaN()}, nil
	}))
	require.NoError(t, reg.Register("memberService", "badModel", func(context.Context, *datawrapper.DataWrapper) (any, error) {
		m := datamodel.New()
		return nil, m.RemoveRow(3)
	}))
	return New(Options{Registry: reg, Hooks: hooks})
}

func code(t *testing.T, w *datawrapper.DataWrapper) string {
	t.Helper()
	c, _ := w.GetString(CodeKey)
	return c
}

func TestDispatch_PreCheckShortCircuitSkipsPost(t *testing.T) {
	pre, err := datawrapper.NewWith(PassKey, "N")
	require.NoError(t, err)
	h := &recordingHooks{pre: pre}
	d := newTestDispatcher(t, h)

	res := d.Dispatch(context.Background(), nil, request(t, "memberService.getAllMembers"))
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, []string{"pre"}, h.calls)
	status, _ := res.Envelope.GetString(StatusKey)
	assert.Equal(t, StatusError, status)
	assert.Equal(t, string(apierr.CodePreCheckFailed), code(t, res.Envelope))
	pass, _ := res.Envelope.GetString(PassKey)
	assert.Equal(t, "N", pass)
}

func TestDispatch_AuthorityShortCircuitRunsPost(t *testing.T) {
	auth, err := datawrapper.NewWith(PassKey, "N")
	require.NoError(t, err)
	h := &recordingHooks{auth: auth}
	d := newTestDispatcher(t, h)

	res := d.Dispatch(context.Background(), nil, request(t, "memberService.getAllMembers"))
	assert.Equal(t, http.StatusForbidden, res.Status)
	assert.Equal(t, []string{"pre", "auth", "post"}, h.calls)
	assert.Equal(t, string(apierr.CodeForbidden), code(t, res.Envelope))
}

func TestDispatch_ResolvesAndWrapsResult(t *testing.T) {
	h := &recordingHooks{}
	d := newTestDispatcher(t, h)

	res := d.Dispatch(context.Background(), &RequestContext{RequestID: "r1"}, request(t, "memberService.getAllMembers"))
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "memberService", res.Service)
	assert.Equal(t, "getAllMembers", res.Method)
	assert.Empty(t, res.Code)
	assert.Equal(t, []string{"pre", "auth", "log", "post"}, h.calls)

	m, ok := res.Envelope.GetModel(ResultKey)
	require.True(t, ok)
	assert.Equal(t, []map[string]any{{"id": "1", "name": "a"}}, m.Rows())
}

func TestDispatch_MalformedCommandBeforeLookup(t *testing.T) {
	h := &recordingHooks{}
	d := newTestDispatcher(t, h)

	res := d.Dispatch(context.Background(), nil, request(t, "onlyOnePart"))
	assert.Equal(t, http.StatusInternalServerError, res.Status)
	assert.Equal(t, string(apierr.CodeMalformedCommand), code(t, res.Envelope))
	assert.Empty(t, res.Service)
	assert.Equal(t, []string{"pre", "auth", "log", "error", "post"}, h.calls)

	res = d.Dispatch(context.Background(), nil, request(t, "a.b.c"))
	assert.Equal(t, string(apierr.CodeMalformedCommand), code(t, res.Envelope))
}

func TestDispatch_LookupFailures(t *testing.T) {
	d := newTestDispatcher(t, &recordingHooks{})

	res := d.Dispatch(context.Background(), nil, request(t, "nope.getAllMembers"))
	assert.Equal(t, string(apierr.CodeServiceNotFound), code(t, res.Envelope))

	res = d.Dispatch(context.Background(), nil, request(t, "memberService.nope"))
	assert.Equal(t, string(apierr.CodeMethodNotFound), code(t, res.Envelope))
}

func TestDispatch_HandlerErrors(t *testing.T) {
	d := newTestDispatcher(t, &recordingHooks{})

	res := d.Dispatch(context.Background(), nil, request(t, "memberService.fail"))
	assert.Equal(t, http.StatusInternalServerError, res.Status)
	assert.Equal(t, string(apierr.CodeNotFound), code(t, res.Envelope))
	msg, _ := res.Envelope.GetString(MessageKey)
	assert.Equal(t, "member not found", msg)

	res = d.Dispatch(context.Background(), nil, request(t, "memberService.badModel"))
	assert.Equal(t, string(apierr.CodeDataError), code(t, res.Envelope))

	res = d.Dispatch(context.Background(), nil, request(t, "memberService.tamper"))
	assert.Equal(t, string(apierr.CodeDataError), code(t, res.Envelope))
}

func TestDispatch_PanicGoesToPanicHook(t *testing.T) {
	var buf bytes.Buffer
	h := &recordingHooks{DefaultHooks: DefaultHooks{Logger: log.New(&buf, "", 0)}}
	d := newTestDispatcher(t, h)

	res := d.Dispatch(context.Background(), &RequestContext{RequestID: "r9"}, request(t, "memberService.boom"))
	assert.Equal(t, http.StatusInternalServerError, res.Status)
	assert.Equal(t, string(apierr.CodeFatal), code(t, res.Envelope))
	assert.Equal(t, "boom", h.panicked)
	assert.Equal(t, []string{"pre", "auth", "log", "panic", "post"}, h.calls)
	assert.Contains(t, buf.String(), "request_id=r9")
	assert.Contains(t, buf.String(), "goroutine")

	b, err := res.Envelope.MarshalJSON()
	require.NoError(t, err)
	assert.NotContains(t, string(b), "goroutine")
}

func TestDispatch_DefaultPreCheckRequiresCommand(t *testing.T) {
	d := newTestDispatcher(t, nil)
	res := d.Dispatch(context.Background(), nil, datawrapper.New())
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, string(apierr.CodePreCheckFailed), code(t, res.Envelope))
}

func TestDispatch_HandlerSeesRequestContext(t *testing.T) {
	reg := NewRegistry()
	var seen *RequestContext
	require.NoError(t, reg.Register("s", "m", func(ctx context.Context, _ *datawrapper.DataWrapper) (any, error) {
		seen = RequestContextFrom(ctx)
		return "ok", nil
	}))
	d := New(Options{Registry: reg})
	rc := &RequestContext{RequestID: "abc", Principal: "alice"}
	res := d.Dispatch(context.Background(), rc, request(t, "s.m"))
	require.Equal(t, http.StatusOK, res.Status)
	assert.Same(t, rc, seen)
	out, _ := res.Envelope.GetString(ResultKey)
	assert.Equal(t, "ok", out)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	noop := func(context.Context, *datawrapper.DataWrapper) (any, error) { return nil, nil }
	require.NoError(t, reg.Register("b", "x", noop))
	require.NoError(t, reg.Register("a", "y", noop))
	assert.Error(t, reg.Register("a", "y", noop))
	assert.Error(t, reg.Register("", "y", noop))
	assert.Equal(t, []string{"a.y", "b.x"}, reg.Commands())

	_, err := reg.Lookup("a", "zz")
	assert.True(t, errors.Is(err, apierr.New(apierr.CodeMethodNotFound, "")))
}

func TestParseCommand(t *testing.T) {
	s, m, err := ParseCommand("memberService.getAllMembers")
	require.NoError(t, err)
	assert.Equal(t, "memberService", s)
	assert.Equal(t, "getAllMembers", m)

	for _, bad := range []string{"", "onlyOnePart", ".x", "x.", "a.b.c"} {
		_, _, err := ParseCommand(bad)
		code, _ := apierr.CodeOf(err)
		assert.Equal(t, apierr.CodeMalformedCommand, code, bad)
	}
}

func TestWrapResult(t *testing.T) {
	w, err := WrapResult(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, w.Len())

	in := datawrapper.New()
	w, err = WrapResult(in, nil)
	require.NoError(t, err)
	assert.Same(t, in, w)

	w, err = WrapResult(42, nil)
	require.NoError(t, err)
	s, _ := w.GetString(ResultKey)
	assert.Equal(t, "42", s)

	w, err = WrapResult(map[string]any{"a": "1"}, nil)
	require.NoError(t, err)
	_, ok := w.GetModel(ResultKey)
	assert.True(t, ok)
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, apierr.CodeInternal, ErrorCode(errors.New("x")))
	assert.Equal(t, "internal error", ErrorMessage(errors.New("secret dsn")))
	assert.Equal(t, apierr.CodeDataError, ErrorCode(datamodel.ErrTypeMismatch))
}

func TestDispatch_UnencodableResultIsAnError(t *testing.T) {
	h := &recordingHooks{}
	d := newTestDispatcher(t, h)

	res := d.Dispatch(context.Background(), nil, request(t, "memberService.nan"))
	assert.Equal(t, http.StatusInternalServerError, res.Status)
	assert.Equal(t, string(apierr.CodeConversionError), res.Code)
	assert.Equal(t, []string{"pre", "auth", "log", "error", "post"}, h.calls)
	body, err := res.Envelope.MarshalJSON()
	require.NoError(t, err)
	assert.True(t, json.Valid(body))
	status, _ := res.Envelope.GetString(StatusKey)
	assert.Equal(t, StatusError, status)
}

func TestDispatch_PreCheckFailureRunsPost(t *testing.T) {
	h := &recordingHooks{preErr: errors.New("store down")}
	res := newTestDispatcher(t, h).Dispatch(context.Background(), nil, request(t, "memberService.getAllMembers"))
	assert.Equal(t, http.StatusInternalServerError, res.Status)
	assert.Equal(t, []string{"pre", "error", "post"}, h.calls)

	p := &recordingHooks{prePanic: "pre boom"}
	res = newTestDispatcher(t, p).Dispatch(context.Background(), nil, request(t, "memberService.getAllMembers"))
	assert.Equal(t, http.StatusInternalServerError, res.Status)
	assert.Equal(t, "pre boom", p.panicked)
	assert.Equal(t, []string{"pre", "panic", "post"}, p.calls)
}
