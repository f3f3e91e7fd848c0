// Package dispatch runs one request envelope through the fixed hook pipeline
// (pre-check, authority check, log, command invocation, error handling,
// post-handle) and produces the response envelope.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"runtime/debug"

	"github.com/r9s-ai/open-data-router/pkg/apierr"
	"github.com/r9s-ai/open-data-router/pkg/converter"
	"github.com/r9s-ai/open-data-router/pkg/datawrapper"
)

type Options struct {
	Registry   *Registry
	Hooks      Hooks
	CommandKey string
	Converter  converter.Converter
	Logger     *log.Logger
}

type Dispatcher struct {
	registry   *Registry
	hooks      Hooks
	commandKey string
	conv       converter.Converter
}

func New(opts Options) *Dispatcher {
	d := &Dispatcher{
		registry:   opts.Registry,
		hooks:      opts.Hooks,
		commandKey: opts.CommandKey,
		conv:       opts.Converter,
	}
	if d.registry == nil {
		d.registry = NewRegistry()
	}
	if d.commandKey == "" {
		d.commandKey = DefaultCommandKey
	}
	if d.hooks == nil {
		d.hooks = &DefaultHooks{Logger: opts.Logger, CommandKey: d.commandKey}
	}
	if d.conv == nil {
		d.conv = converter.Standard()
	}
	return d
}

func (d *Dispatcher) Registry() *Registry { return d.registry }

func (d *Dispatcher) CommandKey() string { return d.commandKey }

func (d *Dispatcher) Converter() converter.Converter { return d.conv }

// Result is the outcome of one dispatch. Code is empty on success.
type Result struct {
	Status   int
	Envelope *datawrapper.DataWrapper
	Code     string
	Command  string
	Service  string
	Method   string
}

// Dispatch runs the pipeline. It never returns an error: every failure is
// turned into an error envelope.
func (d *Dispatcher) Dispatch(ctx context.Context, rc *RequestContext, req *datawrapper.DataWrapper) (res Result) {
	if rc == nil {
		rc = &RequestContext{}
	}
	if req == nil {
		req = datawrapper.New(datawrapper.WithConverter(d.conv))
	}
	ctx = WithRequestContext(ctx, rc)
	res.Command, _ = req.GetString(d.commandKey)

	// The post hook runs once for every request except a pre-check
	// rejection, whether the pipeline ends in an error or a panic.
	postPending := true
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		env := ensureErrorShape(d.hooks.HandlePanic(ctx, rc, req, r, debug.Stack()), apierr.CodeFatal, "internal error")
		res.Status = http.StatusInternalServerError
		res.Envelope = env
		res.Code = envelopeCode(env)
		if postPending {
			postPending = false
			d.hooks.PostHandle(ctx, rc, req, env)
		}
	}()

	pre, err := d.hooks.PreCheck(ctx, rc, req)
	if err != nil {
		return d.fail(ctx, rc, req, res, err, &postPending)
	}
	if !passed(pre) {
		postPending = false
		env := ensureErrorShape(pre, apierr.CodePreCheckFailed, "pre-check failed")
		res.Status = apierr.CodePreCheckFailed.HTTPStatus()
		res.Envelope = env
		res.Code = envelopeCode(env)
		return res
	}

	auth, err := d.hooks.CheckAuthority(ctx, rc, req)
	if err != nil {
		return d.fail(ctx, rc, req, res, err, &postPending)
	}
	if !passed(auth) {
		env := ensureErrorShape(auth, apierr.CodeForbidden, "access denied")
		res.Status = apierr.CodeForbidden.HTTPStatus()
		res.Envelope = env
		res.Code = envelopeCode(env)
		d.post(ctx, rc, req, env, &postPending)
		return res
	}

	d.hooks.Log(ctx, rc, req)

	resp, err := d.invoke(ctx, req, &res)
	if err != nil {
		return d.fail(ctx, rc, req, res, err, &postPending)
	}
	if _, err := resp.MarshalJSON(); err != nil {
		return d.fail(ctx, rc, req, res, fmt.Errorf("encode response: %w", err), &postPending)
	}
	res.Status = http.StatusOK
	res.Envelope = resp
	d.post(ctx, rc, req, resp, &postPending)
	return res
}

func (d *Dispatcher) invoke(ctx context.Context, req *datawrapper.DataWrapper, res *Result) (*datawrapper.DataWrapper, error) {
	cmd, ok := req.GetString(d.commandKey)
	if !ok {
		return nil, apierr.New(apierr.CodeMalformedCommand, fmt.Sprintf("field %q must hold a command string", d.commandKey))
	}
	service, method, err := ParseCommand(cmd)
	if err != nil {
		return nil, err
	}
	res.Service, res.Method = service, method
	h, err := d.registry.Lookup(service, method)
	if err != nil {
		return nil, err
	}
	if err := req.MarkImmutable(d.commandKey); err != nil {
		return nil, err
	}
	out, err := h(ctx, req.Clone())
	if err != nil {
		return nil, err
	}
	return WrapResult(out, d.conv)
}

func (d *Dispatcher) fail(ctx context.Context, rc *RequestContext, req *datawrapper.DataWrapper, res Result, err error, postPending *bool) Result {
	env := ensureErrorShape(d.hooks.HandleError(ctx, rc, req, err), ErrorCode(err), ErrorMessage(err))
	res.Status = http.StatusInternalServerError
	res.Envelope = env
	res.Code = envelopeCode(env)
	d.post(ctx, rc, req, env, postPending)
	return res
}

func (d *Dispatcher) post(ctx context.Context, rc *RequestContext, req, resp *datawrapper.DataWrapper, postPending *bool) {
	if !*postPending {
		return
	}
	*postPending = false
	d.hooks.PostHandle(ctx, rc, req, resp)
}
