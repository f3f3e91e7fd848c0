package odrserver

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/r9s-ai/open-data-router/internal/auth"
	"github.com/r9s-ai/open-data-router/pkg/apierr"
	"github.com/r9s-ai/open-data-router/pkg/datawrapper"
	"github.com/r9s-ai/open-data-router/pkg/dispatch"
)

// Hook implementations selectable with dispatch.hooks.
const (
	HooksDefault = "default"
	HooksKeyACL  = "keyacl"
)

type hooksFactory func(logger *log.Logger, commandKey string) dispatch.Hooks

var hookFactories = map[string]hooksFactory{
	HooksDefault: func(logger *log.Logger, commandKey string) dispatch.Hooks {
		return &dispatch.DefaultHooks{Logger: logger, CommandKey: commandKey}
	},
	HooksKeyACL: func(logger *log.Logger, commandKey string) dispatch.Hooks {
		return &keyACLHooks{DefaultHooks: dispatch.DefaultHooks{Logger: logger, CommandKey: commandKey}}
	},
}

func newHooks(name string, logger *log.Logger, commandKey string) (dispatch.Hooks, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = HooksDefault
	}
	f, ok := hookFactories[key]
	if !ok {
		names := make([]string, 0, len(hookFactories))
		for n := range hookFactories {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("unknown dispatch.hooks %q (available: %s)", name, strings.Join(names, ", "))
	}
	return f(logger, commandKey), nil
}

// keyACLHooks only lets a caller dispatch the commands its access key (or
// token) allows. Anonymous callers are refused.
type keyACLHooks struct {
	dispatch.DefaultHooks
}

func (h *keyACLHooks) CheckAuthority(_ context.Context, rc *dispatch.RequestContext, req *datawrapper.DataWrapper) (*datawrapper.DataWrapper, error) {
	cmd, _ := req.GetString(h.CommandKey)
	var sess *auth.Session
	if rc != nil {
		sess, _ = rc.Session.(*auth.Session)
	}
	if sess == nil || sess.Method == auth.MethodAnonymous {
		return dispatch.Reject(apierr.CodeForbidden, "an access key is required"), nil
	}
	if !sess.Allows(cmd) {
		if h.Logger != nil {
			h.Logger.Printf("[ODR] dispatch denied request_id=%s principal=%s cmd=%s", rc.RequestID, sess.Principal, cmd)
		}
		return dispatch.Reject(apierr.CodeForbidden, "command not allowed: "+cmd), nil
	}
	return dispatch.Pass(), nil
}
