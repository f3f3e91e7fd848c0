package dispatch

import (
	"context"
	"fmt"
	"sort"

	"github.com/r9s-ai/open-data-router/pkg/apierr"
	"github.com/r9s-ai/open-data-router/pkg/datawrapper"
)

// HandlerFunc runs one command. The request is a private copy. The result is
// a *datawrapper.DataWrapper, nil, or a value wrapped under ResultKey (see
// WrapResult).
type HandlerFunc func(ctx context.Context, req *datawrapper.DataWrapper) (any, error)

// Service groups the commands of one service name.
type Service interface {
	Name() string
	Methods() map[string]HandlerFunc
}

// Registry maps service and method names to handlers. It is filled at
// startup and read-only afterwards.
type Registry struct {
	services map[string]map[string]HandlerFunc
}

func NewRegistry() *Registry {
	return &Registry{services: map[string]map[string]HandlerFunc{}}
}

func (r *Registry) Register(service, method string, h HandlerFunc) error {
	if service == "" || method == "" || h == nil {
		return fmt.Errorf("register %q.%q: service, method and handler are required", service, method)
	}
	methods, ok := r.services[service]
	if !ok {
		methods = map[string]HandlerFunc{}
		r.services[service] = methods
	}
	if _, dup := methods[method]; dup {
		return fmt.Errorf("register %s.%s: already registered", service, method)
	}
	methods[method] = h
	return nil
}

// RegisterService adds every method of s.
func (r *Registry) RegisterService(s Service) error {
	methods := s.Methods()
	names := make([]string, 0, len(methods))
	for name := range methods {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := r.Register(s.Name(), name, methods[name]); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) Lookup(service, method string) (HandlerFunc, error) {
	methods, ok := r.services[service]
	if !ok {
		return nil, apierr.New(apierr.CodeServiceNotFound, fmt.Sprintf("service %q not found", service))
	}
	h, ok := methods[method]
	if !ok {
		return nil, apierr.New(apierr.CodeMethodNotFound, fmt.Sprintf("method %q not found in service %q", method, service))
	}
	return h, nil
}

// Commands lists every registered "service.method", sorted.
func (r *Registry) Commands() []string {
	out := make([]string, 0)
	for s, methods := range r.services {
		for m := range methods {
			out = append(out, s+"."+m)
		}
	}
	sort.Strings(out)
	return out
}
