package converter

import (
	"fmt"
	"sort"
	"strings"
)

// Factory builds a Converter from options.
type Factory func(opts Options) (Converter, error)

var factories = map[string]Factory{
	"default": func(opts Options) (Converter, error) {
		return New(opts)
	},
	"strict": func(opts Options) (Converter, error) {
		opts.Strict = true
		return New(opts)
	},
}

// Lookup returns the factory registered under name. An empty name selects
// "default".
func Lookup(name string) (Factory, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = "default"
	}
	f, ok := factories[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownConverter, name, strings.Join(Names(), ", "))
	}
	return f, nil
}

// Names lists the registered converter names.
func Names() []string {
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
