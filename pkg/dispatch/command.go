package dispatch

import (
	"fmt"
	"strings"

	"github.com/r9s-ai/open-data-router/pkg/apierr"
)

// DefaultCommandKey is the envelope key holding "{service}.{method}".
const DefaultCommandKey = "cmd"

// ParseCommand splits cmd into its service and method names. Exactly two
// non-empty dot-separated parts are accepted.
func ParseCommand(cmd string) (service, method string, err error) {
	parts := strings.Split(strings.TrimSpace(cmd), ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", apierr.New(apierr.CodeMalformedCommand,
			fmt.Sprintf("command %q must have the form service.method", cmd))
	}
	return parts[0], parts[1], nil
}
