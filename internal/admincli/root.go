// Package admincli implements the odr-admin command tree.
package admincli

import (
	"errors"
	"os"
	"strings"

	"github.com/r9s-ai/open-data-router/internal/version"
	"github.com/r9s-ai/open-data-router/pkg/config"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "odr.yaml"

// Execute runs odr-admin with os.Args.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "odr-admin",
		Short:         "Operator tools for open-data-router",
		Version:       version.Get().Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newVersionCmd(),
		newValidateCmd(),
		newCallCmd(),
		newTableCmd(),
		newViewCmd(),
		newTokenCmd(),
	)
	return root
}

// loadConfigIfExists returns nil, nil when path does not exist so commands
// can run against flags alone.
func loadConfigIfExists(path string) (*config.Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return config.Load(path)
}
