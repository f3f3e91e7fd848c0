package admincli

import (
	"fmt"
	"strings"

	"github.com/r9s-ai/open-data-router/internal/keystore"
	"github.com/r9s-ai/open-data-router/pkg/config"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	var cfgPath, keysPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate odr.yaml and keys.yaml",
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", defaultConfigPath, "config yaml path")
	cmd.PersistentFlags().StringVar(&keysPath, "keys", "", "keys.yaml path (override config keys.file)")

	cmd.AddCommand(&cobra.Command{
		Use:   "config",
		Short: "Load odr.yaml with env overrides and report problems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(strings.TrimSpace(cfgPath))
			if err != nil {
				return fmt.Errorf("config %s: %w", cfgPath, err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "config ok: listen=%s dispatch=%s hooks=%s converter=%s store=%s\n",
				cfg.Server.Listen, cfg.Dispatch.Path, cfg.Dispatch.Hooks, cfg.Converter.Name, cfg.Store.Driver)
			return err
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "keys",
		Short: "Parse keys.yaml and list the access keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := resolveKeysPath(cfgPath, keysPath)
			if err != nil {
				return err
			}
			ks, err := keystore.Load(path)
			if err != nil {
				return fmt.Errorf("keys %s: %w", path, err)
			}
			out := cmd.OutOrStdout()
			keys := ks.AccessKeys()
			if _, err := fmt.Fprintf(out, "keys ok: %s access_keys=%d\n", path, len(keys)); err != nil {
				return err
			}
			for _, k := range keys {
				cmds := "*"
				if len(k.Commands) > 0 {
					cmds = strings.Join(k.Commands, ",")
				}
				if _, err := fmt.Fprintf(out, "  %-16s commands=%s\n", displayName(k.Name), cmds); err != nil {
					return err
				}
			}
			return nil
		},
	})
	return cmd
}

func resolveKeysPath(cfgPath, keysPath string) (string, error) {
	if p := strings.TrimSpace(keysPath); p != "" {
		return p, nil
	}
	cfg, err := loadConfigIfExists(cfgPath)
	if err != nil {
		return "", err
	}
	if cfg != nil && strings.TrimSpace(cfg.Keys.File) != "" {
		return strings.TrimSpace(cfg.Keys.File), nil
	}
	return "keys.yaml", nil
}

func displayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "(unnamed)"
	}
	return name
}
