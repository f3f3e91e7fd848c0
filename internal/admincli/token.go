package admincli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/r9s-ai/open-data-router/internal/auth"
	"github.com/spf13/cobra"
)

type tokenCreateOptions struct {
	cfgPath  string
	subject  string
	key      string
	commands string
	ttl      time.Duration
}

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage bearer tokens",
	}
	cmd.AddCommand(newTokenCreateCmd())
	return cmd
}

func newTokenCreateCmd() *cobra.Command {
	opts := tokenCreateOptions{cfgPath: defaultConfigPath}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Mint an HS256 token signed with auth.jwt.secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tok, err := createToken(opts)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&opts.cfgPath, "config", "c", defaultConfigPath, "config yaml path")
	fs.StringVar(&opts.subject, "sub", "", "token subject, shown as the principal")
	fs.StringVar(&opts.key, "key", "", "access key name the token inherits commands from")
	fs.StringVar(&opts.commands, "cmds", "", "comma separated command patterns, e.g. memberService.get*")
	fs.DurationVar(&opts.ttl, "ttl", 0, "token lifetime (default auth.jwt.ttl_minutes)")
	return cmd
}

func createToken(opts tokenCreateOptions) (string, error) {
	sub := strings.TrimSpace(opts.subject)
	if sub == "" {
		return "", errors.New("--sub is required")
	}
	cfg, err := loadConfigIfExists(opts.cfgPath)
	if err != nil {
		return "", err
	}
	if cfg == nil || strings.TrimSpace(cfg.Auth.JWT.Secret) == "" {
		return "", errors.New("auth.jwt.secret is not configured")
	}
	ttl := opts.ttl
	if ttl <= 0 {
		ttl = time.Duration(cfg.Auth.JWT.TTLMinutes) * time.Minute
	}
	tokens, err := auth.NewTokens(auth.TokenOptions{
		Secret:   cfg.Auth.JWT.Secret,
		Issuer:   cfg.Auth.JWT.Issuer,
		Audience: cfg.Auth.JWT.Audience,
		TTL:      ttl,
	})
	if err != nil {
		return "", err
	}
	return tokens.Sign(sub, strings.TrimSpace(opts.key), splitCSV(opts.commands))
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
