package admincli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/r9s-ai/open-data-router/internal/admintui"
	"github.com/r9s-ai/open-data-router/pkg/config"
	"github.com/r9s-ai/open-data-router/pkg/datamodel"
	"github.com/r9s-ai/open-data-router/pkg/datawrapper"
	"github.com/r9s-ai/open-data-router/pkg/dispatch"
	"github.com/spf13/cobra"
)

type callOptions struct {
	cfgPath string
	url     string
	key     string
	data    string
	file    string
	output  string
	timeout time.Duration
}

func newCallCmd() *cobra.Command {
	opts := callOptions{cfgPath: defaultConfigPath, output: "json", timeout: 30 * time.Second}
	cmd := &cobra.Command{
		Use:   "call [service.method] [key=value | key:=json ...]",
		Short: "Send a request envelope to a running odr",
		Long: "Builds an envelope from the arguments (or --data/--file) and posts it to the dispatch endpoint.\n" +
			"key=value sets a string entry; key:=json parses the value into a model, e.g. members:='[{\"name\":\"Ada\"}]'.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd, opts, args)
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&opts.cfgPath, "config", "c", defaultConfigPath, "config yaml path (listen, dispatch path, api key)")
	fs.StringVar(&opts.url, "url", "", "dispatch endpoint url (default from config or ODR_URL)")
	fs.StringVar(&opts.key, "key", "", "api key, access key or token (default ODR_API_KEY or auth.api_key)")
	fs.StringVarP(&opts.data, "data", "d", "", "raw JSON envelope")
	fs.StringVarP(&opts.file, "file", "f", "", "read the JSON envelope from a file (- for stdin)")
	fs.StringVarP(&opts.output, "output", "o", "json", "output format: json, table or view")
	fs.DurationVar(&opts.timeout, "timeout", 30*time.Second, "request timeout")
	return cmd
}

func runCall(cmd *cobra.Command, opts callOptions, args []string) error {
	switch opts.output {
	case "json", "table", "view":
	default:
		return fmt.Errorf("unsupported --output %q (json, table, view)", opts.output)
	}
	cfg, err := loadConfigIfExists(opts.cfgPath)
	if err != nil {
		return err
	}
	commandField := dispatch.DefaultCommandKey
	if cfg != nil && strings.TrimSpace(cfg.Dispatch.CommandField) != "" {
		commandField = cfg.Dispatch.CommandField
	}
	raw, err := readRawEnvelope(cmd.InOrStdin(), opts)
	if err != nil {
		return err
	}
	body, err := buildEnvelope(raw, commandField, args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()
	status, resp, err := postEnvelope(ctx, resolveURL(opts.url, cfg), resolveKey(opts.key, cfg), body)
	if err != nil {
		return err
	}
	if err := writeResponse(cmd, opts.output, resp); err != nil {
		return err
	}
	if status >= http.StatusBadRequest {
		return fmt.Errorf("server returned %d", status)
	}
	return nil
}

func readRawEnvelope(stdin io.Reader, opts callOptions) ([]byte, error) {
	if strings.TrimSpace(opts.data) != "" {
		return []byte(opts.data), nil
	}
	switch f := strings.TrimSpace(opts.file); f {
	case "":
		return nil, nil
	case "-":
		return io.ReadAll(stdin)
	default:
		// #nosec G304 -- file path comes from the operator.
		return os.ReadFile(f)
	}
}

// buildEnvelope merges the positional arguments into raw (which may be
// empty). The first argument without "=" is the command.
func buildEnvelope(raw []byte, commandField string, args []string) ([]byte, error) {
	w := datawrapper.New()
	if len(bytes.TrimSpace(raw)) > 0 {
		parsed, err := datawrapper.FromJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("parse envelope: %w", err)
		}
		w = parsed
	}
	for i, arg := range args {
		if i == 0 && !strings.Contains(arg, "=") {
			if err := w.PutString(commandField, arg); err != nil {
				return nil, err
			}
			continue
		}
		if k, v, ok := strings.Cut(arg, ":="); ok && !strings.Contains(k, "=") {
			m, err := datamodel.FromJSON([]byte(v))
			if err != nil {
				return nil, fmt.Errorf("argument %q: %w", k, err)
			}
			if err := w.PutModel(k, m); err != nil {
				return nil, err
			}
			continue
		}
		k, v, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("argument %q: want key=value or key:=json", arg)
		}
		if err := w.PutString(k, v); err != nil {
			return nil, err
		}
	}
	if !w.Has(commandField) {
		return nil, fmt.Errorf("no command: pass service.method or set %q in the envelope", commandField)
	}
	return w.MarshalJSON()
}

// resolveURL picks --url, then ODR_URL, then server.listen plus
// dispatch.path from the config, with unspecified hosts mapped to loopback.
func resolveURL(flagURL string, cfg *config.Config) string {
	if u := strings.TrimSpace(flagURL); u != "" {
		return u
	}
	if u := strings.TrimSpace(os.Getenv("ODR_URL")); u != "" {
		return u
	}
	listen, path := ":3310", "/api"
	if cfg != nil {
		listen, path = cfg.Server.Listen, cfg.Dispatch.Path
	}
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		host, port = "", "3310"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + path
}

func resolveKey(flagKey string, cfg *config.Config) string {
	if k := strings.TrimSpace(flagKey); k != "" {
		return k
	}
	if k := strings.TrimSpace(os.Getenv("ODR_API_KEY")); k != "" {
		return k
	}
	if cfg != nil {
		return strings.TrimSpace(cfg.Auth.APIKey)
	}
	return ""
}

func postEnvelope(ctx context.Context, url, key string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("call %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, b, nil
}

func writeResponse(cmd *cobra.Command, output string, resp []byte) error {
	out := cmd.OutOrStdout()
	if output == "json" {
		var buf bytes.Buffer
		if err := json.Indent(&buf, resp, "", "  "); err != nil {
			_, err = out.Write(resp)
			return err
		}
		buf.WriteByte('\n')
		_, err := buf.WriteTo(out)
		return err
	}
	grids, err := admintui.ParseGrids(resp)
	if err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if output == "view" {
		return admintui.Run(grids, cmd.InOrStdin(), out)
	}
	_, err = fmt.Fprint(out, admintui.Render(grids))
	return err
}
