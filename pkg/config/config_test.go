package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "odr.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfigFile(t, `
auth:
  api_key: "k"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load err=%v", err)
	}
	if cfg.Server.Listen != ":3310" {
		t.Fatalf("default listen=%q", cfg.Server.Listen)
	}
	if cfg.Server.H2C {
		t.Fatalf("server.h2c default should be false")
	}
	if cfg.Dispatch.Path != "/api" || cfg.Dispatch.Hooks != "default" || cfg.Dispatch.CommandField != "cmd" {
		t.Fatalf("dispatch defaults=%+v", cfg.Dispatch)
	}
	if cfg.Converter.Name != "default" || cfg.Converter.DateFormat != "yyyy-MM-dd HH:mm:ss" {
		t.Fatalf("converter defaults=%+v", cfg.Converter)
	}
	if cfg.Store.Driver != DriverSQLite || cfg.Store.DSN == "" {
		t.Fatalf("store defaults=%+v", cfg.Store)
	}
	if cfg.Keys.File == "" || cfg.Keys.AutoReload.Enabled || cfg.Keys.AutoReload.DebounceMs != 300 {
		t.Fatalf("keys defaults=%+v", cfg.Keys)
	}
	if cfg.Auth.JWT.TTLMinutes != 60 {
		t.Fatalf("auth.jwt.ttl_minutes default=%d", cfg.Auth.JWT.TTLMinutes)
	}
	if !cfg.Logging.AccessLog {
		t.Fatalf("access_log default should be true")
	}
	if cfg.Logging.AccessLogRotate.MaxSizeMB != 100 || cfg.Logging.AccessLogRotate.MaxBackups != 14 || cfg.Logging.AccessLogRotate.MaxAgeDays != 14 {
		t.Fatalf("access_log_rotate defaults=%+v", cfg.Logging.AccessLogRotate)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfigFile(t, `
auth:
  api_key: "k"
`)
	t.Setenv("ODR_API_KEY", "k2")
	t.Setenv("ODR_LISTEN", ":9999")
	t.Setenv("ODR_READ_TIMEOUT_MS", "1234")
	t.Setenv("ODR_WRITE_TIMEOUT_MS", "2345")
	t.Setenv("ODR_H2C", "on")
	t.Setenv("ODR_JWT_SECRET", "0123456789abcdef")
	t.Setenv("ODR_KEYS_AUTO_RELOAD_ENABLED", "1")
	t.Setenv("ODR_KEYS_AUTO_RELOAD_DEBOUNCE_MS", "450")
	t.Setenv("ODR_DISPATCH_PATH", "/rpc")
	t.Setenv("ODR_DISPATCH_HOOKS", "keyacl")
	t.Setenv("ODR_CONVERTER", "strict")
	t.Setenv("ODR_TIMEZONE", "UTC")
	t.Setenv("ODR_PARSE_PATTERNS", "yyyy-MM-dd, dd/MM/yyyy")
	t.Setenv("ODR_STORE_DRIVER", "pgx")
	t.Setenv("ODR_STORE_DSN", "postgres://odr@localhost/odr")
	t.Setenv("ODR_ACCESS_LOG_PATH", "/tmp/access.log")
	t.Setenv("ODR_ACCESS_LOG_FORMAT", "$method $path")
	t.Setenv("ODR_ACCESS_LOG_FORMAT_PRESET", "odr_minimal")
	t.Setenv("ODR_ACCESS_LOG_ROTATE_ENABLED", "true")
	t.Setenv("ODR_ACCESS_LOG_ROTATE_MAX_SIZE_MB", "128")
	t.Setenv("ODR_ACCESS_LOG_ROTATE_COMPRESS", "1")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load err=%v", err)
	}
	if cfg.Auth.APIKey != "k2" || cfg.Auth.JWT.Secret != "0123456789abcdef" {
		t.Fatalf("auth not overridden: %+v", cfg.Auth)
	}
	if cfg.Server.Listen != ":9999" || !cfg.Server.H2C {
		t.Fatalf("server not overridden: %+v", cfg.Server)
	}
	if cfg.Server.ReadTimeoutMs != 1234 || cfg.Server.WriteTimeoutMs != 2345 {
		t.Fatalf("timeout not overridden: %d,%d", cfg.Server.ReadTimeoutMs, cfg.Server.WriteTimeoutMs)
	}
	if !cfg.Keys.AutoReload.Enabled || cfg.Keys.AutoReload.DebounceMs != 450 {
		t.Fatalf("keys auto_reload not overridden: %+v", cfg.Keys.AutoReload)
	}
	if cfg.Dispatch.Path != "/rpc" || cfg.Dispatch.Hooks != "keyacl" {
		t.Fatalf("dispatch not overridden: %+v", cfg.Dispatch)
	}
	if cfg.Converter.Name != "strict" || cfg.Converter.TimeZone != "UTC" {
		t.Fatalf("converter not overridden: %+v", cfg.Converter)
	}
	if strings.Join(cfg.Converter.ParsePatterns, "|") != "yyyy-MM-dd|dd/MM/yyyy" {
		t.Fatalf("parse patterns=%v", cfg.Converter.ParsePatterns)
	}
	if cfg.Store.Driver != DriverPostgres || cfg.Store.DSN != "postgres://odr@localhost/odr" {
		t.Fatalf("store not overridden: %+v", cfg.Store)
	}
	if cfg.Logging.AccessLogFormat != "$method $path" || cfg.Logging.AccessLogFormatPreset != "odr_minimal" {
		t.Fatalf("access log format not overridden: %+v", cfg.Logging)
	}
	if !cfg.Logging.AccessLogRotate.Enabled || cfg.Logging.AccessLogRotate.MaxSizeMB != 128 || !cfg.Logging.AccessLogRotate.Compress {
		t.Fatalf("access_log_rotate not overridden: %+v", cfg.Logging.AccessLogRotate)
	}
	opts := cfg.ConverterOptions()
	if opts.TimeZone != "UTC" || len(opts.ParsePatterns) != 2 {
		t.Fatalf("converter options=%+v", opts)
	}
}

func TestLoad_DotEnvNextToConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "odr.yaml")
	if err := os.WriteFile(path, []byte("server:\n  listen: \":1\"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("ODR_DISPATCH_PATH=/from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	// Register cleanup for the variable godotenv will set.
	t.Setenv("ODR_DISPATCH_PATH", "")
	if err := os.Unsetenv("ODR_DISPATCH_PATH"); err != nil {
		t.Fatalf("unsetenv: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load err=%v", err)
	}
	if cfg.Dispatch.Path != "/from-dotenv" {
		t.Fatalf("dispatch.path=%q", cfg.Dispatch.Path)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := map[string]string{
		"unknown converter": `
converter:
  name: "reflective"
`,
		"bad timezone": `
converter:
  timezone: "Mars/Olympus"
`,
		"bad driver": `
store:
  driver: "mysql"
  dsn: "x"
`,
		"relative dispatch path": `
dispatch:
  path: "api"
`,
		"short jwt secret": `
auth:
  jwt:
    secret: "short"
`,
		"postgres without dsn": `
store:
  driver: "pgx"
`,
		"rotate without path": `
logging:
  access_log_rotate:
    enabled: true
`,
		"explicit zero max_backups": `
logging:
  access_log_path: "./logs/access.log"
  access_log_rotate:
    enabled: true
    max_backups: 0
`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfigFile(t, content)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoad_MaxAgeDaysCanBeZero(t *testing.T) {
	path := writeConfigFile(t, `
logging:
  access_log_path: "./logs/access.log"
  access_log_rotate:
    enabled: true
    max_age_days: 0
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load err=%v", err)
	}
	if cfg.Logging.AccessLogRotate.MaxAgeDays != 0 {
		t.Fatalf("max_age_days=%d", cfg.Logging.AccessLogRotate.MaxAgeDays)
	}
}

func TestLoad_AccessLogCanBeDisabled(t *testing.T) {
	t.Setenv("ODR_ACCESS_LOG", "")
	cfg, err := Load(writeConfigFile(t, "logging:\n  access_log: false\n"))
	if err != nil {
		t.Fatalf("Load err=%v", err)
	}
	if cfg.Logging.AccessLog {
		t.Fatalf("access_log should stay false when set explicitly")
	}
}
