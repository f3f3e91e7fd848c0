package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/r9s-ai/open-data-router/pkg/converter"
	"gopkg.in/yaml.v3"
)

const (
	defaultAccessLogRotateMaxSizeMB  = 100
	defaultAccessLogRotateMaxBackups = 14
	defaultAccessLogRotateMaxAgeDays = 14

	minJWTSecretLen = 16
)

// Store drivers accepted by store.driver.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

type AccessLogRotateConfig struct {
	Enabled    bool `yaml:"enabled"`
	MaxSizeMB  int  `yaml:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days"`
	Compress   bool `yaml:"compress"`

	maxSizeMBSet  bool `yaml:"-"`
	maxBackupsSet bool `yaml:"-"`
	maxAgeDaysSet bool `yaml:"-"`
}

// UnmarshalYAML records which limits were written explicitly so that an
// explicit 0 is validated instead of replaced by a default.
func (c *AccessLogRotateConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain AccessLogRotateConfig
	var raw plain
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*c = AccessLogRotateConfig(raw)
	if value.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		switch strings.TrimSpace(value.Content[i].Value) {
		case "max_size_mb":
			c.maxSizeMBSet = true
		case "max_backups":
			c.maxBackupsSet = true
		case "max_age_days":
			c.maxAgeDaysSet = true
		}
	}
	return nil
}

type LoggingConfig struct {
	Level                 string                `yaml:"level"`
	AccessLog             bool                  `yaml:"access_log"`
	AccessLogPath         string                `yaml:"access_log_path"`
	AccessLogFormat       string                `yaml:"access_log_format"`
	AccessLogFormatPreset string                `yaml:"access_log_format_preset"`
	AccessLogRotate       AccessLogRotateConfig `yaml:"access_log_rotate"`

	accessLogSet bool `yaml:"-"`
}

// UnmarshalYAML lets an explicit "access_log: false" turn the access log off.
func (c *LoggingConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain LoggingConfig
	var raw plain
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*c = LoggingConfig(raw)
	if value.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		if strings.TrimSpace(value.Content[i].Value) == "access_log" {
			c.accessLogSet = true
		}
	}
	return nil
}

type Config struct {
	Server struct {
		Listen         string `yaml:"listen"`
		ReadTimeoutMs  int    `yaml:"read_timeout_ms"`
		WriteTimeoutMs int    `yaml:"write_timeout_ms"`
		PidFile        string `yaml:"pid_file"`
		// H2C serves cleartext HTTP/2 next to HTTP/1.1.
		H2C bool `yaml:"h2c"`
	} `yaml:"server"`

	Auth struct {
		APIKey string `yaml:"api_key"`
		JWT    struct {
			Secret   string `yaml:"secret"`
			Issuer   string `yaml:"issuer"`
			Audience string `yaml:"audience"`
			// TTLMinutes is the lifetime of tokens minted by odr-admin.
			TTLMinutes int `yaml:"ttl_minutes"`
		} `yaml:"jwt"`
	} `yaml:"auth"`

	Keys struct {
		File       string `yaml:"file"`
		AutoReload struct {
			Enabled    bool `yaml:"enabled"`
			DebounceMs int  `yaml:"debounce_ms"`
		} `yaml:"auto_reload"`
	} `yaml:"keys"`

	Dispatch struct {
		Path string `yaml:"path"`
		// Hooks names the hook implementation: "default" or "keyacl".
		Hooks        string `yaml:"hooks"`
		CommandField string `yaml:"command_field"`
	} `yaml:"dispatch"`

	Converter struct {
		Name          string   `yaml:"name"`
		DateFormat    string   `yaml:"date_format"`
		ParsePatterns []string `yaml:"parse_patterns"`
		TimeZone      string   `yaml:"timezone"`
		Strict        bool     `yaml:"strict"`
	} `yaml:"converter"`

	Store struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
		// Seed inserts demo members into an empty store.
		Seed bool `yaml:"seed"`
	} `yaml:"store"`

	Logging LoggingConfig `yaml:"logging"`
}

// ConverterOptions returns the converter section as converter options.
func (c *Config) ConverterOptions() converter.Options {
	return converter.Options{
		DateFormat:    c.Converter.DateFormat,
		ParsePatterns: append([]string(nil), c.Converter.ParsePatterns...),
		TimeZone:      c.Converter.TimeZone,
		Strict:        c.Converter.Strict,
	}
}

// Load reads the yaml file, loads an optional .env next to it (real
// environment variables win), then applies defaults, ODR_* overrides and
// validation.
func Load(path string) (*Config, error) {
	// #nosec G304 -- path is provided by trusted config/flag.
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	loadDotEnv(filepath.Join(filepath.Dir(path), ".env"))
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotEnv(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = godotenv.Load(path)
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Server.Listen) == "" {
		cfg.Server.Listen = ":3310"
	}
	if cfg.Server.ReadTimeoutMs <= 0 {
		cfg.Server.ReadTimeoutMs = 30000
	}
	if cfg.Server.WriteTimeoutMs <= 0 {
		cfg.Server.WriteTimeoutMs = 30000
	}
	if strings.TrimSpace(cfg.Server.PidFile) == "" {
		cfg.Server.PidFile = "/var/run/odr.pid"
	}
	if cfg.Auth.JWT.TTLMinutes <= 0 {
		cfg.Auth.JWT.TTLMinutes = 60
	}
	if strings.TrimSpace(cfg.Keys.File) == "" {
		cfg.Keys.File = "./keys.yaml"
	}
	if cfg.Keys.AutoReload.DebounceMs <= 0 {
		cfg.Keys.AutoReload.DebounceMs = 300
	}
	if strings.TrimSpace(cfg.Dispatch.Path) == "" {
		cfg.Dispatch.Path = "/api"
	}
	if strings.TrimSpace(cfg.Dispatch.Hooks) == "" {
		cfg.Dispatch.Hooks = "default"
	}
	if strings.TrimSpace(cfg.Dispatch.CommandField) == "" {
		cfg.Dispatch.CommandField = "cmd"
	}
	if strings.TrimSpace(cfg.Converter.Name) == "" {
		cfg.Converter.Name = "default"
	}
	if strings.TrimSpace(cfg.Converter.DateFormat) == "" {
		cfg.Converter.DateFormat = converter.DefaultDateFormat
	}
	if strings.TrimSpace(cfg.Store.Driver) == "" {
		cfg.Store.Driver = DriverSQLite
	}
	if strings.TrimSpace(cfg.Store.DSN) == "" && cfg.Store.Driver == DriverSQLite {
		cfg.Store.DSN = "file:./odr.db?_pragma=busy_timeout(5000)"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	// default true for local debugging
	if !cfg.Logging.accessLogSet {
		cfg.Logging.AccessLog = true
	}
	if !cfg.Logging.AccessLogRotate.maxSizeMBSet {
		cfg.Logging.AccessLogRotate.MaxSizeMB = defaultAccessLogRotateMaxSizeMB
	}
	if !cfg.Logging.AccessLogRotate.maxBackupsSet {
		cfg.Logging.AccessLogRotate.MaxBackups = defaultAccessLogRotateMaxBackups
	}
	if !cfg.Logging.AccessLogRotate.maxAgeDaysSet {
		cfg.Logging.AccessLogRotate.MaxAgeDays = defaultAccessLogRotateMaxAgeDays
	}
}

func applyEnvOverrides(cfg *Config) {
	applyEnvServerAuthOverrides(cfg)
	applyEnvDispatchOverrides(cfg)
	applyEnvStoreOverrides(cfg)
	applyEnvLoggingOverrides(cfg)
}

func applyEnvServerAuthOverrides(cfg *Config) {
	envString("ODR_LISTEN", &cfg.Server.Listen)
	if n, ok := envInt("ODR_READ_TIMEOUT_MS"); ok && n > 0 {
		cfg.Server.ReadTimeoutMs = n
	}
	if n, ok := envInt("ODR_WRITE_TIMEOUT_MS"); ok && n > 0 {
		cfg.Server.WriteTimeoutMs = n
	}
	envString("ODR_PID_FILE", &cfg.Server.PidFile)
	cfg.Server.H2C = envBool("ODR_H2C", cfg.Server.H2C)

	envString("ODR_API_KEY", &cfg.Auth.APIKey)
	envString("ODR_JWT_SECRET", &cfg.Auth.JWT.Secret)
	envString("ODR_JWT_ISSUER", &cfg.Auth.JWT.Issuer)
	envString("ODR_JWT_AUDIENCE", &cfg.Auth.JWT.Audience)
	if n, ok := envInt("ODR_JWT_TTL_MINUTES"); ok && n > 0 {
		cfg.Auth.JWT.TTLMinutes = n
	}

	envString("ODR_KEYS_FILE", &cfg.Keys.File)
	cfg.Keys.AutoReload.Enabled = envBool("ODR_KEYS_AUTO_RELOAD_ENABLED", cfg.Keys.AutoReload.Enabled)
	if n, ok := envInt("ODR_KEYS_AUTO_RELOAD_DEBOUNCE_MS"); ok {
		cfg.Keys.AutoReload.DebounceMs = n
	}
}

func applyEnvDispatchOverrides(cfg *Config) {
	envString("ODR_DISPATCH_PATH", &cfg.Dispatch.Path)
	envString("ODR_DISPATCH_HOOKS", &cfg.Dispatch.Hooks)
	envString("ODR_DISPATCH_COMMAND_FIELD", &cfg.Dispatch.CommandField)

	envString("ODR_CONVERTER", &cfg.Converter.Name)
	envString("ODR_DATE_FORMAT", &cfg.Converter.DateFormat)
	envString("ODR_TIMEZONE", &cfg.Converter.TimeZone)
	cfg.Converter.Strict = envBool("ODR_CONVERTER_STRICT", cfg.Converter.Strict)
	if v := strings.TrimSpace(os.Getenv("ODR_PARSE_PATTERNS")); v != "" {
		var patterns []string
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				patterns = append(patterns, p)
			}
		}
		cfg.Converter.ParsePatterns = patterns
	}
}

func applyEnvStoreOverrides(cfg *Config) {
	envString("ODR_STORE_DRIVER", &cfg.Store.Driver)
	envString("ODR_STORE_DSN", &cfg.Store.DSN)
	cfg.Store.Seed = envBool("ODR_STORE_SEED", cfg.Store.Seed)
}

func applyEnvLoggingOverrides(cfg *Config) {
	envString("ODR_LOG_LEVEL", &cfg.Logging.Level)
	cfg.Logging.AccessLog = envBool("ODR_ACCESS_LOG", cfg.Logging.AccessLog)
	envString("ODR_ACCESS_LOG_PATH", &cfg.Logging.AccessLogPath)
	if v := os.Getenv("ODR_ACCESS_LOG_FORMAT"); strings.TrimSpace(v) != "" {
		cfg.Logging.AccessLogFormat = v
	}
	envString("ODR_ACCESS_LOG_FORMAT_PRESET", &cfg.Logging.AccessLogFormatPreset)
	cfg.Logging.AccessLogRotate.Enabled = envBool("ODR_ACCESS_LOG_ROTATE_ENABLED", cfg.Logging.AccessLogRotate.Enabled)
	if n, ok := envInt("ODR_ACCESS_LOG_ROTATE_MAX_SIZE_MB"); ok {
		cfg.Logging.AccessLogRotate.MaxSizeMB = n
		cfg.Logging.AccessLogRotate.maxSizeMBSet = true
	}
	if n, ok := envInt("ODR_ACCESS_LOG_ROTATE_MAX_BACKUPS"); ok {
		cfg.Logging.AccessLogRotate.MaxBackups = n
		cfg.Logging.AccessLogRotate.maxBackupsSet = true
	}
	if n, ok := envInt("ODR_ACCESS_LOG_ROTATE_MAX_AGE_DAYS"); ok {
		cfg.Logging.AccessLogRotate.MaxAgeDays = n
		cfg.Logging.AccessLogRotate.maxAgeDaysSet = true
	}
	cfg.Logging.AccessLogRotate.Compress = envBool("ODR_ACCESS_LOG_ROTATE_COMPRESS", cfg.Logging.AccessLogRotate.Compress)
}

func validate(cfg *Config) error {
	if !strings.HasPrefix(cfg.Dispatch.Path, "/") {
		return errors.New("dispatch.path must start with /")
	}
	if cfg.Dispatch.Path == "/healthz" {
		return errors.New("dispatch.path must not be /healthz")
	}
	if _, err := converter.Lookup(cfg.Converter.Name); err != nil {
		return fmt.Errorf("converter.name: %w (known: %s)", err, strings.Join(converter.Names(), ", "))
	}
	if tz := strings.TrimSpace(cfg.Converter.TimeZone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("converter.timezone: %w", err)
		}
	}
	switch cfg.Store.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("store.driver must be %q or %q", DriverSQLite, DriverPostgres)
	}
	if strings.TrimSpace(cfg.Store.DSN) == "" {
		return errors.New("store.dsn is required")
	}
	if s := cfg.Auth.JWT.Secret; s != "" && len(s) < minJWTSecretLen {
		return fmt.Errorf("auth.jwt.secret must be at least %d bytes", minJWTSecretLen)
	}
	if cfg.Keys.AutoReload.Enabled && cfg.Keys.AutoReload.DebounceMs <= 0 {
		return errors.New("keys.auto_reload.debounce_ms must be > 0 when keys.auto_reload.enabled=true")
	}
	if cfg.Logging.AccessLogRotate.Enabled {
		if !cfg.Logging.AccessLog {
			return errors.New("logging.access_log must be true when logging.access_log_rotate.enabled=true")
		}
		if strings.TrimSpace(cfg.Logging.AccessLogPath) == "" {
			return errors.New("logging.access_log_path is required when logging.access_log_rotate.enabled=true")
		}
	}
	if cfg.Logging.AccessLogRotate.MaxSizeMB <= 0 {
		return errors.New("logging.access_log_rotate.max_size_mb must be > 0")
	}
	if cfg.Logging.AccessLogRotate.MaxBackups <= 0 {
		return errors.New("logging.access_log_rotate.max_backups must be > 0")
	}
	if cfg.Logging.AccessLogRotate.MaxAgeDays < 0 {
		return errors.New("logging.access_log_rotate.max_age_days must be >= 0")
	}
	return nil
}

func envString(name string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		*dst = v
	}
}

func envInt(name string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(name string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}
