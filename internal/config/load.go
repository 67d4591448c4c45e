package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// legacyEnv maps config keys to the environment variables used by the
// container deployment. FAILMAP_ prefixed names always win.
var legacyEnv = map[string][]string{
	"broker.url":                     {"BROKER"},
	"database.profile":               {"DJANGO_DATABASE"},
	"database.host":                  {"DB_HOST"},
	"database.port":                  {"DB_PORT"},
	"database.name":                  {"DB_NAME"},
	"database.user":                  {"DB_USER"},
	"database.password":              {"DB_PASSWORD"},
	"database.root_password":         {"DB_ROOT_PASSWORD"},
	"server.allowed_hosts":           {"ALLOWED_HOSTS"},
	"server.debug":                   {"DEBUG"},
	"server.service_name":            {"SERVICE_NAME"},
	"server.request_timeout_seconds": {"UWSGI_HARAKIRI"},
	"server.max_header_bytes":        {"UWSGI_BUFFER_SIZE"},
	"auth.secret_key":                {"SECRET_KEY"},
	"static.root":                    {"STATIC_ROOT"},
	"scanner.network_supports_ipv6":  {"NETWORK_SUPPORTS_IPV6"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.service_name", "failmap")
	v.SetDefault("server.debug", false)
	v.SetDefault("server.allowed_hosts", []string{"localhost", "127.0.0.1", "[::1]"})
	v.SetDefault("server.request_timeout_seconds", 0)
	v.SetDefault("server.max_header_bytes", 0)
	v.SetDefault("server.language", "nl")

	v.SetDefault("database.profile", ProfileDev)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 0)
	v.SetDefault("database.name", "failmap")
	v.SetDefault("database.user", "failmap")
	v.SetDefault("database.password", "")
	v.SetDefault("database.root_password", "")
	v.SetDefault("database.path", "db.sqlite3")
	v.SetDefault("database.max_open_conns", 10)

	v.SetDefault("broker.url", "redis://localhost:6379/0")
	v.SetDefault("broker.queue", "default")

	v.SetDefault("auth.secret_key", "ditisgeengeheimvriendachtjedatditeenwachtwoordwas")
	v.SetDefault("auth.session_lifetime_minutes", 60*24*14)
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("task.worker_count", 0)
	v.SetDefault("task.pool", "eventlet")
	v.SetDefault("task.stuck_task_age_minutes", 30)
	v.SetDefault("task.stuck_task_check_interval_minutes", 5)

	v.SetDefault("static.root", "")

	v.SetDefault("scanner.network_supports_ipv6", false)
	v.SetDefault("scanner.timeout_seconds", 10)
}

// Load configuration from .env files, an optional config file and environment
// variables. Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("FAILMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range legacyEnv {
		prefixed := "FAILMAP_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		args := append([]string{key, prefixed}, names...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("failed to bind environment for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Server.AllowedHosts = normalizeHosts(cfg.Server.AllowedHosts)
	cfg.Server.LogLevel = strings.ToLower(cfg.Server.LogLevel)
	cfg.Database.Profile = strings.ToLower(cfg.Database.Profile)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// normalizeHosts trims entries and drops empty ones produced by splitting
// values like "a.example,,b.example".
func normalizeHosts(hosts []string) []string {
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		for _, part := range strings.Split(h, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
