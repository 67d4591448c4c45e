package config

import (
	"strings"
	"time"
)

// Database profiles selectable with DJANGO_DATABASE / FAILMAP_DATABASE_PROFILE.
const (
	ProfileDev        = "dev"
	ProfileTest       = "test"
	ProfileProduction = "production"
	ProfilePostgres   = "postgres"
)

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Broker   BrokerConfig   `mapstructure:"broker" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	Task     TaskConfig     `mapstructure:"task" validate:"required"`
	Static   StaticConfig   `mapstructure:"static"`
	Scanner  ScannerConfig  `mapstructure:"scanner"`
}

// ServerConfig contains all web front-end settings.
type ServerConfig struct {
	Port        int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel    string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ServiceName string `mapstructure:"service_name" validate:"required"`
	Debug       bool   `mapstructure:"debug"`
	// AllowedHosts is matched against the request Host header; "*" allows all.
	AllowedHosts []string `mapstructure:"allowed_hosts"`
	// RequestTimeoutSeconds maps UWSGI_HARAKIRI.
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds" validate:"gte=0"`
	// MaxHeaderBytes maps UWSGI_BUFFER_SIZE.
	MaxHeaderBytes int    `mapstructure:"max_header_bytes" validate:"gte=0"`
	Language       string `mapstructure:"language" validate:"required,oneof=nl en"`
}

// RequestTimeout returns the per-request timeout, zero meaning none.
func (c ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// DatabaseConfig describes the relational store.
type DatabaseConfig struct {
	Profile      string `mapstructure:"profile" validate:"required,oneof=dev test production postgres"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port" validate:"gte=0,lt=65536"`
	Name         string `mapstructure:"name" validate:"required"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	RootPassword string `mapstructure:"root_password"`
	// Path is the SQLite file used by the dev profile.
	Path         string `mapstructure:"path"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=0"`
}

// IsSQLite reports whether the profile is backed by SQLite.
func (c DatabaseConfig) IsSQLite() bool {
	return c.Profile == ProfileDev || c.Profile == ProfileTest
}

// BrokerConfig describes the message broker.
type BrokerConfig struct {
	// URL is redis://, rediss:// or memory://.
	URL   string `mapstructure:"url" validate:"required"`
	Queue string `mapstructure:"queue" validate:"required"`
}

// Scheme returns the lower-cased URL scheme of the broker.
func (c BrokerConfig) Scheme() string {
	scheme, _, found := strings.Cut(c.URL, "://")
	if !found {
		return ""
	}
	return strings.ToLower(scheme)
}

// AuthConfig contains admin authentication settings.
type AuthConfig struct {
	SecretKey              string `mapstructure:"secret_key" validate:"required,min=16"`
	SessionLifetimeMinutes int    `mapstructure:"session_lifetime_minutes" validate:"required,gt=0"`
	BcryptCost             int    `mapstructure:"bcrypt_cost" validate:"gte=4,lte=31"`
}

// TaskConfig configures background task processing.
type TaskConfig struct {
	WorkerCount                   int    `mapstructure:"worker_count" validate:"gte=0"`
	Pool                          string `mapstructure:"pool" validate:"required,oneof=eventlet gevent prefork threads solo"`
	StuckTaskAgeMinutes           int    `mapstructure:"stuck_task_age_minutes" validate:"required,gt=0"`
	StuckTaskCheckIntervalMinutes int    `mapstructure:"stuck_task_check_interval_minutes" validate:"required,gt=0"`
}

// StaticConfig configures static file serving.
type StaticConfig struct {
	// Root is STATIC_ROOT; when empty or not collected the embedded assets are served.
	Root string `mapstructure:"root"`
}

// ScannerConfig configures the scanners run by workers.
type ScannerConfig struct {
	NetworkSupportsIPv6 bool `mapstructure:"network_supports_ipv6"`
	TimeoutSeconds      int  `mapstructure:"timeout_seconds" validate:"gt=0"`
}
