// Package config handles configuration loading, parsing, and validation
// from defaults, an optional config file, .env files and environment
// variables. Besides the FAILMAP_ prefixed variables it also understands the
// variables of the original container deployment (BROKER, DJANGO_DATABASE,
// ALLOWED_HOSTS, DB_*, UWSGI_*, ...) so existing compose files keep working.
package config
