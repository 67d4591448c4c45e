package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	clog "github.com/charmbracelet/log"
	"golang.org/x/term"
)

// LoggerConfig defines the configuration for the application logger.
type LoggerConfig struct {
	// Level is one of debug, info, warn, error.
	Level string
	// ServiceName is attached to every record as "service".
	ServiceName string
	// Output defaults to os.Stdout.
	Output io.Writer
	// Console forces the console handler; nil means auto-detect.
	Console *bool
}

// ParseLevel converts a textual level (case-insensitive) into a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error", "critical", "fatal":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// Setup initializes the application's logging system, sets the resulting
// logger as the slog default and returns it.
func Setup(cfg LoggerConfig) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	console := isConsole(out)
	if cfg.Console != nil {
		console = *cfg.Console
	}

	var handler slog.Handler
	if console {
		handler = clog.NewWithOptions(out, clog.Options{
			Level:           charmLevel(level),
			ReportTimestamp: true,
			TimeFormat:      time.Kitchen,
			Prefix:          cfg.ServiceName,
		})
	} else {
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	}

	l := slog.New(handler)
	if cfg.ServiceName != "" && !console {
		l = l.With("service", cfg.ServiceName)
	}

	slog.SetDefault(l)
	return l, nil
}

// isConsole reports whether output goes to an interactive terminal that
// understands colours.
func isConsole(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	if t := os.Getenv("TERM"); t == "" || t == "dumb" {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func charmLevel(level slog.Level) clog.Level {
	switch {
	case level <= slog.LevelDebug:
		return clog.DebugLevel
	case level <= slog.LevelInfo:
		return clog.InfoLevel
	case level <= slog.LevelWarn:
		return clog.WarnLevel
	default:
		return clog.ErrorLevel
	}
}
