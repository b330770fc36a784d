// Package logger provides JSON structured logging using zerolog.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var globalLogger zerolog.Logger

// Config controls the global logger.
type Config struct {
	Level  string
	Debug  bool
	Output string
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	globalLogger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// ConfigFromEnv reads LOG_LEVEL, DEBUG and LOG_OUTPUT.
func ConfigFromEnv() Config {
	debug := strings.ToLower(strings.TrimSpace(os.Getenv("DEBUG")))
	return Config{
		Level:  strings.TrimSpace(os.Getenv("LOG_LEVEL")),
		Debug:  debug == "1" || debug == "true" || debug == "yes",
		Output: strings.TrimSpace(os.Getenv("LOG_OUTPUT")),
	}
}

// Init replaces the global logger according to cfg.
func Init(cfg Config) error {
	var output io.Writer = os.Stdout
	if cfg.Output == "stderr" {
		output = os.Stderr
	}

	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	} else if cfg.Level != "" {
		var err error
		level, err = zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return err
		}
	}

	globalLogger = zerolog.New(output).Level(level).With().Timestamp().Logger()
	log.Logger = globalLogger
	return nil
}

// Get returns the global logger.
func Get() zerolog.Logger {
	return globalLogger
}

// WithComponent returns a child logger tagged with a component name.
func WithComponent(component string) zerolog.Logger {
	return globalLogger.With().Str("component", component).Logger()
}

// Nop is a logger that discards everything, used by tests.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

func Debug() *zerolog.Event { return globalLogger.Debug() }
func Info() *zerolog.Event  { return globalLogger.Info() }
func Warn() *zerolog.Event  { return globalLogger.Warn() }
func Error() *zerolog.Event { return globalLogger.Error() }
