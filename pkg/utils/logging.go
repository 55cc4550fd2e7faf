package utils

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/golang-cz/devslog"
)

// LogFormat selects the slog handler. It decodes from text so it can sit in
// env-parsed settings and CLI flags alike.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
	LogFormatDev  LogFormat = "dev"
)

func (f *LogFormat) UnmarshalText(text []byte) error {
	switch format := LogFormat(strings.ToLower(string(text))); format {
	case LogFormatText, LogFormatJSON, LogFormatDev:
		*f = format
		return nil
	case "":
		*f = LogFormatText
		return nil
	default:
		return fmt.Errorf("unknown log format %q", text)
	}
}

// LogConfig describes where and how much to log. An empty File logs to stdout.
type LogConfig struct {
	Level  slog.Level
	Format LogFormat
	File   string
}

// ParseLogConfig builds a LogConfig from flag-style strings. Level accepts
// anything slog.Level does, e.g. debug, INFO or warn+2.
func ParseLogConfig(level, format, file string) (LogConfig, error) {
	config := LogConfig{File: file}
	if level != "" {
		if err := config.Level.UnmarshalText([]byte(level)); err != nil {
			return config, fmt.Errorf("log level: %w", err)
		}
	}
	if err := config.Format.UnmarshalText([]byte(format)); err != nil {
		return config, err
	}
	return config, nil
}

// NewLogger sets up a slog logger for config. The log file is opened for
// appending and stays open for the life of the process.
func NewLogger(config LogConfig) (*slog.Logger, error) {
	var writer io.Writer = os.Stdout
	if config.File != "" {
		file, err := os.OpenFile(config.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		writer = file
	}

	opts := &slog.HandlerOptions{Level: config.Level}

	var handler slog.Handler
	switch config.Format {
	case LogFormatJSON:
		handler = slog.NewJSONHandler(writer, opts)
	case LogFormatDev:
		handler = devslog.NewHandler(writer, &devslog.Options{
			HandlerOptions: opts,
		})
	default:
		handler = slog.NewTextHandler(writer, opts)
	}

	return slog.New(handler), nil
}
