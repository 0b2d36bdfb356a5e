package applog

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
)

// InitConfig holds configuration for Init.
type InitConfig struct {
	// LogPath is the file all output goes to. Ignored in dev mode.
	LogPath  string
	LogLevel string
	// DevMode keeps logging on stderr instead of the log file.
	DevMode bool
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Init sets up structured logging. Outside dev mode it truncates and writes
// cfg.LogPath, so each run leaves exactly one log behind; both slog.Default
// and the stdlib log package are redirected there. The returned io.Closer
// must be deferred by the caller.
func Init(cfg InitConfig) (*slog.Logger, io.Closer, error) {
	var w io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}

	if !cfg.DevMode {
		f, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closer = f
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(cfg.LogLevel)})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	log.SetOutput(w)
	log.SetFlags(0)
	return logger, closer, nil
}

// Fatal logs err with full context, flushes the log file and hard-exits
// with status 1. Only the main control path may call it; background
// goroutines log and carry on instead.
func Fatal(logger *slog.Logger, closer io.Closer, msg string, err error) {
	logger.Error(msg, "err", err)
	if f, ok := closer.(*os.File); ok {
		f.Sync()
	}
	closer.Close()
	os.Exit(1)
}

// ParseLevel converts a level string to slog.Level. Defaults to LevelInfo.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
