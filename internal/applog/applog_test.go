package applog_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zsprackett/subbridge/internal/applog"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, c := range cases {
		if got := applog.ParseLevel(c.in); got != c.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestInitWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	logger, closer, err := applog.Init(applog.InitConfig{LogPath: path, LogLevel: "info"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	logger.Info("hello", "k", "v")
	closer.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Errorf("log file missing entry: %q", data)
	}
}

func TestInitTruncatesPreviousRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	if err := os.WriteFile(path, []byte("stale entry\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, closer, err := applog.Init(applog.InitConfig{LogPath: path})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	closer.Close()

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "stale entry") {
		t.Error("previous run's log survived Init")
	}
}
