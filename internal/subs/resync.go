package subs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Resyncer re-times a subtitle file against a reference audio track by
// driving an external aligner (ffsubsync).
type Resyncer struct {
	tmpDir    string
	ffsubsync string
	ffmpeg    string
	timeout   time.Duration
	logger    *slog.Logger
	run       func(exe string, args []string) error
}

func NewResyncer(tmpDir, ffsubsync, ffmpeg string, timeout time.Duration, logger *slog.Logger) *Resyncer {
	r := &Resyncer{
		tmpDir:    tmpDir,
		ffsubsync: ffsubsync,
		ffmpeg:    ffmpeg,
		timeout:   timeout,
		logger:    logger,
	}
	r.run = r.runCommand
	return r
}

// NewResyncerWithRun creates a Resyncer with an injectable command runner.
// Used in tests.
func NewResyncerWithRun(tmpDir string, logger *slog.Logger, run func(exe string, args []string) error) *Resyncer {
	r := NewResyncer(tmpDir, "ffsubsync", "ffmpeg", 0, logger)
	r.run = run
	return r
}

// Available reports whether the aligner binary was found.
func (r *Resyncer) Available() bool { return r.ffsubsync != "" }

// OutputPath computes the retimed file's destination: the target's base
// name with a -resynced suffix in the working directory, counting up with
// a numeric suffix until a free name is found. Terminates as soon as a
// free slot exists on disk.
func (r *Resyncer) OutputPath(subPath string) string {
	ext := filepath.Ext(subPath)
	stem := strings.TrimSuffix(filepath.Base(subPath), ext)
	base := filepath.Join(r.tmpDir, stem+"-resynced")

	out := base + ext
	for i := 1; fileExists(out); i++ {
		out = fmt.Sprintf("%s-%d%s", base, i, ext)
	}
	return out
}

// Resync aligns subPath against the given track of refPath and returns the
// new file's path. A non-zero aligner exit is reported as an error with no
// further detail; the caller decides the failure messaging.
func (r *Resyncer) Resync(subPath, refPath, refTrack string) (string, error) {
	subPath = cleanLocalURI(subPath)
	outPath := r.OutputPath(subPath)

	args := []string{
		refPath,
		"-i", subPath,
		"-o", outPath,
		"--reftrack", refTrack,
		"--ffmpeg-path", filepath.Dir(r.ffmpeg),
	}
	if err := r.run(r.ffsubsync, args); err != nil {
		r.logger.Warn("resync failed", "sub", subPath, "err", err)
		return "", fmt.Errorf("resync %s: %w", filepath.Base(subPath), err)
	}
	return outPath, nil
}

func (r *Resyncer) runCommand(exe string, args []string) error {
	ctx := context.Background()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, exe, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
