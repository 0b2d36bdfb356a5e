package exporter

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
)

// ToolStrategy is one way to produce a media clip: an executable plus the
// full argument list. Strategies are tried in order; the only success
// criterion is the expected output file existing afterward, so a tool that
// exits zero without writing the file still counts as a failure.
type ToolStrategy struct {
	Name string
	Exe  string
	Args []string
}

// ClipRunner executes an ordered list of tool strategies.
type ClipRunner struct {
	run        func(exe string, args []string) error
	fileExists func(path string) bool
	logger     *slog.Logger
}

func NewClipRunner(logger *slog.Logger) *ClipRunner {
	return &ClipRunner{
		run: func(exe string, args []string) error {
			return exec.Command(exe, args...).Run()
		},
		fileExists: func(path string) bool {
			info, err := os.Stat(path)
			return err == nil && !info.IsDir()
		},
		logger: logger,
	}
}

// NewClipRunnerWith creates a ClipRunner with injectable command execution
// and file checks. Used in tests.
func NewClipRunnerWith(logger *slog.Logger, run func(exe string, args []string) error, fileExists func(path string) bool) *ClipRunner {
	return &ClipRunner{run: run, fileExists: fileExists, logger: logger}
}

// Extract tries each strategy until the expected output file exists. An
// unset executable is treated like a missing binary while fallbacks
// remain; only the last strategy being unconfigured fails outright.
func (r *ClipRunner) Extract(outPath string, strategies []ToolStrategy) error {
	var last string
	for i, s := range strategies {
		fallbackLeft := i < len(strategies)-1
		if s.Exe == "" {
			if fallbackLeft {
				r.logger.Warn("clip tool not configured, falling back", "tool", s.Name)
				continue
			}
			return fmt.Errorf("%s is not configured", s.Name)
		}
		last = s.Name

		err := r.run(s.Exe, s.Args)
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			r.logger.Warn("clip tool missing, falling back", "tool", s.Name, "err", err)
			continue
		}
		// Exit codes are not otherwise inspected; the file decides.
		if r.fileExists(outPath) {
			return nil
		}
		if fallbackLeft {
			r.logger.Warn("clip tool produced no output, falling back", "tool", s.Name, "out", outPath)
		}
	}
	return fmt.Errorf("%s produced no output file", last)
}

// clampAxis turns any non-positive or absent dimension into ffmpeg's auto
// marker.
func clampAxis(v int) int {
	if v < 1 {
		return -1
	}
	return v
}

// FFmpegScreenshot grabs one frame at the midpoint of [startS, endS].
// Sampling the middle avoids the black frames that sit right on cue
// boundaries.
func FFmpegScreenshot(exe, mediaPath string, startS, endS float64, width, height int, outPath string) ToolStrategy {
	args := []string{
		"-y", "-loglevel", "error",
		"-ss", formatSeconds((startS + endS) / 2),
		"-i", mediaPath,
		"-vframes", "1",
	}
	w, h := clampAxis(width), clampAxis(height)
	if w > 0 || h > 0 {
		args = append(args, "-filter:v",
			fmt.Sprintf("scale=w='min(iw,%d)':h='min(ih,%d)':force_original_aspect_ratio=decrease", w, h))
	}
	args = append(args, outPath)
	return ToolStrategy{Name: "ffmpeg screenshot", Exe: exe, Args: args}
}

// MpvScreenshot is the fallback frame grab. mpv's filter grammar rejects
// apostrophes, so the scale expression drops the min() guard and relies on
// force_original_aspect_ratio alone.
func MpvScreenshot(exe, mediaPath string, startS, endS float64, width, height int, outPath string) ToolStrategy {
	args := []string{
		"--load-scripts=no",
		mediaPath,
		"--loop-file=no", "--audio=no", "--no-ocopy-metadata", "--no-sub",
		"--frames=1",
		"--start=" + formatSeconds((startS+endS)/2),
		"--o=" + outPath,
	}
	w, h := clampAxis(width), clampAxis(height)
	if w > 0 || h > 0 {
		args = append(args, fmt.Sprintf("--vf-add=scale=w=%d:h=%d:force_original_aspect_ratio=decrease", w, h))
	}
	return ToolStrategy{Name: "mpv screenshot", Exe: exe, Args: args}
}

// FFmpegAudioClip cuts [startS, endS] of the given audio track as mp3.
func FFmpegAudioClip(exe, mediaPath string, audioTrack int, startS, endS float64, outPath string) ToolStrategy {
	return ToolStrategy{
		Name: "ffmpeg audio",
		Exe:  exe,
		Args: []string{
			"-y", "-loglevel", "error",
			"-ss", formatSeconds(startS),
			"-to", formatSeconds(endS),
			"-i", mediaPath,
			"-map", "0:" + strconv.Itoa(audioTrack),
			"-acodec", "mp3",
			outPath,
		},
	}
}

// MpvAudioClip is the fallback audio cut.
func MpvAudioClip(exe, mediaPath string, audioTrack int, startS, endS float64, outPath string) ToolStrategy {
	return ToolStrategy{
		Name: "mpv audio",
		Exe:  exe,
		Args: []string{
			"--load-scripts=no",
			mediaPath,
			"--loop-file=no", "--video=no", "--no-ocopy-metadata", "--no-sub",
			"--aid=" + strconv.Itoa(audioTrack),
			"--start=" + formatSeconds(startS),
			"--end=" + formatSeconds(endS),
			"--o=" + outPath,
		},
	}
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}
