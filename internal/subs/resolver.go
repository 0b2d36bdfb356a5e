package subs

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Notifier shows transient text on the player OSD. The resolver uses it to
// tell the user a slow embedded-track extraction is in progress.
type Notifier interface {
	ShowText(msg string, seconds float64)
}

// Resolver resolves subtitle references to normalized cue lists.
type Resolver struct {
	tmpDir         string
	ffmpeg         string
	extractTimeout time.Duration
	skipEmpty      bool
	client         *http.Client
	osd            Notifier
	logger         *slog.Logger
	now            func() time.Time
}

func NewResolver(tmpDir, ffmpeg string, extractTimeout time.Duration, skipEmpty bool, osd Notifier, logger *slog.Logger) *Resolver {
	return &Resolver{
		tmpDir:         tmpDir,
		ffmpeg:         ffmpeg,
		extractTimeout: extractTimeout,
		skipEmpty:      skipEmpty,
		client:         &http.Client{Timeout: 30 * time.Second},
		osd:            osd,
		logger:         logger,
		now:            time.Now,
	}
}

// Resolve turns a parsed reference into cues, applying delayMS to every
// timestamp. mediaPath is only consulted for embedded tracks. Failures are
// always *LoadError and are never retried.
func (r *Resolver) Resolve(ref Reference, mediaPath string, delayMS int) ([]Cue, error) {
	var path string
	var fromWrappedURL bool

	switch v := ref.(type) {
	case EmbeddedTrack:
		p, err := r.extractEmbedded(mediaPath, v)
		if err != nil {
			return nil, err
		}
		path = p
	case LocalPath:
		path = v.Path
	case RemoteURL:
		p, err := r.download(v.URL, "")
		if err != nil {
			return nil, err
		}
		path = p
	case EDLWrappedURL:
		p, err := r.download(v.URL, ".vtt")
		if err != nil {
			return nil, err
		}
		path = p
		fromWrappedURL = true
	default:
		return nil, loadErrorf(FailureBadReference, "Unknown subtitle reference.")
	}

	if !fileExists(path) {
		r.logger.Warn("subtitle file not found", "path", path)
		return nil, loadErrorf(FailureMissingFile, fmt.Sprintf("The subtitle file %q was not found.", path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, loadErrorf(FailureMissingFile, fmt.Sprintf("The subtitle file %q could not be read.", path))
	}

	records, err := parseDocument(DecodeText(data), path)
	if err != nil {
		r.logger.Warn("subtitle parse failed", "path", path, "err", err)
		return nil, loadErrorf(FailureParse, fmt.Sprintf("Loading subtitle file %q failed.", path))
	}

	if fromWrappedURL {
		// Wrapped web subtitles glue unrelated blocks onto cue text;
		// everything past the first blank line is noise.
		for i, rec := range records {
			text := strings.TrimSpace(rec.Text)
			if cut, _, found := strings.Cut(text, "\n\n"); found {
				text = cut
			}
			records[i].Text = text
		}
	}

	return Normalize(records, delayMS, r.skipEmpty), nil
}

// codecExtensions maps the supported embedded codecs to the extension the
// dumped file gets. Anything else is rejected before ffmpeg runs.
var codecExtensions = map[string]string{
	"subrip": "srt",
	"ass":    "ass",
}

func (r *Resolver) extractEmbedded(mediaPath string, track EmbeddedTrack) (string, error) {
	ext, ok := codecExtensions[track.Codec]
	if !ok {
		return "", loadErrorf(FailureUnsupportedCodec, fmt.Sprintf(
			"Selected internal subtitle track is not supported.\n\nOnly SRT and ASS tracks are supported.\n\nSelected track is %s", track.Codec))
	}
	if r.ffmpeg == "" {
		return "", loadErrorf(FailureNoExtractor,
			"Using internal subtitles requires ffmpeg to be located in the plugin directory.")
	}

	if r.osd != nil {
		// The next OSD message replaces this one.
		r.osd.ShowText("Exporting internal subtitle track...", 150)
	}

	stem := strings.TrimSuffix(filepath.Base(mediaPath), filepath.Ext(mediaPath))
	outPath := filepath.Join(r.tmpDir, stem+"."+ext)

	ctx := context.Background()
	if r.extractTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.extractTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.ffmpeg,
		"-y", "-loglevel", "error",
		"-i", mediaPath,
		"-map", "0:"+track.TrackID,
		outPath)
	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return "", loadErrorf(FailureExtractTimeout, "Exporting internal subtitle track timed out.")
	}
	if err != nil || !fileExists(outPath) {
		r.logger.Warn("embedded track extraction failed", "media", mediaPath, "track", track.TrackID, "err", err)
		return "", loadErrorf(FailureExtract, "Exporting internal subtitle track failed.")
	}
	return outPath, nil
}

func (r *Resolver) download(rawURL, suffix string) (string, error) {
	resp, err := r.client.Get(rawURL)
	if err != nil {
		r.logger.Warn("subtitle download failed", "url", rawURL, "err", err)
		return "", loadErrorf(FailureDownload, "Downloading web subtitles failed.")
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		r.logger.Warn("subtitle download failed", "url", rawURL, "status", resp.Status)
		return "", loadErrorf(FailureDownload, "Downloading web subtitles failed.")
	}

	path := filepath.Join(r.tmpDir, fmt.Sprintf("websub_%d%s", r.now().UnixMilli(), suffix))
	f, err := os.Create(path)
	if err != nil {
		return "", loadErrorf(FailureDownload, "Downloading web subtitles failed.")
	}
	defer f.Close()
	if _, err := f.ReadFrom(resp.Body); err != nil {
		return "", loadErrorf(FailureDownload, "Downloading web subtitles failed.")
	}
	return path, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
