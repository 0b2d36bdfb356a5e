package exporter

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Options carries the configuration slice the exporter needs.
type Options struct {
	ImageFormat          string
	AudioFormat          string
	ImageWidth           int
	ImageHeight          int
	SentenceMeaningField string
	SentenceAudioField   string
	PictureField         string
}

// Exporter updates the most recently created Anki note with a screenshot
// and audio clip of the current moment. Export never targets an explicitly
// chosen note; the newest one is always the destination.
type Exporter struct {
	anki   *AnkiClient
	clips  *ClipRunner
	opts   Options
	ffmpeg string
	logger *slog.Logger
	now    func() time.Time

	mu  sync.Mutex
	mpv string // fallback clip tool, may be swapped for the running player's binary
}

func New(anki *AnkiClient, clips *ClipRunner, opts Options, ffmpeg, mpv string, logger *slog.Logger) *Exporter {
	return &Exporter{
		anki:   anki,
		clips:  clips,
		opts:   opts,
		ffmpeg: ffmpeg,
		mpv:    mpv,
		logger: logger,
		now:    time.Now,
	}
}

// SetMpvPath replaces the fallback clip binary. The event loop calls this
// when the reporting player process turns out to be a real mpv.
func (e *Exporter) SetMpvPath(path string) {
	e.mu.Lock()
	e.mpv = path
	e.mu.Unlock()
}

func (e *Exporter) mpvPath() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mpv
}

// ExportCard cuts the moment [startS, endS] out of mediaPath and writes it
// to the newest note. Field names left empty in Options are skipped; if
// all three are empty the export fails before any note is touched.
func (e *Exporter) ExportCard(mediaPath string, audioTrack int, textPrimary, textSecondary string, startS, endS float64) error {
	// Updating fields of a note that is open in the Anki browser silently
	// does nothing, so steer the browser away first.
	if err := e.anki.GuiBrowse("nid:1"); err != nil {
		return err
	}

	notes, err := e.anki.LastAddedNotes()
	if err != nil {
		return err
	}
	if len(notes) == 0 {
		return &ExportError{Message: "No recently created notes. Please add a note first."}
	}
	noteID := notes[0]

	if !strings.HasPrefix(mediaPath, "http") {
		mediaPath = filepath.Clean(mediaPath)
	}

	fileBase := fmt.Sprintf("mpv-%d", e.now().UnixMilli())

	mediaDir, err := e.anki.MediaDirPath()
	if err != nil {
		return err
	}

	mpv := e.mpvPath()

	imgName := fileBase + "." + e.opts.ImageFormat
	imgPath := filepath.Join(mediaDir, imgName)
	err = e.clips.Extract(imgPath, []ToolStrategy{
		FFmpegScreenshot(e.ffmpeg, mediaPath, startS, endS, e.opts.ImageWidth, e.opts.ImageHeight, imgPath),
		MpvScreenshot(mpv, mediaPath, startS, endS, e.opts.ImageWidth, e.opts.ImageHeight, imgPath),
	})
	if err != nil {
		return exportErrorf("Generating image failed: %v", err)
	}

	audioName := fileBase + "." + e.opts.AudioFormat
	audioPath := filepath.Join(mediaDir, audioName)
	err = e.clips.Extract(audioPath, []ToolStrategy{
		FFmpegAudioClip(e.ffmpeg, mediaPath, audioTrack, startS, endS, audioPath),
		MpvAudioClip(mpv, mediaPath, audioTrack, startS, endS, audioPath),
	})
	if err != nil {
		return exportErrorf("Generating audio failed: %v", err)
	}

	if !e.clips.fileExists(imgPath) || !e.clips.fileExists(audioPath) {
		return &ExportError{Message: "Generating image/audio failed."}
	}

	fields := map[string]string{}
	if e.opts.SentenceMeaningField != "" {
		fields[e.opts.SentenceMeaningField] = textSecondary
	}
	if e.opts.SentenceAudioField != "" {
		fields[e.opts.SentenceAudioField] = "[sound:" + audioName + "]"
	}
	if e.opts.PictureField != "" {
		fields[e.opts.PictureField] = `<img src="` + imgName + `">`
	}
	if len(fields) == 0 {
		return &ExportError{Message: "No fields to update."}
	}

	if err := e.anki.UpdateNoteFields(noteID, fields); err != nil {
		return err
	}

	// Let the user visually confirm the update.
	return e.anki.GuiBrowse(fmt.Sprintf("nid:%d", noteID))
}
