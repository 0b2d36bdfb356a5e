package subs

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/asticode/go-astisub"
)

// parseDocument parses decoded subtitle text into raw cue records. The
// format is picked by file extension, falling back to content sniffing for
// downloaded files that carry no extension.
func parseDocument(content, path string) ([]Cue, error) {
	read := formatReader(path, content)
	doc, err := read(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	records := make([]Cue, 0, len(doc.Items))
	for _, item := range doc.Items {
		lines := make([]string, 0, len(item.Lines))
		for _, l := range item.Lines {
			lines = append(lines, l.String())
		}
		records = append(records, Cue{
			Text:    strings.Join(lines, "\n"),
			StartMS: int(item.StartAt.Milliseconds()),
			EndMS:   int(item.EndAt.Milliseconds()),
		})
	}
	return records, nil
}

func formatReader(path, content string) func(io.Reader) (*astisub.Subtitles, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".srt":
		return astisub.ReadFromSRT
	case ".ass", ".ssa":
		return astisub.ReadFromSSA
	case ".vtt":
		return astisub.ReadFromWebVTT
	}
	trimmed := strings.TrimSpace(content)
	switch {
	case strings.HasPrefix(trimmed, "WEBVTT"):
		return astisub.ReadFromWebVTT
	case strings.HasPrefix(trimmed, "[Script Info]"):
		return astisub.ReadFromSSA
	default:
		return astisub.ReadFromSRT
	}
}
