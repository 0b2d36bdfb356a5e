// Package subs turns heterogeneous subtitle sources (local files, embedded
// tracks, remote URLs) into the canonical cue lists served to the browser.
package subs

import (
	"sort"
	"strings"
)

// Cue is one normalized subtitle entry. Timestamps are milliseconds,
// non-negative and floored to 10 ms to match the frontend's display
// granularity.
type Cue struct {
	Text    string `json:"text"`
	StartMS int    `json:"start"`
	EndMS   int    `json:"end"`
}

// Normalize sorts records by start time, trims text, optionally drops
// empty cues, applies the delay offset and aligns timestamps. It is
// idempotent when re-applied with delayMS 0.
func Normalize(records []Cue, delayMS int, skipEmpty bool) []Cue {
	sorted := make([]Cue, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartMS < sorted[j].StartMS
	})

	out := make([]Cue, 0, len(sorted))
	for _, rec := range sorted {
		text := strings.TrimSpace(rec.Text)
		if skipEmpty && text == "" {
			continue
		}
		out = append(out, Cue{
			Text:    text,
			StartMS: alignTime(rec.StartMS + delayMS),
			EndMS:   alignTime(rec.EndMS + delayMS),
		})
	}
	return out
}

// alignTime clamps a timestamp to zero and floors it to the nearest 10 ms.
func alignTime(ms int) int {
	if ms < 0 {
		return 0
	}
	return ms / 10 * 10
}
