package player

import "github.com/zsprackett/subbridge/internal/subs"

// Session is the immutable snapshot of the active viewing session. A new
// value replaces the old one wholesale on every successful open event;
// readers on other goroutines only ever see complete snapshots.
type Session struct {
	MediaPath     string
	AudioTrack    int
	SubsDelayMS   int
	ResX          int
	ResY          int
	Cues          []subs.Cue
	SecondaryCues []subs.Cue
}

// emptySession is what readers get before the first open event.
var emptySession = &Session{AudioTrack: -1, ResX: 1920, ResY: 1080}
