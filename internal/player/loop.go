// Package player drives the bridge: it consumes the player's event stream
// and fans work out to the subtitle resolver, the broadcast hub, the
// resyncer and the card exporter.
package player

import (
	"log/slog"
	"math"
	"strconv"
	"sync/atomic"

	"github.com/zsprackett/subbridge/internal/exporter"
	"github.com/zsprackett/subbridge/internal/hub"
	"github.com/zsprackett/subbridge/internal/metrics"
	"github.com/zsprackett/subbridge/internal/mpv"
	"github.com/zsprackett/subbridge/internal/subs"
	"github.com/zsprackett/subbridge/internal/task"
	"github.com/zsprackett/subbridge/internal/tools"
)

// MessagePrefix tags the script messages addressed to this bridge. The
// companion Lua script sends them via mpv's script-message mechanism.
const MessagePrefix = "@subbridge"

// Conn is the outbound side of the player connection used by the loop.
type Conn interface {
	ShowText(msg string, seconds float64)
	Command(args ...any) error
}

// Loop is the player-event state machine. It owns the session snapshot:
// only the loop writes it, everyone else reads atomically.
type Loop struct {
	conn     Conn
	resolver *subs.Resolver
	resyncer *subs.Resyncer
	hub      *hub.Hub
	exporter *exporter.Exporter
	metrics  *metrics.Metrics
	logger   *slog.Logger

	// externalMpv is the configured standalone mpv binary, if any. The
	// running player's own binary is preferred once identified.
	externalMpv string
	playerExe   func(pid int) (string, bool)

	session atomic.Pointer[Session]
}

func NewLoop(conn Conn, resolver *subs.Resolver, resyncer *subs.Resyncer, h *hub.Hub, exp *exporter.Exporter, m *metrics.Metrics, externalMpv string, logger *slog.Logger) *Loop {
	l := &Loop{
		conn:        conn,
		resolver:    resolver,
		resyncer:    resyncer,
		hub:         h,
		exporter:    exp,
		metrics:     m,
		logger:      logger,
		externalMpv: externalMpv,
		playerExe:   tools.PlayerExecutable,
	}
	l.session.Store(emptySession)
	return l
}

// Session returns the current snapshot. Never nil.
func (l *Loop) Session() *Session {
	return l.session.Load()
}

// Run consumes events until the stream closes, i.e. until the player
// exits. Teardown is the caller's job once Run returns.
func (l *Loop) Run(events <-chan mpv.Event) {
	for ev := range events {
		if ev.Event != "client-message" {
			continue
		}
		args := ev.Args
		if len(args) < 2 || args[0] != MessagePrefix {
			continue
		}
		cmd := args[1]
		l.logger.Debug("player command", "cmd", cmd, "args", args[2:])
		switch cmd {
		case "sub-start":
			if len(args) < 3 {
				l.logger.Warn("sub-start with missing time argument")
				continue
			}
			l.handleSubStart(args[2])
		case "open":
			if len(args) < 10 {
				l.logger.Warn("open with short argument list", "n", len(args))
				continue
			}
			l.handleOpen(args[2], args[3], args[4], args[5], args[6], args[7], args[8], args[9])
		case "resync":
			if len(args) < 5 {
				l.logger.Warn("resync with short argument list", "n", len(args))
				continue
			}
			l.handleResync(args[2], args[3], args[4])
		default:
			l.logger.Debug("ignoring unknown command", "cmd", cmd)
		}
	}
}

// handleSubStart broadcasts the starting cue's time, shifted by the
// session delay and floored to the 10 ms grid. The floor goes toward
// negative infinity, so a large negative delay yields a negative seek
// rather than a clamped one.
func (l *Loop) handleSubStart(timeArg string) {
	t, err := strconv.ParseFloat(timeArg, 64)
	if err != nil {
		l.logger.Warn("sub-start with bad time", "arg", timeArg)
		return
	}
	ms := int(math.Round(t*1000)) + l.Session().SubsDelayMS
	if ms < 0 && ms%10 != 0 {
		ms -= 10
	}
	ms = ms / 10 * 10
	l.hub.BroadcastSeek(ms)
	l.metrics.IncSeekBroadcasts()
}

// handleOpen replaces the session and brings the browser UI up. Primary
// subtitle failures abort the whole command; secondary failures only cost
// the secondary cue list.
func (l *Loop) handleOpen(pidArg, mediaPath, audioTrackArg, subInfo, secondarySubInfo, delayArg, resXArg, resYArg string) {
	if subInfo == "" {
		l.conn.ShowText("Please select a subtitle track.", 4)
		return
	}

	pid, err := strconv.Atoi(pidArg)
	if err != nil {
		l.logger.Warn("open with bad pid", "arg", pidArg)
		return
	}
	audioTrack, err := strconv.Atoi(audioTrackArg)
	if err != nil {
		l.logger.Warn("open with bad audio track", "arg", audioTrackArg)
		return
	}
	delaySeconds, err := strconv.ParseFloat(delayArg, 64)
	if err != nil {
		l.logger.Warn("open with bad delay", "arg", delayArg)
		return
	}
	resX, errX := strconv.Atoi(resXArg)
	resY, errY := strconv.Atoi(resYArg)
	if errX != nil || errY != nil {
		l.logger.Warn("open with bad resolution", "x", resXArg, "y", resYArg)
		return
	}

	// Prefer the reporting player's own binary as the clip fallback tool;
	// a configured external mpv might not even exist.
	if exe, isMpv := l.playerExe(pid); isMpv {
		l.exporter.SetMpvPath(exe)
	} else if l.externalMpv == "" {
		l.conn.ShowText("Please set mpvPath in the config file.", 4)
		return
	}

	session := &Session{
		MediaPath:   mediaPath,
		AudioTrack:  audioTrack,
		SubsDelayMS: int(math.Round(delaySeconds * 1000)),
		ResX:        resX,
		ResY:        resY,
	}

	ref, err := subs.ParseReference(subInfo)
	if err == nil {
		session.Cues, err = l.resolver.Resolve(ref, mediaPath, session.SubsDelayMS)
	}
	if err != nil {
		l.metrics.IncSubtitleLoadErrors()
		l.conn.ShowText(err.Error(), 8)
		return
	}
	l.metrics.IncSubtitleLoads()

	if secondarySubInfo != "" {
		secRef, err := subs.ParseReference(secondarySubInfo)
		if err == nil {
			session.SecondaryCues, err = l.resolver.Resolve(secRef, mediaPath, session.SubsDelayMS)
		}
		if err != nil {
			// Soft failure: the session still opens without them.
			l.logger.Warn("secondary subtitle load failed", "info", secondarySubInfo, "err", err)
			session.SecondaryCues = nil
		}
	}

	// Publish only the finished snapshot; concurrent readers must never
	// observe a session whose cue lists are still being filled in.
	l.session.Store(session)

	l.conn.ShowText("Opening in Browser...", 2)
	l.hub.OpenOrRefresh()
}

// handleResync re-times a subtitle file in the background and adds the
// result to the player. The event loop never blocks on it.
func (l *Loop) handleResync(subPath, refPath, refTrack string) {
	if !l.resyncer.Available() {
		l.conn.ShowText("Subtitle syncing requires ffsubsync to be located in the plugin directory.", 4)
		return
	}

	// Replaced by the completion notice.
	l.conn.ShowText("Syncing subtitles to reference track. Please wait...", 150)

	task.Go(l.logger, "resync", func() {
		synced, err := l.resyncer.Resync(subPath, refPath, refTrack)
		if err != nil {
			l.conn.ShowText("Syncing failed.", 4)
			return
		}
		if err := l.conn.Command("sub-add", synced); err != nil {
			l.logger.Warn("sub-add failed", "path", synced, "err", err)
		}
		l.conn.ShowText("Syncing finished.", 4)
	})
}

// HandleCardExport exports the given moment to the newest Anki note in the
// background. Called from the HTTP layer.
func (l *Loop) HandleCardExport(text, translationText string, startMS, endMS int) {
	session := l.Session()
	if session.AudioTrack < 0 {
		l.conn.ShowText("Please select an audio track before opening the subtitle browser if you want to export cards.", 8)
		return
	}

	task.Go(l.logger, "card-export", func() {
		err := l.exporter.ExportCard(
			session.MediaPath, session.AudioTrack,
			text, translationText,
			float64(startMS)/1000.0, float64(endMS)/1000.0)
		if err != nil {
			l.metrics.IncCardExportErrors()
			l.conn.ShowText("Exporting card failed:\n\n"+err.Error(), 8)
			return
		}
		l.metrics.IncCardExports()
		l.conn.ShowText("Last card updated successfully.", 8)
	})
}
