package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zsprackett/subbridge/internal/applog"
	"github.com/zsprackett/subbridge/internal/browser"
	"github.com/zsprackett/subbridge/internal/config"
	"github.com/zsprackett/subbridge/internal/exporter"
	"github.com/zsprackett/subbridge/internal/hub"
	"github.com/zsprackett/subbridge/internal/metrics"
	"github.com/zsprackett/subbridge/internal/mpv"
	"github.com/zsprackett/subbridge/internal/player"
	"github.com/zsprackett/subbridge/internal/subs"
	"github.com/zsprackett/subbridge/internal/tools"
	"github.com/zsprackett/subbridge/internal/webserver"
)

func pluginDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <player-ipc-socket> [config-file]\n", filepath.Base(os.Args[0]))
		os.Exit(2)
	}
	socketPath := os.Args[1]

	dir := pluginDir()
	configPath := filepath.Join(dir, "subbridge.json")
	if len(os.Args) > 2 {
		configPath = os.Args[2]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not load config: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser, err := applog.Init(applog.InitConfig{
		LogPath:  filepath.Join(dir, "subbridge.log"),
		LogLevel: cfg.LogLevel,
		DevMode:  cfg.DevMode,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not init log file: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	// Scratch space for extracted and downloaded subtitle files. Cleared on
	// every start so stale runs never accumulate.
	tmpDir := filepath.Join(dir, "tmp")
	os.RemoveAll(tmpDir)
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		applog.Fatal(logger, logCloser, "could not create temp directory", err)
	}
	defer os.RemoveAll(tmpDir)

	set := tools.Discover(dir, cfg.FFmpegPath, cfg.FFsubsyncPath, cfg.MpvPath)
	logger.Info("tools discovered", "ffmpeg", set.FFmpeg, "ffsubsync", set.FFsubsync, "mpv", set.Mpv)

	ipc, err := mpv.Dial(socketPath, logger)
	if err != nil {
		applog.Fatal(logger, logCloser, "could not connect to player", err)
	}
	defer ipc.Close()

	var m *metrics.Metrics
	if cfg.Metrics {
		m = metrics.New()
	}

	resolver := subs.NewResolver(tmpDir, set.FFmpeg,
		time.Duration(cfg.SubtitleExportTimeout)*time.Second, cfg.SkipEmptySubs, ipc, logger)
	resyncer := subs.NewResyncer(tmpDir, set.FFsubsync, set.FFmpeg,
		time.Duration(cfg.ResyncTimeout)*time.Second, logger)

	anki := exporter.NewAnkiClient(cfg.Anki.ConnectURL)
	clips := exporter.NewClipRunner(logger)
	exp := exporter.New(anki, clips, exporter.Options{
		ImageFormat:          cfg.Anki.ImageFormat,
		AudioFormat:          cfg.Anki.AudioFormat,
		ImageWidth:           cfg.Anki.ImageWidth,
		ImageHeight:          cfg.Anki.ImageHeight,
		SentenceMeaningField: cfg.Anki.SentenceMeaningField,
		SentenceAudioField:   cfg.Anki.SentenceAudioField,
		PictureField:         cfg.Anki.PictureField,
	}, set.FFmpeg, set.Mpv, logger)

	opener := browser.New(cfg.Browser, ipc, logger)

	var srv *webserver.Server
	openTab := func() {
		m.IncTabsOpened()
		opener.Open(srv.URL())
	}
	h := hub.New(cfg.ReuseLastTab,
		time.Duration(cfg.ReuseLastTabTimeout*float64(time.Second)), openTab, logger)

	loop := player.NewLoop(ipc, resolver, resyncer, h, exp, m, set.Mpv, logger)

	srv = webserver.New(webserver.Config{
		Host:    cfg.Host,
		Port:    cfg.Port,
		PortMax: cfg.PortMax,
	}, loop, h, ipc, ipc, m, logger)
	if err := srv.Start(); err != nil {
		applog.Fatal(logger, logCloser, "could not start webserver", err)
	}
	defer srv.Close()

	// Blocks until the player closes the IPC connection.
	loop.Run(ipc.Events())

	logger.Info("player disconnected, shutting down")
	h.BroadcastQuit()
	// Give the stream handlers a moment to flush the quit frames.
	time.Sleep(250 * time.Millisecond)
}
