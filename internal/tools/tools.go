// Package tools locates the external encoder and aligner binaries the
// bridge drives: ffmpeg, ffsubsync and a standalone mpv used as the
// fallback clip tool.
package tools

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// Set holds the resolved executable paths. An empty string means the tool
// was not found anywhere; callers decide whether that is fatal.
type Set struct {
	FFmpeg    string
	FFsubsync string
	// Mpv is the external mpv binary used as the fallback for clip
	// extraction. It may later be replaced by the running player's own
	// binary, which is preferred when it really is mpv.
	Mpv string
}

// Discover resolves each tool: explicit config path first, then the plugin
// directory (both <dir>/<name>/<name> and <dir>/<name> layouts), then PATH.
func Discover(pluginDir, ffmpegPath, ffsubsyncPath, mpvPath string) Set {
	return Set{
		FFmpeg:    findExecutable(pluginDir, "ffmpeg", ffmpegPath),
		FFsubsync: findExecutable(pluginDir, "ffsubsync", ffsubsyncPath),
		Mpv:       findExecutable(pluginDir, "mpv", mpvPath),
	}
}

func findExecutable(pluginDir, name, configured string) string {
	if configured != "" && isFile(configured) {
		return configured
	}

	candidates := []string{
		filepath.Join(pluginDir, name, name),
		filepath.Join(pluginDir, name),
	}
	if runtime.GOOS == "windows" {
		for _, c := range candidates[:2:2] {
			candidates = append(candidates, c+".exe")
		}
	}
	for _, c := range candidates {
		if isFile(c) {
			return c
		}
	}

	path, err := exec.LookPath(name)
	if err != nil {
		return ""
	}
	return path
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// mpvBinaryNames are the basenames accepted as a genuine mpv executable.
var mpvBinaryNames = map[string]bool{
	"mpv": true, "mpv.exe": true, "mpv.com": true, "mpv-bundle": true,
}

// PlayerExecutable resolves the binary of the process with the given pid
// and reports whether it can serve as the fallback clip tool. The player
// talking to us over IPC is preferred over any configured mpv, which may
// not even exist.
func PlayerExecutable(pid int) (path string, isMpv bool) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return "", false
	}
	exe, err := p.Exe()
	if err != nil || exe == "" {
		args, err := p.CmdlineSlice()
		if err != nil || len(args) == 0 {
			return "", false
		}
		exe = args[0]
	}
	base := strings.ToLower(filepath.Base(exe))
	return exe, mpvBinaryNames[base]
}
