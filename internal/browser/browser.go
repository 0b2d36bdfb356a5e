// Package browser opens the companion UI in a web browser tab.
package browser

import (
	"log/slog"
	"os/exec"

	"github.com/pkg/browser"
)

// Notifier shows transient text on the player OSD.
type Notifier interface {
	ShowText(msg string, seconds float64)
}

// Opener opens URLs with the user's configured browser binary, falling
// back to the system default.
type Opener struct {
	binary string // "" or "default" = system default
	osd    Notifier
	logger *slog.Logger
}

func New(binary string, osd Notifier, logger *slog.Logger) *Opener {
	if binary == "default" {
		binary = ""
	}
	return &Opener{binary: binary, osd: osd, logger: logger}
}

// Open points a browser tab at url. A broken configured browser degrades
// to the system default with an OSD warning instead of failing the
// session open.
func (o *Opener) Open(url string) {
	if o.binary != "" {
		if err := exec.Command(o.binary, url).Start(); err == nil {
			return
		}
		o.logger.Warn("configured browser failed, using default", "browser", o.binary)
		if o.osd != nil {
			o.osd.ShowText("Warning: Opening the subtitle browser with configured browser failed.\n\nPlease review your config.", 5)
		}
	}
	if err := browser.OpenURL(url); err != nil {
		o.logger.Warn("opening browser failed", "url", url, "err", err)
	}
}
