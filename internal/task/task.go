// Package task spawns fire-and-forget background goroutines. A panic in
// one is logged and contained; it must never take down the event loop or
// sibling tasks.
package task

import (
	"log/slog"
	"runtime/debug"
)

func Go(logger *slog.Logger, name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("background task panicked",
					"task", name,
					"panic", r,
					"stack", string(debug.Stack()))
			}
		}()
		fn()
	}()
}
