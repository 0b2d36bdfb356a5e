// Package mpv is the client side of the player's line-oriented JSON IPC
// socket: inbound events drive the bridge, outbound commands control the
// player.
package mpv

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
)

// Event is one decoded line from the player. Lines that are not events
// (command replies, unknown JSON) keep Event empty and are skipped by the
// loop.
type Event struct {
	Event string   `json:"event"`
	Args  []string `json:"args"`
}

// IPC is a connection to the player's control socket. Writes are safe for
// concurrent use; reads happen on the single Events goroutine.
type IPC struct {
	conn   net.Conn
	logger *slog.Logger

	writeMu sync.Mutex
}

// Dial connects to the player's IPC socket.
func Dial(socketPath string, logger *slog.Logger) (*IPC, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to player ipc %s: %w", socketPath, err)
	}
	return &IPC{conn: conn, logger: logger}, nil
}

// Events returns an ordered stream of player events. The channel closes
// when the player ends the connection, which is the bridge's shutdown
// signal.
func (m *IPC) Events() <-chan Event {
	ch := make(chan Event)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(m.conn)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			var ev Event
			if err := json.Unmarshal(line, &ev); err != nil {
				m.logger.Debug("ignoring unparseable ipc line", "line", string(line))
				continue
			}
			ch <- ev
		}
	}()
	return ch
}

// Command sends a player command, e.g. Command("sub-add", path).
func (m *IPC) Command(args ...any) error {
	return m.writeJSON(map[string]any{"command": args})
}

// ShowText displays msg on the player OSD for the given duration.
func (m *IPC) ShowText(msg string, seconds float64) {
	if err := m.Command("show-text", msg, int(seconds*1000)); err != nil {
		m.logger.Warn("show-text failed", "err", err)
	}
}

// SendRaw forwards an already-encoded JSON command line verbatim. The
// browser UI's control messages pass through here untouched.
func (m *IPC) SendRaw(data []byte) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if _, err := m.conn.Write(data); err != nil {
		return fmt.Errorf("ipc write: %w", err)
	}
	if len(data) == 0 || data[len(data)-1] != '\n' {
		if _, err := m.conn.Write([]byte("\n")); err != nil {
			return fmt.Errorf("ipc write: %w", err)
		}
	}
	return nil
}

func (m *IPC) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode ipc command: %w", err)
	}
	return m.SendRaw(data)
}

func (m *IPC) Close() error {
	return m.conn.Close()
}
