package mpv_test

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/zsprackett/subbridge/internal/mpv"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakePlayer is the server side of the IPC socket.
type fakePlayer struct {
	t    *testing.T
	ln   net.Listener
	conn chan net.Conn
}

func newFakePlayer(t *testing.T) (*fakePlayer, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ipc.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	fp := &fakePlayer{t: t, ln: ln, conn: make(chan net.Conn, 1)}
	t.Cleanup(func() { ln.Close() })
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		fp.conn <- c
	}()
	return fp, path
}

func (fp *fakePlayer) accept() net.Conn {
	select {
	case c := <-fp.conn:
		return c
	case <-time.After(time.Second):
		fp.t.Fatal("client never connected")
		return nil
	}
}

func TestEventsStream(t *testing.T) {
	fp, path := newFakePlayer(t)
	ipc, err := mpv.Dial(path, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer ipc.Close()

	conn := fp.accept()
	conn.Write([]byte(`{"event":"client-message","args":["@subbridge","sub-start","1.5"]}` + "\n"))
	conn.Write([]byte("garbage line\n"))
	conn.Write([]byte(`{"request_id":1,"error":"success"}` + "\n"))
	conn.Write([]byte(`{"event":"end-file"}` + "\n"))
	conn.Close()

	events := ipc.Events()
	ev, ok := <-events
	if !ok || ev.Event != "client-message" || len(ev.Args) != 3 {
		t.Fatalf("first event = %+v ok=%v", ev, ok)
	}
	// The reply line decodes but carries no event name.
	ev, ok = <-events
	if !ok || ev.Event != "" {
		t.Fatalf("second event = %+v ok=%v", ev, ok)
	}
	ev, ok = <-events
	if !ok || ev.Event != "end-file" {
		t.Fatalf("third event = %+v ok=%v", ev, ok)
	}
	if _, ok := <-events; ok {
		t.Fatal("channel not closed after EOF")
	}
}

func TestCommandAndRawWrites(t *testing.T) {
	fp, path := newFakePlayer(t)
	ipc, err := mpv.Dial(path, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer ipc.Close()

	conn := fp.accept()
	reader := bufio.NewReader(conn)

	if err := ipc.Command("sub-add", "/tmp/x.srt"); err != nil {
		t.Fatal(err)
	}
	line, err := reader.ReadBytes('\n')
	if err != nil {
		t.Fatal(err)
	}
	var cmd struct {
		Command []any `json:"command"`
	}
	if err := json.Unmarshal(line, &cmd); err != nil {
		t.Fatalf("bad command line %q: %v", line, err)
	}
	if len(cmd.Command) != 2 || cmd.Command[0] != "sub-add" {
		t.Errorf("command = %v", cmd.Command)
	}

	if err := ipc.SendRaw([]byte(`{"command":["pause"]}`)); err != nil {
		t.Fatal(err)
	}
	line, err = reader.ReadBytes('\n')
	if err != nil {
		t.Fatal(err)
	}
	if string(line) != `{"command":["pause"]}`+"\n" {
		t.Errorf("raw line = %q", line)
	}
}
