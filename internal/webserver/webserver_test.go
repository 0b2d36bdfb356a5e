package webserver_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zsprackett/subbridge/internal/hub"
	"github.com/zsprackett/subbridge/internal/metrics"
	"github.com/zsprackett/subbridge/internal/player"
	"github.com/zsprackett/subbridge/internal/subs"
	"github.com/zsprackett/subbridge/internal/webserver"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeBridge struct {
	session *player.Session

	mu      sync.Mutex
	exports []string
}

func (b *fakeBridge) Session() *player.Session { return b.session }

func (b *fakeBridge) HandleCardExport(text, translationText string, startMS, endMS int) {
	b.mu.Lock()
	b.exports = append(b.exports, text)
	b.mu.Unlock()
}

type fakeControl struct {
	mu    sync.Mutex
	lines []string
}

func (c *fakeControl) SendRaw(data []byte) error {
	c.mu.Lock()
	c.lines = append(c.lines, string(data))
	c.mu.Unlock()
	return nil
}

type fakeOSD struct {
	mu       sync.Mutex
	messages []string
}

func (o *fakeOSD) ShowText(msg string, seconds float64) {
	o.mu.Lock()
	o.messages = append(o.messages, msg)
	o.mu.Unlock()
}

type fixture struct {
	srv     *webserver.Server
	bridge  *fakeBridge
	hub     *hub.Hub
	control *fakeControl
	osd     *fakeOSD
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	bridge := &fakeBridge{session: &player.Session{
		AudioTrack: 1,
		Cues: []subs.Cue{
			{Text: "Hello", StartMS: 1000, EndMS: 2500},
			{Text: "World", StartMS: 3000, EndMS: 4000},
		},
	}}
	h := hub.New(true, 100*time.Millisecond, func() {}, discardLogger())
	control := &fakeControl{}
	osd := &fakeOSD{}
	srv := webserver.New(webserver.Config{Host: "127.0.0.1", Port: 0, PortMax: 0},
		bridge, h, control, osd, metrics.New(), discardLogger())
	return &fixture{srv: srv, bridge: bridge, hub: h, control: control, osd: osd}
}

func TestSubsEndpoint(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest("GET", "/subs", nil)
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var cues []map[string]any
	if err := json.NewDecoder(w.Body).Decode(&cues); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(cues) != 2 || cues[0]["text"] != "Hello" || cues[0]["start"] != float64(1000) {
		t.Errorf("cues = %v", cues)
	}
}

func TestSecondarySubsEmptyIsArray(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest("GET", "/secondary_subs", nil)
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("body = %q, want []", got)
	}
}

func TestAnkiEndpoint(t *testing.T) {
	f := newFixture(t)

	body := `[{"text":"Hello","translation_text":"Hallo","start":1000,"end":2500}]`
	req := httptest.NewRequest("POST", "/anki", strings.NewReader(body))
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)

	if w.Code != 204 {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	f.bridge.mu.Lock()
	defer f.bridge.mu.Unlock()
	if len(f.bridge.exports) != 1 || f.bridge.exports[0] != "Hello" {
		t.Errorf("exports = %v", f.bridge.exports)
	}
}

func TestAnkiEndpointRejectsMultipleCards(t *testing.T) {
	f := newFixture(t)

	body := `[{"text":"a","start":0,"end":1},{"text":"b","start":1,"end":2}]`
	req := httptest.NewRequest("POST", "/anki", strings.NewReader(body))
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)

	if w.Code != 204 {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	f.bridge.mu.Lock()
	if len(f.bridge.exports) != 0 {
		t.Errorf("exports = %v, want none", f.bridge.exports)
	}
	f.bridge.mu.Unlock()
	f.osd.mu.Lock()
	defer f.osd.mu.Unlock()
	if len(f.osd.messages) != 1 || !strings.Contains(f.osd.messages[0], "only one card") {
		t.Errorf("osd messages = %v", f.osd.messages)
	}
}

func TestAnkiEndpointBadJSON(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest("POST", "/anki", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)

	if w.Code != 400 {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestControlEndpointForwardsRaw(t *testing.T) {
	f := newFixture(t)

	body := `{"command":["cycle","pause"]}`
	req := httptest.NewRequest("POST", "/mpv_control", strings.NewReader(body))
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)

	if w.Code != 204 {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	f.control.mu.Lock()
	defer f.control.mu.Unlock()
	if len(f.control.lines) != 1 || f.control.lines[0] != body {
		t.Errorf("forwarded = %v", f.control.lines)
	}
}

func TestStreamDeliversBroadcasts(t *testing.T) {
	f := newFixture(t)
	httpSrv := httptest.NewServer(f.srv.Handler())
	defer httpSrv.Close()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	// Wait for the subscriber to register before broadcasting.
	deadline := time.Now().Add(2 * time.Second)
	for f.hub.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	f.hub.BroadcastSeek(1730)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if string(msg) != "s1730" {
		t.Errorf("message = %q, want s1730", msg)
	}

	f.hub.BroadcastQuit()
	_, msg, err = conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if string(msg) != "q" {
		t.Errorf("message = %q, want q", msg)
	}

	// The server closes its side after the quit message.
	if _, _, err = conn.ReadMessage(); err == nil {
		t.Error("connection still open after quit")
	}

	deadline = time.Now().Add(2 * time.Second)
	for f.hub.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never unregistered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSubsEndpointMarksCueRequest(t *testing.T) {
	f := newFixture(t)
	httpSrv := httptest.NewServer(f.srv.Handler())
	defer httpSrv.Close()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for f.hub.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// With reuse enabled and a live tab, the reload goes to the tab and a
	// fresh cue fetch keeps the watcher from opening a new one.
	f.srv.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/subs", nil))

	f.hub.OpenOrRefresh()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if string(msg) != "r" {
		t.Errorf("message = %q, want r", msg)
	}
}

func TestCueEndpointsKeepReusedTabAlive(t *testing.T) {
	// Both cue fetches count as tab liveness: the reload watcher must not
	// open a replacement tab when the reloaded tab's first request happens
	// to hit either endpoint.
	for _, path := range []string{"/subs", "/secondary_subs"} {
		t.Run(strings.TrimPrefix(path, "/"), func(t *testing.T) {
			opened := make(chan struct{}, 1)
			h := hub.New(true, 20*time.Millisecond, func() { opened <- struct{}{} }, discardLogger())
			bridge := &fakeBridge{session: &player.Session{AudioTrack: 1}}
			srv := webserver.New(webserver.Config{Host: "127.0.0.1"},
				bridge, h, &fakeControl{}, &fakeOSD{}, metrics.New(), discardLogger())

			sub := h.Register()
			defer h.Unregister(sub)

			h.OpenOrRefresh()
			srv.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", path, nil))

			select {
			case <-opened:
				t.Fatal("watcher opened a replacement tab despite a fresh cue fetch")
			case <-time.After(300 * time.Millisecond):
			}
		})
	}
}

func TestStartBindsPortAndServes(t *testing.T) {
	f := newFixture(t)
	// Port 0 lets the OS choose; PortMax must not be below Port.
	if err := f.srv.Start(); err != nil {
		t.Fatal(err)
	}
	defer f.srv.Close()
	if !strings.HasPrefix(f.srv.URL(), "http://127.0.0.1:") {
		t.Errorf("url = %q", f.srv.URL())
	}
}
