// Package hub tracks the live browser tabs subscribed to session updates
// and implements the tab-reuse policy.
package hub

import (
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/zsprackett/subbridge/internal/task"
)

// Message is one event pushed to a subscriber: a single code character,
// optionally followed by a payload. The frontend switches on the first
// byte.
type Message string

const (
	ReloadMessage Message = "r"
	QuitMessage   Message = "q"
)

// SeekMessage tells the tab to jump to the given time.
func SeekMessage(ms int) Message {
	return Message("s" + strconv.Itoa(ms))
}

// Code returns the message's command character.
func (m Message) Code() byte {
	if len(m) == 0 {
		return 0
	}
	return m[0]
}

// Subscriber is one connected browser tab. Messages accumulate in an
// unbounded FIFO queue; the transport goroutine drains it with Next.
type Subscriber struct {
	ID string

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Message
	closed bool
}

func newSubscriber() *Subscriber {
	s := &Subscriber{ID: uuid.NewString()}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *Subscriber) push(m Message) {
	s.mu.Lock()
	if !s.closed {
		s.queue = append(s.queue, m)
		s.cond.Signal()
	}
	s.mu.Unlock()
}

// Next blocks until a message arrives or the subscriber is closed. The
// second return is false once the queue is drained and closed.
func (s *Subscriber) Next() (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) == 0 && !s.closed {
		s.cond.Wait()
	}
	if len(s.queue) == 0 {
		return "", false
	}
	m := s.queue[0]
	s.queue = s.queue[1:]
	return m, true
}

func (s *Subscriber) close() {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Hub is the registry of live subscribers. Registration, removal and
// broadcast all serialize on one mutex. Delivery order is FIFO per
// subscriber; nothing is guaranteed across subscribers.
type Hub struct {
	reuse        bool
	reuseTimeout time.Duration
	openTab      func()
	logger       *slog.Logger

	mu   sync.Mutex
	subs []*Subscriber // registration order, most recent last

	lastCueRequest atomic.Int64 // unix nanos of the last cue fetch
	now            func() time.Time
	sleep          func(d time.Duration)
}

// New creates a Hub. openTab opens a fresh browser tab pointed at the UI.
func New(reuse bool, reuseTimeout time.Duration, openTab func(), logger *slog.Logger) *Hub {
	return &Hub{
		reuse:        reuse,
		reuseTimeout: reuseTimeout,
		openTab:      openTab,
		logger:       logger,
		now:          time.Now,
		sleep:        time.Sleep,
	}
}

func (h *Hub) Register() *Subscriber {
	s := newSubscriber()
	h.mu.Lock()
	h.subs = append(h.subs, s)
	h.mu.Unlock()
	h.logger.Debug("subscriber registered", "id", s.ID)
	return s
}

// Len is the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) Unregister(s *Subscriber) {
	h.mu.Lock()
	for i, cur := range h.subs {
		if cur == s {
			h.subs = append(h.subs[:i], h.subs[i+1:]...)
			break
		}
	}
	h.mu.Unlock()
	s.close()
	h.logger.Debug("subscriber unregistered", "id", s.ID)
}

// BroadcastSeek pushes the current subtitle time to every tab.
func (h *Hub) BroadcastSeek(ms int) {
	h.broadcast(SeekMessage(ms))
}

// BroadcastQuit disconnects every tab. Called on teardown.
func (h *Hub) BroadcastQuit() {
	h.broadcast(QuitMessage)
}

func (h *Hub) broadcast(m Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs {
		s.push(m)
	}
}

// MarkCueRequest records that a tab just fetched cues. The reload watcher
// uses this as its liveness signal.
func (h *Hub) MarkCueRequest() {
	h.lastCueRequest.Store(h.now().UnixNano())
}

// OpenOrRefresh brings the UI up for a freshly opened session. With tab
// reuse enabled and at least one live subscriber, the most recently
// registered tab is told to reload, every other tab is disconnected, and a
// watcher checks that the reloaded tab actually comes back; otherwise a
// new tab is opened directly.
//
// The watcher is a heuristic, not a handshake: a tab that closed without a
// trace is only detected because no cue request arrives in time, and a
// slow tab can cause a spurious extra one. The original behavior is kept
// deliberately.
func (h *Hub) OpenOrRefresh() {
	h.mu.Lock()
	if h.reuse && len(h.subs) > 0 {
		last := h.subs[len(h.subs)-1]
		last.push(ReloadMessage)
		for _, s := range h.subs[:len(h.subs)-1] {
			s.push(QuitMessage)
		}
		h.mu.Unlock()
		task.Go(h.logger, "tab-reload-watcher", h.watchReload)
		return
	}
	h.mu.Unlock()
	h.openTab()
}

func (h *Hub) watchReload() {
	h.sleep(h.reuseTimeout)
	grace := h.reuseTimeout + 250*time.Millisecond
	cutoff := h.now().Add(-grace).UnixNano()
	if h.lastCueRequest.Load() < cutoff {
		h.logger.Info("reused tab timed out, opening a new one")
		h.openTab()
	}
}
