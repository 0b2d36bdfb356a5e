// Package webserver is the HTTP face of the bridge: it serves the
// subtitle browser UI, the cue data, the live update stream and the
// card-export and player-control endpoints.
package webserver

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zsprackett/subbridge/internal/hub"
	"github.com/zsprackett/subbridge/internal/metrics"
	"github.com/zsprackett/subbridge/internal/player"
	"github.com/zsprackett/subbridge/internal/subs"
)

type Config struct {
	Host    string
	Port    int
	PortMax int
}

// Controller forwards raw control messages to the player.
type Controller interface {
	SendRaw(data []byte) error
}

// Bridge is the slice of the event loop the HTTP layer needs: the current
// session snapshot and the card-export entry point.
type Bridge interface {
	Session() *player.Session
	HandleCardExport(text, translationText string, startMS, endMS int)
}

// Notifier shows transient text on the player OSD.
type Notifier interface {
	ShowText(msg string, seconds float64)
}

type Server struct {
	cfg     Config
	loop    Bridge
	hub     *hub.Hub
	control Controller
	osd     Notifier
	metrics *metrics.Metrics
	logger  *slog.Logger

	ln   net.Listener
	srv  *http.Server
	port int
}

func New(cfg Config, loop Bridge, h *hub.Hub, control Controller, osd Notifier, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		loop:    loop,
		hub:     h,
		control: control,
		osd:     osd,
		metrics: m,
		logger:  logger,
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/subs", s.handleSubs)
	r.Get("/secondary_subs", s.handleSecondarySubs)
	r.Get("/stream", s.handleStream)
	r.Post("/anki", s.handleAnki)
	r.Post("/mpv_control", s.handleControl)
	r.Handle("/metrics", s.metrics.Handler(s.updateGauges))
	r.Handle("/*", http.FileServer(staticFiles()))
	return r
}

// Start binds the first free port in [Port, PortMax] and serves in the
// background. The chosen port is available from URL afterwards.
func (s *Server) Start() error {
	var ln net.Listener
	var err error
	for port := s.cfg.Port; port <= s.cfg.PortMax; port++ {
		addr := fmt.Sprintf("%s:%d", s.cfg.Host, port)
		ln, err = net.Listen("tcp", addr)
		if err == nil {
			s.port = ln.Addr().(*net.TCPAddr).Port
			break
		}
	}
	if ln == nil {
		return fmt.Errorf("no free port in %d-%d: %w", s.cfg.Port, s.cfg.PortMax, err)
	}
	s.ln = ln
	s.srv = &http.Server{Handler: s.Handler()}
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("webserver stopped", "err", err)
		}
	}()
	s.logger.Info("webserver listening", "addr", ln.Addr().String())
	return nil
}

// URL is the address of the browser UI.
func (s *Server) URL() string {
	return fmt.Sprintf("http://%s:%d/", s.cfg.Host, s.port)
}

func (s *Server) Close() error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Close()
}

func (s *Server) handleSubs(w http.ResponseWriter, r *http.Request) {
	s.hub.MarkCueRequest()
	writeCues(w, s.loop.Session().Cues)
}

func (s *Server) handleSecondarySubs(w http.ResponseWriter, r *http.Request) {
	s.hub.MarkCueRequest()
	writeCues(w, s.loop.Session().SecondaryCues)
}

func writeCues(w http.ResponseWriter, cues []subs.Cue) {
	if cues == nil {
		cues = []subs.Cue{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cues)
}

// ankiCard is one selected cue sent by the frontend. Times are in
// milliseconds.
type ankiCard struct {
	Text            string `json:"text"`
	TranslationText string `json:"translation_text"`
	Start           int    `json:"start"`
	End             int    `json:"end"`
}

func (s *Server) handleAnki(w http.ResponseWriter, r *http.Request) {
	var cards []ankiCard
	if err := json.NewDecoder(r.Body).Decode(&cards); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if len(cards) != 1 {
		s.osd.ShowText("Please select only one card for exporting.", 5)
		w.WriteHeader(204)
		return
	}
	card := cards[0]
	s.loop.HandleCardExport(card.Text, card.TranslationText, card.Start, card.End)
	w.WriteHeader(204)
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if err := s.control.SendRaw(data); err != nil {
		s.logger.Warn("player control forward failed", "err", err)
		http.Error(w, err.Error(), 502)
		return
	}
	w.WriteHeader(204)
}

func (s *Server) updateGauges() {
	s.metrics.SetActiveSubscribers(s.hub.Len())
}
