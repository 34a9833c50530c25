package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/navdash/navdash/internal/dash"
	"github.com/navdash/navdash/internal/location"
	"github.com/navdash/navdash/internal/motion"
)

// Server is the dashboard presenter. It owns both sensor sources for its run
// lifetime, derives gauge geometry from their readings, and pushes frames to
// WebSocket clients alongside the embedded web UI.
type Server struct {
	cfg   *Config
	loc   *location.Source
	ori   *motion.Source
	webFS fs.FS
	log   *zap.Logger

	clients   map[*wsClient]struct{}
	clientsMu sync.RWMutex

	upgrader websocket.Upgrader
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Frame is the JSON document sent to WebSocket clients on every sensor
// update.
type Frame struct {
	Location    *location.Reading `json:"location,omitempty"`
	Orientation *motion.Reading   `json:"orientation,omitempty"`
	Gauges      *dash.Gauges      `json:"gauges,omitempty"`
	Config      *DisplayConfig    `json:"config,omitempty"`
	Stamp       int64             `json:"stamp"` // Unix ms
}

// New creates a new Server around the two sensor sources.
func New(cfg *Config, loc *location.Source, ori *motion.Source, webFS fs.FS, log *zap.Logger) *Server {
	return &Server{
		cfg:     cfg,
		loc:     loc,
		ori:     ori,
		webFS:   webFS,
		log:     log.Named("server"),
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run starts both sensor sources, serves the dashboard, and blocks until ctx
// is cancelled. The sources live exactly as long as the dashboard: started
// here, stopped on shutdown.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(s.webFS)))
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/config", s.handleConfig)

	s.loc.Start()
	s.ori.Start()

	go s.forwardLoop(ctx)

	srv := &http.Server{
		Addr:    s.cfg.Server.ListenAddr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		s.loc.Stop()
		s.ori.Stop()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	s.log.Info("listening", zap.String("addr", s.cfg.Server.ListenAddr))
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// forwardLoop re-renders on every source update: each new reading becomes
// one broadcast frame combining the latest snapshot of both sources.
func (s *Server) forwardLoop(ctx context.Context) {
	locID, locCh := s.loc.Subscribe(8)
	oriID, oriCh := s.ori.Subscribe(8)
	defer s.loc.Unsubscribe(locID)
	defer s.ori.Unsubscribe(oriID)

	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-locCh:
			if !ok {
				return
			}
			ori := s.ori.Reading()
			s.broadcastReadings(r, ori)
		case r, ok := <-oriCh:
			if !ok {
				return
			}
			loc := s.loc.Reading()
			s.broadcastReadings(loc, r)
		}
	}
}

func (s *Server) broadcastReadings(loc location.Reading, ori motion.Reading) {
	g := dash.FromReadings(loc, ori)
	s.broadcast(Frame{
		Location:    &loc,
		Orientation: &ori,
		Gauges:      &g,
		Stamp:       time.Now().UnixMilli(),
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
	}

	s.clientsMu.Lock()
	s.clients[client] = struct{}{}
	total := len(s.clients)
	s.clientsMu.Unlock()
	s.log.Info("ws client connected", zap.Int("total", total))

	// Initial frame: display config plus the current readings so the page
	// renders immediately instead of waiting for the next sensor callback.
	display := s.cfg.DisplaySnapshot()
	loc := s.loc.Reading()
	ori := s.ori.Reading()
	g := dash.FromReadings(loc, ori)
	first := Frame{
		Location:    &loc,
		Orientation: &ori,
		Gauges:      &g,
		Config:      &display,
		Stamp:       time.Now().UnixMilli(),
	}
	if data, err := json.Marshal(first); err == nil {
		client.send <- data
	}

	// Writer goroutine.
	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	// Reader goroutine: drains keep-alives and detects disconnect.
	go func() {
		defer func() {
			s.clientsMu.Lock()
			delete(s.clients, client)
			total := len(s.clients)
			s.clientsMu.Unlock()
			close(client.send)
			s.log.Info("ws client disconnected", zap.Int("total", total))
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		data, err := s.cfg.ToJSON()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)

	case http.MethodPost:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if err := s.cfg.UpdateFromJSON(body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.cfg.Save(); err != nil {
			s.log.Warn("config save failed", zap.Error(err))
		}
		// Push the updated display preferences to connected pages.
		display := s.cfg.DisplaySnapshot()
		s.broadcast(Frame{Config: &display, Stamp: time.Now().UnixMilli()})

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) broadcast(frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for client := range s.clients {
		select {
		case client.send <- data:
		default:
			// Client too slow, skip this frame.
		}
	}
}
