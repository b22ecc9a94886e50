// ABOUTME: Websocket status feed: JSON engine snapshots at 10 Hz
// ABOUTME: Read-only observability endpoint for LAN control surfaces
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/onestopradio/radiocore-go/internal/deck"
	"github.com/onestopradio/radiocore-go/internal/engine"
)

const statusInterval = 100 * time.Millisecond

// statusSnapshot is the JSON shape pushed to every subscriber.
type statusSnapshot struct {
	DeckA  engine.DeckSnapshot  `json:"deck_a"`
	DeckB  engine.DeckSnapshot  `json:"deck_b"`
	Mixer  engine.MixerSnapshot `json:"mixer"`
	Stream streamSnapshot       `json:"stream"`
}

type streamSnapshot struct {
	Status      string  `json:"status"`
	BytesSent   int64   `json:"bytes_sent"`
	BitrateKbps float64 `json:"bitrate_kbps"`
	Reconnects  int     `json:"reconnects"`
	LastError   string  `json:"last_error,omitempty"`
	CurrentSong string  `json:"current_song,omitempty"`
}

// statusServer pushes engine snapshots to websocket subscribers.
type statusServer struct {
	eng      *engine.Engine
	upgrader websocket.Upgrader
	srv      *http.Server

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	stop    chan struct{}
}

func newStatusServer(eng *engine.Engine) *statusServer {
	return &statusServer{
		eng: eng,
		upgrader: websocket.Upgrader{
			// Local-network observability endpoint, no browser state to
			// protect; accept any origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
		stop:    make(chan struct{}),
	}
}

func (s *statusServer) start(port int) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("status server: %w", err)
	}
	s.srv = &http.Server{Handler: mux}

	go s.broadcastLoop()
	go func() {
		if err := s.srv.Serve(ln); err != http.ErrServerClosed {
			log.Printf("status server: %v", err)
		}
	}()
	log.Printf("status feed on ws://:%d/status", port)
	return nil
}

func (s *statusServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("status upgrade: %v", err)
		return
	}
	log.Printf("status subscriber from %s", r.RemoteAddr)

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	// Drain (and discard) reads so pings and closes are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.drop(conn)
				return
			}
		}
	}()
}

func (s *statusServer) drop(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close()
}

func (s *statusServer) broadcastLoop() {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		n := len(s.clients)
		s.mu.Unlock()
		if n == 0 {
			continue
		}

		data, err := json.Marshal(s.snapshot())
		if err != nil {
			log.Printf("status marshal: %v", err)
			continue
		}

		s.mu.Lock()
		conns := make([]*websocket.Conn, 0, len(s.clients))
		for c := range s.clients {
			conns = append(conns, c)
		}
		s.mu.Unlock()

		for _, c := range conns {
			c.SetWriteDeadline(time.Now().Add(time.Second))
			if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
				s.drop(c)
			}
		}
	}
}

func (s *statusServer) snapshot() statusSnapshot {
	a, _ := s.eng.Snapshot(deck.DeckA)
	b, _ := s.eng.Snapshot(deck.DeckB)
	st := s.eng.StreamStats()

	return statusSnapshot{
		DeckA: a,
		DeckB: b,
		Mixer: s.eng.MixerState(),
		Stream: streamSnapshot{
			Status:      st.Status.String(),
			BytesSent:   st.BytesSent,
			BitrateKbps: st.BitrateKbps,
			Reconnects:  st.Reconnects,
			LastError:   st.LastError,
			CurrentSong: st.CurrentSong,
		},
	}
}

func (s *statusServer) shutdown() {
	close(s.stop)
	s.mu.Lock()
	for c := range s.clients {
		c.Close()
	}
	s.clients = map[*websocket.Conn]struct{}{}
	s.mu.Unlock()
	if s.srv != nil {
		s.srv.Close()
	}
}
