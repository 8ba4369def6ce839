// Package observer streams per-tick scheduler summaries to WebSocket clients.
// The server is an allocator.Sink: the scheduler never waits on a slow client,
// each session keeps only its most recent frames.
package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"craftbots.ai/internal/observerproto"
	"craftbots.ai/internal/sched/allocator"
)

type Server struct {
	runID string
	log   *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu       sync.Mutex
	sessions map[string]*session
	last     allocator.TickLogEntry
	dropped  uint64
}

type session struct {
	out    chan []byte
	events bool
	actor  int64
}

func NewServer(runID string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		runID: runID,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // loopback only, see isLoopbackRemote
		},
		sessions: map[string]*session{},
	}
}

// Sessions reports how many observers are connected.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Dropped reports frames discarded because a client fell behind.
func (s *Server) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// WriteTick implements allocator.Sink.
func (s *Server) WriteTick(entry allocator.TickLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = entry
	if len(s.sessions) == 0 {
		return nil
	}

	var plain, full []byte
	for _, sess := range s.sessions {
		var b []byte
		switch {
		case !sess.events:
			if plain == nil {
				plain = s.encode(entry, false, 0)
			}
			b = plain
		case sess.actor == 0:
			if full == nil {
				full = s.encode(entry, true, 0)
			}
			b = full
		default:
			b = s.encode(entry, true, sess.actor)
		}
		if b == nil {
			return fmt.Errorf("observer: encode tick %d", entry.Tick)
		}
		if !sendLatest(sess.out, b) {
			s.dropped++
		}
	}
	return nil
}

func (s *Server) encode(entry allocator.TickLogEntry, events bool, actor int64) []byte {
	msg := observerproto.TickMsg{
		Type:            "TICK",
		ProtocolVersion: observerproto.Version,
		RunID:           s.runID,
		Tick:            entry.Tick,
		Stats:           protoStats(entry.Stats),
	}
	if events {
		for _, ev := range entry.Events {
			if actor != 0 && int64(ev.Actor) != actor {
				continue
			}
			line := observerproto.EventLine{
				Type:    string(ev.Type),
				Actor:   int64(ev.Actor),
				Task:    int64(ev.Task),
				Goal:    ev.Goal,
				Message: ev.Message,
			}
			if ev.Command != nil {
				line.Command = ev.Command.String()
			}
			msg.Events = append(msg.Events, line)
		}
	}
	b, err := json.Marshal(msg)
	if err != nil {
		s.log.Printf("observer: marshal tick=%d: %v", entry.Tick, err)
		return nil
	}
	return b
}

func protoStats(st allocator.Stats) observerproto.Stats {
	return observerproto.Stats{
		OpenTasks:      st.OpenTasks,
		TasksFinished:  st.TasksFinished,
		Reservations:   st.Reservations,
		ActiveMines:    st.ActiveMines,
		GoalsCompleted: st.GoalsCompleted,
		GoalsAbandoned: st.GoalsAbandoned,
		Stalls:         st.Stalls,
		Commands:       st.Commands,
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		s.mu.Lock()
		last := s.last
		s.mu.Unlock()

		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			RunID:           s.runID,
			Tick:            last.Tick,
			Stats:           protoStats(last.Stats),
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := parseSubscribe(msg)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		sess := &session{out: make(chan []byte, 8), events: sub.Events, actor: sub.Actor}
		s.mu.Lock()
		s.sessions[sid] = sess
		s.mu.Unlock()
		s.log.Printf("observer %s joined events=%v actor=%d", sid, sub.Events, sub.Actor)
		defer func() {
			s.mu.Lock()
			delete(s.sessions, sid)
			s.mu.Unlock()
			s.log.Printf("observer %s left", sid)
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-sess.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			sub, ok := parseSubscribe(msg)
			if !ok {
				continue
			}
			s.mu.Lock()
			sess.events = sub.Events
			sess.actor = sub.Actor
			s.mu.Unlock()
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func parseSubscribe(msg []byte) (observerproto.SubscribeMsg, bool) {
	var sub observerproto.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, false
	}
	if sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != observerproto.Version {
		return sub, false
	}
	if sub.Actor < 0 {
		sub.Actor = 0
	}
	return sub, true
}

// sendLatest queues b, dropping the oldest frame when the queue is full. It
// reports false if a frame was lost.
func sendLatest(ch chan []byte, b []byte) bool {
	select {
	case ch <- b:
		return true
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
	return false
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
