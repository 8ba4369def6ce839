package observer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"craftbots.ai/internal/observerproto"
	"craftbots.ai/internal/sched/allocator"
	"craftbots.ai/internal/sim/api"
)

func dial(t *testing.T, srv *httptest.Server, sub observerproto.SubscribeMsg) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/observer/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	b, _ := json.Marshal(sub)
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	return conn
}

func waitSessions(t *testing.T, s *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.Sessions() != n {
		if time.Now().After(deadline) {
			t.Fatalf("sessions=%d want %d", s.Sessions(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readTick(t *testing.T, conn *websocket.Conn) observerproto.TickMsg {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg observerproto.TickMsg
	if err := json.Unmarshal(b, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return msg
}

func sampleEntry() allocator.TickLogEntry {
	cmd := api.DigAt(3, 7)
	return allocator.TickLogEntry{
		Tick: 12,
		Events: []allocator.Event{
			{Tick: 12, Type: allocator.EventCommand, Actor: 3, Command: &cmd},
			{Tick: 12, Type: allocator.EventGoalAssigned, Actor: 4, Task: 9, Goal: 2},
		},
		Stats: allocator.Stats{OpenTasks: 2, Reservations: 5, Stalls: 1},
	}
}

func TestServer_StreamsTicks(t *testing.T) {
	s := NewServer("run-x", nil)
	mux := http.NewServeMux()
	mux.HandleFunc("/observer/ws", s.WSHandler())
	srv := httptest.NewServer(mux)
	defer srv.Close()

	plain := dial(t, srv, observerproto.SubscribeMsg{Type: "SUBSCRIBE", ProtocolVersion: observerproto.Version})
	defer plain.Close()
	one := dial(t, srv, observerproto.SubscribeMsg{Type: "SUBSCRIBE", ProtocolVersion: observerproto.Version, Events: true, Actor: 3})
	defer one.Close()
	waitSessions(t, s, 2)

	if err := s.WriteTick(sampleEntry()); err != nil {
		t.Fatalf("WriteTick: %v", err)
	}

	msg := readTick(t, plain)
	if msg.Type != "TICK" || msg.RunID != "run-x" || msg.Tick != 12 {
		t.Fatalf("unexpected header: %+v", msg)
	}
	if msg.Stats.OpenTasks != 2 || msg.Stats.Reservations != 5 || msg.Stats.Stalls != 1 {
		t.Fatalf("stats=%+v", msg.Stats)
	}
	if len(msg.Events) != 0 {
		t.Fatalf("plain subscriber got events: %+v", msg.Events)
	}

	msg = readTick(t, one)
	if len(msg.Events) != 1 || msg.Events[0].Actor != 3 || msg.Events[0].Type != "COMMAND" {
		t.Fatalf("filtered events=%+v", msg.Events)
	}
	if msg.Events[0].Command == "" {
		t.Fatalf("command text missing")
	}
}

func TestServer_RejectsBadSubscribe(t *testing.T) {
	s := NewServer("r", nil)
	srv := httptest.NewServer(s.WSHandler())
	defer srv.Close()

	conn := dial(t, srv, observerproto.SubscribeMsg{Type: "HELLO", ProtocolVersion: observerproto.Version})
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("err=%v want policy violation close", err)
	}
	if s.Sessions() != 0 {
		t.Fatalf("sessions=%d", s.Sessions())
	}
}

func TestServer_Bootstrap(t *testing.T) {
	s := NewServer("run-b", nil)
	_ = s.WriteTick(sampleEntry())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/observer/bootstrap", nil)
	req.RemoteAddr = "127.0.0.1:5555"
	s.BootstrapHandler()(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code=%d", rec.Code)
	}
	var resp observerproto.BootstrapResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.RunID != "run-b" || resp.Tick != 12 || resp.Stats.OpenTasks != 2 {
		t.Fatalf("resp=%+v", resp)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/observer/bootstrap", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	s.BootstrapHandler()(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("remote code=%d want 403", rec.Code)
	}
}

func TestSendLatest_DropsOldest(t *testing.T) {
	ch := make(chan []byte, 1)
	if !sendLatest(ch, []byte("a")) {
		t.Fatalf("first send dropped")
	}
	if sendLatest(ch, []byte("b")) {
		t.Fatalf("expected drop report")
	}
	if got := string(<-ch); got != "b" {
		t.Fatalf("got %q want b", got)
	}
}
