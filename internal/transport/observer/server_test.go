package observer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"scenecraft.ai/internal/observerproto"
)

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:5000": true,
		"[::1]:5000":     true,
		"10.0.0.2:5000":  false,
		"example:80":     false,
		"":               false,
	}
	for addr, want := range cases {
		if got := IsLoopbackRemote(addr); got != want {
			t.Fatalf("IsLoopbackRemote(%q)=%v want %v", addr, got, want)
		}
	}
}

func TestBootstrapRejectsRemote(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	hub.SetBootstrap(observerproto.BootstrapResponse{SceneID: "S1", Tick: 9})
	srv := NewServer(hub)

	req := httptest.NewRequest(http.MethodGet, "/observer/bootstrap", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("remote bootstrap code=%d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/observer/bootstrap", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("loopback bootstrap code=%d", rec.Code)
	}
	var got observerproto.BootstrapResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.SceneID != "S1" || got.Tick != 9 || got.ProtocolVersion != observerproto.Version {
		t.Fatalf("bootstrap=%+v", got)
	}
}

func TestSubscribeReceivesTicks(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	ts := httptest.NewServer(NewServer(hub).Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/observer/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub := observerproto.SubscribeMsg{Type: observerproto.TypeSubscribe, ProtocolVersion: observerproto.Version, Every: 2, Teams: []int{1}}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for hub.Sessions() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("session never joined")
		}
		time.Sleep(5 * time.Millisecond)
	}

	teams := []observerproto.TeamState{{Team: 0, Visibility: "active"}, {Team: 1, Visibility: "active", CellsCleaned: 3}}
	hub.Publish(observerproto.TickMsg{SceneID: "S1", Tick: 3, Teams: teams})
	hub.Publish(observerproto.TickMsg{SceneID: "S1", Tick: 4, Teams: teams})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got observerproto.TickMsg
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Type != observerproto.TypeTick || got.Tick != 4 {
		t.Fatalf("got tick %d type %q, want every second tick", got.Tick, got.Type)
	}
	if len(got.Teams) != 1 || got.Teams[0].Team != 1 || got.Teams[0].CellsCleaned != 3 {
		t.Fatalf("teams=%+v", got.Teams)
	}
}

func TestSubscribeRejectsWrongFirstMessage(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	ts := httptest.NewServer(NewServer(hub).Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/observer/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if err := conn.WriteJSON(map[string]string{"type": "HELLO"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close, got %v", err)
	}
	if hub.Sessions() != 0 {
		t.Fatalf("rejected session joined the hub")
	}
}

func TestPublishDropsOnFullQueue(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	out := make(chan []byte, 1)
	hub.join("O1", out, observerproto.SubscribeMsg{Every: 1})
	hub.Publish(observerproto.TickMsg{Tick: 1})
	hub.Publish(observerproto.TickMsg{Tick: 2})
	if hub.Dropped() != 1 {
		t.Fatalf("dropped=%d", hub.Dropped())
	}
	hub.leave("O1")
	if hub.Sessions() != 0 {
		t.Fatalf("sessions=%d", hub.Sessions())
	}
}
