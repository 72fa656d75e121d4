package observer

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"scenecraft.ai/internal/observerproto"
)

const (
	handshakeTimeout = 5 * time.Second
	idleTimeout      = 60 * time.Second
	writeTimeout     = 5 * time.Second
	sessionQueue     = 64
	maxEvery         = 1000
)

// Server exposes the Hub over HTTP. Both endpoints refuse non-loopback
// callers.
type Server struct {
	hub      *Hub
	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(hub *Hub) *Server {
	return &Server{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 32 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !IsLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(s.hub.Bootstrap())
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !IsLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := decodeSubscribe(msg)
		if !ok {
			closeWith(conn, websocket.ClosePolicyViolation, "expected SUBSCRIBE")
			return
		}

		sess := &session{
			id:   fmt.Sprintf("O%d", s.nextID.Add(1)),
			conn: conn,
			out:  make(chan []byte, sessionQueue),
			done: make(chan struct{}),
		}
		s.hub.join(sess.id, sess.out, sub)
		defer s.hub.leave(sess.id)

		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			sess.writeLoop()
		}()
		sess.readLoop(s.hub)
		close(sess.done)
		closeWith(conn, websocket.CloseNormalClosure, "bye")

		select {
		case <-writerDone:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// Handler mounts the bootstrap and websocket endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/observer/bootstrap", s.BootstrapHandler())
	mux.Handle("/observer/ws", s.WSHandler())
	return mux
}

type session struct {
	id   string
	conn *websocket.Conn
	out  chan []byte
	done chan struct{}
}

// readLoop accepts SUBSCRIBE updates until the peer goes away or idles out.
func (ss *session) readLoop(hub *Hub) {
	for {
		_ = ss.conn.SetReadDeadline(time.Now().Add(idleTimeout))
		_, msg, err := ss.conn.ReadMessage()
		if err != nil {
			return
		}
		if sub, ok := decodeSubscribe(msg); ok {
			hub.update(ss.id, sub)
		}
	}
}

func (ss *session) writeLoop() {
	for {
		select {
		case <-ss.done:
			return
		case b := <-ss.out:
			_ = ss.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := ss.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		}
	}
}

func closeWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}

func decodeSubscribe(msg []byte) (observerproto.SubscribeMsg, bool) {
	var sub observerproto.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, false
	}
	if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
		return sub, false
	}
	sub.Every = min(max(sub.Every, 1), maxEvery)
	return sub, true
}

// IsLoopbackRemote reports whether an http.Request.RemoteAddr is a
// loopback address.
func IsLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	ip := net.ParseIP(strings.Trim(host, "[]"))
	return ip != nil && ip.IsLoopback()
}
