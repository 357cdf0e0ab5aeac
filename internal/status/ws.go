package status

import (
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/akfldk1028/taskdaemon/internal/models"
)

// pushServer is a minimal WebSocket fan-out server bound to the first free
// port in [low, high] scanned ascending (§4.9, §6 Push channel).
type pushServer struct {
	port     int
	listener net.Listener
	server   *http.Server
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func newPushServer(low, high int) (*pushServer, error) {
	listener, port, err := bindAscending(low, high)
	if err != nil {
		return nil, err
	}

	s := &pushServer{
		port:     port,
		listener: listener,
		clients:  make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Localhost-only push channel; subscribers are same-machine tools.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleConn)
	s.server = &http.Server{Handler: mux}
	go s.server.Serve(listener)

	return s, nil
}

func bindAscending(low, high int) (net.Listener, int, error) {
	for port := low; port <= high; port++ {
		l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err == nil {
			return l, port, nil
		}
	}
	return nil, 0, fmt.Errorf("status: no free port in [%d, %d]", low, high)
}

func (s *pushServer) handleConn(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	// Subscribers only receive; drain and discard anything they send so the
	// connection doesn't accumulate an unread buffer, and detect disconnects.
	go func() {
		defer s.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *pushServer) drop(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close()
}

// broadcast sends msg to every connected subscriber; a write failure drops
// that subscriber without affecting the others or the daemon loop.
func (s *pushServer) broadcast(msg models.PushMessage) {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		if err := c.WriteJSON(msg); err != nil {
			s.drop(c)
		}
	}
}

func (s *pushServer) close() {
	s.mu.Lock()
	for c := range s.clients {
		c.Close()
	}
	s.clients = nil
	s.mu.Unlock()
	_ = s.server.Close()
}
