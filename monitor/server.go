package monitor

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rustyeddy/futbridge/metrics"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 8
)

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Server pushes a frame to every connected client on each tick. A client
// that falls behind loses frames rather than slowing the others down.
type Server struct {
	source   func() Frame
	interval time.Duration
	log      *zap.Logger
	upgrader websocket.Upgrader
	seq      atomic.Uint64

	mu      sync.Mutex
	clients map[string]*client
}

func NewServer(source func() Frame, interval time.Duration, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Server{
		source:   source,
		interval: interval,
		log:      log,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		clients:  map[string]*client{},
	}
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// ServeHTTP upgrades the connection, sends the current frame and keeps the
// client registered until it goes away.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{id: uuid.NewString(), conn: conn, send: make(chan []byte, sendBuffer)}

	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()
	metrics.MonitorClients.Inc()
	s.log.Info("monitor client connected", zap.String("client", c.id), zap.String("remote", r.RemoteAddr))

	if msg, err := s.encode(); err == nil {
		c.send <- msg
	}
	go s.write(c)
	s.read(c)
}

// read discards whatever the client sends and unregisters it on error.
func (s *Server) read(c *client) {
	defer s.drop(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) write(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			s.log.Debug("monitor write failed", zap.String("client", c.id), zap.Error(err))
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

func (s *Server) drop(c *client) {
	s.mu.Lock()
	_, ok := s.clients[c.id]
	delete(s.clients, c.id)
	s.mu.Unlock()
	if ok {
		close(c.send)
		metrics.MonitorClients.Dec()
		s.log.Info("monitor client gone", zap.String("client", c.id))
	}
}

func (s *Server) encode() ([]byte, error) {
	f := s.source()
	f.Seq = s.seq.Add(1)
	return json.Marshal(f)
}

// Publish sends one frame to every client.
func (s *Server) Publish() error {
	msg, err := s.encode()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		select {
		case c.send <- msg:
		default:
			s.log.Debug("monitor client behind, frame dropped", zap.String("client", c.id))
		}
	}
	return nil
}

// Run publishes a frame every interval until ctx is done, then disconnects
// every client.
func (s *Server) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return
		case <-t.C:
			if err := s.Publish(); err != nil {
				s.log.Error("monitor frame", zap.Error(err))
			}
		}
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	cs := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		cs = append(cs, c)
	}
	s.mu.Unlock()
	for _, c := range cs {
		s.drop(c)
	}
}
