// Package wsbridge serves the command surface over WebSocket. Each client
// sends commands as text frames and receives a reply frame per command plus
// every event the worker emits. Replies carry an "ok" field; events carry
// "type".
package wsbridge

import (
	"context"
	"crypto/tls"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/websocket"

	"github.com/c360/graphsync/errors"
	"github.com/c360/graphsync/gateway"
	"github.com/c360/graphsync/metric"
	"github.com/c360/graphsync/syncworker"
)

const (
	transport   = "websocket"
	sendBuffer  = 64
	pingEvery   = 30 * time.Second
	readTimeout = 60 * time.Second
)

// Server is the WebSocket bridge.
type Server struct {
	cfg      gateway.Config
	target   gateway.Submitter
	logger   *slog.Logger
	metrics  *metric.Metrics
	upgrader websocket.Upgrader
	tls      *tls.Config

	clientsMu sync.RWMutex
	clients   map[*client]struct{}

	running atomic.Bool
	srv     *http.Server
	addr    atomic.Value // string
	wg      sync.WaitGroup
}

type client struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// New creates a bridge. Register Deliver as a worker sink to stream events.
func New(cfg gateway.Config, target gateway.Submitter, logger *slog.Logger, m *metric.Metrics) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if target == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "wsbridge", "New", "submitter is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		target:  target,
		logger:  logger.With("component", "wsbridge"),
		metrics: m,
		clients: make(map[*client]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin:     s.checkOrigin,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	return s, nil
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}

// SetTLSConfig serves wss with cfg. Call before Start; nil serves plain ws.
func (s *Server) SetTLSConfig(cfg *tls.Config) {
	s.tls = cfg
}

// Handler returns the bridge's HTTP handler with access logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.WSPath, s.serveWS)
	return s.accessLog(mux)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		s.logger.Info("handled", "method", r.Method, "url", r.URL, "duration", m.Duration, "status", m.Code)
	})
}

// Start listens on Config.WSAddr until Stop.
func (s *Server) Start(ctx context.Context) error {
	if s.cfg.WSAddr == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "wsbridge", "Start", "ws_addr is required")
	}
	if !s.running.CompareAndSwap(false, true) {
		return errors.WrapFatal(errors.ErrAlreadyStarted, "wsbridge", "Start", "bridge already running")
	}
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", s.cfg.WSAddr)
	if err != nil {
		s.running.Store(false)
		return errors.WrapFatal(err, "wsbridge", "Start", "listen "+s.cfg.WSAddr)
	}
	if s.tls != nil {
		ln = tls.NewListener(ln, s.tls)
	}
	s.addr.Store(ln.Addr().String())
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			s.logger.Error("WebSocket server stopped", "error", err)
		}
	}()
	s.logger.Info("WebSocket bridge listening", "addr", ln.Addr().String(), "path", s.cfg.WSPath)
	return nil
}

// Addr returns the bound listen address once started.
func (s *Server) Addr() string {
	a, _ := s.addr.Load().(string)
	return a
}

// Stop closes every client and shuts the server down.
func (s *Server) Stop(timeout time.Duration) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.clientsMu.Lock()
	for c := range s.clients {
		c.close()
	}
	s.clientsMu.Unlock()

	var err error
	if s.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err = s.srv.Shutdown(ctx)
	}
	s.wg.Wait()
	if err != nil {
		return errors.WrapTransient(err, "wsbridge", "Stop", "shutdown server")
	}
	return nil
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// Deliver queues e for every connected client. A client whose queue is full
// is disconnected rather than allowed to stall the worker.
func (s *Server) Deliver(e syncworker.Event) {
	data, err := gateway.EncodeEvent(e)
	if err != nil {
		s.logger.Error("Failed to encode event", "type", e.Type, "error", err)
		return
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for c := range s.clients {
		select {
		case c.send <- data:
			if s.metrics != nil {
				s.metrics.GatewayEventsOut.WithLabelValues(transport).Inc()
			}
		case <-c.done:
		default:
			s.logger.Warn("Dropping slow WebSocket client", "remote", c.conn.RemoteAddr().String())
			c.close()
		}
	}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("WebSocket upgrade failed", "error", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer), done: make(chan struct{})}
	s.addClient(c)
	defer s.removeClient(c)

	go s.writeLoop(c)
	s.readLoop(c)
}

func (s *Server) addClient(c *client) {
	s.clientsMu.Lock()
	s.clients[c] = struct{}{}
	n := len(s.clients)
	s.clientsMu.Unlock()
	if s.metrics != nil {
		s.metrics.GatewayClients.Set(float64(n))
	}
}

func (s *Server) removeClient(c *client) {
	c.close()
	s.clientsMu.Lock()
	delete(s.clients, c)
	n := len(s.clients)
	s.clientsMu.Unlock()
	if s.metrics != nil {
		s.metrics.GatewayClients.Set(float64(n))
	}
}

func (s *Server) readLoop(c *client) {
	c.conn.SetReadLimit(s.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))

		reply, err := gateway.Handle(s.target, data)
		result := "accepted"
		if err != nil {
			result = "rejected"
			s.logger.Debug("Command rejected", "error", err)
		}
		if s.metrics != nil {
			s.metrics.GatewayCommands.WithLabelValues(transport, result).Inc()
		}

		out, err := json.Marshal(reply)
		if err != nil {
			continue
		}
		select {
		case c.send <- out:
		case <-c.done:
			return
		}
	}
}

// writeLoop owns all writes to the connection; gorilla/websocket does not
// allow concurrent writers.
func (s *Server) writeLoop(c *client) {
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

var _ gateway.Bridge = (*Server)(nil)
