package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/specialistvlad/gridworker/internal/ctxlog"
	"github.com/specialistvlad/gridworker/internal/upstream"
	"github.com/specialistvlad/gridworker/internal/worker"
	"github.com/zishang520/socket.io/v2/socket"
)

// Path is where the socket.io endpoint is mounted.
const Path = "/socket.io/"

// Server accepts subworker connections.
type Server struct {
	ctx     context.Context
	state   *worker.State
	opts    []upstream.Option
	io      *socket.Server
	handler http.Handler

	mu      sync.Mutex
	conns   map[string]*conn
	closing bool
}

// NewServer creates a Server. ctx carries the logger and bounds the lifetime
// of every connection; opts are applied to each connection's handler.
func NewServer(ctx context.Context, state *worker.State, opts ...upstream.Option) *Server {
	s := &Server{
		ctx:   ctx,
		state: state,
		opts:  opts,
		io:    socket.NewServer(nil, nil),
		conns: make(map[string]*conn),
	}
	s.handler = s.io.ServeHandler(nil)
	s.io.On("connection", func(clients ...any) {
		if len(clients) == 0 {
			return
		}
		client, ok := clients[0].(*socket.Socket)
		if !ok {
			ctxlog.FromContext(ctx).Error("Unexpected connection argument.", "type", fmt.Sprintf("%T", clients[0]))
			return
		}
		s.accept(client)
	})
	return s
}

// Handler returns the HTTP handler to mount at Path.
func (s *Server) Handler() http.Handler { return s.handler }

// Mount registers the socket.io endpoint on mux.
func (s *Server) Mount(mux *http.ServeMux) {
	mux.Handle(Path, s.handler)
}

// Len returns the number of open connections.
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) accept(client *socket.Socket) {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		client.Disconnect(true)
		return
	}
	c := newConn(s.ctx, s.state, client, s.opts...)
	s.conns[c.id] = c
	s.mu.Unlock()

	c.onClose = func() {
		s.mu.Lock()
		delete(s.conns, c.id)
		s.mu.Unlock()
	}
	c.bind()
	c.logger.Info("Upstream connection accepted.")
}

// Close disconnects every subworker. Registered entries are dropped without
// applying the disconnect policy.
func (s *Server) Close() error {
	ctxlog.FromContext(s.ctx).Info("Closing upstream connections.", "subworkers", s.state.Subworkers().IDs())
	s.mu.Lock()
	s.closing = true
	conns := make([]*conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		if err := c.Close(); err != nil {
			c.logger.Warn("Failed to close upstream connection.", "error", err)
		}
	}
	return nil
}
