package ipc

import (
	"encoding/json"
	"net"
	"sync"
	"time"

	"github.com/kartikbazzad/docstore/internal/config"
	"github.com/kartikbazzad/docstore/internal/logger"
	"github.com/kartikbazzad/docstore/internal/store"
	"github.com/kartikbazzad/docstore/internal/workerpool"
)

// Server is the thin TCP accept loop: listen, bound concurrent connection
// handlers with the Thread Pool, delegate each request to the Handler.
type Server struct {
	cfg     *config.Config
	log     *logger.Logger
	handler *Handler

	listener    net.Listener
	connPool    *workerpool.Pool
	wg          sync.WaitGroup
	mu          sync.Mutex
	running     bool
	connections map[net.Conn]bool
	connMu      sync.Mutex
}

func NewServer(cfg *config.Config, log *logger.Logger, s *store.Store) *Server {
	return &Server{
		cfg:         cfg,
		log:         log,
		handler:     NewHandler(s),
		connections: make(map[net.Conn]bool),
	}
}

func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	listener, err := net.Listen("tcp", s.cfg.Network.ListenAddr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.running = true

	if s.cfg.Pool.MaxConns > 0 {
		connPool, err := workerpool.New(s.cfg.Pool.MaxConns)
		if err == nil {
			s.connPool = connPool
		} else {
			s.log.Error("failed to create connection pool, falling back to unbounded goroutines: %v", err)
		}
	}

	s.log.Info("listening on %s", s.cfg.Network.ListenAddr)

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	if s.listener != nil {
		s.listener.Close()
	}
	s.running = false
	s.mu.Unlock()

	s.connMu.Lock()
	for conn := range s.connections {
		conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()

	if s.connPool != nil {
		_ = s.connPool.Shutdown(3 * time.Second)
		s.connPool = nil
	}

	s.log.Info("server stopped")
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			stopped := !s.running
			s.mu.Unlock()
			if stopped {
				return
			}
			s.log.Error("accept error: %v", err)
			continue
		}

		s.connMu.Lock()
		s.connections[conn] = true
		s.connMu.Unlock()

		s.wg.Add(1)
		if s.connPool != nil {
			if err := s.connPool.Submit(func() {
				defer s.wg.Done()
				s.handleConnection(conn)
			}); err != nil {
				s.wg.Done()
				conn.Close()
				s.connMu.Lock()
				delete(s.connections, conn)
				s.connMu.Unlock()
				s.log.Error("failed to submit connection handler: %v", err)
			}
		} else {
			go func() {
				defer s.wg.Done()
				s.handleConnection(conn)
			}()
		}
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	clog := s.log.With(logger.Field{Key: "remote", Value: conn.RemoteAddr()})
	defer func() {
		conn.Close()
		s.connMu.Lock()
		delete(s.connections, conn)
		s.connMu.Unlock()
	}()

	clog.Debug("connection opened")
	buf := make([]byte, MaxFrameSize)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			if err != net.ErrClosed {
				clog.Debug("connection closed: %v", err)
			}
			return
		}
		if n == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(buf[:n], &req); err != nil {
			s.writeResponse(clog, conn, errorResponse("invalid JSON request"))
			continue
		}

		rlog := clog.With(logger.Field{Key: "action", Value: req.Action}, logger.Field{Key: "collection", Value: req.Collection})
		resp := s.handler.Handle(&req)
		s.writeResponse(rlog, conn, resp)

		if resp.Status == StatusGoodbye {
			return
		}
	}
}

func (s *Server) writeResponse(log *logger.Logger, conn net.Conn, resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		log.Error("failed to encode response: %v", err)
		return
	}
	if _, err := conn.Write(data); err != nil {
		log.Error("failed to write response: %v", err)
	}
}
