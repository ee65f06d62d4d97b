package uds

import (
	"fmt"
	"log"
	"net"
	"os"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

type HandlerFunc func(req *Request) *Response

// Server answers one request per connection on a unix socket. Handlers
// are registered per command before Start; a handler panic is contained
// to its connection.
type Server struct {
	socketPath  string
	listener    net.Listener
	connTimeout time.Duration

	mu       sync.RWMutex
	handlers map[string]HandlerFunc

	closing atomic.Bool
	wg      sync.WaitGroup
}

func NewServer(socketPath string) *Server {
	return &Server{
		socketPath:  socketPath,
		handlers:    make(map[string]HandlerFunc),
		connTimeout: 30 * time.Second,
	}
}

func (s *Server) SetConnTimeout(d time.Duration) {
	s.connTimeout = d
}

func (s *Server) Handle(command string, handler HandlerFunc) {
	s.mu.Lock()
	s.handlers[command] = handler
	s.mu.Unlock()
}

func (s *Server) Start() error {
	// a stale socket from a crashed runner would block the listen
	_ = os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}

	s.listener = listener
	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

func (s *Server) Stop() error {
	s.closing.Store(true)
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	_ = os.Remove(s.socketPath)
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closing.Load() {
				return
			}
			log.Printf("uds accept error: %v", err)
			continue
		}

		s.wg.Add(1)
		go s.serve(conn)
	}
}

// serve handles a single request/response exchange.
func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("uds handler panic: %v\n%s", r, debug.Stack())
			_ = WriteFrame(conn, ErrorResponse(ErrCodeInternal, "internal error"))
		}
	}()

	_ = conn.SetDeadline(time.Now().Add(s.connTimeout))

	var req Request
	if err := ReadFrame(conn, &req); err != nil {
		log.Printf("uds read request error: %v", err)
		return
	}

	if err := WriteFrame(conn, s.dispatch(&req)); err != nil {
		log.Printf("uds write response error: %v", err)
	}
}

func (s *Server) dispatch(req *Request) *Response {
	if req.ProtocolVersion != ProtocolVersion {
		return ErrorResponse(ErrCodeProtocolMismatch,
			fmt.Sprintf("protocol version mismatch: got %d, expected %d", req.ProtocolVersion, ProtocolVersion))
	}

	s.mu.RLock()
	handler, ok := s.handlers[req.Command]
	s.mu.RUnlock()
	if !ok {
		return ErrorResponse(ErrCodeUnknownCommand, fmt.Sprintf("unknown command: %q", req.Command))
	}

	return handler(req)
}
