package tcp

import (
	"net"
	"sync"

	"github.com/rustlet-web/rustlet/http/status"
)

type onConnection func(net.Conn)

// Server accepts connections and runs the callback for each in its own
// goroutine. It tracks live connections so that Stop can tear them all down.
type Server struct {
	sock     net.Listener
	onConn   onConnection
	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	shutdown bool
}

func NewServer(sock net.Listener, onConn onConnection) *Server {
	return &Server{
		sock:   sock,
		onConn: onConn,
		conns:  map[net.Conn]struct{}{},
	}
}

func (s *Server) Start() error {
	wg := new(sync.WaitGroup)

	for {
		conn, err := s.sock.Accept()
		if err != nil {
			wg.Wait()

			s.mu.Lock()
			down := s.shutdown
			s.mu.Unlock()

			if down {
				return status.ErrShutdown
			}

			return err
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		wg.Add(1)
		go s.connHandler(wg, conn)
	}
}

func (s *Server) stopListener() error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	return s.sock.Close()
}

// Stop shuts the listener and ALL the connections down.
func (s *Server) Stop() error {
	if err := s.stopListener(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for conn := range s.conns {
		_ = conn.Close()
	}

	return nil
}

// GracefulShutdown stops the listener, leaving live connections free to end
// their lives peacefully.
func (s *Server) GracefulShutdown() error {
	return s.stopListener()
}

// PauseAll stops the listeners of all servers, keeping clients served.
func PauseAll(servers []*Server) {
	for _, server := range servers {
		_ = server.GracefulShutdown()
	}
}

// StopAll tears all servers down, connections included.
func StopAll(servers []*Server) {
	for _, server := range servers {
		_ = server.Stop()
	}
}

func (s *Server) connHandler(wg *sync.WaitGroup, conn net.Conn) {
	s.onConn(conn)
	wg.Done()

	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}
