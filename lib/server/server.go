package server

import (
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/go-netprog/telnet-relay/lib/session"
	"github.com/go-netprog/telnet-relay/lib/util"
)

// Server accepts Telnet clients and runs one session per connection.
// Sessions share no state with each other; the server only tracks them
// for shutdown and reporting.
type Server struct {
	config   *Config
	log      logrus.FieldLogger
	registry *session.Registry

	mu       sync.Mutex
	listener net.Listener
	closed   atomic.Bool
	wg       sync.WaitGroup

	// done is closed when the server shuts down.
	done chan struct{}
}

// NewServer creates a new server with the given configuration. A nil
// logger discards all entries.
func NewServer(config *Config, log logrus.FieldLogger) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}

	registry, err := session.NewRegistry(config.HistorySize)
	if err != nil {
		return nil, err
	}

	return &Server{
		config:   config,
		log:      log,
		registry: registry,
		done:     make(chan struct{}),
	}, nil
}

// Config returns the server configuration.
func (s *Server) Config() *Config {
	return s.config
}

// ListenAndServe starts listening on the configured address and serves clients.
// This method blocks until the server is closed.
func (s *Server) ListenAndServe() error {
	if s.closed.Load() {
		return util.ErrServerClosed
	}
	listener, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return util.NewConnectionError(s.config.ListenAddr, "listen", err)
	}
	return s.Serve(listener)
}

// Serve accepts connections on the listener and handles them.
// This method blocks until the server is closed.
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	if s.closed.Load() {
		listener.Close()
		return util.ErrServerClosed
	}

	s.log.WithFields(logrus.Fields{
		"addr":       listener.Addr().String(),
		"concurrent": s.config.Concurrent,
		"policy":     s.config.Policy.String(),
	}).Info("Telnet server listening")

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.closed.Load() {
				return nil // Server was closed
			}
			// Check if it's a temporary error
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return err
		}
		if !s.config.Concurrent {
			id, sess, ok := s.register(conn)
			if !ok {
				return nil
			}
			s.serveSession(id, sess)
			continue
		}

		// Check connection limits
		if !s.canAccept() {
			s.log.WithField("remote", conn.RemoteAddr().String()).Warn("Connection limit reached, rejecting client")
			conn.Close()
			continue
		}

		id, sess, ok := s.register(conn)
		if !ok {
			return nil
		}
		go s.serveSession(id, sess)
	}
}

// canAccept returns true if the server can accept a new connection.
func (s *Server) canAccept() bool {
	if s.config.MaxConnections == 0 {
		return true
	}
	return s.registry.Count() < s.config.MaxConnections
}

// register wraps conn in a session and records it as live. It holds mu so
// that Close either sees the session or makes register refuse it; a refused
// conn is closed and ok is false. Every registered session counts in wg
// until serveSession returns.
func (s *Server) register(conn net.Conn) (id uint64, sess *session.Session, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		conn.Close()
		return 0, nil, false
	}

	sess = session.New(conn, session.Options{
		Policy:     s.config.Policy,
		Logger:     s.log,
		BufferSize: s.config.ReadBufferSize,
	})
	s.wg.Add(1)
	return s.registry.Register(sess), sess, true
}

// serveSession runs one client to completion and releases it.
func (s *Server) serveSession(id uint64, sess *session.Session) {
	defer s.wg.Done()

	log := s.log.WithFields(logrus.Fields{
		"session": id,
		"remote":  sess.RemoteAddr(),
	})
	log.Info("Client connected")

	err := s.runSession(sess)
	sess.Close()
	s.registry.Unregister(id, err)

	if err != nil {
		log.WithError(err).Warn("Client connection error")
		return
	}
	log.Info("Client disconnected")
}

// runSession offers options, greets the client and echoes its input.
func (s *Server) runSession(sess *session.Session) error {
	if err := sess.Offer(s.config.Offers...); err != nil {
		return err
	}
	if err := sess.Greet(s.config.Greeting); err != nil {
		return err
	}
	return sess.Echo()
}

// Close gracefully shuts down the server: the listener is closed first,
// then every live session. It waits for every registered session to finish.
func (s *Server) Close() error {
	if s.closed.Swap(true) {
		return nil // Already closed
	}

	close(s.done)

	// register cannot add a session once mu has been taken here.
	s.mu.Lock()
	listener := s.listener
	live := s.registry.All()
	s.mu.Unlock()

	var err error
	if listener != nil {
		err = listener.Close()
	}
	if len(live) > 0 {
		s.log.WithField("sessions", live).Info("Closing live sessions")
	}
	if cerr := s.registry.Close(); cerr != nil && err == nil {
		err = cerr
	}
	s.wg.Wait()
	return err
}

// ConnectionCount returns the number of active sessions.
func (s *Server) ConnectionCount() int {
	return s.registry.Count()
}

// RecentSessions returns the most recently closed sessions, oldest first.
func (s *Server) RecentSessions() []session.Record {
	return s.registry.Recent()
}

// Addr returns the listener address, or empty string if not listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Done returns a channel that is closed when the server shuts down.
func (s *Server) Done() <-chan struct{} {
	return s.done
}
