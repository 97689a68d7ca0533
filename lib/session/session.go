package session

import (
	"bufio"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	oi "github.com/reiver/go-oi"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/go-netprog/telnet-relay/lib/pump"
	"github.com/go-netprog/telnet-relay/lib/telnet"
	"github.com/go-netprog/telnet-relay/lib/util"
)

// Options configures a Session.
type Options struct {
	// Policy selects how inbound bytes pass through the negotiation engine.
	Policy Policy

	// Sink observes every negotiation. Defaults to a LogSink on Logger.
	Sink telnet.Sink

	// Logger receives session lifecycle entries. Defaults to a discarding logger.
	Logger logrus.FieldLogger

	// BufferSize is the inbound read chunk size. Defaults to telnet.DefaultBufferSize.
	BufferSize int
}

// Stats holds per-session traffic counters.
type Stats struct {
	BytesIn  int64 // bytes read from the peer, commands included
	BytesOut int64 // bytes written to the peer, replies included
	Commands int64 // command sequences received
}

// Session owns one connection to a peer. It is created in StateOpen and
// released exactly once by Close. Nothing in a Session is shared with any
// other Session.
type Session struct {
	mu    sync.RWMutex
	state State

	conn   net.Conn
	reader *bufio.Reader
	writer *connWriter

	policy     Policy
	sink       telnet.Sink
	log        logrus.FieldLogger
	bufferSize int

	remoteAddr string
	createdAt  time.Time

	bytesIn  atomic.Int64
	commands atomic.Int64

	closeOnce sync.Once
	closeErr  error
}

// New wraps conn in a Session. The session takes ownership of conn.
func New(conn net.Conn, opts Options) *Session {
	log := opts.Logger
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}
	bufferSize := opts.BufferSize
	if bufferSize <= 0 {
		bufferSize = telnet.DefaultBufferSize
	}

	remoteAddr := ""
	if addr := conn.RemoteAddr(); addr != nil {
		remoteAddr = addr.String()
	}
	log = log.WithField("remote", remoteAddr)

	s := &Session{
		state:      StateOpen,
		conn:       conn,
		reader:     bufio.NewReaderSize(conn, bufferSize),
		writer:     &connWriter{w: conn},
		policy:     opts.Policy,
		log:        log,
		bufferSize: bufferSize,
		remoteAddr: remoteAddr,
		createdAt:  time.Now(),
	}

	sink := opts.Sink
	if sink == nil {
		sink = telnet.NewLogSink(log)
	}
	s.sink = telnet.MultiSink{telnet.SinkFunc(s.countCommand), sink}
	return s
}

func (s *Session) countCommand(dir telnet.Direction, _ telnet.Negotiation) {
	if dir == telnet.Received {
		s.commands.Add(1)
	}
}

// Policy returns the negotiation policy.
func (s *Session) Policy() Policy {
	return s.policy
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// RemoteAddr returns the peer address captured at creation.
func (s *Session) RemoteAddr() string {
	return s.remoteAddr
}

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// Stats returns a snapshot of the traffic counters.
func (s *Session) Stats() Stats {
	return Stats{
		BytesIn:  s.bytesIn.Load(),
		BytesOut: s.writer.written.Load(),
		Commands: s.commands.Load(),
	}
}

// IsClosed returns true once Close has started.
func (s *Session) IsClosed() bool {
	st := s.State()
	return st == StateClosing || st == StateClosed
}

// enter moves the session to state unless it is already closing.
func (s *Session) enter(state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosing || s.state == StateClosed {
		return util.ErrSessionClosed
	}
	s.state = state
	return nil
}

// Offer sends proactive offers to the peer, in order.
func (s *Session) Offer(offers ...telnet.Offer) error {
	if err := s.enter(StateNegotiating); err != nil {
		return err
	}
	for _, o := range offers {
		if err := telnet.SendOffer(s.writer, o, s.sink); err != nil {
			return util.NewConnectionError(s.remoteAddr, "offer", err)
		}
	}
	return nil
}

// Greet writes text to the peer.
func (s *Session) Greet(text string) error {
	if text == "" {
		return nil
	}
	if _, err := oi.LongWriteString(s.writer, text); err != nil {
		return util.NewConnectionError(s.remoteAddr, "greet", err)
	}
	return nil
}

// Negotiate runs the preamble scan when the policy is PolicyPreamble and
// returns the number of commands answered. Other policies return at once.
func (s *Session) Negotiate() (int, error) {
	if s.policy != PolicyPreamble {
		return 0, nil
	}
	if err := s.enter(StateNegotiating); err != nil {
		return 0, err
	}

	n, err := telnet.NegotiatePreamble(s.reader, s.writer, s.sink)
	s.bytesIn.Add(int64(n * telnet.SequenceLength))
	if err != nil {
		return n, util.NewConnectionError(s.remoteAddr, "negotiate", err)
	}
	s.log.WithField("commands", n).Debug("Preamble negotiation finished")
	return n, nil
}

// Relay runs the interactive relay: localIn is copied to the peer and the
// peer's payload is copied to localOut, concurrently. After a normal end it
// returns once both directions have finished. End of localIn half-closes the
// connection when the transport allows it; end of the peer's stream closes
// the session. A failure in either direction closes the session and is
// returned at once, without waiting for the other direction: a local read
// blocked on a terminal is left behind and ends on its next read.
func (s *Session) Relay(localIn io.Reader, localOut io.Writer) error {
	if err := s.enter(StateRelaying); err != nil {
		return err
	}

	var g errgroup.Group
	failed := make(chan error, 2)
	run := func(fn func() error) {
		g.Go(func() error {
			err := fn()
			if err != nil {
				failed <- err
			}
			return err
		})
	}

	run(func() error {
		_, err := pump.Pump(localIn, s.writer)
		if err != nil {
			if s.IsClosed() && util.IsClosedConn(err) {
				return nil
			}
			s.Close()
			return errors.Wrap(util.NewConnectionError(s.remoteAddr, "send", err), "local to remote")
		}
		s.closeWrite()
		return nil
	})
	run(func() error {
		err := s.forward(localOut)
		s.Close()
		if err != nil && !util.IsClosedConn(err) {
			return errors.Wrap(util.NewConnectionError(s.remoteAddr, "receive", err), "remote to local")
		}
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-failed:
		return err
	case err := <-done:
		return err
	}
}

// Echo reads from the peer and writes its payload straight back, answering
// commands in between when the policy is PolicyInline. It returns nil when
// the peer closes the connection.
func (s *Session) Echo() error {
	if err := s.enter(StateRelaying); err != nil {
		return err
	}
	if err := s.forward(s.writer); err != nil && !util.IsClosedConn(err) {
		return util.NewConnectionError(s.remoteAddr, "echo", err)
	}
	return nil
}

// forward pumps inbound bytes to dst. Under PolicyInline every chunk goes
// through the scanner: literal runs go to dst and replies go to the peer,
// in input order.
func (s *Session) forward(dst io.Writer) error {
	buf := make([]byte, s.bufferSize)

	if s.policy != PolicyInline {
		_, err := pump.PumpBuffer(s.reader, buf, func(chunk []byte) error {
			s.bytesIn.Add(int64(len(chunk)))
			_, err := oi.LongWrite(dst, chunk)
			return err
		})
		return err
	}

	scanner := telnet.NewScanner(s.sink)
	_, err := pump.PumpBuffer(s.reader, buf, func(chunk []byte) error {
		s.bytesIn.Add(int64(len(chunk)))
		res := scanner.Scan(chunk)
		for _, e := range res.Emissions {
			w := dst
			if e.Kind == telnet.EmitReply {
				w = s.writer
			}
			if _, err := oi.LongWrite(w, e.Data); err != nil {
				return err
			}
		}
		return nil
	})
	if pending := scanner.Pending(); err == nil && len(pending) > 0 {
		s.log.WithField("bytes", len(pending)).Debug("Dropping incomplete command at end of stream")
	}
	return err
}

// closeWrite half-closes the connection if the transport supports it.
func (s *Session) closeWrite() {
	if cw, ok := s.conn.(interface{ CloseWrite() error }); ok {
		if err := cw.CloseWrite(); err != nil {
			s.log.WithError(err).Debug("Half-close failed")
		}
	}
}

// Close releases the connection. Only the first call closes it; later calls
// return the same result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosing
		s.mu.Unlock()

		s.closeErr = s.conn.Close()

		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()

		stats := s.Stats()
		s.log.WithFields(logrus.Fields{
			"bytesIn":  stats.BytesIn,
			"bytesOut": stats.BytesOut,
			"commands": stats.Commands,
			"duration": time.Since(s.createdAt).Round(time.Millisecond).String(),
		}).Debug("Session closed")
	})
	return s.closeErr
}

// connWriter serialises writes to the connection and counts bytes written.
// Under PolicyInline on the client, replies and keyboard input share it.
type connWriter struct {
	mu      sync.Mutex
	w       io.Writer
	written atomic.Int64
}

func (c *connWriter) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.w.Write(p)
	c.written.Add(int64(n))
	return n, err
}
