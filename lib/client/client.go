// Package client implements the interactive Telnet client: it connects to a
// server, optionally answers the server's opening negotiation, and relays a
// local terminal to the connection.
package client

import (
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/go-netprog/telnet-relay/lib/session"
	"github.com/go-netprog/telnet-relay/lib/telnet"
	"github.com/go-netprog/telnet-relay/lib/util"
)

// DefaultTelnetPort is the port on which PolicyAuto negotiates.
const DefaultTelnetPort = 23

// PolicyAuto selects the preamble policy on DefaultTelnetPort and raw
// relay on any other port.
const PolicyAuto = "auto"

// Config holds client settings.
type Config struct {
	// Policy is "auto", "raw", "preamble" or "inline".
	Policy string

	// BufferSize is the inbound read chunk size.
	BufferSize int

	// Logger receives connection entries. Nil discards them.
	Logger logrus.FieldLogger

	// Sink observes negotiations. Nil logs them at debug level on Logger.
	Sink telnet.Sink
}

// DefaultConfig returns the client defaults.
func DefaultConfig() *Config {
	return &Config{
		Policy:     PolicyAuto,
		BufferSize: telnet.DefaultBufferSize,
	}
}

// ParsePort parses a decimal TCP port in 1-65535.
func ParsePort(s string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || port < 1 || port > 65535 {
		return 0, errors.Wrapf(util.ErrInvalidPort, "port %q", s)
	}
	return port, nil
}

// ResolvePolicy maps a policy name to a session policy for the given port.
func ResolvePolicy(name string, port int) (session.Policy, error) {
	if name == "" || strings.EqualFold(name, PolicyAuto) {
		if port == DefaultTelnetPort {
			return session.PolicyPreamble, nil
		}
		return session.PolicyRaw, nil
	}
	return session.ParsePolicy(name)
}

// Dial connects to host:port and, under the preamble policy, answers the
// server's opening commands before returning. The caller owns the returned
// session and must close it.
func Dial(host string, port int, cfg *Config) (*session.Session, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	policy, err := ResolvePolicy(cfg.Policy, port)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(util.NewConnectionError(addr, "dial", err), "connect")
	}

	sess := session.New(conn, session.Options{
		Policy:     policy,
		Sink:       cfg.Sink,
		Logger:     cfg.Logger,
		BufferSize: cfg.BufferSize,
	})

	n, err := sess.Negotiate()
	if err != nil {
		sess.Close()
		return nil, errors.Wrap(err, "connect")
	}

	if cfg.Logger != nil {
		cfg.Logger.WithFields(logrus.Fields{
			"host":     host,
			"port":     port,
			"policy":   policy.String(),
			"commands": n,
		}).Info("Connected to server")
	}
	return sess, nil
}

// Run relays in to the server and the server's payload to out until both
// directions have finished, then releases the session.
func Run(sess *session.Session, in io.Reader, out io.Writer) error {
	defer sess.Close()
	return sess.Relay(in, out)
}
