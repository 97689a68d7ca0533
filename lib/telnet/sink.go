package telnet

import "github.com/sirupsen/logrus"

// Direction tells whether a negotiation was received from or sent to the peer.
type Direction int

const (
	Received Direction = iota
	Sent
)

// String returns "received" or "sent".
func (d Direction) String() string {
	if d == Sent {
		return "sent"
	}
	return "received"
}

// Sink observes every command the engine processes or the session offers.
// Implementations must not retain n.Reply beyond the call.
type Sink interface {
	Negotiation(dir Direction, n Negotiation)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(dir Direction, n Negotiation)

// Negotiation calls f.
func (f SinkFunc) Negotiation(dir Direction, n Negotiation) {
	f(dir, n)
}

// NopSink discards all events.
type NopSink struct{}

// Negotiation does nothing.
func (NopSink) Negotiation(Direction, Negotiation) {}

// LogSink writes one entry per negotiation to a logrus logger: WILL, WONT,
// DO and DONT at info level, any other command at debug level.
type LogSink struct {
	Logger logrus.FieldLogger
}

// NewLogSink returns a LogSink writing to logger.
func NewLogSink(logger logrus.FieldLogger) *LogSink {
	return &LogSink{Logger: logger}
}

// Negotiation logs the command, option and reply verb, if any.
func (s *LogSink) Negotiation(dir Direction, n Negotiation) {
	fields := logrus.Fields{
		"direction": dir.String(),
		"command":   n.Command.String(),
		"option":    n.Option.String(),
	}
	if len(n.Reply) == SequenceLength {
		fields["reply"] = Command(n.Reply[1]).String()
	}
	entry := s.Logger.WithFields(fields)
	if !n.Command.IsNegotiation() {
		entry.Debug("Telnet command")
		return
	}
	entry.Info("Telnet negotiation")
}

// MultiSink fans events out to several sinks in order.
type MultiSink []Sink

// Negotiation forwards the event to every sink.
func (m MultiSink) Negotiation(dir Direction, n Negotiation) {
	for _, s := range m {
		s.Negotiation(dir, n)
	}
}
