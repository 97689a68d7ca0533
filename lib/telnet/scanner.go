package telnet

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
	oi "github.com/reiver/go-oi"

	"github.com/go-netprog/telnet-relay/lib/util"
)

// Scanner keeps the carry between successive calls to Scan and reports
// every consumed command to a Sink. It is used for the INLINE policy, where
// each chunk read from the peer passes through the engine.
// A Scanner is not safe for concurrent use.
type Scanner struct {
	carry []byte
	sink  Sink
}

// NewScanner returns a Scanner with no carry. A nil sink discards events.
func NewScanner(sink Sink) *Scanner {
	if sink == nil {
		sink = NopSink{}
	}
	return &Scanner{sink: sink}
}

// Scan processes the next chunk together with any carry left by the
// previous call.
func (s *Scanner) Scan(chunk []byte) Result {
	res, carry := Scan(s.carry, chunk)
	s.carry = carry
	for _, n := range res.Negotiations {
		s.sink.Negotiation(Received, n)
	}
	return res
}

// Pending returns the bytes of an incomplete command waiting for more input.
func (s *Scanner) Pending() []byte {
	return s.carry
}

// Offer is a proactive negotiation sent before any scanning.
type Offer struct {
	Command Command
	Option  Option
}

// String returns e.g. "WILL ECHO".
func (o Offer) String() string {
	return o.Command.String() + " " + o.Option.String()
}

// Validate checks that the offer uses WILL or DO.
func (o Offer) Validate() error {
	if o.Command != WILL && o.Command != DO {
		return errors.Wrapf(util.ErrInvalidOffer, "offer %s", o)
	}
	return nil
}

// Bytes returns the 3-byte wire form of the offer.
func (o Offer) Bytes() []byte {
	return []byte{IAC, byte(o.Command), byte(o.Option)}
}

// SendOffer writes the offer to w without waiting for an answer.
func SendOffer(w io.Writer, o Offer, sink Sink) error {
	if err := o.Validate(); err != nil {
		return err
	}
	if _, err := oi.LongWrite(w, o.Bytes()); err != nil {
		return errors.Wrapf(err, "send offer %s", o)
	}
	if sink != nil {
		sink.Negotiation(Sent, Negotiation{Command: o.Command, Option: o.Option})
	}
	return nil
}

// NegotiatePreamble answers the command sequences at the head of r and
// returns as soon as the next byte is not IAC. That byte is left unread in r
// so the relay that follows sees it. An incomplete command cut short by end
// of stream is dropped. Replies are written to w as each command is read.
// It returns the number of commands consumed.
func NegotiatePreamble(r *bufio.Reader, w io.Writer, sink Sink) (int, error) {
	if sink == nil {
		sink = NopSink{}
	}

	count := 0
	for {
		head, err := r.Peek(1)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return count, nil
			}
			return count, err
		}
		if head[0] != IAC {
			return count, nil
		}

		seq, err := r.Peek(SequenceLength)
		if err != nil {
			if errors.Is(err, io.EOF) {
				_, _ = r.Discard(len(seq))
				return count, nil
			}
			return count, err
		}

		n := Negotiation{Command: Command(seq[1]), Option: Option(seq[2])}
		if _, err := r.Discard(SequenceLength); err != nil {
			return count, err
		}
		if reply, ok := Reply(n.Command, n.Option); ok {
			n.Reply = reply
			if _, err := oi.LongWrite(w, reply); err != nil {
				return count, errors.Wrapf(err, "reply to %s %s", n.Command, n.Option)
			}
		}
		sink.Negotiation(Received, n)
		count++
	}
}
