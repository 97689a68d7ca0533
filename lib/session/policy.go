// Package session owns one connection's stream pair and runs negotiation
// and relay over it according to a Policy.
package session

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/go-netprog/telnet-relay/lib/util"
)

// Policy selects when the negotiation engine inspects inbound bytes.
type Policy int

const (
	// PolicyRaw never inspects inbound bytes.
	PolicyRaw Policy = iota

	// PolicyPreamble answers the commands at the start of the stream and
	// treats everything after the first literal byte as opaque payload.
	PolicyPreamble

	// PolicyInline passes every inbound chunk through the engine for the
	// lifetime of the connection.
	PolicyInline
)

// String returns the lower-case policy name.
func (p Policy) String() string {
	switch p {
	case PolicyRaw:
		return "raw"
	case PolicyPreamble:
		return "preamble"
	case PolicyInline:
		return "inline"
	default:
		return "unknown"
	}
}

// ParsePolicy parses "raw", "preamble" or "inline", ignoring case.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "raw":
		return PolicyRaw, nil
	case "preamble":
		return PolicyPreamble, nil
	case "inline":
		return PolicyInline, nil
	default:
		return PolicyRaw, errors.Wrapf(util.ErrInvalidPolicy, "policy %q", s)
	}
}

// State represents the lifecycle stage of a session.
type State int

const (
	// StateOpen indicates the stream pair is connected and nothing has run yet.
	StateOpen State = iota

	// StateNegotiating indicates the preamble scan or the proactive offers are in progress.
	StateNegotiating

	// StateRelaying indicates payload is being pumped.
	StateRelaying

	// StateClosing indicates Close has started releasing the streams.
	StateClosing

	// StateClosed indicates the streams have been released.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateNegotiating:
		return "NEGOTIATING"
	case StateRelaying:
		return "RELAYING"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}
