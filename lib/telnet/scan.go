package telnet

// EmissionKind tells whether an Emission is payload or a negotiation reply.
type EmissionKind int

const (
	// EmitLiteral is a run of payload bytes to forward unchanged.
	EmitLiteral EmissionKind = iota

	// EmitReply is a 3-byte refusal to send back to the peer.
	EmitReply
)

// Emission is one output item of a scan, in input order.
type Emission struct {
	Kind EmissionKind
	Data []byte
}

// Negotiation records one processed command sequence.
// Reply is nil when the command gets no answer.
type Negotiation struct {
	Command Command
	Option  Option
	Reply   []byte
}

// Result is the output of Scan. All byte slices are owned by the Result.
type Result struct {
	// Emissions holds literal runs and replies in the order they occurred.
	Emissions []Emission

	// Negotiations holds every command sequence consumed, replied to or not.
	Negotiations []Negotiation

	// Consumed is the number of bytes of carry+chunk that were consumed.
	Consumed int
}

// Literal returns the concatenated payload bytes of the result.
func (r Result) Literal() []byte {
	var out []byte
	for _, e := range r.Emissions {
		if e.Kind == EmitLiteral {
			out = append(out, e.Data...)
		}
	}
	return out
}

// Replies returns the reply sequences of the result in order.
func (r Result) Replies() [][]byte {
	var out [][]byte
	for _, e := range r.Emissions {
		if e.Kind == EmitReply {
			out = append(out, e.Data)
		}
	}
	return out
}

// Reply returns the refusal for a received command: DO is answered with
// WONT and WILL with DONT, both carrying the same option. Any other command
// gets no reply.
func Reply(cmd Command, opt Option) ([]byte, bool) {
	switch cmd {
	case DO:
		return []byte{IAC, byte(WONT), byte(opt)}, true
	case WILL:
		return []byte{IAC, byte(DONT), byte(opt)}, true
	default:
		return nil, false
	}
}

// Scan splits carry followed by chunk into literal runs and command
// sequences. An IAC with fewer than two bytes after it stops the scan; those
// bytes are returned as the new carry and must be passed back in with the
// next chunk. Scan performs no I/O.
func Scan(carry, chunk []byte) (Result, []byte) {
	data := chunk
	if len(carry) > 0 {
		data = make([]byte, 0, len(carry)+len(chunk))
		data = append(data, carry...)
		data = append(data, chunk...)
	}

	var res Result
	start := 0
	i := 0
	for i < len(data) {
		if data[i] != IAC {
			i++
			continue
		}
		res.addLiteral(data[start:i])

		if i+SequenceLength > len(data) {
			res.Consumed = i
			return res, append([]byte(nil), data[i:]...)
		}

		n := Negotiation{Command: Command(data[i+1]), Option: Option(data[i+2])}
		if reply, ok := Reply(n.Command, n.Option); ok {
			n.Reply = reply
			res.Emissions = append(res.Emissions, Emission{Kind: EmitReply, Data: reply})
		}
		res.Negotiations = append(res.Negotiations, n)

		i += SequenceLength
		start = i
	}
	res.addLiteral(data[start:])
	res.Consumed = len(data)
	return res, nil
}

func (r *Result) addLiteral(p []byte) {
	if len(p) == 0 {
		return
	}
	r.Emissions = append(r.Emissions, Emission{
		Kind: EmitLiteral,
		Data: append([]byte(nil), p...),
	})
}
