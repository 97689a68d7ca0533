package telnet

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-netprog/telnet-relay/lib/util"
)

func TestNegotiatePreamble_ServerOffers(t *testing.T) {
	in := []byte{0xFF, 251, 1, 0xFF, 253, 3}
	in = append(in, "Welcome to Simple Telnet Server\r\n"...)
	r := bufio.NewReader(bytes.NewReader(in))
	var out bytes.Buffer

	n, err := NegotiatePreamble(r, &out, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte{0xFF, 254, 1, 0xFF, 252, 3}, out.Bytes())

	rest, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "Welcome to Simple Telnet Server\r\n", string(rest))
}

func TestNegotiatePreamble_StopsAtFirstLiteral(t *testing.T) {
	// The second command follows payload and must not be interpreted.
	in := []byte{0xFF, 253, 1, 'x', 0xFF, 253, 3}
	r := bufio.NewReader(bytes.NewReader(in))
	var out bytes.Buffer

	n, err := NegotiatePreamble(r, &out, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []byte{0xFF, 252, 1}, out.Bytes())

	rest, _ := io.ReadAll(r)
	assert.Equal(t, []byte{'x', 0xFF, 253, 3}, rest)
}

func TestNegotiatePreamble_NoCommands(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("plain text"))
	var out bytes.Buffer

	n, err := NegotiatePreamble(r, &out, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, out.Len())

	rest, _ := io.ReadAll(r)
	assert.Equal(t, "plain text", string(rest))
}

func TestNegotiatePreamble_IncompleteAtEOF(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader([]byte{0xFF, 253, 1, 0xFF, 251}))
	var out bytes.Buffer

	n, err := NegotiatePreamble(r, &out, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []byte{0xFF, 252, 1}, out.Bytes())

	rest, _ := io.ReadAll(r)
	assert.Empty(t, rest)
}

func TestNegotiatePreamble_SplitReads(t *testing.T) {
	// iotest-style one byte per Read: Peek must still assemble the triplet.
	r := bufio.NewReader(&oneByteReader{data: []byte{0xFF, 251, 9, 'A'}})
	var out bytes.Buffer

	n, err := NegotiatePreamble(r, &out, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []byte{0xFF, 254, 9}, out.Bytes())
}

func TestNegotiatePreamble_WriteError(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader([]byte{0xFF, 253, 1}))

	_, err := NegotiatePreamble(r, failingWriter{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errWrite)
}

func TestNegotiatePreamble_Sink(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	sink := NewLogSink(logger)
	require.NoError(t, SendOffer(io.Discard, Offer{WILL, OptionEcho}, sink))

	r := bufio.NewReader(bytes.NewReader([]byte{0xFF, 253, 24, 0xFF, 254, 1, 0xFF, SB, 24}))
	_, err := NegotiatePreamble(r, io.Discard, sink)
	require.NoError(t, err)

	entries := hook.AllEntries()
	require.Len(t, entries, 4)

	assert.Equal(t, logrus.InfoLevel, entries[0].Level)
	assert.Equal(t, "sent", entries[0].Data["direction"])
	assert.Equal(t, "WILL", entries[0].Data["command"])

	assert.Equal(t, logrus.InfoLevel, entries[1].Level)
	assert.Equal(t, "Telnet negotiation", entries[1].Message)
	assert.Equal(t, "DO", entries[1].Data["command"])
	assert.Equal(t, "TERMINAL-TYPE", entries[1].Data["option"])
	assert.Equal(t, "WONT", entries[1].Data["reply"])
	assert.Equal(t, "received", entries[1].Data["direction"])

	assert.Equal(t, "DONT", entries[2].Data["command"])
	assert.NotContains(t, entries[2].Data, "reply")

	assert.Equal(t, logrus.DebugLevel, entries[3].Level)
	assert.Equal(t, "Telnet command", entries[3].Message)
}

func TestLogSink_DefaultLevelShowsNegotiations(t *testing.T) {
	logger, hook := test.NewNullLogger()

	r := bufio.NewReader(bytes.NewReader([]byte{0xFF, 251, 3, 0xFF, NOP, 0}))
	n, err := NegotiatePreamble(r, io.Discard, NewLogSink(logger))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	entries := hook.AllEntries()
	require.Len(t, entries, 1, "only negotiation verbs are logged at info level")
	assert.Equal(t, "WILL", entries[0].Data["command"])
	assert.Equal(t, "SUPPRESS-GO-AHEAD", entries[0].Data["option"])
}

func TestSendOffer(t *testing.T) {
	var out bytes.Buffer
	var sent []Negotiation
	sink := SinkFunc(func(dir Direction, n Negotiation) {
		assert.Equal(t, Sent, dir)
		sent = append(sent, n)
	})

	require.NoError(t, SendOffer(&out, Offer{WILL, OptionEcho}, sink))
	require.NoError(t, SendOffer(&out, Offer{DO, OptionSuppressGoAhead}, sink))

	assert.Equal(t, []byte{0xFF, 251, 1, 0xFF, 253, 3}, out.Bytes())
	assert.Len(t, sent, 2)
}

func TestSendOffer_Invalid(t *testing.T) {
	var out bytes.Buffer
	err := SendOffer(&out, Offer{WONT, OptionEcho}, nil)
	assert.ErrorIs(t, err, util.ErrInvalidOffer)
	assert.Zero(t, out.Len())
}

func TestCommand_String(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{WILL, "WILL"},
		{WONT, "WONT"},
		{DO, "DO"},
		{DONT, "DONT"},
		{Command(SB), "SB"},
		{Command(7), "CMD(7)"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cmd.String())
		})
	}
	assert.True(t, DO.IsNegotiation())
	assert.False(t, Command(SB).IsNegotiation())
}

func TestMultiSink(t *testing.T) {
	count := 0
	s := MultiSink{
		SinkFunc(func(Direction, Negotiation) { count++ }),
		NopSink{},
		SinkFunc(func(Direction, Negotiation) { count++ }),
	}
	s.Negotiation(Sent, Negotiation{Command: DO, Option: OptionEcho})
	assert.Equal(t, 2, count)
}

type oneByteReader struct {
	data []byte
}

func (r *oneByteReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	p[0] = r.data[0]
	r.data = r.data[1:]
	return 1, nil
}

var errWrite = errors.New("write failed")

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errWrite }
