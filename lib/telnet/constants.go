// Package telnet implements the Telnet option negotiation subset used by the
// relay client and server: splitting a byte stream into literal payload and
// IAC command triplets, and refusing every option the peer asks for.
package telnet

import "strconv"

// Telnet protocol bytes that are not negotiation verbs.
const (
	IAC byte = 255 // Interpret As Command
	SB  byte = 250 // Subnegotiation Begin
	NOP byte = 241
	SE  byte = 240 // Subnegotiation End
)

// SequenceLength is the size of a command sequence: IAC, verb, option.
const SequenceLength = 3

// DefaultBufferSize is the read chunk size used by pumps and the inline scanner.
const DefaultBufferSize = 1024

// Command is the verb byte following IAC.
type Command byte

// Negotiation verbs.
const (
	WILL Command = 251
	WONT Command = 252
	DO   Command = 253
	DONT Command = 254
)

// String returns the verb name, or CMD(n) for bytes outside the negotiation set.
func (c Command) String() string {
	switch c {
	case WILL:
		return "WILL"
	case WONT:
		return "WONT"
	case DO:
		return "DO"
	case DONT:
		return "DONT"
	case Command(SB):
		return "SB"
	case Command(SE):
		return "SE"
	case Command(NOP):
		return "NOP"
	case Command(IAC):
		return "IAC"
	default:
		return "CMD(" + strconv.Itoa(int(c)) + ")"
	}
}

// IsNegotiation reports whether c is one of WILL, WONT, DO or DONT.
func (c Command) IsNegotiation() bool {
	return c >= WILL && c <= DONT
}

// Option identifies the capability a verb refers to. The engine never
// interprets it; names exist only for logging.
type Option byte

// Well-known option codes.
const (
	OptionBinary          Option = 0
	OptionEcho            Option = 1
	OptionSuppressGoAhead Option = 3
	OptionStatus          Option = 5
	OptionTimingMark      Option = 6
	OptionTerminalType    Option = 24
	OptionWindowSize      Option = 31
	OptionTerminalSpeed   Option = 32
	OptionLineMode        Option = 34
	OptionNewEnviron      Option = 39
)

// String returns the option name, or its decimal value when unknown.
func (o Option) String() string {
	switch o {
	case OptionBinary:
		return "BINARY"
	case OptionEcho:
		return "ECHO"
	case OptionSuppressGoAhead:
		return "SUPPRESS-GO-AHEAD"
	case OptionStatus:
		return "STATUS"
	case OptionTimingMark:
		return "TIMING-MARK"
	case OptionTerminalType:
		return "TERMINAL-TYPE"
	case OptionWindowSize:
		return "NAWS"
	case OptionTerminalSpeed:
		return "TERMINAL-SPEED"
	case OptionLineMode:
		return "LINEMODE"
	case OptionNewEnviron:
		return "NEW-ENVIRON"
	default:
		return strconv.Itoa(int(o))
	}
}
