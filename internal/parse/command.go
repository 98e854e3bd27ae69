package parse

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed reports a command whose field count or field grammar does
// not match any accepted device grammar.
var ErrMalformed = errors.New("malformed command")

// PageSize is the fixed page size of the paginated roster grammar.
const PageSize = 5

// Channel is one of the three physical measurement lines on a device.
type Channel int

const (
	ChannelCow Channel = 1
	ChannelBuf Channel = 2
	ChannelMix Channel = 3
)

func (ch Channel) String() string {
	switch ch {
	case ChannelCow:
		return "COW"
	case ChannelBuf:
		return "BUF"
	case ChannelMix:
		return "MIX"
	}
	return fmt.Sprintf("Channel(%d)", int(ch))
}

// ParseChannelDigit maps the wire digit 1/2/3 to a channel.
func ParseChannelDigit(field string) (Channel, error) {
	switch strings.TrimSpace(field) {
	case "1":
		return ChannelCow, nil
	case "2":
		return ChannelBuf, nil
	case "3":
		return ChannelMix, nil
	}
	return 0, fmt.Errorf("%w: channel %q", ErrMalformed, field)
}

// ParseChannelName maps the wire name COW/BUF/MIX to a channel.
func ParseChannelName(field string) (Channel, error) {
	switch strings.ToUpper(strings.TrimSpace(field)) {
	case "COW":
		return ChannelCow, nil
	case "BUF":
		return ChannelBuf, nil
	case "MIX":
		return ChannelMix, nil
	}
	return 0, fmt.Errorf("%w: channel %q", ErrMalformed, field)
}

// Command is one decoded pipe-delimited device command. The field count
// discriminates which operation grammar applies.
type Command struct {
	Fields []string
}

// Split cuts a decoded command string into its ordered fields.
func Split(raw string) Command {
	return Command{Fields: strings.Split(raw, "|")}
}

// BaseCommand holds the society|machineType|firmwareVersion|machineId
// prefix shared by every grammar.
type BaseCommand struct {
	Society         SocietyRef
	MachineType     string
	FirmwareVersion string
	Machine         MachineRef
}

func parseBase(fields []string, g MachineGrammar) (BaseCommand, error) {
	machine, err := ParseMachineRef(fields[3], g)
	if err != nil {
		return BaseCommand{}, err
	}
	return BaseCommand{
		Society:         ParseSocietyRef(fields[0]),
		MachineType:     strings.TrimSpace(fields[1]),
		FirmwareVersion: strings.TrimSpace(fields[2]),
		Machine:         machine,
	}, nil
}

// RosterCommand selects either the full CSV export (Page == 0) or one
// 1-indexed page of five farmers.
type RosterCommand struct {
	BaseCommand
	Page int
}

// ParseRoster accepts the 4-field export grammar or the 5-field paginated
// grammar with a trailing C##### page selector.
func ParseRoster(cmd Command, g MachineGrammar) (RosterCommand, error) {
	switch len(cmd.Fields) {
	case 4:
		base, err := parseBase(cmd.Fields, g)
		if err != nil {
			return RosterCommand{}, err
		}
		return RosterCommand{BaseCommand: base}, nil
	case 5:
		base, err := parseBase(cmd.Fields, g)
		if err != nil {
			return RosterCommand{}, err
		}
		page, err := ParsePage(cmd.Fields[4])
		if err != nil {
			return RosterCommand{}, err
		}
		return RosterCommand{BaseCommand: base, Page: page}, nil
	}
	return RosterCommand{}, fmt.Errorf("%w: %d fields", ErrMalformed, len(cmd.Fields))
}

// ParsePage parses the C-prefixed 1-indexed page selector. Out-of-range
// values are clamped to the first page.
func ParsePage(field string) (int, error) {
	f := strings.TrimSpace(field)
	if len(f) < 2 || (f[0] != 'C' && f[0] != 'c') {
		return 0, fmt.Errorf("%w: page selector %q", ErrMalformed, field)
	}
	n, err := strconv.Atoi(f[1:])
	if err != nil {
		return 0, fmt.Errorf("%w: page selector %q", ErrMalformed, field)
	}
	if n < 1 {
		n = 1
	}
	return n, nil
}

// ParseRead parses the 4-field correction read / invalidate grammar.
func ParseRead(cmd Command, g MachineGrammar) (BaseCommand, error) {
	if len(cmd.Fields) != 4 {
		return BaseCommand{}, fmt.Errorf("%w: %d fields", ErrMalformed, len(cmd.Fields))
	}
	return parseBase(cmd.Fields, g)
}

// CredentialRole identifies which machine credential a command addresses.
type CredentialRole byte

const (
	RoleUser       CredentialRole = 'U'
	RoleSupervisor CredentialRole = 'S'
)

// CredentialCommand is the 5-field credential read / acknowledge grammar.
type CredentialCommand struct {
	BaseCommand
	Role CredentialRole
}

// ParseCredential parses the credential grammar. The read variant accepts
// any role field starting with U or S; the acknowledge variant (exact)
// requires the field to be exactly "U" or "S".
func ParseCredential(cmd Command, g MachineGrammar, exact bool) (CredentialCommand, error) {
	if len(cmd.Fields) != 5 {
		return CredentialCommand{}, fmt.Errorf("%w: %d fields", ErrMalformed, len(cmd.Fields))
	}
	base, err := parseBase(cmd.Fields, g)
	if err != nil {
		return CredentialCommand{}, err
	}
	role := strings.ToUpper(strings.TrimSpace(cmd.Fields[4]))
	if role == "" || (exact && len(role) != 1) {
		return CredentialCommand{}, fmt.Errorf("%w: password type %q", ErrMalformed, cmd.Fields[4])
	}
	switch role[0] {
	case 'U':
		return CredentialCommand{BaseCommand: base, Role: RoleUser}, nil
	case 'S':
		return CredentialCommand{BaseCommand: base, Role: RoleSupervisor}, nil
	}
	return CredentialCommand{}, fmt.Errorf("%w: password type %q", ErrMalformed, cmd.Fields[4])
}

// RateChartCommand is the 5-field chart download grammar.
type RateChartCommand struct {
	BaseCommand
	Channel Channel
}

// ParseRateChart parses the chart download grammar; the trailing field
// names the channel as COW/BUF/MIX.
func ParseRateChart(cmd Command, g MachineGrammar) (RateChartCommand, error) {
	if len(cmd.Fields) != 5 {
		return RateChartCommand{}, fmt.Errorf("%w: %d fields", ErrMalformed, len(cmd.Fields))
	}
	base, err := parseBase(cmd.Fields, g)
	if err != nil {
		return RateChartCommand{}, err
	}
	ch, err := ParseChannelName(cmd.Fields[4])
	if err != nil {
		return RateChartCommand{}, err
	}
	return RateChartCommand{BaseCommand: base, Channel: ch}, nil
}

// HandshakeCommand is the 5-field firmware-update handshake grammar.
type HandshakeCommand struct {
	BaseCommand
	Marker string // trailing D<timestamp> field, kept verbatim
}

// ParseHandshake parses the firmware handshake grammar.
func ParseHandshake(cmd Command, g MachineGrammar) (HandshakeCommand, error) {
	if len(cmd.Fields) != 5 {
		return HandshakeCommand{}, fmt.Errorf("%w: %d fields", ErrMalformed, len(cmd.Fields))
	}
	base, err := parseBase(cmd.Fields, g)
	if err != nil {
		return HandshakeCommand{}, err
	}
	marker := strings.TrimSpace(cmd.Fields[4])
	if marker == "" || (marker[0] != 'D' && marker[0] != 'd') {
		return HandshakeCommand{}, fmt.Errorf("%w: date marker %q", ErrMalformed, cmd.Fields[4])
	}
	return HandshakeCommand{BaseCommand: base, Marker: marker}, nil
}

// CorrectionValues are the six calibration offsets of one channel.
type CorrectionValues struct {
	Fat     float64
	Snf     float64
	Clr     float64
	Temp    float64
	Water   float64
	Protein float64
}

// CorrectionWriteCommand is the long correction-write grammar:
// society|type|fw|machine||channel|F±v|S±v|C±v|T±v|W±v|P±v|D<timestamp>.
type CorrectionWriteCommand struct {
	BaseCommand
	Channel Channel
	Values  CorrectionValues
	Marker  string
}

// ParseCorrectionWrite parses the correction-write grammar. Individual
// offset fields that fail to parse default to 0.00; devices legitimately
// omit values they have no reading for.
func ParseCorrectionWrite(cmd Command, g MachineGrammar) (CorrectionWriteCommand, error) {
	if len(cmd.Fields) < 13 {
		return CorrectionWriteCommand{}, fmt.Errorf("%w: %d fields", ErrMalformed, len(cmd.Fields))
	}
	base, err := parseBase(cmd.Fields, g)
	if err != nil {
		return CorrectionWriteCommand{}, err
	}
	ch, err := ParseChannelDigit(cmd.Fields[5])
	if err != nil {
		return CorrectionWriteCommand{}, err
	}
	return CorrectionWriteCommand{
		BaseCommand: base,
		Channel:     ch,
		Values: CorrectionValues{
			Fat:     ParseOffset(cmd.Fields[6]),
			Snf:     ParseOffset(cmd.Fields[7]),
			Clr:     ParseOffset(cmd.Fields[8]),
			Temp:    ParseOffset(cmd.Fields[9]),
			Water:   ParseOffset(cmd.Fields[10]),
			Protein: ParseOffset(cmd.Fields[11]),
		},
		Marker: strings.TrimSpace(cmd.Fields[12]),
	}, nil
}

// ParseOffset parses one sign-prefixed correction value like "F+0.16" or
// "S-1.00": the marker letter is dropped, an explicit "+" is dropped, and
// the remainder parses as a decimal. Anything unparsable yields 0.00.
func ParseOffset(field string) float64 {
	f := strings.TrimSpace(field)
	if len(f) < 2 {
		return 0
	}
	v := strings.TrimPrefix(f[1:], "+")
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return n
}
