package game

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrUnknownCommand is returned by ParseCommand for any line outside the grammar.
var ErrUnknownCommand = errors.New("unknown command")

// Verb identifies a protocol command.
type Verb uint8

const (
	VerbLook Verb = iota + 1
	VerbHelp
	VerbBye
	VerbDig
	VerbFlag
	VerbDeflag
)

var verbNames = map[string]Verb{
	"look":   VerbLook,
	"help":   VerbHelp,
	"bye":    VerbBye,
	"dig":    VerbDig,
	"flag":   VerbFlag,
	"deflag": VerbDeflag,
}

// String returns the keyword for v.
func (v Verb) String() string {
	switch v {
	case VerbLook:
		return "look"
	case VerbHelp:
		return "help"
	case VerbBye:
		return "bye"
	case VerbDig:
		return "dig"
	case VerbFlag:
		return "flag"
	case VerbDeflag:
		return "deflag"
	default:
		return "unknown"
	}
}

// Command is one parsed request line. X and Y are only meaningful for dig,
// flag and deflag, and are not range checked.
type Command struct {
	Verb Verb
	X    int
	Y    int
}

// String renders the command back in wire form.
func (c Command) String() string {
	switch c.Verb {
	case VerbDig, VerbFlag, VerbDeflag:
		return fmt.Sprintf("%s %d %d", c.Verb, c.X, c.Y)
	default:
		return c.Verb.String()
	}
}

var commandPattern = regexp.MustCompile(`^(?:(look|help|bye)|(dig|flag|deflag)[ \t]+(-?\d+)[ \t]+(-?\d+))$`)

// ParseCommand parses a single protocol line. Keywords are case sensitive and
// the coordinates are signed decimal integers. A trailing carriage return is
// ignored.
//
// Parameters:
//   - line: The request line without its newline
//
// Returns:
//   - The command, or an error wrapping ErrUnknownCommand
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSuffix(line, "\r")

	m := commandPattern.FindStringSubmatch(line)
	if m == nil {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, line)
	}

	if m[1] != "" {
		return Command{Verb: verbNames[m[1]]}, nil
	}

	x, err := strconv.Atoi(m[3])
	if err != nil {
		return Command{}, fmt.Errorf("%w: bad x coordinate: %w", ErrUnknownCommand, err)
	}

	y, err := strconv.Atoi(m[4])
	if err != nil {
		return Command{}, fmt.Errorf("%w: bad y coordinate: %w", ErrUnknownCommand, err)
	}

	return Command{Verb: verbNames[m[2]], X: x, Y: y}, nil
}
