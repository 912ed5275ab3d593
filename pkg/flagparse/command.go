package flagparse

import (
	"fmt"
	"strings"

	"pathworks.io/netmirror/pkg/util"
)

// Command represents the subcommand selected on the command line.
type Command int

const (
	CommandNone Command = iota
	CommandPlan
	CommandApply
	CommandInit
	CommandVersion
)

// commandToString maps Command values to their command line names.
var commandToString = map[Command]string{
	CommandNone:    "none",
	CommandPlan:    "plan",
	CommandApply:   "apply",
	CommandInit:    "init",
	CommandVersion: "version",
}

// stringToCommand is the reverse lookup, derived to keep the two in sync.
var stringToCommand = util.InvertMap(commandToString)

// String returns the command line name of the command.
func (c Command) String() string {
	if s, ok := commandToString[c]; ok {
		return s
	}
	return fmt.Sprintf("unknown(%d)", int(c))
}

// ParseCommand converts a command line argument into a Command.
func ParseCommand(s string) (Command, error) {
	if c, ok := stringToCommand[strings.ToLower(s)]; ok && c != CommandNone {
		return c, nil
	}
	return CommandNone, fmt.Errorf("unknown command: %q", s)
}
