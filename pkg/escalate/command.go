package escalate

import (
	"strings"

	"github.com/matzehuels/jarprobe/pkg/errors"
)

// Action is what a human decided for one record.
type Action int

const (
	// ActionPublic keeps the record as public content under a local
	// identity.
	ActionPublic Action = iota + 1
	// ActionPrivate keeps the record as private content.
	ActionPrivate
	// ActionPublicPrefix adds a public class path prefix.
	ActionPublicPrefix
	// ActionPrivatePrefix adds a private class path prefix.
	ActionPrivatePrefix
	// ActionAddRepository adds a repository base URL.
	ActionAddRepository
)

var actionWords = map[Action]string{
	ActionPublic:        "pub",
	ActionPrivate:       "priv",
	ActionPublicPrefix:  "pub pre",
	ActionPrivatePrefix: "priv pre",
	ActionAddRepository: "add repo",
}

func (a Action) String() string {
	if w, ok := actionWords[a]; ok {
		return w
	}
	return "unknown"
}

// NeedsArgument reports whether the action takes a prefix or URL.
func (a Action) NeedsArgument() bool {
	return a == ActionPublicPrefix || a == ActionPrivatePrefix || a == ActionAddRepository
}

// ArgumentPrompt is the follow-up question for a missing argument.
func (a Action) ArgumentPrompt() string {
	switch a {
	case ActionPublicPrefix:
		return "public class prefix (like io/jmix/)"
	case ActionPrivatePrefix:
		return "private class prefix (like com/acme/)"
	case ActionAddRepository:
		return "repository URL"
	}
	return ""
}

// Command is one parsed line.
type Command struct {
	Action Action
	// Arg is the prefix or URL; it may be empty after parsing and is
	// then asked for separately.
	Arg string
}

// ParseCommand parses a command line. Words are case-insensitive and
// may be separated by any whitespace; the argument of a two-word command
// may follow on the same line. ok is false for anything unrecognized.
func ParseCommand(line string) (cmd Command, ok bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, false
	}
	head := strings.ToLower(fields[0])

	switch {
	case len(fields) == 1 && head == "pub":
		return Command{Action: ActionPublic}, true
	case len(fields) == 1 && head == "priv":
		return Command{Action: ActionPrivate}, true
	case len(fields) < 2 || len(fields) > 3:
		return Command{}, false
	}

	var action Action
	switch head + " " + strings.ToLower(fields[1]) {
	case "pub pre":
		action = ActionPublicPrefix
	case "priv pre":
		action = ActionPrivatePrefix
	case "add repo":
		action = ActionAddRepository
	default:
		return Command{}, false
	}
	cmd = Command{Action: action}
	if len(fields) == 3 {
		cmd.Arg = fields[2]
	}
	return cmd, true
}

// ValidateArgument checks the argument of cmd.
func ValidateArgument(cmd Command) error {
	switch cmd.Action {
	case ActionPublicPrefix, ActionPrivatePrefix:
		return errors.ValidatePrefix(cmd.Arg)
	case ActionAddRepository:
		return errors.ValidateURL(cmd.Arg)
	}
	return nil
}
