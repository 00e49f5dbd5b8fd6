// Package cli parses hark command-line arguments.
package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type Command string

const (
	CommandListen  Command = "listen"
	CommandStatus  Command = "status"
	CommandPoll    Command = "poll"
	CommandStart   Command = "start"
	CommandStop    Command = "stop"
	CommandRestart Command = "restart"
	CommandDevices Command = "devices"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

// commands lists every command in help order.
var commands = []struct {
	name    Command
	summary string
}{
	{CommandListen, "Run continuous recognition and serve engine commands"},
	{CommandStatus, "Print recognizer state, generation, and queue depth"},
	{CommandPoll, "Print and drain queued results and errors"},
	{CommandStart, "Create a fresh recognizer in the running listener"},
	{CommandStop, "Destroy the listener's recognizer"},
	{CommandRestart, "Resume listening after a stalled error"},
	{CommandDevices, "List available input devices"},
	{CommandDoctor, "Run configuration and environment checks"},
	{CommandVersion, "Print version information"},
	{CommandHelp, "Show this help"},
}

func lookupCommand(arg string) (Command, bool) {
	for _, c := range commands {
		if string(c.name) == arg {
			return c.name, true
		}
	}
	return "", false
}

type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool
	// Limit caps the events printed by poll. Zero drains everything.
	Limit int
}

// Parse reads global flags, then at most one command and its own flags.
func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
			continue
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
			continue
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
			continue
		}

		if strings.HasPrefix(arg, "-") {
			return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
		}

		cmd, ok := lookupCommand(arg)
		if !ok {
			return Parsed{}, fmt.Errorf("unknown command: %s", arg)
		}
		parsed.Command = cmd
		parsed.ShowHelp = cmd == CommandHelp

		if err := parseCommandFlags(&parsed, args[i+1:]); err != nil {
			return Parsed{}, err
		}
		return parsed, nil
	}

	return parsed, nil
}

// parseCommandFlags handles arguments that follow the command word.
func parseCommandFlags(parsed *Parsed, rest []string) error {
	for i := 0; i < len(rest); i++ {
		if parsed.Command != CommandPoll || rest[i] != "--limit" {
			return fmt.Errorf("unexpected arguments after command %q", parsed.Command)
		}
		i++
		if i >= len(rest) {
			return errors.New("--limit requires a number")
		}
		n, err := strconv.Atoi(rest[i])
		if err != nil || n < 0 {
			return fmt.Errorf("--limit must be a non-negative integer, got %q", rest[i])
		}
		parsed.Limit = n
	}
	return nil
}

func HelpText(binaryName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Usage:\n  %s [--config PATH] <command> [command flags]\n\nCommands:\n", binaryName)
	for _, c := range commands {
		fmt.Fprintf(&b, "  %-9s %s\n", c.name, c.summary)
	}
	b.WriteString(`
Command flags:
  poll --limit N  Return at most N events (default: all)

Flags:
  --config PATH   Config file path (default: $HARK_CONFIG, then $XDG_CONFIG_HOME/hark/config.jsonc)
  -h, --help      Show help
  --version       Show version
`)
	return b.String()
}
