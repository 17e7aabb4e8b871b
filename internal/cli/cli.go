// Package cli parses the chatdock command line.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandRun      Command = "run"
	CommandSend     Command = "send"
	CommandRecord   Command = "record"
	CommandMinimize Command = "minimize"
	CommandStatus   Command = "status"
	CommandServe    Command = "serve"
	CommandDevices  Command = "devices"
	CommandDoctor   Command = "doctor"
	CommandVersion  Command = "version"
	CommandHelp     Command = "help"
)

// RecordAction narrows the record command.
type RecordAction string

const (
	RecordToggle RecordAction = "toggle"
	RecordStart  RecordAction = "start"
	RecordStop   RecordAction = "stop"
)

var validCommands = map[Command]struct{}{
	CommandRun:      {},
	CommandSend:     {},
	CommandRecord:   {},
	CommandMinimize: {},
	CommandStatus:   {},
	CommandServe:    {},
	CommandDevices:  {},
	CommandDoctor:   {},
	CommandVersion:  {},
	CommandHelp:     {},
}

type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool
	// Text is the message for send, joined from the remaining arguments.
	Text   string
	Record RecordAction
	// Addr is the serve listen address; empty means the default.
	Addr string
	// Probe makes doctor contact the configured endpoints.
	Probe bool
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			if err := parseCommandArgs(&parsed, args[i+1:]); err != nil {
				return Parsed{}, err
			}
			return parsed, nil
		}
	}

	return parsed, nil
}

func parseCommandArgs(parsed *Parsed, rest []string) error {
	switch parsed.Command {
	case CommandSend:
		text := strings.TrimSpace(strings.Join(rest, " "))
		if text == "" {
			return errors.New("send requires message text")
		}
		parsed.Text = text
		return nil
	case CommandRecord:
		parsed.Record = RecordToggle
		switch len(rest) {
		case 0:
			return nil
		case 1:
			switch action := RecordAction(rest[0]); action {
			case RecordToggle, RecordStart, RecordStop:
				parsed.Record = action
				return nil
			default:
				return fmt.Errorf("record action must be start, stop or toggle, got %q", rest[0])
			}
		}
	case CommandServe:
		for j := 0; j < len(rest); j++ {
			if rest[j] != "--addr" {
				return fmt.Errorf("unexpected arguments after command %q", parsed.Command)
			}
			j++
			if j >= len(rest) || strings.TrimSpace(rest[j]) == "" {
				return errors.New("--addr requires an address")
			}
			parsed.Addr = rest[j]
		}
		return nil
	case CommandDoctor:
		for _, arg := range rest {
			if arg != "--probe" {
				return fmt.Errorf("unexpected arguments after command %q", parsed.Command)
			}
			parsed.Probe = true
		}
		return nil
	default:
		if len(rest) == 0 {
			return nil
		}
	}
	return fmt.Errorf("unexpected arguments after command %q", parsed.Command)
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command> [args]

Commands:
  run                    Open the chat widget in this terminal
  send TEXT...           Send a message through the running widget
  record [start|stop]    Toggle recording, or start and stop it in hold mode
  minimize               Minimize or restore the running widget
  status                 Print the running widget's state
  serve [--addr ADDR]    Run the local echo chat backend (default: 127.0.0.1:8787)
  devices                List available input devices
  doctor [--probe]       Run configuration and environment checks
  version                Print version information
  help                   Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/chatdock/config.jsonc)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
