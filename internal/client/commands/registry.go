package commands

import (
	"fmt"
	"strings"

	"reverc/internal/client/display"
	"reverc/internal/client/session"
)

// Command defines a client command with its handler
type Command struct {
	Name        string
	ShortName   string
	Description string
	Usage       string
	Handler     func(*session.Session, []string) error
}

// Registry manages command registration and execution
type Registry struct {
	session  *session.Session
	commands map[string]*Command
	groups   []group

	// Exit is called by the exit command; main closes the REPL
	Exit func()
}

type group struct {
	title string
	names []string
}

func NewRegistry(s *session.Session) *Registry {
	r := &Registry{
		session:  s,
		commands: make(map[string]*Command),
		Exit:     func() {},
	}

	r.registerArtifactCommands()
	r.registerGameCommands()
	r.registerAdminCommands()
	r.registerDebugCommands()

	r.Register(&Command{
		Name:        "help",
		ShortName:   "?",
		Description: "Show available commands",
		Usage:       "help [command]",
		Handler:     r.helpHandler,
	})
	r.Register(&Command{
		Name:        "exit",
		ShortName:   "x",
		Description: "Exit the client",
		Usage:       "exit",
		Handler: func(s *session.Session, _ []string) error {
			fmt.Fprintf(s.Out, "%sGoodbye!%s\n", display.Cyan, display.Reset)
			r.Exit()
			return nil
		},
	})

	r.groups = []group{
		{"Artifact Commands", []string{"upload", "status", "wait", "cleanup", "archive"}},
		{"Game Commands", []string{"new", "show", "move", "ai", "place", "stats"}},
		{"Admin Commands", []string{"login", "publish"}},
		{"Utility Commands", []string{"health", "url", "raw", "clear", "help", "exit"}},
	}
	return r
}

func (r *Registry) Register(cmd *Command) {
	r.commands[cmd.Name] = cmd
	if cmd.ShortName != "" {
		r.commands[cmd.ShortName] = cmd
	}
}

// Execute runs one input line; handler errors are printed, not returned
func (r *Registry) Execute(input string) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return
	}
	out := r.session.Out

	cmd, exists := r.commands[parts[0]]
	if !exists {
		fmt.Fprintf(out, "%sUnknown command: %s%s\n", display.Red, parts[0], display.Reset)
		fmt.Fprintf(out, "Type 'help' for available commands\n")
		return
	}

	r.session.Client.SetVerbose(r.session.Verbose)

	if err := cmd.Handler(r.session, parts[1:]); err != nil {
		fmt.Fprintf(out, "%sError: %s%s\n", display.Red, err.Error(), display.Reset)
	}
}

func (r *Registry) helpHandler(s *session.Session, args []string) error {
	out := s.Out
	if len(args) > 0 {
		cmd, exists := r.commands[args[0]]
		if !exists {
			return fmt.Errorf("unknown command: %s", args[0])
		}
		fmt.Fprintf(out, "\n%s%s%s - %s\n", display.Cyan, cmd.Name, display.Reset, cmd.Description)
		if cmd.ShortName != "" {
			fmt.Fprintf(out, "Short form: %s%s%s\n", display.Cyan, cmd.ShortName, display.Reset)
		}
		fmt.Fprintf(out, "Usage: %s\n", cmd.Usage)
		return nil
	}

	fmt.Fprintf(out, "\n%sAvailable Commands:%s\n", display.Cyan, display.Reset)
	for _, g := range r.groups {
		fmt.Fprintf(out, "\n%s%s:%s\n", display.Yellow, g.title, display.Reset)
		for _, name := range g.names {
			cmd, ok := r.commands[name]
			if !ok {
				continue
			}
			short := "    "
			if cmd.ShortName != "" {
				short = fmt.Sprintf("[%s%s%s] ", display.Cyan, cmd.ShortName, display.Reset)
			}
			fmt.Fprintf(out, "  %s%-10s %s\n", short, cmd.Name, cmd.Description)
		}
	}

	fmt.Fprintf(out, "\nType 'help <command>' for detailed usage\n")
	fmt.Fprintf(out, "Add '-v' to any command for verbose output\n")
	return nil
}

