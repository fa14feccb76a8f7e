package commands

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"golang.org/x/term"

	"reverc/internal/client/display"
	"reverc/internal/client/session"
)

// readPassword is swapped in tests
var readPassword = func() (string, error) {
	pw, err := term.ReadPassword(int(syscall.Stdin))
	return string(pw), err
}

func (r *Registry) registerAdminCommands() {
	r.Register(&Command{
		Name:        "login",
		ShortName:   "l",
		Description: "Log in as the archive curator",
		Usage:       "login [password]",
		Handler:     loginHandler,
	})
	r.Register(&Command{
		Name:        "publish",
		ShortName:   "b",
		Description: "Compile and store curated source in the archive",
		Usage:       "publish <group> <id> <file.c>",
		Handler:     publishHandler,
	})
}

func loginHandler(s *session.Session, args []string) error {
	var password string
	if len(args) > 0 {
		password = args[0]
	} else {
		fmt.Fprint(s.Out, display.Yellow+"Password: "+display.Reset)
		pw, err := readPassword()
		fmt.Fprintln(s.Out)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = pw
	}

	resp, err := s.Client.AdminLogin(password)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.Out, "%sLogged in, token expires %s%s\n",
		display.Green, time.Unix(resp.ExpiresAt, 0).Format("2006-01-02 15:04:05"), display.Reset)
	return nil
}

func publishHandler(s *session.Session, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: publish <group> <id> <file.c>")
	}
	if s.Client.AuthToken == "" {
		return fmt.Errorf("not logged in")
	}
	source, err := os.ReadFile(args[2])
	if err != nil {
		return err
	}

	target := "archive/" + args[0] + "/" + args[1]
	resp, err := s.Client.PublishArchive(args[0], args[1], args[2], source)
	if err != nil {
		return err
	}
	s.Target = target
	printStatus(s, target, resp)
	return nil
}
