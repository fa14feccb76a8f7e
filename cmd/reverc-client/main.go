// Package main implements an interactive debugging client for the ReverC API.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"reverc/internal/client/commands"
	"reverc/internal/client/display"
	"reverc/internal/client/session"
)

func main() {
	apiURL := flag.String("api", session.DefaultAPIBaseURL, "ReverC API base URL")
	flag.Parse()

	s := session.New(*apiURL)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          display.Prompt("reverc"),
		HistoryFile:     ".reverc_history",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Printf("%s%s%s\n", display.Red, err.Error(), display.Reset)
		os.Exit(1)
	}
	defer rl.Close()

	fmt.Printf("%sReverC Debug Client%s\n", display.Cyan, display.Reset)
	fmt.Printf("%sAPI: %s%s\n", display.Cyan, s.APIBaseURL, display.Reset)
	fmt.Printf("Type 'help' for commands\n\n")

	done := false
	registry := commands.NewRegistry(s)
	registry.Exit = func() { done = true }

	for !done {
		rl.SetPrompt(buildPrompt(s))

		line, err := rl.Readline()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "quit" {
			break
		}

		if strings.HasSuffix(line, " -v") {
			s.Verbose = true
			line = strings.TrimSuffix(line, " -v")
		} else {
			s.Verbose = false
		}

		registry.Execute(line)
	}
}

func buildPrompt(s *session.Session) string {
	prompt := "reverc"
	if s.Target != "" {
		prompt += display.Yellow + " [" + display.Reset + display.White + s.Target + display.Reset + display.Yellow + "]"
	}
	if s.Client.AuthToken != "" {
		prompt += display.Magenta + " admin" + display.Reset
	}
	if !s.GameOver() {
		prompt += fmt.Sprintf(" - Turn:%s", display.ColorForTurn(string(s.Turn)))
	}
	return display.Prompt(prompt)
}
