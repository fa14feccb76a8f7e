package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"reverc/internal/client/display"
	"reverc/internal/client/session"
	"reverc/internal/server/core"
)

const defaultWaitTimeout = 60 * time.Second

func (r *Registry) registerArtifactCommands() {
	r.Register(&Command{
		Name:        "upload",
		ShortName:   "u",
		Description: "Upload C source as a candidate or cache artifact",
		Usage:       "upload <candidate|cache> <file.c>",
		Handler:     uploadHandler,
	})
	r.Register(&Command{
		Name:        "status",
		ShortName:   "s",
		Description: "Show pipeline status",
		Usage:       "status [class/id | archive/group/id]",
		Handler:     statusHandler,
	})
	r.Register(&Command{
		Name:        "wait",
		ShortName:   "w",
		Description: "Poll status until success or failure",
		Usage:       "wait [target] [timeout]",
		Handler:     waitHandler,
	})
	r.Register(&Command{
		Name:        "cleanup",
		ShortName:   "d",
		Description: "Delete an artifact, or only its source with 'code'",
		Usage:       "cleanup [class/id] [code]",
		Handler:     cleanupHandler,
	})
	r.Register(&Command{
		Name:        "archive",
		ShortName:   "a",
		Description: "Check whether an archive binary exists",
		Usage:       "archive <group> <id>",
		Handler:     archiveHandler,
	})
}

func uploadHandler(s *session.Session, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: upload <candidate|cache> <file.c>")
	}
	class := args[0]
	if class != string(core.ClassCandidate) && class != string(core.ClassCache) {
		return fmt.Errorf("class must be candidate or cache")
	}
	source, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}

	resp, err := s.Client.Upload(class, args[1], source)
	if err != nil {
		return err
	}
	s.Target = class + "/" + resp.CodeID
	fmt.Fprintf(s.Out, "%sUploaded: %s%s\n", display.Green, s.Target, display.Reset)
	return nil
}

func statusHandler(s *session.Session, args []string) error {
	target, err := s.ResolveTarget(args)
	if err != nil {
		return err
	}
	resp, err := s.Client.Status(target)
	if err != nil {
		return err
	}
	printStatus(s, target, resp)
	return nil
}

func waitHandler(s *session.Session, args []string) error {
	timeout := defaultWaitTimeout
	if n := len(args); n > 0 {
		if d, err := time.ParseDuration(args[n-1]); err == nil {
			timeout = d
			args = args[:n-1]
		}
	}
	target, err := s.ResolveTarget(args)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(timeout)
	last := ""
	for {
		resp, err := s.Client.Status(target)
		if err != nil {
			return err
		}
		if resp.Status != last {
			fmt.Fprintf(s.Out, "  %s\n", display.ColorForState(resp.Status))
			last = resp.Status
		}
		if resp.Status == string(core.StateSuccess) || resp.Status == string(core.StateFailed) {
			printStatus(s, target, resp)
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("still %s after %s", resp.Status, timeout)
		}
		time.Sleep(s.PollInterval)
	}
}

func cleanupHandler(s *session.Session, args []string) error {
	codeOnly := false
	if n := len(args); n > 0 && args[n-1] == "code" {
		codeOnly = true
		args = args[:n-1]
	}
	target, err := s.ResolveTarget(args)
	if err != nil {
		return err
	}
	class, id, ok := strings.Cut(target, "/")
	if !ok || class == string(core.ClassArchive) {
		return fmt.Errorf("archive artifacts are not cleaned through the API")
	}

	if err := s.Client.Cleanup(class, id, codeOnly); err != nil {
		return err
	}
	if codeOnly {
		fmt.Fprintf(s.Out, "%sSource removed: %s%s\n", display.Green, target, display.Reset)
		return nil
	}
	fmt.Fprintf(s.Out, "%sDeleted: %s%s\n", display.Green, target, display.Reset)
	s.Target = ""
	return nil
}

func archiveHandler(s *session.Session, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: archive <group> <id>")
	}
	exists, err := s.Client.ArchiveExists(args[0], args[1])
	if err != nil {
		return err
	}
	target := "archive/" + args[0] + "/" + args[1]
	if !exists {
		fmt.Fprintf(s.Out, "%s%s: not found%s\n", display.Red, target, display.Reset)
		return nil
	}
	s.Target = target
	fmt.Fprintf(s.Out, "%s%s: available%s\n", display.Green, target, display.Reset)
	return nil
}

func printStatus(s *session.Session, target string, resp *core.StatusResponse) {
	fmt.Fprintf(s.Out, "%s%s%s: %s\n", display.Cyan, target, display.Reset, display.ColorForState(resp.Status))
	if resp.FailedStage != "" {
		fmt.Fprintf(s.Out, "  Stage: %s\n", resp.FailedStage)
	}
	if resp.ErrorMessage != "" {
		fmt.Fprintf(s.Out, "  Error: %s\n", resp.ErrorMessage)
	}
	if resp.TestReturnValue != nil {
		fmt.Fprintf(s.Out, "  Test return value: %d\n", *resp.TestReturnValue)
	}
}
