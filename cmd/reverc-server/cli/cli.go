package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/lixenwraith/auth"
	"golang.org/x/term"

	"reverc/internal/server/storage"
)

// Run is the entry point for the db and admin mini-apps
func Run(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: db init|delete|query, admin hash")
	}

	switch args[0] {
	case "db":
		switch args[1] {
		case "init":
			return runInit(args[2:])
		case "delete":
			return runDelete(args[2:])
		case "query":
			return runQuery(args[2:], os.Stdout)
		}
		return fmt.Errorf("unknown db subcommand: %s", args[1])
	case "admin":
		if args[1] == "hash" {
			return runHash(args[2:], os.Stdout)
		}
		return fmt.Errorf("unknown admin subcommand: %s", args[1])
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func pathFlag(fs *flag.FlagSet) *string {
	return fs.String("path", "", "Database file path (required)")
}

func runInit(args []string) error {
	fs := flag.NewFlagSet("db init", flag.ContinueOnError)
	path := pathFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("database path required")
	}

	store, err := storage.NewStore(*path, false, nil)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	defer store.Close()

	if err := store.InitDB(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	fmt.Printf("Database initialized at: %s\n", *path)
	return nil
}

func runDelete(args []string) error {
	fs := flag.NewFlagSet("db delete", flag.ContinueOnError)
	path := pathFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("database path required")
	}

	store, err := storage.NewStore(*path, false, nil)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	if err := store.DeleteDB(); err != nil {
		return fmt.Errorf("failed to delete database: %w", err)
	}

	fmt.Printf("Database deleted: %s\n", *path)
	return nil
}

// runQuery lists the live invocation log
func runQuery(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("db query", flag.ContinueOnError)
	path := pathFlag(fs)
	class := fs.String("class", "", "Retention class to filter (optional, * for all)")
	id := fs.String("id", "", "Artifact ID to filter (optional, * for all)")
	limit := fs.Int("limit", 50, "Maximum rows, 0 for all")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("database path required")
	}

	store, err := storage.NewStore(*path, false, nil)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	recs, err := store.QueryInvocations(*class, *id, *limit)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	if len(recs) == 0 {
		fmt.Fprintln(out, "No invocations found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tArtifact\tSize\tTurn\tMove\tReturn\tElapsed\tResult\tTime")
	fmt.Fprintln(w, strings.Repeat("-", 100))

	for _, r := range recs {
		artifact := r.Class + "/" + r.ArtifactID
		if r.ArchiveGroup != "" {
			artifact = r.Class + "/" + r.ArchiveGroup + "/" + r.ArtifactID
		}
		result := "ok"
		switch {
		case r.TimedOut:
			result = "timeout"
		case r.Fault != "":
			result = "fault"
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t(%d,%d)\t%d\t%dus\t%s\t%s\n",
			r.InvocationID,
			artifact,
			r.BoardSize,
			r.Turn,
			r.Row, r.Col,
			r.ReturnValue,
			r.ElapsedMicros,
			result,
			r.InvokedAt.Format("2006-01-02 15:04:05"),
		)
	}
	w.Flush()

	fmt.Fprintf(out, "\nFound %d invocation(s)\n", len(recs))
	return nil
}

// runHash prints a PHC hash suitable for REVERC_ADMIN_HASH
func runHash(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("admin hash", flag.ContinueOnError)
	password := fs.String("password", "", "Admin password")
	interactive := fs.Bool("interactive", false, "Interactive password prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var pw string
	switch {
	case *interactive && *password != "":
		return fmt.Errorf("cannot use -interactive with -password")
	case *interactive:
		fmt.Fprint(out, "Enter password: ")
		pwBytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(out)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		pw = string(pwBytes)
	case *password != "":
		pw = *password
	default:
		return fmt.Errorf("password required: use -password or -interactive")
	}

	if len(pw) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	hash, err := auth.HashPassword(pw)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	fmt.Fprintln(out, hash)
	return nil
}
