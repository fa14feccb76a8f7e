// Package config assembles server settings from defaults, an optional .env
// file, the process environment and command-line flags, in that order.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/lixenwraith/auth"
	"github.com/rs/zerolog"

	"reverc/internal/server/core"
	"reverc/internal/server/janitor"
	"reverc/internal/server/opponent"
)

const (
	DefaultWorkers        = 4
	DefaultQueueSize      = 256
	DefaultCompileTimeout = 30 * time.Second
	DefaultCompileMemKB   = 512 << 10
	DefaultSandboxTimeout = 60 * time.Second
	DefaultMoveTimeout    = 3 * time.Second

	// RunnerSubcommand is appended to the runner path when the server
	// re-executes itself to host a native call
	RunnerSubcommand = "invoke"

	devJWTSecret = "dev-secret-minimum-32-characters-long"
)

// Config is built once in main and passed down by pointer
type Config struct {
	DataDir   string
	DBPath    string
	NoStorage bool
	APIHost   string
	APIPort   int
	Dev       bool
	LogLevel  string
	PIDPath   string
	PIDLock   bool

	Workers   int
	QueueSize int

	CompilerPath   string
	IncludeDir     string
	CompileMemKB   int
	CompileTimeout time.Duration

	SandboxTimeout time.Duration
	MoveTimeout    time.Duration

	CandidateTTL  time.Duration
	CacheTTL      time.Duration
	ArchiveTTL    time.Duration
	SweepInterval time.Duration

	RunnerPath string

	AdminHash string
	JWTSecret string

	Providers []opponent.ProviderConfig
}

// Default returns the settings used when nothing overrides them
func Default() *Config {
	return &Config{
		DataDir:        "data",
		APIHost:        "localhost",
		APIPort:        8080,
		LogLevel:       "info",
		Workers:        DefaultWorkers,
		QueueSize:      DefaultQueueSize,
		CompilerPath:   "gcc",
		CompileMemKB:   DefaultCompileMemKB,
		CompileTimeout: DefaultCompileTimeout,
		SandboxTimeout: DefaultSandboxTimeout,
		MoveTimeout:    DefaultMoveTimeout,
		CandidateTTL:   janitor.DefaultCandidateTTL,
		CacheTTL:       janitor.DefaultCacheTTL,
		SweepInterval:  janitor.DefaultInterval,
	}
}

// Load runs the full chain. A missing envFile is not an error.
func Load(args []string, envFile string) (*Config, error) {
	return LoadWith("reverc-server", args, envFile, nil)
}

// LoadWith is Load for subcommands that add their own flags through
// register
func LoadWith(name string, args []string, envFile string, register func(*flag.FlagSet)) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := Default()
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	cfg.RegisterFlags(fs)
	if register != nil {
		register(fs)
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays REVERC_* variables and the AI provider table
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	e := envReader{lookup: lookup}

	e.str("REVERC_DATA_DIR", &c.DataDir)
	e.str("REVERC_DB_PATH", &c.DBPath)
	e.boolean("REVERC_NO_STORAGE", &c.NoStorage)
	e.str("REVERC_API_HOST", &c.APIHost)
	e.integer("REVERC_API_PORT", &c.APIPort)
	e.boolean("REVERC_DEV", &c.Dev)
	e.str("REVERC_LOG_LEVEL", &c.LogLevel)
	e.str("REVERC_PID", &c.PIDPath)

	e.integer("REVERC_WORKERS", &c.Workers)
	e.integer("REVERC_QUEUE_SIZE", &c.QueueSize)

	e.str("REVERC_CC", &c.CompilerPath)
	e.str("REVERC_INCLUDE_DIR", &c.IncludeDir)
	e.integer("REVERC_COMPILE_MEMORY_KB", &c.CompileMemKB)
	e.duration("REVERC_COMPILE_TIMEOUT", &c.CompileTimeout)

	e.duration("REVERC_SANDBOX_TIMEOUT", &c.SandboxTimeout)
	e.duration("REVERC_MOVE_TIMEOUT", &c.MoveTimeout)

	e.duration("REVERC_CANDIDATE_TTL", &c.CandidateTTL)
	e.duration("REVERC_CACHE_TTL", &c.CacheTTL)
	e.duration("REVERC_ARCHIVE_TTL", &c.ArchiveTTL)
	e.duration("REVERC_SWEEP_INTERVAL", &c.SweepInterval)

	e.str("REVERC_RUNNER", &c.RunnerPath)
	e.str("REVERC_ADMIN_HASH", &c.AdminHash)
	e.str("REVERC_JWT_SECRET", &c.JWTSecret)

	if ids, ok := lookup("AI_PROVIDERS"); ok {
		c.Providers = nil
		for _, id := range strings.Split(ids, ",") {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			c.Providers = append(c.Providers, e.provider(id))
		}
	}

	return e.err
}

// RegisterFlags binds every flag with the current value as default, so
// flags override whatever ApplyEnv loaded
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.DataDir, "data", c.DataDir, "Artifact root directory")
	fs.StringVar(&c.DBPath, "storage-path", c.DBPath, "Path to SQLite database file (default <data>/reverc.db)")
	fs.BoolVar(&c.NoStorage, "no-storage", c.NoStorage, "Disable persistence (setup, stats and invocation log)")
	fs.StringVar(&c.APIHost, "api-host", c.APIHost, "API server host")
	fs.IntVar(&c.APIPort, "api-port", c.APIPort, "API server port")
	fs.BoolVar(&c.Dev, "dev", c.Dev, "Development mode (relaxed rate limits, console logs)")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&c.PIDPath, "pid", c.PIDPath, "Optional path to write PID file")
	fs.BoolVar(&c.PIDLock, "pid-lock", c.PIDLock, "Lock PID file to allow only one instance (requires -pid)")

	fs.IntVar(&c.Workers, "workers", c.Workers, "Pipeline worker count")
	fs.IntVar(&c.QueueSize, "queue", c.QueueSize, "Pipeline queue capacity")

	fs.StringVar(&c.CompilerPath, "cc", c.CompilerPath, "C compiler executable")
	fs.StringVar(&c.IncludeDir, "include", c.IncludeDir, "Header directory passed to the compiler")
	fs.IntVar(&c.CompileMemKB, "compile-mem-kb", c.CompileMemKB, "Compiler virtual memory ceiling in KiB (0 disables)")
	fs.DurationVar(&c.CompileTimeout, "compile-timeout", c.CompileTimeout, "Compiler wall clock limit")

	fs.DurationVar(&c.SandboxTimeout, "sandbox-timeout", c.SandboxTimeout, "Sandbox test call limit")
	fs.DurationVar(&c.MoveTimeout, "move-timeout", c.MoveTimeout, "Live move call limit")

	fs.DurationVar(&c.CandidateTTL, "candidate-ttl", c.CandidateTTL, "Candidate retention")
	fs.DurationVar(&c.CacheTTL, "cache-ttl", c.CacheTTL, "Cache retention")
	fs.DurationVar(&c.ArchiveTTL, "archive-ttl", c.ArchiveTTL, "Archive retention (0 keeps forever)")
	fs.DurationVar(&c.SweepInterval, "sweep-interval", c.SweepInterval, "Janitor period")

	fs.StringVar(&c.RunnerPath, "runner", c.RunnerPath, "Executable hosting native calls (default: this binary)")
}

// Finalize fills derived values and validates the result
func (c *Config) Finalize() error {
	if c.DBPath == "" && !c.NoStorage {
		c.DBPath = filepath.Join(c.DataDir, "reverc.db")
	}
	if c.NoStorage {
		c.DBPath = ""
	}
	if c.RunnerPath == "" {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("resolve runner path: %w", err)
		}
		c.RunnerPath = exe
	}
	if c.JWTSecret == "" && c.Dev {
		c.JWTSecret = devJWTSecret
	}
	return c.Validate()
}

func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data directory required")
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("invalid api port %d", c.APIPort)
	}
	if c.PIDLock && c.PIDPath == "" {
		return errors.New("-pid-lock flag requires the -pid flag to be set")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("queue size must be at least 1, got %d", c.QueueSize)
	}
	if c.CompileMemKB < 0 {
		return errors.New("compile memory limit must not be negative")
	}
	for name, d := range map[string]time.Duration{
		"compile timeout": c.CompileTimeout,
		"sandbox timeout": c.SandboxTimeout,
		"move timeout":    c.MoveTimeout,
		"sweep interval":  c.SweepInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	if c.AdminHash != "" {
		if err := auth.ValidatePHCHashFormat(c.AdminHash); err != nil {
			return fmt.Errorf("invalid admin hash: %w", err)
		}
	}
	// empty means a random per-process secret
	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		return errors.New("JWT secret must be at least 32 bytes")
	}
	seen := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if seen[p.ID] {
			return fmt.Errorf("duplicate AI provider %q", p.ID)
		}
		seen[p.ID] = true
		if p.Model == "" {
			return fmt.Errorf("AI provider %q has no model", p.ID)
		}
	}
	return nil
}

// TTLs maps classes to retention; zero entries are never swept
func (c *Config) TTLs() map[core.Class]time.Duration {
	return map[core.Class]time.Duration{
		core.ClassCandidate: c.CandidateTTL,
		core.ClassCache:     c.CacheTTL,
		core.ClassArchive:   c.ArchiveTTL,
	}
}

// Addr is the API listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.APIHost, c.APIPort)
}

type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.lookup(key); ok {
		*dst = v
	}
}

func (e *envReader) integer(key string, dst *int) {
	v, ok := e.lookup(key)
	if !ok || e.err != nil {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		e.err = fmt.Errorf("%s: %w", key, err)
		return
	}
	*dst = n
}

func (e *envReader) boolean(key string, dst *bool) {
	v, ok := e.lookup(key)
	if !ok || e.err != nil {
		return
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		e.err = fmt.Errorf("%s: %w", key, err)
		return
	}
	*dst = b
}

func (e *envReader) duration(key string, dst *time.Duration) {
	v, ok := e.lookup(key)
	if !ok || e.err != nil {
		return
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		e.err = fmt.Errorf("%s: %w", key, err)
		return
	}
	*dst = d
}

func (e *envReader) float(key string, dst *float64) {
	v, ok := e.lookup(key)
	if !ok || e.err != nil {
		return
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		e.err = fmt.Errorf("%s: %w", key, err)
		return
	}
	*dst = f
}

// provider reads AI_<ID>_KEY, _BASE_URL, _MODEL and _RPS; the id is upper
// cased with dashes turned into underscores
func (e *envReader) provider(id string) opponent.ProviderConfig {
	prefix := "AI_" + strings.ToUpper(strings.ReplaceAll(id, "-", "_")) + "_"
	p := opponent.ProviderConfig{ID: id}
	e.str(prefix+"KEY", &p.APIKey)
	e.str(prefix+"BASE_URL", &p.BaseURL)
	e.str(prefix+"MODEL", &p.Model)
	e.float(prefix+"RPS", &p.RPS)
	e.duration(prefix+"TIMEOUT", &p.Timeout)
	return p
}
