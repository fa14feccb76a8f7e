// Package janitor enforces retention by deleting artifact files whose
// modification time is older than their class TTL.
package janitor

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"reverc/internal/server/artifact"
	"reverc/internal/server/core"
	"reverc/internal/server/metrics"
)

const (
	DefaultCandidateTTL = time.Hour
	DefaultCacheTTL     = 36 * time.Hour
	DefaultInterval     = 30 * time.Minute
)

// Exempt names are shipped alongside artifacts and are never swept
var Exempt = map[string]struct{}{
	".gitkeep":       {},
	"lab8part2.h":    {},
	"liblab8part2.h": {},
	"rvc_tools.c":    {},
	"rvc.h":          {},
}

// DefaultTTLs keeps archives forever
func DefaultTTLs() map[core.Class]time.Duration {
	return map[core.Class]time.Duration{
		core.ClassCandidate: DefaultCandidateTTL,
		core.ClassCache:     DefaultCacheTTL,
	}
}

// Report counts one sweep
type Report struct {
	Deleted int
	Errors  int
}

// Janitor sweeps the artifact store
type Janitor struct {
	store  *artifact.Store
	ttls   map[core.Class]time.Duration
	logger zerolog.Logger
}

// New creates a janitor; classes missing from ttls or with a non-positive
// TTL are never swept
func New(store *artifact.Store, ttls map[core.Class]time.Duration, logger *zerolog.Logger) *Janitor {
	if ttls == nil {
		ttls = DefaultTTLs()
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "janitor").Logger()
	}
	return &Janitor{store: store, ttls: ttls, logger: l}
}

// Sweep deletes every expired regular file. Errors are logged and skipped;
// a file in use by a running job may be removed and the job then fails.
func (j *Janitor) Sweep(now time.Time) Report {
	var rep Report
	for _, class := range core.Classes {
		ttl, ok := j.ttls[class]
		if !ok || ttl <= 0 {
			continue
		}
		for _, kind := range artifact.Kinds {
			j.sweepDir(j.store.ClassDir(class, kind), class, kind, now, ttl, &rep)
		}
	}
	if rep.Deleted > 0 {
		j.logger.Info().Int("deleted", rep.Deleted).Int("errors", rep.Errors).Msg("sweep finished")
	}
	return rep
}

func (j *Janitor) sweepDir(dir string, class core.Class, kind artifact.Kind, now time.Time, ttl time.Duration, rep *Report) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if !os.IsNotExist(err) {
				j.logger.Debug().Err(err).Str("path", path).Msg("sweep walk error")
				rep.Errors++
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if _, skip := Exempt[d.Name()]; skip {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if now.Sub(info.ModTime()) <= ttl {
			return nil
		}
		if err := os.Remove(path); err != nil {
			if !os.IsNotExist(err) {
				j.logger.Debug().Err(err).Str("path", path).Msg("sweep delete failed")
				rep.Errors++
			}
			return nil
		}
		rep.Deleted++
		metrics.JanitorDeletions.WithLabelValues(class.String(), kind.String()).Inc()
		return nil
	})
}

// Run sweeps once immediately and then every interval until ctx is done
func (j *Janitor) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	j.Sweep(time.Now())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			j.Sweep(now)
		}
	}
}
