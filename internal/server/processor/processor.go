// Package processor runs the upload pipeline (validate, compile, screen)
// on a background worker pool and serves live move requests for artifacts
// that passed screening.
package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"reverc/internal/server/artifact"
	"reverc/internal/server/board"
	"reverc/internal/server/core"
	"reverc/internal/server/metrics"
	"reverc/internal/server/mover"
	"reverc/internal/server/sandbox"
	"reverc/internal/server/status"
	"reverc/internal/server/storage"
)

var (
	ErrNotFound        = errors.New("artifact not found")
	ErrNotReady        = errors.New("artifact has not passed screening")
	ErrClassNotAllowed = errors.New("class not accepted for upload")
)

// Compiler builds source into a shared object
type Compiler interface {
	Compile(ctx context.Context, sourcePath, outputPath string) error
}

// Tester screens a compiled artifact
type Tester interface {
	Run(ctx context.Context, ref artifact.Ref) sandbox.Verdict
}

// MoveInvoker asks a compiled artifact for a live move
type MoveInvoker interface {
	Invoke(ctx context.Context, ref artifact.Ref, b *board.Board, turn board.Cell, timeout time.Duration) (mover.Result, error)
}

// InvocationRecorder receives one record per live call; it must not block
type InvocationRecorder interface {
	RecordInvocation(rec storage.InvocationRecord) error
}

// Options tunes the pool and live budget
type Options struct {
	Workers     int
	QueueSize   int
	MoveTimeout time.Duration
}

// Deps are the collaborators a processor drives
type Deps struct {
	Store    *artifact.Store
	Tracker  *status.Tracker
	Compiler Compiler
	Tester   Tester
	Mover    MoveInvoker
	Recorder InvocationRecorder // optional
	Logger   *zerolog.Logger
}

// Processor coordinates the artifact pipeline
type Processor struct {
	store       *artifact.Store
	tracker     *status.Tracker
	compiler    Compiler
	tester      Tester
	mover       MoveInvoker
	recorder    InvocationRecorder
	queue       *JobQueue
	moveTimeout time.Duration
	logger      zerolog.Logger
	newID       func() string
}

// New creates a processor and starts its worker pool
func New(deps Deps, opts Options) *Processor {
	l := zerolog.Nop()
	if deps.Logger != nil {
		l = deps.Logger.With().Str("component", "processor").Logger()
	}
	if opts.MoveTimeout <= 0 {
		opts.MoveTimeout = mover.DefaultTimeout
	}

	p := &Processor{
		store:       deps.Store,
		tracker:     deps.Tracker,
		compiler:    deps.Compiler,
		tester:      deps.Tester,
		mover:       deps.Mover,
		recorder:    deps.Recorder,
		moveTimeout: opts.MoveTimeout,
		logger:      l,
		newID:       uuid.NewString,
	}
	p.queue = NewJobQueue(opts.Workers, opts.QueueSize, p.process, l)
	return p
}

// Upload stores source under a fresh id, records Uploading and queues the
// pipeline. It returns before any compilation happens.
func (p *Processor) Upload(class core.Class, source []byte) (string, error) {
	if class != core.ClassCandidate && class != core.ClassCache {
		return "", fmt.Errorf("%w: %s", ErrClassNotAllowed, class)
	}

	id := p.newID()
	ref := artifact.NewRef(class, id)

	if err := p.store.Put(ref, artifact.KindSource, source); err != nil {
		return "", fmt.Errorf("store source: %w", err)
	}
	if err := p.tracker.Save(ref, status.Uploading()); err != nil {
		p.store.Delete(ref, artifact.KindSource)
		return "", fmt.Errorf("record status: %w", err)
	}

	if err := p.queue.Submit(Job{Ref: ref, Enqueued: time.Now()}); err != nil {
		p.store.Delete(ref, artifact.KindSource)
		p.tracker.Delete(ref)
		metrics.UploadsTotal.WithLabelValues(class.String(), "rejected").Inc()
		p.logger.Warn().Str("ref", ref.String()).Err(err).Msg("upload rejected")
		return "", err
	}

	metrics.UploadsTotal.WithLabelValues(class.String(), "queued").Inc()
	p.logger.Info().Str("ref", ref.String()).Int("bytes", len(source)).Msg("upload queued")
	return id, nil
}

// process runs one job to a terminal state. A failed transition means the
// artifact was cleaned up underneath us and the job stops.
func (p *Processor) process(ctx context.Context, job Job) {
	ref := job.Ref
	log := p.logger.With().Str("ref", ref.String()).Logger()
	class := ref.Class.String()

	if err := p.tracker.Advance(ref, status.Compiling()); err != nil {
		log.Warn().Err(err).Msg("job aborted before compile")
		metrics.PipelineOutcomes.WithLabelValues(class, "aborted").Inc()
		return
	}

	src, err := p.store.Path(ref, artifact.KindSource)
	if err != nil {
		log.Error().Err(err).Msg("bad artifact reference")
		return
	}
	bin, err := p.store.Path(ref, artifact.KindBinary)
	if err != nil {
		log.Error().Err(err).Msg("bad artifact reference")
		return
	}

	start := time.Now()
	cerr := p.compiler.Compile(ctx, src, bin)
	metrics.CompileDuration.Observe(float64(time.Since(start).Milliseconds()))
	if ctx.Err() != nil {
		log.Warn().Msg("job interrupted by shutdown")
		return
	}
	if cerr != nil {
		msg := cerr.Error()
		if !isCompileFailure(cerr) {
			msg = "compile failed: " + msg
		}
		p.finish(log, ref, status.Failed(status.StageCompiling, msg), "failed_compiling")
		return
	}

	if err := p.tracker.Advance(ref, status.Testing()); err != nil {
		log.Warn().Err(err).Msg("job aborted before test")
		metrics.PipelineOutcomes.WithLabelValues(class, "aborted").Inc()
		return
	}

	verdict := p.tester.Run(ctx, ref)
	if ctx.Err() != nil {
		log.Warn().Msg("job interrupted by shutdown")
		return
	}
	sandboxOutcome(verdict)

	if !verdict.Accepted {
		p.finish(log, ref, status.Failed(status.StageTesting, verdict.Message), "failed_testing")
		return
	}
	rv := 0
	if verdict.ReturnValue != nil {
		rv = *verdict.ReturnValue
	}
	p.finish(log, ref, status.Succeeded(rv), "success")
}

func (p *Processor) finish(log zerolog.Logger, ref artifact.Ref, rec status.Record, outcome string) {
	if err := p.tracker.Advance(ref, rec); err != nil {
		log.Warn().Err(err).Msg("could not record final status")
		metrics.PipelineOutcomes.WithLabelValues(ref.Class.String(), "aborted").Inc()
		return
	}
	metrics.PipelineOutcomes.WithLabelValues(ref.Class.String(), outcome).Inc()
	ev := log.Info().Str("status", rec.State.String())
	if rec.ErrorMessage != "" {
		ev = ev.Str("error", rec.ErrorMessage)
	}
	ev.Msg("pipeline finished")
}

func sandboxOutcome(v sandbox.Verdict) {
	outcome := "completed"
	switch v.Reason {
	case sandbox.ReasonTimeout:
		outcome = "timed_out"
	case sandbox.ReasonRuntimeFault:
		outcome = "faulted"
	case sandbox.ReasonNotFound:
		return
	}
	metrics.InvocationOutcomes.WithLabelValues("sandbox", outcome).Inc()
}

// Status returns the current record
func (p *Processor) Status(ref artifact.Ref) (status.Record, error) {
	rec, err := p.tracker.Load(ref)
	if errors.Is(err, status.ErrNotFound) {
		return status.Record{}, fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	return rec, err
}

// Cleanup deletes the source, and unless codeOnly also the binary and the
// status. Deleting what is already gone succeeds.
func (p *Processor) Cleanup(ref artifact.Ref, codeOnly bool) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	if err := p.store.Delete(ref, artifact.KindSource); err != nil {
		return err
	}
	if codeOnly {
		return nil
	}
	if err := p.store.Delete(ref, artifact.KindBinary); err != nil {
		return err
	}
	return p.tracker.Delete(ref)
}

// ArchiveExists reports whether a curated artifact has a binary
func (p *Processor) ArchiveExists(group, id string) (bool, error) {
	return p.store.Exists(artifact.ArchiveRef(group, id), artifact.KindBinary)
}

// StoreArchive writes curated source and compiles it synchronously
func (p *Processor) StoreArchive(ctx context.Context, group, id string, source []byte) (status.Record, error) {
	ref := artifact.ArchiveRef(group, id)
	if err := p.store.Put(ref, artifact.KindSource, source); err != nil {
		return status.Record{}, err
	}
	return p.CompileArchive(ctx, group, id)
}

// CompileArchive runs the full pipeline for an archive source in the
// calling goroutine and returns the terminal record
func (p *Processor) CompileArchive(ctx context.Context, group, id string) (status.Record, error) {
	ref := artifact.ArchiveRef(group, id)
	ok, err := p.store.Exists(ref, artifact.KindSource)
	if err != nil {
		return status.Record{}, err
	}
	if !ok {
		return status.Record{}, fmt.Errorf("%s source: %w", ref, ErrNotFound)
	}
	if err := p.tracker.Save(ref, status.Uploading()); err != nil {
		return status.Record{}, err
	}

	p.process(ctx, Job{Ref: ref, Enqueued: time.Now()})

	if err := ctx.Err(); err != nil {
		return status.Record{}, err
	}
	return p.tracker.Load(ref)
}

// Move invokes a screened artifact on a live position
func (p *Processor) Move(ctx context.Context, ref artifact.Ref, b *board.Board, turn board.Cell) (mover.Result, error) {
	rec, err := p.Status(ref)
	if err != nil {
		return mover.Result{}, err
	}
	if rec.State != core.StateSuccess {
		return mover.Result{}, fmt.Errorf("%s is %s: %w", ref, rec.State, ErrNotReady)
	}

	res, err := p.mover.Invoke(ctx, ref, b, turn, p.moveTimeout)
	if err != nil {
		if errors.Is(err, mover.ErrNotFound) {
			return mover.Result{}, fmt.Errorf("%s binary: %w", ref, ErrNotFound)
		}
		return mover.Result{}, err
	}

	outcome := "completed"
	switch {
	case res.TimedOut:
		outcome = "timed_out"
	case res.Fault != "":
		outcome = "faulted"
	default:
		metrics.InvocationDuration.WithLabelValues("live").Observe(float64(res.Elapsed.Microseconds()))
	}
	metrics.InvocationOutcomes.WithLabelValues("live", outcome).Inc()

	if p.recorder != nil {
		_ = p.recorder.RecordInvocation(storage.InvocationRecord{
			Class:         ref.Class.String(),
			ArchiveGroup:  ref.Group,
			ArtifactID:    ref.ID,
			BoardSize:     b.Size(),
			Turn:          string(turn),
			Row:           res.Row,
			Col:           res.Col,
			ReturnValue:   res.Return,
			ElapsedMicros: res.Elapsed.Microseconds(),
			TimedOut:      res.TimedOut,
			Fault:         res.Fault,
			InvokedAt:     time.Now().UTC(),
		})
	}
	return res, nil
}

// QueueLen reports jobs waiting for a worker
func (p *Processor) QueueLen() int {
	return p.queue.Len()
}

// Close stops the worker pool
func (p *Processor) Close() error {
	return p.queue.Shutdown(5 * time.Second)
}
