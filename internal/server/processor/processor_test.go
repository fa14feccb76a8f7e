package processor

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reverc/internal/server/artifact"
	"reverc/internal/server/board"
	"reverc/internal/server/compiler"
	"reverc/internal/server/core"
	"reverc/internal/server/mover"
	"reverc/internal/server/sandbox"
	"reverc/internal/server/status"
	"reverc/internal/server/storage"
)

type fakeCompiler struct {
	err   error
	block chan struct{}
}

func (f *fakeCompiler) Compile(ctx context.Context, src, out string) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(out, []byte("so"), 0o644)
}

type fakeTester struct {
	verdict sandbox.Verdict
}

func (f *fakeTester) Run(ctx context.Context, ref artifact.Ref) sandbox.Verdict {
	return f.verdict
}

type fakeMover struct {
	result mover.Result
	err    error
	calls  int
}

func (f *fakeMover) Invoke(ctx context.Context, ref artifact.Ref, b *board.Board, turn board.Cell, timeout time.Duration) (mover.Result, error) {
	f.calls++
	return f.result, f.err
}

type fakeRecorder struct {
	mu   sync.Mutex
	recs []storage.InvocationRecord
}

func (f *fakeRecorder) RecordInvocation(rec storage.InvocationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append(f.recs, rec)
	return nil
}

const src = "int makeMove(const char b[][26], int n, char t, int *r, int *c) { *r = 2; *c = 3; return 0; }\n"

func accepted(rv int) sandbox.Verdict {
	return sandbox.Verdict{Accepted: true, ReturnValue: &rv}
}

type fixture struct {
	proc     *Processor
	store    *artifact.Store
	tracker  *status.Tracker
	comp     *fakeCompiler
	tester   *fakeTester
	mover    *fakeMover
	recorder *fakeRecorder
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	store, err := artifact.NewStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.EnsureLayout())

	f := &fixture{
		store:    store,
		tracker:  status.NewTracker(store),
		comp:     &fakeCompiler{},
		tester:   &fakeTester{verdict: accepted(0)},
		mover:    &fakeMover{},
		recorder: &fakeRecorder{},
	}
	f.proc = New(Deps{
		Store:    store,
		Tracker:  f.tracker,
		Compiler: f.comp,
		Tester:   f.tester,
		Mover:    f.mover,
		Recorder: f.recorder,
	}, opts)
	t.Cleanup(func() { f.proc.Close() })
	return f
}

func (f *fixture) waitTerminal(t *testing.T, ref artifact.Ref) status.Record {
	t.Helper()
	var rec status.Record
	require.Eventually(t, func() bool {
		r, err := f.tracker.Load(ref)
		if err != nil {
			return false
		}
		rec = r
		return status.IsTerminal(r.State)
	}, 5*time.Second, 10*time.Millisecond)
	return rec
}

func TestUploadSuccessPipeline(t *testing.T) {
	f := newFixture(t, Options{})
	f.tester.verdict = accepted(17)

	id, err := f.proc.Upload(core.ClassCandidate, []byte(src))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	ref := artifact.NewRef(core.ClassCandidate, id)
	rec := f.waitTerminal(t, ref)
	assert.Equal(t, core.StateSuccess, rec.State)
	require.NotNil(t, rec.TestReturnValue)
	assert.Equal(t, 17, *rec.TestReturnValue)

	ok, err := f.store.Exists(ref, artifact.KindBinary)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUploadRejectsArchiveClass(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.proc.Upload(core.ClassArchive, []byte(src))
	assert.ErrorIs(t, err, ErrClassNotAllowed)
}

func TestCompileFailureRecorded(t *testing.T) {
	f := newFixture(t, Options{})
	f.comp.err = &compiler.Failure{Kind: compiler.KindValidation, Diagnostic: `forbidden token "fork"`}

	id, err := f.proc.Upload(core.ClassCache, []byte(src))
	require.NoError(t, err)

	rec := f.waitTerminal(t, artifact.NewRef(core.ClassCache, id))
	assert.Equal(t, core.StateFailed, rec.State)
	assert.Equal(t, status.StageCompiling, rec.FailedStage)
	assert.Contains(t, rec.ErrorMessage, "validation failed")
	assert.Nil(t, rec.TestReturnValue)
}

func TestTestFailureRecorded(t *testing.T) {
	f := newFixture(t, Options{})
	f.tester.verdict = sandbox.Verdict{Reason: sandbox.ReasonTimeout, Message: "timeout: test execution exceeded 1m0s"}

	id, err := f.proc.Upload(core.ClassCandidate, []byte(src))
	require.NoError(t, err)

	rec := f.waitTerminal(t, artifact.NewRef(core.ClassCandidate, id))
	assert.Equal(t, core.StateFailed, rec.State)
	assert.Equal(t, status.StageTesting, rec.FailedStage)
	assert.Contains(t, rec.ErrorMessage, "timeout")
}

func TestQueueFullRemovesFiles(t *testing.T) {
	f := newFixture(t, Options{Workers: 1, QueueSize: 1})
	f.comp.block = make(chan struct{})
	defer close(f.comp.block)

	// First job occupies the worker, second fills the queue
	first, err := f.proc.Upload(core.ClassCandidate, []byte(src))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		r, err := f.tracker.Load(artifact.NewRef(core.ClassCandidate, first))
		return err == nil && r.State == core.StateCompiling
	}, 2*time.Second, 5*time.Millisecond)

	_, err = f.proc.Upload(core.ClassCandidate, []byte(src))
	require.NoError(t, err)

	var rejectedID string
	f.proc.newID = func() string { rejectedID = "rejected-id"; return rejectedID }
	_, err = f.proc.Upload(core.ClassCandidate, []byte(src))
	require.ErrorIs(t, err, ErrQueueFull)

	ref := artifact.NewRef(core.ClassCandidate, rejectedID)
	ok, err := f.store.Exists(ref, artifact.KindSource)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = f.tracker.Load(ref)
	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestCleanupDuringRunAborts(t *testing.T) {
	f := newFixture(t, Options{Workers: 1})
	f.comp.block = make(chan struct{})

	id, err := f.proc.Upload(core.ClassCandidate, []byte(src))
	require.NoError(t, err)
	ref := artifact.NewRef(core.ClassCandidate, id)

	require.Eventually(t, func() bool {
		r, err := f.tracker.Load(ref)
		return err == nil && r.State == core.StateCompiling
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, f.proc.Cleanup(ref, false))
	close(f.comp.block)

	// The job must not resurrect a status for the removed artifact
	time.Sleep(100 * time.Millisecond)
	_, err = f.tracker.Load(ref)
	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestCleanup(t *testing.T) {
	f := newFixture(t, Options{})
	id, err := f.proc.Upload(core.ClassCandidate, []byte(src))
	require.NoError(t, err)
	ref := artifact.NewRef(core.ClassCandidate, id)
	f.waitTerminal(t, ref)

	require.NoError(t, f.proc.Cleanup(ref, true))
	ok, _ := f.store.Exists(ref, artifact.KindSource)
	assert.False(t, ok)
	ok, _ = f.store.Exists(ref, artifact.KindBinary)
	assert.True(t, ok, "code-only keeps the binary")
	_, err = f.proc.Status(ref)
	assert.NoError(t, err)

	require.NoError(t, f.proc.Cleanup(ref, false))
	require.NoError(t, f.proc.Cleanup(ref, false), "idempotent")
	ok, _ = f.store.Exists(ref, artifact.KindBinary)
	assert.False(t, ok)
	_, err = f.proc.Status(ref)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMoveRequiresSuccess(t *testing.T) {
	f := newFixture(t, Options{})
	b, err := board.Opening(8)
	require.NoError(t, err)

	ref := artifact.NewRef(core.ClassCache, "pending")
	require.NoError(t, f.tracker.Save(ref, status.Uploading()))
	_, err = f.proc.Move(context.Background(), ref, b, board.Black)
	assert.ErrorIs(t, err, ErrNotReady)

	_, err = f.proc.Move(context.Background(), artifact.NewRef(core.ClassCache, "missing"), b, board.Black)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, f.mover.calls)
}

func TestMoveRecordsInvocation(t *testing.T) {
	f := newFixture(t, Options{})
	f.mover.result = mover.Result{Row: 2, Col: 3, Return: 9, Elapsed: 40 * time.Microsecond}
	b, err := board.Opening(8)
	require.NoError(t, err)

	ref := artifact.ArchiveRef("2024", "champ")
	require.NoError(t, f.tracker.Save(ref, status.Succeeded(0)))

	res, err := f.proc.Move(context.Background(), ref, b, board.Black)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Row)
	assert.Equal(t, 9, res.Return)

	require.Len(t, f.recorder.recs, 1)
	rec := f.recorder.recs[0]
	assert.Equal(t, "archive", rec.Class)
	assert.Equal(t, "2024", rec.ArchiveGroup)
	assert.Equal(t, "champ", rec.ArtifactID)
	assert.EqualValues(t, 40, rec.ElapsedMicros)
}

func TestMoveMissingBinary(t *testing.T) {
	f := newFixture(t, Options{})
	f.mover.err = mover.ErrNotFound
	b, err := board.Opening(8)
	require.NoError(t, err)

	ref := artifact.NewRef(core.ClassCandidate, "nobin")
	require.NoError(t, f.tracker.Save(ref, status.Succeeded(0)))
	_, err = f.proc.Move(context.Background(), ref, b, board.Black)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCompileArchive(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.proc.CompileArchive(context.Background(), "2024", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	rec, err := f.proc.StoreArchive(context.Background(), "2024", "champ", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, core.StateSuccess, rec.State)

	ok, err := f.proc.ArchiveExists("2024", "champ")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.proc.ArchiveExists("2024", "other")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExecuteMapsErrors(t *testing.T) {
	f := newFixture(t, Options{})

	resp := f.proc.Execute(context.Background(), NewGetStatusCommand(artifact.NewRef(core.ClassCandidate, "nope")))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, core.ErrNotFound, resp.Error.Code)

	resp = f.proc.Execute(context.Background(), NewGetStatusCommand(artifact.NewRef(core.ClassCandidate, "../x")))
	require.NotNil(t, resp.Error)
	assert.Equal(t, core.ErrInvalidRequest, resp.Error.Code)

	resp = f.proc.Execute(context.Background(), NewUploadCommand(core.ClassArchive, []byte(src)))
	require.NotNil(t, resp.Error)
	assert.Equal(t, core.ErrInvalidRequest, resp.Error.Code)

	resp = f.proc.Execute(context.Background(), NewArchiveExistsCommand("2024", "nope"))
	require.NotNil(t, resp.Error)
	assert.Equal(t, core.ErrNotFound, resp.Error.Code)

	resp = f.proc.Execute(context.Background(), NewUploadCommand(core.ClassCandidate, []byte(src)))
	require.True(t, resp.Success)
	up, ok := resp.Data.(core.UploadResponse)
	require.True(t, ok)
	assert.NotEmpty(t, up.CodeID)
}

func TestQueueSubmitAfterShutdown(t *testing.T) {
	q := NewJobQueue(1, 1, func(context.Context, Job) {}, zerolog.Nop())
	require.NoError(t, q.Shutdown(time.Second))
	assert.ErrorIs(t, q.Submit(Job{}), ErrShuttingDown)
}

func TestQueueSurvivesPanic(t *testing.T) {
	var mu sync.Mutex
	ran := 0
	q := NewJobQueue(1, 4, func(ctx context.Context, j Job) {
		mu.Lock()
		ran++
		mu.Unlock()
		if j.Ref.ID == "boom" {
			panic("boom")
		}
	}, zerolog.Nop())
	defer q.Shutdown(time.Second)

	require.NoError(t, q.Submit(Job{Ref: artifact.NewRef(core.ClassCache, "boom")}))
	require.NoError(t, q.Submit(Job{Ref: artifact.NewRef(core.ClassCache, "ok")}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return ran == 2
	}, 2*time.Second, 5*time.Millisecond)
}
