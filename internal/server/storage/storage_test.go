package storage

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "test.db"), true, nil)
	require.NoError(t, err)
	require.NoError(t, s.InitDB())
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInitDBIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.InitDB())

	st, err := s.GetStats()
	require.NoError(t, err)
	assert.Zero(t, st.TotalGames)
}

func TestSetupRoundTrip(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetSetup("m1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.PutSetup("m1", []byte(`{"size":8}`)))
	require.NoError(t, s.PutSetup("m1", []byte(`{"size":10}`)))

	rec, err := s.GetSetup("m1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"size":10}`, string(rec.SetupData))
}

func TestIncrementStatsConcurrent(t *testing.T) {
	s := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.IncrementStats()
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	st, err := s.GetStats()
	require.NoError(t, err)
	assert.EqualValues(t, 10, st.TotalGames)
	assert.False(t, st.LastUpdated.IsZero())
}

func TestRecordInvocationAsync(t *testing.T) {
	s := newTestStore(t)

	rec := InvocationRecord{
		Class: "archive", ArchiveGroup: "2024", ArtifactID: "champ",
		BoardSize: 8, Turn: "B", Row: 2, Col: 3, ReturnValue: 0,
		ElapsedMicros: 150, InvokedAt: time.Now().UTC(),
	}
	require.NoError(t, s.RecordInvocation(rec))
	timedOut := rec
	timedOut.Row, timedOut.Col, timedOut.ReturnValue, timedOut.TimedOut = -1, -1, -1, true
	require.NoError(t, s.RecordInvocation(timedOut))

	var got []InvocationRecord
	require.Eventually(t, func() bool {
		var err error
		got, err = s.QueryInvocations("archive", "champ", 0)
		return err == nil && len(got) == 2
	}, 2*time.Second, 10*time.Millisecond)

	assert.True(t, got[0].TimedOut, "newest first")
	assert.Equal(t, -1, got[0].Row)
	assert.Equal(t, 2, got[1].Row)
	assert.Equal(t, "2024", got[1].ArchiveGroup)
	assert.True(t, s.IsHealthy())

	limited, err := s.QueryInvocations("*", "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRecordInvocationDegraded(t *testing.T) {
	s := newTestStore(t)
	s.healthStatus.Store(false)
	assert.NoError(t, s.RecordInvocation(InvocationRecord{Class: "cache", ArtifactID: "x", Turn: "B"}))
}
