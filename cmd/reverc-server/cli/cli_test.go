package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lixenwraith/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reverc/internal/server/storage"
)

func TestRunUsage(t *testing.T) {
	assert.Error(t, Run(nil))
	assert.ErrorContains(t, Run([]string{"db", "vacuum"}), "unknown db subcommand")
	assert.ErrorContains(t, Run([]string{"admin", "grant"}), "unknown admin subcommand")
	assert.ErrorContains(t, Run([]string{"db", "init"}), "database path required")
}

func TestHash(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runHash([]string{"-password", "curator-password"}, &out))

	hash := strings.TrimSpace(out.String())
	require.NoError(t, auth.ValidatePHCHashFormat(hash))
	assert.NoError(t, auth.VerifyPassword("curator-password", hash))
}

func TestHashRejects(t *testing.T) {
	var out bytes.Buffer
	assert.ErrorContains(t, runHash([]string{"-password", "short"}, &out), "at least 8")
	assert.ErrorContains(t, runHash(nil, &out), "password required")
	assert.ErrorContains(t, runHash([]string{"-interactive", "-password", "x"}, &out), "cannot use")
}

func TestInitQueryDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reverc.db")
	require.NoError(t, runInit([]string{"-path", path}))

	var out bytes.Buffer
	require.NoError(t, runQuery([]string{"-path", path}, &out))
	assert.Contains(t, out.String(), "No invocations found")

	store, err := storage.NewStore(path, false, nil)
	require.NoError(t, err)
	require.NoError(t, store.RecordInvocation(storage.InvocationRecord{
		Class:         "archive",
		ArchiveGroup:  "lab8",
		ArtifactID:    "alpha",
		BoardSize:     8,
		Turn:          "B",
		Row:           2,
		Col:           3,
		ElapsedMicros: 120,
		InvokedAt:     time.Now().UTC(),
	}))
	require.NoError(t, store.Close())

	out.Reset()
	require.NoError(t, runQuery([]string{"-path", path, "-class", "archive"}, &out))
	assert.Contains(t, out.String(), "archive/lab8/alpha")
	assert.Contains(t, out.String(), "(2,3)")
	assert.Contains(t, out.String(), "Found 1 invocation(s)")

	require.NoError(t, runDelete([]string{"-path", path}))
	assert.NoFileExists(t, path)
}
