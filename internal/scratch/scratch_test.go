package scratch

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildWritesContext(t *testing.T) {
	b := NewBuilder(t.TempDir(), "python:3.10-slim")
	harness := []byte("from submission import f as user_submission\ntest_cases = []\n")

	dir, err := b.Build("def f():\n    return 1\n", harness)
	require.NoError(t, err)

	for _, name := range []string{SubmissionFile, HarnessFile, RunnerFile, SupervisorFile, DockerfileName} {
		assert.FileExists(t, filepath.Join(dir.Path, name))
	}

	got, err := os.ReadFile(filepath.Join(dir.Path, HarnessFile))
	require.NoError(t, err)
	assert.Equal(t, harness, got)

	df, err := os.ReadFile(filepath.Join(dir.Path, DockerfileName))
	require.NoError(t, err)
	assert.Contains(t, string(df), "FROM python:3.10-slim")
	assert.Contains(t, string(df), "COPY . /app")

	assert.Regexp(t, `^pyjudge-sandbox-\d{14}-[0-9a-f]{32}$`, dir.Tag())

	require.NoError(t, dir.Remove())
	assert.NoDirExists(t, dir.Path)
}

func TestBuildConcurrentIDsAreUnique(t *testing.T) {
	b := NewBuilder(t.TempDir(), "python:3.10-slim")

	const n = 32
	var wg sync.WaitGroup
	tags := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dir, err := b.Build("x = 1\n", nil)
			errs[i] = err
			if err == nil {
				tags[i] = dir.Tag()
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.False(t, seen[tags[i]], "duplicate tag %s", tags[i])
		seen[tags[i]] = true
	}
}

func TestNewIDSameInstant(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	assert.NotEqual(t, NewID(now), NewID(now))
}

func TestBuildFailsOnUnwritableRoot(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	_, err := NewBuilder(file, "python:3.10-slim").Build("x = 1\n", nil)
	require.Error(t, err)
}
