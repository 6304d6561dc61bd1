package problems

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProblem(t *testing.T, root string, id int64, files map[string]string) {
	t.Helper()
	dir := filepath.Join(root, Key(id))
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
}

func TestFSStoreArtifacts(t *testing.T) {
	root := t.TempDir()
	writeProblem(t, root, 4, map[string]string{
		TemplateFile: "def findTwoSum(nums, target):\n    pass\n",
		HarnessFile:  "test_cases = []\n",
		SolutionFile: "def findTwoSum(nums, target):\n    return [0, 1]\n",
	})

	a, err := NewFSStore(root).Artifacts(context.Background(), 4)
	require.NoError(t, err)
	assert.Contains(t, string(a.Template), "findTwoSum")
	assert.Equal(t, "test_cases = []\n", string(a.Harness))
	assert.NotEmpty(t, a.Solution)
}

func TestFSStoreSolutionOptional(t *testing.T) {
	root := t.TempDir()
	writeProblem(t, root, 1, map[string]string{
		TemplateFile: "def f(x):\n    pass\n",
		HarnessFile:  "test_cases = []\n",
	})

	a, err := NewFSStore(root).Artifacts(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, a.Solution)
}

func TestFSStoreMissing(t *testing.T) {
	root := t.TempDir()
	_, err := NewFSStore(root).Artifacts(context.Background(), 9)
	require.ErrorIs(t, err, ErrNotFound)

	writeProblem(t, root, 2, map[string]string{TemplateFile: "def f():\n    pass\n"})
	_, err = NewFSStore(root).Artifacts(context.Background(), 2)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFSStoreEmptyTemplate(t *testing.T) {
	root := t.TempDir()
	writeProblem(t, root, 3, map[string]string{TemplateFile: "", HarnessFile: "test_cases = []\n"})
	_, err := NewFSStore(root).Artifacts(context.Background(), 3)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "p42", Key(42))
}
