// Package scratch materializes the disposable build context for one
// evaluation: the submission, the problem's hidden harness, the in-container
// runner scripts and a Dockerfile.
package scratch

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"
)

const (
	SubmissionFile = "submission.py"
	HarnessFile    = "testcase.py"
	RunnerFile     = "run.py"
	SupervisorFile = "supervise.py"
	DockerfileName = "Dockerfile"

	TagPrefix = "pyjudge-sandbox-"
)

//go:embed assets
var assets embed.FS

var dockerfileTmpl = template.Must(template.ParseFS(assets, "assets/Dockerfile.tmpl"))

type Builder struct {
	root  string
	image string
}

// NewBuilder returns a builder creating directories under root whose images
// derive from the given base image.
func NewBuilder(root, image string) *Builder {
	return &Builder{root: root, image: image}
}

// Dir is one evaluation's scratch directory.
type Dir struct {
	ID   string
	Path string
}

// Tag is the image tag derived from the directory id.
func (d *Dir) Tag() string {
	return TagPrefix + strings.ToLower(d.ID)
}

func (d *Dir) Remove() error {
	if err := os.RemoveAll(d.Path); err != nil {
		return fmt.Errorf("failed to remove scratch dir %s: %w", d.Path, err)
	}
	return nil
}

// NewID returns a timestamped id with a random suffix so that concurrent
// evaluations started in the same second never collide.
func NewID(now time.Time) string {
	return now.UTC().Format("20060102150405") + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Build writes the build context. On failure nothing is left behind.
func (b *Builder) Build(code string, harness []byte) (dir *Dir, err error) {
	if err := os.MkdirAll(b.root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scratch root: %w", err)
	}

	id := NewID(time.Now())
	path := filepath.Join(b.root, id)
	// Mkdir, not MkdirAll: an existing directory means an id collision.
	if err := os.Mkdir(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	dir = &Dir{ID: id, Path: path}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(path)
			dir = nil
		}
	}()

	runner, err := assets.ReadFile("assets/" + RunnerFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read runner asset: %w", err)
	}
	supervisor, err := assets.ReadFile("assets/" + SupervisorFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read supervisor asset: %w", err)
	}
	var dockerfile bytes.Buffer
	if err := dockerfileTmpl.Execute(&dockerfile, struct{ Image string }{b.image}); err != nil {
		return nil, fmt.Errorf("failed to render Dockerfile: %w", err)
	}

	files := []struct {
		name string
		data []byte
	}{
		{SubmissionFile, []byte(code)},
		{HarnessFile, harness},
		{RunnerFile, runner},
		{SupervisorFile, supervisor},
		{DockerfileName, dockerfile.Bytes()},
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(path, f.name), f.data, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", f.name, err)
		}
	}

	return dir, nil
}
