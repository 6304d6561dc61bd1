package problems

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

type FSStore struct {
	root string
}

func NewFSStore(root string) *FSStore {
	return &FSStore{root: root}
}

func (s *FSStore) Artifacts(ctx context.Context, problemID int64) (Artifacts, error) {
	return s.Dir(ctx, filepath.Join(s.root, Key(problemID)), problemID)
}

// Dir reads artifacts from an arbitrary problem folder. The solution file
// is optional.
func (s *FSStore) Dir(ctx context.Context, dir string, problemID int64) (Artifacts, error) {
	if err := ctx.Err(); err != nil {
		return Artifacts{}, err
	}

	read := func(name string, required bool) ([]byte, error) {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				if required {
					return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, dir, name)
				}
				return nil, nil
			}
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		return data, nil
	}

	var (
		a   Artifacts
		err error
	)
	if a.Template, err = read(TemplateFile, true); err != nil {
		return Artifacts{}, err
	}
	if a.Harness, err = read(HarnessFile, true); err != nil {
		return Artifacts{}, err
	}
	if a.Solution, err = read(SolutionFile, false); err != nil {
		return Artifacts{}, err
	}
	if err := a.validate(problemID); err != nil {
		return Artifacts{}, err
	}
	return a, nil
}
