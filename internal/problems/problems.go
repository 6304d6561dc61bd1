// Package problems loads the read-only artifacts a problem needs for
// evaluation: the submission template, the hidden test harness and the
// reference solution.
package problems

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

const (
	TemplateFile = "submission_template.py"
	HarnessFile  = "testcase.py"
	SolutionFile = "solution.py"
)

var ErrNotFound = errors.New("problem artifacts not found")

type Artifacts struct {
	Template []byte
	Harness  []byte
	Solution []byte
}

type Store interface {
	Artifacts(ctx context.Context, problemID int64) (Artifacts, error)
}

// Key is the folder name holding a problem's files, relative to the
// store root or bucket.
func Key(problemID int64) string {
	return "p" + strconv.FormatInt(problemID, 10)
}

func (a Artifacts) validate(problemID int64) error {
	if len(a.Template) == 0 {
		return fmt.Errorf("problem %d: empty %s", problemID, TemplateFile)
	}
	if len(a.Harness) == 0 {
		return fmt.Errorf("problem %d: empty %s", problemID, HarnessFile)
	}
	return nil
}
