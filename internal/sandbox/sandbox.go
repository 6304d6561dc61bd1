package sandbox

import (
	"context"
	"fmt"
	"time"
)

// Runtime is the container surface the judge needs. Anything that can build
// an image from a directory and run it detached is substitutable.
type Runtime interface {
	BuildImage(ctx context.Context, dir, tag string) error
	RunContainer(ctx context.Context, tag string, spec RunSpec) (string, error)
	Wait(ctx context.Context, id string) (ExitInfo, error)
	Logs(ctx context.Context, id string) ([]byte, error)
	RemoveContainer(ctx context.Context, id string) error
	RemoveImage(ctx context.Context, tag string) error
}

type RunSpec struct {
	Name        string
	Cmd         []string
	Env         []string
	MemoryBytes int64
	PidsLimit   int64
	NanoCPUs    int64
}

type ExitInfo struct {
	StatusCode int64
	OOMKilled  bool
}

// Limits bound one evaluation. Deadline is the outer wall clock for the
// container run; zero disables it.
type Limits struct {
	MemoryBytes int64
	PidsLimit   int64
	NanoCPUs    int64
	CaseTimeout time.Duration
	DetailCases int
	Deadline    time.Duration
}

// RawOutput is the combined stdout/stderr of a finished container.
type RawOutput struct {
	Log      []byte
	ExitCode int64
	Duration time.Duration
}

type BuildError struct {
	Log string
	Err error
}

func (e *BuildError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("image build failed: %v", e.Err)
	}
	return "image build failed"
}

func (e *BuildError) Unwrap() error { return e.Err }

type RunReason string

const (
	ReasonStartFailed RunReason = "start_failed"
	ReasonOOMKilled   RunReason = "oom_killed"
	ReasonNonZeroExit RunReason = "non_zero_exit"
	ReasonHungProcess RunReason = "hung_process"
	ReasonWaitFailed  RunReason = "wait_failed"
	// ReasonIncomplete means the harness exited cleanly but reported a
	// different number of cases than the problem defines.
	ReasonIncomplete  RunReason = "incomplete_output"
)

// RunError is an infrastructure failure of the run, as opposed to a wrong
// answer.
type RunError struct {
	Reason   RunReason
	ExitCode int64
	Log      string
	Err      error
}

func (e *RunError) Error() string {
	switch e.Reason {
	case ReasonNonZeroExit:
		return fmt.Sprintf("sandbox exited with code %d", e.ExitCode)
	case ReasonOOMKilled:
		return "sandbox killed by memory limit"
	case ReasonHungProcess:
		return "sandbox exceeded its deadline"
	case ReasonIncomplete:
		if e.Err != nil {
			return "sandbox output incomplete: " + e.Err.Error()
		}
		return "sandbox output incomplete"
	}
	if e.Err != nil {
		return fmt.Sprintf("sandbox %s: %v", e.Reason, e.Err)
	}
	return "sandbox " + string(e.Reason)
}

func (e *RunError) Unwrap() error { return e.Err }
