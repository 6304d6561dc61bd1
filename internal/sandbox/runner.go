package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/itstheanurag/pyjudge/internal/metrics"
	"github.com/itstheanurag/pyjudge/internal/scratch"
	"github.com/rs/zerolog"
)

const defaultReclaimTimeout = 30 * time.Second

// Runner builds a scratch directory into an image, runs it once and
// reclaims the image, container and directory on every path out.
type Runner struct {
	rt             Runtime
	logger         *zerolog.Logger
	reclaimTimeout time.Duration
}

func NewRunner(rt Runtime, logger *zerolog.Logger) *Runner {
	return &Runner{rt: rt, logger: logger, reclaimTimeout: defaultReclaimTimeout}
}

func (r *Runner) Run(ctx context.Context, dir *scratch.Dir, limits Limits) (RawOutput, error) {
	tag := dir.Tag()
	log := r.logger.With().Str("tag", tag).Logger()

	var containerID string
	defer func() {
		r.reclaim(&log, dir, tag, containerID)
	}()

	buildStart := time.Now()
	if err := r.rt.BuildImage(ctx, dir.Path, tag); err != nil {
		var be *BuildError
		if !errors.As(err, &be) {
			be = &BuildError{Err: err}
		}
		return RawOutput{}, be
	}
	metrics.PhaseDuration.WithLabelValues("build").Observe(float64(time.Since(buildStart).Milliseconds()))

	runCtx := ctx
	if limits.Deadline > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, limits.Deadline)
		defer cancel()
	}

	runStart := time.Now()
	id, err := r.rt.RunContainer(runCtx, tag, RunSpec{
		Name:        tag,
		Cmd:         []string{"python3", scratch.SupervisorFile},
		Env:         harnessEnv(limits),
		MemoryBytes: limits.MemoryBytes,
		PidsLimit:   limits.PidsLimit,
		NanoCPUs:    limits.NanoCPUs,
	})
	containerID = id
	if err != nil {
		return RawOutput{}, &RunError{Reason: ReasonStartFailed, Err: err}
	}
	metrics.ContainerStartTime.Observe(float64(time.Since(runStart).Milliseconds()))

	exit, err := r.rt.Wait(runCtx, id)
	if err != nil {
		if ctx.Err() != nil {
			return RawOutput{}, fmt.Errorf("evaluation cancelled: %w", ctx.Err())
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			log.Warn().Dur("deadline", limits.Deadline).Msg("sandbox exceeded deadline")
			return RawOutput{}, &RunError{Reason: ReasonHungProcess, Log: string(r.tailLogs(id)), Err: err}
		}
		return RawOutput{}, &RunError{Reason: ReasonWaitFailed, Err: err}
	}
	duration := time.Since(runStart)
	metrics.PhaseDuration.WithLabelValues("run").Observe(float64(duration.Milliseconds()))

	logs, err := r.rt.Logs(ctx, id)
	if err != nil {
		return RawOutput{}, &RunError{Reason: ReasonWaitFailed, Err: err}
	}

	if exit.StatusCode != 0 {
		reason := ReasonNonZeroExit
		if exit.OOMKilled {
			reason = ReasonOOMKilled
		}
		return RawOutput{}, &RunError{Reason: reason, ExitCode: exit.StatusCode, Log: string(logs)}
	}

	log.Debug().Dur("duration", duration).Int("bytes", len(logs)).Msg("sandbox finished")
	return RawOutput{Log: logs, ExitCode: exit.StatusCode, Duration: duration}, nil
}

// tailLogs collects whatever a hung container printed before it was killed.
func (r *Runner) tailLogs(id string) []byte {
	ctx, cancel := context.WithTimeout(context.Background(), r.reclaimTimeout)
	defer cancel()
	logs, _ := r.rt.Logs(ctx, id)
	return logs
}

// reclaim uses its own context: a cancelled evaluation must still clean up.
// The image is always removed since a failed build may still leave it tagged.
func (r *Runner) reclaim(log *zerolog.Logger, dir *scratch.Dir, tag string, containerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.reclaimTimeout)
	defer cancel()

	if containerID != "" {
		if err := r.rt.RemoveContainer(ctx, containerID); err != nil {
			metrics.ReclaimFailures.WithLabelValues("container").Inc()
			log.Error().Err(err).Str("container", containerID).Msg("failed to remove container")
		}
	}
	if err := r.rt.RemoveImage(ctx, tag); err != nil {
		metrics.ReclaimFailures.WithLabelValues("image").Inc()
		log.Error().Err(err).Msg("failed to remove image")
	}
	if err := dir.Remove(); err != nil {
		metrics.ReclaimFailures.WithLabelValues("scratch_dir").Inc()
		log.Error().Err(err).Msg("failed to remove scratch dir")
	}
}

func harnessEnv(limits Limits) []string {
	env := []string{"PYTHONDONTWRITEBYTECODE=1"}
	if limits.CaseTimeout > 0 {
		env = append(env, "CASE_TIMEOUT="+strconv.FormatFloat(limits.CaseTimeout.Seconds(), 'f', -1, 64))
	}
	if limits.DetailCases >= 0 {
		env = append(env, "DETAIL_CASES="+strconv.Itoa(limits.DetailCases))
	}
	return env
}

// Deadline is the outer wall clock for a harness of n cases.
func Deadline(caseTimeout time.Duration, n int, margin time.Duration) time.Duration {
	return caseTimeout*time.Duration(n) + margin
}
