// Package evaluator runs a submission end to end: static validation, an
// isolated container run of the hidden harness, telemetry extraction and
// grading.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/itstheanurag/pyjudge/internal/config"
	"github.com/itstheanurag/pyjudge/internal/grader"
	"github.com/itstheanurag/pyjudge/internal/metrics"
	"github.com/itstheanurag/pyjudge/internal/problems"
	"github.com/itstheanurag/pyjudge/internal/sandbox"
	"github.com/itstheanurag/pyjudge/internal/scratch"
	"github.com/itstheanurag/pyjudge/internal/telemetry"
	"github.com/itstheanurag/pyjudge/internal/validator"
	"github.com/rs/zerolog"
)

type Config struct {
	MemoryBytes    int64
	PidsLimit      int64
	NanoCPUs       int64
	CaseTimeout    time.Duration
	DetailCases    int
	DeadlineMargin time.Duration
	// MaxDeadline is the outer deadline when the harness case count cannot
	// be determined statically.
	MaxDeadline time.Duration
}

func ConfigFrom(sc config.SandboxConfig) Config {
	return Config{
		MemoryBytes:    sc.MemoryLimitMB << 20,
		PidsLimit:      sc.PidsLimit,
		NanoCPUs:       int64(sc.CPUs * 1e9),
		CaseTimeout:    time.Duration(sc.CaseTimeoutSec) * time.Second,
		DetailCases:    sc.DetailCases,
		DeadlineMargin: time.Duration(sc.DeadlineMarginSec) * time.Second,
		MaxDeadline:    time.Duration(sc.MaxDeadlineSec) * time.Second,
	}
}

type Submission struct {
	ID        int64
	ProblemID int64
	Code      string
}

type Result struct {
	Verdicts []grader.Verdict
	// Results are the raw case lines in case order.
	Results  []string
	IsPass   bool
	RealTime *float64
	RAM      *float64
	RawLog   []byte
}

type Engine struct {
	problems problems.Store
	builder  *scratch.Builder
	runner   *sandbox.Runner
	conf     Config
	logger   *zerolog.Logger
}

func NewEngine(ps problems.Store, builder *scratch.Builder, runner *sandbox.Runner, conf Config, logger *zerolog.Logger) *Engine {
	return &Engine{
		problems: ps,
		builder:  builder,
		runner:   runner,
		conf:     conf,
		logger:   logger,
	}
}

// Validate checks code against a template without running anything.
func (e *Engine) Validate(template, code string) error {
	return validator.Validate(template, code)
}

// Evaluate loads the problem's artifacts and evaluates sub against them.
func (e *Engine) Evaluate(ctx context.Context, sub Submission) (Result, error) {
	a, err := e.problems.Artifacts(ctx, sub.ProblemID)
	if err != nil {
		metrics.EvaluationsTotal.WithLabelValues("internal_error").Inc()
		return Result{}, fmt.Errorf("failed to load problem %d: %w", sub.ProblemID, err)
	}

	log := e.logger.With().Int64("submission_id", sub.ID).Int64("problem_id", sub.ProblemID).Logger()
	return e.evaluate(ctx, &log, a, sub.Code)
}

// EvaluateArtifacts evaluates code against artifacts already in hand.
func (e *Engine) EvaluateArtifacts(ctx context.Context, a problems.Artifacts, code string) (Result, error) {
	return e.evaluate(ctx, e.logger, a, code)
}

func (e *Engine) evaluate(ctx context.Context, log *zerolog.Logger, a problems.Artifacts, code string) (res Result, err error) {
	start := time.Now()
	defer func() {
		metrics.EvaluationsTotal.WithLabelValues(outcome(res, err)).Inc()
		metrics.PhaseDuration.WithLabelValues("total").Observe(float64(time.Since(start).Milliseconds()))
	}()

	if err := validator.Validate(string(a.Template), code); err != nil {
		log.Debug().Err(err).Msg("submission rejected by validator")
		return Result{}, err
	}

	cases, counted := validator.CountTestCases(string(a.Harness))
	limits := sandbox.Limits{
		MemoryBytes: e.conf.MemoryBytes,
		PidsLimit:   e.conf.PidsLimit,
		NanoCPUs:    e.conf.NanoCPUs,
		CaseTimeout: e.conf.CaseTimeout,
		DetailCases: e.conf.DetailCases,
		Deadline:    e.deadline(cases, counted),
	}

	dir, err := e.builder.Build(code, a.Harness)
	if err != nil {
		return Result{}, fmt.Errorf("failed to prepare sandbox: %w", err)
	}

	log.Info().Str("tag", dir.Tag()).Int("cases", cases).Dur("deadline", limits.Deadline).Msg("running submission")

	raw, err := e.runner.Run(ctx, dir, limits)
	if err != nil {
		return Result{}, fmt.Errorf("failed to run submission: %w", err)
	}

	report := telemetry.Parse(raw.Log)
	if counted && len(report.CaseLines) != cases {
		return Result{}, fmt.Errorf("failed to run submission: %w", &sandbox.RunError{
			Reason: sandbox.ReasonIncomplete,
			Log:    string(raw.Log),
			Err:    fmt.Errorf("got %d case results, want %d", len(report.CaseLines), cases),
		})
	}

	res = Result{
		Verdicts: grader.ParseVerdicts(report.CaseLines),
		Results:  report.CaseLines,
		IsPass:   grader.Grade(report.CaseLines),
		RealTime: report.RealTime,
		RAM:      report.RAM,
		RawLog:   raw.Log,
	}
	if res.RAM != nil {
		metrics.MemoryUsage.Observe(*res.RAM)
	}

	log.Info().Bool("is_pass", res.IsPass).Int("cases", len(res.Results)).Msg("submission evaluated")
	return res, nil
}

func (e *Engine) deadline(cases int, counted bool) time.Duration {
	if !counted {
		return e.conf.MaxDeadline
	}
	// Not capped: every case may legitimately run into its own timeout.
	return sandbox.Deadline(e.conf.CaseTimeout, cases, e.conf.DeadlineMargin)
}

func outcome(res Result, err error) string {
	var (
		ve *validator.ValidationError
		be *sandbox.BuildError
		re *sandbox.RunError
	)
	switch {
	case err == nil && res.IsPass:
		return "passed"
	case err == nil:
		return "failed"
	case errors.As(err, &ve):
		return "validation_error"
	case errors.As(err, &be):
		return "build_error"
	case errors.As(err, &re):
		return "run_error"
	}
	return "internal_error"
}
