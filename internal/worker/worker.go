package worker

import (
	"context"
	"errors"
	"time"

	"github.com/itstheanurag/pyjudge/internal/evaluator"
	"github.com/itstheanurag/pyjudge/internal/events"
	"github.com/itstheanurag/pyjudge/internal/metrics"
	"github.com/itstheanurag/pyjudge/internal/queue"
	"github.com/itstheanurag/pyjudge/internal/sandbox"
	"github.com/itstheanurag/pyjudge/internal/store"
	"github.com/rs/zerolog"
)

const persistTimeout = 10 * time.Second

type Evaluator interface {
	Evaluate(ctx context.Context, sub evaluator.Submission) (evaluator.Result, error)
}

type Worker struct {
	id      int
	engine  Evaluator
	store   store.Store
	events  events.Publisher
	manager *queue.Manager
	logger  *zerolog.Logger
}

func NewWorker(id int, engine Evaluator, st store.Store, pub events.Publisher, manager *queue.Manager, logger *zerolog.Logger) *Worker {
	return &Worker{
		id:      id,
		engine:  engine,
		store:   st,
		events:  pub,
		manager: manager,
		logger:  logger,
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.logger.Info().Int("worker_id", w.id).Msg("worker started")
	for {
		select {
		case job, ok := <-w.manager.NextJob():
			if !ok {
				w.logger.Info().Int("worker_id", w.id).Msg("queue closed, worker stopping")
				return
			}
			w.manager.UpdateQueueMetric()
			metrics.ActiveWorkers.Inc()
			w.processJob(ctx, job)
			metrics.ActiveWorkers.Dec()
		case <-ctx.Done():
			w.logger.Info().Int("worker_id", w.id).Msg("worker stopping")
			return
		}
	}
}

func (w *Worker) processJob(ctx context.Context, job *queue.Job) {
	defer w.manager.Release(job.SubmissionID)

	log := w.logger.With().Int("worker_id", w.id).Int64("submission_id", job.SubmissionID).Logger()
	log.Info().Msg("processing submission")

	sub, err := w.store.Get(ctx, job.SubmissionID)
	if err != nil {
		log.Error().Err(err).Msg("failed to load submission")
		return
	}
	if sub.EvaluatedAt != nil {
		log.Warn().Msg("submission already evaluated, skipping")
		return
	}

	res, evalErr := w.engine.Evaluate(ctx, evaluator.Submission{
		ID:        sub.ID,
		ProblemID: sub.ProblemID,
		Code:      sub.Code,
	})
	if evalErr != nil && ctx.Err() != nil {
		// Shutdown. The submission stays unevaluated and can be queued again.
		log.Warn().Err(evalErr).Msg("evaluation cancelled")
		return
	}

	result := store.Result{
		Results:  res.Results,
		IsPass:   res.IsPass,
		RealTime: res.RealTime,
		RAM:      res.RAM,
		RawLog:   res.RawLog,
	}
	if evalErr != nil {
		log.Warn().Err(evalErr).Msg("evaluation failed")
		result = failedResult(evalErr)
	}

	// The evaluation is done; persisting it should survive a shutdown signal.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := w.store.AttachResult(pctx, sub.ID, result); err != nil {
		if errors.Is(err, store.ErrAlreadyEvaluated) {
			log.Warn().Msg("result already attached, dropping duplicate")
		} else {
			log.Error().Err(err).Msg("failed to persist result")
		}
		return
	}

	ev := events.Result{
		SubmissionID: sub.ID,
		ProblemID:    sub.ProblemID,
		UserID:       sub.UserID,
		IsPass:       result.IsPass,
		Results:      result.Results,
		RealTime:     result.RealTime,
		RAM:          result.RAM,
	}
	if evalErr != nil {
		ev.Error = evalErr.Error()
	}
	if err := w.events.PublishResult(pctx, ev); err != nil {
		log.Error().Err(err).Msg("failed to publish result")
	}

	log.Info().Bool("is_pass", result.IsPass).Msg("submission finished")
}

// failedResult records an evaluation that produced no verdicts. The
// diagnostic takes the place of the case lines.
func failedResult(err error) store.Result {
	res := store.Result{Results: []string{err.Error()}}

	var (
		be *sandbox.BuildError
		re *sandbox.RunError
	)
	switch {
	case errors.As(err, &be):
		res.RawLog = []byte(be.Log)
	case errors.As(err, &re):
		res.RawLog = []byte(re.Log)
	}
	return res
}
