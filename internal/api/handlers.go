package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/itstheanurag/pyjudge/internal/problems"
	"github.com/itstheanurag/pyjudge/internal/queue"
	"github.com/itstheanurag/pyjudge/internal/ranking"
	"github.com/itstheanurag/pyjudge/internal/store"
	"github.com/itstheanurag/pyjudge/internal/validator"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

type Validator interface {
	Validate(template, code string) error
}

type Handler struct {
	engine   Validator
	problems problems.Store
	store    store.Store
	queue    *queue.Manager
	logger   *zerolog.Logger
}

func NewHandler(engine Validator, ps problems.Store, st store.Store, manager *queue.Manager, logger *zerolog.Logger) *Handler {
	return &Handler{
		engine:   engine,
		problems: ps,
		store:    st,
		queue:    manager,
		logger:   logger,
	}
}

type ValidateRequest struct {
	Template string `json:"template"`
	Code     string `json:"code"`
}

type SubmitRequest struct {
	UserID    int64  `json:"user_id"`
	ProblemID int64  `json:"problem_id"`
	Code      string `json:"code"`
}

type submitResponse struct {
	Submission store.Submission `json:"submission"`
	Queued     bool             `json:"queued"`
}

func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.engine.Validate(req.Template, req.Code); err != nil {
		h.writeValidationError(w, err)
		return
	}
	writeJson(w, http.StatusOK, map[string]bool{"valid": true})
}

// Submit validates code against the problem template, stores it and queues
// it for evaluation. Invalid code is never stored.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if !decode(w, r, &req) {
		return
	}

	a, err := h.problems.Artifacts(r.Context(), req.ProblemID)
	if err != nil {
		if errors.Is(err, problems.ErrNotFound) {
			writeJsonError(w, http.StatusNotFound, "problem_not_found", "problem not found")
			return
		}
		h.logger.Error().Err(err).Int64("problem_id", req.ProblemID).Msg("failed to load problem")
		writeJsonInternalServerError(w)
		return
	}
	if err := h.engine.Validate(string(a.Template), req.Code); err != nil {
		h.writeValidationError(w, err)
		return
	}

	sub, err := h.store.Create(r.Context(), req.UserID, req.ProblemID, req.Code)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to create submission")
		writeJsonInternalServerError(w)
		return
	}

	if err := h.queue.TrySubmit(&queue.Job{SubmissionID: sub.ID}); err != nil {
		// Stored but not queued; the client may retry through /evaluate.
		h.logger.Warn().Err(err).Int64("submission_id", sub.ID).Msg("submission not queued")
		writeJsonErrorData(w, http.StatusServiceUnavailable, "queue_unavailable", err.Error(), submitResponse{Submission: sub})
		return
	}
	writeJson(w, http.StatusAccepted, submitResponse{Submission: sub, Queued: true})
}

func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	sub, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if sub.EvaluatedAt != nil {
		writeJsonError(w, http.StatusConflict, "already_evaluated", store.ErrAlreadyEvaluated.Error())
		return
	}

	switch err := h.queue.TrySubmit(&queue.Job{SubmissionID: id}); {
	case err == nil:
		writeJson(w, http.StatusAccepted, map[string]int64{"submission_id": id})
	case errors.Is(err, queue.ErrInFlight):
		writeJsonError(w, http.StatusConflict, "in_flight", err.Error())
	case errors.Is(err, queue.ErrQueueFull), errors.Is(err, queue.ErrClosed):
		writeJsonError(w, http.StatusServiceUnavailable, "queue_unavailable", err.Error())
	default:
		h.logger.Error().Err(err).Int64("submission_id", id).Msg("failed to queue submission")
		writeJsonInternalServerError(w)
	}
}

func (h *Handler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	sub, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJson(w, http.StatusOK, sub)
}

func (h *Handler) Ranking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	sub, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	passed, err := h.store.PassedEntries(r.Context(), sub.ProblemID)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	totals, err := h.store.Totals(r.Context(), sub.ProblemID)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	standing, err := ranking.Rank(id, passed, totals)
	if err != nil {
		if errors.Is(err, ranking.ErrNotPassed) {
			writeJsonError(w, http.StatusBadRequest, "not_passed", err.Error())
			return
		}
		h.logger.Error().Err(err).Int64("submission_id", id).Msg("failed to rank submission")
		writeJsonInternalServerError(w)
		return
	}
	writeJson(w, http.StatusOK, standing)
}

func (h *Handler) ExecutionSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	passed, err := h.store.PassedEntries(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJson(w, http.StatusOK, ranking.Summarize(passed))
}

func (h *Handler) writeValidationError(w http.ResponseWriter, err error) {
	var ve *validator.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJsonError(w, http.StatusUnprocessableEntity, string(ve.Kind), ve.Error())
	case errors.Is(err, validator.ErrBadTemplate):
		writeJsonError(w, http.StatusBadRequest, "bad_template", err.Error())
	default:
		h.logger.Error().Err(err).Msg("validation failed")
		writeJsonInternalServerError(w)
	}
}

func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeJsonError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	h.logger.Error().Err(err).Msg("store request failed")
	writeJsonInternalServerError(w)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJsonError(w, http.StatusBadRequest, "invalid_body", "Invalid request body")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeJsonError(w, http.StatusBadRequest, "invalid_id", "invalid "+name)
		return 0, false
	}
	return id, true
}
