// Package store persists submissions and the single evaluation result each
// one receives.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/itstheanurag/pyjudge/internal/ranking"
)

var (
	ErrNotFound         = errors.New("submission not found")
	ErrAlreadyEvaluated = errors.New("submission already evaluated")
)

type Submission struct {
	ID        int64     `json:"submission_id"`
	UserID    int64     `json:"user_id"`
	ProblemID int64     `json:"problem_id"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`

	Results     []string   `json:"results"`
	IsPass      bool       `json:"is_pass"`
	RealTime    *float64   `json:"real_time"`
	RAM         *float64   `json:"ram"`
	EvaluatedAt *time.Time `json:"evaluated_at,omitempty"`
}

// Result is what an evaluation attaches to its submission.
type Result struct {
	Results  []string
	IsPass   bool
	RealTime *float64
	RAM      *float64
	RawLog   []byte
}

type Store interface {
	Create(ctx context.Context, userID, problemID int64, code string) (Submission, error)
	Get(ctx context.Context, id int64) (Submission, error)
	// AttachResult succeeds at most once per submission.
	AttachResult(ctx context.Context, id int64, res Result) error
	RawLog(ctx context.Context, id int64) ([]byte, error)
	// PassedEntries lists passed submissions of a problem in id order.
	PassedEntries(ctx context.Context, problemID int64) ([]ranking.Entry, error)
	Totals(ctx context.Context, problemID int64) (ranking.Totals, error)
}
