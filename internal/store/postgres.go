package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/itstheanurag/pyjudge/internal/ranking"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (r *PgStore) Create(ctx context.Context, userID, problemID int64, code string) (Submission, error) {
	query := `
		INSERT INTO submissions (user_id, problem_id, code)
		VALUES ($1, $2, $3)
		RETURNING submission_id, created_at
	`
	s := Submission{UserID: userID, ProblemID: problemID, Code: code}
	if err := r.pool.QueryRow(ctx, query, userID, problemID, code).Scan(&s.ID, &s.CreatedAt); err != nil {
		return Submission{}, fmt.Errorf("failed to insert submission: %w", err)
	}
	return s, nil
}

func (r *PgStore) Get(ctx context.Context, id int64) (Submission, error) {
	query := `
		SELECT submission_id, user_id, problem_id, code, created_at,
		       results, is_pass, real_time, ram, evaluated_at
		FROM submissions
		WHERE submission_id = $1
	`
	var (
		s       Submission
		results []byte
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID,
		&s.UserID,
		&s.ProblemID,
		&s.Code,
		&s.CreatedAt,
		&results,
		&s.IsPass,
		&s.RealTime,
		&s.RAM,
		&s.EvaluatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Submission{}, ErrNotFound
		}
		return Submission{}, fmt.Errorf("failed to query submission: %w", err)
	}
	if len(results) > 0 {
		if err := json.Unmarshal(results, &s.Results); err != nil {
			return Submission{}, fmt.Errorf("failed to decode results: %w", err)
		}
	}
	return s, nil
}

func (r *PgStore) AttachResult(ctx context.Context, id int64, res Result) error {
	results, err := json.Marshal(nonNil(res.Results))
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}

	query := `
		UPDATE submissions
		SET results = $2, is_pass = $3, real_time = $4, ram = $5,
		    raw_log = $6, evaluated_at = NOW()
		WHERE submission_id = $1 AND evaluated_at IS NULL
	`
	tag, err := r.pool.Exec(ctx, query, id, string(results), res.IsPass, res.RealTime, res.RAM, compressLog(res.RawLog))
	if err != nil {
		return fmt.Errorf("failed to attach result: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM submissions WHERE submission_id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check submission: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrAlreadyEvaluated
}

func (r *PgStore) RawLog(ctx context.Context, id int64) ([]byte, error) {
	var data []byte
	err := r.pool.QueryRow(ctx, `SELECT raw_log FROM submissions WHERE submission_id = $1`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query raw log: %w", err)
	}
	return decompressLog(data)
}

func (r *PgStore) PassedEntries(ctx context.Context, problemID int64) ([]ranking.Entry, error) {
	query := `
		SELECT submission_id, real_time, ram
		FROM submissions
		WHERE problem_id = $1 AND is_pass
		ORDER BY submission_id
	`
	rows, err := r.pool.Query(ctx, query, problemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query passed submissions: %w", err)
	}
	defer rows.Close()

	var out []ranking.Entry
	for rows.Next() {
		var e ranking.Entry
		if err := rows.Scan(&e.SubmissionID, &e.RealTime, &e.RAM); err != nil {
			return nil, fmt.Errorf("failed to scan passed submission: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate passed submissions: %w", err)
	}
	return out, nil
}

func (r *PgStore) Totals(ctx context.Context, problemID int64) (ranking.Totals, error) {
	query := `
		SELECT COUNT(*), COUNT(DISTINCT user_id)
		FROM submissions
		WHERE problem_id = $1
	`
	var t ranking.Totals
	if err := r.pool.QueryRow(ctx, query, problemID).Scan(&t.Submissions, &t.Participants); err != nil {
		return ranking.Totals{}, fmt.Errorf("failed to count submissions: %w", err)
	}
	return t, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
