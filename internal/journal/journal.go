// Package journal keeps a durable history of terminal jobs in Postgres.
// The in-process store stays authoritative for live jobs; the journal only
// records completed and failed outcomes for later inspection.
package journal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"eduvid/internal/job"
	"eduvid/internal/pkg/logger"
)

type Journal struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

func New(db *pgxpool.Pool, log *logger.Logger) *Journal {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Journal{db: db, log: log.WithComponent("journal")}
}

// EnsureSchema creates the history table when it does not exist yet.
func (j *Journal) EnsureSchema(ctx context.Context) error {
	_, err := j.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS job_history (
			job_id      text PRIMARY KEY,
			status      text NOT NULL,
			prompt      text NOT NULL,
			quality     text NOT NULL,
			video_path  text,
			error       text,
			script_json jsonb,
			created_at  timestamptz NOT NULL,
			finished_at timestamptz NOT NULL DEFAULT now()
		)
	`)
	return err
}

// Record writes one terminal snapshot. The journal is best-effort: failures
// are logged, never surfaced to the pipeline.
func (j *Journal) Record(ctx context.Context, snap *job.Job) {
	if snap == nil || !snap.Terminal() {
		return
	}

	// Use a fresh context so recording survives job cancellation.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	var scriptJSON []byte
	if snap.Script != nil {
		scriptJSON, _ = json.Marshal(snap.Script)
	}

	_, err := j.db.Exec(wctx, `
		INSERT INTO job_history (job_id, status, prompt, quality, video_path, error, script_json, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (job_id) DO UPDATE SET
			status = EXCLUDED.status,
			video_path = EXCLUDED.video_path,
			error = EXCLUDED.error,
			script_json = EXCLUDED.script_json,
			finished_at = now()
	`, snap.ID, string(snap.Status), snap.Prompt, snap.Quality,
		nullable(snap.VideoPath), nullable(snap.Error), scriptJSON, snap.CreatedAt)

	if err != nil {
		j.log.Warn("journal write failed",
			"job_id", snap.ID,
			"error", err.Error(),
		)
	}
}

// Entry is one historical job row.
type Entry struct {
	JobID      string     `json:"job_id"`
	Status     string     `json:"status"`
	Prompt     string     `json:"prompt"`
	Quality    string     `json:"quality"`
	VideoPath  *string    `json:"video_path,omitempty"`
	Error      *string    `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt time.Time  `json:"finished_at"`
}

// List returns history entries, newest finish first.
func (j *Journal) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := j.db.Query(ctx, `
		SELECT job_id, status, prompt, quality, video_path, error, created_at, finished_at
		FROM job_history
		ORDER BY finished_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.JobID, &e.Status, &e.Prompt, &e.Quality,
			&e.VideoPath, &e.Error, &e.CreatedAt, &e.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
