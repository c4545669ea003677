package db

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// JobRepo wraps the batch_jobs/batch_job_items tables.
type JobRepo struct {
	db *sqlx.DB
}

func NewJobRepo(db *sqlx.DB) *JobRepo { return &JobRepo{db: db} }

// InsertJobWithItems inserts a BatchJob and all of its BatchJobItems in
// one transaction, mirroring batch_queue.py's submit_job, which creates
// the job and item rows within a single SQLAlchemy session before
// committing once.
func (r *JobRepo) InsertJobWithItems(ctx context.Context, job BatchJob, items []BatchJobItem) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO batch_jobs (id, user_id, status, output_type, quantity, completed, failed, credits_charged, configuration, error_message, claimed_by, claim_expires_at)
		VALUES (:id, :user_id, :status, :output_type, :quantity, :completed, :failed, :credits_charged, :configuration, :error_message, :claimed_by, :claim_expires_at)
	`, job)
	if err != nil {
		return err
	}

	for _, item := range items {
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO batch_job_items (id, job_id, status, model_type, variation_params, result_url, error_message, duration_ms)
			VALUES (:id, :job_id, :status, :model_type, :variation_params, :result_url, :error_message, :duration_ms)
		`, item)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *JobRepo) GetJob(ctx context.Context, jobID string) (BatchJob, error) {
	var j BatchJob
	err := r.db.GetContext(ctx, &j, `SELECT * FROM batch_jobs WHERE id = $1`, jobID)
	return j, err
}

func (r *JobRepo) ListItems(ctx context.Context, jobID string) ([]BatchJobItem, error) {
	var items []BatchJobItem
	err := r.db.SelectContext(ctx, &items, `SELECT * FROM batch_job_items WHERE job_id = $1 ORDER BY created_at`, jobID)
	return items, err
}

// UpdateItemResult mirrors _process_item's write of COMPLETED/FAILED
// with duration_ms. An error message longer than 500 runes is stored as
// its first 500 runes.
func (r *JobRepo) UpdateItemResult(ctx context.Context, itemID string, status BatchJobItemStatus, resultURL, errMsg *string, durationMs *int) error {
	if errMsg != nil {
		if runes := []rune(*errMsg); len(runes) > 500 {
			truncated := string(runes[:500])
			errMsg = &truncated
		}
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE batch_job_items SET status=$1, result_url=$2, error_message=$3, duration_ms=$4, updated_at=now()
		WHERE id=$5
	`, status, resultURL, errMsg, durationMs, itemID)
	return err
}

// UpdateJobProgress mirrors _update_progress's persisted counters.
func (r *JobRepo) UpdateJobProgress(ctx context.Context, jobID string, completed, failed int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE batch_jobs SET completed=$1, failed=$2, updated_at=now() WHERE id=$3
	`, completed, failed, jobID)
	return err
}

// FinalizeJob mirrors _finalize_job/_mark_job_failed.
func (r *JobRepo) FinalizeJob(ctx context.Context, jobID string, status JobStatus, errMsg *string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE batch_jobs SET status=$1, error_message=$2, updated_at=now() WHERE id=$3
	`, status, errMsg, jobID)
	return err
}

// SetCancelling marks a job cancelling without touching item rows,
// mirroring cancel_job's first step.
func (r *JobRepo) SetCancelling(ctx context.Context, jobID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE batch_jobs SET status=$1, updated_at=now() WHERE id=$2`, JobCancelling, jobID)
	return err
}

// CountActive counts a user's jobs in {pending, processing}, enforcing
// submit's tier_limit(tier) precondition against concurrent batch jobs
// rather than concurrent items within one job.
func (r *JobRepo) CountActive(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM batch_jobs WHERE user_id = $1 AND status IN ($2, $3)
	`, userID, JobPending, JobProcessing)
	return n, err
}

// ListIncomplete returns jobs not in a terminal state, used by crash
// recovery on process start.
func (r *JobRepo) ListIncomplete(ctx context.Context) ([]BatchJob, error) {
	var jobs []BatchJob
	err := r.db.SelectContext(ctx, &jobs, `
		SELECT * FROM batch_jobs WHERE status IN ($1, $2, $3)
	`, JobPending, JobProcessing, JobCancelling)
	return jobs, err
}

// ClaimNextPending implements the legacy worker-loop's claim semantics
// (DESIGN.md's Open Question #1 resolution): atomically claims one
// pending job not already claimed by a live lease, setting claimed_by
// and claim_expires_at so a crashed worker's claim eventually expires
// and becomes reclaimable, instead of orphaning forever the way the
// distilled spec's note warns the naive version would.
func (r *JobRepo) ClaimNextPending(ctx context.Context, workerID string, leaseSeconds int) (*BatchJob, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var job BatchJob
	err = tx.GetContext(ctx, &job, `
		SELECT * FROM batch_jobs
		WHERE status = $1 AND (claim_expires_at IS NULL OR claim_expires_at < now())
		ORDER BY created_at
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`, JobPending)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE batch_jobs SET claimed_by=$1, claim_expires_at = now() + make_interval(secs => $2), status=$3, updated_at=now()
		WHERE id=$4
	`, workerID, leaseSeconds, JobProcessing, job.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	job.ClaimedBy = &workerID
	job.Status = JobProcessing
	return &job, nil
}
