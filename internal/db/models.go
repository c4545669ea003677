// Package db holds the sqlx-mapped domain records and the row-locked
// repository methods the rest of genforge's packages depend on.
// Grounded on the original FastAPI service's SQLAlchemy models
// (credits.py, batch_queue.py, r2_cache.py) translated to sqlx structs
// and explicit SQL, following the teacher's own preference for explicit
// data-plane code over a heavier ORM layer.
package db

import (
	"encoding/json"
	"time"
)

// User mirrors SPEC_FULL.md's §3 User record.
type User struct {
	ID            string    `db:"id"`
	Tier          string    `db:"tier"`
	CreditBalance int       `db:"credit_balance"`
	Active        bool      `db:"active"`
	CreatedAt     time.Time `db:"created_at"`
}

// CreditTransaction mirrors CreditTransaction, with BalanceAfter as the
// invariant the ledger enforces on every row and Reference carrying the
// job uuid, payment id, or admin user id the transaction is tied to.
type CreditTransaction struct {
	ID            int64     `db:"id"`
	UserID        string    `db:"user_id"`
	Amount        int       `db:"amount"`
	BalanceAfter  int       `db:"balance_after"`
	Source        string    `db:"source"`
	Description   string    `db:"description"`
	Reference     *string   `db:"reference"`
	CreatedAt     time.Time `db:"created_at"`
}

// JobStatus is a closed enum over BatchJob.Status.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCancelling JobStatus = "cancelling"
	JobCancelled  JobStatus = "cancelled"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// BatchJob mirrors BatchJob.
type BatchJob struct {
	ID              string          `db:"id"`
	UserID          string          `db:"user_id"`
	Status          JobStatus       `db:"status"`
	OutputType      string          `db:"output_type"`
	Quantity        int             `db:"quantity"`
	Completed       int             `db:"completed"`
	Failed          int             `db:"failed"`
	CreditsCharged  int             `db:"credits_charged"`
	Configuration   json.RawMessage `db:"configuration"`
	ErrorMessage    *string         `db:"error_message"`
	ClaimedBy       *string         `db:"claimed_by"`
	ClaimExpiresAt  *time.Time      `db:"claim_expires_at"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

func (j BatchJob) Pending() int {
	remaining := j.Quantity - j.Completed - j.Failed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// BatchJobItemStatus is a closed enum over BatchJobItem.Status.
type BatchJobItemStatus string

const (
	ItemPending    BatchJobItemStatus = "pending"
	ItemProcessing BatchJobItemStatus = "processing"
	ItemCompleted  BatchJobItemStatus = "completed"
	ItemFailed     BatchJobItemStatus = "failed"
)

// BatchJobItem mirrors BatchJobItem.
type BatchJobItem struct {
	ID              string             `db:"id"`
	JobID           string             `db:"job_id"`
	Status          BatchJobItemStatus `db:"status"`
	ModelType       string             `db:"model_type"`
	VariationParams json.RawMessage    `db:"variation_params"`
	ResultURL       *string            `db:"result_url"`
	ErrorMessage    *string            `db:"error_message"`
	DurationMs      *int               `db:"duration_ms"`
	CreatedAt       time.Time          `db:"created_at"`
	UpdatedAt       time.Time          `db:"updated_at"`
}

// UploadCache mirrors the original r2_cache.py/cache.py UploadCache
// model: a content-addressed pointer to a previously uploaded object.
type UploadCache struct {
	ID        int64     `db:"id"`
	Hash      string    `db:"hash"`
	Backend   string    `db:"backend"`
	URL       string    `db:"url"`
	SizeBytes int64     `db:"size_bytes"`
	CreatedAt time.Time `db:"created_at"`
}
