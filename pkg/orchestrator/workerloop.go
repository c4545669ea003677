package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yallapapi/genforge/common"
	"github.com/yallapapi/genforge/internal/db"
	"github.com/yallapapi/genforge/pkg/ledger"
)

// WorkerLoop is the legacy claim-and-process path: a pool of independent
// worker processes each poll the same batch_jobs table for pending work
// with JobRepo.ClaimNextPending instead of holding an in-process
// coordinator goroutine per job the way pkg/queue.Queue does. This mode
// exists for the deployment shape batch_queue.py's own worker script
// describes — several machines pulling from one shared queue — where a
// crashed worker's claim must expire instead of orphaning the job
// forever (DESIGN.md's Open Question #1 resolution covers both paths).
type WorkerLoop struct {
	WorkerID     string
	Jobs         *db.JobRepo
	Ledger       *ledger.Ledger
	Orchestrator *Orchestrator
	LeaseSeconds int
	PollInterval time.Duration
	Logger       common.ILogger
}

// Run polls for claimable jobs until ctx is cancelled.
func (w *WorkerLoop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		job, err := w.Jobs.ClaimNextPending(ctx, w.WorkerID, w.LeaseSeconds)
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.PollInterval):
			}
			continue
		}

		if err := w.ProcessClaimed(ctx, *job); err != nil && w.Logger != nil {
			w.Logger.Log(common.LogError, fmt.Sprintf("workerloop: job %s failed: %v", job.ID, err))
		}
	}
}

// ProcessClaimed runs every pending item of a claimed job sequentially,
// re-checking the job's status between items so an operator-issued
// cancellation (SetCancelling) is honored the same way pkg/queue.Queue's
// coordinator honors Cancel, and finalizes the job the same way
// batch_queue.py's _finalize_job does.
func (w *WorkerLoop) ProcessClaimed(ctx context.Context, job db.BatchJob) error {
	items, err := w.Jobs.ListItems(ctx, job.ID)
	if err != nil {
		return err
	}

	completed, failed := job.Completed, job.Failed
	cancelled := false

	for _, item := range items {
		if item.Status != db.ItemPending {
			continue
		}

		current, err := w.Jobs.GetJob(ctx, job.ID)
		if err == nil && current.Status == db.JobCancelling {
			cancelled = true
			break
		}

		var params struct {
			Prompt      string `json:"prompt"`
			ImageURL    string `json:"image_url"`
			Resolution  string `json:"resolution"`
			DurationSec int    `json:"duration_sec"`
		}
		if len(item.VariationParams) > 0 {
			_ = json.Unmarshal(item.VariationParams, &params)
		}
		res := w.Orchestrator.Process(ctx, Item{
			ID:          item.ID,
			JobID:       job.ID,
			Model:       item.ModelType,
			Prompt:      params.Prompt,
			ImageURL:    params.ImageURL,
			Resolution:  params.Resolution,
			DurationSec: params.DurationSec,
		})

		status := db.ItemFailed
		if res.Status == "completed" {
			status = db.ItemCompleted
			completed++
		} else {
			failed++
		}

		durationMs := res.DurationMs
		var resultURL, errMsg *string
		if res.ResultURL != "" {
			resultURL = &res.ResultURL
		}
		if res.Error != "" {
			errMsg = &res.Error
		}
		if err := w.Jobs.UpdateItemResult(ctx, item.ID, status, resultURL, errMsg, &durationMs); err != nil {
			return err
		}
		if err := w.Jobs.UpdateJobProgress(ctx, job.ID, completed, failed); err != nil {
			return err
		}
	}

	if cancelled {
		pending := job.Quantity - completed - failed
		if pending > 0 && job.Quantity > 0 {
			refund := job.CreditsCharged * pending / job.Quantity
			if refund > 0 {
				if _, err := w.Ledger.RefundCredits(ctx, job.UserID, refund, fmt.Sprintf("cancelled batch job %s: refund for %d unstarted items", job.ID, pending), job.ID); err != nil {
					return err
				}
			}
		}
		return w.Jobs.FinalizeJob(ctx, job.ID, db.JobCancelled, nil)
	}

	if job.Quantity > 0 && failed == job.Quantity {
		msg := "all items failed"
		return w.Jobs.FinalizeJob(ctx, job.ID, db.JobFailed, &msg)
	}
	return w.Jobs.FinalizeJob(ctx, job.ID, db.JobCompleted, nil)
}
