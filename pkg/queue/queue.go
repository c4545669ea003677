// Package queue is genforge's in-process batch job coordinator: one
// goroutine per submitted BatchJob, fanning its items out across a
// semaphore.Weighted bounded by the submitting user's tier, updating
// progress as items complete and refunding the credit ledger for items a
// cancellation left unstarted. Grounded on
// batch_queue.py's BatchQueue/submit_job/_process_job, translated from
// asyncio tasks to goroutines the way azcopy's jobsAdmin.JobsAdmin
// singleton owns one jobMgr per running job and fans transfers out
// across a chunk-level concurrency limit.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/yallapapi/genforge/common"
	"github.com/yallapapi/genforge/internal/db"
	"github.com/yallapapi/genforge/pkg/ledger"
	"github.com/yallapapi/genforge/pkg/metrics"
	"github.com/yallapapi/genforge/pkg/orchestrator"
)

// itemParams is the per-item request shape persisted on
// BatchJobItem.VariationParams, so a crash-recovered item carries the
// same prompt/config it was originally submitted with instead of an
// empty one that would fail validation on resume.
type itemParams struct {
	Prompt      string `json:"prompt,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	Resolution  string `json:"resolution,omitempty"`
	DurationSec int    `json:"duration_sec,omitempty"`
}

// JobState is the read-only snapshot GetState returns, a typed stand-in
// for batch_queue.py's get_job_status dict.
type JobState struct {
	ID             string
	Status         db.JobStatus
	Quantity       int
	Completed      int
	Failed         int
	Pending        int
	CreditsCharged int
	ErrorMessage   string
	ETAMillis      int
}

type jobHandle struct {
	cancelRequested atomic.Bool
}

// Queue is the singleton-style coordinator, constructed once at startup
// the way azcopy's JobsAdmin is assigned once in Initialize.
type Queue struct {
	jobs       *db.JobRepo
	users      *db.UserRepo
	ledger     *ledger.Ledger
	orch       *orchestrator.Orchestrator
	tierLimits map[string]int
	logger     common.ILogger
	tracker    *durationTracker

	mu      sync.Mutex
	running map[string]*jobHandle
}

func New(jobs *db.JobRepo, users *db.UserRepo, led *ledger.Ledger, orch *orchestrator.Orchestrator, tierLimits map[string]int, logger common.ILogger) *Queue {
	return &Queue{
		jobs:       jobs,
		users:      users,
		ledger:     led,
		orch:       orch,
		tierLimits: tierLimits,
		logger:     logger,
		tracker:    newDurationTracker(),
		running:    make(map[string]*jobHandle),
	}
}

func ptrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func itemStatusFor(resultStatus string) db.BatchJobItemStatus {
	if resultStatus == "completed" {
		return db.ItemCompleted
	}
	return db.ItemFailed
}

// Submit charges the job's full cost up front (mirroring
// batch_queue.py's submit_job deducting credits before any item runs),
// persists the job and its items, and starts its coordinator goroutine.
func (q *Queue) Submit(ctx context.Context, userID, tier, outputType string, items []orchestrator.Item, costPerItem int) (string, error) {
	if len(items) == 0 {
		return "", fmt.Errorf("queue: cannot submit a job with zero items")
	}
	if q.orch != nil && q.orch.Validator != nil {
		if e := q.orch.Validator.ValidateQuantity(len(items)); e != nil {
			return "", e
		}
	}

	user, err := q.users.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if !user.Active {
		return "", &InactiveUserError{UserID: userID}
	}

	activeCount, err := q.jobs.CountActive(ctx, userID)
	if err != nil {
		return "", err
	}
	if limit, ok := q.tierLimits[tier]; ok && limit > 0 && activeCount >= limit {
		return "", &TierLimitExceeded{Limit: limit}
	}

	jobID := common.NewJobID().String()
	total := costPerItem * len(items)

	if _, err := q.ledger.DeductCredits(ctx, userID, total, "job_submit", fmt.Sprintf("batch job %s (%d items)", jobID, len(items)), jobID, false); err != nil {
		return "", err
	}

	dbItems := make([]db.BatchJobItem, len(items))
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = common.NewJobID().String()
		}
		items[i].JobID = jobID
		params, merr := json.Marshal(itemParams{
			Prompt:      items[i].Prompt,
			ImageURL:    items[i].ImageURL,
			Resolution:  items[i].Resolution,
			DurationSec: items[i].DurationSec,
		})
		if merr != nil {
			return "", merr
		}
		dbItems[i] = db.BatchJobItem{
			ID:              items[i].ID,
			JobID:           jobID,
			Status:          db.ItemPending,
			ModelType:       items[i].Model,
			VariationParams: params,
		}
	}

	job := db.BatchJob{
		ID:             jobID,
		UserID:         userID,
		Status:         db.JobPending,
		OutputType:     outputType,
		Quantity:       len(items),
		CreditsCharged: total,
	}

	if err := q.jobs.InsertJobWithItems(ctx, job, dbItems); err != nil {
		if _, rerr := q.ledger.RefundCredits(ctx, userID, total, fmt.Sprintf("refund failed submit for job %s", jobID), jobID); rerr != nil && q.logger != nil {
			q.logger.Log(common.LogError, fmt.Sprintf("queue: failed to refund after failed submit for job %s: %v", jobID, rerr))
		}
		return "", err
	}

	q.start(jobID, tier, items, len(items), 0, 0)
	return jobID, nil
}

func (q *Queue) start(jobID, tier string, items []orchestrator.Item, totalQuantity, baseCompleted, baseFailed int) {
	h := &jobHandle{}
	q.mu.Lock()
	q.running[jobID] = h
	q.mu.Unlock()

	go q.run(context.Background(), jobID, tier, items, totalQuantity, baseCompleted, baseFailed, h)
}

func (q *Queue) concurrencyFor(tier string) int64 {
	if n, ok := q.tierLimits[tier]; ok && n > 0 {
		return int64(n)
	}
	return 1
}

// run is the per-job coordinator goroutine: it fans items out across a
// semaphore bounded by the user's tier, mirroring batch_queue.py's
// asyncio.Semaphore(tier_config.max_concurrency).
func (q *Queue) run(ctx context.Context, jobID, tier string, items []orchestrator.Item, totalQuantity, baseCompleted, baseFailed int, h *jobHandle) {
	defer func() {
		q.mu.Lock()
		delete(q.running, jobID)
		q.mu.Unlock()
	}()

	sem := semaphore.NewWeighted(q.concurrencyFor(tier))
	var g errgroup.Group
	var mu sync.Mutex
	completed, failed := baseCompleted, baseFailed

	metrics.QueueDepth.WithLabelValues(string(db.JobProcessing)).Inc()
	defer metrics.QueueDepth.WithLabelValues(string(db.JobProcessing)).Dec()

	for _, it := range items {
		it := it
		if job, err := q.jobs.GetJob(ctx, jobID); err == nil && job.Status == db.JobCancelling {
			h.cancelRequested.Store(true)
		}
		if h.cancelRequested.Load() {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		g.Go(func() error {
			defer sem.Release(1)

			res := q.orch.Process(ctx, it)
			q.tracker.Record(it.Model, res.DurationMs)

			outcome := "completed"
			mu.Lock()
			if res.Status == "completed" {
				completed++
			} else {
				failed++
				outcome = "failed"
			}
			c, f := completed, failed
			mu.Unlock()
			metrics.ItemDuration.WithLabelValues(it.Model, outcome).Observe(float64(res.DurationMs) / 1000)

			durationMs := res.DurationMs
			if err := q.jobs.UpdateItemResult(context.Background(), it.ID, itemStatusFor(res.Status), ptrOrNil(res.ResultURL), ptrOrNil(res.Error), &durationMs); err != nil && q.logger != nil {
				q.logger.Log(common.LogError, fmt.Sprintf("queue: failed to record item %s result: %v", it.ID, err))
			}
			if err := q.jobs.UpdateJobProgress(context.Background(), jobID, c, f); err != nil && q.logger != nil {
				q.logger.Log(common.LogError, fmt.Sprintf("queue: failed to update progress for job %s: %v", jobID, err))
			}
			return nil
		})
	}

	_ = g.Wait()
	q.finalize(context.Background(), jobID, totalQuantity, completed, failed, h)
}

// finalize mirrors batch_queue.py's _finalize_job/_mark_job_failed and,
// on cancellation, cancel_job's refund step. Cancellation waits for every
// already-acquired item to finish (the caller only reaches here after
// g.Wait() above returns) before computing the refund, DESIGN.md's Open
// Question #2 resolution: an in-flight generation call is never aborted
// mid-request just to free its charged credit sooner.
func (q *Queue) finalize(ctx context.Context, jobID string, quantity, completed, failed int, h *jobHandle) {
	if h.cancelRequested.Load() {
		job, err := q.jobs.GetJob(ctx, jobID)
		if err == nil {
			pending := quantity - completed - failed
			if pending > 0 && quantity > 0 {
				refund := job.CreditsCharged * pending / quantity
				if refund > 0 {
					if _, err := q.ledger.RefundCredits(ctx, job.UserID, refund, fmt.Sprintf("cancelled batch job %s: refund for %d unstarted items", jobID, pending), jobID); err != nil && q.logger != nil {
						q.logger.Log(common.LogError, fmt.Sprintf("queue: refund failed for job %s: %v", jobID, err))
					}
				}
			}
		}
		_ = q.jobs.FinalizeJob(ctx, jobID, db.JobCancelled, nil)
		return
	}

	if quantity > 0 && failed == quantity {
		msg := "all items failed"
		_ = q.jobs.FinalizeJob(ctx, jobID, db.JobFailed, &msg)
		return
	}

	_ = q.jobs.FinalizeJob(ctx, jobID, db.JobCompleted, nil)
}

// Cancel marks a job cancelling and stops it from starting any item that
// hasn't already acquired the semaphore; items already running are left
// to finish (see finalize's doc comment).
func (q *Queue) Cancel(ctx context.Context, jobID string) error {
	if err := q.jobs.SetCancelling(ctx, jobID); err != nil {
		return err
	}
	q.mu.Lock()
	h, ok := q.running[jobID]
	q.mu.Unlock()
	if ok {
		h.cancelRequested.Store(true)
	}
	return nil
}

// GetState mirrors batch_queue.py's get_job_status.
func (q *Queue) GetState(ctx context.Context, jobID string) (JobState, error) {
	job, err := q.jobs.GetJob(ctx, jobID)
	if err != nil {
		return JobState{}, err
	}
	errMsg := ""
	if job.ErrorMessage != nil {
		errMsg = *job.ErrorMessage
	}

	pending := job.Pending()
	eta := 0
	if pending > 0 {
		items, err := q.jobs.ListItems(ctx, jobID)
		if err == nil && len(items) > 0 {
			perItem := q.tracker.Average(items[0].ModelType, 30_000)
			concurrency := int(q.concurrencyFor(""))
			if concurrency < 1 {
				concurrency = 1
			}
			eta = (pending * perItem) / concurrency
		}
	}

	return JobState{
		ID:             job.ID,
		Status:         job.Status,
		Quantity:       job.Quantity,
		Completed:      job.Completed,
		Failed:         job.Failed,
		Pending:        pending,
		CreditsCharged: job.CreditsCharged,
		ErrorMessage:   errMsg,
		ETAMillis:      eta,
	}, nil
}

// JobIDs returns the jobs this process currently has a live coordinator
// goroutine for.
func (q *Queue) JobIDs() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := make([]string, 0, len(q.running))
	for id := range q.running {
		ids = append(ids, id)
	}
	return ids
}

// Recover re-spawns a coordinator goroutine for every job left
// pending/processing/cancelling by a previous process, mirroring
// batch_queue.py's own startup recovery scan over jobs that were never
// finalized before a restart.
func (q *Queue) Recover(ctx context.Context, tierOf func(userID string) string) (int, error) {
	incomplete, err := q.jobs.ListIncomplete(ctx)
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, job := range incomplete {
		dbItems, err := q.jobs.ListItems(ctx, job.ID)
		if err != nil {
			if q.logger != nil {
				q.logger.Log(common.LogError, fmt.Sprintf("queue: recover: failed to list items for job %s: %v", job.ID, err))
			}
			continue
		}

		var pendingItems []orchestrator.Item
		for _, it := range dbItems {
			if it.Status != db.ItemPending {
				continue
			}
			item := orchestrator.Item{ID: it.ID, JobID: job.ID, Model: it.ModelType}
			var params itemParams
			if len(it.VariationParams) > 0 {
				if err := json.Unmarshal(it.VariationParams, &params); err != nil && q.logger != nil {
					q.logger.Log(common.LogError, fmt.Sprintf("queue: recover: failed to decode params for item %s: %v", it.ID, err))
				}
			}
			item.Prompt = params.Prompt
			item.ImageURL = params.ImageURL
			item.Resolution = params.Resolution
			item.DurationSec = params.DurationSec
			pendingItems = append(pendingItems, item)
		}

		tier := tierOf(job.UserID)
		q.start(job.ID, tier, pendingItems, job.Quantity, job.Completed, job.Failed)
		recovered++
	}
	return recovered, nil
}
