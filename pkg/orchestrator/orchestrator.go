// Package orchestrator drives a single BatchJobItem through validation,
// rate limiting, cooldown checks, generation submission/polling, result
// caching and checkpointing. It is the Go translation of
// job_orchestrator.py's per-item pipeline, composing pkg/classifier,
// pkg/retry, pkg/ratelimit, pkg/cooldown, pkg/checkpoint and
// pkg/objectcache the way azcopy's ste.jobPartMgr composes its own chunk
// scheduler, throughput limiter and job log around a single transfer.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yallapapi/genforge/common"
	"github.com/yallapapi/genforge/pkg/checkpoint"
	"github.com/yallapapi/genforge/pkg/classifier"
	"github.com/yallapapi/genforge/pkg/cooldown"
	"github.com/yallapapi/genforge/pkg/flowlog"
	"github.com/yallapapi/genforge/pkg/generation"
	"github.com/yallapapi/genforge/pkg/objectcache"
	"github.com/yallapapi/genforge/pkg/ratelimit"
	"github.com/yallapapi/genforge/pkg/retry"
	"github.com/yallapapi/genforge/pkg/validate"
)

// Item is the input to Process: one BatchJobItem's worth of work,
// independent of the BatchJob it belongs to.
type Item struct {
	ID          string
	JobID       string
	Model       string
	Prompt      string
	ImageURL    string
	Resolution  string
	DurationSec int
}

// Result is what a single Process call produces.
type Result struct {
	Status     string // "completed" or "failed"
	ResultURL  string
	Error      string
	DurationMs int
}

// Orchestrator wires every per-item reliability primitive together
// around a generation.Registry, mirroring job_orchestrator.py's
// JobOrchestrator constructor, which wires a RetryManager, a
// RateLimiter, a CooldownManager and a cache around the raw backend
// clients.
type Orchestrator struct {
	Registry   *generation.Registry
	Limiters   map[string]ratelimit.Acquirer // keyed by adapter name
	Cooldowns  *cooldown.Manager
	Checkpoint *checkpoint.Manager
	Cache      *objectcache.Cache
	Validator  *validate.Validator
	RetryCfg   retry.Config
	HTTPClient *http.Client
	Logger     common.ILogger
	PollEvery  time.Duration
	PollFor    time.Duration

	// FlowLogDir, when set, turns on a per-item JSONL flow log under
	// this directory, one file per item id, grounded on flow_logger.py's
	// per-operation step trail.
	FlowLogDir string
}

// Process runs a single item end to end: validate, rate-limit, submit,
// poll to completion, cache the result, checkpoint the outcome.
func (o *Orchestrator) Process(ctx context.Context, item Item) Result {
	start := timeNow()

	var flow *flowlog.Logger
	if o.FlowLogDir != "" {
		flow = flowlog.New("item", item.ID, o.FlowLogDir, map[string]interface{}{"job_id": item.JobID, "model": item.Model})
		defer flow.Close()
		_ = flow.Log("started", nil)
	}

	if errs := o.Validator.Job(validate.JobRequest{
		Model:       item.Model,
		Prompt:      item.Prompt,
		ImageURL:    item.ImageURL,
		Resolution:  item.Resolution,
		DurationSec: item.DurationSec,
		Quantity:    1,
	}); errs != nil {
		return o.fail(ctx, item, start, flow, errs.Error())
	}

	adapter, err := o.Registry.Resolve(item.Model)
	if err != nil {
		return o.fail(ctx, item, start, flow, err.Error())
	}

	if limiter, ok := o.Limiters[adapter.Name()]; ok {
		if !limiter.Acquire(ctx, 30*time.Second) {
			return o.fail(ctx, item, start, flow, fmt.Sprintf("rate limit: timed out waiting for capacity on %s", adapter.Name()))
		}
	}

	if o.Cooldowns != nil {
		if state, inCooldown := o.Cooldowns.Get(adapter.Name()); inCooldown && state.IsInCooldown(timeNow()) {
			return o.fail(ctx, item, start, flow, fmt.Sprintf("%s is in cooldown for %s", adapter.Name(), state.RemainingCooldown(timeNow())))
		}
	}

	submitResult := retry.Execute(ctx, o.Logger, "submit:"+adapter.Name(), o.RetryCfg, func(ctx context.Context) (string, int, error) {
		return adapter.Submit(ctx, generation.Config{
			Model:       item.Model,
			Prompt:      item.Prompt,
			ImageURL:    item.ImageURL,
			Resolution:  item.Resolution,
			DurationSec: item.DurationSec,
		})
	})
	if submitResult.Err != nil {
		o.recordFailure(adapter.Name())
		return o.fail(ctx, item, start, flow, submitResult.Err.Error())
	}
	o.recordSuccess(adapter.Name())
	requestID := submitResult.Value
	if flow != nil {
		_ = flow.Log("submitted", map[string]interface{}{"request_id": requestID, "attempts": submitResult.Attempts})
	}

	resultURL, err := o.pollUntilDone(ctx, adapter, requestID)
	if err != nil {
		return o.fail(ctx, item, start, flow, err.Error())
	}

	finalURL := resultURL
	if o.Cache != nil {
		if data, derr := o.download(ctx, resultURL); derr == nil {
			if cached, cerr := o.Cache.GetOrPut(ctx, item.ID, data); cerr == nil {
				finalURL = cached
			}
		}
	}

	return o.succeed(ctx, item, start, flow, finalURL)
}

func (o *Orchestrator) pollUntilDone(ctx context.Context, adapter generation.Adapter, requestID string) (string, error) {
	deadline := timeNow().Add(o.PollFor)
	for {
		status, resultURL, statusCode, err := adapter.Poll(ctx, requestID)
		if err != nil {
			ce := classifier.Classify(err, statusCode)
			if !ce.Retryable {
				return "", err
			}
		} else {
			switch status {
			case generation.StatusCompleted:
				return resultURL, nil
			case generation.StatusFailed:
				return "", fmt.Errorf("generation failed for request %s", requestID)
			}
		}

		if timeNow().After(deadline) {
			return "", fmt.Errorf("polling timed out for request %s", requestID)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(o.PollEvery):
		}
	}
}

func (o *Orchestrator) download(ctx context.Context, url string) ([]byte, error) {
	client := o.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (o *Orchestrator) recordFailure(entity string) {
	if o.Cooldowns != nil {
		_, _ = o.Cooldowns.RecordFailure(entity, "submit failed")
	}
}

func (o *Orchestrator) recordSuccess(entity string) {
	if o.Cooldowns != nil {
		_, _ = o.Cooldowns.RecordSuccess(entity)
	}
}

func (o *Orchestrator) fail(ctx context.Context, item Item, start time.Time, flow *flowlog.Logger, msg string) Result {
	durationMs := int(timeNow().Sub(start).Milliseconds())
	if o.Checkpoint != nil {
		_ = o.Checkpoint.MarkFailed(ctx, item.ID, msg)
	}
	if o.Logger != nil {
		o.Logger.Log(common.LogError, fmt.Sprintf("item %s failed: %s", item.ID, msg))
	}
	if flow != nil {
		_ = flow.LogError("failed", msg, map[string]interface{}{"duration_ms": durationMs})
	}
	return Result{Status: "failed", Error: msg, DurationMs: durationMs}
}

func (o *Orchestrator) succeed(ctx context.Context, item Item, start time.Time, flow *flowlog.Logger, resultURL string) Result {
	durationMs := int(timeNow().Sub(start).Milliseconds())
	if o.Checkpoint != nil {
		_ = o.Checkpoint.MarkComplete(ctx, item.ID, map[string]interface{}{"result_url": resultURL})
	}
	if flow != nil {
		_ = flow.Log("completed", map[string]interface{}{"result_url": resultURL, "duration_ms": durationMs})
	}
	return Result{Status: "completed", ResultURL: resultURL, DurationMs: durationMs}
}

// timeNow is a seam so tests can stub the clock without the package
// depending on a process-wide injected clock for every call site.
var timeNow = time.Now
