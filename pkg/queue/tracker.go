package queue

import "sync"

const sampleWindow = 50

// durationTracker keeps a process-global moving average of item
// durations per model type, used to report an ETA for still-running
// jobs. Grounded on batch_queue.py's get_estimated_completion, which
// keeps the same kind of running average per model rather than per job
// (DESIGN.md's Open Question #3 resolution): a single job rarely has
// enough samples of its own to average over, so the estimate is shared
// process-wide across jobs for the same model.
type durationTracker struct {
	mu      sync.Mutex
	samples map[string][]int // model -> last N duration_ms samples
}

func newDurationTracker() *durationTracker {
	return &durationTracker{samples: make(map[string][]int)}
}

func (t *durationTracker) Record(model string, durationMs int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := append(t.samples[model], durationMs)
	if len(s) > sampleWindow {
		s = s[len(s)-sampleWindow:]
	}
	t.samples[model] = s
}

// Average returns the moving average duration for model, or fallbackMs
// when there is no history yet.
func (t *durationTracker) Average(model string, fallbackMs int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.samples[model]
	if len(s) == 0 {
		return fallbackMs
	}
	total := 0
	for _, v := range s {
		total += v
	}
	return total / len(s)
}
