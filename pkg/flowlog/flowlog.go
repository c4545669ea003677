// Package flowlog writes one JSONL record per step of a long-running
// flow (a batch job, a pipeline run) to a per-flow-id file, rotated once
// it grows past a size threshold. Grounded on flow_logger.py's
// FlowLogger, with rotation delegated to
// gopkg.in/natefinch/lumberjack.v2 instead of the hand-rolled
// size-check-and-rename flow_logger.py implements itself.
package flowlog

import (
	"encoding/json"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// maxFileSizeMB mirrors flow_logger.py's MAX_FILE_SIZE_BYTES (10 MiB),
// expressed in lumberjack's MB units.
const maxFileSizeMB = 10

// Step is one JSONL record, shaped like flow_logger.py's emitted
// records: a flow identity, a step name, a timestamp, and free-form
// context.
type Step struct {
	FlowType  string                 `json:"flow_type"`
	FlowID    string                 `json:"flow_id"`
	Step      string                 `json:"step"`
	Timestamp time.Time              `json:"timestamp"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// Logger is the Go equivalent of FlowLogger(flow_type, flow_id, ...).
type Logger struct {
	flowType string
	flowID   string
	mu       sync.Mutex
	writer   *lumberjack.Logger
	baseCtx  map[string]interface{}
}

func New(flowType, flowID, outputDir string, baseContext map[string]interface{}) *Logger {
	filename := filepath.Join(outputDir, flowType, flowID+".jsonl")
	return &Logger{
		flowType: flowType,
		flowID:   flowID,
		baseCtx:  baseContext,
		writer: &lumberjack.Logger{
			Filename:   filename,
			MaxSize:    maxFileSizeMB,
			MaxBackups: 5,
			Compress:   true,
		},
	}
}

func mergeContext(base, extra map[string]interface{}) map[string]interface{} {
	if len(base) == 0 && len(extra) == 0 {
		return nil
	}
	merged := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

// Log writes one step record, mirroring FlowLogger's log_step.
func (l *Logger) Log(step string, ctx map[string]interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := Step{
		FlowType:  l.flowType,
		FlowID:    l.flowID,
		Step:      step,
		Timestamp: time.Now().UTC(),
		Context:   mergeContext(l.baseCtx, ctx),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = l.writer.Write(data)
	return err
}

// LogError mirrors log_error: same shape, with the error field set.
func (l *Logger) LogError(step string, errMsg string, ctx map[string]interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := Step{
		FlowType:  l.flowType,
		FlowID:    l.flowID,
		Step:      step,
		Timestamp: time.Now().UTC(),
		Context:   mergeContext(l.baseCtx, ctx),
		Error:     errMsg,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = l.writer.Write(data)
	return err
}

func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writer.Close()
}
