// Package checkpoint implements a write-ahead JSONL log with a sidecar
// index, letting the orchestrator resume interrupted work after a crash.
// Grounded on checkpoint_manager.py's CheckpointEntry/CheckpointManager.
package checkpoint

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/yallapapi/genforge/pkg/filelock"
)

// Entry mirrors checkpoint_manager.py's CheckpointEntry dataclass.
type Entry struct {
	ID        string                 `json:"id"`
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Step      int                    `json:"step"`
	Result    map[string]interface{} `json:"result,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

const (
	StatusStarted    = "started"
	StatusRunning    = "running"
	StatusInProgress = "in_progress"
	StatusRecovering = "recovering"
	StatusComplete   = "complete"
	StatusFailed     = "failed"
)

var incompleteStatuses = map[string]bool{
	StatusStarted: true, StatusRunning: true, StatusInProgress: true,
}

// Manager is the Go equivalent of CheckpointManager: a JSONL log
// ({name}.jsonl) plus an index file ({name}.index.json) mapping id to
// byte offset of its latest entry.
type Manager struct {
	name        string
	dir         string
	useLocking  bool
	mu          sync.Mutex
	index       map[string]int64 // id -> offset of its latest record in the jsonl
	latest      map[string]Entry
}

func New(name, dir string, useLocking bool) *Manager {
	return &Manager{name: name, dir: dir, useLocking: useLocking, index: make(map[string]int64), latest: make(map[string]Entry)}
}

func (m *Manager) logPath() string   { return filepath.Join(m.dir, m.name+".jsonl") }
func (m *Manager) indexPath() string { return filepath.Join(m.dir, m.name+".index.json") }

// Load reads the index if present, otherwise rebuilds it by scanning the
// JSONL file, mirroring _load_index/_rebuild_index.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if data, err := os.ReadFile(m.indexPath()); err == nil {
		if json.Unmarshal(data, &m.index) == nil {
			return m.hydrateLatestLocked()
		}
	}
	return m.rebuildIndexLocked()
}

func (m *Manager) rebuildIndexLocked() error {
	f, err := os.Open(m.logPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	m.index = make(map[string]int64)
	m.latest = make(map[string]Entry)

	var offset int64
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		var e Entry
		if json.Unmarshal(line, &e) == nil {
			m.index[e.ID] = offset
			m.latest[e.ID] = e
		}
		offset += int64(len(line)) + 1
	}
	return m.saveIndexLocked()
}

func (m *Manager) hydrateLatestLocked() error {
	f, err := os.Open(m.logPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	var offset int64
	for scanner.Scan() {
		line := scanner.Bytes()
		var e Entry
		if json.Unmarshal(line, &e) == nil {
			m.latest[e.ID] = e
		}
		offset += int64(len(line)) + 1
	}
	return nil
}

func (m *Manager) saveIndexLocked() error {
	data, err := json.Marshal(m.index)
	if err != nil {
		return err
	}
	return os.WriteFile(m.indexPath(), data, 0o644)
}

// Write appends a new entry, under a file lock if useLocking is set,
// mirroring write()'s atomic-append + index update.
func (m *Manager) Write(ctx context.Context, e Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	appendFn := func() error {
		m.mu.Lock()
		defer m.mu.Unlock()

		if err := os.MkdirAll(m.dir, 0o755); err != nil {
			return err
		}
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		data = append(data, '\n')

		f, err := os.OpenFile(m.logPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()

		stat, err := f.Stat()
		if err != nil {
			return err
		}
		offset := stat.Size()

		if _, err := f.Write(data); err != nil {
			return err
		}
		if err := f.Sync(); err != nil {
			return err
		}

		m.index[e.ID] = offset
		m.latest[e.ID] = e
		return m.saveIndexLocked()
	}

	if !m.useLocking {
		return appendFn()
	}
	lock := filelock.Named(m.name+"-checkpoint", m.dir)
	return lock.With(ctx, 30*time.Second, appendFn)
}

func (m *Manager) Read(id string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.latest[id]
	return e, ok
}

func (m *Manager) ReadAll() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0, len(m.latest))
	for _, e := range m.latest {
		out = append(out, e)
	}
	return out
}

// ReadIncomplete mirrors read_incomplete: statuses in {started, running,
// in_progress}.
func (m *Manager) ReadIncomplete() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0)
	for _, e := range m.latest {
		if incompleteStatuses[e.Status] {
			out = append(out, e)
		}
	}
	return out
}

func (m *Manager) ReadByStatus(status string) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0)
	for _, e := range m.latest {
		if e.Status == status {
			out = append(out, e)
		}
	}
	return out
}

// Recover marks every incomplete entry as "recovering" and returns their
// ids, mirroring recover().
func (m *Manager) Recover(ctx context.Context) ([]string, error) {
	ids := make([]string, 0)
	for _, e := range m.ReadIncomplete() {
		e.Status = StatusRecovering
		if err := m.Write(ctx, e); err != nil {
			return ids, err
		}
		ids = append(ids, e.ID)
	}
	return ids, nil
}

func (m *Manager) MarkComplete(ctx context.Context, id string, result map[string]interface{}) error {
	e, _ := m.Read(id)
	e.ID = id
	e.Status = StatusComplete
	e.Result = result
	return m.Write(ctx, e)
}

func (m *Manager) MarkFailed(ctx context.Context, id string, errMsg string) error {
	e, _ := m.Read(id)
	e.ID = id
	e.Status = StatusFailed
	e.Error = errMsg
	return m.Write(ctx, e)
}

// Compact rewrites the JSONL file keeping only the latest record per id,
// mirroring compact().
func (m *Manager) Compact(ctx context.Context) error {
	compactFn := func() error {
		m.mu.Lock()
		defer m.mu.Unlock()

		tmp := m.logPath() + ".compact.tmp"
		f, err := os.Create(tmp)
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(m.latest))
		for id := range m.latest {
			ids = append(ids, id)
		}
		newIndex := make(map[string]int64, len(ids))
		var offset int64
		for _, id := range ids {
			data, err := json.Marshal(m.latest[id])
			if err != nil {
				f.Close()
				return err
			}
			data = append(data, '\n')
			if _, err := f.Write(data); err != nil {
				f.Close()
				return err
			}
			newIndex[id] = offset
			offset += int64(len(data))
		}
		if err := f.Close(); err != nil {
			return err
		}
		if err := os.Rename(tmp, m.logPath()); err != nil {
			return err
		}
		m.index = newIndex
		return m.saveIndexLocked()
	}

	if !m.useLocking {
		return compactFn()
	}
	lock := filelock.Named(m.name+"-checkpoint", m.dir)
	return lock.With(ctx, 30*time.Second, compactFn)
}

// Clear removes all on-disk state, mirroring clear().
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index = make(map[string]int64)
	m.latest = make(map[string]Entry)
	_ = os.Remove(m.logPath())
	_ = os.Remove(m.indexPath())
	return nil
}
