package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"pdf-translator/internal/document"
	"pdf-translator/internal/pipeline"
)

// TaskStatus is the lifecycle state of a translation job.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

// Task tracks one submitted translation job. Output is held in memory
// until downloaded or the task is evicted.
type Task struct {
	ID          string              `json:"task_id"`
	Status      TaskStatus          `json:"status"`
	FileName    string              `json:"file_name"`
	SourceLang  string              `json:"source_lang"`
	TargetLang  string              `json:"target_lang"`
	CreatedAt   time.Time           `json:"created_at"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
	Error       string              `json:"error,omitempty"`
	Warnings    []document.Warning  `json:"warnings,omitempty"`
	Stats       pipeline.Stats      `json:"stats"`
	Progress    float64             `json:"progress"`

	output []byte
	cancel context.CancelFunc
}

// Registry is the in-memory task store.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*Task)}
}

// Create registers a new pending task and returns it.
func (r *Registry) Create(fileName, sourceLang, targetLang string, cancel context.CancelFunc) *Task {
	t := &Task{
		ID:         uuid.New().String(),
		Status:     TaskPending,
		FileName:   fileName,
		SourceLang: sourceLang,
		TargetLang: targetLang,
		CreatedAt:  time.Now(),
		cancel:     cancel,
	}
	r.mu.Lock()
	r.tasks[t.ID] = t
	r.mu.Unlock()
	return t
}

// Get returns a snapshot copy of the task, so callers never observe a
// concurrent update mid-read.
func (r *Registry) Get(id string) (Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// Output returns the assembled bytes for a completed task.
func (r *Registry) Output(id string) ([]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok || t.Status != TaskCompleted {
		return nil, false
	}
	return t.output, true
}

// SetRunning marks the task running.
func (r *Registry) SetRunning(id string) {
	r.update(id, func(t *Task) { t.Status = TaskRunning })
}

// SetProgress records batch completion progress in [0, 1].
func (r *Registry) SetProgress(id string, completed, total int) {
	r.update(id, func(t *Task) {
		if total > 0 {
			t.Progress = float64(completed) / float64(total)
		}
	})
}

// SetCompleted records a successful run.
func (r *Registry) SetCompleted(id string, res *pipeline.Result) {
	now := time.Now()
	r.update(id, func(t *Task) {
		t.Status = TaskCompleted
		t.CompletedAt = &now
		t.Warnings = res.Warnings
		t.Stats = res.Stats
		t.Progress = 1.0
		t.output = res.Output
	})
}

// SetFailed records a failed run.
func (r *Registry) SetFailed(id string, err error) {
	now := time.Now()
	r.update(id, func(t *Task) {
		if t.Status == TaskCancelled {
			return
		}
		t.Status = TaskFailed
		t.CompletedAt = &now
		t.Error = err.Error()
	})
}

// Cancel aborts a pending or running task. Returns false when the task is
// unknown or already finished.
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || (t.Status != TaskPending && t.Status != TaskRunning) {
		return false
	}
	t.Status = TaskCancelled
	now := time.Now()
	t.CompletedAt = &now
	if t.cancel != nil {
		t.cancel()
	}
	return true
}

func (r *Registry) update(id string, fn func(*Task)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[id]; ok {
		fn(t)
	}
}
