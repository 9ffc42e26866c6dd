// Package jobs runs the long scans (library, faces, clustering) in the
// background, one per kind, and streams their progress.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Status represents the lifecycle state of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the job has finished.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Kind names an independently coordinated scan.
type Kind string

const (
	KindPhoto   Kind = "photo"
	KindVideo   Kind = "video"
	KindFaces   Kind = "faces"
	KindCluster Kind = "cluster"
)

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindPhoto, KindVideo, KindFaces, KindCluster:
		return k, nil
	}
	return "", fmt.Errorf("unknown scan kind %q", s)
}

// Label is the human-readable name used in status messages.
func (k Kind) Label() string {
	switch k {
	case KindFaces:
		return "face scan"
	case KindCluster:
		return "clustering"
	default:
		return string(k) + " scan"
	}
}

// Job is one run of a long scan.
type Job struct {
	EventBroadcaster

	ID          string
	Kind        Kind
	StartedAt   time.Time
	status      Status
	current     int
	total       int
	message     string
	err         string
	completedAt *time.Time
	result      any

	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.RWMutex
}

func newJob(id string, kind Kind, cancel context.CancelFunc) *Job {
	return &Job{
		ID:        id,
		Kind:      kind,
		StartedAt: time.Now(),
		status:    StatusPending,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// GetStatus returns the current job status.
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// Result returns the run result once the job has completed.
func (j *Job) Result() any {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.result
}

// Err returns the failure message, if any.
func (j *Job) Err() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.err
}

// Done is closed when the job reaches a terminal status.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Cancel asks the job to stop. Work already committed is kept.
func (j *Job) Cancel() {
	if j.cancel != nil {
		j.cancel()
	}
}

// Report records progress and notifies listeners.
func (j *Job) Report(current, total int, message string) {
	j.mu.Lock()
	j.current, j.total, j.message = current, total, message
	j.mu.Unlock()
	j.SendEvent(Event{Type: "progress", Message: message, Data: map[string]int{
		"current": current,
		"total":   total,
		"percent": percent(current, total),
	}})
}

// Emit sends a domain event (for example a found face) to listeners.
func (j *Job) Emit(eventType string, data any) {
	j.SendEvent(Event{Type: eventType, Data: data})
}

func (j *Job) setRunning() {
	j.mu.Lock()
	j.status = StatusRunning
	j.mu.Unlock()
	j.SendEvent(Event{Type: "started", Message: j.Kind.Label() + " started"})
}

func (j *Job) finish(status Status, result any, errMsg string) {
	now := time.Now()
	j.mu.Lock()
	j.status = status
	j.result = result
	j.err = errMsg
	j.completedAt = &now
	j.mu.Unlock()

	event := Event{Type: string(status), Data: result}
	switch status {
	case StatusFailed:
		event.Message = errMsg
	case StatusCancelled:
		event.Message = j.Kind.Label() + " cancelled"
	default:
		event.Message = j.Kind.Label() + " finished"
	}
	j.SendEvent(event)
	j.Close()
	close(j.done)
}

// Snapshot is the serializable view of a job.
type Snapshot struct {
	ID          string     `json:"id"`
	Kind        Kind       `json:"kind"`
	Status      Status     `json:"status"`
	Current     int        `json:"current"`
	Total       int        `json:"total"`
	Progress    int        `json:"progress"`
	Message     string     `json:"message,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Result      any        `json:"result,omitempty"`
}

// Snapshot returns a consistent copy of the job state.
func (j *Job) Snapshot() Snapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return Snapshot{
		ID:          j.ID,
		Kind:        j.Kind,
		Status:      j.status,
		Current:     j.current,
		Total:       j.total,
		Progress:    percent(j.current, j.total),
		Message:     j.message,
		Error:       j.err,
		StartedAt:   j.StartedAt,
		CompletedAt: j.completedAt,
		Result:      j.result,
	}
}

// MarshalJSON encodes the job snapshot.
func (j *Job) MarshalJSON() ([]byte, error) {
	return json.Marshal(j.Snapshot())
}

func percent(current, total int) int {
	if total <= 0 {
		return 0
	}
	return current * 100 / total
}
