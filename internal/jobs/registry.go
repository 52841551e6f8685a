package jobs

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Registry is the in-process bookkeeping of running jobs, jobs asked to stop,
// and the single-flight keys held by running jobs
type Registry struct {
	mu        sync.Mutex
	running   map[string]*Task
	cancelled map[string]struct{}
	flights   map[string]string // flight key -> job id
	held      map[string]string // job id -> flight key
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		running:   make(map[string]*Task),
		cancelled: make(map[string]struct{}),
		flights:   make(map[string]string),
		held:      make(map[string]string),
	}
}

// Register records task as running
func (r *Registry) Register(task *Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running[task.jobID] = task
}

// Deregister removes the job from every set, including its flight key
func (r *Registry) Deregister(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, jobID)
	delete(r.cancelled, jobID)
	if key, ok := r.held[jobID]; ok {
		delete(r.held, jobID)
		if r.flights[key] == jobID {
			delete(r.flights, key)
		}
	}
}

// IsCancelled reports whether cancellation was requested for the job
func (r *Registry) IsCancelled(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cancelled[jobID]; ok {
		return true
	}
	if task, ok := r.running[jobID]; ok {
		return task.Cancelled()
	}
	return false
}

// IsRunning reports whether the job has a registered task
func (r *Registry) IsRunning(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.running[jobID]
	return ok
}

// MarkCancelled records cancel intent and signals the task if it is running
func (r *Registry) MarkCancelled(jobID string) {
	r.mu.Lock()
	r.cancelled[jobID] = struct{}{}
	task := r.running[jobID]
	r.mu.Unlock()
	if task != nil {
		task.requestCancel()
	}
}

// AwaitTeardown waits up to timeout for the job's task to finish, then clears
// the cancel mark. It returns false if the task was still running.
func (r *Registry) AwaitTeardown(ctx context.Context, jobID string, timeout time.Duration) bool {
	r.mu.Lock()
	task := r.running[jobID]
	r.mu.Unlock()

	confirmed := true
	if task != nil {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-task.done:
		case <-timer.C:
			confirmed = false
		case <-ctx.Done():
			confirmed = false
		}
	}

	r.mu.Lock()
	delete(r.cancelled, jobID)
	r.mu.Unlock()
	return confirmed
}

// RequestCancel marks, signals and awaits the job's task
func (r *Registry) RequestCancel(ctx context.Context, jobID string, timeout time.Duration) bool {
	r.MarkCancelled(jobID)
	return r.AwaitTeardown(ctx, jobID, timeout)
}

// Claim takes the flight key for jobID. If another job holds it, that job's
// id is returned with ok false.
func (r *Registry) Claim(key, jobID string) (holder string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, exists := r.flights[key]; exists && current != jobID {
		return current, false
	}
	r.flights[key] = jobID
	r.held[jobID] = key
	return jobID, true
}

// Release gives up the flight key held by jobID
func (r *Registry) Release(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if key, ok := r.held[jobID]; ok {
		delete(r.held, jobID)
		if r.flights[key] == jobID {
			delete(r.flights, key)
		}
	}
}

// RunningJobs returns the ids of running jobs, sorted
func (r *Registry) RunningJobs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedKeys(r.running)
}

// CancelledJobs returns the ids with a pending cancel mark, sorted
func (r *Registry) CancelledJobs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedKeys(r.cancelled)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
