package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// SyncType names a sync workflow
type SyncType string

const (
	SyncTypeAll             SyncType = "sync_all"
	SyncTypeGA4             SyncType = "sync_ga4"
	SyncTypeAgencyAnalytics SyncType = "sync_agency_analytics"
)

// Valid reports whether t is a known sync type
func (t SyncType) Valid() bool {
	switch t {
	case SyncTypeAll, SyncTypeGA4, SyncTypeAgencyAnalytics:
		return true
	}
	return false
}

// JobStatus is the lifecycle state of a sync job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Valid reports whether s is a known status
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no transition may leave s
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// transitions lists, for each target status, the statuses it may be reached from.
// running -> running is allowed so progress updates can restate the status.
var transitions = map[JobStatus][]JobStatus{
	JobStatusRunning:   {JobStatusPending, JobStatusRunning},
	JobStatusCompleted: {JobStatusRunning},
	JobStatusFailed:    {JobStatusRunning},
	JobStatusCancelled: {JobStatusPending, JobStatusRunning},
}

// CanTransitionTo reports whether a job in status s may move to next
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	for _, from := range transitions[next] {
		if from == s {
			return true
		}
	}
	return false
}

// Predecessors returns the statuses a job may be in when it moves to s
func (s JobStatus) Predecessors() []JobStatus {
	return append([]JobStatus(nil), transitions[s]...)
}

// NonTerminalStatuses are the statuses a field-only update may be applied to
var NonTerminalStatuses = []JobStatus{JobStatusPending, JobStatusRunning}

// Owner identifies the user that requested a job
type Owner struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// JobParameters are the original request parameters of a job
type JobParameters struct {
	BrandID    string                 `json:"brand_id,omitempty"`
	StartDate  string                 `json:"start_date,omitempty"`
	EndDate    string                 `json:"end_date,omitempty"`
	FullResync bool                   `json:"full_resync,omitempty"`
	Extra      map[string]interface{} `json:"extra,omitempty"`
}

// SyncJob is the durable record of one sync invocation
type SyncJob struct {
	JobID          string        `json:"job_id"`
	SyncType       SyncType      `json:"sync_type"`
	Owner          Owner         `json:"owner"`
	Status         JobStatus     `json:"status"`
	Progress       int           `json:"progress"`
	CurrentStep    string        `json:"current_step,omitempty"`
	TotalSteps     *int          `json:"total_steps,omitempty"`
	CompletedSteps *int          `json:"completed_steps,omitempty"`
	Parameters     JobParameters `json:"parameters"`
	Result         *JobResult    `json:"result,omitempty"`
	ErrorMessage   string        `json:"error_message,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	StartedAt      *time.Time    `json:"started_at,omitempty"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
}

// Clone returns a deep copy of the job
func (j *SyncJob) Clone() *SyncJob {
	if j == nil {
		return nil
	}
	c := *j
	c.TotalSteps = cloneInt(j.TotalSteps)
	c.CompletedSteps = cloneInt(j.CompletedSteps)
	c.StartedAt = cloneTime(j.StartedAt)
	c.CompletedAt = cloneTime(j.CompletedAt)
	if j.Parameters.Extra != nil {
		c.Parameters.Extra = make(map[string]interface{}, len(j.Parameters.Extra))
		for k, v := range j.Parameters.Extra {
			c.Parameters.Extra[k] = v
		}
	}
	c.Result = j.Result.Clone()
	return &c
}

// String returns the JSON string representation of the job
func (j *SyncJob) String() string {
	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal sync job: %v"}`, err)
	}
	return string(data)
}

// JobUpdate is a partial update of a job record. Nil fields are left untouched.
type JobUpdate struct {
	Status         *JobStatus
	Progress       *int
	CurrentStep    *string
	TotalSteps     *int
	CompletedSteps *int
	ErrorMessage   *string
	Result         *JobResult
	StartedAt      *time.Time
	CompletedAt    *time.Time
}

// AllowedFrom returns the statuses a job must currently be in for u to apply
func (u JobUpdate) AllowedFrom() []JobStatus {
	if u.Status == nil {
		return NonTerminalStatuses
	}
	return u.Status.Predecessors()
}

// Permits reports whether u may be applied to a job currently in status current
func (u JobUpdate) Permits(current JobStatus) bool {
	for _, s := range u.AllowedFrom() {
		if s == current {
			return true
		}
	}
	return false
}

// Apply writes the non-nil fields of u onto job
func (u JobUpdate) Apply(job *SyncJob) {
	if u.Status != nil {
		job.Status = *u.Status
	}
	if u.Progress != nil {
		job.Progress = ClampProgress(*u.Progress)
	}
	if u.CurrentStep != nil {
		job.CurrentStep = *u.CurrentStep
	}
	if u.TotalSteps != nil {
		job.TotalSteps = cloneInt(u.TotalSteps)
	}
	if u.CompletedSteps != nil {
		job.CompletedSteps = cloneInt(u.CompletedSteps)
	}
	if u.ErrorMessage != nil {
		job.ErrorMessage = *u.ErrorMessage
	}
	if u.Result != nil {
		job.Result = u.Result.Clone()
	}
	if u.StartedAt != nil {
		job.StartedAt = cloneTime(u.StartedAt)
	}
	if u.CompletedAt != nil {
		job.CompletedAt = cloneTime(u.CompletedAt)
	}
}

// ClampProgress bounds p to [0,100]
func ClampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// JobFilter selects jobs for listing
type JobFilter struct {
	OwnerID  string
	Status   JobStatus
	SyncType SyncType
	Limit    int
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
