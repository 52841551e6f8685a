package models

import "time"

// SyncTracking contains common fields for records pulled from an upstream source
type SyncTracking struct {
	SyncedAt time.Time `json:"synced_at"`
	// Set by the sync job that last wrote the row.
	SyncJobID string `json:"sync_job_id,omitempty"`
}

// Touch stamps the record as written by jobID at now.
func (t *SyncTracking) Touch(jobID string, now time.Time) {
	t.SyncedAt = now
	t.SyncJobID = jobID
}
