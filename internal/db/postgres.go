package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/Kamar-Folarin/brand-sync/internal/models"
)

const jobColumns = `job_id, sync_type, owner_id, owner_email, status, progress, current_step,
	total_steps, completed_steps, parameters, result, error_message, created_at, started_at, completed_at`

const uniqueViolation = "23505"

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*models.SyncJob, error) {
	var (
		job            models.SyncJob
		totalSteps     sql.NullInt64
		completedSteps sql.NullInt64
		paramsJSON     []byte
		resultJSON     []byte
		startedAt      sql.NullTime
		completedAt    sql.NullTime
	)

	err := row.Scan(
		&job.JobID, &job.SyncType, &job.Owner.UserID, &job.Owner.Email, &job.Status,
		&job.Progress, &job.CurrentStep, &totalSteps, &completedSteps, &paramsJSON,
		&resultJSON, &job.ErrorMessage, &job.CreatedAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	if totalSteps.Valid {
		v := int(totalSteps.Int64)
		job.TotalSteps = &v
	}
	if completedSteps.Valid {
		v := int(completedSteps.Int64)
		job.CompletedSteps = &v
	}
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	if len(paramsJSON) > 0 {
		if err := json.Unmarshal(paramsJSON, &job.Parameters); err != nil {
			return nil, fmt.Errorf("failed to unmarshal job parameters: %w", err)
		}
	}
	if len(resultJSON) > 0 {
		var result models.JobResult
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal job result: %w", err)
		}
		job.Result = &result
	}
	return &job, nil
}

// CreateJob inserts a new job record
func (s *PostgresStore) CreateJob(ctx context.Context, job *models.SyncJob) error {
	if job == nil {
		return fmt.Errorf("job cannot be nil")
	}

	paramsJSON, err := json.Marshal(job.Parameters)
	if err != nil {
		return fmt.Errorf("failed to marshal job parameters: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sync_jobs (job_id, sync_type, owner_id, owner_email, status, progress,
			current_step, parameters, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
	`, job.JobID, job.SyncType, job.Owner.UserID, job.Owner.Email, job.Status,
		models.ClampProgress(job.Progress), job.CurrentStep, paramsJSON, job.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", ErrDuplicateJob, job.JobID)
		}
		return fmt.Errorf("failed to create sync job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by id
func (s *PostgresStore) GetJob(ctx context.Context, jobID string) (*models.SyncJob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM sync_jobs WHERE job_id = $1`, jobID)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, ErrJobNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get sync job: %w", err)
	}
	return job, nil
}

// UpdateJob applies a partial update guarded by the job's current status. The
// status guard lives in the WHERE clause so concurrent writers cannot move a
// job out of a terminal state.
func (s *PostgresStore) UpdateJob(ctx context.Context, jobID string, u models.JobUpdate) (*models.SyncJob, error) {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{jobID}
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if u.Status != nil {
		add("status", string(*u.Status))
	}
	if u.Progress != nil {
		add("progress", models.ClampProgress(*u.Progress))
	}
	if u.CurrentStep != nil {
		add("current_step", *u.CurrentStep)
	}
	if u.TotalSteps != nil {
		add("total_steps", *u.TotalSteps)
	}
	if u.CompletedSteps != nil {
		add("completed_steps", *u.CompletedSteps)
	}
	if u.ErrorMessage != nil {
		add("error_message", *u.ErrorMessage)
	}
	if u.Result != nil {
		resultJSON, err := json.Marshal(u.Result)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal job result: %w", err)
		}
		add("result", resultJSON)
	}
	if u.StartedAt != nil {
		add("started_at", *u.StartedAt)
	}
	if u.CompletedAt != nil {
		add("completed_at", *u.CompletedAt)
	}

	allowed := make([]string, 0, len(u.AllowedFrom()))
	for _, st := range u.AllowedFrom() {
		allowed = append(allowed, string(st))
	}
	args = append(args, pq.Array(allowed))

	query := fmt.Sprintf(`UPDATE sync_jobs SET %s WHERE job_id = $1 AND status = ANY($%d) RETURNING %s`,
		strings.Join(sets, ", "), len(args), jobColumns)

	job, err := scanJob(s.db.QueryRowContext(ctx, query, args...))
	if err == nil {
		return job, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to update sync job: %w", err)
	}

	var current string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM sync_jobs WHERE job_id = $1`, jobID).Scan(&current)
	if err == sql.ErrNoRows {
		return nil, ErrJobNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to read sync job status: %w", err)
	}
	return nil, fmt.Errorf("%w: job %s is %s", ErrJobFinalized, jobID, current)
}

// ListJobs returns jobs matching the filter, newest first
func (s *PostgresStore) ListJobs(ctx context.Context, filter models.JobFilter) ([]*models.SyncJob, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		where = append(where, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.SyncType != "" {
		args = append(args, string(filter.SyncType))
		where = append(where, fmt.Sprintf("sync_type = $%d", len(args)))
	}

	query := `SELECT ` + jobColumns + ` FROM sync_jobs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, job_id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*models.SyncJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync jobs: %w", err)
	}
	return jobs, nil
}
