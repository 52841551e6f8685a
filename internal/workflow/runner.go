package workflow

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/brand-sync/internal/jobs"
	"github.com/Kamar-Folarin/brand-sync/internal/metrics"
	"github.com/Kamar-Folarin/brand-sync/internal/models"
	"github.com/Kamar-Folarin/brand-sync/internal/sources"
)

// ErrCancelled is returned by a workflow that stopped on a cancel request
var ErrCancelled = errors.New("sync cancelled")

// entity names one unit of work inside a phase
type entity struct {
	Type string
	ID   string
	Name string
}

// entityResult is what a unit of work reports back
type entityResult struct {
	Records int
	Counts  map[string]int
}

// run carries the state of one workflow execution
type run struct {
	task   *jobs.Task
	result *models.JobResult
	log    *logrus.Entry
}

func newRun(task *jobs.Task, logger *logrus.Logger) *run {
	return &run{
		task:   task,
		result: models.NewJobResult(task.SyncType()),
		log: logger.WithFields(logrus.Fields{
			"job_id":    task.JobID(),
			"sync_type": task.SyncType(),
		}),
	}
}

// report writes progress for the job. A failed progress write is logged and
// does not stop the run.
func (r *run) report(progress int, step string, total, completed int) {
	u := jobs.StatusUpdate{Progress: &progress, CurrentStep: &step, Message: step}
	if total >= 0 {
		u.TotalSteps = &total
		u.CompletedSteps = &completed
	}
	if err := r.task.Report(r.task.Context(), u); err != nil {
		r.log.WithError(err).Debug("Progress update rejected")
	}
}

// skip marks a phase finished without doing any work
func (r *run) skip(phase Phase, reason string) {
	r.log.WithField("phase", phase.Name).Info(reason)
	r.report(phase.End(), reason, -1, 0)
}

func (r *run) checkCancelled() error {
	if r.task.Cancelled() {
		return ErrCancelled
	}
	return nil
}

// runPhase processes items one at a time. An entity error is recorded and the
// phase continues; a systemic error stops the run.
func runPhase[T any](r *run, phase Phase, items []T, describe func(T) entity, fn func(T) (entityResult, error)) error {
	total := len(items)
	if total == 0 {
		r.report(phase.End(), phase.Label, 0, 0)
		return nil
	}

	for i, item := range items {
		if err := r.checkCancelled(); err != nil {
			return err
		}

		ent := describe(item)
		res, err := fn(item)
		if err != nil && sources.IsSystemic(err) {
			return fmt.Errorf("%s %s: %w", ent.Type, ent.ID, err)
		}
		r.record(phase, ent, res, err)

		r.report(phase.At(i+1, total), fmt.Sprintf("%s (%d/%d)", phase.Label, i+1, total), total, i+1)
	}
	return nil
}

func (r *run) record(phase Phase, ent entity, res entityResult, err error) {
	outcome := models.EntityOutcome{
		Phase:      phase.Name,
		EntityType: ent.Type,
		EntityID:   ent.ID,
		Name:       ent.Name,
		Status:     models.EntitySucceeded,
		Records:    res.Records,
		Counts:     res.Counts,
	}
	if err != nil {
		outcome.Status = models.EntityFailed
		outcome.Error = err.Error()
		r.log.WithFields(logrus.Fields{
			"phase":       phase.Name,
			"entity_type": ent.Type,
			"entity_id":   ent.ID,
		}).WithError(err).Warn("Entity sync failed")
	}
	r.result.Record(outcome)
	metrics.EntityOutcomes.WithLabelValues(string(r.task.SyncType()), phase.Name, string(outcome.Status)).Inc()
}

// finish classifies the run and returns its result
func (r *run) finish() *models.JobResult {
	r.result.Classify()
	r.log.WithFields(logrus.Fields{
		"status":    r.result.Status,
		"attempted": r.result.Summary.Attempted,
		"failed":    r.result.Summary.Failed,
		"records":   r.result.Summary.RecordsSynced,
	}).Info("Sync workflow finished")
	return r.result
}
