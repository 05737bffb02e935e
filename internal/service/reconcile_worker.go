package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/crewsync-api/internal/models"
	appErrors "github.com/noah-isme/crewsync-api/pkg/errors"
	"github.com/noah-isme/crewsync-api/pkg/jobs"
)

// ReconcileJobType labels queued reconcile jobs.
const ReconcileJobType = "reconcile"

type reconcileQueue interface {
	TryEnqueue(job jobs.Job) (bool, error)
}

type eventReconciler interface {
	ReconcileEvent(ctx context.Context, eventID string) (models.ReconcileReport, error)
}

// ReconcileWorker runs event cleanup in the background. Jobs are keyed by event, so a
// burst of requests for one event collapses into a single run.
type ReconcileWorker struct {
	reconciler eventReconciler
	queue      reconcileQueue
	logger     *zap.Logger
}

// NewReconcileWorker constructs a worker.
func NewReconcileWorker(reconciler eventReconciler, logger *zap.Logger) *ReconcileWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcileWorker{reconciler: reconciler, logger: logger}
}

// Attach sets the queue jobs are pushed to.
func (w *ReconcileWorker) Attach(queue reconcileQueue) {
	w.queue = queue
}

// Enqueue queues a reconcile run for the event without waiting for buffer space. It
// reports false when a run for the same event is already pending.
func (w *ReconcileWorker) Enqueue(eventID, reason string) (bool, error) {
	if err := requireIDs(eventID); err != nil {
		return false, err
	}
	if w.queue == nil {
		return false, appErrors.Clone(appErrors.ErrStoreUnavailable, "reconcile queue not running")
	}
	accepted, err := w.queue.TryEnqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    ReconcileJobType,
		Key:     eventID,
		Payload: reason,
	})
	if err != nil {
		return false, appErrors.Unavailable(err, "reconcile queue not accepting jobs")
	}
	return accepted, nil
}

// ScheduleReconcile implements ReconcileScheduler. Failures are logged only.
func (w *ReconcileWorker) ScheduleReconcile(eventID, reason string) {
	accepted, err := w.Enqueue(eventID, reason)
	if err != nil {
		w.logger.Warn("reconcile not scheduled", zap.String("event_id", eventID), zap.String("reason", reason), zap.Error(err))
		return
	}
	w.logger.Debug("reconcile scheduled", zap.String("event_id", eventID), zap.String("reason", reason), zap.Bool("coalesced", !accepted))
}

// Handle processes a queued reconcile job.
func (w *ReconcileWorker) Handle(ctx context.Context, job jobs.Job) error {
	if job.Key == "" {
		return errors.New("reconcile job without event")
	}
	start := time.Now()
	report, err := w.reconciler.ReconcileEvent(ctx, job.Key)
	if err != nil {
		if !appErrors.Retryable(err) {
			// a missing event or invalid input will not succeed on retry
			w.logger.Warn("reconcile job dropped", zap.String("event_id", job.Key), zap.Error(err))
			return nil
		}
		return err
	}
	reason, _ := job.Payload.(string)
	w.logger.Info("reconcile job finished",
		zap.String("event_id", job.Key),
		zap.String("reason", reason),
		zap.Int("attempt", job.Attempt),
		zap.Int("removed", report.Removed),
		zap.Int("unplaced", report.Unplaced),
		zap.Int("trimmed", report.Trimmed),
		zap.Duration("duration", time.Since(start)))
	return nil
}
