package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/crewsync-api/internal/models"
	appErrors "github.com/noah-isme/crewsync-api/pkg/errors"
	"github.com/noah-isme/crewsync-api/pkg/jobs"
)

type reconcilerStub struct {
	calls []string
	err   error
}

func (r *reconcilerStub) ReconcileEvent(ctx context.Context, eventID string) (models.ReconcileReport, error) {
	r.calls = append(r.calls, eventID)
	return models.ReconcileReport{EventID: eventID, Removed: 1}, r.err
}

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) TryEnqueue(job jobs.Job) (bool, error) {
	if q.err != nil {
		return false, q.err
	}
	q.jobs = append(q.jobs, job)
	return true, nil
}

func TestReconcileWorkerEnqueueKeysByEvent(t *testing.T) {
	worker := NewReconcileWorker(&reconcilerStub{}, nil)
	_, err := worker.Enqueue("e1", "api")
	assert.True(t, appErrors.Retryable(err), "no queue attached")

	queue := &queueStub{}
	worker.Attach(queue)
	accepted, err := worker.Enqueue("e1", "api")
	require.NoError(t, err)
	assert.True(t, accepted)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, "e1", queue.jobs[0].Key)
	assert.Equal(t, ReconcileJobType, queue.jobs[0].Type)

	queue.err = jobs.ErrNotStarted
	worker.ScheduleReconcile("e1", "shift_over_capacity")
	assert.Len(t, queue.jobs, 1)
}

func TestReconcileWorkerDropsWhenQueueFull(t *testing.T) {
	f := newManagerFixture(true)
	f.dir.addEvent("e1", models.EventStatusActive, nil)
	f.dir.addShift("s1", "e1", "usher", 1)
	f.dir.addVolunteers("A")

	// a single busy worker with one buffered slot already taken
	release := make(chan struct{})
	running := make(chan struct{})
	queue := jobs.NewQueue(ReconcileJobType, func(ctx context.Context, job jobs.Job) error {
		if job.Key == "busy" {
			close(running)
		}
		<-release
		return nil
	}, jobs.QueueConfig{Workers: 1, BufferSize: 1})
	queue.Start(context.Background())
	defer queue.Stop()
	defer close(release)
	_, err := queue.Enqueue(jobs.Job{Key: "busy"})
	require.NoError(t, err)
	<-running
	_, err = queue.Enqueue(jobs.Job{Key: "waiting"})
	require.NoError(t, err)

	worker := NewReconcileWorker(f.svc, nil)
	worker.Attach(queue)
	f.svc.SetScheduler(worker)

	_, err = worker.Enqueue("e1", "api")
	assert.ErrorIs(t, err, jobs.ErrQueueFull)
	assert.True(t, appErrors.Retryable(err))

	f.store.afterPut = func(s *memoryStore, a models.Assignment) {
		s.afterPut = nil
		s.seed(models.Assignment{VolunteerID: "racer", EventID: "e1", ShiftID: "s1", CreatedAt: at(90)})
	}
	done := make(chan error, 1)
	go func() {
		_, err := f.svc.AssignToShift(context.Background(), "A", "e1", "s1")
		done <- err
	}()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("placement blocked on a full reconcile queue")
	}
}

func TestReconcileWorkerHandle(t *testing.T) {
	reconciler := &reconcilerStub{}
	worker := NewReconcileWorker(reconciler, nil)

	require.NoError(t, worker.Handle(context.Background(), jobs.Job{Key: "e1", Payload: "api"}))
	assert.Equal(t, []string{"e1"}, reconciler.calls)

	assert.Error(t, worker.Handle(context.Background(), jobs.Job{}))

	reconciler.err = appErrors.Unavailable(errors.New("down"), "")
	assert.Error(t, worker.Handle(context.Background(), jobs.Job{Key: "e1"}))

	reconciler.err = appErrors.Clone(appErrors.ErrEventNotFound, "")
	assert.NoError(t, worker.Handle(context.Background(), jobs.Job{Key: "gone"}))
}

func TestReconcileWorkerOnQueueRepairsOverfill(t *testing.T) {
	f := newManagerFixture(true)
	f.dir.addEvent("e1", models.EventStatusActive, nil)
	f.dir.addShift("s1", "e1", "usher", 1)
	f.store.seed(
		models.Assignment{ID: "first", VolunteerID: "A", EventID: "e1", ShiftID: "s1", CreatedAt: at(1)},
		models.Assignment{ID: "second", VolunteerID: "B", EventID: "e1", ShiftID: "s1", CreatedAt: at(2)},
	)

	worker := NewReconcileWorker(f.svc, nil)
	queue := jobs.NewQueue(ReconcileJobType, worker.Handle, jobs.QueueConfig{Workers: 1})
	worker.Attach(queue)
	queue.Start(context.Background())
	defer queue.Stop()

	worker.ScheduleReconcile("e1", "test")
	require.Eventually(t, func() bool {
		occ, err := f.svc.Occupancy(context.Background(), "s1")
		return err == nil && occ.Occupied == 1
	}, 2*time.Second, 10*time.Millisecond)
}
