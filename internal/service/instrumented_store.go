package service

import (
	"context"
	"time"

	"github.com/noah-isme/crewsync-api/internal/models"
)

type instrumentedStore struct {
	next    RelationStore
	metrics *MetricsService
}

// InstrumentStore times every relation store call in the metrics registry.
func InstrumentStore(store RelationStore, metrics *MetricsService) RelationStore {
	if metrics == nil {
		return store
	}
	return &instrumentedStore{next: store, metrics: metrics}
}

func (s *instrumentedStore) Insert(ctx context.Context, assignment *models.Assignment) (string, error) {
	defer s.observe("assignments.insert", time.Now())
	return s.next.Insert(ctx, assignment)
}

func (s *instrumentedStore) Update(ctx context.Context, id string, patch models.AssignmentPatch) error {
	defer s.observe("assignments.update", time.Now())
	return s.next.Update(ctx, id, patch)
}

func (s *instrumentedStore) Delete(ctx context.Context, id string) error {
	defer s.observe("assignments.delete", time.Now())
	return s.next.Delete(ctx, id)
}

func (s *instrumentedStore) Query(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, error) {
	defer s.observe("assignments.query", time.Now())
	return s.next.Query(ctx, filter)
}

func (s *instrumentedStore) observe(label string, start time.Time) {
	s.metrics.ObserveDBQuery(label, time.Since(start))
}

type instrumentedCounter struct {
	next    StatusCounter
	metrics *MetricsService
}

// InstrumentCounter times status counts the same way InstrumentStore times store calls.
func InstrumentCounter(counter StatusCounter, metrics *MetricsService) StatusCounter {
	if metrics == nil {
		return counter
	}
	return &instrumentedCounter{next: counter, metrics: metrics}
}

func (c *instrumentedCounter) CountByStatus(ctx context.Context, eventID string) ([]models.StatusCount, error) {
	start := time.Now()
	defer func() { c.metrics.ObserveDBQuery("assignments.count_by_status", time.Since(start)) }()
	return c.next.CountByStatus(ctx, eventID)
}
