// Package queue defines the work-queue contract the capture loop and
// workers depend on, decoupled from the concrete broker.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/lifeos/memoryd/internal/domain"
)

// Queue is the FIFO contract the capture loop pushes to and workers pop
// from.
type Queue interface {
	Push(ctx context.Context, job domain.SegmentJob) error
	PushBatch(ctx context.Context, jobs []domain.SegmentJob) error
	Pop(ctx context.Context, timeout time.Duration) (*domain.SegmentJob, error)
	Size(ctx context.Context) (int64, error)
}

// InMemory is a single-process fake satisfying Queue, used by tests and by
// the fixture-replay path when no broker is configured.
type InMemory struct {
	mu   sync.Mutex
	jobs []domain.SegmentJob
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (q *InMemory) Push(ctx context.Context, job domain.SegmentJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append([]domain.SegmentJob{job}, q.jobs...)
	return nil
}

func (q *InMemory) PushBatch(ctx context.Context, jobs []domain.SegmentJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	reversed := make([]domain.SegmentJob, len(jobs))
	for i, j := range jobs {
		reversed[len(jobs)-1-i] = j
	}
	q.jobs = append(reversed, q.jobs...)
	return nil
}

func (q *InMemory) Pop(ctx context.Context, timeout time.Duration) (*domain.SegmentJob, error) {
	q.mu.Lock()
	if len(q.jobs) > 0 {
		job := q.jobs[len(q.jobs)-1]
		q.jobs = q.jobs[:len(q.jobs)-1]
		q.mu.Unlock()
		return &job, nil
	}
	q.mu.Unlock()

	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		return nil, nil
	}
}

func (q *InMemory) Size(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.jobs)), nil
}
