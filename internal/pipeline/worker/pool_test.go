package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lifeos/memoryd/internal/automation"
	"github.com/lifeos/memoryd/internal/domain"
	"github.com/lifeos/memoryd/internal/pipeline/queue"
)

func TestPool_ProcessesQueuedJobsAndTracksStats(t *testing.T) {
	dir := t.TempDir()
	videoPath := filepath.Join(dir, "segment.mp4")
	if err := os.WriteFile(videoPath, []byte("fake video bytes"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	q := queue.NewInMemory()
	job := domain.SegmentJob{
		VideoPath: videoPath,
		Metadata: domain.SegmentMetadata{
			SegmentID:  1,
			CapturedAt: time.Now().UTC(),
			UserID:     "user-1",
		},
		Status: domain.SegmentJobStatusPending,
	}
	if err := q.Push(context.Background(), job); err != nil {
		t.Fatalf("push job: %v", err)
	}

	videoRepo := newFakeVideoRepo()
	log := testLogger(t)
	controller := automation.NewController(log, nil, nil, &fakeHighlightRepo{})

	newWorker := func(id int) *Worker {
		w := New(id, log, Deps{
			VideoAPI:   &fakeVideoAPI{},
			BlobStore:  &fakeBlobStore{},
			VideoRepo:  videoRepo,
			Automation: controller,
		})
		w.memory = &fakeMemoryStore{}
		return w
	}

	pool := NewPool(log, q, newWorker, Config{
		Concurrency:     2,
		PopTimeout:      50 * time.Millisecond,
		MonitorInterval: 10 * time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if pool.Stats(ctx).TotalProcessed >= 1 {
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("timed out waiting for pool to process the queued job")
		}
		time.Sleep(10 * time.Millisecond)
	}

	videoRepo.mu.Lock()
	created := len(videoRepo.created)
	videoRepo.mu.Unlock()
	if created != 1 {
		t.Fatalf("expected one video row, got %d", created)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("pool did not shut down after context cancellation")
	}
}
