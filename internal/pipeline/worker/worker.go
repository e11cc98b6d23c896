// Package worker implements the four-phase state machine that turns one
// dequeued segment job into a relational row, a blob, and (eventually) a
// vector, then dispatches automations.
package worker

import (
	"context"
	"fmt"
	"math"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lifeos/memoryd/internal/automation"
	"github.com/lifeos/memoryd/internal/clients/pinecone"
	"github.com/lifeos/memoryd/internal/clients/s3"
	"github.com/lifeos/memoryd/internal/clients/twelvelabs"
	"github.com/lifeos/memoryd/internal/domain"
	"github.com/lifeos/memoryd/internal/pkg/dbctx"
	pkgerrors "github.com/lifeos/memoryd/internal/pkg/errors"
	"github.com/lifeos/memoryd/internal/pkg/logger"
	"github.com/lifeos/memoryd/internal/pkg/pointers"
	"github.com/lifeos/memoryd/internal/repos"
)

const (
	pollMinInterval = 500 * time.Millisecond
	pollMaxInterval = 2 * time.Second
	pollHardCap     = 180 * time.Second

	summarizeMaxAttempts = 3
	summarizeBaseDelay   = 500 * time.Millisecond

	vectorFinalizeMaxAttempts = 3

	summaryPrompt = "Provide a detailed summary of what happens in this video segment, including any notable objects, people, actions, or spoken content."
)

// Worker is one instance of the state machine. Each worker owns its own
// video-understanding client; every other collaborator may be shared.
type Worker struct {
	id int

	log        *logger.Logger
	videoAPI   twelvelabs.Client
	blobStore  s3.BlobStore
	memory     pinecone.MemoryStore
	videoRepo  repos.VideoRepo
	automation *automation.Controller

	deleteSourceFile bool
}

// Deps bundles the collaborators a Worker needs. VideoAPI must be a fresh
// client per worker; everything else may be shared safely.
type Deps struct {
	VideoAPI         twelvelabs.Client
	BlobStore        s3.BlobStore
	Memory           pinecone.MemoryStore
	VideoRepo        repos.VideoRepo
	Automation       *automation.Controller
	DeleteSourceFile bool
}

func New(id int, log *logger.Logger, deps Deps) *Worker {
	return &Worker{
		id:               id,
		log:              log.With("component", "Worker", "worker_id", id),
		videoAPI:         deps.VideoAPI,
		blobStore:        deps.BlobStore,
		memory:           deps.Memory,
		videoRepo:        deps.VideoRepo,
		automation:       deps.Automation,
		deleteSourceFile: deps.DeleteSourceFile,
	}
}

// p1Result carries the outputs of the three parallel phase-one launches.
type p1Result struct {
	videoID           string
	ingestTaskID      string
	s3Link            string
	embedTaskID       string
	twelveLabsVideoID string
}

// Process runs one job end to end. An error here means the job is dropped
// (not re-enqueued); the caller is responsible for logging/metrics on
// failure.
func (w *Worker) Process(ctx context.Context, job domain.SegmentJob) error {
	identity := domain.NewSegmentIdentity()
	log := w.log.With("video_id", identity, "segment_id", job.Metadata.SegmentID)

	info, err := os.Stat(job.VideoPath)
	if err != nil {
		return fmt.Errorf("stat segment file: %w: %w", pkgerrors.ErrJobAbandoned, err)
	}
	fileSize := info.Size()

	p1, err := w.phase1(ctx, identity, job)
	if err != nil {
		return fmt.Errorf("phase1: %w: %w", pkgerrors.ErrJobAbandoned, err)
	}

	status, twelveLabsVideoID, err := w.phase2(ctx, p1.ingestTaskID)
	if err != nil {
		return fmt.Errorf("phase2: %w: %w", pkgerrors.ErrJobAbandoned, err)
	}
	if status != twelvelabs.StatusReady {
		return fmt.Errorf("phase2: %w: ingest task ended in status %q", pkgerrors.ErrJobAbandoned, status)
	}
	p1.twelveLabsVideoID = twelveLabsVideoID

	summary, err := w.phase3(ctx, twelveLabsVideoID)
	if err != nil {
		return fmt.Errorf("phase3: %w: %w", pkgerrors.ErrJobAbandoned, err)
	}

	if err := w.phase4(context.Background(), identity, job, p1, summary, fileSize, log); err != nil {
		return fmt.Errorf("phase4: %w: %w", pkgerrors.ErrJobAbandoned, err)
	}

	if w.deleteSourceFile {
		_ = os.Remove(job.VideoPath)
	}
	return nil
}

// phase1 takes the segment identity minted by Process and launches the ingest task, the blob
// upload, and the embedding task concurrently -- none depend on another's
// result. The blob upload is degraded-success: its failure is logged and
// leaves s3Link empty but never fails the phase or the job.
func (w *Worker) phase1(ctx context.Context, identity string, job domain.SegmentJob) (p1Result, error) {
	result := p1Result{videoID: identity}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		taskID, err := w.videoAPI.CreateIndexingTask(gctx, job.VideoPath)
		if err != nil {
			return fmt.Errorf("create indexing task: %w", err)
		}
		result.ingestTaskID = taskID
		return nil
	})

	var blobErr error
	g.Go(func() error {
		f, err := os.Open(job.VideoPath)
		if err != nil {
			blobErr = fmt.Errorf("open segment file: %w", err)
			return nil
		}
		defer f.Close()
		key := s3.KeyForSegment(fmt.Sprintf("%s.mp4", identity))
		url, err := w.blobStore.Put(ctx, key, f, "video/mp4")
		if err != nil {
			blobErr = fmt.Errorf("blob put: %w", err)
			return nil
		}
		result.s3Link = url
		return nil
	})

	g.Go(func() error {
		taskID, err := w.videoAPI.CreateEmbeddingTask(gctx, job.VideoPath)
		if err != nil {
			return fmt.Errorf("create embedding task: %w", err)
		}
		result.embedTaskID = taskID
		return nil
	})

	if err := g.Wait(); err != nil {
		return p1Result{}, err
	}
	if blobErr != nil {
		w.log.Warn("blob upload failed, continuing without s3_link",
			"error", fmt.Errorf("%w: %w", pkgerrors.ErrDegraded, blobErr))
	}
	return result, nil
}

// phase2 polls the ingest task to completion. The interval clamps back to
// pollMinInterval while the task is actively processing and stretches by
// 1.2x (up to pollMaxInterval) while it sits pending; consecutive transport
// errors back off exponentially from 100ms, also capped at pollMaxInterval.
// Neither resets the overall hard cap.
func (w *Worker) phase2(ctx context.Context, taskID string) (string, string, error) {
	deadline := time.Now().Add(pollHardCap)
	interval := pollMinInterval
	errStreak := 0

	for {
		if time.Now().After(deadline) {
			return "", "", fmt.Errorf("ingest task %s polling exceeded %s", taskID, pollHardCap)
		}

		status, videoID, err := w.videoAPI.GetTaskStatus(ctx, taskID)
		if err != nil {
			backoff := time.Duration(float64(100*time.Millisecond) * math.Pow(2, float64(errStreak)))
			if backoff > pollMaxInterval {
				backoff = pollMaxInterval
			}
			errStreak++
			if err := sleepCtx(ctx, backoff); err != nil {
				return "", "", err
			}
			continue
		}
		errStreak = 0

		switch status {
		case twelvelabs.StatusReady, twelvelabs.StatusFailed, twelvelabs.StatusError:
			return status, videoID, nil
		case twelvelabs.StatusProcessing:
			interval = pollMinInterval
		case twelvelabs.StatusPending:
			interval = time.Duration(float64(interval) * 1.2)
			if interval > pollMaxInterval {
				interval = pollMaxInterval
			}
		}

		if err := sleepCtx(ctx, interval); err != nil {
			return "", "", err
		}
	}
}

// phase3 asks for a summary, retrying with linear backoff.
func (w *Worker) phase3(ctx context.Context, videoID string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= summarizeMaxAttempts; attempt++ {
		summary, err := w.videoAPI.Summarize(ctx, videoID, summaryPrompt)
		if err == nil {
			return summary, nil
		}
		lastErr = err
		if attempt == summarizeMaxAttempts {
			break
		}
		if err := sleepCtx(ctx, time.Duration(attempt)*summarizeBaseDelay); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("summarize failed after %d attempts: %w", summarizeMaxAttempts, lastErr)
}

// phase4 is the commit point: the relational insert runs synchronously and
// its failure is returned so Process abandons the job. The insert skips a
// row whose video_id already exists, but Process mints a new video_id for
// every delivery, so a redelivered job is stored as a second row. After the
// insert, automation dispatch and vector finalization run detached so a slow
// embedding task or LLM call never blocks the worker pool's throughput. ctx
// is a fresh background context because these tasks must survive job
// acknowledgement.
func (w *Worker) phase4(ctx context.Context, identity string, job domain.SegmentJob, p1 p1Result, summary string, fileSize int64, log *logger.Logger) error {
	video := &domain.Video{
		VideoID:           identity,
		UserID:            job.Metadata.UserID,
		Timestamp:         job.Metadata.CapturedAt,
		Datetime:          job.Metadata.CapturedAt,
		DetailedSummary:   summary,
		S3Link:            nonEmptyPtr(p1.s3Link),
		FileSize:          fileSize,
		ProcessedAt:       time.Now().UTC(),
		TwelveLabsVideoID: nonEmptyPtr(p1.twelveLabsVideoID),
		VectorStatus:      pointers.Ptr(domain.VectorStatusPending),
	}

	if err := w.videoRepo.Create(dbctx.Context{Ctx: ctx}, video); err != nil {
		log.Error("relational insert failed, dropping job", "error", err)
		return fmt.Errorf("relational insert: %w", err)
	}

	if summary != "" {
		go func() {
			result := w.automation.Dispatch(ctx, job.Metadata.UserID, identity, summary)
			log.Info("automation dispatch complete", "outcomes", result.Outcomes)
		}()
	}

	go w.finalizeVector(ctx, identity, job.Metadata.UserID, job.Metadata.CapturedAt, p1.embedTaskID, log)
	return nil
}

// finalizeVector polls the embedding task, retrieves the vector, and upserts
// it into the memory store, retrying the whole sequence with exponential
// backoff. Final failure is logged and sets vector_status to failed;
// nothing here can still affect the already-acknowledged job.
func (w *Worker) finalizeVector(ctx context.Context, videoID, userID string, timestamp time.Time, embedTaskID string, log *logger.Logger) {
	backoff := 1 * time.Second
	var lastErr error

	for attempt := 1; attempt <= vectorFinalizeMaxAttempts; attempt++ {
		if err := w.tryFinalizeVector(ctx, videoID, userID, timestamp, embedTaskID); err != nil {
			lastErr = err
			if attempt == vectorFinalizeMaxAttempts {
				break
			}
			if err := sleepCtx(ctx, backoff); err != nil {
				return
			}
			backoff *= 2
			continue
		}
		return
	}

	log.Error("vector finalization failed permanently", "error", fmt.Errorf("%w: %w", pkgerrors.ErrDegraded, lastErr))
	_ = w.videoRepo.UpdateVectorStatus(dbctx.Context{Ctx: ctx}, videoID, domain.VectorStatusFailed, nil)
}

func (w *Worker) tryFinalizeVector(ctx context.Context, videoID, userID string, timestamp time.Time, embedTaskID string) error {
	deadline := time.Now().Add(pollHardCap)
	interval := pollMinInterval
	for {
		if time.Now().After(deadline) {
			return fmt.Errorf("embedding task %s polling exceeded %s", embedTaskID, pollHardCap)
		}
		status, err := w.videoAPI.GetEmbeddingTaskStatus(ctx, embedTaskID)
		if err != nil {
			return fmt.Errorf("get embedding task status: %w", err)
		}
		if status == twelvelabs.StatusReady {
			break
		}
		if status == twelvelabs.StatusFailed || status == twelvelabs.StatusError {
			return fmt.Errorf("embedding task ended in status %q", status)
		}
		if err := sleepCtx(ctx, interval); err != nil {
			return err
		}
		interval += 250 * time.Millisecond
		if interval > pollMaxInterval {
			interval = pollMaxInterval
		}
	}

	vector, err := w.videoAPI.RetrieveEmbedding(ctx, embedTaskID)
	if err != nil {
		return fmt.Errorf("retrieve embedding: %w", err)
	}

	if err := w.memory.Upsert(ctx, domain.VectorPoint{
		ID:        videoID,
		Vector:    vector,
		UserID:    userID,
		VideoID:   videoID,
		Timestamp: timestamp,
	}); err != nil {
		return fmt.Errorf("vector upsert: %w", err)
	}

	return w.videoRepo.UpdateVectorStatus(dbctx.Context{Ctx: ctx}, videoID, domain.VectorStatusCompleted, &videoID)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// nonEmptyPtr returns nil for an empty string so degraded-success fields
// (s3_link on a blob outage) are stored as SQL NULL rather than "".
func nonEmptyPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
