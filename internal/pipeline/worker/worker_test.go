package worker

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lifeos/memoryd/internal/automation"
	"github.com/lifeos/memoryd/internal/clients/pinecone"
	"github.com/lifeos/memoryd/internal/clients/twelvelabs"
	"github.com/lifeos/memoryd/internal/domain"
	"github.com/lifeos/memoryd/internal/pkg/dbctx"
	pkgerrors "github.com/lifeos/memoryd/internal/pkg/errors"
	"github.com/lifeos/memoryd/internal/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

type fakeVideoAPI struct{}

func (f *fakeVideoAPI) CreateIndexingTask(ctx context.Context, filePath string) (string, error) {
	return "ingest-task-1", nil
}

func (f *fakeVideoAPI) GetTaskStatus(ctx context.Context, taskID string) (string, string, error) {
	return twelvelabs.StatusReady, "video-1", nil
}

func (f *fakeVideoAPI) Summarize(ctx context.Context, videoID, prompt string) (string, error) {
	return "A brief, uneventful segment.", nil
}

func (f *fakeVideoAPI) CreateEmbeddingTask(ctx context.Context, filePath string) (string, error) {
	return "embed-task-1", nil
}

func (f *fakeVideoAPI) GetEmbeddingTaskStatus(ctx context.Context, taskID string) (string, error) {
	return twelvelabs.StatusReady, nil
}

func (f *fakeVideoAPI) RetrieveEmbedding(ctx context.Context, taskID string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

// failingIngestAPI reports a terminal ingest failure, covering the
// fatal-for-job path: no relational row, no vector, no automation.
type failingIngestAPI struct {
	fakeVideoAPI
}

func (f *failingIngestAPI) GetTaskStatus(ctx context.Context, taskID string) (string, string, error) {
	return twelvelabs.StatusFailed, "", nil
}

type fakeBlobStore struct {
	fail bool
}

func (f *fakeBlobStore) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	_, _ = io.Copy(io.Discard, body)
	if f.fail {
		return "", errors.New("blob store unavailable")
	}
	return "https://bucket.s3.us-east-1.amazonaws.com/" + key, nil
}

func (f *fakeBlobStore) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "https://bucket.s3.us-east-1.amazonaws.com/" + key + "?presigned=1", nil
}

type fakeMemoryStore struct {
	mu       sync.Mutex
	upserted []domain.VectorPoint
}

func (f *fakeMemoryStore) Upsert(ctx context.Context, point domain.VectorPoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserted = append(f.upserted, point)
	return nil
}

func (f *fakeMemoryStore) Search(ctx context.Context, userID string, vector []float32, topK int, filter pinecone.SearchFilter) ([]pinecone.Match, error) {
	return nil, nil
}

func (f *fakeMemoryStore) Retrieve(ctx context.Context, ids []string) ([]domain.VectorPoint, error) {
	return nil, nil
}

func (f *fakeMemoryStore) Delete(ctx context.Context, ids []string) error {
	return nil
}

type fakeVideoRepo struct {
	mu            sync.Mutex
	created       []*domain.Video
	vectorUpdates []string
	vectorDone    chan struct{}
}

func newFakeVideoRepo() *fakeVideoRepo {
	return &fakeVideoRepo{vectorDone: make(chan struct{}, 1)}
}

func (r *fakeVideoRepo) Create(dbc dbctx.Context, video *domain.Video) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, video)
	return nil
}

func (r *fakeVideoRepo) GetByID(dbc dbctx.Context, userID, videoID string) (*domain.Video, error) {
	return nil, nil
}

func (r *fakeVideoRepo) GetByIDs(dbc dbctx.Context, videoIDs []string) ([]*domain.Video, error) {
	return nil, nil
}

func (r *fakeVideoRepo) ListByUser(dbc dbctx.Context, userID string, limit, offset int) ([]*domain.Video, error) {
	return nil, nil
}

func (r *fakeVideoRepo) Delete(dbc dbctx.Context, userID, videoID string) (bool, error) {
	return false, nil
}

func (r *fakeVideoRepo) UpdateVectorStatus(dbc dbctx.Context, videoID string, status domain.VectorStatus, vectorID *string) error {
	r.mu.Lock()
	r.vectorUpdates = append(r.vectorUpdates, string(status))
	r.mu.Unlock()
	select {
	case r.vectorDone <- struct{}{}:
	default:
	}
	return nil
}

type fakeHighlightRepo struct{}

func (f *fakeHighlightRepo) Create(dbc dbctx.Context, highlight *domain.Highlight) error { return nil }
func (f *fakeHighlightRepo) ListByUser(dbc dbctx.Context, userID string, limit, offset int) ([]*domain.Highlight, error) {
	return nil, nil
}

func TestWorker_ProcessCommitsVideoAndFinalizesVector(t *testing.T) {
	dir := t.TempDir()
	videoPath := filepath.Join(dir, "segment.mp4")
	if err := os.WriteFile(videoPath, []byte("fake video bytes"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	videoRepo := newFakeVideoRepo()
	memory := &fakeMemoryStore{}
	controller := automation.NewController(testLogger(t), nil, nil, &fakeHighlightRepo{})

	w := New(1, testLogger(t), Deps{
		VideoAPI:  &fakeVideoAPI{},
		BlobStore: &fakeBlobStore{},
		VideoRepo: videoRepo,
		Automation: controller,
	})
	w.memory = memory

	job := domain.SegmentJob{
		VideoPath: videoPath,
		Metadata: domain.SegmentMetadata{
			SegmentID:  1,
			CapturedAt: time.Now().UTC(),
			UserID:     "user-1",
		},
		Status: domain.SegmentJobStatusPending,
	}

	if err := w.Process(context.Background(), job); err != nil {
		t.Fatalf("Process: %v", err)
	}

	videoRepo.mu.Lock()
	createdCount := len(videoRepo.created)
	created := videoRepo.created[0]
	videoRepo.mu.Unlock()
	if createdCount != 1 {
		t.Fatalf("expected exactly one video row created, got %d", createdCount)
	}
	if created.TwelveLabsVideoID == nil || *created.TwelveLabsVideoID != "video-1" {
		t.Fatalf("expected twelvelabs_video_id %q, got %v", "video-1", created.TwelveLabsVideoID)
	}
	if *created.TwelveLabsVideoID == created.VideoID {
		t.Fatalf("twelvelabs_video_id must never equal video_id")
	}
	if created.FileSize != int64(len("fake video bytes")) {
		t.Fatalf("file_size = %d, want %d", created.FileSize, len("fake video bytes"))
	}

	select {
	case <-videoRepo.vectorDone:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for vector finalization")
	}

	memory.mu.Lock()
	upsertedCount := len(memory.upserted)
	memory.mu.Unlock()
	if upsertedCount != 1 {
		t.Fatalf("expected one vector upserted, got %d", upsertedCount)
	}
}

func TestWorker_ProcessMissingFileReturnsError(t *testing.T) {
	videoRepo := newFakeVideoRepo()
	controller := automation.NewController(testLogger(t), nil, nil, &fakeHighlightRepo{})

	w := New(1, testLogger(t), Deps{
		VideoAPI:   &fakeVideoAPI{},
		BlobStore:  &fakeBlobStore{},
		VideoRepo:  videoRepo,
		Automation: controller,
	})
	w.memory = &fakeMemoryStore{}

	job := domain.SegmentJob{
		VideoPath: filepath.Join(t.TempDir(), "never-written.mp4"),
		Metadata:  domain.SegmentMetadata{SegmentID: 9, UserID: "user-1"},
		Status:    domain.SegmentJobStatusPending,
	}

	err := w.Process(context.Background(), job)
	if err == nil {
		t.Fatalf("expected error for missing segment file")
	}
	if !errors.Is(err, pkgerrors.ErrJobAbandoned) {
		t.Fatalf("expected ErrJobAbandoned, got %v", err)
	}

	videoRepo.mu.Lock()
	defer videoRepo.mu.Unlock()
	if len(videoRepo.created) != 0 {
		t.Fatalf("expected no video rows for a missing file, got %d", len(videoRepo.created))
	}
}

func TestWorker_IngestTerminalFailureDropsJob(t *testing.T) {
	dir := t.TempDir()
	videoPath := filepath.Join(dir, "segment.mp4")
	if err := os.WriteFile(videoPath, []byte("fake video bytes"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	videoRepo := newFakeVideoRepo()
	memory := &fakeMemoryStore{}
	controller := automation.NewController(testLogger(t), nil, nil, &fakeHighlightRepo{})

	w := New(1, testLogger(t), Deps{
		VideoAPI:   &failingIngestAPI{},
		BlobStore:  &fakeBlobStore{},
		VideoRepo:  videoRepo,
		Automation: controller,
	})
	w.memory = memory

	job := domain.SegmentJob{
		VideoPath: videoPath,
		Metadata:  domain.SegmentMetadata{SegmentID: 2, UserID: "user-1"},
		Status:    domain.SegmentJobStatusPending,
	}

	if err := w.Process(context.Background(), job); err == nil {
		t.Fatalf("expected error when ingest task reports a terminal failure")
	}

	videoRepo.mu.Lock()
	createdCount := len(videoRepo.created)
	videoRepo.mu.Unlock()
	if createdCount != 0 {
		t.Fatalf("expected no video rows after ingest failure, got %d", createdCount)
	}
	memory.mu.Lock()
	upsertedCount := len(memory.upserted)
	memory.mu.Unlock()
	if upsertedCount != 0 {
		t.Fatalf("expected no vector points after ingest failure, got %d", upsertedCount)
	}
}

// TestWorker_ProcessToleratesBlobOutage: a blob PUT failure is
// degraded-success, not fatal. The relational row still gets written (with
// no s3_link) and the vector still gets finalized.
func TestWorker_ProcessToleratesBlobOutage(t *testing.T) {
	dir := t.TempDir()
	videoPath := filepath.Join(dir, "segment.mp4")
	if err := os.WriteFile(videoPath, []byte("fake video bytes"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	videoRepo := newFakeVideoRepo()
	memory := &fakeMemoryStore{}
	controller := automation.NewController(testLogger(t), nil, nil, &fakeHighlightRepo{})

	w := New(1, testLogger(t), Deps{
		VideoAPI:   &fakeVideoAPI{},
		BlobStore:  &fakeBlobStore{fail: true},
		VideoRepo:  videoRepo,
		Automation: controller,
	})
	w.memory = memory

	job := domain.SegmentJob{
		VideoPath: videoPath,
		Metadata: domain.SegmentMetadata{
			SegmentID:  1,
			CapturedAt: time.Now().UTC(),
			UserID:     "user-1",
		},
		Status: domain.SegmentJobStatusPending,
	}

	if err := w.Process(context.Background(), job); err != nil {
		t.Fatalf("Process: %v", err)
	}

	videoRepo.mu.Lock()
	createdCount := len(videoRepo.created)
	s3Link := videoRepo.created[0].S3Link
	videoRepo.mu.Unlock()
	if createdCount != 1 {
		t.Fatalf("expected exactly one video row created, got %d", createdCount)
	}
	if s3Link != nil {
		t.Fatalf("expected nil s3_link after blob outage, got %v", *s3Link)
	}

	select {
	case <-videoRepo.vectorDone:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for vector finalization")
	}
}
