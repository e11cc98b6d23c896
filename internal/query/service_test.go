package query

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/lifeos/memoryd/internal/clients/pinecone"
	"github.com/lifeos/memoryd/internal/domain"
	"github.com/lifeos/memoryd/internal/pkg/dbctx"
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

type fakeVideoRepo struct {
	videos      map[string]*domain.Video
	deleted     []string
	listResult  []*domain.Video
	getByIDsErr error
}

func (r *fakeVideoRepo) Create(dbc dbctx.Context, video *domain.Video) error {
	return nil
}

func (r *fakeVideoRepo) GetByID(dbc dbctx.Context, userID, videoID string) (*domain.Video, error) {
	v, ok := r.videos[videoID]
	if !ok {
		return nil, nil
	}
	return v, nil
}

func (r *fakeVideoRepo) GetByIDs(dbc dbctx.Context, videoIDs []string) ([]*domain.Video, error) {
	if r.getByIDsErr != nil {
		return nil, r.getByIDsErr
	}
	var out []*domain.Video
	for _, id := range videoIDs {
		if v, ok := r.videos[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *fakeVideoRepo) ListByUser(dbc dbctx.Context, userID string, limit, offset int) ([]*domain.Video, error) {
	return r.listResult, nil
}

func (r *fakeVideoRepo) Delete(dbc dbctx.Context, userID, videoID string) (bool, error) {
	_, ok := r.videos[videoID]
	if ok {
		r.deleted = append(r.deleted, videoID)
		delete(r.videos, videoID)
	}
	return ok, nil
}

func (r *fakeVideoRepo) UpdateVectorStatus(dbc dbctx.Context, videoID string, status domain.VectorStatus, vectorID *string) error {
	return nil
}

type fakeMemoryStore struct {
	matches    []pinecone.Match
	searchErr  error
	deletedIDs []string
	upserted   []domain.VectorPoint
	searchedBy string
}

func (m *fakeMemoryStore) Upsert(ctx context.Context, point domain.VectorPoint) error {
	m.upserted = append(m.upserted, point)
	return nil
}

func (m *fakeMemoryStore) Search(ctx context.Context, userID string, vector []float32, topK int, filter pinecone.SearchFilter) ([]pinecone.Match, error) {
	m.searchedBy = userID
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.matches, nil
}

func (m *fakeMemoryStore) Retrieve(ctx context.Context, ids []string) ([]domain.VectorPoint, error) {
	return nil, nil
}

func (m *fakeMemoryStore) Delete(ctx context.Context, ids []string) error {
	m.deletedIDs = append(m.deletedIDs, ids...)
	return nil
}

type fakeBlobStore struct{}

func (f *fakeBlobStore) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	return "", fmt.Errorf("not used in query tests")
}

func (f *fakeBlobStore) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "https://bucket.s3.us-east-1.amazonaws.com/" + key + "?presigned=1", nil
}

type fakeEmbedder struct {
	embedVec     []float32
	embedErr     error
	generateText string
	generateErr  error
}

func (f *fakeEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return [][]float32{f.embedVec}, nil
}

func (f *fakeEmbedder) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	return nil, fmt.Errorf("not used in query tests")
}

func (f *fakeEmbedder) GenerateText(ctx context.Context, system, user string) (string, error) {
	if f.generateErr != nil {
		return "", f.generateErr
	}
	return f.generateText, nil
}

func TestService_ListVideosPresignsEachResult(t *testing.T) {
	repo := &fakeVideoRepo{
		listResult: []*domain.Video{
			{VideoID: "v1", S3Link: strPtr("https://bucket.s3.us-east-1.amazonaws.com/video_segments/v1.mp4")},
		},
	}
	svc := NewService(testLogger(t), repo, &fakeMemoryStore{}, &fakeBlobStore{}, &fakeEmbedder{})
	canonical := *repo.listResult[0].S3Link

	videos, err := svc.ListVideos(context.Background(), "user-1", 10, 0)
	if err != nil {
		t.Fatalf("ListVideos: %v", err)
	}
	if len(videos) != 1 {
		t.Fatalf("expected 1 video, got %d", len(videos))
	}
	if *videos[0].S3Link == "" || *videos[0].S3Link == canonical {
		t.Fatalf("expected presigned link, got %q", *videos[0].S3Link)
	}
}

func TestService_DeleteVideoBestEffortDeletesVector(t *testing.T) {
	repo := &fakeVideoRepo{videos: map[string]*domain.Video{"v1": {VideoID: "v1"}}}
	memory := &fakeMemoryStore{}
	svc := NewService(testLogger(t), repo, memory, &fakeBlobStore{}, &fakeEmbedder{})

	found, err := svc.DeleteVideo(context.Background(), "user-1", "v1")
	if err != nil {
		t.Fatalf("DeleteVideo: %v", err)
	}
	if !found {
		t.Fatalf("expected video to be found and deleted")
	}
	if len(memory.deletedIDs) != 1 || memory.deletedIDs[0] != "v1" {
		t.Fatalf("expected vector delete for v1, got %+v", memory.deletedIDs)
	}
}

func TestService_CreateMemoryUpsertsVectorPoint(t *testing.T) {
	memory := &fakeMemoryStore{}
	svc := NewService(testLogger(t), &fakeVideoRepo{}, memory, &fakeBlobStore{}, &fakeEmbedder{embedVec: []float32{0.1, 0.2}})

	mem, err := svc.CreateMemory(context.Background(), "user-1", domain.CreateMemoryRequest{Content: "/tmp/clip.mp4"})
	if err != nil {
		t.Fatalf("CreateMemory: %v", err)
	}
	if mem.ID == "" || mem.UserID != "user-1" || mem.ContentType != "video" {
		t.Fatalf("unexpected memory record: %+v", mem)
	}
	if len(memory.upserted) != 1 {
		t.Fatalf("expected one vector upsert, got %d", len(memory.upserted))
	}
	point := memory.upserted[0]
	if point.ID != mem.ID || point.VideoID != mem.ID || point.UserID != "user-1" {
		t.Fatalf("vector point identity mismatch: %+v vs memory id %s", point, mem.ID)
	}

	if _, err := svc.CreateMemory(context.Background(), "user-1", domain.CreateMemoryRequest{Content: "   "}); err == nil {
		t.Fatalf("expected error for blank content")
	}
}

func TestService_SearchAlwaysUsesAuthenticatedUserID(t *testing.T) {
	repo := &fakeVideoRepo{videos: map[string]*domain.Video{
		"v1": {VideoID: "v1", DetailedSummary: "a summary"},
	}}
	memory := &fakeMemoryStore{matches: []pinecone.Match{
		{ID: "v1", Score: 0.9, UserID: "user-1", VideoID: "v1", Timestamp: time.Now()},
	}}
	svc := NewService(testLogger(t), repo, memory, &fakeBlobStore{}, &fakeEmbedder{embedVec: []float32{0.1}})

	resp, err := svc.Search(context.Background(), "user-1", domain.SearchRequest{Query: "something"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.TotalFound != 1 || resp.Results[0].DetailedSummary != "a summary" {
		t.Fatalf("unexpected search response: %+v", resp)
	}
	if memory.searchedBy != "user-1" {
		t.Fatalf("expected vector search scoped to user-1, got %q", memory.searchedBy)
	}
}

func TestService_SearchDegradesWhenRelationalRowMissing(t *testing.T) {
	repo := &fakeVideoRepo{}
	memory := &fakeMemoryStore{matches: []pinecone.Match{
		{ID: "v-orphan", Score: 0.8, UserID: "user-1", VideoID: "v-orphan", Timestamp: time.Now()},
	}}
	svc := NewService(testLogger(t), repo, memory, &fakeBlobStore{}, &fakeEmbedder{embedVec: []float32{0.1}})

	resp, err := svc.Search(context.Background(), "user-1", domain.SearchRequest{Query: "q"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.TotalFound != 1 {
		t.Fatalf("expected the orphan hit to survive, got %d results", resp.TotalFound)
	}
	if resp.Results[0].DetailedSummary != "Data not found" {
		t.Fatalf("expected degraded summary, got %q", resp.Results[0].DetailedSummary)
	}
}

func TestService_ChatbotReturnsCannedAnswerWhenNoMatches(t *testing.T) {
	repo := &fakeVideoRepo{}
	memory := &fakeMemoryStore{}
	svc := NewService(testLogger(t), repo, memory, &fakeBlobStore{}, &fakeEmbedder{embedVec: []float32{0.1}, generateText: "rewritten query"})

	resp, err := svc.Chatbot(context.Background(), "user-1", domain.ChatbotRequest{UserInput: "what did I do yesterday?"})
	if err != nil {
		t.Fatalf("Chatbot: %v", err)
	}
	if resp.VideoFound {
		t.Fatalf("expected VideoFound=false")
	}
	if resp.AIResponse != domain.NoRelevantVideosResponse {
		t.Fatalf("expected canned no-results answer, got %q", resp.AIResponse)
	}
}

func TestService_ChatbotSynthesizesAnswerFromBestMatch(t *testing.T) {
	repo := &fakeVideoRepo{videos: map[string]*domain.Video{
		"v1": {VideoID: "v1", DetailedSummary: "went for a run"},
	}}
	memory := &fakeMemoryStore{matches: []pinecone.Match{
		{ID: "v1", Score: 0.95, UserID: "user-1", VideoID: "v1", Timestamp: time.Now()},
	}}
	svc := NewService(testLogger(t), repo, memory, &fakeBlobStore{}, &fakeEmbedder{
		embedVec:     []float32{0.1},
		generateText: "You went for a run.",
	})

	resp, err := svc.Chatbot(context.Background(), "user-1", domain.ChatbotRequest{UserInput: "what did I do?"})
	if err != nil {
		t.Fatalf("Chatbot: %v", err)
	}
	if !resp.VideoFound {
		t.Fatalf("expected VideoFound=true")
	}
	if resp.VideoID == nil || *resp.VideoID != "v1" {
		t.Fatalf("expected best match video_id v1, got %+v", resp.VideoID)
	}
	if resp.AIResponse != "You went for a run." {
		t.Fatalf("unexpected answer: %q", resp.AIResponse)
	}
}

func strPtr(s string) *string { return &s }
