// Package query implements the read surface over the relational store, the
// vector store, and blob presigning.
package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lifeos/memoryd/internal/clients/openai"
	"github.com/lifeos/memoryd/internal/clients/pinecone"
	"github.com/lifeos/memoryd/internal/clients/s3"
	"github.com/lifeos/memoryd/internal/domain"
	"github.com/lifeos/memoryd/internal/pkg/dbctx"
	"github.com/lifeos/memoryd/internal/pkg/logger"
	"github.com/lifeos/memoryd/internal/pkg/pointers"
	"github.com/lifeos/memoryd/internal/repos"
)

const (
	defaultSearchLimit        = 10
	defaultScoreThreshold     = 0.01
	defaultChatConfidence     = 0.01
	chatbotSearchLimit        = 10
	presignTTL                = 1 * time.Hour
	chatbotMissingVideoAnswer = domain.NoRelevantVideosResponse
)

const queryRewriteSystemPrompt = `You rewrite a casual question about someone's personal video memories into a short, specific search phrase optimized for semantic similarity search. Respond with only the rewritten phrase, no extra commentary.`

const answerSynthesisSystemPrompt = `You answer a question about the user's past based only on the provided memory excerpts. Each excerpt has a timestamp and a summary. If the excerpts do not contain an answer, say so plainly. Keep the answer conversational and brief.`

// Service implements list/search/chatbot over the relational + vector stores.
type Service struct {
	log       *logger.Logger
	videoRepo repos.VideoRepo
	memory    pinecone.MemoryStore
	blobStore s3.BlobStore
	embedder  openai.Client
}

func NewService(log *logger.Logger, videoRepo repos.VideoRepo, memory pinecone.MemoryStore, blobStore s3.BlobStore, embedder openai.Client) *Service {
	return &Service{
		log:       log.With("component", "QueryService"),
		videoRepo: videoRepo,
		memory:    memory,
		blobStore: blobStore,
		embedder:  embedder,
	}
}

// ListVideos returns a user's videos ordered newest-first, rewriting each
// s3_link to a time-limited presigned URL.
func (s *Service) ListVideos(ctx context.Context, userID string, limit, offset int) ([]*domain.Video, error) {
	videos, err := s.videoRepo.ListByUser(dbctx.Context{Ctx: ctx}, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	for _, v := range videos {
		s.presignInPlace(ctx, v)
	}
	return videos, nil
}

// GetVideo fetches one video scoped to its owner and presigns its link.
func (s *Service) GetVideo(ctx context.Context, userID, videoID string) (*domain.Video, error) {
	v, err := s.videoRepo.GetByID(dbctx.Context{Ctx: ctx}, userID, videoID)
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	if v == nil {
		return nil, nil
	}
	s.presignInPlace(ctx, v)
	return v, nil
}

// DeleteVideo removes the relational row and the vector point. The vector
// deletion runs best-effort: a video the worker never finished vectorizing
// still deletes cleanly.
func (s *Service) DeleteVideo(ctx context.Context, userID, videoID string) (bool, error) {
	found, err := s.videoRepo.Delete(dbctx.Context{Ctx: ctx}, userID, videoID)
	if err != nil {
		return false, fmt.Errorf("delete video: %w", err)
	}
	if found {
		if err := s.memory.Delete(ctx, []string{videoID}); err != nil {
			s.log.Warn("vector delete failed after relational delete", "video_id", videoID, "error", err)
		}
	}
	return found, nil
}

func (s *Service) presignInPlace(ctx context.Context, v *domain.Video) {
	if v.S3Link == nil || *v.S3Link == "" {
		return
	}
	key := keyFromCanonicalURL(*v.S3Link)
	if key == "" {
		return
	}
	url, err := s.blobStore.Presign(ctx, key, presignTTL)
	if err != nil {
		s.log.Warn("presign failed, leaving canonical url", "video_id", v.VideoID, "error", err)
		return
	}
	v.S3Link = pointers.String(url)
}

// keyFromCanonicalURL recovers the object key from the canonical
// https://<bucket>.s3.<region>.amazonaws.com/<key> URL shape s3.Put returns.
func keyFromCanonicalURL(url string) string {
	idx := strings.Index(url, ".amazonaws.com/")
	if idx == -1 {
		return ""
	}
	return url[idx+len(".amazonaws.com/"):]
}

// CreateMemory writes a vector point for caller-supplied content without
// going through the capture pipeline. The minted id doubles as the point's
// video_id, so search returns it like a pipeline hit without a relational
// row. DeleteVideo removes a vector point only after deleting its relational
// row, so a memory created here is not removed by it.
func (s *Service) CreateMemory(ctx context.Context, userID string, req domain.CreateMemoryRequest) (domain.Memory, error) {
	if strings.TrimSpace(req.Content) == "" {
		return domain.Memory{}, fmt.Errorf("content required")
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = "video"
	}

	vectors, err := s.embedder.Embed(ctx, []string{req.Content})
	if err != nil {
		return domain.Memory{}, fmt.Errorf("embed memory content: %w", err)
	}
	if len(vectors) == 0 {
		return domain.Memory{}, fmt.Errorf("embed memory content: empty response")
	}

	id := domain.NewSegmentIdentity()
	now := time.Now().UTC()
	if err := s.memory.Upsert(ctx, domain.VectorPoint{
		ID:        id,
		Vector:    vectors[0],
		UserID:    userID,
		VideoID:   id,
		Timestamp: now,
	}); err != nil {
		return domain.Memory{}, fmt.Errorf("store memory: %w", err)
	}

	return domain.Memory{
		ID:          id,
		Content:     req.Content,
		ContentType: contentType,
		Timestamp:   now,
		UserID:      userID,
	}, nil
}

// Search runs semantic search: authenticated userID is always used as the
// vector-store filter, never a caller-supplied identity.
func (s *Service) Search(ctx context.Context, userID string, req domain.SearchRequest) (domain.SearchResponse, error) {
	start := time.Now()

	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	threshold := defaultScoreThreshold
	if req.ScoreThreshold != nil {
		threshold = *req.ScoreThreshold
	}

	vectors, err := s.embedder.Embed(ctx, []string{req.Query})
	if err != nil {
		return domain.SearchResponse{}, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return domain.SearchResponse{}, fmt.Errorf("embed query: empty response")
	}

	matches, err := s.memory.Search(ctx, userID, vectors[0], limit, pinecone.SearchFilter{
		DateFrom:       req.DateFrom,
		DateTo:         req.DateTo,
		ScoreThreshold: threshold,
	})
	if err != nil {
		return domain.SearchResponse{}, fmt.Errorf("vector search: %w", err)
	}

	results := s.enrich(ctx, matches)
	return domain.SearchResponse{
		Results:      results,
		TotalFound:   len(results),
		Query:        req.Query,
		SearchTimeMS: time.Since(start).Milliseconds(),
	}, nil
}

func (s *Service) enrich(ctx context.Context, matches []pinecone.Match) []domain.SearchResult {
	if len(matches) == 0 {
		return nil
	}
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.VideoID
	}
	videos, err := s.videoRepo.GetByIDs(dbctx.Context{Ctx: ctx}, ids)
	if err != nil {
		s.log.Warn("relational enrich failed, returning vector-only results", "error", err)
		videos = nil
	}
	byID := make(map[string]*domain.Video, len(videos))
	for _, v := range videos {
		byID[v.VideoID] = v
	}

	out := make([]domain.SearchResult, 0, len(matches))
	for _, m := range matches {
		result := domain.SearchResult{VideoID: m.VideoID, Score: m.Score, Timestamp: m.Timestamp, UserID: m.UserID}
		if v, ok := byID[m.VideoID]; ok {
			result.DetailedSummary = v.DetailedSummary
			result.FileSize = v.FileSize
			result.ProcessedAt = v.ProcessedAt
			if v.S3Link != nil {
				s.presignInPlace(ctx, v)
				result.S3Link = v.S3Link
			}
		} else {
			// A hit with no relational row yet (or anymore) degrades
			// rather than dropping out of the result set.
			result.DetailedSummary = "Data not found"
		}
		out = append(out, result)
	}
	return out
}

// Chatbot runs query-rewrite -> embed -> search -> context-assembly ->
// answer-synthesis, degrading to the canned no-results reply when the
// vector store has nothing for this user.
func (s *Service) Chatbot(ctx context.Context, userID string, req domain.ChatbotRequest) (domain.ChatbotResponse, error) {
	start := time.Now()

	confidence := defaultChatConfidence
	if req.ConfidenceThreshold != nil {
		confidence = *req.ConfidenceThreshold
	}

	refined, err := s.embedder.GenerateText(ctx, queryRewriteSystemPrompt, req.UserInput)
	if err != nil {
		s.log.Warn("query rewrite failed, using original input", "error", err)
		refined = req.UserInput
	}
	refined = strings.TrimSpace(refined)
	if refined == "" {
		refined = req.UserInput
	}

	searchResp, err := s.Search(ctx, userID, domain.SearchRequest{
		Query:          refined,
		Limit:          chatbotSearchLimit,
		ScoreThreshold: pointers.Float64(confidence),
	})
	if err != nil {
		return domain.ChatbotResponse{}, fmt.Errorf("chatbot search: %w", err)
	}

	if len(searchResp.Results) == 0 {
		return domain.ChatbotResponse{
			OriginalInput:    req.UserInput,
			RefinedQuery:     refined,
			VideoFound:       false,
			AIResponse:       chatbotMissingVideoAnswer,
			ProcessingTimeMS: time.Since(start).Milliseconds(),
		}, nil
	}

	best := searchResp.Results[0]
	contexts := make([]domain.ChatContext, 0, len(searchResp.Results))
	var promptBuilder strings.Builder
	for _, r := range searchResp.Results {
		contexts = append(contexts, domain.ChatContext{
			Timestamp:       r.Timestamp,
			Summary:         r.DetailedSummary,
			ConfidenceScore: r.Score,
			VideoID:         r.VideoID,
		})
		fmt.Fprintf(&promptBuilder, "- [%s] %s\n", r.Timestamp.Format(time.RFC3339), r.DetailedSummary)
	}

	answer, err := s.embedder.GenerateText(ctx, answerSynthesisSystemPrompt,
		fmt.Sprintf("Question: %s\n\nMemories:\n%s", req.UserInput, promptBuilder.String()))
	if err != nil {
		s.log.Warn("answer synthesis failed, falling back to top match summary", "error", err)
		answer = best.DetailedSummary
	}

	return domain.ChatbotResponse{
		OriginalInput:    req.UserInput,
		RefinedQuery:     refined,
		VideoFound:       true,
		AIResponse:       answer,
		VideoID:          pointers.String(best.VideoID),
		Timestamp:        pointers.Ptr(best.Timestamp),
		Summary:          pointers.String(best.DetailedSummary),
		ConfidenceScore:  pointers.Float64(best.Score),
		ProcessingTimeMS: time.Since(start).Milliseconds(),
	}, nil
}
