package pinecone

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lifeos/memoryd/internal/domain"
	"github.com/lifeos/memoryd/internal/pkg/logger"
)

// MemoryStore is the domain-specific facade over the `memories` collection:
// vectors of size 1024, cosine distance, payload indexes on user_id
// (keyword) and timestamp (datetime).
type MemoryStore interface {
	Upsert(ctx context.Context, point domain.VectorPoint) error
	Search(ctx context.Context, userID string, vector []float32, topK int, filter SearchFilter) ([]Match, error)
	Retrieve(ctx context.Context, ids []string) ([]domain.VectorPoint, error)
	Delete(ctx context.Context, ids []string) error
}

// SearchFilter narrows a search to a user and, optionally, a time range.
type SearchFilter struct {
	DateFrom       *time.Time
	DateTo         *time.Time
	ScoreThreshold float64
}

// Match is one scored hit, payload already decoded.
type Match struct {
	ID        string
	Score     float64
	UserID    string
	VideoID   string
	Timestamp time.Time
}

type memoryStore struct {
	log       *logger.Logger
	pc        Client
	indexName string
	indexHost string
	namespace string
}

const memoriesNamespace = "memories"

func NewMemoryStore(log *logger.Logger, pc Client) (MemoryStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if pc == nil {
		return nil, fmt.Errorf("vector store client required")
	}

	indexName := strings.TrimSpace(os.Getenv("PINECONE_INDEX_NAME"))
	if indexName == "" {
		indexName = "memories"
	}
	host := strings.TrimSpace(os.Getenv("PINECONE_INDEX_HOST"))

	// If host missing, bootstrap via describe_index (fine for local/dev; avoid in prod).
	if host == "" {
		desc, err := pc.DescribeIndex(context.Background(), indexName)
		if err != nil {
			return nil, fmt.Errorf("vector store describe_index failed: %w", err)
		}
		host = strings.TrimSpace(desc.Host)
		if host == "" {
			return nil, fmt.Errorf("vector store describe_index returned empty host")
		}
		log.Warn("PINECONE_INDEX_HOST not set; resolved via describe_index (avoid this in production)",
			"index_name", indexName,
			"index_host", host,
		)
	}

	return &memoryStore{
		log:       log.With("service", "MemoryStore"),
		pc:        pc,
		indexName: indexName,
		indexHost: host,
		namespace: memoriesNamespace,
	}, nil
}

func (s *memoryStore) Upsert(ctx context.Context, point domain.VectorPoint) error {
	if point.ID == "" {
		return fmt.Errorf("vector point id required")
	}
	_, err := s.pc.UpsertVectors(ctx, s.indexHost, UpsertRequest{
		Namespace: s.namespace,
		Vectors: []Vector{
			{
				ID:     point.ID,
				Values: point.Vector,
				Metadata: map[string]any{
					"user_id":   point.UserID,
					"video_id":  point.VideoID,
					"timestamp": point.Timestamp.Format(time.RFC3339),
				},
			},
		},
	})
	return err
}

func (s *memoryStore) Search(ctx context.Context, userID string, vector []float32, topK int, filter SearchFilter) ([]Match, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID required")
	}
	if topK <= 0 {
		topK = 10
	}

	pineconeFilter := map[string]any{"user_id": map[string]any{"$eq": userID}}
	if filter.DateFrom != nil || filter.DateTo != nil {
		ts := map[string]any{}
		if filter.DateFrom != nil {
			ts["$gte"] = filter.DateFrom.Format(time.RFC3339)
		}
		if filter.DateTo != nil {
			ts["$lte"] = filter.DateTo.Format(time.RFC3339)
		}
		pineconeFilter["timestamp"] = ts
	}

	resp, err := s.pc.Query(ctx, s.indexHost, QueryRequest{
		Namespace:       s.namespace,
		Vector:          vector,
		TopK:            topK,
		Filter:          pineconeFilter,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, err
	}

	threshold := filter.ScoreThreshold
	out := make([]Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if m.Score < threshold {
			continue
		}
		match := Match{ID: m.ID, Score: m.Score}
		if uid, ok := m.Metadata["user_id"].(string); ok {
			match.UserID = uid
		}
		if vid, ok := m.Metadata["video_id"].(string); ok {
			match.VideoID = vid
		}
		if ts, ok := m.Metadata["timestamp"].(string); ok {
			if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
				match.Timestamp = parsed
			}
		}
		out = append(out, match)
	}
	return out, nil
}

func (s *memoryStore) Retrieve(ctx context.Context, ids []string) ([]domain.VectorPoint, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	resp, err := s.pc.FetchVectors(ctx, s.indexHost, FetchRequest{IDs: ids, Namespace: s.namespace})
	if err != nil {
		return nil, err
	}
	out := make([]domain.VectorPoint, 0, len(resp.Vectors))
	for id, v := range resp.Vectors {
		point := domain.VectorPoint{ID: id, Vector: v.Values}
		if uid, ok := v.Metadata["user_id"].(string); ok {
			point.UserID = uid
		}
		if vid, ok := v.Metadata["video_id"].(string); ok {
			point.VideoID = vid
		}
		if ts, ok := v.Metadata["timestamp"].(string); ok {
			if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
				point.Timestamp = parsed
			}
		}
		out = append(out, point)
	}
	return out, nil
}

func (s *memoryStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.pc.DeleteVectors(ctx, s.indexHost, DeleteRequest{IDs: ids, Namespace: s.namespace})
}
