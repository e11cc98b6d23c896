package domain

import "time"

// VectorPoint is the shape stored in and retrieved from the vector store.
// Invariant: ID == VideoID == the payload's video_id; enforced by callers,
// not this type.
type VectorPoint struct {
	ID        string    `json:"id"`
	Vector    []float32 `json:"vector"`
	UserID    string    `json:"user_id"`
	VideoID   string    `json:"video_id"`
	Timestamp time.Time `json:"timestamp"`
}

// CreateMemoryRequest stores a memory directly from caller-supplied content
// (a file path or URL of an already-processed clip), bypassing the capture
// pipeline. Only the vector point is written; the relational row remains the
// pipeline's job.
type CreateMemoryRequest struct {
	Content     string `json:"content" binding:"required"`
	ContentType string `json:"content_type"`
}

// Memory is the user-facing record returned for a directly-created memory.
type Memory struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	ContentType string    `json:"content_type"`
	Timestamp   time.Time `json:"timestamp"`
	UserID      string    `json:"user_id"`
}

// SearchRequest is the input to semantic search.
type SearchRequest struct {
	Query          string     `json:"query"`
	Limit          int        `json:"limit"`
	DateFrom       *time.Time `json:"date_from,omitempty"`
	DateTo         *time.Time `json:"date_to,omitempty"`
	ScoreThreshold *float64   `json:"score_threshold,omitempty"`
}

// SearchResult is one enriched hit: the vector match joined to its
// relational row. A missing relational row degrades gracefully rather than
// dropping the hit.
type SearchResult struct {
	VideoID         string    `json:"video_id"`
	Score           float64   `json:"score"`
	Timestamp       time.Time `json:"timestamp"`
	DetailedSummary string    `json:"detailed_summary"`
	S3Link          *string   `json:"s3_link"`
	FileSize        int64     `json:"file_size"`
	ProcessedAt     time.Time `json:"processed_at"`
	UserID          string    `json:"user_id"`
}

type SearchResponse struct {
	Results      []SearchResult `json:"results"`
	TotalFound   int            `json:"total_found"`
	Query        string         `json:"query"`
	SearchTimeMS int64          `json:"search_time_ms"`
}

// ChatbotRequest is the input to the chatbot endpoint.
type ChatbotRequest struct {
	UserInput           string   `json:"user_input"`
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`
}

type ChatbotResponse struct {
	OriginalInput    string     `json:"original_input"`
	RefinedQuery     string     `json:"refined_query"`
	VideoFound       bool       `json:"video_found"`
	AIResponse       string     `json:"ai_response"`
	VideoID          *string    `json:"video_id,omitempty"`
	Timestamp        *time.Time `json:"timestamp,omitempty"`
	Summary          *string    `json:"summary,omitempty"`
	ConfidenceScore  *float64   `json:"confidence_score,omitempty"`
	ProcessingTimeMS int64      `json:"processing_time_ms"`
}

// ChatContext is one retrieved memory handed to the answer-synthesis call.
type ChatContext struct {
	Timestamp       time.Time `json:"timestamp"`
	Summary         string    `json:"summary"`
	ConfidenceScore float64   `json:"confidence_score"`
	VideoID         string    `json:"video_id"`
}

// NoRelevantVideosResponse is the fixed canned reply used when the vector
// store returns no hits at all.
const NoRelevantVideosResponse = "I couldn't find any relevant videos to answer your question."
