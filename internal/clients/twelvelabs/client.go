package twelvelabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lifeos/memoryd/internal/pkg/httpx"
	"github.com/lifeos/memoryd/internal/pkg/logger"
)

// Task status values as reported by the video-understanding API.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusFailed     = "failed"
	StatusError      = "error"
)

// Client is the thin retrying wrapper over the video-understanding API: video
// ingest, task-status polling, text generation (summarization), and video
// embedding. Every worker owns its own instance -- NewClient is cheap and
// holds no shared mutable state.
type Client interface {
	// CreateIndexingTask uploads a segment file and returns the API's opaque
	// task id.
	CreateIndexingTask(ctx context.Context, filePath string) (taskID string, err error)

	// GetTaskStatus polls an indexing task. videoID is populated once the
	// task reaches StatusReady.
	GetTaskStatus(ctx context.Context, taskID string) (status, videoID string, err error)

	// Summarize asks for a free-text description of a ready video.
	Summarize(ctx context.Context, videoID, prompt string) (string, error)

	// CreateEmbeddingTask starts embedding generation over the same file.
	CreateEmbeddingTask(ctx context.Context, filePath string) (taskID string, err error)

	// GetEmbeddingTaskStatus polls an embedding task.
	GetEmbeddingTaskStatus(ctx context.Context, taskID string) (status string, err error)

	// RetrieveEmbedding fetches the 1024-d float vector of the first
	// segment once the embedding task is ready.
	RetrieveEmbedding(ctx context.Context, taskID string) ([]float32, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	indexID    string
	httpClient *http.Client
	maxRetries int
}

func NewClient(log *logger.Logger, apiKey string) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("missing video_understanding_api_key")
	}

	baseURL := strings.TrimSpace(os.Getenv("TWELVELABS_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.twelvelabs.io/v1.3"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	indexID := strings.TrimSpace(os.Getenv("TWELVELABS_INDEX_ID"))

	timeoutSec := 120
	if v := os.Getenv("TWELVELABS_TIMEOUT_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}
	maxRetries := 3
	if v := os.Getenv("TWELVELABS_MAX_RETRIES"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed >= 0 {
			maxRetries = parsed
		}
	}

	return &client{
		log:        log.With("client", "TwelveLabsClient"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		indexID:    indexID,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries: maxRetries,
	}, nil
}

type videoAPIHTTPError struct {
	StatusCode int
	Body       string
}

func (e *videoAPIHTTPError) Error() string {
	return fmt.Sprintf("video-understanding http %d: %s", e.StatusCode, e.Body)
}

func (e *videoAPIHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (c *client) doMultipart(ctx context.Context, path string, filePath string, fields map[string]string, out any) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open segment file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return err
		}
	}
	part, err := w.CreateFormFile("video_file", filepath.Base(filePath))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	return c.do(ctx, "POST", path, w.FormDataContentType(), &buf, out)
}

func (c *client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	return c.do(ctx, method, path, "application/json", &buf, out)
}

func (c *client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	backoff := 1 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var bodyBytes []byte
		if b, ok := body.(*bytes.Buffer); ok {
			bodyBytes = b.Bytes()
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(bodyBytes))
		if err != nil {
			return err
		}
		req.Header.Set("x-api-key", c.apiKey)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, httpErr := c.httpClient.Do(req)
		var raw []byte
		var callErr error
		if httpErr != nil {
			callErr = httpErr
		} else {
			raw, _ = io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				callErr = &videoAPIHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
			}
		}

		if callErr == nil {
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(raw, out); err != nil {
				return fmt.Errorf("video-understanding decode error: %w; raw=%s", err, string(raw))
			}
			return nil
		}

		if !httpx.IsRetryableError(callErr) || attempt == c.maxRetries {
			return callErr
		}

		sleepFor := httpx.JitterSleep(backoff)
		c.log.Warn("video-understanding request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", callErr.Error(),
		)
		time.Sleep(sleepFor)
		backoff *= 2
	}
	return fmt.Errorf("unreachable retry loop")
}

// -------------------- Indexing / ingest --------------------

type createTaskResponse struct {
	ID string `json:"_id"`
}

func (c *client) CreateIndexingTask(ctx context.Context, filePath string) (string, error) {
	fields := map[string]string{}
	if c.indexID != "" {
		fields["index_id"] = c.indexID
	}
	var resp createTaskResponse
	if err := c.doMultipart(ctx, "/tasks", filePath, fields, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("video-understanding create task: empty task id")
	}
	return resp.ID, nil
}

type taskStatusResponse struct {
	Status  string `json:"status"`
	VideoID string `json:"video_id"`
}

func (c *client) GetTaskStatus(ctx context.Context, taskID string) (string, string, error) {
	if taskID == "" {
		return "", "", fmt.Errorf("taskID required")
	}
	var resp taskStatusResponse
	if err := c.doJSON(ctx, "GET", "/tasks/"+taskID, nil, &resp); err != nil {
		return "", "", err
	}
	return resp.Status, resp.VideoID, nil
}

// -------------------- Summarization --------------------

type summarizeRequest struct {
	VideoID string `json:"video_id"`
	Type    string `json:"type"`
	Prompt  string `json:"prompt,omitempty"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
}

func (c *client) Summarize(ctx context.Context, videoID, prompt string) (string, error) {
	if videoID == "" {
		return "", fmt.Errorf("videoID required")
	}
	req := summarizeRequest{VideoID: videoID, Type: "summary", Prompt: prompt}
	var resp summarizeResponse
	if err := c.doJSON(ctx, "POST", "/summarize", req, &resp); err != nil {
		return "", err
	}
	return resp.Summary, nil
}

// -------------------- Embedding --------------------

type createEmbedTaskResponse struct {
	ID string `json:"_id"`
}

func (c *client) CreateEmbeddingTask(ctx context.Context, filePath string) (string, error) {
	var resp createEmbedTaskResponse
	if err := c.doMultipart(ctx, "/embed/tasks", filePath, map[string]string{"engine_name": "marengo2.7"}, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("video-understanding create embed task: empty task id")
	}
	return resp.ID, nil
}

type embedTaskStatusResponse struct {
	Status string `json:"status"`
}

func (c *client) GetEmbeddingTaskStatus(ctx context.Context, taskID string) (string, error) {
	if taskID == "" {
		return "", fmt.Errorf("taskID required")
	}
	var resp embedTaskStatusResponse
	if err := c.doJSON(ctx, "GET", "/embed/tasks/"+taskID, nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

type embedTaskResultResponse struct {
	VideoEmbedding struct {
		Segments []struct {
			EmbeddingsFloat []float32 `json:"embeddings_float"`
		} `json:"segments"`
	} `json:"video_embedding"`
}

func (c *client) RetrieveEmbedding(ctx context.Context, taskID string) ([]float32, error) {
	if taskID == "" {
		return nil, fmt.Errorf("taskID required")
	}
	var resp embedTaskResultResponse
	if err := c.doJSON(ctx, "GET", "/embed/tasks/"+taskID, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.VideoEmbedding.Segments) == 0 {
		return nil, fmt.Errorf("video-understanding embedding task %s: no segments returned", taskID)
	}
	vec := resp.VideoEmbedding.Segments[0].EmbeddingsFloat
	if len(vec) == 0 {
		return nil, fmt.Errorf("video-understanding embedding task %s: empty embeddings_float", taskID)
	}
	return vec, nil
}
