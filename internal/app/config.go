package app

import (
	"fmt"
	"time"

	"github.com/lifeos/memoryd/internal/pkg/logger"
	"github.com/lifeos/memoryd/internal/utils"
)

// Config is the process-wide configuration surface: capture tunables,
// pipeline tunables, and every external collaborator's connection
// parameters.
type Config struct {
	// Capture
	FPS             int
	Width           int
	Height          int
	SegmentDuration time.Duration
	AudioSampleRate int
	AudioChannels   int
	AudioChunkSize  int
	CameraIndex     int

	// Worker pool
	NumWorkers         int
	DeleteSegmentFiles bool

	// External collaborators
	QueueBrokerURL           string
	BlobRegion               string
	BlobBucket               string
	VectorAPIKey             string
	RelationalURL            string
	RelationalKey            string
	VideoUnderstandingAPIKey string
	ChatAPIKey               string
	TextEmbedAPIKey          string

	// Auth
	JWTSecret string

	// Automation
	CalendarCredentialsPath string
	CalendarID              string
}

// LoadConfig reads every key via utils.GetEnv* (each call logs its
// resolution source at debug level). Missing required keys are returned as
// plain errors so App.New can fail fast instead of panicking deep in a
// collaborator constructor.
func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := Config{
		FPS:             utils.GetEnvAsInt("FPS", 10, log),
		Width:           utils.GetEnvAsInt("FRAME_WIDTH", 1280, log),
		Height:          utils.GetEnvAsInt("FRAME_HEIGHT", 720, log),
		SegmentDuration: utils.GetEnvAsDuration("SEGMENT_DURATION_SECONDS", 10*time.Second, log),
		AudioSampleRate: utils.GetEnvAsInt("AUDIO_SAMPLE_RATE", 44100, log),
		AudioChannels:   utils.GetEnvAsInt("AUDIO_CHANNELS", 1, log),
		AudioChunkSize:  utils.GetEnvAsInt("AUDIO_CHUNK_SIZE", 1024, log),
		CameraIndex:     utils.GetEnvAsInt("CAMERA_INDEX", 0, log),

		NumWorkers:         utils.GetEnvAsInt("NUM_WORKERS", 3, log),
		DeleteSegmentFiles: utils.GetEnvAsBool("DELETE_SEGMENT_FILES", true, log),

		QueueBrokerURL:           utils.GetEnv("QUEUE_BROKER_URL", "", log),
		BlobRegion:               utils.GetEnv("BLOB_REGION", "us-east-1", log),
		BlobBucket:               utils.GetEnv("BLOB_BUCKET", "", log),
		VectorAPIKey:             utils.GetEnv("VECTOR_API_KEY", "", log),
		RelationalURL:            utils.GetEnv("RELATIONAL_URL", "", log),
		RelationalKey:            utils.GetEnv("RELATIONAL_KEY", "", log),
		VideoUnderstandingAPIKey: utils.GetEnv("VIDEO_UNDERSTANDING_API_KEY", "", log),
		ChatAPIKey:               utils.GetEnv("CHAT_API_KEY", "", log),
		TextEmbedAPIKey:          utils.GetEnv("TEXT_EMBED_API_KEY", "", log),

		JWTSecret: utils.GetEnv("JWT_SECRET", "", log),

		CalendarCredentialsPath: utils.GetEnv("CALENDAR_CREDENTIALS_PATH", "", log),
		CalendarID:              utils.GetEnv("CALENDAR_ID", "primary", log),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("missing required config: jwt_secret")
	}
	if cfg.RelationalURL == "" {
		return Config{}, fmt.Errorf("missing required config: relational_url")
	}
	if cfg.RelationalKey == "" {
		return Config{}, fmt.Errorf("missing required config: relational_key")
	}
	return cfg, nil
}

// requireForWorker validates the keys only the worker pool needs, so a
// server-only deployment need not supply video-understanding credentials.
func (c Config) requireForWorker() error {
	if c.VideoUnderstandingAPIKey == "" {
		return fmt.Errorf("missing required config: video_understanding_api_key")
	}
	if c.BlobBucket == "" {
		return fmt.Errorf("missing required config: blob_bucket")
	}
	if c.VectorAPIKey == "" {
		return fmt.Errorf("missing required config: vector_api_key")
	}
	if c.QueueBrokerURL == "" {
		return fmt.Errorf("missing required config: queue_broker_url")
	}
	return nil
}
