package domain

import "time"

// SegmentMetadata describes one capture window.
type SegmentMetadata struct {
	SegmentID       int       `json:"segment_id"`
	FPS             int       `json:"fps"`
	Width           int       `json:"width"`
	Height          int       `json:"height"`
	FrameCount      int       `json:"frame_count"`
	DurationSeconds float64   `json:"duration_seconds"`
	HasAudio        bool      `json:"has_audio"`
	CapturedAt      time.Time `json:"captured_at"`
	UserID          string    `json:"user_id"`
}

// SegmentJobStatus is always "pending" at enqueue time; the queue carries no
// further status transitions.
type SegmentJobStatus string

const SegmentJobStatusPending SegmentJobStatus = "pending"

// SegmentJob is the unit of work pushed onto the work queue and popped by a
// worker.
type SegmentJob struct {
	VideoPath   string           `json:"video_path"`
	Metadata    SegmentMetadata  `json:"metadata"`
	EnqueuedAt  float64          `json:"enqueued_at"`
	Status      SegmentJobStatus `json:"status"`
}
