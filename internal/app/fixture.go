package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lifeos/memoryd/internal/domain"
)

// fixtureJob is the on-disk shape of a replayable segment job, used by
// operators to smoke-test the worker pool without a camera attached.
type fixtureJob struct {
	VideoPath       string  `yaml:"video_path"`
	SegmentID       int     `yaml:"segment_id"`
	FPS             int     `yaml:"fps"`
	Width           int     `yaml:"width"`
	Height          int     `yaml:"height"`
	FrameCount      int     `yaml:"frame_count"`
	DurationSeconds float64 `yaml:"duration_seconds"`
	HasAudio        bool    `yaml:"has_audio"`
	UserID          string  `yaml:"user_id"`
}

// LoadFixture reads a YAML segment-job fixture from disk and pushes it onto
// the work queue, exactly as the capture loop would. This lets an operator
// drive the worker pool end to end with a pre-recorded segment file when no
// camera/microphone collaborator is wired.
func (a *App) LoadFixture(ctx context.Context, path string) error {
	if a == nil || a.workQueue == nil {
		return fmt.Errorf("app not initialized")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read fixture %q: %w", path, err)
	}

	var f fixtureJob
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse fixture %q: %w", path, err)
	}
	if f.VideoPath == "" {
		return fmt.Errorf("fixture %q missing video_path", path)
	}
	if f.UserID == "" {
		return fmt.Errorf("fixture %q missing user_id", path)
	}

	job := domain.SegmentJob{
		VideoPath: f.VideoPath,
		Metadata: domain.SegmentMetadata{
			SegmentID:       f.SegmentID,
			FPS:             f.FPS,
			Width:           f.Width,
			Height:          f.Height,
			FrameCount:      f.FrameCount,
			DurationSeconds: f.DurationSeconds,
			HasAudio:        f.HasAudio,
			CapturedAt:      time.Now().UTC(),
			UserID:          f.UserID,
		},
		EnqueuedAt: float64(time.Now().UnixMilli()) / 1000,
		Status:     domain.SegmentJobStatusPending,
	}

	if err := a.workQueue.Push(ctx, job); err != nil {
		return fmt.Errorf("push fixture job: %w", err)
	}
	a.Log.Info("replayed fixture job onto work queue", "fixture", path, "video_path", f.VideoPath)
	return nil
}
