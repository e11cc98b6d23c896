package capture

import (
	"context"
	"sync"
	"time"

	"github.com/lifeos/memoryd/internal/domain"
	"github.com/lifeos/memoryd/internal/pipeline/queue"
	"github.com/lifeos/memoryd/internal/pipeline/segment"
	"github.com/lifeos/memoryd/internal/pkg/logger"
)

const (
	frameBufferCapacity = 100
	audioBufferCapacity = 200
	windowEpsilon       = 10 * time.Millisecond
)

// frameBuffer is the single-producer-single-consumer bounded queue bridging
// the camera thread and the window assembler: non-blocking put-with-evict
// on overflow, drop-oldest.
type frameBuffer struct {
	mu     sync.Mutex
	frames []segment.Frame
	max    int
}

func newFrameBuffer(max int) *frameBuffer {
	return &frameBuffer{max: max}
}

func (b *frameBuffer) Push(f segment.Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = append(b.frames, f)
	if len(b.frames) > b.max {
		b.frames = b.frames[len(b.frames)-b.max:]
	}
}

func (b *frameBuffer) TakeAll() []segment.Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.frames
	b.frames = nil
	return out
}

type audioBuffer struct {
	mu     sync.Mutex
	chunks []segment.AudioChunk
	max    int
}

func newAudioBuffer(max int) *audioBuffer {
	return &audioBuffer{max: max}
}

func (b *audioBuffer) Push(c segment.AudioChunk) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chunks = append(b.chunks, c)
	if len(b.chunks) > b.max {
		b.chunks = b.chunks[len(b.chunks)-b.max:]
	}
}

func (b *audioBuffer) TakeAll() []segment.AudioChunk {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.chunks
	b.chunks = nil
	return out
}

// Config carries the capture-side parameters.
type Config struct {
	FPS             int
	Width           int
	Height          int
	SegmentDuration time.Duration
	UserID          string
}

// Loop drives the camera at native rate but keeps frames at FPS
// via timestamp-gated sub-sampling, feeds a PCM callback into a bounded
// audio buffer, and closes a window every SegmentDuration regardless of
// frame count.
type Loop struct {
	log     *logger.Logger
	camera  Camera
	mic     Microphone
	builder segment.Builder
	queue   queue.Queue
	cfg     Config

	frames  *frameBuffer
	audio   *audioBuffer
	counter int
}

func NewLoop(log *logger.Logger, camera Camera, mic Microphone, builder segment.Builder, q queue.Queue, cfg Config) *Loop {
	if cfg.SegmentDuration <= 0 {
		cfg.SegmentDuration = 10 * time.Second
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 10
	}
	return &Loop{
		log:     log.With("component", "CaptureLoop"),
		camera:  camera,
		mic:     mic,
		builder: builder,
		queue:   q,
		cfg:     cfg,
		frames:  newFrameBuffer(frameBufferCapacity),
		audio:   newAudioBuffer(audioBufferCapacity),
	}
}

// Run drives the capture loop until ctx is cancelled. The camera read runs
// on its own goroutine (the "OS-thread for the camera frame loop" in the
// scheduling model); Run itself hosts the window assembler.
func (l *Loop) Run(ctx context.Context) error {
	if l.mic != nil {
		if err := l.mic.Start(ctx, func(pcm []byte) {
			l.audio.Push(segment.AudioChunk{PCM: pcm})
		}); err != nil {
			l.log.Warn("microphone start failed, continuing video-only", "error", err)
		}
	}

	cameraDone := make(chan struct{})
	go func() {
		defer close(cameraDone)
		l.captureFrames(ctx)
	}()

	for {
		if ctx.Err() != nil {
			<-cameraDone
			return ctx.Err()
		}
		l.runWindow(ctx)
	}
}

func (l *Loop) captureFrames(ctx context.Context) {
	interval := time.Second / time.Duration(l.cfg.FPS)
	var lastKept time.Time

	for {
		select {
		case <-ctx.Done():
			if l.camera != nil {
				_ = l.camera.Close()
			}
			return
		default:
		}

		data, capturedAt, err := l.camera.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.log.Warn("camera read failed", "error", err)
			continue
		}
		if !lastKept.IsZero() && capturedAt.Sub(lastKept) < interval {
			continue
		}
		lastKept = capturedAt
		l.frames.Push(segment.Frame{Data: data, Timestamp: capturedAt})
	}
}

// runWindow closes the window deterministically at windowStart+duration-ε
// regardless of frame count, then hands the accumulated frames/audio off to
// the builder without delaying the next window.
func (l *Loop) runWindow(ctx context.Context) {
	windowStart := time.Now()
	deadline := windowStart.Add(l.cfg.SegmentDuration - windowEpsilon)

	select {
	case <-ctx.Done():
	case <-time.After(time.Until(deadline)):
	}

	frames := l.frames.TakeAll()
	audio := l.audio.TakeAll()
	if len(frames) == 0 {
		return
	}

	l.counter++
	segmentID := l.counter
	go l.buildAndEnqueue(segmentID, frames, audio)
}

// buildAndEnqueue runs off the window-timing critical path: any failure
// releases temporaries and drops the segment (logged, not re-queued); it
// never blocks the next window.
func (l *Loop) buildAndEnqueue(segmentID int, frames []segment.Frame, audio []segment.AudioChunk) {
	ctx := context.Background()
	videoPath, metadata, err := l.builder.Build(ctx, frames, audio, segmentID, l.cfg.UserID, l.cfg.FPS, l.cfg.Width, l.cfg.Height)
	if err != nil {
		l.log.Error("segment build failed, dropping segment", "segment_id", segmentID, "error", err)
		return
	}

	job := domain.SegmentJob{
		VideoPath:  videoPath,
		Metadata:   metadata,
		EnqueuedAt: float64(time.Now().UnixNano()) / 1e9,
		Status:     domain.SegmentJobStatusPending,
	}
	if err := l.queue.Push(ctx, job); err != nil {
		l.log.Error("failed to enqueue segment job, dropping segment", "segment_id", segmentID, "error", err)
	}
}
