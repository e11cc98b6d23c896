package capture

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lifeos/memoryd/internal/domain"
	"github.com/lifeos/memoryd/internal/pipeline/queue"
	"github.com/lifeos/memoryd/internal/pipeline/segment"
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

// fakeCamera emits a frame every tick until ctx is done, simulating a
// camera running well above the configured fps so sub-sampling kicks in.
type fakeCamera struct {
	tick   time.Duration
	closed bool
}

func (c *fakeCamera) ReadFrame(ctx context.Context) ([]byte, time.Time, error) {
	select {
	case <-ctx.Done():
		return nil, time.Time{}, ctx.Err()
	case <-time.After(c.tick):
		return []byte("frame"), time.Now(), nil
	}
}

func (c *fakeCamera) Close() error {
	c.closed = true
	return nil
}

type fakeMic struct {
	onChunk func(pcm []byte)
}

func (m *fakeMic) Start(ctx context.Context, onChunk func(pcm []byte)) error {
	m.onChunk = onChunk
	return nil
}

func (m *fakeMic) Close() error { return nil }

type fakeBuilder struct {
	mu      sync.Mutex
	calls   int
	lastLen int
}

func (b *fakeBuilder) Build(ctx context.Context, frames []segment.Frame, audio []segment.AudioChunk, segmentID int, userID string, fps, width, height int) (string, domain.SegmentMetadata, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	b.lastLen = len(frames)
	return "/tmp/fake.mp4", domain.SegmentMetadata{
		SegmentID:  segmentID,
		FrameCount: len(frames),
		UserID:     userID,
	}, nil
}

func TestFrameBuffer_DropsOldestOnOverflow(t *testing.T) {
	b := newFrameBuffer(3)
	for i := 0; i < 5; i++ {
		b.Push(segment.Frame{Data: []byte{byte(i)}})
	}
	got := b.TakeAll()
	if len(got) != 3 {
		t.Fatalf("expected buffer capped at 3, got %d", len(got))
	}
	if got[0].Data[0] != 2 {
		t.Fatalf("expected oldest frames dropped, first kept frame = %v, want 2", got[0].Data)
	}
}

func TestAudioBuffer_DropsOldestOnOverflow(t *testing.T) {
	b := newAudioBuffer(2)
	b.Push(segment.AudioChunk{PCM: []byte("a")})
	b.Push(segment.AudioChunk{PCM: []byte("b")})
	b.Push(segment.AudioChunk{PCM: []byte("c")})
	got := b.TakeAll()
	if len(got) != 2 {
		t.Fatalf("expected buffer capped at 2, got %d", len(got))
	}
	if string(got[0].PCM) != "b" {
		t.Fatalf("expected oldest chunk dropped, first kept = %q, want %q", got[0].PCM, "b")
	}
}

// TestLoop_RunClosesWindowAndEnqueuesJob drives a real Loop with a fast fake
// camera and verifies a window closes at ~segment_duration and the resulting
// job lands on the queue with the builder's metadata.
func TestLoop_RunClosesWindowAndEnqueuesJob(t *testing.T) {
	cam := &fakeCamera{tick: 2 * time.Millisecond}
	mic := &fakeMic{}
	b := &fakeBuilder{}
	q := queue.NewInMemory()

	loop := NewLoop(testLogger(t), cam, mic, b, q, Config{
		FPS:             50,
		Width:           1280,
		Height:          720,
		SegmentDuration: 40 * time.Millisecond,
		UserID:          "user-1",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	_ = loop.Run(ctx)

	deadline := time.Now().Add(1 * time.Second)
	for {
		size, err := q.Size(context.Background())
		if err != nil {
			t.Fatalf("queue size: %v", err)
		}
		if size >= 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for a segment job to be enqueued")
		}
		time.Sleep(5 * time.Millisecond)
	}

	job, err := q.Pop(context.Background(), 10*time.Millisecond)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if job == nil {
		t.Fatalf("expected a job on the queue")
	}
	if job.Metadata.UserID != "user-1" {
		t.Fatalf("expected job metadata to carry the configured user id, got %q", job.Metadata.UserID)
	}
	if job.VideoPath != "/tmp/fake.mp4" {
		t.Fatalf("expected job video path from the builder, got %q", job.VideoPath)
	}
}

// TestLoop_FeedsMicCallbackIntoAudioBuffer registers the same
// push-into-audio-buffer callback that Run installs on the microphone and
// checks that a chunk delivered through it lands in the loop's audio buffer.
// Run itself is not started.
func TestLoop_FeedsMicCallbackIntoAudioBuffer(t *testing.T) {
	cam := &fakeCamera{tick: time.Hour}
	mic := &fakeMic{}
	b := &fakeBuilder{}
	q := queue.NewInMemory()

	loop := NewLoop(testLogger(t), cam, mic, b, q, Config{
		FPS:             10,
		SegmentDuration: time.Hour,
		UserID:          "user-1",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := loop.mic.Start(ctx, func(pcm []byte) {
		loop.audio.Push(segment.AudioChunk{PCM: pcm})
	}); err != nil {
		t.Fatalf("mic start: %v", err)
	}
	mic.onChunk([]byte("pcm-bytes"))

	chunks := loop.audio.TakeAll()
	if len(chunks) != 1 || string(chunks[0].PCM) != "pcm-bytes" {
		t.Fatalf("expected one pcm chunk fed through, got %+v", chunks)
	}
}
