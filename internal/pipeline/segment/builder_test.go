package segment

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lifeos/memoryd/internal/pkg/logger"
)

type fakeEncoder struct {
	lastFrameCount int
	path           string
}

func (f *fakeEncoder) Encode(ctx context.Context, frames []Frame, fps int, outPath string) error {
	f.lastFrameCount = len(frames)
	f.path = outPath
	return os.WriteFile(outPath, []byte("fake-mp4"), 0o644)
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func TestBuilder_PadsShortFrameWindow(t *testing.T) {
	enc := &fakeEncoder{}
	dir := t.TempDir()
	b := NewBuilder(testLogger(t), enc, BuilderConfig{WorkDir: dir, SegmentDuration: 10 * time.Second})

	frames := []Frame{
		{Data: []byte("f0"), Timestamp: time.Now()},
		{Data: []byte("f1"), Timestamp: time.Now()},
	}

	videoPath, meta, err := b.Build(context.Background(), frames, nil, 1, "user-1", 10, 1280, 720)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if videoPath == "" {
		t.Fatalf("expected non-empty video path")
	}
	wantFrames := 10 * 10
	if enc.lastFrameCount != wantFrames {
		t.Fatalf("padding invariant: encoder got %d frames, want %d", enc.lastFrameCount, wantFrames)
	}
	if meta.FrameCount != wantFrames {
		t.Fatalf("metadata.FrameCount = %d, want %d", meta.FrameCount, wantFrames)
	}
	if meta.HasAudio {
		t.Fatalf("expected HasAudio=false with no audio chunks")
	}
}

func TestWriteWAV_Header(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audio.wav")
	chunks := []AudioChunk{{PCM: make([]byte, 1024)}, {PCM: make([]byte, 512)}}

	if err := writeWAV(path, chunks, 44100, 1); err != nil {
		t.Fatalf("writeWAV: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read wav: %v", err)
	}

	const dataLen = 1024 + 512
	if len(raw) != 44+dataLen {
		t.Fatalf("wav size = %d, want %d", len(raw), 44+dataLen)
	}
	if string(raw[0:4]) != "RIFF" || string(raw[8:12]) != "WAVE" {
		t.Fatalf("missing RIFF/WAVE magic: %q %q", raw[0:4], raw[8:12])
	}
	if got := binary.LittleEndian.Uint32(raw[24:28]); got != 44100 {
		t.Fatalf("sample rate = %d, want 44100", got)
	}
	if got := binary.LittleEndian.Uint32(raw[40:44]); got != dataLen {
		t.Fatalf("data chunk length = %d, want %d", got, dataLen)
	}
}

func TestBuilder_NoAudioSkipsMux(t *testing.T) {
	enc := &fakeEncoder{}
	dir := t.TempDir()
	b := NewBuilder(testLogger(t), enc, BuilderConfig{WorkDir: dir})

	frames := make([]Frame, 100)
	for i := range frames {
		frames[i] = Frame{Data: []byte("f"), Timestamp: time.Now()}
	}

	_, meta, err := b.Build(context.Background(), frames, nil, 2, "user-1", 10, 1280, 720)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if meta.HasAudio {
		t.Fatalf("expected no audio mux when no chunks supplied")
	}
	if meta.DurationSeconds != 10.0 {
		t.Fatalf("DurationSeconds = %v, want 10.0", meta.DurationSeconds)
	}
}
