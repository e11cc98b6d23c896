// Package segment merges a capture window of frames and PCM chunks into one
// on-disk playable container.
package segment

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/lifeos/memoryd/internal/domain"
	"github.com/lifeos/memoryd/internal/pkg/logger"
)

// Frame is one captured video frame: raw encoded bytes plus its capture
// timestamp (the capture loop hands these in order; the builder never
// re-sorts them).
type Frame struct {
	Data      []byte
	Timestamp time.Time
}

// AudioChunk is one PCM buffer pulled off the capture loop's bounded audio
// buffer.
type AudioChunk struct {
	PCM []byte
}

// VideoEncoder writes frames to a video-only container. Implementations may
// shell out to ffmpeg; the builder only needs Encode to produce a file at
// outPath.
type VideoEncoder interface {
	Encode(ctx context.Context, frames []Frame, fps int, outPath string) error
}

// Builder is the assembly contract: given a window of frames and audio chunks,
// produce one playable container plus metadata.
type Builder interface {
	Build(ctx context.Context, frames []Frame, audio []AudioChunk, segmentID int, userID string, fps, width, height int) (videoPath string, metadata domain.SegmentMetadata, err error)
}

// BuilderConfig carries the container-side tunables: where segment files
// land, the wall-clock window length (which fixes the pad target), and the
// PCM format the microphone callback delivers.
type BuilderConfig struct {
	WorkDir         string
	SegmentDuration time.Duration
	SampleRate      int
	Channels        int
}

type builder struct {
	log        *logger.Logger
	encoder    VideoEncoder
	workDir    string
	segmentSec int
	sampleRate int
	channels   int
	muxTimeout time.Duration
	ffmpegPath string
}

func NewBuilder(log *logger.Logger, encoder VideoEncoder, cfg BuilderConfig) Builder {
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	if cfg.SegmentDuration <= 0 {
		cfg.SegmentDuration = 10 * time.Second
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 44100
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	return &builder{
		log:        log.With("component", "SegmentBuilder"),
		encoder:    encoder,
		workDir:    cfg.WorkDir,
		segmentSec: int(cfg.SegmentDuration.Seconds()),
		sampleRate: cfg.SampleRate,
		channels:   cfg.Channels,
		muxTimeout: 15 * time.Second,
		ffmpegPath: "ffmpeg",
	}
}

// Build pads short windows to the target frame count, encodes video, and
// (if audio is present) muxes in PCM via an external muxer, falling back to
// the video-only file on timeout or failure.
func (b *builder) Build(ctx context.Context, frames []Frame, audio []AudioChunk, segmentID int, userID string, fps, width, height int) (string, domain.SegmentMetadata, error) {
	capturedAt := time.Now().UTC()
	if len(frames) > 0 {
		capturedAt = frames[0].Timestamp
	}

	targetCount := fps * b.segmentSec
	frames = padFrames(frames, targetCount)

	if err := os.MkdirAll(b.workDir, 0o755); err != nil {
		return "", domain.SegmentMetadata{}, fmt.Errorf("create segment work dir: %w", err)
	}

	basename := fmt.Sprintf("segment_%d_%d.mp4", segmentID, capturedAt.UnixNano())
	videoOnlyPath := filepath.Join(b.workDir, "video_"+basename)

	if err := b.encoder.Encode(ctx, frames, fps, videoOnlyPath); err != nil {
		return "", domain.SegmentMetadata{}, fmt.Errorf("encode video-only segment: %w", err)
	}

	hasAudio := len(audio) > 0
	finalPath := videoOnlyPath
	if hasAudio {
		wavPath := filepath.Join(b.workDir, "audio_"+basename+".wav")
		if err := writeWAV(wavPath, audio, b.sampleRate, b.channels); err != nil {
			b.log.Warn("failed writing PCM to WAV, falling back to video-only", "error", err)
			hasAudio = false
		} else {
			muxedPath := filepath.Join(b.workDir, basename)
			if err := b.mux(ctx, videoOnlyPath, wavPath, muxedPath); err != nil {
				b.log.Warn("muxer failed or timed out, falling back to video-only segment", "error", err)
				hasAudio = false
			} else {
				finalPath = muxedPath
				_ = os.Remove(videoOnlyPath)
			}
			_ = os.Remove(wavPath)
		}
	}

	durationSeconds := float64(len(frames)) / float64(fps)
	metadata := domain.SegmentMetadata{
		SegmentID:       segmentID,
		FPS:             fps,
		Width:           width,
		Height:          height,
		FrameCount:      len(frames),
		DurationSeconds: durationSeconds,
		HasAudio:        hasAudio,
		CapturedAt:      capturedAt,
		UserID:          userID,
	}
	return finalPath, metadata, nil
}

// padFrames duplicates the last frame until the target count is reached
// (TwelveLabs-style APIs require several seconds of content).
func padFrames(frames []Frame, targetCount int) []Frame {
	if len(frames) == 0 || len(frames) >= targetCount {
		return frames
	}
	last := frames[len(frames)-1]
	padded := make([]Frame, len(frames), targetCount)
	copy(padded, frames)
	for len(padded) < targetCount {
		padded = append(padded, last)
	}
	return padded
}

// writeWAV wraps the accumulated 16-bit PCM chunks in a RIFF/WAVE header so
// the muxer can read them as a real audio stream.
func writeWAV(path string, chunks []AudioChunk, sampleRate, channels int) error {
	dataLen := 0
	for _, c := range chunks {
		dataLen += len(c.PCM)
	}

	const bitsPerSample = 16
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign

	var header bytes.Buffer
	header.WriteString("RIFF")
	binary.Write(&header, binary.LittleEndian, uint32(36+dataLen))
	header.WriteString("WAVE")
	header.WriteString("fmt ")
	binary.Write(&header, binary.LittleEndian, uint32(16))
	binary.Write(&header, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&header, binary.LittleEndian, uint16(channels))
	binary.Write(&header, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&header, binary.LittleEndian, uint32(byteRate))
	binary.Write(&header, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&header, binary.LittleEndian, uint16(bitsPerSample))
	header.WriteString("data")
	binary.Write(&header, binary.LittleEndian, uint32(dataLen))

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(header.Bytes()); err != nil {
		return err
	}
	for _, c := range chunks {
		if _, err := f.Write(c.PCM); err != nil {
			return err
		}
	}
	return nil
}

// mux invokes an external muxer (ultrafast preset, CRF 28) with a hard
// timeout; a timeout or non-zero exit leaves outPath unwritten so the
// caller falls back to the video-only file.
func (b *builder) mux(ctx context.Context, videoPath, wavPath, outPath string) error {
	muxCtx, cancel := context.WithTimeout(ctx, b.muxTimeout)
	defer cancel()

	args := []string{
		"-y",
		"-i", videoPath,
		"-i", wavPath,
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-crf", strconv.Itoa(28),
		"-c:a", "aac",
		"-shortest",
		outPath,
	}
	cmd := exec.CommandContext(muxCtx, b.ffmpegPath, args...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg mux: %w", err)
	}
	if muxCtx.Err() != nil {
		return fmt.Errorf("ffmpeg mux timed out after %s", b.muxTimeout)
	}
	return nil
}
