package segment

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// FFmpegEncoder writes raw JPEG/PNG frames to a temp directory and encodes
// them into a video-only MP4 at the target frame rate.
type FFmpegEncoder struct {
	FFmpegPath string
	FrameExt   string // "jpg" or "png"; defaults to "jpg"
}

func NewFFmpegEncoder() *FFmpegEncoder {
	return &FFmpegEncoder{FFmpegPath: "ffmpeg", FrameExt: "jpg"}
}

func (e *FFmpegEncoder) Encode(ctx context.Context, frames []Frame, fps int, outPath string) error {
	if len(frames) == 0 {
		return fmt.Errorf("no frames to encode")
	}
	ext := e.FrameExt
	if ext == "" {
		ext = "jpg"
	}

	frameDir, err := os.MkdirTemp("", "memoryd-frames-*")
	if err != nil {
		return fmt.Errorf("create frame temp dir: %w", err)
	}
	defer os.RemoveAll(frameDir)

	for i, f := range frames {
		name := filepath.Join(frameDir, fmt.Sprintf("frame_%06d.%s", i, ext))
		if err := os.WriteFile(name, f.Data, 0o644); err != nil {
			return fmt.Errorf("write frame %d: %w", i, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	path := e.FFmpegPath
	if path == "" {
		path = "ffmpeg"
	}
	args := []string{
		"-y",
		"-framerate", strconv.Itoa(fps),
		"-i", filepath.Join(frameDir, "frame_%06d."+ext),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		outPath,
	}
	cmd := exec.CommandContext(ctx, path, args...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg encode: %w", err)
	}
	return nil
}
