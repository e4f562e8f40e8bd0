// Package transcode re-encodes detection output into a browser-playable video.
package transcode

import (
	"context"
	"fmt"
	"time"

	"github.com/soochol/platescan/internal/command"
)

const defaultCodec = "libx264"

// Encoder re-encodes videos with FFmpeg. Requires ffmpeg on PATH unless
// FFmpeg names another binary.
type Encoder struct {
	FFmpeg     string
	VideoCodec string
	Timeout    time.Duration
}

// Args returns the ffmpeg arguments for encoding in to out.
func (e *Encoder) Args(in, out string) []string {
	codec := e.VideoCodec
	if codec == "" {
		codec = defaultCodec
	}
	return []string{"-y", "-i", in, "-c:v", codec, out}
}

// Encode writes in to out, overwriting out.
func (e *Encoder) Encode(ctx context.Context, in, out string) error {
	bin := e.FFmpeg
	if bin == "" {
		bin = "ffmpeg"
	}
	if in == "" || out == "" {
		return fmt.Errorf("transcode: input and output paths are required")
	}
	if _, err := command.Run(ctx, e.Timeout, bin, e.Args(in, out)...); err != nil {
		return err
	}
	return nil
}
