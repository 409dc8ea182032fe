// Package ffmpeg composes the final video by muxing each scene's narration
// into its rendered video and concatenating the results in order.
package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"eduvid/internal/pipeline"
	"eduvid/internal/pkg/logger"
)

type Composer struct {
	bin string
	log *logger.Logger
}

// NewComposer creates a composer that invokes the given ffmpeg binary
// (default "ffmpeg").
func NewComposer(bin string, log *logger.Logger) *Composer {
	if bin == "" {
		bin = "ffmpeg"
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Composer{bin: bin, log: log.WithComponent("ffmpeg")}
}

// Compose muxes each segment's audio into its video, then concatenates the
// muxed segments into outPath. Segment order is preserved. The description
// is currently unused; metadata tagging is a possible use for it later.
func (c *Composer) Compose(ctx context.Context, segments []pipeline.Segment, description, outPath string) error {
	if len(segments) == 0 {
		return fmt.Errorf("ffmpeg: no segments to compose")
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}

	tempDir, err := os.MkdirTemp("", "compose-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tempDir)

	muxed := make([]string, len(segments))
	for i, seg := range segments {
		target := filepath.Join(tempDir, fmt.Sprintf("muxed_%d.mp4", i+1))
		if len(segments) == 1 {
			target = outPath
		}
		if err := c.mux(ctx, seg.VideoPath, seg.AudioPath, target); err != nil {
			return fmt.Errorf("ffmpeg: mux segment %d: %w", i, err)
		}
		muxed[i] = target
	}

	if len(segments) == 1 {
		return nil
	}
	return c.concat(ctx, muxed, tempDir, outPath)
}

// mux combines one video stream and one audio stream, trimming to the
// shorter of the two.
func (c *Composer) mux(ctx context.Context, videoPath, audioPath, outPath string) error {
	cmd := exec.CommandContext(ctx, c.bin, "-y",
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy",
		"-c:a", "aac",
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-shortest",
		outPath,
	)
	return c.run(ctx, cmd)
}

// concat joins the muxed segments with the concat demuxer, streams copied,
// no re-encode.
func (c *Composer) concat(ctx context.Context, paths []string, tempDir, outPath string) error {
	listPath := filepath.Join(tempDir, "video_list.txt")
	if err := os.WriteFile(listPath, []byte(concatList(paths)), 0o644); err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, c.bin, "-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outPath,
	)
	if err := c.run(ctx, cmd); err != nil {
		return fmt.Errorf("ffmpeg: concat %d segments: %w", len(paths), err)
	}
	return nil
}

func (c *Composer) run(ctx context.Context, cmd *exec.Cmd) error {
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s := strings.TrimSpace(string(out))
		if len(s) > 2048 {
			s = s[len(s)-2048:]
		}
		return fmt.Errorf("%w: %s", err, s)
	}
	return nil
}

// concatList renders the concat demuxer input file. Paths are absolute and
// single quotes are escaped the way the demuxer expects.
func concatList(paths []string) string {
	var b strings.Builder
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	return b.String()
}
