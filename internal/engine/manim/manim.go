// Package manim renders scene animation code into video by shelling out to
// the Manim Community Edition CLI.
package manim

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"eduvid/internal/job"
	"eduvid/internal/pkg/logger"
)

var sceneClassRe = regexp.MustCompile(`class\s+(\w+)\s*\(\s*Scene\s*\)`)

type Renderer struct {
	python string
	log    *logger.Logger
}

// NewRenderer creates a renderer that invokes python (default "python3")
// with "-m manim".
func NewRenderer(python string, log *logger.Logger) *Renderer {
	if python == "" {
		python = "python3"
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Renderer{python: python, log: log.WithComponent("manim")}
}

// RenderScene writes the animation code to a scratch dir, runs Manim on the
// Scene class it finds and copies the produced video to outPath. The audio
// path is unused here; narration is muxed during composition.
func (r *Renderer) RenderScene(ctx context.Context, animationCode, audioPath, outPath, quality string) (string, error) {
	className := ExtractClassName(animationCode)
	if className == "" {
		return "", fmt.Errorf("manim: no Scene class found in animation code")
	}

	tempDir, err := os.MkdirTemp("", "manim-render-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tempDir)

	sceneFile := filepath.Join(tempDir, "scene.py")
	if err := os.WriteFile(sceneFile, []byte(animationCode), 0o644); err != nil {
		return "", err
	}

	outName := strings.TrimSuffix(filepath.Base(outPath), ".mp4")
	cmd := exec.CommandContext(ctx, r.python, "-m", "manim",
		sceneFile,
		className,
		QualityFlag(quality),
		"-o", outName,
		"--media_dir", tempDir,
	)

	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("manim: render %s failed: %w: %s", className, err, tail(out, 2048))
	}

	rendered, err := findVideo(filepath.Join(tempDir, "videos"))
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	if err := copyFile(rendered, outPath); err != nil {
		return "", err
	}

	r.log.Debug("scene rendered", "class", className, "output", outPath)
	return outPath, nil
}

// ExtractClassName returns the first Scene subclass name in the code, or
// the empty string.
func ExtractClassName(code string) string {
	if m := sceneClassRe.FindStringSubmatch(code); m != nil {
		return m[1]
	}
	return ""
}

// QualityFlag maps a quality level to the Manim CLI flag. Unknown levels
// render at medium quality.
func QualityFlag(quality string) string {
	switch quality {
	case job.QualityLow:
		return "-ql"
	case job.QualityHigh:
		return "-qh"
	default:
		return "-qm"
	}
}

// findVideo walks the Manim media dir for the produced mp4. Manim nests
// output under videos/<file>/<resolution>/.
func findVideo(root string) (string, error) {
	var found string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".mp4") {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("manim: scan output dir: %w", err)
	}
	if found == "" {
		return "", fmt.Errorf("manim: no video produced under %s", root)
	}
	return found, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

func tail(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
