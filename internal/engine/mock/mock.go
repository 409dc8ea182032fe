// Package mock provides a development engine that runs the whole pipeline
// without external services. It is selected only when the process is
// explicitly configured for mock mode; production wiring refuses to start
// without real credentials instead of silently degrading.
package mock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"eduvid/internal/job"
	"eduvid/internal/pipeline"
)

// Minimal valid-enough file headers so downstream tooling recognizes the
// container types.
var (
	mp3Header = []byte("\xFF\xFB\x90\x44\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00")
	mp4Header = []byte("\x00\x00\x00\x18\x66\x74\x79\x70\x6D\x70\x34\x32\x00\x00\x00\x00\x6D\x70\x34\x32\x69\x73\x6F\x6D")
)

// Engine implements every pipeline collaborator with canned output.
type Engine struct{}

func New() *Engine { return &Engine{} }

func (e *Engine) GenerateScript(ctx context.Context, prompt string) (*job.Script, error) {
	return &job.Script{
		Title:       fmt.Sprintf("Understanding %s", prompt),
		Description: fmt.Sprintf("An educational video explaining %s with visual animations.", prompt),
		Scenes: []job.Scene{
			{
				StartTime: "00:00",
				EndTime:   "00:10",
				Narration: fmt.Sprintf("Welcome to this video about %s. We'll explore this concept with visual examples.", prompt),
				VisualDescription: "Show a title text with the prompt. Then animate it to move to the top of the screen. " +
					"Create a circle in the center that pulses to draw attention.",
			},
			{
				StartTime: "00:10",
				EndTime:   "00:25",
				Narration: fmt.Sprintf("Let's start by understanding the basic principles of %s. This concept is fundamental in mathematics.", prompt),
				VisualDescription: "Display a mathematical equation related to the topic. " +
					"Animate each part of the equation appearing one by one, highlighting each term as it's mentioned.",
			},
			{
				StartTime: "00:25",
				EndTime:   "00:40",
				Narration: fmt.Sprintf("Now, let's see how %s works in practice with a visual example.", prompt),
				VisualDescription: "Create a coordinate system. Plot a function or shape related to the topic " +
					"and animate a point moving along it.",
			},
			{
				StartTime: "00:40",
				EndTime:   "00:55",
				Narration: fmt.Sprintf("To summarize what we've learned about %s, let's review the key points.", prompt),
				VisualDescription: "Create a bulleted list with 3 key points about the topic. " +
					"Have each point appear one by one with a small animation.",
			},
		},
	}, nil
}

func (e *Engine) GenerateSceneCode(ctx context.Context, scene job.Scene, index int) (string, error) {
	return fmt.Sprintf(`from manim import *

class Scene%d(Scene):
    def construct(self):
        title = Text("Scene %d", font_size=36)
        self.play(Write(title))
        self.wait(1)
        self.play(title.animate.to_edge(UP))
        circle = Circle(radius=2, color=BLUE)
        self.play(Create(circle))
        self.play(circle.animate.scale(1.2), rate_func=there_and_back)
        self.wait(1)
`, index+1, index+1), nil
}

func (e *Engine) Synthesize(ctx context.Context, text, voiceID, outPath string) (string, error) {
	if err := writeStub(outPath, mp3Header); err != nil {
		return "", err
	}
	return outPath, nil
}

func (e *Engine) RenderScene(ctx context.Context, animationCode, audioPath, outPath, quality string) (string, error) {
	if err := writeStub(outPath, mp4Header); err != nil {
		return "", err
	}
	return outPath, nil
}

func (e *Engine) Compose(ctx context.Context, segments []pipeline.Segment, description, outPath string) error {
	if len(segments) == 0 {
		return fmt.Errorf("mock: no segments to compose")
	}
	return writeStub(outPath, mp4Header)
}

func writeStub(path string, header []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, header, 0o644)
}
