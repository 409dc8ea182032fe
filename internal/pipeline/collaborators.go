package pipeline

import (
	"context"

	"eduvid/internal/job"
)

// The orchestrator drives four external capabilities plus composition. Each
// is a blocking call from the pipeline's point of view; implementations live
// under internal/engine.

// ScriptGenerator turns a user prompt into a structured script with ordered
// scenes.
type ScriptGenerator interface {
	GenerateScript(ctx context.Context, prompt string) (*job.Script, error)
}

// SceneCodeGenerator produces animation code for a single scene.
type SceneCodeGenerator interface {
	GenerateSceneCode(ctx context.Context, scene job.Scene, index int) (string, error)
}

// Narrator synthesizes narration audio into outPath and returns the written
// path.
type Narrator interface {
	Synthesize(ctx context.Context, text, voiceID, outPath string) (string, error)
}

// Renderer renders animation code into a scene video at outPath. The audio
// path is part of the contract because rendering must not start before the
// scene's narration exists (composition trims to the shorter stream).
type Renderer interface {
	RenderScene(ctx context.Context, animationCode, audioPath, outPath, quality string) (string, error)
}

// Segment pairs one scene's rendered video with its narration audio, in
// script order.
type Segment struct {
	VideoPath string
	AudioPath string
}

// Composer muxes and concatenates the ordered segments into outPath.
type Composer interface {
	Compose(ctx context.Context, segments []Segment, description, outPath string) error
}

// Recorder receives terminal job snapshots for durable history. Optional.
type Recorder interface {
	Record(ctx context.Context, j *job.Job)
}
