// Package pipeline drives one job through script generation, per-scene
// fan-out and final composition, keeping the job record's status, progress
// and message consistent at every phase boundary.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"eduvid/internal/artifacts"
	"eduvid/internal/job"
	"eduvid/internal/pkg/errors"
	"eduvid/internal/pkg/logger"
)

// Progress weighting across phases: script generation is a fixed slice,
// scene fan-out grows with completed scenes, composition takes the rest and
// 1.0 is reached only on success.
const (
	progressScriptStart  = 0.05
	progressScriptDone   = 0.10
	progressSceneShare   = 0.70
	progressComposeStart = 0.80
)

// Timeouts bound each collaborator call. Zero means no timeout.
type Timeouts struct {
	Script    time.Duration
	SceneCode time.Duration
	Narration time.Duration
	Render    time.Duration
	Compose   time.Duration
}

type Deps struct {
	Store     *job.Store
	Artifacts *artifacts.Store

	Scripts  ScriptGenerator
	Code     SceneCodeGenerator
	Narrator Narrator
	Renderer Renderer
	Composer Composer

	// Journal is optional; terminal snapshots are recorded when set.
	Journal Recorder

	// SceneLimit bounds concurrent per-scene sub-stage work within one job.
	SceneLimit int
	Timeouts   Timeouts

	// CleanupLocal removes the workspace after a successful publish.
	CleanupLocal bool

	Log *logger.Logger
}

// Orchestrator is the state machine driver for a single job run.
type Orchestrator struct {
	store      *job.Store
	artifacts  *artifacts.Store
	scripts    ScriptGenerator
	code       SceneCodeGenerator
	narrator   Narrator
	renderer   Renderer
	composer   Composer
	journal    Recorder
	sceneLimit int
	timeouts   Timeouts
	cleanup    bool
	log        *logger.Logger
}

func New(d Deps) *Orchestrator {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	limit := d.SceneLimit
	if limit < 1 {
		limit = 1
	}
	return &Orchestrator{
		store:      d.Store,
		artifacts:  d.Artifacts,
		scripts:    d.Scripts,
		code:       d.Code,
		narrator:   d.Narrator,
		renderer:   d.Renderer,
		composer:   d.Composer,
		journal:    d.Journal,
		sceneLimit: limit,
		timeouts:   d.Timeouts,
		cleanup:    d.CleanupLocal,
		log:        log.WithComponent("pipeline"),
	}
}

// Process runs the full pipeline for one queued job. It returns the failure
// cause (already written into the job record) or nil on completion. A
// not-found error means the job was deleted while still queued.
func (o *Orchestrator) Process(ctx context.Context, jobID string) error {
	run, err := o.store.BeginRun(ctx, jobID)
	if err != nil {
		return err
	}
	defer run.End()

	ctx = run.Context()
	log := o.log.FromContext(ctx).WithJobID(jobID)

	snap := run.Snapshot()
	if snap == nil {
		return errors.Cancelled("pipeline.start")
	}

	ws, err := o.artifacts.CreateWorkspace(jobID)
	if err != nil {
		return o.fail(ctx, run, errors.Wrap(err, "pipeline.workspace", "failed to create workspace"))
	}

	if uerr := run.Update(func(j *job.Job) {
		j.Status = job.StatusProcessing
		j.Progress = progressScriptStart
		j.Message = "Generating script..."
	}); uerr != nil {
		return errors.Cancelled("pipeline.start")
	}

	log.Info("pipeline started")

	// Phase 1: script generation.
	script, err := o.generateScript(ctx, snap.Prompt, ws)
	if err != nil {
		return o.fail(ctx, run, err)
	}

	total := len(script.Scenes)
	if uerr := run.Update(func(j *job.Job) {
		j.Script = script.Clone()
		j.Progress = progressScriptDone
		j.Message = fmt.Sprintf("Generating animations/audio for scene 1 of %d...", total)
	}); uerr != nil {
		return errors.Cancelled("pipeline.script")
	}
	log.Info("script generated", "title", script.Title, "scenes", total)

	// Phase 2: per-scene fan-out.
	segments, err := o.runScenes(ctx, run, ws, script, snap)
	if err != nil {
		return o.fail(ctx, run, err)
	}

	// Phase 3: composition, in original script order.
	if cerr := ctx.Err(); cerr != nil {
		return o.fail(ctx, run, errors.Cancelled("pipeline.compose"))
	}
	if uerr := run.Update(func(j *job.Job) {
		j.Progress = progressComposeStart
		j.Message = "Composing final video..."
	}); uerr != nil {
		return errors.Cancelled("pipeline.compose")
	}

	err = o.stage(ctx, o.timeouts.Compose, "compose", func(c context.Context) error {
		return o.composer.Compose(c, segments, script.Description, ws.FinalPath())
	})
	if err != nil {
		return o.fail(ctx, run, keepKnownCode(err, errors.Composition))
	}

	videoKey, err := o.artifacts.Finalize(ctx, jobID)
	if err != nil {
		return o.fail(ctx, run, errors.WrapWithCode(err, errors.CodeComposition, "pipeline.finalize", "failed to publish video"))
	}

	if uerr := run.Update(func(j *job.Job) {
		j.Status = job.StatusCompleted
		j.Progress = 1.0
		j.Message = "Video generation completed"
		j.VideoPath = videoKey
	}); uerr != nil {
		// Deleted during composition: the record is gone, so the freshly
		// published object must go too.
		_ = o.artifacts.Purge(context.Background(), jobID, videoKey)
		return errors.Cancelled("pipeline.finalize")
	}

	o.record(ctx, run)
	if o.cleanup {
		o.artifacts.CleanupWorkspace(jobID)
	}

	log.Info("pipeline completed", "video_key", videoKey, "scenes", total)
	return nil
}

func (o *Orchestrator) generateScript(ctx context.Context, prompt string, ws *artifacts.Workspace) (*job.Script, error) {
	var script *job.Script
	err := o.stage(ctx, o.timeouts.Script, "script", func(c context.Context) error {
		var err error
		script, err = o.scripts.GenerateScript(c, prompt)
		return err
	})
	if err != nil {
		return nil, keepKnownCode(err, errors.ScriptGeneration)
	}
	if script == nil || len(script.Scenes) == 0 {
		return nil, errors.New(errors.CodeScriptGeneration, "script has no scenes")
	}

	// Keep the raw script alongside the other artifacts.
	if data, err := json.MarshalIndent(script, "", "  "); err == nil {
		_ = os.WriteFile(ws.ScriptPath(), data, 0o644)
	}
	return script, nil
}

// runScenes fans out the per-scene sub-stages, at most sceneLimit scenes in
// flight. Each scene runs code -> audio -> render strictly in order; outputs
// land in segments by scene index so composition preserves script order no
// matter which scene finishes first.
func (o *Orchestrator) runScenes(ctx context.Context, run *job.Run, ws *artifacts.Workspace, script *job.Script, snap *job.Job) ([]Segment, error) {
	total := len(script.Scenes)
	segments := make([]Segment, total)
	var completed int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.sceneLimit)

	for i := range script.Scenes {
		i := i
		scene := script.Scenes[i]
		g.Go(func() error {
			if gctx.Err() != nil {
				return errors.Cancelled("pipeline.scene")
			}

			_ = run.Update(func(j *job.Job) {
				j.Message = fmt.Sprintf("Generating animations/audio for scene %d of %d...", i+1, total)
			})

			seg, err := o.runScene(gctx, run, ws, scene, i, snap)
			if err != nil {
				switch errors.GetCode(err) {
				case errors.CodeCancelled, errors.CodeTimeout, errors.CodeSynthesis:
					return err
				}
				return errors.SceneRender(err, i)
			}
			segments[i] = seg

			done := atomic.AddInt32(&completed, 1)
			p := progressScriptDone + progressSceneShare*float64(done)/float64(total)
			_ = run.Update(func(j *job.Job) {
				// Completions can apply out of order; progress only rises.
				if p > j.Progress {
					j.Progress = p
				}
			})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return segments, nil
}

func (o *Orchestrator) runScene(ctx context.Context, run *job.Run, ws *artifacts.Workspace, scene job.Scene, i int, snap *job.Job) (Segment, error) {
	// Animation code first.
	var code string
	err := o.stage(ctx, o.timeouts.SceneCode, "scene_code", func(c context.Context) error {
		var err error
		code, err = o.code.GenerateSceneCode(c, scene, i)
		return err
	})
	if err != nil {
		return Segment{}, err
	}
	if werr := os.WriteFile(ws.CodePath(i), []byte(code), 0o644); werr != nil {
		return Segment{}, werr
	}
	_ = run.Update(func(j *job.Job) {
		j.Script.Scenes[i].AnimationCode = code
	})

	// Narration next; rendering depends on the audio existing.
	var audioPath string
	err = o.stage(ctx, o.timeouts.Narration, "narration", func(c context.Context) error {
		var err error
		audioPath, err = o.narrator.Synthesize(c, scene.Narration, snap.VoiceID, ws.AudioPath(i))
		return err
	})
	if err != nil {
		switch errors.GetCode(err) {
		case errors.CodeCancelled, errors.CodeTimeout:
			return Segment{}, err
		}
		return Segment{}, errors.WrapWithCode(err, errors.CodeSynthesis, "pipeline.narration",
			fmt.Sprintf("narration synthesis failed for scene %d", i)).
			WithField("scene_index", i)
	}
	_ = run.Update(func(j *job.Job) {
		j.Script.Scenes[i].AudioPath = audioPath
	})

	// Render last.
	var videoPath string
	err = o.stage(ctx, o.timeouts.Render, "render", func(c context.Context) error {
		var err error
		videoPath, err = o.renderer.RenderScene(c, code, audioPath, ws.ScenePath(i), snap.Quality)
		return err
	})
	if err != nil {
		return Segment{}, err
	}
	_ = run.Update(func(j *job.Job) {
		j.Script.Scenes[i].VideoPath = videoPath
	})

	return Segment{VideoPath: videoPath, AudioPath: audioPath}, nil
}

// stage runs one collaborator call with a cancellation check up front and an
// optional timeout. Cancellation of the run context wins over any other
// failure classification.
func (o *Orchestrator) stage(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if ctx.Err() != nil {
		return errors.Cancelled("pipeline." + name)
	}

	cctx := ctx
	cancel := func() {}
	if timeout > 0 {
		cctx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	err := fn(cctx)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return errors.Cancelled("pipeline." + name)
	}
	if cctx.Err() == context.DeadlineExceeded {
		return errors.Timeout(name)
	}
	return err
}

// fail writes the terminal failed state once and returns the cause. A stale
// write means the job was deleted mid-run; the record stays gone.
func (o *Orchestrator) fail(ctx context.Context, run *job.Run, cause error) error {
	log := o.log.FromContext(ctx).WithJobID(run.JobID())

	msg := cause.Error()
	if len(msg) > 2000 {
		msg = msg[:2000]
	}

	var e *errors.Error
	if errors.As(cause, &e) {
		log.Error("job failed",
			"code", string(e.Code),
			"op", e.Op,
			"message", e.Message,
		)
	} else {
		log.Error("job failed", "error", msg)
	}

	uerr := run.Update(func(j *job.Job) {
		j.Status = job.StatusFailed
		j.Error = msg
		j.Message = "Video generation failed"
	})
	if uerr == nil {
		o.record(ctx, run)
	}
	return cause
}

func (o *Orchestrator) record(ctx context.Context, run *job.Run) {
	if o.journal == nil {
		return
	}
	if snap := run.Snapshot(); snap != nil {
		o.journal.Record(ctx, snap)
	}
}

// keepKnownCode preserves timeout/cancellation classification and applies
// wrap to everything else.
func keepKnownCode(err error, wrap func(error) *errors.Error) error {
	switch errors.GetCode(err) {
	case errors.CodeTimeout, errors.CodeCancelled:
		return err
	}
	return wrap(err)
}
