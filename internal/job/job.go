// Package job holds the video generation job model and the concurrent
// in-process registry that tracks job lifecycle.
package job

import "time"

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Quality levels accepted for rendering.
const (
	QualityLow    = "low"
	QualityMedium = "medium"
	QualityHigh   = "high"
)

// Scene is one narrated animation segment of the script. The script stage
// produces narration and timing hints; later sub-stages fill in the
// animation code and artifact paths, strictly in the order
// code -> audio -> scene video.
type Scene struct {
	Narration         string `json:"narration"`
	StartTime         string `json:"startTime"`
	EndTime           string `json:"endTime"`
	VisualDescription string `json:"visualDescription"`

	// AnimationCode can be large; it lives in the workspace, not in
	// status responses.
	AnimationCode string `json:"-"`

	AudioPath string `json:"audio_path,omitempty"`
	VideoPath string `json:"video_path,omitempty"`
}

// Script is the structured result of the script generation stage.
type Script struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Scenes      []Scene `json:"scenes"`
}

// Clone returns a deep copy of the script.
func (s *Script) Clone() *Script {
	if s == nil {
		return nil
	}
	out := &Script{
		Title:       s.Title,
		Description: s.Description,
		Scenes:      make([]Scene, len(s.Scenes)),
	}
	copy(out.Scenes, s.Scenes)
	return out
}

// Job is the full lifecycle state of one generation request.
type Job struct {
	ID       string  `json:"job_id"`
	Status   Status  `json:"status"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message"`

	// Immutable input parameters captured at creation.
	Prompt  string `json:"prompt"`
	VoiceID string `json:"voice_id"`
	Quality string `json:"quality"`

	Script    *Script   `json:"script,omitempty"`
	VideoPath string    `json:"video_path,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Clone returns a deep copy of the job, safe to hand to readers while the
// orchestrator keeps mutating the original.
func (j *Job) Clone() *Job {
	out := *j
	out.Script = j.Script.Clone()
	return &out
}

// Terminal reports whether the job reached a final state.
func (j *Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// ValidQuality reports whether q is one of the accepted quality levels.
func ValidQuality(q string) bool {
	switch q {
	case QualityLow, QualityMedium, QualityHigh:
		return true
	}
	return false
}
