package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"eduvid/internal/httpkit"
	"eduvid/internal/job"
	"eduvid/internal/pkg/errors"
)

type GenerateVideoRequest struct {
	Prompt  string `json:"prompt"`
	VoiceID string `json:"voice_id,omitempty"`
	Quality string `json:"quality,omitempty"`
}

const maxPromptLen = 2000

// PostGenerateVideo accepts a prompt and queues a new generation job.
func (h *Handler) PostGenerateVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := h.log.FromContext(ctx)

	var req GenerateVideoRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		httpkit.WriteError(w, errors.Validation("invalid json body"))
		return
	}

	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		httpkit.WriteError(w, errors.ValidationField("prompt", "prompt is required"))
		return
	}
	if len(req.Prompt) > maxPromptLen {
		httpkit.WriteError(w, errors.ValidationField("prompt",
			fmt.Sprintf("prompt exceeds %d characters", maxPromptLen)))
		return
	}

	quality := strings.TrimSpace(req.Quality)
	if quality == "" {
		quality = job.QualityMedium
	}
	if !job.ValidQuality(quality) {
		httpkit.WriteError(w, errors.ValidationField("quality",
			"quality must be one of low, medium, high"))
		return
	}

	j := h.store.Create(job.CreateParams{
		Prompt:  req.Prompt,
		VoiceID: strings.TrimSpace(req.VoiceID),
		Quality: quality,
	})

	if err := h.queue.Push(ctx, j.ID); err != nil {
		// Roll the record back so a job nothing will ever process does
		// not linger as "queued" forever.
		_ = h.store.Delete(j.ID)
		log.Error("queue push failed", "error", err.Error())
		httpkit.WriteError(w, errors.New(errors.CodeUnavailable, "job queue unavailable"))
		return
	}

	log.Info("job accepted", "job_id", j.ID, "quality", quality)

	httpkit.WriteJSON(w, 201, map[string]any{
		"job_id":  j.ID,
		"status":  j.Status,
		"message": j.Message,
	})
}

// GetJob returns the full snapshot of one job.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")

	j, err := h.store.Get(jobID)
	if err != nil {
		httpkit.WriteErr(w, 404, "JOB_NOT_FOUND", "job not found", map[string]any{"job_id": jobID})
		return
	}
	httpkit.WriteJSON(w, 200, j)
}

// DeleteJob cancels a running job if needed and removes its record and
// artifacts.
func (h *Handler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := h.log.FromContext(ctx)
	jobID := chi.URLParam(r, "jobId")

	j, err := h.store.Get(jobID)
	if err != nil {
		httpkit.WriteErr(w, 404, "JOB_NOT_FOUND", "job not found", map[string]any{"job_id": jobID})
		return
	}

	if err := h.store.Delete(jobID); err != nil {
		httpkit.WriteErr(w, 404, "JOB_NOT_FOUND", "job not found", map[string]any{"job_id": jobID})
		return
	}

	// The published key is deterministic per job id, so the purge covers a
	// video that finished between the snapshot and the delete.
	if err := h.artifacts.Purge(ctx, jobID, h.artifacts.ObjectKey(jobID)); err != nil {
		// The record is already gone; report success but log the leak.
		log.Warn("artifact purge incomplete", "job_id", jobID, "error", err.Error())
	}

	log.Info("job deleted", "job_id", jobID, "was_status", string(j.Status))

	httpkit.WriteJSON(w, 200, map[string]any{
		"job_id":  jobID,
		"deleted": true,
	})
}

// ListJobs returns recent job snapshots, optionally filtered by status.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	if status != "" {
		switch job.Status(status) {
		case job.StatusQueued, job.StatusProcessing, job.StatusCompleted, job.StatusFailed:
		default:
			httpkit.WriteErr(w, 400, "VALIDATION_ERROR",
				"status must be one of queued, processing, completed, failed",
				map[string]any{"field": "status"})
			return
		}
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}

	jobs := h.store.List(job.Status(status), limit)
	httpkit.WriteJSON(w, 200, map[string]any{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// StreamVideo streams the final video of a completed job.
func (h *Handler) StreamVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "jobId")

	j, err := h.store.Get(jobID)
	if err != nil {
		httpkit.WriteErr(w, 404, "JOB_NOT_FOUND", "job not found", map[string]any{"job_id": jobID})
		return
	}
	if j.Status != job.StatusCompleted || j.VideoPath == "" {
		httpkit.WriteError(w, errors.New(errors.CodeConflict, "video not ready").
			WithFields(map[string]any{"job_id": jobID, "status": j.Status}))
		return
	}

	rc, contentType, size, err := h.sp.GetObject(ctx, j.VideoPath)
	if err != nil {
		httpkit.WriteError(w, errors.Wrap(err, "api.stream", "storage read failed"))
		return
	}
	defer rc.Close()

	if contentType == "" {
		contentType = "video/mp4"
	}
	w.Header().Set("Content-Type", contentType)
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("inline; filename=%q", "final_video.mp4"))

	if _, err := io.Copy(w, rc); err != nil {
		h.log.FromContext(ctx).Warn("video stream interrupted",
			"job_id", jobID,
			"error", err.Error(),
		)
	}
}
