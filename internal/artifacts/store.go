// Package artifacts manages per-job workspace directories and the published
// final video objects.
package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"eduvid/internal/pkg/logger"
	"eduvid/internal/ports"
)

// Store owns the on-disk lifecycle of job workspaces and publishes composed
// videos through the storage provider.
type Store struct {
	root string
	sp   ports.StorageProvider
	log  *logger.Logger
}

func New(root string, sp ports.StorageProvider, log *logger.Logger) *Store {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Store{
		root: root,
		sp:   sp,
		log:  log.WithComponent("artifacts"),
	}
}

// Workspace is the directory scoped to one job's intermediate and final
// files: code/, audio/, video/ per scene plus output/ for composition.
type Workspace struct {
	dir string
}

// CreateWorkspace creates the workspace directory tree for a job.
func (s *Store) CreateWorkspace(jobID string) (*Workspace, error) {
	ws := &Workspace{dir: filepath.Join(s.root, jobID)}
	for _, sub := range []string{"code", "audio", "video", "output"} {
		if err := os.MkdirAll(filepath.Join(ws.dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create workspace for job %s: %w", jobID, err)
		}
	}
	return ws, nil
}

func (w *Workspace) Dir() string { return w.dir }

// ScriptPath is where the generated script JSON is kept.
func (w *Workspace) ScriptPath() string {
	return filepath.Join(w.dir, "code", "script.json")
}

// CodePath is the animation code file for scene i (zero-based).
func (w *Workspace) CodePath(i int) string {
	return filepath.Join(w.dir, "code", fmt.Sprintf("scene_%d.py", i+1))
}

// AudioPath is the narration audio file for scene i.
func (w *Workspace) AudioPath(i int) string {
	return filepath.Join(w.dir, "audio", fmt.Sprintf("scene_%d.mp3", i+1))
}

// ScenePath is the rendered (silent) scene video for scene i.
func (w *Workspace) ScenePath(i int) string {
	return filepath.Join(w.dir, "video", fmt.Sprintf("scene_%d.mp4", i+1))
}

// FinalPath is where the composer writes the finished video.
func (w *Workspace) FinalPath() string {
	return filepath.Join(w.dir, "output", "final_video.mp4")
}

// ObjectKey returns the published object key for a job id. Finalize always
// publishes under this key, so a purge can target it without consulting the
// job record.
func (s *Store) ObjectKey(jobID string) string {
	return fmt.Sprintf("jobs/%s/final_video.mp4", jobID)
}

// Finalize publishes the composed video through the storage provider and
// returns the object key callers use to stream or delete it.
func (s *Store) Finalize(ctx context.Context, jobID string) (string, error) {
	ws := &Workspace{dir: filepath.Join(s.root, jobID)}

	f, err := os.Open(ws.FinalPath())
	if err != nil {
		return "", fmt.Errorf("open composed video for job %s: %w", jobID, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return "", err
	}

	out, err := s.sp.PutObject(ctx, ports.PutObjectInput{
		ObjectKey:   s.ObjectKey(jobID),
		ContentType: "video/mp4",
		Reader:      f,
		Size:        st.Size(),
	})
	if err != nil {
		return "", fmt.Errorf("publish video for job %s: %w", jobID, err)
	}
	return out.ObjectKey, nil
}

// CleanupWorkspace removes a job's intermediate files, keeping the published
// object. Used after a successful finalize when local cleanup is enabled.
func (s *Store) CleanupWorkspace(jobID string) {
	dir := filepath.Join(s.root, jobID)
	if err := os.RemoveAll(dir); err != nil {
		s.log.Warn("workspace cleanup failed", "job_id", jobID, "error", err.Error())
	}
}

// Purge removes the whole workspace and, when a published key is given, the
// published object too. Idempotent: purging a job with no workspace or no
// published object is a no-op, not an error.
func (s *Store) Purge(ctx context.Context, jobID, publishedKey string) error {
	dir := filepath.Join(s.root, jobID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("purge workspace for job %s: %w", jobID, err)
	}

	if publishedKey != "" {
		if err := s.sp.DeleteObject(ctx, publishedKey); err != nil && !os.IsNotExist(err) {
			// Missing object is fine; anything else is logged but does
			// not fail the purge.
			s.log.Warn("published object delete failed",
				"job_id", jobID,
				"object_key", publishedKey,
				"error", err.Error(),
			)
		}
	}
	return nil
}

// WorkspaceExists reports whether a workspace directory is present for the
// job id.
func (s *Store) WorkspaceExists(jobID string) bool {
	st, err := os.Stat(filepath.Join(s.root, jobID))
	return err == nil && st.IsDir()
}
