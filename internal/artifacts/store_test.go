package artifacts

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"eduvid/internal/adapters/storage/localfs"
	"eduvid/internal/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "json", Output: io.Discard})
}

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	sp := localfs.New(filepath.Join(root, "published"))
	return New(filepath.Join(root, "jobs"), sp, testLogger()), root
}

func TestCreateWorkspaceLayout(t *testing.T) {
	s, _ := newTestStore(t)

	ws, err := s.CreateWorkspace("job-1")
	if err != nil {
		t.Fatalf("CreateWorkspace failed: %v", err)
	}

	for _, sub := range []string{"code", "audio", "video", "output"} {
		st, err := os.Stat(filepath.Join(ws.Dir(), sub))
		if err != nil || !st.IsDir() {
			t.Errorf("expected subdir %s, err=%v", sub, err)
		}
	}

	if filepath.Base(ws.CodePath(0)) != "scene_1.py" {
		t.Errorf("unexpected code path: %s", ws.CodePath(0))
	}
	if filepath.Base(ws.AudioPath(2)) != "scene_3.mp3" {
		t.Errorf("unexpected audio path: %s", ws.AudioPath(2))
	}
	if filepath.Base(ws.ScenePath(1)) != "scene_2.mp4" {
		t.Errorf("unexpected scene path: %s", ws.ScenePath(1))
	}
}

func TestFinalizePublishes(t *testing.T) {
	s, _ := newTestStore(t)
	ws, _ := s.CreateWorkspace("job-2")

	if err := os.WriteFile(ws.FinalPath(), []byte("final video bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	key, err := s.Finalize(context.Background(), "job-2")
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if key != "jobs/job-2/final_video.mp4" {
		t.Errorf("unexpected object key: %s", key)
	}
}

func TestFinalizeWithoutComposedVideo(t *testing.T) {
	s, _ := newTestStore(t)
	_, _ = s.CreateWorkspace("job-3")

	if _, err := s.Finalize(context.Background(), "job-3"); err == nil {
		t.Error("expected error when composed video is missing")
	}
}

func TestPurgeRemovesWorkspaceAndObject(t *testing.T) {
	s, _ := newTestStore(t)
	ws, _ := s.CreateWorkspace("job-4")
	_ = os.WriteFile(ws.FinalPath(), []byte("v"), 0o644)
	key, err := s.Finalize(context.Background(), "job-4")
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Purge(context.Background(), "job-4", key); err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if s.WorkspaceExists("job-4") {
		t.Error("workspace should be gone after purge")
	}
}

func TestPurgeIdempotent(t *testing.T) {
	s, _ := newTestStore(t)

	// No workspace, no published object: still a no-op success.
	if err := s.Purge(context.Background(), "never-existed", ""); err != nil {
		t.Errorf("purge of missing workspace should succeed, got %v", err)
	}
	if err := s.Purge(context.Background(), "never-existed", "jobs/never-existed/final_video.mp4"); err != nil {
		t.Errorf("repeat purge should succeed, got %v", err)
	}
}
