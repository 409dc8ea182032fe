package job

import (
	"context"
	"sync"
	"testing"
	"time"

	"eduvid/internal/pkg/errors"
)

func newTestStore() *Store {
	return NewStore(200 * time.Millisecond)
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore()

	created := s.Create(CreateParams{Prompt: "explain fractions", VoiceID: "v1", Quality: QualityMedium})
	if created.ID == "" {
		t.Fatal("expected a job id")
	}
	if created.Status != StatusQueued {
		t.Errorf("expected queued, got %s", created.Status)
	}
	if created.Progress != 0 {
		t.Errorf("expected progress 0, got %f", created.Progress)
	}

	got, err := s.Get(created.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Prompt != "explain fractions" || got.VoiceID != "v1" || got.Quality != QualityMedium {
		t.Errorf("input params not captured: %+v", got)
	}
}

func TestGetNotFound(t *testing.T) {
	s := newTestStore()

	_, err := s.Get("missing")
	if !errors.IsNotFound(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	s := newTestStore()
	created := s.Create(CreateParams{Prompt: "p"})

	snap, _ := s.Get(created.ID)
	snap.Status = StatusFailed
	snap.Script = &Script{Title: "hacked"}

	fresh, _ := s.Get(created.ID)
	if fresh.Status != StatusQueued || fresh.Script != nil {
		t.Error("mutating a snapshot must not affect the stored record")
	}
}

func TestScriptDeepCopied(t *testing.T) {
	s := newTestStore()
	created := s.Create(CreateParams{Prompt: "p"})

	_ = s.Update(created.ID, func(j *Job) {
		j.Script = &Script{Title: "t", Scenes: []Scene{{Narration: "original"}}}
	})

	snap, _ := s.Get(created.ID)
	snap.Script.Scenes[0].Narration = "mutated"

	fresh, _ := s.Get(created.ID)
	if fresh.Script.Scenes[0].Narration != "original" {
		t.Error("scene slice must be deep-copied in snapshots")
	}
}

// Concurrent readers must never observe a record with some fields from
// before and some from after a mutation.
func TestAtomicSnapshotUnderConcurrentUpdate(t *testing.T) {
	s := newTestStore()
	created := s.Create(CreateParams{Prompt: "p"})

	// Seed the progress/message pairing before readers start. The creation
	// message is not part of the invariant the readers check.
	_ = s.Update(created.ID, func(j *Job) {
		j.Progress = 0
		j.Message = messageFor(0)
	})

	stop := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			val := i
			_ = s.Update(created.ID, func(j *Job) {
				j.Progress = float64(val)
				j.Message = messageFor(val)
			})
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				snap, err := s.Get(created.ID)
				if err != nil {
					t.Errorf("Get failed: %v", err)
					return
				}
				if snap.Message != messageFor(int(snap.Progress)) {
					t.Errorf("torn read: progress=%f message=%q", snap.Progress, snap.Message)
					return
				}
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(stop)
	wg.Wait()
}

func messageFor(i int) string {
	return "step " + string(rune('a'+i%26))
}

func TestDeleteUnknown(t *testing.T) {
	s := newTestStore()
	if err := s.Delete("missing"); !errors.IsNotFound(err) {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestDeleteQueuedJob(t *testing.T) {
	s := newTestStore()
	created := s.Create(CreateParams{Prompt: "p"})

	if err := s.Delete(created.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(created.ID); !errors.IsNotFound(err) {
		t.Errorf("expected not-found after delete, got %v", err)
	}
}

func TestDeleteCancelsActiveRun(t *testing.T) {
	s := newTestStore()
	created := s.Create(CreateParams{Prompt: "p"})

	run, err := s.BeginRun(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}

	runStopped := make(chan struct{})
	go func() {
		<-run.Context().Done()
		run.End()
		close(runStopped)
	}()

	start := time.Now()
	if err := s.Delete(created.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	select {
	case <-runStopped:
	case <-time.After(time.Second):
		t.Fatal("run should have been cancelled by delete")
	}

	// Delete acknowledged the run ending, not the grace timeout.
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Errorf("delete should return promptly after run ack, took %s", elapsed)
	}
}

func TestDeleteForcesRemovalAfterGrace(t *testing.T) {
	s := NewStore(50 * time.Millisecond)
	created := s.Create(CreateParams{Prompt: "p"})

	run, err := s.BeginRun(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}

	// Run never acknowledges; delete must force removal after grace.
	if err := s.Delete(created.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(created.ID); !errors.IsNotFound(err) {
		t.Errorf("expected not-found after forced delete, got %v", err)
	}

	// The straggler run's writes must be discarded.
	if err := run.Update(func(j *Job) { j.Status = StatusCompleted }); err != ErrStale {
		t.Errorf("expected ErrStale for post-delete write, got %v", err)
	}
	run.End()
}

func TestBeginRunAfterDelete(t *testing.T) {
	s := newTestStore()
	created := s.Create(CreateParams{Prompt: "p"})
	_ = s.Delete(created.ID)

	if _, err := s.BeginRun(context.Background(), created.ID); !errors.IsNotFound(err) {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestRunUpdateAppliesWhileLive(t *testing.T) {
	s := newTestStore()
	created := s.Create(CreateParams{Prompt: "p"})

	run, _ := s.BeginRun(context.Background(), created.ID)
	defer run.End()

	if err := run.Update(func(j *Job) {
		j.Status = StatusProcessing
		j.Progress = 0.5
	}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	snap, _ := s.Get(created.ID)
	if snap.Status != StatusProcessing || snap.Progress != 0.5 {
		t.Errorf("run update not applied: %+v", snap)
	}
}

func TestList(t *testing.T) {
	s := newTestStore()

	a := s.Create(CreateParams{Prompt: "a"})
	time.Sleep(2 * time.Millisecond)
	b := s.Create(CreateParams{Prompt: "b"})
	time.Sleep(2 * time.Millisecond)
	c := s.Create(CreateParams{Prompt: "c"})

	_ = s.Update(b.ID, func(j *Job) { j.Status = StatusFailed })

	all := s.List("", 0)
	if len(all) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(all))
	}
	if all[0].ID != c.ID || all[2].ID != a.ID {
		t.Error("expected newest-first ordering")
	}

	failed := s.List(StatusFailed, 0)
	if len(failed) != 1 || failed[0].ID != b.ID {
		t.Errorf("status filter wrong: %v", failed)
	}

	limited := s.List("", 2)
	if len(limited) != 2 {
		t.Errorf("limit not applied, got %d", len(limited))
	}
}
