package job

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"eduvid/internal/pkg/errors"
)

// ErrStale is returned by Run.Update when the run's job was deleted (or its
// generation superseded) and the write was discarded.
var ErrStale = errors.New(errors.CodeCancelled, "job record superseded, write discarded")

// entry is one registered job plus the bookkeeping needed to serialize
// mutations and fence a deleted record against late writes.
type entry struct {
	mu  sync.Mutex
	job *Job

	// gen is bumped on delete; a run only writes while its captured
	// generation still matches.
	gen uint64

	// cancel/done belong to the active pipeline run, nil/closed otherwise.
	cancel context.CancelFunc
	done   chan struct{}
}

// Store is the authoritative in-process registry of jobs. Reads return deep
// snapshots and never block on pipeline execution beyond the per-record
// critical section; mutations are serialized per job id only.
type Store struct {
	mu    sync.RWMutex
	jobs  map[string]*entry
	grace time.Duration
}

// CreateParams are the immutable inputs captured when a job is accepted.
type CreateParams struct {
	Prompt  string
	VoiceID string
	Quality string
}

// NewStore creates a Store. grace bounds how long Delete waits for an active
// run to acknowledge cancellation before forcing removal.
func NewStore(grace time.Duration) *Store {
	if grace <= 0 {
		grace = 5 * time.Second
	}
	return &Store{
		jobs:  make(map[string]*entry),
		grace: grace,
	}
}

// Create registers a new queued job and returns its snapshot.
func (s *Store) Create(p CreateParams) *Job {
	j := &Job{
		ID:        uuid.NewString(),
		Status:    StatusQueued,
		Progress:  0,
		Message:   "Job queued",
		Prompt:    p.Prompt,
		VoiceID:   p.VoiceID,
		Quality:   p.Quality,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.jobs[j.ID] = &entry{job: j, gen: 1}
	s.mu.Unlock()

	return j.Clone()
}

// Get returns a consistent snapshot of the job, or a not-found error.
func (s *Store) Get(id string) (*Job, error) {
	e := s.lookup(id)
	if e == nil {
		return nil, errors.NotFound("job", id)
	}

	e.mu.Lock()
	snap := e.job.Clone()
	e.mu.Unlock()
	return snap, nil
}

// Update applies an atomic mutation to one job. Mutations on the same id
// never interleave; other ids proceed independently.
func (s *Store) Update(id string, mutate func(*Job)) error {
	e := s.lookup(id)
	if e == nil {
		return errors.NotFound("job", id)
	}

	e.mu.Lock()
	mutate(e.job)
	e.mu.Unlock()
	return nil
}

// List returns snapshots of all jobs, newest first, optionally filtered by
// status. limit <= 0 means no limit.
func (s *Store) List(status Status, limit int) []*Job {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.jobs))
	for _, e := range s.jobs {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]*Job, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if status == "" || e.job.Status == status {
			out = append(out, e.job.Clone())
		}
		e.mu.Unlock()
	}

	sort.Slice(out, func(i, k int) bool {
		return out[i].CreatedAt.After(out[k].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Delete removes a job. If a pipeline run is active for the id, it is
// signalled to cancel first and given a bounded grace period to stop; after
// that the record is removed regardless, and the run's subsequent writes
// become no-ops through the generation check.
func (s *Store) Delete(id string) error {
	e := s.lookup(id)
	if e == nil {
		return errors.NotFound("job", id)
	}

	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.gen++ // fence in-flight writes
	e.mu.Unlock()

	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-time.After(s.grace):
		}
	}

	s.mu.Lock()
	delete(s.jobs, id)
	s.mu.Unlock()
	return nil
}

func (s *Store) lookup(id string) *entry {
	s.mu.RLock()
	e := s.jobs[id]
	s.mu.RUnlock()
	return e
}

// Run is a handle held by the orchestrator while it processes one job. Its
// context is cancelled when the job is deleted, and its writes are discarded
// once the record's generation moves on.
type Run struct {
	store *Store
	id    string
	gen   uint64
	ctx   context.Context
	end   func()
}

// BeginRun claims the job for a pipeline run. It fails with not-found when
// the job was deleted while queued.
func (s *Store) BeginRun(parent context.Context, id string) (*Run, error) {
	e := s.lookup(id)
	if e == nil {
		return nil, errors.NotFound("job", id)
	}

	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	e.mu.Lock()
	gen := e.gen
	e.cancel = cancel
	e.done = done
	e.mu.Unlock()

	var once sync.Once
	end := func() {
		once.Do(func() {
			cancel()
			close(done)
			if cur := s.lookup(id); cur != nil {
				cur.mu.Lock()
				if cur.gen == gen {
					cur.cancel = nil
					cur.done = nil
				}
				cur.mu.Unlock()
			}
		})
	}

	return &Run{store: s, id: id, gen: gen, ctx: ctx, end: end}, nil
}

// Context is cancelled when the job is deleted mid-run.
func (r *Run) Context() context.Context {
	return r.ctx
}

// JobID returns the id of the claimed job.
func (r *Run) JobID() string {
	return r.id
}

// Update applies a mutation only if the record still holds this run's
// generation; otherwise the write is discarded and ErrStale returned.
func (r *Run) Update(mutate func(*Job)) error {
	e := r.store.lookup(r.id)
	if e == nil {
		return ErrStale
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != r.gen {
		return ErrStale
	}
	mutate(e.job)
	return nil
}

// Snapshot returns the current state of the claimed job, or nil after
// deletion.
func (r *Run) Snapshot() *Job {
	j, err := r.store.Get(r.id)
	if err != nil {
		return nil
	}
	return j
}

// End releases the run. A Delete waiting on cancellation acknowledgment is
// unblocked. Safe to call more than once.
func (r *Run) End() {
	r.end()
}
