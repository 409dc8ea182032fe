// Package worker runs the pool of pipeline runners that consume job ids
// from the queue.
package worker

import (
	"context"
	"sync"
	"time"

	"eduvid/internal/pkg/logger"
	"eduvid/internal/worker/queue"
)

// Runner processes one job end to end. The pipeline orchestrator is the
// production implementation.
type Runner interface {
	Process(ctx context.Context, jobID string) error
}

type Deps struct {
	Queue  queue.Queue
	Runner Runner

	// Workers is the number of jobs processed concurrently. Defaults to 1.
	Workers int

	Log *logger.Logger
}

// Run starts the worker pool and blocks until ctx is cancelled and every
// in-flight job has returned.
func Run(ctx context.Context, d Deps) error {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	log = log.WithComponent("worker")

	workers := d.Workers
	if workers < 1 {
		workers = 1
	}

	log.Info("worker pool starting", "workers", workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			runLoop(ctx, d.Queue, d.Runner, log.WithFields(map[string]any{"worker": n}))
		}(i)
	}
	wg.Wait()

	log.Info("worker pool stopped")
	return ctx.Err()
}

func runLoop(ctx context.Context, q queue.Queue, r Runner, log *logger.Logger) {
	for {
		select {
		case <-ctx.Done():
			log.Info("worker context canceled, stopping")
			return
		default:
		}

		// Bound each pop so a stalled queue connection cannot wedge the
		// loop past shutdown.
		popCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		jobID, err := q.Pop(popCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				log.Info("worker stopping due to context cancellation")
				return
			}
			if popCtx.Err() == context.DeadlineExceeded {
				continue
			}
			log.Warn("queue pop error, retrying",
				"error", err.Error(),
			)
			time.Sleep(1 * time.Second)
			continue
		}

		if jobID == "" {
			continue
		}

		jobCtx := logger.ContextWithJobID(ctx, jobID)
		jobLog := log.WithJobID(jobID)

		jobLog.Info("processing job")
		startTime := time.Now()

		if err := r.Process(jobCtx, jobID); err != nil {
			jobLog.Error("job failed",
				"error", err.Error(),
				"duration_ms", time.Since(startTime).Milliseconds(),
			)
		} else {
			jobLog.Info("job completed",
				"duration_ms", time.Since(startTime).Milliseconds(),
			)
		}
	}
}
