// Package queue provides the job id queue between the HTTP API and the
// worker pool. Redis backs the queue when configured; an in-process channel
// queue serves single-node deployments and tests.
package queue

import "context"

// Queue hands job ids from producers (the API) to consumers (worker
// runners). Pop blocks until an id is available or the context ends.
type Queue interface {
	Push(ctx context.Context, jobID string) error
	Pop(ctx context.Context) (string, error)
}
