package handlers

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"eduvid/internal/artifacts"
	"eduvid/internal/job"
	"eduvid/internal/pkg/logger"
	"eduvid/internal/ports"
	"eduvid/internal/worker/queue"
)

type Deps struct {
	Store     *job.Store
	Queue     queue.Queue
	Artifacts *artifacts.Store
	SP        ports.StorageProvider

	// Pool and RDB are optional; they only feed the deep health check.
	Pool *pgxpool.Pool
	RDB  *redis.Client

	Log *logger.Logger
}

type Handler struct {
	store     *job.Store
	queue     queue.Queue
	artifacts *artifacts.Store
	sp        ports.StorageProvider
	pool      *pgxpool.Pool
	rdb       *redis.Client
	log       *logger.Logger
}

func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	return &Handler{
		store:     d.Store,
		queue:     d.Queue,
		artifacts: d.Artifacts,
		sp:        d.SP,
		pool:      d.Pool,
		rdb:       d.RDB,
		log:       log.WithComponent("httpapi"),
	}
}
