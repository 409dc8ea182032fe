// Package httpapi wires the chi router for the video generation API.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"eduvid/internal/artifacts"
	"eduvid/internal/httpapi/handlers"
	"eduvid/internal/httpkit"
	"eduvid/internal/job"
	"eduvid/internal/pkg/env"
	"eduvid/internal/pkg/logger"
	"eduvid/internal/pkg/middleware"
	"eduvid/internal/ports"
	"eduvid/internal/worker/queue"
)

type Deps struct {
	Store     *job.Store
	Queue     queue.Queue
	Artifacts *artifacts.Store
	SP        ports.StorageProvider

	// Pool and RDB only feed the deep health check; nil disables those
	// checks.
	Pool *pgxpool.Pool
	RDB  *redis.Client

	Log *logger.Logger
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(log))
	r.Use(middleware.Recovery(log))

	allowedOrigins := env.CSV("CORS_ALLOWED_ORIGINS", []string{
		"http://localhost:5173",
		"http://localhost:8081",
	})
	r.Use(httpkit.CORS(httpkit.CORSOptions{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAgeSeconds:    600,
	}))

	h := handlers.New(handlers.Deps{
		Store:     d.Store,
		Queue:     d.Queue,
		Artifacts: d.Artifacts,
		SP:        d.SP,
		Pool:      d.Pool,
		RDB:       d.RDB,
		Log:       log,
	})

	r.Get("/health", h.Health)

	r.Post("/generate-video", h.PostGenerateVideo)
	r.Get("/job/{jobId}", h.GetJob)
	r.Delete("/job/{jobId}", h.DeleteJob)

	r.Get("/jobs", h.ListJobs)
	r.Get("/jobs/{jobId}/video", h.StreamVideo)

	return r
}
