package main

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"eduvid/internal/artifacts"
	"eduvid/internal/engine/elevenlabs"
	"eduvid/internal/engine/ffmpeg"
	"eduvid/internal/engine/gemini"
	"eduvid/internal/engine/manim"
	"eduvid/internal/engine/mock"
	"eduvid/internal/httpapi"
	"eduvid/internal/job"
	"eduvid/internal/journal"
	"eduvid/internal/pipeline"
	"eduvid/internal/pkg/env"
	"eduvid/internal/pkg/logger"
	"eduvid/internal/pkg/shutdown"
	"eduvid/internal/storage"
	"eduvid/internal/worker"
	"eduvid/internal/worker/queue"
)

func main() {
	_ = godotenv.Load()

	log := logger.New(logger.Config{
		Level:       env.Get("LOG_LEVEL", "info"),
		Format:      env.Get("LOG_FORMAT", "json"),
		ServiceName: "eduvid-api",
		AddSource:   env.Bool("LOG_SOURCE", false),
	})

	log.Info("starting eduvid API",
		"version", "0.1.0",
	)

	httpPort := env.Get("HTTP_PORT", "8000")
	ctx := context.Background()

	shutdownMgr := shutdown.NewManager(log, 30*time.Second)

	// Job registry. The grace period bounds how long a delete waits for an
	// active run to acknowledge cancellation.
	store := job.NewStore(env.Duration("DELETE_GRACE", 5*time.Second))

	// Queue: Redis when configured, in-process otherwise.
	var (
		q   queue.Queue
		rdb *redis.Client
	)
	if redisAddr := env.Get("REDIS_ADDR", ""); redisAddr != "" {
		log.Info("connecting to Redis", "addr", redisAddr)
		rdb = redis.NewClient(&redis.Options{Addr: redisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.LogFatal("failed to ping Redis", err)
		}
		shutdownMgr.Register("redis", func(ctx context.Context) error {
			return rdb.Close()
		})
		q = queue.NewRedisQueue(rdb, env.Get("REDIS_QUEUE", "eduvid:jobs"))
		log.Info("Redis connected")
	} else {
		q = queue.NewMemoryQueue(env.Int("QUEUE_CAPACITY", 256))
		log.Info("using in-process queue")
	}

	// Journal: optional terminal-state history in Postgres.
	var (
		pool *pgxpool.Pool
		jrnl *journal.Journal
	)
	if dbURL := env.Get("DATABASE_URL", ""); dbURL != "" {
		log.Info("connecting to PostgreSQL")
		var err error
		pool, err = pgxpool.New(ctx, dbURL)
		if err != nil {
			log.LogFatal("failed to connect to PostgreSQL", err)
		}
		if err := pool.Ping(ctx); err != nil {
			log.LogFatal("failed to ping PostgreSQL", err)
		}
		shutdownMgr.Register("postgres", func(ctx context.Context) error {
			pool.Close()
			return nil
		})
		jrnl = journal.New(pool, log)
		if err := jrnl.EnsureSchema(ctx); err != nil {
			log.LogFatal("failed to ensure journal schema", err)
		}
		log.Info("PostgreSQL connected, journal enabled")
	} else {
		log.Info("DATABASE_URL not set, journal disabled")
	}

	log.Info("initializing storage provider")
	sp, err := storage.NewProvider()
	if err != nil {
		log.LogFatal("failed to initialize storage provider", err)
	}
	log.Info("storage provider initialized", "provider", sp.Provider())

	arts := artifacts.New(env.Get("WORKSPACE_ROOT", "./workspace"), sp, log)

	scripts, code, narrator, renderer, composer := buildEngines(log)

	var recorder pipeline.Recorder
	if jrnl != nil {
		recorder = jrnl
	}

	orch := pipeline.New(pipeline.Deps{
		Store:     store,
		Artifacts: arts,
		Scripts:   scripts,
		Code:      code,
		Narrator:  narrator,
		Renderer:  renderer,
		Composer:  composer,
		Journal:   recorder,

		SceneLimit: env.Int("SCENE_CONCURRENCY", 3),
		Timeouts: pipeline.Timeouts{
			Script:    env.Duration("SCRIPT_TIMEOUT", 2*time.Minute),
			SceneCode: env.Duration("SCENE_CODE_TIMEOUT", 2*time.Minute),
			Narration: env.Duration("NARRATION_TIMEOUT", 2*time.Minute),
			Render:    env.Duration("RENDER_TIMEOUT", 10*time.Minute),
			Compose:   env.Duration("COMPOSE_TIMEOUT", 10*time.Minute),
		},
		CleanupLocal: env.Bool("CLEANUP_LOCAL", false),
		Log:          log,
	})

	// Worker pool.
	workerCtx, stopWorkers := context.WithCancel(ctx)
	workersDone := make(chan struct{})
	go func() {
		defer close(workersDone)
		worker.Run(workerCtx, worker.Deps{
			Queue:   q,
			Runner:  orch,
			Workers: env.Int("WORKER_COUNT", 2),
			Log:     log,
		})
	}()
	shutdownMgr.Register("worker-pool", func(ctx context.Context) error {
		stopWorkers()
		select {
		case <-workersDone:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	router := httpapi.NewRouter(httpapi.Deps{
		Store:     store,
		Queue:     q,
		Artifacts: arts,
		SP:        sp,
		Pool:      pool,
		RDB:       rdb,
		Log:       log,
	})

	server := &http.Server{
		Addr:         "0.0.0.0:" + httpPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	shutdownMgr.Register("http-server", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return server.Shutdown(ctx)
	})

	go func() {
		log.Info("HTTP server listening",
			"addr", server.Addr,
			"port", httpPort,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogFatal("HTTP server failed", err)
		}
	}()

	shutdownMgr.Wait()
}

// buildEngines wires the pipeline collaborators. Missing API keys select
// the mock engine for that concern, loudly; a failing live call is a job
// failure, never a silent mock substitution.
func buildEngines(log *logger.Logger) (pipeline.ScriptGenerator, pipeline.SceneCodeGenerator, pipeline.Narrator, pipeline.Renderer, pipeline.Composer) {
	m := mock.New()

	if env.Bool("MOCK_ENGINES", false) {
		log.Warn("MOCK_ENGINES=true, all engines mocked; output will be stub media")
		return m, m, m, m, m
	}

	var (
		scripts  pipeline.ScriptGenerator    = m
		code     pipeline.SceneCodeGenerator = m
		narrator pipeline.Narrator           = m
	)

	if key := env.Get("GEMINI_API_KEY", ""); key != "" {
		g := gemini.NewClient(key, gemini.WithModel(env.Get("GEMINI_MODEL", "gemini-2.0-flash")))
		scripts, code = g, g
	} else {
		log.Warn("GEMINI_API_KEY not set, script and code generation mocked")
	}

	if key := env.Get("ELEVENLABS_API_KEY", ""); key != "" {
		narrator = elevenlabs.NewClient(key)
	} else {
		log.Warn("ELEVENLABS_API_KEY not set, narration mocked")
	}

	renderer := manim.NewRenderer(env.Get("PYTHON_BIN", "python3"), log)
	composer := ffmpeg.NewComposer(env.Get("FFMPEG_BIN", "ffmpeg"), log)

	return scripts, code, narrator, renderer, composer
}
