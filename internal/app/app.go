package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/lifeos/memoryd/internal/auth"
	"github.com/lifeos/memoryd/internal/automation"
	"github.com/lifeos/memoryd/internal/clients/openai"
	"github.com/lifeos/memoryd/internal/clients/pinecone"
	redisqueue "github.com/lifeos/memoryd/internal/clients/redis"
	"github.com/lifeos/memoryd/internal/clients/s3"
	"github.com/lifeos/memoryd/internal/clients/twelvelabs"
	"github.com/lifeos/memoryd/internal/db"
	httpserver "github.com/lifeos/memoryd/internal/http"
	httpH "github.com/lifeos/memoryd/internal/http/handlers"
	httpMW "github.com/lifeos/memoryd/internal/http/middleware"
	"github.com/lifeos/memoryd/internal/pipeline/queue"
	"github.com/lifeos/memoryd/internal/pipeline/worker"
	"github.com/lifeos/memoryd/internal/pkg/logger"
	"github.com/lifeos/memoryd/internal/query"
	"github.com/lifeos/memoryd/internal/repos"
)

// App wires every external collaborator and exposes the process's two entry
// points: Run (HTTP server) and StartWorkerPool (background processing
// pool).
type App struct {
	Log    *logger.Logger
	DB     *gorm.DB
	Router *gin.Engine
	Cfg    Config

	workQueue queue.Queue
	pool      *worker.Pool

	cancel context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("loading configuration...")
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load config: %w", err)
	}

	pg, err := db.NewPostgresService(log, cfg.RelationalURL)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	userRepo := repos.NewUserRepo(theDB, log)
	videoRepo := repos.NewVideoRepo(theDB, log)
	highlightRepo := repos.NewHighlightRepo(theDB, log)

	authService, err := auth.NewService(log, userRepo, cfg.JWTSecret)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init auth service: %w", err)
	}

	// Query-surface collaborators. These run even in a worker-only or
	// server-only deployment since both HTTP reads and vector finalization
	// touch them.
	var chatClient openai.Client
	if cfg.ChatAPIKey != "" || cfg.TextEmbedAPIKey != "" {
		apiKey := cfg.ChatAPIKey
		if apiKey == "" {
			apiKey = cfg.TextEmbedAPIKey
		}
		chatClient, err = openai.NewClient(log, apiKey)
		if err != nil {
			log.Sync()
			return nil, fmt.Errorf("init chat/embedding client: %w", err)
		}
	}

	var memoryStore pinecone.MemoryStore
	if cfg.VectorAPIKey != "" {
		pcClient, err := pinecone.New(log, pinecone.Config{APIKey: cfg.VectorAPIKey})
		if err != nil {
			log.Sync()
			return nil, fmt.Errorf("init vector store client: %w", err)
		}
		memoryStore, err = pinecone.NewMemoryStore(log, pcClient)
		if err != nil {
			log.Sync()
			return nil, fmt.Errorf("init memory store: %w", err)
		}
	}

	var blobStore s3.BlobStore
	if cfg.BlobBucket != "" {
		blobStore, err = s3.NewBlobStore(log, cfg.BlobRegion, cfg.BlobBucket)
		if err != nil {
			log.Sync()
			return nil, fmt.Errorf("init blob store: %w", err)
		}
	}

	querySvc := query.NewService(log, videoRepo, memoryStore, blobStore, chatClient)

	authMW := httpMW.NewAuthMiddleware(log, authService)
	authHandler := httpH.NewAuthHandler(log, authService)
	videoHandler := httpH.NewVideoHandler(log, querySvc)
	memoryHandler := httpH.NewMemoryHandler(log, querySvc)
	highlightHandler := httpH.NewHighlightHandler(log, highlightRepo, querySvc)
	insightHandler := httpH.NewInsightHandler(log, querySvc)

	router := httpserver.NewRouter(httpserver.RouterConfig{
		AuthMiddleware:   authMW,
		AuthHandler:      authHandler,
		VideoHandler:     videoHandler,
		MemoryHandler:    memoryHandler,
		HighlightHandler: highlightHandler,
		InsightHandler:   insightHandler,
	})

	a := &App{
		Log:    log,
		DB:     theDB,
		Router: router,
		Cfg:    cfg,
	}

	// The work queue and the pool are assembled here; the worker goroutines
	// and their per-worker video-understanding clients are only created once
	// StartWorkerPool runs the pool.
	a.buildWorkerPool(videoRepo, highlightRepo, memoryStore, blobStore, chatClient)

	return a, nil
}

// buildWorkerPool assembles the work queue and the worker pool. It is safe to
// call even when the worker will never run (StartWorkerPool is what
// actually launches goroutines); this just gets the pool ready to go.
func (a *App) buildWorkerPool(videoRepo repos.VideoRepo, highlightRepo repos.HighlightRepo, memoryStore pinecone.MemoryStore, blobStore s3.BlobStore, chatClient openai.Client) {
	if a.Cfg.QueueBrokerURL == "" {
		a.Log.Warn("queue_broker_url not configured; falling back to an in-process queue (capture and worker will not share state across processes)")
		a.workQueue = queue.NewInMemory()
	} else {
		q, err := redisqueue.NewWorkQueue(a.Log, a.Cfg.QueueBrokerURL)
		if err != nil {
			a.Log.Warn("failed to connect to work queue, falling back to in-process queue", "error", err)
			a.workQueue = queue.NewInMemory()
		} else {
			a.workQueue = q
		}
	}

	controller := automation.NewController(a.Log, chatClient, nil, highlightRepo)

	newWorker := func(id int) *worker.Worker {
		videoAPI, err := twelvelabs.NewClient(a.Log, a.Cfg.VideoUnderstandingAPIKey)
		if err != nil {
			a.Log.Error("failed to build per-worker video-understanding client", "worker_id", id, "error", err)
		}
		return worker.New(id, a.Log, worker.Deps{
			VideoAPI:         videoAPI,
			BlobStore:        blobStore,
			Memory:           memoryStore,
			VideoRepo:        videoRepo,
			Automation:       controller,
			DeleteSourceFile: a.Cfg.DeleteSegmentFiles,
		})
	}

	a.pool = worker.NewPool(a.Log, a.workQueue, newWorker, worker.Config{
		Concurrency: a.Cfg.NumWorkers,
	})
}

// StartWorkerPool launches the worker pool in the background. Call Close to
// stop it.
func (a *App) StartWorkerPool() error {
	if a == nil || a.pool == nil {
		return fmt.Errorf("app not initialized")
	}
	if err := a.Cfg.requireForWorker(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	go a.pool.Run(ctx)
	return nil
}

func (a *App) Run(addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
