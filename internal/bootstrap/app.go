package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"policy-backend/internal/analyses"
	"policy-backend/internal/analyses/rules"
	"policy-backend/internal/documents"
	"policy-backend/internal/llm"
	"policy-backend/internal/llm/gemini"
	"policy-backend/internal/llm/openai"
	"policy-backend/internal/services/health"
	"policy-backend/internal/shared/cache"
	"policy-backend/internal/shared/config"
	"policy-backend/internal/shared/server"
	"policy-backend/internal/shared/storage/db"
	"policy-backend/internal/shared/storage/object"
	localstore "policy-backend/internal/shared/storage/object/local"
	s3store "policy-backend/internal/shared/storage/object/s3"
)

// App holds shared dependencies.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore
	Cache  *cache.Store

	DocumentsRepo documents.Repo
	AnalysesRepo  analyses.Repo

	DocumentsService *documents.Service
	AnalysesService  *analyses.Service

	DocumentsHandler *documents.Handler
	AnalysisHandler  *analyses.Handler
}

// Build prepares shared dependencies and wires the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Cache:  cache.New(cfg.CacheMaxEntries, cfg.CacheTTL),
	}

	if err := buildServices(app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          app.Config,
		HealthService:   health.NewService(),
		DocumentHandler: app.DocumentsHandler,
		AnalysisHandler: app.AnalysisHandler,
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.AWSRegion) == "" || strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires AWS_REGION and S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildLLM(cfg config.Config) (llm.Client, error) {
	var (
		client llm.Client
		err    error
	)
	switch cfg.LLMProvider {
	case "gemini":
		client, err = gemini.NewClient(os.Getenv("GEMINI_API_KEY"), cfg.LLMModel)
	default:
		client, err = openai.NewClient(os.Getenv("OPENAI_API_KEY"), cfg.LLMModel)
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: llm client not configured; analyses will fail until a key is set: %v", err)
			return llm.PlaceholderClient{}, nil
		}
		return nil, err
	}
	return client, nil
}

func buildServices(app *App) error {
	var docRepo documents.Repo
	var analysisRepo analyses.Repo

	if app.DB != nil {
		docRepo = &documents.PGRepo{DB: app.DB}
		analysisRepo = &analyses.PGRepo{DB: app.DB}
	} else {
		docRepo = documents.NewMemoryRepo()
		analysisRepo = analyses.NewMemoryRepo()
	}

	docSvc := &documents.Service{
		Store: app.Store,
		Repo:  docRepo,
	}

	llmClient, err := buildLLM(app.Config)
	if err != nil {
		return err
	}

	analysisSvc := &analyses.Service{
		Repo:    analysisRepo,
		DocRepo: docRepo,
		Store:   app.Store,
		LLM:     llmClient,
		Cache:   app.Cache,
		Rules:   rules.NewEngine(app.Config.RulesetVersion),

		Provider:      app.Config.LLMProvider,
		Model:         app.Config.LLMModel,
		PromptVersion: app.Config.PromptVersion,

		MinDocumentChars: app.Config.MinDocumentChars,
		ChunkSize:        app.Config.ChunkSize,
		ChunkOverlap:     app.Config.ChunkOverlap,
		MaxChunks:        app.Config.MaxChunks,
		AnalyzeTimeout:   app.Config.AnalyzeTimeout,
	}

	app.DocumentsRepo = docRepo
	app.AnalysesRepo = analysisRepo
	app.DocumentsService = docSvc
	app.AnalysesService = analysisSvc
	app.DocumentsHandler = documents.NewHandler(docSvc)
	app.AnalysisHandler = analyses.NewHandler(analysisSvc, docRepo)

	return nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
