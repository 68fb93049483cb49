package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"resume-agent/internal/llm"
	"resume-agent/internal/llm/anthropic"
	"resume-agent/internal/llm/openai"
	"resume-agent/internal/prompts"
	"resume-agent/internal/renders"
	"resume-agent/internal/resume"
	"resume-agent/internal/sessions"
	"resume-agent/internal/shared/config"
	"resume-agent/internal/shared/server"
	"resume-agent/internal/shared/storage/db"
	"resume-agent/internal/shared/storage/object"
	localstore "resume-agent/internal/shared/storage/object/local"
	s3store "resume-agent/internal/shared/storage/object/s3"
	"resume-agent/internal/shared/telemetry"
)

// App holds shared dependencies.
type App struct {
	Config   config.Config
	Router   *gin.Engine
	DB       *sql.DB
	Store    object.ObjectStore
	Gateway  llm.Gateway
	Prompts  prompts.Store
	Registry *sessions.Registry
	Renders  *renders.Service
}

// Build prepares dependencies and the router.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	gateway, err := NewGateway(cfg)
	if err != nil {
		return nil, err
	}
	promptStore := NewPrompts(cfg)

	var renderRepo renders.Repo = renders.NewMemoryRepo()
	if sqlDB != nil {
		renderRepo = &renders.PGRepo{DB: sqlDB}
	}

	app := &App{
		Config:   cfg,
		DB:       sqlDB,
		Store:    store,
		Gateway:  gateway,
		Prompts:  promptStore,
		Registry: sessions.NewRegistry(NewSessionFactory(gateway, promptStore), cfg.SessionTTL),
		Renders:  &renders.Service{Repo: renderRepo, Store: store},
	}
	app.Router = server.NewRouter(server.RouterDeps{
		Config:   cfg,
		Sessions: sessions.NewHandler(app.Registry, app.Renders),
		DB:       sqlDB,
	})
	return app, nil
}

// Close releases the database pool.
func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

// NewGateway builds the configured provider wrapped in the retry policy.
func NewGateway(cfg config.Config) (llm.Gateway, error) {
	var base llm.Gateway
	switch cfg.LLMProvider {
	case "anthropic":
		client, err := anthropic.NewClient(anthropic.Options{
			APIKey:    cfg.AnthropicAPIKey,
			Model:     cfg.DefaultModel(),
			Timeout:   cfg.LLMTimeout,
			MaxTokens: cfg.LLMMaxTokens,
		})
		if err != nil {
			return nil, err
		}
		base = client
	case "openai":
		client, err := openai.NewClient(openai.Options{
			APIKey:    cfg.OpenAIAPIKey,
			Model:     cfg.DefaultModel(),
			Timeout:   cfg.LLMTimeout,
			MaxTokens: cfg.LLMMaxTokens,
		})
		if err != nil {
			return nil, err
		}
		base = client
	case "placeholder":
		return llm.PlaceholderGateway{}, nil
	default:
		return nil, fmt.Errorf("unsupported LLM_PROVIDER %q", cfg.LLMProvider)
	}

	telemetry.Info("llm.configured", map[string]any{
		"provider":       cfg.LLMProvider,
		"model":          cfg.DefaultModel(),
		"retry_attempts": cfg.LLMRetryAttempts,
	})
	return llm.WithRetry(base, llm.RetryPolicy{
		MaxAttempts: cfg.LLMRetryAttempts,
		BaseDelay:   cfg.LLMRetryBaseDelay,
	}), nil
}

// NewPrompts reads templates from PROMPTS_DIR, falling back to the built-in defaults.
func NewPrompts(cfg config.Config) prompts.Store {
	return prompts.Chain{prompts.DirStore{Dir: cfg.PromptsDir}, prompts.Defaults{}}
}

// NewSessionFactory returns a factory for empty sessions sharing gateway and store.
func NewSessionFactory(gateway llm.Gateway, store prompts.Store) sessions.Factory {
	return func() *resume.Session {
		return resume.NewSession(gateway, store)
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		telemetry.Info("bootstrap.database_disabled", map[string]any{
			"reason": "DATABASE_URL empty; using in-memory render records",
		})
		return nil, nil
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.database_fallback", map[string]any{"error": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
