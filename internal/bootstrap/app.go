// Package bootstrap builds the dependency graph from configuration.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/gin-gonic/gin"

	googleauth "resume-builder/internal/auth"
	"resume-builder/internal/generation"
	"resume-builder/internal/generation/openai"
	"resume-builder/internal/profiles"
	"resume-builder/internal/resumes"
	"resume-builder/internal/services/health"
	"resume-builder/internal/shared/config"
	"resume-builder/internal/shared/events"
	"resume-builder/internal/shared/server"
	"resume-builder/internal/shared/storage/cache"
	"resume-builder/internal/shared/storage/db"
	"resume-builder/internal/shared/storage/object"
	localstore "resume-builder/internal/shared/storage/object/local"
	miniostore "resume-builder/internal/shared/storage/object/minio"
	s3store "resume-builder/internal/shared/storage/object/s3"
	"resume-builder/internal/shared/telemetry"
	"resume-builder/internal/users"
	"resume-builder/resume/render"
)

// App holds shared dependencies and the router built from them.
type App struct {
	Config    config.Config
	Router    *gin.Engine
	DB        *sql.DB
	Store     object.Store
	Cache     cache.Cache
	Events    events.Publisher
	Generator generation.Generator

	ProfilesService *profiles.Service
	ResumesService  *resumes.Service
	UsersService    *users.Service

	closers []io.Closer
}

// Build wires repositories, services and handlers. Dev-like environments fall
// back to in-memory implementations when an external dependency is missing or
// unreachable; other environments fail instead.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	cfg.Normalize()
	app := &App{Config: cfg}

	var err error
	if app.DB, err = buildDB(ctx, cfg); err != nil {
		return nil, err
	}
	if app.DB != nil {
		app.closers = append(app.closers, app.DB)
	}
	if app.Store, err = buildStore(ctx, cfg); err != nil {
		return nil, app.closeWith(err)
	}
	if app.Cache, err = app.buildCache(ctx, cfg); err != nil {
		return nil, app.closeWith(err)
	}
	if app.Events, err = app.buildEvents(ctx, cfg); err != nil {
		return nil, app.closeWith(err)
	}
	if app.Generator, err = buildGenerator(cfg); err != nil {
		return nil, app.closeWith(err)
	}
	if err := app.buildServices(); err != nil {
		return nil, app.closeWith(err)
	}
	return app, nil
}

// Close releases connections opened by Build.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) closeWith(err error) error {
	return errors.Join(err, a.Close())
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if cfg.DatabaseURL == "" {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.db.memory", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, errors.New("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultLambdaOptions()))
	} else {
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	}
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.db.memory", map[string]any{"reason": "connect failed", "error": err})
			return nil, nil
		}
		return nil, err
	}

	if cfg.RunMigrations {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.Store, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, s3store.Config{
			Region:        cfg.AWSRegion,
			Bucket:        cfg.S3Bucket,
			Prefix:        cfg.S3Prefix,
			KMSKeyID:      cfg.SSEKMSKeyID,
			Endpoint:      cfg.S3Endpoint,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
	case "minio":
		return miniostore.New(ctx, miniostore.Config{
			Endpoint:      cfg.MinioEndpoint,
			AccessKey:     cfg.MinioAccessKey,
			SecretKey:     cfg.MinioSecretKey,
			Bucket:        cfg.MinioBucket,
			UseSSL:        cfg.MinioUseSSL,
			PublicBaseURL: cfg.MinioPublicBaseURL,
		})
	default:
		return localstore.New(cfg.LocalStoreDir, cfg.PublicBaseURL), nil
	}
}

func (a *App) buildCache(ctx context.Context, cfg config.Config) (cache.Cache, error) {
	if cfg.RedisAddr == "" {
		return cache.NewMemoryCache(), nil
	}
	rc, err := cache.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "resume-builder:")
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.cache.memory", map[string]any{"error": err})
			return cache.NewMemoryCache(), nil
		}
		return nil, err
	}
	a.closers = append(a.closers, rc)
	return rc, nil
}

func (a *App) buildEvents(ctx context.Context, cfg config.Config) (events.Publisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return events.Noop{}, nil
	}
	p, err := events.NewKafkaPublisher(ctx, cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.events.noop", map[string]any{"error": err})
			return events.Noop{}, nil
		}
		return nil, err
	}
	a.closers = append(a.closers, p)
	return p, nil
}

func buildGenerator(cfg config.Config) (generation.Generator, error) {
	switch cfg.LLMProvider {
	case "static":
		return generation.StaticGenerator{}, nil
	case "none":
		return generation.Unconfigured{}, nil
	}
	g, err := openai.NewGenerator(openai.Config{
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.LLMModel,
		BaseURL: cfg.OpenAIBaseURL,
		Timeout: cfg.GenerationTimeout,
	})
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.generator.static", map[string]any{"error": err})
			return generation.StaticGenerator{}, nil
		}
		return nil, err
	}
	return g, nil
}

func (a *App) buildServices() error {
	var (
		profileRepo profiles.Repo
		resumeRepo  resumes.Repo
		userRepo    users.Repo
	)
	if a.DB != nil {
		gormRepo, err := profiles.NewGormRepo(a.DB)
		if err != nil {
			return fmt.Errorf("profiles repo: %w", err)
		}
		profileRepo = gormRepo
		resumeRepo = &resumes.PGRepo{DB: a.DB}
		userRepo = &users.PGRepo{DB: a.DB}
	} else {
		profileRepo = profiles.NewMemoryRepo()
		resumeRepo = resumes.NewMemoryRepo()
		userRepo = users.NewMemoryRepo()
	}

	cfg := a.Config
	a.ProfilesService = &profiles.Service{Repo: profileRepo, Store: a.Store}
	a.UsersService = users.NewService(userRepo)
	a.ResumesService = &resumes.Service{
		Repo:              resumeRepo,
		Profiles:          a.ProfilesService,
		Generator:         a.Generator,
		Store:             a.Store,
		Cache:             a.Cache,
		Events:            a.Events,
		CacheTTL:          cfg.CacheTTL,
		GenerationTimeout: cfg.GenerationTimeout,
		Preview: resumes.PreviewLimits{
			MaxBytes:  cfg.PreviewMaxBytes,
			MaxWidth:  cfg.PreviewMaxWidth,
			MaxPixels: cfg.PreviewMaxPixels,
		},
	}
	if cfg.ChromePath != "" {
		a.ResumesService.PDF = render.PDFExporter{ChromePath: cfg.ChromePath}
	}

	deps := server.RouterDeps{
		Config:         cfg,
		Health:         health.NewService(a.DB, a.Cache),
		UserHandler:    users.NewHandler(a.UsersService),
		ProfileHandler: profiles.NewHandler(a.ProfilesService),
		ResumeHandler:  resumes.NewHandler(a.ResumesService),
		GoogleAuth: googleauth.NewGoogleService(
			cfg.GoogleClientID,
			cfg.GoogleClientSecret,
			cfg.GoogleRedirectURL,
			cfg.UIRedirectURL,
			a.UsersService,
		),
	}
	if _, ok := a.Store.(*localstore.Store); ok {
		deps.Files = a.Store
	}
	a.Router = server.NewRouter(deps)
	return nil
}
