package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	appControllers "github.com/yigit/bursar/internal/app/controllers"
	"github.com/yigit/bursar/internal/app/jobs"
	appMigrations "github.com/yigit/bursar/internal/app/migrations"
	appRepos "github.com/yigit/bursar/internal/app/repositories"
	appRoutes "github.com/yigit/bursar/internal/app/routes"
	appServices "github.com/yigit/bursar/internal/app/services"
	"github.com/yigit/bursar/internal/config"
	"github.com/yigit/bursar/internal/db"
	appMiddleware "github.com/yigit/bursar/internal/middleware"
	"github.com/yigit/bursar/internal/pkg/audit"
	pkgAuth "github.com/yigit/bursar/internal/pkg/auth"
	"github.com/yigit/bursar/internal/pkg/cache"
	"github.com/yigit/bursar/internal/pkg/filestorage"
	"github.com/yigit/bursar/internal/pkg/helpers"
	"github.com/yigit/bursar/internal/pkg/logger"
	"github.com/yigit/bursar/internal/pkg/websocket"
	"github.com/yigit/bursar/internal/seed"
)

// DefaultConfigPath is read when no path is given
var DefaultConfigPath = filepath.Join("configs", "config.yaml")

// Dependencies holds all the application dependencies
type Dependencies struct {
	Config               *config.Config
	Database             *db.PostgresDB // nil with the memory store
	Redis                *redis.Client  // nil when redis is disabled
	Repos                *appRepos.Repositories
	Storage              filestorage.FileStorage // nil when statement storage is disabled
	Audit                audit.Sink
	AuditStream          *audit.RedisStreamSink // nil when redis is disabled
	EventHub             *websocket.Hub
	FeeService           appServices.FeeService // Interface type
	StatementService     *appServices.StatementService
	Reconciler           *jobs.ReconcileStatusesJob
	Scheduler            *jobs.Scheduler
	JWTService           *pkgAuth.JWTService
	AuthMiddleware       *appMiddleware.AuthMiddleware
	FeeController        *appControllers.FeeController
	StudentFeeController *appControllers.StudentFeeController
	LedgerEvents         *websocket.Handler
	Logger               zerolog.Logger
}

// LoadConfigAndSetupLogger loads configuration and initializes the logger.
func LoadConfigAndSetupLogger(configPath string) (*config.Config, zerolog.Logger, error) {
	if configPath == "" {
		configPath = DefaultConfigPath
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error().Err(err).Str("path", configPath).Msg("Failed to load configuration")
		return nil, zerolog.Logger{}, err
	}

	logLevel := logger.ParseLevel(cfg.Logging.Level)
	logger.Configure(logger.Config{
		Level:  logLevel,
		Format: strings.ToLower(cfg.Logging.Format),
	})

	lgr := logger.Get()
	lgr.Info().Str("logLevel", string(logLevel)).Str("logFormat", cfg.Logging.Format).Msg("Logger configured")
	return cfg, lgr, nil
}

// SetupDatabase establishes the database connection and runs migrations.
func SetupDatabase(ctx context.Context, cfg *config.Config, lgr zerolog.Logger) (*db.PostgresDB, error) {
	lgr.Info().Msg("Establishing database connection...")
	database, err := db.NewPostgresDB(cfg)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to connect to database")
		return nil, err
	}
	lgr.Info().Msg("Database connection successfully established.")

	lgr.Info().Msg("Running database migrations...")
	migrationsDir := cfg.Database.MigrationsDir
	if _, err := os.Stat(migrationsDir); os.IsNotExist(err) {
		database.Close()
		lgr.Error().Str("path", migrationsDir).Msg("Migrations directory not found")
		return nil, fmt.Errorf("migrations directory not found at %s: %w", migrationsDir, err)
	}

	migrator := appMigrations.NewMigrator(database.Pool)
	if err := migrator.MigrateFromDirectory(ctx, migrationsDir); err != nil {
		database.Close()
		lgr.Error().Err(err).Msg("Database migration error")
		return nil, fmt.Errorf("database migrations failed: %w", err)
	}

	lgr.Info().Msg("Database migrations successfully applied.")
	return database, nil
}

// SetupRedis connects to Redis when it is enabled; it returns nil otherwise.
func SetupRedis(cfg *config.Config, lgr zerolog.Logger) (*redis.Client, error) {
	if !cfg.Redis.Enabled {
		lgr.Info().Msg("Redis disabled, using in-process lease and log-only audit")
		return nil, nil
	}

	redisCfg := cache.DefaultConfig()
	redisCfg.Addr = cfg.Redis.Addr
	redisCfg.Password = cfg.Redis.Password
	redisCfg.DB = cfg.Redis.DB

	client, err := cache.NewClient(redisCfg)
	if err != nil {
		lgr.Error().Err(err).Str("addr", cfg.Redis.Addr).Msg("Failed to connect to redis")
		return nil, err
	}
	lgr.Info().Str("addr", cfg.Redis.Addr).Msg("Redis connection established")
	return client, nil
}

// SetupStatementStorage creates the archive for statement workbooks; nil when disabled.
func SetupStatementStorage(cfg *config.Config, lgr zerolog.Logger) (filestorage.FileStorage, error) {
	if !cfg.Storage.Enabled {
		lgr.Info().Msg("Statement storage disabled")
		return nil, nil
	}

	switch strings.ToLower(cfg.Storage.Backend) {
	case config.StorageS3:
		storage, err := filestorage.NewS3Storage(filestorage.S3Config{
			Endpoint:        cfg.Storage.Endpoint,
			AccessKeyID:     cfg.Storage.AccessKey,
			SecretAccessKey: cfg.Storage.SecretKey,
			Bucket:          cfg.Storage.Bucket,
			UseSSL:          cfg.Storage.UseSSL,
			Region:          cfg.Storage.Region,
			Prefix:          cfg.Storage.Prefix,
		})
		if err != nil {
			lgr.Error().Err(err).Msg("Failed to initialize s3 statement storage")
			return nil, err
		}
		lgr.Info().Str("endpoint", cfg.Storage.Endpoint).Str("bucket", cfg.Storage.Bucket).Msg("S3 statement storage configured")
		return storage, nil
	default:
		storage, err := filestorage.NewLocalStorage(cfg.Storage.LocalPath, cfg.Storage.BaseURL)
		if err != nil {
			lgr.Error().Err(err).Msg("Failed to initialize local statement storage")
			return nil, err
		}
		lgr.Info().Str("path", cfg.Storage.LocalPath).Msg("Local statement storage configured")
		return storage, nil
	}
}

// BuildDependencies opens the backing stores and wires repositories, services and controllers.
func BuildDependencies(ctx context.Context, cfg *config.Config, lgr zerolog.Logger) (*Dependencies, error) {
	deps := &Dependencies{Config: cfg, Logger: lgr}

	switch cfg.Ledger.Store {
	case config.StoreMemory:
		lgr.Warn().Msg("Using the in-memory ledger store; data is lost on restart")
		deps.Repos = appRepos.NewMemoryRepositories()
	default:
		database, err := SetupDatabase(ctx, cfg, lgr)
		if err != nil {
			return nil, fmt.Errorf("failed to setup database: %w", err)
		}
		deps.Database = database
		deps.Repos = appRepos.NewRepositories(database)
	}

	redisClient, err := SetupRedis(cfg, lgr)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to setup redis: %w", err)
	}
	deps.Redis = redisClient

	deps.Storage, err = SetupStatementStorage(cfg, lgr)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to setup statement storage: %w", err)
	}

	// Audit trail, live feed and reconciliation lease
	deps.EventHub = websocket.NewHub(logger.Component("ledger-feed"))
	sinks := audit.Multi{audit.NewLogSink(lgr), deps.EventHub}
	var lease jobs.Lease = jobs.LocalLease{}
	if deps.Redis != nil {
		deps.AuditStream = audit.NewRedisStreamSink(deps.Redis, cache.StreamKey(cfg.Redis.AuditStream), cfg.Redis.AuditMaxLen)
		sinks = append(sinks, deps.AuditStream)
		lease = jobs.NewRedisLease(deps.Redis)
	}
	deps.Audit = sinks

	clock := appServices.SystemClock
	validator := appServices.NewFeeValidator(clock)
	deps.Reconciler = jobs.NewReconcileStatusesJob(
		deps.Repos.FeeStore,
		clock.Now,
		lease,
		helpers.ParseDuration(cfg.Redis.LeaseTTL, 5*time.Minute),
		deps.Audit,
	)

	deps.FeeService = appServices.NewFeeService(appServices.FeeServiceDeps{
		Store:      deps.Repos.FeeStore,
		Students:   deps.Repos.StudentDirectory,
		Processor:  appServices.NewPaymentProcessor(deps.Repos.FeeStore, validator, clock, cfg.Ledger.MaxPaymentRetries),
		Validator:  validator,
		Summaries:  appServices.NewSummaryAggregator(deps.Repos.FeeStore, clock),
		Reconciler: deps.Reconciler,
		Audit:      deps.Audit,
		Clock:      clock,
	})

	deps.StatementService = appServices.NewStatementService(
		deps.FeeService,
		appServices.NewStatementExporter(clock),
		deps.Storage,
		helpers.ParseDuration(cfg.Storage.PresignTTL, 15*time.Minute),
		deps.Audit,
		clock,
	)

	deps.Scheduler = jobs.NewScheduler(logger.Component("scheduler"))
	if err := deps.Scheduler.Register(
		deps.Reconciler,
		helpers.ParseDuration(cfg.Ledger.ReconcileInterval, time.Hour),
		cfg.Ledger.ReconcileOnStart,
	); err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to register reconcile job: %w", err)
	}

	deps.JWTService = pkgAuth.NewJWTService(pkgAuth.JWTConfig{
		SecretKey:      cfg.JWT.Secret,
		AccessTokenExp: helpers.ParseDuration(cfg.JWT.AccessTokenExpiration, time.Hour),
		TokenIssuer:    cfg.JWT.Issuer,
	})
	deps.AuthMiddleware = appMiddleware.NewAuthMiddleware(deps.JWTService)

	deps.FeeController = appControllers.NewFeeController(deps.FeeService)
	deps.StudentFeeController = appControllers.NewStudentFeeController(deps.FeeService, deps.StatementService)
	deps.LedgerEvents = websocket.NewHandler(deps.EventHub, logger.Component("ledger-feed"))

	if cfg.Ledger.SeedDemoData {
		// Log the error but don't fail the startup
		if err := seed.CreateDefaultData(ctx, deps.Repos.StudentDirectory, deps.FeeService, cfg.Ledger.DemoStudents, clock.Now(), lgr); err != nil {
			lgr.Error().Err(err).Msg("Failed to create demo data, proceeding anyway...")
		}
	}

	return deps, nil
}

// Close releases the connections opened by BuildDependencies.
func (d *Dependencies) Close() {
	if d.AuditStream != nil {
		// Flushes queued audit events while the client is still open
		d.AuditStream.Close()
		d.AuditStream = nil
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Warn().Err(err).Msg("Error closing redis client")
		}
		d.Redis = nil
	}
	if d.Database != nil {
		d.Database.Close()
		d.Database = nil
	}
}

// SetupRouter configures the Gin engine with middleware and routes.
func SetupRouter(cfg *config.Config, deps *Dependencies, lgr zerolog.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
		lgr.Info().Msg("Setting Gin mode to release")
	} else {
		gin.SetMode(gin.DebugMode)
		lgr.Info().Msg("Setting Gin mode to debug")
	}

	router := gin.New()
	router.Use(gin.Recovery(), appMiddleware.RequestLogger())

	appRoutes.SetupRouter(router,
		deps.FeeController,
		deps.StudentFeeController,
		deps.LedgerEvents,
		deps.AuthMiddleware,
	)

	// Archived statements are served from disk by the local backend
	if cfg.Storage.Enabled && strings.ToLower(cfg.Storage.Backend) == config.StorageLocal && strings.HasPrefix(cfg.Storage.BaseURL, "/") {
		router.Static(cfg.Storage.BaseURL, cfg.Storage.LocalPath)
		lgr.Info().Str("path", cfg.Storage.LocalPath).Str("url", cfg.Storage.BaseURL).Msg("Static file serving configured for statements")
	}

	// Test endpoint
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong", "status": "success"})
	})

	return router
}
