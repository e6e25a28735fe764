package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/handlers"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/delivery"
	"github.com/Ramsey-B/fern/pkg/dispatch"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/health"
	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/isolation"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/providers"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/repositories"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/tracing/exporters"
)

const version = "1.0.0"

func main() {
	// .env is optional; real deployments use the environment directly
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(&cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otlpCfg := exporters.DefaultOTLPConfig()
	otlpCfg.Endpoint = cfg.OTLPEndpoint
	otlpCfg.Protocol = cfg.OTLPProtocol
	otlpCfg.Insecure = cfg.OTLPInsecure
	shutdownTracing, err := tracing.InitProvider(ctx, tracing.ProviderConfig{
		ServiceName: cfg.AppName,
		Enabled:     cfg.TracingEnabled,
		OTLP:        otlpCfg,
	})
	if err != nil {
		fatal(logger, err, "failed to initialize tracing")
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	// postgres
	db, err := database.Connect(ctx, database.ConnectionConfig{
		Host:            cfg.DatabaseHost,
		Port:            cfg.DatabasePort,
		UserName:        cfg.DatabaseUserName,
		Password:        cfg.DatabasePassword,
		Name:            cfg.DatabaseName,
		SSLMode:         cfg.DatabaseSSLMode,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}, logger)
	if err != nil {
		fatal(logger, err, "failed to connect to postgres")
	}
	defer db.Close()

	instance, ok := db.(*database.DatabaseInstance)
	if !ok {
		fatal(logger, nil, "unexpected database instance type")
	}

	if err := runMigrations(&cfg, instance, logger); err != nil {
		fatal(logger, err, "database migration failed")
	}

	// redis (delivery dead letter stream)
	redisClient, err := redis.NewClient(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		fatal(logger, err, "failed to connect to redis")
	}
	defer redisClient.Close()

	dlq := redis.NewDeadLetterQueue(redisClient, cfg.DLQStream, logger)

	// kafka (domain event stream)
	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.KafkaOutputTopic,
		BatchSize:    cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: cfg.KafkaRequiredAcks,
		Compression:  cfg.KafkaCompression,
	}, logger)
	defer producer.Close()

	// repositories
	groupRepo := repositories.NewGroupRepository(db, logger)
	entityRepo := repositories.NewEntityRepository(db, logger)
	relationshipRepo := repositories.NewRelationshipRepository(db, logger)
	eventRepo := repositories.NewEventRepository(db, logger)
	integrationRepo := repositories.NewIntegrationRepository(db, logger)

	// outbound delivery pipeline
	registry := providers.NewRegistry()
	client := httpclient.NewClient(httpclient.DefaultConfig(), logger)
	engine := delivery.NewEngine(client, delivery.Config{
		MaxRetries:   cfg.DeliveryMaxRetries,
		Timeout:      cfg.DeliveryTimeout,
		InitialDelay: time.Duration(cfg.DeliveryInitialDelayMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.DeliveryMaxDelayMs) * time.Millisecond,
	}, logger)
	dispatcher := dispatch.NewDispatcher(registry, engine, dlq, eventRepo, dispatch.Config{
		OverallTimeout: cfg.DispatchOverallTimeout,
		FailureEvents:  cfg.DispatchFailureEvents,
		DLQEnabled:     cfg.DispatchDLQEnabled,
	}, logger)

	// entity graph service
	guard := isolation.NewGuard(entityRepo, groupRepo, logger)
	emitter := events.NewEmitter(producer, logger)
	store := graph.NewStore(groupRepo, entityRepo, relationshipRepo, eventRepo, guard, emitter, dispatcher, integrationRepo, logger)

	// http server
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	checker := health.NewChecker(version)
	checker.AddDatabase(instance.DB)
	checker.AddRedis(redisClient.Redis())
	if len(cfg.KafkaBrokers) > 0 {
		checker.AddKafka(cfg.KafkaBrokers[0])
	}
	checker.RegisterRoutes(e)

	api := e.Group("/api/v1")
	handlers.NewGroupHandler(groupRepo, guard).RegisterRoutes(api)
	handlers.NewEntityHandler(store).RegisterRoutes(api)
	handlers.NewRelationshipHandler(store).RegisterRoutes(api)
	handlers.NewEventHandler(store).RegisterRoutes(api)
	handlers.NewIntegrationHandler(integrationRepo, registry, engine).RegisterRoutes(api)
	handlers.NewDLQHandler(dlq).RegisterRoutes(api)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		checker.SetReady(true)
		if err := e.StartServer(server); err != nil && err != http.ErrServerClosed {
			fatal(logger, err, "server stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	checker.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
}

func newLogger(cfg *config.Config) ectologger.Logger {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.PrettyLogs {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	zapLogger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}

	return zapadapter.NewZapEctoLogger(zapLogger.Named(cfg.AppName), nil)
}

func runMigrations(cfg *config.Config, instance *database.DatabaseInstance, logger ectologger.Logger) error {
	driver, err := migratepg.WithInstance(instance.DB.DB, &migratepg.Config{})
	if err != nil {
		return err
	}

	svc := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
		AutoRollback:        cfg.DatabaseMigrationAutoRollback,
	})
	return svc.Migrate(cfg.DatabaseName, driver)
}

func fatal(logger ectologger.Logger, err error, msg string) {
	if err != nil {
		logger.WithError(err).Error(msg)
	} else {
		logger.Error(msg)
	}
	os.Exit(1)
}
