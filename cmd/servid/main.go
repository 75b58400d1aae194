package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/joho/godotenv"
	intake "github.com/phbpx/contact-intake"
	"github.com/phbpx/contact-intake/dynamodb"
	"github.com/phbpx/contact-intake/handler"
	"github.com/phbpx/contact-intake/mongo"
	"github.com/phbpx/contact-intake/notify"
	"github.com/phbpx/contact-intake/pkg/database"
	"github.com/phbpx/contact-intake/pkg/storage"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const serviceName = "contact-intake"

type config struct {
	conf.Version
	HTTP struct {
		ReadTimeout       time.Duration `conf:"default:5s"`
		WriteTimeout      time.Duration `conf:"default:10s"`
		IdleTimeout       time.Duration `conf:"default:120s"`
		ShutdownTimeout   time.Duration `conf:"default:20s"`
		Host              string        `conf:"default:0.0.0.0:5000"`
		MaxBodyBytes      int64         `conf:"default:102400"`
		LegacyErrorStatus bool          `conf:"default:false"`
		AllowedOrigins    []string      `conf:"default:*"`
		TrustForwardedFor bool          `conf:"default:false"`
	}
	RateLimit struct {
		RPS        float64       `conf:"default:1"`
		Burst      int           `conf:"default:5"`
		TTL        time.Duration `conf:"default:1h"`
		MaxClients uint64        `conf:"default:10000"`
	}
	Store struct {
		Kind           string        `conf:"default:postgres,help:postgres|mongo|dynamodb|sqlite|memory"`
		Migrate        bool          `conf:"default:true"`
		StartupTimeout time.Duration `conf:"default:10s"`
		MigrateTimeout time.Duration `conf:"default:30s"`
		CheckTimeout   time.Duration `conf:"default:2s"`
	}
	DB struct {
		URL             string        `conf:"mask"`
		User            string        `conf:"default:contactsvc"`
		Password        string        `conf:"default:contactsvc,mask"`
		Host            string        `conf:"default:localhost"`
		Name            string        `conf:"default:contacts"`
		MaxIdleConns    int           `conf:"default:2"`
		MaxOpenConns    int           `conf:"default:10"`
		ConnMaxLifetime time.Duration `conf:"default:5m"`
		DisableTLS      bool          `conf:"default:true"`
	}
	Mongo struct {
		URI        string `conf:"mask"`
		Database   string `conf:"default:mindpal"`
		Collection string `conf:"default:contacts"`
	}
	Dynamo struct {
		Table    string `conf:"default:contacts"`
		Region   string
		Endpoint string
	}
	SQLite struct {
		Path string `conf:"default:contacts.db"`
	}
	Slack struct {
		Token   string        `conf:"mask"`
		Channel string
		Timeout time.Duration `conf:"default:10s"`
	}
	Jaeger struct {
		ReporterURI string  `conf:"default:http://localhost:14268/api/traces"`
		ServiceName string  `conf:"default:contact-intake-api"`
		Probability float64 `conf:"default:0.5"`
	}
	Log struct {
		Level      string `conf:"default:info"`
		File       string
		MaxSizeMB  int `conf:"default:100"`
		MaxBackups int `conf:"default:3"`
		MaxAgeDays int `conf:"default:7"`
	}
}

func main() {

	// A local .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, help, err := parseConfig()
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return
		}
		fmt.Println(err)
		os.Exit(1)
	}

	log, err := newLog(serviceName, cfg)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Errorw("startup", "err", err)
		log.Sync()
		os.Exit(1)
	}
}

func parseConfig() (config, string, error) {
	cfg := config{
		Version: conf.Version{
			Build: "develop",
			Desc:  "contact form intake API",
		},
	}

	help, err := conf.Parse("CONTACT", &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			return cfg, help, err
		}
		return cfg, "", fmt.Errorf("parsing config: %w", err)
	}

	// The website's hosting has always exported these names.
	if port := os.Getenv("PORT"); port != "" {
		cfg.HTTP.Host = net.JoinHostPort("0.0.0.0", port)
	}
	if uri := os.Getenv("MONGO_URI"); uri != "" && cfg.Mongo.URI == "" {
		cfg.Mongo.URI = uri
	}
	if url := os.Getenv("DATABASE_URL"); url != "" && cfg.DB.URL == "" {
		cfg.DB.URL = url
	}

	return cfg, "", nil
}

func run(cfg config, log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Start Tracing Support

	log.Infow("startup", "status", "initializing OT/Jaeger tracing support")

	traceProvider, err := startTracing(
		cfg.Jaeger.ServiceName,
		cfg.Jaeger.ReporterURI,
		cfg.Jaeger.Probability,
	)
	if err != nil {
		return fmt.Errorf("starting tracing: %w", err)
	}
	defer traceProvider.Shutdown(context.Background())

	// =========================================================================
	// Store Support

	log.Infow("startup", "status", "initializing store support", "kind", cfg.Store.Kind)

	backend, err := storage.Open(context.Background(), storage.Config{
		Kind: cfg.Store.Kind,
		Postgres: database.Config{
			URL:             cfg.DB.URL,
			User:            cfg.DB.User,
			Password:        cfg.DB.Password,
			Host:            cfg.DB.Host,
			Name:            cfg.DB.Name,
			MaxIdleConns:    cfg.DB.MaxIdleConns,
			MaxOpenConns:    cfg.DB.MaxOpenConns,
			ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
			DisableTLS:      cfg.DB.DisableTLS,
		},
		Mongo: mongo.Config{
			URI:            cfg.Mongo.URI,
			Database:       cfg.Mongo.Database,
			Collection:     cfg.Mongo.Collection,
			ConnectTimeout: cfg.Store.StartupTimeout,
		},
		Dynamo: dynamodb.Config{
			Table:    cfg.Dynamo.Table,
			Region:   cfg.Dynamo.Region,
			Endpoint: cfg.Dynamo.Endpoint,
		},
		SQLitePath: cfg.SQLite.Path,
	})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() {
		log.Infow("shutdown", "status", "stopping store support", "kind", cfg.Store.Kind)
		backend.Close()
	}()

	// =========================================================================
	// Update store schema and wait for readiness

	// The service must not accept requests while it cannot reach its store.
	log.Infow("startup", "status", "preparing store", "kind", cfg.Store.Kind, "migrate", cfg.Store.Migrate)

	if err := storage.Prepare(context.Background(), backend, storage.StartupConfig{
		Migrate:        cfg.Store.Migrate,
		MigrateTimeout: cfg.Store.MigrateTimeout,
		ReadyTimeout:   cfg.Store.StartupTimeout,
	}); err != nil {
		return err
	}

	// =========================================================================
	// Create router

	log.Infow("startup", "status", "initializing router")

	otelLog := otelzap.New(log.Desugar(), otelzap.WithStackTrace(false)).Sugar()

	opts := []intake.Option{intake.WithNotifyTimeout(cfg.Slack.Timeout)}
	slackNotifier, err := notify.NewSlack(cfg.Slack.Token, cfg.Slack.Channel)
	switch {
	case err == nil:
		opts = append(opts, intake.WithNotifier(slackNotifier))
		log.Infow("startup", "status", "slack notifications enabled", "channel", cfg.Slack.Channel)
	case errors.Is(err, intake.ErrNotConfigured):
		log.Infow("startup", "status", "slack notifications disabled")
	default:
		return fmt.Errorf("creating slack notifier: %w", err)
	}

	svc := intake.NewService(backend, otelLog, opts...)

	rateLimiter := handler.NewRateLimiter(handler.RateLimitConfig{
		RPS:        cfg.RateLimit.RPS,
		Burst:      cfg.RateLimit.Burst,
		TTL:        cfg.RateLimit.TTL,
		MaxClients: cfg.RateLimit.MaxClients,
	})
	defer rateLimiter.Stop()

	r := handler.NewRouter(handler.RouterConfig{
		ServiceName:       serviceName,
		AllowedOrigins:    cfg.HTTP.AllowedOrigins,
		TrustForwardedFor: cfg.HTTP.TrustForwardedFor,
		Contact: handler.NewContactHandler(svc, otelLog, handler.ContactConfig{
			MaxBodyBytes:      cfg.HTTP.MaxBodyBytes,
			LegacyErrorStatus: cfg.HTTP.LegacyErrorStatus,
		}),
		Health:      handler.NewHealthHandler(svc, otelLog, cfg.Store.CheckTimeout),
		RateLimiter: rateLimiter,
	})

	// =========================================================================
	// Start API Server

	log.Infow("startup", "status", "initializing http server")

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	server := &http.Server{
		Addr:         cfg.HTTP.Host,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	serverErrors := make(chan error, 1)

	go func() {
		log.Infow("startup", "status", "api router started", "host", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			server.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}

		// Let pending notifications finish before the store goes away.
		svc.Wait()
	}

	return nil
}

func newLog(service string, cfg config) (*zap.SugaredLogger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	config.OutputPaths = []string{"stdout"}
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.DisableStacktrace = true
	config.InitialFields = map[string]interface{}{
		"service": service,
	}

	log, err := config.Build()
	if err != nil {
		return nil, err
	}

	if cfg.Log.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
			Compress:   true,
		}
		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(config.EncoderConfig),
			zapcore.AddSync(rotator),
			config.Level,
		).With([]zapcore.Field{zap.String("service", service)})

		log = log.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, fileCore)
		}))
	}

	return log.Sugar(), nil
}

func startTracing(serviceName, reporterURL string, probability float64) (*tracesdk.TracerProvider, error) {
	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(reporterURL)))
	if err != nil {
		return nil, fmt.Errorf("creating new exporter: %w", err)
	}

	tp := tracesdk.NewTracerProvider(
		tracesdk.WithSampler(tracesdk.ParentBased(tracesdk.TraceIDRatioBased(probability))),
		// Always be sure to batch in production.
		tracesdk.WithBatcher(exp,
			tracesdk.WithMaxExportBatchSize(tracesdk.DefaultMaxExportBatchSize),
			tracesdk.WithBatchTimeout(tracesdk.DefaultScheduleDelay*time.Millisecond),
		),
		// Record information about this application in a Resource.
		tracesdk.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
			attribute.String("exporter", "jaeger"),
		)),
	)

	otel.SetTracerProvider(tp)
	return tp, nil
}
