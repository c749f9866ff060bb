package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Shivansh-2508/AI-DB/internal/api"
	"github.com/Shivansh-2508/AI-DB/internal/archive"
	"github.com/Shivansh-2508/AI-DB/internal/assistant"
	"github.com/Shivansh-2508/AI-DB/internal/auth"
	"github.com/Shivansh-2508/AI-DB/internal/config"
	"github.com/Shivansh-2508/AI-DB/internal/conversation"
	conversationpostgres "github.com/Shivansh-2508/AI-DB/internal/conversation/postgres"
	conversationredis "github.com/Shivansh-2508/AI-DB/internal/conversation/redis"
	"github.com/Shivansh-2508/AI-DB/internal/db"
	"github.com/Shivansh-2508/AI-DB/internal/llm"
	"github.com/Shivansh-2508/AI-DB/internal/nl2sql"
	"github.com/Shivansh-2508/AI-DB/internal/observability"
	"github.com/Shivansh-2508/AI-DB/internal/query/sqldb"
	"github.com/Shivansh-2508/AI-DB/internal/ratelimit"
	"github.com/Shivansh-2508/AI-DB/internal/schema"
	schemapostgres "github.com/Shivansh-2508/AI-DB/internal/schema/postgres"
	s3store "github.com/Shivansh-2508/AI-DB/internal/storage/s3"
	"github.com/Shivansh-2508/AI-DB/internal/writegate"
)

func main() {
	cfg, err := config.LoadFromEnv("aidb-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	targetDB, err := db.Open(context.Background(), db.Config{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to open target db", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = targetDB.Close() }()

	readiness := []api.ReadinessCheck{api.CheckDatabase(targetDB)}

	conversations, closeConversations, check, err := openConversationStore(cfg, targetDB)
	if err != nil {
		logger.Error("failed to open conversation store", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeConversations()
	readiness = append(readiness, check)

	var resultArchive *archive.Archive
	if cfg.Archive.Enabled {
		objectStore, err := s3store.New(context.Background(), s3store.Config{
			Endpoint:         cfg.ObjectStore.Endpoint,
			Region:           cfg.ObjectStore.Region,
			Bucket:           cfg.ObjectStore.Bucket,
			AccessKeyID:      cfg.ObjectStore.AccessKeyID,
			SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
			UseSSL:           cfg.ObjectStore.UseSSL,
			Prefix:           cfg.ObjectStore.Prefix,
			AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
		})
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		resultArchive = archive.New(objectStore, logger)
		readiness = append(readiness, api.CheckObjectStore(objectStore))
	}

	var generator llm.Generator = llm.Disabled{}
	if cfg.AI.Enabled {
		generator, err = llm.NewOpenAIGenerator(llm.OpenAIConfig{
			BaseURL:     cfg.AI.BaseURL,
			APIKey:      cfg.AI.APIKey,
			Model:       cfg.AI.Model,
			Temperature: cfg.AI.Temperature,
			MaxTokens:   cfg.AI.MaxTokens,
			Timeout:     cfg.AI.Timeout,
		})
		if err != nil {
			logger.Error("failed to initialize text generation gateway", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		logger.Warn("text generation is disabled; only list-tables requests can be answered")
	}

	service, err := assistant.New(assistant.Dependencies{
		Logger:        logger,
		Schemas:       schema.NewCache(schemapostgres.NewIntrospector(targetDB), cfg.Database.Namespace),
		Conversations: conversations,
		Synthesizer: nl2sql.NewSynthesizer(generator, nl2sql.SynthesizerConfig{
			Namespace:    cfg.Database.Namespace,
			HistoryTurns: cfg.Pipeline.HistoryTurns,
		}, logger),
		Clarifier:      nl2sql.NewClarifier(generator, cfg.Pipeline.HistoryTurns, logger),
		Humanizer:      nl2sql.NewHumanizer(generator, cfg.Pipeline.HistoryTurns, logger),
		Executor:       sqldb.NewExecutor(targetDB, cfg.Pipeline.MaxRows),
		Classifier:     writegate.NewClassifier(cfg.Pipeline.StrictWriteKeywords),
		Policy:         writegate.Policy{WriterRoles: cfg.Pipeline.WriterRoles},
		Archive:        resultArchive,
		RequestTimeout: cfg.Pipeline.RequestTimeout,
	})
	if err != nil {
		logger.Error("failed to initialize assistant", slog.Any("error", err))
		os.Exit(1)
	}

	deps := api.Dependencies{
		Logger:            logger,
		Assistant:         service,
		Readiness:         api.CombineReadinessChecks(readiness...),
		DependencyTimeout: time.Second,
	}
	if cfg.RateLimit.PerHour > 0 {
		deps.RateLimit = ratelimit.New(cfg.RateLimit.PerHour, cfg.RateLimit.Burst).TrustForwarded(cfg.RateLimit.TrustForwarded).Middleware
	}
	if cfg.Auth.Required {
		validator, err := buildValidator(cfg.Auth)
		if err != nil {
			logger.Error("failed to configure authentication", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator, cfg.Auth.JWTCookie)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("driver", cfg.Database.Driver),
			slog.String("conversation_backend", cfg.Conversation.Backend),
			slog.Bool("archive_enabled", cfg.Archive.Enabled),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}

func openConversationStore(cfg config.Config, targetDB *sql.DB) (conversation.Store, func(), api.ReadinessCheck, error) {
	noop := func() {}
	switch cfg.Conversation.Backend {
	case config.ConversationPostgres:
		if cfg.Conversation.DSN == cfg.Database.DSN && cfg.Database.Driver == config.DriverPostgres {
			return conversationpostgres.NewStore(targetDB), noop, nil, nil
		}
		conversationDB, err := db.Open(context.Background(), db.Config{
			Driver:          db.DriverPostgres,
			DSN:             cfg.Conversation.DSN,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return nil, noop, nil, err
		}
		return conversationpostgres.NewStore(conversationDB), func() { _ = conversationDB.Close() }, api.CheckDatabase(conversationDB), nil
	case config.ConversationRedis:
		store, err := conversationredis.New(context.Background(), conversationredis.Config{
			Addr:      cfg.Conversation.RedisAddr,
			Password:  cfg.Conversation.RedisPassword,
			DB:        cfg.Conversation.RedisDB,
			KeyPrefix: cfg.Conversation.RedisKeyPrefix,
		})
		if err != nil {
			return nil, noop, nil, err
		}
		return store, noop, store.HealthCheck, nil
	default:
		return conversation.NewMemoryStore(), noop, nil, nil
	}
}

func buildValidator(cfg config.AuthConfig) (auth.Validator, error) {
	validators := auth.Validators{}
	staticKeys, err := auth.NewStaticAPIKeyValidator(cfg.StaticKeys)
	if err != nil {
		return nil, err
	}
	if staticKeys.Len() > 0 {
		validators = append(validators, staticKeys)
	}
	if cfg.JWTSecret != "" {
		jwtValidator, err := auth.NewJWTValidator(cfg.JWTSecret)
		if err != nil {
			return nil, err
		}
		validators = append(validators, jwtValidator)
	}
	if len(validators) == 0 {
		return nil, fmt.Errorf("AIDB_AUTH_REQUIRED=true needs AIDB_AUTH_STATIC_KEYS or AIDB_AUTH_JWT_SECRET")
	}
	return validators, nil
}
