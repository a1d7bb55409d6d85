package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"haptix/internal/analysis"
	"haptix/internal/api"
	"haptix/internal/app/bootstrap"
	"haptix/internal/app/session"
	"haptix/internal/app/workflow"
	memorydb "haptix/internal/db/memory"
	"haptix/internal/db/postgres"
	redisdb "haptix/internal/db/redis"
	"haptix/internal/domain/workflow/port"
	"haptix/internal/platform/config"
	applog "haptix/internal/platform/log"
	"haptix/internal/platform/metrics"
	"haptix/internal/provider"
	"haptix/internal/speech"
)

const (
	startupTimeout  = 10 * time.Second
	shutdownTimeout = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Config load failed: %v\n", err)
		os.Exit(1)
	}

	applog.Init(applog.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})
	defer applog.Sync()

	var collector *metrics.Collector
	if cfg.Server.MetricsEnabled {
		collector = metrics.New()
		applog.Info("✅ Prometheus metrics enabled on /metrics")
	}

	stim := bootstrap.BuildStimulus(cfg, collector)

	sessionStore := initSessionStore(cfg)
	triggers, db := initTriggerRepository(cfg)
	if db != nil {
		defer db.Close()
	}

	var analyser port.TriggerAnalyser
	llmRegistry := provider.NewRegistry()
	if llm, ok := bootstrap.RegisterLLMProviders(llmRegistry, cfg.LLM); ok {
		analyser = analysis.New(llm, stim.Sender, analysis.Config{
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
		})
	}

	sessionDeps := session.Dependencies{
		Store:    sessionStore,
		Keywords: stim.Keywords,
		Analyser: analyser,
		Triggers: triggers,
	}
	editorOpts := []workflow.EditorOption{}
	if collector != nil {
		sessionDeps.Recorder = collector
		editorOpts = append(editorOpts, workflow.WithObserver(collector))
	}
	sessions := session.NewManager(sessionDeps)
	editors := workflow.NewEditorService(bootstrap.EngineConfig(cfg.Engine), stim.Sender, editorOpts...)

	var tokens *speech.TokenIssuer
	if cfg.Speech.APIKey != "" {
		tokens = speech.NewTokenIssuer(speech.Config{
			APIKey:  cfg.Speech.APIKey,
			BaseURL: cfg.Speech.BaseURL,
			ModelID: cfg.Speech.ModelID,
		})
		applog.Infof("✅ ElevenLabs token issuer ready (model: %s)", cfg.Speech.ModelID)
	} else {
		applog.Info("ℹ️  No ELEVENLABS_API_KEY set, /scribe-token disabled")
	}

	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = cfg.Server.Host
	serverConfig.Port = cfg.Server.Port
	serverConfig.ReadTimeout = config.Seconds(cfg.Server.ReadTimeoutSeconds)
	serverConfig.WriteTimeout = config.Seconds(cfg.Server.WriteTimeoutSeconds)
	serverConfig.AllowedOrigins = cfg.Server.AllowedOrigins
	serverConfig.JWTSecret = cfg.Auth.JWTSecret
	serverConfig.JWTIssuer = cfg.Auth.JWTIssuer

	server := api.NewServer(serverConfig, api.Dependencies{
		Editors:  editors,
		Sessions: sessions,
		Sender:   stim.Player,
		Keywords: stim.Player,
		Tokens:   tokens,
		Triggers: triggers,
		Metrics:  collector,
	})

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		applog.Info("🔄 Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		for _, ed := range editors.List() {
			ed.Engine.Stop()
		}
		if err := server.Stop(ctx); err != nil {
			applog.Errorf("❌ Server shutdown error: %v", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		applog.Fatalf("❌ Server error: %v", err)
	}

	applog.Info("👋 Server stopped")
}

// initSessionStore Redis 可用时使用 Redis，否则退回进程内存
func initSessionStore(cfg *config.AppConfig) port.SessionStore {
	if cfg.Redis.URL == "" {
		applog.Info("ℹ️  No REDIS_URL set, sessions kept in memory")
		return memorydb.NewSessionStore()
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()
	client, err := redisdb.Connect(ctx, cfg.Redis.URL)
	if err != nil {
		applog.Warnf("⚠️  Redis unavailable, sessions kept in memory: %v", err)
		return memorydb.NewSessionStore()
	}

	applog.Info("✅ Connected to Redis for session store")
	return redisdb.NewSessionStore(redisdb.SessionStoreConfig{
		Client:    client,
		KeyPrefix: cfg.Session.KeyPrefix,
		TTL:       config.Seconds(cfg.Session.TTLSeconds),
	})
}

// initTriggerRepository PostgreSQL 可用时记录触发规则，否则使用内存实现
func initTriggerRepository(cfg *config.AppConfig) (port.TriggerRepository, *sql.DB) {
	if cfg.Database.URL == "" {
		applog.Info("ℹ️  No DATABASE_URL set, trigger history kept in memory")
		return memorydb.NewTriggerRepository(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	db, err := postgres.Open(ctx, cfg.Database.URL,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
		config.Seconds(cfg.Database.ConnMaxLifetimeSeconds),
	)
	if err != nil {
		applog.Warnf("⚠️  PostgreSQL unavailable, trigger history kept in memory: %v", err)
		return memorydb.NewTriggerRepository(), nil
	}
	applog.Info("✅ Connected to PostgreSQL")

	repo := postgres.NewTriggerRepository(db)
	if err := repo.EnsureTable(ctx); err != nil {
		applog.Warnf("⚠️  Failed to ensure triggers table: %v", err)
	} else {
		applog.Info("✅ Triggers table ready")
	}
	return repo, db
}
