package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recollect/internal/config"
	"github.com/kailas-cloud/recollect/internal/db/goredis"
	dbredis "github.com/kailas-cloud/recollect/internal/db/redis"
	"github.com/kailas-cloud/recollect/internal/domain"
	"github.com/kailas-cloud/recollect/internal/domain/memory"
	"github.com/kailas-cloud/recollect/internal/engine"
	logpkg "github.com/kailas-cloud/recollect/internal/logger"
	"github.com/kailas-cloud/recollect/internal/metrics"
	"github.com/kailas-cloud/recollect/internal/repository/embcache"
	"github.com/kailas-cloud/recollect/internal/repository/memstore"
	searchrepo "github.com/kailas-cloud/recollect/internal/repository/search"
	chiTransport "github.com/kailas-cloud/recollect/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/recollect/internal/transport/openai"
	"github.com/kailas-cloud/recollect/internal/usecase/cache"
	embeddinguc "github.com/kailas-cloud/recollect/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/recollect/internal/usecase/health"
	"github.com/kailas-cloud/recollect/internal/usecase/learning"
	"github.com/kailas-cloud/recollect/internal/usecase/router"
	strategyuc "github.com/kailas-cloud/recollect/internal/usecase/strategy"
	"github.com/kailas-cloud/recollect/internal/version"
)

const seedBatchSize = 64

// backends are the strategy backends and health probes built from config.
type backends struct {
	vector  strategyuc.VectorBackend
	text    strategyuc.TextBackend
	fuzzy   strategyuc.FuzzyBackend
	kv      cache.RemoteStore
	health  []healthuc.Component
	closers []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting recollect API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("backend", cfg.Database.Backend),
		zap.Strings("strategies", cfg.Strategies.Enabled),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterRetrievalMetrics()
	metrics.RegisterEmbeddingMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	embedder, docEmbedder, checker := buildEmbedder(cfg, logger)

	be, err := buildBackends(ctx, cfg, docEmbedder, logger)
	if err != nil {
		logger.Fatal("Failed to initialize backends", zap.Error(err))
	}
	defer be.close()

	healthComponents := be.health
	if checker != nil {
		healthComponents = append(healthComponents, healthuc.EmbeddingComponent(checker))
	}
	healthSvc := healthuc.New(0, logger.Named("health"), healthComponents...)

	opts, err := engineOptions(cfg, be, embedder, logger)
	if err != nil {
		logger.Fatal("Invalid engine configuration", zap.Error(err))
	}
	eng, err := engine.New(opts...)
	if err != nil {
		logger.Fatal("Failed to create engine", zap.Error(err))
	}
	defer func() {
		if err := eng.Close(); err != nil {
			logger.Error("Failed to close engine", zap.Error(err))
		}
	}()

	go eng.Run(ctx)

	server := chiTransport.NewServer(eng, healthSvc, cfg.Scheduler.DefaultK)
	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      chiTransport.NewRouter(server, cfg.Auth.APIKeys, logger),
		ReadTimeout:  config.Seconds(cfg.HTTP.ReadTimeoutSec),
		WriteTimeout: config.Seconds(cfg.HTTP.WriteTimeoutSec),
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Seconds(cfg.HTTP.ShutdownSec))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles OpenAI -> Instrumented -> Instruction for queries. The
// engine adds the embedding cache on top. Memories are embedded without the
// query instruction. Returns nils when no provider is configured.
func buildEmbedder(
	cfg config.Config, logger *zap.Logger,
) (query, doc domain.Embedder, checker healthuc.EmbeddingChecker) {
	if cfg.Embedding.Provider == config.ProviderNone {
		return nil, nil, nil
	}

	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Name,
		Timeout:    config.Millis(cfg.Embedding.TimeoutMs),
		Logger:     logger.Named("openai"),
	})
	instrumented := embeddinguc.NewInstrumentedEmbedder(
		base, cfg.Embedding.Name, cfg.Embedding.Model, logger.Named("embedding"),
	)
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Name),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	if cfg.Embedding.QueryInstruction != "" {
		return domain.NewInstructionEmbedder(instrumented, cfg.Embedding.QueryInstruction), instrumented, instrumented
	}
	return instrumented, instrumented, instrumented
}

func buildBackends(
	ctx context.Context, cfg config.Config, embedder domain.Embedder, logger *zap.Logger,
) (*backends, error) {
	be := &backends{}

	var redisStore *dbredis.Store
	if cfg.Database.Backend == config.BackendRedis || (cfg.Cache.L2Enabled && cfg.Database.KVDriver == config.KVRueidis) {
		store, err := dbredis.NewStore(dbredis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
			DB:       cfg.Database.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis store: %w", err)
		}
		be.closers = append(be.closers, store.Close)
		if err := store.WaitForReady(ctx, config.Seconds(cfg.Database.ReadinessTimeout)); err != nil {
			be.close()
			return nil, fmt.Errorf("redis not ready: %w", err)
		}
		logger.Info("Connected to redis", zap.Strings("addrs", cfg.Database.Addrs))
		redisStore = store
	}

	switch cfg.Database.Backend {
	case config.BackendRedis:
		repo := searchrepo.New(redisStore, cfg.Database.Index, cfg.Database.KeyPrefix)
		if err := repo.EnsureIndex(ctx, cfg.Embedding.Dimensions); err != nil {
			be.close()
			return nil, fmt.Errorf("ensure memory index: %w", err)
		}
		be.vector, be.text = repo, repo
		be.health = append(be.health, healthuc.PingComponent("redis", redisStore, true))

	case config.BackendMemory:
		mem, err := memstore.New(embedder, logger.Named("memstore"))
		if err != nil {
			be.close()
			return nil, fmt.Errorf("create memory store: %w", err)
		}
		be.closers = append(be.closers, func() { _ = mem.Close() })
		if err := seedMemories(ctx, mem, cfg.Database.SeedFile, logger); err != nil {
			be.close()
			return nil, err
		}
		be.vector, be.text, be.fuzzy = mem, mem, mem
		be.health = append(be.health, healthuc.PingComponent("memory", mem, true))
	}

	if !cfg.Cache.L2Enabled {
		return be, nil
	}
	switch cfg.Database.KVDriver {
	case config.KVGoRedis:
		kv, err := goredis.NewStore(goredis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
			DB:       cfg.Database.DB,
		})
		if err != nil {
			be.close()
			return nil, fmt.Errorf("create go-redis store: %w", err)
		}
		be.closers = append(be.closers, kv.Close)
		be.kv = kv
		be.health = append(be.health, healthuc.PingComponent("cache", kv, false))
	default:
		be.kv = redisStore
		if cfg.Database.Backend != config.BackendRedis {
			be.health = append(be.health, healthuc.PingComponent("cache", redisStore, false))
		}
	}
	return be, nil
}

func seedMemories(ctx context.Context, mem *memstore.Store, path string, logger *zap.Logger) error {
	if path == "" {
		logger.Warn("Memory backend started without a seed file")
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	start := time.Now()
	n, err := mem.Load(ctx, f, seedBatchSize)
	if err != nil {
		return fmt.Errorf("load seed file %s: %w", path, err)
	}
	logger.Info("Loaded memories", zap.String("file", path), zap.Int("count", n), zap.Duration("took", time.Since(start)))
	return nil
}

func engineOptions(
	cfg config.Config, be *backends, embedder domain.Embedder, logger *zap.Logger,
) ([]engine.Option, error) {
	preset, ok := memory.Preset(cfg.Scheduler.Preset)
	if !ok {
		return nil, fmt.Errorf("unknown scheduler preset %q", cfg.Scheduler.Preset)
	}

	profiles := make([]router.Profile, len(cfg.Router.Profiles))
	for i, p := range cfg.Router.Profiles {
		profiles[i] = router.Profile{ID: p.ID, Weights: p.Weights}
	}

	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithAdapterTimeout(config.Millis(cfg.Strategies.AdapterTimeoutMs)),
		engine.WithOverfetch(cfg.Strategies.Overfetch),
		engine.WithRRFK(cfg.Strategies.RRFK),
		engine.WithRouter(cfg.Router.Seed, profiles...),
		engine.WithLearning(learning.Config{
			Capacity:           cfg.Learning.Capacity,
			MinSamples:         cfg.Learning.MinSamples,
			SatisfactionWeight: cfg.Learning.SatisfactionWeight,
			RefreshInterval:    config.Seconds(cfg.Learning.RefreshIntervalSec),
			TrendWindow:        cfg.Learning.TrendWindow,
		}, cfg.Learning.QueueBuffer),
		engine.WithLocalCache(cfg.Cache.L1Size, config.Seconds(cfg.Cache.L1TTLSec)),
		engine.WithKeyPrecision(cfg.Cache.KeyPrecision),
		engine.WithSchedule(preset, cfg.Scheduler.TrimOnSearch),
		engine.WithRecencyRerank(
			cfg.Scheduler.RerankWeight, time.Duration(cfg.Scheduler.RerankHalfLifeHours)*time.Hour,
		),
	}
	if cfg.Scheduler.HalfLifeDays > 0 {
		opts = append(opts, engine.WithHalfLife(cfg.Scheduler.HalfLifeDays))
	} else {
		opts = append(opts, engine.WithDecayRate(cfg.Scheduler.DecayRate))
	}

	for _, s := range cfg.Strategies.Enabled {
		switch s {
		case "vector":
			opts = append(opts, engine.WithVectorBackend(be.vector))
		case "fulltext":
			opts = append(opts, engine.WithTextBackend(be.text))
		case "fuzzy":
			opts = append(opts, engine.WithFuzzyBackend(be.fuzzy, cfg.Strategies.Fuzziness))
		}
	}

	if embedder != nil {
		opts = append(opts,
			engine.WithEmbedder(embedder),
			engine.WithEmbeddingCache(embcache.Config{
				KeyPrefix: "recollect:" + cfg.Embedding.Model + ":",
				MaxCost:   int64(cfg.Cache.L3MaxCostMB) << 20,
				TTL:       config.Seconds(cfg.Cache.L3TTLSec),
			}),
		)
	}

	if be.kv != nil {
		opts = append(opts, engine.WithRemoteCache(be.kv, cfg.Cache.L2Prefix, config.Seconds(cfg.Cache.L2TTLSec)))
	}
	if cfg.Cache.Warm.Enabled {
		opts = append(opts, engine.WithWarming(cache.WarmConfig{
			Interval:    config.Seconds(cfg.Cache.Warm.IntervalSec),
			TopN:        cfg.Cache.Warm.TopN,
			Concurrency: cfg.Cache.Warm.Concurrency,
			LedgerTTL:   config.Seconds(cfg.Cache.Warm.LedgerTTLSec),
		}))
	}
	return opts, nil
}
