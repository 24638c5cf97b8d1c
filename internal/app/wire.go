package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"screenscape/discoveryservice/internal/catalog"
	"screenscape/discoveryservice/internal/discovery"
	"screenscape/discoveryservice/internal/intent"
	"screenscape/discoveryservice/internal/llm"
	"screenscape/discoveryservice/internal/quota"
	"screenscape/discoveryservice/internal/resolve"
)

// Pipeline holds the wired components shared by the server and the CLI.
type Pipeline struct {
	Service *discovery.Service
	Catalog *catalog.Client
	Quota   *quota.Gate
	Model   *llm.Model

	closeQuota func() error
}

func (p *Pipeline) Close() error {
	if p == nil || p.closeQuota == nil {
		return nil
	}
	return p.closeQuota()
}

// BuildQuotaGate wires only the daily quota gate. Redis is preferred; the
// local state file is used when Redis is not configured or not reachable.
func BuildQuotaGate(ctx context.Context, cfg Config, logger *slog.Logger) (*quota.Gate, func() error) {
	if logger == nil {
		logger = slog.Default()
	}
	closeFn := func() error { return nil }

	var store quota.Store
	if redisClient := connectRedis(ctx, cfg.RedisURL, logger); redisClient != nil {
		redisStore := quota.NewRedisStore(redisClient, cfg.QuotaKey)
		logger.Info("quota stored in redis", slog.String("key", redisStore.Key()))
		store = redisStore
		closeFn = redisClient.Close
	} else if path := strings.TrimSpace(cfg.QuotaStatePath); path != "" {
		fileStore := quota.NewFileStore(path, cfg.QuotaKey)
		logger.Info("quota stored on disk", slog.String("path", fileStore.Path()))
		store = fileStore
	} else {
		logger.Warn("no quota store configured, quota is process-local")
		store = quota.NewMemoryStore()
	}

	gate := quota.NewGate(store,
		quota.WithLimit(cfg.AIDailyLimit),
		quota.WithLogger(logger),
	)
	return gate, closeFn
}

func BuildPipeline(ctx context.Context, cfg Config, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}

	gate, closeQuota := BuildQuotaGate(ctx, cfg, logger)

	catalogClient := catalog.NewClient(catalog.Config{
		APIKey:       cfg.TMDBAPIKey,
		BaseURL:      cfg.TMDBBaseURL,
		ImageBaseURL: cfg.TMDBImageBaseURL,
		Language:     cfg.TMDBLanguage,
		Client:       newTracedClient(10 * time.Second),
		RateLimit:    cfg.TMDBRateLimitRPS,
		Logger:       logger,
	})
	if !catalogClient.Enabled() {
		logger.Warn("tmdb api key not configured, catalog calls will fail")
	}

	model, err := llm.NewModel(ctx, llm.Config{
		Provider:   llm.Provider(cfg.LLMProvider),
		Model:      cfg.LLMModel,
		APIKey:     cfg.LLMAPIKey,
		BaseURL:    cfg.LLMBaseURL,
		OllamaHost: cfg.OllamaHost,
		HTTPClient: newTracedClient(cfg.LLMTimeout),
	})
	if err != nil {
		_ = closeQuota()
		return nil, fmt.Errorf("init llm: %w", err)
	}
	logger.Info("llm model initialized",
		slog.String("provider", string(model.Provider())),
		slog.String("model", model.Model()),
	)

	resolver := resolve.NewResolver(catalogClient,
		resolve.WithCacheMaxEntries(cfg.ResolverCacheMaxEntries),
		resolve.WithCacheTTL(cfg.ResolverCacheTTL),
		resolve.WithMaxConcurrency(cfg.ResolverMaxConcurrency),
		resolve.WithLogger(logger),
	)
	parser := intent.NewParser(model, gate, intent.WithLogger(logger))
	service := discovery.NewService(parser, discovery.NewCompiler(resolver), catalogClient,
		discovery.WithTimeout(cfg.RequestTimeout),
		discovery.WithHistory(discovery.NewHistory(cfg.HistoryMaxEntries)),
		discovery.WithQuota(gate),
		discovery.WithLogger(logger),
	)

	return &Pipeline{
		Service: service,
		Catalog: catalogClient,
		Quota:   gate,
		Model:   model,

		closeQuota: closeQuota,
	}, nil
}

func connectRedis(ctx context.Context, rawURL string, logger *slog.Logger) *redis.Client {
	redisURL := strings.TrimSpace(rawURL)
	if redisURL == "" {
		logger.Debug("redis not configured")
		return nil
	}
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("invalid redis url, using local quota store", slog.String("error", err.Error()))
		return nil
	}
	client := redis.NewClient(redisOpts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis not reachable, using local quota store", slog.String("error", err.Error()))
		_ = client.Close()
		return nil
	}
	logger.Info("redis connected", slog.String("addr", redisOpts.Addr))
	return client
}

func newTracedClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}
