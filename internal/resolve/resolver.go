package resolve

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"screenscape/discoveryservice/internal/domain"
	"screenscape/discoveryservice/internal/metrics"
)

const defaultMaxConcurrency = 8

// Searcher is the catalog search-by-name endpoint.
type Searcher interface {
	SearchEntities(ctx context.Context, kind domain.EntityKind, query string) ([]domain.Entity, error)
}

// Resolver maps entity names to catalog IDs. Only successful lookups are
// memoized; misses and failures are retried on the next call.
type Resolver struct {
	searcher       Searcher
	aliases        *AliasTable
	cache          *entityCache
	maxConcurrency int
	now            func() time.Time
	logger         *slog.Logger
}

type Option func(*resolverConfig)

type resolverConfig struct {
	cacheMaxEntries int
	cacheTTL        time.Duration
	maxConcurrency  int
	aliases         *AliasTable
	now             func() time.Time
	logger          *slog.Logger
}

func WithCacheMaxEntries(n int) Option {
	return func(c *resolverConfig) { c.cacheMaxEntries = n }
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(c *resolverConfig) { c.cacheTTL = ttl }
}

func WithMaxConcurrency(n int) Option {
	return func(c *resolverConfig) { c.maxConcurrency = n }
}

func WithAliases(aliases *AliasTable) Option {
	return func(c *resolverConfig) { c.aliases = aliases }
}

func WithClock(now func() time.Time) Option {
	return func(c *resolverConfig) { c.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *resolverConfig) { c.logger = logger }
}

func NewResolver(searcher Searcher, opts ...Option) *Resolver {
	cfg := resolverConfig{
		cacheMaxEntries: defaultCacheMaxEntries,
		cacheTTL:        defaultCacheTTL,
		maxConcurrency:  defaultMaxConcurrency,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.aliases == nil {
		cfg.aliases = NewAliasTable(nil)
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.maxConcurrency <= 0 {
		cfg.maxConcurrency = defaultMaxConcurrency
	}
	return &Resolver{
		searcher:       searcher,
		aliases:        cfg.aliases,
		cache:          newEntityCache(cfg.cacheMaxEntries, cfg.cacheTTL),
		maxConcurrency: cfg.maxConcurrency,
		now:            cfg.now,
		logger:         cfg.logger,
	}
}

// Resolve returns the ID of the catalog's first match for name. A miss or
// a failed lookup yields (0, false) and is never cached.
func (r *Resolver) Resolve(ctx context.Context, name string, kind domain.EntityKind) (int64, bool) {
	query := strings.TrimSpace(name)
	if query == "" {
		return 0, false
	}
	if kind == domain.EntityCompany {
		query = r.aliases.Normalize(query)
	}

	key := string(kind) + ":" + NormalizeName(query)
	if id, ok := r.cache.get(key, r.now()); ok {
		metrics.CacheHitsTotal.Inc()
		return id, true
	}
	metrics.CacheMissesTotal.Inc()

	entities, err := r.searcher.SearchEntities(ctx, kind, query)
	if err != nil {
		metrics.ResolverLookupsTotal.WithLabelValues(string(kind), "error").Inc()
		r.logger.Warn("entity lookup failed",
			slog.String("kind", string(kind)),
			slog.String("name", query),
			slog.String("error", err.Error()),
		)
		return 0, false
	}
	if len(entities) == 0 {
		metrics.ResolverLookupsTotal.WithLabelValues(string(kind), "miss").Inc()
		r.logger.Debug("entity not found",
			slog.String("kind", string(kind)),
			slog.String("name", query),
		)
		return 0, false
	}

	id := entities[0].ID
	metrics.ResolverLookupsTotal.WithLabelValues(string(kind), "found").Inc()
	r.cache.put(key, id, r.now())
	return id, true
}

// ResolveAll resolves names concurrently. Output keeps input order with
// misses dropped and repeated IDs collapsed. One failed lookup never
// cancels the others.
func (r *Resolver) ResolveAll(ctx context.Context, names []string, kind domain.EntityKind) []int64 {
	if len(names) == 0 {
		return nil
	}
	ids := make([]int64, len(names))
	found := make([]bool, len(names))

	var group errgroup.Group
	group.SetLimit(r.maxConcurrency)
	for i, name := range names {
		group.Go(func() error {
			ids[i], found[i] = r.Resolve(ctx, name, kind)
			return nil
		})
	}
	_ = group.Wait()

	out := make([]int64, 0, len(names))
	seen := make(map[int64]struct{}, len(names))
	for i, id := range ids {
		if !found[i] {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
