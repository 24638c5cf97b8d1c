package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"screenscape/discoveryservice/internal/domain"
)

const (
	MaxQueryLength = 500
	defaultTimeout = 15 * time.Second
)

var (
	ErrInvalidQuery       = errors.New("query is required")
	ErrQueryTooLong       = fmt.Errorf("%w: query too long (max %d characters)", ErrInvalidQuery, MaxQueryLength)
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	ErrQuotaNotConfigured = errors.New("quota gate is not configured")
)

type IntentParser interface {
	Parse(ctx context.Context, freeText string) (domain.ParsedIntent, error)
}

type QueryCompiler interface {
	Compile(ctx context.Context, intent domain.SearchIntent, opts domain.DiscoverOptions) []domain.DiscoverRequest
}

type Catalog interface {
	Discover(ctx context.Context, request domain.DiscoverRequest) ([]domain.MediaRecord, error)
}

type QuotaChecker interface {
	Check(ctx context.Context) (domain.QuotaStatus, error)
}

// Service runs the discovery pipeline: parse, compile, fetch per media
// type, merge.
type Service struct {
	parser   IntentParser
	compiler QueryCompiler
	catalog  Catalog
	quota    QuotaChecker
	history  *History
	timeout  time.Duration
	logger   *slog.Logger
}

type ServiceOption func(*Service)

func WithTimeout(timeout time.Duration) ServiceOption {
	return func(s *Service) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithHistory(history *History) ServiceOption {
	return func(s *Service) {
		s.history = history
	}
}

func WithQuota(quota QuotaChecker) ServiceOption {
	return func(s *Service) {
		s.quota = quota
	}
}

func NewService(parser IntentParser, compiler QueryCompiler, catalog Catalog, opts ...ServiceOption) *Service {
	svc := &Service{
		parser:   parser,
		compiler: compiler,
		catalog:  catalog,
		history:  NewHistory(defaultHistoryMaxEntries),
		timeout:  defaultTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Discover answers a free-text request with a merged list of catalog
// records. Quota and intent errors abort the request; a failing media type
// only degrades it unless every catalog call fails.
func (s *Service) Discover(ctx context.Context, query string, opts domain.DiscoverOptions) (domain.DiscoveryResponse, error) {
	normalized := strings.TrimSpace(query)
	if normalized == "" {
		return domain.DiscoveryResponse{}, ErrInvalidQuery
	}
	if utf8.RuneCountInString(normalized) > MaxQueryLength {
		return domain.DiscoveryResponse{}, ErrQueryTooLong
	}

	runCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	startedAt := time.Now()
	parsed, err := s.parser.Parse(runCtx, normalized)
	if err != nil {
		return domain.DiscoveryResponse{}, fmt.Errorf("parse intent: %w", err)
	}

	requests := s.compiler.Compile(runCtx, parsed.Intent, opts)
	results := make([][]domain.MediaRecord, len(requests))
	statuses := make([]domain.SourceStatus, len(requests))
	errs := make([]error, len(requests))

	// Children never return an error so one failing media type cannot
	// cancel the other.
	var group errgroup.Group
	for i, request := range requests {
		group.Go(func() error {
			items, err := s.catalog.Discover(runCtx, request)
			results[i] = items
			errs[i] = err
			statuses[i] = domain.SourceStatus{
				MediaType: request.MediaType,
				OK:        err == nil,
				Count:     len(items),
			}
			if err != nil {
				statuses[i].Error = err.Error()
			}
			return nil
		})
	}
	_ = group.Wait()

	perType := make(map[domain.MediaType][]domain.MediaRecord, len(requests))
	var firstErr error
	failed := 0
	for i, request := range requests {
		if errs[i] != nil {
			failed++
			if firstErr == nil {
				firstErr = errs[i]
			}
			s.logger.Warn("discover request failed",
				slog.String("mediaType", string(request.MediaType)),
				slog.String("error", errs[i].Error()),
			)
			continue
		}
		perType[request.MediaType] = results[i]
	}
	if len(requests) > 0 && failed == len(requests) {
		return domain.DiscoveryResponse{}, fmt.Errorf("%w: %w", ErrCatalogUnavailable, firstErr)
	}

	items := Merge(perType)
	if s.history != nil {
		s.history.Add(normalized)
	}

	response := domain.DiscoveryResponse{
		Query:      normalized,
		Title:      parsed.ResponseTitle,
		Intent:     parsed.Intent,
		Items:      items,
		Sources:    statuses,
		TotalItems: len(items),
		ElapsedMS:  time.Since(startedAt).Milliseconds(),
	}
	s.logger.Info("discovery completed",
		slog.String("query", truncate(normalized, 80)),
		slog.String("title", parsed.ResponseTitle),
		slog.Int("requests", len(requests)),
		slog.Int("failedRequests", failed),
		slog.Int("totalItems", response.TotalItems),
		slog.Int64("elapsedMs", response.ElapsedMS),
	)
	return response, nil
}

func (s *Service) QuotaStatus(ctx context.Context) (domain.QuotaStatus, error) {
	if s.quota == nil {
		return domain.QuotaStatus{}, ErrQuotaNotConfigured
	}
	return s.quota.Check(ctx)
}

func (s *Service) History() []domain.HistoryEntry {
	if s.history == nil {
		return []domain.HistoryEntry{}
	}
	return s.history.Entries()
}

func (s *Service) ClearHistory() {
	if s.history != nil {
		s.history.Clear()
	}
}

func truncate(value string, limit int) string {
	if limit <= 0 || len(value) <= limit {
		return value
	}
	if limit <= 3 {
		return value[:limit]
	}
	return value[:limit-3] + "..."
}
