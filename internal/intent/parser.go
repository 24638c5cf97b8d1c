package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"screenscape/discoveryservice/internal/domain"
	"screenscape/discoveryservice/internal/metrics"
	"screenscape/discoveryservice/internal/quota"
)

const (
	minYear        = 1870
	maxFutureYears = 10
)

var (
	ErrIntentParse = errors.New("intent parse failed")
	ErrEmptyQuery  = errors.New("query is required")
)

// ParseError is returned when the model call fails or its reply does not
// conform to the response schema. The request cannot proceed.
type ParseError struct {
	Stage string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("intent parse failed (%s): %v", e.Stage, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) Is(target error) bool {
	return target == ErrIntentParse
}

// Generator is a text generation service constrained to JSON output.
type Generator interface {
	GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

type Quota interface {
	Reserve(ctx context.Context) (*quota.Reservation, error)
}

type Parser struct {
	generator Generator
	quota     Quota
	now       func() time.Time
	logger    *slog.Logger
}

type ParserOption func(*Parser)

func WithClock(now func() time.Time) ParserOption {
	return func(p *Parser) {
		if now != nil {
			p.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) ParserOption {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewParser(generator Generator, gate Quota, opts ...ParserOption) *Parser {
	parser := &Parser{
		generator: generator,
		quota:     gate,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(parser)
		}
	}
	return parser
}

type searchParams struct {
	Keywords   []string `json:"keywords"`
	Characters []string `json:"characters"`
	Genres     []string `json:"genres"`
	Actors     []string `json:"actors"`
	Directors  []string `json:"directors"`
	Companies  []string `json:"companies"`
	YearFrom   *int     `json:"year_from"`
	YearTo     *int     `json:"year_to"`
	SortBy     *string  `json:"sort_by"`
	MediaType  *string  `json:"media_type"`
}

type modelResponse struct {
	SearchParams  searchParams `json:"search_params"`
	ResponseTitle string       `json:"response_title"`
}

// Parse turns free text into a validated intent. It consumes one unit of
// quota per model call; a reply that fails validation still counts.
func (p *Parser) Parse(ctx context.Context, freeText string) (domain.ParsedIntent, error) {
	query := strings.TrimSpace(freeText)
	if query == "" {
		return domain.ParsedIntent{}, ErrEmptyQuery
	}

	reservation, err := p.quota.Reserve(ctx)
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues("rejected").Inc()
		return domain.ParsedIntent{}, err
	}

	startedAt := p.now()
	raw, err := p.generator.GenerateJSON(ctx, systemPrompt(), userPrompt(query))
	metrics.LLMRequestDuration.Observe(p.now().Sub(startedAt).Seconds())
	if err != nil {
		// Nothing was generated, so the call does not count.
		reservation.Release(ctx)
		metrics.LLMRequestsTotal.WithLabelValues("error").Inc()
		p.logger.Warn("intent generation failed",
			slog.String("query", truncate(query, 80)),
			slog.String("error", err.Error()),
		)
		return domain.ParsedIntent{}, &ParseError{Stage: "generate", Err: err}
	}

	payload := sanitizeJSONPayload(raw)
	if err := validatePayload(payload); err != nil {
		metrics.LLMRequestsTotal.WithLabelValues("invalid").Inc()
		p.logger.Warn("intent reply rejected",
			slog.String("query", truncate(query, 80)),
			slog.String("payload", truncate(payload, 200)),
			slog.String("error", err.Error()),
		)
		return domain.ParsedIntent{}, &ParseError{Stage: "validate", Err: err}
	}

	var response modelResponse
	if err := json.Unmarshal([]byte(payload), &response); err != nil {
		metrics.LLMRequestsTotal.WithLabelValues("invalid").Inc()
		return domain.ParsedIntent{}, &ParseError{Stage: "decode", Err: err}
	}
	metrics.LLMRequestsTotal.WithLabelValues("ok").Inc()

	parsed := domain.ParsedIntent{
		Intent:        p.toIntent(response.SearchParams, query),
		ResponseTitle: strings.TrimSpace(response.ResponseTitle),
	}
	p.logger.Debug("intent parsed",
		slog.String("query", truncate(query, 80)),
		slog.String("title", parsed.ResponseTitle),
		slog.Int("actors", len(parsed.Intent.Actors)),
		slog.Int("companies", len(parsed.Intent.Companies)),
		slog.Int("genres", len(parsed.Intent.Genres)),
	)
	return parsed, nil
}

func (p *Parser) toIntent(params searchParams, query string) domain.SearchIntent {
	intent := domain.SearchIntent{
		Keywords:      cleanList(params.Keywords),
		Characters:    cleanList(params.Characters),
		Genres:        cleanList(params.Genres),
		Actors:        cleanList(params.Actors),
		Directors:     cleanList(params.Directors),
		Companies:     cleanList(params.Companies),
		SortBy:        domain.SortByPopularity,
		MediaType:     domain.MediaTypeAll,
		OriginalQuery: query,
	}
	if params.SortBy != nil {
		intent.SortBy = domain.NormalizeSortBy(*params.SortBy)
	}
	if params.MediaType != nil {
		intent.MediaType = domain.NormalizeMediaType(*params.MediaType)
	}

	maxYear := p.now().Year() + maxFutureYears
	intent.YearFrom = validYear(params.YearFrom, maxYear)
	intent.YearTo = validYear(params.YearTo, maxYear)
	if intent.YearFrom != nil && intent.YearTo != nil && *intent.YearFrom > *intent.YearTo {
		intent.YearFrom, intent.YearTo = intent.YearTo, intent.YearFrom
	}
	return intent
}

func validYear(year *int, maxYear int) *int {
	if year == nil || *year < minYear || *year > maxYear {
		return nil
	}
	value := *year
	return &value
}

// cleanList trims values and drops empties and case-insensitive repeats,
// keeping the first spelling. The result is never nil.
func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	return out
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
