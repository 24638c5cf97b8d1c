package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"screenscape/discoveryservice/internal/domain"
)

const (
	defaultBaseURL      = "https://api.themoviedb.org/3"
	defaultImageBaseURL = "https://image.tmdb.org/t/p"
	defaultLanguage     = "en-US"
	defaultRateLimit    = 40
	posterSize          = "w500"
	backdropSize        = "w1280"
	maxResponseBytes    = 2 * 1024 * 1024
)

var (
	ErrRequestFailed = errors.New("catalog request failed")
	ErrNotConfigured = errors.New("catalog api key is not configured")
)

// StatusError is a non-2xx answer from the catalog.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("catalog request failed: %s: HTTP %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("catalog request failed: %s: %d %s", e.Endpoint, e.StatusCode, e.Message)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrRequestFailed
}

type Client struct {
	apiKey       string
	baseURL      string
	imageBaseURL string
	language     string
	http         *http.Client
	limiter      *rate.Limiter
	logger       *slog.Logger
	now          func() time.Time

	healthMu sync.Mutex
	health   map[string]*endpointHealth
}

type Config struct {
	APIKey       string
	BaseURL      string
	ImageBaseURL string
	Language     string
	Client       *http.Client
	// RateLimit is requests per second; zero uses the default.
	RateLimit float64
	Logger    *slog.Logger
}

type searchResponse struct {
	Results []domain.Entity `json:"results"`
}

type discoverItem struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title,omitempty"`
	Name         string  `json:"name,omitempty"`
	Overview     string  `json:"overview,omitempty"`
	PosterPath   string  `json:"poster_path,omitempty"`
	BackdropPath string  `json:"backdrop_path,omitempty"`
	VoteAverage  float64 `json:"vote_average,omitempty"`
	Popularity   float64 `json:"popularity,omitempty"`
	ReleaseDate  string  `json:"release_date,omitempty"`
	FirstAirDate string  `json:"first_air_date,omitempty"`
}

type discoverResponse struct {
	Page    int            `json:"page"`
	Results []discoverItem `json:"results"`
}

type errorResponse struct {
	StatusMessage string `json:"status_message"`
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	imageBaseURL := strings.TrimSpace(cfg.ImageBaseURL)
	if imageBaseURL == "" {
		imageBaseURL = defaultImageBaseURL
	}
	language := strings.TrimSpace(cfg.Language)
	if language == "" {
		language = defaultLanguage
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	rps := cfg.RateLimit
	if rps <= 0 {
		rps = defaultRateLimit
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		apiKey:       strings.TrimSpace(cfg.APIKey),
		baseURL:      strings.TrimRight(baseURL, "/"),
		imageBaseURL: strings.TrimRight(imageBaseURL, "/"),
		language:     language,
		http:         httpClient,
		limiter:      rate.NewLimiter(rate.Limit(rps), int(math.Max(1, math.Ceil(rps)))),
		logger:       logger,
		now:          time.Now,
		health:       make(map[string]*endpointHealth),
	}
}

func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// ImageBaseURL is the host prefix poster and backdrop refs are built on.
func (c *Client) ImageBaseURL() string {
	return c.imageBaseURL
}

// SearchEntities looks an entity up by name. Results are in catalog
// relevance order.
func (c *Client) SearchEntities(ctx context.Context, kind domain.EntityKind, query string) ([]domain.Entity, error) {
	switch kind {
	case domain.EntityPerson, domain.EntityCompany, domain.EntityKeyword:
	default:
		return nil, fmt.Errorf("unsupported entity kind %q", kind)
	}
	params := url.Values{"query": {strings.TrimSpace(query)}}
	var response searchResponse
	if err := c.get(ctx, "search/"+string(kind), params, &response); err != nil {
		return nil, err
	}
	return response.Results, nil
}

// Discover runs one compiled discover request and normalizes the results.
func (c *Client) Discover(ctx context.Context, request domain.DiscoverRequest) ([]domain.MediaRecord, error) {
	mediaType := request.MediaType
	if mediaType != domain.MediaTypeMovie && mediaType != domain.MediaTypeTV {
		return nil, fmt.Errorf("discover needs a concrete media type, got %q", mediaType)
	}
	var response discoverResponse
	if err := c.get(ctx, "discover/"+string(mediaType), request.Values(), &response); err != nil {
		return nil, err
	}
	records := make([]domain.MediaRecord, 0, len(response.Results))
	for _, item := range response.Results {
		records = append(records, c.toRecord(item, mediaType))
	}
	return records, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if !c.Enabled() {
		return ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("catalog rate limit wait: %w", err)
	}

	query := url.Values{}
	for key, value := range params {
		query[key] = value
	}
	query.Set("language", c.language)
	// v4 read access tokens are JWTs and go in the Authorization header.
	bearer := strings.HasPrefix(c.apiKey, "eyJ")
	if !bearer {
		query.Set("api_key", c.apiKey)
	}

	reqURL := c.baseURL + "/" + endpoint + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if bearer {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	startedAt := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.recordResult(endpoint, 0, err, c.now().Sub(startedAt))
		return fmt.Errorf("%w: %s: %w", ErrRequestFailed, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		statusErr := &StatusError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Message:    statusMessage(body),
		}
		c.recordResult(endpoint, resp.StatusCode, statusErr, c.now().Sub(startedAt))
		return statusErr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.recordResult(endpoint, resp.StatusCode, err, c.now().Sub(startedAt))
		return fmt.Errorf("%w: %s: %w", ErrRequestFailed, endpoint, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		err = fmt.Errorf("%w: decode %s response: %w", ErrRequestFailed, endpoint, err)
		c.recordResult(endpoint, resp.StatusCode, err, c.now().Sub(startedAt))
		return err
	}
	c.recordResult(endpoint, resp.StatusCode, nil, c.now().Sub(startedAt))
	return nil
}

func statusMessage(body []byte) string {
	var payload errorResponse
	if err := json.Unmarshal(body, &payload); err == nil && payload.StatusMessage != "" {
		return payload.StatusMessage
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

func (c *Client) toRecord(item discoverItem, mediaType domain.MediaType) domain.MediaRecord {
	title := item.Title
	if title == "" {
		title = item.Name
	}
	date := item.ReleaseDate
	if date == "" {
		date = item.FirstAirDate
	}
	year := ""
	if len(date) >= 4 {
		year = date[:4]
	}
	record := domain.MediaRecord{
		ID:          item.ID,
		Title:       title,
		Type:        mediaType,
		Overview:    item.Overview,
		Popularity:  item.Popularity,
		VoteAverage: math.Round(item.VoteAverage*10) / 10,
		ReleaseDate: date,
		ReleaseYear: year,
	}
	if item.PosterPath != "" {
		record.PosterRef = c.imageBaseURL + "/" + posterSize + item.PosterPath
	}
	if item.BackdropPath != "" {
		record.BackdropRef = c.imageBaseURL + "/" + backdropSize + item.BackdropPath
	}
	return record
}
