package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"screenscape/discoveryservice/internal/catalog"
	"screenscape/discoveryservice/internal/domain"
	"screenscape/discoveryservice/internal/intent"
	"screenscape/discoveryservice/internal/quota"
	"screenscape/discoveryservice/internal/resolve"
)

type scriptedGenerator struct {
	reply string
	calls atomic.Int32
}

func (g *scriptedGenerator) GenerateJSON(context.Context, string, string) (string, error) {
	g.calls.Add(1)
	return g.reply, nil
}

// fakeCatalogAPI serves the subset of the catalog API the pipeline uses.
type fakeCatalogAPI struct {
	mu          sync.Mutex
	hits        int
	entities    map[string]string
	discover    map[string]string
	failTV      bool
	failMovie   bool
	lastQueries map[string]map[string]string
}

func newFakeCatalogAPI() *fakeCatalogAPI {
	return &fakeCatalogAPI{
		entities:    make(map[string]string),
		discover:    make(map[string]string),
		lastQueries: make(map[string]map[string]string),
	}
}

func (f *fakeCatalogAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits++

	flat := make(map[string]string)
	for key := range r.URL.Query() {
		flat[key] = r.URL.Query().Get(key)
	}
	f.lastQueries[r.URL.Path] = flat

	switch {
	case strings.HasPrefix(r.URL.Path, "/search/"):
		key := strings.TrimPrefix(r.URL.Path, "/search/") + ":" + strings.ToLower(r.URL.Query().Get("query"))
		body, ok := f.entities[key]
		if !ok {
			body = `{"results":[]}`
		}
		_, _ = w.Write([]byte(body))
	case r.URL.Path == "/discover/movie" && f.failMovie, r.URL.Path == "/discover/tv" && f.failTV:
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status_code":43,"status_message":"Service offline."}`))
	case strings.HasPrefix(r.URL.Path, "/discover/"):
		body, ok := f.discover[strings.TrimPrefix(r.URL.Path, "/discover/")]
		if !ok {
			body = `{"results":[]}`
		}
		_, _ = w.Write([]byte(body))
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeCatalogAPI) hitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits
}

func (f *fakeCatalogAPI) query(path string) map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastQueries[path]
}

type pipeline struct {
	service   *Service
	api       *fakeCatalogAPI
	generator *scriptedGenerator
	gate      *quota.Gate
}

func newPipeline(t *testing.T, reply string, limit int) *pipeline {
	t.Helper()
	api := newFakeCatalogAPI()
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	client := catalog.NewClient(catalog.Config{
		APIKey:    "test-key",
		BaseURL:   server.URL,
		Client:    server.Client(),
		RateLimit: 1000,
	})
	gate := quota.NewGate(quota.NewMemoryStore(), quota.WithLimit(limit))
	generator := &scriptedGenerator{reply: reply}
	parser := intent.NewParser(generator, gate)
	compiler := NewCompiler(resolve.NewResolver(client))

	return &pipeline{
		service:   NewService(parser, compiler, client, WithQuota(gate)),
		api:       api,
		generator: generator,
		gate:      gate,
	}
}

func mustJSON(t *testing.T, value any) string {
	t.Helper()
	data, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

const marvelEvansReply = `{"search_params":{"keywords":[],"characters":[],"genres":[],"actors":["Chris Evans"],"directors":[],"companies":["Marvel"],"year_from":null,"year_to":null,"sort_by":"popularity.desc","media_type":"movie"},"response_title":"Marvel movies starring Chris Evans"}`

func TestDiscoverMarvelMovieStarringChrisEvans(t *testing.T) {
	p := newPipeline(t, marvelEvansReply, 10)
	p.api.entities["person:chris evans"] = `{"results":[{"id":16828,"name":"Chris Evans"}]}`
	p.api.entities["company:marvel studios"] = `{"results":[{"id":420,"name":"Marvel Studios"}]}`
	p.api.discover["movie"] = mustJSON(t, map[string]any{"results": []map[string]any{
		{"id": 1771, "title": "Captain America: The First Avenger", "release_date": "2011-07-22", "vote_average": 6.9},
		{"id": 24428, "title": "The Avengers", "release_date": "2012-04-25", "vote_average": 7.7},
	}})

	response, err := p.service.Discover(context.Background(), "A Marvel movie starring Chris Evans", domain.DiscoverOptions{})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}

	discover := p.api.query("/discover/movie")
	if discover["with_cast"] != "16828" || discover["with_companies"] != "420" || discover["sort_by"] != "popularity.desc" {
		t.Fatalf("unexpected discover query %v", discover)
	}
	if p.api.query("/discover/tv") != nil {
		t.Fatal("movie intent must not query tv")
	}
	if response.Title != "Marvel movies starring Chris Evans" || response.TotalItems != 2 {
		t.Fatalf("unexpected response %+v", response)
	}
	if response.Items[0].Type != domain.MediaTypeMovie || response.Items[0].ReleaseYear != "2011" {
		t.Fatalf("unexpected first item %+v", response.Items[0])
	}
	if len(response.Sources) != 1 || !response.Sources[0].OK || response.Sources[0].Count != 2 {
		t.Fatalf("unexpected sources %+v", response.Sources)
	}

	history := p.service.History()
	if len(history) != 1 || history[0].Query != "A Marvel movie starring Chris Evans" {
		t.Fatalf("unexpected history %+v", history)
	}
	status, _ := p.service.QuotaStatus(context.Background())
	if status.Used != 1 {
		t.Fatalf("expected one quota unit used, got %+v", status)
	}
}

func TestDiscoverQuotaExceededMakesNoNetworkCall(t *testing.T) {
	p := newPipeline(t, marvelEvansReply, 1)
	if _, err := p.gate.Reserve(context.Background()); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	_, err := p.service.Discover(context.Background(), "A Marvel movie starring Chris Evans", domain.DiscoverOptions{})
	if !errors.Is(err, quota.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	var exceeded *quota.ExceededError
	if !errors.As(err, &exceeded) || exceeded.ResetTime.IsZero() {
		t.Fatalf("expected reset time on quota error, got %v", err)
	}
	if p.generator.calls.Load() != 0 || p.api.hitCount() != 0 {
		t.Fatalf("expected no network calls, generator=%d catalog=%d", p.generator.calls.Load(), p.api.hitCount())
	}
	if len(p.service.History()) != 0 {
		t.Fatal("failed discovery must not be recorded in history")
	}
}

const sciFiReply = `{"search_params":{"keywords":["mind-bending"],"genres":["Science Fiction"],"companies":["A24"],"media_type":"all"},"response_title":"Mind-bending sci-fi from A24"}`

func TestDiscoverInterleavesAndDegradesPerMediaType(t *testing.T) {
	p := newPipeline(t, sciFiReply, 10)
	p.api.entities["company:a24"] = `{"results":[{"id":41077,"name":"A24"}]}`
	p.api.discover["movie"] = `{"results":[{"id":1,"title":"m1"},{"id":2,"title":"m2"},{"id":3,"title":"m3"}]}`
	p.api.discover["tv"] = `{"results":[{"id":9,"name":"t1"}]}`

	response, err := p.service.Discover(context.Background(), "a mind-bending sci-fi movie from A24", domain.DiscoverOptions{})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	var order []string
	for _, item := range response.Items {
		order = append(order, item.Title)
	}
	if strings.Join(order, ",") != "m1,t1,m2,m3" {
		t.Fatalf("unexpected order %v", order)
	}
	movie := p.api.query("/discover/movie")
	if movie["with_genres"] != "878" || movie["with_companies"] != "41077" {
		t.Fatalf("unexpected movie query %v", movie)
	}
	if _, ok := movie["with_keywords"]; ok {
		t.Fatalf("unresolved keyword must be dropped, got %v", movie)
	}
	if p.api.query("/discover/tv")["with_genres"] != "10765" {
		t.Fatalf("unexpected tv query %v", p.api.query("/discover/tv"))
	}

	p.api.failTV = true
	degraded, err := p.service.Discover(context.Background(), "a mind-bending sci-fi movie from A24", domain.DiscoverOptions{})
	if err != nil {
		t.Fatalf("expected partial result, got %v", err)
	}
	if degraded.TotalItems != 3 || len(degraded.Sources) != 2 || degraded.Sources[1].OK || degraded.Sources[1].Error == "" {
		t.Fatalf("unexpected degraded response %+v", degraded)
	}
}

func TestDiscoverAllCatalogCallsFailing(t *testing.T) {
	p := newPipeline(t, sciFiReply, 10)
	p.api.failMovie = true
	p.api.failTV = true

	_, err := p.service.Discover(context.Background(), "sci-fi", domain.DiscoverOptions{})
	if !errors.Is(err, ErrCatalogUnavailable) || !errors.Is(err, catalog.ErrRequestFailed) {
		t.Fatalf("expected catalog failure, got %v", err)
	}
	var statusErr *catalog.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable || statusErr.Message != "Service offline." {
		t.Fatalf("expected status and message to propagate, got %v", err)
	}
}

func TestDiscoverIntentFailureAborts(t *testing.T) {
	p := newPipeline(t, `{"search_params":{}}`, 10)
	_, err := p.service.Discover(context.Background(), "anything", domain.DiscoverOptions{})
	if !errors.Is(err, intent.ErrIntentParse) {
		t.Fatalf("expected ErrIntentParse, got %v", err)
	}
	if p.api.hitCount() != 0 {
		t.Fatal("catalog must not be queried after a parse failure")
	}
}

func TestDiscoverRejectsInvalidQuery(t *testing.T) {
	p := newPipeline(t, marvelEvansReply, 10)
	if _, err := p.service.Discover(context.Background(), "  ", domain.DiscoverOptions{}); !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
	long := strings.Repeat("a", MaxQueryLength+1)
	if _, err := p.service.Discover(context.Background(), long, domain.DiscoverOptions{}); !errors.Is(err, ErrQueryTooLong) || !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("expected ErrQueryTooLong, got %v", err)
	}
	if p.generator.calls.Load() != 0 {
		t.Fatal("invalid query must not reach the model")
	}
}

func TestQuotaStatusWithoutGate(t *testing.T) {
	svc := NewService(nil, nil, nil)
	if _, err := svc.QuotaStatus(context.Background()); !errors.Is(err, ErrQuotaNotConfigured) {
		t.Fatalf("expected ErrQuotaNotConfigured, got %v", err)
	}
}
