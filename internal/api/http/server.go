package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"screenscape/discoveryservice/internal/discovery"
	"screenscape/discoveryservice/internal/domain"
	"screenscape/discoveryservice/internal/intent"
	"screenscape/discoveryservice/internal/quota"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type DiscoveryService interface {
	Discover(ctx context.Context, query string, opts domain.DiscoverOptions) (domain.DiscoveryResponse, error)
	QuotaStatus(ctx context.Context) (domain.QuotaStatus, error)
	History() []domain.HistoryEntry
	ClearHistory()
}

type CatalogService interface {
	Enabled() bool
	ImageBaseURL() string
	Diagnostics() []domain.EndpointDiagnostics
}

type Server struct {
	discovery   DiscoveryService
	catalog     CatalogService
	imageClient *http.Client
	rateRPS     float64
	rateBurst   int
	logger      *slog.Logger
}

const maxPage = 500

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithCatalog(catalog CatalogService) ServerOption {
	return func(s *Server) {
		s.catalog = catalog
	}
}

func WithImageClient(client *http.Client) ServerOption {
	return func(s *Server) {
		s.imageClient = client
	}
}

func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		if rps > 0 && burst > 0 {
			s.rateRPS = rps
			s.rateBurst = burst
		}
	}
}

func NewServer(discoveryService DiscoveryService, options ...ServerOption) *Server {
	server := &Server{
		discovery: discoveryService,
		rateRPS:   20,
		rateBurst: 40,
		logger:    slog.Default(),
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	if server.imageClient == nil {
		server.imageClient = newImageProxyClient()
	}
	return server
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/discover/quota", s.handleQuota)
	mux.HandleFunc("/discover/history", s.handleHistory)
	mux.HandleFunc("/discover/image", s.handleImageProxy)
	mux.HandleFunc("/discover", s.handleDiscover)
	mux.HandleFunc("/catalog/health", s.handleCatalogHealth)
	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "discovery-service",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health"
		}),
	)
	return recoveryMiddleware(s.logger, rateLimitMiddleware(s.rateRPS, s.rateBurst, metricsMiddleware(requestIDMiddleware(traced))))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/discover" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.discovery == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "discovery service is not configured")
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "query is required")
		return
	}
	page, err := parsePositiveInt(r, "page", 1)
	if err != nil || page > maxPage {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid page")
		return
	}

	response, err := s.discovery.Discover(r.Context(), query, domain.DiscoverOptions{Page: page})
	if err != nil {
		s.logger.Warn("discover request failed",
			slog.String("query", truncate(query, 80)),
			slog.Int("page", page),
			slog.String("error", err.Error()),
		)
		s.writeDiscoverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) writeDiscoverError(w http.ResponseWriter, err error) {
	var exceeded *quota.ExceededError
	switch {
	case errors.As(err, &exceeded):
		writeQuotaExceeded(w, exceeded)
	case errors.Is(err, quota.ErrQuotaExceeded):
		writeError(w, http.StatusTooManyRequests, "quota_exceeded", err.Error())
	case errors.Is(err, discovery.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", "discovery timed out")
	case errors.Is(err, intent.ErrIntentParse):
		writeError(w, http.StatusBadGateway, "intent_parse_failed", "could not understand the request")
	case errors.Is(err, discovery.ErrCatalogUnavailable):
		writeError(w, http.StatusBadGateway, "catalog_unavailable", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func writeQuotaExceeded(w http.ResponseWriter, exceeded *quota.ExceededError) {
	retryAfter := int(math.Ceil(time.Until(exceeded.ResetTime).Seconds()))
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	writeJSON(w, http.StatusTooManyRequests, map[string]any{
		"error": map[string]any{
			"code":      "quota_exceeded",
			"message":   exceeded.Error(),
			"limit":     exceeded.Limit,
			"resetTime": exceeded.ResetTime.UTC(),
		},
	})
}

func (s *Server) handleQuota(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/discover/quota" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.discovery == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "discovery service is not configured")
		return
	}
	status, err := s.discovery.QuotaStatus(r.Context())
	if err != nil {
		if errors.Is(err, discovery.ErrQuotaNotConfigured) {
			writeError(w, http.StatusNotImplemented, "not_configured", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/discover/history" {
		http.NotFound(w, r)
		return
	}
	if s.discovery == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "discovery service is not configured")
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{
			"items": s.discovery.History(),
		})
	case http.MethodDelete:
		s.discovery.ClearHistory()
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCatalogHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/catalog/health" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.catalog == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "catalog client is not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"checkedAt": time.Now().UTC(),
		"enabled":   s.catalog.Enabled(),
		"items":     s.catalog.Diagnostics(),
	})
}

func parsePositiveInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, errors.New("invalid integer")
	}
	return value, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
