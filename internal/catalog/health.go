package catalog

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"screenscape/discoveryservice/internal/domain"
	"screenscape/discoveryservice/internal/metrics"
)

type endpointHealth struct {
	consecutiveFailures int
	lastError           string
	lastStatusCode      int
	lastSuccessAt       time.Time
	lastFailureAt       time.Time
	lastLatency         time.Duration
	lastTimeout         bool
	totalRequests       int64
	totalFailures       int64
	timeoutCount        int64
}

func (c *Client) recordResult(endpoint string, statusCode int, err error, latency time.Duration) {
	now := c.now()

	c.healthMu.Lock()
	defer c.healthMu.Unlock()

	state := c.health[endpoint]
	if state == nil {
		state = &endpointHealth{}
		c.health[endpoint] = state
	}
	state.totalRequests++
	state.lastStatusCode = statusCode
	if latency > 0 {
		state.lastLatency = latency
		metrics.CatalogRequestDuration.WithLabelValues(endpoint).Observe(latency.Seconds())
	}
	state.lastTimeout = isTimeoutLikeError(err)
	if state.lastTimeout {
		state.timeoutCount++
	}

	if err == nil {
		state.consecutiveFailures = 0
		state.lastError = ""
		state.lastSuccessAt = now
		metrics.CatalogRequestsTotal.WithLabelValues(endpoint, "ok").Inc()
		return
	}

	state.consecutiveFailures++
	state.totalFailures++
	state.lastFailureAt = now
	state.lastError = err.Error()

	status := "error"
	switch {
	case state.lastTimeout:
		status = "timeout"
	case statusCode > 0:
		status = strconv.Itoa(statusCode)
	}
	metrics.CatalogRequestsTotal.WithLabelValues(endpoint, status).Inc()
	c.logger.Warn("catalog request failed",
		slog.String("endpoint", endpoint),
		slog.Int("status", statusCode),
		slog.Int("consecutiveFailures", state.consecutiveFailures),
		slog.String("error", state.lastError),
	)
}

func isTimeoutLikeError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "timeout") || strings.Contains(value, "deadline exceeded")
}

// Diagnostics reports per-endpoint health observed since start-up.
func (c *Client) Diagnostics() []domain.EndpointDiagnostics {
	c.healthMu.Lock()
	defer c.healthMu.Unlock()

	items := make([]domain.EndpointDiagnostics, 0, len(c.health))
	for endpoint, state := range c.health {
		item := domain.EndpointDiagnostics{
			Endpoint:            endpoint,
			ConsecutiveFailures: state.consecutiveFailures,
			LastError:           state.lastError,
			LastStatusCode:      state.lastStatusCode,
			LastLatencyMS:       state.lastLatency.Milliseconds(),
			LastTimeout:         state.lastTimeout,
			TotalRequests:       state.totalRequests,
			TotalFailures:       state.totalFailures,
			TimeoutCount:        state.timeoutCount,
		}
		if !state.lastSuccessAt.IsZero() {
			lastSuccessAt := state.lastSuccessAt
			item.LastSuccessAt = &lastSuccessAt
		}
		if !state.lastFailureAt.IsZero() {
			lastFailureAt := state.lastFailureAt
			item.LastFailureAt = &lastFailureAt
		}
		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].Endpoint < items[j].Endpoint
	})
	return items
}
