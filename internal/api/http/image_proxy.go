package apihttp

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const maxProxiedImageBytes = int64(20 * 1024 * 1024) // 20MB

var (
	imageSizes = map[string]struct{}{
		"w92": {}, "w154": {}, "w185": {}, "w300": {}, "w342": {},
		"w500": {}, "w780": {}, "w1280": {}, "original": {},
	}
	imagePathPattern = regexp.MustCompile(`^/[A-Za-z0-9_-]+\.(jpg|jpeg|png|webp)$`)
)

func (s *Server) handleImageProxy(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/discover/image" {
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

	imagePath := strings.TrimSpace(r.URL.Query().Get("path"))
	if !imagePathPattern.MatchString(imagePath) {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid image path")
		return
	}
	size := strings.TrimSpace(r.URL.Query().Get("size"))
	if size == "" {
		size = "w500"
	}
	if _, ok := imageSizes[size]; !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "unsupported image size")
		return
	}

	base, err := url.Parse(strings.TrimRight(s.catalog.ImageBaseURL(), "/"))
	if err != nil || base.Host == "" {
		writeError(w, http.StatusInternalServerError, "internal_error", "image host is not configured")
		return
	}
	target := base.String() + "/" + size + imagePath

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid image path")
		return
	}
	req.Header.Set("User-Agent", "screenscape-discovery/1.0")
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")

	resp, err := s.imageClient.Do(req)
	if err != nil {
		writeError(w, http.StatusBadGateway, "upstream_error", "failed to fetch image")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Upstream bodies are never forwarded.
		writeError(w, http.StatusBadGateway, "upstream_error", fmt.Sprintf("upstream returned HTTP %d", resp.StatusCode))
		return
	}
	if resp.Request != nil && resp.Request.URL != nil && !strings.EqualFold(resp.Request.URL.Host, base.Host) {
		writeError(w, http.StatusBadGateway, "upstream_error", "image redirected off host")
		return
	}

	if resp.ContentLength > maxProxiedImageBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "invalid_request", "image too large")
		return
	}

	limited := io.LimitReader(resp.Body, maxProxiedImageBytes)
	head := make([]byte, 512)
	n, readErr := io.ReadFull(limited, head)
	if readErr != nil && !errors.Is(readErr, io.ErrUnexpectedEOF) && !errors.Is(readErr, io.EOF) {
		writeError(w, http.StatusBadGateway, "upstream_error", "failed to read image")
		return
	}
	head = head[:n]

	contentType := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if contentType == "" {
		contentType = http.DetectContentType(head)
	}
	lowered := strings.ToLower(contentType)
	if !strings.HasPrefix(lowered, "image/") || strings.HasPrefix(lowered, "image/svg") {
		writeError(w, http.StatusBadGateway, "upstream_error", "not a raster image")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)

	_, _ = w.Write(head)
	_, _ = io.Copy(w, limited)
}

func newImageProxyClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil

	dialer := &net.Dialer{Timeout: 8 * time.Second, KeepAlive: 30 * time.Second}
	transport.DialContext = dialer.DialContext

	return &http.Client{
		Timeout:   12 * time.Second,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return errors.New("stopped after 5 redirects")
			}
			if req.URL == nil || len(via) == 0 {
				return errors.New("redirect missing url")
			}
			if !strings.EqualFold(req.URL.Host, via[0].URL.Host) {
				return errors.New("redirect leaves image host")
			}
			return nil
		},
	}
}
