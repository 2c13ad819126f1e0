package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/hospital-appointments/internal/domain/providers"
)

// CacheConfig holds cache configuration for specific routes
type CacheConfig struct {
	TTLSeconds int
	Enabled    bool
}

// CacheMiddleware provides HTTP response caching for public catalog reads
type CacheMiddleware struct {
	cache        providers.CacheProvider
	routeConfigs map[string]CacheConfig
}

// NewCacheMiddleware creates a new cache middleware
func NewCacheMiddleware(cache providers.CacheProvider) *CacheMiddleware {
	return &CacheMiddleware{
		cache: cache,
		routeConfigs: map[string]CacheConfig{
			"/api/categories": {TTLSeconds: 1800, Enabled: true}, // 30 minutes
			"/api/hospitals":  {TTLSeconds: 600, Enabled: true},  // 10 minutes (prefix match)
			"/api/doctors":    {TTLSeconds: 120, Enabled: true},  // 2 minutes (prefix match)
		},
	}
}

// Middleware returns the cache middleware handler
func (m *CacheMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only cache anonymous GET requests
		if r.Method != http.MethodGet || r.Header.Get("Authorization") != "" {
			next.ServeHTTP(w, r)
			return
		}

		if m.cache == nil {
			next.ServeHTTP(w, r)
			return
		}

		config := m.getRouteConfig(r.URL.Path)
		if !config.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		cacheKey := CacheKey(r)

		if cached, err := m.cache.Get(r.Context(), cacheKey); err == nil {
			log.Debug().Str("key", cacheKey).Msg("cache hit")
			w.Header().Set("X-Cache", "HIT")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write(cached)
			return
		}

		w.Header().Set("X-Cache", "MISS")

		recorder := &responseRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
			body:           &bytes.Buffer{},
		}

		next.ServeHTTP(recorder, r)

		// Only cache successful responses
		if recorder.statusCode == http.StatusOK && recorder.body.Len() > 0 {
			if err := m.cache.Set(r.Context(), cacheKey, recorder.body.Bytes(), config.TTLSeconds); err != nil {
				log.Warn().Err(err).Str("key", cacheKey).Msg("failed to cache response")
			}
		}
	})
}

// getRouteConfig gets the cache configuration for a route
func (m *CacheMiddleware) getRouteConfig(path string) CacheConfig {
	// Availability depends on the clock and is cached per slot key instead
	if strings.HasSuffix(path, "/slots") {
		return CacheConfig{Enabled: false}
	}

	if config, exists := m.routeConfigs[path]; exists {
		return config
	}

	// Prefix match for dynamic routes (e.g., /api/doctors/{id})
	for pattern, config := range m.routeConfigs {
		if strings.HasPrefix(path, pattern+"/") {
			return config
		}
	}

	return CacheConfig{Enabled: false}
}

// CacheKey builds the cache key of a request. The path stays readable so
// entries can be invalidated with patterns like "http:cache:*doctors/{id}*";
// the query string is hashed.
func CacheKey(r *http.Request) string {
	sum := sha256.Sum256([]byte(r.URL.RawQuery))
	return "http:cache:" + r.URL.Path + ":" + hex.EncodeToString(sum[:8])
}

// responseRecorder captures the response for caching
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
	written    bool
}

// WriteHeader captures the status code
func (r *responseRecorder) WriteHeader(statusCode int) {
	if !r.written {
		r.statusCode = statusCode
		r.ResponseWriter.WriteHeader(statusCode)
		r.written = true
	}
}

// Write captures the response body and writes to the client
func (r *responseRecorder) Write(data []byte) (int, error) {
	if !r.written {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(data)
	return r.ResponseWriter.Write(data)
}

// InvalidateCache removes cached responses whose key matches pattern
func (m *CacheMiddleware) InvalidateCache(r *http.Request, pattern string) error {
	if m.cache == nil {
		return nil
	}
	return m.cache.DeletePattern(r.Context(), pattern)
}

// InvalidateOnWrite drops cached catalog responses after a successful write to
// the same resource tree, so a PATCH is visible to the next anonymous GET.
func (m *CacheMiddleware) InvalidateOnWrite(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions || m.cache == nil {
			next.ServeHTTP(w, r)
			return
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		if rw.statusCode >= 300 {
			return
		}
		root := resourceRoot(r.URL.Path)
		if root == "" {
			return
		}
		if err := m.InvalidateCache(r, "http:cache:"+root+"*"); err != nil {
			log.Warn().Err(err).Str("root", root).Msg("failed to invalidate http cache")
		}
	})
}

func resourceRoot(path string) string {
	for pattern := range map[string]struct{}{"/api/categories": {}, "/api/hospitals": {}, "/api/doctors": {}} {
		if path == pattern || strings.HasPrefix(path, pattern+"/") {
			return pattern
		}
	}
	return ""
}
