package httpapi

import (
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"facequant/internal/metrics"
)

// knownPaths bounds the cardinality of the path label.
var knownPaths = map[string]bool{
	"/get-embedding":      true,
	"/compare-embeddings": true,
	"/healthz":            true,
	"/metrics":            true,
}

func pathLabel(path string) string {
	if knownPaths[path] {
		return path
	}
	return "other"
}

func withCORS(next http.Handler, origins []string) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(next)
}

func withAccessLog(next http.Handler, logger logrus.FieldLogger, m *metrics.Metrics) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snoop := httpsnoop.CaptureMetrics(next, w, r)
		m.ObserveRequest(pathLabel(r.URL.Path), r.Method, snoop.Code, snoop.Duration)
		logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   snoop.Code,
			"bytes":    snoop.Written,
			"duration": snoop.Duration,
		}).Info("request")
	})
}

// withRateLimit rejects requests beyond limit per second. A zero limit
// disables the check.
func withRateLimit(next http.Handler, limit float64, burst int) http.Handler {
	if limit <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(limit), burst)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Detail: "rate limit exceeded", Kind: "rate_limited"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
