// Package http exposes the bill collection as a JSON API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"splittab/internal/cache"
	"splittab/internal/core"
	applog "splittab/internal/log"
	"splittab/internal/services"
	"splittab/internal/sheets"
)

type Server struct {
	http.Server
	bills           *services.BillService
	reminders       *services.ReminderService
	exporter        sheets.BillExporter
	logger          *applog.Logger
	rateLimiter     *rateLimiter
	metrics         *securityMetrics
	freshnessWindow time.Duration

	// Derived aggregations are cheap to recompute but hit on every
	// dashboard refresh, so they get a short-TTL cache that is
	// flushed wholesale on writes.
	summaryCache *cache.LRUCache[core.Summary]
	rollupCache  *cache.LRUCache[[]core.RollupEntry]
	pageCache    *cache.LRUCache[services.BillPage]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and caches, returning a ready-to-run server.
func NewServer(addr string, bills *services.BillService, reminders *services.ReminderService, exporter sheets.BillExporter, freshnessWindow time.Duration) *Server {
	mux := http.NewServeMux()

	if freshnessWindow <= 0 {
		freshnessWindow = core.DefaultFreshnessWindow
	}

	logger := applog.New(applog.Config{
		Level:     slog.LevelInfo,
		Component: applog.ComponentHTTP,
	})

	s := &Server{
		Server: http.Server{
			Addr: addr,
		},
		bills:           bills,
		reminders:       reminders,
		exporter:        exporter,
		logger:          logger,
		rateLimiter:     newRateLimiter(),
		metrics:         &securityMetrics{},
		freshnessWindow: freshnessWindow,
		summaryCache:    cache.NewLRUCache[core.Summary](10, 5*time.Minute),
		rollupCache:     cache.NewLRUCache[[]core.RollupEntry](10, 5*time.Minute),
		pageCache:       cache.NewLRUCache[services.BillPage](200, 5*time.Minute),
		cacheManager:    cache.NewManager(),
	}

	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.Register(s.rollupCache)
	s.cacheManager.Register(s.pageCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/summary", s.withSecurityHeaders(s.handleSummary))
	mux.HandleFunc("GET /api/rollup", s.withSecurityHeaders(s.handleRollup))
	mux.HandleFunc("GET /api/rollup/{name}/debts", s.withSecurityHeaders(s.handleParticipantDebts))

	mux.HandleFunc("GET /api/bills", s.withSecurityHeaders(s.handleListBills))
	mux.HandleFunc("POST /api/bills", s.withSecurityHeaders(s.handleCreateBill))
	mux.HandleFunc("GET /api/bills/{id}", s.withSecurityHeaders(s.handleGetBill))
	mux.HandleFunc("PUT /api/bills/{id}", s.withSecurityHeaders(s.handleUpdateBill))
	mux.HandleFunc("DELETE /api/bills/{id}", s.withSecurityHeaders(s.handleDeleteBill))
	mux.HandleFunc("POST /api/bills/{id}/participants/{pid}/paid", s.withSecurityHeaders(s.handleParticipantPaid))
	mux.HandleFunc("POST /api/bills/{id}/archive", s.withSecurityHeaders(s.handleArchiveBill))
	mux.HandleFunc("POST /api/bills/{id}/unarchive", s.withSecurityHeaders(s.handleUnarchiveBill))

	mux.HandleFunc("GET /api/imported", s.withSecurityHeaders(s.handleListImported))
	mux.HandleFunc("POST /api/imported", s.withSecurityHeaders(s.handleReceiveImported))
	mux.HandleFunc("POST /api/imported/{id}/portion-paid", s.withSecurityHeaders(s.handleImportedPortionPaid))
	mux.HandleFunc("POST /api/imported/{id}/archive", s.withSecurityHeaders(s.handleImportedArchive))
	mux.HandleFunc("POST /api/imported/{id}/unarchive", s.withSecurityHeaders(s.handleImportedUnarchive))
	mux.HandleFunc("DELETE /api/imported/{id}", s.withSecurityHeaders(s.handleDeleteImported))

	mux.HandleFunc("POST /api/import", s.withSecurityHeaders(s.handleImport))
	mux.HandleFunc("GET /api/export", s.withSecurityHeaders(s.handleExport))
	mux.HandleFunc("POST /api/export/sheets", s.withSecurityHeaders(s.handleExportSheets))

	mux.HandleFunc("POST /api/reminders", s.withSecurityHeaders(s.handleReminders))

	// Every handler can pull the request-scoped logger back out of the
	// context via log.FromContext.
	s.Handler = applog.Middleware(logger)(mux)

	return s
}

// FlushCaches drops every cached aggregation. Wired as the archiver's
// post-commit hook and called after every mutating handler.
func (s *Server) FlushCaches() {
	s.cacheManager.FlushAll()
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.cacheManager != nil {
			s.cacheManager.Stop()
		}
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withSecurityHeaders adds security headers, rate limiting, and request logging.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		if detectSuspiciousRequest(r, s.metrics) {
			s.logger.WarnContext(ctx, "Suspicious request",
				applog.FieldRequestID, requestID,
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path,
				applog.FieldClientIP, clientIP)
		}

		s.logger.InfoContext(ctx, "Request started",
			applog.FieldRequestID, requestID,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldClientIP, clientIP,
			applog.FieldUserAgent, r.Header.Get("User-Agent"))

		// Rate limit mutations only; dashboard polling stays cheap.
		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP, s.metrics) {
			s.logger.WarnContext(ctx, "Rate limit exceeded",
				applog.FieldClientIP, clientIP,
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		fields := applog.NewFields().
			WithRequestID(requestID).
			WithClientIP(clientIP).
			WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent")).
			WithHTTPResponse(rw.statusCode, duration.Milliseconds(), rw.statusCode < 400)
		s.logger.InfoContext(ctx, "Request completed", fields.ToSlice()...)
	}
}

type contextKey string

const requestIDKey contextKey = "request_id"

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.bills.ListBills(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "storage not ready")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
