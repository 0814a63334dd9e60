// Package http exposes the fee ledger over a JSON API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"feeledger/internal/cache"
	"feeledger/internal/core"
	"feeledger/internal/services"
	"feeledger/internal/session"
)

// Credential is one login the server accepts.
type Credential struct {
	Password string
	Role     session.Role
}

// Server wires the ledger service into HTTP routes with auth, rate limiting,
// and a read cache for year summaries.
type Server struct {
	http.Server
	ledger      *services.LedgerService
	sessions    *session.Manager
	credentials map[string]Credential
	resolver    services.StatusResolver
	rateLimiter *rateLimiter

	academicYear string
	windowDays   int

	// Year summary lists are the read-heavy endpoint; cache them and
	// invalidate on any mutation for the year.
	summariesCache *cache.LRUCache[[]core.FeeSummary]
	cacheManager   *cache.Manager

	shutdownOnce sync.Once
}

// Options carries the reminder and session settings the handlers need.
type Options struct {
	AcademicYear string
	WindowDays   int
	Resolver     services.StatusResolver
	Credentials  map[string]Credential
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, ledger *services.LedgerService, sessions *session.Manager, opts Options) *Server {
	mux := http.NewServeMux()

	windowDays := opts.WindowDays
	if windowDays <= 0 {
		windowDays = services.DefaultUpcomingWindowDays
	}
	resolver := opts.Resolver
	if resolver == nil {
		resolver = services.DerivedResolver{}
	}

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		ledger:         ledger,
		sessions:       sessions,
		credentials:    opts.Credentials,
		resolver:       resolver,
		rateLimiter:    newRateLimiter(),
		academicYear:   opts.AcademicYear,
		windowDays:     windowDays,
		summariesCache: cache.NewLRUCache[[]core.FeeSummary](50, 5*time.Minute),
		cacheManager:   cache.NewManager(),
	}

	s.cacheManager.Register(s.summariesCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("POST /api/login", s.withSecurityHeaders(s.handleLogin))
	mux.HandleFunc("POST /api/logout", s.withSecurityHeaders(s.withAuth(s.handleLogout)))

	mux.HandleFunc("POST /api/fees", s.withSecurityHeaders(s.withRole(session.RoleAdmin, s.handleCreateFee)))
	mux.HandleFunc("GET /api/fees", s.withSecurityHeaders(s.withAuth(s.handleListFees)))
	mux.HandleFunc("GET /api/fees/{id}", s.withSecurityHeaders(s.withAuth(s.handleGetFee)))
	mux.HandleFunc("POST /api/fees/{id}/expenses", s.withSecurityHeaders(s.withAuth(s.handleAddExpense)))
	mux.HandleFunc("POST /api/fees/{id}/installments/{installmentID}/pay", s.withSecurityHeaders(s.withAuth(s.handlePayInstallment)))

	mux.HandleFunc("GET /api/reminders", s.withSecurityHeaders(s.withAuth(s.handleReminders)))
	mux.HandleFunc("GET /api/grades", s.withSecurityHeaders(s.withAuth(s.handleGrades)))

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withSecurityHeaders adds security headers, rate limiting, and request
// logging to responses.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", clientIP)
	}
}

type requestIDKey struct{}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) invalidateYear(year string) {
	s.summariesCache.Delete(year)
}

// invalidateFeeYear drops the cached summaries for the year the fee belongs
// to, which may differ from the server's configured year.
func (s *Server) invalidateFeeYear(ctx context.Context, feeID string) {
	fee, err := s.ledger.GetFee(ctx, feeID)
	if err != nil {
		// Without the fee we cannot tell which year went stale.
		s.invalidateYear(s.academicYear)
		return
	}
	s.invalidateYear(fee.AcademicYear)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
