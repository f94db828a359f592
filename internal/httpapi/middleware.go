package httpapi

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/jlynch25/kaizen_api/internal/lib/apperr"
	"github.com/jlynch25/kaizen_api/internal/lib/jwt"
	"github.com/jlynch25/kaizen_api/internal/services/auth"
)

const (
	traceHeader = "X-Trace-ID"

	MsgNoToken         = "No token"
	MsgTooManyRequests = "Too many requests"

	maxLimiters = 10000
)

type ctxKey int

const (
	claimsKey ctxKey = iota
	traceKey
	routeKey
)

// ClaimsFrom returns the token claims attached by requireAuth.
func ClaimsFrom(ctx context.Context) (*jwt.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*jwt.Claims)
	return c, ok && c != nil
}

func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey).(string)
	return id
}

// responseWriter captures the status code. It forwards Hijack so websocket
// upgrades work through the middleware chain.
type responseWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func wrap(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.status = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("httpapi: response does not support hijacking")
	}
	rw.status = http.StatusSwitchingProtocols
	rw.written = true
	return h.Hijack()
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.log.WithField("panic", rec).
					WithField("trace_id", TraceID(r.Context())).
					WithField("stack", string(debug.Stack())).
					Error("panic while serving request")
				s.writeJSON(w, http.StatusInternalServerError, errorBody{Error: apperr.Message(nil)})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// traceLog propagates or generates X-Trace-ID and writes one access log line per request.
func (s *Server) traceLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		traceID := r.Header.Get(traceHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		w.Header().Set(traceHeader, traceID)
		r = r.WithContext(context.WithValue(r.Context(), traceKey, traceID))

		rw := wrap(w)
		next.ServeHTTP(rw, r)

		entry := s.log.WithField("method", r.Method).
			WithField("path", r.URL.Path).
			WithField("status", rw.status).
			WithField("duration", time.Since(start).String()).
			WithField("trace_id", traceID)
		if rw.status >= http.StatusInternalServerError {
			entry.Error("request")
			return
		}
		entry.Info("request")
	})
}

// instrument records request metrics under the matched route template, which
// routeLabel fills in once the router has matched.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s.metrics.IncInFlight()
		defer s.metrics.DecInFlight()

		label := "unmatched"
		r = r.WithContext(context.WithValue(r.Context(), routeKey, &label))

		rw := wrap(w)
		next.ServeHTTP(rw, r)

		s.metrics.RecordHTTPRequest(r.Method, label, rw.status, time.Since(start))
	})
}

func routeLabel(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if label, ok := r.Context().Value(routeKey).(*string); ok {
			if route := mux.CurrentRoute(r); route != nil {
				if tmpl, err := route.GetPathTemplate(); err == nil {
					*label = tmpl
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

type corsPolicy struct {
	origins  map[string]bool
	suffixes []string
}

func newCORSPolicy(origins, suffixes []string) *corsPolicy {
	p := &corsPolicy{origins: make(map[string]bool, len(origins)), suffixes: suffixes}
	for _, o := range origins {
		p.origins[strings.TrimRight(o, "/")] = true
	}
	return p
}

// allowed matches exact origins, or any https origin ending in a configured
// suffix such as ".vercel.app".
func (p *corsPolicy) allowed(origin string) bool {
	if origin == "" {
		return false
	}
	if p.origins[origin] {
		return true
	}
	for _, suffix := range p.suffixes {
		if strings.HasPrefix(origin, "https://") && strings.HasSuffix(origin, suffix) {
			return true
		}
	}
	return false
}

func (p *corsPolicy) handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if p.allowed(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
			h.Set("Access-Control-Expose-Headers", traceHeader)
			h.Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkSocketOrigin lets non-browser clients (no Origin) and allowed origins upgrade.
func (s *Server) checkSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || s.cors.allowed(origin)
}

// requireAuth answers 401 unless the request carries a valid bearer token.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			s.writeError(w, r, apperr.Unauthorized(MsgNoToken))
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			s.writeError(w, r, apperr.Unauthorized(auth.MsgInvalidToken))
			return
		}

		claims, err := s.auth.Verify(strings.TrimSpace(token))
		if err != nil {
			s.log.WithField("trace_id", TraceID(r.Context())).Debug("rejected token")
			s.writeError(w, r, err)
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	}
}

func (s *Server) passThrough(next http.HandlerFunc) http.HandlerFunc { return next }

// callerID is empty on routes that do not require auth.
func callerID(r *http.Request) string {
	if c, ok := ClaimsFrom(r.Context()); ok {
		return c.ID
	}
	return ""
}

// rateLimiter keeps one token bucket per client IP.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// newRateLimiter returns nil, which allows everything, when rps is not positive.
func newRateLimiter(rps float64, burst int) *rateLimiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimiter{limiters: make(map[string]*rate.Limiter), rate: rate.Limit(rps), burst: burst}
}

func (rl *rateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	l, ok := rl.limiters[key]
	if !ok {
		if len(rl.limiters) >= maxLimiters {
			rl.limiters = make(map[string]*rate.Limiter)
		}
		l = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = l
	}
	return l
}

// rateLimited applies the per-IP auth limiter to next.
func (s *Server) rateLimited(next http.Handler) http.Handler {
	rl := s.limiter
	if rl == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.limiter(clientIP(r)).Allow() {
			w.Header().Set("Retry-After", "1")
			s.writeJSON(w, http.StatusTooManyRequests, errorBody{Error: MsgTooManyRequests})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
