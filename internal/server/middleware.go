package server

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/gameroom/internal/models"
	"golang.org/x/time/rate"
)

// authKeyHeader carries the shared API key.
const authKeyHeader = "auth_key"

// GetRealIP attempts to determine the client's real IP address, trusting
// headers like CF-Connecting-IP or X-Forwarded-For if configured to do so.
func GetRealIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if cf := r.Header.Get("CF-Connecting-IP"); cf != "" {
			return cf
		}
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			return strings.TrimSpace(parts[0])
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return ip
}

// AuthKey returns the caller key from the auth_key header, falling back to a Bearer token.
func AuthKey(r *http.Request) string {
	if key := r.Header.Get(authKeyHeader); key != "" {
		return key
	}

	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}

	return ""
}

type limitedClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPLimiter(count int, window time.Duration) *ipLimiter {
	return &ipLimiter{
		clients: make(map[string]*limitedClient),
		count:   count,
		window:  window,
	}
}

// allow consumes one token of the bucket bound to ip.
func (l *ipLimiter) allow(ip string, now time.Time) bool {
	l.mu.Lock()
	cli, found := l.clients[ip]
	if !found {
		limit := rate.Limit(float64(l.count) / l.window.Seconds())
		cli = &limitedClient{limiter: rate.NewLimiter(limit, l.count)}
		l.clients[ip] = cli
	}
	cli.lastSeen = now
	limiter := cli.limiter
	l.mu.Unlock()

	return limiter.AllowN(now, 1)
}

// gc drops clients idle for longer than maxIdle.
func (l *ipLimiter) gc(now time.Time, maxIdle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for ip, c := range l.clients {
		if now.Sub(c.lastSeen) > maxIdle {
			delete(l.clients, ip)
		}
	}
}

// RateLimitMiddleware applies a hard rate limit based on the client's IP address.
// It rejects requests with "429 Too Many Requests" if the limit is exceeded.
func (s *Server) RateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(GetRealIP(r, s.trustProxy), time.Now()) {
			zerolog.Ctx(r.Context()).Warn().Msg("Dropped by rate limit")
			writeJSON(w, http.StatusTooManyRequests, models.NewErrorResponse(http.StatusTooManyRequests, "Too many requests"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// LoggingMiddleware attaches a request scoped logger to the context and logs the
// details of each HTTP request, including method, path, IP, status, and duration.
func (s *Server) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		l := log.With().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("ip", GetRealIP(r, s.trustProxy)).
			Logger()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(l.WithContext(r.Context())))

		l.Debug().
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}
