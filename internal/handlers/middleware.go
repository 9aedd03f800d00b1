package handlers

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/checkfox/go_crm/internal/config"
)

// AuthMiddleware provides shared-secret authentication for write endpoints
type AuthMiddleware struct {
	config *config.Config
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(cfg *config.Config) *AuthMiddleware {
	return &AuthMiddleware{
		config: cfg,
	}
}

// Authenticate validates the shared secret header if authentication is enabled
func (m *AuthMiddleware) Authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !m.config.Auth.Enabled {
			next(w, r)
			return
		}

		correlationID := uuid.New().String()
		providedSecret := r.Header.Get("X-Shared-Secret")

		if providedSecret == "" {
			log.Printf("[%s] Authentication failed: missing X-Shared-Secret header", correlationID)
			respondUnauthorized(w, correlationID, "missing authentication header")
			return
		}

		if providedSecret != m.config.Auth.SharedSecret {
			log.Printf("[%s] Authentication failed: invalid shared secret", correlationID)
			respondUnauthorized(w, correlationID, "invalid authentication credentials")
			return
		}

		next(w, r)
	}
}

// respondUnauthorized sends a 401 Unauthorized response
func respondUnauthorized(w http.ResponseWriter, correlationID, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Correlation-ID", correlationID)
	w.WriteHeader(http.StatusUnauthorized)

	response := ErrorResponse{
		Error:         message,
		CorrelationID: correlationID,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("[%s] Failed to encode unauthorized response: %v", correlationID, err)
	}
}

// RecoveryMiddleware recovers from panics and returns 500 Internal Server Error
type RecoveryMiddleware struct{}

// NewRecoveryMiddleware creates a new RecoveryMiddleware
func NewRecoveryMiddleware() *RecoveryMiddleware {
	return &RecoveryMiddleware{}
}

// Recover wraps a handler with panic recovery
func (m *RecoveryMiddleware) Recover(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				correlationID := uuid.New().String()
				log.Printf("[%s] Panic recovered: %v", correlationID, err)

				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Correlation-ID", correlationID)
				w.WriteHeader(http.StatusInternalServerError)

				response := ErrorResponse{
					Error:         "internal server error",
					CorrelationID: correlationID,
				}

				if err := json.NewEncoder(w).Encode(response); err != nil {
					log.Printf("[%s] Failed to encode error response: %v", correlationID, err)
				}
			}
		}()

		next(w, r)
	}
}

// clientLimiter tracks one caller's token bucket
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitMiddleware applies a per-client token bucket to write endpoints
type RateLimitMiddleware struct {
	clients map[string]*clientLimiter
	mu      sync.Mutex
	rps     rate.Limit
	burst   int
}

// NewRateLimitMiddleware creates a new RateLimitMiddleware
func NewRateLimitMiddleware(cfg *config.Config) *RateLimitMiddleware {
	m := &RateLimitMiddleware{
		clients: make(map[string]*clientLimiter),
		rps:     rate.Limit(cfg.RateLimit.RequestsPerSecond),
		burst:   cfg.RateLimit.Burst,
	}
	go m.cleanupClients()
	return m
}

// Limit wraps a handler with per-client rate limiting keyed by remote IP
func (m *RateLimitMiddleware) Limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !m.allow(clientIP(r)) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(ErrorResponse{Error: "rate limit exceeded"})
			return
		}

		next(w, r)
	}
}

func (m *RateLimitMiddleware) allow(client string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.clients[client]
	if !exists {
		entry = &clientLimiter{limiter: rate.NewLimiter(m.rps, m.burst)}
		m.clients[client] = entry
	}
	entry.lastSeen = time.Now()

	return entry.limiter.Allow()
}

// cleanupClients periodically removes idle client entries
func (m *RateLimitMiddleware) cleanupClients() {
	for {
		time.Sleep(10 * time.Minute)
		m.mu.Lock()
		for client, entry := range m.clients {
			if time.Since(entry.lastSeen) > 30*time.Minute {
				delete(m.clients, client)
			}
		}
		m.mu.Unlock()
	}
}

// clientIP extracts the caller's IP, ignoring the port
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
