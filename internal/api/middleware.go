// Package api - Middleware for authentication and request processing
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/alexbotov/cascade/internal/auth"
	"github.com/alexbotov/cascade/internal/domain"
	"github.com/alexbotov/cascade/internal/metrics"
	"go.uber.org/zap"
)

type ctxKey int

const (
	sessionKey ctxKey = iota
	playerKey
)

func sessionFrom(ctx context.Context) *domain.Session {
	session, _ := ctx.Value(sessionKey).(*domain.Session)
	return session
}

func playerFrom(ctx context.Context) *domain.Player {
	player, _ := ctx.Value(playerKey).(*domain.Player)
	return player
}

// withIdentity stores the authenticated session and player on ctx
func withIdentity(ctx context.Context, session *domain.Session, player *domain.Player) context.Context {
	ctx = context.WithValue(ctx, sessionKey, session)
	return context.WithValue(ctx, playerKey, player)
}

// bearerToken reads the token from the Authorization header, or from the
// token query parameter for websocket clients that cannot set headers
func bearerToken(r *http.Request) (string, string) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if token := r.URL.Query().Get("token"); token != "" {
			return token, ""
		}
		return "", "NO_TOKEN"
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", "INVALID_TOKEN_FORMAT"
	}
	return parts[1], ""
}

// AuthMiddleware validates JWT tokens and adds session/player to context
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, code := bearerToken(r)
		switch code {
		case "NO_TOKEN":
			respondError(w, http.StatusUnauthorized, code, "Authorization header required")
			return
		case "INVALID_TOKEN_FORMAT":
			respondError(w, http.StatusUnauthorized, code, "Invalid authorization header format")
			return
		}

		session, player, err := h.auth.ValidateToken(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrSessionExpired):
				respondError(w, http.StatusUnauthorized, "SESSION_EXPIRED", "Session has expired")
			case errors.Is(err, auth.ErrSessionNotFound):
				respondError(w, http.StatusUnauthorized, "SESSION_NOT_FOUND", "Session not found")
			default:
				respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid token")
			}
			return
		}

		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), session, player)))
	})
}

// statusRecorder captures the response status for request logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware writes one structured log line per request
func LoggingMiddleware(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// websocket upgrades need the raw writer for Hijack
			if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
				log.Info("websocket upgrade", zap.String("path", r.URL.Path), zap.String("remote_ip", getClientIP(r)))
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			log.Info("request",
				zap.String("method", r.Method),
				zap.String("route", metrics.RoutePath(r)),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_ip", getClientIP(r)))
		})
	}
}

// CORSMiddleware adds CORS headers
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Operator-Key, X-Operator-Name")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RecoveryMiddleware recovers from panics
func RecoveryMiddleware(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Error("panic serving request",
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.Any("panic", err),
						zap.Stack("stack"))
					respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
