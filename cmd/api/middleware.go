package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gofrs/uuid/v5"
)

type contextKey string

const correlationKey contextKey = "correlation_id"

const apiKeyHeader = "X-API-KEY"

var errInvalidAPIKey = errors.New("invalid or missing API key")

func (s *Server) correlationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = generateCorrelationID()
		}
		w.Header().Set("X-Request-Id", reqID)
		ctx := context.WithValue(r.Context(), correlationKey, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// apiKeyMiddleware rejects requests whose X-API-KEY header does not match the configured key.
// With no key configured every request passes.
func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	if s.cfg.APIKey == "" {
		return next
	}
	expected := []byte(s.cfg.APIKey)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if subtle.ConstantTimeCompare([]byte(r.Header.Get(apiKeyHeader)), expected) != 1 {
			s.writeError(w, http.StatusUnauthorized, errInvalidAPIKey)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func generateCorrelationID() string {
	return uuid.Must(uuid.NewV4()).String()
}

func correlationIDFromContext(ctx context.Context) string {
	if value, ok := ctx.Value(correlationKey).(string); ok {
		return value
	}
	return ""
}
