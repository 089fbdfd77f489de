package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	APIKeyHeader    = "X-API-Key"
	RequestIDHeader = "X-Request-ID"
)

func (h *Handler) ApiKeyCheck(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get(APIKeyHeader)
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(h.Cfg.Server.APIKey)) != 1 {
			h.logger(r).Info("rejected request", zap.String("path", r.URL.Path))
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized", Msg: "invalid API key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequestID tags every request with an id, reusing the caller's if present.
func (h *Handler) RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(RequestIDHeader, id)
		}
		w.Header().Set(RequestIDHeader, id)
		h.logger(r).Debug("request", zap.String("method", r.Method), zap.String("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}
