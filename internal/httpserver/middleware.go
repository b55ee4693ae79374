package httpserver

import (
	"context"
	"net/http"
	"strings"
	"time"

	"spot-sandbox/internal/httputil"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type ctxKey string

const accountKey ctxKey = "account"

// WithAPIKey resolves the calling account from the API-Key header. The key
// is the account identifier; request signatures are not verified.
func WithAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get("API-Key"))
		if key == "" {
			httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Envelope{
				Error:  []string{"EAPI:Invalid key"},
				Result: map[string]any{},
			})
			return
		}
		ctx := context.WithValue(r.Context(), accountKey, key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func AccountID(r *http.Request) (string, bool) {
	v := r.Context().Value(accountKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// RequestLogger logs one line per request once the response is written.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.String("account", strings.TrimSpace(r.Header.Get("API-Key"))),
				zap.Duration("elapsed", time.Since(start)))
		})
	}
}
