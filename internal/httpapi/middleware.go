package httpapi

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

const apiKeyHeader = "X-API-Key"

// Middleware wraps a handler, for use in an alice chain
type Middleware func(http.Handler) http.Handler

// Recovery turns a panic in h into a 500 response and an error log line
// naming the request. http.ErrAbortHandler is re-raised.
func Recovery(logger *zap.SugaredLogger) Middleware {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(err)
				}
				logger.Errorw(fmt.Sprintf("Recovered from an error: %v", rec),
					"method", r.Method, "path", r.URL.Path)
				http.Error(w, "An internal error has occurred", http.StatusInternalServerError)
			}()
			h.ServeHTTP(w, r)
		})
	}
}

// Authorization requires the X-API-Key header to match apiKey. An empty
// apiKey disables the check.
func Authorization(apiKey string) Middleware {
	return func(h http.Handler) http.Handler {
		if apiKey == "" {
			return h
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get(apiKeyHeader)
			if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			h.ServeHTTP(w, r)
		})
	}
}
