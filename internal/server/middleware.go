package server

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type contextKey string

const requestIDKey contextKey = "requestID"

// maxRequestIDLength bounds client supplied X-Request-ID values
const maxRequestIDLength = 64

// LoggingMiddleware logs every served request with the wiki page and
// action it addressed. Server errors log at warning level.
func LoggingMiddleware(articlePath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			entry := requestLog(r, articlePath).WithFields(logrus.Fields{
				"status":     wrapped.statusCode,
				"bytes":      wrapped.written,
				"durationMs": time.Since(start).Milliseconds(),
			})
			if wrapped.statusCode >= http.StatusInternalServerError {
				entry.Warn("Request failed")
				return
			}
			entry.Info("Request served")
		})
	}
}

// RecoveryMiddleware turns a panicking handler into a 500
func RecoveryMiddleware(articlePath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					requestLog(r, articlePath).WithFields(logrus.Fields{
						"error": fmt.Sprintf("%v", err),
						"stack": string(debug.Stack()),
					}).Error("Panic recovered")

					http.Error(w, "Internal server error", http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// RequestIDMiddleware tags each request with an id, reusing the client's
// X-Request-ID when it is short and printable
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get("X-Request-ID")
			if !validRequestID(reqID) {
				reqID = uuid.NewString()
			}

			w.Header().Set("X-Request-ID", reqID)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, reqID)))
		})
	}
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDKey).(string); ok {
		return reqID
	}
	return ""
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for _, c := range id {
		if c < '!' || c > '~' {
			return false
		}
	}
	return true
}

// requestLog carries the fields every front end log line shares
func requestLog(r *http.Request, articlePath string) *logrus.Entry {
	fields := logrus.Fields{
		"method":    r.Method,
		"requestID": GetRequestID(r.Context()),
	}
	if page, ok := strings.CutPrefix(r.URL.Path, articlePath); ok {
		fields["page"] = page
		if action := r.URL.Query().Get("action"); action != "" {
			fields["action"] = action
		}
	} else {
		fields["path"] = r.URL.Path
	}
	return logrus.WithFields(fields)
}

// responseWriter records the status and size of a response
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += n
	return n, err
}
