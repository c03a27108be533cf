package telemetry

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// Middleware wraps gateway handlers to record inbound request metrics
type Middleware struct {
	instruments *Instruments
}

// NewMiddleware creates a new telemetry middleware
func NewMiddleware(instruments *Instruments) *Middleware {
	return &Middleware{instruments: instruments}
}

// Handler returns the HTTP middleware function
func (tm *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		tm.instruments.RecordRequest(r.Context(), RequestMetrics{
			Direction:  Inbound,
			Method:     r.Method,
			Endpoint:   routeTemplate(r),
			StatusCode: wrapper.statusCode,
			Duration:   time.Since(start),
		})
	})
}

// routeTemplate prefers the matched mux template over the raw path
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return NormalizePath(r.URL.Path)
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// Flush keeps long-poll responses streaming through the wrapper
func (w *responseWriterWrapper) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
