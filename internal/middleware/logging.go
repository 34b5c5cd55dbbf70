// middleware/logging.go
package middleware

import (
	"net/http"
	"time"

	"gruppetto/internal/logging"
)

type respLogger struct {
	http.ResponseWriter
	status int
}

func (l *respLogger) WriteHeader(code int) {
	l.status = code
	l.ResponseWriter.WriteHeader(code)
}

func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lw := &respLogger{ResponseWriter: w, status: http.StatusOK}

		start := time.Now()
		next.ServeHTTP(lw, r)
		dur := time.Since(start)

		logging.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", lw.status,
			"duration", dur.Truncate(time.Microsecond).String(),
		)
	})
}
