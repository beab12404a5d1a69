package middleware

import (
	"crypto/tls"
	"net/http"
	"time"

	"github.com/hasirciogluhq/xstatic-server/cmd/xstatic/internal/core"
	"github.com/hasirciogluhq/xstatic-server/cmd/xstatic/internal/logger"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += int64(n)
	return n, err
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// AccessLog logs one line per request once the response has been written.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}

		next.ServeHTTP(rec, r)

		if rec.status == 0 {
			rec.status = http.StatusOK
		}

		args := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"bytes", rec.bytes,
			"duration", time.Since(start),
			"remote_addr", r.RemoteAddr,
			"conn_id", core.ConnID(r.Context()),
		}
		if r.TLS != nil {
			args = append(args,
				"protocol", core.TLSVersionName(r.TLS.Version),
				"cipher_suite", tls.CipherSuiteName(r.TLS.CipherSuite))
		}
		logger.InfoContext(r.Context(), "Request served", args...)
	})
}
