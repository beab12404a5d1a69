package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hasirciogluhq/xstatic-server/cmd/xstatic/internal/core"
	"github.com/hasirciogluhq/xstatic-server/cmd/xstatic/internal/logger"
)

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, false)

	h := AccessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("gone"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/missing.txt", nil)
	req = req.WithContext(core.WithConnID(req.Context(), "conn-1"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	line := buf.String()
	assert.Contains(t, line, `msg="Request served"`)
	assert.Contains(t, line, "method=GET")
	assert.Contains(t, line, "path=/missing.txt")
	assert.Contains(t, line, "status=404")
	assert.Contains(t, line, "bytes=4")
	assert.Contains(t, line, "conn_id=conn-1")
}

func TestAccessLogImplicitStatus(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, false)

	h := AccessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodHead, "/", nil))

	assert.Contains(t, buf.String(), "status=200")
}

func TestRateLimit(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, true)

	h := RateLimit(0.001, 2, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests {
			assert.Equal(t, "1", rec.Header().Get("Retry-After"))
		}
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte(`msg="Request rate limited"`)))
}

func TestRateLimitDerivedBurst(t *testing.T) {
	h := RateLimit(0.5, 0, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
