package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"knowmystatus/internal/metrics"
)

func TestTokenBucket(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewSimpleTokenBucket(2, 60)
	l.now = func() time.Time { return now }

	assert.True(t, granted(l, "a"))
	assert.True(t, granted(l, "a"))
	assert.False(t, granted(l, "a"))
	assert.True(t, granted(l, "b"))

	now = now.Add(time.Second)
	assert.True(t, granted(l, "a"))
	assert.False(t, granted(l, "a"))

	now = now.Add(time.Hour)
	assert.True(t, granted(l, "a"))
	assert.True(t, granted(l, "a"))
	assert.False(t, granted(l, "a"))
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/scan", NewSimpleTokenBucket(1, 1).GinMiddleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/scan", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/scan", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(RequestLogger(zap.New(core)))
	r.GET("/teachers/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("GET", "/teachers/:id", "404"))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/teachers/42", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, zap.WarnLevel, entries[0].Level)
		assert.Equal(t, "/teachers/42", entries[0].ContextMap()["path"])
		assert.EqualValues(t, 404, entries[0].ContextMap()["status"])
	}
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("GET", "/teachers/:id", "404")))
}

func TestTokenBucketSweepsIdleBuckets(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewSimpleTokenBucket(1, 60)
	l.now = func() time.Time { return now }

	for i := 0; i < sweepThreshold; i++ {
		assert.True(t, granted(l, "client-"+strconv.Itoa(i)))
	}
	assert.Len(t, l.state, sweepThreshold)

	now = now.Add(time.Minute)
	assert.True(t, granted(l, "late"))
	assert.Len(t, l.state, 1)
}

func TestRetryAfterAndRemaining(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewSimpleTokenBucket(2, 6)
	l.now = func() time.Time { return now }
	r := gin.New()
	r.POST("/scan", l.GinMiddleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/scan", nil))
		return w
	}
	assert.Equal(t, "1", send().Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "0", send().Header().Get("X-RateLimit-Remaining"))

	now = now.Add(4 * time.Second)
	w := send()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "6", w.Header().Get("Retry-After"))
}

func granted(l *SimpleTokenBucket, key string) bool {
	ok, _, _ := l.take(key)
	return ok
}
