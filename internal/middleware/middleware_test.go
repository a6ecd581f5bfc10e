package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinimetric-scale-server/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func bufferLogger() (*logrus.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})
	return logger, &buf
}

func perform(router *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSecurityHeaders(t *testing.T) {
	router := gin.New()
	router.Use(SecurityHeaders())
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := perform(router, http.MethodGet, "/ping", nil)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"), "HSTS only in release mode")
}

func TestCORS_Preflight(t *testing.T) {
	router := gin.New()
	router.Use(CORS())
	router.POST("/api", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(router, http.MethodOptions, "/api", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/id", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(RequestIDKey)) })

	w := perform(router, http.MethodGet, "/id", nil)
	generated := w.Header().Get("X-Request-ID")
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	w = perform(router, http.MethodGet, "/id", map[string]string{"X-Request-ID": "caller-42"})
	assert.Equal(t, "caller-42", w.Header().Get("X-Request-ID"))
}

func TestRequestTimeout(t *testing.T) {
	router := gin.New()
	router.Use(RequestTimeout(50 * time.Millisecond))
	router.GET("/slow", func(c *gin.Context) {
		deadline, ok := c.Request.Context().Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, 50*time.Millisecond)

		<-c.Request.Context().Done()
		assert.ErrorIs(t, c.Request.Context().Err(), context.DeadlineExceeded)
		c.Status(http.StatusGatewayTimeout)
	})

	w := perform(router, http.MethodGet, "/slow", nil)
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}

func TestRateLimiter(t *testing.T) {
	logger, _ := bufferLogger()
	limiter := NewRateLimiter(domain.RateLimitConfig{RequestsPerSecond: 1, Burst: 2, ClientTTL: time.Minute}, logger)

	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.False(t, limiter.Allow("10.0.0.1"), "burst exhausted")
	assert.True(t, limiter.Allow("10.0.0.2"), "clients are limited independently")

	now = now.Add(time.Second)
	assert.True(t, limiter.Allow("10.0.0.1"), "token refilled")

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 2, limiter.Cleanup())
	assert.Equal(t, 0, limiter.Clients())
}

func TestRateLimiter_Handler(t *testing.T) {
	logger, buf := bufferLogger()
	limiter := NewRateLimiter(domain.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}, logger)

	router := gin.New()
	router.Use(RequestID(), limiter.Handler())
	router.GET("/score", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, perform(router, http.MethodGet, "/score", nil).Code)

	w := perform(router, http.MethodGet, "/score", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), domain.ErrCodeRateLimit)
	assert.Contains(t, buf.String(), "Rate limit exceeded")
}

func TestAuditLogger(t *testing.T) {
	logger, buf := bufferLogger()

	router := gin.New()
	router.Use(RequestID(), AuditLogger(logger))
	router.POST("/api/v1/scales/:id/assessments", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	perform(router, http.MethodPost, "/api/v1/scales/phq9/assessments", map[string]string{"X-Request-ID": "audit-1"})

	out := buf.String()
	assert.Contains(t, out, `"request_id":"audit-1"`)
	assert.Contains(t, out, `"path":"/api/v1/scales/:id/assessments"`)
	assert.Contains(t, out, `"status":404`)
	assert.Contains(t, out, `"level":"warning"`)
}
