package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nosgoth/eldergod/cache"
	"github.com/nosgoth/eldergod/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestCache(t *testing.T) cache.Cache {
	t.Helper()
	c, err := cache.NewCache(config.CacheConfig{})
	require.NoError(t, err)
	return c
}

var testSec = config.SecurityConfig{JWTSecret: "secret", JWTTTLH: time.Hour}

func newProtectedRouter(c cache.Cache, got *string) *gin.Engine {
	r := gin.New()
	r.Use(AdminAuth(testSec, c))
	r.GET("/protected", func(ctx *gin.Context) {
		if got != nil {
			*got = GetSubject(ctx)
		}
		ctx.Status(http.StatusOK)
	})
	return r
}

func call(r *gin.Engine, authorization string) int {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestAdminAuth_Rejections(t *testing.T) {
	c := setupTestCache(t)
	r := newProtectedRouter(c, nil)

	assert.Equal(t, http.StatusUnauthorized, call(r, ""))
	assert.Equal(t, http.StatusUnauthorized, call(r, "Token abc123"))
	assert.Equal(t, http.StatusUnauthorized, call(r, "Bearer notavalidtoken"))

	other, _, err := GenerateToken("ops", "other-secret", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, call(r, "Bearer "+other))
}

func TestAdminAuth_SessionExpired(t *testing.T) {
	c := setupTestCache(t)
	r := newProtectedRouter(c, nil)

	token, _, err := GenerateToken("ops", testSec.JWTSecret, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, call(r, "Bearer "+token))
}

func TestAdminAuth_ValidSession(t *testing.T) {
	c := setupTestCache(t)
	var subject string
	r := newProtectedRouter(c, &subject)

	token, claims, err := GenerateToken("ops", testSec.JWTSecret, time.Hour)
	require.NoError(t, err)
	require.NoError(t, c.Set(context.Background(), SessionKey(claims.ID), "ops", time.Hour))

	assert.Equal(t, http.StatusOK, call(r, "Bearer "+token))
	assert.Equal(t, "ops", subject)

	require.NoError(t, c.Del(context.Background(), SessionKey(claims.ID)))
	assert.Equal(t, http.StatusUnauthorized, call(r, "Bearer "+token), "logout revokes the token")
}

func TestGetSubject_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, "", GetSubject(c))
}

func TestRecovery_CatchesPanic(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	r := gin.New()
	r.Use(TraceID())
	r.Use(Recovery(logger))
	r.GET("/panic", func(c *gin.Context) {
		panic("test panic")
	})

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	req.Header.Set(TraceIDHeader, "trace-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error","trace_id":"trace-1"}`, w.Body.String())
}

func TestRecovery_NoPanic_PassesThrough(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	r := gin.New()
	r.Use(Recovery(logger))
	r.GET("/ok", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogger_Statuses(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	r := gin.New()
	r.Use(TraceID())
	r.Use(Logger(logger))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for path, code := range map[string]int{"/ping": 200, "/missing": 404, "/fail": 500} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, code, w.Code, path)
	}
}
