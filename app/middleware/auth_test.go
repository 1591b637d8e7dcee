package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"imgtutu/pkg/config"
)

func newCronEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/cron/ping", CronAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return engine
}

func TestCronAuth_BadKeyForbidden(t *testing.T) {
	config.GlobalConfig = &config.Config{Cron: config.CronConfig{Key: "secret"}}
	engine := newCronEngine()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/cron/ping?key=wrong", nil)
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/cron/ping", nil)
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCronAuth_UnconfiguredKeyForbidden(t *testing.T) {
	config.GlobalConfig = &config.Config{}
	engine := newCronEngine()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/cron/ping?key=anything", nil)
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCronAuth_ValidKeyPasses(t *testing.T) {
	config.GlobalConfig = &config.Config{Cron: config.CronConfig{Key: "secret"}}
	engine := newCronEngine()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/cron/ping?key=secret", nil)
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
