package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"livewire/backend/pkg/config"
	"livewire/backend/pkg/errors"
	"livewire/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Security.RateLimit = 2.5
	cfg.Security.RateLimitBurst = 5

	opts := OptionsFromConfig(cfg)

	assert.Equal(t, rate.Limit(2.5), opts.Limit)
	assert.Equal(t, 5, opts.Burst)
	assert.Equal(t, time.Hour, opts.ExpiryDuration)
	assert.NotNil(t, opts.KeyFunc)
}

func TestOptionsFromConfigKeepsDefaultsForZeroValues(t *testing.T) {
	opts := OptionsFromConfig(&config.Config{})
	defaults := DefaultRateLimiterOptions()

	assert.Equal(t, defaults.Limit, opts.Limit)
	assert.Equal(t, defaults.Burst, opts.Burst)
}

func TestRateLimiterUsesConfiguredBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.Security.RateLimit = 1
	cfg.Security.RateLimitBurst = 1

	limiter := NewRateLimiter(logger.New(logger.Config{Level: "error", Output: io.Discard}), OptionsFromConfig(cfg))

	engine := gin.New()
	engine.Use(errors.ErrorHandler())
	engine.Use(limiter.Middleware())
	engine.GET("/ping", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	first := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, "/ping", nil)
	require.NoError(t, err)
	engine.ServeHTTP(first, req)
	assert.Equal(t, http.StatusOK, first.Code)

	// burst of one means the immediate second request is refused
	second := httptest.NewRecorder()
	engine.ServeHTTP(second, req)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))
}
