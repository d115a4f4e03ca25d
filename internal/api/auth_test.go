package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"livewire/backend/internal/service"
	"livewire/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logger.New(logger.Config{Level: "error", Output: io.Discard})
	handler := NewAuthHandler(service.NewUserService(nil, nil), log)

	r := gin.New()
	r.POST("/api/auth/register", handler.Register)
	r.POST("/api/auth/login", handler.Login)
	r.POST("/api/auth/refresh", handler.Refresh)
	r.GET("/api/auth/me", handler.Me)
	return r
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRejectsInvalidBody(t *testing.T) {
	r := newAuthRouter()

	tests := []struct {
		name string
		body string
	}{
		{"not json", "not json"},
		{"missing email", `{"password":"longenough","password_confirm":"longenough"}`},
		{"bad email", `{"email":"nope","password":"longenough","password_confirm":"longenough"}`},
		{"short password", `{"email":"a@example.com","password":"short","password_confirm":"short"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(r, "/api/auth/register", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestRegisterRejectsPasswordMismatch(t *testing.T) {
	r := newAuthRouter()

	w := postJSON(r, "/api/auth/register",
		`{"email":"a@example.com","password":"longenough","password_confirm":"different-pass"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Passwords do not match")
}

func TestLoginRejectsInvalidBody(t *testing.T) {
	r := newAuthRouter()

	w := postJSON(r, "/api/auth/login", `{"email":"a@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRefreshRejectsMissingToken(t *testing.T) {
	r := newAuthRouter()

	w := postJSON(r, "/api/auth/refresh", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMeRequiresAuthentication(t *testing.T) {
	r := newAuthRouter()

	req, _ := http.NewRequest(http.MethodGet, "/api/auth/me", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
