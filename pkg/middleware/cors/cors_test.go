package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func router(origins []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(origins))
	r.GET("/hearings", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestAllowedOrigin(t *testing.T) {
	r := router([]string{"https://courts.example.org/"})

	req := httptest.NewRequest(http.MethodGet, "/hearings", nil)
	req.Header.Set("Origin", "https://courts.example.org")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://courts.example.org", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRejectedOrigin(t *testing.T) {
	r := router([]string{"https://courts.example.org"})

	req := httptest.NewRequest(http.MethodGet, "/hearings", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestPreflightAnyOrigin(t *testing.T) {
	r := router(nil)

	req := httptest.NewRequest(http.MethodOptions, "/hearings", nil)
	req.Header.Set("Origin", "http://kiosk-4.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://kiosk-4.local", w.Header().Get("Access-Control-Allow-Origin"))
}
