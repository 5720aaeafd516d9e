package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

type pingHandler struct{}

func (pingHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ping", func(c echo.Context) error { return SuccessResponse(c, "pong") })
	e.GET("/boom", func(c echo.Context) error { panic("boom") })
	e.GET("/missing", func(c echo.Context) error { return AppErrorResponse(c, NotFoundError("nothing here")) })
}

func serve(s *Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestNewServer_Routes(t *testing.T) {
	s := NewServer(pingHandler{})

	rec := serve(s, "/ping")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":"pong"`)

	rec = serve(s, "/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_NOT_FOUND")

	rec = serve(s, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "candlesync_http_requests_total")
}

func TestNewServer_RecoversPanics(t *testing.T) {
	rec := serve(NewServer(pingHandler{}), "/boom")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestNewServer_MetricsPathDisabled(t *testing.T) {
	rec := serve(NewServer(nil, WithMetricsPath("")), "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
