package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cid-kageno-dev/Personal-AI/internal/adapter/llm"
	"github.com/cid-kageno-dev/Personal-AI/internal/config"
	"github.com/cid-kageno-dev/Personal-AI/internal/metrics"
	"github.com/cid-kageno-dev/Personal-AI/internal/service"
)

type pingRoutes struct{}

func (pingRoutes) RegisterRoutes(e *echo.Echo) {
	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })
}

func TestNewServerRoutes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	m.RecordChatRequest("tech-guru", "stream")

	svc := service.New(nil, llm.NewMockClient(), nil, nil, nil, nil, nil, m, config.Default())
	e := NewServer(svc, reg, pingRoutes{})

	tests := []struct {
		path     string
		contains string
	}{
		{"/health", "OK"},
		{"/ping", "pong"},
		{"/metrics", "personachat_chat_requests_total"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", tt.path, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), tt.contains) {
			t.Fatalf("%s: body missing %q", tt.path, tt.contains)
		}
	}
}
