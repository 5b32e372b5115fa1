// Package http provides the HTTP server for the persona chat service.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cid-kageno-dev/Personal-AI/internal/service"
	"github.com/cid-kageno-dev/Personal-AI/internal/transport/http/relay"
	v1 "github.com/cid-kageno-dev/Personal-AI/internal/transport/http/v1"
)

// Routes is implemented by handlers mounted next to the built-in ones.
type Routes interface {
	RegisterRoutes(e *echo.Echo)
}

// NewServer creates and configures the HTTP server. gatherer backs
// /metrics; extra handlers (the websocket bridge) are registered last.
func NewServer(svc *service.Service, gatherer prometheus.Gatherer, extra ...Routes) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Handlers
	relay.NewHandler(svc).RegisterRoutes(e)
	v1.NewHandler(svc).RegisterRoutes(e)
	for _, r := range extra {
		r.RegisterRoutes(e)
	}

	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	return e
}
