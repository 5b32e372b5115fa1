// Package relay serves the stateless Cid Kageno relay endpoint.
package relay

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/cid-kageno-dev/Personal-AI/internal/service"
)

// Handler handles relay HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new relay handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers relay routes.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/cidkageno", h.Relay)
	e.GET("/health", h.Health)
}

type relayRequest struct {
	Message string `json:"message"`
}

type relayResponse struct {
	Response  string `json:"response"`
	Timestamp string `json:"timestamp"`
}

// Relay answers one message.
// POST /cidkageno
func (h *Handler) Relay(c echo.Context) error {
	var req relayRequest
	if err := c.Bind(&req); err != nil || req.Message == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Message field is required"})
	}

	text, err := h.service.Relay(c.Request().Context(), req.Message)
	if err != nil {
		logrus.WithError(err).Error("Relay request failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}

	return c.JSON(http.StatusOK, relayResponse{
		Response:  text,
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

// Health reports liveness.
// GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}
