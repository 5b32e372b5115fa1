// Package v1 provides the JSON and SSE API for the persona chat service.
package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/cid-kageno-dev/Personal-AI/internal/persona"
	"github.com/cid-kageno-dev/Personal-AI/internal/service"
	"github.com/cid-kageno-dev/Personal-AI/internal/state"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers v1 routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/v1/state", h.GetState)
	e.PUT("/v1/active", h.SetActive)

	// Personas
	e.GET("/v1/personas", h.ListPersonas)
	e.POST("/v1/personas", h.CreatePersona)
	e.DELETE("/v1/personas/:id", h.DeletePersona)

	// Conversations
	e.GET("/v1/personas/:id/messages", h.GetMessages)
	e.POST("/v1/personas/:id/messages", h.PostMessage)
	e.DELETE("/v1/personas/:id/messages", h.ClearMessages)
	e.POST("/v1/personas/:id/generate", h.Generate)

	// Live session control; audio flows over the websocket bridge.
	e.GET("/v1/live/status", h.GetLiveStatus)
	e.DELETE("/v1/live", h.StopLive)
}

// errorStatus maps service errors to HTTP status codes.
func errorStatus(err error) int {
	var perr *persona.PolicyError
	switch {
	case errors.As(err, &perr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrPersonalityNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrChatBusy), errors.Is(err, state.ErrDuplicatePersonality):
		return http.StatusConflict
	case errors.Is(err, service.ErrBuiltinPersona):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c echo.Context, err error) error {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		logrus.WithFields(logrus.Fields{
			"path":  c.Path(),
			"error": err,
		}).Error("Request failed")
		return c.JSON(status, map[string]string{"error": "internal error"})
	}

	var perr *persona.PolicyError
	if errors.As(err, &perr) {
		return c.JSON(status, map[string]interface{}{
			"error":   err.Error(),
			"reasons": perr.Reasons,
		})
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}
