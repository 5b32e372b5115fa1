package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/cid-kageno-dev/Personal-AI/internal/domain"
	"github.com/cid-kageno-dev/Personal-AI/internal/persona"
)

type stateResponse struct {
	*domain.AppState
	Live domain.LiveStatus `json:"live"`
}

// GetState returns the whole application state.
// GET /v1/state
func (h *Handler) GetState(c echo.Context) error {
	st, err := h.service.Snapshot(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, stateResponse{AppState: st, Live: h.service.LiveStatus()})
}

type setActiveRequest struct {
	PersonalityID string `json:"personality_id"`
}

// SetActive switches the active personality.
// PUT /v1/active
func (h *Handler) SetActive(c echo.Context) error {
	var req setActiveRequest
	if err := c.Bind(&req); err != nil || req.PersonalityID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "personality_id is required"})
	}
	if err := h.service.SelectPersonality(c.Request().Context(), req.PersonalityID); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"active_personality_id": req.PersonalityID})
}

// ListPersonas lists all personalities.
// GET /v1/personas
func (h *Handler) ListPersonas(c echo.Context) error {
	all, err := h.service.Personalities(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"personalities": all,
	})
}

// CreatePersona builds and stores a custom personality.
// POST /v1/personas
func (h *Handler) CreatePersona(c echo.Context) error {
	var spec persona.Spec
	if err := c.Bind(&spec); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	p, err := h.service.CreatePersonality(c.Request().Context(), spec)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

// DeletePersona removes a custom personality.
// DELETE /v1/personas/:id
func (h *Handler) DeletePersona(c echo.Context) error {
	st, err := h.service.DeletePersonality(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"active_personality_id": st.ActivePersonalityID})
}

// GetLiveStatus describes the running voice session.
// GET /v1/live/status
func (h *Handler) GetLiveStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.LiveStatus())
}

// StopLive ends the running voice session.
// DELETE /v1/live
func (h *Handler) StopLive(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]bool{"stopped": h.service.StopLive()})
}
