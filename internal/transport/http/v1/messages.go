package v1

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/cid-kageno-dev/Personal-AI/internal/service"
)

type messageRequest struct {
	Text string `json:"text"`
}

// GetMessages returns the transcript of one personality.
// GET /v1/personas/:id/messages
func (h *Handler) GetMessages(c echo.Context) error {
	conv, err := h.service.Conversation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"messages": conv,
	})
}

// ClearMessages empties the transcript of one personality.
// DELETE /v1/personas/:id/messages
func (h *Handler) ClearMessages(c echo.Context) error {
	if err := h.service.Clear(c.Request().Context(), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// PostMessage sends a user message and streams the reply as server-sent
// events. Each event is named after its type and carries the JSON event.
// POST /v1/personas/:id/messages
func (h *Handler) PostMessage(c echo.Context) error {
	var req messageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	personalityID := c.Param("id")

	w := c.Response()
	started := false
	err := h.service.StreamMessage(c.Request().Context(), personalityID, req.Text, func(ev service.ChatEvent) error {
		if !started {
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Connection", "keep-alive")
			w.Header().Set("X-Accel-Buffering", "no")
			w.WriteHeader(http.StatusOK)
			started = true
		}

		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
			return err
		}
		if flusher, ok := w.Writer.(http.Flusher); ok {
			flusher.Flush()
		}
		return nil
	})

	if !started {
		if err != nil {
			return writeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
	if err != nil {
		// Headers are already sent; the outcome is in the stream.
		logrus.WithFields(logrus.Fields{
			"personality_id": personalityID,
			"error":          err,
		}).Warn("Chat stream ended with error")
	}
	return nil
}

// Generate sends a user message and returns the complete reply.
// POST /v1/personas/:id/generate
func (h *Handler) Generate(c echo.Context) error {
	var req messageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	msg, err := h.service.Generate(c.Request().Context(), c.Param("id"), req.Text)
	if err != nil {
		if msg.ID != "" {
			// The apology was stored as the reply.
			logrus.WithError(err).Warn("Generate request failed upstream")
			return c.JSON(http.StatusBadGateway, map[string]interface{}{
				"error":   "upstream model request failed",
				"message": msg,
			})
		}
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": msg,
	})
}
