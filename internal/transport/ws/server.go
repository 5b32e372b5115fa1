package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/cid-kageno-dev/Personal-AI/internal/config"
	"github.com/cid-kageno-dev/Personal-AI/internal/domain"
	"github.com/cid-kageno-dev/Personal-AI/internal/live"
	"github.com/cid-kageno-dev/Personal-AI/internal/service"
	"github.com/cid-kageno-dev/Personal-AI/internal/state"
)

// Server handles WebSocket connections.
type Server struct {
	cfg      config.WSConfig
	hub      *Hub
	service  *service.Service
	upgrader websocket.Upgrader
}

// NewServer creates a new WebSocket server.
func NewServer(cfg config.WSConfig, h *Hub, svc *service.Service) *Server {
	return &Server{
		cfg:     cfg,
		hub:     h,
		service: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// RegisterRoutes mounts the websocket endpoint.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/v1/live", s.HandleWebSocket)
}

// HandleWebSocket handles WebSocket upgrade and connection lifecycle.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logrus.WithError(err).Warn("Failed to upgrade WebSocket")
		return err
	}

	conn := s.hub.NewConnection(ws)
	s.hub.Register(conn)

	ws.SetReadLimit(s.cfg.MaxMessageSize)

	go s.writePump(conn)
	go s.readPump(conn)

	return nil
}

// Forward subscribes to state changes and relays them to connected clients
// until ctx is done. Conversation changes go to the personality's
// subscribers; personality list and selection changes go to everyone.
func (s *Server) Forward(ctx context.Context) {
	changes, unsubscribe := s.service.Subscribe()
	go func() {
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case ch := <-changes:
				s.forwardChange(ch)
			}
		}
	}()
}

func (s *Server) forwardChange(ch state.Change) {
	base := BaseMessage{Ts: time.Now().UnixMilli()}
	switch ch.Kind {
	case state.ChangeMessageAppended, state.ChangeMessageUpdated, state.ChangeConversationCleared:
		base.Type = TypeConversation
		s.hub.BroadcastJSON(ch.PersonalityID, ConversationMessage{
			BaseMessage:   base,
			Kind:          ch.Kind,
			PersonalityID: ch.PersonalityID,
			Message:       ch.Message,
		})
	default:
		base.Type = TypeState
		s.hub.BroadcastJSON("", StateMessage{
			BaseMessage:   base,
			Kind:          ch.Kind,
			PersonalityID: ch.PersonalityID,
		})
	}
}

// readPump reads messages from the WebSocket connection.
func (s *Server) readPump(conn *Connection) {
	defer func() {
		conn.cancel()
		s.releaseLive(conn)
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.Conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithFields(logrus.Fields{
					"conn_id": conn.ID,
					"error":   err,
				}).Warn("WebSocket read failed")
			}
			break
		}

		s.handleMessage(conn, message)
	}
}

// writePump writes messages to the WebSocket connection.
func (s *Server) writePump(conn *Connection) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logrus.WithError(err).Warn("Failed to write message")
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches incoming messages to appropriate handlers.
func (s *Server) handleMessage(conn *Connection, data []byte) {
	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		s.sendError(conn, ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	switch base.Type {
	case TypeHello:
		s.handleHello(conn)
	case TypeSubscribe:
		s.handleSubscribe(conn, data)
	case TypeLiveStart:
		s.handleLiveStart(conn, data)
	case TypeMicReady:
		s.handleMicReady(conn, data)
	case TypeMicError:
		s.handleMicError(conn, data)
	case TypeAudio:
		s.handleAudio(conn, data)
	case TypeEnded:
		s.handleEnded(conn, data)
	case TypeLiveStop:
		s.service.StopLive()
	default:
		s.sendError(conn, ErrorCodeInvalidMessage, "unknown message type: "+base.Type)
	}
}

func (s *Server) handleHello(conn *Connection) {
	s.hub.SendJSONToConnection(conn, HelloAckMessage{
		BaseMessage:  BaseMessage{Type: TypeHelloAck, Ts: time.Now().UnixMilli()},
		ConnectionID: conn.ID,
		ClockOrigin:  conn.Started.UnixMilli(),
	})
	s.hub.SendJSONToConnection(conn, s.statusMessage(s.service.LiveStatus()))
}

func (s *Server) handleSubscribe(conn *Connection, data []byte) {
	var msg SubscribeMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.PersonalityID == "" {
		s.sendError(conn, ErrorCodeInvalidMessage, "invalid subscribe message")
		return
	}

	conv, err := s.service.Conversation(conn.ctx, msg.PersonalityID)
	if err != nil {
		if errors.Is(err, service.ErrPersonalityNotFound) {
			s.sendError(conn, ErrorCodeNotFound, err.Error())
			return
		}
		s.sendError(conn, ErrorCodeInternalError, "failed to load conversation")
		return
	}

	s.hub.Subscribe(conn, msg.PersonalityID)
	s.hub.SendJSONToConnection(conn, ConversationMessage{
		BaseMessage:   BaseMessage{Type: TypeConversation, Ts: time.Now().UnixMilli()},
		PersonalityID: msg.PersonalityID,
		Messages:      conv,
	})
}

func (s *Server) handleLiveStart(conn *Connection, data []byte) {
	var msg LiveStartMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, ErrorCodeInvalidMessage, "invalid live_start message")
		return
	}

	dev := newDevice(s.hub, conn)
	conn.liveMu.Lock()
	conn.device = dev
	conn.liveMu.Unlock()

	// Start blocks until the client answers the microphone request, which
	// arrives on this read loop.
	go func() {
		c, err := s.service.StartLive(conn.ctx, msg.PersonalityID, service.LiveDevices{
			Microphone: dev,
			Speaker:    dev,
			OnStatus: func(st domain.LiveStatus) {
				s.hub.SendJSONToConnection(conn, s.statusMessage(st))
			},
		})
		if err != nil {
			var micErr *live.MicError
			switch {
			case errors.As(err, &micErr):
				s.sendError(conn, ErrorCodeMicError, micErr.Message)
			case errors.Is(err, service.ErrPersonalityNotFound):
				s.sendError(conn, ErrorCodeNotFound, err.Error())
			default:
				s.sendError(conn, ErrorCodeLiveFailed, err.Error())
			}
			return
		}
		dev.setController(c)
		// The client may have left while the session was opening.
		if conn.ctx.Err() != nil {
			s.releaseLive(conn)
		}
	}()
}

func (s *Server) handleMicReady(conn *Connection, data []byte) {
	var msg MicReadyMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.SampleRate <= 0 {
		s.sendError(conn, ErrorCodeInvalidMessage, "invalid mic_ready message")
		return
	}
	if dev := conn.liveDevice(); dev != nil {
		dev.resolveMic(micResult{rate: msg.SampleRate})
	}
}

func (s *Server) handleMicError(conn *Connection, data []byte) {
	var msg MicErrorMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, ErrorCodeInvalidMessage, "invalid mic_error message")
		return
	}
	if dev := conn.liveDevice(); dev != nil {
		dev.resolveMic(micResult{err: micErrorFromClient(msg.Name, msg.Message)})
	}
}

func (s *Server) handleAudio(conn *Connection, data []byte) {
	var msg AudioMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, ErrorCodeInvalidMessage, "invalid audio message")
		return
	}
	if dev := conn.liveDevice(); dev != nil {
		dev.pushFrame(msg.Samples)
	}
}

func (s *Server) handleEnded(conn *Connection, data []byte) {
	var msg EndedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, ErrorCodeInvalidMessage, "invalid ended message")
		return
	}
	if dev := conn.liveDevice(); dev != nil {
		dev.voiceEnded(msg.VoiceID)
	}
}

// releaseLive stops the running session when it plays through conn.
func (s *Server) releaseLive(conn *Connection) {
	dev := conn.liveDevice()
	if dev == nil {
		return
	}
	if c := dev.liveController(); c != nil && s.service.ActiveLive() == c {
		s.service.StopLive()
		logrus.WithField("conn_id", conn.ID).Info("Live session stopped by disconnect")
	}
}

func (s *Server) statusMessage(st domain.LiveStatus) StatusMessage {
	return StatusMessage{
		BaseMessage: BaseMessage{Type: TypeStatus, Ts: time.Now().UnixMilli()},
		LiveStatus:  st,
	}
}

// sendError sends an error message to a connection.
func (s *Server) sendError(conn *Connection, code, message string) {
	s.hub.SendJSONToConnection(conn, ErrorMessage{
		BaseMessage: BaseMessage{Type: TypeError, Ts: time.Now().UnixMilli()},
		Code:        code,
		Message:     message,
	})
}

func (c *Connection) liveDevice() *device {
	c.liveMu.Lock()
	defer c.liveMu.Unlock()
	return c.device
}
