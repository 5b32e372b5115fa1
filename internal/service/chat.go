package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cid-kageno-dev/Personal-AI/internal/adapter/llm"
	"github.com/cid-kageno-dev/Personal-AI/internal/domain"
	"github.com/cid-kageno-dev/Personal-AI/internal/state"
)

var errReplyDiscarded = errors.New("reply discarded")

// ChatEventType classifies streaming progress.
type ChatEventType string

const (
	ChatEventMessage ChatEventType = "message"
	ChatEventDelta   ChatEventType = "delta"
	ChatEventDone    ChatEventType = "done"
	ChatEventError   ChatEventType = "error"
)

// ChatEvent reports one step of a streamed reply. Message carries the
// message as stored after the step; Delta is the fragment that produced it.
type ChatEvent struct {
	Type    ChatEventType       `json:"type"`
	Message *domain.ChatMessage `json:"message,omitempty"`
	Delta   string              `json:"delta,omitempty"`
}

// EmitFunc receives chat events. Returning an error cancels the reply.
type EmitFunc func(ChatEvent) error

// StreamMessage appends text as a USER message to the conversation of
// personalityID and streams the reply into the same conversation.
//
// Validation failures are returned before any event is emitted. After that
// the conversation always ends in a consistent state: a cancelled reply keeps
// its partial text, a failed reply is followed by the apology message and a
// reply whose conversation is cleared mid-stream is dropped.
func (s *Service) StreamMessage(ctx context.Context, personalityID, text string, emit EmitFunc) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	p, err := s.state.Personality(ctx, personalityID)
	if err != nil {
		return err
	}
	if !s.acquire(personalityID) {
		return ErrChatBusy
	}
	defer s.release(personalityID)

	history, userMsg, err := s.appendUser(ctx, personalityID, text)
	if err != nil {
		return err
	}

	log := logrus.WithFields(logrus.Fields{
		"personality_id": personalityID,
		"model":          p.Model,
	})
	s.metrics.RecordChatRequest(personalityID, "stream")
	begin := time.Now()

	streamCtx, cancel := context.WithTimeout(ctx, s.config.ChatTimeout)
	defer cancel()
	// State writes must land even after the caller goes away.
	writeCtx := context.WithoutCancel(ctx)

	var emitErr error
	send := func(ev ChatEvent) {
		if emitErr != nil || emit == nil {
			return
		}
		if emitErr = emit(ev); emitErr != nil {
			cancel()
		}
	}
	send(ChatEvent{Type: ChatEventMessage, Message: &userMsg})

	var full strings.Builder
	var reply domain.ChatMessage
	started, discarded := false, false
	err = s.llmClient.Stream(streamCtx, llm.NewRequest(p, history, text), func(fragment string) error {
		if fragment == "" {
			return nil
		}
		full.WriteString(fragment)
		s.metrics.RecordChatFragment()

		evType := ChatEventDelta
		if !started {
			reply = domain.ChatMessage{ID: s.newID(), Role: domain.RoleModel, Text: full.String(), Timestamp: s.now()}
			err := s.state.AppendMessages(writeCtx, personalityID, reply)
			if isDiscarded(err) {
				discarded = true
				return errReplyDiscarded
			}
			if err != nil {
				return fmt.Errorf("failed to append reply: %w", err)
			}
			started = true
			evType = ChatEventMessage
		} else {
			reply.Text = full.String()
			err := s.state.UpdateMessage(writeCtx, personalityID, reply.ID, reply.Text)
			if isDiscarded(err) {
				discarded = true
				return errReplyDiscarded
			}
			if err != nil {
				return fmt.Errorf("failed to update reply: %w", err)
			}
		}
		msg := reply
		send(ChatEvent{Type: evType, Message: &msg, Delta: fragment})
		return emitErr
	})
	s.metrics.ObserveChatStream(time.Since(begin).Seconds())

	// done carries a snapshot of the reply, or no message when nothing was stored.
	final := func() *domain.ChatMessage {
		if !started || discarded {
			return nil
		}
		msg := reply
		return &msg
	}

	switch {
	case discarded:
		// The conversation was cleared or its personality deleted mid-reply.
		log.WithField("length", full.Len()).Info("Reply discarded")
		send(ChatEvent{Type: ChatEventDone})
		return nil

	case err == nil:
		log.WithField("length", full.Len()).Debug("Reply streamed")
		send(ChatEvent{Type: ChatEventDone, Message: final()})
		return nil

	case emitErr != nil || streamCtx.Err() != nil:
		// Cancelled or timed out: the partial reply stays as it is.
		log.WithFields(logrus.Fields{
			"length": full.Len(),
			"error":  err,
		}).Info("Reply stream cancelled")
		send(ChatEvent{Type: ChatEventDone, Message: final()})
		if emitErr != nil {
			return emitErr
		}
		return streamCtx.Err()

	default:
		log.WithError(err).Error("Reply stream failed")
		s.metrics.RecordChatFailure(personalityID)
		apology, appendErr := s.appendApology(writeCtx, personalityID)
		if appendErr != nil {
			return fmt.Errorf("failed to record chat failure: %w", appendErr)
		}
		send(ChatEvent{Type: ChatEventError, Message: &apology})
		return fmt.Errorf("failed to stream reply: %w", err)
	}
}

// isDiscarded reports a write that found its conversation cleared or its
// personality deleted.
func isDiscarded(err error) bool {
	return errors.Is(err, state.ErrMessageNotFound) || errors.Is(err, state.ErrPersonalityNotFound)
}

// Generate appends text as a USER message and the complete reply as a MODEL
// message. On backend failure the apology is stored and returned alongside
// the error.
func (s *Service) Generate(ctx context.Context, personalityID, text string) (domain.ChatMessage, error) {
	if strings.TrimSpace(text) == "" {
		return domain.ChatMessage{}, ErrEmptyMessage
	}
	p, err := s.state.Personality(ctx, personalityID)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	if !s.acquire(personalityID) {
		return domain.ChatMessage{}, ErrChatBusy
	}
	defer s.release(personalityID)

	history, _, err := s.appendUser(ctx, personalityID, text)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	s.metrics.RecordChatRequest(personalityID, "generate")

	genCtx, cancel := context.WithTimeout(ctx, s.config.ChatTimeout)
	defer cancel()
	writeCtx := context.WithoutCancel(ctx)

	reply, err := s.llmClient.Generate(genCtx, llm.NewRequest(p, history, text))
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"personality_id": personalityID,
			"error":          err,
		}).Error("Reply generation failed")
		s.metrics.RecordChatFailure(personalityID)
		apology, appendErr := s.appendApology(writeCtx, personalityID)
		if appendErr != nil {
			return domain.ChatMessage{}, fmt.Errorf("failed to record chat failure: %w", appendErr)
		}
		return apology, fmt.Errorf("failed to generate reply: %w", err)
	}
	if reply == "" {
		reply = EmptyReplyText
	}

	msg := domain.ChatMessage{ID: s.newID(), Role: domain.RoleModel, Text: reply, Timestamp: s.now()}
	if err := s.state.AppendMessages(writeCtx, personalityID, msg); err != nil {
		return domain.ChatMessage{}, fmt.Errorf("failed to append reply: %w", err)
	}
	return msg, nil
}

// Conversation returns the transcript of personalityID.
func (s *Service) Conversation(ctx context.Context, personalityID string) (domain.Conversation, error) {
	if _, err := s.state.Personality(ctx, personalityID); err != nil {
		return nil, err
	}
	return s.state.Conversation(ctx, personalityID)
}

// Clear empties the transcript of personalityID.
func (s *Service) Clear(ctx context.Context, personalityID string) error {
	return s.state.Clear(ctx, personalityID)
}

// appendUser stores the USER message and returns the history that preceded
// it, trimmed to the most recent messages.
func (s *Service) appendUser(ctx context.Context, personalityID, text string) ([]domain.ChatMessage, domain.ChatMessage, error) {
	conv, err := s.state.Conversation(ctx, personalityID)
	if err != nil {
		return nil, domain.ChatMessage{}, fmt.Errorf("failed to load conversation: %w", err)
	}
	history := []domain.ChatMessage(conv)
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}

	msg := domain.ChatMessage{ID: s.newID(), Role: domain.RoleUser, Text: text, Timestamp: s.now()}
	if err := s.state.AppendMessages(ctx, personalityID, msg); err != nil {
		return nil, domain.ChatMessage{}, fmt.Errorf("failed to append message: %w", err)
	}
	return history, msg, nil
}

func (s *Service) appendApology(ctx context.Context, personalityID string) (domain.ChatMessage, error) {
	msg := domain.ChatMessage{ID: s.newID(), Role: domain.RoleModel, Text: ApologyText, Timestamp: s.now()}
	if err := s.state.AppendMessages(ctx, personalityID, msg); err != nil {
		return domain.ChatMessage{}, err
	}
	return msg, nil
}
