// Package state owns the process-wide application state. A single goroutine
// applies every mutation in arrival order; readers receive deep copies.
package state

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/cid-kageno-dev/Personal-AI/internal/domain"
)

var (
	// ErrPersonalityNotFound is returned for an unknown personality id.
	ErrPersonalityNotFound = errors.New("personality not found")
	// ErrMessageNotFound is returned when updating a message that is absent.
	ErrMessageNotFound = errors.New("message not found")
	// ErrDuplicatePersonality is returned when adding an id that exists.
	ErrDuplicatePersonality = errors.New("personality already exists")
	// ErrStopped is returned once the state loop has exited.
	ErrStopped = errors.New("state store stopped")
)

// ChangeKind classifies a state change notification.
type ChangeKind string

const (
	ChangeMessageAppended      ChangeKind = "message_appended"
	ChangeMessageUpdated       ChangeKind = "message_updated"
	ChangeConversationCleared  ChangeKind = "conversation_cleared"
	ChangeActiveChanged        ChangeKind = "active_changed"
	ChangePersonalitiesChanged ChangeKind = "personalities_changed"
)

// Change describes one applied mutation.
type Change struct {
	Kind          ChangeKind          `json:"kind"`
	PersonalityID string              `json:"personality_id,omitempty"`
	Message       *domain.ChatMessage `json:"message,omitempty"`
}

const subscriberBuffer = 256

type op struct {
	apply func(s *domain.AppState) ([]Change, error)
	done  chan error
}

// Store serializes all application state mutations through one loop.
type Store struct {
	ops     chan op
	stopped chan struct{}

	state domain.AppState

	mu   sync.RWMutex
	subs map[chan Change]struct{}
}

// New creates a store seeded with personalities. The active personality is
// the first one.
func New(personalities []domain.Personality) *Store {
	st := domain.AppState{
		Chats:         make(map[string]domain.Conversation),
		Personalities: make([]domain.Personality, len(personalities)),
	}
	for i, p := range personalities {
		st.Personalities[i] = p.Clone()
	}
	if len(personalities) > 0 {
		st.ActivePersonalityID = personalities[0].ID
	}
	return &Store{
		ops:     make(chan op),
		stopped: make(chan struct{}),
		state:   st,
		subs:    make(map[chan Change]struct{}),
	}
}

// Run applies mutations until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	defer close(s.stopped)
	for {
		select {
		case <-ctx.Done():
			logrus.Debug("State loop stopped")
			return
		case o := <-s.ops:
			changes, err := o.apply(&s.state)
			o.done <- err
			if err == nil {
				s.publish(changes)
			}
		}
	}
}

// Subscribe registers for change notifications. A subscriber that falls
// behind loses notifications. Call the returned function to unsubscribe.
func (s *Store) Subscribe() (<-chan Change, func()) {
	ch := make(chan Change, subscriberBuffer)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			s.mu.Unlock()
		})
	}
}

func (s *Store) publish(changes []Change) {
	if len(changes) == 0 {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for ch := range s.subs {
		for _, c := range changes {
			select {
			case ch <- c:
			default:
				logrus.WithField("kind", c.Kind).Warn("State subscriber buffer full, dropping change")
			}
		}
	}
}

func (s *Store) do(ctx context.Context, apply func(st *domain.AppState) ([]Change, error)) error {
	o := op{apply: apply, done: make(chan error, 1)}
	select {
	case s.ops <- o:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		return ErrStopped
	}
	return <-o.done
}

// Snapshot returns a deep copy of the whole state.
func (s *Store) Snapshot(ctx context.Context) (*domain.AppState, error) {
	var out *domain.AppState
	err := s.do(ctx, func(st *domain.AppState) ([]Change, error) {
		out = st.Clone()
		return nil, nil
	})
	return out, err
}

// Personality returns one personality by id.
func (s *Store) Personality(ctx context.Context, id string) (domain.Personality, error) {
	var out domain.Personality
	err := s.do(ctx, func(st *domain.AppState) ([]Change, error) {
		p, ok := st.FindPersonality(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrPersonalityNotFound, id)
		}
		out = p.Clone()
		return nil, nil
	})
	return out, err
}

// Conversation returns a copy of the transcript for personalityID. An unknown
// or empty conversation yields an empty slice.
func (s *Store) Conversation(ctx context.Context, personalityID string) (domain.Conversation, error) {
	var out domain.Conversation
	err := s.do(ctx, func(st *domain.AppState) ([]Change, error) {
		out = st.Chats[personalityID].Clone()
		return nil, nil
	})
	if out == nil {
		out = domain.Conversation{}
	}
	return out, err
}

// AppendMessages appends msgs to the conversation of personalityID as one
// step; no reader observes a partial append. The conversation is created on
// first use.
func (s *Store) AppendMessages(ctx context.Context, personalityID string, msgs ...domain.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	return s.do(ctx, func(st *domain.AppState) ([]Change, error) {
		if _, ok := st.FindPersonality(personalityID); !ok {
			return nil, fmt.Errorf("%w: %s", ErrPersonalityNotFound, personalityID)
		}
		st.Chats[personalityID] = append(st.Chats[personalityID], msgs...)

		changes := make([]Change, len(msgs))
		for i := range msgs {
			m := msgs[i]
			changes[i] = Change{Kind: ChangeMessageAppended, PersonalityID: personalityID, Message: &m}
		}
		return changes, nil
	})
}

// UpdateMessage replaces the text of the message with the given id.
func (s *Store) UpdateMessage(ctx context.Context, personalityID, messageID, text string) error {
	return s.do(ctx, func(st *domain.AppState) ([]Change, error) {
		conv := st.Chats[personalityID]
		i := conv.IndexOf(messageID)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
		}
		conv[i].Text = text
		m := conv[i]
		return []Change{{Kind: ChangeMessageUpdated, PersonalityID: personalityID, Message: &m}}, nil
	})
}

// Clear truncates the conversation of personalityID.
func (s *Store) Clear(ctx context.Context, personalityID string) error {
	return s.do(ctx, func(st *domain.AppState) ([]Change, error) {
		if _, ok := st.FindPersonality(personalityID); !ok {
			return nil, fmt.Errorf("%w: %s", ErrPersonalityNotFound, personalityID)
		}
		st.Chats[personalityID] = domain.Conversation{}
		return []Change{{Kind: ChangeConversationCleared, PersonalityID: personalityID}}, nil
	})
}

// SetActive selects the active personality.
func (s *Store) SetActive(ctx context.Context, id string) error {
	return s.do(ctx, func(st *domain.AppState) ([]Change, error) {
		if _, ok := st.FindPersonality(id); !ok {
			return nil, fmt.Errorf("%w: %s", ErrPersonalityNotFound, id)
		}
		if st.ActivePersonalityID == id {
			return nil, nil
		}
		st.ActivePersonalityID = id
		return []Change{{Kind: ChangeActiveChanged, PersonalityID: id}}, nil
	})
}

// AddPersonality appends p to the personality list and returns the new list.
// check, when non-nil, runs inside the loop against the current list and can
// veto the addition.
func (s *Store) AddPersonality(ctx context.Context, p domain.Personality, check func([]domain.Personality) error) ([]domain.Personality, error) {
	var out []domain.Personality
	err := s.do(ctx, func(st *domain.AppState) ([]Change, error) {
		if _, ok := st.FindPersonality(p.ID); ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePersonality, p.ID)
		}
		if check != nil {
			if err := check(st.Personalities); err != nil {
				return nil, err
			}
		}
		st.Personalities = append(st.Personalities, p.Clone())
		out = clonePersonalities(st.Personalities)
		return []Change{{Kind: ChangePersonalitiesChanged, PersonalityID: p.ID}}, nil
	})
	return out, err
}

// RemovePersonality deletes a personality and its conversation. When it was
// active, the first remaining personality becomes active. guard, when non-nil,
// may refuse the removal.
func (s *Store) RemovePersonality(ctx context.Context, id string, guard func(domain.Personality) error) (*domain.AppState, error) {
	var out *domain.AppState
	err := s.do(ctx, func(st *domain.AppState) ([]Change, error) {
		idx := -1
		for i, p := range st.Personalities {
			if p.ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s", ErrPersonalityNotFound, id)
		}
		if guard != nil {
			if err := guard(st.Personalities[idx]); err != nil {
				return nil, err
			}
		}

		st.Personalities = append(st.Personalities[:idx:idx], st.Personalities[idx+1:]...)
		delete(st.Chats, id)
		changes := []Change{{Kind: ChangePersonalitiesChanged, PersonalityID: id}}

		if st.ActivePersonalityID == id {
			st.ActivePersonalityID = ""
			if len(st.Personalities) > 0 {
				st.ActivePersonalityID = st.Personalities[0].ID
			}
			changes = append(changes, Change{Kind: ChangeActiveChanged, PersonalityID: st.ActivePersonalityID})
		}
		out = st.Clone()
		return changes, nil
	})
	return out, err
}

func clonePersonalities(ps []domain.Personality) []domain.Personality {
	out := make([]domain.Personality, len(ps))
	for i, p := range ps {
		out[i] = p.Clone()
	}
	return out
}
