// Package service implements the persona chat operations on top of the
// application state, the chat backend and the live session manager.
package service

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cid-kageno-dev/Personal-AI/internal/adapter/llm"
	"github.com/cid-kageno-dev/Personal-AI/internal/config"
	"github.com/cid-kageno-dev/Personal-AI/internal/live"
	"github.com/cid-kageno-dev/Personal-AI/internal/metrics"
	"github.com/cid-kageno-dev/Personal-AI/internal/persona"
	"github.com/cid-kageno-dev/Personal-AI/internal/state"
)

var (
	// ErrEmptyMessage is returned for blank user text.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrChatBusy is returned while a reply for the same personality is in flight.
	ErrChatBusy = errors.New("a reply is already in progress for this personality")
	// ErrBuiltinPersona is returned when deleting a built-in personality.
	ErrBuiltinPersona = errors.New("built-in personalities cannot be deleted")
	// ErrPersonalityNotFound aliases the state error for callers of this package.
	ErrPersonalityNotFound = state.ErrPersonalityNotFound
)

const (
	// ApologyText is stored as the reply when the chat backend fails.
	ApologyText = "Neural link severed. Please check your system configuration or API availability."
	// EmptyReplyText replaces an empty single-shot reply.
	EmptyReplyText = "I couldn't generate a response."

	historyLimit = 20
)

type Service struct {
	state     *state.Store
	llmClient llm.Client
	catalog   *persona.Catalog
	builder   *persona.Builder
	policy    *persona.Policy
	live      *live.Manager
	dialer    live.Dialer
	metrics   *metrics.Metrics
	config    *config.Config

	mu   sync.Mutex
	busy map[string]bool

	now   func() time.Time
	newID func() string
}

func New(st *state.Store, llmClient llm.Client, catalog *persona.Catalog, builder *persona.Builder, policy *persona.Policy,
	manager *live.Manager, dialer live.Dialer, m *metrics.Metrics, cfg *config.Config) *Service {
	return &Service{
		state:     st,
		llmClient: llmClient,
		catalog:   catalog,
		builder:   builder,
		policy:    policy,
		live:      manager,
		dialer:    dialer,
		metrics:   m,
		config:    cfg,
		busy:      make(map[string]bool),
		now:       time.Now,
		newID:     func() string { return "msg_" + uuid.New().String() },
	}
}

// Subscribe forwards state change notifications.
func (s *Service) Subscribe() (<-chan state.Change, func()) {
	return s.state.Subscribe()
}

func (s *Service) acquire(personalityID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy[personalityID] {
		return false
	}
	s.busy[personalityID] = true
	return true
}

func (s *Service) release(personalityID string) {
	s.mu.Lock()
	delete(s.busy, personalityID)
	s.mu.Unlock()
}

// Busy reports whether a reply for personalityID is in flight.
func (s *Service) Busy(personalityID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy[personalityID]
}
