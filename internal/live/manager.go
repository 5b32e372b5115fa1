package live

import (
	"context"
	"sync"

	"github.com/cid-kageno-dev/Personal-AI/internal/domain"
)

// Manager keeps at most one live session per process.
type Manager struct {
	mu      sync.Mutex
	current *Controller
}

// NewManager creates an empty session manager.
func NewManager() *Manager {
	return &Manager{}
}

// Start stops any running session, then starts a new one built from cfg.
// The new session is visible through Active while it opens, so Stop can
// abort a pending microphone prompt. On failure it is not retained.
func (m *Manager) Start(ctx context.Context, cfg Config) (*Controller, error) {
	c := NewController(cfg)

	m.mu.Lock()
	prev := m.current
	m.current = c
	m.mu.Unlock()

	if prev != nil {
		prev.Stop()
	}

	if err := c.Start(ctx); err != nil {
		c.Stop()
		m.mu.Lock()
		if m.current == c {
			m.current = nil
		}
		m.mu.Unlock()
		return nil, err
	}
	return c, nil
}

// Stop ends the running session, if any. It reports whether one was running.
func (m *Manager) Stop() bool {
	m.mu.Lock()
	c := m.current
	m.current = nil
	m.mu.Unlock()

	if c == nil {
		return false
	}
	running := c.State() != domain.LiveStateClosed
	c.Stop()
	return running
}

// Active returns the running session, or nil when none is live.
func (m *Manager) Active() *Controller {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil || m.current.State() == domain.LiveStateClosed {
		return nil
	}
	return m.current
}

// Status returns the running session's status, or an IDLE status.
func (m *Manager) Status() domain.LiveStatus {
	c := m.Active()
	if c == nil {
		return domain.LiveStatus{State: domain.LiveStateIdle}
	}
	return domain.LiveStatus{
		SessionID:     c.ID(),
		PersonalityID: c.PersonalityID(),
		State:         c.State(),
		Speaking:      c.Speaking(),
	}
}
