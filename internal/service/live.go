package service

import (
	"context"

	"github.com/cid-kageno-dev/Personal-AI/internal/domain"
	"github.com/cid-kageno-dev/Personal-AI/internal/live"
)

// LiveDevices are the client-side audio endpoints of one voice session.
type LiveDevices struct {
	Microphone live.Microphone
	Speaker    live.Speaker
	OnStatus   live.StatusFunc
}

// StartLive opens a voice session for personalityID, replacing any running
// session. An empty personalityID selects the active personality. Finished
// voice turns are appended to that personality's conversation.
func (s *Service) StartLive(ctx context.Context, personalityID string, devices LiveDevices) (*live.Controller, error) {
	var p domain.Personality
	if personalityID == "" {
		st, err := s.state.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		active, ok := st.ActivePersonality()
		if !ok {
			return nil, ErrPersonalityNotFound
		}
		p = active
	} else {
		found, err := s.state.Personality(ctx, personalityID)
		if err != nil {
			return nil, err
		}
		p = found
	}

	return s.live.Start(ctx, live.Config{
		Personality: p,
		Model:       s.config.Live.Model,
		Voice:       s.config.Live.Voice,
		Dialer:      s.dialer,
		Microphone:  devices.Microphone,
		Speaker:     devices.Speaker,
		Turns:       s.state,
		OnStatus:    devices.OnStatus,
		Metrics:     s.metrics,
	})
}

// StopLive ends the running voice session. It reports whether one was running.
func (s *Service) StopLive() bool {
	return s.live.Stop()
}

// LiveStatus describes the running voice session, or IDLE.
func (s *Service) LiveStatus() domain.LiveStatus {
	return s.live.Status()
}

// ActiveLive returns the running session or nil.
func (s *Service) ActiveLive() *live.Controller {
	return s.live.Active()
}
