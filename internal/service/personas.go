package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/cid-kageno-dev/Personal-AI/internal/domain"
	"github.com/cid-kageno-dev/Personal-AI/internal/persona"
)

// Snapshot returns a copy of the whole application state.
func (s *Service) Snapshot(ctx context.Context) (*domain.AppState, error) {
	return s.state.Snapshot(ctx)
}

// Personalities lists built-in and custom personalities in display order.
func (s *Service) Personalities(ctx context.Context) ([]domain.Personality, error) {
	st, err := s.state.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return st.Personalities, nil
}

// CreatePersonality builds a custom personality from spec, admits it, persists
// the custom list and makes the new personality active.
func (s *Service) CreatePersonality(ctx context.Context, spec persona.Spec) (domain.Personality, error) {
	p, err := s.builder.Build(spec)
	if err != nil {
		return domain.Personality{}, err
	}

	all, err := s.state.AddPersonality(ctx, p, func(existing []domain.Personality) error {
		if s.policy == nil {
			return nil
		}
		return s.policy.Admit(ctx, p, existing)
	})
	if err != nil {
		return domain.Personality{}, err
	}

	if err := s.catalog.Save(ctx, all); err != nil {
		return domain.Personality{}, err
	}
	s.metrics.SetCustomPersonas(len(persona.Custom(all)))

	if err := s.SelectPersonality(ctx, p.ID); err != nil {
		return domain.Personality{}, err
	}

	logrus.WithFields(logrus.Fields{
		"personality_id": p.ID,
		"name":           p.Name,
	}).Info("Custom personality created")
	return p, nil
}

// DeletePersonality removes a custom personality and its conversation.
// A live session bound to it is stopped.
func (s *Service) DeletePersonality(ctx context.Context, id string) (*domain.AppState, error) {
	st, err := s.state.RemovePersonality(ctx, id, func(p domain.Personality) error {
		if persona.IsBuiltin(p.ID) {
			return fmt.Errorf("%w: %s", ErrBuiltinPersona, p.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if c := s.live.Active(); c != nil && c.PersonalityID() == id {
		s.live.Stop()
	}

	if err := s.catalog.Save(ctx, st.Personalities); err != nil {
		return nil, err
	}
	s.metrics.SetCustomPersonas(len(persona.Custom(st.Personalities)))

	logrus.WithField("personality_id", id).Info("Custom personality deleted")
	return st, nil
}

// SelectPersonality makes id the active personality. Switching stops any
// live session.
func (s *Service) SelectPersonality(ctx context.Context, id string) error {
	if err := s.state.SetActive(ctx, id); err != nil {
		return err
	}
	if s.live.Stop() {
		logrus.WithField("personality_id", id).Info("Live session stopped by personality switch")
	}
	return nil
}
