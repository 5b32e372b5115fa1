package domain

// AppState is the single process-wide application record.
type AppState struct {
	ActivePersonalityID string                  `json:"active_personality_id"`
	Chats               map[string]Conversation `json:"chats"`
	Personalities       []Personality           `json:"personalities"`
}

// FindPersonality returns the personality with the given ID.
func (s *AppState) FindPersonality(id string) (Personality, bool) {
	for _, p := range s.Personalities {
		if p.ID == id {
			return p, true
		}
	}
	return Personality{}, false
}

// ActivePersonality resolves the active personality, falling back to the first one.
func (s *AppState) ActivePersonality() (Personality, bool) {
	if p, ok := s.FindPersonality(s.ActivePersonalityID); ok {
		return p, true
	}
	if len(s.Personalities) > 0 {
		return s.Personalities[0], true
	}
	return Personality{}, false
}

// Clone returns a deep copy of the state.
func (s *AppState) Clone() *AppState {
	out := &AppState{
		ActivePersonalityID: s.ActivePersonalityID,
		Chats:               make(map[string]Conversation, len(s.Chats)),
		Personalities:       make([]Personality, len(s.Personalities)),
	}
	for id, conv := range s.Chats {
		out.Chats[id] = conv.Clone()
	}
	for i, p := range s.Personalities {
		out.Personalities[i] = p.Clone()
	}
	return out
}
