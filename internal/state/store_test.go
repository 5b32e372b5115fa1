package state

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cid-kageno-dev/Personal-AI/internal/domain"
)

func newRunningStore(t *testing.T, ids ...string) *Store {
	t.Helper()
	var ps []domain.Personality
	for _, id := range ids {
		ps = append(ps, domain.Personality{ID: id, Name: id})
	}
	s := New(ps)
	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	t.Cleanup(cancel)
	return s
}

func msg(id string, role domain.Role, text string) domain.ChatMessage {
	return domain.ChatMessage{ID: id, Role: role, Text: text, Timestamp: time.Unix(1700000000, 0)}
}

func TestStore_InitialState(t *testing.T) {
	s := newRunningStore(t, "a", "b")

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", snap.ActivePersonalityID)
	assert.Len(t, snap.Personalities, 2)
	assert.Empty(t, snap.Chats)
}

func TestStore_AppendAndUpdate(t *testing.T) {
	ctx := context.Background()
	s := newRunningStore(t, "a")

	require.NoError(t, s.AppendMessages(ctx, "a", msg("u1", domain.RoleUser, "hi"), msg("m1", domain.RoleModel, "Hel")))
	require.NoError(t, s.UpdateMessage(ctx, "a", "m1", "Hello!"))

	conv, err := s.Conversation(ctx, "a")
	require.NoError(t, err)
	require.Len(t, conv, 2)
	assert.Equal(t, "hi", conv[0].Text)
	assert.Equal(t, "Hello!", conv[1].Text)

	err = s.UpdateMessage(ctx, "a", "missing", "x")
	assert.ErrorIs(t, err, ErrMessageNotFound)

	err = s.AppendMessages(ctx, "nobody", msg("x", domain.RoleUser, "x"))
	assert.ErrorIs(t, err, ErrPersonalityNotFound)
}

func TestStore_ReadsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := newRunningStore(t, "a")
	require.NoError(t, s.AppendMessages(ctx, "a", msg("u1", domain.RoleUser, "hi")))

	conv, err := s.Conversation(ctx, "a")
	require.NoError(t, err)
	conv[0].Text = "mutated"

	again, err := s.Conversation(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "hi", again[0].Text)
}

func TestStore_ConversationsAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := newRunningStore(t, "a", "b")

	require.NoError(t, s.AppendMessages(ctx, "a", msg("u1", domain.RoleUser, "for a")))

	b, err := s.Conversation(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, b)
	assert.NotNil(t, b)
}

func TestStore_ConcurrentAppendsAreAtomic(t *testing.T) {
	ctx := context.Background()
	s := newRunningStore(t, "a")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.AppendMessages(ctx, "a",
				msg("u", domain.RoleUser, "q"), msg("m", domain.RoleModel, "a")))
		}()
	}
	wg.Wait()

	conv, err := s.Conversation(ctx, "a")
	require.NoError(t, err)
	require.Len(t, conv, 40)
	for i := 0; i < len(conv); i += 2 {
		assert.Equal(t, domain.RoleUser, conv[i].Role)
		assert.Equal(t, domain.RoleModel, conv[i+1].Role)
	}
}

func TestStore_Clear(t *testing.T) {
	ctx := context.Background()
	s := newRunningStore(t, "a")
	require.NoError(t, s.AppendMessages(ctx, "a", msg("u1", domain.RoleUser, "hi")))

	require.NoError(t, s.Clear(ctx, "a"))

	conv, err := s.Conversation(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, conv)
	assert.ErrorIs(t, s.Clear(ctx, "nobody"), ErrPersonalityNotFound)
}

func TestStore_SetActive(t *testing.T) {
	ctx := context.Background()
	s := newRunningStore(t, "a", "b")

	require.NoError(t, s.SetActive(ctx, "b"))
	snap, _ := s.Snapshot(ctx)
	assert.Equal(t, "b", snap.ActivePersonalityID)

	assert.ErrorIs(t, s.SetActive(ctx, "nobody"), ErrPersonalityNotFound)
}

func TestStore_AddPersonality(t *testing.T) {
	ctx := context.Background()
	s := newRunningStore(t, "a")

	list, err := s.AddPersonality(ctx, domain.Personality{ID: "custom-1"}, nil)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = s.AddPersonality(ctx, domain.Personality{ID: "custom-1"}, nil)
	assert.ErrorIs(t, err, ErrDuplicatePersonality)

	veto := errors.New("vetoed")
	_, err = s.AddPersonality(ctx, domain.Personality{ID: "custom-2"}, func([]domain.Personality) error { return veto })
	assert.ErrorIs(t, err, veto)

	snap, _ := s.Snapshot(ctx)
	assert.Len(t, snap.Personalities, 2)
}

func TestStore_RemoveActivePersonality(t *testing.T) {
	ctx := context.Background()
	s := newRunningStore(t, "a", "b", "c")
	require.NoError(t, s.SetActive(ctx, "b"))
	require.NoError(t, s.AppendMessages(ctx, "b", msg("u1", domain.RoleUser, "hi")))

	snap, err := s.RemovePersonality(ctx, "b", nil)
	require.NoError(t, err)

	assert.Equal(t, "a", snap.ActivePersonalityID)
	assert.NotContains(t, snap.Chats, "b")
	require.Len(t, snap.Personalities, 2)
	assert.Equal(t, "c", snap.Personalities[1].ID)
}

func TestStore_RemoveGuard(t *testing.T) {
	ctx := context.Background()
	s := newRunningStore(t, "a")

	refuse := errors.New("built in")
	_, err := s.RemovePersonality(ctx, "a", func(domain.Personality) error { return refuse })
	assert.ErrorIs(t, err, refuse)

	_, err = s.RemovePersonality(ctx, "nobody", nil)
	assert.ErrorIs(t, err, ErrPersonalityNotFound)
}

func TestStore_Subscribe(t *testing.T) {
	ctx := context.Background()
	s := newRunningStore(t, "a")
	changes, unsubscribe := s.Subscribe()
	defer unsubscribe()

	require.NoError(t, s.AppendMessages(ctx, "a", msg("u1", domain.RoleUser, "hi")))
	require.NoError(t, s.UpdateMessage(ctx, "a", "u1", "hey"))

	c := <-changes
	assert.Equal(t, ChangeMessageAppended, c.Kind)
	assert.Equal(t, "a", c.PersonalityID)
	assert.Equal(t, "hi", c.Message.Text)

	c = <-changes
	assert.Equal(t, ChangeMessageUpdated, c.Kind)
	assert.Equal(t, "hey", c.Message.Text)
}

func TestStore_Stopped(t *testing.T) {
	s := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	_, err := s.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
}
