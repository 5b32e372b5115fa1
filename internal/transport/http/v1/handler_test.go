package v1

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cid-kageno-dev/Personal-AI/internal/adapter/llm"
	"github.com/cid-kageno-dev/Personal-AI/internal/config"
	"github.com/cid-kageno-dev/Personal-AI/internal/domain"
	"github.com/cid-kageno-dev/Personal-AI/internal/live"
	"github.com/cid-kageno-dev/Personal-AI/internal/persona"
	"github.com/cid-kageno-dev/Personal-AI/internal/service"
	"github.com/cid-kageno-dev/Personal-AI/internal/state"
	"github.com/cid-kageno-dev/Personal-AI/tests/helpers"
)

func newTestHandler(t *testing.T, client llm.Client) (*Handler, *state.Store) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	catalog := persona.NewCatalog(helpers.NewTestSQLiteStore(t))
	all, err := catalog.Load(ctx)
	require.NoError(t, err)
	st := state.New(all)
	go st.Run(ctx)

	policy, err := persona.NewPolicy(ctx, "", persona.DefaultLimits)
	require.NoError(t, err)

	svc := service.New(st, client, catalog, persona.NewBuilder(), policy, live.NewManager(), nil, nil, config.Default())
	return NewHandler(svc), st
}

func newContext(method, target, body string, params ...string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	for i := 0; i+1 < len(params); i += 2 {
		c.SetParamNames(params[i])
		c.SetParamValues(params[i+1])
	}
	return c, rec
}

type sseEvent struct {
	name string
	data service.ChatEvent
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	var name string
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			var ev service.ChatEvent
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
			events = append(events, sseEvent{name: name, data: ev})
		}
	}
	return events
}

func TestPostMessageStreamsReply(t *testing.T) {
	h, st := newTestHandler(t, &llm.MockClient{Reply: "Hello there!", ChunkSize: 5})

	c, rec := newContext(http.MethodPost, "/v1/personas/tech-guru/messages", `{"text":"hi"}`, "id", persona.IDTechGuru)
	require.NoError(t, h.PostMessage(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := parseSSE(t, rec.Body.String())
	require.Len(t, events, 5)
	assert.Equal(t, "message", events[0].name)
	assert.Equal(t, domain.RoleUser, events[0].data.Message.Role)
	assert.Equal(t, "message", events[1].name)
	assert.Equal(t, "Hello", events[1].data.Message.Text)
	assert.Equal(t, "delta", events[2].name)
	assert.Equal(t, "done", events[4].name)
	assert.Equal(t, "Hello there!", events[4].data.Message.Text)

	conv, err := st.Conversation(context.Background(), persona.IDTechGuru)
	require.NoError(t, err)
	require.Len(t, conv, 2)
	assert.Equal(t, "Hello there!", conv[1].Text)
}

func TestPostMessageUpstreamFailure(t *testing.T) {
	h, _ := newTestHandler(t, &llm.MockClient{Err: errors.New("quota")})

	c, rec := newContext(http.MethodPost, "/v1/personas/tech-guru/messages", `{"text":"hi"}`, "id", persona.IDTechGuru)
	require.NoError(t, h.PostMessage(c))

	events := parseSSE(t, rec.Body.String())
	require.Len(t, events, 2)
	assert.Equal(t, "error", events[1].name)
	assert.Equal(t, service.ApologyText, events[1].data.Message.Text)
}

func TestPostMessageValidation(t *testing.T) {
	h, _ := newTestHandler(t, llm.NewMockClient())

	tests := []struct {
		name   string
		id     string
		body   string
		status int
	}{
		{"empty text", persona.IDTechGuru, `{"text":"  "}`, http.StatusBadRequest},
		{"unknown persona", "ghost", `{"text":"hi"}`, http.StatusNotFound},
		{"bad body", persona.IDTechGuru, `{`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newContext(http.MethodPost, "/v1/personas/"+tt.id+"/messages", tt.body, "id", tt.id)
			require.NoError(t, h.PostMessage(c))
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
		})
	}
}

func TestGenerate(t *testing.T) {
	h, _ := newTestHandler(t, &llm.MockClient{Reply: "Simmer gently."})

	c, rec := newContext(http.MethodPost, "/v1/personas/simple-chef/generate", `{"text":"soup?"}`, "id", persona.IDSimpleChef)
	require.NoError(t, h.Generate(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Message domain.ChatMessage `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Simmer gently.", resp.Message.Text)
	assert.Equal(t, domain.RoleModel, resp.Message.Role)
}

func TestGenerateUpstreamFailure(t *testing.T) {
	h, _ := newTestHandler(t, &llm.MockClient{Err: errors.New("down")})

	c, rec := newContext(http.MethodPost, "/v1/personas/simple-chef/generate", `{"text":"soup?"}`, "id", persona.IDSimpleChef)
	require.NoError(t, h.Generate(c))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), service.ApologyText)
}

func TestMessagesGetAndClear(t *testing.T) {
	h, st := newTestHandler(t, llm.NewMockClient())
	ctx := context.Background()
	require.NoError(t, st.AppendMessages(ctx, persona.IDZenMaster,
		domain.ChatMessage{ID: "m1", Role: domain.RoleUser, Text: "om"}))

	c, rec := newContext(http.MethodGet, "/v1/personas/zen-master/messages", "", "id", persona.IDZenMaster)
	require.NoError(t, h.GetMessages(c))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []domain.ChatMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 1)

	c, rec = newContext(http.MethodDelete, "/v1/personas/zen-master/messages", "", "id", persona.IDZenMaster)
	require.NoError(t, h.ClearMessages(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	conv, err := st.Conversation(ctx, persona.IDZenMaster)
	require.NoError(t, err)
	assert.Empty(t, conv)

	c, rec = newContext(http.MethodGet, "/v1/personas/ghost/messages", "", "id", "ghost")
	require.NoError(t, h.GetMessages(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPersonaLifecycle(t *testing.T) {
	h, _ := newTestHandler(t, llm.NewMockClient())

	c, rec := newContext(http.MethodPost, "/v1/personas",
		`{"name":"Nova","description":"Star pilot","backstory":"Flies far.","traits":{"formality":10,"warmth":90,"humor":70}}`)
	require.NoError(t, h.CreatePersona(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created domain.Personality
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.True(t, strings.HasPrefix(created.ID, "custom-"))
	assert.Contains(t, created.SystemInstruction, "Warmth: 90")

	c, rec = newContext(http.MethodGet, "/v1/state", "")
	require.NoError(t, h.GetState(c))
	var st struct {
		ActivePersonalityID string                `json:"active_personality_id"`
		Personalities       []domain.Personality `json:"personalities"`
		Live                domain.LiveStatus     `json:"live"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, created.ID, st.ActivePersonalityID)
	assert.Len(t, st.Personalities, len(persona.Defaults())+1)
	assert.Equal(t, domain.LiveStateIdle, st.Live.State)

	c, rec = newContext(http.MethodDelete, "/v1/personas/"+persona.IDCidKageno, "", "id", persona.IDCidKageno)
	require.NoError(t, h.DeletePersona(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	c, rec = newContext(http.MethodDelete, "/v1/personas/"+created.ID, "", "id", created.ID)
	require.NoError(t, h.DeletePersona(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), persona.Defaults()[0].ID)
}

func TestCreatePersonaRejected(t *testing.T) {
	h, _ := newTestHandler(t, llm.NewMockClient())

	c, rec := newContext(http.MethodPost, "/v1/personas", `{"name":"","model":"gpt-4"}`)
	require.NoError(t, h.CreatePersona(c))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp struct {
		Reasons []string `json:"reasons"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Reasons, "name is required")
	assert.Contains(t, resp.Reasons, `unsupported model "gpt-4"`)
}

func TestSetActive(t *testing.T) {
	h, st := newTestHandler(t, llm.NewMockClient())

	c, rec := newContext(http.MethodPut, "/v1/active", `{"personality_id":"cyberpunk"}`)
	require.NoError(t, h.SetActive(c))
	require.Equal(t, http.StatusOK, rec.Code)

	snap, err := st.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, persona.IDCyberpunk, snap.ActivePersonalityID)

	c, rec = newContext(http.MethodPut, "/v1/active", `{"personality_id":"ghost"}`)
	require.NoError(t, h.SetActive(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	c, rec = newContext(http.MethodPut, "/v1/active", `{}`)
	require.NoError(t, h.SetActive(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLiveEndpointsWhenIdle(t *testing.T) {
	h, _ := newTestHandler(t, llm.NewMockClient())

	c, rec := newContext(http.MethodGet, "/v1/live/status", "")
	require.NoError(t, h.GetLiveStatus(c))
	assert.Contains(t, rec.Body.String(), `"state":"IDLE"`)

	c, rec = newContext(http.MethodDelete, "/v1/live", "")
	require.NoError(t, h.StopLive(c))
	assert.JSONEq(t, `{"stopped":false}`, rec.Body.String())
}

func TestErrorStatus(t *testing.T) {
	assert.Equal(t, http.StatusConflict, errorStatus(service.ErrChatBusy))
	assert.Equal(t, http.StatusConflict, errorStatus(state.ErrDuplicatePersonality))
	assert.Equal(t, http.StatusUnprocessableEntity, errorStatus(&persona.PolicyError{Reasons: []string{"x"}}))
	assert.Equal(t, http.StatusInternalServerError, errorStatus(errors.New("disk on fire")))
}
