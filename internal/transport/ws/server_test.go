package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cid-kageno-dev/Personal-AI/internal/adapter/llm"
	"github.com/cid-kageno-dev/Personal-AI/internal/audio"
	"github.com/cid-kageno-dev/Personal-AI/internal/config"
	"github.com/cid-kageno-dev/Personal-AI/internal/domain"
	"github.com/cid-kageno-dev/Personal-AI/internal/live"
	"github.com/cid-kageno-dev/Personal-AI/internal/persona"
	"github.com/cid-kageno-dev/Personal-AI/internal/service"
	"github.com/cid-kageno-dev/Personal-AI/internal/state"
	"github.com/cid-kageno-dev/Personal-AI/tests/helpers"
)

type upstream struct {
	mu     sync.Mutex
	events chan live.Event
	sent   int
	closed bool
}

func (u *upstream) Send(context.Context, audio.Blob) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return live.ErrSessionClosed
	}
	u.sent++
	return nil
}

func (u *upstream) Events() <-chan live.Event { return u.events }

func (u *upstream) Close() error {
	u.mu.Lock()
	u.closed = true
	u.mu.Unlock()
	return nil
}

func (u *upstream) Sent() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.sent
}

func (u *upstream) Closed() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.closed
}

type upstreamDialer struct {
	transport *upstream
}

func (d *upstreamDialer) Dial(context.Context, live.SessionConfig) (live.Transport, error) {
	return d.transport, nil
}

type testRig struct {
	url      string
	svc      *service.Service
	state    *state.Store
	upstream *upstream
	hub      *Hub
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	catalog := persona.NewCatalog(helpers.NewTestSQLiteStore(t))
	all, err := catalog.Load(ctx)
	require.NoError(t, err)
	st := state.New(all)
	go st.Run(ctx)

	up := &upstream{events: make(chan live.Event, 16)}
	manager := live.NewManager()
	cfg := config.Default()
	svc := service.New(st, llm.NewMockClient(), catalog, persona.NewBuilder(), nil, manager, &upstreamDialer{transport: up}, nil, cfg)

	hub := NewHub(nil)
	go hub.Run(ctx)
	srv := NewServer(cfg.WS, hub, svc)
	srv.Forward(ctx)

	e := echo.New()
	srv.RegisterRoutes(e)
	ts := httptest.NewServer(e)

	t.Cleanup(func() {
		manager.Stop()
		ts.Close()
		cancel()
	})
	return &testRig{
		url:      "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/live",
		svc:      svc,
		state:    st,
		upstream: up,
		hub:      hub,
	}
}

func (r *testRig) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(r.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

// readUntil reads messages until one of type typ satisfies match.
func readUntil(t *testing.T, conn *websocket.Conn, typ string, match func(map[string]interface{}) bool) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", typ)

		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &m))
		if m["type"] == typ && (match == nil || match(m)) {
			return m
		}
	}
}

func pcmBlob(samples int) audio.Blob {
	return audio.Blob{
		MIMEType: audio.MIMEType(24000),
		Data:     audio.BytesToText(make([]byte, samples*2)),
	}
}

func TestHelloAndSubscribe(t *testing.T) {
	rig := newTestRig(t)
	conn := rig.dial(t)

	send(t, conn, map[string]string{"type": TypeHello})
	ack := readUntil(t, conn, TypeHelloAck, nil)
	assert.NotEmpty(t, ack["connection_id"])
	status := readUntil(t, conn, TypeStatus, nil)
	assert.Equal(t, string(domain.LiveStateIdle), status["state"])

	send(t, conn, map[string]string{"type": TypeSubscribe, "personality_id": persona.IDTechGuru})
	snap := readUntil(t, conn, TypeConversation, nil)
	assert.Equal(t, persona.IDTechGuru, snap["personality_id"])

	require.NoError(t, rig.state.AppendMessages(context.Background(), persona.IDTechGuru,
		domain.ChatMessage{ID: "m1", Role: domain.RoleUser, Text: "ping"}))
	update := readUntil(t, conn, TypeConversation, func(m map[string]interface{}) bool {
		return m["kind"] == string(state.ChangeMessageAppended)
	})
	assert.Equal(t, "ping", update["message"].(map[string]interface{})["text"])

	send(t, conn, map[string]string{"type": TypeSubscribe, "personality_id": "ghost"})
	errMsg := readUntil(t, conn, TypeError, nil)
	assert.Equal(t, ErrorCodeNotFound, errMsg["code"])
}

func TestStateChangesReachEveryone(t *testing.T) {
	rig := newTestRig(t)
	conn := rig.dial(t)
	send(t, conn, map[string]string{"type": TypeHello})
	readUntil(t, conn, TypeHelloAck, nil)

	require.NoError(t, rig.svc.SelectPersonality(context.Background(), persona.IDCyberpunk))
	msg := readUntil(t, conn, TypeState, nil)
	assert.Equal(t, string(state.ChangeActiveChanged), msg["kind"])
	assert.Equal(t, persona.IDCyberpunk, msg["personality_id"])
}

func TestInvalidMessages(t *testing.T) {
	rig := newTestRig(t)
	conn := rig.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	msg := readUntil(t, conn, TypeError, nil)
	assert.Equal(t, ErrorCodeInvalidMessage, msg["code"])

	send(t, conn, map[string]string{"type": "bogus"})
	msg = readUntil(t, conn, TypeError, nil)
	assert.Contains(t, msg["message"], "bogus")
}

func TestLiveSessionRoundTrip(t *testing.T) {
	rig := newTestRig(t)
	conn := rig.dial(t)

	send(t, conn, map[string]string{"type": TypeLiveStart, "personality_id": persona.IDZenMaster})
	readUntil(t, conn, TypeMicRequest, nil)
	send(t, conn, map[string]interface{}{"type": TypeMicReady, "sample_rate": 16000})

	require.Eventually(t, func() bool { return rig.svc.ActiveLive() != nil }, 2*time.Second, 10*time.Millisecond)
	rig.upstream.events <- live.Event{Type: live.EventOpen}
	readUntil(t, conn, TypeStatus, func(m map[string]interface{}) bool {
		return m["state"] == string(domain.LiveStateOpen)
	})

	send(t, conn, map[string]interface{}{"type": TypeAudio, "samples": make([]float32, 4096)})
	require.Eventually(t, func() bool { return rig.upstream.Sent() > 0 }, 2*time.Second, 10*time.Millisecond)

	rig.upstream.events <- live.Event{Type: live.EventAudio, Audio: pcmBlob(2400)}
	play := readUntil(t, conn, TypePlay, nil)
	voiceID := play["voice_id"].(string)
	assert.NotEmpty(t, voiceID)
	assert.Equal(t, float64(24000), play["sample_rate"])
	assert.NotEmpty(t, play["data"])

	send(t, conn, map[string]string{"type": TypeEnded, "voice_id": voiceID})
	readUntil(t, conn, TypeStatus, func(m map[string]interface{}) bool {
		return m["speaking"] == false && m["state"] == string(domain.LiveStateOpen)
	})

	rig.upstream.events <- live.Event{Type: live.EventInputTranscript, Text: "hi"}
	rig.upstream.events <- live.Event{Type: live.EventOutputTranscript, Text: "hello"}
	rig.upstream.events <- live.Event{Type: live.EventTurnComplete}
	require.Eventually(t, func() bool {
		conv, err := rig.state.Conversation(context.Background(), persona.IDZenMaster)
		return err == nil && len(conv) == 2
	}, 2*time.Second, 10*time.Millisecond)

	send(t, conn, map[string]string{"type": TypeLiveStop})
	readUntil(t, conn, TypeStatus, func(m map[string]interface{}) bool {
		return m["state"] == string(domain.LiveStateClosed)
	})
	assert.True(t, rig.upstream.Closed())
	assert.Nil(t, rig.svc.ActiveLive())
}

func TestLiveAudioBeforeOpenIsDropped(t *testing.T) {
	rig := newTestRig(t)
	conn := rig.dial(t)

	send(t, conn, map[string]string{"type": TypeLiveStart})
	readUntil(t, conn, TypeMicRequest, nil)
	send(t, conn, map[string]interface{}{"type": TypeMicReady, "sample_rate": 16000})
	require.Eventually(t, func() bool { return rig.svc.ActiveLive() != nil }, 2*time.Second, 10*time.Millisecond)

	for i := 0; i < 5; i++ {
		send(t, conn, map[string]interface{}{"type": TypeAudio, "samples": make([]float32, 4096)})
	}
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, rig.upstream.Sent())

	rig.upstream.events <- live.Event{Type: live.EventOpen}
	readUntil(t, conn, TypeStatus, func(m map[string]interface{}) bool {
		return m["state"] == string(domain.LiveStateOpen)
	})
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, rig.upstream.Sent())

	send(t, conn, map[string]interface{}{"type": TypeAudio, "samples": make([]float32, 4096)})
	require.Eventually(t, func() bool { return rig.upstream.Sent() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestLiveMicDenied(t *testing.T) {
	rig := newTestRig(t)
	conn := rig.dial(t)

	send(t, conn, map[string]string{"type": TypeLiveStart})
	readUntil(t, conn, TypeMicRequest, nil)
	send(t, conn, map[string]string{"type": TypeMicError, "name": "NotAllowedError"})

	msg := readUntil(t, conn, TypeError, nil)
	assert.Equal(t, ErrorCodeMicError, msg["code"])
	assert.Contains(t, msg["message"], "permission was denied")
	assert.Nil(t, rig.svc.ActiveLive())
}

func TestDisconnectStopsLive(t *testing.T) {
	rig := newTestRig(t)
	conn := rig.dial(t)

	send(t, conn, map[string]string{"type": TypeLiveStart})
	readUntil(t, conn, TypeMicRequest, nil)
	send(t, conn, map[string]interface{}{"type": TypeMicReady, "sample_rate": 48000})
	rig.upstream.events <- live.Event{Type: live.EventOpen}
	readUntil(t, conn, TypeStatus, func(m map[string]interface{}) bool {
		return m["state"] == string(domain.LiveStateOpen)
	})

	conn.Close()

	require.Eventually(t, func() bool { return rig.svc.ActiveLive() == nil }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, rig.upstream.Closed())
}

func TestMicErrorFromClient(t *testing.T) {
	assert.ErrorIs(t, micErrorFromClient("NotAllowedError", ""), live.ErrMicPermissionDenied)
	assert.ErrorIs(t, micErrorFromClient("NotFoundError", ""), live.ErrMicNotFound)
	assert.ErrorIs(t, micErrorFromClient("NotSupportedError", ""), live.ErrMicUnsupported)
	assert.EqualError(t, micErrorFromClient("AbortError", "device busy"), "device busy")
}
