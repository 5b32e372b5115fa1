package live

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/cid-kageno-dev/Personal-AI/internal/audio"
)

// DefaultGeminiURL is the realtime BidiGenerateContent endpoint.
const DefaultGeminiURL = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

const (
	geminiWriteTimeout = 10 * time.Second
	geminiEventBuffer  = 64
	geminiReadLimit    = 16 << 20
)

// GeminiDialer opens realtime sessions over websocket.
type GeminiDialer struct {
	URL    string
	APIKey string
	Dialer *websocket.Dialer
}

// NewGeminiDialer creates a dialer for the given endpoint and key. An empty
// endpoint uses DefaultGeminiURL.
func NewGeminiDialer(endpoint, apiKey string) *GeminiDialer {
	if endpoint == "" {
		endpoint = DefaultGeminiURL
	}
	return &GeminiDialer{
		URL:    endpoint,
		APIKey: apiKey,
		Dialer: &websocket.Dialer{HandshakeTimeout: 15 * time.Second},
	}
}

// Wire format of the setup handshake and streamed messages.

type geminiSetupMessage struct {
	Setup geminiSetup `json:"setup"`
}

type geminiSetup struct {
	Model                    string                 `json:"model"`
	GenerationConfig         geminiGenerationConfig `json:"generationConfig"`
	SystemInstruction        *geminiContent         `json:"systemInstruction,omitempty"`
	InputAudioTranscription  *struct{}              `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *struct{}              `json:"outputAudioTranscription,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string           `json:"responseModalities"`
	SpeechConfig       geminiSpeechConfig `json:"speechConfig"`
}

type geminiSpeechConfig struct {
	VoiceConfig struct {
		PrebuiltVoiceConfig struct {
			VoiceName string `json:"voiceName"`
		} `json:"prebuiltVoiceConfig"`
	} `json:"voiceConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *audio.Blob `json:"inlineData,omitempty"`
}

type geminiRealtimeInput struct {
	RealtimeInput struct {
		MediaChunks []audio.Blob `json:"mediaChunks"`
	} `json:"realtimeInput"`
}

type geminiServerMessage struct {
	SetupComplete *json.RawMessage     `json:"setupComplete,omitempty"`
	ServerContent *geminiServerContent `json:"serverContent,omitempty"`
	GoAway        *json.RawMessage     `json:"goAway,omitempty"`
}

type geminiServerContent struct {
	ModelTurn           *geminiContent       `json:"modelTurn,omitempty"`
	Interrupted         bool                 `json:"interrupted,omitempty"`
	InputTranscription  *geminiTranscription `json:"inputTranscription,omitempty"`
	OutputTranscription *geminiTranscription `json:"outputTranscription,omitempty"`
	TurnComplete        bool                 `json:"turnComplete,omitempty"`
}

type geminiTranscription struct {
	Text string `json:"text"`
}

// Dial connects, sends the setup message and starts reading. The returned
// transport reports EventOpen once the server acknowledges setup.
func (d *GeminiDialer) Dial(ctx context.Context, cfg SessionConfig) (Transport, error) {
	endpoint, err := url.Parse(d.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid live endpoint: %w", err)
	}
	if d.APIKey != "" {
		q := endpoint.Query()
		q.Set("key", d.APIKey)
		endpoint.RawQuery = q.Encode()
	}

	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial live endpoint: %w", err)
	}
	conn.SetReadLimit(geminiReadLimit)

	t := &geminiTransport{
		conn:   conn,
		events: make(chan Event, geminiEventBuffer),
		done:   make(chan struct{}),
		log:    logrus.WithField("model", cfg.Model),
	}
	if err := t.writeJSON(newSetupMessage(cfg)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send live setup: %w", err)
	}

	go t.readPump()
	return t, nil
}

func newSetupMessage(cfg SessionConfig) geminiSetupMessage {
	model := cfg.Model
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}

	setup := geminiSetup{
		Model: model,
		GenerationConfig: geminiGenerationConfig{
			ResponseModalities: []string{"AUDIO"},
		},
		InputAudioTranscription:  &struct{}{},
		OutputAudioTranscription: &struct{}{},
	}
	setup.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName = cfg.Voice
	if cfg.SystemInstruction != "" {
		setup.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: cfg.SystemInstruction}}}
	}
	return geminiSetupMessage{Setup: setup}
}

type geminiTransport struct {
	conn   *websocket.Conn
	events chan Event
	done   chan struct{}
	log    *logrus.Entry

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (t *geminiTransport) Events() <-chan Event {
	return t.events
}

// Send forwards one capture frame as a realtime media chunk.
func (t *geminiTransport) Send(ctx context.Context, blob audio.Blob) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		return ErrSessionClosed
	default:
	}

	var msg geminiRealtimeInput
	msg.RealtimeInput.MediaChunks = []audio.Blob{blob}
	return t.writeJSON(msg)
}

func (t *geminiTransport) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	t.conn.SetWriteDeadline(time.Now().Add(geminiWriteTimeout))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

// Close shuts the connection. Events is closed once the read loop exits.
func (t *geminiTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		t.writeMu.Lock()
		t.conn.SetWriteDeadline(time.Now().Add(time.Second))
		t.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		t.writeMu.Unlock()
		err = t.conn.Close()
	})
	return err
}

func (t *geminiTransport) readPump() {
	defer close(t.events)

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			select {
			case <-t.done:
				return
			default:
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.emit(Event{Type: EventError, Err: err})
			}
			t.emit(Event{Type: EventClose})
			return
		}

		var msg geminiServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.log.WithError(err).Warn("Ignoring malformed live message")
			continue
		}
		if msg.GoAway != nil {
			t.log.Warn("Live server announced disconnect")
		}
		for _, ev := range translate(msg) {
			if !t.emit(ev) {
				return
			}
		}
	}
}

func (t *geminiTransport) emit(ev Event) bool {
	select {
	case t.events <- ev:
		return true
	case <-t.done:
		return false
	}
}

// translate maps one server message to events in the order the session
// must apply them: audio, interruption, transcripts, turn completion.
func translate(msg geminiServerMessage) []Event {
	var events []Event
	if msg.SetupComplete != nil {
		events = append(events, Event{Type: EventOpen})
	}

	sc := msg.ServerContent
	if sc != nil {
		if sc.ModelTurn != nil {
			for _, part := range sc.ModelTurn.Parts {
				if part.InlineData != nil && part.InlineData.Data != "" {
					events = append(events, Event{Type: EventAudio, Audio: *part.InlineData})
				}
			}
		}
		if sc.Interrupted {
			events = append(events, Event{Type: EventInterrupted})
		}
		if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
			events = append(events, Event{Type: EventInputTranscript, Text: sc.InputTranscription.Text})
		}
		if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
			events = append(events, Event{Type: EventOutputTranscript, Text: sc.OutputTranscription.Text})
		}
		if sc.TurnComplete {
			events = append(events, Event{Type: EventTurnComplete})
		}
	}
	return events
}
