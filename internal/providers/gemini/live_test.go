package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"visionary/internal/domain"
)

type recordingHandler struct {
	mu       sync.Mutex
	opened   int
	messages []domain.LiveMessage
	errs     []error
	closed   chan struct{}
	received chan domain.LiveMessage
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{closed: make(chan struct{}), received: make(chan domain.LiveMessage, 16)}
}

func (h *recordingHandler) OnOpen() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opened++
}

func (h *recordingHandler) OnMessage(msg domain.LiveMessage) {
	h.mu.Lock()
	h.messages = append(h.messages, msg)
	h.mu.Unlock()
	h.received <- msg
}

func (h *recordingHandler) OnError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, err)
}

func (h *recordingHandler) OnClose() { close(h.closed) }

func (h *recordingHandler) snapshotErrs() []error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]error(nil), h.errs...)
}

type liveServer struct {
	*httptest.Server
	setups chan []byte
	inputs chan []byte
	conns  chan *websocket.Conn
	query  chan string
}

func newLiveServer(t *testing.T) *liveServer {
	t.Helper()

	s := &liveServer{
		setups: make(chan []byte, 1),
		inputs: make(chan []byte, 16),
		conns:  make(chan *websocket.Conn, 1),
		query:  make(chan string, 1),
	}
	upgrader := websocket.Upgrader{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != livePath {
			http.NotFound(w, r)
			return
		}
		s.query <- r.URL.RawQuery
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_, setup, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.setups <- setup
		s.conns <- conn
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.inputs <- payload
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *liveServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for value")
		var zero T
		return zero
	}
}

func TestProviderConnectRequiresAPIKey(t *testing.T) {
	t.Parallel()

	p := NewProvider(Config{})
	if _, err := p.Connect(context.Background(), domain.LiveConfig{}, newRecordingHandler()); err == nil {
		t.Fatalf("expected missing key error")
	}
}

func TestNewProviderDefaults(t *testing.T) {
	t.Parallel()

	if got := NewProvider(Config{}).cfg.APIBaseURL; got != defaultBaseURL {
		t.Fatalf("unexpected base url: %q", got)
	}
}

func TestBuildLiveURL(t *testing.T) {
	t.Parallel()

	got, err := buildLiveURL(Config{APIKey: "k&y", APIBaseURL: "https://example.test/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "wss://example.test" + livePath + "?key=k%26y"
	if got != want {
		t.Fatalf("unexpected url:\n got %s\nwant %s", got, want)
	}

	if got, _ := buildLiveURL(Config{APIKey: "k", APIBaseURL: "http://localhost:9000"}); !strings.HasPrefix(got, "ws://localhost:9000/ws/") {
		t.Fatalf("unexpected local url: %s", got)
	}
	if _, err := buildLiveURL(Config{APIBaseURL: "ftp://example.test"}); err == nil {
		t.Fatalf("expected unsupported scheme error")
	}
	if _, err := buildLiveURL(Config{APIBaseURL: ":// bad"}); err == nil {
		t.Fatalf("expected invalid url error")
	}
}

func TestBuildSetupMessage(t *testing.T) {
	t.Parallel()

	payload, err := json.Marshal(buildSetup(domain.LiveConfig{
		Model:               "gemini-2.5-flash-native-audio-preview-12-2025",
		VoiceName:           "Zephyr",
		SystemPrompt:        "Be helpful.",
		InputTranscription:  true,
		OutputTranscription: true,
	}))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	want := `{"setup":{"model":"models/gemini-2.5-flash-native-audio-preview-12-2025",` +
		`"generationConfig":{"responseModalities":["AUDIO"],"speechConfig":{"voiceConfig":{"prebuiltVoiceConfig":{"voiceName":"Zephyr"}}}},` +
		`"systemInstruction":{"parts":[{"text":"Be helpful."}]},` +
		`"inputAudioTranscription":{},"outputAudioTranscription":{}}}`
	if string(payload) != want {
		t.Fatalf("unexpected setup:\n got %s\nwant %s", payload, want)
	}

	minimal, _ := json.Marshal(buildSetup(domain.LiveConfig{Model: "models/x"}))
	if string(minimal) != `{"setup":{"model":"models/x","generationConfig":{"responseModalities":["AUDIO"]}}}` {
		t.Fatalf("unexpected minimal setup: %s", minimal)
	}
}

func TestDecodeServerMessage(t *testing.T) {
	t.Parallel()

	msg, ok, err := decodeServerMessage([]byte(`{"serverContent":{
		"modelTurn":{"parts":[{"inlineData":{"mimeType":"audio/pcm;rate=24000","data":"AAAA"}},{"inlineData":{"data":"BBBB"}}]},
		"outputTranscription":{"text":"Hello"},
		"turnComplete":true,
		"interrupted":true}}`))
	if err != nil || !ok {
		t.Fatalf("decode failed: ok=%v err=%v", ok, err)
	}
	if msg.AudioData != "AAAA" {
		t.Fatalf("expected first part audio, got %q", msg.AudioData)
	}
	if msg.OutputTranscription == nil || msg.OutputTranscription.Text != "Hello" || msg.InputTranscription != nil {
		t.Fatalf("unexpected transcriptions: %+v", msg)
	}
	if !msg.TurnComplete || !msg.Interrupted {
		t.Fatalf("expected turn flags")
	}

	if _, ok, err := decodeServerMessage([]byte(`{"setupComplete":{}}`)); ok || err != nil {
		t.Fatalf("expected setupComplete to be skipped, ok=%v err=%v", ok, err)
	}
	if _, _, err := decodeServerMessage([]byte(`not json`)); err == nil {
		t.Fatalf("expected decode error")
	}
	msg, ok, _ = decodeServerMessage([]byte(`{"serverContent":{"modelTurn":{"parts":[{"text":"hi"}]}}}`))
	if !ok || msg.AudioData != "" {
		t.Fatalf("expected text-only turn without audio: %+v", msg)
	}
}

func TestProviderSessionRoundTrip(t *testing.T) {
	t.Parallel()

	server := newLiveServer(t)
	handler := newRecordingHandler()
	p := NewProvider(Config{APIKey: "secret", APIBaseURL: server.wsURL()})

	session, err := p.Connect(context.Background(), domain.LiveConfig{Model: "m", VoiceName: "Zephyr"}, handler)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	if query := receive(t, server.query); query != "key=secret" {
		t.Fatalf("unexpected query: %q", query)
	}
	setup := receive(t, server.setups)
	if !strings.Contains(string(setup), `"model":"models/m"`) {
		t.Fatalf("unexpected setup: %s", setup)
	}
	conn := receive(t, server.conns)

	if err := session.SendRealtimeInput(domain.MediaChunk{MimeType: "image/jpeg", Data: "Zm9v"}); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	input := receive(t, server.inputs)
	if string(input) != `{"realtimeInput":{"mediaChunks":[{"mimeType":"image/jpeg","data":"Zm9v"}]}}` {
		t.Fatalf("unexpected realtime input: %s", input)
	}

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte(`{"setupComplete":{}}`)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"serverContent":{"inputTranscription":{"text":"hi"}}}`)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	msg := receive(t, handler.received)
	if msg.InputTranscription == nil || msg.InputTranscription.Text != "hi" {
		t.Fatalf("unexpected message: %+v", msg)
	}

	if err := session.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	receive(t, handler.closed)
	if len(handler.snapshotErrs()) != 0 {
		t.Fatalf("expected local close without errors, got %v", handler.snapshotErrs())
	}
	if handler.opened != 1 {
		t.Fatalf("expected a single open callback")
	}
	if err := session.SendRealtimeInput(domain.MediaChunk{}); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}

func TestProviderRemoteCloseAndFailure(t *testing.T) {
	t.Parallel()

	t.Run("normal closure", func(t *testing.T) {
		t.Parallel()

		server := newLiveServer(t)
		handler := newRecordingHandler()
		p := NewProvider(Config{APIKey: "k", APIBaseURL: server.wsURL()})
		if _, err := p.Connect(context.Background(), domain.LiveConfig{}, handler); err != nil {
			t.Fatalf("connect failed: %v", err)
		}
		conn := receive(t, server.conns)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		receive(t, handler.closed)
		if len(handler.snapshotErrs()) != 0 {
			t.Fatalf("expected no error for normal closure")
		}
	})

	t.Run("abrupt failure", func(t *testing.T) {
		t.Parallel()

		server := newLiveServer(t)
		handler := newRecordingHandler()
		p := NewProvider(Config{APIKey: "k", APIBaseURL: server.wsURL()})
		if _, err := p.Connect(context.Background(), domain.LiveConfig{}, handler); err != nil {
			t.Fatalf("connect failed: %v", err)
		}
		conn := receive(t, server.conns)
		_ = conn.UnderlyingConn().Close()

		receive(t, handler.closed)
		if len(handler.snapshotErrs()) != 1 {
			t.Fatalf("expected one error before close, got %v", handler.snapshotErrs())
		}
	})
}

func TestProviderContextCancelClosesSession(t *testing.T) {
	t.Parallel()

	server := newLiveServer(t)
	handler := newRecordingHandler()
	p := NewProvider(Config{APIKey: "k", APIBaseURL: server.wsURL()})

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := p.Connect(ctx, domain.LiveConfig{}, handler); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	receive(t, server.conns)
	cancel()

	receive(t, handler.closed)
	if len(handler.snapshotErrs()) != 0 {
		t.Fatalf("expected cancellation without errors")
	}
}

func TestProviderConnectDialFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	p := NewProvider(Config{APIKey: "k", APIBaseURL: "ws" + strings.TrimPrefix(server.URL, "http")})
	if _, err := p.Connect(context.Background(), domain.LiveConfig{}, newRecordingHandler()); err == nil {
		t.Fatalf("expected dial failure")
	}
}
