package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"visionary/internal/domain"
	"visionary/internal/logging"
	"visionary/internal/ports"
)

const (
	defaultBaseURL = "wss://generativelanguage.googleapis.com"
	livePath       = "/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	writeTimeout = 10 * time.Second
	closeTimeout = 250 * time.Millisecond
)

var (
	ErrSessionClosed = errors.New("live session closed")
	ErrMissingAPIKey = errors.New("GEMINI_API_KEY is not configured")
)

// Config controls Gemini Live websocket settings.
type Config struct {
	APIKey     string
	APIBaseURL string
}

// Provider implements ports.LiveProvider for the Gemini Live API.
type Provider struct {
	cfg    Config
	dialer *websocket.Dialer
	log    *slog.Logger
}

func NewProvider(cfg Config) *Provider {
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		cfg.APIBaseURL = defaultBaseURL
	}
	return &Provider{cfg: cfg, dialer: websocket.DefaultDialer, log: logging.L("gemini")}
}

// Connect dials the live endpoint and sends the setup message. Callbacks
// run on the session read goroutine, starting with OnOpen.
func (p *Provider) Connect(ctx context.Context, cfg domain.LiveConfig, handler ports.LiveHandler) (ports.LiveSession, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	wsURL, err := buildLiveURL(p.cfg)
	if err != nil {
		return nil, err
	}

	conn, _, err := p.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Gemini Live websocket: %w", err)
	}

	setup, err := json.Marshal(buildSetup(cfg))
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, setup); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to send live setup: %w", err)
	}

	session := &liveSession{
		conn:     conn,
		handler:  handler,
		outbound: make(chan []byte, 64),
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
		log:      p.log,
	}

	session.wg.Add(2)
	go session.readLoop()
	go session.writeLoop()
	go func() {
		session.wg.Wait()
		close(session.done)
		_ = conn.Close()
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = session.Close()
		case <-session.done:
		}
	}()

	return session, nil
}

type liveSession struct {
	conn     *websocket.Conn
	handler  ports.LiveHandler
	outbound chan []byte
	closing  chan struct{}
	done     chan struct{}
	log      *slog.Logger

	wg        sync.WaitGroup
	closeOnce sync.Once
}

func (s *liveSession) SendRealtimeInput(chunk domain.MediaChunk) error {
	payload, err := json.Marshal(realtimeInputMessage{
		RealtimeInput: realtimeInput{MediaChunks: []domain.MediaChunk{chunk}},
	})
	if err != nil {
		return err
	}

	select {
	case <-s.closing:
		return ErrSessionClosed
	default:
	}
	select {
	case s.outbound <- payload:
		return nil
	case <-s.closing:
		return ErrSessionClosed
	case <-s.done:
		return ErrSessionClosed
	}
}

// Close starts a normal closure and returns without waiting for the read
// loop, so handlers may call it.
func (s *liveSession) Close() error {
	s.closeOnce.Do(func() {
		close(s.closing)
		message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(closeTimeout))
		_ = s.conn.Close()
	})
	return nil
}

func (s *liveSession) isClosing() bool {
	select {
	case <-s.closing:
		return true
	default:
		return false
	}
}

func (s *liveSession) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.closing:
			return
		case payload := <-s.outbound:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				if !s.isClosing() {
					s.log.Warn("live write failed", logging.Err(err))
				}
				_ = s.conn.Close()
				return
			}
		}
	}
}

func (s *liveSession) readLoop() {
	defer s.wg.Done()

	s.handler.OnOpen()
	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if !s.isClosing() && !isNormalClose(err) {
				s.handler.OnError(fmt.Errorf("failed to read live event: %w", err))
			}
			s.close()
			s.handler.OnClose()
			return
		}

		msg, ok, err := decodeServerMessage(payload)
		if err != nil {
			s.log.Debug("ignoring undecodable live event", logging.Err(err))
			continue
		}
		if !ok {
			continue
		}
		s.handler.OnMessage(msg)
	}
}

func (s *liveSession) close() {
	s.closeOnce.Do(func() { close(s.closing) })
}

func isNormalClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}

func buildLiveURL(cfg Config) (string, error) {
	base := strings.TrimSpace(cfg.APIBaseURL)
	if base == "" {
		base = defaultBaseURL
	}

	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	liveURL, err := url.Parse(base + livePath)
	if err != nil {
		return "", fmt.Errorf("invalid Gemini API base URL: %w", err)
	}
	if liveURL.Scheme != "ws" && liveURL.Scheme != "wss" {
		return "", fmt.Errorf("unsupported Gemini API scheme %q", liveURL.Scheme)
	}

	query := liveURL.Query()
	query.Set("key", cfg.APIKey)
	liveURL.RawQuery = query.Encode()
	return liveURL.String(), nil
}
