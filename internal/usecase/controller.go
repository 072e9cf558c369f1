package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"visionary/internal/domain"
	"visionary/internal/logging"
	"visionary/internal/metrics"
	"visionary/internal/ports"
)

var (
	ErrUnsupportedEnvironment = errors.New("screen capture is not supported in this environment")
	ErrNotConnected           = errors.New("live session is not connected")

	errSessionEnded = errors.New("session ended while starting")
)

const (
	UnsupportedNotice = "This project is still not supported on this platform and we will introduce it soon. " +
		"Please use it on Windows, macOS or Linux with screen capture available."

	startupFallbackMessage = "Failed to initialize. Ensure screen and mic access are granted."
	connectionErrorMessage = "Connection error. Please try again."
)

// Config controls session media and transcript behavior.
type Config struct {
	Live           domain.LiveConfig
	CaptureRate    int
	PlaybackRate   int
	FrameInterval  time.Duration
	JPEGQuality    float64
	DisplayLimit   int
	ChunkSamples   int
	PersistTimeout time.Duration
}

// SessionController owns the lifecycle of one live session at a time:
// device acquisition, the remote session, media flows and teardown.
type SessionController struct {
	screen ports.ScreenCapture
	mic    ports.MicrophoneCapture
	audio  ports.AudioDevices
	live   ports.LiveProvider
	store  ports.TranscriptStore
	events ports.EventSink
	cfg    Config
	log    *slog.Logger

	mu         sync.Mutex
	state      domain.ConnectionStatus
	message    string
	muted      bool
	current    *activeSession
	transcript *transcriptAccumulator

	persistWG sync.WaitGroup
}

func NewSessionController(
	screen ports.ScreenCapture,
	mic ports.MicrophoneCapture,
	audio ports.AudioDevices,
	live ports.LiveProvider,
	store ports.TranscriptStore,
	events ports.EventSink,
	cfg Config,
) *SessionController {
	if cfg.CaptureRate <= 0 {
		cfg.CaptureRate = 16000
	}
	if cfg.PlaybackRate <= 0 {
		cfg.PlaybackRate = 24000
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = time.Second
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 1 {
		cfg.JPEGQuality = 0.6
	}
	if cfg.DisplayLimit <= 0 {
		cfg.DisplayLimit = 30
	}
	if cfg.ChunkSamples < 256 {
		cfg.ChunkSamples = 4096
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = 10 * time.Second
	}
	if len(cfg.Live.ResponseModalities) == 0 {
		cfg.Live.ResponseModalities = []domain.Modality{domain.ModalityAudio}
	}
	return &SessionController{
		screen:     screen,
		mic:        mic,
		audio:      audio,
		live:       live,
		store:      store,
		events:     events,
		cfg:        cfg,
		log:        logging.L("session"),
		state:      domain.StatusDisconnected,
		transcript: newTranscriptAccumulator(cfg.DisplayLimit, time.Now),
	}
}

// Start acquires the screen and audio contexts and opens the live session.
// It is a no-op while a session is connecting or connected.
func (c *SessionController) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state == domain.StatusConnecting || c.state == domain.StatusConnected {
		c.mu.Unlock()
		c.log.Debug("start ignored", "state", c.state)
		return nil
	}
	if !c.screen.Supported() {
		c.mu.Unlock()
		c.log.Warn("screen capture unsupported")
		c.events.Notice(UnsupportedNotice)
		return ErrUnsupportedEnvironment
	}

	active := newActiveSession(ctx, uuid.NewString())
	c.current = active
	c.state = domain.StatusConnecting
	c.message = ""
	c.emitStatusLocked()
	c.mu.Unlock()

	metrics.SessionsStarted.Inc()
	metrics.SessionsActive.Inc()
	c.log.Info("session starting", logging.KeySessionID, active.id)

	code, err := c.acquire(active)
	if errors.Is(err, errSessionEnded) {
		return nil
	}
	if err != nil {
		c.fail(active, code, err)
		return err
	}
	return nil
}

func (c *SessionController) acquire(active *activeSession) (domain.ErrorCode, error) {
	screen, err := c.screen.Capture(active.ctx, ports.DisplayOptions{
		Surface:   "monitor",
		Audio:     false,
		FrameRate: max(1, int(time.Second/c.cfg.FrameInterval)),
	})
	if err != nil {
		return domain.ErrorCodeDeviceAccess, err
	}
	if !c.adopt(active, func() { active.screen = screen }) {
		stopStream(screen)
		return "", errSessionEnded
	}

	inputCtx, err := c.audio.NewContext(c.cfg.CaptureRate)
	if err != nil {
		return domain.ErrorCodeStartup, err
	}
	if !c.adopt(active, func() { active.inputCtx = inputCtx }) {
		closeContext(inputCtx)
		return "", errSessionEnded
	}

	outputCtx, err := c.audio.NewContext(c.cfg.PlaybackRate)
	if err != nil {
		return domain.ErrorCodeStartup, err
	}
	if !c.adopt(active, func() {
		active.outputCtx = outputCtx
		active.playback = newPlaybackScheduler(outputCtx, c.cfg.PlaybackRate)
	}) {
		closeContext(outputCtx)
		return "", errSessionEnded
	}

	live, err := c.live.Connect(active.ctx, c.cfg.Live, &sessionHandler{controller: c, session: active})
	if err != nil {
		return domain.ErrorCodeConnection, err
	}
	if !c.adopt(active, func() { active.markReady(live) }) {
		_ = live.Close()
		return "", errSessionEnded
	}
	return "", nil
}

// adopt runs assign under the lock if active is still the current session.
func (c *SessionController) adopt(active *activeSession, assign func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != active {
		return false
	}
	assign()
	return true
}

// Stop tears down the current session and persists its history.
func (c *SessionController) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	active := c.current
	if active == nil {
		// A failed start leaves no session but still reports error.
		if c.state == domain.StatusError {
			c.state = domain.StatusDisconnected
			c.message = ""
			c.emitStatusLocked()
		}
		return
	}
	c.teardownLocked(active)
	c.state = domain.StatusDisconnected
	c.message = ""
	c.emitStatusLocked()
	c.log.Info("session stopped", logging.KeySessionID, active.id)
}

// Shutdown stops the current session and waits for pending transcript
// saves until ctx is done.
func (c *SessionController) Shutdown(ctx context.Context) error {
	c.Stop()

	done := make(chan struct{})
	go func() {
		c.persistWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ToggleMute flips the microphone track enabled flag and returns the new
// muted state. Without an open microphone it changes nothing.
func (c *SessionController) ToggleMute() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	active := c.current
	if active == nil || active.mic == nil {
		return c.muted
	}

	c.muted = !c.muted
	for _, track := range active.mic.Tracks() {
		if track.Kind() == ports.TrackKindAudio {
			track.SetEnabled(!c.muted)
		}
	}
	c.emitStatusLocked()
	return c.muted
}

// Status returns the current connection status.
func (c *SessionController) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// Transcript returns the display list, newest last.
func (c *SessionController) Transcript() []domain.TranscriptLine {
	return c.transcript.Display()
}

// History returns every line of the current session.
func (c *SessionController) History() []domain.TranscriptLine {
	return c.transcript.History()
}

func (c *SessionController) statusLocked() domain.Status {
	status := domain.Status{State: c.state, Message: c.message, Muted: c.muted}
	if c.current != nil {
		status.SessionID = c.current.id
	}
	return status
}

func (c *SessionController) emitStatusLocked() {
	c.events.StatusChanged(c.statusLocked())
}

func (c *SessionController) fail(active *activeSession, code domain.ErrorCode, err error) {
	message := strings.TrimSpace(err.Error())
	if message == "" {
		message = startupFallbackMessage
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != active {
		return
	}

	c.log.Error("session failed", logging.KeySessionID, active.id, "code", code, logging.Err(err))
	c.teardownLocked(active)
	c.state = domain.StatusError
	c.message = message
	metrics.SessionErrors.WithLabelValues(string(code)).Inc()
	c.emitStatusLocked()
	c.events.SessionError(code, message)
}

// teardownLocked releases every resource held by active. Safe to call with
// partially acquired sessions.
func (c *SessionController) teardownLocked(active *activeSession) {
	c.current = nil
	active.cancel()

	if history := c.transcript.History(); len(history) > 0 {
		c.persist(active.id, history)
	}
	c.transcript.ResetSession()

	if active.sampler != nil {
		active.sampler.Stop()
	}
	if active.live != nil {
		if err := active.live.Close(); err != nil {
			c.log.Debug("live session close failed", logging.Err(err))
		}
	}
	if active.playback != nil {
		active.playback.StopAll()
	}
	stopStream(active.screen)
	stopStream(active.mic)
	if active.pumpDone != nil {
		<-active.pumpDone
	}
	closeContext(active.inputCtx)
	closeContext(active.outputCtx)

	c.muted = false
	metrics.SessionsActive.Dec()
}

func (c *SessionController) persist(sessionID string, lines []domain.TranscriptLine) {
	if c.store == nil {
		return
	}

	c.persistWG.Add(1)
	go func() {
		defer c.persistWG.Done()

		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.PersistTimeout)
		defer cancel()

		if err := c.store.Save(ctx, lines); err != nil {
			metrics.TranscriptSaves.WithLabelValues("error").Inc()
			c.log.Warn("transcript save failed", logging.KeySessionID, sessionID, logging.Err(err))
			return
		}
		metrics.TranscriptSaves.WithLabelValues("ok").Inc()
		c.log.Info("transcript saved", logging.KeySessionID, sessionID, "lines", len(lines))
	}()
}

func (c *SessionController) handleOpen(active *activeSession) {
	c.mu.Lock()
	if c.current != active {
		c.mu.Unlock()
		return
	}
	c.state = domain.StatusConnected
	c.emitStatusLocked()
	rate := active.inputCtx.SampleRate()
	c.mu.Unlock()

	c.log.Info("live session open", logging.KeySessionID, active.id)

	mic, err := c.mic.Open(active.ctx, ports.MicrophoneOptions{SampleRate: rate, Channels: 1})
	if err != nil {
		c.fail(active, domain.ErrorCodeDeviceAccess, err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != active {
		stopStream(mic)
		return
	}

	active.mic = mic
	active.pumpDone = make(chan struct{})
	go pumpMicrophone(active.ctx, mic, active.send, c.cfg.ChunkSamples, rate, c.events, c.log, active.pumpDone)

	active.sampler = newFrameSampler(active.screen.Surface(), c.cfg.FrameInterval, c.cfg.JPEGQuality, active.send, c.log)
	active.sampler.Start(active.ctx)
}

func (c *SessionController) handleMessage(active *activeSession, msg domain.LiveMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != active {
		return
	}

	if msg.OutputTranscription != nil {
		c.transcript.AppendAssistant(msg.OutputTranscription.Text)
	} else if msg.InputTranscription != nil {
		c.transcript.AppendUser(msg.InputTranscription.Text)
	}

	if msg.TurnComplete {
		lines := c.transcript.CompleteTurn()
		for _, line := range lines {
			metrics.TranscriptLines.WithLabelValues(string(line.Speaker)).Inc()
		}
		if len(lines) > 0 {
			c.events.TranscriptUpdated(c.transcript.Display())
		}
	}

	if msg.AudioData != "" && active.playback != nil {
		if _, err := active.playback.Enqueue(msg.AudioData); err != nil {
			c.log.Warn("playback enqueue failed", logging.KeySessionID, active.id, logging.Err(err))
			c.events.SessionError(domain.ErrorCodePlayback, err.Error())
		}
	}

	if msg.Interrupted && active.playback != nil {
		active.playback.Interrupt()
		metrics.Interruptions.Inc()
	}
}

func (c *SessionController) handleError(active *activeSession, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != active {
		return
	}

	c.log.Error("live session error", logging.KeySessionID, active.id, logging.Err(err))
	c.teardownLocked(active)
	c.state = domain.StatusDisconnected
	c.message = connectionErrorMessage
	metrics.SessionErrors.WithLabelValues(string(domain.ErrorCodeConnection)).Inc()
	c.emitStatusLocked()
	c.events.SessionError(domain.ErrorCodeConnection, err.Error())
}

func (c *SessionController) handleClose(active *activeSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != active {
		return
	}

	c.log.Info("live session closed by remote", logging.KeySessionID, active.id)
	c.teardownLocked(active)
	c.state = domain.StatusDisconnected
	c.message = ""
	c.emitStatusLocked()
}

// sessionHandler binds live callbacks to the session that opened them so
// late events from an old session are dropped.
type sessionHandler struct {
	controller *SessionController
	session    *activeSession
}

func (h *sessionHandler) OnOpen() { h.controller.handleOpen(h.session) }

func (h *sessionHandler) OnMessage(msg domain.LiveMessage) {
	h.controller.handleMessage(h.session, msg)
}

func (h *sessionHandler) OnError(err error) { h.controller.handleError(h.session, err) }

func (h *sessionHandler) OnClose() { h.controller.handleClose(h.session) }
