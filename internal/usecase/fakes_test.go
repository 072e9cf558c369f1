package usecase

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"sync"

	"visionary/internal/codec"
	"visionary/internal/domain"
	"visionary/internal/ports"
)

type fakeTrack struct {
	mu        sync.Mutex
	kind      ports.TrackKind
	enabled   bool
	stopCalls int
	onStop    func()
}

func newFakeTrack(kind ports.TrackKind) *fakeTrack {
	return &fakeTrack{kind: kind, enabled: true}
}

func (t *fakeTrack) Kind() ports.TrackKind { return t.kind }

func (t *fakeTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *fakeTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

func (t *fakeTrack) Stop() error {
	t.mu.Lock()
	t.stopCalls++
	first := t.stopCalls == 1
	onStop := t.onStop
	t.mu.Unlock()
	if first && onStop != nil {
		onStop()
	}
	return nil
}

func (t *fakeTrack) stops() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopCalls
}

type fakeSurface struct {
	mu      sync.Mutex
	playing bool
	enough  bool
	frame   image.Image
}

func newReadySurface() *fakeSurface {
	img := image.NewRGBA(image.Rect(0, 0, 16, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 10), G: uint8(y * 10), B: 90, A: 255})
		}
	}
	return &fakeSurface{playing: true, enough: true, frame: img}
}

func (s *fakeSurface) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

func (s *fakeSurface) HasEnoughData() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enough
}

func (s *fakeSurface) Frame() (image.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame, s.frame != nil
}

type fakeScreenStream struct {
	track   *fakeTrack
	surface *fakeSurface
}

func (s *fakeScreenStream) Tracks() []ports.MediaTrack { return []ports.MediaTrack{s.track} }

func (s *fakeScreenStream) Surface() ports.VideoSurface { return s.surface }

type fakeScreenCapture struct {
	mu          sync.Mutex
	unsupported bool
	err         error
	streams     []*fakeScreenStream
	calls       int
	lastOpts    ports.DisplayOptions
}

func (f *fakeScreenCapture) Supported() bool { return !f.unsupported }

func (f *fakeScreenCapture) Capture(_ context.Context, opts ports.DisplayOptions) (ports.ScreenStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	stream := &fakeScreenStream{track: newFakeTrack(ports.TrackKindVideo), surface: newReadySurface()}
	f.streams = append(f.streams, stream)
	return stream, nil
}

func (f *fakeScreenCapture) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeScreenCapture) last() *fakeScreenStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.streams) == 0 {
		return nil
	}
	return f.streams[len(f.streams)-1]
}

// fakeMicStream serves queued reads, then blocks until its track stops.
type fakeMicStream struct {
	track   *fakeTrack
	reads   chan []byte
	stopped chan struct{}
	err     error
}

func newFakeMicStream(chunks ...[]byte) *fakeMicStream {
	m := &fakeMicStream{
		track:   newFakeTrack(ports.TrackKindAudio),
		reads:   make(chan []byte, len(chunks)+1),
		stopped: make(chan struct{}),
	}
	var once sync.Once
	m.track.onStop = func() { once.Do(func() { close(m.stopped) }) }
	for _, chunk := range chunks {
		m.reads <- chunk
	}
	return m
}

func (m *fakeMicStream) Tracks() []ports.MediaTrack { return []ports.MediaTrack{m.track} }

func (m *fakeMicStream) Read(p []byte) (int, error) {
	select {
	case chunk := <-m.reads:
		return copy(p, chunk), nil
	default:
	}
	if m.err != nil {
		return 0, m.err
	}
	select {
	case chunk := <-m.reads:
		return copy(p, chunk), nil
	case <-m.stopped:
		return 0, io.EOF
	}
}

type fakeMicCapture struct {
	mu       sync.Mutex
	err      error
	streams  []*fakeMicStream
	opened   []*fakeMicStream
	lastOpts ports.MicrophoneOptions
}

func (f *fakeMicCapture) Open(_ context.Context, opts ports.MicrophoneOptions) (ports.MicrophoneStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	var stream *fakeMicStream
	if len(f.streams) > 0 {
		stream = f.streams[0]
		f.streams = f.streams[1:]
	} else {
		stream = newFakeMicStream()
	}
	f.opened = append(f.opened, stream)
	return stream, nil
}

func (f *fakeMicCapture) last() *fakeMicStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.opened) == 0 {
		return nil
	}
	return f.opened[len(f.opened)-1]
}

type fakeSource struct {
	mu        sync.Mutex
	at        float64
	duration  float64
	onEnded   func()
	stopCalls int
}

func (s *fakeSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopCalls++
}

func (s *fakeSource) stops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopCalls
}

// end simulates natural completion from the audio thread.
func (s *fakeSource) end() {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.onEnded()
	}()
	<-done
}

type fakeAudioContext struct {
	mu          sync.Mutex
	rate        int
	now         float64
	scheduleErr error
	sources     []*fakeSource
	closeCalls  int
}

func (c *fakeAudioContext) SampleRate() int { return c.rate }

func (c *fakeAudioContext) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeAudioContext) setTime(now float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *fakeAudioContext) Schedule(buf *codec.AudioBuffer, at float64, onEnded func()) (ports.PlaybackSource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.scheduleErr != nil {
		return nil, c.scheduleErr
	}
	source := &fakeSource{at: at, duration: buf.Duration(), onEnded: onEnded}
	c.sources = append(c.sources, source)
	return source, nil
}

func (c *fakeAudioContext) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeCalls++
	return nil
}

func (c *fakeAudioContext) scheduled() []*fakeSource {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*fakeSource(nil), c.sources...)
}

func (c *fakeAudioContext) closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCalls
}

type fakeAudioDevices struct {
	mu       sync.Mutex
	err      error
	contexts []*fakeAudioContext
}

func (d *fakeAudioDevices) NewContext(sampleRate int) (ports.AudioContext, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	ctx := &fakeAudioContext{rate: sampleRate}
	d.contexts = append(d.contexts, ctx)
	return ctx, nil
}

func (d *fakeAudioDevices) byRate(rate int) *fakeAudioContext {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.contexts) - 1; i >= 0; i-- {
		if d.contexts[i].rate == rate {
			return d.contexts[i]
		}
	}
	return nil
}

type fakeLiveSession struct {
	mu         sync.Mutex
	chunks     []domain.MediaChunk
	sendErr    error
	closeCalls int
	sent       chan domain.MediaChunk
}

func newFakeLiveSession() *fakeLiveSession {
	return &fakeLiveSession{sent: make(chan domain.MediaChunk, 256)}
}

func (s *fakeLiveSession) SendRealtimeInput(chunk domain.MediaChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.chunks = append(s.chunks, chunk)
	select {
	case s.sent <- chunk:
	default:
	}
	return nil
}

func (s *fakeLiveSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	return nil
}

func (s *fakeLiveSession) closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCalls
}

type fakeLiveProvider struct {
	mu        sync.Mutex
	err       error
	session   *fakeLiveSession
	handlers  []ports.LiveHandler
	lastCfg   domain.LiveConfig
	onConnect func()
}

func (p *fakeLiveProvider) Connect(_ context.Context, cfg domain.LiveConfig, handler ports.LiveHandler) (ports.LiveSession, error) {
	p.mu.Lock()
	p.lastCfg = cfg
	p.handlers = append(p.handlers, handler)
	err := p.err
	session := p.session
	hook := p.onConnect
	p.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	if session == nil {
		session = newFakeLiveSession()
		p.mu.Lock()
		p.session = session
		p.mu.Unlock()
	}
	return session, nil
}

func (p *fakeLiveProvider) handler(i int) ports.LiveHandler {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handlers[i]
}

type fakeStore struct {
	mu    sync.Mutex
	err   error
	saved [][]domain.TranscriptLine
}

func (s *fakeStore) Save(_ context.Context, lines []domain.TranscriptLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, lines)
	return s.err
}

func (s *fakeStore) snapshot() [][]domain.TranscriptLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]domain.TranscriptLine(nil), s.saved...)
}

type errorEvent struct {
	code   domain.ErrorCode
	detail string
}

type fakeEventSink struct {
	mu          sync.Mutex
	statuses    []domain.Status
	transcripts [][]domain.TranscriptLine
	notices     []string
	errors      []errorEvent
}

func (f *fakeEventSink) StatusChanged(status domain.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
}

func (f *fakeEventSink) TranscriptUpdated(lines []domain.TranscriptLine) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcripts = append(f.transcripts, lines)
}

func (f *fakeEventSink) Notice(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, message)
}

func (f *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errorEvent{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotStates() []domain.ConnectionStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	states := make([]domain.ConnectionStatus, 0, len(f.statuses))
	for _, status := range f.statuses {
		states = append(states, status.State)
	}
	return states
}

func (f *fakeEventSink) snapshotErrors() []errorEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]errorEvent(nil), f.errors...)
}

func (f *fakeEventSink) snapshotNotices() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.notices...)
}

var errBoom = errors.New("boom")
