package ports

import (
	"context"
	"image"
	"io"

	"visionary/internal/codec"
	"visionary/internal/domain"
)

// TrackKind distinguishes audio and video tracks of a capture stream.
type TrackKind string

const (
	TrackKindAudio TrackKind = "audio"
	TrackKindVideo TrackKind = "video"
)

// MediaTrack is a single track of a captured stream.
type MediaTrack interface {
	Kind() TrackKind
	Enabled() bool
	SetEnabled(enabled bool)
	Stop() error
}

// MediaStream groups the tracks produced by one capture request.
type MediaStream interface {
	Tracks() []MediaTrack
}

// DisplayOptions describes a screen capture request.
type DisplayOptions struct {
	// Surface restricts the capture, e.g. "monitor".
	Surface   string
	Audio     bool
	FrameRate int
}

// VideoSurface exposes the most recent decoded frame of a screen stream.
type VideoSurface interface {
	Playing() bool
	HasEnoughData() bool
	Frame() (image.Image, bool)
}

// ScreenStream is a live display capture.
type ScreenStream interface {
	MediaStream
	Surface() VideoSurface
}

// ScreenCapture requests display media.
type ScreenCapture interface {
	// Supported reports whether display capture can work in this environment.
	Supported() bool
	Capture(ctx context.Context, opts DisplayOptions) (ScreenStream, error)
}

// MicrophoneOptions describes how the microphone should be captured.
type MicrophoneOptions struct {
	SampleRate int
	Channels   int
}

// MicrophoneStream yields little-endian float32 samples. Disabled audio
// tracks read as silence.
type MicrophoneStream interface {
	MediaStream
	io.Reader
}

// MicrophoneCapture requests user media for audio only.
type MicrophoneCapture interface {
	Open(ctx context.Context, opts MicrophoneOptions) (MicrophoneStream, error)
}

// PlaybackSource is a scheduled audio buffer.
type PlaybackSource interface {
	Stop()
}

// AudioContext is an audio clock at a fixed sample rate that can schedule
// buffers for output.
type AudioContext interface {
	SampleRate() int
	// CurrentTime is the context clock in seconds.
	CurrentTime() float64
	// Schedule plays buf at the given context time. onEnded is invoked once,
	// from another goroutine, after the buffer finishes playing naturally.
	Schedule(buf *codec.AudioBuffer, at float64, onEnded func()) (PlaybackSource, error)
	Close() error
}

// AudioDevices constructs audio contexts.
type AudioDevices interface {
	NewContext(sampleRate int) (AudioContext, error)
}

// LiveHandler receives remote session events. Providers invoke the methods
// serially; OnOpen precedes any OnMessage and OnClose is delivered last.
type LiveHandler interface {
	OnOpen()
	OnMessage(msg domain.LiveMessage)
	OnError(err error)
	OnClose()
}

// LiveSession is an open duplex session with the multimodal endpoint.
type LiveSession interface {
	SendRealtimeInput(chunk domain.MediaChunk) error
	// Close must not block on callback delivery; it may be called from a handler.
	Close() error
}

// LiveProvider opens live sessions.
type LiveProvider interface {
	Connect(ctx context.Context, cfg domain.LiveConfig, handler LiveHandler) (LiveSession, error)
}

// TranscriptStore persists a finished session transcript.
type TranscriptStore interface {
	Save(ctx context.Context, lines []domain.TranscriptLine) error
}

// EventSink emits controller state to the UI.
type EventSink interface {
	StatusChanged(status domain.Status)
	TranscriptUpdated(lines []domain.TranscriptLine)
	// Notice shows a blocking message to the user.
	Notice(message string)
	SessionError(code domain.ErrorCode, detail string)
}
