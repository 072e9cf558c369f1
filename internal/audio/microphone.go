package audio

import (
	"context"
	"strconv"
	"sync/atomic"

	"visionary/internal/ffmpeg"
	"visionary/internal/ports"
)

// MicrophoneConfig selects the ffmpeg input used for the microphone.
type MicrophoneConfig struct {
	Command     string
	InputFormat string
	InputDevice string
}

// FFMPEGMicrophone captures float32 little-endian microphone samples with ffmpeg.
type FFMPEGMicrophone struct {
	cfg MicrophoneConfig
}

func NewFFMPEGMicrophone(cfg MicrophoneConfig) *FFMPEGMicrophone {
	if cfg.Command == "" {
		cfg.Command = "ffmpeg"
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	return &FFMPEGMicrophone{cfg: cfg}
}

func (m *FFMPEGMicrophone) Open(ctx context.Context, opts ports.MicrophoneOptions) (ports.MicrophoneStream, error) {
	if opts.SampleRate <= 0 {
		opts.SampleRate = 16000
	}
	if opts.Channels <= 0 {
		opts.Channels = 1
	}

	proc, err := ffmpeg.Start(ctx, ffmpeg.Options{
		Command: m.cfg.Command,
		Args:    microphoneArgs(m.cfg, opts),
		Stdout:  true,
	})
	if err != nil {
		return nil, err
	}

	track := &microphoneTrack{proc: proc}
	track.enabled.Store(true)
	return &microphoneStream{track: track}, nil
}

func microphoneArgs(cfg MicrophoneConfig, opts ports.MicrophoneOptions) []string {
	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(opts.Channels),
		"-ar", strconv.Itoa(opts.SampleRate),
		"-f", "f32le",
		"-",
	}
}

type microphoneStream struct {
	track *microphoneTrack
}

func (s *microphoneStream) Tracks() []ports.MediaTrack {
	return []ports.MediaTrack{s.track}
}

// Read yields captured samples, or silence of the same length while the
// track is disabled.
func (s *microphoneStream) Read(p []byte) (int, error) {
	n, err := s.track.proc.Read(p)
	if n > 0 && !s.track.Enabled() {
		clear(p[:n])
	}
	return n, err
}

type microphoneTrack struct {
	proc    *ffmpeg.Process
	enabled atomic.Bool
}

func (t *microphoneTrack) Kind() ports.TrackKind { return ports.TrackKindAudio }

func (t *microphoneTrack) Enabled() bool { return t.enabled.Load() }

func (t *microphoneTrack) SetEnabled(enabled bool) { t.enabled.Store(enabled) }

func (t *microphoneTrack) Stop() error { return t.proc.Stop() }
