package screen

import (
	"bufio"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"

	"visionary/internal/ffmpeg"
	"visionary/internal/logging"
	"visionary/internal/ports"
)

// Config selects the ffmpeg grab device. Empty fields use the platform default.
type Config struct {
	Command     string
	InputFormat string
	InputDevice string
}

// FFMPEGDisplay captures the desktop with ffmpeg and decodes it as a PNG
// image stream.
type FFMPEGDisplay struct {
	cfg      Config
	goos     string
	getenv   func(string) string
	lookPath func(string) (string, error)
	log      *slog.Logger
}

func NewFFMPEGDisplay(cfg Config) *FFMPEGDisplay {
	if cfg.Command == "" {
		cfg.Command = "ffmpeg"
	}
	return &FFMPEGDisplay{
		cfg:      cfg,
		goos:     runtime.GOOS,
		getenv:   os.Getenv,
		lookPath: exec.LookPath,
		log:      logging.L("screen"),
	}
}

// Supported reports whether a grab device exists for this platform and the
// capture command is installed.
func (d *FFMPEGDisplay) Supported() bool {
	if d.inputFormat() == "" || d.inputDevice() == "" {
		return false
	}
	_, err := d.lookPath(d.cfg.Command)
	return err == nil
}

func (d *FFMPEGDisplay) inputFormat() string {
	if d.cfg.InputFormat != "" {
		return d.cfg.InputFormat
	}
	switch d.goos {
	case "linux", "freebsd", "openbsd", "netbsd":
		return "x11grab"
	case "darwin":
		return "avfoundation"
	case "windows":
		return "gdigrab"
	default:
		return ""
	}
}

func (d *FFMPEGDisplay) inputDevice() string {
	if d.cfg.InputDevice != "" {
		return d.cfg.InputDevice
	}
	switch d.inputFormat() {
	case "x11grab":
		return d.getenv("DISPLAY")
	case "avfoundation":
		return "Capture screen 0:none"
	case "gdigrab":
		return "desktop"
	default:
		return ""
	}
}

func (d *FFMPEGDisplay) Capture(ctx context.Context, opts ports.DisplayOptions) (ports.ScreenStream, error) {
	if !d.Supported() {
		return nil, errors.New("screen capture is not available on this system")
	}

	proc, err := ffmpeg.Start(ctx, ffmpeg.Options{
		Command: d.cfg.Command,
		Args:    d.captureArgs(opts),
		Stdout:  true,
	})
	if err != nil {
		return nil, err
	}

	stream := &displayStream{
		track:   &displayTrack{proc: proc},
		surface: &surface{},
		log:     d.log,
	}
	stream.track.enabled.Store(true)
	stream.track.surface = stream.surface
	stream.surface.running.Store(true)
	go stream.decode(proc)
	return stream, nil
}

func (d *FFMPEGDisplay) captureArgs(opts ports.DisplayOptions) []string {
	rate := max(1, opts.FrameRate)
	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", d.inputFormat(),
		"-framerate", strconv.Itoa(rate),
		"-i", d.inputDevice(),
		"-an",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	}
}

type displayStream struct {
	track   *displayTrack
	surface *surface
	log     *slog.Logger
}

func (s *displayStream) Tracks() []ports.MediaTrack {
	return []ports.MediaTrack{s.track}
}

func (s *displayStream) Surface() ports.VideoSurface {
	return s.surface
}

// decode reads consecutive PNG images until the helper stops.
func (s *displayStream) decode(r io.Reader) {
	defer s.surface.running.Store(false)

	br := bufio.NewReaderSize(r, 1<<20)
	for {
		img, err := png.Decode(br)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, os.ErrClosed) {
				s.log.Debug("screen decode stopped", logging.Err(err))
			}
			return
		}
		s.surface.present(img)
	}
}

type displayTrack struct {
	proc    *ffmpeg.Process
	surface *surface
	enabled atomic.Bool
}

func (t *displayTrack) Kind() ports.TrackKind { return ports.TrackKindVideo }

func (t *displayTrack) Enabled() bool { return t.enabled.Load() }

func (t *displayTrack) SetEnabled(enabled bool) {
	t.enabled.Store(enabled)
	t.surface.paused.Store(!enabled)
}

func (t *displayTrack) Stop() error {
	t.surface.running.Store(false)
	return t.proc.Stop()
}

// surface holds the latest decoded frame.
type surface struct {
	running atomic.Bool
	paused  atomic.Bool

	mu    sync.Mutex
	frame image.Image
}

func (s *surface) present(img image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = img
}

func (s *surface) Playing() bool {
	return s.running.Load() && !s.paused.Load()
}

func (s *surface) HasEnoughData() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame != nil
}

func (s *surface) Frame() (image.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame, s.frame != nil
}
