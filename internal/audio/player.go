package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"visionary/internal/codec"
	"visionary/internal/ffmpeg"
	"visionary/internal/logging"
	"visionary/internal/ports"
)

var ErrContextClosed = errors.New("audio context is closed")

const (
	mixQuantum = 20 * time.Millisecond
	mixLead    = 100 * time.Millisecond
)

type sink interface {
	io.Writer
	Stop() error
}

// PlayerConfig selects the helper that plays mixed output.
type PlayerConfig struct {
	Command string
}

// PlayerDevices creates audio contexts that mix scheduled buffers in
// process and stream the result to an ffplay sink as s16le. The sink is
// started on the first scheduled buffer, so capture-only contexts never
// spawn a player.
type PlayerDevices struct {
	cfg     PlayerConfig
	now     func() time.Time
	quantum time.Duration
	newSink func(sampleRate int) (sink, error)
}

func NewPlayerDevices(cfg PlayerConfig) *PlayerDevices {
	if cfg.Command == "" {
		cfg.Command = "ffplay"
	}
	d := &PlayerDevices{cfg: cfg, now: time.Now, quantum: mixQuantum}
	d.newSink = d.startPlayer
	return d
}

func (d *PlayerDevices) NewContext(sampleRate int) (ports.AudioContext, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	return &playerContext{
		rate:    sampleRate,
		now:     d.now,
		origin:  d.now(),
		quantum: d.quantum,
		newSink: d.newSink,
		sources: make(map[*playerSource]struct{}),
		log:     logging.L("audio"),
	}, nil
}

// startPlayer skips the fail-fast wait. Buffered stdin absorbs player
// startup and failures surface as write errors.
func (d *PlayerDevices) startPlayer(sampleRate int) (sink, error) {
	return ffmpeg.Start(context.Background(), ffmpeg.Options{
		Command:      d.cfg.Command,
		Args:         playerArgs(sampleRate),
		Stdin:        true,
		StartupGrace: -1,
	})
}

func playerArgs(sampleRate int) []string {
	return []string{
		"-nodisp",
		"-hide_banner",
		"-loglevel", "warning",
		"-fflags", "nobuffer",
		"-f", "s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ch_layout", "mono",
		"-i", "-",
	}
}

type playerContext struct {
	rate    int
	now     func() time.Time
	origin  time.Time
	quantum time.Duration
	newSink func(sampleRate int) (sink, error)
	log     *slog.Logger

	mu      sync.Mutex
	sink    sink
	sources map[*playerSource]struct{}
	written int64
	closed  bool
	stop    chan struct{}
	done    chan struct{}
}

func (c *playerContext) SampleRate() int { return c.rate }

// CurrentTime is the earliest schedulable time: wall time since creation,
// or the end of the already rendered block once output is running.
func (c *playerContext) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	wall := c.wallTime()
	if c.sink == nil {
		return wall
	}
	return max(wall, float64(c.written)/float64(c.rate))
}

func (c *playerContext) wallTime() float64 {
	return c.now().Sub(c.origin).Seconds()
}

func (c *playerContext) currentFrame() int64 {
	return int64(c.wallTime() * float64(c.rate))
}

func (c *playerContext) Schedule(buf *codec.AudioBuffer, at float64, onEnded func()) (ports.PlaybackSource, error) {
	if buf == nil {
		return nil, errors.New("no audio buffer")
	}
	if buf.SampleRate != c.rate {
		return nil, fmt.Errorf("buffer sample rate %d does not match context rate %d", buf.SampleRate, c.rate)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrContextClosed
	}
	if c.sink == nil {
		out, err := c.newSink(c.rate)
		if err != nil {
			return nil, fmt.Errorf("failed to start audio output: %w", err)
		}
		c.sink = out
		c.written = c.currentFrame()
		c.stop = make(chan struct{})
		c.done = make(chan struct{})
		go c.mixLoop(out)
	}

	source := &playerSource{
		owner:   c,
		samples: mixdown(buf),
		start:   max(int64(math.Round(at*float64(c.rate))), c.written),
		onEnded: onEnded,
	}
	c.sources[source] = struct{}{}
	return source, nil
}

func (c *playerContext) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	clear(c.sources)
	out, stop, done := c.sink, c.stop, c.done
	c.mu.Unlock()

	if out == nil {
		return nil
	}
	close(stop)
	err := out.Stop()
	<-done
	return err
}

func (c *playerContext) mixLoop(out sink) {
	defer close(c.done)

	ticker := time.NewTicker(c.quantum)
	defer ticker.Stop()

	lead := int64(mixLead.Seconds() * float64(c.rate))
	writeFailed := false
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
		}

		pcm, ended := c.render(c.currentFrame() + lead)
		if len(pcm) > 0 {
			if _, err := out.Write(pcm); err != nil && !writeFailed {
				writeFailed = true
				c.log.Warn("audio output write failed", logging.Err(err))
			}
		}
		for _, source := range ended {
			source.onEnded()
		}
	}
}

// render mixes every source overlapping the frames not yet written, up to
// target, and returns the PCM16 block plus sources that finished in it.
func (c *playerContext) render(target int64) ([]byte, []*playerSource) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if now := c.currentFrame(); c.written < now {
		c.written = now
	}
	if target <= c.written {
		return nil, nil
	}

	from := c.written
	mix := make([]float32, target-from)
	var ended []*playerSource
	for source := range c.sources {
		source.mixInto(mix, from)
		if source.end() <= target {
			delete(c.sources, source)
			if source.onEnded != nil {
				ended = append(ended, source)
			}
		}
	}
	c.written = target

	block := codec.AudioBuffer{SampleRate: c.rate, Channels: [][]float32{mix}}
	return block.PCM16(), ended
}

type playerSource struct {
	owner   *playerContext
	samples []float32
	start   int64
	onEnded func()
}

func (s *playerSource) end() int64 {
	return s.start + int64(len(s.samples))
}

func (s *playerSource) mixInto(mix []float32, from int64) {
	to := from + int64(len(mix))
	lo := max(s.start, from)
	hi := min(s.end(), to)
	for frame := lo; frame < hi; frame++ {
		mix[frame-from] += s.samples[frame-s.start]
	}
}

// Stop silences the source immediately. onEnded is not invoked.
func (s *playerSource) Stop() {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	delete(s.owner.sources, s)
}

func mixdown(buf *codec.AudioBuffer) []float32 {
	frames := buf.Frames()
	if len(buf.Channels) == 1 {
		return append([]float32(nil), buf.Channels[0]...)
	}
	out := make([]float32, frames)
	if len(buf.Channels) == 0 {
		return out
	}
	scale := 1 / float32(len(buf.Channels))
	for _, channel := range buf.Channels {
		for i, s := range channel {
			out[i] += s * scale
		}
	}
	return out
}
