package usecase

import (
	"fmt"
	"sync"

	"visionary/internal/codec"
	"visionary/internal/metrics"
	"visionary/internal/ports"
)

type scheduledSource struct {
	source ports.PlaybackSource
}

// playbackScheduler queues decoded output buffers back to back on the
// output context clock.
type playbackScheduler struct {
	output     ports.AudioContext
	sampleRate int

	mu            sync.Mutex
	nextStartTime float64
	active        map[*scheduledSource]struct{}
}

func newPlaybackScheduler(output ports.AudioContext, sampleRate int) *playbackScheduler {
	return &playbackScheduler{
		output:     output,
		sampleRate: sampleRate,
		active:     make(map[*scheduledSource]struct{}),
	}
}

// Enqueue decodes base64 PCM16 mono audio and schedules it no earlier than
// the output clock and no earlier than the end of the previous buffer.
// It returns the chosen start time.
func (p *playbackScheduler) Enqueue(data string) (float64, error) {
	raw, err := codec.Decode(data)
	if err != nil {
		return 0, err
	}
	buf, err := codec.DecodeAudioData(raw, p.sampleRate, 1)
	if err != nil {
		return 0, fmt.Errorf("failed to decode output audio: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	start := max(p.nextStartTime, p.output.CurrentTime())
	entry := &scheduledSource{}
	source, err := p.output.Schedule(buf, start, func() { p.release(entry) })
	if err != nil {
		return 0, fmt.Errorf("failed to schedule output audio: %w", err)
	}
	entry.source = source
	p.active[entry] = struct{}{}
	p.nextStartTime = start + buf.Duration()
	metrics.PlaybackScheduled.Inc()
	return start, nil
}

// Interrupt stops every in-flight buffer and resets the start cursor so the
// next buffer plays immediately.
func (p *playbackScheduler) Interrupt() {
	p.mu.Lock()
	sources := make([]ports.PlaybackSource, 0, len(p.active))
	for entry := range p.active {
		sources = append(sources, entry.source)
	}
	clear(p.active)
	p.nextStartTime = 0
	p.mu.Unlock()

	for _, source := range sources {
		source.Stop()
	}
}

func (p *playbackScheduler) StopAll() {
	p.Interrupt()
}

func (p *playbackScheduler) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

func (p *playbackScheduler) NextStartTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nextStartTime
}

func (p *playbackScheduler) release(entry *scheduledSource) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.active, entry)
}
