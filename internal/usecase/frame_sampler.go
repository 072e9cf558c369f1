package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"visionary/internal/codec"
	"visionary/internal/logging"
	"visionary/internal/metrics"
	"visionary/internal/ports"
)

// frameSampler submits one JPEG frame of the screen per interval. Ticks
// whose video is not ready are dropped.
type frameSampler struct {
	surface  ports.VideoSurface
	interval time.Duration
	quality  float64
	send     sendFunc
	log      *slog.Logger

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

func newFrameSampler(surface ports.VideoSurface, interval time.Duration, quality float64, send sendFunc, log *slog.Logger) *frameSampler {
	if interval <= 0 {
		interval = time.Second
	}
	return &frameSampler{surface: surface, interval: interval, quality: quality, send: send, log: log}
}

func (f *frameSampler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.done = make(chan struct{})
	go f.loop(ctx)
}

func (f *frameSampler) Stop() {
	f.stopOnce.Do(func() {
		if f.cancel == nil {
			return
		}
		f.cancel()
		<-f.done
	})
}

func (f *frameSampler) loop(ctx context.Context) {
	defer close(f.done)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.sample(ctx)
		}
	}
}

func (f *frameSampler) sample(ctx context.Context) bool {
	if f.surface == nil || !f.surface.Playing() || !f.surface.HasEnoughData() {
		metrics.FramesSkipped.Inc()
		return false
	}
	img, ok := f.surface.Frame()
	if !ok {
		metrics.FramesSkipped.Inc()
		return false
	}

	chunk, err := codec.EncodeJPEGFrame(img, f.quality)
	if err != nil {
		f.log.Debug("frame encode failed", logging.Err(err))
		return false
	}
	if err := f.send(ctx, chunk); err != nil {
		if ctx.Err() == nil {
			f.log.Debug("frame send failed", logging.Err(err))
		}
		return false
	}
	metrics.FramesSent.Inc()
	return true
}
