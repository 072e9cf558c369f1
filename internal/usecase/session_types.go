package usecase

import (
	"context"
	"sync"

	"visionary/internal/domain"
	"visionary/internal/ports"
)

type sendFunc func(ctx context.Context, chunk domain.MediaChunk) error

// activeSession owns every media handle of one connect attempt. Fields are
// assigned under the controller lock while the session is current.
type activeSession struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc

	screen    ports.ScreenStream
	mic       ports.MicrophoneStream
	inputCtx  ports.AudioContext
	outputCtx ports.AudioContext
	live      ports.LiveSession

	ready     chan struct{}
	readyOnce sync.Once

	sampler  *frameSampler
	playback *playbackScheduler
	pumpDone chan struct{}
}

func newActiveSession(ctx context.Context, id string) *activeSession {
	sessionCtx, cancel := context.WithCancel(ctx)
	return &activeSession{
		id:     id,
		ctx:    sessionCtx,
		cancel: cancel,
		ready:  make(chan struct{}),
	}
}

func (s *activeSession) markReady(live ports.LiveSession) {
	s.live = live
	s.readyOnce.Do(func() { close(s.ready) })
}

// send waits until the live handle is known, then forwards chunk.
func (s *activeSession) send(ctx context.Context, chunk domain.MediaChunk) error {
	select {
	case <-s.ready:
	case <-s.ctx.Done():
		return ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}
	if s.ctx.Err() != nil {
		return ErrNotConnected
	}
	return s.live.SendRealtimeInput(chunk)
}

func stopStream(stream ports.MediaStream) {
	if stream == nil {
		return
	}
	for _, track := range stream.Tracks() {
		_ = track.Stop()
	}
}

func closeContext(ctx ports.AudioContext) {
	if ctx == nil {
		return
	}
	_ = ctx.Close()
}
