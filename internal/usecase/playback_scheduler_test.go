package usecase

import (
	"errors"
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestPlaybackSchedulerQueuesBackToBack(t *testing.T) {
	t.Parallel()

	out := &fakeAudioContext{rate: 24000, now: 1.0}
	p := newPlaybackScheduler(out, 24000)

	first, err := p.Enqueue(pcmPayload(12000))
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	second, err := p.Enqueue(pcmPayload(2400))
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	if !almostEqual(first, 1.0) || !almostEqual(second, 1.5) {
		t.Fatalf("unexpected start times: %v, %v", first, second)
	}
	if !almostEqual(p.NextStartTime(), 1.6) {
		t.Fatalf("unexpected next start: %v", p.NextStartTime())
	}
	if p.Active() != 2 {
		t.Fatalf("expected two active sources, got %d", p.Active())
	}
}

func TestPlaybackSchedulerNeverSchedulesInThePast(t *testing.T) {
	t.Parallel()

	out := &fakeAudioContext{rate: 24000}
	p := newPlaybackScheduler(out, 24000)

	if _, err := p.Enqueue(pcmPayload(2400)); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	out.setTime(5)
	start, err := p.Enqueue(pcmPayload(2400))
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if !almostEqual(start, 5) {
		t.Fatalf("expected start at current time, got %v", start)
	}
}

func TestPlaybackSchedulerInterruptStopsEverything(t *testing.T) {
	t.Parallel()

	out := &fakeAudioContext{rate: 24000, now: 2}
	p := newPlaybackScheduler(out, 24000)
	for i := 0; i < 3; i++ {
		if _, err := p.Enqueue(pcmPayload(4800)); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}

	p.Interrupt()

	for i, source := range out.scheduled() {
		if source.stops() != 1 {
			t.Fatalf("expected source %d stopped", i)
		}
	}
	if p.Active() != 0 || p.NextStartTime() != 0 {
		t.Fatalf("expected empty scheduler, active=%d next=%v", p.Active(), p.NextStartTime())
	}

	start, err := p.Enqueue(pcmPayload(2400))
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if !almostEqual(start, 2) {
		t.Fatalf("expected immediate start after interrupt, got %v", start)
	}
}

func TestPlaybackSchedulerReleasesEndedSources(t *testing.T) {
	t.Parallel()

	out := &fakeAudioContext{rate: 24000}
	p := newPlaybackScheduler(out, 24000)
	if _, err := p.Enqueue(pcmPayload(2400)); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	out.scheduled()[0].end()

	if p.Active() != 0 {
		t.Fatalf("expected ended source released")
	}
	if !almostEqual(p.NextStartTime(), 0.1) {
		t.Fatalf("expected cursor untouched by natural end, got %v", p.NextStartTime())
	}
}

func TestPlaybackSchedulerRejectsBadPayloads(t *testing.T) {
	t.Parallel()

	out := &fakeAudioContext{rate: 24000}
	p := newPlaybackScheduler(out, 24000)

	if _, err := p.Enqueue("not base64!"); err == nil {
		t.Fatalf("expected decode error")
	}
	if _, err := p.Enqueue("AAAA"); err == nil {
		t.Fatalf("expected odd byte count error")
	}

	out.scheduleErr = errors.New("device gone")
	if _, err := p.Enqueue(pcmPayload(10)); err == nil {
		t.Fatalf("expected schedule error")
	}
	if p.Active() != 0 || p.NextStartTime() != 0 {
		t.Fatalf("expected scheduler untouched by failures")
	}
}
