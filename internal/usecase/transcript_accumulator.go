package usecase

import (
	"sync"
	"time"

	"visionary/internal/domain"
)

// transcriptAccumulator buffers streamed fragments per turn and keeps two
// containers: a display list capped at limit and the unbounded history
// that is persisted when the session ends.
type transcriptAccumulator struct {
	mu    sync.Mutex
	limit int
	now   func() time.Time

	pendingUser      string
	pendingAssistant string

	display []domain.TranscriptLine
	history []domain.TranscriptLine
}

func newTranscriptAccumulator(limit int, now func() time.Time) *transcriptAccumulator {
	if now == nil {
		now = time.Now
	}
	return &transcriptAccumulator{limit: limit, now: now}
}

func (a *transcriptAccumulator) AppendUser(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pendingUser += text
}

func (a *transcriptAccumulator) AppendAssistant(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pendingAssistant += text
}

// CompleteTurn flushes the non-empty buffers into new lines, user first,
// and resets both buffers.
func (a *transcriptAccumulator) CompleteTurn() []domain.TranscriptLine {
	a.mu.Lock()
	defer a.mu.Unlock()

	stamp := a.now().UnixMilli()
	var lines []domain.TranscriptLine
	if a.pendingUser != "" {
		lines = append(lines, domain.TranscriptLine{Speaker: domain.SpeakerUser, Text: a.pendingUser, Timestamp: stamp})
	}
	if a.pendingAssistant != "" {
		lines = append(lines, domain.TranscriptLine{Speaker: domain.SpeakerAssistant, Text: a.pendingAssistant, Timestamp: stamp})
	}
	a.pendingUser = ""
	a.pendingAssistant = ""

	if len(lines) == 0 {
		return nil
	}

	a.history = append(a.history, lines...)
	a.display = append(a.display, lines...)
	if over := len(a.display) - a.limit; a.limit > 0 && over > 0 {
		a.display = append([]domain.TranscriptLine(nil), a.display[over:]...)
	}
	return lines
}

func (a *transcriptAccumulator) Pending() (user string, assistant string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pendingUser, a.pendingAssistant
}

func (a *transcriptAccumulator) Display() []domain.TranscriptLine {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.TranscriptLine(nil), a.display...)
}

func (a *transcriptAccumulator) History() []domain.TranscriptLine {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.TranscriptLine(nil), a.history...)
}

// ResetSession drops the history and any partial turn. The display list
// is kept so the last conversation stays visible.
func (a *transcriptAccumulator) ResetSession() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = nil
	a.pendingUser = ""
	a.pendingAssistant = ""
}
