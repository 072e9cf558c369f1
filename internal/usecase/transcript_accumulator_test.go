package usecase

import (
	"fmt"
	"testing"
	"time"

	"visionary/internal/domain"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestTranscriptAccumulatorCompleteTurnOrdersUserFirst(t *testing.T) {
	t.Parallel()

	at := time.UnixMilli(1700000000123)
	acc := newTranscriptAccumulator(30, fixedClock(at))
	acc.AppendAssistant("Sure, ")
	acc.AppendUser("what is ")
	acc.AppendUser("this?")
	acc.AppendAssistant("that is a button.")

	lines := acc.CompleteTurn()
	if len(lines) != 2 {
		t.Fatalf("expected two lines, got %+v", lines)
	}
	if lines[0] != (domain.TranscriptLine{Speaker: domain.SpeakerUser, Text: "what is this?", Timestamp: at.UnixMilli()}) {
		t.Fatalf("unexpected user line: %+v", lines[0])
	}
	if lines[1] != (domain.TranscriptLine{Speaker: domain.SpeakerAssistant, Text: "Sure, that is a button.", Timestamp: at.UnixMilli()}) {
		t.Fatalf("unexpected assistant line: %+v", lines[1])
	}

	user, assistant := acc.Pending()
	if user != "" || assistant != "" {
		t.Fatalf("expected buffers reset, got %q/%q", user, assistant)
	}
}

func TestTranscriptAccumulatorSkipsEmptyBuffers(t *testing.T) {
	t.Parallel()

	acc := newTranscriptAccumulator(30, nil)
	if lines := acc.CompleteTurn(); lines != nil {
		t.Fatalf("expected no lines, got %+v", lines)
	}

	acc.AppendAssistant("only ai")
	lines := acc.CompleteTurn()
	if len(lines) != 1 || lines[0].Speaker != domain.SpeakerAssistant {
		t.Fatalf("expected a single assistant line, got %+v", lines)
	}
	if len(acc.History()) != 1 {
		t.Fatalf("expected history to contain one line")
	}
}

func TestTranscriptAccumulatorCapsDisplayButKeepsHistory(t *testing.T) {
	t.Parallel()

	acc := newTranscriptAccumulator(20, nil)
	for i := 0; i < 15; i++ {
		acc.AppendUser(fmt.Sprintf("q%d", i))
		acc.AppendAssistant(fmt.Sprintf("a%d", i))
		acc.CompleteTurn()
	}

	display := acc.Display()
	if len(display) != 20 {
		t.Fatalf("expected display capped at 20, got %d", len(display))
	}
	if display[0].Text != "q5" || display[19].Text != "a14" {
		t.Fatalf("expected newest lines kept, got first=%q last=%q", display[0].Text, display[19].Text)
	}
	if len(acc.History()) != 30 {
		t.Fatalf("expected unbounded history, got %d", len(acc.History()))
	}
}

func TestTranscriptAccumulatorResetSession(t *testing.T) {
	t.Parallel()

	acc := newTranscriptAccumulator(30, nil)
	acc.AppendUser("hello")
	acc.CompleteTurn()
	acc.AppendAssistant("partial")

	acc.ResetSession()

	if len(acc.History()) != 0 {
		t.Fatalf("expected history cleared")
	}
	if _, assistant := acc.Pending(); assistant != "" {
		t.Fatalf("expected pending buffers cleared")
	}
	if len(acc.Display()) != 1 {
		t.Fatalf("expected display kept")
	}
}

func TestTranscriptAccumulatorSnapshotsAreCopies(t *testing.T) {
	t.Parallel()

	acc := newTranscriptAccumulator(30, nil)
	acc.AppendUser("hello")
	acc.CompleteTurn()

	display := acc.Display()
	display[0].Text = "mutated"
	if acc.Display()[0].Text != "hello" {
		t.Fatalf("expected display snapshot to be a copy")
	}
}
