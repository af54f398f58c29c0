package chat

import (
	"testing"

	"github.com/yegors/webchat/internal/session"
	"github.com/yegors/webchat/pkg/logger"
)

func newTestScheduler(ui *fakeUI) (*OnHoldScheduler, *session.Registry) {
	timers := session.NewRegistry()
	return NewOnHoldScheduler(timers, ui, logger.NewNop()), timers
}

func TestComfortRotationWraps(t *testing.T) {
	ui := newFakeUI()
	scheduler, timers := newTestScheduler(ui)
	defer timers.CancelAll()

	// Delivered out of sequence order on purpose
	scheduler.Start(&ComfortGroup{
		Delay: 3600,
		Messages: []*ComfortMessage{
			{Sequence: 2, Message: "third"},
			{Sequence: 0, Message: "first"},
			{Sequence: 1, Message: "second"},
		},
	}, nil)

	for i := 0; i < 7; i++ {
		scheduler.tickComfort()
	}

	want := []string{"first", "second", "third", "first", "second", "third", "first"}
	lines := ui.rendered()
	if len(lines) != len(want) {
		t.Fatalf("rendered %d lines, want %d", len(lines), len(want))
	}
	for i, line := range lines {
		if line.text != want[i] {
			t.Errorf("line %d = %q, want %q", i, line.text, want[i])
		}
		if line.category != CategorySystem {
			t.Errorf("line %d category = %q", i, line.category)
		}
	}
}

func TestURLRotationFormatsDescription(t *testing.T) {
	ui := newFakeUI()
	scheduler, timers := newTestScheduler(ui)
	defer timers.CancelAll()

	scheduler.Start(nil, &URLGroup{
		Description: "While you wait",
		HoldTime:    3600,
		URLs: []*OnHoldURL{
			{Sequence: 1, URL: "https://example.com/faq"},
			{Sequence: 0, URL: "https://example.com/help"},
		},
	})

	scheduler.tickURL()
	scheduler.tickURL()
	scheduler.tickURL()

	want := []string{
		"While you wait: https://example.com/help",
		"While you wait: https://example.com/faq",
		"While you wait: https://example.com/help",
	}
	lines := ui.rendered()
	if len(lines) != len(want) {
		t.Fatalf("rendered %d lines, want %d", len(lines), len(want))
	}
	for i, line := range lines {
		if line.text != want[i] {
			t.Errorf("line %d = %q, want %q", i, line.text, want[i])
		}
	}
}

func TestStartWithNoContentSchedulesNothing(t *testing.T) {
	ui := newFakeUI()
	scheduler, timers := newTestScheduler(ui)

	scheduler.Start(nil, nil)
	scheduler.Start(&ComfortGroup{Delay: 10}, &URLGroup{HoldTime: 10})

	if timers.Active(session.TimerOnHoldText) || timers.Active(session.TimerOnHoldURL) {
		t.Error("empty groups armed timers")
	}
	scheduler.tickComfort()
	scheduler.tickURL()
	if lines := ui.rendered(); len(lines) != 0 {
		t.Errorf("empty groups rendered: %v", lines)
	}
}

func TestRestartResetsCursors(t *testing.T) {
	ui := newFakeUI()
	scheduler, timers := newTestScheduler(ui)
	defer timers.CancelAll()

	group := &ComfortGroup{
		Delay: 3600,
		Messages: []*ComfortMessage{
			{Sequence: 0, Message: "first"},
			{Sequence: 1, Message: "second"},
		},
	}
	scheduler.Start(group, nil)
	scheduler.tickComfort()
	scheduler.Stop()

	ui.reset()
	scheduler.Start(group, nil)
	scheduler.tickComfort()

	lines := ui.rendered()
	if len(lines) != 1 || lines[0].text != "first" {
		t.Errorf("rotation did not restart from the top: %v", lines)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	ui := newFakeUI()
	scheduler, _ := newTestScheduler(ui)

	scheduler.Stop()
	scheduler.Stop()
}
