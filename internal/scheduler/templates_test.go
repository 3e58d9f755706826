package scheduler

import (
	"testing"
	"time"
)

func TestProposeSlotsSkipsWeekends(t *testing.T) {
	// A Friday: the next business day is Monday.
	friday := time.Date(2024, time.June, 7, 9, 0, 0, 0, time.UTC)

	slots := ProposeSlots(friday, 4)
	if len(slots) != 4 {
		t.Fatalf("expected 4 slots, got %d", len(slots))
	}

	for i, slot := range slots {
		if wd := slot.Start.Weekday(); wd == time.Saturday || wd == time.Sunday {
			t.Fatalf("slot %d falls on a weekend: %s", i, slot.Start)
		}
	}

	if slots[0].Start.Weekday() != time.Monday || slots[0].Start.Hour() != 10 {
		t.Fatalf("first slot = %s, expected Monday 10:00", slots[0].Start)
	}
	if slots[1].Start.Hour() != 14 {
		t.Fatalf("second slot = %s, expected the 14:00 slot", slots[1].Start)
	}
	if slots[2].Start.Weekday() != time.Tuesday {
		t.Fatalf("third slot = %s, expected Tuesday", slots[2].Start)
	}

	for _, slot := range slots {
		if slot.End.Sub(slot.Start) != time.Hour {
			t.Fatalf("slot length = %s, expected 1h", slot.End.Sub(slot.Start))
		}
	}
}

func TestProposeSlotsNone(t *testing.T) {
	if slots := ProposeSlots(time.Now(), 0); slots != nil {
		t.Fatalf("expected nil for zero slots, got %v", slots)
	}
}

func TestRenderTemplate(t *testing.T) {
	got := renderTemplate("Hi {name}, about {job}: {unknown}", map[string]string{
		"name": "Jane",
		"job":  "Backend Engineer",
	})
	want := "Hi Jane, about Backend Engineer: {unknown}"
	if got != want {
		t.Fatalf("renderTemplate = %q, expected %q", got, want)
	}
}
