package timeline

import (
	"testing"
	"time"

	"github.com/firebridgekit/Firebridge-sub000/internal/models"
)

func event(at time.Time) models.TrackableEvent {
	return models.TrackableEvent{Time: at}
}

func TestInRange(t *testing.T) {
	from := time.Date(2024, 6, 18, 10, 0, 0, 0, time.UTC)
	to := time.Date(2024, 6, 18, 11, 0, 0, 0, time.UTC)

	events := []models.TrackableEvent{
		event(from.Add(-time.Second)),
		event(from),
		event(from.Add(30 * time.Minute)),
		event(to.Add(-time.Nanosecond)),
		event(to),
		event(to.Add(time.Hour)),
	}

	got := InRange(events, from, to)

	if len(got) != 3 {
		t.Fatalf("got %d events, want 3", len(got))
	}
	if !got[0].Time.Equal(from) {
		t.Errorf("start boundary must be inclusive, first event at %v", got[0].Time)
	}
	if !got[2].Time.Equal(to.Add(-time.Nanosecond)) {
		t.Errorf("end boundary must be exclusive, last event at %v", got[2].Time)
	}
}

func TestInRangeKeepsOrder(t *testing.T) {
	from := time.Date(2024, 6, 18, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	events := []models.TrackableEvent{
		event(from.Add(5 * time.Hour)),
		event(from.Add(1 * time.Hour)),
		event(from.Add(3 * time.Hour)),
	}

	got := InRange(events, from, to)

	if len(got) != 3 {
		t.Fatalf("got %d events, want 3", len(got))
	}
	for i := range got {
		if !got[i].Time.Equal(events[i].Time) {
			t.Errorf("event %d reordered: got %v, want %v", i, got[i].Time, events[i].Time)
		}
	}
}

func TestInRangeEmptyWindow(t *testing.T) {
	at := time.Date(2024, 6, 18, 10, 0, 0, 0, time.UTC)
	events := []models.TrackableEvent{event(at)}

	if got := InRange(events, at, at); got != nil {
		t.Errorf("empty window: got %v, want nil", got)
	}
	if got := InRange(events, at.Add(time.Hour), at); got != nil {
		t.Errorf("inverted window: got %v, want nil", got)
	}
}
