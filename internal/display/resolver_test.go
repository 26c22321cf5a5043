// ABOUTME: Tests for display resolution
// ABOUTME: Tests event selection, phases, forced modes, and clock display
package display

import (
	"testing"
	"time"

	"github.com/cms-dev/timeview-go/internal/events"
)

func noShift(int64) float64 { return 0 }

var single = []events.Event{{Name: "contest", Begin: 100, End: 200}}

func TestSelectFirstNotEnded(t *testing.T) {
	list := []events.Event{
		{Name: "first", Begin: 100, End: 200},
		{Name: "second", Begin: 150, End: 300},
	}

	got := Select(250, list)
	if got == nil || got.Name != "second" {
		t.Fatalf("expected second event, got %+v", got)
	}

	got = Select(180, list)
	if got == nil || got.Name != "first" {
		t.Errorf("expected running first event to win, got %+v", got)
	}
}

func TestSelectEndIsInclusive(t *testing.T) {
	if got := Select(200, single); got == nil {
		t.Error("expected event to be selected at its end time")
	}
}

func TestSelectTieKeepsListOrder(t *testing.T) {
	list := []events.Event{
		{Name: "a", Begin: 100, End: 200},
		{Name: "b", Begin: 100, End: 200},
	}
	if got := Select(150, list); got.Name != "a" {
		t.Errorf("expected a, got %s", got.Name)
	}
}

func TestPhases(t *testing.T) {
	cases := []struct {
		now   float64
		phase Phase
	}{
		{50, PreEvent},
		{150, DuringEvent},
		{250, NoEvent},
	}

	for _, c := range cases {
		st := ResolveAt(c.now, single, Elapsed, noShift, time.UTC)
		if st.Phase != c.phase {
			t.Errorf("now=%v: expected %v, got %v", c.now, c.phase, st.Phase)
		}
	}
}

func TestPreEventRemaining(t *testing.T) {
	st := ResolveAt(50, single, Remaining, noShift, time.UTC)

	if st.Mode != Remaining {
		t.Errorf("expected Remaining, got %v", st.Mode)
	}
	if st.Seconds != -50 {
		t.Errorf("expected -50, got %v", st.Seconds)
	}
	if st.Text() != "-0:00:50" {
		t.Errorf("expected -0:00:50, got %s", st.Text())
	}
}

func TestPreEventForcesRemaining(t *testing.T) {
	st := ResolveAt(50, single, Elapsed, noShift, time.UTC)
	if st.Mode != Remaining {
		t.Errorf("expected Elapsed to be forced to Remaining, got %v", st.Mode)
	}
	if st.FullHours {
		t.Error("expected no hour padding for countdown")
	}
}

func TestPreEventCurrent(t *testing.T) {
	st := ResolveAt(50, single, Current, noShift, time.UTC)
	if st.Mode != Current || !st.FullHours {
		t.Errorf("expected padded clock, got %+v", st)
	}
	if st.Seconds != 50 {
		t.Errorf("expected time of day 50, got %v", st.Seconds)
	}
	if st.Text() != "00:00:50" {
		t.Errorf("expected 00:00:50, got %s", st.Text())
	}
}

func TestDuringEventModes(t *testing.T) {
	st := ResolveAt(150, single, Elapsed, noShift, time.UTC)
	if st.Mode != Elapsed || st.Seconds != 50 {
		t.Errorf("expected elapsed 50, got %+v", st)
	}

	st = ResolveAt(150, single, Remaining, noShift, time.UTC)
	if st.Mode != Remaining || st.Seconds != -50 {
		t.Errorf("expected remaining -50, got %+v", st)
	}

	st = ResolveAt(150, single, Current, noShift, time.UTC)
	if st.Mode != Current || st.Seconds != 150 {
		t.Errorf("expected clock 150, got %+v", st)
	}
}

func TestNoEventForcesCurrent(t *testing.T) {
	st := ResolveAt(250, single, Remaining, noShift, time.UTC)
	if st.Event != nil {
		t.Error("expected no active event")
	}
	if st.Mode != Current || !st.FullHours {
		t.Errorf("expected padded clock, got %+v", st)
	}
}

func TestEmptyListShowsClock(t *testing.T) {
	// 2024-03-01 13:05:09 UTC
	now := float64(time.Date(2024, 3, 1, 13, 5, 9, 0, time.UTC).Unix())
	st := ResolveAt(now, nil, Elapsed, noShift, time.UTC)

	if st.Phase != NoEvent {
		t.Errorf("expected NoEvent, got %v", st.Phase)
	}
	if st.Text() != "13:05:09" {
		t.Errorf("expected 13:05:09, got %s", st.Text())
	}
}

func TestCurrentUsesEventTimezone(t *testing.T) {
	begin := time.Date(2024, 3, 1, 22, 0, 0, 0, time.UTC).Unix()
	list := []events.Event{{Name: "tokyo", Begin: begin, End: begin + 5*3600, TzOffset: 9 * 3600}}
	now := float64(begin + 3600) // 23:00 UTC, 08:00 next day in +09:00

	shift := func(tz int64) float64 { return float64(tz) }
	st := ResolveAt(now, list, Current, shift, time.UTC)

	if st.Text() != "08:00:00" {
		t.Errorf("expected 08:00:00 in event zone, got %s", st.Text())
	}
}

func TestNoEventIgnoresTimezone(t *testing.T) {
	called := false
	shift := func(tz int64) float64 { called = true; return 0 }

	ResolveAt(250, single, Current, shift, time.UTC)
	if called {
		t.Error("expected no timezone shift without an active event")
	}
}

func TestTimeOfDayInLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	// 03:00 UTC is 22:00 of the previous day at UTC-5
	ts := float64(time.Date(2024, 3, 2, 3, 0, 0, 0, time.UTC).Unix())

	if got := TimeOfDay(ts, loc); got != 22*3600 {
		t.Errorf("expected %d, got %v", 22*3600, got)
	}
}

func TestLongEventElapsedUnpadded(t *testing.T) {
	list := []events.Event{{Name: "marathon", Begin: 0, End: 200000}}
	st := ResolveAt(36000+61, list, Elapsed, noShift, time.UTC)
	if st.Text() != "10:01:01" {
		t.Errorf("expected 10:01:01, got %s", st.Text())
	}

	st = ResolveAt(3661, list, Elapsed, noShift, time.UTC)
	if st.Text() != "1:01:01" {
		t.Errorf("expected 1:01:01, got %s", st.Text())
	}
}

func TestFrame(t *testing.T) {
	f := ResolveAt(150, single, Elapsed, noShift, time.UTC).Frame()
	if !f.HasEvent || f.Name != "contest" || f.Text != "0:00:50" || f.Phase != DuringEvent {
		t.Errorf("unexpected frame %+v", f)
	}

	f = ResolveAt(250, single, Elapsed, noShift, time.UTC).Frame()
	if f.HasEvent || f.Name != "" {
		t.Errorf("expected frame without event, got %+v", f)
	}
}

type fixedClock struct {
	now   float64
	shift float64
}

func (c fixedClock) CorrectedTime() float64      { return c.now }
func (c fixedClock) TimezoneShift(int64) float64 { return c.shift }

func TestResolverUsesClock(t *testing.T) {
	r := NewResolver(fixedClock{now: 150}, time.UTC)
	st := r.Resolve(single, Remaining)
	if st.Seconds != -50 {
		t.Errorf("expected -50, got %v", st.Seconds)
	}
}

func TestParseMode(t *testing.T) {
	for s, want := range map[string]Mode{"elapsed": Elapsed, "Remaining": Remaining, "current": Current, "clock": Current} {
		got, err := ParseMode(s)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %v, %v", s, got, err)
		}
	}
	if _, err := ParseMode("bogus"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
