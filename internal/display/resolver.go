// ABOUTME: Resolves the displayed event, mode, and duration for one tick
// ABOUTME: Implements the pre/during/after event state machine and clock mode
package display

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/cms-dev/timeview-go/internal/events"
	"github.com/cms-dev/timeview-go/internal/format"
)

// Mode is the user-selected display mode
type Mode int

const (
	Elapsed Mode = iota
	Remaining
	Current
)

func (m Mode) String() string {
	switch m {
	case Elapsed:
		return "elapsed"
	case Remaining:
		return "remaining"
	case Current:
		return "current"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode parses "elapsed", "remaining", or "current"
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "elapsed":
		return Elapsed, nil
	case "remaining":
		return Remaining, nil
	case "current", "clock":
		return Current, nil
	}
	return Elapsed, fmt.Errorf("unknown display mode %q", s)
}

// Phase is the relation of the corrected time to the selected event
type Phase int

const (
	NoEvent Phase = iota
	PreEvent
	DuringEvent
)

func (p Phase) String() string {
	switch p {
	case NoEvent:
		return "post_cont"
	case PreEvent:
		return "pre_cont"
	case DuringEvent:
		return "cont"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// State is the per-tick result. It is recomputed every tick.
type State struct {
	Event     *events.Event
	Phase     Phase
	Mode      Mode
	Seconds   float64
	FullHours bool
}

// Text formats the signed duration
func (s State) Text() string {
	return format.Signed(s.Seconds, s.FullHours)
}

// Frame is what a render sink receives each tick
type Frame struct {
	Name     string
	HasEvent bool
	Text     string
	Mode     Mode
	Phase    Phase
}

// Frame converts the state into a render frame
func (s State) Frame() Frame {
	f := Frame{Text: s.Text(), Mode: s.Mode, Phase: s.Phase}
	if s.Event != nil {
		f.Name = s.Event.Name
		f.HasEvent = true
	}
	return f
}

// Clock supplies corrected time and zone shifts
type Clock interface {
	CorrectedTime() float64
	TimezoneShift(tzOffset int64) float64
}

// Resolver computes display states against a corrected clock
type Resolver struct {
	clock Clock
	loc   *time.Location
}

// NewResolver creates a resolver computing midnights in loc
func NewResolver(clock Clock, loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.Local
	}
	return &Resolver{clock: clock, loc: loc}
}

// Resolve computes the state for the current corrected time
func (r *Resolver) Resolve(list []events.Event, mode Mode) State {
	return ResolveAt(r.clock.CorrectedTime(), list, mode, r.clock.TimezoneShift, r.loc)
}

// Select returns the first event in list whose end is not before now
func Select(now float64, list []events.Event) *events.Event {
	for i := range list {
		if now <= float64(list[i].End) {
			return &list[i]
		}
	}
	return nil
}

// ResolveAt computes the state for corrected time now. shift returns the
// seconds to add to now to read an event's zone wall time; loc is the zone
// whose calendar dates define midnight.
func ResolveAt(now float64, list []events.Event, mode Mode, shift func(int64) float64, loc *time.Location) State {
	st := State{Event: Select(now, list)}

	switch {
	case st.Event == nil:
		st.Phase = NoEvent
		st.Mode = Current
	case now < float64(st.Event.Begin):
		st.Phase = PreEvent
		if mode == Current {
			st.Mode = Current
		} else {
			st.Mode = Remaining
			st.Seconds = now - float64(st.Event.Begin)
		}
	default:
		st.Phase = DuringEvent
		st.Mode = mode
		switch mode {
		case Remaining:
			st.Seconds = now - float64(st.Event.End)
		case Elapsed:
			st.Seconds = now - float64(st.Event.Begin)
		}
	}

	if st.Mode == Current {
		st.FullHours = true
		t := now
		if st.Event != nil && shift != nil {
			t = now + shift(st.Event.TzOffset)
		}
		st.Seconds = TimeOfDay(t, loc)
	}

	return st
}

// TimeOfDay returns the seconds elapsed since midnight of the calendar date
// of t (seconds since epoch) in loc
func TimeOfDay(t float64, loc *time.Location) float64 {
	if loc == nil {
		loc = time.Local
	}
	sec, frac := math.Modf(t)
	moment := time.Unix(int64(sec), int64(frac*1e9)).In(loc)
	midnight := time.Date(moment.Year(), moment.Month(), moment.Day(), 0, 0, 0, 0, loc)
	return t - float64(midnight.Unix())
}
