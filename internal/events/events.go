// ABOUTME: Scheduled event definitions and ordered-list validation
// ABOUTME: Holds the externally supplied event list behind an atomic store
package events

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrUnordered is returned for lists not ascending by begin
	ErrUnordered = errors.New("events not ordered by begin time")

	// ErrInvalidEvent is returned for an event ending before it begins
	ErrInvalidEvent = errors.New("invalid event")
)

// Event is a scheduled contest window. Times are seconds since epoch and
// TzOffset is the event's home zone offset east of UTC, in seconds.
type Event struct {
	Name     string `json:"name" yaml:"name" toml:"name"`
	Begin    int64  `json:"begin" yaml:"begin" toml:"begin"`
	End      int64  `json:"end" yaml:"end" toml:"end"`
	TzOffset int64  `json:"tz_offset" yaml:"tz_offset" toml:"tz_offset"`
}

// Validate checks that list is ascending by Begin and every event is well formed
func Validate(list []Event) error {
	for i, e := range list {
		if e.End < e.Begin {
			return fmt.Errorf("%w: %q ends before it begins", ErrInvalidEvent, e.Name)
		}
		if i > 0 && e.Begin < list[i-1].Begin {
			return fmt.Errorf("%w: %q begins before %q", ErrUnordered, e.Name, list[i-1].Name)
		}
	}
	return nil
}

// Store holds the current event list. Updates replace the whole list.
type Store struct {
	mu     sync.RWMutex
	events []Event
}

// NewStore creates a store holding list
func NewStore(list []Event) (*Store, error) {
	s := &Store{}
	if err := s.Set(list); err != nil {
		return nil, err
	}
	return s, nil
}

// Set validates and installs a copy of list
func (s *Store) Set(list []Event) error {
	if err := Validate(list); err != nil {
		return err
	}

	cp := make([]Event, len(list))
	copy(cp, list)

	s.mu.Lock()
	s.events = cp
	s.mu.Unlock()
	return nil
}

// Snapshot returns the current list. Callers must not modify it.
func (s *Store) Snapshot() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.events
}
