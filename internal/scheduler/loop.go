// ABOUTME: Cooperative scheduler running all callbacks on one goroutine
// ABOUTME: Provides periodic and delayed callbacks with cancellable handles
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const queueSize = 64

// Handle cancels a scheduled callback
type Handle interface {
	Stop()
}

// Loop serializes callbacks. Callbacks never run concurrently with each
// other, so state touched only from callbacks needs no further locking.
type Loop struct {
	clock clockwork.Clock
	tasks chan func()
	done  chan struct{}

	mu      sync.Mutex
	handles map[Handle]struct{}
	stopped bool
}

// NewLoop creates a loop driven by clock
func NewLoop(clock clockwork.Clock) *Loop {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Loop{
		clock:   clock,
		tasks:   make(chan func(), queueSize),
		done:    make(chan struct{}),
		handles: make(map[Handle]struct{}),
	}
}

// Run executes queued callbacks until ctx is cancelled, then stops every
// outstanding handle
func (l *Loop) Run(ctx context.Context) error {
	defer l.shutdown()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.tasks:
			fn()
		}
	}
}

// Do queues fn to run on the loop. It reports false once the loop is gone;
// fn is then dropped.
func (l *Loop) Do(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}

	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// After runs fn on the loop once, after d
func (l *Loop) After(d time.Duration, fn func()) Handle {
	h := &timerHandle{loop: l}
	h.timer = l.clock.AfterFunc(d, func() {
		l.forget(h)
		l.Do(fn)
	})
	l.track(h)
	return h
}

// Every runs fn on the loop every d, starting d from now
func (l *Loop) Every(d time.Duration, fn func()) Handle {
	h := &tickerHandle{
		loop:   l,
		ticker: l.clock.NewTicker(d),
		stop:   make(chan struct{}),
	}
	l.track(h)

	go func() {
		for {
			select {
			case <-h.stop:
				return
			case <-l.done:
				return
			case <-h.ticker.Chan():
				// skip the tick if the previous one is still queued
				select {
				case l.tasks <- fn:
				case <-h.stop:
					return
				case <-l.done:
					return
				default:
					log.Warn().Dur("interval", d).Msg("scheduler queue full, dropping tick")
				}
			}
		}
	}()

	return h
}

func (l *Loop) track(h Handle) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		go h.Stop()
		return
	}
	l.handles[h] = struct{}{}
}

func (l *Loop) forget(h Handle) {
	l.mu.Lock()
	delete(l.handles, h)
	l.mu.Unlock()
}

func (l *Loop) shutdown() {
	l.mu.Lock()
	l.stopped = true
	handles := l.handles
	l.handles = make(map[Handle]struct{})
	l.mu.Unlock()

	close(l.done)
	for h := range handles {
		h.Stop()
	}
}

type timerHandle struct {
	loop  *Loop
	timer clockwork.Timer
}

func (h *timerHandle) Stop() {
	h.timer.Stop()
	h.loop.forget(h)
}

type tickerHandle struct {
	loop   *Loop
	ticker clockwork.Ticker
	stop   chan struct{}
	once   sync.Once
}

func (h *tickerHandle) Stop() {
	h.once.Do(func() {
		h.ticker.Stop()
		close(h.stop)
	})
	h.loop.forget(h)
}
