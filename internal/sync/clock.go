// ABOUTME: Clock synchronization against an authoritative time source
// ABOUTME: Filters round-trip samples and smooths the offset applied to the local clock
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/cms-dev/timeview-go/internal/metrics"
)

// ErrInvalidTimestamp marks a probe whose reference reading cannot be used
var ErrInvalidTimestamp = errors.New("invalid reference timestamp")

// maxRecordedRTT caps values fed to the RTT histogram (ms)
const maxRecordedRTT = 60000

// TimeSource returns the reference clock reading in milliseconds since epoch
type TimeSource interface {
	ServerTimestamp(ctx context.Context) (int64, error)
}

// Measurement is one probe bracketed by local clock readings
type Measurement struct {
	Start           time.Time
	End             time.Time
	ServerTimestamp int64 // ms since epoch
}

// Stats summarizes synchronization state
type Stats struct {
	Offset   float64 // ms applied to the local clock
	Filtered float64 // ms, last filtered estimate
	Samples  int
	LastRTT  float64 // ms
	RTTP50   int64   // ms
	RTTP99   int64   // ms
	Failures int64
	LastSync time.Time
}

// Config holds ClockSync dependencies
type Config struct {
	Clock    clockwork.Clock
	Source   TimeSource
	Location *time.Location
	Metrics  *metrics.Collectors
}

// ClockSync estimates the offset between the local clock and the reference
type ClockSync struct {
	mu       sync.RWMutex
	clock    clockwork.Clock
	source   TimeSource
	loc      *time.Location
	metrics  *metrics.Collectors
	window   Window
	offset   float64 // ms, reference ≈ local + offset
	filtered float64
	lastRTT  float64
	failures int64
	lastSync time.Time
	rtts     *hdrhistogram.Histogram
}

// NewClockSync creates a synchronizer with a zero offset
func NewClockSync(config Config) *ClockSync {
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}
	if config.Location == nil {
		config.Location = time.Local
	}

	return &ClockSync{
		clock:   config.Clock,
		source:  config.Source,
		loc:     config.Location,
		metrics: config.Metrics,
		rtts:    hdrhistogram.New(1, maxRecordedRTT, 3),
	}
}

// CorrectedTime returns the reference time in seconds since epoch
func (cs *ClockSync) CorrectedTime() float64 {
	cs.mu.RLock()
	offset := cs.offset
	cs.mu.RUnlock()

	return (millis(cs.clock.Now()) + offset) / 1000
}

// TimezoneShift returns the seconds to add to a corrected time to read it
// as wall time in a zone tzOffset seconds east of UTC
func (cs *ClockSync) TimezoneShift(tzOffset int64) float64 {
	_, local := cs.clock.Now().In(cs.loc).Zone()
	return float64(tzOffset - int64(local))
}

// TimezonedCorrectedTime returns CorrectedTime shifted into the zone tzOffset
func (cs *ClockSync) TimezonedCorrectedTime(tzOffset int64) float64 {
	return cs.CorrectedTime() + cs.TimezoneShift(tzOffset)
}

// Location returns the zone used for local offsets
func (cs *ClockSync) Location() *time.Location {
	return cs.loc
}

// Offset returns the current offset in milliseconds
func (cs *ClockSync) Offset() float64 {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.offset
}

// Resync probes the source and applies the result
func (cs *ClockSync) Resync(ctx context.Context) error {
	m, err := cs.Probe(ctx)
	return cs.Complete(m, err)
}

// Probe performs one round trip without touching sync state
func (cs *ClockSync) Probe(ctx context.Context) (Measurement, error) {
	if cs.source == nil {
		return Measurement{}, fmt.Errorf("no time source configured")
	}

	start := cs.clock.Now()
	ts, err := cs.source.ServerTimestamp(ctx)
	end := cs.clock.Now()
	if err != nil {
		return Measurement{}, err
	}

	return Measurement{Start: start, End: end, ServerTimestamp: ts}, nil
}

// Complete applies a probe result. A failed or invalid probe leaves the
// window and offset untouched and is returned after being logged.
func (cs *ClockSync) Complete(m Measurement, probeErr error) error {
	if probeErr == nil && m.ServerTimestamp <= 0 {
		probeErr = fmt.Errorf("%w: %d", ErrInvalidTimestamp, m.ServerTimestamp)
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	if probeErr != nil {
		cs.failures++
		cs.metrics.ObserveFailure()
		log.Warn().Err(probeErr).Msg("server time synchronization failed")
		return probeErr
	}

	offset, rtt := MeasureOffset(millis(m.Start), millis(m.End), float64(m.ServerTimestamp))
	cs.window.Add(Sample{Offset: offset, RTT: rtt, Sequence: m.ServerTimestamp})

	filtered, _ := cs.window.Filtered()
	previous := cs.offset
	cs.offset = Smooth(cs.offset, filtered)
	cs.filtered = filtered
	cs.lastRTT = rtt
	cs.lastSync = cs.clock.Now()

	recorded := int64(rtt)
	if recorded < 0 {
		recorded = 0
	}
	if recorded > maxRecordedRTT {
		recorded = maxRecordedRTT
	}
	_ = cs.rtts.RecordValue(recorded)

	cs.metrics.ObserveSync(cs.offset, filtered, rtt, cs.window.Len())

	log.Debug().
		Float64("sample_offset_ms", offset).
		Float64("rtt_ms", rtt).
		Float64("filtered_ms", filtered).
		Float64("step_ms", cs.offset-previous).
		Float64("offset_ms", cs.offset).
		Int("samples", cs.window.Len()).
		Msg("server time synchronized")

	return nil
}

// Samples returns a copy of the sample window
func (cs *ClockSync) Samples() []Sample {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.window.Samples()
}

// Stats returns a snapshot of sync statistics
func (cs *ClockSync) Stats() Stats {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	return Stats{
		Offset:   cs.offset,
		Filtered: cs.filtered,
		Samples:  cs.window.Len(),
		LastRTT:  cs.lastRTT,
		RTTP50:   cs.rtts.ValueAtQuantile(50),
		RTTP99:   cs.rtts.ValueAtQuantile(99),
		Failures: cs.failures,
		LastSync: cs.lastSync,
	}
}

func millis(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Millisecond)
}
