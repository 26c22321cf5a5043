// ABOUTME: Bounded sample window and offset filtering
// ABOUTME: Keeps the most recent samples and averages the lowest-RTT ones
package sync

import (
	"math"
	"sort"
)

const (
	// WindowCapacity is the number of samples kept
	WindowCapacity = 10

	// FilterSize is how many lowest-RTT samples are averaged
	FilterSize = 5

	// SnapThresholdMs is the discrepancy at or above which the offset jumps
	SnapThresholdMs = 10000.0

	// MaxStepMs bounds a gradual correction
	MaxStepMs = 500.0
)

// Sample is one offset measurement.
// Sequence is the server timestamp of the probe, used only for recency.
type Sample struct {
	Offset   float64 // ms, reference - local
	RTT      float64 // ms
	Sequence int64
}

// Window holds at most WindowCapacity samples
type Window struct {
	samples []Sample
}

// Add inserts s, evicting the sample with the smallest Sequence when full
func (w *Window) Add(s Sample) {
	if len(w.samples) >= WindowCapacity {
		oldest := 0
		for i, existing := range w.samples {
			if existing.Sequence < w.samples[oldest].Sequence {
				oldest = i
			}
		}
		w.samples = append(w.samples[:oldest], w.samples[oldest+1:]...)
	}
	w.samples = append(w.samples, s)
}

// Len returns the number of held samples
func (w *Window) Len() int {
	return len(w.samples)
}

// Samples returns a copy of the held samples in insertion order
func (w *Window) Samples() []Sample {
	out := make([]Sample, len(w.samples))
	copy(out, w.samples)
	return out
}

// Filtered returns the mean offset of the FilterSize samples with the
// smallest RTT. ok is false for an empty window.
func (w *Window) Filtered() (offset float64, ok bool) {
	if len(w.samples) == 0 {
		return 0, false
	}

	byRTT := w.Samples()
	sort.SliceStable(byRTT, func(i, j int) bool {
		return byRTT[i].RTT < byRTT[j].RTT
	})

	n := FilterSize
	if len(byRTT) < n {
		n = len(byRTT)
	}

	sum := 0.0
	for _, s := range byRTT[:n] {
		sum += s.Offset
	}
	return sum / float64(n), true
}

// MeasureOffset computes the offset and RTT of one probe.
// start and end are local readings bracketing the call, server is the
// reference reading, all in milliseconds.
func MeasureOffset(start, end, server float64) (offset, rtt float64) {
	offset = (2*server - start - end) / 2
	rtt = end - start
	return
}

// Smooth moves current toward filtered. Discrepancies of SnapThresholdMs or
// more are applied at once; smaller ones by at most MaxStepMs.
func Smooth(current, filtered float64) float64 {
	delta := filtered - current
	if math.Abs(delta) >= SnapThresholdMs || math.Abs(delta) <= MaxStepMs {
		return filtered
	}
	if delta > 0 {
		return current + MaxStepMs
	}
	return current - MaxStepMs
}
