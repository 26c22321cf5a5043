// ABOUTME: Tests for prometheus collectors
// ABOUTME: Tests registration, observation, and nil safety
package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveSync(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.ObserveSync(120, 130, 15, 3)

	if got := testutil.ToFloat64(c.offset); got != 120 {
		t.Errorf("expected offset 120, got %v", got)
	}
	if got := testutil.ToFloat64(c.filtered); got != 130 {
		t.Errorf("expected filtered 130, got %v", got)
	}
	if got := testutil.ToFloat64(c.samples); got != 3 {
		t.Errorf("expected samples 3, got %v", got)
	}
	if got := testutil.ToFloat64(c.resyncs); got != 1 {
		t.Errorf("expected 1 resync, got %v", got)
	}
}

func TestObserveFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.ObserveFailure()
	c.ObserveFailure()

	if got := testutil.ToFloat64(c.failures); got != 2 {
		t.Errorf("expected 2 failures, got %v", got)
	}
}

func TestNilCollectors(t *testing.T) {
	var c *Collectors
	c.ObserveSync(1, 2, 3, 4)
	c.ObserveFailure()

	var s *ServerCollectors
	s.ObserveRequest("http")
}

func TestServerRequests(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewServer(reg)

	s.ObserveRequest("http")
	s.ObserveRequest("http")
	s.ObserveRequest("websocket")

	if got := testutil.ToFloat64(s.requests.WithLabelValues("http")); got != 2 {
		t.Errorf("expected 2 http requests, got %v", got)
	}
	if got := testutil.ToFloat64(s.requests.WithLabelValues("websocket")); got != 1 {
		t.Errorf("expected 1 websocket request, got %v", got)
	}
}
