// Package history keeps a JSON-lines journal of collection cycles.
package history

import (
	"slices"
	"time"

	"github.com/newtron-network/routewatch/pkg/model"
)

// Event is the journal entry of one collection cycle.
type Event struct {
	Cycle      string        `json:"cycle"`
	Timestamp  time.Time     `json:"timestamp"`
	Duration   time.Duration `json:"duration"`
	Success    bool          `json:"success"`
	Error      string        `json:"error,omitempty"`
	Devices    int           `json:"devices"`
	Failed     []string      `json:"failed,omitempty"`
	Interfaces int           `json:"interfaces"`
	NextHops   int           `json:"nexthops"`
	MPLSLabels int           `json:"mpls_labels"`
}

// FromSnapshot summarizes a published snapshot.
func FromSnapshot(s *model.Snapshot) *Event {
	c := s.Counts()
	return &Event{
		Cycle:      s.ID,
		Timestamp:  s.StartedAt,
		Duration:   s.CompletedAt.Sub(s.StartedAt),
		Success:    true,
		Devices:    c.Devices,
		Failed:     s.Failed(),
		Interfaces: c.Interfaces,
		NextHops:   c.NextHops,
		MPLSLabels: c.MPLSLabels,
	}
}

// NewFailure records a cycle that produced no snapshot.
func NewFailure(cycle string, started time.Time, err error) *Event {
	e := &Event{
		Cycle:     cycle,
		Timestamp: started,
		Duration:  time.Since(started),
	}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// Degraded reports whether the cycle failed or left any device uncollected.
func (e *Event) Degraded() bool {
	return !e.Success || len(e.Failed) > 0
}

// Filter selects journal entries. Zero fields match everything.
type Filter struct {
	Since time.Time
	Until time.Time
	// Address matches cycles in which this device failed.
	Address      string
	DegradedOnly bool
	// Limit keeps only the most recent matches.
	Limit int
}

func (f Filter) match(e *Event) bool {
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.Timestamp.After(f.Until) {
		return false
	}
	if f.Address != "" && !slices.Contains(e.Failed, f.Address) {
		return false
	}
	if f.DegradedOnly && !e.Degraded() {
		return false
	}
	return true
}
