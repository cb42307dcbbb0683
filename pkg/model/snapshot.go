package model

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"
)

// Snapshot is the aggregate of one collection cycle, keyed by device
// address. It is not modified once published.
type Snapshot struct {
	ID          string             `json:"id"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt time.Time          `json:"completed_at"`
	Exporters   map[string]*Device `json:"exporters"`
}

// NewSnapshot creates an empty snapshot for the cycle id.
func NewSnapshot(id string, started time.Time) *Snapshot {
	return &Snapshot{
		ID:        id,
		StartedAt: started,
		Exporters: make(map[string]*Device),
	}
}

// Addresses returns the device addresses in sorted order.
func (s *Snapshot) Addresses() []string {
	addrs := make([]string, 0, len(s.Exporters))
	for addr := range s.Exporters {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs
}

// Device returns the record for addr.
func (s *Snapshot) Device(addr string) (*Device, bool) {
	d, ok := s.Exporters[addr]
	return d, ok
}

// Failed returns the sorted addresses of devices whose pipeline failed.
func (s *Snapshot) Failed() []string {
	var failed []string
	for _, addr := range s.Addresses() {
		if s.Exporters[addr].Failed() {
			failed = append(failed, addr)
		}
	}
	return failed
}

// Counts summarizes a snapshot for logs and metrics.
type Counts struct {
	Devices    int
	Failed     int
	Interfaces int
	NextHops   int
	MPLSLabels int
}

// Counts returns totals across all devices.
func (s *Snapshot) Counts() Counts {
	c := Counts{Devices: len(s.Exporters)}
	for _, d := range s.Exporters {
		if d.Failed() {
			c.Failed++
		}
		c.Interfaces += len(d.Interfaces)
		c.NextHops += len(d.NextHops)
		c.MPLSLabels += len(d.MPLSLabels)
	}
	return c
}

// Encode writes the published representation of s: indented JSON with
// HTML escaping disabled.
func (s *Snapshot) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encoding snapshot %s: %w", s.ID, err)
	}
	return nil
}

// Decode reads a snapshot written by Encode. Missing collections are
// restored as empty ones.
func Decode(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	if s.Exporters == nil {
		s.Exporters = make(map[string]*Device)
	}
	for addr, d := range s.Exporters {
		if d == nil {
			d = NewDevice(InventoryDevice{})
			s.Exporters[addr] = d
		}
		d.normalize()
	}
	return &s, nil
}
