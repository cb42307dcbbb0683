package server

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/newtron-network/routewatch/pkg/model"
	"github.com/newtron-network/routewatch/pkg/util"
)

// HealthResponse is the body of /health and /ready.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Snapshot  string    `json:"snapshot,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// DeviceSummary is one entry of the /v1/devices listing.
type DeviceSummary struct {
	Name        string    `json:"name"`
	Site        string    `json:"site"`
	Regions     []string  `json:"regions"`
	Interfaces  int       `json:"interfaces"`
	NextHops    int       `json:"nexthops"`
	MPLSLabels  int       `json:"mpls_labels"`
	CollectedAt time.Time `json:"collected_at"`
	Error       string    `json:"error,omitempty"`
}

// DeviceList is the body of /v1/devices.
type DeviceList struct {
	Snapshot    string                   `json:"snapshot"`
	CompletedAt time.Time                `json:"completed_at"`
	Devices     map[string]DeviceSummary `json:"devices"`
}

// Summarize reduces a device record to its listing entry.
func Summarize(d *model.Device) DeviceSummary {
	return DeviceSummary{
		Name:        d.Name,
		Site:        d.Site,
		Regions:     d.Regions,
		Interfaces:  len(d.Interfaces),
		NextHops:    len(d.NextHops),
		MPLSLabels:  len(d.MPLSLabels),
		CollectedAt: d.CollectedAt,
		Error:       d.Error,
	}
}

// current returns the snapshot, or writes the error response and returns nil.
func (s *Server) current(w http.ResponseWriter, r *http.Request) *model.Snapshot {
	snap, err := s.source.Current()
	if err != nil {
		s.writeFailure(w, r, err, "Snapshot unavailable", nil)
		return nil
	}
	return snap
}

// handleSnapshot serves the full exporters document. The snapshot ID is
// the entity tag; a matching If-None-Match yields 304.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := s.current(w, r)
	if snap == nil {
		return
	}

	etag := strconv.Quote(snap.ID)
	w.Header().Set("ETag", etag)
	if !snap.CompletedAt.IsZero() {
		w.Header().Set("Last-Modified", snap.CompletedAt.UTC().Format(http.TimeFormat))
	}
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	var buf bytes.Buffer
	if err := snap.Encode(&buf); err != nil {
		s.writeError(w, r, http.StatusInternalServerError, ErrCodeInternalError,
			"Failed to encode snapshot", false, nil)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.log.Debugf("snapshot write failed: %v", err)
	}
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	snap := s.current(w, r)
	if snap == nil {
		return
	}
	list := DeviceList{
		Snapshot:    snap.ID,
		CompletedAt: snap.CompletedAt,
		Devices:     make(map[string]DeviceSummary, len(snap.Exporters)),
	}
	for addr, d := range snap.Exporters {
		list.Devices[addr] = Summarize(d)
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	snap := s.current(w, r)
	if snap == nil {
		return
	}
	addr := r.PathValue("address")
	d, ok := snap.Device(addr)
	if !ok {
		err := fmt.Errorf("device %s: %w", addr, util.ErrNotFound)
		s.writeFailure(w, r, err, "Device not in snapshot", map[string]interface{}{
				"address":  addr,
				"snapshot": snap.ID,
			})
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleHealth reports liveness; the process answering is enough.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	})
}

// handleReady reports ready once the first snapshot is published.
func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	snap, err := s.source.Current()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:    "not_ready",
			Timestamp: time.Now().UTC(),
			Reason:    err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ready",
		Timestamp: time.Now().UTC(),
		Snapshot:  snap.ID,
	})
}
