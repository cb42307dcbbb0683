//go:build integration

package testutil

import (
	"time"

	"github.com/newtron-network/routewatch/pkg/model"
)

// SampleSnapshot returns a two-device snapshot: one collected device with
// a cabled interface, a labelled next hop and an mpls.0 entry, and one
// unreachable device.
func SampleSnapshot(id string) *model.Snapshot {
	at := time.Now().UTC().Truncate(time.Second)
	s := model.NewSnapshot(id, at)
	s.CompletedAt = at.Add(5 * time.Second)

	pe1 := model.NewDevice(model.InventoryDevice{Name: "pe1.test", Site: "test-site", Regions: []string{"test-region"}})
	pe1.CollectedAt = at.Add(time.Second)
	pe1.Interfaces["517"] = model.LogicalInterface{
		Name:       "ge-0/0/1.0",
		Speed:      "1000mbps",
		Connection: model.Connection{Device: "pe2.test", Interface: "ge-0/0/1.0"},
	}
	pe1.NextHops["10.255.0.2"] = model.NextHopEntry{
		Name:    "pe2.test",
		Site:    "test-site",
		Regions: []string{"test-region"},
		Labels:  map[string]string{"10.0.0.2": "299776"},
	}
	pe1.MPLSLabels["299792"] = map[string]model.LabelBinding{"10.0.0.2": {Action: "Swap", Label: "300"}}
	s.Exporters["10.255.0.1"] = pe1

	pe2 := model.NewDevice(model.InventoryDevice{Name: "pe2.test", Site: "test-site", Regions: []string{"test-region"}})
	pe2.CollectedAt = at.Add(2 * time.Second)
	pe2.Error = "device 10.255.0.2 unreachable: connection refused"
	s.Exporters["10.255.0.2"] = pe2
	return s
}
