// Package enrich joins parsed device state with the inventory and the
// cable graph. All functions are pure: inputs are never modified.
package enrich

import (
	"time"

	"github.com/newtron-network/routewatch/pkg/collector"
	"github.com/newtron-network/routewatch/pkg/model"
)

// Interfaces returns a copy of ifs with each Connection set from the cable
// graph entry for (deviceName, interface name), or the empty pair.
func Interfaces(deviceName string, ifs map[string]model.LogicalInterface, conns model.ConnectionMap) map[string]model.LogicalInterface {
	out := make(map[string]model.LogicalInterface, len(ifs))
	for idx, li := range ifs {
		conn, _ := conns.Lookup(deviceName, li.Name)
		li.Connection = conn
		out[idx] = li
	}
	return out
}

// NextHops joins every inet.3 destination with the inventory device owning
// that address. Unknown destinations get empty identity fields.
func NextHops(nhs model.NextHops, inv model.Inventory) map[string]model.NextHopEntry {
	out := make(map[string]model.NextHopEntry, len(nhs))
	for dest, vias := range nhs {
		dev := inv[dest]
		regions := make([]string, len(dev.Regions))
		copy(regions, dev.Regions)
		labels := make(map[string]string, len(vias))
		for via, label := range vias {
			labels[via] = label
		}
		out[dest] = model.NextHopEntry{
			Name:    dev.Name,
			Site:    dev.Site,
			Regions: regions,
			Labels:  labels,
		}
	}
	return out
}

// Device assembles the enriched record for address. A nil res (failed
// collection) gives the record with empty results.
func Device(address string, inv model.Inventory, conns model.ConnectionMap, res *collector.Result, at time.Time) *model.Device {
	d := model.NewDevice(inv[address])
	d.CollectedAt = at
	if res == nil {
		return d
	}
	d.Interfaces = Interfaces(d.Name, res.Interfaces, conns)
	d.NextHops = NextHops(res.NextHops, inv)
	d.MPLSLabels = copyMPLS(res.MPLSLabels)
	return d
}

func copyMPLS(in model.MPLSLabels) model.MPLSLabels {
	out := make(model.MPLSLabels, len(in))
	for dest, vias := range in {
		m := make(map[string]model.LabelBinding, len(vias))
		for via, b := range vias {
			m[via] = b
		}
		out[dest] = m
	}
	return out
}
