// Package model defines the records routewatch collects from devices,
// enriches with inventory data and publishes as one snapshot per cycle.
package model

import "sort"

// InventoryDevice is a device as described by the inventory source.
// Regions are ordered from the site's own region outwards.
type InventoryDevice struct {
	Name    string   `json:"name" yaml:"name"`
	Site    string   `json:"site" yaml:"site"`
	Regions []string `json:"regions" yaml:"regions"`
}

// Inventory maps a management address (no mask) to its device.
type Inventory map[string]InventoryDevice

// Addresses returns the inventory keys in sorted order.
func (inv Inventory) Addresses() []string {
	addrs := make([]string, 0, len(inv))
	for addr := range inv {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs
}

// Subset returns the part of the inventory matching addrs, and the
// addresses that were not found.
func (inv Inventory) Subset(addrs ...string) (Inventory, []string) {
	sub := make(Inventory, len(addrs))
	var missing []string
	for _, addr := range addrs {
		dev, ok := inv[addr]
		if !ok {
			missing = append(missing, addr)
			continue
		}
		sub[addr] = dev
	}
	return sub, missing
}

// Connection is the far end of a cable. The zero value means no cable
// record was found and is serialized as-is.
type Connection struct {
	Device    string `json:"device" yaml:"device"`
	Interface string `json:"interface" yaml:"interface"`
}

// IsZero reports whether c is the empty pair.
func (c Connection) IsZero() bool {
	return c.Device == "" && c.Interface == ""
}

// ConnectionMap is the cable graph keyed by local device name, then local
// interface name.
type ConnectionMap map[string]map[string]Connection

// Lookup returns the far end of (device, iface).
func (m ConnectionMap) Lookup(device, iface string) (Connection, bool) {
	c, ok := m[device][iface]
	return c, ok
}

// Link records a cable in both directions.
func (m ConnectionMap) Link(aDevice, aIface, bDevice, bIface string) {
	m.add(aDevice, aIface, Connection{Device: bDevice, Interface: bIface})
	m.add(bDevice, bIface, Connection{Device: aDevice, Interface: aIface})
}

func (m ConnectionMap) add(device, iface string, c Connection) {
	if m[device] == nil {
		m[device] = make(map[string]Connection)
	}
	m[device][iface] = c
}
