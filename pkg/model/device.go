package model

import "time"

// Device is the enriched per-device record of one collection cycle. The
// three result maps are never nil; a failed device keeps them empty and
// carries the failure in Error.
type Device struct {
	Name        string                      `json:"name"`
	Site        string                      `json:"site"`
	Regions     []string                    `json:"regions"`
	Interfaces  map[string]LogicalInterface `json:"interfaces"`
	NextHops    map[string]NextHopEntry     `json:"nexthops"`
	MPLSLabels  MPLSLabels                  `json:"mpls_labels"`
	CollectedAt time.Time                   `json:"collected_at"`
	Error       string                      `json:"error,omitempty"`
}

// NewDevice returns an empty record carrying the inventory identity.
func NewDevice(inv InventoryDevice) *Device {
	regions := make([]string, len(inv.Regions))
	copy(regions, inv.Regions)
	return &Device{
		Name:       inv.Name,
		Site:       inv.Site,
		Regions:    regions,
		Interfaces: make(map[string]LogicalInterface),
		NextHops:   make(map[string]NextHopEntry),
		MPLSLabels: make(MPLSLabels),
	}
}

// Failed reports whether the device pipeline failed this cycle.
func (d *Device) Failed() bool {
	return d.Error != ""
}

// normalize replaces nil collections with empty ones, so decoded documents
// behave like freshly built ones.
func (d *Device) normalize() {
	if d.Regions == nil {
		d.Regions = []string{}
	}
	if d.Interfaces == nil {
		d.Interfaces = make(map[string]LogicalInterface)
	}
	if d.NextHops == nil {
		d.NextHops = make(map[string]NextHopEntry)
	}
	for dest, nh := range d.NextHops {
		if nh.Regions == nil {
			nh.Regions = []string{}
		}
		if nh.Labels == nil {
			nh.Labels = make(map[string]string)
		}
		d.NextHops[dest] = nh
	}
	if d.MPLSLabels == nil {
		d.MPLSLabels = make(MPLSLabels)
	}
}
