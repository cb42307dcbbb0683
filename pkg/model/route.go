package model

// NextHops is the raw inet.3 table: destination (mask stripped) to
// via address to label text ("299872", "" for an unlabelled hop).
type NextHops map[string]map[string]string

// LabelBinding is one mpls.0 forwarding action.
type LabelBinding struct {
	Action string `json:"action"` // Push, Swap, Pop, ...
	Label  string `json:"label"`
}

// MPLSLabels is the mpls.0 table: destination (label or FEC, verbatim) to
// via address to binding. A destination is never present without vias.
type MPLSLabels map[string]map[string]LabelBinding

// NextHopEntry is an inet.3 destination joined with the inventory entry of
// the device owning that address, if any.
type NextHopEntry struct {
	Name    string            `json:"name"`
	Site    string            `json:"site"`
	Regions []string          `json:"regions"`
	Labels  map[string]string `json:"labels"`
}
