package model

// LogicalInterface is a Junos logical unit (ge-0/0/0.0, ae1.100, ...)
// keyed by its SNMP index.
type LogicalInterface struct {
	Name        string     `json:"name"`
	Speed       string     `json:"speed"` // from the physical interface, e.g. "10Gbps"
	Description string     `json:"description"`
	Connection  Connection `json:"connection"`
}
