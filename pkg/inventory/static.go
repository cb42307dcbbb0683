// Package inventory provides a file-backed inventory source, used instead
// of NetBox for labs and tests.
package inventory

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/newtron-network/routewatch/pkg/model"
	"github.com/newtron-network/routewatch/pkg/util"
)

// File is the on-disk inventory format:
//
//	devices:
//	  10.255.0.1:
//	    name: pe1.msk
//	    site: msk-dc1
//	    regions: [Central, Moscow]
//	cables:
//	  - a: {device: pe1.msk, interface: ge-0/0/1.0}
//	    b: {device: pe2.msk, interface: ge-0/0/3.0}
type File struct {
	Devices map[string]model.InventoryDevice `yaml:"devices"`
	Cables  []Cable                          `yaml:"cables"`
}

// Cable joins two interfaces.
type Cable struct {
	A model.Connection `yaml:"a"`
	B model.Connection `yaml:"b"`
}

// Static serves a fixed inventory. When Path is set the file is re-read on
// every call, so edits take effect on the next cycle.
type Static struct {
	Path string
	data *File
}

// NewStatic returns a source for the inventory file at path.
func NewStatic(path string) *Static {
	return &Static{Path: path}
}

// FromFile returns a source serving f.
func FromFile(f *File) *Static {
	return &Static{data: f}
}

// Load reads and validates an inventory file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &f, nil
}

// Validate checks addresses and cable ends.
func (f *File) Validate() error {
	v := &util.ValidationBuilder{}
	for addr := range f.Devices {
		v.Add(util.IsIPAddress(util.StripMask(addr)), fmt.Sprintf("device key %q is not an IP address", addr))
	}
	for i, c := range f.Cables {
		v.Add(c.A.Device != "" && c.A.Interface != "", fmt.Sprintf("cable %d: a end needs device and interface", i))
		v.Add(c.B.Device != "" && c.B.Interface != "", fmt.Sprintf("cable %d: b end needs device and interface", i))
	}
	return v.Build()
}

func (s *Static) file() (*File, error) {
	if s.data != nil {
		return s.data, nil
	}
	return Load(s.Path)
}

// Devices implements the poller inventory source.
func (s *Static) Devices(context.Context) (model.Inventory, error) {
	f, err := s.file()
	if err != nil {
		return nil, util.NewInventoryError("devices", err)
	}
	inv := make(model.Inventory, len(f.Devices))
	for addr, d := range f.Devices {
		if d.Regions == nil {
			d.Regions = []string{}
		}
		inv[util.StripMask(addr)] = d
	}
	return inv, nil
}

// Connections implements the poller inventory source.
func (s *Static) Connections(context.Context) (model.ConnectionMap, error) {
	f, err := s.file()
	if err != nil {
		return nil, util.NewInventoryError("connections", err)
	}
	conns := make(model.ConnectionMap)
	for _, c := range f.Cables {
		conns.Link(c.A.Device, c.A.Interface, c.B.Device, c.B.Interface)
	}
	return conns, nil
}
