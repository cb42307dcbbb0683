package netbox

import (
	"context"
	"fmt"
	"slices"

	"github.com/newtron-network/routewatch/pkg/model"
	"github.com/newtron-network/routewatch/pkg/util"
)

type ref struct {
	ID   int    `json:"id"`
	URL  string `json:"url"`
	Name string `json:"name"`
}

type ipRef struct {
	Address string `json:"address"`
}

type device struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	PrimaryIP4 *ipRef `json:"primary_ip4"`
	Site       *ref   `json:"site"`
}

type site struct {
	Name   string `json:"name"`
	Region *ref   `json:"region"`
}

type region struct {
	Name   string `json:"name"`
	Parent *ref   `json:"parent"`
}

type termination struct {
	Object *struct {
		Name   string `json:"name"`
		Device *ref   `json:"device"`
	} `json:"object"`
}

type cable struct {
	ID            int           `json:"id"`
	ATerminations []termination `json:"a_terminations"`
	BTerminations []termination `json:"b_terminations"`
}

func (t termination) names() (device, iface string) {
	if t.Object == nil {
		return "", ""
	}
	if t.Object.Device != nil {
		device = t.Object.Device.Name
	}
	return device, t.Object.Name
}

// resolver caches site and region lookups for one Devices call.
type resolver struct {
	c       *Client
	sites   map[string]site
	regions map[string]region
}

func (r *resolver) site(ctx context.Context, s *ref) (site, error) {
	if v, ok := r.sites[s.URL]; ok {
		return v, nil
	}
	var v site
	if err := r.c.get(ctx, s.URL, &v); err != nil {
		return site{}, err
	}
	r.sites[s.URL] = v
	return v, nil
}

// regionChain returns the region names from the root down to reg.
func (r *resolver) regionChain(ctx context.Context, reg *ref) ([]string, error) {
	chain := []string{}
	seen := make(map[string]bool)
	for reg != nil && reg.URL != "" && !seen[reg.URL] {
		seen[reg.URL] = true
		v, ok := r.regions[reg.URL]
		if !ok {
			if err := r.c.get(ctx, reg.URL, &v); err != nil {
				return nil, err
			}
			r.regions[reg.URL] = v
		}
		chain = append(chain, v.Name)
		reg = v.Parent
	}
	slices.Reverse(chain)
	return chain, nil
}

// Devices lists all devices that have a primary IPv4 address, keyed by that
// address without mask, with their site and region chain.
func (c *Client) Devices(ctx context.Context) (model.Inventory, error) {
	r := &resolver{c: c, sites: make(map[string]site), regions: make(map[string]region)}
	inv := make(model.Inventory)

	err := list(ctx, c, "/api/dcim/devices/", func(d device) error {
		if d.PrimaryIP4 == nil || d.PrimaryIP4.Address == "" {
			return nil
		}
		addr := util.StripMask(d.PrimaryIP4.Address)
		entry := model.InventoryDevice{Name: d.Name, Regions: []string{}}
		if d.Site != nil && d.Site.URL != "" {
			s, err := r.site(ctx, d.Site)
			if err != nil {
				return fmt.Errorf("site of %s: %w", d.Name, err)
			}
			entry.Site = s.Name
			if entry.Regions, err = r.regionChain(ctx, s.Region); err != nil {
				return fmt.Errorf("regions of %s: %w", d.Name, err)
			}
		}
		if prev, dup := inv[addr]; dup {
			util.WithComponent("netbox").Warnf("primary address %s shared by %s and %s, keeping %s", addr, prev.Name, d.Name, d.Name)
		}
		inv[addr] = entry
		return nil
	})
	if err != nil {
		return nil, util.NewInventoryError("devices", err)
	}
	return inv, nil
}

// Connections lists all cables with exactly one termination per side and
// indexes them in both directions.
func (c *Client) Connections(ctx context.Context) (model.ConnectionMap, error) {
	conns := make(model.ConnectionMap)
	err := list(ctx, c, "/api/dcim/cables/", func(cb cable) error {
		if len(cb.ATerminations) != 1 || len(cb.BTerminations) != 1 {
			return nil
		}
		aDev, aIf := cb.ATerminations[0].names()
		bDev, bIf := cb.BTerminations[0].names()
		conns.Link(aDev, aIf, bDev, bIf)
		return nil
	})
	if err != nil {
		return nil, util.NewInventoryError("connections", err)
	}
	return conns, nil
}
