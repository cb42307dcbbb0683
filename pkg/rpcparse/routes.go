package rpcparse

import (
	"encoding/xml"
	"strings"

	"github.com/newtron-network/routewatch/pkg/model"
	"github.com/newtron-network/routewatch/pkg/util"
)

// route is one <rt> of a route-information reply. Next hops normally sit
// under <rt-entry>; some releases put them directly under <rt>.
type route struct {
	Destination *string   `xml:"rt-destination"`
	NextHops    []nextHop `xml:"nh"`
	Entries     []rtEntry `xml:"rt-entry"`
}

type rtEntry struct {
	NextHops []nextHop `xml:"nh"`
}

// nextHop: Via is mandatory, Label optional.
type nextHop struct {
	Via   *string `xml:"via"`
	Label *string `xml:"mpls-label"`
}

func (r *route) allNextHops() []nextHop {
	hops := append([]nextHop(nil), r.NextHops...)
	for _, e := range r.Entries {
		hops = append(hops, e.NextHops...)
	}
	return hops
}

func eachRoute(payload []byte, fn func(r *route)) error {
	return each(payload, "rt", func(d *xml.Decoder, start xml.StartElement) error {
		var r route
		if err := d.DecodeElement(&r, &start); err != nil {
			return err
		}
		fn(&r)
		return nil
	})
}

// StripPush removes a leading "Push" keyword from inet.3 label text, so
// "Push 299776" becomes "299776". Other text is only trimmed.
func StripPush(label string) string {
	label = strings.TrimSpace(label)
	if strings.HasPrefix(label, "Push") {
		label = strings.TrimSpace(strings.TrimPrefix(label, "Push"))
	}
	return label
}

// SplitLabel splits mpls.0 label text into its action and label value:
// "Swap 300" -> {Swap 300}, "Pop" -> {Pop ""}.
func SplitLabel(label string) model.LabelBinding {
	fields := strings.Fields(label)
	var b model.LabelBinding
	if len(fields) > 0 {
		b.Action = fields[0]
	}
	if len(fields) > 1 {
		b.Label = fields[1]
	}
	return b
}

// ParseNextHops parses a route-information reply for table inet.3.
// Destinations lose their mask; hops without a via are dropped. A
// destination whose hops were all dropped is kept with an empty map.
func ParseNextHops(payload []byte) model.NextHops {
	out := make(model.NextHops)
	if len(payload) == 0 {
		return out
	}
	err := eachRoute(payload, func(r *route) {
		dest := util.StripMask(text(r.Destination))
		if dest == "" {
			return
		}
		vias := make(map[string]string)
		for _, nh := range r.allNextHops() {
			via, ok := required(nh.Via)
			if !ok {
				continue
			}
			vias[via] = StripPush(text(nh.Label))
		}
		out[dest] = vias
	})
	if err != nil {
		return make(model.NextHops)
	}
	return out
}

// ParseMPLSLabels parses a route-information reply for table mpls.0.
// Destinations are kept verbatim. Hops without a via or without label text
// are dropped, and so is any destination left without hops.
func ParseMPLSLabels(payload []byte) model.MPLSLabels {
	out := make(model.MPLSLabels)
	if len(payload) == 0 {
		return out
	}
	err := eachRoute(payload, func(r *route) {
		dest := text(r.Destination)
		if dest == "" {
			return
		}
		vias := make(map[string]model.LabelBinding)
		for _, nh := range r.allNextHops() {
			via, ok := required(nh.Via)
			if !ok {
				continue
			}
			label, ok := required(nh.Label)
			if !ok {
				continue
			}
			vias[via] = SplitLabel(label)
		}
		if len(vias) > 0 {
			out[dest] = vias
		}
	})
	if err != nil {
		return make(model.MPLSLabels)
	}
	return out
}
