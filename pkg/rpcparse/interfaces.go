package rpcparse

import (
	"encoding/xml"
	"strconv"

	"github.com/newtron-network/routewatch/pkg/model"
)

// physicalInterface is the part of <physical-interface> we use. Speed is
// optional and inherited by every logical unit.
type physicalInterface struct {
	Speed   *string            `xml:"speed"`
	Logical []logicalInterface `xml:"logical-interface"`
}

// logicalInterface: Name and SNMPIndex are mandatory, Description optional.
type logicalInterface struct {
	Name        *string `xml:"name"`
	SNMPIndex   *string `xml:"snmp-index"`
	Description *string `xml:"description"`
}

// ParseInterfaces parses a get-interface-information reply into logical
// interfaces keyed by SNMP index. Units without a name or a numeric
// snmp-index are skipped. Connection is left empty for the enricher.
func ParseInterfaces(payload []byte) map[string]model.LogicalInterface {
	out := make(map[string]model.LogicalInterface)
	if len(payload) == 0 {
		return out
	}
	err := each(payload, "physical-interface", func(d *xml.Decoder, start xml.StartElement) error {
		var phy physicalInterface
		if err := d.DecodeElement(&phy, &start); err != nil {
			return err
		}
		speed := text(phy.Speed)
		for _, li := range phy.Logical {
			name, ok := required(li.Name)
			if !ok {
				continue
			}
			idx, ok := required(li.SNMPIndex)
			if !ok || !numeric(idx) {
				continue
			}
			out[idx] = model.LogicalInterface{
				Name:        name,
				Speed:       speed,
				Description: text(li.Description),
			}
		}
		return nil
	})
	if err != nil {
		return make(map[string]model.LogicalInterface)
	}
	return out
}

func numeric(s string) bool {
	_, err := strconv.ParseUint(s, 10, 64)
	return err == nil
}
