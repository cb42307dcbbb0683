// Package report renders a snapshot as an XLSX workbook.
package report

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/newtron-network/routewatch/pkg/model"
	"github.com/newtron-network/routewatch/pkg/util"
)

// Sheet names, in workbook order.
const (
	SheetDevices    = "devices"
	SheetInterfaces = "interfaces"
	SheetNextHops   = "nexthops"
	SheetMPLSLabels = "mpls_labels"
)

var headers = map[string][]string{
	SheetDevices: {"address", "name", "site", "regions", "collected_at",
		"interfaces", "nexthops", "mpls_labels", "error"},
	SheetInterfaces: {"address", "device", "snmp_index", "interface", "speed",
		"description", "remote_device", "remote_interface"},
	SheetNextHops: {"address", "device", "destination", "remote_device",
		"remote_site", "remote_regions", "via", "label"},
	SheetMPLSLabels: {"address", "device", "label", "via", "action", "out_label"},
}

// Build lays out the snapshot on one sheet per table. The caller closes
// the returned file.
func Build(s *model.Snapshot) (*excelize.File, error) {
	f := excelize.NewFile()
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}

	for i, sheet := range []string{SheetDevices, SheetInterfaces, SheetNextHops, SheetMPLSLabels} {
		if i == 0 {
			err = f.SetSheetName(f.GetSheetName(0), sheet)
		} else {
			_, err = f.NewSheet(sheet)
		}
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("sheet %s: %w", sheet, err)
		}

		rows := tableRows(sheet, s)
		if err := writeTable(f, sheet, headers[sheet], rows, bold); err != nil {
			f.Close()
			return nil, fmt.Errorf("sheet %s: %w", sheet, err)
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

// Write renders the workbook to w.
func Write(w io.Writer, s *model.Snapshot) error {
	f, err := Build(s)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// Save renders the workbook to path.
func Save(path string, s *model.Snapshot) error {
	f, err := Build(s)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func writeTable(f *excelize.File, sheet string, header []string, rows [][]interface{}, style int) error {
	head := make([]interface{}, len(header))
	for i, h := range header {
		head[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &head); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return err
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	lastCol, _, err := excelize.SplitCellName(last)
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", lastCol, 18); err != nil {
		return err
	}
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}
	return f.AutoFilter(sheet, "A1:"+last, nil)
}

func tableRows(sheet string, s *model.Snapshot) [][]interface{} {
	var rows [][]interface{}
	for _, addr := range s.Addresses() {
		d := s.Exporters[addr]
		switch sheet {
		case SheetDevices:
			rows = append(rows, []interface{}{
				addr, d.Name, d.Site, strings.Join(d.Regions, ", "), formatTime(d.CollectedAt),
				len(d.Interfaces), len(d.NextHops), len(d.MPLSLabels), d.Error,
			})
		case SheetInterfaces:
			for _, idx := range sortIndexes(d.Interfaces) {
				li := d.Interfaces[idx]
				rows = append(rows, []interface{}{
					addr, d.Name, idx, li.Name, li.Speed, li.Description,
					li.Connection.Device, li.Connection.Interface,
				})
			}
		case SheetNextHops:
			for _, dest := range slices.Sorted(maps.Keys(d.NextHops)) {
				nh := d.NextHops[dest]
				prefix := []interface{}{addr, d.Name, dest, nh.Name, nh.Site, strings.Join(nh.Regions, ", ")}
				if len(nh.Labels) == 0 {
					rows = append(rows, append(prefix, "", ""))
					continue
				}
				for _, via := range slices.Sorted(maps.Keys(nh.Labels)) {
					rows = append(rows, append(slices.Clone(prefix), via, nh.Labels[via]))
				}
			}
		case SheetMPLSLabels:
			for _, label := range slices.Sorted(maps.Keys(d.MPLSLabels)) {
				vias := d.MPLSLabels[label]
				for _, via := range slices.Sorted(maps.Keys(vias)) {
					b := vias[via]
					rows = append(rows, []interface{}{addr, d.Name, label, via, b.Action, b.Label})
				}
			}
		}
	}
	return rows
}

// sortIndexes orders SNMP indexes numerically.
func sortIndexes(m map[string]model.LogicalInterface) []string {
	keys := slices.Collect(maps.Keys(m))
	slices.SortFunc(keys, util.CompareNumeric)
	return keys
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
