package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/newtron-network/routewatch/pkg/cli"
	"github.com/newtron-network/routewatch/pkg/model"
	"github.com/newtron-network/routewatch/pkg/util"
)

var showSource sourceFlags

var showCmd = &cobra.Command{
	Use:   "show [address]",
	Short: "Show a snapshot",
	Long: `Show the devices of a snapshot, or one device's interfaces, next hops and
labels when an address is given. The snapshot is read from the output file
unless --file or --server is given.

Examples:
  routewatch show
  routewatch show 10.255.0.1
  routewatch show --server http://collector:8043 --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := showSource.load(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if len(args) == 0 {
			if app.jsonOutput {
				return snap.Encode(out)
			}
			printDevices(out, snap)
			return nil
		}

		d, ok := snap.Device(args[0])
		if !ok {
			return fmt.Errorf("device %s not in snapshot %s", args[0], snap.ID)
		}
		if app.jsonOutput {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(d)
		}
		printDevice(out, args[0], d)
		return nil
	},
}

func init() {
	showSource.register(showCmd)
	addOutputFlags(showCmd)
}

func printDevices(w io.Writer, snap *model.Snapshot) {
	fmt.Fprintf(w, "Snapshot: %s (completed %s)\n\n", cli.Bold(snap.ID), snap.CompletedAt.Format("2006-01-02 15:04:05"))

	t := cli.NewTable(w, "ADDRESS", "NAME", "SITE", "REGIONS", "IFACES", "NEXTHOPS", "LABELS", "STATUS")
	for _, addr := range snap.Addresses() {
		d := snap.Exporters[addr]
		t.Row(addr, d.Name, d.Site, strings.Join(d.Regions, ", "),
			strconv.Itoa(len(d.Interfaces)), strconv.Itoa(len(d.NextHops)), strconv.Itoa(len(d.MPLSLabels)),
			cli.Status(d.Error))
	}
	t.Flush()

	c := snap.Counts()
	fmt.Fprintf(w, "\n%d devices, %d failed\n", c.Devices, c.Failed)
}

func printDevice(w io.Writer, addr string, d *model.Device) {
	fmt.Fprintf(w, "Device: %s (%s)\n", cli.Bold(cli.Dash(d.Name)), addr)
	fmt.Fprintf(w, "Site: %s\n", cli.Dash(d.Site))
	fmt.Fprintf(w, "Regions: %s\n", cli.Dash(strings.Join(d.Regions, ", ")))
	if !d.CollectedAt.IsZero() {
		fmt.Fprintf(w, "Collected: %s\n", d.CollectedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(w, "Status: %s\n", cli.Status(d.Error))

	if len(d.Interfaces) > 0 {
		fmt.Fprintln(w, "\nInterfaces:")
		t := cli.NewTable(w, "SNMP", "NAME", "SPEED", "DESCRIPTION", "REMOTE").WithPrefix("  ")
		idx := slices.Collect(maps.Keys(d.Interfaces))
		slices.SortFunc(idx, util.CompareNumeric)
		for _, i := range idx {
			li := d.Interfaces[i]
			remote := ""
			if !li.Connection.IsZero() {
				remote = li.Connection.Device + " " + li.Connection.Interface
			}
			t.Row(i, li.Name, li.Speed, li.Description, remote)
		}
		t.Flush()
	}

	if len(d.NextHops) > 0 {
		fmt.Fprintln(w, "\nNext hops (inet.3):")
		t := cli.NewTable(w, "DESTINATION", "DEVICE", "SITE", "VIA", "LABEL").WithPrefix("  ")
		for _, dest := range slices.Sorted(maps.Keys(d.NextHops)) {
			nh := d.NextHops[dest]
			if len(nh.Labels) == 0 {
				t.Row(dest, nh.Name, nh.Site, "", "")
				continue
			}
			for _, via := range slices.Sorted(maps.Keys(nh.Labels)) {
				t.Row(dest, nh.Name, nh.Site, via, nh.Labels[via])
			}
		}
		t.Flush()
	}

	if len(d.MPLSLabels) > 0 {
		fmt.Fprintln(w, "\nLabels (mpls.0):")
		t := cli.NewTable(w, "LABEL", "VIA", "ACTION", "OUT").WithPrefix("  ")
		for _, label := range slices.Sorted(maps.Keys(d.MPLSLabels)) {
			vias := d.MPLSLabels[label]
			for _, via := range slices.Sorted(maps.Keys(vias)) {
				t.Row(label, via, vias[via].Action, vias[via].Label)
			}
		}
		t.Flush()
	}
}
