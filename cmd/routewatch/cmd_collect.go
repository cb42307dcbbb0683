package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/newtron-network/routewatch/pkg/cli"
	"github.com/newtron-network/routewatch/pkg/model"
	"github.com/newtron-network/routewatch/pkg/publish"
	"github.com/newtron-network/routewatch/pkg/util"
)

var collectFlags struct {
	devices []string
	output  string
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run one collection cycle",
	Long: `Collect once from every inventory device, or only the devices given with -d,
and write the snapshot JSON to stdout or to -o. Configured sinks are not
used.

Examples:
  routewatch collect
  routewatch collect -d 10.255.0.1 -d 10.255.0.2
  routewatch collect -o result/tmp.json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := app.settings
		if err := s.Validate(); err != nil {
			return err
		}
		var targets []string
		for _, v := range collectFlags.devices {
			for _, addr := range util.SplitCommaSeparated(v) {
				if !util.IsIPAddress(addr) {
					return fmt.Errorf("%q is not an IP address", addr)
				}
				targets = append(targets, addr)
			}
		}

		p, err := newPoller(s, nil, nil)
		if err != nil {
			return err
		}
		snap, err := p.Collect(cmd.Context(), targets...)
		if err != nil {
			return err
		}

		if collectFlags.output != "" {
			if err := publish.WriteFile(collectFlags.output, snap); err != nil {
				return err
			}
			printCollectSummary(cmd.ErrOrStderr(), snap)
			return nil
		}
		return snap.Encode(cmd.OutOrStdout())
	},
}

func init() {
	collectCmd.Flags().StringArrayVarP(&collectFlags.devices, "device", "d", nil, "Device addresses to collect (repeatable, comma-separated)")
	collectCmd.Flags().StringVarP(&collectFlags.output, "output", "o", "", "Write the snapshot to this file")
}

// printCollectSummary prints one status line per device.
func printCollectSummary(w io.Writer, snap *model.Snapshot) {
	for _, addr := range snap.Addresses() {
		d := snap.Exporters[addr]
		fmt.Fprintf(w, "%s %s\n", cli.DotPad(addr+" "+d.Name, 40), cli.Status(d.Error))
	}
	c := snap.Counts()
	fmt.Fprintf(w, "\n%d devices, %d failed\n", c.Devices, c.Failed)
}
