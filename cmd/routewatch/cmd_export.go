package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/newtron-network/routewatch/pkg/report"
)

var exportFlags struct {
	source sourceFlags
	output string
}

var exportCmd = &cobra.Command{
	Use:   "export -o report.xlsx",
	Short: "Export a snapshot as an XLSX workbook",
	Long: `Write a snapshot as a spreadsheet with one sheet each for devices,
interfaces, next hops and MPLS labels.

Examples:
  routewatch export -o report.xlsx
  routewatch export -o report.xlsx --server http://collector:8043`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := exportFlags.source.load(cmd.Context())
		if err != nil {
			return err
		}
		if err := report.Save(exportFlags.output, snap); err != nil {
			return err
		}
		c := snap.Counts()
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s: %d devices from snapshot %s\n", exportFlags.output, c.Devices, snap.ID)
		return nil
	},
}

func init() {
	exportFlags.source.register(exportCmd)
	exportCmd.Flags().StringVarP(&exportFlags.output, "output", "o", "", "Output .xlsx file")
	_ = exportCmd.MarkFlagRequired("output")
}
