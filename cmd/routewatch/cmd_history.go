package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/routewatch/pkg/cli"
	"github.com/newtron-network/routewatch/pkg/history"
	"github.com/newtron-network/routewatch/pkg/util"
)

var historyFlags struct {
	file     string
	since    time.Duration
	address  string
	degraded bool
	limit    int
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past collection cycles",
	Long: `Show the cycle journal written by serve when history.file is configured.

Examples:
  routewatch history --since 24h
  routewatch history --degraded --limit 20
  routewatch history --address 10.255.0.3 --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := historyFlags.file
		if path == "" {
			path = app.settings.History.File
		}
		if path == "" {
			return fmt.Errorf("no history file: set history.file or use --file")
		}
		if historyFlags.address != "" && !util.IsIPAddress(historyFlags.address) {
			return fmt.Errorf("invalid address %q", historyFlags.address)
		}

		filter := history.Filter{
			Address:      historyFlags.address,
			DegradedOnly: historyFlags.degraded,
			Limit:        historyFlags.limit,
		}
		if historyFlags.since > 0 {
			filter.Since = time.Now().Add(-historyFlags.since)
		}

		events, err := history.ReadFile(path, filter)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if app.jsonOutput {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(events)
		}
		printHistory(out, events)
		return nil
	},
}

func init() {
	historyCmd.Flags().StringVarP(&historyFlags.file, "file", "f", "", "Journal to read (default history.file)")
	historyCmd.Flags().DurationVar(&historyFlags.since, "since", 0, "Only cycles started within this duration")
	historyCmd.Flags().StringVar(&historyFlags.address, "address", "", "Only cycles in which this device failed")
	historyCmd.Flags().BoolVar(&historyFlags.degraded, "degraded", false, "Only failed or partial cycles")
	historyCmd.Flags().IntVarP(&historyFlags.limit, "limit", "n", 0, "Show at most the last N cycles")
	addOutputFlags(historyCmd)
}

func printHistory(w io.Writer, events []*history.Event) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No cycles recorded")
		return
	}
	t := cli.NewTable(w, "STARTED", "CYCLE", "DURATION", "DEVICES", "FAILED", "STATUS")
	for _, e := range events {
		t.Row(e.Timestamp.Local().Format("2006-01-02 15:04:05"), cli.Dim(e.Cycle),
			e.Duration.Round(time.Millisecond).String(), strconv.Itoa(e.Devices),
			strings.Join(e.Failed, ", "), cycleStatus(e))
	}
	t.Flush()
}

func cycleStatus(e *history.Event) string {
	switch {
	case !e.Success:
		return cli.Red(e.Error)
	case len(e.Failed) > 0:
		return cli.Yellow("partial")
	default:
		return cli.Green("ok")
	}
}
