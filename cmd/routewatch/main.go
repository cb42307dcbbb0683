// Routewatch - Junos MPLS route and interface collector
//
// Routewatch polls Junos routers over NETCONF for their interfaces, the
// inet.3 next hops and the mpls.0 label table, enriches the results with
// NetBox topology and publishes one JSON snapshot per cycle.
//
// Commands:
//
//	routewatch serve                     # poll periodically, serve the snapshot on :8043
//	routewatch collect -d 10.255.0.1     # one-off collection to stdout
//	routewatch show [address]            # inspect a snapshot file or a running server
//	routewatch export -o report.xlsx     # spreadsheet of a snapshot
//	routewatch history --degraded        # past cycles from the journal
//	routewatch config check              # validate the configuration
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/newtron-network/routewatch/pkg/cli"
	"github.com/newtron-network/routewatch/pkg/settings"
	"github.com/newtron-network/routewatch/pkg/util"
	"github.com/newtron-network/routewatch/pkg/version"
)

// app holds the global flags and the loaded configuration.
var app struct {
	configPath string
	verbose    bool
	noColor    bool
	jsonOutput bool

	settings *settings.Settings
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "routewatch",
	Short:             "Junos MPLS route and interface collector",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `Routewatch collects interfaces, inet.3 next hops and mpls.0 labels from
Junos routers over NETCONF, enriches them with NetBox topology and publishes
the result as a JSON snapshot.

Configuration is read from ` + settings.DefaultPath + ` (or -c), a .env file
in the working directory, and ROUTEWATCH_* environment variables.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if app.noColor {
			cli.SetColor(false)
		}
		if skipSettings(cmd) {
			return nil
		}

		s, err := settings.Load(app.configPath)
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}
		app.settings = s

		level := s.Log.Level
		if app.verbose {
			level = "debug"
		}
		if err := util.SetLogLevel(level); err != nil {
			return fmt.Errorf("log level %q: %w", level, err)
		}
		if s.Log.JSON {
			util.SetJSONFormat()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&app.configPath, "config", "c", "", "Configuration file (default "+settings.DefaultPath+")")
	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "Debug logging")
	rootCmd.PersistentFlags().BoolVar(&app.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "run", Title: "Collection:"},
		&cobra.Group{ID: "query", Title: "Snapshot Inspection:"},
		&cobra.Group{ID: "meta", Title: "Configuration & Meta:"},
	)

	for _, cmd := range []*cobra.Command{serveCmd, collectCmd} {
		cmd.GroupID = "run"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{showCmd, exportCmd, historyCmd} {
		cmd.GroupID = "query"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{configCmd, versionCmd} {
		cmd.GroupID = "meta"
		rootCmd.AddCommand(cmd)
	}
}

// skipSettings reports whether cmd runs without a configuration.
func skipSettings(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "version", "init":
			return true
		}
	}
	return false
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion(cmd)
	},
}

func printVersion(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	if version.Version == "dev" {
		fmt.Fprintln(out, "routewatch dev build (set version.Version with -ldflags for release info)")
		return
	}
	fmt.Fprintf(out, "routewatch %s\n", version.Info())
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&app.jsonOutput, "json", false, "JSON output")
}
