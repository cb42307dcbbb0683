package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/newtron-network/routewatch/pkg/cli"
	"github.com/newtron-network/routewatch/pkg/settings"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and create the configuration",
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and print effective values",
	Long: `Load the configuration file, .env and ROUTEWATCH_* overrides, validate the
result and print it with secrets masked.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := app.settings
		out := cmd.OutOrStdout()

		data, err := yaml.Marshal(s.Masked())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "# effective configuration (%s)\n%s\n", configSource(), data)

		fmt.Fprintln(out, "Sinks:")
		for _, line := range sinkSummary(s) {
			fmt.Fprintln(out, "  "+line)
		}
		fmt.Fprintln(out)

		if err := s.Validate(); err != nil {
			fmt.Fprintln(out, cli.Red("invalid"))
			return err
		}
		fmt.Fprintln(out, cli.Green("configuration ok"))
		return nil
	},
}

var configInitFlags struct {
	output string
	force  bool
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configInitFlags.output
		if _, err := os.Stat(path); err == nil && !configInitFlags.force {
			return fmt.Errorf("%s exists, use --force to overwrite", path)
		}
		s := settings.Default()
		s.NetBox.URL = "https://netbox.example.net"
		if err := s.SaveTo(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().StringVarP(&configInitFlags.output, "output", "o", settings.DefaultPath, "File to write")
	configInitCmd.Flags().BoolVar(&configInitFlags.force, "force", false, "Overwrite an existing file")

	configCmd.AddCommand(configCheckCmd, configInitCmd)
}

func configSource() string {
	if app.configPath != "" {
		return app.configPath
	}
	if _, err := os.Stat(settings.DefaultPath); err == nil {
		return settings.DefaultPath
	}
	return "defaults"
}

// sinkSummary lists the publishing targets the settings enable.
func sinkSummary(s *settings.Settings) []string {
	var lines []string
	add := func(name, target string) {
		lines = append(lines, cli.DotPad(name, 10)+" "+target)
	}
	if s.Output.File != "" {
		add("file", s.Output.File)
	}
	if s.Redis.Addr != "" {
		add("redis", s.Redis.Addr+" db "+strconv.Itoa(s.Redis.DB))
	}
	if s.AMQP.URL != "" {
		target := s.Masked().AMQP.URL
		if s.AMQP.Exchange != "" {
			target += " exchange " + s.AMQP.Exchange
		}
		add("amqp", target)
	}
	if s.Skogul.Config != "" {
		add("skogul", strings.TrimSpace(s.Skogul.Config+" "+s.Skogul.Handler))
	}
	if s.SQLite.Path != "" {
		add("sqlite", s.SQLite.Path)
	}
	if len(lines) == 0 {
		lines = append(lines, cli.Yellow("none (snapshots are only served over HTTP)"))
	}
	return lines
}
