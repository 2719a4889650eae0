package main

import (
	"context"
	"os"

	"github.com/martinsuchenak/lifecycled/cmd/device"
	"github.com/martinsuchenak/lifecycled/cmd/discovery"
	"github.com/martinsuchenak/lifecycled/cmd/eol"
	"github.com/martinsuchenak/lifecycled/cmd/forecast"
	"github.com/martinsuchenak/lifecycled/cmd/prices"
	"github.com/martinsuchenak/lifecycled/cmd/server"
	"github.com/martinsuchenak/lifecycled/internal/config"
	"github.com/martinsuchenak/lifecycled/internal/log"
	"github.com/paularlott/cli"
	"github.com/paularlott/cli/env"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Load .env file if it exists
	env.Load()

	// Initialize structured logging
	log.Configure("info", "console")

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:         "log-level",
			Usage:        "Log level (trace, debug, info, warn, error)",
			DefaultValue: "info",
			EnvVars:      []string{"LIFECYCLED_LOG_LEVEL"},
			Global:       true,
		},
		&cli.StringFlag{
			Name:         "log-format",
			Usage:        "Log format (console, json)",
			DefaultValue: "console",
			EnvVars:      []string{"LIFECYCLED_LOG_FORMAT"},
			Global:       true,
		},
		&cli.BoolFlag{
			Name:   "json",
			Usage:  "Print command output as JSON",
			Global: true,
		},
	}

	rootCmd := &cli.Command{
		Name:        "lifecycled",
		Version:     version,
		Usage:       "Network device lifecycle and refresh planner",
		Description: "Tracks end-of-life dates for network inventory, recommends replacements, and plans refresh waves with cost forecasts",
		Flags:       append(flags, config.GetFlags()...),
		PreRun: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			log.Configure(cmd.GetString("log-level"), cmd.GetString("log-format"))
			log.Debug("lifecycled starting", "version", version, "commit", commit, "date", date)
			return ctx, nil
		},
		Commands: []*cli.Command{
			server.Command(),
			{
				Name:        "device",
				Usage:       "Inventory commands",
				Description: "Import, list and assess devices in the inventory",
				Commands:    device.Commands(),
			},
			{
				Name:        "eol",
				Usage:       "EOL table commands",
				Description: "Resolve models and manage the end-of-life table",
				Commands:    eol.Commands(),
			},
			{
				Name:        "prices",
				Usage:       "Price catalog commands",
				Description: "Manage the replacement price catalog",
				Commands:    prices.Commands(),
			},
			{
				Name:        "forecast",
				Usage:       "Refresh planning commands",
				Description: "Plan refresh waves, print reports and store snapshots",
				Commands:    forecast.Commands(),
			},
			{
				Name:        "discovery",
				Usage:       "SNMP discovery commands",
				Description: "Collect inventory from network devices over SNMP",
				Commands:    discovery.Commands(),
			},
		},
	}

	if err := rootCmd.Execute(context.Background()); err != nil {
		log.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}
