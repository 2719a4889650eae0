package discovery

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/martinsuchenak/lifecycled/internal/cliutil"
	"github.com/martinsuchenak/lifecycled/internal/collector"
	"github.com/martinsuchenak/lifecycled/internal/model"
	"github.com/paularlott/cli"
)

// Commands returns the SNMP inventory discovery commands
func Commands() []*cli.Command {
	return []*cli.Command{
		CollectCommand(),
		TestPollCommand(),
	}
}

// CollectCommand polls the configured SNMP targets and stores the chassis found
func CollectCommand() *cli.Command {
	return &cli.Command{
		Name:        "collect",
		Usage:       "Collect inventory over SNMP",
		Description: "Poll the configured SNMP targets (--snmp-targets) for ENTITY-MIB chassis and store them as devices",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:         "dry-run",
				Usage:        "Print what was found without storing it",
				DefaultValue: false,
			},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			env, err := cliutil.Open(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			var store collector.DeviceStorage = env.Service.Store()
			if cmd.GetBool("dry-run") {
				store = nil
			}
			result, err := collector.New(env.Config.CollectorConfig(), store).Collect(ctx)
			if err != nil {
				return err
			}

			if cmd.GetBool("json") {
				return cliutil.JSON(os.Stdout, result)
			}
			fmt.Printf("Polled %d of %d targets in %v (%d failed)\n",
				result.Polled, result.Targets, result.Duration.Round(time.Millisecond), result.Failed)
			printDevices(result.Devices)
			if store != nil {
				fmt.Printf("Stored %d devices\n", result.Saved)
			}
			return nil
		},
	}
}

// TestPollCommand polls a single target without storing anything
func TestPollCommand() *cli.Command {
	return &cli.Command{
		Name:        "test-poll",
		Usage:       "Poll one SNMP target",
		Description: "Poll a single host and print the chassis it reports, to check SNMP settings before a collection run",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "target", Required: true},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			env, err := cliutil.Open(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			cfg := env.Config.CollectorConfig()
			target := cmd.GetStringArg("target")

			fmt.Println("=== SNMP Poll Test ===")
			fmt.Printf("Target: %s\n", target)
			fmt.Printf("Version: %s\n", cfg.Version)
			fmt.Printf("Timeout: %v\n", cfg.Timeout)
			fmt.Println()

			start := time.Now()
			devices, err := collector.New(cfg, nil).Poll(ctx, target)
			if err != nil {
				return fmt.Errorf("poll failed: %w", err)
			}
			fmt.Printf("Duration: %v\n", time.Since(start).Round(time.Millisecond))
			printDevices(devices)
			return nil
		},
	}
}

func printDevices(devices []model.Device) {
	if len(devices) == 0 {
		fmt.Println("No devices found.")
		return
	}
	tbl := cliutil.NewTable("SERIAL", "MODEL", "FIRMWARE", "NAME")
	for _, d := range devices {
		tbl.Add(d.Serial, d.Model, d.Firmware, d.Name)
	}
	tbl.Render(os.Stdout, cliutil.Width())
}
