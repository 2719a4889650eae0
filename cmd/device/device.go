package device

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/martinsuchenak/lifecycled/internal/cliutil"
	"github.com/martinsuchenak/lifecycled/internal/model"
	"github.com/martinsuchenak/lifecycled/internal/planner"
	"github.com/paularlott/cli"
)

// Commands returns the inventory commands
func Commands() []*cli.Command {
	return []*cli.Command{
		importCommand(),
		listCommand(),
		getCommand(),
		deleteCommand(),
		assessCommand(),
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:        "import",
		Usage:       "Import an inventory document",
		Description: "Import devices and networks from a JSON inventory: either {\"devices\": [...], \"networks\": [...]} or a bare device array",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Inventory file (- for stdin)", Required: true},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			env, err := cliutil.Open(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			in, err := cliutil.OpenInput(cmd.GetString("file"))
			if err != nil {
				return err
			}
			defer in.Close()

			result, err := env.Service.ImportInventory(in)
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d devices and %d networks\n", result.Devices, result.Networks)
			return nil
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:        "list",
		Usage:       "List devices",
		Description: "List devices in the inventory",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "network", Usage: "Only devices in this network"},
			&cli.StringFlag{Name: "model", Usage: "Only models starting with this prefix"},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			env, err := cliutil.Open(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			devices, err := env.Service.Store().ListDevices(&model.DeviceFilter{
				NetworkID: cmd.GetString("network"),
				Model:     cmd.GetString("model"),
			})
			if err != nil {
				return err
			}
			if cmd.GetBool("json") {
				return cliutil.JSON(os.Stdout, devices)
			}
			if len(devices) == 0 {
				fmt.Println("No devices found")
				return nil
			}

			tbl := cliutil.NewTable("SERIAL", "MODEL", "NETWORK", "FIRMWARE", "NAME")
			for _, d := range devices {
				tbl.Add(d.Serial, d.Model, d.NetworkID, d.Firmware, d.Name)
			}
			tbl.Render(os.Stdout, cliutil.Width())
			return nil
		},
	}
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:        "get",
		Usage:       "Get a device",
		Description: "Get a device by serial",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "serial", Required: true},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			env, err := cliutil.Open(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			device, err := env.Service.Store().GetDevice(cmd.GetStringArg("serial"))
			if err != nil {
				return err
			}
			return cliutil.JSON(os.Stdout, device)
		},
	}
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:        "delete",
		Usage:       "Delete a device",
		Description: "Delete a device from the inventory",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "serial", Required: true},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			env, err := cliutil.Open(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			serial := cmd.GetStringArg("serial")
			if err := env.Service.Store().DeleteDevice(serial); err != nil {
				return err
			}
			fmt.Printf("Deleted device %s\n", serial)
			return nil
		},
	}
}

func assessCommand() *cli.Command {
	return &cli.Command{
		Name:        "assess",
		Usage:       "Assess devices",
		Description: "Assess one device by serial, or every device matching the filters when no serial is given",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "serial"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "network", Usage: "Only devices in this network"},
			&cli.StringFlag{Name: "model", Usage: "Only models starting with this prefix"},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			env, err := cliutil.Open(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			var assessments []planner.Assessment
			if serial := strings.TrimSpace(cmd.GetStringArg("serial")); serial != "" {
				a, err := env.Service.Assess(ctx, serial)
				if err != nil {
					return err
				}
				assessments = append(assessments, a)
			} else {
				assessments, err = env.Service.AssessAll(ctx, &model.DeviceFilter{
					NetworkID: cmd.GetString("network"),
					Model:     cmd.GetString("model"),
				})
				if err != nil {
					return err
				}
			}

			if cmd.GetBool("json") {
				return cliutil.JSON(os.Stdout, assessments)
			}
			PrintAssessments(assessments)
			return nil
		},
	}
}

// PrintAssessments renders assessments as a table on stdout
func PrintAssessments(assessments []planner.Assessment) {
	if len(assessments) == 0 {
		fmt.Println("No devices found")
		return
	}
	tbl := cliutil.NewTable("SERIAL", "MODEL", "END OF SUPPORT", "DAYS", "STATUS", "RISK", "COST", "REPLACEMENT")
	for _, a := range assessments {
		eos, days := "-", "-"
		if a.EndOfSupport != nil {
			eos = a.EndOfSupport.Format("2006-01-02")
		}
		if a.DaysToEOL != nil {
			days = fmt.Sprint(*a.DaysToEOL)
		}
		cost := "-"
		if a.NeedsReplacement() {
			cost = planner.FormatMoney(a.TotalCost())
		}
		tbl.Add(a.Serial, a.Model, eos, days, a.Status,
			fmt.Sprintf("%d %s", a.RiskScore, a.RiskCategory), cost, a.Replacement)
	}
	tbl.Render(os.Stdout, cliutil.Width())
}
