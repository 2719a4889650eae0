package forecast

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/martinsuchenak/lifecycled/cmd/device"
	"github.com/martinsuchenak/lifecycled/internal/cliutil"
	"github.com/martinsuchenak/lifecycled/internal/lifecycle"
	"github.com/martinsuchenak/lifecycled/internal/planner"
	"github.com/paularlott/cli"
)

// Commands returns the forecast commands
func Commands() []*cli.Command {
	return []*cli.Command{
		runCommand(),
		reportCommand(),
		snapshotCommand(),
		listCommand(),
	}
}

func horizonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "years", Usage: "Forecast horizon in years (default from configuration)"},
		&cli.IntFlag{Name: "waves", Usage: "Waves per year (default from configuration)"},
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:        "run",
		Usage:       "Plan the refresh",
		Description: "Plan every device needing replacement into refresh waves and print the summary",
		Flags:       horizonFlags(),
		Run: func(ctx context.Context, cmd *cli.Command) error {
			env, err := cliutil.Open(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			report, err := env.Service.Forecast(ctx, cmd.GetInt("years"), cmd.GetInt("waves"))
			if err != nil {
				return err
			}
			if cmd.GetBool("json") {
				return cliutil.JSON(os.Stdout, report)
			}
			printSummary(report)
			return nil
		},
	}
}

func reportCommand() *cli.Command {
	return &cli.Command{
		Name:        "report",
		Usage:       "Print one report section",
		Description: "Print one section of the forecast as JSON. Sections: " + strings.Join(planner.ReportKinds(), ", "),
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "kind", Required: true},
		},
		Flags: horizonFlags(),
		Run: func(ctx context.Context, cmd *cli.Command) error {
			kind := cmd.GetStringArg("kind")

			env, err := cliutil.Open(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			report, err := env.Service.Forecast(ctx, cmd.GetInt("years"), cmd.GetInt("waves"))
			if err != nil {
				return err
			}
			if kind == "high-risk" && !cmd.GetBool("json") {
				device.PrintAssessments(report.HighRisk)
				return nil
			}
			section, ok := report.Section(kind)
			if !ok {
				return fmt.Errorf("unknown report %q, expected one of %s", kind, strings.Join(planner.ReportKinds(), ", "))
			}
			return cliutil.JSON(os.Stdout, section)
		},
	}
}

func snapshotCommand() *cli.Command {
	return &cli.Command{
		Name:        "snapshot",
		Usage:       "Store a forecast snapshot",
		Description: "Run the configured forecast and store it for later comparison",
		Run: func(ctx context.Context, cmd *cli.Command) error {
			env, err := cliutil.Open(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			run, err := env.Service.Snapshot(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Stored forecast %s: %d devices, %s\n", run.ID, run.DeviceCount, planner.FormatMoney(run.TotalCost))
			return nil
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:        "list",
		Usage:       "List stored forecasts",
		Description: "List stored forecast snapshots, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Usage: "Maximum number of snapshots", DefaultValue: 20},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			env, err := cliutil.Open(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			runs, err := env.Service.Store().ListForecasts(cmd.GetInt("limit"))
			if err != nil {
				return err
			}
			if cmd.GetBool("json") {
				return cliutil.JSON(os.Stdout, runs)
			}
			if len(runs) == 0 {
				fmt.Println("No stored forecasts")
				return nil
			}
			tbl := cliutil.NewTable("ID", "GENERATED", "AS OF", "HORIZON", "DEVICES", "TOTAL")
			for _, r := range runs {
				tbl.Add(r.ID, r.GeneratedAt.Format("2006-01-02 15:04"), r.Today.Format("2006-01-02"),
					fmt.Sprintf("%dy x %d", r.ForecastYears, r.WavesPerYear), r.DeviceCount, planner.FormatMoney(r.TotalCost))
			}
			tbl.Render(os.Stdout, cliutil.Width())
			return nil
		},
	}
}

func printSummary(r *planner.Report) {
	fmt.Printf("Refresh plan as of %s: %d of %d devices planned, total %s\n\n",
		r.Today.Format("2006-01-02"), r.Planned, r.DeviceCount, planner.FormatMoney(r.TotalCost))

	waves := cliutil.NewTable("WAVE", "START", "END", "DEVICES", "COST", "RISK")
	for _, w := range r.Waves {
		waves.Add(w.Name, w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"),
			w.DeviceCount, planner.FormatMoney(w.TotalCost), w.RiskLevel)
	}
	waves.Render(os.Stdout, cliutil.Width())

	fmt.Println()
	risk := cliutil.NewTable("RISK", "DEVICES")
	for _, c := range lifecycle.RiskCategories {
		risk.Add(c, r.Risk[c])
	}
	risk.Render(os.Stdout, cliutil.Width())

	if len(r.PriceMisses) > 0 {
		fmt.Printf("\n%d replacement models are priced by estimate, see 'forecast report price-misses'\n", len(r.PriceMisses))
	}
}
