package prices

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/martinsuchenak/lifecycled/internal/cliutil"
	"github.com/martinsuchenak/lifecycled/internal/planner"
	"github.com/paularlott/cli"
)

// Commands returns the price catalog commands
func Commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:        "load",
			Usage:       "Replace the price catalog",
			Description: "Load a family -> model -> price JSON document into the price cache",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Price document (- for stdin)", Required: true},
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

				n, err := env.Service.LoadPrices(ctx, in)
				if err != nil {
					return err
				}
				fmt.Printf("Loaded prices for %d models\n", n)
				return nil
			},
		},
		{
			Name:        "show",
			Usage:       "Show the active price catalog",
			Description: "Print the cached price catalog, or the built-in one when the cache is empty",
			Run: func(ctx context.Context, cmd *cli.Command) error {
				env, err := cliutil.Open(cmd)
				if err != nil {
					return err
				}
				defer env.Close()

				catalog, state, err := env.Service.Catalog(ctx)
				if err != nil {
					return err
				}
				if cmd.GetBool("json") {
					return cliutil.JSON(os.Stdout, catalog)
				}

				switch {
				case state.Fallback:
					fmt.Println("Using built-in prices")
				case state.Stale:
					fmt.Printf("Cached prices from %s are stale\n", state.FetchedAt.Format("2006-01-02 15:04"))
				default:
					fmt.Printf("Cached prices from %s\n", state.FetchedAt.Format("2006-01-02 15:04"))
				}

				tbl := cliutil.NewTable("FAMILY", "MODEL", "PRICE")
				for _, family := range slices.Sorted(maps.Keys(catalog)) {
					for _, m := range slices.Sorted(maps.Keys(catalog[family])) {
						tbl.Add(family, m, planner.FormatMoney(catalog[family][m]))
					}
				}
				tbl.Render(os.Stdout, cliutil.Width())
				return nil
			},
		},
	}
}
