package eol

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/martinsuchenak/lifecycled/internal/cliutil"
	"github.com/paularlott/cli"
)

// Commands returns the EOL table commands
func Commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:        "resolve",
			Usage:       "Resolve a model against the EOL table",
			Description: "Show which EOL record a model matches and its lifecycle status",
			Arguments: []cli.Argument{
				&cli.StringArg{Name: "model", Required: true},
			},
			Run: func(ctx context.Context, cmd *cli.Command) error {
				env, err := cliutil.Open(cmd)
				if err != nil {
					return err
				}
				defer env.Close()

				res, err := env.Service.Resolve(cmd.GetStringArg("model"))
				if err != nil {
					return err
				}
				if cmd.GetBool("json") {
					return cliutil.JSON(os.Stdout, res)
				}
				if !res.Found {
					fmt.Printf("%s: no EOL record (%s, %s)\n", res.Query, res.Family, res.Status)
					return nil
				}
				eos := "unknown"
				if res.EndOfSupport != nil {
					eos = res.EndOfSupport.Format("2006-01-02")
				}
				days := ""
				if res.DaysToEOL != nil {
					days = fmt.Sprintf(", %d days", *res.DaysToEOL)
				}
				fmt.Printf("%s: matched %q by %s rule, end of support %s%s, %s\n",
					res.Query, res.Key, res.Rule, eos, days, res.Status)
				return nil
			},
		},
		{
			Name:        "load",
			Usage:       "Replace the EOL table",
			Description: "Load an EOL document ({\"last_updated\", \"records\"} or a bare key -> record object) and replace the stored table",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "EOL document (- for stdin)", Required: true},
				&cli.StringFlag{Name: "source", Usage: "Where the table came from", DefaultValue: "cli"},
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

				n, err := env.Service.LoadEOL(in, cmd.GetString("source"))
				if err != nil {
					return err
				}
				fmt.Printf("Loaded %d EOL records\n", n)
				return nil
			},
		},
		{
			Name:        "show",
			Usage:       "Show the active EOL table",
			Description: "Print the stored EOL table, or the built-in table when none has been loaded",
			Run: func(ctx context.Context, cmd *cli.Command) error {
				env, err := cliutil.Open(cmd)
				if err != nil {
					return err
				}
				defer env.Close()

				doc, err := env.Service.EOLDocument()
				if err != nil {
					return err
				}
				if cmd.GetBool("json") {
					return cliutil.JSON(os.Stdout, doc)
				}
				info, err := env.Service.Store().EOLInfo()
				if err != nil {
					return err
				}
				source := info.Source
				if info.Records == 0 {
					source = "built-in"
				}
				fmt.Printf("%d records, last updated %s, source %s\n", len(doc.Records), doc.LastUpdated, source)

				tbl := cliutil.NewTable("KEY", "END OF SALE", "END OF SUPPORT")
				for _, key := range slices.Sorted(maps.Keys(doc.Records)) {
					r := doc.Records[key]
					tbl.Add(key, r.EndOfSale, r.EndOfSupport)
				}
				tbl.Render(os.Stdout, cliutil.Width())
				return nil
			},
		},
	}
}
