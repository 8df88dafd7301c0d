package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"airplan/cli/internal/router"
	"airplan/cli/internal/sqlexec"
)

var queryFlags struct {
	sql    string
	params []string
	json   bool
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run a read-only statement on the fastest server",
	Long: `query races the statement on up to three servers, taken in priority order,
and prints the first successful answer. Parameters use :name placeholders.`,
	Example: `  airplan query many --sql 'SELECT code, name FROM agency WHERE name LIKE :p' --param p=A%
  airplan query scalar --sql 'SELECT COUNT(*) FROM commercial'`,
}

func newQueryRun(mode string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		params, err := parseParams(queryFlags.params)
		if err != nil {
			return err
		}
		ctx, db := cmd.Context(), sess.database()

		var out sqlexec.Result
		switch mode {
		case "one":
			res := withSpinner("Querying...", func() router.Result[sqlexec.RowValues] {
				return router.ReadOne(ctx, sess.router, db, queryFlags.sql, params, sqlexec.ScanValues)
			})
			if !res.OK {
				return readErr(res.Err)
			}
			if res.Found {
				out = sqlexec.NewResult([]sqlexec.RowValues{res.Value})
			} else {
				out = sqlexec.NewResult(nil)
			}
			out.Profile = res.Profile
		case "many":
			res := withSpinner("Querying...", func() router.Result[[]sqlexec.RowValues] {
				return router.ReadMany(ctx, sess.router, db, queryFlags.sql, params, sqlexec.ScanValues)
			})
			if !res.OK {
				return readErr(res.Err)
			}
			out = sqlexec.NewResult(res.Value)
			out.Profile = res.Profile
		case "scalar":
			res := withSpinner("Querying...", func() router.Result[string] {
				return router.ReadScalar[string](ctx, sess.router, db, queryFlags.sql, params)
			})
			if !res.OK {
				return readErr(res.Err)
			}
			if queryFlags.json {
				var v any
				if res.Found {
					v = res.Value
				}
				return json.NewEncoder(os.Stdout).Encode(map[string]any{"value": v, "profile": res.Profile})
			}
			if !res.Found {
				fmt.Println("NULL")
			} else {
				fmt.Println(res.Value)
			}
			sess.logger.Debug("answered", "profile", res.Profile, "elapsed", res.Elapsed)
			return nil
		}

		if queryFlags.json {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}
		renderResult(out)
		pterm.Info.Printfln("%d row(s) from %s", len(out.Rows), out.Profile)
		return nil
	}
}

func init() {
	pf := queryCmd.PersistentFlags()
	pf.StringVar(&queryFlags.sql, "sql", "", "Statement to run")
	pf.StringArrayVarP(&queryFlags.params, "param", "p", nil, `Named parameter name=value (repeatable, \N for NULL)`)
	pf.BoolVar(&queryFlags.json, "json", false, "Print the result as JSON")
	_ = queryCmd.MarkPersistentFlagRequired("sql")

	for _, m := range []struct{ mode, short string }{
		{"one", "Print the first row"},
		{"many", "Print every row"},
		{"scalar", "Print the first column of the first row"},
	} {
		queryCmd.AddCommand(&cobra.Command{
			Use:   m.mode,
			Short: m.short,
			Args:  cobra.NoArgs,
			RunE:  newQueryRun(m.mode),
		})
	}
	rootCmd.AddCommand(queryCmd)
}
