package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"airplan/cli/internal/retry"
	"airplan/cli/internal/router"
)

var execFlags struct {
	sql     string
	params  []string
	retries int
}

var upsertFlags struct {
	updateSQL    string
	insertSQL    string
	params       []string
	updateParams []string
	insertParams []string
	retries      int
}

var execCmd = &cobra.Command{
	Use:   "exec",
	Short: "Run a write statement on every server",
	Long: `exec sends the statement to every profile in parallel. The write counts as
applied when at least one server accepts it; servers that failed are listed
so they can be repaired.`,
	Example: `  airplan exec --sql 'DELETE FROM spot WHERE air_date < :d' --param d=2024-01-01`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := parseParams(execFlags.params)
		if err != nil {
			return err
		}
		db := sess.database()
		res := withSpinner("Writing to all servers...", func() router.FanOutResult {
			return retry.Write(cmd.Context(), sess.retryPolicy(execFlags.retries), func(ctx context.Context) router.FanOutResult {
				return sess.router.WriteFanOut(ctx, db, execFlags.sql, params)
			})
		})
		return renderFanOut("statement", res)
	},
}

var upsertCmd = &cobra.Command{
	Use:   "upsert",
	Short: "Update a row on every server, inserting it where it is missing",
	Long: `upsert runs the UPDATE on every server. A server where the UPDATE matched
no row runs the INSERT instead, which repairs servers that missed an earlier
write. --param values are shared by both statements; --update-param and
--insert-param apply to one statement only.`,
	Example: `  airplan upsert \
    --update-sql 'UPDATE agency SET name = :name WHERE code = :code' \
    --insert-sql 'INSERT INTO agency (code, name) VALUES (:code, :name)' \
    --param code=ACME --param name='Acme Media'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		shared, err := parseParams(upsertFlags.params)
		if err != nil {
			return err
		}
		up, err := parseParams(upsertFlags.updateParams)
		if err != nil {
			return err
		}
		ins, err := parseParams(upsertFlags.insertParams)
		if err != nil {
			return err
		}
		upParams, insParams := mergeParams(shared, up), mergeParams(shared, ins)

		db := sess.database()
		res := withSpinner("Writing to all servers...", func() router.FanOutResult {
			return retry.Write(cmd.Context(), sess.retryPolicy(upsertFlags.retries), func(ctx context.Context) router.FanOutResult {
				return sess.router.WriteSelfHealing(ctx, db, upsertFlags.updateSQL, upParams, upsertFlags.insertSQL, insParams)
			})
		})
		return renderFanOut("upsert", res)
	},
}

func init() {
	f := execCmd.Flags()
	f.StringVar(&execFlags.sql, "sql", "", "Statement to run")
	f.StringArrayVarP(&execFlags.params, "param", "p", nil, `Named parameter name=value (repeatable, \N for NULL)`)
	f.IntVar(&execFlags.retries, "retries", -1, "Retries when every server fails (default from config)")
	_ = execCmd.MarkFlagRequired("sql")

	f = upsertCmd.Flags()
	f.StringVar(&upsertFlags.updateSQL, "update-sql", "", "UPDATE statement")
	f.StringVar(&upsertFlags.insertSQL, "insert-sql", "", "INSERT statement run where the UPDATE matched nothing")
	f.StringArrayVarP(&upsertFlags.params, "param", "p", nil, "Parameter for both statements")
	f.StringArrayVar(&upsertFlags.updateParams, "update-param", nil, "Parameter for the UPDATE only")
	f.StringArrayVar(&upsertFlags.insertParams, "insert-param", nil, "Parameter for the INSERT only")
	f.IntVar(&upsertFlags.retries, "retries", -1, "Retries when every server fails (default from config)")
	_ = upsertCmd.MarkFlagRequired("update-sql")
	_ = upsertCmd.MarkFlagRequired("insert-sql")

	rootCmd.AddCommand(execCmd, upsertCmd)
}
