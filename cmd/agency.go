package cmd

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"airplan/cli/internal/catalog"
	"airplan/cli/internal/router"
)

var (
	agencyInput catalog.Agency
	jsonOutput  bool
)

var agencyCmd = &cobra.Command{
	Use:     "agency",
	Aliases: []string{"agencies"},
	Short:   "Manage advertising agencies",
}

var agencyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List agencies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := sess.catalog()
		as, err := withSpinner("Loading agencies...", func() result[[]catalog.Agency] {
			v, err := svc.ListAgencies(cmd.Context())
			return result[[]catalog.Agency]{v, err}
		}).unpack()
		if err != nil {
			return readErr(err)
		}
		if jsonOutput {
			return printJSON(as)
		}
		if len(as) == 0 {
			pterm.Info.Println("no agencies")
			return nil
		}
		data := pterm.TableData{{"Code", "Name", "Contact", "Phone"}}
		for _, a := range as {
			data = append(data, []string{a.Code, a.Name, a.Contact, a.Phone})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

var agencyShowCmd = &cobra.Command{
	Use:   "show CODE",
	Short: "Show one agency",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, found, err := sess.catalog().GetAgency(cmd.Context(), args[0])
		if err != nil {
			return readErr(err)
		}
		if !found {
			pterm.Warning.Printfln("agency %s not found", args[0])
			return nil
		}
		if jsonOutput {
			return printJSON(a)
		}
		pterm.DefaultBox.WithTitle(a.Code).Println(
			"name:    " + a.Name + "\ncontact: " + a.Contact + "\nphone:   " + a.Phone + "\nid:      " + strconv.FormatInt(a.ID, 10))
		return nil
	},
}

var agencySaveCmd = &cobra.Command{
	Use:   "save CODE",
	Short: "Create or update an agency on every server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := agencyInput
		a.Code = args[0]
		svc := sess.catalog()
		res, err := withSpinner("Saving agency...", func() result[router.FanOutResult] {
			v, err := svc.SaveAgency(cmd.Context(), a)
			return result[router.FanOutResult]{v, err}
		}).unpack()
		return writeErr("agency "+a.Code, res, err)
	},
}

var agencyDeleteCmd = &cobra.Command{
	Use:   "delete CODE",
	Short: "Delete an agency from every server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := sess.catalog()
		res, err := withSpinner("Deleting agency...", func() result[router.FanOutResult] {
			v, err := svc.DeleteAgency(cmd.Context(), args[0])
			return result[router.FanOutResult]{v, err}
		}).unpack()
		return writeErr("delete of agency "+args[0], res, err)
	},
}

// result carries a value and error through withSpinner.
type result[T any] struct {
	v   T
	err error
}

func (r result[T]) unpack() (T, error) { return r.v, r.err }

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	f := agencySaveCmd.Flags()
	f.StringVar(&agencyInput.Name, "name", "", "Agency name")
	f.StringVar(&agencyInput.Contact, "contact", "", "Contact person")
	f.StringVar(&agencyInput.Phone, "phone", "", "Phone number")
	_ = agencySaveCmd.MarkFlagRequired("name")

	agencyCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print records as JSON")
	agencyCmd.AddCommand(agencyListCmd, agencyShowCmd, agencySaveCmd, agencyDeleteCmd)
	rootCmd.AddCommand(agencyCmd)
}
