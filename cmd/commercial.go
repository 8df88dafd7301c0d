package cmd

import (
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"airplan/cli/internal/catalog"
	"airplan/cli/internal/router"
)

var (
	commercialInput  catalog.Commercial
	commercialAgency string
)

var commercialCmd = &cobra.Command{
	Use:     "commercial",
	Aliases: []string{"commercials"},
	Short:   "Manage commercials",
}

var commercialListCmd = &cobra.Command{
	Use:   "list",
	Short: "List commercials, optionally for one agency",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := sess.catalog()
		cs, err := withSpinner("Loading commercials...", func() result[[]catalog.Commercial] {
			v, err := svc.ListCommercials(cmd.Context(), commercialAgency)
			return result[[]catalog.Commercial]{v, err}
		}).unpack()
		if err != nil {
			return readErr(err)
		}
		if jsonOutput {
			return printJSON(cs)
		}
		if len(cs) == 0 {
			pterm.Info.Println("no commercials")
			return nil
		}
		data := pterm.TableData{{"Agency", "Title", "Duration", "Audio"}}
		for _, c := range cs {
			data = append(data, []string{c.AgencyCode, c.Title, strconv.Itoa(c.DurationSec) + "s", c.AudioFile})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

var commercialCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Count commercials, optionally for one agency",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := sess.catalog().CountCommercials(cmd.Context(), commercialAgency)
		if err != nil {
			return readErr(err)
		}
		pterm.Println(strconv.FormatInt(n, 10))
		return nil
	},
}

var commercialSaveCmd = &cobra.Command{
	Use:   "save TITLE",
	Short: "Create or update a commercial on every server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := commercialInput
		c.Title = args[0]
		c.AgencyCode = commercialAgency
		svc := sess.catalog()
		res, err := withSpinner("Saving commercial...", func() result[router.FanOutResult] {
			v, err := svc.SaveCommercial(cmd.Context(), c)
			return result[router.FanOutResult]{v, err}
		}).unpack()
		return writeErr("commercial "+strconv.Quote(c.Title), res, err)
	},
}

func init() {
	commercialCmd.PersistentFlags().StringVar(&commercialAgency, "agency", "", "Agency code")
	commercialCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print records as JSON")

	f := commercialSaveCmd.Flags()
	f.IntVar(&commercialInput.DurationSec, "duration", 30, "Length in seconds")
	f.StringVar(&commercialInput.AudioFile, "audio", "", "Audio file reference")
	_ = commercialSaveCmd.MarkFlagRequired("agency")

	commercialCmd.AddCommand(commercialListCmd, commercialCountCmd, commercialSaveCmd)
	rootCmd.AddCommand(commercialCmd)
}
