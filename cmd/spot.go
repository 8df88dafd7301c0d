package cmd

import (
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"airplan/cli/internal/catalog"
	"airplan/cli/internal/router"
)

var spotFlags struct {
	station string
	date    string
	hour    int
	spot    catalog.Spot
}

var spotCmd = &cobra.Command{
	Use:     "spot",
	Aliases: []string{"spots"},
	Short:   "Manage the on-air spot log",
}

var spotListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show a station's log for one day",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := sess.catalog()
		ss, err := withSpinner("Loading log...", func() result[[]catalog.Spot] {
			v, err := svc.ListSpots(cmd.Context(), spotFlags.station, spotFlags.date)
			return result[[]catalog.Spot]{v, err}
		}).unpack()
		if err != nil {
			return readErr(err)
		}
		if jsonOutput {
			return printJSON(ss)
		}
		if len(ss) == 0 {
			pterm.Info.Printfln("nothing scheduled on %s for %s", spotFlags.station, spotFlags.date)
			return nil
		}
		data := pterm.TableData{{"Hour", "Pos", "Commercial", "Agency"}}
		for _, s := range ss {
			data = append(data, []string{strconv.Itoa(s.Hour), strconv.Itoa(s.Position), s.CommercialTitle, s.AgencyCode})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

var spotScheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Book a commercial into a slot on every server",
	Example: `  airplan spot schedule --station KXYZ --date 2026-11-02 --hour 7 --position 2 \
    --commercial "Winter Sale" --agency ACME`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sp := spotFlags.spot
		sp.Station, sp.AirDate, sp.Hour = spotFlags.station, spotFlags.date, spotFlags.hour
		svc := sess.catalog()
		res, err := withSpinner("Scheduling spot...", func() result[router.FanOutResult] {
			v, err := svc.ScheduleSpot(cmd.Context(), sp)
			return result[router.FanOutResult]{v, err}
		}).unpack()
		return writeErr("spot", res, err)
	},
}

var spotClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every spot booked in one hour",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := sess.catalog()
		res, err := withSpinner("Clearing hour...", func() result[router.FanOutResult] {
			v, err := svc.ClearHour(cmd.Context(), spotFlags.station, spotFlags.date, spotFlags.hour)
			return result[router.FanOutResult]{v, err}
		}).unpack()
		return writeErr("clear of hour "+strconv.Itoa(spotFlags.hour), res, err)
	},
}

func init() {
	pf := spotCmd.PersistentFlags()
	pf.StringVar(&spotFlags.station, "station", "", "Station call sign")
	pf.StringVar(&spotFlags.date, "date", time.Now().Format(time.DateOnly), "Air date, YYYY-MM-DD")
	pf.BoolVar(&jsonOutput, "json", false, "Print records as JSON")
	_ = spotCmd.MarkPersistentFlagRequired("station")

	for _, c := range []*cobra.Command{spotScheduleCmd, spotClearCmd} {
		c.Flags().IntVar(&spotFlags.hour, "hour", 0, "Hour of the day, 0-23")
		_ = c.MarkFlagRequired("hour")
	}
	f := spotScheduleCmd.Flags()
	f.IntVar(&spotFlags.spot.Position, "position", 1, "Position within the hour")
	f.StringVar(&spotFlags.spot.CommercialTitle, "commercial", "", "Commercial title")
	f.StringVar(&spotFlags.spot.AgencyCode, "agency", "", "Agency code")

	spotCmd.AddCommand(spotListCmd, spotScheduleCmd, spotClearCmd)
	rootCmd.AddCommand(spotCmd)
}
