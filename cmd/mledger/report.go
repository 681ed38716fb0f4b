package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/franz/music-ledger/internal/report"
	"github.com/franz/music-ledger/internal/store"
	"github.com/franz/music-ledger/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Rank groups of tracks by how much a property changed",
	Long: `Group the tracks of the history and rank the groups by the change of a
property between two points in time.

Properties:
  PlayCount  total plays of the group
  Rating     mean rating on a 0-5 scale (unrated tracks count as 2.5)
  PlayTime   minutes listened (plays x duration)

Time windows count back from now (30D, 2W, 6M, 1Y) or are dates
(YYYY-MM-DD). Use "mledger groups" to list the grouping keys.

Example:
  mledger report --group ArtistName --sort PlayCount --from 30D --limit 10`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringArrayP("group", "g", nil, "grouping key, repeat to combine keys")
	reportCmd.Flags().StringP("sort", "s", "PlayCount", "property to rank by (PlayCount, Rating, PlayTime)")
	reportCmd.Flags().String("from", "30D", "start of the window")
	reportCmd.Flags().String("to", "0D", "end of the window")
	reportCmd.Flags().IntP("limit", "n", 20, "show at most this many groups (0 for all)")
	reportCmd.Flags().BoolP("reverse", "r", false, "smallest change first")
	reportCmd.Flags().BoolP("count", "c", false, "append the number of tracks to each group")
	reportCmd.Flags().Int("samples", 0, "also print this many evenly spaced values per group")

	viper.BindPFlag("report.group", reportCmd.Flags().Lookup("group"))
	viper.BindPFlag("report.sort", reportCmd.Flags().Lookup("sort"))
	viper.BindPFlag("report.limit", reportCmd.Flags().Lookup("limit"))
}

func runReport(cmd *cobra.Command, args []string) error {
	prop, err := report.ParseProperty(viper.GetString("report.sort"))
	if err != nil {
		return err
	}

	now := time.Now()
	fromFlag, _ := cmd.Flags().GetString("from")
	toFlag, _ := cmd.Flags().GetString("to")

	from, err := report.ParseWindow(fromFlag, now)
	if err != nil {
		return err
	}
	to, err := report.ParseWindow(toFlag, now)
	if err != nil {
		return err
	}

	reverse, _ := cmd.Flags().GetBool("reverse")
	showCounts, _ := cmd.Flags().GetBool("count")
	samples, _ := cmd.Flags().GetInt("samples")

	reporter, err := loadReporter()
	if err != nil {
		return err
	}

	opts := report.Options{
		GroupBy:    GetConfigStringSlice("report.group"),
		SortBy:     prop,
		From:       from,
		To:         to,
		ShowCounts: showCounts,
		Reverse:    reverse,
		Limit:      viper.GetInt("report.limit"),
	}

	util.DebugLog("Report %s by %s from %s to %s", prop, strings.Join(opts.GroupBy, "+"),
		from.Format(time.DateTime), to.Format(time.DateTime))

	rows, err := reporter.Report(opts)
	if err != nil {
		return err
	}

	if err := report.WriteTable(os.Stdout, prop, rows); err != nil {
		return err
	}

	if samples > 0 {
		groups := make(map[string]*report.Group)
		for _, g := range reporter.Groups(opts.GroupBy) {
			groups[g.Name] = g
		}

		fmt.Println()
		for _, row := range rows {
			values := make([]string, 0, samples)
			for _, s := range groups[row.Name].Samples(prop, from, to, samples) {
				values = append(values, strconv.FormatFloat(s.Value, 'f', 2, 64))
			}
			fmt.Printf("%s: %s\n", row.Label, strings.Join(values, " "))
		}
	}

	return nil
}

// loadReporter reads the whole history in a dry-run session, which never
// blocks a running update
func loadReporter() (*report.Reporter, error) {
	db, err := openStore(store.DryRun, 0)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	return report.New(db)
}
