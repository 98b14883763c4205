package commands

import (
	"fmt"
	"os"
	"strconv"

	"nbastats-backend/lib/nbadata"
	"nbastats-backend/services/nbastore"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var flagSeason *string

func init() {
	flagSeason = statsCmd.Flags().String(
		"season",
		string(nbadata.SeasonPostseason),
		fmt.Sprintf("Season to report, %q or %q.", nbadata.SeasonPostseason, nbadata.SeasonRegularseason),
	)
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats <year>",
	Short: "Report the stored statistics of all players of a year, without scraping.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		year, err := strconv.Atoi(args[0])
		if err != nil {
			fatal("invalid year", err)
		}
		season := nbadata.Season(*flagSeason)
		if !season.Valid() {
			fatal("invalid season", fmt.Errorf("unknown season %q", *flagSeason))
		}

		database := openStore()
		defer database.Close()
		service := nbastore.NewService(database)

		stats, err := service.FetchPlayerStats(cmd.Context(), year, season)
		if err != nil {
			fatal("failed to fetch player statistics", err)
		}
		renderStatTable(stats)
	},
}

func renderStatTable(stats nbastore.StatTable) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)

	header := table.Row{"PLAYER"}
	for _, column := range stats.Columns {
		header = append(header, column)
	}
	t.AppendHeader(header)

	for _, row := range stats.Rows {
		line := table.Row{row.Player}
		for _, value := range row.Values {
			line = append(line, value)
		}
		t.AppendRow(line)
	}

	t.Render()
}
