package commands

import (
	"strconv"

	"nbastats-backend/services/nbastore"

	"github.com/spf13/cobra"
)

var flagTopLimit *int

func init() {
	flagTopLimit = topCmd.Flags().Int("limit", 10, "Number of players to report, 0 for all of them.")
	rootCmd.AddCommand(topCmd)
}

var topCmd = &cobra.Command{
	Use:   "top <year>",
	Short: "Report the best paid players of the playoff teams of a year, without scraping.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		year, err := strconv.Atoi(args[0])
		if err != nil {
			fatal("invalid year", err)
		}

		database := openStore()
		defer database.Close()
		service := nbastore.NewService(database)

		top, err := service.FetchTopSalaries(cmd.Context(), year, *flagTopLimit)
		if err != nil {
			fatal("failed to fetch top salaries", err)
		}
		printSalariesCsv(top)
	},
}
