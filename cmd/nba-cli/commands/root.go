package commands

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"nbastats-backend/lib/configuration"
	"nbastats-backend/lib/nbadata"
	nbastoredb "nbastats-backend/services/nbastore/db"

	"github.com/spf13/cobra"
)

var (
	flagDb    *string
	flagQuiet *bool
	flagDebug *bool
)

func init() {
	flagDb = rootCmd.PersistentFlags().String("db", "", "Path to the sqlite database, in-memory if unset.")
	flagQuiet = rootCmd.PersistentFlags().Bool("quiet", false, "Only log errors.")
	flagDebug = rootCmd.PersistentFlags().Bool("debug", false, "Log debug output.")
}

var rootCmd = &cobra.Command{
	Use:   "nba-cli",
	Short: "nba-cli scrapes NBA playoff salaries and statistics into a local database and reports on them.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if *flagDebug {
			level = slog.LevelDebug
		} else if *flagQuiet {
			level = slog.LevelError
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})))
	},
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func fatal(message string, err error) {
	slog.Error(message, "err", err.Error())
	os.Exit(1)
}

func openStore() *sql.DB {
	database, err := configuration.Database{File: *flagDb}.OpenDB(nbastoredb.Schema)
	if err != nil {
		fatal("failed to open database", err)
	}
	return database
}

func printSalariesCsv(salaries []nbadata.PlayerYear) {
	fmt.Println("#Player,Team,Salary")
	for _, player := range salaries {
		fmt.Printf(
			"%s,%s,%v%v\n",
			player.Name,
			player.Team,
			player.Attributes["salary_currency"],
			player.Attributes["salary"],
		)
	}
}
