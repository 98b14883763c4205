package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"nbastats-backend/lib/nbadata"
	"nbastats-backend/lib/restyutil"
	"nbastats-backend/lib/scrapers/espn"
	"nbastats-backend/services/nbastore"

	"github.com/antzucaro/matchr"
	"github.com/spf13/cobra"
)

var (
	flagSkipScraping *bool
	flagDumpHttp     *string
)

func init() {
	flagSkipScraping = fetchCmd.Flags().Bool("skip-scraping", false, "Skip scraping, only report from the existing database.")
	flagDumpHttp = fetchCmd.Flags().String("dump-http", "", "Dump http transcripts into the given directory.")
	rootCmd.AddCommand(fetchCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [year]",
	Short: "Fetch salary and statistics of players from teams participating in the playoffs.",
	Long: `Fetch salary and statistics of players from teams participating in the playoffs.

By default it fetches data for the season 2020/2021 (year = 2021).

All pages are scraped before anything is written, so a scraping error
leaves the database untouched.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		year := 2021
		if len(args) == 1 {
			var err error
			year, err = strconv.Atoi(args[0])
			if err != nil {
				fatal("invalid year", err)
			}
		}

		database := openStore()
		defer database.Close()
		service := nbastore.NewService(database)

		ctx := cmd.Context()
		if !*flagSkipScraping {
			if *flagDumpHttp != "" {
				espn.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(*flagDumpHttp))
			}
			scrapeAndMerge(ctx, service, year)
		}

		top, err := service.FetchTopSalaries(ctx, year, 10)
		if err != nil {
			fatal("failed to fetch top salaries", err)
		}
		printSalariesCsv(top)
	},
}

func scrapeAndMerge(ctx context.Context, service nbastore.Service, year int) {
	// fetch everything first, write afterwards: a failure in any of
	// the fetches aborts before the first merge
	slog.Info("scraping teams...")
	playoffTeams, err := espn.FetchPlayoffTeams(ctx, year)
	if err != nil {
		fatal("failed to scrape playoff teams", err)
	}
	playoffNames := map[string]bool{}
	for _, t := range playoffTeams {
		playoffNames[t.Name] = true
	}

	slog.Info("scraping salaries...")
	allSalaries, err := espn.FetchSalaries(ctx, year)
	if err != nil {
		fatal("failed to scrape salaries", err)
	}
	var salaries []nbadata.PlayerYear
	for _, p := range allSalaries {
		if playoffNames[p.Team] {
			salaries = append(salaries, p)
		}
	}

	statPages, err := espn.FetchTeamStatPages(ctx)
	if err != nil {
		fatal("failed to scrape team stat pages", err)
	}

	slog.Info("scraping player statistics...")
	var playerStats []nbadata.PlayerYearSeason
	for team, url := range statPages {
		if !playoffNames[team] {
			continue
		}
		stats, err := espn.FetchTeamPlayerStats(ctx, team, url, year)
		if err != nil {
			fatal("failed to scrape player statistics", err)
		}
		playerStats = append(playerStats, stats...)
	}

	slog.Info("insert teams into db...")
	for team := range playoffNames {
		slog.Debug("insert team into db", "team", team)
		if err := service.MergeTeam(ctx, team); err != nil {
			fatal("failed to merge team", err)
		}
		if err := service.MergePlayoffTeam(ctx, team, year); err != nil {
			fatal("failed to merge playoff team", err)
		}
	}

	slog.Info("insert player salaries into db...")
	salaryNames := map[string]bool{}
	for _, player := range salaries {
		salaryNames[player.Name] = true

		slog.Debug("insert player into db", "player", player.Name)
		if err := service.MergePlayer(ctx, player.Name); err != nil {
			fatal("failed to merge player", err)
		}
		if err := service.MergeTeamPlayer(ctx, player.Team, player.Name, year); err != nil {
			fatal("failed to merge team player", err)
		}

		salary, okSalary := player.Attributes["salary"].(int64)
		currency, okCurrency := player.Attributes["salary_currency"].(string)
		if !okSalary || !okCurrency {
			slog.Error("could not find salary in player attributes",
				"player", player.Name,
				"attributes", fmt.Sprint(player.Attributes),
			)
			continue
		}
		if err := service.MergePlayerSalary(ctx, player.Name, year, salary, currency); err != nil {
			fatal("failed to merge player salary", err)
		}
	}

	slog.Info("insert player statistics into db...")
	for _, player := range playerStats {
		slog.Debug("insert player statistics into db", "player", player.Name)

		// the salary and the stats come from two different pages
		// which may disagree on names, so the identity rows are
		// merged again here
		warnNameDrift(salaryNames, player.Name)
		if err := service.MergePlayer(ctx, player.Name); err != nil {
			fatal("failed to merge player", err)
		}
		if err := service.MergeTeamPlayer(ctx, player.Team, player.Name, year); err != nil {
			fatal("failed to merge team player", err)
		}

		stats, err := convertPlayerStats(player.Attributes)
		if err != nil {
			slog.Error("skipping malformed player statistics",
				"player", player.Name,
				"err", err,
				"attributes", fmt.Sprint(player.Attributes),
			)
			continue
		}
		if err := service.MergePlayerStats(ctx, player.Name, year, player.Season, stats); err != nil {
			fatal("failed to merge player statistics", err)
		}
	}
}

// convertPlayerStats picks the statistics worth storing out of the
// scraped attribute bag and converts them from page text to their
// proper types.
func convertPlayerStats(atts map[string]any) (map[string]any, error) {
	text := func(key string) (string, error) {
		v, ok := atts[key].(string)
		if !ok {
			return "", fmt.Errorf("missing statistic %q", key)
		}
		return v, nil
	}

	stats := map[string]any{}

	games, err := text("games_played")
	if err != nil {
		return nil, err
	}
	gamesPlayed, err := strconv.Atoi(games)
	if err != nil {
		return nil, fmt.Errorf("cannot convert games_played: %w", err)
	}
	stats["games_played"] = gamesPlayed

	for _, key := range []string{
		"points_per_game",
		"assists_per_game",
		"rebounds_per_game",
		"minutes_per_game",
	} {
		raw, err := text(key)
		if err != nil {
			return nil, err
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("cannot convert %s: %w", key, err)
		}
		stats[key] = value
	}

	return stats, nil
}

// warnNameDrift flags stats-page player names that are close to, but
// not exactly, a name seen on the salary pages. Those end up as two
// distinct player rows even though they are probably the same person.
func warnNameDrift(salaryNames map[string]bool, statsName string) {
	if salaryNames[statsName] {
		return
	}

	best := ""
	bestScore := 0.0
	for name := range salaryNames {
		score := matchr.JaroWinkler(statsName, name, true)
		if score > bestScore {
			best = name
			bestScore = score
		}
	}
	if bestScore >= 0.9 {
		slog.Warn("player name differs between salary and stats pages",
			"stats_name", statsName,
			"closest_salary_name", best,
		)
	}
}
