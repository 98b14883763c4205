package nbastore

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"nbastats-backend/lib/nbadata"
	"nbastats-backend/lib/testutil"
	"nbastats-backend/services/nbastore/db"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setup(t *testing.T) (Service, *sql.DB, context.Context) {
	res, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/nbastore",
		DbSchema: db.Schema,
	})
	t.Cleanup(cleanup)
	t.Cleanup(func() { res.DB.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	t.Cleanup(cancel)

	return NewService(res.DB), res.DB, ctx
}

func countRows(t *testing.T, database *sql.DB, table string) int {
	var n int
	err := database.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n)
	require.NoError(t, err)
	return n
}

// total_changes is per-connection and the test db is capped at one
// connection, so it counts every row written since the db was opened
func totalChanges(t *testing.T, database *sql.DB) int64 {
	var n int64
	err := database.QueryRow("SELECT total_changes()").Scan(&n)
	require.NoError(t, err)
	return n
}

func TestMergeTeamIdempotent(t *testing.T) {
	service, database, ctx := setup(t)

	require.NoError(t, service.MergeTeam(ctx, "Milwaukee Bucks"))
	require.NoError(t, service.MergeTeam(ctx, "Phoenix Suns"))
	require.Equal(t, 2, countRows(t, database, "teams"))

	before := totalChanges(t, database)
	require.NoError(t, service.MergeTeam(ctx, "Milwaukee Bucks"))
	require.Equal(t, before, totalChanges(t, database))
	require.Equal(t, 2, countRows(t, database, "teams"))
}

func TestMergePlayoffTeamUniqueness(t *testing.T) {
	service, database, ctx := setup(t)

	require.NoError(t, service.MergeTeam(ctx, "Milwaukee Bucks"))

	require.NoError(t, service.MergePlayoffTeam(ctx, "Milwaukee Bucks", 2021))
	require.NoError(t, service.MergePlayoffTeam(ctx, "Milwaukee Bucks", 2021))
	require.Equal(t, 1, countRows(t, database, "playoff_team"))

	// another year for the same team is a separate fact
	require.NoError(t, service.MergePlayoffTeam(ctx, "Milwaukee Bucks", 2022))
	require.Equal(t, 2, countRows(t, database, "playoff_team"))
}

func TestMergeTeamPlayerOverwrite(t *testing.T) {
	service, database, ctx := setup(t)

	require.NoError(t, service.MergeTeam(ctx, "Milwaukee Bucks"))
	require.NoError(t, service.MergeTeam(ctx, "Phoenix Suns"))
	require.NoError(t, service.MergePlayer(ctx, "Jrue Holiday"))

	require.NoError(t, service.MergeTeamPlayer(ctx, "Milwaukee Bucks", "Jrue Holiday", 2021))

	// identical merge must not touch the row
	before := totalChanges(t, database)
	require.NoError(t, service.MergeTeamPlayer(ctx, "Milwaukee Bucks", "Jrue Holiday", 2021))
	require.Equal(t, before, totalChanges(t, database))

	// a differing team overwrites in place, no second row
	require.NoError(t, service.MergeTeamPlayer(ctx, "Phoenix Suns", "Jrue Holiday", 2021))
	require.Equal(t, 1, countRows(t, database, "team_player"))

	var team string
	err := database.QueryRow(
		"SELECT team_name FROM team_player WHERE player_name = ? AND year = ?",
		"Jrue Holiday", 2021,
	).Scan(&team)
	require.NoError(t, err)
	require.Equal(t, "Phoenix Suns", team)
}

func TestMergeTeamPlayerMissingReferences(t *testing.T) {
	service, _, ctx := setup(t)

	// neither the team nor the player have been merged yet, the
	// foreign keys must reject the row and the error must surface
	err := service.MergeTeamPlayer(ctx, "Milwaukee Bucks", "Jrue Holiday", 2021)
	require.Error(t, err)
}

func TestMergePlayerSalary(t *testing.T) {
	service, database, ctx := setup(t)

	require.NoError(t, service.MergePlayer(ctx, "Stephen Curry"))
	require.NoError(t, service.MergePlayerSalary(ctx, "Stephen Curry", 2021, 43006362, "$"))

	readRow := func() db.PlayerSalary {
		var row db.PlayerSalary
		err := database.QueryRow(
			"SELECT id, player_name, year, salary, salary_currency FROM player_salaries WHERE player_name = ? AND year = ?",
			"Stephen Curry", 2021,
		).Scan(&row.ID, &row.PlayerName, &row.Year, &row.Salary, &row.SalaryCurrency)
		require.NoError(t, err)
		return row
	}
	first := readRow()

	// identical values: no write at all
	before := totalChanges(t, database)
	require.NoError(t, service.MergePlayerSalary(ctx, "Stephen Curry", 2021, 43006362, "$"))
	require.Equal(t, before, totalChanges(t, database))
	require.Equal(t, first, readRow())

	// changed amount: same row id, new value
	require.NoError(t, service.MergePlayerSalary(ctx, "Stephen Curry", 2021, 45780966, "$"))
	second := readRow()
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, int64(45780966), second.Salary)
	require.Equal(t, 1, countRows(t, database, "player_salaries"))
}

func TestMergePlayerStats(t *testing.T) {
	service, database, ctx := setup(t)

	require.NoError(t, service.MergePlayer(ctx, "Giannis Antetokounmpo"))

	stats := map[string]any{
		"games_played":    42,
		"points_per_game": 24.5,
		"position":        "PF",
	}
	require.NoError(t, service.MergePlayerStats(
		ctx, "Giannis Antetokounmpo", 2021, nbadata.SeasonPostseason, stats,
	))
	require.Equal(t, 3, countRows(t, database, "player_stats"))

	// second identical call leaves the rows untouched
	before := totalChanges(t, database)
	require.NoError(t, service.MergePlayerStats(
		ctx, "Giannis Antetokounmpo", 2021, nbadata.SeasonPostseason, stats,
	))
	require.Equal(t, before, totalChanges(t, database))
	require.Equal(t, 3, countRows(t, database, "player_stats"))

	// a changed value overwrites its row only
	stats["points_per_game"] = 25.0
	require.NoError(t, service.MergePlayerStats(
		ctx, "Giannis Antetokounmpo", 2021, nbadata.SeasonPostseason, stats,
	))
	require.Equal(t, 3, countRows(t, database, "player_stats"))

	var value, kind string
	err := database.QueryRow(
		"SELECT stat_value, stat_type FROM player_stats WHERE player_name = ? AND stat_name = ?",
		"Giannis Antetokounmpo", "points_per_game",
	).Scan(&value, &kind)
	require.NoError(t, err)
	require.Equal(t, "25", value)
	require.Equal(t, "Float", kind)
}

func TestMergePlayerStatsUnsupportedType(t *testing.T) {
	service, database, ctx := setup(t)

	require.NoError(t, service.MergePlayer(ctx, "Giannis Antetokounmpo"))

	err := service.MergePlayerStats(
		ctx, "Giannis Antetokounmpo", 2021, nbadata.SeasonPostseason,
		map[string]any{"games_played": true},
	)
	require.ErrorIs(t, err, ErrUnsupportedStatType)
	require.Equal(t, 0, countRows(t, database, "player_stats"))
}

func TestMergePlayerStatsInvalidSeason(t *testing.T) {
	service, _, ctx := setup(t)

	require.NoError(t, service.MergePlayer(ctx, "Giannis Antetokounmpo"))
	err := service.MergePlayerStats(
		ctx, "Giannis Antetokounmpo", 2021, nbadata.Season("preseason"),
		map[string]any{"games_played": 42},
	)
	require.Error(t, err)
}

func TestFetchTopSalariesEmpty(t *testing.T) {
	service, _, ctx := setup(t)

	result, err := service.FetchTopSalaries(ctx, 2000, 0)
	require.NoError(t, err)
	require.Len(t, result, 0)
}

func TestFetchTopSalariesRanking(t *testing.T) {
	service, _, ctx := setup(t)

	for _, team := range []string{"Milwaukee Bucks", "Phoenix Suns"} {
		require.NoError(t, service.MergeTeam(ctx, team))
		require.NoError(t, service.MergePlayoffTeam(ctx, team, 2021))
	}

	players := []struct {
		name   string
		team   string
		salary int64
	}{
		{"Chris Paul", "Phoenix Suns", 30000000},
		{"Jrue Holiday", "Milwaukee Bucks", 25000000},
		{"Devin Booker", "Phoenix Suns", 29000000},
	}
	for _, p := range players {
		require.NoError(t, service.MergePlayer(ctx, p.name))
		require.NoError(t, service.MergeTeamPlayer(ctx, p.team, p.name, 2021))
		require.NoError(t, service.MergePlayerSalary(ctx, p.name, 2021, p.salary, "$"))
	}

	// a player outside the playoff teams must not show up
	require.NoError(t, service.MergeTeam(ctx, "Houston Rockets"))
	require.NoError(t, service.MergePlayer(ctx, "John Wall"))
	require.NoError(t, service.MergeTeamPlayer(ctx, "Houston Rockets", "John Wall", 2021))
	require.NoError(t, service.MergePlayerSalary(ctx, "John Wall", 2021, 41000000, "$"))

	result, err := service.FetchTopSalaries(ctx, 2021, 0)
	require.NoError(t, err)
	require.Len(t, result, 3)
	require.Equal(t, "Chris Paul", result[0].Name)
	require.Equal(t, "Devin Booker", result[1].Name)
	require.Equal(t, "Jrue Holiday", result[2].Name)
	require.Equal(t, int64(30000000), result[0].Attributes["salary"])
	require.Equal(t, "$", result[0].Attributes["salary_currency"])

	top, err := service.FetchTopSalaries(ctx, 2021, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	require.Equal(t, "Chris Paul", top[0].Name)

	// a different year matches nothing
	other, err := service.FetchTopSalaries(ctx, 2020, 0)
	require.NoError(t, err)
	require.Len(t, other, 0)
}

func TestFetchPlayerStatsEmpty(t *testing.T) {
	service, _, ctx := setup(t)

	table, err := service.FetchPlayerStats(ctx, 2000, nbadata.SeasonPostseason)
	require.NoError(t, err)
	require.Len(t, table.Columns, 0)
	require.Len(t, table.Rows, 0)
}

func TestFetchPlayerStatsRoundTrip(t *testing.T) {
	service, _, ctx := setup(t)

	require.NoError(t, service.MergePlayer(ctx, "Giannis Antetokounmpo"))
	require.NoError(t, service.MergePlayer(ctx, "Khris Middleton"))

	require.NoError(t, service.MergePlayerStats(
		ctx, "Giannis Antetokounmpo", 2021, nbadata.SeasonPostseason,
		map[string]any{
			"games_played":    42,
			"points_per_game": 24.5,
			"position":        "PF",
		},
	))
	require.NoError(t, service.MergePlayerStats(
		ctx, "Khris Middleton", 2021, nbadata.SeasonPostseason,
		map[string]any{
			"games_played":    41,
			"points_per_game": 23.6,
			"position":        "SF",
		},
	))
	// a different season must not leak into the postseason table
	require.NoError(t, service.MergePlayerStats(
		ctx, "Khris Middleton", 2021, nbadata.SeasonRegularseason,
		map[string]any{"games_played": 68},
	))

	table, err := service.FetchPlayerStats(ctx, 2021, nbadata.SeasonPostseason)
	require.NoError(t, err)

	want := StatTable{
		Columns: []string{"games_played", "points_per_game", "position"},
		Rows: []StatRow{
			{Player: "Giannis Antetokounmpo", Values: []any{int64(42), 24.5, "PF"}},
			{Player: "Khris Middleton", Values: []any{int64(41), 23.6, "SF"}},
		},
	}
	if diff := cmp.Diff(want, table); diff != "" {
		t.Fatalf("unexpected stat table (-want +got):\n%s", diff)
	}
}
