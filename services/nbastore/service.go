// Package nbastore reconciles scraped team, player, salary and
// statistic records into a sqlite database. Every merge operation is
// idempotent: it inserts when the unique key is absent, rewrites the
// row when the observed value changed and does not touch the database
// at all when the stored value already matches.
package nbastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"nbastats-backend/lib/nbadata"
	"nbastats-backend/services/nbastore/db"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/nbastore")

type Service struct {
	db  *sql.DB
	qry *db.Queries
}

func NewService(database *sql.DB) Service {
	return Service{
		db:  database,
		qry: db.New(database),
	}
}

// every merge runs as its own short transaction, there is no
// atomicity across merges: a failure in the middle of a batch leaves
// the merges before it committed.
func (s Service) withTx(ctx context.Context, fn func(txqry *db.Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = fn(s.qry.WithTx(tx))
	if err != nil {
		return err
	}
	return tx.Commit()
}

// MergeTeam inserts the team if it is not known yet.
func (s Service) MergeTeam(ctx context.Context, team string) error {
	ctx, span := tracer.Start(ctx, "MergeTeam")
	defer span.End()
	span.SetAttributes(attribute.String("team", team))

	err := s.withTx(ctx, func(txqry *db.Queries) error {
		_, err := txqry.GetTeam(ctx, team)
		if errors.Is(err, sql.ErrNoRows) {
			return txqry.CreateTeam(ctx, team)
		}
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("merge team %q: %w", team, err)
	}
	return nil
}

// MergePlayoffTeam records that the team reached the playoffs in the
// given year. Playoff participation is an immutable fact, there is no
// update path.
func (s Service) MergePlayoffTeam(ctx context.Context, team string, year int) error {
	ctx, span := tracer.Start(ctx, "MergePlayoffTeam")
	defer span.End()
	span.SetAttributes(
		attribute.String("team", team),
		attribute.Int("year", year),
	)

	err := s.withTx(ctx, func(txqry *db.Queries) error {
		_, err := txqry.GetPlayoffTeam(ctx, db.GetPlayoffTeamParams{
			Year:     int64(year),
			TeamName: team,
		})
		if errors.Is(err, sql.ErrNoRows) {
			return txqry.CreatePlayoffTeam(ctx, db.CreatePlayoffTeamParams{
				Year:     int64(year),
				TeamName: team,
			})
		}
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("merge playoff team %q year %d: %w", team, year, err)
	}
	return nil
}

// MergePlayer inserts the player if it is not known yet.
func (s Service) MergePlayer(ctx context.Context, player string) error {
	ctx, span := tracer.Start(ctx, "MergePlayer")
	defer span.End()
	span.SetAttributes(attribute.String("player", player))

	err := s.withTx(ctx, func(txqry *db.Queries) error {
		_, err := txqry.GetPlayer(ctx, player)
		if errors.Is(err, sql.ErrNoRows) {
			return txqry.CreatePlayer(ctx, player)
		}
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("merge player %q: %w", player, err)
	}
	return nil
}

// MergeTeamPlayer records which team the player belonged to in the
// given year. A later observation with a different team overwrites the
// stored one, the (player, year) row stays unique.
func (s Service) MergeTeamPlayer(ctx context.Context, team, player string, year int) error {
	ctx, span := tracer.Start(ctx, "MergeTeamPlayer")
	defer span.End()
	span.SetAttributes(
		attribute.String("team", team),
		attribute.String("player", player),
		attribute.Int("year", year),
	)

	err := s.withTx(ctx, func(txqry *db.Queries) error {
		row, err := txqry.GetTeamPlayer(ctx, db.GetTeamPlayerParams{
			PlayerName: player,
			Year:       int64(year),
		})
		if errors.Is(err, sql.ErrNoRows) {
			return txqry.CreateTeamPlayer(ctx, db.CreateTeamPlayerParams{
				PlayerName: player,
				TeamName:   team,
				Year:       int64(year),
			})
		}
		if err != nil {
			return err
		}
		if row.TeamName == team {
			return nil
		}
		return txqry.UpdateTeamPlayer(ctx, db.UpdateTeamPlayerParams{
			TeamName:   team,
			PlayerName: player,
			Year:       int64(year),
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("merge team player %q/%q year %d: %w", team, player, year, err)
	}
	return nil
}

// MergePlayerSalary stores the salary of a player for a year,
// overwriting the row when either the amount or the currency changed.
func (s Service) MergePlayerSalary(ctx context.Context, player string, year int, salary int64, currency string) error {
	ctx, span := tracer.Start(ctx, "MergePlayerSalary")
	defer span.End()
	span.SetAttributes(
		attribute.String("player", player),
		attribute.Int("year", year),
	)

	err := s.withTx(ctx, func(txqry *db.Queries) error {
		row, err := txqry.GetPlayerSalary(ctx, db.GetPlayerSalaryParams{
			PlayerName: player,
			Year:       int64(year),
		})
		if errors.Is(err, sql.ErrNoRows) {
			return txqry.CreatePlayerSalary(ctx, db.CreatePlayerSalaryParams{
				PlayerName:     player,
				Year:           int64(year),
				Salary:         salary,
				SalaryCurrency: currency,
			})
		}
		if err != nil {
			return err
		}
		if row.Salary == salary && row.SalaryCurrency == currency {
			return nil
		}
		return txqry.UpdatePlayerSalary(ctx, db.UpdatePlayerSalaryParams{
			Salary:         salary,
			SalaryCurrency: currency,
			PlayerName:     player,
			Year:           int64(year),
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("merge salary for %q year %d: %w", player, year, err)
	}
	return nil
}

// MergePlayerStats stores the given statistics of a player for a year
// and season. The mapping is processed entry by entry, each entry in
// its own transaction, so a failing entry does not roll back the ones
// merged before it. Values must be int, int64, float64 or string.
func (s Service) MergePlayerStats(ctx context.Context, player string, year int, season nbadata.Season, stats map[string]any) error {
	ctx, span := tracer.Start(ctx, "MergePlayerStats")
	defer span.End()
	span.SetAttributes(
		attribute.String("player", player),
		attribute.Int("year", year),
		attribute.String("season", string(season)),
	)

	if !season.Valid() {
		err := fmt.Errorf("invalid season: %q", season)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	for name, value := range stats {
		err := s.mergePlayerStat(ctx, player, year, season, name, value)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("merge stat %q for %q year %d: %w", name, player, year, err)
		}
	}
	return nil
}

func (s Service) mergePlayerStat(ctx context.Context, player string, year int, season nbadata.Season, name string, value any) error {
	text, kind, err := encodeStatValue(value)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(txqry *db.Queries) error {
		row, err := txqry.GetPlayerStat(ctx, db.GetPlayerStatParams{
			PlayerName: player,
			Year:       int64(year),
			Season:     string(season),
			StatName:   name,
		})
		if errors.Is(err, sql.ErrNoRows) {
			return txqry.CreatePlayerStat(ctx, db.CreatePlayerStatParams{
				PlayerName: player,
				Year:       int64(year),
				Season:     string(season),
				StatName:   name,
				StatValue:  text,
				StatType:   string(kind),
			})
		}
		if err != nil {
			return err
		}
		if row.StatValue == text && row.StatType == string(kind) {
			return nil
		}
		return txqry.UpdatePlayerStat(ctx, db.UpdatePlayerStatParams{
			StatValue:  text,
			StatType:   string(kind),
			PlayerName: player,
			Year:       int64(year),
			Season:     string(season),
			StatName:   name,
		})
	})
}

// FetchTopSalaries returns the salaries of players on playoff teams of
// the given year, highest salary first. Equal salaries are ordered by
// player name. A limit <= 0 returns all rows.
func (s Service) FetchTopSalaries(ctx context.Context, year int, limit int) ([]nbadata.PlayerYear, error) {
	ctx, span := tracer.Start(ctx, "FetchTopSalaries")
	defer span.End()
	span.SetAttributes(
		attribute.Int("year", year),
		attribute.Int("limit", limit),
	)

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.qry.ListPlayoffSalaries(ctx, db.ListPlayoffSalariesParams{
		Year:  int64(year),
		Limit: int64(limit),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("fetch top salaries year %d: %w", year, err)
	}

	result := make([]nbadata.PlayerYear, len(rows))
	for i, r := range rows {
		result[i] = nbadata.PlayerYear{
			Name: r.PlayerName,
			Team: r.TeamName,
			Year: int(r.Year),
			Attributes: map[string]any{
				"salary":          r.Salary,
				"salary_currency": r.SalaryCurrency,
			},
		}
	}
	return result, nil
}

// StatTable is the pivoted result of FetchPlayerStats: one row per
// player, one column per stat name. Columns holds the stat names in
// sorted order, the player column is implicit and always first when
// rendered.
type StatTable struct {
	Columns []string
	Rows    []StatRow
}

type StatRow struct {
	Player string
	// aligned with StatTable.Columns, nil where the player has no
	// value for that statistic
	Values []any
}

// FetchPlayerStats returns all statistics stored for (year, season),
// with every value converted back to the type it was merged with. On
// an empty selection the table has zero rows and zero stat columns.
func (s Service) FetchPlayerStats(ctx context.Context, year int, season nbadata.Season) (StatTable, error) {
	ctx, span := tracer.Start(ctx, "FetchPlayerStats")
	defer span.End()
	span.SetAttributes(
		attribute.Int("year", year),
		attribute.String("season", string(season)),
	)

	if !season.Valid() {
		err := fmt.Errorf("invalid season: %q", season)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return StatTable{}, err
	}

	rows, err := s.qry.ListPlayerStats(ctx, db.ListPlayerStatsParams{
		Year:   int64(year),
		Season: string(season),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return StatTable{}, fmt.Errorf("fetch player stats year %d season %s: %w", year, season, err)
	}

	table := StatTable{Columns: []string{}, Rows: []StatRow{}}
	colIndex := map[string]int{}
	for _, r := range rows {
		if _, ok := colIndex[r.StatName]; !ok {
			// rows are sorted by (player, stat), the first player
			// determines the base order, later players can only
			// append columns the first one was missing
			colIndex[r.StatName] = len(table.Columns)
			table.Columns = append(table.Columns, r.StatName)
		}
	}

	var current *StatRow
	for _, r := range rows {
		// rows with the same player name are adjacent because of the
		// sort order, so one pass groups them
		if current == nil || current.Player != r.PlayerName {
			table.Rows = append(table.Rows, StatRow{
				Player: r.PlayerName,
				Values: make([]any, len(table.Columns)),
			})
			current = &table.Rows[len(table.Rows)-1]
		}

		value, err := decodeStatValue(r.StatValue, StatKind(r.StatType))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return StatTable{}, fmt.Errorf("decode stat %q for %q: %w", r.StatName, r.PlayerName, err)
		}
		current.Values[colIndex[r.StatName]] = value
	}

	return table, nil
}
