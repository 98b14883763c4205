package db

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type PlayoffTeam struct {
	ID       int64
	Year     int64
	TeamName string
}

type TeamPlayer struct {
	ID         int64
	PlayerName string
	TeamName   string
	Year       int64
}

type PlayerSalary struct {
	ID             int64
	PlayerName     string
	Year           int64
	Salary         int64
	SalaryCurrency string
}

type PlayerStat struct {
	ID         int64
	PlayerName string
	Year       int64
	Season     string
	StatName   string
	StatValue  string
	StatType   string
}

const getTeam = `SELECT name FROM teams WHERE name = ?`

func (q *Queries) GetTeam(ctx context.Context, name string) (string, error) {
	row := q.db.QueryRowContext(ctx, getTeam, name)
	var out string
	err := row.Scan(&out)
	return out, err
}

const createTeam = `INSERT INTO teams (name) VALUES (?)`

func (q *Queries) CreateTeam(ctx context.Context, name string) error {
	_, err := q.db.ExecContext(ctx, createTeam, name)
	return err
}

const getPlayer = `SELECT name FROM players WHERE name = ?`

func (q *Queries) GetPlayer(ctx context.Context, name string) (string, error) {
	row := q.db.QueryRowContext(ctx, getPlayer, name)
	var out string
	err := row.Scan(&out)
	return out, err
}

const createPlayer = `INSERT INTO players (name) VALUES (?)`

func (q *Queries) CreatePlayer(ctx context.Context, name string) error {
	_, err := q.db.ExecContext(ctx, createPlayer, name)
	return err
}

const getPlayoffTeam = `
SELECT id, year, team_name FROM playoff_team
WHERE year = ? AND team_name = ?`

type GetPlayoffTeamParams struct {
	Year     int64
	TeamName string
}

func (q *Queries) GetPlayoffTeam(ctx context.Context, arg GetPlayoffTeamParams) (PlayoffTeam, error) {
	row := q.db.QueryRowContext(ctx, getPlayoffTeam, arg.Year, arg.TeamName)
	var out PlayoffTeam
	err := row.Scan(&out.ID, &out.Year, &out.TeamName)
	return out, err
}

const createPlayoffTeam = `INSERT INTO playoff_team (year, team_name) VALUES (?, ?)`

type CreatePlayoffTeamParams struct {
	Year     int64
	TeamName string
}

func (q *Queries) CreatePlayoffTeam(ctx context.Context, arg CreatePlayoffTeamParams) error {
	_, err := q.db.ExecContext(ctx, createPlayoffTeam, arg.Year, arg.TeamName)
	return err
}

const getTeamPlayer = `
SELECT id, player_name, team_name, year FROM team_player
WHERE player_name = ? AND year = ?`

type GetTeamPlayerParams struct {
	PlayerName string
	Year       int64
}

func (q *Queries) GetTeamPlayer(ctx context.Context, arg GetTeamPlayerParams) (TeamPlayer, error) {
	row := q.db.QueryRowContext(ctx, getTeamPlayer, arg.PlayerName, arg.Year)
	var out TeamPlayer
	err := row.Scan(&out.ID, &out.PlayerName, &out.TeamName, &out.Year)
	return out, err
}

const createTeamPlayer = `INSERT INTO team_player (player_name, team_name, year) VALUES (?, ?, ?)`

type CreateTeamPlayerParams struct {
	PlayerName string
	TeamName   string
	Year       int64
}

func (q *Queries) CreateTeamPlayer(ctx context.Context, arg CreateTeamPlayerParams) error {
	_, err := q.db.ExecContext(ctx, createTeamPlayer, arg.PlayerName, arg.TeamName, arg.Year)
	return err
}

const updateTeamPlayer = `
UPDATE team_player SET team_name = ?
WHERE player_name = ? AND year = ?`

type UpdateTeamPlayerParams struct {
	TeamName   string
	PlayerName string
	Year       int64
}

func (q *Queries) UpdateTeamPlayer(ctx context.Context, arg UpdateTeamPlayerParams) error {
	_, err := q.db.ExecContext(ctx, updateTeamPlayer, arg.TeamName, arg.PlayerName, arg.Year)
	return err
}

const getPlayerSalary = `
SELECT id, player_name, year, salary, salary_currency FROM player_salaries
WHERE player_name = ? AND year = ?`

type GetPlayerSalaryParams struct {
	PlayerName string
	Year       int64
}

func (q *Queries) GetPlayerSalary(ctx context.Context, arg GetPlayerSalaryParams) (PlayerSalary, error) {
	row := q.db.QueryRowContext(ctx, getPlayerSalary, arg.PlayerName, arg.Year)
	var out PlayerSalary
	err := row.Scan(&out.ID, &out.PlayerName, &out.Year, &out.Salary, &out.SalaryCurrency)
	return out, err
}

const createPlayerSalary = `
INSERT INTO player_salaries (player_name, year, salary, salary_currency)
VALUES (?, ?, ?, ?)`

type CreatePlayerSalaryParams struct {
	PlayerName     string
	Year           int64
	Salary         int64
	SalaryCurrency string
}

func (q *Queries) CreatePlayerSalary(ctx context.Context, arg CreatePlayerSalaryParams) error {
	_, err := q.db.ExecContext(ctx, createPlayerSalary,
		arg.PlayerName, arg.Year, arg.Salary, arg.SalaryCurrency)
	return err
}

const updatePlayerSalary = `
UPDATE player_salaries SET salary = ?, salary_currency = ?
WHERE player_name = ? AND year = ?`

type UpdatePlayerSalaryParams struct {
	Salary         int64
	SalaryCurrency string
	PlayerName     string
	Year           int64
}

func (q *Queries) UpdatePlayerSalary(ctx context.Context, arg UpdatePlayerSalaryParams) error {
	_, err := q.db.ExecContext(ctx, updatePlayerSalary,
		arg.Salary, arg.SalaryCurrency, arg.PlayerName, arg.Year)
	return err
}

const getPlayerStat = `
SELECT id, player_name, year, season, stat_name, stat_value, stat_type FROM player_stats
WHERE player_name = ? AND year = ? AND season = ? AND stat_name = ?`

type GetPlayerStatParams struct {
	PlayerName string
	Year       int64
	Season     string
	StatName   string
}

func (q *Queries) GetPlayerStat(ctx context.Context, arg GetPlayerStatParams) (PlayerStat, error) {
	row := q.db.QueryRowContext(ctx, getPlayerStat,
		arg.PlayerName, arg.Year, arg.Season, arg.StatName)
	var out PlayerStat
	err := row.Scan(&out.ID, &out.PlayerName, &out.Year, &out.Season,
		&out.StatName, &out.StatValue, &out.StatType)
	return out, err
}

const createPlayerStat = `
INSERT INTO player_stats (player_name, year, season, stat_name, stat_value, stat_type)
VALUES (?, ?, ?, ?, ?, ?)`

type CreatePlayerStatParams struct {
	PlayerName string
	Year       int64
	Season     string
	StatName   string
	StatValue  string
	StatType   string
}

func (q *Queries) CreatePlayerStat(ctx context.Context, arg CreatePlayerStatParams) error {
	_, err := q.db.ExecContext(ctx, createPlayerStat,
		arg.PlayerName, arg.Year, arg.Season, arg.StatName, arg.StatValue, arg.StatType)
	return err
}

const updatePlayerStat = `
UPDATE player_stats SET stat_value = ?, stat_type = ?
WHERE player_name = ? AND year = ? AND season = ? AND stat_name = ?`

type UpdatePlayerStatParams struct {
	StatValue  string
	StatType   string
	PlayerName string
	Year       int64
	Season     string
	StatName   string
}

func (q *Queries) UpdatePlayerStat(ctx context.Context, arg UpdatePlayerStatParams) error {
	_, err := q.db.ExecContext(ctx, updatePlayerStat,
		arg.StatValue, arg.StatType, arg.PlayerName, arg.Year, arg.Season, arg.StatName)
	return err
}

// ties on the salary are broken by player name so the ordering stays
// deterministic across runs
const listPlayoffSalaries = `
SELECT pt.year, pt.team_name, tp.player_name, ps.salary, ps.salary_currency
FROM playoff_team pt
JOIN team_player tp ON tp.team_name = pt.team_name AND tp.year = pt.year
JOIN player_salaries ps ON ps.player_name = tp.player_name AND ps.year = tp.year
WHERE pt.year = ?
ORDER BY ps.salary DESC, tp.player_name ASC
LIMIT ?`

type ListPlayoffSalariesParams struct {
	Year int64
	// sqlite treats a negative limit as "no limit"
	Limit int64
}

type ListPlayoffSalariesRow struct {
	Year           int64
	TeamName       string
	PlayerName     string
	Salary         int64
	SalaryCurrency string
}

func (q *Queries) ListPlayoffSalaries(ctx context.Context, arg ListPlayoffSalariesParams) ([]ListPlayoffSalariesRow, error) {
	rows, err := q.db.QueryContext(ctx, listPlayoffSalaries, arg.Year, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ListPlayoffSalariesRow
	for rows.Next() {
		var r ListPlayoffSalariesRow
		err := rows.Scan(&r.Year, &r.TeamName, &r.PlayerName, &r.Salary, &r.SalaryCurrency)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const listPlayerStats = `
SELECT id, player_name, year, season, stat_name, stat_value, stat_type FROM player_stats
WHERE year = ? AND season = ?
ORDER BY player_name ASC, stat_name ASC`

type ListPlayerStatsParams struct {
	Year   int64
	Season string
}

func (q *Queries) ListPlayerStats(ctx context.Context, arg ListPlayerStatsParams) ([]PlayerStat, error) {
	rows, err := q.db.QueryContext(ctx, listPlayerStats, arg.Year, arg.Season)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PlayerStat
	for rows.Next() {
		var r PlayerStat
		err := rows.Scan(&r.ID, &r.PlayerName, &r.Year, &r.Season,
			&r.StatName, &r.StatValue, &r.StatType)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
