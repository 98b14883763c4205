package espn

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"nbastats-backend/lib/nbadata"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func doc(t *testing.T, html string) *goquery.Document {
	d, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return d
}

func TestParsePlayoffTeams(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 16; i++ {
		fmt.Fprintf(&b, `<a data-clubhouse-uid="s:40~l:46~t:%d">Team %d</a>`, i, i)
	}
	b.WriteString("</body></html>")

	teams, err := parsePlayoffTeams(doc(t, b.String()))
	require.NoError(t, err)
	require.Len(t, teams, 16)
	require.Equal(t, "Team 0", teams[0].Name)
	require.Equal(t, "s:40~l:46~t:0", teams[0].Attributes["data-clubhouse-uid"])
}

func TestParsePlayoffTeamsWrongCount(t *testing.T) {
	_, err := parsePlayoffTeams(doc(t, `<a data-clubhouse-uid="x">Only Team</a>`))
	require.ErrorIs(t, err, ErrUnexpectedPage)
}

const salaryPage = `
<table class="tablehead">
<tr class="colhead"><td>RK</td><td>NAME</td><td>TEAM</td><td>SALARY</td></tr>
<tr class="oddrow"><td>1</td><td>Stephen Curry, PG</td><td>Golden State Warriors</td><td>$43,006,362</td></tr>
<tr class="evenrow"><td>2</td><td>James Harden, SG</td><td>Brooklyn Nets</td><td>$41,254,920</td></tr>
</table>`

func TestParseSalaryPage(t *testing.T) {
	players, err := parseSalaryPage(doc(t, salaryPage), 2021)
	require.NoError(t, err)
	require.Len(t, players, 2)

	require.Equal(t, "Stephen Curry", players[0].Name)
	require.Equal(t, "Golden State Warriors", players[0].Team)
	require.Equal(t, 2021, players[0].Year)
	require.Equal(t, int64(43006362), players[0].Attributes["salary"])
	require.Equal(t, "$", players[0].Attributes["salary_currency"])
	require.Equal(t, "PG", players[0].Attributes["position"])

	require.Equal(t, "James Harden", players[1].Name)
}

func TestParseSalaryPageEmpty(t *testing.T) {
	// valid page whose table only contains the header row
	players, err := parseSalaryPage(doc(t, `
		<table class="tablehead">
		<tr class="colhead"><td>RK</td><td>NAME</td><td>TEAM</td><td>SALARY</td></tr>
		</table>`), 2021)
	require.NoError(t, err)
	require.Len(t, players, 0)
}

func TestParseSalaryPageBadCurrency(t *testing.T) {
	_, err := parseSalaryPage(doc(t, `
		<table class="tablehead">
		<tr class="oddrow"><td>1</td><td>A Player, C</td><td>Some Team</td><td>€1,000,000</td></tr>
		</table>`), 2021)
	require.ErrorIs(t, err, ErrUnexpectedPage)
}

func TestParseTeamStatPages(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, `
			<section class="TeamLinks flex items-center">
			<h2>Team %d</h2>
			<a href="/nba/team/_/name/t%d">Clubhouse</a>
			<a href="/nba/team/stats/_/name/t%d/team-%d">Statistics</a>
			</section>`, i, i, i, i)
	}
	b.WriteString("</body></html>")

	urls, err := parseTeamStatPages(doc(t, b.String()))
	require.NoError(t, err)
	require.Len(t, urls, 30)
	require.Equal(t, "https://www.espn.com/nba/team/stats/_/name/t4", urls["Team 4"])
}

func TestParseTeamStatPagesWrongCount(t *testing.T) {
	_, err := parseTeamStatPages(doc(t, `
		<section class="TeamLinks flex items-center">
		<h2>Lonely Team</h2>
		<a href="/nba/team/stats/_/name/lt/lonely-team">Statistics</a>
		</section>`))
	require.ErrorIs(t, err, ErrUnexpectedPage)
}

func statsPage(players int) string {
	var b strings.Builder
	b.WriteString(`<div class="ResponsiveTable"><div class="Table__Title">2021 Postseason Player Stats</div>`)
	b.WriteString(`<table class="Table Table--fixed">`)
	for i := 0; i < players; i++ {
		fmt.Fprintf(&b, `<tr><td><a class="AnchorLink" href="/p/%d" data-player-uid="s:40~a:%d">Player %d</a></td></tr>`, i, i, i)
	}
	b.WriteString(`</table>`)
	b.WriteString(`<table class="Table Table--align-right">`)
	for i := 0; i <= players; i++ {
		fmt.Fprintf(&b, `<tr class="Table__TR Table__TR--sm Table__even" data-idx="%d">`, i)
		for j := 0; j < len(statColumns); j++ {
			fmt.Fprintf(&b, `<td><span class="">%d.%d</span></td>`, i, j)
		}
		b.WriteString(`</tr>`)
	}
	b.WriteString(`</table></div>`)
	return b.String()
}

func TestParseTeamPlayerStats(t *testing.T) {
	stats, err := parseTeamPlayerStats(context.Background(), doc(t, statsPage(9)), "Milwaukee Bucks", 2021)
	require.NoError(t, err)
	require.Len(t, stats, 9)

	first := stats[0]
	require.Equal(t, "Player 0", first.Name)
	require.Equal(t, "Milwaukee Bucks", first.Team)
	require.Equal(t, 2021, first.Year)
	require.Equal(t, nbadata.SeasonPostseason, first.Season)
	require.Len(t, first.Attributes, len(statColumns))
	require.Equal(t, "0.0", first.Attributes["games_played"])
	require.Equal(t, "0.13", first.Attributes["player_efficency_rating"])
}

func TestParseTeamPlayerStatsTooFewPlayers(t *testing.T) {
	_, err := parseTeamPlayerStats(context.Background(), doc(t, statsPage(3)), "Milwaukee Bucks", 2021)
	require.ErrorIs(t, err, ErrUnexpectedPage)
}
