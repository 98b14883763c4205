// Package espn scrapes playoff teams, player salaries and postseason
// player statistics from espn.com. The page layouts are brittle, every
// parser checks the shape it expects and fails with ErrUnexpectedPage
// when the site changed underneath it.
package espn

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"nbastats-backend/lib/htmlutil"
	"nbastats-backend/lib/nbadata"
	"nbastats-backend/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/espn")

// ErrUnexpectedPage means the structure or content of a page did not
// match expectations, most likely because espn changed their layout.
var ErrUnexpectedPage = errors.New("unexpected page content")

var client = newClient()

func newClient() *resty.Client {
	c := resty.New()
	c.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(c.GetClient().Transport)
	c.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	c.SetTimeout(time.Second * 30)
	return c
}

func SetRestyInstrumentOutput(out restyutil.InstrumentOutput) {
	restyutil.InstrumentClient(client, tracer, out)
}

func fetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	res, err := client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, err
	}
	if res.StatusCode() != 200 {
		return nil, fmt.Errorf("%w: GET %s returned %d", ErrUnexpectedPage, url, res.StatusCode())
	}
	return goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
}

// FetchPlayoffTeams returns the teams participating in the playoffs of
// the given year. It reads the postseason team stats page, the kind of
// statistic does not matter, only the list of teams on it.
func FetchPlayoffTeams(ctx context.Context, year int) ([]nbadata.Team, error) {
	ctx, span := tracer.Start(ctx, "FetchPlayoffTeams")
	defer span.End()
	span.SetAttributes(attribute.Int("year", year))

	url := fmt.Sprintf(
		"https://www.espn.com/nba/stats/team/_/season/%d/seasontype/3/table/offensive/sort/avgPoints/dir/desc",
		year,
	)
	doc, err := fetchDocument(ctx, url)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	teams, err := parsePlayoffTeams(doc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return teams, nil
}

func parsePlayoffTeams(doc *goquery.Document) ([]nbadata.Team, error) {
	// teams have links with a `data-clubhouse-uid` attribute
	links := doc.Find("a[data-clubhouse-uid]")
	if links.Length() != 16 {
		return nil, fmt.Errorf("%w: number of teams in playoffs must be 16, got %d",
			ErrUnexpectedPage, links.Length())
	}

	var teams []nbadata.Team
	links.Each(func(_ int, sel *goquery.Selection) {
		uid, _ := sel.Attr("data-clubhouse-uid")
		teams = append(teams, nbadata.Team{
			Name:       htmlutil.CleanText(sel.Text()),
			Attributes: map[string]any{"data-clubhouse-uid": uid},
		})
	})
	return teams, nil
}

// salaryPageUrl builds the url of one page of the salary list. Larger
// page numbers are valid urls, they just carry empty tables.
func salaryPageUrl(year, page int) string {
	// seasontype seems to make no difference
	return fmt.Sprintf("https://www.espn.com/nba/salaries/_/year/%d/page/%d/seasontype/4", year, page)
}

// FetchSalaries fetches the salaries of all players for a year. The
// salary list is paginated, pages are fetched until an empty one shows
// up.
func FetchSalaries(ctx context.Context, year int) ([]nbadata.PlayerYear, error) {
	ctx, span := tracer.Start(ctx, "FetchSalaries")
	defer span.End()
	span.SetAttributes(attribute.Int("year", year))

	var all []nbadata.PlayerYear
	for page := 1; ; page++ {
		slog.DebugContext(ctx, "retrieving salaries", "year", year, "page", page)

		doc, err := fetchDocument(ctx, salaryPageUrl(year, page))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		salaries, err := parseSalaryPage(doc, year)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		if len(salaries) == 0 {
			slog.DebugContext(ctx, "fetched all salaries", "year", year, "pages", page-1)
			return all, nil
		}
		if page > 50 {
			err := fmt.Errorf("%w: aborted fetching salaries, too many pages", ErrUnexpectedPage)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		all = append(all, salaries...)
	}
}

var salaryRowClass = regexp.MustCompile(`(oddrow)|(evenrow)`)

func parseSalaryPage(doc *goquery.Document, year int) ([]nbadata.PlayerYear, error) {
	table := doc.Find("table.tablehead")
	if table.Length() != 1 {
		return nil, fmt.Errorf("%w: found multiple/no salary table", ErrUnexpectedPage)
	}

	rows := table.Find("tr").FilterFunction(func(_ int, sel *goquery.Selection) bool {
		class, _ := sel.Attr("class")
		return salaryRowClass.MatchString(class)
	})

	var players []nbadata.PlayerYear
	var parseErr error
	rows.EachWithBreak(func(_ int, row *goquery.Selection) bool {
		cells := row.Find("td")
		if cells.Length() < 4 {
			parseErr = fmt.Errorf("%w: salary row with %d cells", ErrUnexpectedPage, cells.Length())
			return false
		}

		// second cell is "<name>, <position>"
		name := htmlutil.CleanText(cells.Eq(1).Text())
		position := ""
		if idx := strings.Index(name, ","); idx >= 0 {
			position = strings.TrimSpace(name[idx+1:])
			name = name[:idx]
		}

		team := htmlutil.CleanText(cells.Eq(2).Text())

		// fourth cell is the salary in the form `$10,000,000`
		salaryText := htmlutil.CleanText(cells.Eq(3).Text())
		if len(salaryText) == 0 || salaryText[0] != '$' {
			parseErr = fmt.Errorf("%w: currency symbol is not $", ErrUnexpectedPage)
			return false
		}
		salary, err := strconv.ParseInt(strings.ReplaceAll(salaryText[1:], ",", ""), 10, 64)
		if err != nil {
			parseErr = fmt.Errorf("%w: salary conversion to integer failed", ErrUnexpectedPage)
			return false
		}

		players = append(players, nbadata.PlayerYear{
			Name: name,
			Team: team,
			Year: year,
			Attributes: map[string]any{
				"salary":          salary,
				"salary_currency": "$",
				"position":        position,
			},
		})
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return players, nil
}

var teamStatsHref = regexp.MustCompile(`/nba/team/stats.*`)

// FetchTeamStatPages returns the base statistics url for every team,
// keyed by team name.
func FetchTeamStatPages(ctx context.Context) (map[string]string, error) {
	ctx, span := tracer.Start(ctx, "FetchTeamStatPages")
	defer span.End()

	doc, err := fetchDocument(ctx, "https://www.espn.com/nba/teams")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	urls, err := parseTeamStatPages(doc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return urls, nil
}

func parseTeamStatPages(doc *goquery.Document) (map[string]string, error) {
	sections := doc.Find("section.TeamLinks")
	if sections.Length() != 30 {
		return nil, fmt.Errorf("%w: expected 30 teams on the team index page, got %d",
			ErrUnexpectedPage, sections.Length())
	}

	urls := map[string]string{}
	var parseErr error
	sections.EachWithBreak(func(_ int, section *goquery.Selection) bool {
		headers := section.Find("h2")
		if headers.Length() != 1 {
			parseErr = fmt.Errorf("%w: unexpected number of h2 headers", ErrUnexpectedPage)
			return false
		}
		team := htmlutil.CleanText(headers.Text())

		links := section.Find("a[href]").FilterFunction(func(_ int, sel *goquery.Selection) bool {
			href, _ := sel.Attr("href")
			return teamStatsHref.MatchString(href)
		})
		if links.Length() != 1 {
			parseErr = fmt.Errorf("%w: found multiple/no stats links for %q", ErrUnexpectedPage, team)
			return false
		}
		if htmlutil.CleanText(links.Text()) != "Statistics" {
			parseErr = fmt.Errorf("%w: no Statistics text in stats link for %q", ErrUnexpectedPage, team)
			return false
		}

		href, _ := links.Attr("href")
		// the last subpath is the url-encoded team name, the season
		// selector is appended to the base instead
		href = href[:strings.LastIndex(href, "/")]
		urls[team] = "https://www.espn.com" + href
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return urls, nil
}

// statColumns are the columns of the espn per-team player stats table,
// in display order. The names double as stat names in the store.
var statColumns = []string{
	"games_played", "games_started", "minutes_per_game", "points_per_game",
	"offensive_rebounds_per_game", "defensive_rebounds_per_game",
	"rebounds_per_game", "assists_per_game", "steals_per_game",
	"blocks_per_game", "turnovers_per_game", "fouls_per_game",
	"assists_to_turnover_ratio", "player_efficency_rating",
}

// FetchTeamPlayerStats retrieves the postseason player statistics of a
// team for the given year from its base statistics url.
func FetchTeamPlayerStats(ctx context.Context, team, baseUrl string, year int) ([]nbadata.PlayerYearSeason, error) {
	ctx, span := tracer.Start(ctx, "FetchTeamPlayerStats")
	defer span.End()
	span.SetAttributes(
		attribute.String("team", team),
		attribute.Int("year", year),
	)

	url := fmt.Sprintf("%s/season/%d/seasontype/3", baseUrl, year)
	doc, err := fetchDocument(ctx, url)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	stats, err := parseTeamPlayerStats(ctx, doc, team, year)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return stats, nil
}

func parseTeamPlayerStats(ctx context.Context, doc *goquery.Document, team string, year int) ([]nbadata.PlayerYearSeason, error) {
	statTable := doc.Find("div.ResponsiveTable").FilterFunction(func(_ int, sel *goquery.Selection) bool {
		return strings.Contains(sel.Find("div.Table__Title").First().Text(), "Player Stats")
	})
	if statTable.Length() != 1 {
		return nil, fmt.Errorf("%w: number of Player Stats tables does not fit: %d",
			ErrUnexpectedPage, statTable.Length())
	}

	playerLinks := statTable.Find("a.AnchorLink[data-player-uid]")
	var players []string
	playerLinks.Each(func(_ int, sel *goquery.Selection) {
		players = append(players, htmlutil.CleanText(sel.Text()))
	})
	// should be 14 according to Wikipedia, but found lower numbers
	if len(players) < 8 {
		return nil, fmt.Errorf("%w: unreasonable number of players %d for team %s in %d",
			ErrUnexpectedPage, len(players), team, year)
	}

	dataTable := statTable.Find("table.Table--align-right")
	if dataTable.Length() != 1 {
		return nil, fmt.Errorf("%w: number of data tables does not fit: %d",
			ErrUnexpectedPage, dataTable.Length())
	}

	dataRows := dataTable.Find("tr.Table__even[data-idx]")
	// last row is just the team total
	if dataRows.Length() != len(players)+1 {
		return nil, fmt.Errorf("%w: number of rows for player and data table does not fit",
			ErrUnexpectedPage)
	}

	var result []nbadata.PlayerYearSeason
	dataRows.Slice(0, len(players)).Each(func(i int, row *goquery.Selection) {
		cols := row.Find("span").FilterFunction(func(_ int, sel *goquery.Selection) bool {
			class, _ := sel.Attr("class")
			return class == ""
		})

		if cols.Length() != len(statColumns) {
			slog.ErrorContext(ctx, "number of statistics does not fit",
				"player", players[i],
				"expected", len(statColumns),
				"got", cols.Length(),
			)
		}

		atts := map[string]any{}
		cols.Each(func(j int, col *goquery.Selection) {
			if j < len(statColumns) {
				atts[statColumns[j]] = htmlutil.CleanText(col.Text())
			}
		})

		result = append(result, nbadata.PlayerYearSeason{
			PlayerYear: nbadata.PlayerYear{
				Name:       players[i],
				Team:       team,
				Year:       year,
				Attributes: atts,
			},
			Season: nbadata.SeasonPostseason,
		})
	})
	return result, nil
}
