// Package nbadata holds the record types passed from the scrapers into
// the store. They are plain value types, the scrapers fill them in and
// the store consumes them without further interpretation.
package nbadata

// Season is the part of an NBA year a statistic belongs to.
type Season string

const (
	SeasonPostseason    Season = "postseason"
	SeasonRegularseason Season = "regularseason"
)

func (s Season) Valid() bool {
	return s == SeasonPostseason || s == SeasonRegularseason
}

type Team struct {
	Name string
	// additional attributes picked up while scraping, e.g. the
	// clubhouse uid on espn team links
	Attributes map[string]any
}

type PlayerYear struct {
	Name string
	Team string
	Year int
	// for salary pages this holds "salary" and "salary_currency"
	Attributes map[string]any
}

type PlayerYearSeason struct {
	PlayerYear
	Season Season
}
