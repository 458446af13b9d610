// Package season classifies instants into the seasonal day/night tariff bands.
package season

import (
	"fmt"
	"time"
	// the fallback zone must load on hosts without a zoneinfo database
	_ "time/tzdata"

	"github.com/raterudder/electrohold/pkg/types"
)

// DefaultTimezone is used when no valid timezone is configured.
const DefaultTimezone = "Europe/Sofia"

var defaultLocation = func() *time.Location {
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		panic(fmt.Errorf("failed to load default location: %w", err))
	}
	return loc
}()

// LoadLocation resolves an IANA zone name. Empty or unknown names resolve to
// DefaultTimezone and the returned error describes why.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return defaultLocation, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return defaultLocation, fmt.Errorf("invalid timezone %q, using %s: %w", name, DefaultTimezone, err)
	}
	return loc, nil
}

// Classify returns the season and band that apply at t in loc.
//
// Summer runs April through October and its night is 23:00-07:00; winter's night
// is 22:00-06:00. The night start hour itself is night.
func Classify(t time.Time, loc *time.Location) (types.Season, types.Band) {
	if loc == nil {
		loc = defaultLocation
	}
	local := t.In(loc)

	season := types.SeasonWinter
	nightStart, nightEnd := 22, 6
	if m := local.Month(); m >= time.April && m <= time.October {
		season = types.SeasonSummer
		nightStart, nightEnd = 23, 7
	}

	h := local.Hour()
	if h >= nightStart || h < nightEnd {
		return season, types.BandNight
	}
	return season, types.BandDay
}

// Label returns the human readable tariff type, e.g. "Night (Summer)".
func Label(s types.Season, b types.Band) string {
	band := "Day"
	if b == types.BandNight {
		band = "Night"
	}
	season := "Winter"
	if s == types.SeasonSummer {
		season = "Summer"
	}
	return band + " (" + season + ")"
}

// Clock classifies the current time in a fixed location.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// NewClock returns a Clock for loc using the wall clock.
func NewClock(loc *time.Location) *Clock {
	if loc == nil {
		loc = defaultLocation
	}
	return &Clock{loc: loc, now: time.Now}
}

// Location returns the clock's location.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// Now returns the current time in the clock's location.
func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// SetNow overrides the time source. This is primarily used for testing.
func (c *Clock) SetNow(now func() time.Time) {
	c.now = now
}

// Classify returns the season and band at t.
func (c *Clock) Classify(t time.Time) (types.Season, types.Band) {
	return Classify(t, c.loc)
}
