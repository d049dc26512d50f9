package clock

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date form accepted by GameOn overrides.
const DateLayout = "2006-01-02"

// Clock computes the canonical timestamp of the next game from the
// recurrence rule it was constructed with. It performs no I/O.
type Clock struct {
	weekday int // ISO: 1 = Monday .. 7 = Sunday
	hour    int
	minute  int
	loc     *time.Location
}

// New builds a Clock for a weekly game on the given ISO weekday at
// hour:minute in loc.
func New(isoWeekday, hour, minute int, loc *time.Location) *Clock {
	return &Clock{weekday: isoWeekday, hour: hour, minute: minute, loc: loc}
}

// NextGame returns the timestamp of the next game on or after now,
// truncated to the minute. If today is game day the game is today,
// regardless of whether the start time has already passed.
func (c *Clock) NextGame(now time.Time) time.Time {
	now = now.In(c.loc)

	days := (c.weekday - isoWeekday(now) + 7) % 7
	game := now.AddDate(0, 0, days)

	return time.Date(game.Year(), game.Month(), game.Day(), c.hour, c.minute, 0, 0, c.loc)
}

// GameOn returns the game timestamp for an explicit calendar date
// (YYYY-MM-DD), applying the configured time of day and skipping the
// weekday computation.
func (c *Clock) GameOn(date string) (time.Time, error) {
	day, err := time.ParseInLocation(DateLayout, date, c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid game date %q: %w", date, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), c.hour, c.minute, 0, 0, c.loc), nil
}

func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		wd = 7
	}
	return wd
}
