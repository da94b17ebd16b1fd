package transit

import "time"

// Calendar records the days of operation for a set of Trips.
type Calendar struct {
	PrimaryIdentifier string `bson:",omitempty"`

	DataSource string `bson:",omitempty"`

	Monday    bool
	Tuesday   bool
	Wednesday bool
	Thursday  bool
	Friday    bool
	Saturday  bool
	Sunday    bool

	StartDate time.Time
	EndDate   time.Time

	Exceptions []CalendarException `bson:",omitempty"`
}

type CalendarException struct {
	Date time.Time

	Type CalendarExceptionType
}

type CalendarExceptionType int

const (
	CalendarExceptionTypeServiceAdded   CalendarExceptionType = 1
	CalendarExceptionTypeServiceRemoved CalendarExceptionType = 2
)

// ActiveOn reports whether the calendar operates on the given date.
// Exceptions override the regular running days either way.
func (c *Calendar) ActiveOn(date time.Time) bool {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	for _, exception := range c.Exceptions {
		if exception.Date.Equal(day) {
			return exception.Type == CalendarExceptionTypeServiceAdded
		}
	}

	if day.Before(c.StartDate) || day.After(c.EndDate) {
		return false
	}

	switch day.Weekday() {
	case time.Monday:
		return c.Monday
	case time.Tuesday:
		return c.Tuesday
	case time.Wednesday:
		return c.Wednesday
	case time.Thursday:
		return c.Thursday
	case time.Friday:
		return c.Friday
	case time.Saturday:
		return c.Saturday
	case time.Sunday:
		return c.Sunday
	}

	return false
}
