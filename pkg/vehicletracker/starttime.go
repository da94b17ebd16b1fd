package vehicletracker

import (
	"time"
)

const startDateFormat = "20060102"

// startInstant combines a YYYYMMDD start date and a service day offset into
// a wall clock instant in the given zone.
//
// The offset is added to midday and twelve hours subtracted again, with the
// arithmetic done on a naive (UTC) date before the zone is attached. Summer
// time transitions fall inside the first hours of the service day, so adding
// the offset directly to midnight in the target zone would shift every start
// after a transition by the missing or repeated hour.
func startInstant(startDate string, offset time.Duration, zone *time.Location) (time.Time, error) {
	date, err := time.Parse(startDateFormat, startDate)
	if err != nil {
		return time.Time{}, err
	}

	naive := date.Add(12 * time.Hour).Add(offset).Add(-12 * time.Hour)

	return time.Date(
		naive.Year(), naive.Month(), naive.Day(),
		naive.Hour(), naive.Minute(), naive.Second(), 0,
		zone,
	), nil
}
