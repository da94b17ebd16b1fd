// Package timetable provides read-only access to the scheduled services,
// trips and calendars a realtime feed is matched against.
package timetable

import (
	"context"
	"errors"
	"time"

	"github.com/transito/transito/pkg/transit"
)

var ErrServiceNotFound = errors.New("no service matches the route code suffix")
var ErrAmbiguousService = errors.New("more than one service matches the route code suffix")

// TripFilter narrows a trip lookup to a single resolved service, or failing
// that to every route belonging to one data source.
type TripFilter struct {
	ServiceRef string
	DataSource string
}

// Repository is the set of timetable queries the journey matcher needs. All
// lookups are read-only and return results in a stable order.
type Repository interface {
	// ActiveServicesByRouteCode returns current services from the source
	// with a route whose code equals routeCode.
	ActiveServicesByRouteCode(ctx context.Context, source string, routeCode string) ([]transit.Service, error)

	// ActiveServicesByTripCode returns current services from the source
	// with a trip whose ticket machine code equals tripCode.
	ActiveServicesByTripCode(ctx context.Context, source string, tripCode string) ([]transit.Service, error)

	// ServiceByRouteCodeSuffix returns the single service from the source
	// whose route code ends with "_<suffix>". ErrServiceNotFound and
	// ErrAmbiguousService report zero or many matches.
	ServiceByRouteCodeSuffix(ctx context.Context, source string, suffix string) (*transit.Service, error)

	// ServiceByRef returns the service with the given primary identifier,
	// or nil when it does not exist.
	ServiceByRef(ctx context.Context, serviceRef string) (*transit.Service, error)

	// TripsByTicketMachineCode returns trips whose ticket machine code
	// equals code, narrowed by the filter.
	TripsByTicketMachineCode(ctx context.Context, code string, filter TripFilter) ([]transit.Trip, error)

	// TripsByStartAndDirection returns trips in the source departing at
	// exactly start with the given direction, narrowed to the filter's
	// service if one is set.
	TripsByStartAndDirection(ctx context.Context, start time.Duration, inbound bool, filter TripFilter) ([]transit.Trip, error)

	// ActiveCalendars filters calendarRefs down to calendars operating on
	// the given date.
	ActiveCalendars(ctx context.Context, date time.Time, calendarRefs []string) ([]string, error)
}
