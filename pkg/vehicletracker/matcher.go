package vehicletracker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/transito/transito/pkg/bods"
	"github.com/transito/transito/pkg/timetable"
	"github.com/transito/transito/pkg/transit"
	"github.com/transito/transito/pkg/util"
)

// ErrMissingStartDate means the report's trip descriptor carried no start
// date, so no journey can be built from it. The report is dropped.
var ErrMissingStartDate = errors.New("trip has no start date")

// VehicleSaver is the slice of the sink the matcher needs for the operator
// backfill side effect.
type VehicleSaver interface {
	SaveVehicleOperator(ctx context.Context, vehicle *transit.Vehicle) error
}

// Matcher resolves a raw feed report into a vehicle journey, matching the
// reported trip descriptor against the timetable with a cascade of
// increasingly fuzzy lookups. Every lookup miss degrades to an unset field
// rather than an error; a journey with neither service nor trip is still a
// valid result.
type Matcher struct {
	Timetable timetable.Repository
	Vehicles  VehicleSaver

	// DataSource identifies the feed within the timetable database
	DataSource string

	// Timezone is the feed's fixed reference zone for start instants
	Timezone *time.Location
}

func NewMatcher(repository timetable.Repository, vehicles VehicleSaver, dataSource string, timezone *time.Location) *Matcher {
	return &Matcher{
		Timetable:  repository,
		Vehicles:   vehicles,
		DataSource: dataSource,
		Timezone:   timezone,
	}
}

// GetJourney returns the journey the report belongs to. When the vehicle's
// latest journey already carries the reported trip code it is returned
// untouched, so matching work happens once per trip code per vehicle rather
// than once per report.
func (m *Matcher) GetJourney(ctx context.Context, report bods.Report, vehicle *transit.Vehicle) (*transit.Journey, error) {
	descriptor := report.Trip

	if descriptor.StartDate == "" {
		return nil, ErrMissingStartDate
	}

	startOffset, err := transit.ParseServiceDayOffset(descriptor.StartTime)
	if err != nil {
		return nil, err
	}

	startDateTime, err := startInstant(descriptor.StartDate, startOffset, m.Timezone)
	if err != nil {
		return nil, err
	}

	journey := &transit.Journey{
		Code: descriptor.TripID,
	}

	if latest := vehicle.LatestJourney; latest != nil && latest.Code == journey.Code {
		return latest, nil
	}

	journey.StartDateTime = startDateTime

	service, err := m.resolveService(ctx, descriptor, journey.Code)
	if err != nil {
		return nil, err
	}

	tripFilter := timetable.TripFilter{DataSource: m.DataSource}
	if service != nil {
		tripFilter = timetable.TripFilter{ServiceRef: service.PrimaryIdentifier}
	}

	trips, err := m.Timetable.TripsByTicketMachineCode(ctx, journey.Code, tripFilter)
	if err != nil {
		return nil, err
	}

	// Some feeds suffix their trip and route identifiers with a dataset
	// generation; when nothing matched directly, retry on the stripped
	// route code suffix and the scheduled start instead
	if len(trips) == 0 && service == nil && strings.Contains(journey.Code, "_") {
		service, trips, err = m.fuzzyMatch(ctx, descriptor, startOffset)
		if err != nil {
			return nil, err
		}
	}

	trip, err := m.narrowTrips(ctx, trips, descriptor.StartDate)
	if err != nil {
		return nil, err
	}

	if service != nil {
		journey.ServiceRef = service.PrimaryIdentifier
		journey.Service = service
	}

	if trip != nil {
		if journey.Service == nil {
			tripService, err := m.Timetable.ServiceByRef(ctx, trip.ServiceRef)
			if err != nil {
				return nil, err
			}
			if tripService != nil {
				journey.ServiceRef = tripService.PrimaryIdentifier
				journey.Service = tripService
			}
		}

		journey.TripRef = trip.PrimaryIdentifier
		journey.Trip = trip

		journey.DestinationDisplay = trip.DestinationDisplay

		if trip.OperatorRef != "" && vehicle.OperatorRef == "" {
			vehicle.OperatorRef = trip.OperatorRef

			if err := m.Vehicles.SaveVehicleOperator(ctx, vehicle); err != nil {
				return nil, err
			}
		}
	}

	if journey.Service != nil {
		journey.RouteName = journey.Service.ServiceName
	}

	journey.RawReport = reportSnapshot(report)

	return journey, nil
}

// resolveService finds the service the report claims, first by exact route
// code then by the trip's ticket machine code. First match wins; no match is
// not an error.
func (m *Matcher) resolveService(ctx context.Context, descriptor bods.TripDescriptor, tripCode string) (*transit.Service, error) {
	services, err := m.Timetable.ActiveServicesByRouteCode(ctx, m.DataSource, descriptor.RouteID)
	if err != nil {
		return nil, err
	}

	if len(services) == 0 {
		services, err = m.Timetable.ActiveServicesByTripCode(ctx, m.DataSource, tripCode)
		if err != nil {
			return nil, err
		}
	}

	if len(services) == 0 {
		return nil, nil
	}

	return &services[0], nil
}

// fuzzyMatch retries service resolution on the route code suffix and trip
// resolution on the scheduled start and direction. An ambiguous suffix
// lookup leaves the service unset rather than picking one.
func (m *Matcher) fuzzyMatch(ctx context.Context, descriptor bods.TripDescriptor, startOffset time.Duration) (*transit.Service, []transit.Trip, error) {
	routeSuffix := descriptor.RouteID
	if index := strings.Index(routeSuffix, "_"); index >= 0 {
		routeSuffix = routeSuffix[index+1:]
	}

	var service *transit.Service

	suffixService, err := m.Timetable.ServiceByRouteCodeSuffix(ctx, m.DataSource, routeSuffix)
	switch {
	case err == nil:
		service = suffixService
	case errors.Is(err, timetable.ErrServiceNotFound) || errors.Is(err, timetable.ErrAmbiguousService):
		// degrade to no service
	default:
		return nil, nil, err
	}

	tripFilter := timetable.TripFilter{DataSource: m.DataSource}
	if service != nil {
		tripFilter.ServiceRef = service.PrimaryIdentifier
	}

	trips, err := m.Timetable.TripsByStartAndDirection(ctx, startOffset, descriptor.DirectionID == 1, tripFilter)
	if err != nil {
		return nil, nil, err
	}

	return service, trips, nil
}

// narrowTrips reduces candidate trips to one, using calendars when several
// share the ticket machine code. Ties after the calendar filter fall to the
// repository's ordering.
func (m *Matcher) narrowTrips(ctx context.Context, trips []transit.Trip, startDate string) (*transit.Trip, error) {
	if len(trips) == 0 {
		return nil, nil
	}
	if len(trips) == 1 {
		return &trips[0], nil
	}

	date, err := time.Parse(startDateFormat, startDate)
	if err != nil {
		return nil, err
	}

	var calendarRefs []string
	for _, trip := range trips {
		calendarRefs = append(calendarRefs, trip.CalendarRef)
	}
	calendarRefs = util.RemoveDuplicateStrings(calendarRefs, nil)

	activeCalendars, err := m.Timetable.ActiveCalendars(ctx, date, calendarRefs)
	if err != nil {
		return nil, err
	}

	util.InPlaceFilter(&trips, func(trip transit.Trip) bool {
		return util.ContainsString(activeCalendars, trip.CalendarRef)
	})

	if len(trips) == 0 {
		return nil, nil
	}

	return &trips[0], nil
}

func reportSnapshot(report bods.Report) map[string]interface{} {
	encoded, err := json.Marshal(report)
	if err != nil {
		log.Error().Err(err).Msg("Failed to snapshot report")
		return nil
	}

	var snapshot map[string]interface{}
	if err := json.Unmarshal(encoded, &snapshot); err != nil {
		return nil
	}

	return snapshot
}
