package vehicletracker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/transito/transito/pkg/bods"
	"github.com/transito/transito/pkg/timetable"
	"github.com/transito/transito/pkg/transit"
)

const testDataSource = "gb-bods-gtfsrt"

type fakeTimetable struct {
	servicesByRouteCode map[string][]transit.Service
	servicesByTripCode  map[string][]transit.Service
	servicesBySuffix    map[string][]transit.Service
	servicesByRef       map[string]transit.Service

	trips []transit.Trip

	calendars map[string]transit.Calendar

	queries       int
	suffixQueries int
	startQueries  int
}

func (f *fakeTimetable) ActiveServicesByRouteCode(ctx context.Context, source string, routeCode string) ([]transit.Service, error) {
	f.queries++
	return f.servicesByRouteCode[routeCode], nil
}

func (f *fakeTimetable) ActiveServicesByTripCode(ctx context.Context, source string, tripCode string) ([]transit.Service, error) {
	f.queries++
	return f.servicesByTripCode[tripCode], nil
}

func (f *fakeTimetable) ServiceByRouteCodeSuffix(ctx context.Context, source string, suffix string) (*transit.Service, error) {
	f.queries++
	f.suffixQueries++

	services := f.servicesBySuffix[suffix]
	if len(services) == 0 {
		return nil, timetable.ErrServiceNotFound
	}
	if len(services) > 1 {
		return nil, timetable.ErrAmbiguousService
	}
	return &services[0], nil
}

func (f *fakeTimetable) ServiceByRef(ctx context.Context, serviceRef string) (*transit.Service, error) {
	f.queries++

	if service, exists := f.servicesByRef[serviceRef]; exists {
		return &service, nil
	}
	return nil, nil
}

func (f *fakeTimetable) TripsByTicketMachineCode(ctx context.Context, code string, filter timetable.TripFilter) ([]transit.Trip, error) {
	f.queries++

	var matches []transit.Trip
	for _, trip := range f.trips {
		if trip.TicketMachineCode == code && tripMatchesFilter(trip, filter) {
			matches = append(matches, trip)
		}
	}
	return matches, nil
}

func (f *fakeTimetable) TripsByStartAndDirection(ctx context.Context, start time.Duration, inbound bool, filter timetable.TripFilter) ([]transit.Trip, error) {
	f.queries++
	f.startQueries++

	var matches []transit.Trip
	for _, trip := range f.trips {
		if trip.Start == start && trip.Inbound == inbound && tripMatchesFilter(trip, filter) {
			matches = append(matches, trip)
		}
	}
	return matches, nil
}

func (f *fakeTimetable) ActiveCalendars(ctx context.Context, date time.Time, calendarRefs []string) ([]string, error) {
	f.queries++

	var active []string
	for _, ref := range calendarRefs {
		if calendar, exists := f.calendars[ref]; exists && calendar.ActiveOn(date) {
			active = append(active, ref)
		}
	}
	return active, nil
}

func tripMatchesFilter(trip transit.Trip, filter timetable.TripFilter) bool {
	if filter.ServiceRef != "" && trip.ServiceRef != filter.ServiceRef {
		return false
	}
	if filter.DataSource != "" && trip.DataSource != filter.DataSource {
		return false
	}
	return true
}

type fakeVehicleSaver struct {
	saved []*transit.Vehicle
}

func (f *fakeVehicleSaver) SaveVehicleOperator(ctx context.Context, vehicle *transit.Vehicle) error {
	f.saved = append(f.saved, vehicle)
	return nil
}

func newTestMatcher(repository *fakeTimetable) (*Matcher, *fakeVehicleSaver) {
	saver := &fakeVehicleSaver{}
	return NewMatcher(repository, saver, testDataSource, time.UTC), saver
}

func testReport(routeID string, tripID string) bods.Report {
	return bods.Report{
		VehicleID: "BODS-1",
		Trip: bods.TripDescriptor{
			RouteID:   routeID,
			TripID:    tripID,
			StartDate: "20240301",
			StartTime: "08:00:00",
		},
		Timestamp: 1709280600,
	}
}

func TestGetJourneyMissingStartDate(t *testing.T) {
	matcher, _ := newTestMatcher(&fakeTimetable{})

	report := testReport("X1", "T100")
	report.Trip.StartDate = ""

	journey, err := matcher.GetJourney(context.Background(), report, &transit.Vehicle{Code: "BODS-1"})

	assert.ErrorIs(t, err, ErrMissingStartDate)
	assert.Nil(t, journey)
}

func TestGetJourneyReusesLatestJourney(t *testing.T) {
	repository := &fakeTimetable{}
	matcher, saver := newTestMatcher(repository)

	existing := &transit.Journey{
		PrimaryIdentifier:  "gb-bods-gtfsrt-vehiclejourney-BODS-1-T100-1709280000",
		Code:               "T100",
		DestinationDisplay: "City Centre",
	}
	vehicle := &transit.Vehicle{Code: "BODS-1", LatestJourney: existing}

	journey, err := matcher.GetJourney(context.Background(), testReport("X1", "T100"), vehicle)
	require.NoError(t, err)

	assert.Same(t, existing, journey, "the live journey must be reused, not rebuilt")
	assert.Equal(t, "City Centre", journey.DestinationDisplay)
	assert.Nil(t, journey.RawReport, "reused journey must not be mutated")
	assert.Zero(t, repository.queries, "reuse must not touch the timetable")
	assert.Empty(t, saver.saved)
}

func TestGetJourneyDirectMatch(t *testing.T) {
	service := transit.Service{
		PrimaryIdentifier: "gb-bods-gtfsrt-service-X1",
		ServiceName:       "X1",
		Current:           true,
	}
	repository := &fakeTimetable{
		servicesByRouteCode: map[string][]transit.Service{
			"X1": {service},
		},
		trips: []transit.Trip{
			{
				PrimaryIdentifier:  "gb-bods-gtfsrt-trip-1",
				TicketMachineCode:  "T100",
				ServiceRef:         service.PrimaryIdentifier,
				DestinationDisplay: "City Centre",
				OperatorRef:        "gb-noc-OPRA",
			},
		},
	}
	matcher, saver := newTestMatcher(repository)

	vehicle := &transit.Vehicle{Code: "BODS-1"}

	journey, err := matcher.GetJourney(context.Background(), testReport("X1", "T100"), vehicle)
	require.NoError(t, err)

	assert.Equal(t, "T100", journey.Code)
	assert.Equal(t, time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC), journey.StartDateTime)
	assert.Equal(t, "gb-bods-gtfsrt-service-X1", journey.ServiceRef)
	assert.Equal(t, "gb-bods-gtfsrt-trip-1", journey.TripRef)
	assert.Equal(t, "City Centre", journey.DestinationDisplay)
	assert.Equal(t, "X1", journey.RouteName)
	assert.NotNil(t, journey.RawReport)

	// operator backfill is persisted immediately as a side effect
	assert.Equal(t, "gb-noc-OPRA", vehicle.OperatorRef)
	require.Len(t, saver.saved, 1)
	assert.Same(t, vehicle, saver.saved[0])
}

func TestGetJourneyOperatorNotOverwritten(t *testing.T) {
	service := transit.Service{PrimaryIdentifier: "svc", ServiceName: "X1"}
	repository := &fakeTimetable{
		servicesByRouteCode: map[string][]transit.Service{"X1": {service}},
		trips: []transit.Trip{
			{PrimaryIdentifier: "trip-1", TicketMachineCode: "T100", ServiceRef: "svc", OperatorRef: "gb-noc-OPRB"},
		},
	}
	matcher, saver := newTestMatcher(repository)

	vehicle := &transit.Vehicle{Code: "BODS-1", OperatorRef: "gb-noc-OPRA"}

	_, err := matcher.GetJourney(context.Background(), testReport("X1", "T100"), vehicle)
	require.NoError(t, err)

	assert.Equal(t, "gb-noc-OPRA", vehicle.OperatorRef)
	assert.Empty(t, saver.saved)
}

func TestGetJourneyServiceBackfilledFromTrip(t *testing.T) {
	repository := &fakeTimetable{
		servicesByRef: map[string]transit.Service{
			"svc-42": {PrimaryIdentifier: "svc-42", ServiceName: "42"},
		},
		trips: []transit.Trip{
			{
				PrimaryIdentifier:  "trip-1",
				TicketMachineCode:  "T100",
				ServiceRef:         "svc-42",
				DataSource:         testDataSource,
				DestinationDisplay: "Bus Station",
			},
		},
	}
	matcher, _ := newTestMatcher(repository)

	journey, err := matcher.GetJourney(context.Background(), testReport("UNKNOWN", "T100"), &transit.Vehicle{Code: "BODS-1"})
	require.NoError(t, err)

	assert.Equal(t, "svc-42", journey.ServiceRef)
	assert.Equal(t, "trip-1", journey.TripRef)
	assert.Equal(t, "42", journey.RouteName)
}

func TestGetJourneyTakesFirstService(t *testing.T) {
	repository := &fakeTimetable{
		servicesByRouteCode: map[string][]transit.Service{
			"X1": {
				{PrimaryIdentifier: "svc-first", ServiceName: "X1"},
				{PrimaryIdentifier: "svc-second", ServiceName: "X1a"},
			},
		},
	}
	matcher, _ := newTestMatcher(repository)

	journey, err := matcher.GetJourney(context.Background(), testReport("X1", "T100"), &transit.Vehicle{Code: "BODS-1"})
	require.NoError(t, err)

	assert.Equal(t, "svc-first", journey.ServiceRef)
	assert.Equal(t, "X1", journey.RouteName)
}

func TestGetJourneyNoMatchStillProducesJourney(t *testing.T) {
	matcher, _ := newTestMatcher(&fakeTimetable{})

	journey, err := matcher.GetJourney(context.Background(), testReport("X1", "T100"), &transit.Vehicle{Code: "BODS-1"})
	require.NoError(t, err)

	assert.Equal(t, "T100", journey.Code)
	assert.Empty(t, journey.ServiceRef)
	assert.Empty(t, journey.TripRef)
	assert.NotNil(t, journey.RawReport)
}

func TestGetJourneyFuzzyNotInvokedWithoutSeparator(t *testing.T) {
	repository := &fakeTimetable{}
	matcher, _ := newTestMatcher(repository)

	journey, err := matcher.GetJourney(context.Background(), testReport("X1", "T100"), &transit.Vehicle{Code: "BODS-1"})
	require.NoError(t, err)

	assert.Empty(t, journey.TripRef)
	assert.Zero(t, repository.suffixQueries, "no separator in the trip code, fuzzy pass must not run")
	assert.Zero(t, repository.startQueries)
}

func TestGetJourneyFuzzySuffixMatch(t *testing.T) {
	service := transit.Service{PrimaryIdentifier: "svc-7", ServiceName: "7"}
	repository := &fakeTimetable{
		servicesBySuffix: map[string][]transit.Service{
			"2": {service},
		},
		trips: []transit.Trip{
			{
				PrimaryIdentifier:  "trip-fuzzy",
				TicketMachineCode:  "something-else",
				ServiceRef:         "svc-7",
				DataSource:         testDataSource,
				Start:              8 * time.Hour,
				Inbound:            true,
				DestinationDisplay: "Railway Station",
			},
		},
	}
	matcher, _ := newTestMatcher(repository)

	report := testReport("X1_2", "123_45")
	report.Trip.DirectionID = 1

	journey, err := matcher.GetJourney(context.Background(), report, &transit.Vehicle{Code: "BODS-1"})
	require.NoError(t, err)

	assert.Equal(t, "svc-7", journey.ServiceRef)
	assert.Equal(t, "trip-fuzzy", journey.TripRef)
	assert.Equal(t, "Railway Station", journey.DestinationDisplay)
	assert.Equal(t, "7", journey.RouteName)
	assert.Equal(t, 1, repository.suffixQueries)
}

func TestGetJourneyFuzzySuffixFromUnseparatedRoute(t *testing.T) {
	repository := &fakeTimetable{
		servicesBySuffix: map[string][]transit.Service{
			"X1": {{PrimaryIdentifier: "svc-x1", ServiceName: "X1"}},
		},
	}
	matcher, _ := newTestMatcher(repository)

	// route id has no separator, so the whole id is the suffix
	journey, err := matcher.GetJourney(context.Background(), testReport("X1", "123_45"), &transit.Vehicle{Code: "BODS-1"})
	require.NoError(t, err)

	assert.Equal(t, "svc-x1", journey.ServiceRef)
}

func TestGetJourneyFuzzyAmbiguousSuffixLeavesServiceUnset(t *testing.T) {
	repository := &fakeTimetable{
		servicesBySuffix: map[string][]transit.Service{
			"2": {
				{PrimaryIdentifier: "svc-a"},
				{PrimaryIdentifier: "svc-b"},
			},
		},
	}
	matcher, _ := newTestMatcher(repository)

	journey, err := matcher.GetJourney(context.Background(), testReport("X1_2", "123_45"), &transit.Vehicle{Code: "BODS-1"})
	require.NoError(t, err, "an ambiguous suffix match is a no-match, not a failure")

	assert.Empty(t, journey.ServiceRef)
	assert.Equal(t, 1, repository.startQueries, "trip resolution still runs without a service")
}

func TestGetJourneyCalendarDisambiguation(t *testing.T) {
	weekdays := transit.Calendar{
		PrimaryIdentifier: "cal-weekday",
		Monday:            true, Tuesday: true, Wednesday: true, Thursday: true, Friday: true,
		StartDate: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC),
	}
	weekends := transit.Calendar{
		PrimaryIdentifier: "cal-weekend",
		Saturday:          true, Sunday: true,
		StartDate: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC),
	}

	repository := &fakeTimetable{
		trips: []transit.Trip{
			{PrimaryIdentifier: "trip-weekend", TicketMachineCode: "T100", DataSource: testDataSource, CalendarRef: "cal-weekend"},
			{PrimaryIdentifier: "trip-weekday", TicketMachineCode: "T100", DataSource: testDataSource, CalendarRef: "cal-weekday"},
		},
		calendars: map[string]transit.Calendar{
			"cal-weekday": weekdays,
			"cal-weekend": weekends,
		},
	}
	matcher, _ := newTestMatcher(repository)

	// 2024-03-01 is a Friday, so only the weekday trip can win
	journey, err := matcher.GetJourney(context.Background(), testReport("X1", "T100"), &transit.Vehicle{Code: "BODS-1"})
	require.NoError(t, err)

	assert.Equal(t, "trip-weekday", journey.TripRef)
}

func TestGetJourneyCalendarFilterCanEliminateEveryTrip(t *testing.T) {
	sundays := transit.Calendar{
		PrimaryIdentifier: "cal-sunday",
		Sunday:            true,
		StartDate:         time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		EndDate:           time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC),
	}

	repository := &fakeTimetable{
		trips: []transit.Trip{
			{PrimaryIdentifier: "trip-a", TicketMachineCode: "T100", DataSource: testDataSource, CalendarRef: "cal-sunday"},
			{PrimaryIdentifier: "trip-b", TicketMachineCode: "T100", DataSource: testDataSource, CalendarRef: "cal-sunday"},
		},
		calendars: map[string]transit.Calendar{
			"cal-sunday": sundays,
		},
	}
	matcher, _ := newTestMatcher(repository)

	journey, err := matcher.GetJourney(context.Background(), testReport("X1", "T100"), &transit.Vehicle{Code: "BODS-1"})
	require.NoError(t, err)

	assert.Empty(t, journey.TripRef, "no trip may be matched off an inactive calendar")
}

func TestGetJourneyCalendarTieBreaksOnTripOrder(t *testing.T) {
	daily := transit.Calendar{
		PrimaryIdentifier: "cal-daily",
		Monday:            true, Tuesday: true, Wednesday: true, Thursday: true,
		Friday: true, Saturday: true, Sunday: true,
		StartDate: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC),
	}

	repository := &fakeTimetable{
		trips: []transit.Trip{
			{PrimaryIdentifier: "trip-first", TicketMachineCode: "T100", DataSource: testDataSource, CalendarRef: "cal-daily"},
			{PrimaryIdentifier: "trip-second", TicketMachineCode: "T100", DataSource: testDataSource, CalendarRef: "cal-daily"},
		},
		calendars: map[string]transit.Calendar{
			"cal-daily": daily,
		},
	}
	matcher, _ := newTestMatcher(repository)

	journey, err := matcher.GetJourney(context.Background(), testReport("X1", "T100"), &transit.Vehicle{Code: "BODS-1"})
	require.NoError(t, err)

	assert.Equal(t, "trip-first", journey.TripRef)
}
