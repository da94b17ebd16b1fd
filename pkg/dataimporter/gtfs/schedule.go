package gtfs

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"
	"github.com/transito/transito/pkg/database"
	"github.com/transito/transito/pkg/transit"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/exp/maps"
)

const bulkWriteBatchSize = 2000

const calendarDateFormat = "20060102"

// Schedule is an in-memory GTFS schedule dataset.
type Schedule struct {
	Agencies      []Agency
	Routes        []Route
	Trips         []Trip
	StopTimes     []StopTime
	Calendars     []Calendar
	CalendarDates []CalendarDate
}

func ParseScheduleZip(path string) (*Schedule, error) {
	// Allow us to ignore those naughty records that have missing columns
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		r := csv.NewReader(in)
		r.FieldsPerRecord = -1
		return r
	})

	schedule := &Schedule{}

	fileMap := map[string]interface{}{
		"agency.txt":         &schedule.Agencies,
		"routes.txt":         &schedule.Routes,
		"trips.txt":          &schedule.Trips,
		"stop_times.txt":     &schedule.StopTimes,
		"calendar.txt":       &schedule.Calendars,
		"calendar_dates.txt": &schedule.CalendarDates,
	}

	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer archive.Close()

	for _, zipFile := range archive.File {
		destination, exists := fileMap[zipFile.Name]
		if !exists {
			log.Debug().Str("file", zipFile.Name).Msg("Skipping gtfs file")
			continue
		}

		log.Info().Str("file", zipFile.Name).Msg("Loading file")

		fileReader, err := zipFile.Open()
		if err != nil {
			return nil, err
		}

		err = gocsv.Unmarshal(fileReader, destination)
		fileReader.Close()
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", zipFile.Name, err)
		}
	}

	return schedule, nil
}

// Import converts the schedule into services, trips and calendars for the
// given data source and upserts them into MongoDB.
func (s *Schedule) Import(datasource string) error {
	log.Info().
		Int("routes", len(s.Routes)).
		Int("trips", len(s.Trips)).
		Int("calendars", len(s.Calendars)).
		Str("datasource", datasource).
		Msg("Importing GTFS schedule")

	// Operators
	agencyOperators := map[string]string{}
	for _, agency := range s.Agencies {
		if agency.NOC != "" {
			agencyOperators[agency.ID] = fmt.Sprintf("gb-noc-%s", agency.NOC)
		} else {
			agencyOperators[agency.ID] = fmt.Sprintf("%s-operator-%s", datasource, agency.ID)
		}
	}

	// Services
	routes := map[string]Route{}
	services := map[string]*transit.Service{}
	for _, route := range s.Routes {
		routes[route.ID] = route

		serviceName := route.ShortName
		if serviceName == "" {
			serviceName = route.LongName
		}

		services[route.ID] = &transit.Service{
			PrimaryIdentifier: fmt.Sprintf("%s-service-%s", datasource, route.ID),
			DataSource:        datasource,
			ServiceName:       serviceName,
			Current:           true,
			OperatorRef:       agencyOperators[route.AgencyID],
			Routes: []transit.Route{
				{Code: route.ID},
			},
		}
	}

	// Calendars
	calendars := map[string]*transit.Calendar{}
	for _, calendar := range s.Calendars {
		startDate, _ := time.Parse(calendarDateFormat, calendar.Start)
		endDate, _ := time.Parse(calendarDateFormat, calendar.End)

		calendars[calendar.ServiceID] = &transit.Calendar{
			PrimaryIdentifier: fmt.Sprintf("%s-calendar-%s", datasource, calendar.ServiceID),
			DataSource:        datasource,

			Monday:    calendar.Monday == 1,
			Tuesday:   calendar.Tuesday == 1,
			Wednesday: calendar.Wednesday == 1,
			Thursday:  calendar.Thursday == 1,
			Friday:    calendar.Friday == 1,
			Saturday:  calendar.Saturday == 1,
			Sunday:    calendar.Sunday == 1,

			StartDate: startDate,
			EndDate:   endDate,
		}
	}
	for _, calendarDate := range s.CalendarDates {
		calendar := calendars[calendarDate.ServiceID]
		if calendar == nil {
			// calendar_dates.txt can stand alone without calendar.txt
			calendar = &transit.Calendar{
				PrimaryIdentifier: fmt.Sprintf("%s-calendar-%s", datasource, calendarDate.ServiceID),
				DataSource:        datasource,
			}
			calendars[calendarDate.ServiceID] = calendar
		}

		date, _ := time.Parse(calendarDateFormat, calendarDate.Date)
		calendar.Exceptions = append(calendar.Exceptions, transit.CalendarException{
			Date: date,
			Type: transit.CalendarExceptionType(calendarDate.ExceptionType),
		})
	}

	// Trip start times come from the first stop in the timetable
	tripStarts := map[string]string{}
	tripStartSequences := map[string]int{}
	for _, stopTime := range s.StopTimes {
		sequence, seen := tripStartSequences[stopTime.TripID]
		if !seen || stopTime.StopSequence < sequence {
			tripStartSequences[stopTime.TripID] = stopTime.StopSequence
			tripStarts[stopTime.TripID] = stopTime.DepartureTime
		}
	}

	// Trips
	var trips []*transit.Trip
	for _, trip := range s.Trips {
		route, exists := routes[trip.RouteID]
		if !exists {
			log.Debug().Str("trip", trip.ID).Str("route", trip.RouteID).Msg("Trip references unknown route")
			continue
		}

		start, err := transit.ParseServiceDayOffset(tripStarts[trip.ID])
		if err != nil {
			log.Debug().Err(err).Str("trip", trip.ID).Msg("Trip has unparseable start")
			continue
		}

		ticketMachineCode := trip.TicketMachineCode
		if ticketMachineCode == "" {
			ticketMachineCode = trip.ID
		}

		trips = append(trips, &transit.Trip{
			PrimaryIdentifier: fmt.Sprintf("%s-trip-%s", datasource, trip.ID),
			DataSource:        datasource,

			TicketMachineCode: ticketMachineCode,

			ServiceRef:  services[trip.RouteID].PrimaryIdentifier,
			RouteCode:   route.ID,
			CalendarRef: fmt.Sprintf("%s-calendar-%s", datasource, trip.ServiceID),
			OperatorRef: agencyOperators[route.AgencyID],

			Start:   start,
			Inbound: trip.DirectionID == "1",

			DestinationDisplay: trip.Headsign,
		})
	}

	if err := bulkUpsert("services", maps.Values(services)); err != nil {
		return err
	}
	if err := bulkUpsert("calendars", maps.Values(calendars)); err != nil {
		return err
	}
	if err := bulkUpsert("trips", trips); err != nil {
		return err
	}

	return nil
}

type identifiable interface {
	*transit.Service | *transit.Calendar | *transit.Trip
}

func bulkUpsert[T identifiable](collectionName string, documents []T) error {
	collection := database.GetCollection(collectionName)

	var operations []mongo.WriteModel
	for _, document := range documents {
		var identifier string
		switch record := any(document).(type) {
		case *transit.Service:
			identifier = record.PrimaryIdentifier
		case *transit.Calendar:
			identifier = record.PrimaryIdentifier
		case *transit.Trip:
			identifier = record.PrimaryIdentifier
		}

		operations = append(operations, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"primaryidentifier": identifier}).
			SetReplacement(document).
			SetUpsert(true))

		if len(operations) >= bulkWriteBatchSize {
			if _, err := collection.BulkWrite(context.Background(), operations, &options.BulkWriteOptions{}); err != nil {
				return err
			}
			operations = nil
		}
	}

	if len(operations) > 0 {
		if _, err := collection.BulkWrite(context.Background(), operations, &options.BulkWriteOptions{}); err != nil {
			return err
		}
	}

	log.Info().Int("documents", len(documents)).Str("collection", collectionName).Msg("Bulk upsert complete")

	return nil
}
