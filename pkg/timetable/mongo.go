package timetable

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/transito/transito/pkg/database"
	"github.com/transito/transito/pkg/transit"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepository runs the timetable queries against the shared MongoDB
// database.
type MongoRepository struct{}

func NewMongoRepository() *MongoRepository {
	return &MongoRepository{}
}

// Lookups sort on primaryidentifier so that take-first tie breaking stays
// deterministic between pulls
var stableOrder = options.Find().SetSort(bson.D{{Key: "primaryidentifier", Value: 1}})

func (r *MongoRepository) ActiveServicesByRouteCode(ctx context.Context, source string, routeCode string) ([]transit.Service, error) {
	return r.findServices(ctx, bson.M{
		"current":     true,
		"datasource":  source,
		"routes.code": routeCode,
	})
}

func (r *MongoRepository) ActiveServicesByTripCode(ctx context.Context, source string, tripCode string) ([]transit.Service, error) {
	tripsCollection := database.GetCollection("trips")

	cursor, err := tripsCollection.Find(ctx, bson.M{
		"datasource":        source,
		"ticketmachinecode": tripCode,
	}, stableOrder)
	if err != nil {
		return nil, err
	}

	var trips []transit.Trip
	if err := cursor.All(ctx, &trips); err != nil {
		return nil, err
	}

	var serviceRefs []string
	for _, trip := range trips {
		serviceRefs = append(serviceRefs, trip.ServiceRef)
	}

	if len(serviceRefs) == 0 {
		return nil, nil
	}

	return r.findServices(ctx, bson.M{
		"current":           true,
		"datasource":        source,
		"primaryidentifier": bson.M{"$in": serviceRefs},
	})
}

func (r *MongoRepository) ServiceByRouteCodeSuffix(ctx context.Context, source string, suffix string) (*transit.Service, error) {
	services, err := r.findServices(ctx, bson.M{
		"datasource": source,
		"routes.code": primitive.Regex{
			Pattern: fmt.Sprintf("%s$", regexp.QuoteMeta("_"+suffix)),
		},
	})
	if err != nil {
		return nil, err
	}

	if len(services) == 0 {
		return nil, ErrServiceNotFound
	}
	if len(services) > 1 {
		return nil, ErrAmbiguousService
	}

	return &services[0], nil
}

func (r *MongoRepository) ServiceByRef(ctx context.Context, serviceRef string) (*transit.Service, error) {
	services, err := r.findServices(ctx, bson.M{"primaryidentifier": serviceRef})
	if err != nil {
		return nil, err
	}
	if len(services) == 0 {
		return nil, nil
	}

	return &services[0], nil
}

func (r *MongoRepository) TripsByTicketMachineCode(ctx context.Context, code string, filter TripFilter) ([]transit.Trip, error) {
	query := bson.M{"ticketmachinecode": code}
	applyTripFilter(query, filter)

	return r.findTrips(ctx, query)
}

func (r *MongoRepository) TripsByStartAndDirection(ctx context.Context, start time.Duration, inbound bool, filter TripFilter) ([]transit.Trip, error) {
	query := bson.M{
		"start":   start,
		"inbound": inbound,
	}
	applyTripFilter(query, filter)

	return r.findTrips(ctx, query)
}

func (r *MongoRepository) ActiveCalendars(ctx context.Context, date time.Time, calendarRefs []string) ([]string, error) {
	if len(calendarRefs) == 0 {
		return nil, nil
	}

	calendarsCollection := database.GetCollection("calendars")

	cursor, err := calendarsCollection.Find(ctx, bson.M{
		"primaryidentifier": bson.M{"$in": calendarRefs},
	})
	if err != nil {
		return nil, err
	}

	var calendars []transit.Calendar
	if err := cursor.All(ctx, &calendars); err != nil {
		return nil, err
	}

	var active []string
	for _, calendar := range calendars {
		if calendar.ActiveOn(date) {
			active = append(active, calendar.PrimaryIdentifier)
		}
	}

	return active, nil
}

func (r *MongoRepository) findServices(ctx context.Context, query bson.M) ([]transit.Service, error) {
	servicesCollection := database.GetCollection("services")

	cursor, err := servicesCollection.Find(ctx, query, stableOrder)
	if err != nil {
		return nil, err
	}

	var services []transit.Service
	if err := cursor.All(ctx, &services); err != nil {
		return nil, err
	}

	return services, nil
}

func (r *MongoRepository) findTrips(ctx context.Context, query bson.M) ([]transit.Trip, error) {
	tripsCollection := database.GetCollection("trips")

	cursor, err := tripsCollection.Find(ctx, query, stableOrder)
	if err != nil {
		return nil, err
	}

	var trips []transit.Trip
	if err := cursor.All(ctx, &trips); err != nil {
		return nil, err
	}

	return trips, nil
}

func applyTripFilter(query bson.M, filter TripFilter) {
	if filter.ServiceRef != "" {
		query["serviceref"] = filter.ServiceRef
	}
	if filter.DataSource != "" {
		query["datasource"] = filter.DataSource
	}
}
