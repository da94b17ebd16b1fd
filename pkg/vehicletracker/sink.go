package vehicletracker

import (
	"context"
	"fmt"
	"time"

	"github.com/transito/transito/pkg/database"
	"github.com/transito/transito/pkg/transit"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Sink persists the vehicles, journeys and locations produced by a feed
// pull.
type Sink interface {
	// GetOrCreateVehicle returns the vehicle with the given feed code,
	// creating it first if it has never been seen. The returned vehicle has
	// its latest journey loaded.
	GetOrCreateVehicle(ctx context.Context, code string) (*transit.Vehicle, error)

	SaveVehicleOperator(ctx context.Context, vehicle *transit.Vehicle) error

	// SaveJourney stores the journey and makes it the vehicle's latest.
	SaveJourney(ctx context.Context, vehicle *transit.Vehicle, journey *transit.Journey) error

	// SaveLocation records a position fix against the journey and the
	// vehicle.
	SaveLocation(ctx context.Context, vehicle *transit.Vehicle, journey *transit.Journey, location transit.VehicleLocation) error
}

// MongoSink stores vehicle state in the shared MongoDB database.
type MongoSink struct {
	DataSource string
}

func NewMongoSink(dataSource string) *MongoSink {
	return &MongoSink{DataSource: dataSource}
}

func (s *MongoSink) GetOrCreateVehicle(ctx context.Context, code string) (*transit.Vehicle, error) {
	vehiclesCollection := database.GetCollection("vehicles")

	// Upsert keeps lookup-or-create atomic; the unique (code, datasource)
	// index backs it up against concurrent pulls
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var vehicle transit.Vehicle
	err := vehiclesCollection.FindOneAndUpdate(ctx,
		bson.M{"code": code, "datasource": s.DataSource},
		bson.M{"$setOnInsert": bson.M{
			"code":             code,
			"datasource":       s.DataSource,
			"creationdatetime": time.Now(),
		}},
		opts,
	).Decode(&vehicle)
	if err != nil {
		return nil, err
	}

	if vehicle.LatestJourneyRef != "" {
		journeysCollection := database.GetCollection("vehicle_journeys")

		var journey transit.Journey
		err := journeysCollection.FindOne(ctx, bson.M{
			"primaryidentifier": vehicle.LatestJourneyRef,
		}).Decode(&journey)
		if err == nil {
			vehicle.LatestJourney = &journey
		}
	}

	return &vehicle, nil
}

func (s *MongoSink) SaveVehicleOperator(ctx context.Context, vehicle *transit.Vehicle) error {
	vehiclesCollection := database.GetCollection("vehicles")

	_, err := vehiclesCollection.UpdateOne(ctx,
		bson.M{"code": vehicle.Code, "datasource": vehicle.DataSource},
		bson.M{"$set": bson.M{
			"operatorref":          vehicle.OperatorRef,
			"modificationdatetime": time.Now(),
		}},
	)

	return err
}

func (s *MongoSink) SaveJourney(ctx context.Context, vehicle *transit.Vehicle, journey *transit.Journey) error {
	journeysCollection := database.GetCollection("vehicle_journeys")

	if journey.PrimaryIdentifier == "" {
		journey.PrimaryIdentifier = fmt.Sprintf("%s-vehiclejourney-%s-%s-%d",
			s.DataSource, vehicle.Code, journey.Code, journey.StartDateTime.Unix())
		journey.CreationDateTime = time.Now()
	}

	journey.DataSource = s.DataSource
	journey.VehicleRef = vehicle.Code
	journey.ModificationDateTime = time.Now()

	opts := options.Replace().SetUpsert(true)
	_, err := journeysCollection.ReplaceOne(ctx,
		bson.M{"primaryidentifier": journey.PrimaryIdentifier},
		journey,
		opts,
	)
	if err != nil {
		return err
	}

	vehiclesCollection := database.GetCollection("vehicles")
	_, err = vehiclesCollection.UpdateOne(ctx,
		bson.M{"code": vehicle.Code, "datasource": vehicle.DataSource},
		bson.M{"$set": bson.M{
			"latestjourneyref":     journey.PrimaryIdentifier,
			"modificationdatetime": time.Now(),
		}},
	)
	if err != nil {
		return err
	}

	vehicle.LatestJourneyRef = journey.PrimaryIdentifier
	vehicle.LatestJourney = journey

	return nil
}

func (s *MongoSink) SaveLocation(ctx context.Context, vehicle *transit.Vehicle, journey *transit.Journey, location transit.VehicleLocation) error {
	journeysCollection := database.GetCollection("vehicle_journeys")

	_, err := journeysCollection.UpdateOne(ctx,
		bson.M{"primaryidentifier": journey.PrimaryIdentifier},
		bson.M{
			"$push": bson.M{"track": location},
			"$set":  bson.M{"modificationdatetime": time.Now()},
		},
	)
	if err != nil {
		return err
	}

	vehiclesCollection := database.GetCollection("vehicles")
	_, err = vehiclesCollection.UpdateOne(ctx,
		bson.M{"code": vehicle.Code, "datasource": vehicle.DataSource},
		bson.M{"$set": bson.M{
			"latestlocation":       location,
			"modificationdatetime": time.Now(),
		}},
	)

	return err
}
