package database

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func createIndexes() {
	createTimetableIndexes()
	createVehicleIndexes()
}

func createTimetableIndexes() {
	// Services
	servicesCollection := GetCollection("services")
	_, err := servicesCollection.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "primaryidentifier", Value: 1}},
		},
		{
			Keys: bson.D{
				{Key: "datasource", Value: 1},
				{Key: "routes.code", Value: 1},
			},
		},
	}, options.CreateIndexes())
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}

	// Trips
	tripsCollection := GetCollection("trips")
	tripStartDirectionIndexName := "TripStartDirection"
	_, err = tripsCollection.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "primaryidentifier", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "ticketmachinecode", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "serviceref", Value: 1}},
		},
		{
			Options: &options.IndexOptions{
				Name: &tripStartDirectionIndexName,
			},
			Keys: bson.D{
				{Key: "datasource", Value: 1},
				{Key: "start", Value: 1},
				{Key: "inbound", Value: 1},
			},
		},
	}, options.CreateIndexes())
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}

	// Calendars
	calendarsCollection := GetCollection("calendars")
	_, err = calendarsCollection.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "primaryidentifier", Value: 1}},
		},
	}, options.CreateIndexes())
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}

func createVehicleIndexes() {
	// Vehicles
	// The unique (code, datasource) pair is what keeps concurrent pulls from
	// ever creating two records for the same physical vehicle
	vehiclesCollection := GetCollection("vehicles")
	_, err := vehiclesCollection.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Options: options.Index().SetName("VehicleCodeDataSource").SetUnique(true),
			Keys: bson.D{
				{Key: "code", Value: 1},
				{Key: "datasource", Value: 1},
			},
		},
	}, options.CreateIndexes())
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}

	// Vehicle Journeys
	journeysCollection := GetCollection("vehicle_journeys")
	_, err = journeysCollection.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "primaryidentifier", Value: 1}},
		},
		{
			Keys: bson.D{
				{Key: "vehicleref", Value: 1},
				{Key: "code", Value: 1},
			},
		},
	}, options.CreateIndexes())
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}
