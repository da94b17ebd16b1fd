package bods

import (
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
)

// Report is one vehicle update decoded from the feed. Missing fields decode
// to their zero values.
type Report struct {
	VehicleID string

	Trip TripDescriptor

	Position Position

	// OccupancyStatus is the raw feed code (0-8), zero when absent
	OccupancyStatus int

	Timestamp int64
}

// TripDescriptor identifies the scheduled run the vehicle claims to be on.
type TripDescriptor struct {
	RouteID     string
	TripID      string
	StartDate   string // YYYYMMDD
	StartTime   string // HH:MM:SS offset from service day midnight, can exceed 24h
	DirectionID int
}

type Position struct {
	Latitude  float64
	Longitude float64
	Bearing   float64
}

// JourneyIdentity is the tuple used to spot journey boundaries between
// consecutive reports for the same vehicle.
type JourneyIdentity struct {
	RouteID   string
	TripID    string
	StartDate string
}

// RecordedAt is the report timestamp interpreted as UTC.
func (r Report) RecordedAt() time.Time {
	return time.Unix(r.Timestamp, 0).UTC()
}

// VehicleIdentity is the natural key for vehicle lookup and creation.
func (r Report) VehicleIdentity() string {
	return r.VehicleID
}

func (r Report) JourneyIdentity() JourneyIdentity {
	return JourneyIdentity{
		RouteID:   r.Trip.RouteID,
		TripID:    r.Trip.TripID,
		StartDate: r.Trip.StartDate,
	}
}

// ReportIdentity deduplicates repeated reports; the feed never reuses a
// timestamp for distinct updates from the same vehicle.
func (r Report) ReportIdentity() int64 {
	return r.Timestamp
}

func reportFromEntity(entity *gtfs.FeedEntity) (Report, bool) {
	vehiclePosition := entity.GetVehicle()
	if vehiclePosition == nil {
		return Report{}, false
	}

	trip := vehiclePosition.GetTrip()
	position := vehiclePosition.GetPosition()

	return Report{
		VehicleID: vehiclePosition.GetVehicle().GetId(),
		Trip: TripDescriptor{
			RouteID:     trip.GetRouteId(),
			TripID:      trip.GetTripId(),
			StartDate:   trip.GetStartDate(),
			StartTime:   trip.GetStartTime(),
			DirectionID: int(trip.GetDirectionId()),
		},
		Position: Position{
			Latitude:  float64(position.GetLatitude()),
			Longitude: float64(position.GetLongitude()),
			Bearing:   float64(position.GetBearing()),
		},
		OccupancyStatus: int(vehiclePosition.GetOccupancyStatus()),
		Timestamp:       int64(vehiclePosition.GetTimestamp()),
	}, true
}
