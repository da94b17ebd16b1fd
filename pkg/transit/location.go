package transit

import "time"

// Location is a GeoJSON point, coordinates ordered longitude then latitude
// (WGS84).
type Location struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// VehicleLocation is one normalised position fix for a vehicle.
type VehicleLocation struct {
	Location Location

	// Heading is nil when the feed reported no bearing. A reported bearing
	// of zero is indistinguishable from no data in this feed and is also
	// treated as unset.
	Heading *float64 `bson:",omitempty"`

	Occupancy string `bson:",omitempty"`

	RecordedAt time.Time `bson:",omitempty"`
}
