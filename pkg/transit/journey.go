package transit

import "time"

// Journey is one real-world trip instance of a tracked vehicle. The Code is
// the trip identifier carried by the feed; ServiceRef and TripRef stay unset
// when the report could not be matched against the timetable.
type Journey struct {
	PrimaryIdentifier string `bson:",omitempty"`

	Code string `bson:",omitempty"`

	CreationDateTime     time.Time `bson:",omitempty"`
	ModificationDateTime time.Time `bson:",omitempty"`

	DataSource string `bson:",omitempty"`

	VehicleRef string `bson:",omitempty"`

	StartDateTime time.Time `bson:",omitempty"`

	ServiceRef string   `bson:",omitempty"`
	Service    *Service `bson:"-"`

	TripRef string `bson:",omitempty"`
	Trip    *Trip  `bson:"-"`

	DestinationDisplay string `bson:",omitempty"`
	RouteName          string `bson:",omitempty"`

	Track []VehicleLocation `bson:",omitempty"`

	// Snapshot of the raw feed report that last touched this journey,
	// kept for diagnostics only
	RawReport map[string]interface{} `bson:",omitempty"`
}
