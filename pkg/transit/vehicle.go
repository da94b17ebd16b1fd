package transit

import "time"

// Vehicle is a physical vehicle reported by a realtime feed, keyed by the
// feed's own vehicle code plus the data source it arrived from.
type Vehicle struct {
	Code       string `bson:",omitempty"`
	DataSource string `bson:",omitempty"`

	CreationDateTime     time.Time `bson:",omitempty"`
	ModificationDateTime time.Time `bson:",omitempty"`

	OperatorRef string `bson:",omitempty"`

	LatestJourneyRef string   `bson:",omitempty"`
	LatestJourney    *Journey `bson:"-"`

	LatestLocation *VehicleLocation `bson:",omitempty"`
}
