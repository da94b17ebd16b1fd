package vehicletracker

import (
	"github.com/transito/transito/pkg/bods"
	"github.com/transito/transito/pkg/transit"
)

// GTFS-RT occupancy status codes
var occupancies = map[int]string{
	0: "Empty",
	1: "Many seats available",
	2: "Few seats available",
	3: "Standing room only",
	4: "Crushed standing room only",
	5: "Full",
	6: "Not accepting passengers",
	7: "No data available",
	8: "Not boardable",
}

// CreateVehicleLocation normalises a report's position fields. A bearing of
// zero and an occupancy code of zero both read as no data, matching the
// feed's own behaviour.
func CreateVehicleLocation(report bods.Report) transit.VehicleLocation {
	location := transit.VehicleLocation{
		Location: transit.Location{
			Type:        "Point",
			Coordinates: []float64{report.Position.Longitude, report.Position.Latitude},
		},
		RecordedAt: report.RecordedAt(),
	}

	if report.Position.Bearing != 0 {
		heading := report.Position.Bearing
		location.Heading = &heading
	}

	if report.OccupancyStatus != 0 {
		location.Occupancy = occupancies[report.OccupancyStatus]
	}

	return location
}
