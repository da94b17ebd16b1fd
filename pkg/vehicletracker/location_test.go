package vehicletracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/transito/transito/pkg/bods"
)

func TestCreateVehicleLocation(t *testing.T) {
	report := bods.Report{
		Position: bods.Position{
			Latitude:  53.4808,
			Longitude: -2.2426,
			Bearing:   274,
		},
		OccupancyStatus: 2,
		Timestamp:       1709280000,
	}

	location := CreateVehicleLocation(report)

	assert.Equal(t, "Point", location.Location.Type)
	assert.Equal(t, []float64{-2.2426, 53.4808}, location.Location.Coordinates, "coordinates are longitude first")
	require.NotNil(t, location.Heading)
	assert.Equal(t, float64(274), *location.Heading)
	assert.Equal(t, "Few seats available", location.Occupancy)
	assert.Equal(t, time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC), location.RecordedAt)
}

func TestCreateVehicleLocationZeroBearingIsUnset(t *testing.T) {
	location := CreateVehicleLocation(bods.Report{})

	assert.Nil(t, location.Heading)
}

func TestCreateVehicleLocationOccupancyLabels(t *testing.T) {
	labels := map[int]string{
		1: "Many seats available",
		2: "Few seats available",
		3: "Standing room only",
		4: "Crushed standing room only",
		5: "Full",
		6: "Not accepting passengers",
		7: "No data available",
		8: "Not boardable",
	}

	for code, label := range labels {
		location := CreateVehicleLocation(bods.Report{OccupancyStatus: code})

		assert.Equal(t, label, location.Occupancy, "code %d", code)
	}
}

func TestCreateVehicleLocationOccupancyZeroAndAbsentAreUnset(t *testing.T) {
	// Code zero means Empty in the feed enumeration, but it's also what an
	// absent field decodes to, so both read as no data
	location := CreateVehicleLocation(bods.Report{OccupancyStatus: 0})

	assert.Empty(t, location.Occupancy)
}
