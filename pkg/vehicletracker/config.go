package vehicletracker

import (
	"time"

	"github.com/transito/transito/pkg/util"
)

const defaultFeedURL = "https://data.bus-data.dft.gov.uk/avl/download/gtfsrt"
const defaultDataSource = "gb-bods-gtfsrt"
const defaultTimezone = "Europe/London"

// Config carries everything the tracker needs to run against one feed.
type Config struct {
	FeedURL    string
	APIKey     string
	DataSource string

	// Timezone is the feed's reference zone for trip start instants
	Timezone *time.Location
}

// ConfigFromEnvironment builds a tracker config from TRANSITO_* environment
// variables, falling back to the BODS national feed defaults.
func ConfigFromEnvironment() (Config, error) {
	env := util.GetEnvironmentVariables()

	config := Config{
		FeedURL:    defaultFeedURL,
		APIKey:     env["TRANSITO_BODS_API_KEY"],
		DataSource: defaultDataSource,
	}

	if env["TRANSITO_BODS_FEED_URL"] != "" {
		config.FeedURL = env["TRANSITO_BODS_FEED_URL"]
	}

	timezoneName := defaultTimezone
	if env["TRANSITO_BODS_TIMEZONE"] != "" {
		timezoneName = env["TRANSITO_BODS_TIMEZONE"]
	}

	timezone, err := time.LoadLocation(timezoneName)
	if err != nil {
		return Config{}, err
	}
	config.Timezone = timezone

	return config, nil
}
