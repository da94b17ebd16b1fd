package vehicletracker

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kr/pretty"
	"github.com/rs/zerolog/log"
	"github.com/transito/transito/pkg/bods"
	"github.com/transito/transito/pkg/database"
	"github.com/transito/transito/pkg/redis_client"
	"github.com/transito/transito/pkg/timetable"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "vehicle-tracker",
		Usage: "Ingest the BODS vehicle location feed and track vehicle journeys",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "poll the feed on an interval",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "interval",
						Usage: "time between feed pulls",
						Value: 30 * time.Second,
					},
				},
				Action: func(c *cli.Context) error {
					pipeline, err := setupPipeline(true)
					if err != nil {
						return err
					}

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
					defer signal.Stop(signals)

					ticker := time.NewTicker(c.Duration("interval"))
					defer ticker.Stop()

					for {
						if err := pipeline.Run(context.Background()); err != nil {
							log.Error().Err(err).Msg("Feed pull failed")
						}

						select {
						case <-ticker.C:
						case <-signals:
							return nil
						}
					}
				},
			},
			{
				Name:  "pull",
				Usage: "run a single feed pull",
				Action: func(c *cli.Context) error {
					pipeline, err := setupPipeline(false)
					if err != nil {
						return err
					}

					return pipeline.Run(context.Background())
				},
			},
			{
				Name:  "test-match",
				Usage: "match a synthetic report against the timetable and print the journey",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "route", Required: true},
					&cli.StringFlag{Name: "trip", Required: true},
					&cli.StringFlag{Name: "start-date", Required: true},
					&cli.StringFlag{Name: "start-time", Value: "00:00:00"},
					&cli.IntFlag{Name: "direction"},
				},
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						return err
					}

					config, err := ConfigFromEnvironment()
					if err != nil {
						return err
					}

					sink := NewMongoSink(config.DataSource)
					matcher := NewMatcher(timetable.NewMongoRepository(), sink, config.DataSource, config.Timezone)

					report := bods.Report{
						VehicleID: "test-match",
						Trip: bods.TripDescriptor{
							RouteID:     c.String("route"),
							TripID:      c.String("trip"),
							StartDate:   c.String("start-date"),
							StartTime:   c.String("start-time"),
							DirectionID: c.Int("direction"),
						},
						Timestamp: time.Now().Unix(),
					}

					vehicle, err := sink.GetOrCreateVehicle(context.Background(), report.VehicleIdentity())
					if err != nil {
						return err
					}

					journey, err := matcher.GetJourney(context.Background(), report, vehicle)
					pretty.Println(journey, err)

					return nil
				},
			},
		},
	}
}

func setupPipeline(withRedis bool) (*Pipeline, error) {
	if err := database.Connect(); err != nil {
		return nil, err
	}

	config, err := ConfigFromEnvironment()
	if err != nil {
		return nil, err
	}

	feed := bods.NewFeed(config.FeedURL, config.APIKey)
	sink := NewMongoSink(config.DataSource)
	matcher := NewMatcher(timetable.NewMongoRepository(), sink, config.DataSource, config.Timezone)

	pipeline := NewPipeline(feed, matcher, sink)

	if withRedis {
		if err := redis_client.Connect(); err != nil {
			return nil, err
		}
		pipeline.SetupDedupeCache()
	}

	return pipeline, nil
}
