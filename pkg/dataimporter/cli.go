package dataimporter

import (
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/transito/transito/pkg/database"
	"github.com/transito/transito/pkg/dataimporter/gtfs"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "data-importer",
		Usage: "Import timetable datasets into the database",
		Subcommands: []*cli.Command{
			{
				Name:  "gtfs-schedule",
				Usage: "import a GTFS schedule archive as services, trips and calendars",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "source",
						Usage:    "path or URL of the GTFS zip",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "id",
						Usage:    "data source identifier the records are keyed under",
						Required: true,
					},
				},
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						return err
					}

					source := c.String("source")
					if isValidURL(source) {
						tempFile, err := tempDownloadFile(source)
						if err != nil {
							return err
						}
						defer os.Remove(tempFile.Name())

						source = tempFile.Name()
					}

					schedule, err := gtfs.ParseScheduleZip(source)
					if err != nil {
						return err
					}

					return schedule.Import(c.String("id"))
				},
			},
		},
	}
}

func isValidURL(toTest string) bool {
	u, err := url.Parse(toTest)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}

	return true
}

func tempDownloadFile(source string) (*os.File, error) {
	resp, err := http.Get(source)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	tmpFile, err := os.CreateTemp(os.TempDir(), "transito-data-importer-")
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot create temporary file")
	}

	if _, err := io.Copy(tmpFile, resp.Body); err != nil {
		return nil, err
	}

	return tmpFile, nil
}
