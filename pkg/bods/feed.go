package bods

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/proto"
)

// The BODS AVL download is a ZIP container holding a single GTFS-RT
// protobuf file
const containerFilename = "gtfsrt.bin"

const fetchTimeout = 10 * time.Second

// TransportError means the feed endpoint could not be reached or answered
// with a non-success status.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("feed download %s returned status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("feed download %s: %s", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError means the downloaded container or protobuf payload was
// malformed.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("feed decode: %s", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Feed downloads and decodes the BODS vehicle location feed.
type Feed struct {
	URL    string
	APIKey string

	HTTPClient *http.Client
}

func NewFeed(url string, apiKey string) *Feed {
	return &Feed{
		URL:    url,
		APIKey: apiKey,

		HTTPClient: &http.Client{
			Timeout: fetchTimeout,
		},
	}
}

// Fetch downloads the feed and returns every vehicle report it carries, in
// feed order. Transient HTTP failures are retried with exponential backoff
// before a TransportError is returned.
func (f *Feed) Fetch(ctx context.Context) ([]Report, error) {
	var body []byte

	retryBackoff := backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(1*time.Minute),
	), ctx)

	err := backoff.Retry(func() error {
		var downloadErr error
		body, downloadErr = f.download(ctx)
		return downloadErr
	}, retryBackoff)
	if err != nil {
		return nil, err
	}

	log.Debug().Int("bytes", len(body)).Str("url", f.URL).Msg("Downloaded feed")

	return f.decode(body)
}

func (f *Feed) download(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, backoff.Permanent(&TransportError{URL: f.URL, Err: err})
	}

	if f.APIKey != "" {
		req.Header.Set("x-api-key", f.APIKey)
	}

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, &TransportError{URL: f.URL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		transportError := &TransportError{URL: f.URL, StatusCode: resp.StatusCode}

		// Client errors (bad API key etc) will not fix themselves on retry
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, backoff.Permanent(transportError)
		}
		return nil, transportError
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{URL: f.URL, Err: err}
	}

	return body, nil
}

func (f *Feed) decode(body []byte) ([]Report, error) {
	archive, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	var payload []byte
	for _, zipFile := range archive.File {
		if zipFile.Name != containerFilename {
			continue
		}

		file, err := zipFile.Open()
		if err != nil {
			return nil, &DecodeError{Err: err}
		}

		payload, err = io.ReadAll(file)
		file.Close()
		if err != nil {
			return nil, &DecodeError{Err: err}
		}
	}

	if payload == nil {
		return nil, &DecodeError{Err: fmt.Errorf("container has no %s", containerFilename)}
	}

	feed := gtfs.FeedMessage{}
	if err := proto.Unmarshal(payload, &feed); err != nil {
		return nil, &DecodeError{Err: err}
	}

	var reports []Report
	for _, entity := range feed.Entity {
		if report, ok := reportFromEntity(entity); ok {
			reports = append(reports, report)
		}
	}

	return reports, nil
}
