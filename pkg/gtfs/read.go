package gtfs

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func csvReader(content []byte) *csv.Reader {
	reader := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(content, utf8BOM)))
	// Allow us to read records with missing columns
	reader.FieldsPerRecord = -1

	return reader
}

// Header returns the column names of a feed file
func Header(content []byte) ([]string, error) {
	header, err := csvReader(content).Read()
	if err == io.EOF {
		return nil, nil
	}

	return header, err
}

// ReadBundle parses the known files of a feed, unknown files are ignored
func ReadBundle(files map[string][]byte) (*Schedule, error) {
	schedule := &Schedule{}

	fileMap := map[string]interface{}{
		AgencyFile:    &schedule.Agencies,
		StopsFile:     &schedule.Stops,
		RoutesFile:    &schedule.Routes,
		TripsFile:     &schedule.Trips,
		StopTimesFile: &schedule.StopTimes,
		CalendarFile:  &schedule.Calendars,
		FeedInfoFile:  &schedule.FeedInfo,
	}

	for _, name := range fileOrder {
		content, exists := files[name]
		if !exists || len(bytes.TrimSpace(content)) == 0 {
			continue
		}

		if err := gocsv.UnmarshalCSV(csvReader(content), fileMap[name]); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
	}

	return schedule, nil
}
