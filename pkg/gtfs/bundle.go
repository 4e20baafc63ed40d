package gtfs

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"time"
)

const (
	AgencyFile    = "agency.txt"
	StopsFile     = "stops.txt"
	RoutesFile    = "routes.txt"
	TripsFile     = "trips.txt"
	StopTimesFile = "stop_times.txt"
	CalendarFile  = "calendar.txt"
	FeedInfoFile  = "feed_info.txt"

	ZipFile = "gtfs.zip"
)

// RequiredFiles are emitted for every document
var RequiredFiles = []string{AgencyFile, StopsFile, RoutesFile, TripsFile, StopTimesFile, CalendarFile}

var fileOrder = append(append([]string{}, RequiredFiles...), FeedInfoFile)

// Schedule holds the rows of every file of a feed
type Schedule struct {
	Agencies  []Agency
	Stops     []Stop
	Routes    []Route
	Trips     []Trip
	StopTimes []StopTime
	Calendars []Calendar
	FeedInfo  []FeedInfo
}

type Bundle struct {
	Files map[string][]byte
}

// Names lists the files of the bundle in feed order
func (b *Bundle) Names() []string {
	var names []string
	for _, name := range fileOrder {
		if _, exists := b.Files[name]; exists {
			names = append(names, name)
		}
	}

	return names
}

// zipTimestamp is the modification time of every zipped file
var zipTimestamp = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func (b *Bundle) Zip() ([]byte, error) {
	var buffer bytes.Buffer
	archive := zip.NewWriter(&buffer)

	for _, name := range b.Names() {
		writer, err := archive.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: zipTimestamp,
		})
		if err != nil {
			return nil, err
		}

		if _, err := writer.Write(b.Files[name]); err != nil {
			return nil, err
		}
	}

	if err := archive.Close(); err != nil {
		return nil, err
	}

	return buffer.Bytes(), nil
}

// ReadZip extracts the feed files of a zip archive
func ReadZip(body []byte) (map[string][]byte, error) {
	archive, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, err
	}

	files := map[string][]byte{}
	for _, zipFile := range archive.File {
		if zipFile.FileInfo().IsDir() {
			continue
		}

		file, err := zipFile.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", zipFile.Name, err)
		}

		content, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", zipFile.Name, err)
		}

		files[zipFile.Name] = content
	}

	return files, nil
}
