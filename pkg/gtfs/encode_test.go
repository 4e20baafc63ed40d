package gtfs

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/tsiconverter/pkg/canonical"
)

const singleStopDocument = `{
	"agencies": [{"id": "A1", "name": "Agency One", "url": "https://a1.example", "timezone": "Europe/Bratislava"}],
	"stations": [{"id": "S1", "name": "Stop One", "lat": 48.1486, "lon": 17.1077}],
	"services": [{
		"id": "R1",
		"agency_id": "A1",
		"route_type": 3,
		"route_short_name": "1",
		"variants": [{"id": "V1", "calendar": {"monday": true, "start_date": "20240101", "end_date": "20241231"}}],
		"calls": [{"station_id": "S1", "arrival_time": "08:00:00", "departure_time": "08:00:00", "stop_sequence": 1}]
	}]
}`

func parseDocument(t *testing.T, raw string) *canonical.Document {
	t.Helper()

	document, err := canonical.Parse([]byte(raw))
	require.NoError(t, err)

	return document
}

func dataRows(content []byte) []string {
	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	return lines[1:]
}

func TestEncodeSingleStop(t *testing.T) {
	bundle, err := Encode(parseDocument(t, singleStopDocument), Options{})
	require.NoError(t, err)

	assert.Equal(t, RequiredFiles, bundle.Names())

	stops := dataRows(bundle.Files[StopsFile])
	require.Len(t, stops, 1)
	assert.Equal(t, "S1,,Stop One,,48.1486,17.1077,,,,,,", stops[0])

	stopTimes := dataRows(bundle.Files[StopTimesFile])
	require.Len(t, stopTimes, 1)
	assert.Contains(t, stopTimes[0], "08:00:00,08:00:00,S1,1")
	assert.True(t, strings.HasPrefix(string(bundle.Files[StopTimesFile]), "trip_id,arrival_time,departure_time,stop_id,stop_sequence"))

	assert.Equal(t, []string{"A1,Agency One,https://a1.example,Europe/Bratislava,,,"}, dataRows(bundle.Files[AgencyFile]))
	assert.Equal(t, []string{"R1,A1,1,,3,,"}, dataRows(bundle.Files[RoutesFile]))
	assert.Equal(t, []string{"R1,V1,R1_V1,,"}, dataRows(bundle.Files[TripsFile]))
	assert.Equal(t, []string{"V1,1,0,0,0,0,0,0,20240101,20241231"}, dataRows(bundle.Files[CalendarFile]))
}

func TestEncodeStopsRoundTrip(t *testing.T) {
	document := parseDocument(t, `{"stations": [
		{"id": "S1", "lat": 48.1486, "lon": 17.1077},
		{"id": "S2", "name": "Quoted, \"name\"", "lat": -33.868820, "lon": 151.2093},
		{"id": "S3", "lat": 0.000001, "lon": -0.1}
	]}`)

	bundle, err := Encode(document, Options{})
	require.NoError(t, err)

	schedule, err := ReadBundle(bundle.Files)
	require.NoError(t, err)
	require.Len(t, schedule.Stops, len(document.Stations))

	for i, station := range document.Stations {
		stop := schedule.Stops[i]
		assert.Equal(t, station.ID, stop.ID)

		latitude, err := strconv.ParseFloat(stop.Latitude, 64)
		require.NoError(t, err)
		longitude, err := strconv.ParseFloat(stop.Longitude, 64)
		require.NoError(t, err)

		assert.Equal(t, *station.Latitude, latitude)
		assert.Equal(t, *station.Longitude, longitude)
	}

	assert.Equal(t, "Quoted, \"name\"", schedule.Stops[1].Name)
	assert.Contains(t, string(bundle.Files[StopsFile]), `"Quoted, ""name"""`)
}

func TestEncodeQuotesOnlyWhenNeeded(t *testing.T) {
	document := parseDocument(t, `{"stations": [
		{"id": "S1", "name": " Leading space", "lat": 1, "lon": 2},
		{"id": "S2", "name": "Line\nbreak", "lat": 1, "lon": 2},
		{"id": "S3", "name": "Comma, here", "lat": 1, "lon": 2}
	]}`)

	bundle, err := Encode(document, Options{})
	require.NoError(t, err)

	stops := string(bundle.Files[StopsFile])
	assert.Contains(t, stops, "\nS1,, Leading space,")
	assert.Contains(t, stops, "\nS2,,\"Line\nbreak\",")
	assert.Contains(t, stops, "\nS3,,\"Comma, here\",")
	assert.NotContains(t, stops, "\r")

	schedule, err := ReadBundle(bundle.Files)
	require.NoError(t, err)
	require.Len(t, schedule.Stops, 3)
	assert.Equal(t, " Leading space", schedule.Stops[0].Name)
	assert.Equal(t, "Line\nbreak", schedule.Stops[1].Name)
}

func TestEncodeMissingCoordinates(t *testing.T) {
	_, err := Encode(parseDocument(t, `{"stations": [{"id": "S1", "name": "Nowhere"}]}`), Options{})
	require.Error(t, err)

	var encodeError *EncodeError
	require.True(t, errors.As(err, &encodeError))
	assert.Equal(t, EncodeErrorMissingRequiredColumn, encodeError.Kind)
	assert.Equal(t, StopsFile, encodeError.File)
	assert.Equal(t, "stop_lat", encodeError.Column)
	assert.Equal(t, "S1", encodeError.EntityID)
}

func TestEncodeVariantsAndPostMidnight(t *testing.T) {
	document := parseDocument(t, `{
		"publisher": {"name": "Night Rail", "url": "https://night.example", "lang": "sk"},
		"agencies": [{"id": "A1", "name": "Night", "timezone": "UTC"}],
		"stations": [{"id": "S1", "lat": 1, "lon": 2}, {"id": "S2", "lat": 3, "lon": 4}],
		"services": [
			{
				"id": "N1", "agency_id": "A1", "route_type": 2, "direction_id": 0,
				"variants": [
					{"id": "WD", "calendar": {"monday": 1, "tuesday": 1, "start_date": "20240101", "end_date": "20240630"}},
					{"id": "WE", "calendar": {"saturday": true, "start_date": "20240101", "end_date": "20240630"}}
				],
				"calls": [
					{"station_id": "S1", "arrival_time": "23:50:00", "departure_time": "23:55:00", "stop_sequence": 1},
					{"station_id": "S2", "arrival_time": "25:10:00", "departure_time": "25:10:00", "stop_sequence": 2}
				]
			},
			{"id": "X1", "agency_id": "A1", "route_type": 3}
		]
	}`)

	bundle, err := Encode(document, Options{FeedVersion: "7"})
	require.NoError(t, err)

	assert.Equal(t, []string{"N1,WD,N1_WD,,0", "N1,WE,N1_WE,,0", "X1,X1,X1,,"}, dataRows(bundle.Files[TripsFile]))

	stopTimes := dataRows(bundle.Files[StopTimesFile])
	require.Len(t, stopTimes, 4)
	assert.Equal(t, "N1_WD,25:10:00,25:10:00,S2,2,,,,", stopTimes[1])

	assert.Equal(t, []string{"WD,1,1,0,0,0,0,0,20240101,20240630", "WE,0,0,0,0,0,1,0,20240101,20240630"}, dataRows(bundle.Files[CalendarFile]))

	assert.Contains(t, bundle.Names(), FeedInfoFile)
	assert.Equal(t, []string{"Night Rail,https://night.example,sk,20240101,20240630,7,"}, dataRows(bundle.Files[FeedInfoFile]))
}

func TestEncodeAgencyURLFallsBackToPublisher(t *testing.T) {
	document := parseDocument(t, `{
		"publisher": {"name": "P", "url": "https://publisher.example"},
		"agencies": [{"id": "A1", "name": "One", "timezone": "UTC"}]
	}`)

	bundle, err := Encode(document, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"A1,One,https://publisher.example,UTC,,,"}, dataRows(bundle.Files[AgencyFile]))
}

func TestBundleZipRoundTrip(t *testing.T) {
	bundle, err := Encode(parseDocument(t, singleStopDocument), Options{})
	require.NoError(t, err)

	archive, err := bundle.Zip()
	require.NoError(t, err)

	again, err := bundle.Zip()
	require.NoError(t, err)
	assert.Equal(t, archive, again)

	files, err := ReadZip(archive)
	require.NoError(t, err)
	assert.Equal(t, bundle.Files, files)
}

func TestHeader(t *testing.T) {
	header, err := Header([]byte("\xEF\xBB\xBFstop_id,stop_name\nS1,One\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"stop_id", "stop_name"}, header)

	header, err = Header(nil)
	require.NoError(t, err)
	assert.Empty(t, header)
}
