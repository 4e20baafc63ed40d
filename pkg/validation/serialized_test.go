package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/tsiconverter/pkg/edifact"
	"github.com/travigo/tsiconverter/pkg/formats"
	"github.com/travigo/tsiconverter/pkg/gtfs"
)

func TestValidateEncodedEDIFACT(t *testing.T) {
	document := parseDocument(t, validDocument)

	for _, messageType := range []edifact.MessageType{edifact.MessageTypeSKDUPD, edifact.MessageTypeTSDUPD} {
		message, err := edifact.Encode(document, messageType, edifact.Options{
			Timestamp:       time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
			OmitCoordinates: true,
		})
		require.NoError(t, err)

		report := ValidateEDIFACT(message.String(), formats.LevelStrict)
		assert.True(t, report.Valid(), "%s: %v", messageType, report.Errors)
		assert.Empty(t, report.Warnings)
	}
}

func TestValidateEDIFACTEnvelope(t *testing.T) {
	for _, test := range []struct {
		name     string
		text     string
		expected []string
	}{
		{
			name:     "count mismatch",
			text:     "UNA:+.? 'UNB+UNOC:3+S+R+240101:0000+REF'UNH+REF01+SKDUPD:D:03B:UN:IATA:CURRENT'BGM+SKD+REF01+9'UNT+5+REF01'UNZ+1+REF'",
			expected: []string{"SegmentCountMismatch"},
		},
		{
			name:     "reference mismatch",
			text:     "UNA:+.? 'UNB+UNOC:3+S+R+240101:0000+REF'UNH+REF01+SKDUPD:D:03B:UN:IATA:CURRENT'UNT+2+OTHER'UNZ+1+NOPE'",
			expected: []string{"MessageReferenceMismatch", "InterchangeReferenceMismatch"},
		},
		{
			name:     "unknown message type",
			text:     "UNA:+.? 'UNB+UNOC:3+S+R+240101:0000+REF'UNH+REF01+IFTMIN:D:03B:UN'UNT+2+REF01'UNZ+1+REF'",
			expected: []string{"UnknownMessageType"},
		},
		{
			name:     "missing trailers",
			text:     "UNA:+.? 'UNB+UNOC:3+S+R+240101:0000+REF'UNH+REF01+SKDUPD:D:03B:UN:IATA:CURRENT'",
			expected: []string{"UnpairedMessageHeader", "MissingInterchangeTrailer"},
		},
		{
			name:     "no interchange header",
			text:     "UNH+REF01+SKDUPD:D:03B:UN:IATA:CURRENT'",
			expected: []string{"MissingInterchangeHeader"},
		},
		{
			name:     "unterminated",
			text:     "UNA:+.? 'UNB+UNOC:3+S+R+240101:0000+REF'UNH+REF01+SKDUPD:D:03B:UN:IATA:CURRENT'UNT+2+REF01'UNZ+1+REF",
			expected: []string{"MissingInterchangeTrailer", "UnterminatedSegment"},
		},
		{
			name:     "message count",
			text:     "UNA:+.? 'UNB+UNOC:3+S+R+240101:0000+REF'UNH+REF01+SKDUPD:D:03B:UN:IATA:CURRENT'UNT+2+REF01'UNZ+2+REF'",
			expected: []string{"MessageCountMismatch"},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			report := ValidateEDIFACT(test.text, formats.LevelStandard)
			assert.ElementsMatch(t, test.expected, codes(report.Errors))
		})
	}
}

func TestValidateEDIFACTStrictSegments(t *testing.T) {
	text := "UNB+UNOC:3+S+R+240101:0000+REF'UNH+REF01+SKDUPD:D:03B:UN:IATA:CURRENT'XYZ+1'UNT+3+REF01'UNZ+1+REF'"

	standard := ValidateEDIFACT(text, formats.LevelStandard)
	assert.True(t, standard.Valid())
	assert.Equal(t, []string{"MissingUNA"}, codes(standard.Warnings))

	strict := ValidateEDIFACT(text, formats.LevelStrict)
	assert.Equal(t, []string{"MissingUNA", "UnknownSegment"}, codes(strict.Warnings))
	assert.Equal(t, 3, strict.Warnings[1].Locator.Line)
}

func TestValidateEncodedGTFS(t *testing.T) {
	bundle, err := gtfs.Encode(parseDocument(t, validDocument), gtfs.Options{})
	require.NoError(t, err)

	report := ValidateGTFS(bundle.Files, formats.LevelStrict)
	assert.True(t, report.Valid(), "%v", report.Errors)
	assert.Empty(t, report.Warnings)
	assert.Empty(t, report.Notices)
}

func TestValidateGTFSFeedProblems(t *testing.T) {
	files := map[string][]byte{
		gtfs.AgencyFile: []byte("agency_id,agency_name,agency_url,agency_timezone\nA1,One,https://one.example,UTC\n"),
		gtfs.StopsFile:  []byte("stop_id,stop_name,stop_lat,stop_lon\nS1,One,48.1,17.1\nS2,Two,95,17.1\n"),
		gtfs.RoutesFile: []byte("route_id,agency_id,route_type\nR1,A1,3\nR2,A9,3\n"),
		gtfs.TripsFile:  []byte("route_id,service_id,trip_id\nR1,WD,T1\nR7,WD,T2\n"),
		gtfs.StopTimesFile: []byte(strings.Join([]string{
			"trip_id,arrival_time,departure_time,stop_id,stop_sequence",
			"T1,08:10:00,08:00:00,S1,1",
			"T1,08:20:00,08:20:00,S9,1",
			"T3,8h,08:30:00,S2,2",
		}, "\n") + "\n"),
		"shapes.txt": []byte("shape_id\n"),
	}

	report := ValidateGTFS(files, formats.LevelStrict)

	assert.ElementsMatch(t, []string{
		"MissingRequiredFile",
		"InvalidCoordinates",
		"UnknownAgency",
		"UnknownRoute",
		"InvalidTimeOrder",
		"UnknownStop",
		"StopSequenceNotIncreasing",
		"UnknownTrip",
		"InvalidTime",
	}, codes(report.Errors))
	assert.Equal(t, []string{"UnknownFile"}, codes(report.Notices))

	for _, finding := range report.Errors {
		switch finding.Code {
		case "MissingRequiredFile":
			assert.Equal(t, gtfs.CalendarFile, finding.Locator.File)
		case "InvalidCoordinates":
			assert.Equal(t, Locator{File: gtfs.StopsFile, Line: 3, ID: "S2", Field: "stop_lat"}, finding.Locator)
		case "StopSequenceNotIncreasing":
			assert.Equal(t, 3, finding.Locator.Line)
		}
	}
}

func TestValidateGTFSMissingColumns(t *testing.T) {
	bundle, err := gtfs.Encode(parseDocument(t, validDocument), gtfs.Options{})
	require.NoError(t, err)

	bundle.Files[gtfs.RoutesFile] = []byte("route_id,agency_id\nR1,A1\n")

	report := ValidateGTFS(bundle.Files, formats.LevelStandard)
	require.False(t, report.Valid())

	assert.Equal(t, "MissingRequiredColumn", report.Errors[0].Code)
	assert.Equal(t, Locator{File: gtfs.RoutesFile, Line: 1, Field: "route_type"}, report.Errors[0].Locator)
}
