package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/tsiconverter/pkg/edifact"
	"github.com/travigo/tsiconverter/pkg/formats"
	"github.com/travigo/tsiconverter/pkg/gtfsrt"
)

var testDefaults = Defaults{
	JobTimeout:         time.Minute,
	ArtifactTTL:        time.Hour,
	RecordRetention:    time.Hour,
	SupervisorInterval: time.Hour,
	Edifact: edifact.Options{
		Version:  edifact.DefaultVersion,
		UNA:      edifact.DefaultUNA,
		Receiver: edifact.DefaultReceiver,
	},
}

func TestParseOptionsDefaults(t *testing.T) {
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	settings, err := ParseOptions(nil, formats.TargetGTFSRealtime, testDefaults, now)
	require.NoError(t, err)

	assert.Equal(t, formats.LevelStandard, settings.Level)
	assert.Equal(t, gtfsrt.FeedTypeTripUpdates, settings.FeedType)
	assert.Equal(t, now, settings.AsOf)
	assert.Equal(t, time.Minute, settings.Timeout)
	assert.Equal(t, edifact.DefaultReceiver, settings.Edifact.Receiver)
	assert.False(t, settings.PostValidate)
}

func TestParseOptionsValues(t *testing.T) {
	settings, err := ParseOptions(Options{
		"level":            "strict",
		"post_validate":    true,
		"reference":        "REF1",
		"sender":           "ZSSK",
		"omit_coordinates": "true",
		"timeout":          "PT30S",
	}, formats.TargetEdifactTSDUPD, testDefaults, time.Now())
	require.NoError(t, err)

	assert.Equal(t, formats.LevelStrict, settings.Level)
	assert.True(t, settings.PostValidate)
	assert.Equal(t, "REF1", settings.Edifact.Reference)
	assert.Equal(t, "ZSSK", settings.Edifact.Sender)
	assert.True(t, settings.Edifact.OmitCoordinates)
	assert.Equal(t, 30*time.Second, settings.Timeout)

	settings, err = ParseOptions(Options{
		"feed_type": "vehicle_positions",
		"as_of":     float64(1714550400),
	}, formats.TargetGTFSRealtime, testDefaults, time.Now())
	require.NoError(t, err)
	assert.Equal(t, gtfsrt.FeedTypeVehiclePositions, settings.FeedType)
	assert.Equal(t, time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC), settings.AsOf)

	settings, err = ParseOptions(Options{"package": "zip", "feed_version": "2024.1"}, formats.TargetGTFS, testDefaults, time.Now())
	require.NoError(t, err)
	assert.Equal(t, PackageZip, settings.Package)
	assert.Equal(t, "2024.1", settings.FeedVersion)
}

func TestParseOptionsRejects(t *testing.T) {
	cases := map[string]struct {
		options Options
		target  formats.Target
	}{
		"unknown key":         {Options{"colour": "red"}, formats.TargetGTFS},
		"zip for edifact":     {Options{"package": "zip"}, formats.TargetEdifactSKDUPD},
		"unknown package":     {Options{"package": "tar"}, formats.TargetGTFS},
		"bad level":           {Options{"level": "paranoid"}, formats.TargetGTFS},
		"bad una":             {Options{"una": "UNA"}, formats.TargetEdifactSKDUPD},
		"bad feed type":       {Options{"feed_type": "weather"}, formats.TargetGTFSRealtime},
		"bad as_of":           {Options{"as_of": "yesterday"}, formats.TargetGTFSRealtime},
		"bad timeout":         {Options{"timeout": "soon"}, formats.TargetGTFS},
		"negative timeout":    {Options{"timeout": "-5s"}, formats.TargetGTFS},
		"post_validate type":  {Options{"post_validate": "maybe"}, formats.TargetGTFS},
		"non string sender":   {Options{"sender": []string{"a"}}, formats.TargetEdifactSKDUPD},
		"omit_coordinates 42": {Options{"omit_coordinates": 42}, formats.TargetEdifactTSDUPD},
	}

	for name, c := range cases {
		_, err := ParseOptions(c.options, c.target, testDefaults, time.Now())
		assert.ErrorIs(t, err, ErrInvalidOptions, name)
	}
}
