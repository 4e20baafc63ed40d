package jobs

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/travigo/tsiconverter/pkg/config"
	"github.com/travigo/tsiconverter/pkg/edifact"
	"github.com/travigo/tsiconverter/pkg/formats"
	"github.com/travigo/tsiconverter/pkg/gtfsrt"
)

// Options are the loosely typed per request options
type Options map[string]any

const PackageZip = "zip"

// Settings are the options of a job resolved against the orchestrator defaults
type Settings struct {
	Level        formats.Level
	PostValidate bool
	Package      string

	Edifact     edifact.Options
	FeedVersion string

	FeedType gtfsrt.FeedType
	AsOf     time.Time

	Timeout time.Duration
}

var knownOptions = map[string]bool{
	"level":            true,
	"post_validate":    true,
	"package":          true,
	"version":          true,
	"una":              true,
	"sender":           true,
	"receiver":         true,
	"reference":        true,
	"omit_coordinates": true,
	"feed_version":     true,
	"feed_type":        true,
	"as_of":            true,
	"timeout":          true,
}

// ParseOptions rejects unknown keys and values of the wrong type
func ParseOptions(options Options, target formats.Target, defaults Defaults, now time.Time) (Settings, error) {
	settings := Settings{
		Level:    formats.LevelStandard,
		Edifact:  defaults.Edifact,
		FeedType: gtfsrt.FeedTypeTripUpdates,
		AsOf:     now,
		Timeout:  defaults.JobTimeout,
	}

	for key := range options {
		if !knownOptions[key] {
			return settings, fmt.Errorf("%w: unknown option %q", ErrInvalidOptions, key)
		}
	}

	var err error
	text := func(key string, target *string) {
		if err != nil {
			return
		}
		if value, exists := options[key]; exists && value != nil {
			var s string
			if s, err = optionString(key, value); err == nil {
				*target = s
			}
		}
	}

	var level, packaging, feedType, asOf, timeout string
	text("level", &level)
	text("package", &packaging)
	text("version", &settings.Edifact.Version)
	text("una", &settings.Edifact.UNA)
	text("sender", &settings.Edifact.Sender)
	text("receiver", &settings.Edifact.Receiver)
	text("reference", &settings.Edifact.Reference)
	text("feed_version", &settings.FeedVersion)
	text("feed_type", &feedType)
	text("as_of", &asOf)
	text("timeout", &timeout)
	if err != nil {
		return settings, err
	}

	if settings.PostValidate, err = optionBool(options, "post_validate"); err != nil {
		return settings, err
	}
	omit, err := optionBool(options, "omit_coordinates")
	if err != nil {
		return settings, err
	}
	settings.Edifact.OmitCoordinates = settings.Edifact.OmitCoordinates || omit

	if settings.Level, err = formats.ParseLevel(level); err != nil {
		return settings, fmt.Errorf("%w: %s", ErrInvalidOptions, err)
	}

	switch strings.ToLower(packaging) {
	case "", "files":
	case PackageZip:
		if target != formats.TargetGTFS {
			return settings, fmt.Errorf("%w: package %q is only supported for gtfs", ErrInvalidOptions, packaging)
		}
		settings.Package = PackageZip
	default:
		return settings, fmt.Errorf("%w: unknown package %q", ErrInvalidOptions, packaging)
	}

	if target.IsEdifact() && settings.Edifact.UNA != "" {
		if _, err := edifact.ParseUNA(settings.Edifact.UNA); err != nil {
			return settings, fmt.Errorf("%w: %s", ErrInvalidOptions, err)
		}
	}

	if feedType != "" {
		if settings.FeedType, err = gtfsrt.ParseFeedType(feedType); err != nil {
			return settings, fmt.Errorf("%w: %s", ErrInvalidOptions, err)
		}
	}

	if asOf != "" {
		if settings.AsOf, err = parseInstant(asOf); err != nil {
			return settings, fmt.Errorf("%w: as_of: %s", ErrInvalidOptions, err)
		}
	}

	if timeout != "" {
		d, err := config.ParseDuration(timeout)
		if err != nil || d <= 0 {
			return settings, fmt.Errorf("%w: invalid timeout %q", ErrInvalidOptions, timeout)
		}
		settings.Timeout = d.Duration()
	}

	return settings, nil
}

func optionString(key string, value any) (string, error) {
	switch typed := value.(type) {
	case string:
		return typed, nil
	case json.Number:
		return typed.String(), nil
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(typed), nil
	case int64:
		return strconv.FormatInt(typed, 10), nil
	}

	return "", fmt.Errorf("%w: option %q must be a string", ErrInvalidOptions, key)
}

func optionBool(options Options, key string) (bool, error) {
	value, exists := options[key]
	if !exists || value == nil {
		return false, nil
	}

	switch typed := value.(type) {
	case bool:
		return typed, nil
	case string:
		parsed, err := strconv.ParseBool(typed)
		if err == nil {
			return parsed, nil
		}
	}

	return false, fmt.Errorf("%w: option %q must be a boolean", ErrInvalidOptions, key)
}

// parseInstant accepts RFC 3339 or unix seconds
func parseInstant(s string) (time.Time, error) {
	if seconds, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(seconds, 0).UTC(), nil
	}

	return time.Parse(time.RFC3339, s)
}
